// Package synthetic provides offline implementations of the pipeline
// collaborators. They let the service run end to end without the AI
// providers configured, mirroring how image generation degrades to
// synthetic assets when no API key is present.
package synthetic

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"server/internal/domain"
	"server/internal/pipeline"
)

// Analyzer derives a minimal description without calling a vision model.
type Analyzer struct{}

// Analyze labels the image from its filename.
func (Analyzer) Analyze(_ context.Context, image *domain.UploadedImage) (*domain.ImageAnalysis, error) {
	name := strings.TrimSuffix(image.Filename, extOf(image.Filename))
	if name == "" {
		name = image.ID
	}
	return &domain.ImageAnalysis{
		Description: fmt.Sprintf("photo %q", name),
		Mood:        "neutral",
	}, nil
}

// Generator passes the uploaded images through as ready slides with a
// text overlay drawn from the theme and keywords.
type Generator struct{}

// Generate produces one slide per requested slot.
func (Generator) Generate(_ context.Context, req pipeline.GenerateRequest) (*pipeline.GenerateOutput, error) {
	if len(req.Images) == 0 {
		return nil, fmt.Errorf("synthetic generator: no images")
	}
	count := req.SlideCount
	if count <= 0 || count > len(req.Images) {
		count = len(req.Images)
	}
	slides := make([]pipeline.GeneratedSlide, 0, count)
	for i := 0; i < count; i++ {
		img := req.Images[i]
		slides = append(slides, pipeline.GeneratedSlide{
			Index:         i,
			Status:        pipeline.SlideReady,
			Text:          overlayText(req.Theme, req.Keywords, i),
			SourceImageID: img.ID,
			Data:          img.Data,
		})
	}
	return &pipeline.GenerateOutput{
		Slides:       slides,
		FilterConfig: pipeline.FilterConfig{Preset: "warm", Intensity: 0.4},
	}, nil
}

// Compositor emits the slide bytes unchanged, once per target platform.
type Compositor struct{}

// Composite tags each slide with its platform and sniffed format.
func (Compositor) Composite(_ context.Context, slides []pipeline.GeneratedSlide, platforms []string, _ pipeline.FilterConfig) ([]domain.Slide, error) {
	if len(platforms) == 0 {
		return nil, fmt.Errorf("synthetic compositor: no target platforms")
	}
	out := make([]domain.Slide, 0, len(slides)*len(platforms))
	for _, platform := range platforms {
		for _, slide := range slides {
			out = append(out, domain.Slide{
				Platform:   platform,
				SlideIndex: slide.Index,
				ImageBytes: slide.Data,
				Format:     sniffFormat(slide.Data),
			})
		}
	}
	return out, nil
}

func overlayText(theme string, keywords []string, index int) string {
	if len(keywords) > 0 {
		return keywords[index%len(keywords)]
	}
	if theme != "" {
		return theme
	}
	return fmt.Sprintf("slide %d", index+1)
}

func sniffFormat(data []byte) string {
	if len(data) >= 3 && bytes.Equal(data[:3], []byte{0xff, 0xd8, 0xff}) {
		return "jpeg"
	}
	return "png"
}

func extOf(filename string) string {
	if i := strings.LastIndex(filename, "."); i >= 0 {
		return filename[i:]
	}
	return ""
}

var (
	_ pipeline.Analyzer   = Analyzer{}
	_ pipeline.Generator  = Generator{}
	_ pipeline.Compositor = Compositor{}
)
