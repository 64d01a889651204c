package pipeline

import (
	"context"

	"server/internal/domain"
)

// SlideStatus reports whether the Generator produced a usable slide.
type SlideStatus string

const (
	SlideReady  SlideStatus = "ready"
	SlideFailed SlideStatus = "failed"
)

// GeneratedSlide is one styled slide with text overlay from the Generator.
type GeneratedSlide struct {
	Index         int
	Status        SlideStatus
	Text          string
	SourceImageID string
	Data          []byte
}

// FilterConfig is the visual treatment the Generator selected for the set.
type FilterConfig struct {
	Preset    string  `json:"preset"`
	Intensity float64 `json:"intensity"`
}

// GenerateRequest is the single-shot input for the Generator.
type GenerateRequest struct {
	Theme      string
	SlideCount int
	Keywords   []string
	Images     []*domain.UploadedImage
}

// GenerateOutput bundles the Generator's slides with its filter choice.
type GenerateOutput struct {
	Slides       []GeneratedSlide
	FilterConfig FilterConfig
}

// Analyzer describes uploaded images. Per-image failures are non-fatal.
type Analyzer interface {
	Analyze(ctx context.Context, image *domain.UploadedImage) (*domain.ImageAnalysis, error)
}

// Generator produces styled slides from the full image set. Failure is fatal.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (*GenerateOutput, error)
}

// Compositor rasterizes ready slides into export-ready images per platform.
// Failure is fatal.
type Compositor interface {
	Composite(ctx context.Context, slides []GeneratedSlide, platforms []string, filter FilterConfig) ([]domain.Slide, error)
}

// Captioner writes the post caption in the job's locale. Failure is
// non-fatal; the job completes with no caption.
type Captioner interface {
	Caption(ctx context.Context, locale, theme string, keywords []string) (string, error)
}

// failureMode classifies a stage's failure handling instead of scattering
// try/catch-style recovery through the run loop.
type failureMode int

const (
	fatal failureMode = iota
	nonFatal
)

var stagePolicy = map[string]failureMode{
	domain.StepAnalyzing:   nonFatal,
	domain.StepGenerating:  fatal,
	domain.StepCompositing: fatal,
	domain.StepCaptioning:  nonFatal,
}
