package publish

import (
	"bytes"
	"fmt"
	"io"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// detectImageFormat sniffs the binary format from content. Declared
// filenames and extensions are not trusted; the document synthesis step
// must embed images by their actual type.
func detectImageFormat(data []byte) (string, error) {
	switch {
	case len(data) >= 8 && bytes.Equal(data[:8], []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}):
		return "png", nil
	case len(data) >= 3 && bytes.Equal(data[:3], []byte{0xff, 0xd8, 0xff}):
		return "jpeg", nil
	default:
		return "", fmt.Errorf("unsupported image format (only png and jpeg can be embedded)")
	}
}

// buildCarouselDocument synthesizes a single multi-page PDF from the image
// set, one image per page on A4, centered. The whole synthesis happens
// client-side before any network call.
func buildCarouselDocument(images [][]byte) ([]byte, error) {
	if len(images) == 0 {
		return nil, fmt.Errorf("document: no images to embed")
	}
	readers := make([]io.Reader, 0, len(images))
	for i, img := range images {
		if _, err := detectImageFormat(img); err != nil {
			return nil, fmt.Errorf("document: image %d: %w", i+1, err)
		}
		readers = append(readers, bytes.NewReader(img))
	}

	imp, err := api.Import("form:A4, pos:c", types.POINTS)
	if err != nil {
		return nil, fmt.Errorf("document: import config: %w", err)
	}
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	var buf bytes.Buffer
	if err := api.ImportImages(nil, &buf, readers, imp, conf); err != nil {
		return nil, fmt.Errorf("document: assemble pdf: %w", err)
	}
	return buf.Bytes(), nil
}
