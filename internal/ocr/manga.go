package ocr

import (
	"context"
	"fmt"
	"image"

	"github.com/adverant/nexus/manga-translator/internal/imageutil"
	"github.com/adverant/nexus/manga-translator/internal/region"
)

// PNGRecognizer is the transport used by MangaOCRRecognizer.
// clients.OCRServerClient implements it.
type PNGRecognizer interface {
	RecognizePNG(ctx context.Context, pngData []byte) (string, error)
}

// MangaOCRRecognizer sends crops to the manga-ocr model server.
// The model reads Japanese only, whatever language was requested.
type MangaOCRRecognizer struct {
	server PNGRecognizer
}

// NewMangaOCRRecognizer wraps a model server client
func NewMangaOCRRecognizer(server PNGRecognizer) *MangaOCRRecognizer {
	return &MangaOCRRecognizer{server: server}
}

// Recognize crops the region and asks the model server for its text
func (m *MangaOCRRecognizer) Recognize(ctx context.Context, img image.Image, r region.Region) (string, error) {
	crop, err := imageutil.Crop(img, r)
	if err != nil {
		return "", err
	}
	data, err := imageutil.EncodePNG(crop)
	if err != nil {
		return "", err
	}
	text, err := m.server.RecognizePNG(ctx, data)
	if err != nil {
		return "", fmt.Errorf("manga-ocr: %w", err)
	}
	return joinLines(text, false), nil
}

func (m *MangaOCRRecognizer) Language() string {
	return "jp"
}

func (m *MangaOCRRecognizer) Close() error {
	return nil
}
