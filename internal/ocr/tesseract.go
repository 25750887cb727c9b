package ocr

import (
	"context"
	"fmt"
	"image"
	"sync"

	"github.com/otiai10/gosseract/v2"

	"github.com/adverant/nexus/manga-translator/internal/imageutil"
	"github.com/adverant/nexus/manga-translator/internal/language"
	"github.com/adverant/nexus/manga-translator/internal/logging"
	"github.com/adverant/nexus/manga-translator/internal/region"
)

// TesseractConfig holds Tesseract configuration
type TesseractConfig struct {
	// Language is the user-facing selector ("jp", "en", ...)
	Language string
	// TessdataPrefix overrides the traineddata directory
	TessdataPrefix string
}

// TesseractRecognizer performs OCR using Tesseract via gosseract.
// One client is held for the lifetime of the recognizer.
type TesseractRecognizer struct {
	lang   language.Language
	client *gosseract.Client
	mu     sync.Mutex
	logger *logging.Logger
}

// NewTesseractRecognizer creates a recognizer bound to one language
func NewTesseractRecognizer(cfg *TesseractConfig) (*TesseractRecognizer, error) {
	lang := language.Resolve(cfg.Language)

	client := gosseract.NewClient()
	if cfg.TessdataPrefix != "" {
		if err := client.SetTessdataPrefix(cfg.TessdataPrefix); err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to set tessdata prefix: %w", err)
		}
	}
	if err := client.SetLanguage(lang.Tesseract); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to set tesseract language %s: %w", lang.Tesseract, err)
	}

	mode := gosseract.PSM_SINGLE_BLOCK
	if lang.Code == "jp" {
		mode = gosseract.PSM_SINGLE_BLOCK_VERT_TEXT
	}
	if err := client.SetPageSegMode(mode); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to set page segmentation mode: %w", err)
	}

	logger := logging.NewLogger("TesseractOCR")
	logger.Info("Tesseract recognizer ready", "language", lang.Code, "traineddata", lang.Tesseract)

	return &TesseractRecognizer{
		lang:   lang,
		client: client,
		logger: logger,
	}, nil
}

// Recognize performs OCR on one region
func (t *TesseractRecognizer) Recognize(ctx context.Context, img image.Image, r region.Region) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	crop, err := imageutil.Crop(img, r)
	if err != nil {
		return "", err
	}
	data, err := imageutil.EncodePNG(crop)
	if err != nil {
		return "", err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.client == nil {
		return "", fmt.Errorf("tesseract recognizer is closed")
	}

	if err := t.client.SetImageFromBytes(data); err != nil {
		return "", fmt.Errorf("failed to set image: %w", err)
	}

	text, err := t.client.Text()
	if err != nil {
		return "", fmt.Errorf("tesseract OCR failed: %w", err)
	}

	return joinLines(text, spacedScript(t.lang.Code)), nil
}

// Language returns the selector this recognizer was built for
func (t *TesseractRecognizer) Language() string {
	return t.lang.Code
}

// Close releases the Tesseract client
func (t *TesseractRecognizer) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.client == nil {
		return nil
	}
	err := t.client.Close()
	t.client = nil
	return err
}

func spacedScript(code string) bool {
	return code != "jp" && code != "cn"
}
