package models

import (
	"context"
	"fmt"
	"time"

	"github.com/adverant/nexus/manga-translator/internal/clients"
	"github.com/adverant/nexus/manga-translator/internal/config"
	"github.com/adverant/nexus/manga-translator/internal/detector"
	"github.com/adverant/nexus/manga-translator/internal/inpainter"
	"github.com/adverant/nexus/manga-translator/internal/language"
	"github.com/adverant/nexus/manga-translator/internal/logging"
	"github.com/adverant/nexus/manga-translator/internal/ocr"
	"github.com/adverant/nexus/manga-translator/internal/onnx"
	"github.com/adverant/nexus/manga-translator/internal/translator"
)

// DefaultFactories builds the production engines selected by cfg.
func DefaultFactories(cfg *config.Config) Factories {
	runtime := onnx.Options{
		SharedLibraryPath: cfg.ONNXRuntimeLib,
		UseCUDA:           cfg.UseCUDA,
	}
	logger := logging.NewLogger("ModelFactories")

	return Factories{
		Detector: func(ctx context.Context) (detector.Detector, error) {
			engine, err := detector.NewCTD(detector.CTDConfig{
				ModelPath:     cfg.DetectorModelPath,
				InputSize:     cfg.DetectorInputSize,
				ConfThreshold: cfg.DetectorConfThreshold,
				NMSThreshold:  cfg.DetectorNMSThreshold,
				Runtime:       runtime,
			})
			if err != nil {
				return nil, err
			}
			return detector.New(engine), nil
		},

		Recognizer: func(ctx context.Context, lang language.Language) (ocr.Recognizer, error) {
			switch cfg.OCREngine {
			case config.OCREngineMangaOCR:
				client := clients.NewOCRServerClient(cfg.OCRServerURL)
				hctx, cancel := context.WithTimeout(ctx, 5*time.Second)
				defer cancel()
				if err := client.HealthCheck(hctx); err != nil {
					logger.Warn("OCR server health check failed", "url", cfg.OCRServerURL, "error", err)
				} else {
					logger.Info("OCR server connection verified", "url", cfg.OCRServerURL)
				}
				if lang.Code != "jp" {
					logger.Warn("manga-ocr reads Japanese only", "requested", lang.Code)
				}
				return ocr.NewMangaOCRRecognizer(client), nil
			case config.OCREngineTesseract:
				return ocr.NewTesseractRecognizer(&ocr.TesseractConfig{
					Language:       lang.Code,
					TessdataPrefix: cfg.TessdataPrefix,
				})
			default:
				return nil, fmt.Errorf("unknown OCR engine %q", cfg.OCREngine)
			}
		},

		Translator: func(ctx context.Context) (translator.Translator, error) {
			var backend translator.Backend
			var err error
			switch cfg.TranslatorBackend {
			case config.TranslatorGemini:
				backend, err = translator.NewGeminiBackend(ctx, translator.GeminiConfig{
					APIKey:          cfg.GeminiAPIKey,
					Model:           cfg.GeminiModel,
					Temperature:     float32(cfg.TranslatorTemperature),
					MaxOutputTokens: int32(cfg.TranslatorMaxTokens),
				})
			case config.TranslatorOpenAI:
				backend, err = translator.NewOpenAIBackend(ctx, translator.OpenAIConfig{
					BaseURL:     cfg.OpenAIBaseURL,
					APIKey:      cfg.OpenAIAPIKey,
					Model:       cfg.OpenAIModel,
					Temperature: float32(cfg.TranslatorTemperature),
					MaxTokens:   cfg.TranslatorMaxTokens,
				})
			default:
				err = fmt.Errorf("unknown translator backend %q", cfg.TranslatorBackend)
			}
			if err != nil {
				return nil, err
			}
			return translator.New(backend, translator.Config{TargetLang: cfg.TargetLang}), nil
		},

		Inpainter: func(ctx context.Context) (inpainter.Inpainter, error) {
			engine, err := inpainter.NewLaMa(inpainter.LaMaConfig{
				ModelPath: cfg.InpainterModelPath,
				InputSize: cfg.InpainterInputSize,
				Runtime:   runtime,
			})
			if err != nil {
				return nil, err
			}
			return inpainter.New(engine, cfg.MaskPadding), nil
		},
	}
}
