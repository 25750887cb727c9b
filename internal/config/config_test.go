package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "test-key")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "vi", cfg.TargetLang)
	assert.Equal(t, "jp", cfg.DefaultSourceLang)
	assert.Equal(t, OCREngineTesseract, cfg.OCREngine)
	assert.Equal(t, TranslatorGemini, cfg.TranslatorBackend)
	assert.Equal(t, 1024, cfg.DetectorInputSize)
	assert.Equal(t, 512, cfg.InpainterInputSize)
	assert.Equal(t, 5, cfg.MaskPadding)
	assert.InDelta(t, 0.3, cfg.TranslatorTemperature, 1e-9)
	assert.Equal(t, 1024, cfg.TranslatorMaxTokens)
	assert.False(t, cfg.UseCUDA)
	assert.Equal(t, 5*time.Minute, cfg.ProcessingTimeoutDuration())
	assert.Equal(t, int64(50000000), cfg.MaxImagePixels)
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("TRANSLATOR_BACKEND", "OpenAI")
	t.Setenv("OPENAI_MODEL", "qwen2.5-7b")
	t.Setenv("OCR_ENGINE", "manga-ocr")
	t.Setenv("USE_CUDA", "true")
	t.Setenv("DETECTOR_CONF_THRESHOLD", "0.55")
	t.Setenv("MASK_PADDING", "not-a-number")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, TranslatorOpenAI, cfg.TranslatorBackend)
	assert.Equal(t, "qwen2.5-7b", cfg.OpenAIModel)
	assert.Equal(t, OCREngineMangaOCR, cfg.OCREngine)
	assert.True(t, cfg.UseCUDA)
	assert.InDelta(t, 0.55, cfg.DetectorConfThreshold, 1e-9)
	assert.Equal(t, 5, cfg.MaskPadding, "unparseable values fall back to the default")
}

func TestLoadConfigMissingGeminiKey(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("TRANSLATOR_BACKEND", "gemini")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GEMINI_API_KEY")
}

func validConfig() *Config {
	return &Config{
		TargetLang:            "vi",
		OutputDir:             "out",
		MaxImageSize:          1 << 20,
		MaxImagePixels:        50000000,
		ProcessingTimeout:     60000,
		DetectorInputSize:     1024,
		DetectorConfThreshold: 0.4,
		DetectorNMSThreshold:  0.35,
		InpainterInputSize:    512,
		MaskPadding:           5,
		OCREngine:             OCREngineTesseract,
		TranslatorBackend:     TranslatorGemini,
		GeminiAPIKey:          "k",
		TranslatorTemperature: 0.3,
		TranslatorMaxTokens:   1024,
		QueueBackend:          QueueRedis,
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"unknown ocr engine", func(c *Config) { c.OCREngine = "easyocr" }, "OCR_ENGINE"},
		{"manga-ocr without server", func(c *Config) {
			c.OCREngine = OCREngineMangaOCR
			c.OCRServerURL = ""
		}, "OCR_SERVER_URL"},
		{"unknown translator", func(c *Config) { c.TranslatorBackend = "deepl" }, "TRANSLATOR_BACKEND"},
		{"detector size not multiple of 32", func(c *Config) { c.DetectorInputSize = 1000 }, "DETECTOR_INPUT_SIZE"},
		{"conf threshold out of range", func(c *Config) { c.DetectorConfThreshold = 1.5 }, "DETECTOR_CONF_THRESHOLD"},
		{"negative padding", func(c *Config) { c.MaskPadding = -1 }, "MASK_PADDING"},
		{"pixel budget too small", func(c *Config) { c.MaxImagePixels = 10 }, "MAX_IMAGE_PIXELS"},
		{"timeout too short", func(c *Config) { c.ProcessingTimeout = 10 }, "PROCESSING_TIMEOUT"},
		{"unknown queue", func(c *Config) { c.QueueBackend = "kafka" }, "QUEUE_BACKEND"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
