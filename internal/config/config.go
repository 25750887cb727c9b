/**
 * Configuration for the manga page translator
 *
 * Loads configuration from environment variables (optionally seeded from .env)
 */

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Supported engine selectors
const (
	OCREngineTesseract = "tesseract"
	OCREngineMangaOCR  = "manga-ocr"

	TranslatorGemini = "gemini"
	TranslatorOpenAI = "openai"

	QueueRedis = "redis"
	QueueAsynq = "asynq"
)

// Config holds pipeline and front-door configuration
type Config struct {
	// Languages
	TargetLang        string
	DefaultSourceLang string

	// Output and limits
	OutputDir         string
	MaxImageSize      int64
	MaxImagePixels    int64
	ProcessingTimeout int // milliseconds

	// ONNX Runtime
	ONNXRuntimeLib string
	UseCUDA        bool

	// Detector
	DetectorModelPath     string
	DetectorInputSize     int
	DetectorConfThreshold float64
	DetectorNMSThreshold  float64

	// Inpainter
	InpainterModelPath string
	InpainterInputSize int
	MaskPadding        int

	// OCR
	OCREngine      string
	TessdataPrefix string
	OCRServerURL   string

	// Translator
	TranslatorBackend     string
	GeminiAPIKey          string
	GeminiModel           string
	OpenAIBaseURL         string
	OpenAIAPIKey          string
	OpenAIModel           string
	TranslatorTemperature float64
	TranslatorMaxTokens   int

	// Front doors
	HTTPAddr         string
	TelegramBotToken string

	// Queue
	RedisURL     string
	QueueBackend string
	QueueName    string

	// Logging
	LogLevel  string
	LogFormat string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		TargetLang:            getEnvOrDefault("TARGET_LANG", "vi"),
		DefaultSourceLang:     getEnvOrDefault("DEFAULT_SOURCE_LANG", "jp"),
		OutputDir:             getEnvOrDefault("OUTPUT_DIR", "./output"),
		MaxImageSize:          getEnvAsInt64OrDefault("MAX_IMAGE_SIZE", 20971520), // 20MB
		MaxImagePixels:        getEnvAsInt64OrDefault("MAX_IMAGE_PIXELS", 50000000),
		ProcessingTimeout:     getEnvAsIntOrDefault("PROCESSING_TIMEOUT", 300000), // 5 minutes
		ONNXRuntimeLib:        getEnvOrDefault("ONNXRUNTIME_LIB", ""),
		UseCUDA:               getEnvAsBoolOrDefault("USE_CUDA", false),
		DetectorModelPath:     getEnvOrDefault("DETECTOR_MODEL_PATH", "models/comictextdetector.onnx"),
		DetectorInputSize:     getEnvAsIntOrDefault("DETECTOR_INPUT_SIZE", 1024),
		DetectorConfThreshold: getEnvAsFloatOrDefault("DETECTOR_CONF_THRESHOLD", 0.4),
		DetectorNMSThreshold:  getEnvAsFloatOrDefault("DETECTOR_NMS_THRESHOLD", 0.35),
		InpainterModelPath:    getEnvOrDefault("INPAINTER_MODEL_PATH", "models/lama_fp32.onnx"),
		InpainterInputSize:    getEnvAsIntOrDefault("INPAINTER_INPUT_SIZE", 512),
		MaskPadding:           getEnvAsIntOrDefault("MASK_PADDING", 5),
		OCREngine:             strings.ToLower(getEnvOrDefault("OCR_ENGINE", OCREngineTesseract)),
		TessdataPrefix:        getEnvOrDefault("TESSDATA_PREFIX", ""),
		OCRServerURL:          getEnvOrDefault("OCR_SERVER_URL", "http://localhost:8501"),
		TranslatorBackend:     strings.ToLower(getEnvOrDefault("TRANSLATOR_BACKEND", TranslatorGemini)),
		GeminiAPIKey:          getEnvOrDefault("GEMINI_API_KEY", ""),
		GeminiModel:           getEnvOrDefault("GEMINI_MODEL", "gemini-1.5-flash"),
		OpenAIBaseURL:         getEnvOrDefault("OPENAI_BASE_URL", "http://localhost:8000/v1"),
		OpenAIAPIKey:          getEnvOrDefault("OPENAI_API_KEY", ""),
		OpenAIModel:           getEnvOrDefault("OPENAI_MODEL", "Qwen/Qwen2.5-7B-Instruct"),
		TranslatorTemperature: getEnvAsFloatOrDefault("TRANSLATOR_TEMPERATURE", 0.3),
		TranslatorMaxTokens:   getEnvAsIntOrDefault("TRANSLATOR_MAX_TOKENS", 1024),
		HTTPAddr:              getEnvOrDefault("HTTP_ADDR", ":7860"),
		TelegramBotToken:      getEnvOrDefault("TELEGRAM_BOT_TOKEN", ""),
		RedisURL:              getEnvOrDefault("REDIS_URL", "redis://localhost:6379"),
		QueueBackend:          strings.ToLower(getEnvOrDefault("QUEUE_BACKEND", QueueRedis)),
		QueueName:             getEnvOrDefault("QUEUE_NAME", "manga:pages"),
		LogLevel:              getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:             getEnvOrDefault("LOG_FORMAT", "text"),
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if configuration is valid
func (c *Config) Validate() error {
	if c.TargetLang == "" {
		return fmt.Errorf("TARGET_LANG is required")
	}

	if c.OutputDir == "" {
		return fmt.Errorf("OUTPUT_DIR is required")
	}

	if c.MaxImageSize < 1024 || c.MaxImageSize > 209715200 { // 1KB to 200MB
		return fmt.Errorf("MAX_IMAGE_SIZE must be between 1KB and 200MB, got %d", c.MaxImageSize)
	}

	if c.MaxImagePixels < 1000000 || c.MaxImagePixels > 500000000 {
		return fmt.Errorf("MAX_IMAGE_PIXELS must be between 1000000 and 500000000, got %d", c.MaxImagePixels)
	}

	if c.ProcessingTimeout < 1000 {
		return fmt.Errorf("PROCESSING_TIMEOUT must be at least 1000ms, got %d", c.ProcessingTimeout)
	}

	if c.DetectorInputSize < 64 || c.DetectorInputSize%32 != 0 {
		return fmt.Errorf("DETECTOR_INPUT_SIZE must be a multiple of 32 and at least 64, got %d", c.DetectorInputSize)
	}

	if c.DetectorConfThreshold <= 0 || c.DetectorConfThreshold >= 1 {
		return fmt.Errorf("DETECTOR_CONF_THRESHOLD must be in (0,1), got %v", c.DetectorConfThreshold)
	}

	if c.DetectorNMSThreshold <= 0 || c.DetectorNMSThreshold >= 1 {
		return fmt.Errorf("DETECTOR_NMS_THRESHOLD must be in (0,1), got %v", c.DetectorNMSThreshold)
	}

	if c.InpainterInputSize < 64 || c.InpainterInputSize%8 != 0 {
		return fmt.Errorf("INPAINTER_INPUT_SIZE must be a multiple of 8 and at least 64, got %d", c.InpainterInputSize)
	}

	if c.MaskPadding < 0 || c.MaskPadding > 64 {
		return fmt.Errorf("MASK_PADDING must be between 0 and 64, got %d", c.MaskPadding)
	}

	switch c.OCREngine {
	case OCREngineTesseract:
	case OCREngineMangaOCR:
		if c.OCRServerURL == "" {
			return fmt.Errorf("OCR_SERVER_URL is required when OCR_ENGINE=%s", OCREngineMangaOCR)
		}
	default:
		return fmt.Errorf("OCR_ENGINE must be %q or %q, got %q", OCREngineTesseract, OCREngineMangaOCR, c.OCREngine)
	}

	switch c.TranslatorBackend {
	case TranslatorGemini:
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY is required when TRANSLATOR_BACKEND=%s", TranslatorGemini)
		}
	case TranslatorOpenAI:
		if c.OpenAIBaseURL == "" || c.OpenAIModel == "" {
			return fmt.Errorf("OPENAI_BASE_URL and OPENAI_MODEL are required when TRANSLATOR_BACKEND=%s", TranslatorOpenAI)
		}
	default:
		return fmt.Errorf("TRANSLATOR_BACKEND must be %q or %q, got %q", TranslatorGemini, TranslatorOpenAI, c.TranslatorBackend)
	}

	if c.TranslatorTemperature < 0 || c.TranslatorTemperature > 2 {
		return fmt.Errorf("TRANSLATOR_TEMPERATURE must be between 0 and 2, got %v", c.TranslatorTemperature)
	}

	if c.TranslatorMaxTokens < 16 {
		return fmt.Errorf("TRANSLATOR_MAX_TOKENS must be at least 16, got %d", c.TranslatorMaxTokens)
	}

	if c.QueueBackend != QueueRedis && c.QueueBackend != QueueAsynq {
		return fmt.Errorf("QUEUE_BACKEND must be %q or %q, got %q", QueueRedis, QueueAsynq, c.QueueBackend)
	}

	return nil
}

// ProcessingTimeoutDuration returns PROCESSING_TIMEOUT as a time.Duration
func (c *Config) ProcessingTimeoutDuration() time.Duration {
	return time.Duration(c.ProcessingTimeout) * time.Millisecond
}

// getEnvOrDefault gets environment variable or returns default
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsIntOrDefault gets environment variable as int or returns default
func getEnvAsIntOrDefault(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

// getEnvAsInt64OrDefault gets environment variable as int64 or returns default
func getEnvAsInt64OrDefault(key string, defaultValue int64) int64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

// getEnvAsFloatOrDefault gets environment variable as float64 or returns default
func getEnvAsFloatOrDefault(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

// getEnvAsBoolOrDefault gets environment variable as bool or returns default
func getEnvAsBoolOrDefault(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}
