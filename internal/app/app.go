// Package app wires configuration, logging and the page pipeline for the
// commands under cmd/.
package app

import (
	"fmt"

	"github.com/joho/godotenv"

	"github.com/adverant/nexus/manga-translator/internal/config"
	"github.com/adverant/nexus/manga-translator/internal/logging"
	"github.com/adverant/nexus/manga-translator/internal/models"
	"github.com/adverant/nexus/manga-translator/internal/processor"
)

// EnvFile is loaded before the configuration when present
const EnvFile = ".env"

// LoadConfig loads .env (missing file is fine), reads the configuration and
// applies the log settings.
func LoadConfig() (*config.Config, error) {
	logger := logging.NewLogger("App")
	if err := godotenv.Load(EnvFile); err != nil {
		logger.Warn(EnvFile + " not found, using system environment variables")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}
	if err := logging.Configure(cfg.LogLevel, cfg.LogFormat); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Pipeline is the page processor with the registry that owns its models
type Pipeline struct {
	Processor *processor.PageProcessor
	Registry  *models.Registry
}

// NewPipeline builds the registry with the production engines. Models load
// lazily on the first page.
func NewPipeline(cfg *config.Config) (*Pipeline, error) {
	registry := models.NewRegistry(models.DefaultFactories(cfg))
	proc, err := processor.NewPageProcessor(&processor.ProcessorConfig{
		Registry:       registry,
		TargetLang:     cfg.TargetLang,
		MaxImageSize:   cfg.MaxImageSize,
		MaxImagePixels: cfg.MaxImagePixels,
	})
	if err != nil {
		registry.Close()
		return nil, fmt.Errorf("failed to initialize page processor: %w", err)
	}
	return &Pipeline{Processor: proc, Registry: registry}, nil
}

// Close releases every loaded model
func (p *Pipeline) Close() error {
	return p.Registry.Close()
}
