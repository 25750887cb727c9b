/**
 * Manga Translator Worker - Main Entry Point
 *
 * Consumes page jobs from Redis and writes the translated pages to OUTPUT_DIR.
 *
 * Architecture:
 * - Redis list consumer (TypeScript RedisQueue format) or asynq consumer,
 *   selected by QUEUE_BACKEND
 * - Page pipeline: detect (comic-text-detector) → OCR (Tesseract or manga-ocr)
 *   → translate (Gemini or OpenAI-compatible LLM) → inpaint (LaMa)
 * - One page at a time, per-job timeout, no retries
 */

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/adverant/nexus/manga-translator/internal/app"
	"github.com/adverant/nexus/manga-translator/internal/config"
	"github.com/adverant/nexus/manga-translator/internal/logging"
	"github.com/adverant/nexus/manga-translator/internal/queue"
	"github.com/adverant/nexus/manga-translator/internal/storage"
)

// consumer is satisfied by both queue backends
type consumer interface {
	start(ctx context.Context) error
	stop(ctx context.Context) error
}

type redisBackend struct{ *queue.RedisConsumer }

func (r redisBackend) start(ctx context.Context) error { return r.Start() }
func (r redisBackend) stop(ctx context.Context) error  { return r.Stop() }

type asynqBackend struct{ *queue.Consumer }

func (a asynqBackend) start(ctx context.Context) error { return a.Start(ctx) }
func (a asynqBackend) stop(ctx context.Context) error  { return a.Stop(ctx) }

func main() {
	logger := logging.NewLogger("Worker")

	cfg, err := app.LoadConfig()
	if err != nil {
		logger.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger.Printf("Manga Translator Worker starting...")
	logger.Printf("Configuration loaded: Redis=%s, Queue=%s (%s), OCR=%s, Translator=%s, Target=%s",
		cfg.RedisURL, cfg.QueueName, cfg.QueueBackend, cfg.OCREngine, cfg.TranslatorBackend, cfg.TargetLang)

	store, err := storage.NewStorageManager(cfg.OutputDir)
	if err != nil {
		logger.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}
	defer store.Close()
	logger.Printf("Results will be written to %s", store.OutputDir())

	pipeline, err := app.NewPipeline(cfg)
	if err != nil {
		logger.Error("Failed to initialize pipeline", "error", err)
		os.Exit(1)
	}
	defer pipeline.Close()

	var c consumer
	switch cfg.QueueBackend {
	case config.QueueAsynq:
		qc, err := queue.NewConsumer(&queue.ConsumerConfig{
			RedisURL:          cfg.RedisURL,
			QueueName:         cfg.QueueName,
			Processor:         pipeline.Processor,
			Store:             store,
			ProcessingTimeout: int64(cfg.ProcessingTimeout),
		})
		if err != nil {
			logger.Error("Failed to initialize queue consumer", "error", err)
			os.Exit(1)
		}
		c = asynqBackend{qc}
	default:
		rc, err := queue.NewRedisConsumer(&queue.RedisConsumerConfig{
			RedisURL:          cfg.RedisURL,
			QueueName:         cfg.QueueName,
			Processor:         pipeline.Processor,
			Store:             store,
			ProcessingTimeout: int64(cfg.ProcessingTimeout),
		})
		if err != nil {
			logger.Error("Failed to initialize queue consumer", "error", err)
			os.Exit(1)
		}
		c = redisBackend{rc}
	}

	ctx := context.Background()
	if err := c.start(ctx); err != nil {
		logger.Error("Failed to start queue consumer", "error", err)
		os.Exit(1)
	}

	logger.Printf("===========================================")
	logger.Printf("Manga Translator Worker is READY")
	logger.Printf("===========================================")
	logger.Printf("Queue: %s (%s)", cfg.QueueName, cfg.QueueBackend)
	logger.Printf("Timeout per page: %v", cfg.ProcessingTimeoutDuration())
	logger.Printf("Waiting for jobs...")

	// Setup graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan
	logger.Printf("Received signal %v, initiating graceful shutdown...", sig)

	stopCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := c.stop(stopCtx); err != nil {
		logger.Error("Error stopping queue consumer", "error", err)
	} else {
		logger.Printf("Queue consumer stopped successfully")
	}

	logger.Printf("Shutdown complete")
}
