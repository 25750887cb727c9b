/**
 * Manga Translator Server - Main Entry Point
 *
 * Serves the upload form and JSON API on HTTP_ADDR. When TELEGRAM_BOT_TOKEN
 * is set, the Telegram bot runs in the same process and shares the models.
 */

package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/adverant/nexus/manga-translator/internal/app"
	"github.com/adverant/nexus/manga-translator/internal/logging"
	"github.com/adverant/nexus/manga-translator/internal/storage"
	"github.com/adverant/nexus/manga-translator/internal/telegram"
	"github.com/adverant/nexus/manga-translator/internal/web"
)

func main() {
	logger := logging.NewLogger("Server")

	cfg, err := app.LoadConfig()
	if err != nil {
		logger.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	store, err := storage.NewStorageManager(cfg.OutputDir)
	if err != nil {
		logger.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}

	pipeline, err := app.NewPipeline(cfg)
	if err != nil {
		logger.Error("Failed to initialize pipeline", "error", err)
		os.Exit(1)
	}
	defer pipeline.Close()

	server, err := web.NewServer(&web.Config{
		Processor:         pipeline.Processor,
		Store:             store,
		TargetLang:        cfg.TargetLang,
		DefaultSourceLang: cfg.DefaultSourceLang,
		MaxImageSize:      cfg.MaxImageSize,
	})
	if err != nil {
		logger.Error("Failed to initialize web server", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup

	if cfg.TelegramBotToken != "" {
		api, err := telegram.NewBotAPI(cfg.TelegramBotToken)
		if err != nil {
			logger.Error("Failed to start Telegram bot", "error", err)
			os.Exit(1)
		}
		bot, err := telegram.NewBot(api, &telegram.Config{
			Processor:         pipeline.Processor,
			Store:             store,
			TargetLang:        cfg.TargetLang,
			DefaultSourceLang: cfg.DefaultSourceLang,
			MaxImageSize:      cfg.MaxImageSize,
		})
		if err != nil {
			logger.Error("Failed to start Telegram bot", "error", err)
			os.Exit(1)
		}
		logger.Info("Telegram bot authorized", "username", api.Self.UserName)

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := bot.Run(ctx, api); err != nil {
				logger.Error("Telegram bot stopped", "error", err)
			}
		}()
	} else {
		logger.Info("TELEGRAM_BOT_TOKEN not set, Telegram bot disabled")
	}

	go func() {
		if err := server.Start(cfg.HTTPAddr); err != nil {
			logger.Error("HTTP server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Printf("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error stopping HTTP server", "error", err)
	}
	wg.Wait()
	logger.Printf("Shutdown complete")
}
