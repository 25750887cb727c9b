/**
 * Telegram front door for the manga translator
 *
 * Commands:
 * - /start        greeting and current source language
 * - /lang [code]  choose the source language (inline keyboard without code)
 *
 * A photo or an image document is translated with the chat's source language.
 * The reply is the annotated preview, the cleaned page and the paired text.
 */

package telegram

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"

	"github.com/adverant/nexus/manga-translator/internal/errors"
	"github.com/adverant/nexus/manga-translator/internal/imageutil"
	"github.com/adverant/nexus/manga-translator/internal/language"
	"github.com/adverant/nexus/manga-translator/internal/logging"
	"github.com/adverant/nexus/manga-translator/internal/processor"
	"github.com/adverant/nexus/manga-translator/internal/storage"
)

// API is the subset of *tgbotapi.BotAPI the bot uses
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetFileDirectURL(fileID string) (string, error)
}

// Config holds bot configuration
type Config struct {
	Processor         processor.PageProcessorInterface
	Store             *storage.StorageManager // optional
	TargetLang        string
	DefaultSourceLang string
	MaxImageSize      int64
}

// Bot routes Telegram updates to the page processor
type Bot struct {
	api    API
	config *Config
	logger *logging.Logger

	mu    sync.Mutex
	langs map[int64]string // chat ID -> source language code
}

// NewBotAPI connects to Telegram with token
func NewBotAPI(token string) (*tgbotapi.BotAPI, error) {
	if token == "" {
		return nil, fmt.Errorf("telegram bot token is required")
	}
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Telegram: %w", err)
	}
	api.Debug = false
	return api, nil
}

// NewBot creates a bot on top of api
func NewBot(api API, cfg *Config) (*Bot, error) {
	if api == nil {
		return nil, fmt.Errorf("telegram API is required")
	}
	if cfg == nil || cfg.Processor == nil {
		return nil, fmt.Errorf("processor is required")
	}
	if cfg.TargetLang == "" {
		cfg.TargetLang = "vi"
	}
	if cfg.DefaultSourceLang == "" {
		cfg.DefaultSourceLang = "jp"
	}
	return &Bot{
		api:    api,
		config: cfg,
		logger: logging.NewLogger("Telegram"),
		langs:  map[int64]string{},
	}, nil
}

// ChatLanguage returns the source language selected for a chat
func (b *Bot) ChatLanguage(chatID int64) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if code, ok := b.langs[chatID]; ok {
		return code
	}
	return language.Resolve(b.config.DefaultSourceLang).Code
}

func (b *Bot) setChatLanguage(chatID int64, code string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.langs[chatID] = code
}

// HandleUpdate processes one update
func (b *Bot) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	if upd.CallbackQuery != nil {
		b.handleCallback(*upd.CallbackQuery)
		return
	}
	if upd.Message == nil {
		return
	}
	msg := upd.Message
	cid := msg.Chat.ID

	if msg.IsCommand() {
		b.handleCommand(msg)
		return
	}

	switch {
	case len(msg.Photo) > 0:
		// last size is the largest
		ph := msg.Photo[len(msg.Photo)-1]
		b.translate(ctx, cid, ph.FileID, "photo.jpg", int64(ph.FileSize))
	case msg.Document != nil && strings.HasPrefix(msg.Document.MimeType, "image/"):
		b.translate(ctx, cid, msg.Document.FileID, msg.Document.FileName, int64(msg.Document.FileSize))
	case msg.Document != nil:
		b.send(cid, "❌ Please send an image (photo or image file).")
	default:
		b.send(cid, helpText)
	}
}

func (b *Bot) handleCommand(msg *tgbotapi.Message) {
	cid := msg.Chat.ID
	switch msg.Command() {
	case "start", "help":
		b.send(cid, fmt.Sprintf("%s\n\nSource language: %s. Target language: %s.",
			helpText, language.Resolve(b.ChatLanguage(cid)).Name(), language.TargetName(b.config.TargetLang)))
	case "lang":
		arg := strings.TrimSpace(msg.CommandArguments())
		if arg == "" {
			out := tgbotapi.NewMessage(cid, "Choose the source language of your pages:")
			out.ReplyMarkup = languageKeyboard(b.ChatLanguage(cid))
			b.sendChattable(cid, out)
			return
		}
		l, ok := language.Lookup(arg)
		if !ok {
			b.send(cid, fmt.Sprintf("❌ Unknown language %q. Available: %s", arg, languageCodes()))
			return
		}
		b.setChatLanguage(cid, l.Code)
		b.send(cid, fmt.Sprintf("✅ Source language: %s", l.Name()))
	default:
		b.send(cid, "Unknown command. "+helpText)
	}
}

func (b *Bot) handleCallback(cb tgbotapi.CallbackQuery) {
	_, _ = b.api.Request(tgbotapi.NewCallback(cb.ID, "")) // ack
	if cb.Message == nil {
		return
	}
	cid := cb.Message.Chat.ID

	code, ok := parseLangCallback(cb.Data)
	if !ok {
		return
	}
	l, known := language.Lookup(code)
	if !known {
		return
	}
	b.setChatLanguage(cid, l.Code)
	edit := tgbotapi.NewEditMessageText(cid, cb.Message.MessageID, fmt.Sprintf("✅ Source language: %s", l.Name()))
	b.sendChattable(cid, edit)
}

// translate downloads the file, runs the page and replies with the result
func (b *Bot) translate(ctx context.Context, cid int64, fileID, filename string, size int64) {
	jobID := uuid.New().String()
	lang := b.ChatLanguage(cid)

	if b.config.MaxImageSize > 0 && size > b.config.MaxImageSize {
		b.send(cid, errors.UserMessage(errors.NewInvalidInputError(jobID,
			fmt.Sprintf("Image is too large: %d > %d bytes", size, b.config.MaxImageSize))))
		return
	}

	url, err := b.api.GetFileDirectURL(fileID)
	if err != nil {
		b.send(cid, errors.UserMessage(errors.NewInvalidInputError(jobID, fmt.Sprintf("Could not fetch the file: %v", err))))
		return
	}
	data, err := imageutil.Download(ctx, url, b.config.MaxImageSize)
	if err != nil {
		b.send(cid, errors.UserMessage(errors.NewImageDecodeError(jobID, err)))
		return
	}

	b.send(cid, fmt.Sprintf("⏳ Translating (%s → %s)...", language.Resolve(lang).Name(), language.TargetName(b.config.TargetLang)))
	b.logger.Info("Translating page", "job", jobID, "chat", cid, "lang", lang, "bytes", len(data))

	result, err := b.config.Processor.ProcessPage(ctx, &processor.ProcessRequest{
		JobID:      jobID,
		Filename:   filename,
		SourceLang: lang,
		ImageData:  data,
	})
	if err != nil {
		b.logger.Error("Page translation failed", "job", jobID, "code", string(errors.CodeOf(err)), "error", err)
		b.send(cid, errors.UserMessage(err))
		return
	}

	if b.config.Store != nil {
		if _, err := b.config.Store.StoreResult(ctx, result); err != nil {
			b.logger.Warn("Failed to store result", "job", jobID, "error", err)
		}
	}

	if err := b.sendResult(cid, result); err != nil {
		b.logger.Error("Failed to send result", "job", jobID, "error", err)
		b.send(cid, errors.UserMessage(errors.NewOutputError(jobID, err)))
	}
}

func (b *Bot) sendResult(cid int64, result *processor.ProcessResult) error {
	preview, err := imageutil.EncodePNG(result.Preview)
	if err != nil {
		return err
	}
	if result.Status == processor.StatusNoRegions {
		if err := b.sendPhoto(cid, "preview.png", preview, result.Message); err != nil {
			return err
		}
		return nil
	}

	cleaned, err := imageutil.EncodePNG(result.Cleaned)
	if err != nil {
		return err
	}
	if err := b.sendPhoto(cid, "preview.png", preview, fmt.Sprintf("🔍 %d text regions", len(result.Regions))); err != nil {
		return err
	}
	if err := b.sendPhoto(cid, "cleaned.png", cleaned, "🧽 Cleaned page"); err != nil {
		return err
	}
	for _, chunk := range splitMessage(result.Report(), maxMessageLen) {
		if _, err := b.api.Send(tgbotapi.NewMessage(cid, chunk)); err != nil {
			return err
		}
	}
	return nil
}

func (b *Bot) sendPhoto(cid int64, name string, data []byte, caption string) error {
	photo := tgbotapi.NewPhoto(cid, tgbotapi.FileBytes{Name: name, Bytes: data})
	photo.Caption = caption
	_, err := b.api.Send(photo)
	return err
}

func (b *Bot) send(cid int64, text string) {
	b.sendChattable(cid, tgbotapi.NewMessage(cid, text))
}

func (b *Bot) sendChattable(cid int64, c tgbotapi.Chattable) {
	if _, err := b.api.Send(c); err != nil {
		b.logger.Warn("Failed to send message", "chat", cid, "error", err)
	}
}

// Poller is the subset of *tgbotapi.BotAPI used for long polling
type Poller interface {
	GetUpdates(config tgbotapi.UpdateConfig) ([]tgbotapi.Update, error)
}

// Run long-polls for updates until ctx is cancelled. Updates are handled
// concurrently; the page processor serializes the page runs themselves.
func (b *Bot) Run(ctx context.Context, poller Poller) error {
	offset := 0
	baseDelay := 1 * time.Second
	maxDelay := 15 * time.Second
	var wg sync.WaitGroup
	defer wg.Wait()

	b.logger.Info("Telegram polling started")
	for {
		select {
		case <-ctx.Done():
			b.logger.Info("Telegram polling stopped")
			return nil
		default:
		}

		u := tgbotapi.NewUpdate(offset)
		u.Timeout = 30 // long polling timeout (sec)

		updates, err := poller.GetUpdates(u)
		if err != nil {
			d := retryDelayFromError(err)
			if d < baseDelay {
				d = baseDelay
			}
			if d > maxDelay {
				d = maxDelay
			}
			b.logger.Warn("Polling error", "error", err, "retry_in", d.String())
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(d):
			}
			continue
		}

		for _, upd := range updates {
			if upd.UpdateID >= offset {
				offset = upd.UpdateID + 1
			}
			wg.Add(1)
			go func(upd tgbotapi.Update) {
				defer wg.Done()
				b.HandleUpdate(ctx, upd)
			}(upd)
		}
	}
}

var reRetryAfter = regexp.MustCompile(`(?i)retry after\s+(\d+)`)

func retryDelayFromError(err error) time.Duration {
	if err == nil {
		return 0
	}
	s := strings.ToLower(err.Error())
	if strings.Contains(s, "too many requests") { // HTTP 429
		if m := reRetryAfter.FindStringSubmatch(s); len(m) == 2 {
			if n, _ := strconv.Atoi(m[1]); n > 0 {
				return time.Duration(n) * time.Second
			}
		}
		return 3 * time.Second
	}
	var ne net.Error
	if stderrors.As(err, &ne) && ne.Timeout() {
		return 2 * time.Second
	}
	return 1 * time.Second
}
