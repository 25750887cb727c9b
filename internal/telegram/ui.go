package telegram

import (
	"strings"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/adverant/nexus/manga-translator/internal/language"
)

// Telegram rejects messages over 4096 characters
const maxMessageLen = 4000

const helpText = "Send me a manga page (photo or image file) and I will translate it.\nCommands: /lang to choose the source language."

const langCallbackPrefix = "lang:"

// languageKeyboard offers every supported source language, marking the current one
func languageKeyboard(current string) tgbotapi.InlineKeyboardMarkup {
	var row []tgbotapi.InlineKeyboardButton
	for _, l := range language.Supported() {
		label := l.Name()
		if l.Code == current {
			label = "✅ " + label
		}
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(label, langCallbackPrefix+l.Code))
	}
	return tgbotapi.NewInlineKeyboardMarkup(row)
}

func parseLangCallback(data string) (string, bool) {
	if !strings.HasPrefix(data, langCallbackPrefix) {
		return "", false
	}
	return strings.TrimPrefix(data, langCallbackPrefix), true
}

func languageCodes() string {
	codes := make([]string, 0, len(language.Supported()))
	for _, l := range language.Supported() {
		codes = append(codes, l.Code)
	}
	return strings.Join(codes, ", ")
}

// splitMessage cuts text into chunks of at most limit characters,
// preferring blank-line boundaries so boxes stay whole.
func splitMessage(text string, limit int) []string {
	if text == "" {
		return nil
	}
	var chunks []string
	for utf8.RuneCountInString(text) > limit {
		cut := runeOffset(text, limit)
		if i := strings.LastIndex(text[:cut], "\n\n"); i > 0 {
			cut = i + 2
		} else if i := strings.LastIndex(text[:cut], "\n"); i > 0 {
			cut = i + 1
		}
		chunks = append(chunks, text[:cut])
		text = text[cut:]
	}
	if strings.TrimSpace(text) != "" {
		chunks = append(chunks, text)
	}
	return chunks
}

// runeOffset is the byte offset of the n-th rune
func runeOffset(s string, n int) int {
	i := 0
	for off := range s {
		if i == n {
			return off
		}
		i++
	}
	return len(s)
}
