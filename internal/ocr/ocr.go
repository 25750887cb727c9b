/**
 * OCR - text recognition for one detected region at a time
 *
 * Two engines are available and one is chosen at start-up:
 * - tesseract: multi-language, uses the language selector
 * - manga-ocr: Japanese manga model behind an HTTP model server, ignores it
 */

package ocr

import (
	"context"
	"image"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/adverant/nexus/manga-translator/internal/region"
)

// Placeholder stands in for regions where nothing was recognized.
const Placeholder = "..."

// Recognizer reads the text inside one region of a page.
type Recognizer interface {
	// Recognize crops r out of img (no padding) and returns its text.
	Recognize(ctx context.Context, img image.Image, r region.Region) (string, error)
	// Language is the language code the engine reads.
	Language() string
	Close() error
}

// Clean normalizes recognized text and substitutes the placeholder when
// nothing is left.
func Clean(text string) string {
	text = strings.TrimSpace(norm.NFKC.String(text))
	if text == "" {
		return Placeholder
	}
	return text
}

// joinLines merges the lines of a speech bubble. Scripts written without
// spaces (Japanese, Chinese) are joined directly; others with one space.
func joinLines(text string, spaced bool) string {
	if !spaced {
		return strings.Map(func(r rune) rune {
			if unicode.IsSpace(r) {
				return -1
			}
			return r
		}, text)
	}
	return strings.Join(strings.Fields(text), " ")
}
