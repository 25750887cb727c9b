/**
 * Translator - one LLM call per page
 *
 * All recognized lines of a page are sent in a single prompt as a JSON array
 * and the model is asked for a JSON array of the same length. Responses are
 * parsed best-effort (JSON array, numbered list, plain lines) and the result
 * is forced to the input length. Any mismatch is reported in Alignment.
 */

package translator

import (
	"context"
	"fmt"

	"github.com/adverant/nexus/manga-translator/internal/language"
	"github.com/adverant/nexus/manga-translator/internal/logging"
)

// Translator turns recognized lines into target-language lines, one per input.
type Translator interface {
	Translate(ctx context.Context, lines []string, source language.Language) (*Translation, error)
	Close() error
}

// Backend is a generative model reached with one system and one user message.
type Backend interface {
	Name() string
	Complete(ctx context.Context, system, user string) (string, error)
	Close() error
}

// Translation is the aligned result of one call.
type Translation struct {
	Lines     []string  `json:"lines"`
	Alignment Alignment `json:"alignment"`
}

// Alignment reports how the model's answer was matched to the input.
type Alignment struct {
	Expected  int    `json:"expected"`
	Received  int    `json:"received"`
	Padded    int    `json:"padded"`
	Truncated int    `json:"truncated"`
	Protocol  string `json:"protocol"`
}

// Aligned reports whether the model returned exactly one line per input.
func (a Alignment) Aligned() bool {
	return a.Padded == 0 && a.Truncated == 0
}

// Config holds translator configuration
type Config struct {
	// TargetLang is the code or BCP 47 tag of the output language
	TargetLang string
}

// LLMTranslator implements Translator on top of a Backend
type LLMTranslator struct {
	backend Backend
	target  string
	logger  *logging.Logger
}

// New creates a translator for the given backend
func New(backend Backend, cfg Config) *LLMTranslator {
	target := cfg.TargetLang
	if target == "" {
		target = "vi"
	}
	return &LLMTranslator{
		backend: backend,
		target:  target,
		logger:  logging.NewLogger("Translator"),
	}
}

// TargetLang returns the configured target language code
func (t *LLMTranslator) TargetLang() string {
	return t.target
}

// Translate sends every line in one request. Empty input returns empty
// output without calling the model.
func (t *LLMTranslator) Translate(ctx context.Context, lines []string, source language.Language) (*Translation, error) {
	if len(lines) == 0 {
		return &Translation{Lines: []string{}, Alignment: Alignment{Protocol: ProtocolNone}}, nil
	}

	system := SystemPrompt(source.Name(), language.TargetName(t.target), len(lines))
	user, err := UserPrompt(lines)
	if err != nil {
		return nil, err
	}

	t.logger.Info("Requesting translation",
		"backend", t.backend.Name(),
		"lines", len(lines),
		"source", source.Code,
		"target", t.target)

	raw, err := t.backend.Complete(ctx, system, user)
	if err != nil {
		return nil, fmt.Errorf("%s translation request failed: %w", t.backend.Name(), err)
	}

	parsed, protocol := ParseResponse(raw, len(lines))
	out, alignment := Align(parsed, len(lines))
	alignment.Protocol = protocol

	if !alignment.Aligned() {
		t.logger.Warn("Translation line count mismatch",
			"expected", alignment.Expected,
			"received", alignment.Received,
			"padded", alignment.Padded,
			"truncated", alignment.Truncated,
			"protocol", protocol)
	}

	return &Translation{Lines: out, Alignment: alignment}, nil
}

// Close releases the backend
func (t *LLMTranslator) Close() error {
	return t.backend.Close()
}
