/**
 * Model registry
 *
 * Holds one loaded instance of each pipeline stage. Stages are built lazily
 * on first use through injectable factories; the recognizer is rebuilt only
 * when the requested OCR language differs from the one it was built for.
 * Acquisition is serialized, so the language check cannot race.
 */

package models

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/adverant/nexus/manga-translator/internal/detector"
	"github.com/adverant/nexus/manga-translator/internal/inpainter"
	"github.com/adverant/nexus/manga-translator/internal/language"
	"github.com/adverant/nexus/manga-translator/internal/logging"
	"github.com/adverant/nexus/manga-translator/internal/ocr"
	"github.com/adverant/nexus/manga-translator/internal/translator"
)

// Stage names
const (
	StageDetector   = "detector"
	StageRecognizer = "recognizer"
	StageTranslator = "translator"
	StageInpainter  = "inpainter"
)

// Factories build each stage. Tests inject fakes here.
type Factories struct {
	Detector   func(ctx context.Context) (detector.Detector, error)
	Recognizer func(ctx context.Context, lang language.Language) (ocr.Recognizer, error)
	Translator func(ctx context.Context) (translator.Translator, error)
	Inpainter  func(ctx context.Context) (inpainter.Inpainter, error)
}

// Set is the model set used for one page run.
type Set struct {
	Detector   detector.Detector
	Recognizer ocr.Recognizer
	Translator translator.Translator
	Inpainter  inpainter.Inpainter
	// Language is the OCR language the recognizer was built for
	Language language.Language
}

// LoadReport lists which stages were built and which were reused.
type LoadReport struct {
	Loaded []string `json:"loaded"`
	Reused []string `json:"reused"`
}

func (r LoadReport) String() string {
	if len(r.Loaded) == 0 {
		return "all models reused"
	}
	return "loaded: " + strings.Join(r.Loaded, ", ")
}

// LoadError names the stage whose model failed to load.
type LoadError struct {
	Stage string
	Err   error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("failed to load %s: %v", e.Stage, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Registry owns the loaded stages.
type Registry struct {
	factories Factories
	mu        sync.Mutex
	set       Set
	hasLang   bool
	closed    bool
	logger    *logging.Logger
}

// NewRegistry creates an empty registry; nothing is loaded until Acquire.
func NewRegistry(factories Factories) *Registry {
	return &Registry{
		factories: factories,
		logger:    logging.NewLogger("ModelRegistry"),
	}
}

// Acquire returns a model set whose recognizer matches langCode, building
// whatever is missing.
func (r *Registry) Acquire(ctx context.Context, langCode string) (Set, LoadReport, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var report LoadReport
	if r.closed {
		return Set{}, report, fmt.Errorf("model registry is closed")
	}

	lang := language.Resolve(langCode)

	if r.set.Detector == nil {
		r.logger.Info("Loading detector")
		d, err := r.factories.Detector(ctx)
		if err != nil {
			return Set{}, report, &LoadError{Stage: StageDetector, Err: err}
		}
		r.set.Detector = d
		report.Loaded = append(report.Loaded, StageDetector)
	} else {
		report.Reused = append(report.Reused, StageDetector)
	}

	if r.set.Recognizer == nil || !r.hasLang || r.set.Language.Code != lang.Code {
		if r.set.Recognizer != nil {
			r.logger.Info("OCR language changed, rebuilding recognizer",
				"from", r.set.Language.Code,
				"to", lang.Code)
			if err := r.set.Recognizer.Close(); err != nil {
				r.logger.Warn("Failed to close previous recognizer", "error", err)
			}
			r.set.Recognizer = nil
			r.hasLang = false
		}
		r.logger.Info("Loading recognizer", "language", lang.Code)
		rec, err := r.factories.Recognizer(ctx, lang)
		if err != nil {
			return Set{}, report, &LoadError{Stage: StageRecognizer, Err: err}
		}
		r.set.Recognizer = rec
		r.set.Language = lang
		r.hasLang = true
		report.Loaded = append(report.Loaded, StageRecognizer)
	} else {
		report.Reused = append(report.Reused, StageRecognizer)
	}

	if r.set.Translator == nil {
		r.logger.Info("Loading translator")
		t, err := r.factories.Translator(ctx)
		if err != nil {
			return Set{}, report, &LoadError{Stage: StageTranslator, Err: err}
		}
		r.set.Translator = t
		report.Loaded = append(report.Loaded, StageTranslator)
	} else {
		report.Reused = append(report.Reused, StageTranslator)
	}

	if r.set.Inpainter == nil {
		r.logger.Info("Loading inpainter")
		in, err := r.factories.Inpainter(ctx)
		if err != nil {
			return Set{}, report, &LoadError{Stage: StageInpainter, Err: err}
		}
		r.set.Inpainter = in
		report.Loaded = append(report.Loaded, StageInpainter)
	} else {
		report.Reused = append(report.Reused, StageInpainter)
	}

	if len(report.Loaded) > 0 {
		r.logger.Info("Models ready", "loaded", report.Loaded, "reused", report.Reused)
	}
	return r.set, report, nil
}

// Close tears every loaded stage down. Acquire fails afterwards.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true

	var errs []string
	closeStage := func(name string, c interface{ Close() error }) {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", name, err))
		}
	}
	if r.set.Detector != nil {
		closeStage(StageDetector, r.set.Detector)
	}
	if r.set.Recognizer != nil {
		closeStage(StageRecognizer, r.set.Recognizer)
	}
	if r.set.Translator != nil {
		closeStage(StageTranslator, r.set.Translator)
	}
	if r.set.Inpainter != nil {
		closeStage(StageInpainter, r.set.Inpainter)
	}
	r.set = Set{}

	if len(errs) > 0 {
		return fmt.Errorf("failed to close models: %s", strings.Join(errs, "; "))
	}
	return nil
}
