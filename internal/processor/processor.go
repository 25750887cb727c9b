/**
 * Page Processor for the manga translator
 *
 * Runs one page through the four stages in a single linear pass:
 * - Detect text regions
 * - Recognize the text of every region (in detector order)
 * - Translate all recognized lines in one call
 * - Inpaint all regions in one call
 *
 * The only branch is the zero-region short-circuit. Any stage failure aborts
 * the run with one *errors.PipelineError and no images.
 */

package processor

import (
	"context"
	stderrors "errors"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/adverant/nexus/manga-translator/internal/errors"
	"github.com/adverant/nexus/manga-translator/internal/imageutil"
	"github.com/adverant/nexus/manga-translator/internal/language"
	"github.com/adverant/nexus/manga-translator/internal/logging"
	"github.com/adverant/nexus/manga-translator/internal/models"
	"github.com/adverant/nexus/manga-translator/internal/ocr"
	"github.com/adverant/nexus/manga-translator/internal/region"
	"github.com/adverant/nexus/manga-translator/internal/translator"
)

// PageProcessorInterface defines the interface for page processing
type PageProcessorInterface interface {
	ProcessPage(ctx context.Context, req *ProcessRequest) (*ProcessResult, error)
}

// ProcessorConfig holds processor configuration
type ProcessorConfig struct {
	Registry       *models.Registry
	TargetLang     string
	MaxImageSize   int64
	// MaxImagePixels bounds width*height before the page is decoded
	MaxImagePixels int64
}

// ProcessRequest represents one page to translate
type ProcessRequest struct {
	JobID      string
	Filename   string
	SourceLang string
	// ImageData takes precedence over ImageURL
	ImageData []byte
	ImageURL  string
}

// Status of a successful run
type Status string

const (
	StatusOK        Status = "ok"
	StatusNoRegions Status = "no_regions"
)

// NoRegionsMessage is shown when the detector finds nothing.
const NoRegionsMessage = "No text regions found on this page."

// Line pairs one region with its original and translated text
type Line struct {
	Index      int           `json:"index"`
	Region     region.Region `json:"region"`
	Original   string        `json:"original"`
	Translated string        `json:"translated"`
}

// Timings records per-stage durations in milliseconds
type Timings struct {
	LoadMs      int64 `json:"load_ms"`
	DetectMs    int64 `json:"detect_ms"`
	RecognizeMs int64 `json:"recognize_ms"`
	TranslateMs int64 `json:"translate_ms"`
	InpaintMs   int64 `json:"inpaint_ms"`
	TotalMs     int64 `json:"total_ms"`
}

// ProcessResult represents the result of one page run
type ProcessResult struct {
	JobID      string               `json:"job_id"`
	Status     Status               `json:"status"`
	Filename   string               `json:"filename,omitempty"`
	SourceLang string               `json:"source_lang"`
	TargetLang string               `json:"target_lang"`
	Regions    []region.Region      `json:"regions"`
	Lines      []Line               `json:"lines"`
	Alignment  translator.Alignment `json:"alignment"`
	LoadReport models.LoadReport    `json:"load_report"`
	Timings    Timings              `json:"timings"`
	Message    string               `json:"message,omitempty"`
	Preview    image.Image          `json:"-"`
	Cleaned    image.Image          `json:"-"`
}

// Report renders the paired text of the result
func (r *ProcessResult) Report() string {
	if r.Status == StatusNoRegions {
		return r.Message
	}
	return FormatReport(r.Lines, language.TargetLabel(r.TargetLang))
}

// PageProcessor handles page processing
type PageProcessor struct {
	config   *ProcessorConfig
	registry *models.Registry
	runMu    sync.Mutex
	logger   *logging.Logger
}

// NewPageProcessor creates a new page processor
func NewPageProcessor(cfg *ProcessorConfig) (*PageProcessor, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if cfg.Registry == nil {
		return nil, fmt.Errorf("model registry is required")
	}
	if cfg.TargetLang == "" {
		cfg.TargetLang = "vi"
	}

	return &PageProcessor{
		config:   cfg,
		registry: cfg.Registry,
		logger:   logging.NewLogger("Processor"),
	}, nil
}

// TargetLang returns the configured target language code
func (p *PageProcessor) TargetLang() string {
	return p.config.TargetLang
}

// ProcessPage translates one page. Runs are serialized: one page at a time.
func (p *PageProcessor) ProcessPage(ctx context.Context, req *ProcessRequest) (*ProcessResult, error) {
	p.runMu.Lock()
	defer p.runMu.Unlock()

	start := time.Now()
	jobID := req.JobID
	lang := language.Resolve(req.SourceLang)
	if _, known := language.Lookup(req.SourceLang); !known && req.SourceLang != "" {
		p.logger.Warn("Unknown source language, falling back", "job", jobID, "requested", req.SourceLang, "using", lang.Code)
	}

	p.logger.Printf("[Job %s] Starting page translation pipeline (source=%s, target=%s)", jobID, lang.Code, p.config.TargetLang)

	result := &ProcessResult{
		JobID:      jobID,
		Filename:   req.Filename,
		SourceLang: lang.Code,
		TargetLang: p.config.TargetLang,
	}

	// Step 1: Load and decode the page
	p.logger.Printf("[Job %s] Step 1: Loading page image", jobID)
	page, err := p.loadImage(ctx, req)
	if err != nil {
		return nil, err
	}

	// Step 2: Acquire models (reused unless missing or the OCR language changed)
	p.logger.Printf("[Job %s] Step 2: Acquiring models", jobID)
	t := time.Now()
	set, report, err := p.registry.Acquire(ctx, lang.Code)
	if err != nil {
		var loadErr *models.LoadError
		stage := "models"
		if stderrors.As(err, &loadErr) {
			stage = loadErr.Stage
		}
		return nil, errors.NewModelLoadError(jobID, stage, err)
	}
	result.LoadReport = report
	result.Timings.LoadMs = time.Since(t).Milliseconds()
	p.logger.Printf("[Job %s] Models ready: %s", jobID, report)

	// Step 3: Detect text regions
	if err := p.checkContext(ctx, jobID, start); err != nil {
		return nil, err
	}
	p.logger.Printf("[Job %s] Step 3: Detecting text regions", jobID)
	t = time.Now()
	regions, err := set.Detector.Detect(ctx, page)
	if err != nil {
		return nil, errors.NewDetectionError(jobID, err)
	}
	result.Timings.DetectMs = time.Since(t).Milliseconds()
	result.Regions = regions
	p.logger.Printf("[Job %s] Detected %d text regions", jobID, len(regions))

	preview := imageutil.DrawPreview(page, regions)

	if len(regions) == 0 {
		p.logger.Printf("[Job %s] No text regions found, returning original page", jobID)
		result.Status = StatusNoRegions
		result.Message = NoRegionsMessage
		result.Lines = []Line{}
		result.Preview = preview
		result.Cleaned = imageutil.Copy(page)
		result.Timings.TotalMs = time.Since(start).Milliseconds()
		return result, nil
	}

	// Step 4: Recognize every region in detector order
	p.logger.Printf("[Job %s] Step 4: Recognizing %d regions (%s OCR)", jobID, len(regions), set.Recognizer.Language())
	t = time.Now()
	originals := make([]string, len(regions))
	for i, r := range regions {
		if err := p.checkContext(ctx, jobID, start); err != nil {
			return nil, err
		}
		text, err := set.Recognizer.Recognize(ctx, page, r)
		if err != nil {
			return nil, errors.NewOCRFailedError(jobID, i, err)
		}
		originals[i] = ocr.Clean(text)
	}
	result.Timings.RecognizeMs = time.Since(t).Milliseconds()

	// Step 5: Translate all lines in one call
	if err := p.checkContext(ctx, jobID, start); err != nil {
		return nil, err
	}
	p.logger.Printf("[Job %s] Step 5: Translating %d lines", jobID, len(originals))
	t = time.Now()
	translation, err := set.Translator.Translate(ctx, originals, lang)
	if err != nil {
		return nil, errors.NewTranslationError(jobID, len(originals), err)
	}
	// The translator aligns its output; this guards any implementation that does not.
	translated, alignment := translator.Align(translation.Lines, len(originals))
	if translation.Alignment.Expected == len(originals) {
		alignment = translation.Alignment
	}
	result.Alignment = alignment
	result.Timings.TranslateMs = time.Since(t).Milliseconds()
	if !alignment.Aligned() {
		p.logger.Warn("Translator output was realigned",
			"job", jobID,
			"expected", alignment.Expected,
			"received", alignment.Received)
	}

	// Step 6: Inpaint all regions in one call, with the regions recognized above
	if err := p.checkContext(ctx, jobID, start); err != nil {
		return nil, err
	}
	p.logger.Printf("[Job %s] Step 6: Inpainting %d regions", jobID, len(regions))
	t = time.Now()
	cleaned, err := set.Inpainter.Inpaint(ctx, page, regions)
	if err != nil {
		return nil, errors.NewInpaintingError(jobID, len(regions), err)
	}
	result.Timings.InpaintMs = time.Since(t).Milliseconds()

	// Step 7: Pair lines
	lines := make([]Line, len(regions))
	for i, r := range regions {
		lines[i] = Line{
			Index:      i + 1,
			Region:     r,
			Original:   originals[i],
			Translated: translated[i],
		}
	}

	result.Status = StatusOK
	result.Lines = lines
	result.Preview = preview
	result.Cleaned = cleaned
	result.Timings.TotalMs = time.Since(start).Milliseconds()

	p.logger.Printf("[Job %s] Page translation complete: %d lines in %dms", jobID, len(lines), result.Timings.TotalMs)
	return result, nil
}

// loadImage loads the page from the buffer or URL and decodes it
func (p *PageProcessor) loadImage(ctx context.Context, req *ProcessRequest) (image.Image, error) {
	data := req.ImageData
	if len(data) == 0 {
		if req.ImageURL == "" {
			return nil, errors.NewInvalidInputError(req.JobID, "Please upload an image")
		}
		p.logger.Printf("[Job %s] Downloading page from URL: %s", req.JobID, req.ImageURL)
		downloaded, err := imageutil.Download(ctx, req.ImageURL, p.config.MaxImageSize)
		if err != nil {
			return nil, errors.NewImageDecodeError(req.JobID, err)
		}
		data = downloaded
	}

	if p.config.MaxImageSize > 0 && int64(len(data)) > p.config.MaxImageSize {
		return nil, errors.NewInvalidInputError(req.JobID,
			fmt.Sprintf("Image is too large: %d > %d bytes", len(data), p.config.MaxImageSize))
	}

	if err := imageutil.CheckPixels(data, p.config.MaxImagePixels); err != nil {
		if stderrors.Is(err, imageutil.ErrTooManyPixels) {
			return nil, errors.NewInvalidInputError(req.JobID, fmt.Sprintf("Image is too large: %v", err))
		}
		return nil, errors.NewImageDecodeError(req.JobID, err)
	}

	page, err := imageutil.Decode(data)
	if err != nil {
		return nil, errors.NewImageDecodeError(req.JobID, err)
	}
	p.logger.Printf("[Job %s] Page decoded: %dx%d (%d bytes)", req.JobID, page.Bounds().Dx(), page.Bounds().Dy(), len(data))
	return page, nil
}

// checkContext aborts between stages once the run is cancelled or times out
func (p *PageProcessor) checkContext(ctx context.Context, jobID string, start time.Time) error {
	err := ctx.Err()
	if err == nil {
		return nil
	}
	if stderrors.Is(err, context.DeadlineExceeded) {
		return errors.NewProcessingTimeoutError(jobID, time.Since(start), err)
	}
	return errors.NewCancelledError(jobID, err)
}
