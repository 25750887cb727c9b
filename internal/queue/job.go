/**
 * Page job handling shared by the Redis list consumer and the asynq consumer
 *
 * A job carries one page (inline buffer or URL) and its source language.
 * Running a job means: process the page under a per-job timeout, write the
 * result files, and build the summary recorded for the job.
 */

package queue

import (
	"context"
	"encoding/base64"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/adverant/nexus/manga-translator/internal/errors"
	"github.com/adverant/nexus/manga-translator/internal/logging"
	"github.com/adverant/nexus/manga-translator/internal/processor"
	"github.com/adverant/nexus/manga-translator/internal/storage"
	"github.com/adverant/nexus/manga-translator/internal/translator"
)

// DefaultProcessingTimeout applies when no timeout is configured
const DefaultProcessingTimeout = 300000 * time.Millisecond

// JobPayload contains the page job data
type JobPayload struct {
	JobID      string                 `json:"jobId"`
	UserID     string                 `json:"userId,omitempty"`
	Filename   string                 `json:"filename"`
	SourceLang string                 `json:"sourceLang,omitempty"`
	MimeType   string                 `json:"mimeType,omitempty"`
	FileSize   int64                  `json:"fileSize,omitempty"`
	FileURL    string                 `json:"fileUrl,omitempty"`
	FileBuffer []byte                 `json:"fileBuffer,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

// UnmarshalJSON implements custom JSON unmarshaling for JobPayload to handle Buffer serialization
// Supports both base64 string format and Node.js Buffer object format ({"type":"Buffer","data":[...]})
func (p *JobPayload) UnmarshalJSON(data []byte) error {
	// Create alias type to avoid recursion
	type Alias JobPayload
	aux := &struct {
		FileBuffer interface{} `json:"fileBuffer,omitempty"`
		*Alias
	}{
		Alias: (*Alias)(p),
	}

	if err := json.Unmarshal(data, &aux); err != nil {
		return fmt.Errorf("failed to unmarshal JobPayload: %w", err)
	}

	p.FileBuffer = nil
	if aux.FileBuffer == nil {
		return nil
	}

	switch v := aux.FileBuffer.(type) {
	case string:
		decoded, err := base64.StdEncoding.DecodeString(v)
		if err != nil {
			return fmt.Errorf("failed to decode base64 fileBuffer: %w", err)
		}
		p.FileBuffer = decoded

	case map[string]interface{}:
		bufferType, ok := v["type"].(string)
		if !ok || bufferType != "Buffer" {
			return fmt.Errorf("invalid Buffer object format (missing or incorrect 'type' field)")
		}
		dataArray, ok := v["data"].([]interface{})
		if !ok {
			return fmt.Errorf("Buffer object missing 'data' array")
		}
		p.FileBuffer = make([]byte, len(dataArray))
		for i, val := range dataArray {
			byteVal, ok := val.(float64)
			if !ok || byteVal < 0 || byteVal > 255 {
				return fmt.Errorf("invalid byte value in Buffer data array at index %d", i)
			}
			p.FileBuffer[i] = byte(byteVal)
		}

	default:
		return fmt.Errorf("fileBuffer must be either base64 string or Buffer object, got %T", v)
	}

	return nil
}

// Validate checks that the payload can be processed
func (p *JobPayload) Validate() error {
	if p.JobID == "" {
		return fmt.Errorf("jobId is required")
	}
	if err := storage.ValidateJobID(p.JobID); err != nil {
		return err
	}
	if len(p.FileBuffer) == 0 && p.FileURL == "" {
		return fmt.Errorf("job %s has neither fileBuffer nor fileUrl", p.JobID)
	}
	return nil
}

func (p *JobPayload) request() *processor.ProcessRequest {
	return &processor.ProcessRequest{
		JobID:      p.JobID,
		Filename:   p.Filename,
		SourceLang: p.SourceLang,
		ImageData:  p.FileBuffer,
		ImageURL:   p.FileURL,
	}
}

// ResultStore persists the outputs of a page run
type ResultStore interface {
	StoreResult(ctx context.Context, result *processor.ProcessResult) (*storage.StoredResult, error)
}

// JobSummary is recorded for a completed job
type JobSummary struct {
	JobID            string               `json:"jobId"`
	Status           processor.Status     `json:"status"`
	Filename         string               `json:"filename,omitempty"`
	SourceLang       string               `json:"sourceLang"`
	TargetLang       string               `json:"targetLang"`
	Regions          int                  `json:"regions"`
	Alignment        translator.Alignment `json:"alignment"`
	OutputDir        string               `json:"outputDir,omitempty"`
	ProcessingTimeMs int64                `json:"processingTime"`
	Report           string               `json:"report"`
}

// jobRunner runs one page job end to end
type jobRunner struct {
	processor processor.PageProcessorInterface
	store     ResultStore
	timeout   time.Duration
	logger    *logging.Logger
}

func newJobRunner(proc processor.PageProcessorInterface, store ResultStore, timeoutMs int64, logger *logging.Logger) *jobRunner {
	timeout := DefaultProcessingTimeout
	if timeoutMs > 0 {
		timeout = time.Duration(timeoutMs) * time.Millisecond
	}
	return &jobRunner{processor: proc, store: store, timeout: timeout, logger: logger}
}

// run processes the page and stores the result. Errors are *errors.PipelineError.
func (r *jobRunner) run(ctx context.Context, payload *JobPayload) (*JobSummary, error) {
	startTime := time.Now()

	if err := payload.Validate(); err != nil {
		return nil, errors.NewInvalidInputError(payload.JobID, err.Error())
	}

	r.logger.Printf("[Job %s] Processing timeout set to: %v", payload.JobID, r.timeout)

	processCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	result, err := r.processor.ProcessPage(processCtx, payload.request())
	duration := time.Since(startTime)
	if err != nil {
		if processCtx.Err() == context.DeadlineExceeded && errors.CodeOf(err) != errors.ErrorProcessingTimeout {
			r.logger.Printf("[Job %s] Processing timed out after %v (timeout: %v)", payload.JobID, duration, r.timeout)
			return nil, errors.NewProcessingTimeoutError(payload.JobID, r.timeout, err)
		}
		var pe *errors.PipelineError
		if !stderrors.As(err, &pe) {
			return nil, errors.NewOutputError(payload.JobID, err)
		}
		return nil, err
	}

	summary := &JobSummary{
		JobID:            result.JobID,
		Status:           result.Status,
		Filename:         result.Filename,
		SourceLang:       result.SourceLang,
		TargetLang:       result.TargetLang,
		Regions:          len(result.Regions),
		Alignment:        result.Alignment,
		ProcessingTimeMs: duration.Milliseconds(),
		Report:           result.Report(),
	}

	if r.store != nil {
		stored, err := r.store.StoreResult(ctx, result)
		if err != nil {
			var pe *errors.PipelineError
			if !stderrors.As(err, &pe) {
				err = errors.NewOutputError(payload.JobID, err)
			}
			return nil, err
		}
		summary.OutputDir = stored.Dir
	}

	r.logger.Printf("[Job %s] Processing completed in %v: status=%s, regions=%d",
		payload.JobID, duration, summary.Status, summary.Regions)
	return summary, nil
}

// failureDetails is the record kept for a failed job
func failureDetails(err error, duration time.Duration) map[string]interface{} {
	details := map[string]interface{}{}
	var pe *errors.PipelineError
	if stderrors.As(err, &pe) {
		details = pe.ToMap()
	}
	details["error"] = errors.UserMessage(err)
	details["processingTime"] = duration.Milliseconds()
	return details
}
