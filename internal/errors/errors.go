package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

/**
 * Error types for the page translation pipeline
 *
 * Every failure that aborts a run is a *PipelineError carrying a reason code
 * and the stage it happened in. Front doors turn it into exactly one
 * user-facing message with UserMessage.
 */

// ErrorCode enum for structured error handling
type ErrorCode string

const (
	// Input errors
	ErrorInvalidInput      ErrorCode = "INVALID_INPUT"
	ErrorImageDecodeFailed ErrorCode = "IMAGE_DECODE_FAILED"

	// Model errors
	ErrorModelLoadFailed ErrorCode = "MODEL_LOAD_FAILED"

	// Stage errors
	ErrorDetectionFailed   ErrorCode = "DETECTION_FAILED"
	ErrorOCRFailed         ErrorCode = "OCR_FAILED"
	ErrorTranslationFailed ErrorCode = "TRANSLATION_FAILED"
	ErrorInpaintingFailed  ErrorCode = "INPAINTING_FAILED"

	// Output and runtime errors
	ErrorOutputFailed      ErrorCode = "OUTPUT_FAILED"
	ErrorProcessingTimeout ErrorCode = "PROCESSING_TIMEOUT"
	ErrorCancelled         ErrorCode = "CANCELLED"
)

// Stage names used in PipelineError.Stage
const (
	StageInput     = "input"
	StageModels    = "models"
	StageDetect    = "detect"
	StageRecognize = "recognize"
	StageTranslate = "translate"
	StageInpaint   = "inpaint"
	StageOutput    = "output"
)

// PipelineError represents a structured pipeline failure
type PipelineError struct {
	Code      ErrorCode
	Stage     string
	Message   string
	JobID     string
	Timestamp time.Time
	Details   map[string]interface{}
	Cause     error
}

func (e *PipelineError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *PipelineError) Unwrap() error {
	return e.Cause
}

// Factory functions for common errors

func NewInvalidInputError(jobID string, reason string) *PipelineError {
	return &PipelineError{
		Code:      ErrorInvalidInput,
		Stage:     StageInput,
		Message:   reason,
		JobID:     jobID,
		Timestamp: time.Now(),
	}
}

func NewImageDecodeError(jobID string, cause error) *PipelineError {
	return &PipelineError{
		Code:      ErrorImageDecodeFailed,
		Stage:     StageInput,
		Message:   "Failed to decode page image",
		JobID:     jobID,
		Timestamp: time.Now(),
		Cause:     cause,
	}
}

func NewModelLoadError(jobID string, model string, cause error) *PipelineError {
	return &PipelineError{
		Code:      ErrorModelLoadFailed,
		Stage:     StageModels,
		Message:   fmt.Sprintf("Failed to load model: %s", model),
		JobID:     jobID,
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"model": model,
		},
		Cause: cause,
	}
}

func NewDetectionError(jobID string, cause error) *PipelineError {
	return &PipelineError{
		Code:      ErrorDetectionFailed,
		Stage:     StageDetect,
		Message:   "Text region detection failed",
		JobID:     jobID,
		Timestamp: time.Now(),
		Cause:     cause,
	}
}

func NewOCRFailedError(jobID string, regionIndex int, cause error) *PipelineError {
	return &PipelineError{
		Code:      ErrorOCRFailed,
		Stage:     StageRecognize,
		Message:   fmt.Sprintf("OCR failed for region %d", regionIndex+1),
		JobID:     jobID,
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"region_index": regionIndex,
		},
		Cause: cause,
	}
}

func NewTranslationError(jobID string, lines int, cause error) *PipelineError {
	return &PipelineError{
		Code:      ErrorTranslationFailed,
		Stage:     StageTranslate,
		Message:   fmt.Sprintf("Translation of %d lines failed", lines),
		JobID:     jobID,
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"lines": lines,
		},
		Cause: cause,
	}
}

func NewInpaintingError(jobID string, regions int, cause error) *PipelineError {
	return &PipelineError{
		Code:      ErrorInpaintingFailed,
		Stage:     StageInpaint,
		Message:   fmt.Sprintf("Inpainting of %d regions failed", regions),
		JobID:     jobID,
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"regions": regions,
		},
		Cause: cause,
	}
}

func NewOutputError(jobID string, cause error) *PipelineError {
	return &PipelineError{
		Code:      ErrorOutputFailed,
		Stage:     StageOutput,
		Message:   "Failed to write results",
		JobID:     jobID,
		Timestamp: time.Now(),
		Cause:     cause,
	}
}

func NewProcessingTimeoutError(jobID string, duration time.Duration, cause error) *PipelineError {
	return &PipelineError{
		Code:      ErrorProcessingTimeout,
		Message:   fmt.Sprintf("Processing timed out after %v", duration),
		JobID:     jobID,
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"timeout_duration": duration.String(),
		},
		Cause: cause,
	}
}

func NewCancelledError(jobID string, cause error) *PipelineError {
	return &PipelineError{
		Code:      ErrorCancelled,
		Message:   "Processing was cancelled",
		JobID:     jobID,
		Timestamp: time.Now(),
		Cause:     cause,
	}
}

// ToMap converts error to map for job status records
func (e *PipelineError) ToMap() map[string]interface{} {
	result := map[string]interface{}{
		"error_code": string(e.Code),
		"message":    e.Message,
		"timestamp":  e.Timestamp,
	}
	if e.Stage != "" {
		result["stage"] = e.Stage
	}

	for k, v := range e.Details {
		result[k] = v
	}

	if e.Cause != nil {
		result["cause"] = e.Cause.Error()
	}

	return result
}

// CodeOf returns the reason code of err, or "" when err is not a PipelineError.
func CodeOf(err error) ErrorCode {
	var pe *PipelineError
	if stderrors.As(err, &pe) {
		return pe.Code
	}
	return ""
}

// UserMessage renders err as the single human-readable line shown by the
// web form, the chat bot and the CLI.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var pe *PipelineError
	if !stderrors.As(err, &pe) {
		return fmt.Sprintf("❌ Processing error: %v", err)
	}
	if pe.Cause != nil {
		return fmt.Sprintf("❌ %s: %v", pe.Message, pe.Cause)
	}
	return fmt.Sprintf("❌ %s", pe.Message)
}
