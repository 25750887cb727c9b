package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPipelineErrorUnwrap(t *testing.T) {
	cause := stderrors.New("session run failed")
	err := NewDetectionError("job-1", cause)

	wrapped := fmt.Errorf("page 3: %w", err)

	assert.True(t, stderrors.Is(wrapped, cause))
	assert.Equal(t, ErrorDetectionFailed, CodeOf(wrapped))
	assert.Equal(t, StageDetect, err.Stage)
	assert.Contains(t, err.Error(), "DETECTION_FAILED")
	assert.Contains(t, err.Error(), "session run failed")
}

func TestCodeOfPlainError(t *testing.T) {
	assert.Equal(t, ErrorCode(""), CodeOf(stderrors.New("boom")))
	assert.Equal(t, ErrorCode(""), CodeOf(nil))
}

func TestToMap(t *testing.T) {
	err := NewOCRFailedError("job-2", 4, stderrors.New("tesseract: no image"))
	m := err.ToMap()

	assert.Equal(t, "OCR_FAILED", m["error_code"])
	assert.Equal(t, StageRecognize, m["stage"])
	assert.Equal(t, 4, m["region_index"])
	assert.Equal(t, "tesseract: no image", m["cause"])
	assert.Equal(t, "OCR failed for region 5", m["message"])
}

func TestTimeoutErrorDetails(t *testing.T) {
	err := NewProcessingTimeoutError("job-3", 2*time.Minute, nil)
	require.NotNil(t, err.Details)
	assert.Equal(t, "2m0s", err.Details["timeout_duration"])
	assert.NotContains(t, err.Error(), "caused by")
}

func TestUserMessage(t *testing.T) {
	assert.Equal(t, "", UserMessage(nil))

	msg := UserMessage(NewTranslationError("j", 3, stderrors.New("quota exceeded")))
	assert.Equal(t, "❌ Translation of 3 lines failed: quota exceeded", msg)

	msg = UserMessage(NewInvalidInputError("j", "Please upload an image"))
	assert.Equal(t, "❌ Please upload an image", msg)

	msg = UserMessage(stderrors.New("unexpected"))
	assert.Equal(t, "❌ Processing error: unexpected", msg)
}
