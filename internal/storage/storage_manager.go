/**
 * Storage Manager for the manga translator
 *
 * Persists the outputs of one page run under OUTPUT_DIR/<job id>/:
 * - cleaned.png     (inpainted page)
 * - preview.png     (page with detected regions outlined)
 * - translation.txt (paired text report)
 * - result.json     (run summary without images)
 *
 * Files of a run are written to a temporary directory first and renamed into
 * place, so a reader never sees a half-written result.
 */

package storage

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/adverant/nexus/manga-translator/internal/errors"
	"github.com/adverant/nexus/manga-translator/internal/imageutil"
	"github.com/adverant/nexus/manga-translator/internal/logging"
	"github.com/adverant/nexus/manga-translator/internal/processor"
)

// File names inside a result directory
const (
	CleanedFile = "cleaned.png"
	PreviewFile = "preview.png"
	TextFile    = "translation.txt"
	SummaryFile = "result.json"
)

// ErrNotFound is returned when no stored result exists for a job
var ErrNotFound = stderrors.New("result not found")

// ErrInvalidJobID is returned for job IDs that cannot name a directory
var ErrInvalidJobID = stderrors.New("invalid job ID")

// Job IDs are used verbatim as directory names, so distinct IDs never share one.
var validJobID = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,127}$`)

// StoredResult lists where the outputs of a run were written
type StoredResult struct {
	JobID       string `json:"job_id"`
	Dir         string `json:"dir"`
	CleanedPath string `json:"cleaned_path"`
	PreviewPath string `json:"preview_path"`
	TextPath    string `json:"text_path"`
	SummaryPath string `json:"summary_path"`
}

// Summary is the content of result.json
type Summary struct {
	*processor.ProcessResult
	Report   string    `json:"report"`
	StoredAt time.Time `json:"stored_at"`
}

// StorageManager writes page results below one output directory
type StorageManager struct {
	outputDir string
	logger    *logging.Logger
}

// NewStorageManager creates the output directory if needed
func NewStorageManager(outputDir string) (*StorageManager, error) {
	if outputDir == "" {
		return nil, fmt.Errorf("output directory is required")
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	return &StorageManager{
		outputDir: outputDir,
		logger:    logging.NewLogger("Storage"),
	}, nil
}

// OutputDir returns the root directory
func (sm *StorageManager) OutputDir() string {
	return sm.outputDir
}

// StoreResult writes the result of one run under its job directory
func (sm *StorageManager) StoreResult(ctx context.Context, result *processor.ProcessResult) (*StoredResult, error) {
	if result == nil {
		return nil, fmt.Errorf("result is required")
	}
	jobDir, err := sm.jobDir(result.JobID)
	if err != nil {
		return nil, errors.NewOutputError(result.JobID, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.NewOutputError(result.JobID, err)
	}

	tmp, err := os.MkdirTemp(sm.outputDir, ".tmp-")
	if err != nil {
		return nil, errors.NewOutputError(result.JobID, fmt.Errorf("failed to create temp directory: %w", err))
	}
	defer os.RemoveAll(tmp)

	if _, err := WriteResult(tmp, result); err != nil {
		return nil, err
	}

	// Replace any previous result of the same job
	if err := os.RemoveAll(jobDir); err != nil {
		return nil, errors.NewOutputError(result.JobID, fmt.Errorf("failed to clear previous result: %w", err))
	}
	if err := os.Rename(tmp, jobDir); err != nil {
		return nil, errors.NewOutputError(result.JobID, fmt.Errorf("failed to move result into place: %w", err))
	}

	stored := paths(result.JobID, jobDir)
	sm.logger.Info("Stored page result", "job", result.JobID, "dir", jobDir, "status", string(result.Status))
	return stored, nil
}

// GetResult reads back the summary of a stored run
func (sm *StorageManager) GetResult(jobID string) (*Summary, error) {
	jobDir, err := sm.jobDir(jobID)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(jobDir, SummaryFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, jobID)
		}
		return nil, fmt.Errorf("failed to read result summary: %w", err)
	}
	summary := &Summary{ProcessResult: &processor.ProcessResult{}}
	if err := json.Unmarshal(data, summary); err != nil {
		return nil, fmt.Errorf("failed to unmarshal result summary: %w", err)
	}
	return summary, nil
}

// FilePath returns the path of one output file of a stored run
func (sm *StorageManager) FilePath(jobID, name string) (string, error) {
	switch name {
	case CleanedFile, PreviewFile, TextFile, SummaryFile:
	default:
		return "", fmt.Errorf("%w: unknown result file %s", ErrNotFound, name)
	}
	jobDir, err := sm.jobDir(jobID)
	if err != nil {
		return "", err
	}
	p := filepath.Join(jobDir, name)
	if _, err := os.Stat(p); err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s/%s", ErrNotFound, jobID, name)
		}
		return "", err
	}
	return p, nil
}

// Close is a no-op kept for symmetry with the other long-lived components
func (sm *StorageManager) Close() error {
	return nil
}

// ValidateJobID reports whether jobID can name a result directory: letters,
// digits, '.', '_' and '-', starting with a letter or digit.
func ValidateJobID(jobID string) error {
	if !validJobID.MatchString(jobID) {
		return fmt.Errorf("%w: %q", ErrInvalidJobID, jobID)
	}
	return nil
}

func (sm *StorageManager) jobDir(jobID string) (string, error) {
	if err := ValidateJobID(jobID); err != nil {
		return "", err
	}
	return filepath.Join(sm.outputDir, jobID), nil
}

// WriteResult writes the output files of a run directly into dir.
// The CLI uses it for its -out directory.
func WriteResult(dir string, result *processor.ProcessResult) (*StoredResult, error) {
	if result == nil {
		return nil, fmt.Errorf("result is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.NewOutputError(result.JobID, fmt.Errorf("failed to create %s: %w", dir, err))
	}
	stored := paths(result.JobID, dir)

	if result.Cleaned != nil {
		if err := writePNG(stored.CleanedPath, result.Cleaned); err != nil {
			return nil, errors.NewOutputError(result.JobID, err)
		}
	}
	if result.Preview != nil {
		if err := writePNG(stored.PreviewPath, result.Preview); err != nil {
			return nil, errors.NewOutputError(result.JobID, err)
		}
	}

	report := result.Report()
	if err := os.WriteFile(stored.TextPath, []byte(report), 0o644); err != nil {
		return nil, errors.NewOutputError(result.JobID, fmt.Errorf("failed to write text report: %w", err))
	}

	summary, err := json.MarshalIndent(&Summary{
		ProcessResult: result,
		Report:        report,
		StoredAt:      time.Now().UTC(),
	}, "", "  ")
	if err != nil {
		return nil, errors.NewOutputError(result.JobID, fmt.Errorf("failed to marshal summary: %w", err))
	}
	if err := os.WriteFile(stored.SummaryPath, summary, 0o644); err != nil {
		return nil, errors.NewOutputError(result.JobID, fmt.Errorf("failed to write summary: %w", err))
	}
	return stored, nil
}

func writePNG(path string, img image.Image) error {
	data, err := imageutil.EncodePNG(img)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	return nil
}

func paths(jobID, dir string) *StoredResult {
	return &StoredResult{
		JobID:       jobID,
		Dir:         dir,
		CleanedPath: filepath.Join(dir, CleanedFile),
		PreviewPath: filepath.Join(dir, PreviewFile),
		TextPath:    filepath.Join(dir, TextFile),
		SummaryPath: filepath.Join(dir, SummaryFile),
	}
}
