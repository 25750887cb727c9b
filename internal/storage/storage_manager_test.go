package storage

import (
	"context"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adverant/nexus/manga-translator/internal/errors"
	"github.com/adverant/nexus/manga-translator/internal/imageutil"
	"github.com/adverant/nexus/manga-translator/internal/processor"
	"github.com/adverant/nexus/manga-translator/internal/region"
)

func solid(w, h int, c color.Color) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func okResult(jobID string) *processor.ProcessResult {
	return &processor.ProcessResult{
		JobID:      jobID,
		Status:     processor.StatusOK,
		SourceLang: "jp",
		TargetLang: "vi",
		Regions:    []region.Region{region.FromXYWH(1, 1, 4, 4)},
		Lines: []processor.Line{
			{Index: 1, Region: region.FromXYWH(1, 1, 4, 4), Original: "逃げろ", Translated: "Chạy đi"},
		},
		Preview: solid(8, 8, color.White),
		Cleaned: solid(8, 8, color.Black),
	}
}

func TestStoreResultWritesAllFiles(t *testing.T) {
	sm, err := NewStorageManager(t.TempDir())
	require.NoError(t, err)

	stored, err := sm.StoreResult(context.Background(), okResult("job-1"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(sm.OutputDir(), "job-1"), stored.Dir)

	for _, p := range []string{stored.CleanedPath, stored.PreviewPath, stored.TextPath, stored.SummaryPath} {
		assert.FileExists(t, p)
	}

	text, err := os.ReadFile(stored.TextPath)
	require.NoError(t, err)
	assert.Equal(t, "[Box 1]\nORIGIN: 逃げろ\nVIETNAMESE: Chạy đi\n\n", string(text))

	data, err := os.ReadFile(stored.CleanedPath)
	require.NoError(t, err)
	assert.Equal(t, "image/png", imageutil.DetectMimeType(data))

	// no temp directories are left behind
	entries, err := os.ReadDir(sm.OutputDir())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "job-1", entries[0].Name())
}

func TestGetResultRoundTrip(t *testing.T) {
	sm, err := NewStorageManager(t.TempDir())
	require.NoError(t, err)
	_, err = sm.StoreResult(context.Background(), okResult("job-2"))
	require.NoError(t, err)

	summary, err := sm.GetResult("job-2")
	require.NoError(t, err)
	assert.Equal(t, processor.StatusOK, summary.Status)
	assert.Equal(t, "Chạy đi", summary.Lines[0].Translated)
	assert.Contains(t, summary.Report, "[Box 1]")
	assert.False(t, summary.StoredAt.IsZero())

	_, err = sm.GetResult("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStoreResultReplacesPreviousRun(t *testing.T) {
	sm, err := NewStorageManager(t.TempDir())
	require.NoError(t, err)

	_, err = sm.StoreResult(context.Background(), okResult("job-3"))
	require.NoError(t, err)

	empty := &processor.ProcessResult{
		JobID:   "job-3",
		Status:  processor.StatusNoRegions,
		Message: processor.NoRegionsMessage,
		Lines:   []processor.Line{},
		Cleaned: solid(4, 4, color.White),
	}
	stored, err := sm.StoreResult(context.Background(), empty)
	require.NoError(t, err)

	text, err := os.ReadFile(stored.TextPath)
	require.NoError(t, err)
	assert.Equal(t, processor.NoRegionsMessage, string(text))
	assert.NoFileExists(t, stored.PreviewPath, "preview of the previous run is gone")
}

func TestInvalidJobIDsAreRejected(t *testing.T) {
	root := t.TempDir()
	sm, err := NewStorageManager(root)
	require.NoError(t, err)

	for _, id := range []string{"../../etc", "..", ".", "a/b", "a b", ".tmp-x", ""} {
		_, err := sm.StoreResult(context.Background(), okResult(id))
		assert.Equal(t, errors.ErrorOutputFailed, errors.CodeOf(err), "job %q", id)
		assert.ErrorIs(t, err, ErrInvalidJobID, "job %q", id)
	}

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Empty(t, entries, "nothing written for rejected IDs")

	_, err = sm.GetResult("a/b")
	assert.ErrorIs(t, err, ErrInvalidJobID)
}

func TestSimilarJobIDsKeepSeparateResults(t *testing.T) {
	sm, err := NewStorageManager(t.TempDir())
	require.NoError(t, err)

	a, err := sm.StoreResult(context.Background(), okResult("a_b"))
	require.NoError(t, err)
	b, err := sm.StoreResult(context.Background(), okResult("a.b"))
	require.NoError(t, err)
	assert.NotEqual(t, a.Dir, b.Dir)

	_, err = sm.GetResult("a_b")
	require.NoError(t, err)
	_, err = sm.GetResult("a.b")
	require.NoError(t, err)
}

func TestFilePath(t *testing.T) {
	sm, err := NewStorageManager(t.TempDir())
	require.NoError(t, err)
	_, err = sm.StoreResult(context.Background(), okResult("job-4"))
	require.NoError(t, err)

	p, err := sm.FilePath("job-4", CleanedFile)
	require.NoError(t, err)
	assert.FileExists(t, p)

	_, err = sm.FilePath("job-4", "../../secret")
	assert.Error(t, err)

	_, err = sm.FilePath("nope", PreviewFile)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestWriteResultIntoPlainDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	stored, err := WriteResult(dir, okResult("cli"))
	require.NoError(t, err)
	assert.Equal(t, dir, stored.Dir)
	assert.FileExists(t, stored.CleanedPath)
	assert.FileExists(t, stored.SummaryPath)
}
