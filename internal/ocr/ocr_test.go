package ocr

import (
	"context"
	"encoding/json"
	"image"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adverant/nexus/manga-translator/internal/clients"
	"github.com/adverant/nexus/manga-translator/internal/region"
)

func TestClean(t *testing.T) {
	assert.Equal(t, Placeholder, Clean(""))
	assert.Equal(t, Placeholder, Clean("  \n\t "))
	// NFKC folds full-width forms
	assert.Equal(t, "ABC!", Clean("ＡＢＣ！"))
	assert.Equal(t, "ハ", Clean(" ﾊ "))
}

func TestJoinLines(t *testing.T) {
	assert.Equal(t, "なんだと", joinLines("な ん\nだ と\n", false))
	assert.Equal(t, "what is this", joinLines("what is\n  this\n", true))
}

func TestSpacedScript(t *testing.T) {
	assert.False(t, spacedScript("jp"))
	assert.False(t, spacedScript("cn"))
	assert.True(t, spacedScript("en"))
	assert.True(t, spacedScript("vi"))
}

func TestMangaOCRRecognizer(t *testing.T) {
	var sizes []int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req clients.OCRServerRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		sizes = append(sizes, len(req.Image))
		_, _ = w.Write([]byte(`{"success": true, "data": {"text": "な に\n？"}}`))
	}))
	defer srv.Close()

	rec := NewMangaOCRRecognizer(clients.NewOCRServerClient(srv.URL))
	page := image.NewNRGBA(image.Rect(0, 0, 100, 100))

	text, err := rec.Recognize(context.Background(), page, region.FromXYWH(10, 10, 20, 30))
	require.NoError(t, err)
	assert.Equal(t, "なに？", text)
	assert.Equal(t, "jp", rec.Language(), "engine reads Japanese only")
	assert.Len(t, sizes, 1)
	assert.NoError(t, rec.Close())
}

func TestMangaOCRRecognizerOutsideRegion(t *testing.T) {
	rec := NewMangaOCRRecognizer(clients.NewOCRServerClient("http://127.0.0.1:1"))
	page := image.NewNRGBA(image.Rect(0, 0, 10, 10))

	_, err := rec.Recognize(context.Background(), page, region.FromXYWH(50, 50, 5, 5))
	assert.Error(t, err)
}
