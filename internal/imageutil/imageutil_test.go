package imageutil

import (
	"bytes"
	"context"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/color"
	"image/jpeg"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adverant/nexus/manga-translator/internal/region"
)

func whitePage(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.White)
		}
	}
	return img
}

func TestDetectMimeType(t *testing.T) {
	pngData, err := EncodePNG(whitePage(4, 4))
	require.NoError(t, err)

	var jpg bytes.Buffer
	require.NoError(t, jpeg.Encode(&jpg, whitePage(4, 4), nil))

	assert.Equal(t, "image/png", DetectMimeType(pngData))
	assert.Equal(t, "image/jpeg", DetectMimeType(jpg.Bytes()))
	assert.Equal(t, "image/gif", DetectMimeType([]byte("GIF89a......")))
	assert.Equal(t, "image/webp", DetectMimeType([]byte("RIFF\x00\x00\x00\x00WEBPVP8 ")))
	assert.Equal(t, "", DetectMimeType([]byte("%PDF-1.7")))
	assert.Equal(t, "", DetectMimeType([]byte("ab")))
}

func TestDecodeRoundTrip(t *testing.T) {
	data, err := EncodePNG(whitePage(20, 10))
	require.NoError(t, err)

	img, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 20, 10), img.Bounds())
}

func TestDecodeRejectsNonImage(t *testing.T) {
	_, err := Decode([]byte("definitely not an image"))
	assert.Error(t, err)

	// valid PNG signature, truncated body
	_, err = Decode([]byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, 0x00})
	assert.Error(t, err)
}

// pngWithDeclaredSize encodes a tiny page and rewrites its IHDR to claim w x h.
func pngWithDeclaredSize(t *testing.T, w, h uint32) []byte {
	t.Helper()
	data, err := EncodePNG(whitePage(2, 2))
	require.NoError(t, err)
	// signature(8) length(4) "IHDR"(4) width(4) height(4) ... crc at 29
	binary.BigEndian.PutUint32(data[16:20], w)
	binary.BigEndian.PutUint32(data[20:24], h)
	binary.BigEndian.PutUint32(data[29:33], crc32.ChecksumIEEE(data[12:29]))
	return data
}

func TestCheckPixels(t *testing.T) {
	small, err := EncodePNG(whitePage(40, 30))
	require.NoError(t, err)
	assert.NoError(t, CheckPixels(small, 1200))
	assert.NoError(t, CheckPixels(small, 0))

	err = CheckPixels(small, 1199)
	assert.ErrorIs(t, err, ErrTooManyPixels)

	huge := pngWithDeclaredSize(t, 40000, 40000)
	err = CheckPixels(huge, 50_000_000)
	assert.ErrorIs(t, err, ErrTooManyPixels)
	assert.Contains(t, err.Error(), "40000x40000")

	err = CheckPixels([]byte("not an image"), 100)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrTooManyPixels)
}

func TestCrop(t *testing.T) {
	page := whitePage(100, 50)

	crop, err := Crop(page, region.FromXYWH(10, 5, 30, 20))
	require.NoError(t, err)
	assert.Equal(t, 30, crop.Bounds().Dx())
	assert.Equal(t, 20, crop.Bounds().Dy())

	crop, err = Crop(page, region.Region{XMin: 90, YMin: 40, XMax: 120, YMax: 70})
	require.NoError(t, err)
	assert.Equal(t, 10, crop.Bounds().Dx(), "clamped to the page")

	_, err = Crop(page, region.FromXYWH(200, 200, 5, 5))
	assert.Error(t, err)
}

func TestDrawPreviewOutlinesRegions(t *testing.T) {
	page := whitePage(60, 60)
	preview := DrawPreview(page, []region.Region{region.FromXYWH(10, 10, 30, 30)})

	r, g, b, _ := preview.At(10, 25).RGBA()
	assert.Equal(t, uint32(0xffff), r)
	assert.Less(t, g, uint32(0x4000))
	assert.Less(t, b, uint32(0x4000))

	// interior and source untouched
	r, g, b, _ = preview.At(25, 25).RGBA()
	assert.Equal(t, [3]uint32{0xffff, 0xffff, 0xffff}, [3]uint32{r, g, b})
	assert.Equal(t, color.NRGBA{255, 255, 255, 255}, page.NRGBAAt(10, 25))
}

func TestDataURI(t *testing.T) {
	uri, err := DataURI(whitePage(2, 2))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(uri, "data:image/png;base64,"))
}

func TestDownload(t *testing.T) {
	data, err := EncodePNG(whitePage(8, 8))
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(data)
	}))
	defer srv.Close()

	got, err := Download(context.Background(), srv.URL+"/page.png", 1<<20)
	require.NoError(t, err)
	assert.Equal(t, data, got)

	_, err = Download(context.Background(), srv.URL+"/page.png", 16)
	assert.Error(t, err)

	_, err = Download(context.Background(), srv.URL+"/missing", 1<<20)
	assert.Error(t, err)
}
