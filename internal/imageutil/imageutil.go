/**
 * Image helpers shared by the pipeline stages and front doors
 *
 * Decoding (PNG, JPEG, GIF, BMP, TIFF, WebP), magic-byte sniffing,
 * region crops, preview annotation and PNG encoding.
 */

package imageutil

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"time"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"
	_ "golang.org/x/image/webp" // register WebP decoder

	"github.com/adverant/nexus/manga-translator/internal/region"
)

// PreviewColor and PreviewStroke describe the region outlines on previews.
var PreviewColor = color.RGBA{R: 255, A: 255}

const PreviewStroke = 3.0

// DetectMimeType detects the image MIME type from magic bytes.
// Returns "" for anything that is not a supported image format.
func DetectMimeType(data []byte) string {
	if len(data) < 4 {
		return ""
	}

	// PNG: 0x89 'P' 'N' 'G' 0x0D 0x0A 0x1A 0x0A
	if len(data) >= 8 && bytes.HasPrefix(data, []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}) {
		return "image/png"
	}

	// JPEG: 0xFF 0xD8 0xFF
	if bytes.HasPrefix(data, []byte{0xFF, 0xD8, 0xFF}) {
		return "image/jpeg"
	}

	// GIF: 'G' 'I' 'F' '8' ('7' or '9') 'a'
	if bytes.HasPrefix(data, []byte("GIF87a")) || bytes.HasPrefix(data, []byte("GIF89a")) {
		return "image/gif"
	}

	// WebP: 'R' 'I' 'F' 'F' .... 'W' 'E' 'B' 'P'
	if len(data) > 12 && bytes.HasPrefix(data, []byte("RIFF")) && string(data[8:12]) == "WEBP" {
		return "image/webp"
	}

	// TIFF: little-endian or big-endian
	if bytes.HasPrefix(data, []byte{0x49, 0x49, 0x2A, 0x00}) || bytes.HasPrefix(data, []byte{0x4D, 0x4D, 0x00, 0x2A}) {
		return "image/tiff"
	}

	// BMP: 'B' 'M'
	if bytes.HasPrefix(data, []byte("BM")) {
		return "image/bmp"
	}

	return ""
}

// ErrTooManyPixels is returned by CheckPixels for pages over the pixel budget.
var ErrTooManyPixels = errors.New("image has too many pixels")

// CheckPixels reads only the image header and rejects pages whose declared
// width times height exceeds maxPixels. maxPixels <= 0 disables the check.
func CheckPixels(data []byte, maxPixels int64) error {
	if maxPixels <= 0 {
		return nil
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("decode image header: %w", err)
	}
	if pixels := int64(cfg.Width) * int64(cfg.Height); pixels > maxPixels {
		return fmt.Errorf("%w: %dx%d > %d", ErrTooManyPixels, cfg.Width, cfg.Height, maxPixels)
	}
	return nil
}

// Decode decodes an uploaded page, applying EXIF orientation.
// The result is always an *image.NRGBA.
func Decode(data []byte) (*image.NRGBA, error) {
	if DetectMimeType(data) == "" {
		return nil, fmt.Errorf("unsupported image format")
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return imaging.Clone(img), nil
}

// Download fetches an image over HTTP, refusing bodies larger than maxBytes.
// There is a single attempt; failures are returned to the caller.
func Download(ctx context.Context, url string, maxBytes int64) ([]byte, error) {
	client := &http.Client{Timeout: 60 * time.Second}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}

	if maxBytes > 0 && resp.ContentLength > maxBytes {
		return nil, fmt.Errorf("image size exceeds maximum: %d > %d bytes", resp.ContentLength, maxBytes)
	}

	var body io.Reader = resp.Body
	if maxBytes > 0 {
		body = io.LimitReader(resp.Body, maxBytes+1)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("image size exceeds maximum: more than %d bytes", maxBytes)
	}
	return data, nil
}

// Crop returns the pixels of r (clamped to the image) with no padding.
func Crop(img image.Image, r region.Region) (*image.NRGBA, error) {
	c := r.Clamp(img.Bounds())
	if c.Empty() {
		return nil, fmt.Errorf("region %s lies outside the image", r)
	}
	return imaging.Crop(img, c.Rect()), nil
}

// DrawPreview returns a copy of img with every region outlined.
func DrawPreview(img image.Image, regions []region.Region) image.Image {
	dc := gg.NewContextForImage(img)
	dc.SetColor(PreviewColor)
	dc.SetLineWidth(PreviewStroke)
	off := img.Bounds().Min
	for _, r := range regions {
		dc.DrawRectangle(
			float64(r.XMin-off.X), float64(r.YMin-off.Y),
			float64(r.Width()), float64(r.Height()),
		)
		dc.Stroke()
	}
	return dc.Image()
}

// Copy returns an independent copy of img.
func Copy(img image.Image) *image.NRGBA {
	return imaging.Clone(img)
}

// EncodePNG encodes img as PNG.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// DataURI encodes img as a base64 PNG data URI for inline HTML.
func DataURI(img image.Image) (string, error) {
	data, err := EncodePNG(img)
	if err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(data), nil
}
