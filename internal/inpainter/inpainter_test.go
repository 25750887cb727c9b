package inpainter

import (
	"context"
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adverant/nexus/manga-translator/internal/region"
)

// greyFill paints every masked pixel grey and records what it was given.
type greyFill struct {
	calls int
	mask  *image.Gray
	err   error
}

func (g *greyFill) Fill(ctx context.Context, img image.Image, mask *image.Gray) (image.Image, error) {
	g.calls++
	g.mask = mask
	if g.err != nil {
		return nil, g.err
	}
	filled := image.NewNRGBA(img.Bounds())
	for i := range filled.Pix {
		filled.Pix[i] = 128
	}
	return Composite(img, filled, mask), nil
}

func (g *greyFill) Close() error { return nil }

func page(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 255
	}
	return img
}

func TestBuildMaskPadsAndClamps(t *testing.T) {
	bounds := image.Rect(0, 0, 100, 80)
	mask := BuildMask(bounds, []region.Region{
		region.FromXYWH(20, 20, 10, 10),
		region.FromXYWH(0, 70, 10, 10),
	}, 5)

	require.Equal(t, bounds, mask.Bounds())
	assert.Equal(t, uint8(255), mask.GrayAt(15, 15).Y, "padded corner is set")
	assert.Equal(t, uint8(255), mask.GrayAt(34, 34).Y)
	assert.Equal(t, uint8(0), mask.GrayAt(14, 15).Y, "outside the padding")
	assert.Equal(t, uint8(0), mask.GrayAt(35, 20).Y)
	assert.Equal(t, uint8(255), mask.GrayAt(0, 79).Y, "clamped to the page")
	assert.Equal(t, uint8(0), mask.GrayAt(50, 50).Y)
}

func TestBuildMaskNoRegions(t *testing.T) {
	mask := BuildMask(image.Rect(0, 0, 10, 10), nil, 5)
	for _, v := range mask.Pix {
		assert.Equal(t, uint8(0), v)
	}
}

func TestAdapterSingleCallOnlyMaskedPixelsChange(t *testing.T) {
	engine := &greyFill{}
	a := New(engine, -1)
	src := page(60, 60)

	out, err := a.Inpaint(context.Background(), src, []region.Region{
		region.FromXYWH(10, 10, 5, 5),
		region.FromXYWH(40, 40, 5, 5),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, engine.calls)

	assert.Equal(t, color.NRGBA{128, 128, 128, 128}, out.At(12, 12))
	assert.Equal(t, color.NRGBA{128, 128, 128, 128}, out.At(6, 6), "default padding of 5")
	assert.Equal(t, color.NRGBA{255, 255, 255, 255}, out.At(30, 30))
	assert.Equal(t, color.NRGBA{255, 255, 255, 255}, src.NRGBAAt(12, 12), "source untouched")
}

func TestAdapterEngineError(t *testing.T) {
	boom := errors.New("cuda out of memory")
	_, err := New(&greyFill{err: boom}, 5).Inpaint(context.Background(), page(10, 10), nil)
	assert.ErrorIs(t, err, boom)
}

func TestCompositeResizesFilled(t *testing.T) {
	src := page(40, 20)
	filled := image.NewNRGBA(image.Rect(0, 0, 8, 8))
	for i := range filled.Pix {
		filled.Pix[i] = 0
	}
	for i := 3; i < len(filled.Pix); i += 4 {
		filled.Pix[i] = 255
	}
	mask := BuildMask(src.Bounds(), []region.Region{region.FromXYWH(0, 0, 10, 10)}, 0)

	out := Composite(src, filled, mask)
	assert.Equal(t, color.NRGBA{0, 0, 0, 255}, out.NRGBAAt(5, 5))
	assert.Equal(t, color.NRGBA{255, 255, 255, 255}, out.NRGBAAt(20, 15))
}

func TestTensorConversions(t *testing.T) {
	size := 4
	data := make([]float32, 3*size*size)
	for i := range data {
		data[i] = 0.5
	}
	img := tensorImage(data, size)
	assert.Equal(t, uint8(128), img.Pix[0], "0..1 outputs are rescaled")

	for i := range data {
		data[i] = 200
	}
	img = tensorImage(data, size)
	assert.Equal(t, uint8(200), img.Pix[0], "0..255 outputs are used as-is")

	mask := image.NewGray(image.Rect(0, 0, 8, 8))
	mask.Pix[0] = 255
	mt := maskTensor(mask, 8)
	assert.Equal(t, float32(1), mt[0])
	assert.Equal(t, float32(0), mt[1])

	it := imageTensor(page(8, 8), 4)
	assert.Len(t, it, 3*16)
	assert.InDelta(t, 1.0, it[0], 1e-6)
}
