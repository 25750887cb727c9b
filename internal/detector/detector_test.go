package detector

import (
	"context"
	"errors"
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adverant/nexus/manga-translator/internal/region"
)

type fakeEngine struct {
	boxes  []Box
	err    error
	closed bool
}

func (f *fakeEngine) DetectBoxes(ctx context.Context, img image.Image) ([]Box, error) {
	return f.boxes, f.err
}

func (f *fakeEngine) Close() error {
	f.closed = true
	return nil
}

func TestAdapterConvertsXYWH(t *testing.T) {
	engine := &fakeEngine{boxes: []Box{{X: 10, Y: 20, W: 30, H: 40}, {X: 0, Y: 0, W: 5, H: 5}}}
	a := New(engine)

	regions, err := a.Detect(context.Background(), image.NewNRGBA(image.Rect(0, 0, 100, 100)))
	require.NoError(t, err)
	assert.Equal(t, []region.Region{
		{XMin: 10, YMin: 20, XMax: 40, YMax: 60},
		{XMin: 0, YMin: 0, XMax: 5, YMax: 5},
	}, regions)

	require.NoError(t, a.Close())
	assert.True(t, engine.closed)
}

func TestAdapterWrapsEngineError(t *testing.T) {
	boom := errors.New("session exploded")
	a := New(&fakeEngine{err: boom})

	_, err := a.Detect(context.Background(), image.NewNRGBA(image.Rect(0, 0, 10, 10)))
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}

func TestAdapterHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(&fakeEngine{}).Detect(ctx, image.NewNRGBA(image.Rect(0, 0, 10, 10)))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDecodeBlocksThreshold(t *testing.T) {
	blk := []float32{
		50, 50, 20, 10, 0.9, 0.8, 0.1, // 0.72 kept
		10, 10, 4, 4, 0.5, 0.2, 0.3, // 0.15 dropped
		80, 80, 10, 10, 0.6, 0.1, 0.7, // 0.42 kept
	}
	cands := decodeBlocks(blk, 0.4)
	require.Len(t, cands, 2)
	assert.InDelta(t, 40, cands[0].x1, 1e-6)
	assert.InDelta(t, 45, cands[0].y1, 1e-6)
	assert.InDelta(t, 60, cands[0].x2, 1e-6)
	assert.InDelta(t, 55, cands[0].y2, 1e-6)
	assert.InDelta(t, 0.72, cands[0].score, 1e-6)
}

func TestNMSSuppressesOverlaps(t *testing.T) {
	cands := []candidate{
		{x1: 0, y1: 0, x2: 10, y2: 10, score: 0.5},
		{x1: 1, y1: 1, x2: 11, y2: 11, score: 0.9},
		{x1: 50, y1: 50, x2: 60, y2: 60, score: 0.6},
	}
	kept := nms(cands, 0.35)
	require.Len(t, kept, 2)
	assert.InDelta(t, 0.9, kept[0].score, 1e-9)
	assert.InDelta(t, 0.6, kept[1].score, 1e-9)
}

func TestLetterboxRoundTrip(t *testing.T) {
	page := image.NewNRGBA(image.Rect(0, 0, 2048, 1024))
	lb := letterboxImage(page, 64)

	assert.InDelta(t, 0.03125, lb.scale, 1e-12)
	assert.Len(t, lb.tensor, 3*64*64)
	// bottom half is padding
	assert.InDelta(t, 114.0/255, lb.tensor[63*64], 1e-6)

	boxes := lb.toSourceBoxes([]candidate{{x1: 3.125, y1: 1.5625, x2: 6.25, y2: 3.125, score: 1}})
	require.Len(t, boxes, 1)
	assert.Equal(t, Box{X: 100, Y: 50, W: 100, H: 50}, boxes[0])
}

func TestToSourceBoxesClampsAndDropsEmpty(t *testing.T) {
	lb := &letterbox{scale: 1, size: 100, srcW: 100, srcH: 50}
	boxes := lb.toSourceBoxes([]candidate{
		{x1: -5, y1: -5, x2: 20, y2: 20},
		{x1: 10, y1: 60, x2: 20, y2: 80},
	})
	require.Len(t, boxes, 1)
	assert.Equal(t, Box{X: 0, Y: 0, W: 20, H: 20}, boxes[0])
}

func TestBlockCount(t *testing.T) {
	assert.Equal(t, 64512, blockCount(1024))
}
