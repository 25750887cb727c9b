// Package detector finds dialogue text regions on a page.
package detector

import (
	"context"
	"fmt"
	"image"

	"github.com/adverant/nexus/manga-translator/internal/region"
)

// Detector returns the text regions of a page in engine output order.
type Detector interface {
	Detect(ctx context.Context, img image.Image) ([]region.Region, error)
	Close() error
}

// Box is an engine box in (x, y, width, height) source pixels.
type Box struct {
	X, Y, W, H int
}

// Engine is a pretrained detection network.
type Engine interface {
	DetectBoxes(ctx context.Context, img image.Image) ([]Box, error)
	Close() error
}

// Adapter converts engine boxes to regions. It applies no filtering of its
// own; score thresholds and NMS belong to the engine.
type Adapter struct {
	engine Engine
}

// New wraps an engine.
func New(engine Engine) *Adapter {
	return &Adapter{engine: engine}
}

// Detect runs the engine once and converts every box.
func (a *Adapter) Detect(ctx context.Context, img image.Image) ([]region.Region, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	boxes, err := a.engine.DetectBoxes(ctx, img)
	if err != nil {
		return nil, fmt.Errorf("detection engine: %w", err)
	}
	regions := make([]region.Region, 0, len(boxes))
	for _, b := range boxes {
		regions = append(regions, region.FromXYWH(b.X, b.Y, b.W, b.H))
	}
	return regions, nil
}

// Close releases the engine.
func (a *Adapter) Close() error {
	return a.engine.Close()
}
