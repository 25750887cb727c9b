// Package inpainter erases detected text by filling the masked regions.
package inpainter

import (
	"context"
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"

	"github.com/adverant/nexus/manga-translator/internal/region"
)

// DefaultPadding is the number of pixels added around every region in the mask.
const DefaultPadding = 5

// Inpainter returns a copy of the page with every region filled.
type Inpainter interface {
	Inpaint(ctx context.Context, img image.Image, regions []region.Region) (image.Image, error)
	Close() error
}

// Engine fills the white pixels of mask in img in a single call.
type Engine interface {
	Fill(ctx context.Context, img image.Image, mask *image.Gray) (image.Image, error)
	Close() error
}

// Adapter builds one mask for all regions and makes one engine call.
type Adapter struct {
	engine  Engine
	padding int
}

// New wraps an engine; padding < 0 selects DefaultPadding.
func New(engine Engine, padding int) *Adapter {
	if padding < 0 {
		padding = DefaultPadding
	}
	return &Adapter{engine: engine, padding: padding}
}

// Inpaint erases every region of img.
func (a *Adapter) Inpaint(ctx context.Context, img image.Image, regions []region.Region) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	mask := BuildMask(img.Bounds(), regions, a.padding)
	out, err := a.engine.Fill(ctx, img, mask)
	if err != nil {
		return nil, fmt.Errorf("inpainting engine: %w", err)
	}
	if out.Bounds().Size() != img.Bounds().Size() {
		return nil, fmt.Errorf("inpainting engine returned %v for a %v page", out.Bounds().Size(), img.Bounds().Size())
	}
	return out, nil
}

// Close releases the engine.
func (a *Adapter) Close() error {
	return a.engine.Close()
}

// BuildMask rasterizes every region, grown by padding, as a filled white
// rectangle on a black mask the size of bounds.
func BuildMask(bounds image.Rectangle, regions []region.Region, padding int) *image.Gray {
	w, h := bounds.Dx(), bounds.Dy()
	dc := gg.NewContext(w, h)
	dc.SetColor(color.Black)
	dc.Clear()
	dc.SetColor(color.White)
	for _, r := range regions {
		p := r.Pad(padding).Clamp(bounds)
		if p.Empty() {
			continue
		}
		dc.DrawRectangle(
			float64(p.XMin-bounds.Min.X), float64(p.YMin-bounds.Min.Y),
			float64(p.Width()), float64(p.Height()),
		)
		dc.Fill()
	}

	src := dc.Image()
	mask := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if c := color.GrayModel.Convert(src.At(x, y)).(color.Gray); c.Y >= 128 {
				mask.Pix[y*mask.Stride+x] = 255
			}
		}
	}
	return mask
}

// Composite copies filled pixels into a clone of src wherever mask is set.
// filled may be any size; it is resized to src first.
func Composite(src image.Image, filled image.Image, mask *image.Gray) *image.NRGBA {
	b := src.Bounds()
	out := imaging.Clone(src)
	if filled.Bounds().Dx() != b.Dx() || filled.Bounds().Dy() != b.Dy() {
		filled = imaging.Resize(filled, b.Dx(), b.Dy(), imaging.Lanczos)
	}
	fb := filled.Bounds()
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			if mask.Pix[y*mask.Stride+x] == 0 {
				continue
			}
			out.Set(x, y, filled.At(fb.Min.X+x, fb.Min.Y+y))
		}
	}
	return out
}
