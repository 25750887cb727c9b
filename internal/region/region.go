// Package region holds the axis-aligned text box shared by every pipeline stage.
package region

import (
	"fmt"
	"image"
)

// Region is a text box in source-image pixel coordinates.
// XMax and YMax are exclusive, matching image.Rectangle.
type Region struct {
	XMin int `json:"x_min"`
	YMin int `json:"y_min"`
	XMax int `json:"x_max"`
	YMax int `json:"y_max"`
}

// FromXYWH converts a detector (x, y, width, height) box.
func FromXYWH(x, y, w, h int) Region {
	return Region{XMin: x, YMin: y, XMax: x + w, YMax: y + h}
}

// Rect returns the region as an image.Rectangle.
func (r Region) Rect() image.Rectangle {
	return image.Rect(r.XMin, r.YMin, r.XMax, r.YMax)
}

func (r Region) Width() int  { return r.XMax - r.XMin }
func (r Region) Height() int { return r.YMax - r.YMin }

// Empty reports whether the region has no area.
func (r Region) Empty() bool {
	return r.XMax <= r.XMin || r.YMax <= r.YMin
}

// Pad grows the region by n pixels on every side.
func (r Region) Pad(n int) Region {
	return Region{XMin: r.XMin - n, YMin: r.YMin - n, XMax: r.XMax + n, YMax: r.YMax + n}
}

// Clamp restricts the region to bounds.
func (r Region) Clamp(bounds image.Rectangle) Region {
	c := r.Rect().Intersect(bounds)
	return Region{XMin: c.Min.X, YMin: c.Min.Y, XMax: c.Max.X, YMax: c.Max.Y}
}

func (r Region) String() string {
	return fmt.Sprintf("(%d,%d)-(%d,%d)", r.XMin, r.YMin, r.XMax, r.YMax)
}

// Equal reports whether two lists hold the same regions in the same order.
func Equal(a, b []Region) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
