package detector

import (
	"image"
	"image/color"
	"math"
	"sort"

	"github.com/disintegration/imaging"
)

// blkStride is the width of one row of the blk output:
// cx, cy, w, h, objectness, cls0, cls1.
const blkStride = 7

// letterbox describes how a page was fitted into the square model input.
type letterbox struct {
	scale  float64
	padX   int
	padY   int
	size   int
	srcW   int
	srcH   int
	tensor []float32
}

// letterboxImage resizes img to fit a size x size canvas (keeping aspect
// ratio, grey padding on the right and bottom) and returns the CHW RGB/255
// tensor data.
func letterboxImage(img image.Image, size int) *letterbox {
	b := img.Bounds()
	srcW, srcH := b.Dx(), b.Dy()
	scale := math.Min(float64(size)/float64(srcW), float64(size)/float64(srcH))
	newW := int(math.Round(float64(srcW) * scale))
	newH := int(math.Round(float64(srcH) * scale))
	if newW < 1 {
		newW = 1
	}
	if newH < 1 {
		newH = 1
	}

	resized := imaging.Resize(img, newW, newH, imaging.Linear)
	canvas := imaging.New(size, size, color.NRGBA{R: 114, G: 114, B: 114, A: 255})
	canvas = imaging.Paste(canvas, resized, image.Pt(0, 0))

	plane := size * size
	data := make([]float32, 3*plane)
	for y := 0; y < size; y++ {
		row := canvas.Pix[y*canvas.Stride:]
		for x := 0; x < size; x++ {
			i := x * 4
			data[y*size+x] = float32(row[i]) / 255
			data[plane+y*size+x] = float32(row[i+1]) / 255
			data[2*plane+y*size+x] = float32(row[i+2]) / 255
		}
	}

	return &letterbox{
		scale:  scale,
		size:   size,
		srcW:   srcW,
		srcH:   srcH,
		tensor: data,
	}
}

// candidate is a scored box in model-input pixels.
type candidate struct {
	x1, y1, x2, y2 float64
	score          float64
}

// decodeBlocks keeps rows whose objectness*max(class) reaches confThreshold.
func decodeBlocks(blk []float32, confThreshold float64) []candidate {
	var out []candidate
	for i := 0; i+blkStride <= len(blk); i += blkStride {
		row := blk[i : i+blkStride]
		cls := math.Max(float64(row[5]), float64(row[6]))
		score := float64(row[4]) * cls
		if score < confThreshold {
			continue
		}
		cx, cy, w, h := float64(row[0]), float64(row[1]), float64(row[2]), float64(row[3])
		out = append(out, candidate{
			x1: cx - w/2, y1: cy - h/2,
			x2: cx + w/2, y2: cy + h/2,
			score: score,
		})
	}
	return out
}

func iou(a, b candidate) float64 {
	ix1, iy1 := math.Max(a.x1, b.x1), math.Max(a.y1, b.y1)
	ix2, iy2 := math.Min(a.x2, b.x2), math.Min(a.y2, b.y2)
	iw, ih := ix2-ix1, iy2-iy1
	if iw <= 0 || ih <= 0 {
		return 0
	}
	inter := iw * ih
	union := (a.x2-a.x1)*(a.y2-a.y1) + (b.x2-b.x1)*(b.y2-b.y1) - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

// nms performs greedy non-maximum suppression, highest score first.
func nms(cands []candidate, iouThreshold float64) []candidate {
	sorted := make([]candidate, len(cands))
	copy(sorted, cands)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].score > sorted[j].score })

	var kept []candidate
	for _, c := range sorted {
		suppressed := false
		for _, k := range kept {
			if iou(c, k) > iouThreshold {
				suppressed = true
				break
			}
		}
		if !suppressed {
			kept = append(kept, c)
		}
	}
	return kept
}

// toSourceBoxes maps model-input boxes back to page pixels, clamps them to
// the page and drops any that collapse to nothing.
func (lb *letterbox) toSourceBoxes(cands []candidate) []Box {
	boxes := make([]Box, 0, len(cands))
	for _, c := range cands {
		x1 := clampInt(int(math.Floor((c.x1-float64(lb.padX))/lb.scale)), 0, lb.srcW)
		y1 := clampInt(int(math.Floor((c.y1-float64(lb.padY))/lb.scale)), 0, lb.srcH)
		x2 := clampInt(int(math.Ceil((c.x2-float64(lb.padX))/lb.scale)), 0, lb.srcW)
		y2 := clampInt(int(math.Ceil((c.y2-float64(lb.padY))/lb.scale)), 0, lb.srcH)
		if x2 <= x1 || y2 <= y1 {
			continue
		}
		boxes = append(boxes, Box{X: x1, Y: y1, W: x2 - x1, H: y2 - y1})
	}
	return boxes
}

// blockCount is the number of blk rows the detector emits for a square input.
func blockCount(size int) int {
	n := 0
	for _, stride := range []int{8, 16, 32} {
		g := size / stride
		n += g * g
	}
	return n * 3
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
