package inpainter

import (
	"context"
	"fmt"
	"image"
	"sync"

	"github.com/disintegration/imaging"
	ort "github.com/yalue/onnxruntime_go"

	"github.com/adverant/nexus/manga-translator/internal/logging"
	"github.com/adverant/nexus/manga-translator/internal/onnx"
)

// LaMaConfig configures the LaMa engine
type LaMaConfig struct {
	ModelPath string
	InputSize int
	Runtime   onnx.Options
}

// LaMa runs big-lama exported to ONNX.
// Inputs: image [1,3,S,S] RGB/255, mask [1,1,S,S] 0/1. Output: output [1,3,S,S].
type LaMa struct {
	config  LaMaConfig
	session *ort.DynamicAdvancedSession
	mu      sync.Mutex
	logger  *logging.Logger
}

// NewLaMa loads the inpainting model.
func NewLaMa(cfg LaMaConfig) (*LaMa, error) {
	if cfg.ModelPath == "" {
		return nil, fmt.Errorf("inpainter model path is required")
	}
	if cfg.InputSize <= 0 {
		cfg.InputSize = 512
	}

	if err := onnx.Acquire(cfg.Runtime); err != nil {
		return nil, err
	}

	session, err := onnx.NewSession(cfg.ModelPath,
		[]string{"image", "mask"},
		[]string{"output"},
		cfg.Runtime)
	if err != nil {
		onnx.Release()
		return nil, err
	}

	logger := logging.NewLogger("Inpainter")
	logger.Info("LaMa inpainter loaded", "model", cfg.ModelPath, "input_size", cfg.InputSize)

	return &LaMa{config: cfg, session: session, logger: logger}, nil
}

// Fill runs one forward pass over the whole page and composites the result
// back onto the page under the mask.
func (l *LaMa) Fill(ctx context.Context, img image.Image, mask *image.Gray) (image.Image, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.session == nil {
		return nil, fmt.Errorf("inpainter is closed")
	}

	size := l.config.InputSize
	imgData := imageTensor(img, size)
	maskData := maskTensor(mask, size)

	imgTensor, err := ort.NewTensor(ort.NewShape(1, 3, int64(size), int64(size)), imgData)
	if err != nil {
		return nil, fmt.Errorf("failed to create image tensor: %w", err)
	}
	defer onnx.DestroyAll(imgTensor)

	maskT, err := ort.NewTensor(ort.NewShape(1, 1, int64(size), int64(size)), maskData)
	if err != nil {
		return nil, fmt.Errorf("failed to create mask tensor: %w", err)
	}
	defer onnx.DestroyAll(maskT)

	output, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 3, int64(size), int64(size)))
	if err != nil {
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}
	defer onnx.DestroyAll(output)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := l.session.Run([]ort.Value{imgTensor, maskT}, []ort.Value{output}); err != nil {
		return nil, fmt.Errorf("inpainter inference failed: %w", err)
	}

	filled := tensorImage(output.GetData(), size)
	l.logger.Debug("Inpainter pass complete", "size", size)
	return Composite(img, filled, mask), nil
}

// Close destroys the session.
func (l *LaMa) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.session == nil {
		return nil
	}
	err := l.session.Destroy()
	l.session = nil
	onnx.Release()
	if err != nil {
		return fmt.Errorf("failed to destroy inpainter session: %w", err)
	}
	return nil
}

// imageTensor stretches img to size x size and returns CHW RGB/255 data.
func imageTensor(img image.Image, size int) []float32 {
	resized := imaging.Resize(img, size, size, imaging.Lanczos)
	plane := size * size
	data := make([]float32, 3*plane)
	for y := 0; y < size; y++ {
		row := resized.Pix[y*resized.Stride:]
		for x := 0; x < size; x++ {
			i := x * 4
			data[y*size+x] = float32(row[i]) / 255
			data[plane+y*size+x] = float32(row[i+1]) / 255
			data[2*plane+y*size+x] = float32(row[i+2]) / 255
		}
	}
	return data
}

// maskTensor resizes mask with nearest-neighbour sampling and binarizes it.
func maskTensor(mask *image.Gray, size int) []float32 {
	resized := imaging.Resize(mask, size, size, imaging.NearestNeighbor)
	data := make([]float32, size*size)
	for y := 0; y < size; y++ {
		row := resized.Pix[y*resized.Stride:]
		for x := 0; x < size; x++ {
			if row[x*4] >= 128 {
				data[y*size+x] = 1
			}
		}
	}
	return data
}

// tensorImage converts CHW output to an image. Exports differ in range:
// values up to 1 are treated as 0..1, anything larger as 0..255.
func tensorImage(data []float32, size int) *image.NRGBA {
	scale := float32(1)
	var maxV float32
	for _, v := range data {
		if v > maxV {
			maxV = v
		}
	}
	if maxV <= 1.0 {
		scale = 255
	}

	plane := size * size
	out := image.NewNRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			p := y*size + x
			o := y*out.Stride + x*4
			out.Pix[o] = toByte(data[p] * scale)
			out.Pix[o+1] = toByte(data[plane+p] * scale)
			out.Pix[o+2] = toByte(data[2*plane+p] * scale)
			out.Pix[o+3] = 255
		}
	}
	return out
}

func toByte(v float32) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v + 0.5)
}
