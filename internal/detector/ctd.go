package detector

import (
	"context"
	"fmt"
	"image"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/adverant/nexus/manga-translator/internal/logging"
	"github.com/adverant/nexus/manga-translator/internal/onnx"
)

// CTDConfig configures the comic-text-detector engine
type CTDConfig struct {
	ModelPath     string
	InputSize     int
	ConfThreshold float64
	NMSThreshold  float64
	Runtime       onnx.Options
}

// CTD runs comic-text-detector exported to ONNX.
// Inputs: images [1,3,S,S]. Outputs: blk [1,N,7], seg [1,1,S,S], det [1,2,S,S].
type CTD struct {
	config  CTDConfig
	session *ort.DynamicAdvancedSession
	mu      sync.Mutex
	logger  *logging.Logger
}

// NewCTD loads the detector model.
func NewCTD(cfg CTDConfig) (*CTD, error) {
	if cfg.ModelPath == "" {
		return nil, fmt.Errorf("detector model path is required")
	}
	if cfg.InputSize <= 0 {
		cfg.InputSize = 1024
	}
	if cfg.ConfThreshold <= 0 {
		cfg.ConfThreshold = 0.4
	}
	if cfg.NMSThreshold <= 0 {
		cfg.NMSThreshold = 0.35
	}

	if err := onnx.Acquire(cfg.Runtime); err != nil {
		return nil, err
	}

	session, err := onnx.NewSession(cfg.ModelPath,
		[]string{"images"},
		[]string{"blk", "seg", "det"},
		cfg.Runtime)
	if err != nil {
		onnx.Release()
		return nil, err
	}

	logger := logging.NewLogger("Detector")
	logger.Info("Comic text detector loaded", "model", cfg.ModelPath, "input_size", cfg.InputSize)

	return &CTD{config: cfg, session: session, logger: logger}, nil
}

// DetectBoxes runs one forward pass and returns the kept boxes.
func (d *CTD) DetectBoxes(ctx context.Context, img image.Image) ([]Box, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.session == nil {
		return nil, fmt.Errorf("detector is closed")
	}

	size := d.config.InputSize
	lb := letterboxImage(img, size)

	input, err := ort.NewTensor(ort.NewShape(1, 3, int64(size), int64(size)), lb.tensor)
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}
	defer onnx.DestroyAll(input)

	blk, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(blockCount(size)), blkStride))
	if err != nil {
		return nil, fmt.Errorf("failed to create blk tensor: %w", err)
	}
	defer onnx.DestroyAll(blk)

	seg, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 1, int64(size), int64(size)))
	if err != nil {
		return nil, fmt.Errorf("failed to create seg tensor: %w", err)
	}
	defer onnx.DestroyAll(seg)

	det, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 2, int64(size), int64(size)))
	if err != nil {
		return nil, fmt.Errorf("failed to create det tensor: %w", err)
	}
	defer onnx.DestroyAll(det)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := d.session.Run([]ort.Value{input}, []ort.Value{blk, seg, det}); err != nil {
		return nil, fmt.Errorf("detector inference failed: %w", err)
	}

	cands := decodeBlocks(blk.GetData(), d.config.ConfThreshold)
	kept := nms(cands, d.config.NMSThreshold)
	boxes := lb.toSourceBoxes(kept)

	d.logger.Debug("Detector pass complete",
		"candidates", len(cands),
		"kept", len(kept),
		"boxes", len(boxes))

	return boxes, nil
}

// Close destroys the session.
func (d *CTD) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.session == nil {
		return nil
	}
	err := d.session.Destroy()
	d.session = nil
	onnx.Release()
	if err != nil {
		return fmt.Errorf("failed to destroy detector session: %w", err)
	}
	return nil
}
