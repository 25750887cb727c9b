/**
 * ONNX Runtime environment shared by the detector and inpainter engines
 *
 * The runtime environment is process-global in onnxruntime_go, so it is
 * reference counted here: every engine calls Acquire when it opens a session
 * and Release when it closes it.
 */

package onnx

import (
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/adverant/nexus/manga-translator/internal/logging"
)

var (
	mu     sync.Mutex
	refs   int
	logger = logging.NewLogger("ONNX")
)

// Options controls environment and session creation.
type Options struct {
	// SharedLibraryPath points at libonnxruntime; empty uses the loader default
	SharedLibraryPath string
	// UseCUDA appends the CUDA execution provider to every session
	UseCUDA bool
}

// Acquire initializes the environment on first use.
func Acquire(opts Options) error {
	mu.Lock()
	defer mu.Unlock()

	if refs == 0 && !ort.IsInitialized() {
		if opts.SharedLibraryPath != "" {
			ort.SetSharedLibraryPath(opts.SharedLibraryPath)
		}
		if err := ort.InitializeEnvironment(); err != nil {
			return fmt.Errorf("failed to initialize onnxruntime: %w", err)
		}
		logger.Info("ONNX Runtime environment initialized", "version", ort.GetVersion(), "cuda", opts.UseCUDA)
	}
	refs++
	return nil
}

// Release tears the environment down once the last session is closed.
func Release() {
	mu.Lock()
	defer mu.Unlock()

	if refs == 0 {
		return
	}
	refs--
	if refs == 0 && ort.IsInitialized() {
		if err := ort.DestroyEnvironment(); err != nil {
			logger.Warn("Failed to destroy ONNX Runtime environment", "error", err)
			return
		}
		logger.Info("ONNX Runtime environment destroyed")
	}
}

// NewSession opens a model with the given input and output names.
func NewSession(modelPath string, inputs, outputs []string, opts Options) (*ort.DynamicAdvancedSession, error) {
	sessionOpts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("failed to create session options: %w", err)
	}
	defer sessionOpts.Destroy()

	if opts.UseCUDA {
		cudaOpts, err := ort.NewCUDAProviderOptions()
		if err != nil {
			return nil, fmt.Errorf("failed to create CUDA provider options: %w", err)
		}
		defer cudaOpts.Destroy()
		if err := sessionOpts.AppendExecutionProviderCUDA(cudaOpts); err != nil {
			return nil, fmt.Errorf("failed to enable CUDA execution provider: %w", err)
		}
	}

	session, err := ort.NewDynamicAdvancedSession(modelPath, inputs, outputs, sessionOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to load model %s: %w", modelPath, err)
	}
	return session, nil
}

// DestroyAll destroys every non-nil value, logging failures.
func DestroyAll(values ...ort.Value) {
	for _, v := range values {
		if v == nil {
			continue
		}
		if err := v.Destroy(); err != nil {
			logger.Warn("Failed to destroy tensor", "error", err)
		}
	}
}
