// Package onnx runs a super-resolution network (for example Real-ESRGAN)
// through ONNX Runtime.
package onnx

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
	"go.uber.org/zap"

	"github.com/menta2k/photo-hq/pkg/inference"
	"github.com/menta2k/photo-hq/pkg/types"
)

// Config controls how the ONNX session is created
type Config struct {
	ModelPath string
	// LibraryPath points at the onnxruntime shared library; empty uses the
	// platform default lookup
	LibraryPath string
	NumThreads  int
	// InputSize overrides the size read from the model; required when the
	// model declares dynamic spatial dimensions
	InputSize types.Size
}

// Model wraps an ONNX Runtime session
type Model struct {
	name      string
	session   *ort.DynamicAdvancedSession
	input     ort.InputOutputInfo
	output    ort.InputOutputInfo
	inputSize types.Size
	log       *zap.Logger

	mu sync.Mutex
}

// ErrClosed is returned by Predict after Close
var ErrClosed = errors.New("onnx: model is closed")

var envOnce sync.Once
var envErr error

// New creates a model from cfg. Model construction failures are returned to
// the caller.
func New(cfg Config, log *zap.Logger) (*Model, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.ModelPath == "" {
		return nil, errors.New("onnx: empty model path")
	}
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, fmt.Errorf("onnx: model: %w", err)
	}

	if err := initEnvironment(cfg.LibraryPath); err != nil {
		return nil, err
	}

	inputs, outputs, err := ort.GetInputOutputInfo(cfg.ModelPath)
	if err != nil {
		return nil, fmt.Errorf("onnx: io info: %w", err)
	}
	if len(inputs) != 1 || len(outputs) != 1 {
		return nil, fmt.Errorf("onnx: unexpected io (in:%d out:%d)", len(inputs), len(outputs))
	}
	in, out := inputs[0], outputs[0]

	size, err := inputSize(in.Dimensions, cfg.InputSize)
	if err != nil {
		return nil, err
	}

	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("onnx: session options: %w", err)
	}
	defer func() {
		if err := opts.Destroy(); err != nil {
			log.Warn("destroy session options", zap.Error(err))
		}
	}()
	if cfg.NumThreads > 0 {
		if err := opts.SetIntraOpNumThreads(cfg.NumThreads); err != nil {
			return nil, fmt.Errorf("onnx: threads: %w", err)
		}
	}

	sess, err := ort.NewDynamicAdvancedSession(cfg.ModelPath, []string{in.Name}, []string{out.Name}, opts)
	if err != nil {
		return nil, fmt.Errorf("onnx: session: %w", err)
	}

	log.Info("onnx model loaded",
		zap.String("path", cfg.ModelPath),
		zap.String("input", in.Name),
		zap.String("output", out.Name),
		zap.Stringer("input_size", size))

	return &Model{
		name:      cfg.ModelPath,
		session:   sess,
		input:     in,
		output:    out,
		inputSize: size,
		log:       log,
	}, nil
}

func initEnvironment(libraryPath string) error {
	envOnce.Do(func() {
		if libraryPath != "" {
			ort.SetSharedLibraryPath(libraryPath)
		}
		if !ort.IsInitialized() {
			if err := ort.InitializeEnvironment(); err != nil {
				envErr = fmt.Errorf("onnx: init environment: %w", err)
			}
		}
	})
	return envErr
}

func (m *Model) Name() string {
	return m.name
}

func (m *Model) InputSize() types.Size {
	return m.inputSize
}

// Predict runs the network on a CHW RGB tensor
func (m *Model) Predict(ctx context.Context, input types.PixelBuffer) ([]inference.Observation, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.closed() {
		return nil, ErrClosed
	}

	tensor, err := ort.NewTensor(ort.NewShape(1, int64(input.Channels), int64(input.Height), int64(input.Width)), input.Data)
	if err != nil {
		return nil, fmt.Errorf("tensor: %w", err)
	}
	defer func() {
		if err := tensor.Destroy(); err != nil {
			m.log.Warn("destroy input tensor", zap.Error(err))
		}
	}()

	outputs := []ort.Value{nil}
	m.mu.Lock()
	if m.session == nil {
		m.mu.Unlock()
		return nil, ErrClosed
	}
	err = m.session.Run([]ort.Value{tensor}, outputs)
	m.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("run: %w", err)
	}
	defer func() {
		for _, o := range outputs {
			if o != nil {
				if err := o.Destroy(); err != nil {
					m.log.Warn("destroy output tensor", zap.Error(err))
				}
			}
		}
	}()

	t, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("unexpected output type %T", outputs[0])
	}

	buf, err := toPixelBuffer(t.GetShape(), t.GetData())
	if err != nil {
		return nil, err
	}
	return []inference.Observation{{Buffer: buf}}, nil
}

func (m *Model) closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session == nil
}

// Close releases the session. Later Predict calls return ErrClosed.
func (m *Model) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return nil
	}
	err := m.session.Destroy()
	m.session = nil
	return err
}

// inputSize reads H and W from an NCHW input shape, falling back to override
// when they are dynamic
func inputSize(dims ort.Shape, override types.Size) (types.Size, error) {
	if !override.Empty() {
		return override, nil
	}
	if len(dims) != 4 {
		return types.Size{}, fmt.Errorf("onnx: expected 4D input, got %dD", len(dims))
	}
	if dims[1] != 3 && dims[1] > 0 {
		return types.Size{}, fmt.Errorf("onnx: expected 3 input channels, got %d", dims[1])
	}
	if dims[2] <= 0 || dims[3] <= 0 {
		// dynamic spatial dims: the handler feeds the image at its own size
		return types.Size{}, nil
	}
	return types.Size{Width: int(dims[3]), Height: int(dims[2])}, nil
}

// toPixelBuffer copies an NCHW or CHW float tensor into a PixelBuffer
func toPixelBuffer(shape ort.Shape, data []float32) (types.PixelBuffer, error) {
	var c, h, w int64
	switch len(shape) {
	case 4:
		if shape[0] != 1 {
			return types.PixelBuffer{}, fmt.Errorf("unexpected batch size %d", shape[0])
		}
		c, h, w = shape[1], shape[2], shape[3]
	case 3:
		c, h, w = shape[0], shape[1], shape[2]
	default:
		return types.PixelBuffer{}, fmt.Errorf("unexpected output shape %v", shape)
	}

	buf := types.PixelBuffer{
		Width:    int(w),
		Height:   int(h),
		Channels: int(c),
		Data:     append([]float32(nil), data...),
	}
	if err := buf.Validate(); err != nil {
		return types.PixelBuffer{}, fmt.Errorf("output: %w", err)
	}
	return buf, nil
}
