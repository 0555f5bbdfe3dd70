package inference

import (
	"context"
	"fmt"

	"github.com/disintegration/imaging"

	"github.com/menta2k/photo-hq/pkg/processing"
	"github.com/menta2k/photo-hq/pkg/types"
)

// Model is a super-resolution model that maps one RGB input tensor to one or
// more output buffers
type Model interface {
	Name() string
	// InputSize is the fixed input size; an empty size accepts any input
	InputSize() types.Size
	Predict(ctx context.Context, input types.PixelBuffer) ([]Observation, error)
}

// Observation is a single model output
type Observation struct {
	Buffer types.PixelBuffer
}

// Interpolator is a model that upsamples with a Lanczos filter. It stands in
// for a trained network when no ONNX model is configured.
type Interpolator struct {
	inputSize types.Size
	scale     int
}

// NewInterpolator creates an interpolating model with a fixed input size and
// integer scale factor
func NewInterpolator(inputSize types.Size, scale int) *Interpolator {
	if scale < 1 {
		scale = 1
	}
	return &Interpolator{inputSize: inputSize, scale: scale}
}

func (m *Interpolator) Name() string {
	return fmt.Sprintf("lanczos-x%d", m.scale)
}

func (m *Interpolator) InputSize() types.Size {
	return m.inputSize
}

// Scale returns the upsampling factor
func (m *Interpolator) Scale() int {
	return m.scale
}

func (m *Interpolator) Predict(ctx context.Context, input types.PixelBuffer) ([]Observation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	img, err := processing.BufferToImage(input)
	if err != nil {
		return nil, fmt.Errorf("interpolator input: %w", err)
	}

	up := imaging.Resize(img, input.Width*m.scale, input.Height*m.scale, imaging.Lanczos)
	buf, err := processing.ImageToBuffer(up)
	if err != nil {
		return nil, fmt.Errorf("interpolator output: %w", err)
	}
	return []Observation{{Buffer: buf}}, nil
}
