// Package inference prepares photos for a super-resolution model and runs it.
package inference

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"time"

	"github.com/disintegration/imaging"
	"go.uber.org/zap"

	"github.com/menta2k/photo-hq/pkg/orientation"
	"github.com/menta2k/photo-hq/pkg/processing"
	"github.com/menta2k/photo-hq/pkg/types"
)

// ErrNoResult is returned when the model produced no usable output buffer
var ErrNoResult = errors.New("inference produced no usable result")

// Request is a single inference submission
type Request struct {
	Image        image.Image
	Orientation  orientation.Pixel
	CropAndScale types.CropAndScale
}

// Handler runs requests against a model
type Handler struct {
	log *zap.Logger
}

// NewHandler creates a new handler. A nil logger discards output.
func NewHandler(log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{log: log}
}

// Perform orients and fits the request image to the model input, runs the
// model and returns its first output buffer
func (h *Handler) Perform(ctx context.Context, model Model, req Request) (types.PixelBuffer, error) {
	if model == nil {
		return types.PixelBuffer{}, errors.New("inference: nil model")
	}
	if req.Image == nil {
		return types.PixelBuffer{}, fmt.Errorf("inference: %w: nil image", processing.ErrUnsupportedImage)
	}

	upright := req.Orientation.Apply(req.Image)
	input := Prepare(upright, req.CropAndScale, model.InputSize())

	tensor, err := processing.ImageToBuffer(input)
	if err != nil {
		return types.PixelBuffer{}, fmt.Errorf("inference: %w", err)
	}

	start := time.Now()
	observations, err := model.Predict(ctx, tensor)
	if err != nil {
		return types.PixelBuffer{}, fmt.Errorf("inference: %s: %w", model.Name(), err)
	}

	h.log.Debug("model finished",
		zap.String("model", model.Name()),
		zap.Stringer("input", tensor.Size()),
		zap.Int("observations", len(observations)),
		zap.Duration("elapsed", time.Since(start)))

	if len(observations) == 0 {
		return types.PixelBuffer{}, ErrNoResult
	}
	out := observations[0].Buffer
	if err := out.Validate(); err != nil {
		return types.PixelBuffer{}, fmt.Errorf("%w: %v", ErrNoResult, err)
	}
	return out, nil
}

// Prepare fits img into size using the crop and scale option. An empty size
// leaves img unchanged.
func Prepare(img image.Image, option types.CropAndScale, size types.Size) image.Image {
	if size.Empty() {
		return img
	}

	switch option {
	case types.ScaleFit:
		fitted := imaging.Fit(img, size.Width, size.Height, imaging.Lanczos)
		canvas := imaging.New(size.Width, size.Height, color.NRGBA{A: 255})
		return imaging.PasteCenter(canvas, fitted)
	case types.CenterCrop:
		return imaging.Fill(img, size.Width, size.Height, imaging.Center, imaging.Lanczos)
	default:
		return imaging.Resize(img, size.Width, size.Height, imaging.Lanczos)
	}
}
