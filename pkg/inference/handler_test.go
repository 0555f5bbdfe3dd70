package inference

import (
	"context"
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/menta2k/photo-hq/pkg/orientation"
	"github.com/menta2k/photo-hq/pkg/types"
)

type stubModel struct {
	size   types.Size
	obs    []Observation
	err    error
	inputs []types.PixelBuffer
}

func (m *stubModel) Name() string          { return "stub" }
func (m *stubModel) InputSize() types.Size { return m.size }
func (m *stubModel) Predict(ctx context.Context, input types.PixelBuffer) ([]Observation, error) {
	m.inputs = append(m.inputs, input)
	return m.obs, m.err
}

func createTestImage(width, height int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{200, 100, 50, 255})
		}
	}
	return img
}

func TestPerformWithInterpolator(t *testing.T) {
	model := NewInterpolator(types.Size{Width: 16, Height: 16}, 4)
	h := NewHandler(nil)

	out, err := h.Perform(context.Background(), model, Request{
		Image:        createTestImage(40, 20),
		Orientation:  orientation.PixelUp,
		CropAndScale: types.ScaleFill,
	})
	if err != nil {
		t.Fatalf("Perform failed: %v", err)
	}
	if out.Width != 64 || out.Height != 64 || out.Channels != 3 {
		t.Errorf("Expected 3x64x64 output, got %dx%dx%d", out.Channels, out.Height, out.Width)
	}
}

func TestPerformAppliesOrientation(t *testing.T) {
	model := &stubModel{obs: []Observation{{Buffer: types.PixelBuffer{Width: 1, Height: 1, Channels: 3, Data: make([]float32, 3)}}}}
	h := NewHandler(nil)

	_, err := h.Perform(context.Background(), model, Request{
		Image:       createTestImage(40, 20),
		Orientation: orientation.PixelRight,
	})
	if err != nil {
		t.Fatalf("Perform failed: %v", err)
	}

	// no fixed input size, so the model sees the upright pixels
	in := model.inputs[0]
	if in.Width != 20 || in.Height != 40 {
		t.Errorf("Expected upright 20x40 input, got %dx%d", in.Width, in.Height)
	}
}

func TestPerformNoResult(t *testing.T) {
	h := NewHandler(nil)
	img := createTestImage(8, 8)

	empty := &stubModel{}
	if _, err := h.Perform(context.Background(), empty, Request{Image: img}); !errors.Is(err, ErrNoResult) {
		t.Errorf("Expected ErrNoResult for no observations, got %v", err)
	}

	malformed := &stubModel{obs: []Observation{{Buffer: types.PixelBuffer{Width: 2, Height: 2, Channels: 3}}}}
	if _, err := h.Perform(context.Background(), malformed, Request{Image: img}); !errors.Is(err, ErrNoResult) {
		t.Errorf("Expected ErrNoResult for malformed buffer, got %v", err)
	}
}

func TestPerformPropagatesModelError(t *testing.T) {
	boom := errors.New("runtime exploded")
	model := &stubModel{err: boom}

	_, err := NewHandler(nil).Perform(context.Background(), model, Request{Image: createTestImage(8, 8)})
	if !errors.Is(err, boom) {
		t.Errorf("Expected wrapped model error, got %v", err)
	}
}

func TestPerformRejectsNilImage(t *testing.T) {
	if _, err := NewHandler(nil).Perform(context.Background(), &stubModel{}, Request{}); err == nil {
		t.Error("Expected error for nil image")
	}
	if _, err := NewHandler(nil).Perform(context.Background(), nil, Request{Image: createTestImage(2, 2)}); err == nil {
		t.Error("Expected error for nil model")
	}
}

func TestPrepare(t *testing.T) {
	img := createTestImage(100, 50)
	size := types.Size{Width: 32, Height: 32}

	for _, option := range []types.CropAndScale{types.ScaleFill, types.ScaleFit, types.CenterCrop} {
		out := Prepare(img, option, size)
		b := out.Bounds()
		if b.Dx() != 32 || b.Dy() != 32 {
			t.Errorf("%s: expected 32x32, got %dx%d", option, b.Dx(), b.Dy())
		}
	}

	if Prepare(img, types.ScaleFill, types.Size{}) != img {
		t.Error("Expected image unchanged for empty input size")
	}
}

func TestInterpolatorHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	model := NewInterpolator(types.Size{Width: 4, Height: 4}, 2)
	input := types.PixelBuffer{Width: 4, Height: 4, Channels: 3, Data: make([]float32, 48)}
	if _, err := model.Predict(ctx, input); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if model.Name() != "lanczos-x2" {
		t.Errorf("Unexpected name %q", model.Name())
	}
}
