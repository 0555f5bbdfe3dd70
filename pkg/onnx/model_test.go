package onnx

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	ort "github.com/yalue/onnxruntime_go"
	"go.uber.org/zap"

	"github.com/menta2k/photo-hq/pkg/types"
)

func TestNewRequiresModelFile(t *testing.T) {
	if _, err := New(Config{}, nil); err == nil {
		t.Error("Expected error for empty model path")
	}

	missing := filepath.Join(t.TempDir(), "realesrgan512.onnx")
	if _, err := New(Config{ModelPath: missing}, nil); err == nil {
		t.Error("Expected error for missing model file")
	}
}

func TestInputSize(t *testing.T) {
	tests := []struct {
		name     string
		dims     ort.Shape
		override types.Size
		expected types.Size
		wantErr  bool
	}{
		{"fixed", ort.NewShape(1, 3, 512, 512), types.Size{}, types.Size{Width: 512, Height: 512}, false},
		{"dynamic", ort.NewShape(1, 3, -1, -1), types.Size{}, types.Size{}, false},
		{"override", ort.NewShape(1, 3, -1, -1), types.Size{Width: 256, Height: 256}, types.Size{Width: 256, Height: 256}, false},
		{"rank", ort.NewShape(3, 512, 512), types.Size{}, types.Size{}, true},
		{"channels", ort.NewShape(1, 1, 64, 64), types.Size{}, types.Size{}, true},
	}

	for _, test := range tests {
		got, err := inputSize(test.dims, test.override)
		if (err != nil) != test.wantErr {
			t.Errorf("%s: error = %v, wantErr %v", test.name, err, test.wantErr)
			continue
		}
		if got != test.expected {
			t.Errorf("%s: got %s, expected %s", test.name, got, test.expected)
		}
	}
}

func TestToPixelBuffer(t *testing.T) {
	data := make([]float32, 3*4*2)
	data[0] = 0.25

	buf, err := toPixelBuffer(ort.NewShape(1, 3, 2, 4), data)
	if err != nil {
		t.Fatalf("toPixelBuffer failed: %v", err)
	}
	if buf.Width != 4 || buf.Height != 2 || buf.Channels != 3 {
		t.Errorf("unexpected shape %dx%dx%d", buf.Channels, buf.Height, buf.Width)
	}

	// the buffer must not alias tensor memory that is destroyed after Run
	data[0] = 1
	if buf.Data[0] != 0.25 {
		t.Error("Expected output data to be copied")
	}

	if _, err := toPixelBuffer(ort.NewShape(2, 3, 2, 4), make([]float32, 48)); err == nil {
		t.Error("Expected error for batch size 2")
	}
	if _, err := toPixelBuffer(ort.NewShape(1, 3, 2, 4), make([]float32, 5)); err == nil {
		t.Error("Expected error for short data")
	}
	if _, err := toPixelBuffer(ort.NewShape(24), make([]float32, 24)); err == nil {
		t.Error("Expected error for 1D output")
	}
}

func TestPredictAfterClose(t *testing.T) {
	m := &Model{log: zap.NewNop()}
	if err := m.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	input := types.PixelBuffer{Width: 2, Height: 2, Channels: 3, Data: make([]float32, 12)}
	if _, err := m.Predict(context.Background(), input); !errors.Is(err, ErrClosed) {
		t.Errorf("Expected ErrClosed, got %v", err)
	}
}
