package processing

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/menta2k/photo-hq/pkg/orientation"
	"github.com/menta2k/photo-hq/pkg/types"
)

func createTestImage(width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{uint8(x * 255 / width), uint8(y * 255 / height), 128, 255})
		}
	}
	return img
}

func TestBufferRoundTripKeepsPixels(t *testing.T) {
	img := createTestImage(16, 8)

	buf, err := ImageToBuffer(img)
	if err != nil {
		t.Fatalf("ImageToBuffer failed: %v", err)
	}
	if buf.Channels != 3 || buf.Width != 16 || buf.Height != 8 {
		t.Fatalf("unexpected buffer shape %dx%dx%d", buf.Channels, buf.Height, buf.Width)
	}

	out, err := BufferToImage(buf)
	if err != nil {
		t.Fatalf("BufferToImage failed: %v", err)
	}

	for _, pt := range []image.Point{{0, 0}, {7, 3}, {15, 7}} {
		want := img.RGBAAt(pt.X, pt.Y)
		got := out.NRGBAAt(pt.X, pt.Y)
		if got.R != want.R || got.G != want.G || got.B != want.B || got.A != 255 {
			t.Errorf("pixel %v: got %v, expected %v", pt, got, want)
		}
	}
}

func TestBufferToImageClampsAndValidates(t *testing.T) {
	buf := types.PixelBuffer{Width: 1, Height: 1, Channels: 3, Data: []float32{-0.5, 2, 0.5}}
	out, err := BufferToImage(buf)
	if err != nil {
		t.Fatalf("BufferToImage failed: %v", err)
	}
	c := out.NRGBAAt(0, 0)
	if c.R != 0 || c.G != 255 || c.B != 128 {
		t.Errorf("unexpected clamped color %v", c)
	}

	bad := types.PixelBuffer{Width: 2, Height: 2, Channels: 3, Data: make([]float32, 5)}
	if _, err := BufferToImage(bad); err == nil {
		t.Error("Expected error for short buffer")
	}

	two := types.PixelBuffer{Width: 1, Height: 1, Channels: 2, Data: make([]float32, 2)}
	if _, err := BufferToImage(two); err == nil {
		t.Error("Expected error for two-channel buffer")
	}
}

func TestToRGBA(t *testing.T) {
	if _, err := ToRGBA(nil); !errors.Is(err, ErrUnsupportedImage) {
		t.Errorf("Expected ErrUnsupportedImage for nil, got %v", err)
	}
	if _, err := ToRGBA(image.NewRGBA(image.Rect(0, 0, 0, 4))); !errors.Is(err, ErrUnsupportedImage) {
		t.Errorf("Expected ErrUnsupportedImage for empty bounds, got %v", err)
	}

	gray := image.NewGray(image.Rect(0, 0, 4, 4))
	out, err := ToRGBA(gray)
	if err != nil {
		t.Fatalf("ToRGBA failed: %v", err)
	}
	if out.Bounds().Dx() != 4 {
		t.Errorf("Expected width 4, got %d", out.Bounds().Dx())
	}
}

func TestSaveAndLoad(t *testing.T) {
	p := NewProcessor()
	dir := t.TempDir()
	img := createTestImage(32, 24)

	for _, format := range []string{"jpg", "png", "webp"} {
		path := filepath.Join(dir, "photo."+format)
		if err := p.SaveImage(img, path, types.EncodeOptions{Format: format, Quality: 90}); err != nil {
			t.Fatalf("SaveImage(%s) failed: %v", format, err)
		}

		photo, err := p.LoadImage(path)
		if err != nil {
			t.Fatalf("LoadImage(%s) failed: %v", format, err)
		}
		if photo.Size() != (types.Size{Width: 32, Height: 24}) {
			t.Errorf("%s: unexpected size %s", format, photo.Size())
		}
		if photo.Orientation != orientation.Up {
			t.Errorf("%s: expected up orientation, got %s", format, photo.Orientation)
		}
		if photo.Path != path {
			t.Errorf("%s: expected path %s, got %s", format, path, photo.Path)
		}
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	p := NewProcessor()
	if _, err := p.Decode([]byte("definitely not an image")); err == nil {
		t.Error("Expected decode error")
	}

	if _, err := p.LoadImage(filepath.Join(t.TempDir(), "missing.jpg")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Expected not-exist error, got %v", err)
	}
}

func TestEncodeFormats(t *testing.T) {
	p := NewProcessor()
	img := createTestImage(8, 8)

	var buf bytes.Buffer
	if err := p.Encode(&buf, img, types.EncodeOptions{Format: ".PNG"}); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	photo, err := p.LoadImageFromReader(&buf)
	if err != nil {
		t.Fatalf("LoadImageFromReader failed: %v", err)
	}
	if photo.Format != "png" {
		t.Errorf("Expected png format, got %s", photo.Format)
	}
}

func TestDisplaySize(t *testing.T) {
	photo := Photo{Image: createTestImage(40, 20), Orientation: orientation.Right}
	if photo.DisplaySize() != (types.Size{Width: 20, Height: 40}) {
		t.Errorf("Expected 20x40 display size, got %s", photo.DisplaySize())
	}

	photo.Orientation = orientation.Down
	if photo.DisplaySize() != (types.Size{Width: 40, Height: 20}) {
		t.Errorf("Expected 40x20 display size, got %s", photo.DisplaySize())
	}
}

func TestNormalizeFormat(t *testing.T) {
	tests := map[string]string{"": "jpg", "JPEG": "jpg", ".png": "png", "webp": "webp", "tiff": "jpg"}
	for in, expected := range tests {
		if got := NormalizeFormat(in); got != expected {
			t.Errorf("NormalizeFormat(%q) = %q, expected %q", in, got, expected)
		}
	}
}

// taggedImage is an image type that cannot be compared with ==
type taggedImage struct {
	*image.RGBA
	tags []string
}

func TestPhotoSame(t *testing.T) {
	img := createTestImage(4, 4)
	a := Photo{Image: img, Path: "a.png"}

	if !a.Same(Photo{Image: img, Path: "a.png"}) {
		t.Error("Copies of a photo should be the same")
	}
	if a.Same(Photo{Image: createTestImage(4, 4), Path: "a.png"}) {
		t.Error("A different bitmap is a different photo")
	}
	if a.Same(Photo{Image: img, Path: "b.png"}) {
		t.Error("A different path is a different photo")
	}
	if a.Same(Photo{Image: img, Path: "a.png", Orientation: orientation.Left}) {
		t.Error("A different orientation is a different photo")
	}
	if !(Photo{}).Same(Photo{}) {
		t.Error("Empty photos should be the same")
	}

	tagged := taggedImage{RGBA: img, tags: []string{"x"}}
	if (Photo{Image: tagged}).Same(Photo{Image: tagged}) {
		t.Error("Uncomparable images are never reported as the same")
	}
}
