package types

import "fmt"

// Size is a width/height pair in pixels
type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Empty reports whether either dimension is not positive
func (s Size) Empty() bool {
	return s.Width <= 0 || s.Height <= 0
}

func (s Size) String() string {
	return fmt.Sprintf("%dx%d", s.Width, s.Height)
}

// CropAndScale selects how an image is fitted into the model's input size
type CropAndScale int

const (
	// ScaleFill stretches the image to the input size, ignoring aspect ratio
	ScaleFill CropAndScale = iota
	// ScaleFit letterboxes the image inside the input size
	ScaleFit
	// CenterCrop scales to cover the input size and crops the center
	CenterCrop
)

// ParseCropAndScale maps a config string to a CropAndScale option
func ParseCropAndScale(s string) (CropAndScale, error) {
	switch s {
	case "", "fill", "scale-fill":
		return ScaleFill, nil
	case "fit", "scale-fit":
		return ScaleFit, nil
	case "crop", "center-crop":
		return CenterCrop, nil
	}
	return ScaleFill, fmt.Errorf("unknown crop and scale option: %q", s)
}

func (c CropAndScale) String() string {
	switch c {
	case ScaleFit:
		return "fit"
	case CenterCrop:
		return "crop"
	default:
		return "fill"
	}
}

// PixelBuffer is a planar CHW float32 buffer with values in [0,1]
type PixelBuffer struct {
	Width    int
	Height   int
	Channels int
	Data     []float32
}

// Size returns the buffer dimensions
func (b PixelBuffer) Size() Size {
	return Size{Width: b.Width, Height: b.Height}
}

// Validate checks that the data length matches the declared shape
func (b PixelBuffer) Validate() error {
	if b.Width <= 0 || b.Height <= 0 || b.Channels <= 0 {
		return fmt.Errorf("invalid pixel buffer shape %dx%dx%d", b.Channels, b.Height, b.Width)
	}
	if want := b.Width * b.Height * b.Channels; len(b.Data) != want {
		return fmt.Errorf("pixel buffer has %d values, want %d", len(b.Data), want)
	}
	return nil
}

// EncodeOptions controls how images are written to disk
type EncodeOptions struct {
	Format   string
	Quality  int
	Lossless bool
}
