// Package aspect records a source image's aspect ratio before inference and
// restores it on the model's fixed-size output.
package aspect

import (
	"fmt"
	"image"
	"math"

	"github.com/menta2k/photo-hq/pkg/resize"
	"github.com/menta2k/photo-hq/pkg/types"
)

// Kind names the dimension that gets corrected after inference
type Kind int

const (
	None Kind = iota
	// Width keeps the result height and derives the width
	Width
	// Height keeps the result width and derives the height
	Height
)

func (k Kind) String() string {
	switch k {
	case Width:
		return "width-correction"
	case Height:
		return "height-correction"
	default:
		return "none"
	}
}

// Correction is the aspect-ratio record computed from a source image
type Correction struct {
	Kind  Kind
	Ratio float64
}

// Empty reports whether the correction leaves the result untouched
func (c Correction) Empty() bool {
	return c.Kind == None
}

func (c Correction) String() string {
	if c.Empty() {
		return c.Kind.String()
	}
	return fmt.Sprintf("%s(%.4f)", c.Kind, c.Ratio)
}

// Measure computes the correction for a source of the given size
func Measure(size types.Size) Correction {
	switch {
	case size.Empty():
		return Correction{}
	case size.Width > size.Height:
		return Correction{Kind: Height, Ratio: float64(size.Height) / float64(size.Width)}
	case size.Height > size.Width:
		return Correction{Kind: Width, Ratio: float64(size.Width) / float64(size.Height)}
	default:
		return Correction{}
	}
}

// MeasureImage computes the correction from an image's bounds
func MeasureImage(img image.Image) Correction {
	b := img.Bounds()
	return Measure(types.Size{Width: b.Dx(), Height: b.Dy()})
}

// Target returns the size the result should be resampled to
func (c Correction) Target(result types.Size) types.Size {
	switch c.Kind {
	case Height:
		return types.Size{Width: result.Width, Height: scaled(result.Width, c.Ratio)}
	case Width:
		return types.Size{Width: scaled(result.Height, c.Ratio), Height: result.Height}
	default:
		return result
	}
}

// Apply resamples img to the corrected size with the cover-fit rule. An empty
// correction returns img unchanged.
func (c Correction) Apply(img image.Image) (image.Image, error) {
	if c.Empty() {
		return img, nil
	}
	if img == nil {
		return nil, fmt.Errorf("aspect: nil image")
	}

	b := img.Bounds()
	target := c.Target(types.Size{Width: b.Dx(), Height: b.Dy()})
	out, err := resize.Cover(img, target)
	if err != nil {
		return nil, fmt.Errorf("aspect: apply %s: %w", c, err)
	}
	return out, nil
}

func scaled(side int, ratio float64) int {
	v := int(math.Round(float64(side) * ratio))
	if v < 1 {
		return 1
	}
	return v
}
