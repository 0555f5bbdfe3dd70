package resize

import (
	"errors"
	"fmt"
	"image"
	"math"

	"github.com/disintegration/imaging"
	"golang.org/x/image/draw"

	"github.com/menta2k/photo-hq/pkg/types"
)

// ErrNoCanvas is returned when no output bitmap can be produced
var ErrNoCanvas = errors.New("resize: cannot create output canvas")

// Ratio returns the cover-fit scale factor: the larger of the two axis ratios,
// so the scaled source at least fills the target box
func Ratio(src, target types.Size) float64 {
	widthRatio := float64(target.Width) / float64(src.Width)
	heightRatio := float64(target.Height) / float64(src.Height)
	return math.Max(widthRatio, heightRatio)
}

// ScaledSize applies the cover-fit ratio uniformly to both source dimensions
func ScaledSize(src, target types.Size) types.Size {
	ratio := Ratio(src, target)
	return types.Size{
		Width:  atLeastOne(math.Round(float64(src.Width) * ratio)),
		Height: atLeastOne(math.Round(float64(src.Height) * ratio)),
	}
}

// Scale draws img into a new canvas of ScaledSize(img, target)
func Scale(img image.Image, target types.Size) (image.Image, error) {
	if img == nil {
		return nil, fmt.Errorf("%w: nil image", ErrNoCanvas)
	}

	bounds := img.Bounds()
	src := types.Size{Width: bounds.Dx(), Height: bounds.Dy()}
	if src.Empty() {
		return nil, fmt.Errorf("%w: empty source %s", ErrNoCanvas, src)
	}
	if target.Empty() {
		return nil, fmt.Errorf("%w: invalid target %s", ErrNoCanvas, target)
	}

	size := ScaledSize(src, target)
	if size == src {
		return img, nil
	}

	dst := image.NewNRGBA(image.Rect(0, 0, size.Width, size.Height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	return dst, nil
}

// Cover scales img with the cover-fit rule and crops the center so the
// result is exactly target
func Cover(img image.Image, target types.Size) (image.Image, error) {
	scaled, err := Scale(img, target)
	if err != nil {
		return nil, err
	}

	b := scaled.Bounds()
	if b.Dx() == target.Width && b.Dy() == target.Height {
		return scaled, nil
	}
	return imaging.CropCenter(scaled, target.Width, target.Height), nil
}

func atLeastOne(v float64) int {
	if v < 1 {
		return 1
	}
	return int(v)
}
