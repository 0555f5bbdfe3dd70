// Package orientation maps display orientations to the pixel orientation
// tags understood by the inference handler.
package orientation

import (
	"errors"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// ErrUnknown is returned for orientation values outside the known range.
var ErrUnknown = errors.New("orientation: unknown value")

// Display is the orientation stored alongside a decoded photo.
type Display int

const (
	Up Display = iota
	Down
	Left
	Right
	UpMirrored
	DownMirrored
	LeftMirrored
	RightMirrored
)

var displayNames = [...]string{"up", "down", "left", "right", "up-mirrored", "down-mirrored", "left-mirrored", "right-mirrored"}

func (d Display) String() string {
	if d < Up || d > RightMirrored {
		return fmt.Sprintf("display(%d)", int(d))
	}
	return displayNames[d]
}

// Pixel is an EXIF/TIFF orientation tag (1..8).
type Pixel int

const (
	PixelUp            Pixel = 1
	PixelUpMirrored    Pixel = 2
	PixelDown          Pixel = 3
	PixelDownMirrored  Pixel = 4
	PixelLeftMirrored  Pixel = 5
	PixelRight         Pixel = 6
	PixelRightMirrored Pixel = 7
	PixelLeft          Pixel = 8
)

var toPixel = map[Display]Pixel{
	Up:            PixelUp,
	UpMirrored:    PixelUpMirrored,
	Down:          PixelDown,
	DownMirrored:  PixelDownMirrored,
	Left:          PixelLeft,
	LeftMirrored:  PixelLeftMirrored,
	Right:         PixelRight,
	RightMirrored: PixelRightMirrored,
}

var toDisplay = func() map[Pixel]Display {
	m := make(map[Pixel]Display, len(toPixel))
	for d, p := range toPixel {
		m[p] = d
	}
	return m
}()

// ToPixel converts a display orientation to its pixel orientation tag.
func ToPixel(d Display) (Pixel, error) {
	p, ok := toPixel[d]
	if !ok {
		return 0, fmt.Errorf("%w: display %d", ErrUnknown, int(d))
	}
	return p, nil
}

// FromPixel converts an EXIF orientation tag to a display orientation.
func FromPixel(p Pixel) (Display, error) {
	d, ok := toDisplay[p]
	if !ok {
		return Up, fmt.Errorf("%w: pixel %d", ErrUnknown, int(p))
	}
	return d, nil
}

// Apply returns img transformed so that it renders upright.
func (p Pixel) Apply(img image.Image) image.Image {
	switch p {
	case PixelUpMirrored:
		return imaging.FlipH(img)
	case PixelDown:
		return imaging.Rotate180(img)
	case PixelDownMirrored:
		return imaging.FlipV(img)
	case PixelLeftMirrored:
		return imaging.Transpose(img)
	case PixelRight:
		return imaging.Rotate270(img)
	case PixelRightMirrored:
		return imaging.Transverse(img)
	case PixelLeft:
		return imaging.Rotate90(img)
	default:
		return img
	}
}

// SwapsAxes reports whether applying p exchanges width and height.
func (p Pixel) SwapsAxes() bool {
	return p >= PixelLeftMirrored && p <= PixelLeft
}
