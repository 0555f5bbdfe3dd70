package processing

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	"github.com/rwcarlsen/goexif/exif"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"github.com/menta2k/photo-hq/pkg/orientation"
	"github.com/menta2k/photo-hq/pkg/types"
)

// ErrUnsupportedImage is returned when an image cannot be converted to RGB
var ErrUnsupportedImage = errors.New("image cannot be converted to RGB")

// Photo is a decoded bitmap together with the orientation it should be displayed in
type Photo struct {
	Image       image.Image
	Orientation orientation.Display
	Path        string
	Format      string
}

// Size returns the stored pixel dimensions
func (p Photo) Size() types.Size {
	if p.Image == nil {
		return types.Size{}
	}
	b := p.Image.Bounds()
	return types.Size{Width: b.Dx(), Height: b.Dy()}
}

// DisplaySize returns the dimensions after the display orientation is applied
func (p Photo) DisplaySize() types.Size {
	s := p.Size()
	if px, err := orientation.ToPixel(p.Orientation); err == nil && px.SwapsAxes() {
		return types.Size{Width: s.Height, Height: s.Width}
	}
	return s
}

// Same reports whether p and other are the same photo: the same bitmap
// shown in the same orientation from the same path
func (p Photo) Same(other Photo) bool {
	if p.Path != other.Path || p.Orientation != other.Orientation {
		return false
	}
	if p.Image == nil || other.Image == nil {
		return p.Image == nil && other.Image == nil
	}
	if !reflect.TypeOf(p.Image).Comparable() || !reflect.TypeOf(other.Image).Comparable() {
		return false
	}
	return p.Image == other.Image
}

// Processor handles image decoding, conversion and encoding
type Processor struct{}

// NewProcessor creates a new image processor
func NewProcessor() *Processor {
	return &Processor{}
}

// LoadImage loads a photo from a file path with WebP support. Pixels are kept
// as stored; the EXIF orientation is recorded on the Photo.
func (p *Processor) LoadImage(path string) (Photo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Photo{}, fmt.Errorf("failed to read image: %w", err)
	}

	photo, err := p.Decode(data)
	if err != nil {
		return Photo{}, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	photo.Path = path
	return photo, nil
}

// LoadImageFromReader loads a photo from an io.Reader
func (p *Processor) LoadImageFromReader(r io.Reader) (Photo, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Photo{}, fmt.Errorf("failed to read image data: %w", err)
	}
	return p.Decode(data)
}

// Decode decodes image bytes, falling back to the WebP decoder
func (p *Processor) Decode(data []byte) (Photo, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		webpImg, webpErr := webp.Decode(bytes.NewReader(data))
		if webpErr != nil {
			return Photo{}, fmt.Errorf("image: unknown or unsupported format: %w", err)
		}
		img, format = webpImg, "webp"
	}

	return Photo{
		Image:       img,
		Orientation: readOrientation(data),
		Format:      format,
	}, nil
}

// readOrientation returns the EXIF orientation or Up when none is present
func readOrientation(data []byte) orientation.Display {
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return orientation.Up
	}
	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return orientation.Up
	}
	v, err := tag.Int(0)
	if err != nil {
		return orientation.Up
	}
	d, err := orientation.FromPixel(orientation.Pixel(v))
	if err != nil {
		return orientation.Up
	}
	return d
}

// ToRGBA converts an image into the non-premultiplied RGBA layout the model
// input is packed from
func ToRGBA(img image.Image) (*image.NRGBA, error) {
	if img == nil {
		return nil, fmt.Errorf("%w: nil image", ErrUnsupportedImage)
	}
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, fmt.Errorf("%w: empty bounds %v", ErrUnsupportedImage, b)
	}
	if nrgba, ok := img.(*image.NRGBA); ok && b.Min == (image.Point{}) {
		return nrgba, nil
	}
	return imaging.Clone(img), nil
}

// ImageToBuffer packs an image into a 3-channel CHW buffer in [0,1]
func ImageToBuffer(img image.Image) (types.PixelBuffer, error) {
	nrgba, err := ToRGBA(img)
	if err != nil {
		return types.PixelBuffer{}, err
	}

	w, h := nrgba.Bounds().Dx(), nrgba.Bounds().Dy()
	plane := w * h
	data := make([]float32, 3*plane)
	for y := 0; y < h; y++ {
		row := nrgba.Pix[y*nrgba.Stride:]
		for x := 0; x < w; x++ {
			i := x * 4
			o := y*w + x
			data[o] = float32(row[i]) / 255
			data[plane+o] = float32(row[i+1]) / 255
			data[2*plane+o] = float32(row[i+2]) / 255
		}
	}

	return types.PixelBuffer{Width: w, Height: h, Channels: 3, Data: data}, nil
}

// BufferToImage converts a model output buffer into a displayable bitmap.
// One, three and four channel buffers are supported.
func BufferToImage(buf types.PixelBuffer) (*image.NRGBA, error) {
	if err := buf.Validate(); err != nil {
		return nil, err
	}
	if buf.Channels != 1 && buf.Channels != 3 && buf.Channels != 4 {
		return nil, fmt.Errorf("unsupported channel count %d", buf.Channels)
	}

	w, h := buf.Width, buf.Height
	plane := w * h
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			o := y*w + x
			c := color.NRGBA{A: 255}
			switch buf.Channels {
			case 1:
				v := toByte(buf.Data[o])
				c.R, c.G, c.B = v, v, v
			default:
				c.R = toByte(buf.Data[o])
				c.G = toByte(buf.Data[plane+o])
				c.B = toByte(buf.Data[2*plane+o])
				if buf.Channels == 4 {
					c.A = toByte(buf.Data[3*plane+o])
				}
			}
			dst.SetNRGBA(x, y, c)
		}
	}
	return dst, nil
}

// Encode writes img to w in the requested format
func (p *Processor) Encode(w io.Writer, img image.Image, opts types.EncodeOptions) error {
	switch NormalizeFormat(opts.Format) {
	case "webp":
		return webp.Encode(w, img, &webp.Options{Lossless: opts.Lossless, Quality: float32(opts.Quality)})
	case "png":
		enc := png.Encoder{CompressionLevel: png.BestCompression}
		return enc.Encode(w, img)
	default:
		return jpeg.Encode(w, img, &jpeg.Options{Quality: opts.Quality})
	}
}

// SaveImage saves an image to a file with the specified format and quality
func (p *Processor) SaveImage(img image.Image, path string, opts types.EncodeOptions) error {
	switch NormalizeFormat(opts.Format) {
	case "webp":
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		if err := p.Encode(f, img, opts); err != nil {
			f.Close()
			return err
		}
		return f.Close()
	case "png":
		return imaging.Save(img, path, imaging.PNGCompressionLevel(png.BestCompression))
	default:
		return imaging.Save(img, path, imaging.JPEGQuality(opts.Quality))
	}
}

// NormalizeFormat maps format names and extensions to jpg, png or webp
func NormalizeFormat(format string) string {
	switch strings.TrimPrefix(strings.ToLower(format), ".") {
	case "png":
		return "png"
	case "webp":
		return "webp"
	default:
		return "jpg"
	}
}

func toByte(v float32) uint8 {
	return uint8(math.Round(float64(clamp(v, 0, 1)) * 255))
}

func clamp(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
