package tui

import (
	"fmt"
	"image"
	"image/color"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/disintegration/imaging"
)

// Preview renders img inside width x height terminal cells. Each cell is a
// half block carrying two vertically stacked pixels.
func Preview(img image.Image, width, height int) string {
	if img == nil || width <= 0 || height <= 0 {
		return ""
	}
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return ""
	}

	thumb := imaging.Fit(img, width, height*2, imaging.Box)
	tb := thumb.Bounds()

	var sb strings.Builder
	for y := tb.Min.Y; y < tb.Max.Y; y += 2 {
		if y > tb.Min.Y {
			sb.WriteString("\n")
		}
		for x := tb.Min.X; x < tb.Max.X; x++ {
			top := thumb.NRGBAAt(x, y)
			bottom := top
			if y+1 < tb.Max.Y {
				bottom = thumb.NRGBAAt(x, y+1)
			}
			sb.WriteString(lipgloss.NewStyle().
				Foreground(hexColor(top)).
				Background(hexColor(bottom)).
				Render("▀"))
		}
	}
	return sb.String()
}

func hexColor(c color.NRGBA) lipgloss.Color {
	return lipgloss.Color(fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B))
}
