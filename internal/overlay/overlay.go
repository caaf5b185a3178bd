// Package overlay draws detected margins onto a page preview.
package overlay

import (
	"image"
	"image/color"
	"image/png"
	"io"
	"math"

	"golang.org/x/image/draw"

	"github.com/local/margincheck/internal/boundary"
)

const (
	// MaxWidth is the preview width; larger rasters are scaled down to it.
	MaxWidth = 400

	lineWidth = 2
	dashOn    = 5
	dashOff   = 5
)

// LineColor is the margin marker colour.
var LineColor = color.NRGBA{R: 255, A: 204}

// Render returns a preview of raster with dashed lines on the four content
// boundaries given by m. Blank pages get no lines.
func Render(raster image.Image, m boundary.PixelMargins) *image.NRGBA {
	b := raster.Bounds()
	scale := 1.0
	if b.Dx() > MaxWidth {
		scale = float64(MaxWidth) / float64(b.Dx())
	}
	w := int(math.Round(float64(b.Dx()) * scale))
	h := int(math.Round(float64(b.Dy()) * scale))
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}

	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), raster, b, draw.Src, nil)
	if m.Empty {
		return dst
	}

	at := func(px int) int { return int(math.Round(float64(px) * scale)) }
	horizontal(dst, at(m.Top))
	horizontal(dst, h-at(m.Bottom))
	vertical(dst, at(m.Left))
	vertical(dst, w-at(m.Right))
	return dst
}

// Encode writes the preview as PNG.
func Encode(w io.Writer, raster image.Image, m boundary.PixelMargins) error {
	return png.Encode(w, Render(raster, m))
}

var ink = image.NewUniform(LineColor)

func horizontal(dst *image.NRGBA, y int) {
	width := dst.Bounds().Dx()
	for x := 0; x < width; x += dashOn + dashOff {
		r := image.Rect(x, y-lineWidth/2, x+dashOn, y+lineWidth/2).Intersect(dst.Bounds())
		draw.Draw(dst, r, ink, image.Point{}, draw.Over)
	}
}

func vertical(dst *image.NRGBA, x int) {
	height := dst.Bounds().Dy()
	for y := 0; y < height; y += dashOn + dashOff {
		r := image.Rect(x-lineWidth/2, y, x+lineWidth/2, y+dashOn).Intersect(dst.Bounds())
		draw.Draw(dst, r, ink, image.Point{}, draw.Over)
	}
}
