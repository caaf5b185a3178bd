package boundary

import (
	"image"

	"golang.org/x/image/draw"
)

const (
	// AlphaThreshold: pixels at or below this opacity are treated as invisible.
	AlphaThreshold = 10

	// WhiteThreshold: a channel must be strictly below this to count as ink.
	// Anti-aliased near-white pixels (250..255 on every channel) are ignored.
	WhiteThreshold = 250
)

// PixelMargins holds the distance in pixels from each page edge to the
// nearest content pixel.
type PixelMargins struct {
	Top    int `json:"top"`
	Bottom int `json:"bottom"`
	Left   int `json:"left"`
	Right  int `json:"right"`

	// Empty is set when the raster has no content pixel at all. The four
	// offsets are then zero.
	Empty bool `json:"empty,omitempty"`
}

// Grid is a read-only view over 8-bit non-premultiplied RGBA samples stored
// row-major with a fixed stride.
type Grid struct {
	Width  int
	Height int
	Stride int
	Pix    []uint8
}

// NewGrid wraps an NRGBA image without copying its pixels.
func NewGrid(img *image.NRGBA) Grid {
	b := img.Bounds()
	return Grid{
		Width:  b.Dx(),
		Height: b.Dy(),
		Stride: img.Stride,
		Pix:    img.Pix[img.PixOffset(b.Min.X, b.Min.Y):],
	}
}

// FromImage converts any image into a Grid. NRGBA input is used directly,
// everything else is drawn into a fresh NRGBA buffer first.
func FromImage(img image.Image) Grid {
	if n, ok := img.(*image.NRGBA); ok {
		return NewGrid(n)
	}
	b := img.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return NewGrid(dst)
}

// At returns the r, g, b, a samples of the pixel at column x, row y.
func (g Grid) At(x, y int) (r, gr, b, a uint8) {
	i := y*g.Stride + x*4
	s := g.Pix[i : i+4 : i+4]
	return s[0], s[1], s[2], s[3]
}

// IsContent reports whether a sample is visible ink.
func IsContent(r, g, b, a uint8) bool {
	return a > AlphaThreshold && (r < WhiteThreshold || g < WhiteThreshold || b < WhiteThreshold)
}

type axis int

const (
	rows axis = iota
	cols
)

// scan walks lines along ax (rows or columns), from the near or the far
// edge, and returns how many whole lines were skipped before the first line
// holding a content pixel. ok is false when nothing was found.
func scan(g Grid, ax axis, reverse bool) (offset int, ok bool) {
	lines, span := g.Height, g.Width
	if ax == cols {
		lines, span = g.Width, g.Height
	}
	for n := 0; n < lines; n++ {
		line := n
		if reverse {
			line = lines - 1 - n
		}
		for k := 0; k < span; k++ {
			x, y := k, line
			if ax == cols {
				x, y = line, k
			}
			if IsContent(g.At(x, y)) {
				return n, true
			}
		}
	}
	return 0, false
}

// Detect measures the blank border of the raster. A raster without any
// content yields zero on every edge with Empty set.
func Detect(g Grid) PixelMargins {
	var m PixelMargins
	var found bool
	if m.Top, found = scan(g, rows, false); !found {
		return PixelMargins{Empty: true}
	}
	m.Bottom, _ = scan(g, rows, true)
	m.Left, _ = scan(g, cols, false)
	m.Right, _ = scan(g, cols, true)
	return m
}
