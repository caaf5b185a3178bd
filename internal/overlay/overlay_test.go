package overlay

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/local/margincheck/internal/boundary"
)

func white(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 255
	}
	return img
}

func isRed(c color.NRGBA) bool { return c.R > 200 && c.G < 100 && c.B < 100 }

func TestRender_DownscalesWideRasters(t *testing.T) {
	out := Render(white(800, 1000), boundary.PixelMargins{Empty: true})
	assert.Equal(t, image.Rect(0, 0, 400, 500), out.Bounds())

	out = Render(white(200, 300), boundary.PixelMargins{Empty: true})
	assert.Equal(t, image.Rect(0, 0, 200, 300), out.Bounds())
}

func TestRender_DrawsDashedLines(t *testing.T) {
	m := boundary.PixelMargins{Top: 40, Bottom: 60, Left: 20, Right: 30}
	out := Render(white(200, 300), m)

	// dashes start at the edge: on for 5, off for 5
	assert.True(t, isRed(out.NRGBAAt(2, 40)))
	assert.False(t, isRed(out.NRGBAAt(7, 40)))
	assert.True(t, isRed(out.NRGBAAt(12, 239)))
	assert.True(t, isRed(out.NRGBAAt(20, 1)))
	assert.True(t, isRed(out.NRGBAAt(169, 3)))

	// the interior is untouched
	c := out.NRGBAAt(100, 150)
	assert.False(t, isRed(c))
	assert.GreaterOrEqual(t, c.G, uint8(250))
}

func TestRender_BlankPageHasNoLines(t *testing.T) {
	out := Render(white(50, 50), boundary.PixelMargins{Empty: true})
	for y := 0; y < 50; y++ {
		for x := 0; x < 50; x++ {
			require.False(t, isRed(out.NRGBAAt(x, y)))
		}
	}
}

func TestEncode(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, white(30, 20), boundary.PixelMargins{Top: 1, Bottom: 1, Left: 1, Right: 1}))
	img, err := png.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 30, 20), img.Bounds())
}
