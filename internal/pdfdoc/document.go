// Package pdfdoc loads PDF bytes and rasterizes pages for margin analysis.
package pdfdoc

import (
	"bytes"
	"fmt"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gen2brain/go-fitz"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/rs/zerolog/log"

	"github.com/local/margincheck/internal/analysis"
)

const (
	// DefaultScale renders at two pixels per point (144 DPI).
	DefaultScale = 2.0

	pointsPerInch = 72.0
	pdfMIME       = "application/pdf"
)

// Geometry is the native size of one page in points.
type Geometry struct {
	Width  float64
	Height float64
}

// Document is a loaded PDF. It satisfies analysis.Source.
type Document struct {
	doc   *fitz.Document
	dims  []Geometry
	scale float64
}

// Option customizes Load.
type Option func(*Document)

// WithScale sets the render scale in pixels per point.
func WithScale(scale float64) Option {
	return func(d *Document) {
		if scale > 0 {
			d.scale = scale
		}
	}
}

// Sniff returns the detected MIME type of data and whether it is a PDF.
func Sniff(data []byte) (string, bool) {
	mt := mimetype.Detect(data)
	return mt.String(), mt.Is(pdfMIME)
}

// Load parses data as a PDF. Anything that is not a readable PDF is reported
// as analysis.InvalidInput.
func Load(data []byte, opts ...Option) (*Document, error) {
	if len(data) == 0 {
		return nil, analysis.Errorf(analysis.InvalidInput, nil, "empty input")
	}
	if mt, ok := Sniff(data); !ok {
		return nil, analysis.Errorf(analysis.InvalidInput, nil, "expected %s, got %s", pdfMIME, mt)
	}

	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, analysis.Errorf(analysis.InvalidInput, err, "failed to open PDF")
	}
	d := &Document{doc: doc, scale: DefaultScale}
	for _, o := range opts {
		o(d)
	}

	d.dims, err = pageDims(data)
	if err != nil || len(d.dims) != doc.NumPage() {
		log.Warn().Err(err).Int("pdfcpu_pages", len(d.dims)).Int("fitz_pages", doc.NumPage()).
			Msg("pdfcpu page geometry unavailable; using renderer bounds")
		d.dims = nil
	}

	log.Debug().Int("pages", doc.NumPage()).Float64("scale", d.scale).Msg("PDF loaded")
	return d, nil
}

// pageDims reads the media box of every page with pdfcpu.
func pageDims(data []byte) ([]Geometry, error) {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	dims, err := api.PageDims(bytes.NewReader(data), conf)
	if err != nil {
		return nil, fmt.Errorf("pdfcpu page dims: %w", err)
	}
	out := make([]Geometry, len(dims))
	for i, dim := range dims {
		out[i] = Geometry{Width: dim.Width, Height: dim.Height}
	}
	return out, nil
}

// NumPages returns the page count.
func (d *Document) NumPages() int { return d.doc.NumPage() }

// Scale returns the render scale in pixels per point.
func (d *Document) Scale() float64 { return d.scale }

// Geometry returns the native size of the 1-based page n.
func (d *Document) Geometry(n int) (Geometry, error) {
	if n < 1 || n > d.NumPages() {
		return Geometry{}, fmt.Errorf("page %d out of range (document has %d pages)", n, d.NumPages())
	}
	if d.dims != nil {
		return d.dims[n-1], nil
	}
	// go-fitz uses 0-based indexing; bounds are in points
	b, err := d.doc.Bound(n - 1)
	if err != nil {
		return Geometry{}, err
	}
	return Geometry{Width: float64(b.Dx()), Height: float64(b.Dy())}, nil
}

// Page renders the 1-based page n at the document's scale.
func (d *Document) Page(n int) (analysis.PageImage, error) {
	g, err := d.Geometry(n)
	if err != nil {
		return analysis.PageImage{}, analysis.Errorf(analysis.RenderFailure, err, "page %d geometry", n)
	}
	img, err := d.doc.ImageDPI(n-1, d.scale*pointsPerInch)
	if err != nil {
		return analysis.PageImage{}, analysis.Errorf(analysis.RenderFailure, err, "failed to render page %d", n)
	}
	log.Debug().
		Int("page", n).
		Int("width", img.Bounds().Dx()).
		Int("height", img.Bounds().Dy()).
		Float64("dpi", d.scale*pointsPerInch).
		Msg("rendered page")
	return analysis.PageImage{WidthPt: g.Width, HeightPt: g.Height, Raster: img, Scale: d.scale}, nil
}

// Close releases renderer resources.
func (d *Document) Close() error { return d.doc.Close() }
