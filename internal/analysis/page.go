package analysis

import (
	"image"

	"github.com/local/margincheck/internal/boundary"
	"github.com/local/margincheck/internal/units"
)

// PageImage is one rasterized page as produced by a Source.
type PageImage struct {
	// Native page geometry in PDF points.
	WidthPt  float64
	HeightPt float64
	// Raster of the page and the pixels-per-point scale it was rendered at.
	Raster image.Image
	Scale  float64
}

// Source gives sequential access to the pages of a loaded document.
type Source interface {
	NumPages() int
	// Page renders the 1-based page n. Errors abort the run.
	Page(n int) (PageImage, error)
}

// Margins are the four blank borders of a page.
type Margins struct {
	Top    units.Millimeters `json:"top"`
	Bottom units.Millimeters `json:"bottom"`
	Left   units.Millimeters `json:"left"`
	Right  units.Millimeters `json:"right"`
}

// Get returns the margin of one edge.
func (m Margins) Get(e Edge) units.Millimeters {
	switch e {
	case Top:
		return m.Top
	case Bottom:
		return m.Bottom
	case Left:
		return m.Left
	default:
		return m.Right
	}
}

// Size is a width/height pair in millimetres.
type Size struct {
	Width  units.Millimeters `json:"width"`
	Height units.Millimeters `json:"height"`
}

// Bleed records which edges have content within BleedSize of the trim edge.
type Bleed struct {
	Size   float64 `json:"size"`
	Top    bool    `json:"hasTopBleed"`
	Bottom bool    `json:"hasBottomBleed"`
	Left   bool    `json:"hasLeftBleed"`
	Right  bool    `json:"hasRightBleed"`
}

// Any reports whether at least one edge bleeds.
func (b Bleed) Any() bool { return b.Top || b.Bottom || b.Left || b.Right }

// Edges lists the bleeding edges in top, bottom, left, right order.
func (b Bleed) Edges() []Edge {
	var out []Edge
	for _, e := range AllEdges {
		if b.Has(e) {
			out = append(out, e)
		}
	}
	return out
}

// Has reports whether edge e bleeds.
func (b Bleed) Has(e Edge) bool {
	switch e {
	case Top:
		return b.Top
	case Bottom:
		return b.Bottom
	case Left:
		return b.Left
	default:
		return b.Right
	}
}

// PageResult is the immutable measurement of one page.
type PageResult struct {
	PageNumber int
	Page       Size
	Margins    Margins
	Bleed      Bleed
	TrimArea   Size

	// Pixels keeps the raw detector output for overlay drawing only.
	Pixels boundary.PixelMargins
}

// Blank reports whether the page had no detectable content.
func (p PageResult) Blank() bool { return p.Pixels.Empty }

// AnalyzePage measures a single page.
func AnalyzePage(n int, pg PageImage, s Settings) (PageResult, error) {
	if pg.Raster == nil {
		return PageResult{}, Errorf(RenderFailure, nil, "page %d: no raster", n)
	}
	if pg.Scale <= 0 {
		return PageResult{}, Errorf(RenderFailure, nil, "page %d: invalid render scale %v", n, pg.Scale)
	}

	px := boundary.Detect(boundary.FromImage(pg.Raster))

	res := PageResult{
		PageNumber: n,
		Page: Size{
			Width:  units.PointsToMM(pg.WidthPt),
			Height: units.PointsToMM(pg.HeightPt),
		},
		Margins: Margins{
			Top:    units.PixelsToMM(px.Top, pg.Scale),
			Bottom: units.PixelsToMM(px.Bottom, pg.Scale),
			Left:   units.PixelsToMM(px.Left, pg.Scale),
			Right:  units.PixelsToMM(px.Right, pg.Scale),
		},
		Pixels: px,
	}

	// Trim dimensions are not clamped: overlapping margins give a negative size.
	res.TrimArea = Size{
		Width:  units.MM(float64(res.Page.Width) - float64(res.Margins.Left) - float64(res.Margins.Right)),
		Height: units.MM(float64(res.Page.Height) - float64(res.Margins.Top) - float64(res.Margins.Bottom)),
	}

	res.Bleed = Bleed{
		Size:   s.BleedSize,
		Top:    float64(res.Margins.Top) <= s.BleedSize,
		Bottom: float64(res.Margins.Bottom) <= s.BleedSize,
		Left:   float64(res.Margins.Left) <= s.BleedSize,
		Right:  float64(res.Margins.Right) <= s.BleedSize,
	}
	return res, nil
}
