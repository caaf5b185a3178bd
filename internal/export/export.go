// Package export serializes analysis reports as JSON and CSV.
package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/local/margincheck/internal/analysis"
)

// Format tags an export payload.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

// ParseFormat accepts "json" or "csv".
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatJSON, FormatCSV:
		return Format(s), nil
	}
	return "", fmt.Errorf("unknown export format %q", s)
}

// Filename is the suggested download name for a format.
func (f Format) Filename() string { return "pdf-margin-analysis." + string(f) }

// ContentType is the MIME type of a format.
func (f Format) ContentType() string {
	if f == FormatCSV {
		return "text/csv"
	}
	return "application/json"
}

// Header is the CSV column order.
var Header = []string{
	"Page",
	"Width(mm)",
	"Height(mm)",
	"Top Margin(mm)",
	"Bottom Margin(mm)",
	"Left Margin(mm)",
	"Right Margin(mm)",
	"Trim Width(mm)",
	"Trim Height(mm)",
	"Has Top Bleed",
	"Has Bottom Bleed",
	"Has Left Bleed",
	"Has Right Bleed",
}

type metadata struct {
	TotalPages      int     `json:"totalPages"`
	BleedSize       float64 `json:"bleedSize"`
	MarginThreshold float64 `json:"marginThreshold"`
	AnalysisDate    string  `json:"analysisDate"`
}

type summary struct {
	Stats             map[analysis.Edge]analysis.EdgeStats `json:"stats"`
	Uniform           analysis.Uniformity                  `json:"uniform"`
	InconsistentEdges []analysis.Edge                      `json:"inconsistentEdges"`
}

type page struct {
	PageNumber int              `json:"pageNumber"`
	Dimensions analysis.Size    `json:"dimensions"`
	Margins    analysis.Margins `json:"margins"`
	TrimArea   analysis.Size    `json:"trimArea"`
	Bleed      analysis.Bleed   `json:"bleed"`
	Consistent bool             `json:"consistent"`
}

// Document is the structured export.
type Document struct {
	Metadata metadata `json:"metadata"`
	Summary  summary  `json:"summary"`
	Pages    []page   `json:"pages"`
}

// Build assembles the structured export of r stamped with generated.
func Build(r *analysis.Report, generated time.Time) Document {
	sum := analysis.Summarize(r)
	doc := Document{
		Metadata: metadata{
			TotalPages:      len(r.Pages),
			BleedSize:       r.Settings.BleedSize,
			MarginThreshold: r.Settings.MarginThreshold,
			AnalysisDate:    generated.UTC().Format(time.RFC3339Nano),
		},
		Summary: summary{
			Stats:             sum.Stats,
			Uniform:           sum.Uniformity,
			InconsistentEdges: sum.InconsistentEdges,
		},
		Pages: make([]page, 0, len(r.Pages)),
	}
	if doc.Summary.InconsistentEdges == nil {
		doc.Summary.InconsistentEdges = []analysis.Edge{}
	}
	for i, p := range r.Pages {
		doc.Pages = append(doc.Pages, page{
			PageNumber: p.PageNumber,
			Dimensions: p.Page,
			Margins:    p.Margins,
			TrimArea:   p.TrimArea,
			Bleed:      p.Bleed,
			Consistent: sum.Consistent[i],
		})
	}
	return doc
}

// JSON renders the structured export, indented by two spaces.
func JSON(r *analysis.Report, generated time.Time) ([]byte, error) {
	if r == nil {
		return nil, analysis.ErrNoDocument
	}
	return json.MarshalIndent(Build(r, generated), "", "  ")
}

// CSV renders the tabular export: a header row plus one row per page.
func CSV(r *analysis.Report) ([]byte, error) {
	if r == nil {
		return nil, analysis.ErrNoDocument
	}
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(Header); err != nil {
		return nil, err
	}
	for _, p := range r.Pages {
		row := []string{
			strconv.Itoa(p.PageNumber),
			p.Page.Width.String(),
			p.Page.Height.String(),
			p.Margins.Top.String(),
			p.Margins.Bottom.String(),
			p.Margins.Left.String(),
			p.Margins.Right.String(),
			p.TrimArea.Width.String(),
			p.TrimArea.Height.String(),
			strconv.FormatBool(p.Bleed.Top),
			strconv.FormatBool(p.Bleed.Bottom),
			strconv.FormatBool(p.Bleed.Left),
			strconv.FormatBool(p.Bleed.Right),
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

// Render produces the payload for one format.
func Render(r *analysis.Report, f Format, generated time.Time) ([]byte, error) {
	switch f {
	case FormatJSON:
		return JSON(r, generated)
	case FormatCSV:
		return CSV(r)
	}
	return nil, fmt.Errorf("unknown export format %q", f)
}
