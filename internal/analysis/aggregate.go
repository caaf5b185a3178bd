package analysis

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/local/margincheck/internal/units"
)

// Edge names one side of a page.
type Edge string

const (
	Top    Edge = "top"
	Bottom Edge = "bottom"
	Left   Edge = "left"
	Right  Edge = "right"
)

// AllEdges in reporting order.
var AllEdges = []Edge{Top, Bottom, Left, Right}

// Report is the result of one complete analysis run.
type Report struct {
	Settings Settings
	Pages    []PageResult
}

// Analyze measures every page of src in order. The first failing page aborts
// the run and no report is returned.
func Analyze(src Source, s Settings) (*Report, error) {
	if src == nil {
		return nil, ErrNoDocument
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	n := src.NumPages()
	if n <= 0 {
		return nil, Errorf(InvalidInput, nil, "document has no pages")
	}

	start := time.Now()
	rep := &Report{Settings: s, Pages: make([]PageResult, 0, n)}
	for i := 1; i <= n; i++ {
		pg, err := src.Page(i)
		if err != nil {
			if KindOf(err) == "" {
				err = Errorf(RenderFailure, err, "page %d", i)
			}
			return nil, err
		}
		res, err := AnalyzePage(i, pg, s)
		if err != nil {
			return nil, err
		}
		if res.Blank() {
			log.Warn().Int("page", i).Msg("no content detected; margins reported as zero")
		}
		log.Debug().
			Int("page", i).
			Str("top", res.Margins.Top.String()).
			Str("bottom", res.Margins.Bottom.String()).
			Str("left", res.Margins.Left.String()).
			Str("right", res.Margins.Right.String()).
			Msg("page analyzed")
		rep.Pages = append(rep.Pages, res)
	}
	log.Info().Int("pages", n).Dur("took", time.Since(start)).Msg("document analyzed")
	return rep, nil
}

// EdgeStats summarises one edge across all pages.
type EdgeStats struct {
	Min units.Millimeters `json:"min"`
	Max units.Millimeters `json:"max"`
	Avg units.Millimeters `json:"avg"`
}

// Range is max-min at display precision.
func (s EdgeStats) Range() units.Millimeters { return units.Sub(s.Max, s.Min) }

// Uniformity holds the per-edge verdicts and their conjunction.
type Uniformity struct {
	Top    bool `json:"top"`
	Bottom bool `json:"bottom"`
	Left   bool `json:"left"`
	Right  bool `json:"right"`
	All    bool `json:"all"`
}

func (u Uniformity) Get(e Edge) bool {
	switch e {
	case Top:
		return u.Top
	case Bottom:
		return u.Bottom
	case Left:
		return u.Left
	default:
		return u.Right
	}
}

// Summary is everything derived from a Report.
type Summary struct {
	Stats             map[Edge]EdgeStats `json:"stats"`
	Uniformity        Uniformity         `json:"uniform"`
	Consistent        []bool             `json:"-"`
	InconsistentEdges []Edge             `json:"inconsistentEdges"`
	BleedPages        []int              `json:"bleedPages"`
	BlankPages        []int              `json:"blankPages,omitempty"`
}

// Stats computes min, max and avg of one edge over the stored page values.
func (r *Report) Stats(e Edge) EdgeStats {
	if r == nil || len(r.Pages) == 0 {
		return EdgeStats{}
	}
	first := r.Pages[0].Margins.Get(e)
	st := EdgeStats{Min: first, Max: first}
	var sum float64
	for _, p := range r.Pages {
		v := p.Margins.Get(e)
		if v < st.Min {
			st.Min = v
		}
		if v > st.Max {
			st.Max = v
		}
		sum += float64(v)
	}
	st.Avg = units.MM(sum / float64(len(r.Pages)))
	return st
}

// Uniform reports whether one edge varies by at most the run's threshold.
func (r *Report) Uniform(e Edge) bool {
	if r == nil || len(r.Pages) <= 1 {
		return true
	}
	return float64(r.Stats(e).Range()) <= r.Settings.MarginThreshold
}

// Uniformity evaluates all four edges.
func (r *Report) Uniformity() Uniformity {
	u := Uniformity{
		Top:    r.Uniform(Top),
		Bottom: r.Uniform(Bottom),
		Left:   r.Uniform(Left),
		Right:  r.Uniform(Right),
	}
	u.All = u.Top && u.Bottom && u.Left && u.Right
	return u
}

// PageConsistent reports whether the page at index i stays within the
// threshold of the first page on every edge.
func (r *Report) PageConsistent(i int) bool {
	if r == nil || len(r.Pages) <= 1 {
		return true
	}
	if i < 0 || i >= len(r.Pages) {
		return false
	}
	first, page := r.Pages[0].Margins, r.Pages[i].Margins
	for _, e := range AllEdges {
		if float64(units.Sub(page.Get(e), first.Get(e)).Abs()) > r.Settings.MarginThreshold {
			return false
		}
	}
	return true
}

// Summarize derives statistics, verdicts and classifications.
func Summarize(r *Report) Summary {
	s := Summary{Stats: make(map[Edge]EdgeStats, len(AllEdges))}
	if r == nil {
		s.Uniformity = Uniformity{Top: true, Bottom: true, Left: true, Right: true, All: true}
		return s
	}
	for _, e := range AllEdges {
		s.Stats[e] = r.Stats(e)
	}
	s.Uniformity = r.Uniformity()
	for _, e := range AllEdges {
		if !s.Uniformity.Get(e) {
			s.InconsistentEdges = append(s.InconsistentEdges, e)
		}
	}
	s.Consistent = make([]bool, len(r.Pages))
	for i, p := range r.Pages {
		s.Consistent[i] = r.PageConsistent(i)
		if p.Bleed.Any() {
			s.BleedPages = append(s.BleedPages, p.PageNumber)
		}
		if p.Blank() {
			s.BlankPages = append(s.BlankPages, p.PageNumber)
		}
	}
	return s
}

// Verdict is the one-line uniformity message shown to users.
func (s Summary) Verdict(threshold float64) string {
	if len(s.InconsistentEdges) == 0 {
		return fmt.Sprintf("All margins are uniform across all pages (within %gmm threshold)", threshold)
	}
	names := make([]string, len(s.InconsistentEdges))
	for i, e := range s.InconsistentEdges {
		names[i] = string(e)
	}
	return fmt.Sprintf("Inconsistent margins detected: %s. Variation exceeds %gmm threshold",
		strings.Join(names, ", "), threshold)
}
