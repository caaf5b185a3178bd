// Package inspector keeps the state of an interactive margin inspection:
// the active settings, the loaded document and the last successful report.
package inspector

import (
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/local/margincheck/internal/analysis"
	"github.com/local/margincheck/internal/export"
)

// Document is a loaded, renderable document.
type Document interface {
	analysis.Source
	io.Closer
}

// Loader turns raw bytes into a Document.
type Loader func(data []byte) (Document, error)

// Observer is notified after every run. It is optional.
type Observer interface {
	RunFinished(pages int, took time.Duration, err error)
}

// Inspector is safe for concurrent use. Analyses themselves are serialized.
type Inspector struct {
	load     Loader
	observer Observer

	mu       sync.Mutex
	settings analysis.Settings
	doc      Document
	report   *analysis.Report

	run sync.Mutex
}

// New creates an Inspector starting from the given settings. Invalid
// settings fall back to the defaults.
func New(load Loader, initial analysis.Settings) *Inspector {
	if err := initial.Validate(); err != nil {
		log.Warn().Err(err).Msg("invalid initial settings; using defaults")
		initial = analysis.DefaultSettings()
	}
	return &Inspector{load: load, settings: initial}
}

// SetObserver installs a run observer.
func (in *Inspector) SetObserver(o Observer) { in.observer = o }

// Settings returns the settings the next run will use.
func (in *Inspector) Settings() analysis.Settings {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.settings
}

// SetBleedSize updates the bleed size. An invalid value leaves the previous
// one in place.
func (in *Inspector) SetBleedSize(v float64) error {
	if err := analysis.ValidateBleedSize(v); err != nil {
		return err
	}
	in.mu.Lock()
	in.settings.BleedSize = v
	in.mu.Unlock()
	return nil
}

// SetMarginThreshold updates the uniformity threshold.
func (in *Inspector) SetMarginThreshold(v float64) error {
	if err := analysis.ValidateMarginThreshold(v); err != nil {
		return err
	}
	in.mu.Lock()
	in.settings.MarginThreshold = v
	in.mu.Unlock()
	return nil
}

// SetSettings replaces both values atomically.
func (in *Inspector) SetSettings(s analysis.Settings) error {
	if err := s.Validate(); err != nil {
		return err
	}
	in.mu.Lock()
	in.settings = s
	in.mu.Unlock()
	return nil
}

// Setting names accepted by SetSettingString.
const (
	SettingBleedSize       = "bleedSize"
	SettingMarginThreshold = "marginThreshold"
)

// SetSettingString parses and applies a user-entered value.
func (in *Inspector) SetSettingString(name, value string) error {
	v, err := analysis.ParseMillimeters(value)
	if err != nil {
		return err
	}
	switch name {
	case SettingBleedSize:
		return in.SetBleedSize(v)
	case SettingMarginThreshold:
		return in.SetMarginThreshold(v)
	}
	return analysis.Errorf(analysis.Misconfiguration, nil, "unknown setting %q", name)
}

// Load replaces the current document. The previous report is kept until the
// next successful analysis.
func (in *Inspector) Load(data []byte) error {
	doc, err := in.load(data)
	if err != nil {
		if analysis.KindOf(err) == "" {
			err = analysis.Errorf(analysis.InvalidInput, err, "failed to load document")
		}
		return err
	}
	in.mu.Lock()
	prev := in.doc
	in.doc = doc
	in.mu.Unlock()
	if prev != nil {
		_ = prev.Close()
	}
	log.Info().Int("pages", doc.NumPages()).Msg("document loaded")
	return nil
}

// Loaded reports whether a document is available for analysis.
func (in *Inspector) Loaded() bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.doc != nil
}

// Analyze runs a full analysis of the loaded document with a snapshot of the
// current settings. On failure the previous report stays in place.
func (in *Inspector) Analyze() (*analysis.Report, error) {
	in.run.Lock()
	defer in.run.Unlock()

	in.mu.Lock()
	doc, s := in.doc, in.settings
	in.mu.Unlock()
	if doc == nil {
		return nil, analysis.ErrNoDocument
	}

	start := time.Now()
	rep, err := analysis.Analyze(doc, s)
	if in.observer != nil {
		in.observer.RunFinished(doc.NumPages(), time.Since(start), err)
	}
	if err != nil {
		log.Error().Err(err).Str("kind", string(analysis.KindOf(err))).Msg("analysis failed")
		return nil, err
	}

	in.mu.Lock()
	in.report = rep
	in.mu.Unlock()
	return rep, nil
}

// Report returns the last successful report, or nil.
func (in *Inspector) Report() *analysis.Report {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.report
}

// Export renders the last report.
func (in *Inspector) Export(f export.Format, now time.Time) ([]byte, error) {
	rep := in.Report()
	if rep == nil {
		return nil, analysis.Errorf(analysis.InvalidInput, nil, "nothing analyzed yet")
	}
	return export.Render(rep, f, now)
}

// Close releases the loaded document.
func (in *Inspector) Close() error {
	in.mu.Lock()
	doc := in.doc
	in.doc = nil
	in.mu.Unlock()
	if doc != nil {
		return doc.Close()
	}
	return nil
}
