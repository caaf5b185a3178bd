package inspector

import (
	"errors"
	"image"
	"image/color"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/local/margincheck/internal/analysis"
	"github.com/local/margincheck/internal/export"
)

type stubDoc struct {
	pages  []analysis.PageImage
	fail   bool
	closed bool
}

func (d *stubDoc) NumPages() int { return len(d.pages) }

func (d *stubDoc) Page(n int) (analysis.PageImage, error) {
	if d.fail && n == len(d.pages) {
		return analysis.PageImage{}, errors.New("render exploded")
	}
	return d.pages[n-1], nil
}

func (d *stubDoc) Close() error { d.closed = true; return nil }

type recorder struct {
	runs []error
}

func (r *recorder) RunFinished(pages int, took time.Duration, err error) { r.runs = append(r.runs, err) }

func page(left int) analysis.PageImage {
	img := image.NewNRGBA(image.Rect(0, 0, 100, 100))
	for y := 0; y < 100; y++ {
		for x := 0; x < 100; x++ {
			c := color.NRGBA{R: 255, G: 255, B: 255, A: 255}
			if x >= left && x < 90 && y >= 10 && y < 90 {
				c = color.NRGBA{A: 255}
			}
			img.SetNRGBA(x, y, c)
		}
	}
	return analysis.PageImage{WidthPt: 100, HeightPt: 100, Scale: 1, Raster: img}
}

func newInspector(docs ...*stubDoc) *Inspector {
	i := 0
	return New(func(data []byte) (Document, error) {
		if string(data) == "garbage" {
			return nil, errors.New("not a pdf")
		}
		d := docs[i]
		i++
		return d, nil
	}, analysis.DefaultSettings())
}

func TestInspector_AnalyzeWithoutDocument(t *testing.T) {
	in := newInspector()
	_, err := in.Analyze()
	assert.True(t, analysis.IsKind(err, analysis.InvalidInput))
	assert.False(t, in.Loaded())
}

func TestInspector_LoadInvalidInput(t *testing.T) {
	in := newInspector()
	err := in.Load([]byte("garbage"))
	assert.True(t, analysis.IsKind(err, analysis.InvalidInput))
	assert.False(t, in.Loaded())
}

func TestInspector_Settings(t *testing.T) {
	in := newInspector()
	assert.Equal(t, analysis.DefaultSettings(), in.Settings())

	require.NoError(t, in.SetSettingString(SettingBleedSize, "2.5"))
	require.NoError(t, in.SetMarginThreshold(1))
	assert.Equal(t, analysis.Settings{BleedSize: 2.5, MarginThreshold: 1}, in.Settings())

	err := in.SetSettingString(SettingMarginThreshold, "five")
	assert.True(t, analysis.IsKind(err, analysis.Misconfiguration))
	err = in.SetBleedSize(-3)
	assert.True(t, analysis.IsKind(err, analysis.Misconfiguration))
	err = in.SetSettingString("gutter", "3")
	assert.True(t, analysis.IsKind(err, analysis.Misconfiguration))
	assert.Equal(t, analysis.Settings{BleedSize: 2.5, MarginThreshold: 1}, in.Settings())

	err = in.SetSettings(analysis.Settings{BleedSize: 1, MarginThreshold: 1000})
	assert.True(t, analysis.IsKind(err, analysis.Misconfiguration))
	assert.Equal(t, 2.5, in.Settings().BleedSize)
}

func TestInspector_InvalidInitialSettingsFallBack(t *testing.T) {
	in := New(nil, analysis.Settings{BleedSize: -1, MarginThreshold: 5})
	assert.Equal(t, analysis.DefaultSettings(), in.Settings())
}

func TestInspector_FailedRunKeepsPreviousReport(t *testing.T) {
	good := &stubDoc{pages: []analysis.PageImage{page(10), page(12)}}
	bad := &stubDoc{pages: []analysis.PageImage{page(10), page(10)}, fail: true}
	in := newInspector(good, bad)
	rec := &recorder{}
	in.SetObserver(rec)

	require.NoError(t, in.Load([]byte("%PDF")))
	first, err := in.Analyze()
	require.NoError(t, err)
	require.Len(t, first.Pages, 2)

	require.NoError(t, in.Load([]byte("%PDF")))
	assert.True(t, good.closed)

	_, err = in.Analyze()
	assert.True(t, analysis.IsKind(err, analysis.RenderFailure))
	assert.Same(t, first, in.Report())
	require.Len(t, rec.runs, 2)
	assert.NoError(t, rec.runs[0])
	assert.Error(t, rec.runs[1])

	require.NoError(t, in.Close())
	assert.True(t, bad.closed)
}

func TestInspector_SettingsApplyToNextRunOnly(t *testing.T) {
	doc := &stubDoc{pages: []analysis.PageImage{page(10)}}
	in := newInspector(doc)
	require.NoError(t, in.Load([]byte("%PDF")))

	rep, err := in.Analyze()
	require.NoError(t, err)
	require.NoError(t, in.SetBleedSize(10))

	assert.Equal(t, 3.0, rep.Settings.BleedSize)
	assert.Equal(t, 3.0, rep.Pages[0].Bleed.Size)
	assert.False(t, rep.Pages[0].Bleed.Top)

	rep2, err := in.Analyze()
	require.NoError(t, err)
	assert.Equal(t, 10.0, rep2.Pages[0].Bleed.Size)
	assert.True(t, rep2.Pages[0].Bleed.Top)
}

func TestInspector_Export(t *testing.T) {
	doc := &stubDoc{pages: []analysis.PageImage{page(10), page(20), page(30)}}
	in := newInspector(doc)

	_, err := in.Export(export.FormatCSV, time.Now())
	assert.Error(t, err)

	require.NoError(t, in.Load([]byte("%PDF")))
	_, err = in.Analyze()
	require.NoError(t, err)

	out, err := in.Export(export.FormatCSV, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 4, strings.Count(string(out), "\n"))
}
