package pdfdoc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/local/margincheck/internal/analysis"
)

func TestLoad_RejectsNonPDF(t *testing.T) {
	_, err := Load([]byte("hello, this is plain text"))
	require.Error(t, err)
	assert.True(t, analysis.IsKind(err, analysis.InvalidInput))

	_, err = Load(nil)
	assert.True(t, analysis.IsKind(err, analysis.InvalidInput))
}

func TestSniff(t *testing.T) {
	mt, ok := Sniff(Synthesize(100, 100, ""))
	assert.True(t, ok)
	assert.Equal(t, "application/pdf", mt)

	_, ok = Sniff([]byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'})
	assert.False(t, ok)
}

func TestDocument_AnalyzeRenderedPage(t *testing.T) {
	data := Synthesize(100, 200, "0 0 0 rg 10 20 30 40 re f")
	doc, err := Load(data, WithScale(1))
	require.NoError(t, err)
	defer doc.Close()

	require.Equal(t, 1, doc.NumPages())
	assert.Equal(t, 1.0, doc.Scale())

	g, err := doc.Geometry(1)
	require.NoError(t, err)
	assert.InDelta(t, 100, g.Width, 0.5)
	assert.InDelta(t, 200, g.Height, 0.5)

	_, err = doc.Geometry(2)
	assert.Error(t, err)

	rep, err := analysis.Analyze(doc, analysis.DefaultSettings())
	require.NoError(t, err)
	require.Len(t, rep.Pages, 1)

	px := rep.Pages[0].Pixels
	assert.False(t, px.Empty)
	assert.InDelta(t, 140, px.Top, 1)
	assert.InDelta(t, 20, px.Bottom, 1)
	assert.InDelta(t, 10, px.Left, 1)
	assert.InDelta(t, 60, px.Right, 1)
	assert.InDelta(t, 35.28, float64(rep.Pages[0].Page.Width), 0.2)
}

func TestDocument_PageOutOfRangeIsRenderFailure(t *testing.T) {
	doc, err := Load(Synthesize(50, 50, ""))
	require.NoError(t, err)
	defer doc.Close()

	_, err = doc.Page(5)
	assert.True(t, analysis.IsKind(err, analysis.RenderFailure))
}

func TestSelfTest(t *testing.T) {
	assert.NoError(t, SelfTest())
}
