package analysis

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSettings(t *testing.T) {
	s, err := NewSettings(3, 5)
	require.NoError(t, err)
	assert.Equal(t, DefaultSettings(), s)

	for _, tc := range []struct{ bleed, threshold float64 }{
		{-0.1, 5},
		{3, -1},
		{MaxBleedSize + 1, 5},
		{3, MaxMarginThreshold + 0.5},
		{math.NaN(), 5},
		{3, math.Inf(1)},
	} {
		_, err := NewSettings(tc.bleed, tc.threshold)
		assert.True(t, IsKind(err, Misconfiguration), "bleed=%v threshold=%v", tc.bleed, tc.threshold)
	}

	_, err = NewSettings(0, 0)
	assert.NoError(t, err)
}

func TestParseMillimeters(t *testing.T) {
	v, err := ParseMillimeters(" 2.5 ")
	require.NoError(t, err)
	assert.Equal(t, 2.5, v)

	v, err = ParseMillimeters("3mm")
	require.NoError(t, err)
	assert.Equal(t, 3.0, v)

	_, err = ParseMillimeters("abc")
	assert.True(t, IsKind(err, Misconfiguration))

	_, err = ParseMillimeters("")
	assert.True(t, IsKind(err, Misconfiguration))
}

func TestErrorKinds(t *testing.T) {
	cause := errors.New("boom")
	err := fmt.Errorf("run: %w", Errorf(RenderFailure, cause, "page %d", 4))

	assert.Equal(t, RenderFailure, KindOf(err))
	assert.True(t, errors.Is(err, cause))
	assert.Contains(t, err.Error(), "page 4: boom")
	assert.False(t, IsKind(nil, RenderFailure))
	assert.Equal(t, Kind(""), KindOf(cause))
	assert.True(t, IsKind(ErrNoDocument, InvalidInput))
}
