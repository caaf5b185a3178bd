package units

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPointsToMM(t *testing.T) {
	assert.InDelta(t, 25.40, float64(PointsToMM(72)), 0.01)
	assert.Equal(t, Millimeters(210.00), PointsToMM(595.28))
	assert.Equal(t, Millimeters(0), PointsToMM(0))
}

func TestPixelsToMM_Scale(t *testing.T) {
	assert.Equal(t, Millimeters(25.4), PixelsToMM(72, 1.0))
	assert.Equal(t, Millimeters(25.4), PixelsToMM(144, 2.0))
	// halving the scale doubles the length a pixel stands for
	assert.Equal(t, Millimeters(50.8), PixelsToMM(72, 0.5))
	assert.Equal(t, Millimeters(0), PixelsToMM(10, 0))
}

func TestRound2(t *testing.T) {
	assert.Equal(t, 1.01, Round2(1.005000001))
	assert.Equal(t, 10.04, Round2(10.0449))
	assert.Equal(t, -3.5, Round2(-3.499999))
}

func TestSub_ComparesAtDisplayPrecision(t *testing.T) {
	d := Sub(10.04, 10.00)
	assert.Equal(t, Millimeters(0.04), d)
	assert.True(t, Sub(8.1, 3.1) <= 5)
	assert.Equal(t, Millimeters(7), Sub(2, 9).Abs())
}

func TestMillimeters_JSON(t *testing.T) {
	b, err := json.Marshal(struct {
		W Millimeters `json:"w"`
	}{W: 12.5})
	require.NoError(t, err)
	assert.JSONEq(t, `{"w":12.50}`, string(b))
	assert.Contains(t, string(b), "12.50")

	var m Millimeters
	require.NoError(t, json.Unmarshal([]byte(`"3.456"`), &m))
	assert.Equal(t, Millimeters(3.46), m)
	require.NoError(t, json.Unmarshal([]byte(`7`), &m))
	assert.Equal(t, Millimeters(7), m)
}
