// Package units converts PDF points and rendered pixels to millimetres.
package units

import (
	"math"
	"strconv"
)

// MMPerPoint is the length of one PDF point (1/72 inch) in millimetres.
const MMPerPoint = 0.3527778

// Millimeters is a physical length already rounded to two decimals.
// It marshals to JSON as a number with exactly two fractional digits.
type Millimeters float64

// Round2 rounds v to two decimal places, halves away from zero.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// MM rounds v and returns it as Millimeters.
func MM(v float64) Millimeters { return Millimeters(Round2(v)) }

// PointsToMM converts native page geometry to millimetres.
func PointsToMM(points float64) Millimeters {
	return MM(points * MMPerPoint)
}

// PixelsToMM converts a pixel offset measured on a raster rendered at scale
// pixels per point.
func PixelsToMM(px int, scale float64) Millimeters {
	if scale <= 0 {
		return 0
	}
	return MM(float64(px) / scale * MMPerPoint)
}

// Sub returns a-b rounded, so that differences compare at display precision.
func Sub(a, b Millimeters) Millimeters { return MM(float64(a) - float64(b)) }

// Abs returns |m|.
func (m Millimeters) Abs() Millimeters { return Millimeters(math.Abs(float64(m))) }

func (m Millimeters) String() string {
	return strconv.FormatFloat(float64(m), 'f', 2, 64)
}

func (m Millimeters) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *Millimeters) UnmarshalJSON(b []byte) error {
	s := string(b)
	if len(s) >= 2 && s[0] == '"' {
		s = s[1 : len(s)-1]
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	*m = MM(f)
	return nil
}
