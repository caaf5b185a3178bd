package analysis

import (
	"math"
	"strconv"
	"strings"
)

const (
	DefaultBleedSize       = 3.0 // mm
	DefaultMarginThreshold = 5.0 // mm

	MaxBleedSize       = 50.0
	MaxMarginThreshold = 100.0
)

// Settings is the configuration snapshot a run is evaluated against.
type Settings struct {
	BleedSize       float64 `json:"bleedSize"`
	MarginThreshold float64 `json:"marginThreshold"`
}

// DefaultSettings returns 3 mm bleed and 5 mm threshold.
func DefaultSettings() Settings {
	return Settings{BleedSize: DefaultBleedSize, MarginThreshold: DefaultMarginThreshold}
}

// NewSettings validates both values.
func NewSettings(bleed, threshold float64) (Settings, error) {
	if err := ValidateBleedSize(bleed); err != nil {
		return Settings{}, err
	}
	if err := ValidateMarginThreshold(threshold); err != nil {
		return Settings{}, err
	}
	return Settings{BleedSize: bleed, MarginThreshold: threshold}, nil
}

// Validate checks a snapshot built without NewSettings.
func (s Settings) Validate() error {
	_, err := NewSettings(s.BleedSize, s.MarginThreshold)
	return err
}

func ValidateBleedSize(v float64) error {
	return checkRange("bleed size", v, MaxBleedSize)
}

func ValidateMarginThreshold(v float64) error {
	return checkRange("margin threshold", v, MaxMarginThreshold)
}

func checkRange(name string, v, max float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Errorf(Misconfiguration, nil, "%s must be a finite number", name)
	}
	if v < 0 || v > max {
		return Errorf(Misconfiguration, nil, "%s %.2f mm out of range [0, %.0f]", name, v, max)
	}
	return nil
}

// ParseMillimeters parses a user-entered setting such as "3", "2.5" or "3mm".
func ParseMillimeters(s string) (float64, error) {
	t := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(strings.ToLower(s)), "mm"))
	if t == "" {
		return 0, Errorf(Misconfiguration, nil, "empty value")
	}
	v, err := strconv.ParseFloat(t, 64)
	if err != nil {
		return 0, Errorf(Misconfiguration, err, "%q is not a number", s)
	}
	return v, nil
}
