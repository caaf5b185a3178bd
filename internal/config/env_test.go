package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/local/margincheck/internal/analysis"
)

func TestFromEnv_Defaults(t *testing.T) {
	t.Setenv("BLEED_SIZE_MM", "")
	t.Setenv("MARGIN_THRESHOLD_MM", "")
	t.Setenv("RENDER_SCALE", "")

	cfg := FromEnv()
	assert.Equal(t, analysis.DefaultSettings(), cfg.Analysis.Settings)
	assert.Equal(t, 2.0, cfg.Analysis.RenderScale)
	assert.Equal(t, "jobs:margins", cfg.Queue.Stream)
	assert.Equal(t, 7*24*time.Hour, cfg.Worker.ResultTTL)
	assert.Equal(t, 3, cfg.Worker.MaxAttempts)
	assert.Equal(t, "info", cfg.Axiom.MinLevel)
}

func TestFromEnv_Settings(t *testing.T) {
	t.Setenv("BLEED_SIZE_MM", "2.5mm")
	t.Setenv("MARGIN_THRESHOLD_MM", "1")
	t.Setenv("RENDER_SCALE", "3")

	cfg := FromEnv()
	assert.Equal(t, analysis.Settings{BleedSize: 2.5, MarginThreshold: 1}, cfg.Analysis.Settings)
	assert.Equal(t, 3.0, cfg.Analysis.RenderScale)
}

func TestFromEnv_InvalidSettingsFallBack(t *testing.T) {
	t.Setenv("BLEED_SIZE_MM", "wide")
	t.Setenv("MARGIN_THRESHOLD_MM", "-4")
	t.Setenv("RENDER_SCALE", "-1")

	cfg := FromEnv()
	assert.Equal(t, analysis.DefaultSettings(), cfg.Analysis.Settings)
	assert.Equal(t, 2.0, cfg.Analysis.RenderScale)
}

func TestParseHelpers(t *testing.T) {
	assert.True(t, parseBool(" Yes "))
	assert.False(t, parseBool("0"))
	assert.Equal(t, 7, parseInt("x", 7))
	assert.Equal(t, 2*time.Second, parseDuration("2s", time.Second))
	assert.Equal(t, time.Second, parseDuration("soon", time.Second))
}
