package datasets

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Noofbiz/qptsynth/measure"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 1.0, cfg.WaveplateProbability())
	assert.Equal(t, 30, cfg.NearPoleCount())
	assert.Equal(t, 5, cfg.Channels())
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gen.yaml")
	writeFile(t, path, `
noise: 0.02
stateNoise: 0.005
n_coeff_low: 2
n_coeff_high: 4
resolution: 16
batch_size: 8
batches_per_epoch: 3
alpha: 0.25
isWaveplates: false
num_waveplates_min: 1
num_waveplates_max: 5
maxAngle: 45
sixMeasure: true
applyInverse: true
seed: 99
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 0.02, cfg.Noise)
	assert.Equal(t, 16, cfg.Resolution)
	assert.Equal(t, 2, cfg.NearPoleCount())
	assert.Equal(t, 0.0, cfg.WaveplateProbability())
	assert.Equal(t, 6, cfg.Channels())
	assert.Len(t, cfg.Scheme(), 6)
	assert.InDelta(t, math.Pi/4, cfg.WaveplateOptions().MaxAngle, 1e-15)
	assert.True(t, cfg.ContinuousOptions(false).ApplyInverse)
	// keys absent from the file keep their defaults
	assert.Equal(t, 1.0, cfg.PoleFactor)
}

func TestLoadConfig_EmptyFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.yaml")
	writeFile(t, path, "")
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadConfig_RejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	writeFile(t, path, "noise: 0.01\nnum_pixs: 64\n")
	_, err := LoadConfig(path)
	assert.True(t, errors.Is(err, ErrConfiguration), "got %v", err)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestConfigValidate(t *testing.T) {
	half := 0.5
	tooMuch := 1.5
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"defaults", func(*Config) {}, true},
		{"fraction", func(c *Config) { c.WaveplateFraction = &half }, true},
		{"rotated five", func(c *Config) { c.RotateBasis = true }, true},
		{"negative noise", func(c *Config) { c.Noise = -1 }, false},
		{"negative state noise", func(c *Config) { c.StateNoise = -0.1 }, false},
		{"inverted orders", func(c *Config) { c.OrderLow, c.OrderHigh = 5, 2 }, false},
		{"zero resolution", func(c *Config) { c.Resolution = 0 }, false},
		{"zero batch", func(c *Config) { c.BatchSize = 0 }, false},
		{"zero epoch", func(c *Config) { c.BatchesPerEpoch = 0 }, false},
		{"alpha above one", func(c *Config) { c.Alpha = 1.1 }, false},
		{"alpha NaN", func(c *Config) { c.Alpha = math.NaN() }, false},
		{"inverted plates", func(c *Config) { c.WaveplatesMin, c.WaveplatesMax = 3, 2 }, false},
		{"zero plates", func(c *Config) { c.WaveplatesMin = 0 }, false},
		{"negative angle", func(c *Config) { c.MaxAngle = -1 }, false},
		{"fraction above one", func(c *Config) { c.WaveplateFraction = &tooMuch }, false},
		{"six and rotated", func(c *Config) { c.SixMeasure, c.RotateBasis = true, true }, false},
		{"zero pole factor", func(c *Config) { c.PoleFactor = 0 }, false},
		{"negative tolerance", func(c *Config) { c.Tolerance = -1 }, false},
		{"negative workers", func(c *Config) { c.Workers = -2 }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, ErrConfiguration)
		})
	}
}

func TestConfigDerivedOptions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PoleFactor = 0.7
	assert.Equal(t, 0.0, cfg.ContinuousOptions(false).PoleFactor)
	assert.Equal(t, 0.7, cfg.ContinuousOptions(true).PoleFactor)
	assert.Equal(t, cfg.Noise, cfg.ContinuousOptions(false).NoiseSigma)

	cfg.RotateBasis = true
	assert.Equal(t, measure.Pair{Probe: measure.H, Analyzer: measure.L}, cfg.Scheme()[1])
}
