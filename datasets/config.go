package datasets

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/Noofbiz/qptsynth/measure"
	"github.com/Noofbiz/qptsynth/process"
)

// ErrConfiguration is returned for invalid or inconsistent generator
// configuration. It is always detected before any sample is generated.
var ErrConfiguration = errors.New("datasets: invalid configuration")

// Config holds the generator options. The YAML keys match the configuration
// files used by the training pipeline.
type Config struct {
	// Noise is the sigma of the per-pixel measurement noise. It also sets the
	// width of the equator band used by gauge fixing and the nz band used by
	// the continuous boundary fix.
	Noise float64 `yaml:"noise"`

	// StateNoise bounds the uniform perturbation of probe and analyzer
	// states.
	StateNoise float64 `yaml:"stateNoise"`

	OrderLow  int `yaml:"n_coeff_low"`
	OrderHigh int `yaml:"n_coeff_high"`

	Resolution      int `yaml:"resolution"`
	BatchSize       int `yaml:"batch_size"`
	BatchesPerEpoch int `yaml:"batches_per_epoch"`

	// Alpha is the share of each continuous batch routed to the near-pole
	// sub-policy.
	Alpha float64 `yaml:"alpha"`

	IsWaveplates  bool `yaml:"isWaveplates"`
	WaveplatesMin int  `yaml:"num_waveplates_min"`
	WaveplatesMax int  `yaml:"num_waveplates_max"`

	// MaxAngle bounds the in-plane rotation of synthesized fields, in degrees.
	MaxAngle float64 `yaml:"maxAngle"`

	SixMeasure   bool `yaml:"sixMeasure"`
	ApplyInverse bool `yaml:"applyInverse"`

	// WaveplateFraction is the probability that a sample is generated from a
	// waveplate cascade. Unset means 1 when IsWaveplates and 0 otherwise.
	WaveplateFraction *float64 `yaml:"waveplateFraction,omitempty"`

	// RotateBasis replaces the (L,H) channel by (H,L).
	RotateBasis bool `yaml:"rotateBasis"`

	// PoleFactor scales theta for near-pole samples.
	PoleFactor float64 `yaml:"poleFactor"`

	Tolerance float64 `yaml:"tolerance"`
	Seed      int64   `yaml:"seed"`

	// Workers bounds generation parallelism. Zero means GOMAXPROCS.
	Workers int `yaml:"workers"`
}

// DefaultConfig returns the configuration the generator uses when no file is
// given.
func DefaultConfig() Config {
	return Config{
		Noise:           0.01,
		StateNoise:      0.01,
		OrderLow:        1,
		OrderHigh:       15,
		Resolution:      128,
		BatchSize:       100,
		BatchesPerEpoch: 100,
		Alpha:           0.3,
		IsWaveplates:    true,
		WaveplatesMin:   1,
		WaveplatesMax:   2,
		MaxAngle:        10,
		PoleFactor:      1,
		Tolerance:       process.DefaultTolerance,
		Seed:            1,
	}
}

// LoadConfig reads a YAML file on top of DefaultConfig. Unknown keys are
// rejected. The result is validated.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	f, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("open config %s: %w", path, err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("%w: decode %s: %v", ErrConfiguration, path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate reports the first inconsistency found.
func (c Config) Validate() error {
	fail := func(format string, args ...any) error {
		return fmt.Errorf("%w: "+format, append([]any{ErrConfiguration}, args...)...)
	}
	switch {
	case c.Noise < 0 || c.StateNoise < 0:
		return fail("negative noise (noise=%v stateNoise=%v)", c.Noise, c.StateNoise)
	case c.OrderLow < 0 || c.OrderHigh < c.OrderLow:
		return fail("Fourier orders [%d, %d]", c.OrderLow, c.OrderHigh)
	case c.Resolution < 1:
		return fail("resolution %d", c.Resolution)
	case c.BatchSize < 1 || c.BatchesPerEpoch < 1:
		return fail("batch_size=%d batches_per_epoch=%d", c.BatchSize, c.BatchesPerEpoch)
	case !(c.Alpha >= 0 && c.Alpha <= 1):
		return fail("alpha %v outside [0,1]", c.Alpha)
	case c.WaveplatesMin < 1 || c.WaveplatesMax < c.WaveplatesMin:
		return fail("waveplate count [%d, %d]", c.WaveplatesMin, c.WaveplatesMax)
	case c.MaxAngle < 0 || math.IsNaN(c.MaxAngle):
		return fail("maxAngle %v", c.MaxAngle)
	case c.WaveplateFraction != nil && !(*c.WaveplateFraction >= 0 && *c.WaveplateFraction <= 1):
		return fail("waveplateFraction %v outside [0,1]", *c.WaveplateFraction)
	case c.SixMeasure && c.RotateBasis:
		return fail("rotateBasis would record (H,L) twice with sixMeasure")
	case !(c.PoleFactor > 0 && c.PoleFactor <= 1):
		return fail("poleFactor %v outside (0,1]", c.PoleFactor)
	case c.Tolerance < 0:
		return fail("tolerance %v", c.Tolerance)
	case c.Workers < 0:
		return fail("workers %d", c.Workers)
	}
	return nil
}

// WaveplateProbability resolves WaveplateFraction.
func (c Config) WaveplateProbability() float64 {
	if c.WaveplateFraction != nil {
		return *c.WaveplateFraction
	}
	if c.IsWaveplates {
		return 1
	}
	return 0
}

// NearPoleCount returns the number of trailing positions of a continuous
// batch that use the near-pole sub-policy.
func (c Config) NearPoleCount() int {
	return int(math.Floor(c.Alpha * float64(c.BatchSize)))
}

// Channels returns the number of measurement channels.
func (c Config) Channels() int {
	if c.SixMeasure {
		return 6
	}
	return 5
}

// Scheme returns the measurement scheme selected by SixMeasure and
// RotateBasis.
func (c Config) Scheme() measure.Scheme {
	return measure.StandardScheme(c.SixMeasure, c.RotateBasis)
}

func (c Config) maxAngleRadians() float64 {
	return c.MaxAngle * math.Pi / 180
}

// ContinuousOptions derives the continuous-mode options. nearPole applies
// PoleFactor.
func (c Config) ContinuousOptions(nearPole bool) process.ContinuousOptions {
	o := process.ContinuousOptions{
		OrderLow:     c.OrderLow,
		OrderHigh:    c.OrderHigh,
		MaxAngle:     c.maxAngleRadians(),
		NoiseSigma:   c.Noise,
		ApplyInverse: c.ApplyInverse,
		Tolerance:    c.Tolerance,
	}
	if nearPole {
		o.PoleFactor = c.PoleFactor
	}
	return o
}

// WaveplateOptions derives the waveplate-mode options.
func (c Config) WaveplateOptions() process.WaveplateOptions {
	return process.WaveplateOptions{
		Min:       c.WaveplatesMin,
		Max:       c.WaveplatesMax,
		OrderLow:  c.OrderLow,
		OrderHigh: c.OrderHigh,
		MaxAngle:  c.maxAngleRadians(),
		Tolerance: c.Tolerance,
	}
}
