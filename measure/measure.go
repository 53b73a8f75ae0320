// Package measure simulates noisy polarimetric measurements of a parameter
// map.
//
// Every pixel is probed with a fixed set of (probe, analyzer) state pairs.
// Each state is slightly perturbed to model imperfect preparation and
// projection, the Born-rule probability |<analyzer|U|probe>|^2 is computed,
// and a Gaussian pixel noise term is folded in with Combine so the recorded
// value stays a probability without clamping.
package measure

import (
	"fmt"
	"math/cmplx"

	"github.com/Noofbiz/qptsynth/process"
	"github.com/Noofbiz/qptsynth/randsrc"
)

// Map holds the recorded outcomes of a sample, shaped (Res, Res, Channels)
// row-major.
type Map struct {
	Res      int
	Channels int
	Data     []float64
}

// NewMap allocates a zeroed map.
func NewMap(res, channels int) *Map {
	return &Map{Res: res, Channels: channels, Data: make([]float64, res*res*channels)}
}

// At returns channel ch at grid position (r, c).
func (m *Map) At(r, c, ch int) float64 {
	return m.Data[(r*m.Res+c)*m.Channels+ch]
}

// Channel returns a copy of one channel as an R×R row-major slice.
func (m *Map) Channel(ch int) []float64 {
	out := make([]float64, m.Res*m.Res)
	for px := range out {
		out[px] = m.Data[px*m.Channels+ch]
	}
	return out
}

// Simulator measures parameter maps under a fixed scheme and noise model.
type Simulator struct {
	Scheme Scheme

	// Noise is the sigma of the Gaussian pixel noise.
	Noise float64

	// StateNoise bounds the uniform perturbation of probe and analyzer
	// states.
	StateNoise float64
}

// NewSimulator validates its arguments and returns a Simulator.
func NewSimulator(scheme Scheme, noise, stateNoise float64) (*Simulator, error) {
	if err := scheme.Validate(); err != nil {
		return nil, err
	}
	if noise < 0 || stateNoise < 0 {
		return nil, fmt.Errorf("measure: negative noise (noise=%v stateNoise=%v)", noise, stateNoise)
	}
	return &Simulator{Scheme: scheme, Noise: noise, StateNoise: stateNoise}, nil
}

// Channels returns the number of values recorded per pixel.
func (s *Simulator) Channels() int { return len(s.Scheme) }

// Probability returns the noiseless Born-rule value |<analyzer|U|probe>|^2.
func Probability(u process.Unitary, probe, analyzer State) float64 {
	out := u.Apply(probe)
	amp := cmplx.Conj(analyzer[0])*out[0] + cmplx.Conj(analyzer[1])*out[1]
	p := real(amp)*real(amp) + imag(amp)*imag(amp)
	// rounding only; exact values are always in [0, 1]
	switch {
	case p > 1:
		return 1
	case p < 0:
		return 0
	}
	return p
}

// Combine folds noise n into probability p: p+n when that stays in [0, 1],
// p−n otherwise.
func Combine(p, n float64) float64 {
	if v := p + n; v >= 0 && v <= 1 {
		return v
	}
	return p - n
}

// Measure records every channel at every pixel of p. Per channel the probe is
// perturbed first, then the analyzer, then the pixel noise is drawn.
func (s *Simulator) Measure(r randsrc.Source, p *process.Params) (*Map, error) {
	n := p.Pixels()
	if p.Res < 1 || len(p.Energy) != n || len(p.Theta) != n || len(p.Phi) != n {
		return nil, fmt.Errorf("measure: malformed parameter map at resolution %d", p.Res)
	}
	m := NewMap(p.Res, len(s.Scheme))
	for px := 0; px < n; px++ {
		u := p.Unitary(px)
		row := m.Data[px*m.Channels : (px+1)*m.Channels]
		for ch, pair := range s.Scheme {
			probe := Perturb(r, pair.Probe, s.StateNoise)
			analyzer := Perturb(r, pair.Analyzer, s.StateNoise)
			row[ch] = Combine(Probability(u, probe, analyzer), randsrc.Gauss(r, s.Noise))
		}
	}
	return m, nil
}

// Expected returns the noiseless map: unperturbed states and no pixel noise.
func (s *Simulator) Expected(p *process.Params) *Map {
	m := NewMap(p.Res, len(s.Scheme))
	for px := 0; px < p.Pixels(); px++ {
		u := p.Unitary(px)
		for ch, pair := range s.Scheme {
			m.Data[px*m.Channels+ch] = Probability(u, pair.Probe, pair.Analyzer)
		}
	}
	return m
}
