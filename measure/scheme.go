package measure

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"

	"github.com/Noofbiz/qptsynth/randsrc"
)

// ErrInvalidScheme is returned for empty schemes and channel counts the
// simulator does not support.
var ErrInvalidScheme = errors.New("measure: invalid measurement scheme")

// State is a normalized polarization state in the circular basis.
type State [2]complex128

var invSqrt2 = complex(1/math.Sqrt2, 0)

// The six cardinal polarization states.
var (
	L = State{1, 0}
	R = State{0, 1}
	H = State{invSqrt2, invSqrt2}
	V = State{invSqrt2, -invSqrt2}
	D = State{invSqrt2, complex(0, 1/math.Sqrt2)}
	A = State{invSqrt2, complex(0, -1/math.Sqrt2)}
)

// Norm returns the Euclidean norm of s.
func (s State) Norm() float64 {
	return math.Sqrt(real(s[0]*cmplx.Conj(s[0]) + s[1]*cmplx.Conj(s[1])))
}

// Perturb adds U[0, bound) to the real part of each component and
// renormalizes. A zero bound returns s unchanged without drawing.
func Perturb(r randsrc.Source, s State, bound float64) State {
	if bound == 0 {
		return s
	}
	p := State{
		s[0] + complex(randsrc.Uniform(r, 0, bound), 0),
		s[1] + complex(randsrc.Uniform(r, 0, bound), 0),
	}
	n := complex(p.Norm(), 0)
	return State{p[0] / n, p[1] / n}
}

// Pair is one measurement channel: the state prepared before the process and
// the state projected onto after it.
type Pair struct {
	Probe, Analyzer State
}

// Scheme is the ordered list of channels recorded at every pixel.
type Scheme []Pair

// StandardScheme returns the five channels (L,L) (L,H) (L,D) (H,H) (H,D),
// with (H,L) appended when six is set. rotate replaces channel 1 by (H,L).
func StandardScheme(six, rotate bool) Scheme {
	s := Scheme{
		{Probe: L, Analyzer: L},
		{Probe: L, Analyzer: H},
		{Probe: L, Analyzer: D},
		{Probe: H, Analyzer: H},
		{Probe: H, Analyzer: D},
	}
	if rotate {
		s[1] = Pair{Probe: H, Analyzer: L}
	}
	if six {
		s = append(s, Pair{Probe: H, Analyzer: L})
	}
	return s
}

// Validate checks that the scheme has five or six channels of unit-norm
// states.
func (s Scheme) Validate() error {
	if len(s) != 5 && len(s) != 6 {
		return fmt.Errorf("%w: %d channels, want 5 or 6", ErrInvalidScheme, len(s))
	}
	for i, p := range s {
		if math.Abs(p.Probe.Norm()-1) > 1e-9 || math.Abs(p.Analyzer.Norm()-1) > 1e-9 {
			return fmt.Errorf("%w: channel %d is not normalized", ErrInvalidScheme, i)
		}
	}
	return nil
}

// reorderPerm maps output channel to source channel for a basis rotation of
// a five-channel map.
var reorderPerm = [5]int{3, 1, 4, 0, 2}

// Reorder returns a copy of m with its five channels permuted as
// [3, 1, 4, 0, 2], the relabeling induced by swapping the L and H roles.
func Reorder(m *Map) (*Map, error) {
	if m.Channels != len(reorderPerm) {
		return nil, fmt.Errorf("%w: reorder needs 5 channels, have %d", ErrInvalidScheme, m.Channels)
	}
	out := NewMap(m.Res, m.Channels)
	for px := 0; px < m.Res*m.Res; px++ {
		for c, src := range reorderPerm {
			out.Data[px*m.Channels+c] = m.Data[px*m.Channels+src]
		}
	}
	return out, nil
}
