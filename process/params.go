// Package process generates ground-truth parameter maps of two-level
// (SU(2)) processes over an R×R grid.
//
// A map holds, per pixel, a quasi-energy E in [0, π] and the direction of the
// rotation axis on the Bloch sphere as a polar angle theta in [0, π] and an
// azimuth phi in [0, 2π). Two generation modes are provided: Continuous draws
// the energy and the three Cartesian axis components as independent smooth
// random fields, and Waveplates cascades optical waveplates with random
// retardances and optic-axis fields and retrieves the parameters from the
// composed per-pixel unitary.
package process

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrDegenerateRetrieval indicates |sin E| fell below tolerance while
	// retrieving the axis from a unitary (U near ±I).
	ErrDegenerateRetrieval = errors.New("process: degenerate parameter retrieval")
	// ErrNormalizationSingularity indicates a vanishing denominator while
	// projecting the Cartesian axis fields onto the unit sphere.
	ErrNormalizationSingularity = errors.New("process: normalization singularity")
	// ErrInvalidOptions indicates inconsistent generation options.
	ErrInvalidOptions = errors.New("process: invalid options")
)

// DegenerateError locates a degenerate retrieval.
type DegenerateError struct {
	Row, Col int
	SinE     float64
}

func (e *DegenerateError) Error() string {
	return fmt.Sprintf("process: degenerate retrieval at pixel (%d,%d): |sin E| = %.3g", e.Row, e.Col, math.Abs(e.SinE))
}

func (e *DegenerateError) Unwrap() error { return ErrDegenerateRetrieval }

// SingularityError locates a normalization singularity.
type SingularityError struct {
	Pixel       int
	Strategy    NormStrategy
	Denominator float64
}

func (e *SingularityError) Error() string {
	return fmt.Sprintf("process: %s normalization singular at pixel %d (denominator %.3g)", e.Strategy, e.Pixel, e.Denominator)
}

func (e *SingularityError) Unwrap() error { return ErrNormalizationSingularity }

// Params is a parameter map: quasi-energy, polar angle and azimuth per
// pixel, each stored row-major.
type Params struct {
	Res    int
	Energy []float64
	Theta  []float64
	Phi    []float64
}

// NewParams allocates a zero map.
func NewParams(res int) *Params {
	n := res * res
	return &Params{
		Res:    res,
		Energy: make([]float64, n),
		Theta:  make([]float64, n),
		Phi:    make([]float64, n),
	}
}

// Pixels returns R*R.
func (p *Params) Pixels() int { return p.Res * p.Res }

// Unitary builds the process operator at flat pixel index i.
func (p *Params) Unitary(i int) Unitary {
	return FromParams(p.Energy[i], p.Theta[i], p.Phi[i])
}

// Clone returns a deep copy.
func (p *Params) Clone() *Params {
	return &Params{
		Res:    p.Res,
		Energy: append([]float64(nil), p.Energy...),
		Theta:  append([]float64(nil), p.Theta...),
		Phi:    append([]float64(nil), p.Phi...),
	}
}

// WrapPhi maps an angle into [0, 2π).
func WrapPhi(phi float64) float64 {
	phi = math.Mod(phi, 2*math.Pi)
	if phi < 0 {
		phi += 2 * math.Pi
	}
	// a tiny negative angle rounds up to exactly 2π
	if phi >= 2*math.Pi {
		phi = 0
	}
	return phi
}

// ToSpherical converts a Bloch vector to (theta, phi) with phi wrapped into
// [0, 2π). nz is clamped to [-1,1] before arccos to absorb rounding.
func ToSpherical(nx, ny, nz float64) (theta, phi float64) {
	return math.Acos(clampUnit(nz)), WrapPhi(math.Atan2(ny, nx))
}

// Retrieve recovers the quasi-energy and Bloch axis of u. The traceless part
// s_k = Re[(i/2)·tr(U·σ_k)] = sin E·n_k carries sin E directly, so
// E = atan2(|s|, Re tr U / 2) and n = s/|s| stay accurate near U ≈ ±I where
// arccos of the trace loses half its digits.
// It returns ErrDegenerateRetrieval when sin E < tol.
func Retrieve(u Unitary, tol float64) (energy, nx, ny, nz float64, err error) {
	half := complex(0, 0.5)
	sx := real(half * u.Mul(PauliX).Trace())
	sy := real(half * u.Mul(PauliY).Trace())
	sz := real(half * u.Mul(PauliZ).Trace())
	sinE := math.Sqrt(sx*sx + sy*sy + sz*sz)
	energy = math.Atan2(sinE, real(u.Trace())/2)
	if sinE < tol || math.IsNaN(sinE) {
		return energy, 0, 0, 0, ErrDegenerateRetrieval
	}
	return energy, sx / sinE, sy / sinE, sz / sinE, nil
}

func clampUnit(v float64) float64 {
	return math.Max(-1, math.Min(1, v))
}
