package process

import (
	"fmt"
	"math"

	"k8s.io/klog/v2"

	"github.com/Noofbiz/qptsynth/field"
	"github.com/Noofbiz/qptsynth/randsrc"
)

// DefaultTolerance guards divisions in retrieval and normalization.
const DefaultTolerance = 1e-9

// ContinuousOptions configures continuous-field generation.
type ContinuousOptions struct {
	// OrderLow and OrderHigh bound the per-axis Fourier orders (inclusive).
	OrderLow, OrderHigh int

	// MaxAngle bounds the random in-plane rotation of every field, radians.
	MaxAngle float64

	// NoiseSigma is the band around nz = 0 at the reference pixel in which
	// the sign of nx is canonicalized.
	NoiseSigma float64

	// ApplyInverse extends the reference-pixel inversion to the full −U
	// representation (E → π − E and the whole axis negated).
	ApplyInverse bool

	// PoleFactor multiplies theta after conversion; values in (0,1] pull the
	// map toward the pole. Zero means 1.
	PoleFactor float64

	// Tolerance for normalization denominators. Zero means DefaultTolerance.
	Tolerance float64
}

func (o ContinuousOptions) validate() error {
	switch {
	case o.OrderLow < 0 || o.OrderHigh < o.OrderLow:
		return fmt.Errorf("%w: Fourier orders [%d, %d]", ErrInvalidOptions, o.OrderLow, o.OrderHigh)
	case o.MaxAngle < 0:
		return fmt.Errorf("%w: negative max angle %v", ErrInvalidOptions, o.MaxAngle)
	case o.NoiseSigma < 0:
		return fmt.Errorf("%w: negative noise sigma %v", ErrInvalidOptions, o.NoiseSigma)
	case o.PoleFactor < 0 || o.PoleFactor > 1:
		return fmt.Errorf("%w: pole factor %v outside [0,1]", ErrInvalidOptions, o.PoleFactor)
	case o.Tolerance < 0:
		return fmt.Errorf("%w: negative tolerance %v", ErrInvalidOptions, o.Tolerance)
	}
	return nil
}

// Orders is a pair of per-axis Fourier orders.
type Orders struct{ X, Y int }

// Constant reports whether both orders are zero.
func (o Orders) Constant() bool { return o.X == 0 && o.Y == 0 }

func drawOrders(r randsrc.Source, lo, hi int) Orders {
	return Orders{X: randsrc.IntRange(r, lo, hi), Y: randsrc.IntRange(r, lo, hi)}
}

// Continuous draws a parameter map from four independent smooth fields: the
// quasi-energy scaled into [0, π] and the three signed Cartesian axis
// components, which are then projected onto the unit sphere.
func Continuous(r randsrc.Source, res int, opts ContinuousOptions) (*Params, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	tol := opts.Tolerance
	if tol == 0 {
		tol = DefaultTolerance
	}

	eOrders := drawOrders(r, opts.OrderLow, opts.OrderHigh)
	energy, err := field.Synthesize(r, field.DrawSpec(r, eOrders.X, eOrders.Y, opts.MaxAngle, false), res)
	if err != nil {
		return nil, fmt.Errorf("energy field: %w", err)
	}

	var axisOrders [3]Orders
	for k := range axisOrders {
		axisOrders[k] = drawOrders(r, opts.OrderLow, opts.OrderHigh)
	}
	var axes [3][]float64
	for k, o := range axisOrders {
		f, err := field.Synthesize(r, field.DrawSpec(r, o.X, o.Y, opts.MaxAngle, true), res)
		if err != nil {
			return nil, fmt.Errorf("axis field %d: %w", k, err)
		}
		axes[k] = f.Data
	}
	nx, ny, nz := axes[0], axes[1], axes[2]

	coin := randsrc.Coin(r)
	strategy := SelectStrategy(axisOrders[0].Constant(), axisOrders[1].Constant(), axisOrders[2].Constant(), coin)
	klog.V(2).Infof("continuous: orders E=%v n=%v strategy=%s coin=%d", eOrders, axisOrders, strategy, coin)
	if err := Normalize(strategy, nx, ny, nz, tol); err != nil {
		return nil, err
	}

	p := NewParams(res)
	for i, v := range energy.Data {
		p.Energy[i] = math.Pi * v
	}

	invert(p.Energy, nx, ny, nz, opts.ApplyInverse, opts.NoiseSigma)

	factor := opts.PoleFactor
	if factor == 0 {
		factor = 1
	}
	for i := range p.Theta {
		theta, phi := ToSpherical(nx[i], ny[i], nz[i])
		p.Theta[i] = factor * theta
		p.Phi[i] = phi
	}
	return p, nil
}

// invert canonicalizes the axis at the reference pixel in place. A southern
// nz[0] flips nz everywhere, and with applyInverse the map moves to the −U
// representation as well (E → π − E, nx and ny negated). When nz[0] then lies
// within sigma of the equator a negative nx[0] flips nx.
func invert(energy, nx, ny, nz []float64, applyInverse bool, sigma float64) {
	if nz[0] < 0 {
		negate(nz)
		if applyInverse {
			for i := range energy {
				energy[i] = math.Pi - energy[i]
			}
			negate(nx)
			negate(ny)
		}
	}
	if math.Abs(nz[0]) < sigma && nx[0] < 0 {
		negate(nx)
	}
}

func negate(v []float64) {
	for i := range v {
		v[i] = -v[i]
	}
}
