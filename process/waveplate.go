package process

import (
	"fmt"
	"math"
	"math/cmplx"

	"k8s.io/klog/v2"

	"github.com/Noofbiz/qptsynth/field"
	"github.com/Noofbiz/qptsynth/randsrc"
)

// Waveplate is one optical element of a cascade: a uniform retardance and a
// spatially varying optic-axis angle in [0, π].
type Waveplate struct {
	Retardance float64
	Axis       *field.Field
}

// WaveplateOptions configures waveplate-cascade generation.
type WaveplateOptions struct {
	// Min and Max bound the number of plates in the stack (inclusive).
	Min, Max int

	// OrderLow and OrderHigh bound the Fourier orders of the optic-axis
	// fields. One pair of orders is shared by every plate of a stack.
	OrderLow, OrderHigh int

	MaxAngle float64

	// Tolerance on |sin E| during retrieval. Zero means DefaultTolerance.
	Tolerance float64
}

func (o WaveplateOptions) validate() error {
	switch {
	case o.Min < 1 || o.Max < o.Min:
		return fmt.Errorf("%w: waveplate count [%d, %d]", ErrInvalidOptions, o.Min, o.Max)
	case o.OrderLow < 0 || o.OrderHigh < o.OrderLow:
		return fmt.Errorf("%w: Fourier orders [%d, %d]", ErrInvalidOptions, o.OrderLow, o.OrderHigh)
	case o.MaxAngle < 0:
		return fmt.Errorf("%w: negative max angle %v", ErrInvalidOptions, o.MaxAngle)
	case o.Tolerance < 0:
		return fmt.Errorf("%w: negative tolerance %v", ErrInvalidOptions, o.Tolerance)
	}
	return nil
}

// WaveplateOperator returns the closed-form operator of a plate with
// retardance delta at optic-axis angle axis:
//
//	[ cos(δ/2)                 i·sin(δ/2)·e^(−2iθ) ]
//	[ i·sin(δ/2)·e^(2iθ)       cos(δ/2)            ]
func WaveplateOperator(delta, axis float64) Unitary {
	c := complex(math.Cos(delta/2), 0)
	s := complex(0, math.Sin(delta/2))
	return Unitary{
		{c, s * cmplx.Exp(complex(0, -2*axis))},
		{s * cmplx.Exp(complex(0, 2*axis)), c},
	}
}

// DrawWaveplates draws count plates whose optic-axis fields share the given
// orders. For each plate the axis field is drawn first, then its retardance
// in [0, 2π).
func DrawWaveplates(r randsrc.Source, res, count int, orders Orders, maxAngle float64) ([]Waveplate, error) {
	plates := make([]Waveplate, count)
	for i := range plates {
		f, err := field.Synthesize(r, field.DrawSpec(r, orders.X, orders.Y, maxAngle, false), res)
		if err != nil {
			return nil, fmt.Errorf("optic axis of plate %d: %w", i, err)
		}
		plates[i] = Waveplate{
			Axis:       f.Scaled(math.Pi),
			Retardance: randsrc.Uniform(r, 0, 2*math.Pi),
		}
	}
	return plates, nil
}

// Compose returns the ordered product W1·W2·…·Wk of the plate operators at
// flat pixel index i.
func Compose(plates []Waveplate, i int) Unitary {
	u := Identity()
	for _, w := range plates {
		u = u.Mul(WaveplateOperator(w.Retardance, w.Axis.Data[i]))
	}
	return u
}

// FromWaveplates composes the cascade at every pixel and retrieves the
// parameter map. Any pixel with |sin E| < tol fails the whole map with a
// *DegenerateError.
func FromWaveplates(plates []Waveplate, res int, tol float64) (*Params, error) {
	if len(plates) == 0 {
		return nil, fmt.Errorf("%w: empty waveplate stack", ErrInvalidOptions)
	}
	if tol == 0 {
		tol = DefaultTolerance
	}
	p := NewParams(res)
	for i := 0; i < p.Pixels(); i++ {
		energy, nx, ny, nz, err := Retrieve(Compose(plates, i), tol)
		if err != nil {
			return nil, &DegenerateError{Row: i / res, Col: i % res, SinE: math.Sin(energy)}
		}
		p.Energy[i] = energy
		p.Theta[i], p.Phi[i] = ToSpherical(nx, ny, nz)
	}
	return p, nil
}

// Waveplates draws a stack size and one pair of optic-axis orders, then the
// plates, and retrieves the resulting parameter map.
func Waveplates(r randsrc.Source, res int, opts WaveplateOptions) (*Params, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	count := randsrc.IntRange(r, opts.Min, opts.Max)
	orders := drawOrders(r, opts.OrderLow, opts.OrderHigh)
	klog.V(2).Infof("waveplates: count=%d orders=%v", count, orders)

	plates, err := DrawWaveplates(r, res, count, orders, opts.MaxAngle)
	if err != nil {
		return nil, err
	}
	return FromWaveplates(plates, res, opts.Tolerance)
}
