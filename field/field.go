// Package field synthesizes smooth pseudo-random scalar fields over an R×R
// grid from a truncated 2D Fourier series with random coefficients.
//
// A field is drawn in two steps. DrawSpec fixes the geometry of one draw (the
// frequency orders, a random in-plane rotation and a random sub-window of the
// unit square that emulates imaging only part of the sample). Synthesize then
// draws the Fourier coefficients and evaluates the series on the grid.
package field

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/Noofbiz/qptsynth/randsrc"
)

// ErrInvalidSpec reports a malformed Spec or resolution.
var ErrInvalidSpec = errors.New("field: invalid field spec")

// Window is the rectangle of the unit square the grid is laid over.
type Window struct {
	XMin, XMax float64
	YMin, YMax float64
}

// Spec describes one field draw. It is immutable once drawn and consumed by
// a single call to Synthesize.
type Spec struct {
	// OrderX and OrderY are the highest frequency indices on each axis.
	OrderX, OrderY int

	// Low and High bound the uniformly drawn Fourier coefficients.
	Low, High float64

	// Angle rotates the sample coordinates before evaluation.
	Angle float64

	Window Window

	// Signed selects output in [-1,1]; otherwise values are mapped to [0,1].
	Signed bool
}

// Constant reports whether the spec describes a spatially constant field.
func (s Spec) Constant() bool {
	return s.OrderX == 0 && s.OrderY == 0
}

// Validate checks the spec against a grid resolution.
func (s Spec) Validate(res int) error {
	switch {
	case res < 1:
		return fmt.Errorf("%w: resolution must be >= 1, got %d", ErrInvalidSpec, res)
	case !(s.Low < s.High):
		return fmt.Errorf("%w: coefficient bounds require low < high, got [%v, %v]", ErrInvalidSpec, s.Low, s.High)
	case s.OrderX < 0 || s.OrderY < 0:
		return fmt.Errorf("%w: frequency orders must be >= 0, got (%d, %d)", ErrInvalidSpec, s.OrderX, s.OrderY)
	case !(s.Window.XMax > s.Window.XMin) || !(s.Window.YMax > s.Window.YMin):
		return fmt.Errorf("%w: window must have positive extent, got %+v", ErrInvalidSpec, s.Window)
	case math.IsNaN(s.Angle) || math.IsInf(s.Angle, 0):
		return fmt.Errorf("%w: rotation angle must be finite", ErrInvalidSpec)
	}
	return nil
}

// DrawSpec draws the geometry of one field: a rotation angle in
// [0, maxAngle] followed by a window whose offsets lie in [0,1) and whose
// extents lie in [0.5,1). Coefficients are bounded by [-1,1].
func DrawSpec(r randsrc.Source, orderX, orderY int, maxAngle float64, signed bool) Spec {
	angle := randsrc.Uniform(r, 0, maxAngle)

	xMin := randsrc.Uniform(r, 0, 1)
	xMax := xMin + randsrc.Uniform(r, 0.5, 1)
	yMin := randsrc.Uniform(r, 0, 1)
	yMax := yMin + randsrc.Uniform(r, 0.5, 1)

	return Spec{
		OrderX: orderX,
		OrderY: orderY,
		Low:    -1,
		High:   1,
		Angle:  angle,
		Window: Window{XMin: xMin, XMax: xMax, YMin: yMin, YMax: yMax},
		Signed: signed,
	}
}

// Field is an R×R real array stored row-major.
type Field struct {
	Res  int
	Data []float64
}

// New allocates a zero field.
func New(res int) *Field {
	return &Field{Res: res, Data: make([]float64, res*res)}
}

// At returns the value at row r, column c.
func (f *Field) At(r, c int) float64 {
	return f.Data[r*f.Res+c]
}

// IsConstant reports whether every pixel holds the same value.
func (f *Field) IsConstant() bool {
	for _, v := range f.Data[1:] {
		if v != f.Data[0] {
			return false
		}
	}
	return true
}

// Scaled returns a copy of f multiplied by k.
func (f *Field) Scaled(k float64) *Field {
	out := &Field{Res: f.Res, Data: append([]float64(nil), f.Data...)}
	floats.Scale(k, out.Data)
	return out
}

// Synthesize evaluates the Fourier series described by spec on a res×res
// grid. The result is normalized by its largest absolute value; a constant
// spec is additionally multiplied by a U[0,1) scalar so constant fields do
// not all collapse onto ±1.
func Synthesize(r randsrc.Source, spec Spec, res int) (*Field, error) {
	if err := spec.Validate(res); err != nil {
		return nil, err
	}

	xs := linspace(spec.Window.XMin, spec.Window.XMax, res)
	ys := linspace(spec.Window.YMin, spec.Window.YMax, res)

	// rotated mesh, rows follow y and columns follow x
	n := res * res
	xr := make([]float64, n)
	yr := make([]float64, n)
	cosA, sinA := math.Cos(spec.Angle), math.Sin(spec.Angle)
	for row := 0; row < res; row++ {
		for col := 0; col < res; col++ {
			i := row*res + col
			xr[i] = cosA*xs[col] - sinA*ys[row]
			yr[i] = sinA*xs[col] + cosA*ys[row]
		}
	}

	dimX, dimY := spec.OrderX+1, spec.OrderY+1
	alpha := drawCoefficients(r, spec, dimX*dimY)
	beta := drawCoefficients(r, spec, dimX*dimY)
	delta := drawCoefficients(r, spec, dimX*dimY)
	gamma := drawCoefficients(r, spec, dimX*dimY)

	out := New(res)
	cx := make([]float64, n)
	sx := make([]float64, n)
	cy := make([]float64, n)
	sy := make([]float64, n)
	for i := 0; i < dimX; i++ {
		fx := 2 * math.Pi * float64(i)
		for k := range xr {
			cx[k], sx[k] = math.Cos(fx*xr[k]), math.Sin(fx*xr[k])
		}
		for j := 0; j < dimY; j++ {
			fy := 2 * math.Pi * float64(j)
			a, b, d, g := alpha[i*dimY+j], beta[i*dimY+j], delta[i*dimY+j], gamma[i*dimY+j]
			for k := range yr {
				cy[k], sy[k] = math.Cos(fy*yr[k]), math.Sin(fy*yr[k])
				out.Data[k] += a*cx[k]*sy[k] + b*sx[k]*cy[k] + d*cx[k]*cy[k] + g*sx[k]*sy[k]
			}
		}
	}

	if peak := floats.Norm(out.Data, math.Inf(1)); peak > 0 {
		floats.Scale(1/peak, out.Data)
	}

	if spec.Constant() {
		floats.Scale(r.Float64(), out.Data)
	}

	if !spec.Signed {
		floats.AddConst(1, out.Data)
		floats.Scale(0.5, out.Data)
	}
	return out, nil
}

func drawCoefficients(r randsrc.Source, spec Spec, n int) []float64 {
	c := make([]float64, n)
	for i := range c {
		c[i] = randsrc.Uniform(r, spec.Low, spec.High)
	}
	return c
}

// linspace returns n evenly spaced samples over [lo, hi]. A single sample
// sits at lo.
func linspace(lo, hi float64, n int) []float64 {
	if n == 1 {
		return []float64{lo}
	}
	return floats.Span(make([]float64, n), lo, hi)
}
