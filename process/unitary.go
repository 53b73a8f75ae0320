package process

import (
	"math"
	"math/cmplx"
)

// Unitary is a 2×2 complex operator, indexed [row][col].
type Unitary [2][2]complex128

// Pauli matrices.
var (
	PauliX = Unitary{{0, 1}, {1, 0}}
	PauliY = Unitary{{0, -1i}, {1i, 0}}
	PauliZ = Unitary{{1, 0}, {0, -1}}
)

// Identity returns the 2×2 identity.
func Identity() Unitary {
	return Unitary{{1, 0}, {0, 1}}
}

// Mul returns u·v.
func (u Unitary) Mul(v Unitary) Unitary {
	return Unitary{
		{u[0][0]*v[0][0] + u[0][1]*v[1][0], u[0][0]*v[0][1] + u[0][1]*v[1][1]},
		{u[1][0]*v[0][0] + u[1][1]*v[1][0], u[1][0]*v[0][1] + u[1][1]*v[1][1]},
	}
}

// Dagger returns the conjugate transpose of u.
func (u Unitary) Dagger() Unitary {
	return Unitary{
		{cmplx.Conj(u[0][0]), cmplx.Conj(u[1][0])},
		{cmplx.Conj(u[0][1]), cmplx.Conj(u[1][1])},
	}
}

// Trace returns u[0][0] + u[1][1].
func (u Unitary) Trace() complex128 {
	return u[0][0] + u[1][1]
}

// Apply returns u·v for a column vector v.
func (u Unitary) Apply(v [2]complex128) [2]complex128 {
	return [2]complex128{
		u[0][0]*v[0] + u[0][1]*v[1],
		u[1][0]*v[0] + u[1][1]*v[1],
	}
}

// IsUnitary reports whether u·u† equals the identity within tol on every
// entry.
func (u Unitary) IsUnitary(tol float64) bool {
	p := u.Mul(u.Dagger())
	id := Identity()
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			if cmplx.Abs(p[i][j]-id[i][j]) > tol {
				return false
			}
		}
	}
	return true
}

// FromParams builds U = cos(E)·I − i·sin(E)·(nx·σx + ny·σy + nz·σz) with the
// axis given in spherical form.
func FromParams(energy, theta, phi float64) Unitary {
	nx, ny, nz := Cartesian(theta, phi)
	return FromAxis(energy, nx, ny, nz)
}

// FromAxis builds U from a quasi-energy and a Cartesian Bloch axis.
func FromAxis(energy, nx, ny, nz float64) Unitary {
	c := complex(math.Cos(energy), 0)
	s := math.Sin(energy)
	// -i·s·(nx ∓ i·ny) = -s·ny ∓ i·s·nx
	return Unitary{
		{c - complex(0, s*nz), complex(-s*ny, -s*nx)},
		{complex(s*ny, -s*nx), c + complex(0, s*nz)},
	}
}

// Cartesian converts a polar/azimuth pair to a unit Bloch vector.
func Cartesian(theta, phi float64) (nx, ny, nz float64) {
	st := math.Sin(theta)
	return st * math.Cos(phi), st * math.Sin(phi), math.Cos(theta)
}
