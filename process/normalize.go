package process

import "math"

// NormStrategy selects how the three Cartesian axis fields are projected
// onto the unit sphere.
type NormStrategy int

const (
	// NormJoint divides all three components by their Euclidean norm.
	NormJoint NormStrategy = iota
	// NormHoldX keeps nx and rescales ny, nz against 1 − nx².
	NormHoldX
	// NormHoldY keeps ny and rescales nx, nz against 1 − ny².
	NormHoldY
	// NormHoldZ keeps nz and rescales nx, ny against 1 − nz².
	NormHoldZ
)

func (s NormStrategy) String() string {
	switch s {
	case NormJoint:
		return "joint"
	case NormHoldX:
		return "hold-x"
	case NormHoldY:
		return "hold-y"
	case NormHoldZ:
		return "hold-z"
	}
	return "unknown"
}

// SelectStrategy picks the normalization rule from which component fields
// are spatially constant. When two components are constant the coin (0 or 1)
// decides which of them is held:
//
//	x,y constant: 0 → hold x, 1 → hold y
//	x,z constant: 0 → hold x, 1 → hold z
//	y,z constant: 0 → hold y, 1 → hold z
func SelectStrategy(constX, constY, constZ bool, coin int) NormStrategy {
	n := 0
	for _, c := range []bool{constX, constY, constZ} {
		if c {
			n++
		}
	}
	switch n {
	case 0, 3:
		return NormJoint
	case 1:
		switch {
		case constX:
			return NormHoldX
		case constY:
			return NormHoldY
		default:
			return NormHoldZ
		}
	}
	switch {
	case constX && constY:
		if coin == 0 {
			return NormHoldX
		}
		return NormHoldY
	case constX && constZ:
		if coin == 0 {
			return NormHoldX
		}
		return NormHoldZ
	default:
		if coin == 0 {
			return NormHoldY
		}
		return NormHoldZ
	}
}

// Normalize projects (nx, ny, nz) onto the unit sphere in place using the
// given strategy. A denominator below tol fails with a *SingularityError.
func Normalize(s NormStrategy, nx, ny, nz []float64, tol float64) error {
	switch s {
	case NormHoldX:
		return holdOne(s, nx, ny, nz, tol)
	case NormHoldY:
		return holdOne(s, ny, nx, nz, tol)
	case NormHoldZ:
		return holdOne(s, nz, nx, ny, tol)
	}
	for i := range nx {
		norm := math.Sqrt(nx[i]*nx[i] + ny[i]*ny[i] + nz[i]*nz[i])
		if norm < tol {
			return &SingularityError{Pixel: i, Strategy: s, Denominator: norm}
		}
		nx[i] /= norm
		ny[i] /= norm
		nz[i] /= norm
	}
	return nil
}

// holdOne keeps held fixed and rescales a, b so that a²+b² = 1 − held².
func holdOne(s NormStrategy, held, a, b []float64, tol float64) error {
	for i := range held {
		room := 1 - held[i]*held[i]
		if room < tol {
			return &SingularityError{Pixel: i, Strategy: s, Denominator: room}
		}
		rest := a[i]*a[i] + b[i]*b[i]
		if rest < tol {
			return &SingularityError{Pixel: i, Strategy: s, Denominator: rest}
		}
		norm := math.Sqrt(rest / room)
		a[i] /= norm
		b[i] /= norm
	}
	return nil
}
