// Package gauge canonicalizes parameter maps before they are used as labels.
//
// Measurements cannot tell U from −U, and near the equator of the Bloch
// sphere they cannot tell certain phi branches apart, so a raw map carries a
// redundancy that would let one measurement map to two labels. The rules are
// decided once at the reference pixel (0,0) and applied to the whole map;
// deciding per pixel would tear the label field apart.
package gauge

import (
	"fmt"
	"math"

	"github.com/Noofbiz/qptsynth/process"
)

// Decision records which rules fired.
type Decision struct {
	// FlippedTheta is set when theta was replaced by π − theta.
	FlippedTheta bool
	// MirroredPhi is set when phi was replaced by 2π − phi.
	MirroredPhi bool
}

// Fix applies, in order:
//
//  1. theta[0] > π/2: theta → π − theta everywhere.
//  2. |theta[0] − π/2| < sigma and phi[0] > π: phi → 2π − phi everywhere.
func Fix(p *process.Params, sigma float64) Decision {
	var d Decision
	if p.Theta[0] > math.Pi/2 {
		for i, v := range p.Theta {
			p.Theta[i] = math.Pi - v
		}
		d.FlippedTheta = true
	}
	if math.Abs(p.Theta[0]-math.Pi/2) < sigma && p.Phi[0] > math.Pi {
		for i, v := range p.Phi {
			p.Phi[i] = process.WrapPhi(2*math.Pi - v)
		}
		d.MirroredPhi = true
	}
	return d
}

// Check verifies the label invariants: every value finite, E and theta in
// [0, π], phi in [0, 2π), and theta[0] ≤ π/2.
func Check(p *process.Params) error {
	if len(p.Energy) != p.Pixels() || len(p.Theta) != p.Pixels() || len(p.Phi) != p.Pixels() {
		return fmt.Errorf("gauge: map arrays do not match resolution %d", p.Res)
	}
	for i := 0; i < p.Pixels(); i++ {
		switch e, th, ph := p.Energy[i], p.Theta[i], p.Phi[i]; {
		case !(e >= 0 && e <= math.Pi):
			return fmt.Errorf("gauge: energy %v outside [0, π] at pixel %d", e, i)
		case !(th >= 0 && th <= math.Pi):
			return fmt.Errorf("gauge: theta %v outside [0, π] at pixel %d", th, i)
		case !(ph >= 0 && ph < 2*math.Pi):
			return fmt.Errorf("gauge: phi %v outside [0, 2π) at pixel %d", ph, i)
		}
	}
	if p.Theta[0] > math.Pi/2 {
		return fmt.Errorf("gauge: reference theta %v above the equator", p.Theta[0])
	}
	return nil
}
