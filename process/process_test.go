package process

import (
	"errors"
	"math"
	"math/cmplx"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Noofbiz/qptsynth/field"
	"github.com/Noofbiz/qptsynth/randsrc"
)

func TestSelectStrategy(t *testing.T) {
	cases := []struct {
		name       string
		cx, cy, cz bool
		coin       int
		want       NormStrategy
	}{
		{"NoneConstant", false, false, false, 0, NormJoint},
		{"AllConstant", true, true, true, 1, NormJoint},
		{"OnlyX", true, false, false, 1, NormHoldX},
		{"OnlyY", false, true, false, 0, NormHoldY},
		{"OnlyZ", false, false, true, 1, NormHoldZ},
		{"XY_Coin0", true, true, false, 0, NormHoldX},
		{"XY_Coin1", true, true, false, 1, NormHoldY},
		{"XZ_Coin0", true, false, true, 0, NormHoldX},
		{"XZ_Coin1", true, false, true, 1, NormHoldZ},
		{"YZ_Coin0", false, true, true, 0, NormHoldY},
		{"YZ_Coin1", false, true, true, 1, NormHoldZ},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := SelectStrategy(tc.cx, tc.cy, tc.cz, tc.coin)
			if got != tc.want {
				t.Errorf("SelectStrategy(%v,%v,%v,%d) = %s; want %s", tc.cx, tc.cy, tc.cz, tc.coin, got, tc.want)
			}
		})
	}
}

func randomAxisFields(t *testing.T, r randsrc.Source, res int, orders [3]Orders) (nx, ny, nz []float64) {
	t.Helper()
	var out [3][]float64
	for k, o := range orders {
		f, err := field.Synthesize(r, field.DrawSpec(r, o.X, o.Y, 0.2, true), res)
		require.NoError(t, err)
		out[k] = f.Data
	}
	return out[0], out[1], out[2]
}

func TestNormalize_UnitNormEveryStrategy(t *testing.T) {
	r := randsrc.New(21)
	const res = 10
	cases := []struct {
		orders   [3]Orders
		strategy NormStrategy
	}{
		{[3]Orders{{2, 3}, {1, 4}, {3, 3}}, NormJoint},
		{[3]Orders{{0, 0}, {0, 0}, {0, 0}}, NormJoint},
		{[3]Orders{{0, 0}, {2, 2}, {3, 1}}, NormHoldX},
		{[3]Orders{{2, 2}, {0, 0}, {3, 1}}, NormHoldY},
		{[3]Orders{{2, 2}, {3, 1}, {0, 0}}, NormHoldZ},
	}
	for _, tc := range cases {
		t.Run(tc.strategy.String(), func(t *testing.T) {
			nx, ny, nz := randomAxisFields(t, r, res, tc.orders)
			held := map[NormStrategy][]float64{NormHoldX: nx, NormHoldY: ny, NormHoldZ: nz}[tc.strategy]
			before := append([]float64(nil), held...)

			require.NoError(t, Normalize(tc.strategy, nx, ny, nz, DefaultTolerance))
			for i := range nx {
				norm := nx[i]*nx[i] + ny[i]*ny[i] + nz[i]*nz[i]
				require.InDelta(t, 1.0, norm, 1e-12, "pixel %d", i)
			}
			if held != nil {
				assert.Equal(t, before, held, "held component must not change")
			}
		})
	}
}

func TestNormalize_Singularities(t *testing.T) {
	err := Normalize(NormJoint, []float64{0.5, 0}, []float64{0.5, 0}, []float64{0.5, 0}, DefaultTolerance)
	var se *SingularityError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 1, se.Pixel)
	assert.True(t, errors.Is(err, ErrNormalizationSingularity))

	// held component at the pole leaves no room for the other two
	err = Normalize(NormHoldZ, []float64{0.3}, []float64{0.2}, []float64{1}, DefaultTolerance)
	assert.ErrorIs(t, err, ErrNormalizationSingularity)

	// nothing left to rescale
	err = Normalize(NormHoldY, []float64{0}, []float64{0.5}, []float64{0}, DefaultTolerance)
	assert.ErrorIs(t, err, ErrNormalizationSingularity)
}

func TestContinuous_Ranges(t *testing.T) {
	opts := ContinuousOptions{OrderLow: 0, OrderHigh: 4, MaxAngle: math.Pi / 18, NoiseSigma: 0.01}
	for seed := int64(0); seed < 25; seed++ {
		p, err := Continuous(randsrc.New(seed), 12, opts)
		require.NoError(t, err, "seed %d", seed)
		for i := 0; i < p.Pixels(); i++ {
			require.True(t, p.Energy[i] >= 0 && p.Energy[i] <= math.Pi, "energy %v", p.Energy[i])
			require.True(t, p.Theta[i] >= 0 && p.Theta[i] <= math.Pi, "theta %v", p.Theta[i])
			require.True(t, p.Phi[i] >= 0 && p.Phi[i] < 2*math.Pi, "phi %v", p.Phi[i])
		}
		assert.LessOrEqual(t, p.Theta[0], math.Pi/2, "reference pixel must sit in the northern hemisphere")
	}
}

func TestContinuous_ApplyInverseKeepsEnergyRange(t *testing.T) {
	opts := ContinuousOptions{OrderLow: 1, OrderHigh: 3, NoiseSigma: 0.01, ApplyInverse: true}
	for seed := int64(100); seed < 115; seed++ {
		p, err := Continuous(randsrc.New(seed), 6, opts)
		require.NoError(t, err)
		for _, e := range p.Energy {
			require.True(t, e >= 0 && e <= math.Pi)
		}
		assert.LessOrEqual(t, p.Theta[0], math.Pi/2)
	}
}

func TestInvert(t *testing.T) {
	const sigma = 0.01
	tests := []struct {
		name         string
		nx, ny, nz   []float64
		applyInverse bool
		wantE        []float64
		wantX        []float64
		wantY        []float64
		wantZ        []float64
	}{
		{
			name: "northern reference untouched",
			nx:   []float64{0.6, -0.2}, ny: []float64{0, 0.3}, nz: []float64{0.8, -0.5},
			wantE: []float64{0.4, 2.0},
			wantX: []float64{0.6, -0.2}, wantY: []float64{0, 0.3}, wantZ: []float64{0.8, -0.5},
		},
		{
			name: "southern reference flips nz only",
			nx:   []float64{0.6, -0.2}, ny: []float64{0, 0.3}, nz: []float64{-0.8, 0.5},
			wantE: []float64{0.4, 2.0},
			wantX: []float64{0.6, -0.2}, wantY: []float64{0, 0.3}, wantZ: []float64{0.8, -0.5},
		},
		{
			name: "southern reference with inverse",
			nx:   []float64{0.6, -0.2}, ny: []float64{0, 0.3}, nz: []float64{-0.8, 0.5},
			applyInverse: true,
			wantE:        []float64{math.Pi - 0.4, math.Pi - 2.0},
			wantX:        []float64{-0.6, 0.2}, wantY: []float64{0, -0.3}, wantZ: []float64{0.8, -0.5},
		},
		{
			name: "inverse ignored for northern reference",
			nx:   []float64{0.6, -0.2}, ny: []float64{0, 0.3}, nz: []float64{0.8, -0.5},
			applyInverse: true,
			wantE:        []float64{0.4, 2.0},
			wantX:        []float64{0.6, -0.2}, wantY: []float64{0, 0.3}, wantZ: []float64{0.8, -0.5},
		},
		{
			name: "equatorial band negative nx flips nx",
			nx:   []float64{-0.9, 0.1}, ny: []float64{0.4, 0.3}, nz: []float64{0.005, 0.9},
			wantE: []float64{0.4, 2.0},
			wantX: []float64{0.9, -0.1}, wantY: []float64{0.4, 0.3}, wantZ: []float64{0.005, 0.9},
		},
		{
			name: "equatorial band positive nx untouched",
			nx:   []float64{0.9, 0.1}, ny: []float64{0.4, 0.3}, nz: []float64{0.005, 0.9},
			wantE: []float64{0.4, 2.0},
			wantX: []float64{0.9, 0.1}, wantY: []float64{0.4, 0.3}, wantZ: []float64{0.005, 0.9},
		},
		{
			name: "southern band reference flips nz then nx",
			nx:   []float64{-0.9, 0.1}, ny: []float64{0.4, 0.3}, nz: []float64{-0.005, 0.9},
			wantE: []float64{0.4, 2.0},
			wantX: []float64{0.9, -0.1}, wantY: []float64{0.4, 0.3}, wantZ: []float64{0.005, -0.9},
		},
		{
			name: "outside band negative nx untouched",
			nx:   []float64{-0.9, 0.1}, ny: []float64{0.4, 0.3}, nz: []float64{0.02, 0.9},
			wantE: []float64{0.4, 2.0},
			wantX: []float64{-0.9, 0.1}, wantY: []float64{0.4, 0.3}, wantZ: []float64{0.02, 0.9},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			energy := []float64{0.4, 2.0}
			invert(energy, tc.nx, tc.ny, tc.nz, tc.applyInverse, sigma)
			assert.InDeltaSlice(t, tc.wantE, energy, 1e-15)
			assert.Equal(t, tc.wantX, tc.nx)
			assert.Equal(t, tc.wantY, tc.ny)
			assert.Equal(t, tc.wantZ, tc.nz)
		})
	}
}

func TestDrawOrders_InclusiveBounds(t *testing.T) {
	r := randsrc.New(4)
	seen := map[int]bool{}
	for i := 0; i < 200; i++ {
		o := drawOrders(r, 2, 4)
		require.True(t, o.X >= 2 && o.X <= 4, "order %d", o.X)
		require.True(t, o.Y >= 2 && o.Y <= 4, "order %d", o.Y)
		seen[o.X], seen[o.Y] = true, true
	}
	assert.Equal(t, map[int]bool{2: true, 3: true, 4: true}, seen, "both bounds are reachable")

	assert.Equal(t, Orders{X: 3, Y: 3}, drawOrders(r, 3, 3))
}

func TestContinuous_PoleFactor(t *testing.T) {
	base := ContinuousOptions{OrderLow: 1, OrderHigh: 3, NoiseSigma: 0.01}
	pulled := base
	pulled.PoleFactor = 0.5

	a, err := Continuous(randsrc.New(8), 6, base)
	require.NoError(t, err)
	b, err := Continuous(randsrc.New(8), 6, pulled)
	require.NoError(t, err)
	for i := range a.Theta {
		assert.InDelta(t, a.Theta[i]/2, b.Theta[i], 1e-12)
	}
	assert.Equal(t, a.Phi, b.Phi)
}

func TestContinuous_InvalidOptions(t *testing.T) {
	_, err := Continuous(randsrc.New(1), 4, ContinuousOptions{OrderLow: 3, OrderHigh: 1})
	assert.ErrorIs(t, err, ErrInvalidOptions)
	_, err = Continuous(randsrc.New(1), 4, ContinuousOptions{OrderHigh: 1, PoleFactor: 2})
	assert.ErrorIs(t, err, ErrInvalidOptions)
	_, err = Continuous(randsrc.New(1), 0, ContinuousOptions{OrderHigh: 1})
	assert.ErrorIs(t, err, field.ErrInvalidSpec)
}

func TestCompose_UnitaryForEveryStackSize(t *testing.T) {
	r := randsrc.New(4)
	const res = 6
	for k := 1; k <= 6; k++ {
		plates, err := DrawWaveplates(r, res, k, Orders{2, 3}, 0.2)
		require.NoError(t, err)
		for i := 0; i < res*res; i++ {
			u := Compose(plates, i)
			require.True(t, u.IsUnitary(1e-12), "K=%d pixel %d: %v", k, i, u)
		}
	}
}

func TestWaveplate_HalfWaveAtZeroAxis(t *testing.T) {
	u := WaveplateOperator(math.Pi, 0)
	want := Unitary{{0, 1i}, {1i, 0}}
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			assert.InDelta(t, 0, cmplx.Abs(u[i][j]-want[i][j]), 1e-15, "entry (%d,%d)", i, j)
		}
	}

	const res = 3
	plates := []Waveplate{{Retardance: math.Pi, Axis: field.New(res)}}
	p, err := FromWaveplates(plates, res, DefaultTolerance)
	require.NoError(t, err)
	for i := 0; i < p.Pixels(); i++ {
		assert.InDelta(t, math.Pi/2, p.Energy[i], 1e-12)
		assert.InDelta(t, math.Pi/2, p.Theta[i], 1e-12)
		// [[0,i],[i,0]] = −(cos(π/2)·I − i·sin(π/2)·σx): the retrieved axis
		// is −x, the +x representative belongs to −U.
		assert.InDelta(t, math.Pi, p.Phi[i], 1e-12)
		assert.InDelta(t, 0, WrapPhi(p.Phi[i]-math.Pi), 1e-12)
		assert.InDelta(t, math.Pi/2, math.Pi-p.Energy[i], 1e-12)
	}
}

func TestRetrieve_RoundTrip(t *testing.T) {
	r := randsrc.New(13)
	for trial := 0; trial < 500; trial++ {
		energy := randsrc.Uniform(r, 0.05, math.Pi-0.05)
		theta := randsrc.Uniform(r, 0.05, math.Pi-0.05)
		phi := randsrc.Uniform(r, 0, 2*math.Pi)

		u := FromParams(energy, theta, phi)
		require.True(t, u.IsUnitary(1e-12))

		gotE, nx, ny, nz, err := Retrieve(u, DefaultTolerance)
		require.NoError(t, err)
		gotTheta, gotPhi := ToSpherical(nx, ny, nz)

		assert.InDelta(t, energy, gotE, 1e-9)
		assert.InDelta(t, theta, gotTheta, 1e-9)
		d := math.Abs(phi - gotPhi)
		assert.True(t, d < 1e-9 || math.Abs(d-2*math.Pi) < 1e-9, "phi %v -> %v", phi, gotPhi)
	}
}

func TestRetrieve_Degenerate(t *testing.T) {
	_, _, _, _, err := Retrieve(Identity(), DefaultTolerance)
	assert.ErrorIs(t, err, ErrDegenerateRetrieval)

	minus := Unitary{{-1, 0}, {0, -1}}
	_, _, _, _, err = Retrieve(minus, DefaultTolerance)
	assert.ErrorIs(t, err, ErrDegenerateRetrieval)

	plates := []Waveplate{{Retardance: 0, Axis: field.New(2)}}
	_, err = FromWaveplates(plates, 2, DefaultTolerance)
	var de *DegenerateError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, 0, de.Row)
	assert.Equal(t, 0, de.Col)
	assert.ErrorIs(t, err, ErrDegenerateRetrieval)
}

func TestRetrieve_NearIdentityAndHalfTurn(t *testing.T) {
	for _, energy := range []float64{3e-8, 2e-8, 5e-8, 1e-6, math.Pi - 1e-7, math.Pi - 3e-8} {
		gotE, nx, ny, nz, err := Retrieve(FromParams(energy, 1, 0.5), DefaultTolerance)
		require.NoError(t, err, "E=%v", energy)
		assert.InDelta(t, 1, math.Sqrt(nx*nx+ny*ny+nz*nz), 1e-12, "E=%v", energy)
		theta, phi := ToSpherical(nx, ny, nz)
		assert.InDelta(t, 1, theta, 1e-6, "E=%v", energy)
		assert.InDelta(t, 0.5, phi, 1e-6, "E=%v", energy)
		assert.InDelta(t, energy, gotE, 1e-12, "E=%v", energy)
	}

	_, _, _, _, err := Retrieve(FromParams(1e-12, 1, 0.5), DefaultTolerance)
	assert.ErrorIs(t, err, ErrDegenerateRetrieval)
}

func TestWaveplates_Generate(t *testing.T) {
	opts := WaveplateOptions{Min: 1, Max: 3, OrderLow: 1, OrderHigh: 4, MaxAngle: math.Pi / 18}
	ok := 0
	for seed := int64(0); seed < 20; seed++ {
		p, err := Waveplates(randsrc.New(seed), 8, opts)
		if errors.Is(err, ErrDegenerateRetrieval) {
			continue
		}
		require.NoError(t, err)
		ok++
		for i := 0; i < p.Pixels(); i++ {
			require.True(t, p.Energy[i] >= 0 && p.Energy[i] <= math.Pi)
			require.True(t, p.Theta[i] >= 0 && p.Theta[i] <= math.Pi)
			require.True(t, p.Phi[i] >= 0 && p.Phi[i] < 2*math.Pi)
		}
	}
	assert.Greater(t, ok, 15)
}

func TestWaveplates_InvalidOptions(t *testing.T) {
	_, err := Waveplates(randsrc.New(1), 4, WaveplateOptions{Min: 3, Max: 1, OrderHigh: 2})
	assert.ErrorIs(t, err, ErrInvalidOptions)
	_, err = Waveplates(randsrc.New(1), 4, WaveplateOptions{Min: 0, Max: 1, OrderHigh: 2})
	assert.ErrorIs(t, err, ErrInvalidOptions)
	_, err = FromWaveplates(nil, 4, 0)
	assert.ErrorIs(t, err, ErrInvalidOptions)
}

func TestFromAxisMatchesPauliExpansion(t *testing.T) {
	energy, nx, ny, nz := 0.7, 0.36, 0.48, 0.8
	got := FromAxis(energy, nx, ny, nz)

	c, s := complex(math.Cos(energy), 0), complex(math.Sin(energy), 0)
	var want Unitary
	id := Identity()
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			sum := complex(nx, 0)*PauliX[i][j] + complex(ny, 0)*PauliY[i][j] + complex(nz, 0)*PauliZ[i][j]
			want[i][j] = c*id[i][j] - 1i*s*sum
		}
	}
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			assert.InDelta(t, 0, cmplx.Abs(got[i][j]-want[i][j]), 1e-15)
		}
	}
}
