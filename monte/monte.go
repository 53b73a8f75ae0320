// Package monte runs Monte Carlo re-measurement studies: one parameter map is
// measured many times under the same noise model and the spread of the
// recorded values is compared with the noiseless probabilities. It is used to
// check the noise model, e.g. that the per-pixel spread approaches the
// configured sigma away from the [0, 1] edges and that the edge rule biases
// values near 0 and 1 inward.
package monte

import (
	"errors"
	"fmt"
	"math/rand"
	"runtime"
	"sync"

	"gonum.org/v1/gonum/stat"
	"k8s.io/klog/v2"

	"github.com/Noofbiz/qptsynth/measure"
	"github.com/Noofbiz/qptsynth/process"
	"github.com/Noofbiz/qptsynth/randsrc"
)

// Monte re-measures parameter maps with a fixed Simulator.
type Monte struct {
	Sim *measure.Simulator

	// Workers bounds parallelism. Zero means runtime.NumCPU.
	Workers int

	// rng draws the per-simulation seeds. Simulate is not safe for concurrent
	// use because of it.
	rng *rand.Rand
}

// NewMonte creates a Monte whose simulation seeds derive from seed.
func NewMonte(sim *measure.Simulator, seed int64) (*Monte, error) {
	if sim == nil {
		return nil, errors.New("simulator cannot be nil")
	}
	return &Monte{Sim: sim, rng: randsrc.New(seed)}, nil
}

// Simulate measures p numSims times, each with its own RNG.
func (m *Monte) Simulate(p *process.Params, numSims int) ([]*measure.Map, error) {
	if m == nil {
		return nil, errors.New("Monte object is nil")
	}
	if numSims <= 0 {
		return nil, fmt.Errorf("numSims must be > 0")
	}

	// Precompute independent seeds using the Monte RNG (serial access).
	seeds := make([]int64, numSims)
	for i := range seeds {
		seeds[i] = m.rng.Int63()
	}

	workerCount := m.Workers
	if workerCount <= 0 {
		workerCount = runtime.NumCPU()
	}
	workerCount = min(workerCount, numSims)

	results := make([]*measure.Map, numSims)
	errs := make([]error, numSims)
	jobs := make(chan int, numSims)
	var wg sync.WaitGroup
	wg.Add(workerCount)
	for w := 0; w < workerCount; w++ {
		go func() {
			defer wg.Done()
			for sim := range jobs {
				results[sim], errs[sim] = m.Sim.Measure(randsrc.New(seeds[sim]), p)
			}
		}()
	}
	for i := 0; i < numSims; i++ {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("simulation %d: %w", i, err)
		}
	}
	klog.V(1).Infof("monte: %d re-measurements of a %dx%d map", numSims, p.Res, p.Res)
	return results, nil
}

// ChannelSummary describes one measurement channel across simulations.
type ChannelSummary struct {
	// Bias is the mean of recorded − noiseless over every pixel and run.
	Bias float64
	// Std is the per-pixel standard deviation across runs, averaged over
	// pixels.
	Std float64
	// Expected is the mean noiseless probability of the channel.
	Expected float64
}

// Summary is the result of a re-measurement study.
type Summary struct {
	Runs     int
	Channels []ChannelSummary
}

// Summarize compares runs, all measured from p, with the noiseless
// measurement of p.
func (m *Monte) Summarize(p *process.Params, runs []*measure.Map) (*Summary, error) {
	if len(runs) < 2 {
		return nil, fmt.Errorf("need at least 2 runs, got %d", len(runs))
	}
	expected := m.Sim.Expected(p)
	for i, r := range runs {
		if r.Res != expected.Res || r.Channels != expected.Channels {
			return nil, fmt.Errorf("run %d has shape (%d, %d), want (%d, %d)", i, r.Res, r.Channels, expected.Res, expected.Channels)
		}
	}

	pixels := p.Pixels()
	s := &Summary{Runs: len(runs), Channels: make([]ChannelSummary, expected.Channels)}
	perPixel := make([]float64, len(runs))
	residuals := make([]float64, 0, len(runs)*pixels)
	stds := make([]float64, pixels)
	for ch := range s.Channels {
		residuals = residuals[:0]
		want := expected.Channel(ch)
		for px := 0; px < pixels; px++ {
			for k, r := range runs {
				v := r.Data[px*r.Channels+ch]
				perPixel[k] = v
				residuals = append(residuals, v-want[px])
			}
			stds[px] = stat.StdDev(perPixel, nil)
		}
		s.Channels[ch] = ChannelSummary{
			Bias:     stat.Mean(residuals, nil),
			Std:      stat.Mean(stds, nil),
			Expected: stat.Mean(want, nil),
		}
	}
	return s, nil
}
