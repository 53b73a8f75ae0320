package datasets

import (
	"context"
	"fmt"
	"io"
	"runtime"
	"sync"
	"time"

	"github.com/gomlx/gomlx/pkg/core/tensors"
	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"

	"github.com/Noofbiz/qptsynth/gauge"
	"github.com/Noofbiz/qptsynth/measure"
	"github.com/Noofbiz/qptsynth/process"
	"github.com/Noofbiz/qptsynth/randsrc"
)

// Generator produces batches on the fly. Nothing is retained between
// batches; batch i is fully determined by the configured seed and i, for any
// worker count.
type Generator struct {
	cfg     Config
	sim     *measure.Simulator
	metrics *Metrics
	workers int

	mu   sync.Mutex
	next int // next batch index handed out by NextBatch
	pos  int // batches yielded in the current epoch
}

// Option configures a Generator.
type Option func(*Generator)

// WithMetrics records sample and batch metrics.
func WithMetrics(m *Metrics) Option {
	return func(g *Generator) { g.metrics = m }
}

// WithWorkers overrides Config.Workers.
func WithWorkers(n int) Option {
	return func(g *Generator) {
		if n > 0 {
			g.workers = n
		}
	}
}

// NewGenerator validates cfg and returns a Generator.
func NewGenerator(cfg Config, opts ...Option) (*Generator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	sim, err := measure.NewSimulator(cfg.Scheme(), cfg.Noise, cfg.StateNoise)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	g := &Generator{cfg: cfg, sim: sim, workers: cfg.Workers}
	if g.workers == 0 {
		g.workers = runtime.GOMAXPROCS(0)
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Config returns the validated configuration.
func (g *Generator) Config() Config { return g.cfg }

// Simulator returns the measurement simulator shared by every sample.
func (g *Generator) Simulator() *measure.Simulator { return g.sim }

// Sample runs process generation, gauge fixing and measurement for one
// sample drawing only from r.
func (g *Generator) Sample(r randsrc.Source, mode Mode, nearPole bool) (*Sample, error) {
	var (
		p   *process.Params
		err error
	)
	switch mode {
	case Continuous:
		p, err = process.Continuous(r, g.cfg.Resolution, g.cfg.ContinuousOptions(nearPole))
	case Waveplates:
		p, err = process.Waveplates(r, g.cfg.Resolution, g.cfg.WaveplateOptions())
	default:
		return nil, fmt.Errorf("unknown mode %v", mode)
	}
	if err != nil {
		return nil, err
	}

	d := gauge.Fix(p, g.cfg.Noise)
	klog.V(2).Infof("sample: mode=%s nearPole=%t flippedTheta=%t mirroredPhi=%t", mode, nearPole, d.FlippedTheta, d.MirroredPhi)
	if err := gauge.Check(p); err != nil {
		return nil, err
	}

	m, err := g.sim.Measure(r, p)
	if err != nil {
		return nil, err
	}
	return &Sample{Measurements: m, Params: p, Mode: mode, NearPole: nearPole}, nil
}

// job is the serially drawn plan of one sample.
type job struct {
	seed     int64
	mode     Mode
	nearPole bool
}

// plan draws n sample plans from master. Position i is treated as position
// i mod BatchSize of a batch when routing near-pole samples.
func (g *Generator) plan(master randsrc.Source, n int) []job {
	prob := g.cfg.WaveplateProbability()
	cut := g.cfg.BatchSize - g.cfg.NearPoleCount()
	jobs := make([]job, n)
	for i := range jobs {
		j := job{seed: master.Int63(), mode: Continuous}
		switch {
		case prob >= 1:
			j.mode = Waveplates
		case prob > 0 && master.Float64() < prob:
			j.mode = Waveplates
		}
		j.nearPole = j.mode == Continuous && i%g.cfg.BatchSize >= cut
		jobs[i] = j
	}
	return jobs
}

// run generates every job on the worker pool and hands the results to put,
// which must be safe for concurrent calls on distinct indices. offset is
// added to the index reported in a SampleError.
func (g *Generator) run(ctx context.Context, jobs []job, offset int, put func(i int, s *Sample) error) error {
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(g.workers)
	for i, j := range jobs {
		if egCtx.Err() != nil {
			break
		}
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			s, err := g.Sample(randsrc.New(j.seed), j.mode, j.nearPole)
			if err != nil {
				g.metrics.failure(err)
				return &SampleError{Index: offset + i, Seed: j.seed, Mode: j.mode, Err: err}
			}
			s.Seed = j.seed
			g.metrics.sample(j.mode)
			return put(i, s)
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// Batch generates batch index. The batch's master RNG is seeded from the
// configured seed and index, so the same index always yields the same batch.
func (g *Generator) Batch(index int) (*Batch, error) {
	return g.BatchContext(context.Background(), index)
}

// BatchContext is Batch with cancellation.
func (g *Generator) BatchContext(ctx context.Context, index int) (*Batch, error) {
	if index < 0 {
		return nil, fmt.Errorf("negative batch index %d", index)
	}
	start := time.Now()
	master := randsrc.New(batchSeed(g.cfg.Seed, index))
	jobs := g.plan(master, g.cfg.BatchSize)

	b := NewBatch(g.cfg.BatchSize, g.cfg.Resolution, g.cfg.Channels())
	if err := g.run(ctx, jobs, 0, b.Put); err != nil {
		return nil, fmt.Errorf("batch %d: %w", index, err)
	}
	g.metrics.batch(start)
	klog.V(1).Infof("generated batch %d (%d samples) in %s", index, b.Size, time.Since(start))
	return b, nil
}

// NextBatch generates the batch after the last one handed out.
func (g *Generator) NextBatch() (*Batch, error) {
	g.mu.Lock()
	index := g.next
	g.next++
	g.mu.Unlock()
	return g.Batch(index)
}

// Len returns batches per epoch.
func (g *Generator) Len() int { return g.cfg.BatchesPerEpoch }

// Name implements gomlx's train.Dataset.
func (g *Generator) Name() string { return "qptsynth-generator" }

// Yield implements gomlx's train.Dataset. It returns io.EOF after
// BatchesPerEpoch batches until Reset is called.
func (g *Generator) Yield() (spec any, inputs []*tensors.Tensor, labels []*tensors.Tensor, err error) {
	g.mu.Lock()
	if g.pos >= g.cfg.BatchesPerEpoch {
		g.mu.Unlock()
		return nil, nil, nil, io.EOF
	}
	g.pos++
	g.mu.Unlock()

	b, err := g.NextBatch()
	if err != nil {
		return nil, nil, nil, err
	}
	in, lab, err := b.ToGomlxTensors()
	if err != nil {
		return nil, nil, nil, err
	}
	return g, []*tensors.Tensor{in}, []*tensors.Tensor{lab}, nil
}

// Reset starts a new epoch. Batch indices keep advancing, so each epoch sees
// fresh samples.
func (g *Generator) Reset() {
	g.mu.Lock()
	g.pos = 0
	g.mu.Unlock()
}

// batchSeed mixes seed and index with the splitmix64 finalizer.
func batchSeed(seed int64, index int) int64 {
	z := uint64(seed) + uint64(index+1)*0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	z ^= z >> 31
	return int64(z >> 1)
}
