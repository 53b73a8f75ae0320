package datasets

import (
	"fmt"
	"io"
	"math/rand"
	"sync"

	"github.com/gomlx/gomlx/pkg/core/tensors"

	"github.com/Noofbiz/qptsynth/randsrc"
)

// Replay serves batches from a materialized dataset. Sample order is
// reshuffled every epoch and each served batch carries fresh Gaussian noise
// on its inputs as a cheap proxy for re-measurement. The stored arrays are
// never modified, so noise does not accumulate across epochs.
type Replay struct {
	ds        *Materialized
	batchSize int
	sigma     float64
	seed      int64

	mu    sync.Mutex
	rng   *rand.Rand
	order []int
	pos   int

	// accesses counts served batches; it seeds the noise of each access.
	accesses int
}

// NewReplay shuffles ds with seed and returns a Replay.
func NewReplay(ds *Materialized, batchSize int, sigma float64, seed int64) (*Replay, error) {
	if ds == nil {
		return nil, fmt.Errorf("%w: nil dataset", ErrConfiguration)
	}
	if batchSize < 1 || batchSize > ds.N {
		return nil, fmt.Errorf("%w: batch size %d for %d samples", ErrConfiguration, batchSize, ds.N)
	}
	if sigma < 0 {
		return nil, fmt.Errorf("%w: negative replay sigma %v", ErrConfiguration, sigma)
	}
	r := &Replay{
		ds:        ds,
		batchSize: batchSize,
		sigma:     sigma,
		seed:      seed,
		rng:       randsrc.New(seed),
		order:     make([]int, ds.N),
	}
	for i := range r.order {
		r.order[i] = i
	}
	r.shuffle()
	return r, nil
}

func (r *Replay) shuffle() {
	r.rng.Shuffle(len(r.order), func(i, j int) { r.order[i], r.order[j] = r.order[j], r.order[i] })
}

// Len returns the number of full batches per epoch; a trailing partial batch
// is dropped.
func (r *Replay) Len() int { return r.ds.N / r.batchSize }

// Order returns a copy of the current epoch's sample order.
func (r *Replay) Order() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.order...)
}

// Batch returns batch index of the current epoch: a copy of the shuffled
// samples with N(0, sigma) noise added to every input value. Every call draws
// fresh noise, seeded from the replay seed and the number of earlier calls,
// so a sequence of calls is reproducible. Labels are untouched.
func (r *Replay) Batch(index int) (*Batch, error) {
	if index < 0 || index >= r.Len() {
		return nil, fmt.Errorf("batch index %d out of range [0, %d)", index, r.Len())
	}
	r.mu.Lock()
	indices := append([]int(nil), r.order[index*r.batchSize:(index+1)*r.batchSize]...)
	access := r.accesses
	r.accesses++
	r.mu.Unlock()

	b, err := r.ds.Batch(indices)
	if err != nil {
		return nil, err
	}
	if r.sigma > 0 {
		noise := randsrc.New(batchSeed(r.seed, access))
		for i := range b.Inputs {
			b.Inputs[i] += float32(randsrc.Gauss(noise, r.sigma))
		}
	}
	return b, nil
}

// Name implements gomlx's train.Dataset.
func (r *Replay) Name() string { return "qptsynth-replay" }

// Yield implements gomlx's train.Dataset, returning io.EOF at the end of the
// epoch.
func (r *Replay) Yield() (spec any, inputs []*tensors.Tensor, labels []*tensors.Tensor, err error) {
	r.mu.Lock()
	if r.pos >= r.Len() {
		r.mu.Unlock()
		return nil, nil, nil, io.EOF
	}
	index := r.pos
	r.pos++
	r.mu.Unlock()

	b, err := r.Batch(index)
	if err != nil {
		return nil, nil, nil, err
	}
	in, lab, err := b.ToGomlxTensors()
	if err != nil {
		return nil, nil, nil, err
	}
	return r, []*tensors.Tensor{in}, []*tensors.Tensor{lab}, nil
}

// Reset starts a new epoch with a fresh shuffle.
func (r *Replay) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.shuffle()
	r.pos = 0
}
