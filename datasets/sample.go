package datasets

import (
	"fmt"

	"github.com/gomlx/gomlx/pkg/core/tensors"

	"github.com/Noofbiz/qptsynth/measure"
	"github.com/Noofbiz/qptsynth/process"
)

// Mode selects how a sample's parameter map is produced.
type Mode int

const (
	// Continuous draws the map from independent smooth fields.
	Continuous Mode = iota
	// Waveplates composes a random cascade of optical waveplates.
	Waveplates
)

func (m Mode) String() string {
	switch m {
	case Continuous:
		return "continuous"
	case Waveplates:
		return "waveplates"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// Sample is one (measurement, label) pair.
type Sample struct {
	Measurements *measure.Map
	Params       *process.Params
	Mode         Mode
	NearPole     bool
	Seed         int64
}

// SampleError reports a sample that could not be produced. Err wraps the
// underlying field, process or measure error; callers recover by generating
// again with a different seed.
type SampleError struct {
	Index int
	Seed  int64
	Mode  Mode
	Err   error
}

func (e *SampleError) Error() string {
	return fmt.Sprintf("sample %d (seed %d, %s): %v", e.Index, e.Seed, e.Mode, e.Err)
}

func (e *SampleError) Unwrap() error { return e.Err }

// Batch stores B samples in flat contiguous buffers: Inputs shaped
// (B, Res, Res, Channels) and Labels shaped (B, Res, Res, 3) with labels
// ordered (E, theta, phi).
type Batch struct {
	Inputs   []float32
	Labels   []float32
	Size     int
	Res      int
	Channels int
}

// NewBatch allocates an empty batch.
func NewBatch(size, res, channels int) *Batch {
	return &Batch{
		Inputs:   make([]float32, size*res*res*channels),
		Labels:   make([]float32, size*res*res*3),
		Size:     size,
		Res:      res,
		Channels: channels,
	}
}

// InputLen is the number of input values per sample.
func (b *Batch) InputLen() int { return b.Res * b.Res * b.Channels }

// LabelLen is the number of label values per sample.
func (b *Batch) LabelLen() int { return b.Res * b.Res * 3 }

// Put writes s at position i.
func (b *Batch) Put(i int, s *Sample) error {
	m, p := s.Measurements, s.Params
	if m.Res != b.Res || p.Res != b.Res || m.Channels != b.Channels {
		return fmt.Errorf("sample shape (%d, %d, %d) does not fit batch (%d, %d, %d)",
			m.Res, p.Res, m.Channels, b.Res, b.Res, b.Channels)
	}
	in := b.Inputs[i*b.InputLen() : (i+1)*b.InputLen()]
	for j, v := range m.Data {
		in[j] = float32(v)
	}
	lab := b.Labels[i*b.LabelLen() : (i+1)*b.LabelLen()]
	for px := 0; px < p.Pixels(); px++ {
		lab[3*px] = float32(p.Energy[px])
		lab[3*px+1] = float32(p.Theta[px])
		lab[3*px+2] = float32(p.Phi[px])
	}
	return nil
}

// Example returns views of the input and label buffers of sample i.
func (b *Batch) Example(i int) (inputs, labels []float32) {
	return b.Inputs[i*b.InputLen() : (i+1)*b.InputLen()], b.Labels[i*b.LabelLen() : (i+1)*b.LabelLen()]
}

// ToGomlxTensors converts the batch to gomlx tensors shaped
// (B, Res, Res, Channels) and (B, Res, Res, 3).
func (b *Batch) ToGomlxTensors() (*tensors.Tensor, *tensors.Tensor, error) {
	if len(b.Inputs) != b.Size*b.InputLen() || len(b.Labels) != b.Size*b.LabelLen() {
		return nil, nil, fmt.Errorf("batch buffers do not match shape (%d, %d, %d, %d)", b.Size, b.Res, b.Res, b.Channels)
	}
	inT := tensors.FromFlatDataAndDimensions(b.Inputs, b.Size, b.Res, b.Res, b.Channels)
	labT := tensors.FromFlatDataAndDimensions(b.Labels, b.Size, b.Res, b.Res, 3)
	return inT, labT, nil
}
