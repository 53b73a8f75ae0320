package datasets

import (
	"context"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"k8s.io/klog/v2"

	"github.com/Noofbiz/qptsynth/measure"
	"github.com/Noofbiz/qptsynth/randsrc"
)

// containerVersion is incremented when the on-disk format changes.
const containerVersion = 1

// Materialized is a generated dataset held in memory: N measurement maps
// shaped (N, Res, Res, Channels) and N label maps shaped (N, Res, Res, 3).
type Materialized struct {
	N        int
	Res      int
	Channels int
	Inputs   []float32
	Labels   []float32
}

// containerFormat is the gob payload. The header fields are checked on load.
type containerFormat struct {
	Version   int
	CreatedAt int64
	N         int
	Res       int
	Channels  int
	Inputs    []float32
	Labels    []float32
}

// NewMaterialized allocates an empty container for n samples.
func NewMaterialized(n, res, channels int) *Materialized {
	return &Materialized{
		N:        n,
		Res:      res,
		Channels: channels,
		Inputs:   make([]float32, n*res*res*channels),
		Labels:   make([]float32, n*res*res*3),
	}
}

func (d *Materialized) inputLen() int { return d.Res * d.Res * d.Channels }
func (d *Materialized) labelLen() int { return d.Res * d.Res * 3 }

// Len returns the number of samples.
func (d *Materialized) Len() int { return d.N }

// Bytes returns the in-memory size of the two arrays.
func (d *Materialized) Bytes() uint64 {
	return uint64(len(d.Inputs)+len(d.Labels)) * 4
}

func (d *Materialized) validate() error {
	if d.N < 0 || d.Res < 1 || (d.Channels != 5 && d.Channels != 6) {
		return fmt.Errorf("invalid dataset shape N=%d R=%d C=%d", d.N, d.Res, d.Channels)
	}
	if len(d.Inputs) != d.N*d.inputLen() || len(d.Labels) != d.N*d.labelLen() {
		return fmt.Errorf("dataset arrays (%d, %d) do not match shape N=%d R=%d C=%d",
			len(d.Inputs), len(d.Labels), d.N, d.Res, d.Channels)
	}
	return nil
}

// Example returns copies of the inputs and labels of sample i.
func (d *Materialized) Example(i int) (inputs []float32, labels []float32, err error) {
	if i < 0 || i >= d.N {
		return nil, nil, fmt.Errorf("index %d out of range [0, %d)", i, d.N)
	}
	inputs = append([]float32(nil), d.Inputs[i*d.inputLen():(i+1)*d.inputLen()]...)
	labels = append([]float32(nil), d.Labels[i*d.labelLen():(i+1)*d.labelLen()]...)
	return inputs, labels, nil
}

// Batch copies the given samples, in order, into a new Batch.
func (d *Materialized) Batch(indices []int) (*Batch, error) {
	b := NewBatch(len(indices), d.Res, d.Channels)
	for pos, i := range indices {
		if i < 0 || i >= d.N {
			return nil, fmt.Errorf("index %d out of range [0, %d)", i, d.N)
		}
		copy(b.Inputs[pos*d.inputLen():], d.Inputs[i*d.inputLen():(i+1)*d.inputLen()])
		copy(b.Labels[pos*d.labelLen():], d.Labels[i*d.labelLen():(i+1)*d.labelLen()])
	}
	return b, nil
}

// Reordered returns a copy of d whose measurement channels are permuted with
// measure.Reorder, converting a five-channel set recorded in the rotated
// basis to the standard channel order. Labels are copied unchanged.
func (d *Materialized) Reordered() (*Materialized, error) {
	if err := d.validate(); err != nil {
		return nil, err
	}
	out := NewMaterialized(d.N, d.Res, d.Channels)
	copy(out.Labels, d.Labels)
	n := d.inputLen()
	m := measure.NewMap(d.Res, d.Channels)
	for i := 0; i < d.N; i++ {
		for k, v := range d.Inputs[i*n : (i+1)*n] {
			m.Data[k] = float64(v)
		}
		r, err := measure.Reorder(m)
		if err != nil {
			return nil, err
		}
		dst := out.Inputs[i*n : (i+1)*n]
		for k, v := range r.Data {
			dst[k] = float32(v)
		}
	}
	return out, nil
}

// Save writes the dataset to path with encoding/gob. The write is atomic:
// the data goes to a temp file in the same directory which is then renamed.
func (d *Materialized) Save(path string) error {
	if path == "" {
		return fmt.Errorf("empty dataset path")
	}
	if err := d.validate(); err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}

	tmpFile, err := os.CreateTemp(dir, filepath.Base(path)+".tmp.*")
	if err != nil {
		return fmt.Errorf("create temp dataset file: %w", err)
	}
	tmpName := tmpFile.Name()
	defer func() {
		tmpFile.Close()
		_ = os.Remove(tmpName)
	}()

	cf := containerFormat{
		Version:   containerVersion,
		CreatedAt: time.Now().Unix(),
		N:         d.N,
		Res:       d.Res,
		Channels:  d.Channels,
		Inputs:    d.Inputs,
		Labels:    d.Labels,
	}
	if err := gob.NewEncoder(tmpFile).Encode(&cf); err != nil {
		return fmt.Errorf("encode dataset to temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		klog.Warningf("sync temp dataset file: %v", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("close temp dataset file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename temp dataset to target: %w", err)
	}
	klog.V(1).Infof("saved %d samples (%s) to %s", d.N, humanize.IBytes(d.Bytes()), path)
	return nil
}

// Load reads a dataset written by Save and validates its header and shape.
func Load(path string) (*Materialized, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset %s: %w", path, err)
	}
	defer fh.Close()

	var cf containerFormat
	if err := gob.NewDecoder(fh).Decode(&cf); err != nil {
		return nil, fmt.Errorf("decode dataset %s: %w", path, err)
	}
	if cf.Version != containerVersion {
		return nil, fmt.Errorf("dataset version mismatch: file=%d expected=%d", cf.Version, containerVersion)
	}
	d := &Materialized{N: cf.N, Res: cf.Res, Channels: cf.Channels, Inputs: cf.Inputs, Labels: cf.Labels}
	if d.N == 0 {
		// gob drops empty slices
		d.Inputs, d.Labels = []float32{}, []float32{}
	}
	if err := d.validate(); err != nil {
		return nil, fmt.Errorf("dataset %s: %w", path, err)
	}
	return d, nil
}

// Merge concatenates a and b along the sample axis, a first. Both must share
// resolution and channel count.
func Merge(a, b *Materialized) (*Materialized, error) {
	if a.Res != b.Res || a.Channels != b.Channels {
		return nil, fmt.Errorf("cannot merge datasets with shapes (R=%d, C=%d) and (R=%d, C=%d)",
			a.Res, a.Channels, b.Res, b.Channels)
	}
	out := &Materialized{
		N:        a.N + b.N,
		Res:      a.Res,
		Channels: a.Channels,
		Inputs:   make([]float32, 0, len(a.Inputs)+len(b.Inputs)),
		Labels:   make([]float32, 0, len(a.Labels)+len(b.Labels)),
	}
	out.Inputs = append(append(out.Inputs, a.Inputs...), b.Inputs...)
	out.Labels = append(append(out.Labels, a.Labels...), b.Labels...)
	if err := out.validate(); err != nil {
		return nil, err
	}
	return out, nil
}

// Progress is called after each completed sample with the number done so
// far. It may be called from several goroutines.
type Progress func(done, total int)

// Materialize generates total samples into one container. The samples are
// planned serially from a master RNG seeded with the configured seed, so the
// result does not depend on the worker count. Near-pole routing follows the
// batch layout: sample i sits at position i mod BatchSize.
func Materialize(ctx context.Context, gen *Generator, total int, progress Progress) (*Materialized, error) {
	if total < 0 {
		return nil, fmt.Errorf("negative sample count %d", total)
	}
	cfg := gen.Config()
	d := NewMaterialized(total, cfg.Resolution, cfg.Channels())
	klog.Infof("materializing %d samples at %dx%d (%s in memory)", total, cfg.Resolution, cfg.Resolution, humanize.IBytes(d.Bytes()))

	jobs := gen.plan(randsrc.New(cfg.Seed), total)

	// the batch view shares d's buffers; Put writes sample i in place
	view := &Batch{Inputs: d.Inputs, Labels: d.Labels, Size: total, Res: d.Res, Channels: d.Channels}
	var done atomic.Int64
	put := func(i int, s *Sample) error {
		if err := view.Put(i, s); err != nil {
			return err
		}
		n := done.Add(1)
		if progress != nil {
			progress(int(n), total)
		}
		return nil
	}
	if err := gen.run(ctx, jobs, 0, put); err != nil {
		return nil, err
	}
	return d, nil
}
