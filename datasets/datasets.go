// Package datasets assembles measurement/label pairs into batches for model
// training.
//
// Two datasets implement the Dataset interface:
//
// Generator
//   - Generates every batch on the fly from the process, gauge and measure
//     packages and keeps nothing once a batch is returned.
//   - Per-sample seeds are drawn serially from a master RNG, then samples are
//     generated on a bounded worker pool, so output is identical for any
//     worker count.
//
// Replay
//   - Serves a Materialized dataset, reshuffling every epoch and adding a
//     small Gaussian perturbation to the inputs of each served batch.
//
// Inputs per sample are shaped (Res, Res, Channels) with 5 or 6 channels;
// labels are shaped (Res, Res, 3) ordered (E, theta, phi). Both are float32 so
// they convert directly to gomlx tensors.
package datasets

import "github.com/gomlx/gomlx/pkg/core/tensors"

// Dataset is implemented by Generator and Replay. Name, Yield and Reset
// match gomlx's train.Dataset.
type Dataset interface {
	// Len returns the number of batches per epoch.
	Len() int
	Batch(index int) (*Batch, error)

	Name() string
	Yield() (spec any, inputs []*tensors.Tensor, labels []*tensors.Tensor, err error)
	Reset()
}

var (
	_ Dataset = (*Generator)(nil)
	_ Dataset = (*Replay)(nil)
)
