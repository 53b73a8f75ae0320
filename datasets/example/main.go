package main

// Example command that builds a generator from the default configuration,
// draws one batch and converts it into gomlx tensors, then replays a small
// materialized set with label-free input noise.
//
// Usage:
//   go run ./datasets/example

import (
	"context"
	"fmt"
	"log"

	"github.com/Noofbiz/qptsynth/datasets"
)

func main() {
	cfg := datasets.DefaultConfig()
	cfg.Resolution = 32
	cfg.BatchSize = 8

	gen, err := datasets.NewGenerator(cfg)
	if err != nil {
		log.Fatalf("failed to create generator: %v", err)
	}
	fmt.Printf("Generator %q: %d batches per epoch, %d channels at %dx%d\n",
		gen.Name(), gen.Len(), cfg.Channels(), cfg.Resolution, cfg.Resolution)

	b, err := gen.Batch(0)
	if err != nil {
		log.Fatalf("failed to build batch: %v", err)
	}
	inT, laT, err := b.ToGomlxTensors()
	if err != nil {
		log.Fatalf("failed to convert batch to gomlx tensors: %v", err)
	}
	fmt.Printf("Created tensors: input=%s label=%s\n", inT.Shape(), laT.Shape())

	in, labels := b.Example(0)
	fmt.Printf("  First pixel measurements: %v\n", in[:b.Channels])
	fmt.Printf("  First pixel (E, theta, phi): %v\n", labels[:3])

	fmt.Println()

	ds, err := datasets.Materialize(context.Background(), gen, 2*cfg.BatchSize, nil)
	if err != nil {
		log.Fatalf("failed to materialize: %v", err)
	}
	rp, err := datasets.NewReplay(ds, cfg.BatchSize, 0.005, cfg.Seed)
	if err != nil {
		log.Fatalf("failed to create replay: %v", err)
	}
	for epoch := 0; epoch < 2; epoch++ {
		fmt.Printf("Replay epoch %d order: %v\n", epoch, rp.Order())
		rp.Reset()
	}

	datasets.Summarize(ds).Write(log.Writer())
}
