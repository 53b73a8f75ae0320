// Command qptgen materializes, merges and inspects synthetic SU(2) process
// datasets.
//
// Usage:
//
//	qptgen generate -config gen.yaml -n 10000 -out data.gob [-seed S] [-workers W] [-metrics-file m.prom]
//	qptgen merge -a x.gob -b y.gob -out z.gob
//	qptgen stats -in data.gob
//	qptgen reorder -in rotated.gob -out data.gob
//	qptgen remeasure -config gen.yaml -sims 500 [-mode waveplates]
//
// Flags given on the command line override the values read from -config.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus"
	"k8s.io/klog/v2"

	"github.com/Noofbiz/qptsynth/datasets"
	"github.com/Noofbiz/qptsynth/monte"
	"github.com/Noofbiz/qptsynth/randsrc"
)

func usage() {
	fmt.Fprintf(os.Stderr, "usage: %s <generate|merge|stats|reorder|remeasure> [flags]\n", os.Args[0])
	os.Exit(2)
}

func main() {
	if len(os.Args) < 2 {
		usage()
	}
	cmd, args := os.Args[1], os.Args[2:]

	var err error
	switch cmd {
	case "generate":
		err = runGenerate(args)
	case "merge":
		err = runMerge(args)
	case "stats":
		err = runStats(args)
	case "reorder":
		err = runReorder(args)
	case "remeasure":
		err = runRemeasure(args)
	default:
		usage()
	}
	klog.Flush()
	if err != nil {
		klog.Exitf("%s: %v", cmd, err)
	}
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	klog.InitFlags(fs)
	return fs
}

// configFlags registers the generator options that may override the config
// file.
type configFlags struct {
	path       string
	seed       int64
	workers    int
	resolution int
	noise      float64
	stateNoise float64
	fraction   float64
	sixMeasure bool
}

func registerConfigFlags(fs *flag.FlagSet) *configFlags {
	c := &configFlags{}
	fs.StringVar(&c.path, "config", "", "YAML generator configuration (defaults are used when empty)")
	fs.Int64Var(&c.seed, "seed", 1, "master seed")
	fs.IntVar(&c.workers, "workers", 0, "generation workers (0 = GOMAXPROCS)")
	fs.IntVar(&c.resolution, "resolution", 0, "grid resolution")
	fs.Float64Var(&c.noise, "noise", 0, "pixel noise sigma")
	fs.Float64Var(&c.stateNoise, "state-noise", 0, "state perturbation bound")
	fs.Float64Var(&c.fraction, "waveplate-fraction", 0, "probability of waveplate samples")
	fs.BoolVar(&c.sixMeasure, "six-measure", false, "record the sixth (H,L) channel")
	return c
}

// load reads the config file and applies the flags that were set explicitly.
func (c *configFlags) load(fs *flag.FlagSet) (datasets.Config, error) {
	cfg := datasets.DefaultConfig()
	if c.path != "" {
		var err error
		if cfg, err = datasets.LoadConfig(c.path); err != nil {
			return cfg, err
		}
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "seed":
			cfg.Seed = c.seed
		case "workers":
			cfg.Workers = c.workers
		case "resolution":
			cfg.Resolution = c.resolution
		case "noise":
			cfg.Noise = c.noise
		case "state-noise":
			cfg.StateNoise = c.stateNoise
		case "waveplate-fraction":
			frac := c.fraction
			cfg.WaveplateFraction = &frac
		case "six-measure":
			cfg.SixMeasure = c.sixMeasure
		}
	})
	return cfg, cfg.Validate()
}

func runGenerate(args []string) error {
	fs := newFlagSet("generate")
	cf := registerConfigFlags(fs)
	n := fs.Int("n", 1000, "number of samples")
	out := fs.String("out", "data.gob", "output dataset path")
	metricsFile := fs.String("metrics-file", "", "write Prometheus metrics to this textfile when done")
	progressEvery := fs.Duration("progress-interval", 3*time.Second, "progress logging interval")
	fs.Parse(args)

	cfg, err := cf.load(fs)
	if err != nil {
		return err
	}
	reg := prometheus.NewRegistry()
	gen, err := datasets.NewGenerator(cfg, datasets.WithMetrics(datasets.NewMetrics(reg)))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var done atomic.Int64
	ticker := time.NewTicker(*progressEvery)
	stopProgress := make(chan struct{})
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				d := done.Load()
				klog.Infof("[generate] progress: %d/%d (%.1f%%)", d, *n, 100*float64(d)/float64(max(*n, 1)))
			case <-stopProgress:
				return
			}
		}
	}()

	start := time.Now()
	ds, err := datasets.Materialize(ctx, gen, *n, func(int, int) { done.Add(1) })
	close(stopProgress)
	if err != nil {
		return err
	}
	klog.Infof("[generate] %d samples in %s", ds.N, time.Since(start).Round(time.Millisecond))

	if err := ds.Save(*out); err != nil {
		return err
	}
	klog.Infof("wrote %s (%s)", *out, humanize.IBytes(ds.Bytes()))

	if *metricsFile != "" {
		if err := prometheus.WriteToTextfile(*metricsFile, reg); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
	}
	return nil
}

func runMerge(args []string) error {
	fs := newFlagSet("merge")
	a := fs.String("a", "", "first dataset")
	b := fs.String("b", "", "second dataset")
	out := fs.String("out", "merged.gob", "output dataset path")
	fs.Parse(args)
	if *a == "" || *b == "" {
		return fmt.Errorf("both -a and -b are required")
	}

	da, err := datasets.Load(*a)
	if err != nil {
		return err
	}
	db, err := datasets.Load(*b)
	if err != nil {
		return err
	}
	merged, err := datasets.Merge(da, db)
	if err != nil {
		return err
	}
	if err := merged.Save(*out); err != nil {
		return err
	}
	klog.Infof("merged %d + %d samples into %s (%s)", da.N, db.N, *out, humanize.IBytes(merged.Bytes()))
	return nil
}

func runStats(args []string) error {
	fs := newFlagSet("stats")
	in := fs.String("in", "", "dataset to summarize")
	fs.Parse(args)
	if *in == "" {
		return fmt.Errorf("-in is required")
	}

	ds, err := datasets.Load(*in)
	if err != nil {
		return err
	}
	klog.V(1).Infof("loaded %s (%s)", *in, humanize.IBytes(ds.Bytes()))
	return datasets.Summarize(ds).Write(os.Stdout)
}

func runReorder(args []string) error {
	fs := newFlagSet("reorder")
	in := fs.String("in", "", "five-channel dataset recorded in the rotated basis")
	out := fs.String("out", "reordered.gob", "output dataset path")
	fs.Parse(args)
	if *in == "" {
		return fmt.Errorf("-in is required")
	}

	ds, err := datasets.Load(*in)
	if err != nil {
		return err
	}
	r, err := ds.Reordered()
	if err != nil {
		return err
	}
	if err := r.Save(*out); err != nil {
		return err
	}
	klog.Infof("reordered %d samples into %s", r.N, *out)
	return nil
}

func runRemeasure(args []string) error {
	fs := newFlagSet("remeasure")
	cf := registerConfigFlags(fs)
	sims := fs.Int("sims", 200, "re-measurements of the sample")
	mode := fs.String("mode", "continuous", "process mode: continuous or waveplates")
	fs.Parse(args)

	cfg, err := cf.load(fs)
	if err != nil {
		return err
	}
	gen, err := datasets.NewGenerator(cfg)
	if err != nil {
		return err
	}

	m := datasets.Continuous
	switch strings.ToLower(*mode) {
	case "continuous":
	case "waveplates":
		m = datasets.Waveplates
	default:
		return fmt.Errorf("unknown mode %q", *mode)
	}
	sample, err := gen.Sample(randsrc.New(cfg.Seed), m, false)
	if err != nil {
		return err
	}

	mc, err := monte.NewMonte(gen.Simulator(), cfg.Seed)
	if err != nil {
		return err
	}
	mc.Workers = cfg.Workers
	runs, err := mc.Simulate(sample.Params, *sims)
	if err != nil {
		return err
	}
	sum, err := mc.Summarize(sample.Params, runs)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "mode\t%s\nruns\t%d\nnoise\t%g\nstate noise\t%g\n\n", m, sum.Runs, cfg.Noise, cfg.StateNoise)
	fmt.Fprintln(tw, "channel\texpected\tbias\tstd")
	for ch, c := range sum.Channels {
		fmt.Fprintf(tw, "%d\t%.4f\t%+.5f\t%.5f\n", ch, c.Expected, c.Bias, c.Std)
	}
	return tw.Flush()
}
