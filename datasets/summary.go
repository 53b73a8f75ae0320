package datasets

import (
	"fmt"
	"io"
	"math"
	"text/tabwriter"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Stat summarizes one column of a dataset.
type Stat struct {
	Mean, Std, Min, Max float64
}

func newStat(x []float64) Stat {
	if len(x) == 0 {
		return Stat{}
	}
	mean, std := stat.MeanStdDev(x, nil)
	return Stat{Mean: mean, Std: std, Min: floats.Min(x), Max: floats.Max(x)}
}

// LabelNames orders the label channels.
var LabelNames = [3]string{"energy", "theta", "phi"}

// Summary holds per-channel statistics of a materialized dataset.
type Summary struct {
	N, Res, Channels int

	Inputs []Stat
	Labels [3]Stat

	// SouthernReferences counts samples whose reference theta lies above
	// π/2, which gauge fixing should make zero.
	SouthernReferences int
}

// Summarize computes the summary of ds.
func Summarize(ds *Materialized) Summary {
	s := Summary{N: ds.N, Res: ds.Res, Channels: ds.Channels, Inputs: make([]Stat, ds.Channels)}
	pixels := ds.N * ds.Res * ds.Res

	col := make([]float64, pixels)
	for ch := 0; ch < ds.Channels; ch++ {
		for i := range col {
			col[i] = float64(ds.Inputs[i*ds.Channels+ch])
		}
		s.Inputs[ch] = newStat(col)
	}
	for k := range s.Labels {
		for i := range col {
			col[i] = float64(ds.Labels[3*i+k])
		}
		s.Labels[k] = newStat(col)
	}

	perSample := ds.Res * ds.Res * 3
	for n := 0; n < ds.N; n++ {
		// float32 storage can round π/2 up
		if float64(ds.Labels[n*perSample+1]) > math.Pi/2+1e-6 {
			s.SouthernReferences++
		}
	}
	return s
}

// Write prints the summary as an aligned table.
func (s Summary) Write(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "samples\t%d\nresolution\t%d\nchannels\t%d\n\n", s.N, s.Res, s.Channels)
	fmt.Fprintln(tw, "column\tmean\tstd\tmin\tmax")
	for ch, st := range s.Inputs {
		fmt.Fprintf(tw, "input[%d]\t%.4f\t%.4f\t%.4f\t%.4f\n", ch, st.Mean, st.Std, st.Min, st.Max)
	}
	for k, st := range s.Labels {
		fmt.Fprintf(tw, "%s\t%.4f\t%.4f\t%.4f\t%.4f\n", LabelNames[k], st.Mean, st.Std, st.Min, st.Max)
	}
	fmt.Fprintf(tw, "\nsouthern references\t%d\n", s.SouthernReferences)
	return tw.Flush()
}
