package loadsynth

import (
	"context"
	"fmt"
	"math"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// AggregateDataset is the sum of several loads with one label row per load.
type AggregateDataset struct {
	RunID  uuid.UUID
	Loads  []string  // constituent load names, in row order
	Summed []float64 // elementwise sum of the loads' waveforms
	Labels [][]int   // one row per load, one column per sample
}

// ID implements Dataset.
func (d *AggregateDataset) ID() string { return d.RunID.String() }

// Values implements Dataset.
func (d *AggregateDataset) Values() []float64 { return d.Summed }

// Manifest implements Dataset.
func (d *AggregateDataset) Manifest() []string { return d.Loads }

// TimeMajorLabels implements Dataset by transposing the label matrix.
func (d *AggregateDataset) TimeMajorLabels() [][]int {
	out := make([][]int, len(d.Summed))
	for t := range out {
		row := make([]int, len(d.Labels))
		for l := range d.Labels {
			row[l] = d.Labels[l][t]
		}
		out[t] = row
	}
	return out
}

// Aggregate sums the waveforms of the records and stacks their labels. Every record
// must carry a label and all series must share one length. The records are not modified.
func Aggregate(records []*LoadRecord) (*AggregateDataset, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("no loads to aggregate: %w", ErrInvalidConfiguration)
	}

	samples := len(records[0].Waveform)
	ds := &AggregateDataset{
		RunID:  uuid.New(),
		Summed: make([]float64, samples),
	}
	for _, rec := range records {
		if len(rec.Waveform) != samples || len(rec.Label) != samples {
			return nil, fmt.Errorf("load %s has %d values and %d labels, expected %d of each: %w",
				rec.Name, len(rec.Waveform), len(rec.Label), samples, ErrDataUnavailable)
		}
		for i, v := range rec.Waveform {
			ds.Summed[i] += v
		}
		ds.Labels = append(ds.Labels, append([]int(nil), rec.Label...))
		ds.Loads = append(ds.Loads, rec.Name)
	}
	return ds, nil
}

// BuildRandomAggregate generates loads 1..n, sums them and persists the result. Load 1
// has a single state; the others use Config.States, or a random count when it is 0.
// Nothing is written unless every load builds successfully: the loads go to loads and
// the aggregate to sink, either of which may be nil.
func (g *Generator) BuildRandomAggregate(ctx context.Context, n int, loads LoadWriter, sink DatasetWriter) (*AggregateDataset, error) {
	if n < 1 {
		return nil, fmt.Errorf("random aggregate needs at least one load, got %d: %w", n, ErrInvalidConfiguration)
	}

	records := make([]*LoadRecord, n)
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(g.cfg.Workers)
	for i := 1; i <= n; i++ {
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			states := g.cfg.States
			if i == 1 {
				states = 1
			}
			rec, err := g.BuildLoad(i, states)
			if err != nil {
				return err
			}
			records[i-1] = rec
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	ds, err := Aggregate(records)
	if err != nil {
		return nil, err
	}

	if err := persist(ctx, records, loads, ds, sink); err != nil {
		return nil, err
	}

	g.logger.Info("built random aggregate", "run", ds.RunID, "loads", n, "samples", len(ds.Summed), "seed", g.seed)
	return ds, nil
}

// BuildMeasuredAggregate sums the stored loads 0..classes-1, which must all carry
// labels, and writes the aggregate with a manifest of the load names to sink.
func (g *Generator) BuildMeasuredAggregate(ctx context.Context, loads LoadReader, classes int, sink DatasetWriter) (*AggregateDataset, error) {
	records, err := readLoads(loads, classes)
	if err != nil {
		return nil, err
	}
	for _, rec := range records {
		if rec.Label == nil {
			return nil, fmt.Errorf("load %s has no labels: %w", rec.Name, ErrDataUnavailable)
		}
	}

	ds, err := Aggregate(records)
	if err != nil {
		return nil, err
	}
	if err := persist(ctx, nil, nil, ds, sink); err != nil {
		return nil, err
	}

	g.logger.Info("built measured aggregate", "run", ds.RunID, "loads", classes, "samples", len(ds.Summed))
	return ds, nil
}

// readLoads fetches loads 0..classes-1, checking the class count against the reader
// and that every load holds a waveform of the same length.
func readLoads(loads LoadReader, classes int) ([]*LoadRecord, error) {
	if classes < 1 || classes > MaxClasses {
		return nil, fmt.Errorf("class count %d outside [1, %d]: %w", classes, MaxClasses, ErrInvalidConfiguration)
	}
	if c, ok := loads.(Counter); ok && c.Len() < classes {
		return nil, fmt.Errorf("%d classes requested but only %d loads are available: %w", classes, c.Len(), ErrInvalidConfiguration)
	}

	records := make([]*LoadRecord, classes)
	for i := range records {
		rec, err := loads.Get(i)
		if err != nil {
			return nil, fmt.Errorf("load %d: %w", i, err)
		}
		if len(rec.Waveform) == 0 {
			return nil, fmt.Errorf("load %d has no samples: %w", i, ErrDataUnavailable)
		}
		if i > 0 && len(rec.Waveform) != len(records[0].Waveform) {
			return nil, fmt.Errorf("load %d has %d samples, load 0 has %d: %w", i, len(rec.Waveform), len(records[0].Waveform), ErrDataUnavailable)
		}
		records[i] = rec
	}
	return records, nil
}

// persist writes the records and the dataset once the context is known to be live.
// Either everything reaches the stageable destinations or nothing does.
func persist(ctx context.Context, records []*LoadRecord, loads LoadWriter, ds Dataset, sink DatasetWriter) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return writeAll(records, loads, ds, flatten(sink))
}

// Distance returns the Euclidean distance between two signals of equal length.
func Distance(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("signals have %d and %d samples: %w", len(a), len(b), ErrDataUnavailable)
	}
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum), nil
}
