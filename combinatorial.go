package loadsynth

import (
	"context"
	"fmt"
	"slices"

	"github.com/google/uuid"
)

// CombinatorialDataset holds every non-empty subset of a fixed set of loads. Bin i
// occupies samples [i*SignalLength, (i+1)*SignalLength) and holds the sum of the loads
// selected by the binary representation of i.
//
// Bin 0, the empty subset, is never filled: its samples stay zero and its label rows
// are all zero. The slot is kept so that bin offsets equal the subset code.
type CombinatorialDataset struct {
	RunID        uuid.UUID
	Classes      int       // number of loads
	SignalLength int       // samples per load and per bin
	Names        []string  // load names, in column order
	Summed       []float64 // SignalLength << Classes samples
	Labels       [][]int   // one row per sample, one column per load
}

// ReservedBins is the number of leading bins that are never populated.
const ReservedBins = 1

// ID implements Dataset.
func (d *CombinatorialDataset) ID() string { return d.RunID.String() }

// Values implements Dataset.
func (d *CombinatorialDataset) Values() []float64 { return d.Summed }

// TimeMajorLabels implements Dataset.
func (d *CombinatorialDataset) TimeMajorLabels() [][]int { return d.Labels }

// Manifest implements Dataset. Combinatorial datasets carry no manifest.
func (d *CombinatorialDataset) Manifest() []string { return nil }

// Bins returns the number of bins including the reserved one, 2^Classes.
func (d *CombinatorialDataset) Bins() int {
	return 1 << d.Classes
}

// Bin returns the samples of bin i.
func (d *CombinatorialDataset) Bin(i int) ([]float64, error) {
	if i < 0 || i >= d.Bins() {
		return nil, fmt.Errorf("bin %d outside [0, %d): %w", i, d.Bins(), ErrIndexOutOfRange)
	}
	return d.Summed[i*d.SignalLength : (i+1)*d.SignalLength], nil
}

// Membership returns the classes-bit binary representation of code, most significant
// bit first, so entry j is 1 when load j belongs to the subset.
func Membership(code, classes int) []int {
	comb := make([]int, classes)
	for j := range comb {
		comb[j] = (code >> (classes - 1 - j)) & 1
	}
	return comb
}

// BuildCombinatorial reads loads 0..classes-1 and builds the dataset of all their
// non-empty subsets, writing it to sink when sink is not nil.
func (g *Generator) BuildCombinatorial(ctx context.Context, loads LoadReader, classes int, sink DatasetWriter) (*CombinatorialDataset, error) {
	records, err := readLoads(loads, classes)
	if err != nil {
		return nil, err
	}

	sigLen := len(records[0].Waveform)
	bins := 1 << classes
	ds := &CombinatorialDataset{
		RunID:        uuid.New(),
		Classes:      classes,
		SignalLength: sigLen,
		Summed:       make([]float64, sigLen*bins),
		Labels:       make([][]int, sigLen*bins),
	}
	for _, rec := range records {
		ds.Names = append(ds.Names, rec.Name)
	}

	for t := 0; t < sigLen*ReservedBins; t++ {
		ds.Labels[t] = make([]int, classes)
	}

	for i := ReservedBins; i < bins; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		comb := Membership(i, classes)
		bin := ds.Summed[i*sigLen : (i+1)*sigLen]
		for j, member := range comb {
			if member == 0 {
				continue
			}
			for t, v := range records[j].Waveform {
				bin[t] += v
			}
		}
		for t := i * sigLen; t < (i+1)*sigLen; t++ {
			ds.Labels[t] = slices.Clone(comb)
		}
	}

	if err := persist(ctx, nil, nil, ds, sink); err != nil {
		return nil, err
	}

	g.logger.Info("built combinatorial aggregate", "run", ds.RunID, "classes", classes,
		"bins", bins-ReservedBins, "samples", len(ds.Summed))
	return ds, nil
}
