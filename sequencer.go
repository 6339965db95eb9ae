package loadsynth

import (
	"fmt"
	"math/rand/v2"
)

// DefaultStateInterval is the number of segments a multi-state waveform is split into.
const DefaultStateInterval = 5

// Segment is a contiguous run of samples taken from a single state.
type Segment struct {
	Start int // first sample, inclusive
	End   int // last sample, exclusive
	State int // index of the state the samples were copied from
}

// Sequence is a waveform stitched together from several state waveforms.
type Sequence struct {
	Waveform []float64
	Segments []Segment
}

// SequenceStates stitches equal-length state waveforms into one waveform. The samples
// are walked in steps of len/interval; for every step a state is drawn uniformly and
// its slice copied across. When the length is not a multiple of interval the
// remainder forms a short trailing segment with its own draw, so no sample is dropped.
func SequenceStates(r *rand.Rand, states [][]float64, interval int) (*Sequence, error) {
	if len(states) == 0 {
		return nil, fmt.Errorf("no state waveforms to sequence: %w", ErrInvalidConfiguration)
	}
	if interval < 1 {
		return nil, fmt.Errorf("state interval %d must be at least 1: %w", interval, ErrInvalidConfiguration)
	}

	samples := len(states[0])
	for i, s := range states {
		if len(s) != samples {
			return nil, fmt.Errorf("state %d has %d samples, expected %d: %w", i, len(s), samples, ErrInvalidConfiguration)
		}
	}

	step := max(samples/interval, 1)
	seq := &Sequence{Waveform: make([]float64, samples)}
	for start := 0; start < samples; start += step {
		end := min(start+step, samples)
		state := r.IntN(len(states))
		copy(seq.Waveform[start:end], states[state][start:end])
		seq.Segments = append(seq.Segments, Segment{Start: start, End: end, State: state})
	}

	return seq, nil
}
