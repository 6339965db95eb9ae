package loadsynth

import (
	"fmt"
	"math/rand/v2"
)

// Labelling policy type names, as used in the configuration Type field.
const (
	PeriodicPolicyType = "periodic"
	TogglePolicyType   = "toggle"
)

// LabelPolicy produces a binary activity mask for one load: 1 where the load draws
// current, 0 where it is off.
type LabelPolicy interface {
	TypeAsString() string // Returns the policy type as a string

	// Label returns a mask of the given length for the load with the given
	// 1-based index. Deterministic policies ignore r.
	Label(r *rand.Rand, load, samples int) ([]int, error)
}

// PeriodicPolicy switches load n off for the first of every pair of blocks of
// floor(samples/2^n) samples, giving 2^n evenly spaced alternating blocks.
type PeriodicPolicy struct{}

func (PeriodicPolicy) TypeAsString() string {
	return PeriodicPolicyType
}

// Label implements LabelPolicy.
func (PeriodicPolicy) Label(_ *rand.Rand, load, samples int) ([]int, error) {
	if load < 1 || load >= 63 {
		return nil, fmt.Errorf("periodic labelling needs a load index in [1, 63), got %d: %w", load, ErrInvalidConfiguration)
	}
	block := samples >> load
	if block == 0 {
		return nil, fmt.Errorf("periodic labelling of load %d over %d samples gives an empty block: %w", load, samples, ErrInvalidConfiguration)
	}

	label := ones(samples)
	for offset := 0; offset < samples; offset += 2 * block {
		for i := offset; i < min(offset+block, samples); i++ {
			label[i] = 0
		}
	}
	return label, nil
}

// TogglePolicy paints the mask with alternating runs of 0 and 1 starting from a
// random state. Run lengths are uniform in [samples/MinRunDivisor, samples/MaxRunDivisor)
// and the last run is clipped to the mask length.
type TogglePolicy struct {
	MinRunDivisor int `yaml:"MinRunDivisor"` // shortest run is samples/MinRunDivisor, default 16
	MaxRunDivisor int `yaml:"MaxRunDivisor"` // runs are shorter than samples/MaxRunDivisor, default 3
}

// NewTogglePolicy returns a TogglePolicy, substituting the defaults for zero divisors.
func NewTogglePolicy(minRunDivisor, maxRunDivisor int) (*TogglePolicy, error) {
	if minRunDivisor == 0 {
		minRunDivisor = 16
	}
	if maxRunDivisor == 0 {
		maxRunDivisor = 3
	}
	if maxRunDivisor < 1 || minRunDivisor <= maxRunDivisor {
		return nil, fmt.Errorf("toggle run divisors min=%d max=%d must satisfy min > max >= 1: %w", minRunDivisor, maxRunDivisor, ErrInvalidConfiguration)
	}
	return &TogglePolicy{MinRunDivisor: minRunDivisor, MaxRunDivisor: maxRunDivisor}, nil
}

func (p *TogglePolicy) TypeAsString() string {
	return TogglePolicyType
}

// RunBounds returns the half-open range of run lengths for a mask of the given length.
func (p *TogglePolicy) RunBounds(samples int) (lo, hi int) {
	return samples / p.MinRunDivisor, samples / p.MaxRunDivisor
}

// Label implements LabelPolicy.
func (p *TogglePolicy) Label(r *rand.Rand, _ int, samples int) ([]int, error) {
	lo, hi := p.RunBounds(samples)
	if lo < 1 || hi <= lo {
		return nil, fmt.Errorf("toggle labelling over %d samples gives run range [%d, %d): %w", samples, lo, hi, ErrInvalidConfiguration)
	}

	label := make([]int, samples)
	curr := r.IntN(2)
	for pos := 0; pos < samples; {
		run := lo + r.IntN(hi-lo)
		for i := pos; i < min(pos+run, samples); i++ {
			label[i] = curr
		}
		curr = 1 - curr
		pos += run
	}
	return label, nil
}

// ApplyLabel returns the waveform multiplied elementwise by the label.
func ApplyLabel(waveform []float64, label []int) ([]float64, error) {
	if len(waveform) != len(label) {
		return nil, fmt.Errorf("waveform has %d samples but label has %d: %w", len(waveform), len(label), ErrInvalidConfiguration)
	}
	out := make([]float64, len(waveform))
	for i, v := range waveform {
		if label[i] != 0 { // leaves +0 rather than -0 in the off regions
			out[i] = v * float64(label[i])
		}
	}
	return out, nil
}

func ones(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = 1
	}
	return out
}
