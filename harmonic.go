package loadsynth

import (
	"fmt"
	"math"
	"math/rand/v2"
	"slices"
)

// FundamentalFrequency is the nominal mains frequency in Hz.
const FundamentalFrequency = 50.0

// harmonicOrders are the odd multiples of the fundamental a load may draw current at.
var harmonicOrders = [...]float64{1, 3, 5, 7, 9, 11, 13}

// MaxHarmonics is the number of available frequency slots.
const MaxHarmonics = len(harmonicOrders)

// MaxAmplitude is the largest amplitude drawn for a single harmonic.
const MaxAmplitude = 9

// HarmonicProfile is the harmonic content of one load state. All three slices have
// the same length. Frequencies are strictly increasing, amplitudes non-increasing.
type HarmonicProfile struct {
	Frequencies []float64 `yaml:"Frequencies"` // Hz, subset of the odd harmonics of 50 Hz
	Phases      []float64 `yaml:"Phases"`      // radians in [-pi/2, pi/2]
	Amplitudes  []int     `yaml:"Amplitudes"`  // integers in [1, MaxAmplitude]
}

// Count returns the number of harmonics in the profile.
func (p HarmonicProfile) Count() int {
	return len(p.Frequencies)
}

// Validate checks the structural invariants of the profile.
func (p HarmonicProfile) Validate() error {
	n := len(p.Frequencies)
	if n == 0 || len(p.Phases) != n || len(p.Amplitudes) != n {
		return fmt.Errorf("harmonic profile has %d frequencies, %d phases and %d amplitudes: %w",
			len(p.Frequencies), len(p.Phases), len(p.Amplitudes), ErrInvalidConfiguration)
	}
	for i := range p.Frequencies {
		if p.Frequencies[i] <= 0 || (i > 0 && p.Frequencies[i] <= p.Frequencies[i-1]) {
			return fmt.Errorf("harmonic profile frequencies must be positive and strictly increasing: %w", ErrInvalidConfiguration)
		}
	}
	return nil
}

// HarmonyRange is the half-open range [Min, Max) the harmony count is drawn from.
type HarmonyRange struct {
	Min int `yaml:"Min"`
	Max int `yaml:"Max"`
}

// Validate checks that every count in the range can be satisfied.
func (h HarmonyRange) Validate() error {
	if h.Min < 1 || h.Max <= h.Min {
		return fmt.Errorf("harmony range [%d, %d) is empty or starts below 1: %w", h.Min, h.Max, ErrInvalidConfiguration)
	}
	if h.Max-1 > MaxHarmonics {
		return fmt.Errorf("harmony range [%d, %d) exceeds the %d available frequencies: %w", h.Min, h.Max, MaxHarmonics, ErrInvalidConfiguration)
	}
	return nil
}

// Draw returns a harmony count uniformly distributed in [Min, Max).
func (h HarmonyRange) Draw(r *rand.Rand) (int, error) {
	if err := h.Validate(); err != nil {
		return 0, err
	}
	return h.Min + r.IntN(h.Max-h.Min), nil
}

// NewHarmonicProfile draws a random profile with the given number of harmonics.
// Frequencies are sampled without replacement and sorted ascending; phases are
// uniform in [-pi/2, pi/2]; amplitudes are uniform integers in [1, 9] sorted descending.
func NewHarmonicProfile(r *rand.Rand, harmonics int) (HarmonicProfile, error) {
	if harmonics < 1 || harmonics > MaxHarmonics {
		return HarmonicProfile{}, fmt.Errorf("harmony count %d outside [1, %d]: %w", harmonics, MaxHarmonics, ErrInvalidConfiguration)
	}

	freqs := make([]float64, harmonics)
	for i, k := range r.Perm(MaxHarmonics)[:harmonics] {
		freqs[i] = harmonicOrders[k] * FundamentalFrequency
	}
	slices.Sort(freqs)

	phases := make([]float64, harmonics)
	for i := range phases {
		phases[i] = -math.Pi/2 + r.Float64()*math.Pi
	}

	amps := make([]int, harmonics)
	for i := range amps {
		amps[i] = 1 + r.IntN(MaxAmplitude)
	}
	slices.Sort(amps)
	slices.Reverse(amps)

	return HarmonicProfile{
		Frequencies: freqs,
		Phases:      phases,
		Amplitudes:  amps,
	}, nil
}
