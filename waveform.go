package loadsynth

import (
	"fmt"
	"math"
)

const twoPi = 2 * math.Pi

// TimeGrid is a uniform sampling grid starting at t=0.
type TimeGrid struct {
	SamplingRate int     `yaml:"Fs"`       // samples per second
	Duration     float64 `yaml:"Duration"` // total time in seconds
}

// Samples returns the number of samples on the grid, Fs x Duration.
func (g TimeGrid) Samples() int {
	return int(math.Round(float64(g.SamplingRate) * g.Duration))
}

// Ts returns the sampling period in seconds.
func (g TimeGrid) Ts() float64 {
	return 1 / float64(g.SamplingRate)
}

// Time returns the sampling instant of sample i.
func (g TimeGrid) Time(i int) float64 {
	return float64(i) / float64(g.SamplingRate)
}

// Validate checks that the grid holds at least one sample.
func (g TimeGrid) Validate() error {
	if g.SamplingRate <= 0 || g.Duration <= 0 || g.Samples() < 1 {
		return fmt.Errorf("time grid Fs=%d Duration=%g has no samples: %w", g.SamplingRate, g.Duration, ErrInvalidConfiguration)
	}
	return nil
}

// SineFunc evaluates sin(x).
type SineFunc func(x float64) float64

// Synthesize evaluates the profile over the grid: the value at sample i is the sum over
// harmonics of amplitude*sin(2*pi*frequency*t_i + phase). The result depends only on
// its arguments.
func Synthesize(g TimeGrid, p HarmonicProfile) []float64 {
	return SynthesizeWith(g, p, math.Sin)
}

// SynthesizeWith is Synthesize with a caller supplied sine, e.g. mathfuncs.FastSin.
func SynthesizeWith(g TimeGrid, p HarmonicProfile, sin SineFunc) []float64 {
	out := make([]float64, g.Samples())
	for i := range out {
		t := g.Time(i)
		v := 0.0
		for k, f := range p.Frequencies {
			v += float64(p.Amplitudes[k]) * sin(twoPi*f*t+p.Phases[k])
		}
		out[i] = v
	}
	return out
}
