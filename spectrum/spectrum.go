// Package spectrum extracts the harmonic content of short signal windows for visual
// inspection of generated and measured loads.
package spectrum

import (
	"fmt"
	"math"
	"math/cmplx"
	"math/rand/v2"

	"github.com/synaptecltd/loadsynth"
	"github.com/synaptecltd/loadsynth/noise"
	"gonum.org/v1/gonum/dsp/fourier"
)

// Status reports whether a window could be selected.
type Status int

const (
	StatusOK           Status = iota // window selected
	StatusInvalidIndex               // requested start leaves no room for a full window
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusInvalidIndex:
		return "index inserted is not valid"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Spectrum is the single-sided spectrum of a window, one entry per frequency bin.
type Spectrum struct {
	Frequencies []float64 // Hz
	Amplitudes  []float64 // 2|X_k|/n
	Phases      []float64 // degrees
}

// Window is a slice of a signal selected for inspection.
type Window struct {
	Start  int
	Values []float64
	Status Status
}

// Inspector selects windows of a signal and computes their spectra.
type Inspector struct {
	samplingRate int
	window       int
	noise        noise.Container
	r            *rand.Rand
}

// NewInspector returns an inspector for signals sampled as described by cfg. The
// window length is Fs*SampleTime/5 samples. r drives the random window start and
// the injected noise.
func NewInspector(cfg loadsynth.Config, r *rand.Rand) (*Inspector, error) {
	models, err := cfg.NoiseContainer()
	if err != nil {
		return nil, err
	}
	in := &Inspector{
		samplingRate: cfg.SamplingRate,
		window:       cfg.InspectionWindow(),
		noise:        models,
		r:            r,
	}
	if in.samplingRate < 1 || in.window < 2 {
		return nil, fmt.Errorf("inspection window of %d samples at %d Hz is too short: %w", in.window, in.samplingRate, loadsynth.ErrInvalidConfiguration)
	}
	return in, nil
}

// WindowLength returns the number of samples in an inspection window.
func (in *Inspector) WindowLength() int {
	return in.window
}

// Window selects the inspection window starting at index. A negative index picks a
// random start. When labels is not nil the signal is a single load and the start
// moves forward to its first active sample. An index that leaves no room for a full
// window yields StatusInvalidIndex and no values.
func (in *Inspector) Window(values []float64, labels []int, index int) (Window, error) {
	if labels != nil && len(labels) != len(values) {
		return Window{}, fmt.Errorf("signal has %d values but %d labels: %w", len(values), len(labels), loadsynth.ErrDataUnavailable)
	}

	last := len(values) - in.window - 1
	if index > last || (index < 0 && last <= 0) {
		return Window{Start: index, Status: StatusInvalidIndex}, nil
	}
	if index < 0 {
		index = in.r.IntN(last)
	}
	if labels != nil {
		for i := index; i < last; i++ {
			if labels[i] == 1 {
				index = i
				break
			}
		}
	}

	return Window{
		Start:  index,
		Values: values[index : index+in.window],
		Status: StatusOK,
	}, nil
}

// Spectrum returns the single-sided amplitude and phase spectrum of x for bins
// 0..n/2-1. When injectNoise is set the configured noise models are applied to a
// copy of x first.
func (in *Inspector) Spectrum(x []float64, injectNoise bool) (*Spectrum, error) {
	n := len(x)
	if n < 2 {
		return nil, fmt.Errorf("spectrum of %d samples: %w", n, loadsynth.ErrDataUnavailable)
	}
	if injectNoise && in.noise.Active() {
		x = in.noise.Apply(in.r, 1/float64(in.samplingRate), x)
	}

	fft := fourier.NewFFT(n)
	coeffs := fft.Coefficients(nil, x)

	bins := n / 2
	s := &Spectrum{
		Frequencies: make([]float64, bins),
		Amplitudes:  make([]float64, bins),
		Phases:      make([]float64, bins),
	}
	for k := 0; k < bins; k++ {
		s.Frequencies[k] = fft.Freq(k) * float64(in.samplingRate)
		s.Amplitudes[k] = 2 * cmplx.Abs(coeffs[k]) / float64(n)
		s.Phases[k] = cmplx.Phase(coeffs[k]) * 180 / math.Pi
	}
	return s, nil
}

// Inspect selects a window and returns it with its spectrum. The spectrum is nil when
// the window status is not StatusOK.
func (in *Inspector) Inspect(values []float64, labels []int, index int, injectNoise bool) (Window, *Spectrum, error) {
	w, err := in.Window(values, labels, index)
	if err != nil || w.Status != StatusOK {
		return w, nil, err
	}
	s, err := in.Spectrum(w.Values, injectNoise)
	if err != nil {
		return w, nil, err
	}
	return w, s, nil
}

// Peak returns the frequency and amplitude of the strongest bin above DC.
func (s *Spectrum) Peak() (freq, amp float64) {
	for k := 1; k < len(s.Amplitudes); k++ {
		if s.Amplitudes[k] > amp {
			freq, amp = s.Frequencies[k], s.Amplitudes[k]
		}
	}
	return freq, amp
}
