// Package noise provides additive noise models that can be layered over a
// synthesised or measured waveform before it is inspected.
package noise

import (
	"math/rand/v2"
)

// Container is an ordered collection of noise models. Models are applied in order.
type Container []Model

// Model is the interface for all noise types (gaussian, spike, etc).
type Model interface {
	TypeAsString() string // Returns the noise type as a string
	IsOff() bool          // Returns whether the model is deactivated

	// Adds the model's noise to x in place. Ts is the sampling period in seconds.
	apply(r *rand.Rand, Ts float64, x []float64)
}

// modelBase holds the fields shared by all noise models.
type modelBase struct {
	typeName string // the type of noise model
	Off      bool   // true: model deactivated, false: activated
}

// Returns the type of noise model as a string.
func (m *modelBase) TypeAsString() string {
	return m.typeName
}

// Returns whether the model is switched off.
func (m *modelBase) IsOff() bool {
	return m.Off
}

// Apply returns a noisy copy of x. The input slice is left untouched.
func (c Container) Apply(r *rand.Rand, Ts float64, x []float64) []float64 {
	out := make([]float64, len(x))
	copy(out, x)
	for _, m := range c {
		if m == nil || m.IsOff() {
			continue
		}
		m.apply(r, Ts, out)
	}
	return out
}

// Active reports whether any model in the container would change a signal.
func (c Container) Active() bool {
	for _, m := range c {
		if m != nil && !m.IsOff() {
			return true
		}
	}
	return false
}
