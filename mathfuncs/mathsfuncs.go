package mathfuncs

import (
	"errors"
	"math"

	"github.com/teknico/sigourney/fast"
)

const twoPi = 2 * math.Pi

// A mathematical function y=f(t,A,T). Takes amplitude, A, and period, T,
// as inputs and returns the value of the function at time, t.
type MathsFunction func(t, A, T float64) float64

// A map between string name and MathsFunction pairs. Only deterministic functions
// are registered: randomness lives in the callers' generators.
var mathsFunctions = map[string]MathsFunction{
	"linear":            linearRamp,
	"sine":              Sine,
	"cosine":            cosineWave,
	"exponential":       exponentialRamp,
	"exponential_decay": exponentialDecay,
	"parabolic":         parabolicRamp,
	"step":              stepFunction,
	"square":            squareWave,
	"sawtooth":          sawtoothWave,
	"impulse":           impulseTrain,
	"flat":              flat,
}

// Returns the names of all registered functions.
func GetMathsFunctionNames() []string {
	names := make([]string, 0, len(mathsFunctions))
	for name := range mathsFunctions {
		names = append(names, name)
	}
	return names
}

// Returns the named function, or an error if no function has that name.
func GetFunctionFromName(name string) (MathsFunction, error) {
	f, ok := mathsFunctions[name]
	if !ok {
		return nil, errors.New("maths function not found: " + name)
	}
	return f, nil
}

// FastSin returns sin(x) using a lookup table. The argument is reduced to [0, 2π)
// first so accuracy does not degrade for the large phases of long time grids.
func FastSin(x float64) float64 {
	return fast.Sin(reduce(x))
}

// FastCos returns cos(x) as the table sine shifted by a quarter turn, see FastSin.
func FastCos(x float64) float64 {
	return fast.Sin(reduce(x + math.Pi/2))
}

func reduce(x float64) float64 {
	x = math.Mod(x, twoPi)
	if x < 0 {
		x += twoPi
	}
	return x
}

// Returns a linear ramp y=(A/T)*t where A is the magnitude of the ramp, T is
// its duration, and t is elapsed time.
func linearRamp(t, A, T float64) float64 {
	m := A / T // slope of the ramp
	return m * t
}

// Returns a sine wave y = A*sin(2π * t / PeriodDuration)
// PeriodDuration defines the cycle length in seconds.
func Sine(t, A, PeriodDuration float64) float64 {
	if PeriodDuration <= 0 {
		PeriodDuration = 1.0
	}
	return A * math.Sin(twoPi*t/PeriodDuration)
}

// Returns a cosine wave y=A*cos(2*pi*t/T) where A is the amplitude,
// T is the period, and t is elapsed time.
func cosineWave(t, A, T float64) float64 {
	return A * FastCos(twoPi*t/T)
}

// Returns an exponential ramp y=A*exp(t/T) - A where A is the amplitude,
// T is the time constant, and t is elapsed time.
func exponentialRamp(t, A, T float64) float64 {
	return A*math.Exp(t/T) - A
}

// Returns an exponential decay y=A*exp(-t/T).
func exponentialDecay(t, A, T float64) float64 {
	return A * math.Exp(-t/T)
}

// Returns a parabolic ramp of amplitude A every period T.
func parabolicRamp(t, A, T float64) float64 {
	return A * (t / T) * (t / T)
}

// Returns a step function of amplitude A every period T.
func stepFunction(t, A, T float64) float64 {
	if math.Mod(t, T) < T/2 {
		return 0
	}
	return A
}

// Returns a square wave y=A if sin(2*pi*t/T) >= 0, else -A.
func squareWave(t, A, T float64) float64 {
	if FastSin(twoPi*t/T) >= 0 {
		return A
	}
	return -A
}

// Returns a sawtooth wave y=(2*A/pi)*atan(tan(pi*t/T)).
func sawtoothWave(t, A, T float64) float64 {
	return (2 * A / math.Pi) * math.Atan(math.Tan(math.Pi*t/T))
}

// Returns a spike of amplitude A every period T.
// Each spike has a width of 1 microsecond.
func impulseTrain(t, A, T float64) float64 {
	spikeWidth := 1e-6
	if math.Mod(t, T) < spikeWidth {
		return A
	}
	return 0
}

// flat returns A regardless of t or T.
func flat(_, A, _ float64) float64 {
	return A
}
