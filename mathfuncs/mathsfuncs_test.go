package mathfuncs_test

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/synaptecltd/loadsynth/mathfuncs"
)

func TestDeterministicFunctions(t *testing.T) {
	M := 1.0 + rand.Float64()*99.0 // amplitude (between 1 and 100)
	x := 1.0 + rand.Float64()*99.0 // time (between 1 and 100)

	testCases := []struct {
		name     string  // name of the function, defined in the mathsFunctions map
		t        float64 // time in seconds
		A        float64 // amplitude
		T        float64 // period in seconds
		expected float64 // expected value of the function at time t
		delta    float64 // allowed error
		isError  bool    // true if an error is expected
	}{
		{name: "not_a_function", isError: true},
		{name: "linear", t: x, A: M, T: M, expected: x, delta: 1e-6},
		{name: "sine", t: x, A: M, T: 4 * x, expected: M, delta: 1e-6},
		{name: "cosine", t: x, A: M, T: 4 * x, expected: 0.0, delta: 1e-2 * M},
		{name: "exponential", t: x, A: M, T: x, expected: M*math.Exp(1) - M, delta: 1e-6},
		{name: "exponential_decay", t: x, A: M, T: x, expected: M * math.Exp(-1), delta: 1e-6},
		{name: "parabolic", t: x, A: M, T: 2 * x, expected: M / 4, delta: 1e-6},
		{name: "step", t: 1.5 * x, A: M, T: 2.0 * x, expected: M, delta: 1e-6},
		{name: "step", t: 0.0, A: M, T: x, expected: 0.0, delta: 1e-6},
		{name: "square", t: 0.25 * x, A: M, T: x, expected: M, delta: 1e-6},
		{name: "square", t: 1.5 * x, A: M, T: 2.0 * x, expected: -M, delta: 1e-6},
		{name: "sawtooth", t: x, A: M, T: 4 * x, expected: M / 2, delta: 1e-6},
		{name: "impulse", t: x / 2.0, A: M, T: x, expected: 0.0, delta: 1e-6},
		{name: "impulse", t: 0, A: M, T: x, expected: M, delta: 1e-6},
		{name: "flat", t: x, A: M, T: x, expected: M, delta: 1e-9},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			testFunction, err := mathfuncs.GetFunctionFromName(tc.name)

			if tc.isError {
				assert.Error(t, err)
				return
			}

			assert.NoError(t, err)
			result := testFunction(tc.t, tc.A, tc.T)
			assert.InDelta(t, tc.expected, result, tc.delta)
		})
	}
}

func TestGetMathsFunctionNames(t *testing.T) {
	names := mathfuncs.GetMathsFunctionNames()
	assert.Contains(t, names, "linear")
	assert.Contains(t, names, "square")
	for _, name := range names {
		_, err := mathfuncs.GetFunctionFromName(name)
		assert.NoError(t, err, name)
	}
}

// The table sine must stay close to math.Sin even for phases far from zero,
// which is where a 100 s grid at 650 Hz ends up.
func TestFastTrigMatchesMath(t *testing.T) {
	for _, x := range []float64{-7.5, -1, 0, 0.3, math.Pi / 2, 3, 10, 1234.5, 408407.0} {
		assert.InDelta(t, math.Sin(x), mathfuncs.FastSin(x), 1e-2, "sin(%v)", x)
		assert.InDelta(t, math.Cos(x), mathfuncs.FastCos(x), 1e-2, "cos(%v)", x)
	}
}

func TestFastCosQuarterTurns(t *testing.T) {
	assert.InDelta(t, 1.0, mathfuncs.FastCos(0), 1e-2)
	assert.InDelta(t, 0.0, mathfuncs.FastCos(math.Pi/2), 1e-2)
	assert.InDelta(t, -1.0, mathfuncs.FastCos(math.Pi), 1e-2)
	assert.InDelta(t, 0.0, mathfuncs.FastCos(-math.Pi/2), 1e-2)
	assert.InDelta(t, 1.0, mathfuncs.FastCos(2*math.Pi-1e-9), 1e-2)
}
