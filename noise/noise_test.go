package noise_test

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/mitchellh/mapstructure"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/synaptecltd/loadsynth/noise"
	"gopkg.in/yaml.v2"
)

func sine(n int) []float64 {
	x := make([]float64, n)
	for i := range x {
		x[i] = 5 * math.Sin(2*math.Pi*50*float64(i)/6400)
	}
	return x
}

func TestUnmarshalYAML(t *testing.T) {
	yamlStr := `
- type: gaussian
  Percentage: 5
- Type: spike
  Probability: 0.01
  Magnitude: 3
  MagFunc: sine
  Period: 0.02
`
	var container noise.Container
	err := yaml.Unmarshal([]byte(yamlStr), &container)
	require.NoError(t, err)
	require.Len(t, container, 2)

	assert.Equal(t, "gaussian", container[0].TypeAsString())
	assert.Equal(t, "spike", container[1].TypeAsString())
	assert.True(t, container.Active())
}

func TestUnmarshalYAML_Errors(t *testing.T) {
	testCases := map[string]string{
		"unknown type":     "- type: pink\n",
		"missing type":     "- Percentage: 5\n",
		"bad percentage":   "- type: gaussian\n  Percentage: 150\n",
		"bad probability":  "- type: spike\n  Probability: 2\n",
		"unknown function": "- type: spike\n  MagFunc: wobble\n  Period: 1\n",
		"missing period":   "- type: spike\n  MagFunc: sine\n",
		"unknown field":    "- type: gaussian\n  Percentag: 5\n",
	}

	for name, yamlStr := range testCases {
		t.Run(name, func(t *testing.T) {
			var container noise.Container
			assert.Error(t, yaml.Unmarshal([]byte(yamlStr), &container))
		})
	}
}

func TestDecodeHook(t *testing.T) {
	type wrapper struct {
		Models noise.Container
	}

	raw := map[string]interface{}{
		"Models": []interface{}{
			map[interface{}]interface{}{"Type": "gaussian", "Percentage": 10},
			map[interface{}]interface{}{"Type": "spike", "Probability": 0.5, "Magnitude": 1.0},
		},
	}

	var w wrapper
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: noise.GetDecodeHook(),
		Result:     &w,
	})
	require.NoError(t, err)
	require.NoError(t, decoder.Decode(raw))

	require.Len(t, w.Models, 2)
	assert.Equal(t, "gaussian", w.Models[0].TypeAsString())
	assert.Equal(t, "spike", w.Models[1].TypeAsString())
}

func TestGaussianNoise(t *testing.T) {
	x := sine(64000)
	g, err := noise.NewGaussianNoise(noise.GaussianParams{Percentage: 10})
	require.NoError(t, err)

	r := rand.New(rand.NewPCG(42, 0))
	noisy := noise.Container{g}.Apply(r, 1.0/6400, x)
	require.Len(t, noisy, len(x))

	var sum, sumSq float64
	for i := range x {
		d := noisy[i] - x[i]
		sum += d
		sumSq += d * d
	}
	mean := sum / float64(len(x))
	stddev := math.Sqrt(sumSq/float64(len(x)) - mean*mean)

	// RMS of a sine of amplitude 5 is 5/sqrt(2)
	assert.InDelta(t, 0.0, mean, 0.01)
	assert.InDelta(t, 0.1*5/math.Sqrt2, stddev, 0.01)

	// the input is never modified
	assert.Equal(t, sine(64000), x)
}

func TestSpikeNoise(t *testing.T) {
	testCases := []struct {
		name     string
		params   noise.SpikeParams
		positive bool
		negative bool
	}{
		{name: "always positive", params: noise.SpikeParams{Probability: 1, Magnitude: 2, SpikeSign: 1}, positive: true},
		{name: "always negative", params: noise.SpikeParams{Probability: 1, Magnitude: 2, SpikeSign: -1}, negative: true},
		{name: "both", params: noise.SpikeParams{Probability: 1, Magnitude: 2}, positive: true, negative: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			s, err := noise.NewSpikeNoise(tc.params)
			require.NoError(t, err)

			x := make([]float64, 1000)
			noisy := noise.Container{s}.Apply(rand.New(rand.NewPCG(1, 2)), 1e-3, x)

			var pos, neg int
			for _, v := range noisy {
				assert.InDelta(t, 2.0, math.Abs(v), 1e-12)
				if v > 0 {
					pos++
				} else {
					neg++
				}
			}
			assert.Equal(t, tc.positive, pos > 0)
			assert.Equal(t, tc.negative, neg > 0)
		})
	}
}

func TestOffModelsAreSkipped(t *testing.T) {
	s, err := noise.NewSpikeNoise(noise.SpikeParams{Probability: 1, Magnitude: 2, Off: true})
	require.NoError(t, err)

	c := noise.Container{s}
	assert.False(t, c.Active())

	x := sine(100)
	assert.Equal(t, x, c.Apply(rand.New(rand.NewPCG(1, 2)), 1e-3, x))
}

func TestStringKeys(t *testing.T) {
	m, err := noise.StringKeys(map[interface{}]interface{}{
		"a": map[interface{}]interface{}{"b": 1},
		"c": []interface{}{map[interface{}]interface{}{"d": 2}},
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"b": 1}, m["a"])
	assert.Equal(t, []interface{}{map[string]interface{}{"d": 2}}, m["c"])

	_, err = noise.StringKeys(map[interface{}]interface{}{1: "x"})
	assert.Error(t, err)

	_, err = noise.StringKeys("scalar")
	assert.Error(t, err)
}
