package noise

import (
	"errors"
	"math"
	"math/rand/v2"
)

// Adds zero-mean Gaussian noise scaled to a percentage of the signal's RMS value.
type gaussianNoise struct {
	modelBase

	percentage float64 // standard deviation as a percentage of the signal RMS
}

// Parameters used to request Gaussian noise.
type GaussianParams struct {
	Off        bool    `yaml:"Off"`        // true: model deactivated, false: activated
	Percentage float64 `yaml:"Percentage"` // noise standard deviation as a percentage (0-100) of the signal RMS
}

// Initialise the internal fields of gaussianNoise when it is unmarshalled from yaml.
func (g *gaussianNoise) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var params GaussianParams
	if err := unmarshal(&params); err != nil {
		return err
	}

	gaussian, err := NewGaussianNoise(params)
	if err != nil {
		return err
	}

	*g = *gaussian
	return nil
}

// Returns a gaussianNoise pointer with the requested parameters, checking for invalid values.
func NewGaussianNoise(params GaussianParams) (*gaussianNoise, error) {
	g := &gaussianNoise{}
	if err := g.SetPercentage(params.Percentage); err != nil {
		return nil, err
	}
	g.typeName = "gaussian"
	g.Off = params.Off
	return g, nil
}

func (g *gaussianNoise) apply(r *rand.Rand, _ float64, x []float64) {
	if g.Off || g.percentage == 0 || len(x) == 0 {
		return
	}

	sigma := g.percentage / 100 * rms(x)
	for i := range x {
		x[i] += r.NormFloat64() * sigma
	}
}

// Sets the noise percentage if it lies within [0, 100].
func (g *gaussianNoise) SetPercentage(percentage float64) error {
	if percentage < 0 || percentage > 100 {
		return errors.New("percentage must be between 0 and 100")
	}
	g.percentage = percentage
	return nil
}

func (g *gaussianNoise) GetPercentage() float64 {
	return g.percentage
}

func rms(x []float64) float64 {
	var sumSq float64
	for _, v := range x {
		sumSq += v * v
	}
	return math.Sqrt(sumSq / float64(len(x)))
}
