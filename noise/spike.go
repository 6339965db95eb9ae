package noise

import (
	"errors"
	"math/rand/v2"

	"github.com/synaptecltd/loadsynth/mathfuncs"
)

// Produces spikes in waveform data: these occur at each sample based on a probability factor.
type spikeNoise struct {
	modelBase

	// Private fields have setters for invalid value checking

	Magnitude     float64 // magnitude of spikes, default 0
	VaryMagnitude bool    // whether to apply Gaussian variation to the magnitude of spikes, default false
	spikeSign     float64 // bias of spike polarity in [-1, 1]; 0 means equally likely +/-
	probability   float64 // probability of a spike in each sample, default 0
	period        float64 // period in seconds handed to the magnitude function

	magFuncName string                  // name of the function used to vary the magnitude of the spikes, empty for constant
	magFunction mathfuncs.MathsFunction // set internally from magFuncName
}

// Parameters used to request spike noise. These map onto the fields of spikeNoise.
type SpikeParams struct {
	Off           bool    `yaml:"Off"`           // true: model deactivated, false: activated
	Magnitude     float64 `yaml:"Magnitude"`     // magnitude of spikes, default 0
	MagFuncName   string  `yaml:"MagFunc"`       // name of the function used to vary the magnitude of spikes over time
	Period        float64 `yaml:"Period"`        // period of the magnitude function in seconds, required with MagFunc
	VaryMagnitude bool    `yaml:"VaryMagnitude"` // whether to apply Gaussian variation to the magnitude of spikes
	SpikeSign     float64 `yaml:"Sign"`          // negative numbers favour negative spikes, positive numbers favour positive spikes
	Probability   float64 `yaml:"Probability"`   // probability of a spike in each sample
}

// Initialise the internal fields of spikeNoise when it is unmarshalled from yaml.
func (s *spikeNoise) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var params SpikeParams
	if err := unmarshal(&params); err != nil {
		return err
	}

	spike, err := NewSpikeNoise(params)
	if err != nil {
		return err
	}

	*s = *spike
	return nil
}

// Returns a spikeNoise pointer with the requested parameters, checking for invalid values.
func NewSpikeNoise(params SpikeParams) (*spikeNoise, error) {
	s := &spikeNoise{}

	if err := s.SetProbability(params.Probability); err != nil {
		return nil, err
	}
	if err := s.SetSpikeSign(params.SpikeSign); err != nil {
		return nil, err
	}
	if err := s.SetMagFunctionByName(params.MagFuncName, params.Period); err != nil {
		return nil, err
	}

	s.typeName = "spike"
	s.Magnitude = params.Magnitude
	s.VaryMagnitude = params.VaryMagnitude
	s.Off = params.Off

	return s, nil
}

func (s *spikeNoise) apply(r *rand.Rand, Ts float64, x []float64) {
	if s.Off {
		return
	}

	for i := range x {
		if r.Float64() >= s.probability {
			continue
		}

		delta := s.Magnitude
		if s.magFunction != nil {
			delta = s.magFunction(float64(i)*Ts, s.Magnitude, s.period)
		}
		delta *= s.getSign(r)
		if s.VaryMagnitude {
			delta *= r.NormFloat64()
		}
		x[i] += delta
	}
}

// Returns -1.0 or +1.0 with a probability based on the spikeSign parameter.
func (s *spikeNoise) getSign(r *rand.Rand) float64 {
	if r.Float64()*2-1 > s.spikeSign {
		return -1.0
	}
	return 1.0
}

// Setters

// Set probability of spikes occurring each sample if probability is within [0, 1].
func (s *spikeNoise) SetProbability(probability float64) error {
	if probability < 0 || probability > 1 {
		return errors.New("probability must be between 0 and 1")
	}
	s.probability = probability
	return nil
}

func (s *spikeNoise) SetSpikeSign(spikeSign float64) error {
	if spikeSign < -1.0 || spikeSign > 1.0 {
		return errors.New("spike sign must be between -1 and 1")
	}
	s.spikeSign = spikeSign
	return nil
}

// Sets the magnitude function by name. An empty name clears it.
func (s *spikeNoise) SetMagFunctionByName(name string, period float64) error {
	if name == "" {
		s.magFuncName = ""
		s.magFunction = nil
		return nil
	}
	if period <= 0 {
		return errors.New("period must be greater than 0 when using a functional dependence for magnitude")
	}

	f, err := mathfuncs.GetFunctionFromName(name)
	if err != nil {
		return err
	}
	s.magFuncName = name
	s.magFunction = f
	s.period = period
	return nil
}

// Getters

func (s *spikeNoise) GetProbability() float64 {
	return s.probability
}

func (s *spikeNoise) GetSpikeSign() float64 {
	return s.spikeSign
}

func (s *spikeNoise) GetMagFuncName() string {
	return s.magFuncName
}
