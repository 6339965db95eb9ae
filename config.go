package loadsynth

import (
	"errors"
	"fmt"
	"os"
	"reflect"

	"github.com/mitchellh/mapstructure"
	"github.com/synaptecltd/loadsynth/noise"
	"gopkg.in/yaml.v2"
)

// MaxClasses bounds the combinatorial builder: 2^MaxClasses bins of every load.
const MaxClasses = 24

// Config holds every option of a generation run. It is passed by value into
// NewGenerator and never modified afterwards.
type Config struct {
	// signal generation
	SamplingRate  int          `yaml:"Fs"`            // samples per second
	Duration      float64      `yaml:"Duration"`      // length of each generated load in seconds
	Harmonics     HarmonyRange `yaml:"Harmonics"`     // harmony count range [Min, Max)
	States        int          `yaml:"States"`        // states of loads 2..n, 0 draws a count in [1, 5)
	StateInterval int          `yaml:"StateInterval"` // segments per multi-state waveform
	FastTrig      bool         `yaml:"FastTrig"`      // use the table sine for synthesis
	Labelling     LabelPolicy  `yaml:"Labelling"`     // activity labelling policy
	Seed          uint64       `yaml:"Seed"`          // 0 seeds from the clock
	Workers       int          `yaml:"Workers"`       // loads built concurrently, default 1

	// measured loads, addressed by position
	Loads []string `yaml:"Loads"`

	// inspection
	SampleTime      float64         `yaml:"SampleTime"`      // seconds of signal behind one inspection window
	Noise           bool            `yaml:"Noise"`           // inject noise before inspecting
	NoisePercentage float64         `yaml:"NoisePercentage"` // gaussian noise level when NoiseModels is empty
	NoiseModels     noise.Container `yaml:"NoiseModels"`

	// downstream training, carried through for consumers of the dataset
	TrainTestRatio float64 `yaml:"TrainTestRatio"`
	Threshold      float64 `yaml:"Threshold"`
	InputSize      int     `yaml:"InputSize"`
	OutputSize     int     `yaml:"OutputSize"`
	NumClasses     int     `yaml:"NumClasses"`
	NumEpochs      int     `yaml:"NumEpochs"`
	BatchSize      int     `yaml:"BatchSize"`
	LearningRate   float64 `yaml:"LearningRate"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() Config {
	return Config{}.withDefaults()
}

// withDefaults fills every zero-valued option with its default.
func (c Config) withDefaults() Config {
	if c.SamplingRate == 0 {
		c.SamplingRate = 6400
	}
	if c.Duration == 0 {
		c.Duration = 100
	}
	if c.Harmonics == (HarmonyRange{}) {
		c.Harmonics = HarmonyRange{Min: 2, Max: 8}
	}
	if c.StateInterval == 0 {
		c.StateInterval = DefaultStateInterval
	}
	if c.Labelling == nil {
		c.Labelling = PeriodicPolicy{}
	}
	if c.Workers == 0 {
		c.Workers = 1
	}
	if c.SampleTime == 0 {
		c.SampleTime = 0.1
	}
	if c.TrainTestRatio == 0 {
		c.TrainTestRatio = 0.9
	}
	if c.Threshold == 0 {
		c.Threshold = 1
	}
	if c.InputSize == 0 {
		c.InputSize = 7
	}
	if c.OutputSize == 0 {
		c.OutputSize = 5
	}
	if c.NumClasses == 0 {
		c.NumClasses = 5
	}
	if c.NumEpochs == 0 {
		c.NumEpochs = 30
	}
	if c.BatchSize == 0 {
		c.BatchSize = 50
	}
	if c.LearningRate == 0 {
		c.LearningRate = 1e-3
	}
	return c
}

// TimeGrid returns the grid every generated load is sampled on.
func (c Config) TimeGrid() TimeGrid {
	return TimeGrid{SamplingRate: c.SamplingRate, Duration: c.Duration}
}

// InspectionWindow returns the number of samples in one inspection window.
func (c Config) InspectionWindow() int {
	return int(float64(c.SamplingRate)*c.SampleTime) / 5
}

// NoiseContainer returns the noise models to inject on inspection. Without explicit
// models a gaussian model at NoisePercentage is used.
func (c Config) NoiseContainer() (noise.Container, error) {
	if len(c.NoiseModels) > 0 || c.NoisePercentage == 0 {
		return c.NoiseModels, nil
	}
	g, err := noise.NewGaussianNoise(noise.GaussianParams{Percentage: c.NoisePercentage})
	if err != nil {
		return nil, fmt.Errorf("noise percentage: %v: %w", err, ErrInvalidConfiguration)
	}
	return noise.Container{g}, nil
}

// Validate checks the whole configuration, returning an error wrapping
// ErrInvalidConfiguration for the first problem found.
func (c Config) Validate() error {
	if err := c.TimeGrid().Validate(); err != nil {
		return err
	}
	if err := c.Harmonics.Validate(); err != nil {
		return err
	}

	var errs []error
	if c.States < 0 {
		errs = append(errs, fmt.Errorf("States %d must not be negative", c.States))
	}
	if c.StateInterval < 1 {
		errs = append(errs, fmt.Errorf("StateInterval %d must be at least 1", c.StateInterval))
	}
	if c.Labelling == nil {
		errs = append(errs, errors.New("Labelling policy is missing"))
	}
	if c.Workers < 1 {
		errs = append(errs, fmt.Errorf("Workers %d must be at least 1", c.Workers))
	}
	if c.NumClasses < 1 || c.NumClasses > MaxClasses {
		errs = append(errs, fmt.Errorf("NumClasses %d outside [1, %d]", c.NumClasses, MaxClasses))
	}
	if c.TrainTestRatio < 0 || c.TrainTestRatio > 1 {
		errs = append(errs, fmt.Errorf("TrainTestRatio %g outside [0, 1]", c.TrainTestRatio))
	}
	if c.NoisePercentage < 0 || c.NoisePercentage > 100 {
		errs = append(errs, fmt.Errorf("NoisePercentage %g outside [0, 100]", c.NoisePercentage))
	}
	if c.SampleTime < 0 {
		errs = append(errs, fmt.Errorf("SampleTime %g must not be negative", c.SampleTime))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfiguration, errors.Join(errs...))
	}
	return nil
}

// LoadConfig reads and validates a YAML configuration file.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	return ParseConfig(data)
}

// ParseConfig decodes a YAML document into a Config, fills in defaults for the options
// it leaves out and validates the result.
func ParseConfig(data []byte) (Config, error) {
	var raw map[string]interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	var cfg Config
	if raw != nil {
		m, err := noise.StringKeys(raw)
		if err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
		if err := decodeConfig(m, &cfg); err != nil {
			return Config{}, fmt.Errorf("decode config: %v: %w", err, ErrInvalidConfiguration)
		}
	}

	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func decodeConfig(m map[string]interface{}, cfg *Config) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			GetLabelPolicyDecodeHook(),
			noise.GetDecodeHook(),
		),
		TagName:     "yaml",
		ErrorUnused: true,
		Result:      cfg,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(m)
}

// GetLabelPolicyDecodeHook returns a mapstructure hook that builds the LabelPolicy
// named by the entry's "Type" (or "type") field. A bare string names the type directly.
func GetLabelPolicyDecodeHook() mapstructure.DecodeHookFuncType {
	return func(f reflect.Type, t reflect.Type, data interface{}) (interface{}, error) {
		if t != reflect.TypeOf((*LabelPolicy)(nil)).Elem() {
			return data, nil
		}
		return createLabelPolicy(data)
	}
}

func createLabelPolicy(data interface{}) (LabelPolicy, error) {
	if name, ok := data.(string); ok {
		data = map[string]interface{}{"Type": name}
	}
	m, err := noise.StringKeys(data)
	if err != nil {
		return nil, err
	}

	typeStr, ok := m["Type"].(string)
	if !ok {
		typeStr, ok = m["type"].(string)
		if !ok {
			return nil, errors.New("labelling type field is missing or not a string")
		}
	}
	delete(m, "Type")
	delete(m, "type")

	switch typeStr {
	case PeriodicPolicyType:
		if len(m) > 0 {
			return nil, fmt.Errorf("periodic labelling takes no parameters, got %v", m)
		}
		return PeriodicPolicy{}, nil
	case TogglePolicyType:
		var params TogglePolicy
		decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			TagName:     "yaml",
			ErrorUnused: true,
			Result:      &params,
		})
		if err != nil {
			return nil, err
		}
		if err := decoder.Decode(m); err != nil {
			return nil, err
		}
		return NewTogglePolicy(params.MinRunDivisor, params.MaxRunDivisor)
	default:
		return nil, fmt.Errorf("unknown labelling type: %s", typeStr)
	}
}
