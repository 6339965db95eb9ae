package noise

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/mitchellh/mapstructure"
)

// Unmarshals a yaml list of noise models into the container.
func (c *Container) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var unmarshaledYaml []map[string]interface{}
	if err := unmarshal(&unmarshaledYaml); err != nil {
		return err
	}

	for _, yamlEntry := range unmarshaledYaml {
		m, err := createModelFromYamlEntry(yamlEntry)
		if err != nil {
			return err
		}
		*c = append(*c, m)
	}

	return nil
}

// Returns a decodeHook function that can be used to decode noise models with mapstructure,
// e.g. when they are nested inside a larger configuration struct.
func GetDecodeHook() mapstructure.DecodeHookFuncType {
	return func(f reflect.Type, t reflect.Type, yamlEntry interface{}) (interface{}, error) {
		if t == reflect.TypeOf((*Model)(nil)).Elem() {
			return createModelFromYamlEntry(yamlEntry)
		}
		return yamlEntry, nil
	}
}

// Creates a noise model from a yaml entry based on its "type" (or "Type") field.
func createModelFromYamlEntry(yamlEntry interface{}) (Model, error) {
	m, err := StringKeys(yamlEntry)
	if err != nil {
		return nil, err
	}

	// must check both m["type"] and m["Type"] because some yaml parsers convert to lower case and some don't
	typeStr, ok := m["type"].(string)
	if !ok {
		typeStr, ok = m["Type"].(string)
		if !ok {
			return nil, errors.New("noise type field is missing or not a string")
		}
	}
	delete(m, "type")
	delete(m, "Type")

	switch typeStr {
	case "gaussian":
		var params GaussianParams
		if err := decodeParams(m, &params); err != nil {
			return nil, err
		}
		return NewGaussianNoise(params)
	case "spike":
		var params SpikeParams
		if err := decodeParams(m, &params); err != nil {
			return nil, err
		}
		return NewSpikeNoise(params)
	default:
		return nil, fmt.Errorf("unknown noise type: %s", typeStr)
	}
}

// Use mapstructure to decode a yaml map into a params struct, matching on the yaml tags.
func decodeParams[T any](m map[string]interface{}, params *T) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "yaml",
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           params,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(m)
}

// StringKeys converts the map[interface{}]interface{} values produced by yaml.v2
// into map[string]interface{}, recursing into nested maps and slices.
func StringKeys(v interface{}) (map[string]interface{}, error) {
	switch m := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(m))
		for k, val := range m {
			out[k] = normalise(val)
		}
		return out, nil
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(m))
		for k, val := range m {
			key, ok := k.(string)
			if !ok {
				return nil, fmt.Errorf("yaml key is not a string: %v", k)
			}
			out[key] = normalise(val)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("yaml entry cannot be parsed to map[string]interface{}: %v", v)
	}
}

func normalise(v interface{}) interface{} {
	switch val := v.(type) {
	case map[interface{}]interface{}, map[string]interface{}:
		m, err := StringKeys(val)
		if err != nil {
			return v
		}
		return m
	case []interface{}:
		out := make([]interface{}, len(val))
		for i := range val {
			out[i] = normalise(val[i])
		}
		return out
	default:
		return v
	}
}
