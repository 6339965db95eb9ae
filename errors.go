package loadsynth

import "errors"

// Sentinel errors. Functions wrap these with context; match them with errors.Is.
var (
	// ErrInvalidConfiguration is returned when a configuration value cannot
	// produce a valid dataset, e.g. more harmonics than frequency slots, a
	// labelling block that rounds to zero samples, or a class count that does
	// not match the available loads.
	ErrInvalidConfiguration = errors.New("loadsynth: invalid configuration")

	// ErrDataUnavailable is returned when a stored load is missing or its
	// series do not have the expected length.
	ErrDataUnavailable = errors.New("loadsynth: data unavailable")

	// ErrIndexOutOfRange is returned when an index falls outside a waveform.
	ErrIndexOutOfRange = errors.New("loadsynth: index out of range")
)
