package sensor

import "errors"

// Domain errors for the sensor package.
var (
	// ErrRegistryUnavailable is returned when the sensor type mapping
	// cannot be loaded or is inconsistent. The process cannot ingest
	// without it.
	ErrRegistryUnavailable = errors.New("sensor: registry unavailable")

	// ErrMalformedMessage is returned when a telemetry payload is not a
	// JSON object or a known key carries a non-numeric value.
	ErrMalformedMessage = errors.New("sensor: malformed message")

	// ErrSensorNotFound is returned when a registered sensor has no row
	// in the store.
	ErrSensorNotFound = errors.New("sensor: not found")
)
