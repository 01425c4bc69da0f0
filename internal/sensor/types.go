package sensor

import (
	"encoding/json"
	"time"
)

// SensorType is one entry of the registry: a metric key and its id.
type SensorType struct {
	ID  int64  `json:"id"`
	Key string `json:"type"`
}

// AlertState is the alert bookkeeping held on a sensor row.
//
// LastUpdated is the local date (YYYY-MM-DD) the counter was last
// incremented, or empty if it never was.
type AlertState struct {
	SensorID    int64
	Alerting    bool
	Count       int
	LastUpdated string
}

// Transition is the edge taken by one alert evaluation.
type Transition int

// Alert transitions.
const (
	TransitionNone Transition = iota
	TransitionStarted
	TransitionSustained
	TransitionCleared
)

// String returns the lowercase transition name used in logs and metrics.
func (t Transition) String() string {
	switch t {
	case TransitionStarted:
		return "started"
	case TransitionSustained:
		return "sustained"
	case TransitionCleared:
		return "cleared"
	default:
		return "none"
	}
}

// MarshalText encodes the transition by name.
func (t Transition) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// Field is one key/value pair of a telemetry message, in arrival order.
// Value is left raw so unknown keys never need to parse.
type Field struct {
	Key   string
	Value json.RawMessage
}

// Reading is a stored measurement.
type Reading struct {
	SensorID   int64     `json:"sensorId"`
	Type       string    `json:"type"`
	Value      float64   `json:"value"`
	RecordedAt time.Time `json:"recordedAt"`
}

// AlertEvent describes an alert transition committed with a reading.
type AlertEvent struct {
	Type            string     `json:"type"`
	SensorID        int64      `json:"sensorId"`
	Value           float64    `json:"value"`
	Threshold       float64    `json:"threshold"`
	Transition      Transition `json:"transition"`
	AlertCountToday int        `json:"alertCountToday"`
}

// IngestResult reports what one message produced.
type IngestResult struct {
	Readings    []Reading
	UnknownKeys []string
	Alert       *AlertEvent
}
