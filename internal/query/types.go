package query

import (
	"bytes"
	"encoding/json"
)

// Page is one page of a paginated result.
type Page[T any] struct {
	TotalPages int `json:"totalPages"`
	Data       []T `json:"data"`
}

// PivotRow is the readings of one second, one value per metric.
type PivotRow struct {
	// Timestamp is the second, YYYY-MM-DD HH:MM:SS in site time.
	Timestamp string

	keys   []string
	values []float64
}

// Time is the HH:MM:SS part of the timestamp.
func (r PivotRow) Time() string {
	if len(r.Timestamp) < len("2006-01-02 15:04:05") {
		return ""
	}
	return r.Timestamp[len("2006-01-02 "):]
}

// Value returns the value of metric key.
func (r PivotRow) Value(key string) (float64, bool) {
	for i, k := range r.keys {
		if k == key {
			return r.values[i], true
		}
	}
	return 0, false
}

// Keys returns the metric keys of the row in column order.
func (r PivotRow) Keys() []string {
	return append([]string(nil), r.keys...)
}

// MarshalJSON writes timestamp, time and then the metrics in registry
// order.
func (r PivotRow) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')

	write := func(key string, v any) error {
		k, err := json.Marshal(key)
		if err != nil {
			return err
		}
		val, err := json.Marshal(v)
		if err != nil {
			return err
		}
		if buf.Len() > 1 {
			buf.WriteByte(',')
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(val)
		return nil
	}

	if err := write("timestamp", r.Timestamp); err != nil {
		return nil, err
	}
	if err := write("time", r.Time()); err != nil {
		return nil, err
	}
	for i, k := range r.keys {
		if err := write(k, r.values[i]); err != nil {
			return nil, err
		}
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// ActionLogEntry is one operator command from the action log.
type ActionLogEntry struct {
	HistoryID  int64  `json:"historyId"`
	DeviceName string `json:"deviceName"`
	State      string `json:"state"`
	Timestamp  string `json:"timestamp"`
}

// AlertCount is a sensor's alert counter as of today.
type AlertCount struct {
	Type            string `json:"type"`
	AlertCountToday int    `json:"alertCountToday"`
}

// DeviceState is a device's last confirmed state.
type DeviceState struct {
	DeviceName  string `json:"deviceName"`
	DeviceState bool   `json:"deviceState"`
}

// TelemetryQuery selects a page of pivoted telemetry. Zero values take
// the defaults: page 1, limit 1000, newest first.
type TelemetryQuery struct {
	Page           int
	Limit          int
	SortKey        string
	SortOrder      string
	StartDate      string
	EndDate        string
	Search         string
	FilterCategory string
}

// ActionQuery selects a page of the action log. Zero values take the
// defaults: page 1, limit 10, newest first, every device and state.
type ActionQuery struct {
	// Device is a catalogue key or display name; empty means all.
	Device    string
	Page      int
	Limit     int
	State     string
	Search    string
	SortOrder string
}
