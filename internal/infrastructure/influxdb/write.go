package influxdb

import (
	"strconv"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names written by SensorHub.
const (
	MeasurementSensorReading = "sensor_reading"
	MeasurementDeviceState   = "device_state"
)

// ReadingPoint builds the point for one committed reading.
//
// Tags are sensor_type and sensor_id; the single field is value.
func ReadingPoint(sensorType string, sensorID int64, value float64, at time.Time) *write.Point {
	return write.NewPoint(
		MeasurementSensorReading,
		map[string]string{
			"sensor_type": sensorType,
			"sensor_id":   strconv.FormatInt(sensorID, 10),
		},
		map[string]any{
			"value": value,
		},
		at,
	)
}

// DeviceStatePoint builds the point for one confirmed relay state.
// The on field is 1 for ON and 0 for OFF so it can be graphed.
func DeviceStatePoint(deviceName string, on bool, at time.Time) *write.Point {
	state := 0
	if on {
		state = 1
	}
	return write.NewPoint(
		MeasurementDeviceState,
		map[string]string{
			"device": deviceName,
		},
		map[string]any{
			"on": state,
		},
		at,
	)
}

// WriteReading queues a reading point. It is a no-op when the client is
// nil or closed, so callers can hold an optional *Client.
func (c *Client) WriteReading(sensorType string, sensorID int64, value float64, at time.Time) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(ReadingPoint(sensorType, sensorID, value, at))
}

// WriteDeviceState queues a device state point.
func (c *Client) WriteDeviceState(deviceName string, on bool, at time.Time) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(DeviceStatePoint(deviceName, on, at))
}
