// Package influxdb mirrors SensorHub telemetry into InfluxDB v2.
//
// SQLite remains the system of record. When enabled, every committed
// reading becomes a sensor_reading point and every confirmed relay state
// a device_state point, so long-range dashboards can be served without
// scanning the relational store.
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	switch {
//	case errors.Is(err, influxdb.ErrDisabled):
//	    // run without a mirror
//	case err != nil:
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteReading("dust", 4, 61.2, time.Now())
//
// Writes are non-blocking and batched (batch_size, flush_interval).
// Failures are delivered to the SetOnError callback.
package influxdb
