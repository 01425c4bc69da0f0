// Package query serves the read side of SensorHub: pivoted telemetry,
// the action log, alert counters and device states.
//
// Telemetry is stored one row per reading. Readers want one row per
// moment, so queries pivot readings recorded in the same second into a
// single row with a column per registered metric:
//
//	timestamp            temperature  humidity  luminosity  dust
//	2026-10-01 10:00:00  30.5         61        0           12
//
// A metric missing from a second reads as 0. Columns follow the sensor
// registry, so adding a sensor type adds a column without code changes.
//
// Sort and filter columns come from an allow-list built from the
// registry; every literal is a bound parameter.
package query
