// Package api implements the HTTP REST API and WebSocket server for SensorHub.
//
// This package provides:
//   - Read endpoints for pivoted telemetry, alert counters, device states
//     and the action log
//   - The toggle endpoint that hands operator commands to the dispatcher
//   - A WebSocket hub for live readings, alerts and device events
//   - Prometheus exposition on /metrics
//   - Middleware stack (request ID, logging, recovery, CORS, body limit)
//
// # Error responses
//
// Every error is a JSON body {status, code, message}. Validation failures
// (unknown device, bad sort key, bad paging) are 400; store failures are a
// generic 500 with no partial data.
//
// # Graceful Degradation
//
// The server operates without MQTT. Reads and WebSocket connections work;
// toggles are still logged and answer 200 with a warning that the command
// was not delivered.
package api
