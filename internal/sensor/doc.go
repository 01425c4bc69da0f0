// Package sensor turns device telemetry into stored readings and alert state.
//
// A telemetry message is a flat JSON object of metric keys to numeric
// values, for example:
//
//	{"temperature": 31.2, "humidity": 64, "luminosity": 410, "dust": 57}
//
// The Registry maps metric keys to sensor ids. It is loaded once at start
// from the sensors table and never changes afterwards; unknown keys in a
// message are skipped, never fatal.
//
// The Ingestor stores every known pair of one message in a single
// transaction. When the pair carries the configured alert key, the alert
// state machine (Evaluate) runs inside the same transaction, so the
// reading and its alert consequence commit or roll back together.
//
// Alert counting is edge-triggered and per local day: only a
// normal-to-alerting crossing increments the counter, and the first
// crossing on a new day resets it to one. CountToday reports zero for a
// counter last touched on an earlier day, so no midnight job is needed.
package sensor
