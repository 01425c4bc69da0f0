// Package logging provides structured logging for SensorHub.
//
// It wraps log/slog so every component logs with the same handler,
// level and default attributes (service, version).
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// # Usage
//
//	logger := logging.New(cfg.Logging, version)
//	logger.Info("starting service", "port", 3000)
//	logger.Error("failed to connect", "error", err)
//
// Never log MQTT passwords or InfluxDB tokens.
package logging
