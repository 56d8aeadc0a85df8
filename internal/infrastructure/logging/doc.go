// Package logging provides structured logging for the IoT device core.
//
// It wraps log/slog so every component logs with the same handler,
// level filter and default attributes (service, version).
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
//	logger.Component("ingest").Info("dispatcher started", "workers", 8)
//
// Never log MQTT passwords, InfluxDB tokens or Redis credentials.
package logging
