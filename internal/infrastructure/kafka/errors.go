package kafka

import "errors"

// Sentinel errors for the telemetry mirror.
var (
	// ErrDisabled indicates the mirror is disabled in configuration.
	ErrDisabled = errors.New("kafka: disabled in configuration")

	// ErrNoBrokers indicates no broker addresses were configured.
	ErrNoBrokers = errors.New("kafka: no brokers configured")

	// ErrInvalidConfig indicates the producer configuration is incomplete.
	ErrInvalidConfig = errors.New("kafka: invalid configuration")

	// ErrWriteFailed indicates a message could not be queued.
	ErrWriteFailed = errors.New("kafka: write failed")
)
