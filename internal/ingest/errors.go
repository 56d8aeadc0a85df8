package ingest

import (
	"errors"

	"github.com/nerrad567/iot-device-core/internal/telemetry"
)

// Sentinel errors for the ingest pipeline.
var (
	// ErrMalformedPayload marks a message dropped for bad input. It is the
	// same value as telemetry.ErrMalformedPayload so decode errors match.
	ErrMalformedPayload = telemetry.ErrMalformedPayload

	// ErrStoreWrite indicates the telemetry store rejected a point.
	ErrStoreWrite = errors.New("ingest: telemetry store write failed")

	// ErrDirectoryUpdate indicates the device directory rejected a status update.
	ErrDirectoryUpdate = errors.New("ingest: directory update failed")

	// ErrHandlerPanic indicates a handler panicked; the panic was recovered.
	ErrHandlerPanic = errors.New("ingest: handler panicked")

	// ErrDispatcherStopped is returned by Submit after Stop.
	ErrDispatcherStopped = errors.New("ingest: dispatcher stopped")
)
