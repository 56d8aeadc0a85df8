package telemetry

import "errors"

var (
	// ErrMalformedPayload is returned when a telemetry payload is not a JSON object.
	ErrMalformedPayload = errors.New("telemetry: malformed payload")
)
