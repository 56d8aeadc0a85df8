package control

import "errors"

// Sentinel errors for device control.
var (
	// ErrDeviceNotFound is returned when the target device is not in the directory.
	ErrDeviceNotFound = errors.New("control: device not found")

	// ErrEmptyVerb is returned when no action verb is given.
	ErrEmptyVerb = errors.New("control: empty action")

	// ErrPublishFailed is returned when the command could not be handed to MQTT.
	ErrPublishFailed = errors.New("control: publish failed")
)
