package homeassistant

import "errors"

// Sentinel errors for the Home Assistant bridge.
var (
	// ErrPublishFailed indicates the transport rejected an outbound message.
	ErrPublishFailed = errors.New("homeassistant: publish failed")

	// ErrInvalidCommand indicates a control payload failed schema validation.
	ErrInvalidCommand = errors.New("homeassistant: invalid control command")

	// ErrUnknownVerb indicates a control action outside the verb table.
	ErrUnknownVerb = errors.New("homeassistant: unsupported action")

	// ErrInvalidTrigger indicates a scene trigger body that is not a JSON object.
	ErrInvalidTrigger = errors.New("homeassistant: invalid scene trigger")

	// ErrExecutionPanic indicates a collaborator panicked; the panic was recovered.
	ErrExecutionPanic = errors.New("homeassistant: execution panicked")
)
