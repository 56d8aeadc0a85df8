package mqtt

import "errors"

// Sentinel errors. Callers match them with errors.Is; the wrapped cause
// carries the broker or paho detail.
var (
	ErrNotConnected      = errors.New("mqtt: not connected to broker")
	ErrConnectionFailed  = errors.New("mqtt: broker connection failed")
	ErrPublishFailed     = errors.New("mqtt: publish not acknowledged")
	ErrSubscribeFailed   = errors.New("mqtt: subscribe not acknowledged")
	ErrUnsubscribeFailed = errors.New("mqtt: unsubscribe not acknowledged")

	// ErrPayloadTooLarge is returned before publishing anything over maxPayloadSize.
	ErrPayloadTooLarge = errors.New("mqtt: payload too large")

	ErrInvalidQoS   = errors.New("mqtt: qos must be 0, 1 or 2")
	ErrInvalidTopic = errors.New("mqtt: empty topic")
)
