package mqtt

import (
	"fmt"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

// maxPayloadSize caps outbound payloads at 1 MiB.
const maxPayloadSize = 1 << 20

// QoS levels.
const (
	QoSAtMostOnce  byte = 0
	QoSAtLeastOnce byte = 1
	QoSExactlyOnce byte = 2
)

// Publish hands payload to the session and returns without waiting for the
// broker's acknowledgment. A missing or failed ack is logged.
//
// Publish must not wait for the ack: paho reads PUBACKs on the goroutine
// that runs subscription callbacks, and that callback may itself be blocked
// on a full ingest queue whose workers are the callers here.
//
// Hub responses, scene results and device commands all go out at
// QoSAtLeastOnce with retained false, so receivers must tolerate duplicates
// and a new subscriber never sees a stale command.
func (c *Client) Publish(topic string, payload []byte, qos byte, retained bool) error {
	if err := checkTopicQoS(topic, qos); err != nil {
		return err
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: %d bytes, limit %d", ErrPayloadTooLarge, len(payload), maxPayloadSize)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	token := c.paho.Publish(topic, qos, retained, payload)

	// paho completes the token immediately when it refuses the message.
	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			return fmt.Errorf("%w: %w", ErrPublishFailed, err)
		}
		return nil
	default:
	}

	go c.confirm(topic, token)
	return nil
}

// confirm waits for the ack of one publish.
func (c *Client) confirm(topic string, token pahomqtt.Token) {
	if err := await(token, defaultAckTimeout, ErrPublishFailed); err != nil {
		c.logger().Error("MQTT publish not acknowledged", "topic", topic, "error", err)
	}
}

func checkTopicQoS(topic string, qos byte) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	return nil
}
