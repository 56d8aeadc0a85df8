package homeassistant

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/nerrad567/iot-device-core/internal/device"
	"github.com/nerrad567/iot-device-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/iot-device-core/internal/telemetry"
)

// MQTTClient is the interface for publishing to the broker.
type MQTTClient interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// Logger defines the logging interface used by the bridge.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Publisher formats hub-facing events and hands them to the transport.
//
// Every message goes out at QoS 1, not retained, with a "timestamp" member
// in Unix seconds. A failed publish is logged and returned; there is no
// retry.
//
// Thread Safety: all methods are safe for concurrent use if the MQTTClient is.
type Publisher struct {
	mqtt   MQTTClient
	topics mqtt.Topics
	logger Logger
	now    func() time.Time
}

// NewPublisher creates a publisher on client. A nil logger discards output.
func NewPublisher(client MQTTClient, logger Logger) *Publisher {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Publisher{mqtt: client, logger: logger, now: time.Now}
}

// PublishDeviceStatus sends {status, timestamp} to iot/device/{id}/status.
func (p *Publisher) PublishDeviceStatus(deviceID string, status device.Status) error {
	return p.publish(p.topics.HubDeviceStatus(deviceID), StatusMessage{
		Status:    status.String(),
		Timestamp: p.unix(),
	})
}

// PublishDeviceData sends the decoded fields plus timestamp to
// iot/device/{id}/data. A "timestamp" field from the device is overwritten.
func (p *Publisher) PublishDeviceData(deviceID string, fields telemetry.Fields) error {
	body := make(map[string]any, len(fields)+1)
	for name, v := range fields {
		body[name] = v
	}
	body["timestamp"] = p.unix()
	return p.publish(p.topics.HubDeviceData(deviceID), body)
}

// PublishDeviceAlarm sends {alarmType, level, value, timestamp} to
// iot/device/{id}/alarm.
func (p *Publisher) PublishDeviceAlarm(deviceID, alarmType, level string, value any) error {
	return p.publish(p.topics.HubDeviceAlarm(deviceID), AlarmMessage{
		AlarmType: alarmType,
		Level:     level,
		Value:     value,
		Timestamp: p.unix(),
	})
}

// PublishControlResponse answers a control command on iot/device/{id}/response.
func (p *Publisher) PublishControlResponse(deviceID, requestID string, success bool, message string) error {
	return p.publish(p.topics.HubDeviceResponse(deviceID), ControlResponse{
		RequestID: requestID,
		Success:   success,
		Message:   message,
		Timestamp: p.unix(),
	})
}

// PublishSceneResult answers a scene trigger on iot/scene/{id}/result.
func (p *Publisher) PublishSceneResult(sceneID string, success bool, message string) error {
	return p.publish(p.topics.SceneResult(sceneID), SceneResult{
		Success:   success,
		Message:   message,
		Timestamp: p.unix(),
	})
}

// PublishBatchDeviceData publishes each device's fields independently. One
// device failing does not stop the others; the failures are joined.
func (p *Publisher) PublishBatchDeviceData(devices map[string]telemetry.Fields) (int, error) {
	ids := make([]string, 0, len(devices))
	for id := range devices {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var (
		sent int
		errs []error
	)
	for _, id := range ids {
		if err := p.PublishDeviceData(id, devices[id]); err != nil {
			errs = append(errs, fmt.Errorf("device %s: %w", id, err))
			continue
		}
		sent++
	}

	p.logger.Info("batch device data published", "total", len(ids), "sent", sent)
	return sent, errors.Join(errs...)
}

// PublishDiscovery sends a discovery config to
// homeassistant/{component}/{id}/config.
func (p *Publisher) PublishDiscovery(component, deviceID string, cfg DiscoveryConfig) error {
	cfg.Timestamp = p.unix()
	return p.publish(p.topics.Discovery(component, deviceID), cfg)
}

func (p *Publisher) publish(topic string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		p.logger.Error("failed to marshal outbound message", "topic", topic, "error", err)
		return fmt.Errorf("%w: marshal: %w", ErrPublishFailed, err)
	}

	if err := p.mqtt.Publish(topic, payload, mqtt.QoSAtLeastOnce, false); err != nil {
		p.logger.Error("failed to publish message", "topic", topic, "error", err)
		return fmt.Errorf("%w: %s: %w", ErrPublishFailed, topic, err)
	}

	p.logger.Debug("message published", "topic", topic, "bytes", len(payload))
	return nil
}

func (p *Publisher) unix() int64 {
	return p.now().Unix()
}
