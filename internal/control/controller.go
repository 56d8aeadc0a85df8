package control

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/iot-device-core/internal/device"
	"github.com/nerrad567/iot-device-core/internal/infrastructure/mqtt"
)

// Result is the outcome of one control execution.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// DeviceLookup is the part of the device directory the controller needs.
type DeviceLookup interface {
	Get(ctx context.Context, id string) (*device.Device, error)
}

// MQTTClient is the interface for publishing commands to devices.
type MQTTClient interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// Logger defines the logging interface used by the Controller.
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

// Message is the payload published on device/{id}/control.
type Message struct {
	Action    string         `json:"action"`
	Params    map[string]any `json:"params"`
	MessageID string         `json:"messageId"`
	Timestamp int64          `json:"timestamp"`
}

// Controller delivers control verbs to devices over MQTT.
//
// Execute returns once the command is handed to the transport; the device's
// acknowledgement, if any, arrives later on its status or data topic.
//
// Thread Safety: Execute is safe for concurrent use.
type Controller struct {
	devices DeviceLookup
	mqtt    MQTTClient
	topics  mqtt.Topics
	logger  Logger

	now   func() time.Time
	newID func() string
}

// NewController creates a controller. A nil logger discards output.
func NewController(devices DeviceLookup, client MQTTClient, logger Logger) *Controller {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Controller{
		devices: devices,
		mqtt:    client,
		logger:  logger,
		now:     time.Now,
		newID:   uuid.NewString,
	}
}

// Execute publishes verb with params to the device's control topic.
//
// A device known to be offline yields an unsuccessful Result with a nil
// error. Lookup and publish failures are returned as errors.
func (c *Controller) Execute(ctx context.Context, deviceID, verb string, params map[string]any) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	if verb == "" {
		return Result{}, ErrEmptyVerb
	}

	dev, err := c.devices.Get(ctx, deviceID)
	if err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			return Result{}, fmt.Errorf("%w: %s", ErrDeviceNotFound, deviceID)
		}
		return Result{}, fmt.Errorf("looking up device %s: %w", deviceID, err)
	}
	if !dev.IsOnline() {
		return Result{Success: false, Message: fmt.Sprintf("device %s is offline", deviceID)}, nil
	}

	if params == nil {
		params = map[string]any{}
	}
	msg := Message{
		Action:    verb,
		Params:    params,
		MessageID: c.newID(),
		Timestamp: c.now().Unix(),
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return Result{}, fmt.Errorf("encoding control message: %w", err)
	}

	if err := c.mqtt.Publish(c.topics.DeviceControl(deviceID), payload, mqtt.QoSAtLeastOnce, false); err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}

	c.logger.Debug("control command sent",
		"device_id", deviceID,
		"action", verb,
		"message_id", msg.MessageID,
	)
	return Result{Success: true, Message: fmt.Sprintf("%s sent to device %s", verb, deviceID)}, nil
}
