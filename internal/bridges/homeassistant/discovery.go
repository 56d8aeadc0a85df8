package homeassistant

import (
	"context"
	"errors"
	"fmt"

	"github.com/nerrad567/iot-device-core/internal/device"
	"github.com/nerrad567/iot-device-core/internal/infrastructure/mqtt"
)

// Home Assistant entity components.
const (
	ComponentSensor       = "sensor"
	ComponentBinarySensor = "binary_sensor"
	ComponentSwitch       = "switch"
	ComponentLight        = "light"
	ComponentClimate      = "climate"
)

// DiscoveryConfig is the body of homeassistant/{component}/{id}/config.
type DiscoveryConfig struct {
	UniqueID   string `json:"unique_id"`
	Name       string `json:"name"`
	StateTopic string `json:"state_topic"`

	// JSONAttributesTopic exposes every telemetry field as an attribute.
	JSONAttributesTopic string `json:"json_attributes_topic,omitempty"`

	// CommandTopic is set for components that accept control verbs.
	CommandTopic string `json:"command_topic,omitempty"`

	AvailabilityTopic    string `json:"availability_topic,omitempty"`
	AvailabilityTemplate string `json:"availability_template,omitempty"`
	PayloadAvailable     string `json:"payload_available,omitempty"`
	PayloadNotAvailable  string `json:"payload_not_available,omitempty"`

	Timestamp int64 `json:"timestamp"`
}

// ComponentFor maps a device type onto a Home Assistant component.
// Unknown types are exposed as sensors.
func ComponentFor(t device.Type) string {
	switch t {
	case device.TypeSwitch:
		return ComponentSwitch
	case device.TypeLight:
		return ComponentLight
	case device.TypeClimate:
		return ComponentClimate
	case device.TypeBinarySensor:
		return ComponentBinarySensor
	default:
		return ComponentSensor
	}
}

// BuildDiscoveryConfig assembles the discovery body for dev. Timestamp is
// filled in by the publisher.
func BuildDiscoveryConfig(dev device.Device) (string, DiscoveryConfig) {
	var topics mqtt.Topics
	component := ComponentFor(dev.Type)

	name := dev.Name
	if name == "" {
		name = dev.ID
	}

	cfg := DiscoveryConfig{
		UniqueID:             dev.ID,
		Name:                 name,
		StateTopic:           topics.HubDeviceData(dev.ID),
		JSONAttributesTopic:  topics.HubDeviceData(dev.ID),
		AvailabilityTopic:    topics.HubDeviceStatus(dev.ID),
		AvailabilityTemplate: "{{ value_json.status }}",
		PayloadAvailable:     device.StatusOnline.String(),
		PayloadNotAvailable:  device.StatusOffline.String(),
	}

	switch component {
	case ComponentSwitch, ComponentLight, ComponentClimate:
		cfg.CommandTopic = topics.HubDeviceControl(dev.ID)
	}
	return component, cfg
}

// DeviceLister lists directory devices.
type DeviceLister interface {
	List(ctx context.Context) ([]device.Device, error)
}

// DiscoveryPublisher sends discovery configs.
type DiscoveryPublisher interface {
	PublishDiscovery(component, deviceID string, cfg DiscoveryConfig) error
}

// Announce publishes a discovery config for every directory device and
// returns how many were sent. A failing device does not stop the rest.
func Announce(ctx context.Context, devices DeviceLister, pub DiscoveryPublisher, logger Logger) (int, error) {
	if logger == nil {
		logger = noopLogger{}
	}

	list, err := devices.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing devices: %w", err)
	}

	var (
		sent int
		errs []error
	)
	for _, dev := range list {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		component, cfg := BuildDiscoveryConfig(dev)
		if err := pub.PublishDiscovery(component, dev.ID, cfg); err != nil {
			errs = append(errs, fmt.Errorf("device %s: %w", dev.ID, err))
			continue
		}
		sent++
	}

	logger.Info("discovery configs published", "devices", len(list), "sent", sent)
	return sent, errors.Join(errs...)
}
