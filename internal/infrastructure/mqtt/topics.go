package mqtt

import "fmt"

// Topic roots.
//
// Devices talk on the bare "device/" tree. The home-automation hub talks on
// "iot/". Discovery configs use the Home Assistant "homeassistant/" prefix.
const (
	// TopicPrefixDevice is the root for device-originated and device-bound traffic.
	TopicPrefixDevice = "device"

	// TopicPrefixHub is the root for hub-facing device topics.
	TopicPrefixHub = "iot/device"

	// TopicPrefixScene is the root for hub scene topics.
	TopicPrefixScene = "iot/scene"

	// TopicPrefixSystem is the root for core lifecycle topics.
	TopicPrefixSystem = "iot/system"

	// TopicPrefixDiscovery is the Home Assistant MQTT discovery prefix.
	TopicPrefixDiscovery = "homeassistant"
)

// Topics provides builders for every topic the core subscribes or publishes to.
//
//	topics := mqtt.Topics{}
//	topics.HubDeviceStatus("dev-1") // "iot/device/dev-1/status"
type Topics struct{}

// =============================================================================
// Device Topics
// =============================================================================

// DeviceData returns the topic a device publishes telemetry on.
//
// Example: device/dev-1/data
func (Topics) DeviceData(deviceID string) string {
	return fmt.Sprintf("%s/%s/data", TopicPrefixDevice, deviceID)
}

// DeviceStatus returns the topic a device publishes online/offline status on.
//
// Example: device/dev-1/status
func (Topics) DeviceStatus(deviceID string) string {
	return fmt.Sprintf("%s/%s/status", TopicPrefixDevice, deviceID)
}

// DeviceControl returns the topic the core sends control messages to a device on.
//
// Example: device/dev-1/control
func (Topics) DeviceControl(deviceID string) string {
	return fmt.Sprintf("%s/%s/control", TopicPrefixDevice, deviceID)
}

// =============================================================================
// Hub Topics
// =============================================================================

// HubDeviceStatus returns the hub-facing status topic.
//
// Example: iot/device/dev-1/status
func (Topics) HubDeviceStatus(deviceID string) string {
	return fmt.Sprintf("%s/%s/status", TopicPrefixHub, deviceID)
}

// HubDeviceData returns the hub-facing telemetry topic.
//
// Example: iot/device/dev-1/data
func (Topics) HubDeviceData(deviceID string) string {
	return fmt.Sprintf("%s/%s/data", TopicPrefixHub, deviceID)
}

// HubDeviceAlarm returns the hub-facing alarm topic.
//
// Example: iot/device/dev-1/alarm
func (Topics) HubDeviceAlarm(deviceID string) string {
	return fmt.Sprintf("%s/%s/alarm", TopicPrefixHub, deviceID)
}

// HubDeviceControl returns the topic the hub sends control commands on.
//
// Example: iot/device/dev-1/control
func (Topics) HubDeviceControl(deviceID string) string {
	return fmt.Sprintf("%s/%s/control", TopicPrefixHub, deviceID)
}

// HubDeviceResponse returns the topic control responses are published on.
//
// Example: iot/device/dev-1/response
func (Topics) HubDeviceResponse(deviceID string) string {
	return fmt.Sprintf("%s/%s/response", TopicPrefixHub, deviceID)
}

// SceneTrigger returns the topic the hub triggers a scene on.
//
// Example: iot/scene/movie-night/trigger
func (Topics) SceneTrigger(sceneID string) string {
	return fmt.Sprintf("%s/%s/trigger", TopicPrefixScene, sceneID)
}

// SceneResult returns the topic a scene execution result is published on.
//
// Example: iot/scene/movie-night/result
func (Topics) SceneResult(sceneID string) string {
	return fmt.Sprintf("%s/%s/result", TopicPrefixScene, sceneID)
}

// Discovery returns the Home Assistant discovery config topic.
//
// Example: homeassistant/sensor/dev-1/config
func (Topics) Discovery(component, deviceID string) string {
	return fmt.Sprintf("%s/%s/%s/config", TopicPrefixDiscovery, component, deviceID)
}

// =============================================================================
// System Topics
// =============================================================================

// SystemStatus returns the core lifecycle topic used for the LWT.
//
// Example: iot/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// =============================================================================
// Wildcard Patterns for Subscriptions
// =============================================================================

// AllDeviceData matches telemetry from every device.
//
// Pattern: device/+/data
func (Topics) AllDeviceData() string {
	return fmt.Sprintf("%s/+/data", TopicPrefixDevice)
}

// AllDeviceStatus matches status from every device.
//
// Pattern: device/+/status
func (Topics) AllDeviceStatus() string {
	return fmt.Sprintf("%s/+/status", TopicPrefixDevice)
}

// AllHubControl matches hub control commands for every device.
//
// Pattern: iot/device/+/control
func (Topics) AllHubControl() string {
	return fmt.Sprintf("%s/+/control", TopicPrefixHub)
}

// AllSceneTriggers matches every scene trigger.
//
// Pattern: iot/scene/+/trigger
func (Topics) AllSceneTriggers() string {
	return fmt.Sprintf("%s/+/trigger", TopicPrefixScene)
}

// Inbound returns the four subscriptions the ingest pipeline needs.
func (t Topics) Inbound() []string {
	return []string{
		t.AllDeviceData(),
		t.AllDeviceStatus(),
		t.AllHubControl(),
		t.AllSceneTriggers(),
	}
}
