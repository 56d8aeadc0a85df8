package homeassistant

import (
	"context"
	"errors"
	"testing"

	"github.com/nerrad567/iot-device-core/internal/device"
)

func TestComponentFor(t *testing.T) {
	tests := map[device.Type]string{
		device.TypeSensor:       "sensor",
		device.TypeSwitch:       "switch",
		device.TypeLight:        "light",
		device.TypeClimate:      "climate",
		device.TypeBinarySensor: "binary_sensor",
		device.Type("gizmo"):    "sensor",
	}
	for typ, want := range tests {
		if got := ComponentFor(typ); got != want {
			t.Errorf("ComponentFor(%q) = %q, want %q", typ, got, want)
		}
	}
}

func TestBuildDiscoveryConfig(t *testing.T) {
	component, cfg := BuildDiscoveryConfig(device.Device{ID: "lamp-1", Name: "Hall Lamp", Type: device.TypeLight})
	if component != "light" {
		t.Errorf("component = %q", component)
	}
	if cfg.UniqueID != "lamp-1" || cfg.Name != "Hall Lamp" {
		t.Errorf("identity = %+v", cfg)
	}
	if cfg.StateTopic != "iot/device/lamp-1/data" {
		t.Errorf("StateTopic = %q", cfg.StateTopic)
	}
	if cfg.CommandTopic != "iot/device/lamp-1/control" {
		t.Errorf("CommandTopic = %q", cfg.CommandTopic)
	}
	if cfg.AvailabilityTopic != "iot/device/lamp-1/status" || cfg.PayloadAvailable != "online" {
		t.Errorf("availability = %+v", cfg)
	}

	// Read-only components get no command topic; the id stands in for a name.
	_, cfg = BuildDiscoveryConfig(device.Device{ID: "t-1", Type: device.TypeSensor})
	if cfg.CommandTopic != "" {
		t.Errorf("sensor CommandTopic = %q, want empty", cfg.CommandTopic)
	}
	if cfg.Name != "t-1" {
		t.Errorf("Name = %q, want id fallback", cfg.Name)
	}
}

type mockLister struct {
	devices []device.Device
	err     error
}

func (m *mockLister) List(context.Context) ([]device.Device, error) {
	return m.devices, m.err
}

func TestAnnounce(t *testing.T) {
	pub, client := newTestPublisher()
	client.FailOn = map[string]bool{"homeassistant/switch/s-1/config": true}

	lister := &mockLister{devices: []device.Device{
		{ID: "t-1", Name: "Temp", Type: device.TypeSensor},
		{ID: "s-1", Name: "Plug", Type: device.TypeSwitch},
		{ID: "c-1", Name: "Thermostat", Type: device.TypeClimate},
	}}

	sent, err := Announce(context.Background(), lister, pub, nil)
	if sent != 2 {
		t.Errorf("sent = %d, want 2", sent)
	}
	if !errors.Is(err, ErrPublishFailed) {
		t.Errorf("Announce() error = %v, want ErrPublishFailed", err)
	}

	topics := []string{client.Published[0].Topic, client.Published[1].Topic}
	if topics[0] != "homeassistant/sensor/t-1/config" || topics[1] != "homeassistant/climate/c-1/config" {
		t.Errorf("topics = %v", topics)
	}
	body := client.decode(t, 0)
	if body["unique_id"] != "t-1" || body["state_topic"] != "iot/device/t-1/data" {
		t.Errorf("discovery body = %v", body)
	}
}

func TestAnnounce_ListError(t *testing.T) {
	pub, _ := newTestPublisher()
	_, err := Announce(context.Background(), &mockLister{err: errors.New("db locked")}, pub, nil)
	if err == nil {
		t.Error("Announce() with failing directory succeeded")
	}
}
