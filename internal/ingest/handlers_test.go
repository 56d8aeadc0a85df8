package ingest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/iot-device-core/internal/device"
	"github.com/nerrad567/iot-device-core/internal/telemetry"
)

type mockStore struct {
	mu     sync.Mutex
	points []telemetry.Point
	err    error
}

func (m *mockStore) WritePoint(_ context.Context, p telemetry.Point) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.points = append(m.points, p)
	return m.err
}

func (m *mockStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.points)
}

type mockMirror struct {
	topics []string
	at     []time.Time
}

func (m *mockMirror) MirrorTelemetry(_ context.Context, _, sourceTopic string, _ []byte, receivedAt time.Time) error {
	m.topics = append(m.topics, sourceTopic)
	m.at = append(m.at, receivedAt)
	return nil
}

type mockForwarder struct {
	ids []string
	err error
}

func (m *mockForwarder) PublishDeviceData(deviceID string, _ telemetry.Fields) error {
	m.ids = append(m.ids, deviceID)
	return m.err
}

func TestTelemetryHandler_WritesOnePoint(t *testing.T) {
	store := &mockStore{}
	h := NewTelemetryHandler(store, nil)
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 123456789, time.UTC)
	h.now = func() time.Time { return fixed }

	payload := []byte(`{"temperature": 22.5, "on": true, "mode": "eco", "timestamp": 1}`)
	if err := h.Handle(context.Background(), "dev-1", Message{Topic: "device/dev-1/data", Payload: payload}); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	if len(store.points) != 1 {
		t.Fatalf("store got %d points, want 1", len(store.points))
	}
	p := store.points[0]
	if p.DeviceID != "dev-1" {
		t.Errorf("DeviceID = %q", p.DeviceID)
	}
	// Receipt time, millisecond precision; the payload timestamp is just a field.
	if !p.Time.Equal(fixed.Truncate(time.Millisecond)) {
		t.Errorf("Time = %v, want %v", p.Time, fixed.Truncate(time.Millisecond))
	}
	if v, ok := p.Fields["temperature"].Float(); !ok || v != 22.5 {
		t.Errorf("temperature = %v", p.Fields["temperature"])
	}
	if v, ok := p.Fields["on"].Boolean(); !ok || !v {
		t.Errorf("on = %v", p.Fields["on"])
	}
	if v, ok := p.Fields["mode"].Text(); !ok || v != "eco" {
		t.Errorf("mode = %v", p.Fields["mode"])
	}
	if _, ok := p.Fields["timestamp"].Float(); !ok {
		t.Errorf("timestamp field = %v, want number", p.Fields["timestamp"])
	}
}

func TestTelemetryHandler_Malformed(t *testing.T) {
	for _, payload := range []string{`not json`, `[1,2]`, `null`, `{}`, `42`} {
		t.Run(payload, func(t *testing.T) {
			store := &mockStore{}
			h := NewTelemetryHandler(store, nil)
			err := h.Handle(context.Background(), "dev-1", Message{Payload: []byte(payload)})
			if !errors.Is(err, ErrMalformedPayload) {
				t.Errorf("Handle(%s) error = %v, want ErrMalformedPayload", payload, err)
			}
			if len(store.points) != 0 {
				t.Errorf("store written for malformed payload")
			}
		})
	}
}

func TestTelemetryHandler_StoreFailureStillForwards(t *testing.T) {
	store := &mockStore{err: errors.New("influx down")}
	mirror := &mockMirror{}
	fwd := &mockForwarder{}
	h := NewTelemetryHandler(store, nil, WithMirror(mirror), WithDataForwarder(fwd))

	received := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	err := h.Handle(context.Background(), "dev-1", Message{
		Topic:      "device/dev-1/data",
		Payload:    []byte(`{"t": 1}`),
		ReceivedAt: received,
	})
	if !errors.Is(err, ErrStoreWrite) {
		t.Errorf("Handle() error = %v, want ErrStoreWrite", err)
	}
	if len(mirror.topics) != 1 || mirror.topics[0] != "device/dev-1/data" || !mirror.at[0].Equal(received) {
		t.Errorf("mirror = %+v", mirror)
	}
	if len(fwd.ids) != 1 || fwd.ids[0] != "dev-1" {
		t.Errorf("forwarder ids = %v", fwd.ids)
	}
}

func TestTelemetryHandler_NoStore(t *testing.T) {
	fwd := &mockForwarder{}
	h := NewTelemetryHandler(nil, nil, WithDataForwarder(fwd))

	if err := h.Handle(context.Background(), "dev-1", Message{Payload: []byte(`{"t": 1}`)}); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if len(fwd.ids) != 1 {
		t.Errorf("forwarder ids = %v, want one forward without a store", fwd.ids)
	}
}

type mockDirectory struct {
	updates []device.Status
	err     error
}

func (m *mockDirectory) UpdateStatus(_ context.Context, _ string, status device.Status) (device.StatusEntry, error) {
	m.updates = append(m.updates, status)
	return device.StatusEntry{Status: status, ChangedAt: time.Now()}, m.err
}

type mockStatusPublisher struct {
	published []device.Status
}

func (m *mockStatusPublisher) PublishDeviceStatus(_ string, status device.Status) error {
	m.published = append(m.published, status)
	return nil
}

func TestParseStatusPayload(t *testing.T) {
	tests := []struct {
		payload string
		want    device.Status
		ok      bool
	}{
		{`{"status": 1}`, device.StatusOnline, true},
		{`{"status": 0}`, device.StatusOffline, true},
		{`{"status": 0, "extra": "x"}`, device.StatusOffline, true},
		{`{"status": 2}`, 0, false},
		{`{"status": -1}`, 0, false},
		{`{"status": 1.0}`, 0, false},
		{`{"status": "1"}`, 0, false},
		{`{"status": true}`, 0, false},
		{`{"status": null}`, 0, false},
		{`{"state": 1}`, 0, false},
		{`{}`, 0, false},
		{`garbage`, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.payload, func(t *testing.T) {
			got, err := ParseStatusPayload([]byte(tt.payload))
			if tt.ok {
				if err != nil || got != tt.want {
					t.Errorf("ParseStatusPayload() = %v, %v, want %v", got, err, tt.want)
				}
				return
			}
			if !errors.Is(err, ErrMalformedPayload) {
				t.Errorf("ParseStatusPayload() error = %v, want ErrMalformedPayload", err)
			}
		})
	}
}

func TestStatusHandler(t *testing.T) {
	t.Run("online", func(t *testing.T) {
		dir := &mockDirectory{}
		pub := &mockStatusPublisher{}
		h := NewStatusHandler(dir, pub, nil)

		if err := h.Handle(context.Background(), "dev-1", Message{Payload: []byte(`{"status":1}`)}); err != nil {
			t.Fatalf("Handle() error = %v", err)
		}
		if len(dir.updates) != 1 || dir.updates[0] != device.StatusOnline {
			t.Errorf("directory updates = %v", dir.updates)
		}
		if len(pub.published) != 1 || pub.published[0] != device.StatusOnline {
			t.Errorf("published = %v", pub.published)
		}
	})

	t.Run("malformed skips directory", func(t *testing.T) {
		dir := &mockDirectory{}
		h := NewStatusHandler(dir, nil, nil)
		err := h.Handle(context.Background(), "dev-1", Message{Payload: []byte(`{"status":7}`)})
		if !errors.Is(err, ErrMalformedPayload) {
			t.Errorf("Handle() error = %v, want ErrMalformedPayload", err)
		}
		if len(dir.updates) != 0 {
			t.Errorf("directory updated for malformed payload")
		}
	})

	t.Run("cache failure is not fatal", func(t *testing.T) {
		dir := &mockDirectory{err: errors.Join(device.ErrStatusCache, errors.New("redis down"))}
		pub := &mockStatusPublisher{}
		h := NewStatusHandler(dir, pub, nil)
		if err := h.Handle(context.Background(), "dev-1", Message{Payload: []byte(`{"status":0}`)}); err != nil {
			t.Errorf("Handle() error = %v, want nil", err)
		}
		if len(pub.published) != 1 {
			t.Errorf("status not published after cache failure")
		}
	})

	t.Run("directory failure", func(t *testing.T) {
		dir := &mockDirectory{err: device.ErrDeviceNotFound}
		pub := &mockStatusPublisher{}
		h := NewStatusHandler(dir, pub, nil)
		err := h.Handle(context.Background(), "ghost", Message{Payload: []byte(`{"status":1}`)})
		if !errors.Is(err, ErrDirectoryUpdate) || !errors.Is(err, device.ErrDeviceNotFound) {
			t.Errorf("Handle() error = %v", err)
		}
		if len(pub.published) != 0 {
			t.Errorf("status published after directory failure")
		}
	})
}
