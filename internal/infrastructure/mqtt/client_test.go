package mqtt

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/iot-device-core/internal/infrastructure/config"
)

// testConfig returns a valid MQTT configuration for testing.
func testConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: "iotcore-test",
		},
		QoS:       1,
		KeepAlive: 30,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     5,
		},
	}
}

// fakeMessage implements pahomqtt.Message for handler tests.
type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 1 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 1 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

// mockLogger implements Logger for testing.
type mockLogger struct {
	mu     sync.Mutex
	infos  []string
	warns  []string
	errors []string
}

func (l *mockLogger) Info(msg string, _ ...any) {
	l.mu.Lock()
	l.infos = append(l.infos, msg)
	l.mu.Unlock()
}

func (l *mockLogger) Warn(msg string, _ ...any) {
	l.mu.Lock()
	l.warns = append(l.warns, msg)
	l.mu.Unlock()
}

func (l *mockLogger) Error(msg string, _ ...any) {
	l.mu.Lock()
	l.errors = append(l.errors, msg)
	l.mu.Unlock()
}

// =============================================================================
// Option Tests
// =============================================================================

func TestBuildClientOptions(t *testing.T) {
	cfg := testConfig()
	cfg.Auth.Username = "core"
	cfg.Auth.Password = "secret"

	opts := buildClientOptions(cfg)

	if len(opts.Servers) != 1 || opts.Servers[0].String() != "tcp://127.0.0.1:1883" {
		t.Errorf("Servers = %v, want [tcp://127.0.0.1:1883]", opts.Servers)
	}
	if opts.ClientID != "iotcore-test" {
		t.Errorf("ClientID = %q, want iotcore-test", opts.ClientID)
	}
	if opts.Username != "core" || opts.Password != "secret" {
		t.Errorf("credentials = %q/%q, want core/secret", opts.Username, opts.Password)
	}
	if !opts.CleanSession {
		t.Error("CleanSession = false, want true")
	}
	if !opts.AutoReconnect {
		t.Error("AutoReconnect = false, want true")
	}
	if opts.KeepAlive != 30 {
		t.Errorf("KeepAlive = %d, want 30", opts.KeepAlive)
	}
}

func TestBuildClientOptions_TLSAndDefaultKeepAlive(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.TLS = true
	cfg.Broker.Port = 8883
	cfg.KeepAlive = 0

	opts := buildClientOptions(cfg)

	if opts.Servers[0].Scheme != "ssl" {
		t.Errorf("scheme = %q, want ssl", opts.Servers[0].Scheme)
	}
	if opts.TLSConfig == nil || opts.TLSConfig.MinVersion != tlsMinVersion {
		t.Error("TLSConfig not configured with minimum version")
	}
	if opts.KeepAlive != int64(defaultKeepAlive.Seconds()) {
		t.Errorf("KeepAlive = %d, want %v", opts.KeepAlive, defaultKeepAlive)
	}
}

func TestConfigureLWT(t *testing.T) {
	opts := buildClientOptions(testConfig())
	configureLWT(opts, "iotcore-test")

	if opts.WillTopic != "iot/system/status" {
		t.Errorf("WillTopic = %q, want iot/system/status", opts.WillTopic)
	}
	if !opts.WillRetained {
		t.Error("WillRetained = false, want true")
	}
	payload := string(opts.WillPayload)
	if !strings.Contains(payload, `"status":"offline"`) || !strings.Contains(payload, `"reason":"unexpected_disconnect"`) {
		t.Errorf("WillPayload = %s", payload)
	}
}

func TestBuildStatusPayload(t *testing.T) {
	online := buildStatusPayload("core-1", "online", "")
	if strings.Contains(online, "reason") {
		t.Errorf("online payload should omit reason: %s", online)
	}
	if !strings.Contains(online, `"timestamp":`) {
		t.Errorf("payload missing timestamp: %s", online)
	}
}

// =============================================================================
// Validation Tests (no broker required)
// =============================================================================

func TestPublishValidation(t *testing.T) {
	client := &Client{}

	tests := []struct {
		name    string
		topic   string
		qos     byte
		payload []byte
		wantErr error
	}{
		{"empty topic", "", 1, nil, ErrInvalidTopic},
		{"invalid qos", "a/b", 3, nil, ErrInvalidQoS},
		{"oversized payload", "a/b", 1, make([]byte, maxPayloadSize+1), ErrPayloadTooLarge},
		{"not connected", "a/b", 1, []byte("x"), ErrNotConnected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := client.Publish(tt.topic, tt.payload, tt.qos, false)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Publish() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

// stubPaho stands in for a connected paho session. Only the methods the
// publish path touches are implemented.
type stubPaho struct {
	pahomqtt.Client
	token *stubToken
}

func (s *stubPaho) IsConnected() bool { return true }

func (s *stubPaho) Publish(string, byte, bool, interface{}) pahomqtt.Token { return s.token }

// stubToken is a paho token the test completes by hand.
type stubToken struct {
	done chan struct{}
	err  error
}

func newStubToken() *stubToken { return &stubToken{done: make(chan struct{})} }

func (t *stubToken) complete(err error) {
	t.err = err
	close(t.done)
}

func (t *stubToken) Wait() bool { <-t.done; return true }

func (t *stubToken) WaitTimeout(d time.Duration) bool {
	select {
	case <-t.done:
		return true
	case <-time.After(d):
		return false
	}
}

func (t *stubToken) Done() <-chan struct{} { return t.done }

func (t *stubToken) Error() error {
	select {
	case <-t.done:
		return t.err
	default:
		return nil
	}
}

func connectedStub(token *stubToken) *Client {
	c := &Client{paho: &stubPaho{token: token}}
	c.online.Store(true)
	return c
}

func TestPublish_ReturnsBeforeAck(t *testing.T) {
	token := newStubToken()
	client := connectedStub(token)
	logger := &mockLogger{}
	client.SetLogger(logger)

	start := time.Now()
	if err := client.Publish("iot/device/d1/response", []byte(`{}`), QoSAtLeastOnce, false); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("Publish() took %v waiting for an ack", elapsed)
	}

	token.complete(errors.New("connection lost"))

	deadline := time.Now().Add(2 * time.Second)
	for {
		logger.mu.Lock()
		n := len(logger.errors)
		logger.mu.Unlock()
		if n == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("logged %d ack failures, want 1", n)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestPublish_ImmediateRefusal(t *testing.T) {
	token := newStubToken()
	token.complete(errors.New("not connected"))
	client := connectedStub(token)

	err := client.Publish("iot/device/d1/response", []byte(`{}`), QoSAtLeastOnce, false)
	if !errors.Is(err, ErrPublishFailed) {
		t.Errorf("Publish() error = %v, want ErrPublishFailed", err)
	}
}

func TestSubscribeValidation(t *testing.T) {
	client := &Client{}
	handler := func(string, []byte) error { return nil }

	if err := client.Subscribe("", 1, handler); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("empty topic error = %v", err)
	}
	if err := client.Subscribe("a/#", 5, handler); !errors.Is(err, ErrInvalidQoS) {
		t.Errorf("invalid qos error = %v", err)
	}
	if err := client.Subscribe("a/#", 1, nil); !errors.Is(err, ErrSubscribeFailed) {
		t.Errorf("nil handler error = %v", err)
	}
	if err := client.Subscribe("a/#", 1, handler); !errors.Is(err, ErrNotConnected) {
		t.Errorf("disconnected error = %v", err)
	}
	if err := client.SubscribeAll([]string{"x/+", "y/+"}, 1, handler); !errors.Is(err, ErrNotConnected) {
		t.Errorf("SubscribeAll error = %v", err)
	}
	if client.SubscriptionCount() != 0 {
		t.Errorf("SubscriptionCount() = %d, want 0", client.SubscriptionCount())
	}
}

func TestCloseNil(t *testing.T) {
	client := &Client{}
	if err := client.Close(); err != nil {
		t.Errorf("Close() on nil client error = %v, want nil", err)
	}
}

func TestIsConnected_InitialState(t *testing.T) {
	client := &Client{}
	if client.IsConnected() {
		t.Error("IsConnected() should be false for uninitialised client")
	}
}

// =============================================================================
// Handler Wrapping Tests
// =============================================================================

func TestWrapHandler_RecoversPanic(t *testing.T) {
	logger := &mockLogger{}
	client := &Client{}
	client.SetLogger(logger)

	wrapped := client.wrapHandler(func(string, []byte) error {
		panic("boom")
	})
	wrapped(nil, fakeMessage{topic: "device/d1/data"})

	if len(logger.errors) != 1 {
		t.Fatalf("errors logged = %d, want 1", len(logger.errors))
	}
}

func TestWrapHandler_LogsReturnedError(t *testing.T) {
	logger := &mockLogger{}
	client := &Client{}
	client.SetLogger(logger)

	var gotTopic string
	var gotPayload string
	wrapped := client.wrapHandler(func(topic string, payload []byte) error {
		gotTopic, gotPayload = topic, string(payload)
		return errors.New("handler error")
	})
	wrapped(nil, fakeMessage{topic: "device/d1/status", payload: []byte(`{"status":1}`)})

	if gotTopic != "device/d1/status" || gotPayload != `{"status":1}` {
		t.Errorf("handler got %q %q", gotTopic, gotPayload)
	}
	if len(logger.warns) != 1 {
		t.Errorf("warns logged = %d, want 1", len(logger.warns))
	}
}

func TestWrapHandler_NoLogger(t *testing.T) {
	client := &Client{}
	wrapped := client.wrapHandler(func(string, []byte) error { panic("no logger") })

	// Must not propagate the panic.
	wrapped(nil, fakeMessage{topic: "x"})
}

// =============================================================================
// Topic Builder Tests
// =============================================================================

func TestTopicBuilders(t *testing.T) {
	topics := Topics{}

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"DeviceData", topics.DeviceData("d1"), "device/d1/data"},
		{"DeviceStatus", topics.DeviceStatus("d1"), "device/d1/status"},
		{"DeviceControl", topics.DeviceControl("d1"), "device/d1/control"},
		{"HubDeviceStatus", topics.HubDeviceStatus("d1"), "iot/device/d1/status"},
		{"HubDeviceData", topics.HubDeviceData("d1"), "iot/device/d1/data"},
		{"HubDeviceAlarm", topics.HubDeviceAlarm("d1"), "iot/device/d1/alarm"},
		{"HubDeviceControl", topics.HubDeviceControl("d1"), "iot/device/d1/control"},
		{"HubDeviceResponse", topics.HubDeviceResponse("d1"), "iot/device/d1/response"},
		{"SceneTrigger", topics.SceneTrigger("s1"), "iot/scene/s1/trigger"},
		{"SceneResult", topics.SceneResult("s1"), "iot/scene/s1/result"},
		{"Discovery", topics.Discovery("sensor", "d1"), "homeassistant/sensor/d1/config"},
		{"SystemStatus", topics.SystemStatus(), "iot/system/status"},
		{"AllDeviceData", topics.AllDeviceData(), "device/+/data"},
		{"AllDeviceStatus", topics.AllDeviceStatus(), "device/+/status"},
		{"AllHubControl", topics.AllHubControl(), "iot/device/+/control"},
		{"AllSceneTriggers", topics.AllSceneTriggers(), "iot/scene/+/trigger"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("%s = %q, want %q", tt.name, tt.got, tt.want)
			}
		})
	}
}

func TestTopicsInbound(t *testing.T) {
	inbound := Topics{}.Inbound()
	if len(inbound) != 4 {
		t.Fatalf("Inbound() len = %d, want 4", len(inbound))
	}
	seen := make(map[string]bool)
	for _, topic := range inbound {
		if seen[topic] {
			t.Errorf("duplicate inbound topic %q", topic)
		}
		seen[topic] = true
	}
}
