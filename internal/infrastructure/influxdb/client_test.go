package influxdb_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nerrad567/iot-device-core/internal/infrastructure/config"
	"github.com/nerrad567/iot-device-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/iot-device-core/internal/telemetry"
)

// testConfig returns a configuration for a local dev InfluxDB.
func testConfig() config.InfluxDBConfig {
	return config.InfluxDBConfig{
		Enabled:     true,
		URL:         "http://127.0.0.1:8086",
		Token:       "iotcore-dev-token",
		Org:         "iot",
		Bucket:      "device_data",
		Measurement: "device_data",
	}
}

// connectOrSkip connects to the dev server or skips when it is not running.
func connectOrSkip(t *testing.T) *influxdb.Client {
	t.Helper()
	client, err := influxdb.Connect(testConfig())
	if err != nil {
		t.Skip("InfluxDB not available, skipping integration test")
	}
	t.Cleanup(func() { client.Close() })
	return client
}

// =============================================================================
// Connection Tests
// =============================================================================

func TestConnect_Disabled(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = false

	_, err := influxdb.Connect(cfg)
	if !errors.Is(err, influxdb.ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestConnect_InvalidURL(t *testing.T) {
	cfg := testConfig()
	cfg.URL = "http://127.0.0.1:59999"

	_, err := influxdb.Connect(cfg)
	if !errors.Is(err, influxdb.ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestConnect(t *testing.T) {
	client := connectOrSkip(t)

	if !client.IsConnected() {
		t.Error("IsConnected() = false after Connect()")
	}
	if client.Measurement() != "device_data" {
		t.Errorf("Measurement() = %q", client.Measurement())
	}
}

func TestClose_Nil(t *testing.T) {
	var client *influxdb.Client
	if err := client.Close(); err != nil {
		t.Errorf("Close() on nil client error = %v", err)
	}
}

// =============================================================================
// Health Check Tests
// =============================================================================

func TestHealthCheck(t *testing.T) {
	client := connectOrSkip(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.HealthCheck(ctx); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}

	cancelled, cancelNow := context.WithCancel(context.Background())
	cancelNow()
	if err := client.HealthCheck(cancelled); err == nil {
		t.Error("HealthCheck() should return error for cancelled context")
	}
}

// =============================================================================
// Write and Query Tests
// =============================================================================

func TestWriteThenQuery(t *testing.T) {
	client := connectOrSkip(t)
	ctx := context.Background()

	deviceID := "it-" + time.Now().Format("150405.000")
	point := telemetry.NewPoint(deviceID, telemetry.Fields{
		"temp": telemetry.Number(23.5),
		"on":   telemetry.Bool(true),
		"mode": telemetry.String("eco"),
	})

	if err := client.WritePoint(ctx, point); err != nil {
		t.Fatalf("WritePoint() error = %v", err)
	}

	latest, err := client.QueryLatest(ctx, deviceID)
	if err != nil {
		t.Fatalf("QueryLatest() error = %v", err)
	}

	got := make(map[string]telemetry.Value)
	for _, s := range latest {
		got[s.Field] = s.Value
	}
	if got["temp"] != telemetry.Number(23.5) || got["on"] != telemetry.Bool(true) || got["mode"] != telemetry.String("eco") {
		t.Errorf("QueryLatest() = %v", latest)
	}

	samples, err := client.QueryRange(ctx, deviceID, point.Time.Add(-time.Minute), point.Time.Add(time.Minute))
	if err != nil {
		t.Fatalf("QueryRange() error = %v", err)
	}
	if len(samples) != 3 {
		t.Errorf("QueryRange() returned %d samples, want 3", len(samples))
	}

	mean, err := client.QueryAggregate(ctx, deviceID, "temp", point.Time.Add(-time.Minute), point.Time.Add(time.Minute), time.Minute)
	if err != nil {
		t.Fatalf("QueryAggregate() error = %v", err)
	}
	if len(mean) == 0 {
		t.Error("QueryAggregate() returned no windows")
	}
}
