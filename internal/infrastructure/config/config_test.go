package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_ValidConfig(t *testing.T) {
	content := `
service:
  id: "test-core"
database:
  path: "/tmp/test.db"
  wal_mode: true
  busy_timeout: 5
mqtt:
  broker:
    host: "localhost"
    port: 1883
    client_id: "test-client"
  qos: 1
redis:
  enabled: true
  addr: "redis:6379"
kafka:
  brokers: ["k1:9092", "k2:9092"]
ingest:
  queue_size: 64
  workers: 2
`
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Service.ID != "test-core" {
		t.Errorf("Service.ID = %q, want %q", cfg.Service.ID, "test-core")
	}
	if cfg.Database.Path != "/tmp/test.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/tmp/test.db")
	}
	if cfg.Redis.Addr != "redis:6379" {
		t.Errorf("Redis.Addr = %q, want %q", cfg.Redis.Addr, "redis:6379")
	}
	if len(cfg.Kafka.Brokers) != 2 {
		t.Errorf("len(Kafka.Brokers) = %d, want 2", len(cfg.Kafka.Brokers))
	}
	if cfg.Ingest.Workers != 2 {
		t.Errorf("Ingest.Workers = %d, want 2", cfg.Ingest.Workers)
	}
	// Unset keys keep their defaults.
	if cfg.Redis.StatusTTL != 3600 {
		t.Errorf("Redis.StatusTTL = %d, want 3600", cfg.Redis.StatusTTL)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("invalid: [yaml: content"), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	content := `
service:
  id: ""
ingest:
  workers: 0
`
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Error("Load() expected validation error for empty service.id, got nil")
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config { return defaultConfig() }

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"missing service ID", func(c *Config) { c.Service.ID = "" }, true},
		{"missing database path", func(c *Config) { c.Database.Path = "" }, true},
		{"invalid QoS", func(c *Config) { c.MQTT.QoS = 3 }, true},
		{"missing client id", func(c *Config) { c.MQTT.Broker.ClientID = "" }, true},
		{"influx enabled without bucket", func(c *Config) {
			c.InfluxDB.Enabled = true
			c.InfluxDB.Bucket = ""
		}, true},
		{"redis enabled without addr", func(c *Config) {
			c.Redis.Enabled = true
			c.Redis.Addr = ""
		}, true},
		{"zero status ttl", func(c *Config) { c.Redis.StatusTTL = 0 }, true},
		{"status ttl above one hour", func(c *Config) { c.Redis.StatusTTL = 7200 }, true},
		{"status ttl exactly one hour", func(c *Config) { c.Redis.StatusTTL = MaxStatusTTL }, false},
		{"kafka enabled without topic", func(c *Config) {
			c.Kafka.Enabled = true
			c.Kafka.Topic = ""
		}, true},
		{"zero queue", func(c *Config) { c.Ingest.QueueSize = 0 }, true},
		{"zero workers", func(c *Config) { c.Ingest.Workers = 0 }, true},
		{"invalid port high", func(c *Config) { c.API.Port = 70000 }, true},
		{"api disabled ignores port", func(c *Config) {
			c.API.Enabled = false
			c.API.Port = 0
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_GetTimeouts(t *testing.T) {
	cfg := &Config{
		Redis: RedisConfig{StatusTTL: 3600},
		API: APIConfig{
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 45,
				Idle:  60,
			},
		},
	}

	if got := cfg.GetStatusTTL(); got != time.Hour {
		t.Errorf("GetStatusTTL() = %v, want 1h", got)
	}
	if got := cfg.GetReadTimeout().Seconds(); got != 30 {
		t.Errorf("GetReadTimeout() = %v, want 30", got)
	}
	if got := cfg.GetWriteTimeout().Seconds(); got != 45 {
		t.Errorf("GetWriteTimeout() = %v, want 45", got)
	}
	if got := cfg.GetIdleTimeout().Seconds(); got != 60 {
		t.Errorf("GetIdleTimeout() = %v, want 60", got)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := defaultConfig()

	t.Setenv("IOTCORE_DATABASE_PATH", "/custom/path.db")
	t.Setenv("IOTCORE_MQTT_HOST", "mqtt.example.com")
	t.Setenv("IOTCORE_MQTT_PORT", "8883")
	t.Setenv("IOTCORE_MQTT_USERNAME", "testuser")
	t.Setenv("IOTCORE_MQTT_PASSWORD", "testpass")
	t.Setenv("IOTCORE_INFLUXDB_TOKEN", "secret-token")
	t.Setenv("IOTCORE_REDIS_ADDR", "cache:6379")
	t.Setenv("IOTCORE_KAFKA_BROKERS", "a:9092,b:9092")
	t.Setenv("IOTCORE_LOG_LEVEL", "debug")

	applyEnvOverrides(cfg)

	if cfg.Database.Path != "/custom/path.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/custom/path.db")
	}
	if cfg.MQTT.Broker.Host != "mqtt.example.com" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "mqtt.example.com")
	}
	if cfg.MQTT.Broker.Port != 8883 {
		t.Errorf("MQTT.Broker.Port = %d, want 8883", cfg.MQTT.Broker.Port)
	}
	if cfg.MQTT.Auth.Username != "testuser" || cfg.MQTT.Auth.Password != "testpass" {
		t.Errorf("MQTT.Auth = %+v, want testuser/testpass", cfg.MQTT.Auth)
	}
	if cfg.InfluxDB.Token != "secret-token" {
		t.Errorf("InfluxDB.Token = %q, want %q", cfg.InfluxDB.Token, "secret-token")
	}
	if cfg.Redis.Addr != "cache:6379" {
		t.Errorf("Redis.Addr = %q, want %q", cfg.Redis.Addr, "cache:6379")
	}
	if len(cfg.Kafka.Brokers) != 2 || cfg.Kafka.Brokers[1] != "b:9092" {
		t.Errorf("Kafka.Brokers = %v, want [a:9092 b:9092]", cfg.Kafka.Brokers)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
}

func TestApplyEnvOverrides_BadPortIgnored(t *testing.T) {
	cfg := defaultConfig()
	t.Setenv("IOTCORE_MQTT_PORT", "not-a-port")

	applyEnvOverrides(cfg)

	if cfg.MQTT.Broker.Port != 1883 {
		t.Errorf("MQTT.Broker.Port = %d, want 1883", cfg.MQTT.Broker.Port)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Service.ID == "" {
		t.Error("defaultConfig should have non-empty Service.ID")
	}
	if cfg.MQTT.Broker.Port != 1883 {
		t.Errorf("defaultConfig MQTT.Broker.Port = %d, want 1883", cfg.MQTT.Broker.Port)
	}
	if cfg.MQTT.QoS != 1 {
		t.Errorf("defaultConfig MQTT.QoS = %d, want 1", cfg.MQTT.QoS)
	}
	if cfg.GetStatusTTL() != time.Hour {
		t.Errorf("defaultConfig status TTL = %v, want 1h", cfg.GetStatusTTL())
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaultConfig should validate: %v", err)
	}
}
