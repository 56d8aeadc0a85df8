package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nerrad567/iot-device-core/internal/device"
	"github.com/nerrad567/iot-device-core/internal/infrastructure/config"
	"github.com/nerrad567/iot-device-core/internal/infrastructure/database"
	"github.com/nerrad567/iot-device-core/internal/infrastructure/logging"
	"github.com/nerrad567/iot-device-core/internal/ingest"
	"github.com/nerrad567/iot-device-core/internal/scene"
	"github.com/nerrad567/iot-device-core/internal/telemetry"
	_ "github.com/nerrad567/iot-device-core/migrations"
)

type fakeTelemetry struct{}

func (fakeTelemetry) QueryLatest(_ context.Context, deviceID string) ([]telemetry.Sample, error) {
	return []telemetry.Sample{{Time: time.Unix(1700000000, 0).UTC(), Field: "temperature", Value: telemetry.Number(21)}}, nil
}

type fakeScenes struct{}

func (fakeScenes) Execute(_ context.Context, sceneID, _ string) (scene.Result, error) {
	switch sceneID {
	case "missing":
		return scene.Result{}, scene.ErrSceneNotFound
	case "off":
		return scene.Result{}, scene.ErrSceneDisabled
	}
	return scene.Result{Success: true, Message: "1/1 actions succeeded", ExecutionID: "e1"}, nil
}

type fakeStats struct{}

func (fakeStats) Snapshot() ingest.Stats { return ingest.Stats{Received: 7, Dropped: 1} }

type fakeConn bool

func (c fakeConn) IsConnected() bool { return bool(c) }

// testServer builds a server over a real in-memory directory.
func testServer(t *testing.T, checks ...HealthCheck) (*Server, *device.Directory) {
	t.Helper()

	db, err := database.Open(database.Config{Path: database.MemoryPath})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	dir := device.NewDirectory(device.NewSQLiteRepository(db.DB), nil, time.Hour)
	for _, d := range []*device.Device{
		{ID: "lamp-1", Name: "Lamp", Type: device.TypeLight, Activated: true},
		{ID: "temp-1", Name: "Temp", Type: device.TypeSensor, Activated: true},
	} {
		if err := dir.Create(context.Background(), d); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	srv, err := New(Deps{
		Config:    config.APIConfig{Host: "127.0.0.1", Port: 0},
		Logger:    logging.Discard(),
		Devices:   dir,
		Telemetry: fakeTelemetry{},
		Scenes:    fakeScenes{},
		Ingest:    fakeStats{},
		MQTT:      fakeConn(true),
		DB:        db.DB,
		Checks:    checks,
		Gatherer:  prometheus.NewRegistry(),
		Version:   "test",
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return srv, dir
}

func doRequest(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	srv.buildRouter().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("response is not JSON: %v (%s)", err, rec.Body.String())
	}
	return body
}

func TestNew_RequiresDeps(t *testing.T) {
	if _, err := New(Deps{}); err == nil {
		t.Error("New() without logger succeeded")
	}
	if _, err := New(Deps{Logger: logging.Discard()}); err == nil {
		t.Error("New() without devices succeeded")
	}
}

func TestHealth(t *testing.T) {
	srv, _ := testServer(t,
		HealthCheck{Name: "database", Check: func(context.Context) error { return nil }},
	)
	rec := doRequest(t, srv, http.MethodGet, "/api/v1/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["status"] != "ok" || body["version"] != "test" {
		t.Errorf("body = %v", body)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID header")
	}
}

func TestHealth_Degraded(t *testing.T) {
	srv, _ := testServer(t,
		HealthCheck{Name: "database", Check: func(context.Context) error { return nil }},
		HealthCheck{Name: "redis", Check: func(context.Context) error { return errors.New("connection refused") }},
	)
	rec := doRequest(t, srv, http.MethodGet, "/api/v1/health", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	body := decodeBody(t, rec)
	checks, _ := body["checks"].(map[string]any)
	if body["status"] != "degraded" || checks["database"] != "ok" || checks["redis"] != "connection refused" {
		t.Errorf("body = %v", body)
	}
}

func TestMetricsJSON(t *testing.T) {
	srv, dir := testServer(t)
	if _, err := dir.UpdateStatus(context.Background(), "lamp-1", device.StatusOnline); err != nil {
		t.Fatal(err)
	}

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var m SystemMetrics
	if err := json.Unmarshal(rec.Body.Bytes(), &m); err != nil {
		t.Fatal(err)
	}
	if m.Devices.Total != 2 || m.Devices.Online != 1 || m.Devices.ByType["light"] != 1 {
		t.Errorf("devices = %+v", m.Devices)
	}
	if m.Ingest == nil || m.Ingest.Received != 7 {
		t.Errorf("ingest = %+v", m.Ingest)
	}
	if !m.MQTT.Connected {
		t.Error("mqtt not reported connected")
	}
}

func TestPrometheusEndpoint(t *testing.T) {
	srv, _ := testServer(t)
	reg := prometheus.NewRegistry()
	if _, err := ingest.NewMetrics(reg); err != nil {
		t.Fatal(err)
	}
	srv.gatherer = reg

	rec := doRequest(t, srv, http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "iotcore_ingest_queue_depth") {
		t.Errorf("exposition missing ingest gauge:\n%s", rec.Body.String())
	}
}

func TestDevices(t *testing.T) {
	srv, dir := testServer(t)
	if _, err := dir.UpdateStatus(context.Background(), "temp-1", device.StatusOnline); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		path   string
		status int
		check  func(map[string]any) bool
	}{
		{"/api/v1/devices", 200, func(b map[string]any) bool { return b["count"] == 2.0 }},
		{"/api/v1/devices?online=true", 200, func(b map[string]any) bool { return b["count"] == 1.0 }},
		{"/api/v1/devices/temp-1", 200, func(b map[string]any) bool { return b["id"] == "temp-1" && b["status"] == 1.0 }},
		{"/api/v1/devices/temp-1/status", 200, func(b map[string]any) bool { return b["status"] == "online" }},
		{"/api/v1/devices/lamp-1/status", 200, func(b map[string]any) bool { return b["status"] == "offline" }},
		{"/api/v1/devices/temp-1/telemetry", 200, func(b map[string]any) bool { return b["count"] == 1.0 }},
		{"/api/v1/devices/ghost", 404, nil},
		{"/api/v1/devices/ghost/status", 404, nil},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := doRequest(t, srv, http.MethodGet, tt.path, "")
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.status, rec.Body.String())
			}
			if tt.check != nil && !tt.check(decodeBody(t, rec)) {
				t.Errorf("unexpected body: %s", rec.Body.String())
			}
		})
	}
}

func TestActivateScene(t *testing.T) {
	srv, _ := testServer(t)

	tests := []struct {
		id     string
		body   string
		status int
	}{
		{"evening", `{"user_id":"u1"}`, http.StatusOK},
		{"evening", "", http.StatusOK},
		{"evening", "{bad", http.StatusBadRequest},
		{"missing", "", http.StatusNotFound},
		{"off", "", http.StatusConflict},
	}
	for _, tt := range tests {
		rec := doRequest(t, srv, http.MethodPost, "/api/v1/scenes/"+tt.id+"/activate", tt.body)
		if rec.Code != tt.status {
			t.Errorf("activate %s (%q) status = %d, want %d", tt.id, tt.body, rec.Code, tt.status)
		}
	}

	// No history source configured.
	rec := doRequest(t, srv, http.MethodGet, "/api/v1/scenes/evening/executions", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("executions status = %d, want 503", rec.Code)
	}
}

func TestStartClose(t *testing.T) {
	srv, _ := testServer(t)
	if err := srv.HealthCheck(context.Background()); err == nil {
		t.Error("HealthCheck() before Start succeeded")
	}
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer srv.Close()

	if srv.Addr() == "" {
		t.Fatal("Addr() empty after Start")
	}
	resp, err := http.Get("http://" + srv.Addr() + "/api/v1/health")
	if err != nil {
		t.Fatalf("GET health error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
	if err := srv.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	srv, _ := testServer(t)
	h := srv.requestIDMiddleware(srv.recoveryMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})))

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("X-Request-ID", "req-42")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if rec.Header().Get("X-Request-ID") != "req-42" {
		t.Errorf("X-Request-ID = %q, want caller's ID", rec.Header().Get("X-Request-ID"))
	}
	if body := decodeBody(t, rec); body["code"] != ErrCodeInternal {
		t.Errorf("body = %v", body)
	}
}

func TestWriteError_CodeFromStatus(t *testing.T) {
	tests := []struct {
		status int
		code   string
	}{
		{http.StatusBadRequest, ErrCodeBadRequest},
		{http.StatusNotFound, ErrCodeNotFound},
		{http.StatusConflict, ErrCodeConflict},
		{http.StatusServiceUnavailable, ErrCodeUnavailable},
		{http.StatusTeapot, ErrCodeInternal},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		writeError(rec, tt.status, "x")
		var e Error
		if err := json.Unmarshal(rec.Body.Bytes(), &e); err != nil {
			t.Fatal(err)
		}
		if rec.Code != tt.status || e.Code != tt.code {
			t.Errorf("writeError(%d) = %d %q, want %q", tt.status, rec.Code, e.Code, tt.code)
		}
	}
}
