package api

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nerrad567/iot-device-core/internal/device"
	"github.com/nerrad567/iot-device-core/internal/infrastructure/config"
	"github.com/nerrad567/iot-device-core/internal/infrastructure/logging"
	"github.com/nerrad567/iot-device-core/internal/ingest"
	"github.com/nerrad567/iot-device-core/internal/scene"
	"github.com/nerrad567/iot-device-core/internal/telemetry"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// DeviceReader is the read side of the device directory.
type DeviceReader interface {
	Get(ctx context.Context, id string) (*device.Device, error)
	List(ctx context.Context) ([]device.Device, error)
	ListOnline(ctx context.Context) ([]device.Device, error)
	Status(ctx context.Context, id string) (device.StatusEntry, error)
}

// TelemetryReader reads recent telemetry.
type TelemetryReader interface {
	QueryLatest(ctx context.Context, deviceID string) ([]telemetry.Sample, error)
}

// SceneRunner runs scenes.
type SceneRunner interface {
	Execute(ctx context.Context, sceneID, userID string) (scene.Result, error)
}

// SceneHistory lists past scene executions.
type SceneHistory interface {
	ListExecutions(ctx context.Context, sceneID string, limit int) ([]scene.Execution, error)
}

// IngestStats exposes pipeline counters.
type IngestStats interface {
	Snapshot() ingest.Stats
}

// ConnectionState reports whether a client is connected.
type ConnectionState interface {
	IsConnected() bool
}

// HealthCheck is one named dependency probe for /api/v1/health.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Deps holds the dependencies required by the API server. Only Logger and
// Devices are required.
type Deps struct {
	Config    config.APIConfig
	Logger    *logging.Logger
	Devices   DeviceReader
	Telemetry TelemetryReader
	Scenes    SceneRunner
	History   SceneHistory
	Ingest    IngestStats
	MQTT      ConnectionState
	DB        *sql.DB
	Checks    []HealthCheck
	Gatherer  prometheus.Gatherer
	Version   string
}

// Server is the ops HTTP server: health, metrics and read-only device views.
type Server struct {
	cfg       config.APIConfig
	logger    *logging.Logger
	devices   DeviceReader
	telemetry TelemetryReader
	scenes    SceneRunner
	history   SceneHistory
	ingest    IngestStats
	mqtt      ConnectionState
	db        *sql.DB
	checks    []HealthCheck
	gatherer  prometheus.Gatherer
	version   string
	startTime time.Time
	server    *http.Server
	listener  net.Listener
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Devices == nil {
		return nil, fmt.Errorf("device directory is required")
	}
	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	return &Server{
		cfg:       deps.Config,
		logger:    deps.Logger,
		devices:   deps.Devices,
		telemetry: deps.Telemetry,
		scenes:    deps.Scenes,
		history:   deps.History,
		ingest:    deps.Ingest,
		mqtt:      deps.MQTT,
		db:        deps.DB,
		checks:    deps.Checks,
		gatherer:  gatherer,
		version:   deps.Version,
		startTime: time.Now(),
	}, nil
}

// Start binds the listener and serves in a background goroutine. Binding
// happens synchronously so a port conflict is reported here.
func (s *Server) Start(_ context.Context) error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.server.Addr, err)
	}
	s.listener = ln

	s.logger.Info("API server starting", "address", ln.Addr().String())
	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()
	return nil
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}
	return nil
}
