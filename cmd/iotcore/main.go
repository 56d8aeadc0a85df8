// IoT Device Core
//
// This is the main entry point for the device core service. It subscribes to
// the device and hub topics on the MQTT broker, stores telemetry in InfluxDB,
// keeps device status in the SQLite directory and Redis cache, and routes hub
// control commands and scene triggers back out to devices.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	_ "github.com/nerrad567/iot-device-core/migrations"

	"github.com/nerrad567/iot-device-core/internal/api"
	"github.com/nerrad567/iot-device-core/internal/bridges/homeassistant"
	"github.com/nerrad567/iot-device-core/internal/control"
	"github.com/nerrad567/iot-device-core/internal/device"
	"github.com/nerrad567/iot-device-core/internal/infrastructure/config"
	"github.com/nerrad567/iot-device-core/internal/infrastructure/database"
	"github.com/nerrad567/iot-device-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/iot-device-core/internal/infrastructure/kafka"
	"github.com/nerrad567/iot-device-core/internal/infrastructure/logging"
	"github.com/nerrad567/iot-device-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/iot-device-core/internal/infrastructure/rediscache"
	"github.com/nerrad567/iot-device-core/internal/ingest"
	"github.com/nerrad567/iot-device-core/internal/scene"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, prometheus.DefaultRegisterer); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Metrics are registered with reg so tests can use a private registry.
//
// Returns nil on clean shutdown, or an error describing the failure.
func run(ctx context.Context, reg prometheus.Registerer) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting IoT device core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	db, err := database.Open(database.ConfigFrom(cfg.Database))
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Status cache (optional, falls back to in-process)
	var cache device.StatusCache
	redisCache, err := rediscache.Connect(cfg.Redis)
	switch {
	case errors.Is(err, rediscache.ErrDisabled):
		log.Info("Redis disabled, using in-memory status cache")
	case err != nil:
		return fmt.Errorf("connecting to Redis: %w", err)
	default:
		defer func() {
			log.Info("closing Redis connection")
			if closeErr := redisCache.Close(); closeErr != nil {
				log.Error("error closing Redis", "error", closeErr)
			}
		}()
		log.Info("Redis connected", "addr", cfg.Redis.Addr, "ttl", cfg.GetStatusTTL())
		cache = redisCache
	}

	directory := device.NewDirectory(device.NewSQLiteRepository(db.DB), cache, cfg.GetStatusTTL())
	directory.SetLogger(log.Component("directory"))

	// Telemetry store (optional)
	influxClient, err := influxdb.Connect(cfg.InfluxDB)
	switch {
	case errors.Is(err, influxdb.ErrDisabled):
		log.Info("InfluxDB disabled")
	case err != nil:
		return fmt.Errorf("connecting to InfluxDB: %w", err)
	default:
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	}

	// Telemetry mirror (optional)
	producer, err := kafka.New(cfg.Kafka)
	switch {
	case errors.Is(err, kafka.ErrDisabled):
		log.Info("Kafka mirror disabled")
	case err != nil:
		return fmt.Errorf("creating Kafka producer: %w", err)
	default:
		producer.SetLogger(log.Component("kafka"))
		defer func() {
			log.Info("closing Kafka producer")
			if closeErr := producer.Close(); closeErr != nil {
				log.Error("error closing Kafka producer", "error", closeErr)
			}
		}()
		log.Info("Kafka mirror enabled", "brokers", cfg.Kafka.Brokers, "topic", producer.Topic())
	}

	mqttClient, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	mqttClient.SetLogger(log.Component("mqtt"))
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})

	publisher := homeassistant.NewPublisher(mqttClient, log.Component("bridge"))
	controller := control.NewController(directory, mqttClient, log.Component("control"))
	sceneRepo := scene.NewSQLiteRepository(db.DB)
	engine := scene.NewEngine(sceneRepo, controller, log.Component("scene"))

	metrics, err := ingest.NewMetrics(reg)
	if err != nil {
		return fmt.Errorf("registering ingest metrics: %w", err)
	}

	handlers, err := buildHandlers(cfg, directory, influxClient, producer, publisher, controller, engine, log)
	if err != nil {
		return err
	}

	router := ingest.NewRouter(handlers, log.Component("router"), metrics)
	dispatcher := ingest.NewDispatcher(router, cfg.Ingest.QueueSize, cfg.Ingest.Workers, log.Component("ingest"), metrics)
	defer func() {
		log.Info("draining ingest queue")
		dispatcher.Stop()
	}()

	topics := mqtt.Topics{}.Inbound()
	err = mqttClient.SubscribeAll(topics, mqtt.QoSAtLeastOnce, func(topic string, payload []byte) error {
		return dispatcher.Submit(ctx, ingest.Message{
			Topic:      topic,
			Payload:    payload,
			ReceivedAt: time.Now(),
		})
	})
	if err != nil {
		return fmt.Errorf("subscribing to inbound topics: %w", err)
	}
	log.Info("ingest pipeline started",
		"topics", topics,
		"workers", dispatcher.Workers(),
		"queue_size", cfg.Ingest.QueueSize,
	)

	if cfg.Bridge.Discovery {
		n, announceErr := homeassistant.Announce(ctx, directory, publisher, log.Component("discovery"))
		if announceErr != nil {
			log.Warn("discovery announce incomplete", "announced", n, "error", announceErr)
		} else {
			log.Info("discovery announced", "devices", n)
		}
	}

	if err := healthCheck(ctx, db, mqttClient, influxClient, redisCache); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	if cfg.API.Enabled {
		srv, srvErr := startAPI(ctx, cfg, log, directory, influxClient, engine, sceneRepo, metrics, mqttClient, db, redisCache)
		if srvErr != nil {
			return srvErr
		}
		defer func() {
			log.Info("stopping API server")
			if closeErr := srv.Close(); closeErr != nil {
				log.Error("error stopping API server", "error", closeErr)
			}
		}()
	}

	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred functions run in reverse order: ingest drains before the
	// transport and stores close.
	log.Info("IoT device core stopped")
	return nil
}

// buildHandlers wires one handler per topic kind. Optional stores are passed
// as nil interfaces when switched off so the handlers skip them.
func buildHandlers(
	cfg *config.Config,
	directory *device.Directory,
	influxClient *influxdb.Client,
	producer *kafka.Producer,
	publisher *homeassistant.Publisher,
	controller *control.Controller,
	engine *scene.Engine,
	log *logging.Logger,
) (ingest.Handlers, error) {
	var (
		store    ingest.TelemetryStore
		telemOps []ingest.TelemetryOption
	)
	if influxClient != nil {
		store = influxClient
	}
	if producer != nil {
		telemOps = append(telemOps, ingest.WithMirror(producer))
	}
	if cfg.Bridge.ForwardTelemetry {
		telemOps = append(telemOps, ingest.WithDataForwarder(publisher))
	}

	var statusPub ingest.StatusPublisher
	if cfg.Bridge.PublishStatus {
		statusPub = publisher
	}

	commands, err := homeassistant.NewCommandHandler(controller, publisher, log.Component("commands"), cfg.Bridge.ExtraVerbs...)
	if err != nil {
		return ingest.Handlers{}, fmt.Errorf("creating command handler: %w", err)
	}

	return ingest.Handlers{
		Telemetry: ingest.NewTelemetryHandler(store, log.Component("telemetry"), telemOps...),
		Status:    ingest.NewStatusHandler(directory, statusPub, log.Component("status")),
		Control:   commands,
		Scene:     homeassistant.NewSceneHandler(engine, publisher, log.Component("scenes")),
	}, nil
}

// startAPI builds and starts the operations HTTP server.
func startAPI(
	ctx context.Context,
	cfg *config.Config,
	log *logging.Logger,
	directory *device.Directory,
	influxClient *influxdb.Client,
	engine *scene.Engine,
	sceneRepo *scene.SQLiteRepository,
	metrics *ingest.Metrics,
	mqttClient *mqtt.Client,
	db *database.DB,
	redisCache *rediscache.StatusCache,
) (*api.Server, error) {
	checks := []api.HealthCheck{
		{Name: "database", Check: db.HealthCheck},
		{Name: "mqtt", Check: mqttClient.HealthCheck},
	}

	deps := api.Deps{
		Config:   cfg.API,
		Logger:   log.Component("api"),
		Devices:  directory,
		Scenes:   engine,
		History:  sceneRepo,
		Ingest:   metrics,
		MQTT:     mqttClient,
		DB:       db.DB,
		Gatherer: prometheus.DefaultGatherer,
		Version:  version,
	}
	if influxClient != nil {
		deps.Telemetry = influxClient
		checks = append(checks, api.HealthCheck{Name: "influxdb", Check: influxClient.HealthCheck})
	}
	if redisCache != nil {
		checks = append(checks, api.HealthCheck{Name: "redis", Check: redisCache.HealthCheck})
	}
	deps.Checks = checks

	srv, err := api.New(deps)
	if err != nil {
		return nil, fmt.Errorf("creating API server: %w", err)
	}
	if err := srv.Start(ctx); err != nil {
		return nil, fmt.Errorf("starting API server: %w", err)
	}
	log.Info("API server started", "addr", srv.Addr())
	return srv, nil
}

// getConfigPath returns the config path from IOTCORE_CONFIG or the default.
func getConfigPath() string {
	if path := os.Getenv("IOTCORE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies every connected dependency before the core reports
// ready.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client, redisCache *rediscache.StatusCache) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if err := mqttClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	if redisCache != nil {
		if err := redisCache.HealthCheck(ctx); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}

	return nil
}
