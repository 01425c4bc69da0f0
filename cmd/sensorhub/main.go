// SensorHub - IoT telemetry and relay control service
//
// SensorHub ingests sensor readings from ESP devices over MQTT, keeps a
// per-sensor daily alert counter, logs and publishes operator relay
// commands, and serves the dashboard's HTTP and websocket API.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/nerrad567/sensorhub/migrations"

	"github.com/nerrad567/sensorhub/internal/api"
	"github.com/nerrad567/sensorhub/internal/device"
	"github.com/nerrad567/sensorhub/internal/infrastructure/config"
	"github.com/nerrad567/sensorhub/internal/infrastructure/database"
	"github.com/nerrad567/sensorhub/internal/infrastructure/influxdb"
	"github.com/nerrad567/sensorhub/internal/infrastructure/logging"
	"github.com/nerrad567/sensorhub/internal/infrastructure/metrics"
	"github.com/nerrad567/sensorhub/internal/infrastructure/mqtt"
	"github.com/nerrad567/sensorhub/internal/query"
	"github.com/nerrad567/sensorhub/internal/sensor"
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

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run wires the service and blocks until ctx is cancelled.
// Deferred closes run in reverse order of startup.
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting SensorHub",
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
	loc := cfg.Site.Location()

	db, err := database.Open(ctx, database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
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

	// Without sensor types no message can be stored, so this is fatal.
	registry, err := sensor.LoadRegistry(ctx, sensor.NewSQLiteLoader(db))
	if err != nil {
		return fmt.Errorf("loading sensor registry: %w", err)
	}
	if _, ok := registry.Resolve(cfg.Telemetry.AlertKey); !ok {
		return fmt.Errorf("%w: alert key %q has no sensor type", sensor.ErrRegistryUnavailable, cfg.Telemetry.AlertKey)
	}
	log.Info("sensor registry loaded", "types", registry.Keys())

	catalogue, err := device.NewCatalogue(cfg.Devices)
	if err != nil {
		return fmt.Errorf("building device catalogue: %w", err)
	}

	m := metrics.New()
	if regErr := m.RegisterDB(db.DB); regErr != nil {
		return fmt.Errorf("registering database metrics: %w", regErr)
	}

	hub := api.NewHub(cfg.WebSocket, log)
	go hub.Run(ctx)
	if regErr := m.RegisterGauge("websocket_clients", "Connected websocket clients.", func() float64 {
		return float64(hub.ClientCount())
	}); regErr != nil {
		return fmt.Errorf("registering websocket metrics: %w", regErr)
	}

	influxClient, err := connectInflux(ctx, cfg.InfluxDB, log)
	if err != nil {
		return err
	}
	if influxClient != nil {
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
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
	mqttClient.SetLogger(log)
	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})
	if regErr := m.RegisterGauge("mqtt_connected", "1 when the broker connection is up.", func() float64 {
		if mqttClient.IsConnected() {
			return 1
		}
		return 0
	}); regErr != nil {
		return fmt.Errorf("registering mqtt metrics: %w", regErr)
	}
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	topics := mqtt.NewTopics(cfg.MQTT.Topics)
	qos := byte(cfg.MQTT.QoS) //nolint:gosec // validated 0..2

	ingestor := sensor.NewIngestor(db, registry, sensor.IngestorConfig{
		Policy: sensor.AlertPolicy{
			Key:       cfg.Telemetry.AlertKey,
			Threshold: cfg.Telemetry.AlertThreshold,
		},
		Location: loc,
	})
	ingestor.SetLogger(log.With("component", "ingestor"))
	ingestor.SetNotifier(hub)
	ingestor.SetMetrics(m)

	dispatcher := device.NewDispatcher(db, catalogue, mqttClient, device.DispatcherConfig{
		Topic:    topics.Control,
		QoS:      qos,
		Location: loc,
	})
	dispatcher.SetLogger(log.With("component", "dispatcher"))
	dispatcher.SetNotifier(hub)
	dispatcher.SetMetrics(m)

	reconciler := device.NewReconciler(db, catalogue)
	reconciler.SetLogger(log.With("component", "reconciler"))
	reconciler.SetNotifier(hub)
	reconciler.SetMetrics(m)

	// A nil *influxdb.Client stored in an interface would not compare
	// equal to nil, so the sinks are only set when mirroring is on.
	if influxClient != nil {
		ingestor.SetSink(influxClient)
		reconciler.SetSink(influxClient)
	}

	if subErr := mqttClient.Subscribe(topics.Telemetry, qos, ingestor.HandleMessage); subErr != nil {
		return fmt.Errorf("subscribing to %s: %w", topics.Telemetry, subErr)
	}
	if subErr := mqttClient.Subscribe(topics.Status, qos, reconciler.HandleMessage); subErr != nil {
		return fmt.Errorf("subscribing to %s: %w", topics.Status, subErr)
	}
	log.Info("subscribed to device topics",
		"telemetry", topics.Telemetry,
		"status", topics.Status,
	)

	apiServer, err := api.New(api.Deps{
		Config: cfg.API,
		WS:     cfg.WebSocket,
		Logger: log,
		Queries: query.NewService(db, registry, catalogue, query.Config{
			HistoryWindow: cfg.Telemetry.HistoryWindow,
			Location:      loc,
		}),
		Dispatcher: dispatcher,
		Database:   db,
		MQTT:       mqttClient,
		Metrics:    m,
		Hub:        hub,
		Version:    version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if startErr := apiServer.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		if closeErr := apiServer.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")
	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")

	log.Info("SensorHub stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses SENSORHUB_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("SENSORHUB_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// connectInflux connects the optional InfluxDB mirror. A disabled mirror
// yields a nil client and no error.
func connectInflux(ctx context.Context, cfg config.InfluxDBConfig, log *logging.Logger) (*influxdb.Client, error) {
	client, err := influxdb.Connect(ctx, cfg)
	if errors.Is(err, influxdb.ErrDisabled) {
		log.Info("InfluxDB disabled")
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("connecting to InfluxDB: %w", err)
	}

	client.SetOnError(func(err error) {
		log.Error("InfluxDB write error", "error", err)
	})
	log.Info("InfluxDB connected",
		"url", cfg.URL,
		"org", cfg.Org,
		"bucket", cfg.Bucket,
	)
	return client, nil
}

// healthCheck verifies all infrastructure connections are healthy.
// influxClient may be nil when mirroring is disabled.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
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
	return nil
}
