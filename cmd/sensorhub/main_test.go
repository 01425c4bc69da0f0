package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/nerrad567/sensorhub/internal/sensor"
)

// writeConfig writes a config file with the given database path and
// telemetry alert key and points SENSORHUB_CONFIG at it.
func writeConfig(t *testing.T, dbPath, alertKey string, mqttPort int) {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "test-config.yaml")

	configContent := `
site:
  id: test-site
  utc_offset: 7h

database:
  path: "` + dbPath + `"
  wal_mode: true
  busy_timeout: 5

mqtt:
  broker:
    host: "127.0.0.1"
    port: ` + strconv.Itoa(mqttPort) + `
    client_id: "test-client"
    tls: false
  qos: 1
  reconnect:
    initial_delay: 1
    max_delay: 5

influxdb:
  enabled: false

logging:
  level: error
  format: text
  output: stdout

api:
  host: "127.0.0.1"
  port: 18080

telemetry:
  alert_key: ` + alertKey + `
  alert_threshold: 50
  history_window: 50
`
	if err := os.WriteFile(configPath, []byte(configContent), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	t.Setenv("SENSORHUB_CONFIG", configPath)
}

// TestRun_InvalidConfig verifies run fails with invalid config path.
func TestRun_InvalidConfig(t *testing.T) {
	t.Setenv("SENSORHUB_CONFIG", "/nonexistent/path/config.yaml")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
}

// TestRun_MissingDatabasePath verifies config validation rejects an empty path.
func TestRun_MissingDatabasePath(t *testing.T) {
	writeConfig(t, "", "dust", 1883)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail with empty database path")
	}
}

// TestRun_UnknownAlertKey verifies an alert key with no sensor type is fatal
// before any broker connection is attempted.
func TestRun_UnknownAlertKey(t *testing.T) {
	writeConfig(t, filepath.Join(t.TempDir(), "test.db"), "pressure", 19999)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx)
	if !errors.Is(err, sensor.ErrRegistryUnavailable) {
		t.Fatalf("run() error = %v, want ErrRegistryUnavailable", err)
	}
}

// TestRun_BrokerUnavailable verifies run fails when the broker is unreachable.
func TestRun_BrokerUnavailable(t *testing.T) {
	writeConfig(t, filepath.Join(t.TempDir(), "test.db"), "dust", 19999)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail without a broker")
	}
}

func TestGetConfigPath(t *testing.T) {
	t.Setenv("SENSORHUB_CONFIG", "")
	if path := getConfigPath(); path != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want %q", path, defaultConfigPath)
	}

	expected := "/custom/path/config.yaml"
	t.Setenv("SENSORHUB_CONFIG", expected)
	if path := getConfigPath(); path != expected {
		t.Errorf("getConfigPath() = %q, want %q", path, expected)
	}
}
