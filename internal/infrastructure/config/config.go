package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for SensorHub.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Site      SiteConfig      `yaml:"site"`
	Database  DatabaseConfig  `yaml:"database"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Devices   []DeviceConfig  `yaml:"devices"`
}

// SiteConfig contains site-specific information.
type SiteConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`

	// UTCOffset is the fixed offset of the devices' local civil calendar.
	// Reading timestamps and the daily alert counter are both expressed in it.
	UTCOffset time.Duration `yaml:"utc_offset"`
}

// Location returns a fixed time zone for the configured UTC offset.
func (s SiteConfig) Location() *time.Location {
	return time.FixedZone(fmt.Sprintf("UTC%+g", s.UTCOffset.Hours()), int(s.UTCOffset.Seconds()))
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
	Topics    MQTTTopicsConfig    `yaml:"topics"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// MQTTTopicsConfig names the device-facing topics.
type MQTTTopicsConfig struct {
	// Telemetry carries a JSON object of sensor key to numeric value.
	Telemetry string `yaml:"telemetry"`

	// Status is a wildcard pattern; each relay reports {"relay", "state"} on its own level.
	Status string `yaml:"status"`

	// Control carries plain-text commands such as "LED1 ON".
	Control string `yaml:"control"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	TLS      TLSConfig        `yaml:"tls"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// TLSConfig contains TLS certificate settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings.
// When enabled, every committed reading is mirrored as a point.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// TelemetryConfig controls ingestion and the dashboard views.
type TelemetryConfig struct {
	// AlertKey is the sensor key whose readings drive the alert counter.
	AlertKey string `yaml:"alert_key"`

	// AlertThreshold is exclusive: a reading alerts when value > threshold.
	AlertThreshold float64 `yaml:"alert_threshold"`

	// HistoryWindow is the number of points returned by the historical view.
	HistoryWindow int `yaml:"history_window"`
}

// DeviceConfig describes one controllable relay.
type DeviceConfig struct {
	// Key is the operator-facing identifier used by the toggle endpoint ("fan").
	Key string `yaml:"key"`

	// Name matches devices.device_name in the store ("Fan").
	Name string `yaml:"name"`

	// Ordinal addresses the relay in control commands ("LED3 ON").
	Ordinal int `yaml:"ordinal"`

	// Relay is the identifier the device reports in status messages ("RELAY3").
	Relay string `yaml:"relay"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: SENSORHUB_SECTION_KEY
// For example: SENSORHUB_DATABASE_PATH, SENSORHUB_API_PORT
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// A devices list in the file replaces the default catalogue rather than
	// being merged into it.
	cfg.Devices = nil
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	if len(cfg.Devices) == 0 {
		cfg.Devices = defaultDevices()
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, fmt.Errorf("applying environment overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns the built-in configuration, used when no file is present in tests.
func Default() *Config {
	return defaultConfig()
}

// defaultConfig returns a Config matching the reference deployment.
func defaultConfig() *Config {
	return &Config{
		Site: SiteConfig{
			ID:        "site-001",
			Name:      "SensorHub",
			UTCOffset: 7 * time.Hour,
		},
		Database: DatabaseConfig{
			Path:        "./data/sensorhub.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "sensorhub-core",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
			Topics: MQTTTopicsConfig{
				Telemetry: "esp/sensor",
				Status:    "esp/status/+",
				Control:   "esp/control",
			},
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 3000,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Telemetry: TelemetryConfig{
			AlertKey:       "dust",
			AlertThreshold: 50,
			HistoryWindow:  50,
		},
		Devices: defaultDevices(),
	}
}

func defaultDevices() []DeviceConfig {
	return []DeviceConfig{
		{Key: "light", Name: "Light", Ordinal: 1, Relay: "RELAY1"},
		{Key: "ac", Name: "Air Conditioner", Ordinal: 2, Relay: "RELAY2"},
		{Key: "fan", Name: "Fan", Ordinal: 3, Relay: "RELAY3"},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: SENSORHUB_SECTION_KEY
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("SENSORHUB_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("SENSORHUB_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("SENSORHUB_MQTT_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("SENSORHUB_MQTT_PORT: %w", err)
		}
		cfg.MQTT.Broker.Port = port
	}
	if v := os.Getenv("SENSORHUB_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("SENSORHUB_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := os.Getenv("SENSORHUB_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("SENSORHUB_API_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("SENSORHUB_API_PORT: %w", err)
		}
		cfg.API.Port = port
	}

	if v := os.Getenv("SENSORHUB_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Site and telemetry
	if v := os.Getenv("SENSORHUB_SITE_UTC_OFFSET"); v != "" {
		offset, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("SENSORHUB_SITE_UTC_OFFSET: %w", err)
		}
		cfg.Site.UTCOffset = offset
	}
	if v := os.Getenv("SENSORHUB_TELEMETRY_ALERT_THRESHOLD"); v != "" {
		threshold, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("SENSORHUB_TELEMETRY_ALERT_THRESHOLD: %w", err)
		}
		cfg.Telemetry.AlertThreshold = threshold
	}

	return nil
}

// maxUTCOffset bounds the site offset to real-world zones.
const maxUTCOffset = 14 * time.Hour

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []string

	if c.Site.ID == "" {
		errs = append(errs, "site.id is required")
	}
	if c.Site.UTCOffset < -maxUTCOffset || c.Site.UTCOffset > maxUTCOffset {
		errs = append(errs, "site.utc_offset must be between -14h and +14h")
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.Topics.Telemetry == "" || c.MQTT.Topics.Status == "" || c.MQTT.Topics.Control == "" {
		errs = append(errs, "mqtt.topics.telemetry, status and control are required")
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if c.Telemetry.AlertKey == "" {
		errs = append(errs, "telemetry.alert_key is required")
	}
	if c.Telemetry.HistoryWindow < 1 {
		errs = append(errs, "telemetry.history_window must be positive")
	}

	errs = append(errs, validateDevices(c.Devices)...)

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// validateDevices checks the device catalogue for missing and duplicate identifiers.
func validateDevices(devices []DeviceConfig) []string {
	if len(devices) == 0 {
		return []string{"devices must list at least one device"}
	}

	var errs []string
	keys := make(map[string]bool)
	relays := make(map[string]bool)
	ordinals := make(map[int]bool)
	for i, d := range devices {
		if d.Key == "" || d.Name == "" || d.Relay == "" {
			errs = append(errs, fmt.Sprintf("devices[%d]: key, name and relay are required", i))
			continue
		}
		if d.Ordinal < 1 {
			errs = append(errs, fmt.Sprintf("devices[%d]: ordinal must be positive", i))
		}
		if keys[d.Key] {
			errs = append(errs, fmt.Sprintf("devices[%d]: duplicate key %q", i, d.Key))
		}
		if relays[d.Relay] {
			errs = append(errs, fmt.Sprintf("devices[%d]: duplicate relay %q", i, d.Relay))
		}
		if ordinals[d.Ordinal] {
			errs = append(errs, fmt.Sprintf("devices[%d]: duplicate ordinal %d", i, d.Ordinal))
		}
		keys[d.Key] = true
		relays[d.Relay] = true
		ordinals[d.Ordinal] = true
	}
	return errs
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}
