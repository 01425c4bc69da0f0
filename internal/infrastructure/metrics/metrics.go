package metrics

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// namespace prefixes every SensorHub metric name.
const namespace = "sensorhub"

// Message outcomes for MessageProcessed.
const (
	ResultIngested  = "ingested"
	ResultApplied   = "applied"
	ResultIgnored   = "ignored"
	ResultMalformed = "malformed"
	ResultFailed    = "failed"
)

// Message sources for MessageProcessed.
const (
	SourceTelemetry = "telemetry"
	SourceStatus    = "status"
)

// Metrics holds the Prometheus collectors for SensorHub.
//
// It owns a private registry rather than the global default so tests can
// build as many instances as they like. All recording methods are safe on
// a nil *Metrics, which components use when no metrics are wired.
type Metrics struct {
	registry *prometheus.Registry

	messages         *prometheus.CounterVec
	readings         *prometheus.CounterVec
	unknownKeys      prometheus.Counter
	alertTransitions *prometheus.CounterVec
	commands         *prometheus.CounterVec
	publishFailures  prometheus.Counter
	ingestDuration   prometheus.Histogram
}

// New creates and registers all collectors, plus the Go runtime and
// process collectors.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mqtt_messages_total",
			Help:      "Inbound MQTT messages by source and outcome.",
		}, []string{"source", "result"}),
		readings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "readings_stored_total",
			Help:      "Readings committed to the store by sensor type.",
		}, []string{"sensor_type"}),
		unknownKeys: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "telemetry_unknown_keys_total",
			Help:      "Telemetry keys skipped because no sensor type matched.",
		}),
		alertTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alert_transitions_total",
			Help:      "Alert state machine transitions by sensor type.",
		}, []string{"sensor_type", "transition"}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "device_commands_total",
			Help:      "Operator commands logged and published by device and action.",
		}, []string{"device", "action"}),
		publishFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "command_publish_failures_total",
			Help:      "Commands committed to the action log whose publish failed.",
		}),
		ingestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ingest_duration_seconds",
			Help:      "Time to store one telemetry message, transaction included.",
			Buckets:   []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}

	registry.MustRegister(
		m.messages,
		m.readings,
		m.unknownKeys,
		m.alertTransitions,
		m.commands,
		m.publishFailures,
		m.ingestDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// Registry exposes the underlying registry for additional collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RegisterDB exports connection pool statistics for db.
func (m *Metrics) RegisterDB(db *sql.DB) error {
	return m.registry.Register(collectors.NewDBStatsCollector(db, namespace))
}

// RegisterGauge exports a value sampled at scrape time, such as the MQTT
// connection state or the number of websocket clients.
func (m *Metrics) RegisterGauge(name, help string, fn func() float64) error {
	return m.registry.Register(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      name,
		Help:      help,
	}, fn))
}

// MessageProcessed counts one inbound message.
func (m *Metrics) MessageProcessed(source, result string) {
	if m == nil {
		return
	}
	m.messages.WithLabelValues(source, result).Inc()
}

// ReadingStored counts one committed reading.
func (m *Metrics) ReadingStored(sensorType string) {
	if m == nil {
		return
	}
	m.readings.WithLabelValues(sensorType).Inc()
}

// UnknownKeys counts skipped telemetry keys.
func (m *Metrics) UnknownKeys(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.unknownKeys.Add(float64(n))
}

// AlertTransition counts one non-trivial alert transition.
func (m *Metrics) AlertTransition(sensorType, transition string) {
	if m == nil {
		return
	}
	m.alertTransitions.WithLabelValues(sensorType, transition).Inc()
}

// CommandDispatched counts one committed operator command.
func (m *Metrics) CommandDispatched(device, action string) {
	if m == nil {
		return
	}
	m.commands.WithLabelValues(device, action).Inc()
}

// PublishFailed counts one command whose publish failed after commit.
func (m *Metrics) PublishFailed() {
	if m == nil {
		return
	}
	m.publishFailures.Inc()
}

// ObserveIngest records how long one telemetry message took to store.
func (m *Metrics) ObserveIngest(d time.Duration) {
	if m == nil {
		return
	}
	m.ingestDuration.Observe(d.Seconds())
}
