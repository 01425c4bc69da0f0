package sensor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/sensorhub/internal/infrastructure/database"
	"github.com/nerrad567/sensorhub/internal/infrastructure/metrics"
)

// ingestTimeout bounds one message's transaction when driven from MQTT.
const ingestTimeout = 10 * time.Second

// Websocket channels published after commit.
const (
	ChannelReading = "sensor.reading"
	ChannelAlert   = "sensor.alert"
)

// Logger defines the logging interface used by the Ingestor.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// ReadingSink receives committed readings for mirroring. Writes must not
// block. Satisfied by *influxdb.Client.
type ReadingSink interface {
	WriteReading(sensorType string, sensorID int64, value float64, at time.Time)
}

// Notifier pushes live events to connected clients. Satisfied by the API
// websocket hub.
type Notifier interface {
	Broadcast(channel string, payload any)
}

// IngestorConfig holds the Ingestor's fixed settings.
type IngestorConfig struct {
	// Policy selects the alert-bearing metric and its threshold.
	Policy AlertPolicy

	// Location is the site's fixed-offset zone for stored timestamps.
	Location *time.Location

	// Now overrides the clock in tests. Defaults to time.Now.
	Now func() time.Time
}

// Ingestor stores telemetry messages and evaluates the alert state.
//
// Each message is one transaction. The store's BEGIN IMMEDIATE locking
// serialises concurrent messages, so two readings of the alert metric
// can never both observe the sensor as not alerting.
type Ingestor struct {
	db       TxBeginner
	registry *Registry
	policy   AlertPolicy
	loc      *time.Location
	now      func() time.Time

	logger   Logger
	sink     ReadingSink
	notifier Notifier
	metrics  *metrics.Metrics
}

// NewIngestor creates an ingestor over db using registry for key lookup.
func NewIngestor(db TxBeginner, registry *Registry, cfg IngestorConfig) *Ingestor {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Ingestor{
		db:       db,
		registry: registry,
		policy:   cfg.Policy,
		loc:      cfg.Location,
		now:      cfg.Now,
		logger:   noopLogger{},
	}
}

// SetLogger sets the logger for the ingestor.
func (i *Ingestor) SetLogger(logger Logger) {
	i.logger = logger
}

// SetSink sets the mirror for committed readings.
func (i *Ingestor) SetSink(sink ReadingSink) {
	i.sink = sink
}

// SetNotifier sets the live event publisher.
func (i *Ingestor) SetNotifier(notifier Notifier) {
	i.notifier = notifier
}

// SetMetrics sets the metrics recorder.
func (i *Ingestor) SetMetrics(m *metrics.Metrics) {
	i.metrics = m
}

// HandleMessage is the MQTT handler for the telemetry topic.
func (i *Ingestor) HandleMessage(topic string, payload []byte) error {
	fields, err := DecodeTelemetry(payload)
	if err != nil {
		i.metrics.MessageProcessed(metrics.SourceTelemetry, metrics.ResultMalformed)
		return fmt.Errorf("decoding %s payload: %w", topic, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), ingestTimeout)
	defer cancel()

	if _, err := i.Ingest(ctx, fields); err != nil {
		result := metrics.ResultFailed
		if errors.Is(err, ErrMalformedMessage) {
			result = metrics.ResultMalformed
		}
		i.metrics.MessageProcessed(metrics.SourceTelemetry, result)
		return err
	}

	i.metrics.MessageProcessed(metrics.SourceTelemetry, metrics.ResultIngested)
	return nil
}

// Ingest stores the known fields of one message in a single transaction.
//
// Unknown keys are skipped and reported in the result. A known key with a
// non-numeric value fails the whole message with ErrMalformedMessage. On
// any error nothing from the message is stored.
func (i *Ingestor) Ingest(ctx context.Context, fields []Field) (*IngestResult, error) {
	started := time.Now()
	at := i.now().In(i.loc)
	recordedAt := database.Timestamp(at, i.loc)
	today := database.Date(at, i.loc)

	tx, err := i.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning ingest: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	result := &IngestResult{}
	for _, f := range fields {
		sensorID, ok := i.registry.Resolve(f.Key)
		if !ok {
			result.UnknownKeys = append(result.UnknownKeys, f.Key)
			continue
		}

		value, err := parseValue(f.Value)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrMalformedMessage, f.Key, err)
		}

		if err := insertReading(ctx, tx, sensorID, value, recordedAt); err != nil {
			return nil, err
		}
		result.Readings = append(result.Readings, Reading{
			SensorID:   sensorID,
			Type:       f.Key,
			Value:      value,
			RecordedAt: at,
		})

		if f.Key != i.policy.Key {
			continue
		}
		event, err := i.evaluateAlert(ctx, tx, sensorID, f.Key, value, today)
		if err != nil {
			return nil, err
		}
		result.Alert = event
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing ingest: %w", err)
	}

	i.afterCommit(result, recordedAt)
	i.metrics.ObserveIngest(time.Since(started))
	return result, nil
}

// evaluateAlert runs the state machine for one reading on tx. It returns
// an event only when the state actually moved.
func (i *Ingestor) evaluateAlert(ctx context.Context, tx Querier, sensorID int64, key string, value float64, today string) (*AlertEvent, error) {
	prev, err := GetAlertState(ctx, tx, sensorID)
	if err != nil {
		return nil, err
	}

	next, transition := Evaluate(prev, value, i.policy.Threshold, today)
	if next == prev {
		return nil, nil
	}

	if err := saveAlertState(ctx, tx, next); err != nil {
		return nil, err
	}

	return &AlertEvent{
		Type:            key,
		SensorID:        sensorID,
		Value:           value,
		Threshold:       i.policy.Threshold,
		Transition:      transition,
		AlertCountToday: CountToday(next, today),
	}, nil
}

func (i *Ingestor) afterCommit(result *IngestResult, recordedAt string) {
	if len(result.UnknownKeys) > 0 {
		i.logger.Debug("telemetry keys skipped", "keys", result.UnknownKeys)
		i.metrics.UnknownKeys(len(result.UnknownKeys))
	}

	i.logger.Info("telemetry ingested",
		"stored", len(result.Readings),
		"skipped", len(result.UnknownKeys),
	)

	for _, r := range result.Readings {
		i.metrics.ReadingStored(r.Type)
		if i.sink != nil {
			i.sink.WriteReading(r.Type, r.SensorID, r.Value, r.RecordedAt)
		}
	}

	if a := result.Alert; a != nil {
		i.metrics.AlertTransition(a.Type, a.Transition.String())
		i.logger.Info("alert state changed",
			"type", a.Type,
			"transition", a.Transition.String(),
			"value", a.Value,
			"alert_count_today", a.AlertCountToday,
		)
	}

	if i.notifier == nil || len(result.Readings) == 0 {
		return
	}
	i.notifier.Broadcast(ChannelReading, i.liveRow(result, recordedAt))
	if result.Alert != nil {
		i.notifier.Broadcast(ChannelAlert, result.Alert)
	}
}

// liveRow shapes a message's readings like a pivoted query row, with zero
// for metrics the message did not carry.
func (i *Ingestor) liveRow(result *IngestResult, recordedAt string) map[string]any {
	row := make(map[string]any, i.registry.Len()+2)
	for _, key := range i.registry.Keys() {
		row[key] = 0.0
	}
	for _, r := range result.Readings {
		row[r.Type] = r.Value
	}
	row["timestamp"] = recordedAt[:len("2006-01-02 15:04:05")]
	row["time"] = recordedAt[len("2006-01-02 "):len("2006-01-02 15:04:05")]
	return row
}
