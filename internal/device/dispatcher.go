package device

import (
	"context"
	"fmt"
	"time"

	"github.com/nerrad567/sensorhub/internal/infrastructure/database"
	"github.com/nerrad567/sensorhub/internal/infrastructure/metrics"
)

// Websocket channels published by this package.
const (
	ChannelCommand      = "device.command"
	ChannelStateChanged = "device.state_changed"
)

// Logger defines the logging interface used by the Dispatcher and
// Reconciler.
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

// Publisher sends control payloads. Satisfied by *mqtt.Client.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// Notifier pushes live events to connected clients.
type Notifier interface {
	Broadcast(channel string, payload any)
}

// Command is an operator request to switch a device.
type Command struct {
	// Device is the catalogue key, e.g. "fan".
	Device string `json:"device"`

	// State is the desired state; true is ON.
	State bool `json:"state"`
}

// Result describes a dispatched command.
type Result struct {
	Device  Device
	Action  string
	LogID   int64
	Payload string

	// PublishErr is set when the command was logged but could not be
	// sent. It wraps the transport error.
	PublishErr error
}

// Message is the operator-facing confirmation text.
func (r *Result) Message() string {
	return fmt.Sprintf("%s state updated to %s", r.Device.Name, r.Action)
}

// DispatcherConfig holds the Dispatcher's fixed settings.
type DispatcherConfig struct {
	// Topic is the control topic commands are published to.
	Topic string

	// QoS for command publishes.
	QoS byte

	// Location is the site's fixed-offset zone for log timestamps.
	Location *time.Location

	// Now overrides the clock in tests. Defaults to time.Now.
	Now func() time.Time
}

// Dispatcher logs operator commands and publishes them to devices.
type Dispatcher struct {
	db        TxBeginner
	catalogue *Catalogue
	publisher Publisher
	cfg       DispatcherConfig

	logger   Logger
	notifier Notifier
	metrics  *metrics.Metrics
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(db TxBeginner, catalogue *Catalogue, publisher Publisher, cfg DispatcherConfig) *Dispatcher {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Dispatcher{
		db:        db,
		catalogue: catalogue,
		publisher: publisher,
		cfg:       cfg,
		logger:    noopLogger{},
	}
}

// SetLogger sets the logger for the dispatcher.
func (d *Dispatcher) SetLogger(logger Logger) {
	d.logger = logger
}

// SetNotifier sets the live event publisher.
func (d *Dispatcher) SetNotifier(notifier Notifier) {
	d.notifier = notifier
}

// SetMetrics sets the metrics recorder.
func (d *Dispatcher) SetMetrics(m *metrics.Metrics) {
	d.metrics = m
}

// Dispatch records cmd in the action log and publishes it.
//
// It returns ErrInvalidDevice, without touching the store, when the
// device key is unknown. Once the log row is committed Dispatch succeeds
// even if the publish fails; the failure is reported in Result.PublishErr.
func (d *Dispatcher) Dispatch(ctx context.Context, cmd Command) (*Result, error) {
	dev, ok := d.catalogue.ByKey(cmd.Device)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDevice, cmd.Device)
	}

	action := Action(cmd.State)
	at := database.Timestamp(d.cfg.Now(), d.cfg.Location)

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning dispatch: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	logID, err := appendAction(ctx, tx, dev.Name, action, at)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing dispatch: %w", err)
	}

	result := &Result{
		Device:  dev,
		Action:  action,
		LogID:   logID,
		Payload: dev.Command(cmd.State),
	}
	d.metrics.CommandDispatched(dev.Key, action)

	if err := d.publisher.Publish(d.cfg.Topic, []byte(result.Payload), d.cfg.QoS, false); err != nil {
		result.PublishErr = fmt.Errorf("publishing %q: %w", result.Payload, err)
		d.metrics.PublishFailed()
		d.logger.Warn("command logged but not published",
			"device", dev.Name,
			"action", action,
			"log_id", logID,
			"error", err,
		)
	} else {
		d.logger.Info("command published",
			"device", dev.Name,
			"action", action,
			"topic", d.cfg.Topic,
			"payload", result.Payload,
		)
	}

	if d.notifier != nil {
		d.notifier.Broadcast(ChannelCommand, map[string]any{
			"deviceName": dev.Name,
			"action":     action,
			"timestamp":  at,
			"published":  result.PublishErr == nil,
		})
	}

	return result, nil
}
