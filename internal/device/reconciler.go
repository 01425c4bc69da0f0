package device

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nerrad567/sensorhub/internal/infrastructure/metrics"
)

// reconcileTimeout bounds one status update.
const reconcileTimeout = 5 * time.Second

// StatusReport is the payload devices publish on their status topic.
type StatusReport struct {
	Relay string `json:"relay"`
	State string `json:"state"`
}

// StateSink receives confirmed device states for mirroring.
// Satisfied by *influxdb.Client.
type StateSink interface {
	WriteDeviceState(deviceName string, on bool, at time.Time)
}

// Reconciler applies device status reports to the stored device state.
type Reconciler struct {
	db        Querier
	catalogue *Catalogue
	now       func() time.Time

	logger   Logger
	notifier Notifier
	sink     StateSink
	metrics  *metrics.Metrics
}

// NewReconciler creates a reconciler writing through db.
func NewReconciler(db Querier, catalogue *Catalogue) *Reconciler {
	return &Reconciler{
		db:        db,
		catalogue: catalogue,
		now:       time.Now,
		logger:    noopLogger{},
	}
}

// SetLogger sets the logger for the reconciler.
func (r *Reconciler) SetLogger(logger Logger) {
	r.logger = logger
}

// SetNotifier sets the live event publisher.
func (r *Reconciler) SetNotifier(notifier Notifier) {
	r.notifier = notifier
}

// SetSink sets the mirror for confirmed states.
func (r *Reconciler) SetSink(sink StateSink) {
	r.sink = sink
}

// SetMetrics sets the metrics recorder.
func (r *Reconciler) SetMetrics(m *metrics.Metrics) {
	r.metrics = m
}

// HandleMessage is the MQTT handler for the status topics.
//
// Undecodable JSON returns ErrMalformedMessage. Reports with a missing
// field, an unknown relay or a state other than ON/OFF are dropped
// without error.
func (r *Reconciler) HandleMessage(topic string, payload []byte) error {
	var report StatusReport
	if err := json.Unmarshal(payload, &report); err != nil {
		r.metrics.MessageProcessed(metrics.SourceStatus, metrics.ResultMalformed)
		return fmt.Errorf("%w: %s: %w", ErrMalformedMessage, topic, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), reconcileTimeout)
	defer cancel()

	applied, err := r.Apply(ctx, report)
	switch {
	case err != nil:
		r.metrics.MessageProcessed(metrics.SourceStatus, metrics.ResultFailed)
		return err
	case !applied:
		r.metrics.MessageProcessed(metrics.SourceStatus, metrics.ResultIgnored)
		r.logger.Debug("status report ignored", "topic", topic, "relay", report.Relay, "state", report.State)
	default:
		r.metrics.MessageProcessed(metrics.SourceStatus, metrics.ResultApplied)
	}
	return nil
}

// Apply stores the state in report. It reports false when the report
// was not usable and nothing was written.
func (r *Reconciler) Apply(ctx context.Context, report StatusReport) (bool, error) {
	if report.Relay == "" || report.State == "" {
		return false, nil
	}
	dev, ok := r.catalogue.ByRelay(report.Relay)
	if !ok {
		return false, nil
	}

	var on bool
	switch strings.ToUpper(strings.TrimSpace(report.State)) {
	case ActionOn:
		on = true
	case ActionOff:
		on = false
	default:
		return false, nil
	}

	if err := setState(ctx, r.db, dev.Name, on); err != nil {
		return false, err
	}

	r.logger.Info("device state confirmed", "device", dev.Name, "relay", dev.Relay, "state", Action(on))

	if r.sink != nil {
		r.sink.WriteDeviceState(dev.Name, on, r.now())
	}
	if r.notifier != nil {
		r.notifier.Broadcast(ChannelStateChanged, map[string]any{
			"deviceName":  dev.Name,
			"deviceState": on,
			"relay":       dev.Relay,
		})
	}
	return true, nil
}
