package device

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/nerrad567/sensorhub/internal/infrastructure/database"
	"github.com/nerrad567/sensorhub/internal/infrastructure/database/databasetest"
	"github.com/nerrad567/sensorhub/internal/infrastructure/metrics"
	"github.com/nerrad567/sensorhub/internal/infrastructure/mqtt"
)

var siteZone = time.FixedZone("site", 7*60*60)

type publishCall struct {
	topic   string
	payload string
	qos     byte
}

// fakePublisher records publishes and fails with err when set.
type fakePublisher struct {
	mu    sync.Mutex
	calls []publishCall
	err   error
}

func (p *fakePublisher) Publish(topic string, payload []byte, qos byte, _ bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, publishCall{topic: topic, payload: string(payload), qos: qos})
	return p.err
}

type recordingNotifier struct {
	mu       sync.Mutex
	channels []string
	payloads []any
}

func (n *recordingNotifier) Broadcast(channel string, payload any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.channels = append(n.channels, channel)
	n.payloads = append(n.payloads, payload)
}

func setupDispatcher(t *testing.T, pub Publisher) (*Dispatcher, *database.DB) {
	t.Helper()
	db := databasetest.Open(t)
	d := NewDispatcher(db, testCatalogue(t), pub, DispatcherConfig{
		Topic:    "esp/control",
		QoS:      1,
		Location: siteZone,
		Now:      func() time.Time { return time.Date(2026, 10, 1, 9, 15, 0, 0, siteZone) },
	})
	return d, db
}

type actionRow struct {
	device    string
	action    string
	timestamp string
}

func actionLog(t *testing.T, db *database.DB) []actionRow {
	t.Helper()
	rows, err := db.QueryContext(context.Background(),
		`SELECT d.device_name, a.action, a.timestamp
		 FROM action_logs a JOIN devices d ON d.device_id = a.device_id
		 ORDER BY a.log_id`)
	if err != nil {
		t.Fatalf("querying action log: %v", err)
	}
	defer rows.Close()

	var out []actionRow
	for rows.Next() {
		var r actionRow
		if err := rows.Scan(&r.device, &r.action, &r.timestamp); err != nil {
			t.Fatalf("scanning action log: %v", err)
		}
		out = append(out, r)
	}
	return out
}

func deviceState(t *testing.T, db Querier, name string) bool {
	t.Helper()
	var state int
	err := db.QueryRowContext(context.Background(),
		`SELECT device_state FROM devices WHERE device_name = ?`, name).Scan(&state)
	if err != nil {
		t.Fatalf("reading state of %s: %v", name, err)
	}
	return state == 1
}

func TestDispatch(t *testing.T) {
	pub := &fakePublisher{}
	d, db := setupDispatcher(t, pub)

	result, err := d.Dispatch(context.Background(), Command{Device: "fan", State: true})
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}

	if result.PublishErr != nil {
		t.Errorf("PublishErr = %v, want nil", result.PublishErr)
	}
	if got, want := result.Message(), "Fan state updated to ON"; got != want {
		t.Errorf("Message() = %q, want %q", got, want)
	}

	if len(pub.calls) != 1 {
		t.Fatalf("publish calls = %d, want 1", len(pub.calls))
	}
	if got := pub.calls[0]; got != (publishCall{topic: "esp/control", payload: "LED3 ON", qos: 1}) {
		t.Errorf("publish = %+v", got)
	}

	log := actionLog(t, db)
	if len(log) != 1 || log[0] != (actionRow{"Fan", "ON", "2026-10-01 09:15:00.000"}) {
		t.Errorf("action log = %+v", log)
	}
	if deviceState(t, db, "Fan") {
		t.Error("dispatch changed device_state; only the reconciler may")
	}
}

func TestDispatch_InvalidDevice(t *testing.T) {
	pub := &fakePublisher{}
	d, db := setupDispatcher(t, pub)

	_, err := d.Dispatch(context.Background(), Command{Device: "heater", State: true})
	if !errors.Is(err, ErrInvalidDevice) {
		t.Fatalf("Dispatch() error = %v, want ErrInvalidDevice", err)
	}
	if log := actionLog(t, db); len(log) != 0 {
		t.Errorf("action log = %+v, want empty", log)
	}
	if len(pub.calls) != 0 {
		t.Errorf("published %d commands for an invalid device", len(pub.calls))
	}
}

func TestDispatch_PublishFailureKeepsLog(t *testing.T) {
	pub := &fakePublisher{err: mqtt.ErrNotConnected}
	d, db := setupDispatcher(t, pub)
	m := metrics.New()
	d.SetMetrics(m)

	result, err := d.Dispatch(context.Background(), Command{Device: "fan", State: true})
	if err != nil {
		t.Fatalf("Dispatch() error = %v, want success with warning", err)
	}
	if !errors.Is(result.PublishErr, mqtt.ErrNotConnected) {
		t.Errorf("PublishErr = %v, want ErrNotConnected", result.PublishErr)
	}

	log := actionLog(t, db)
	if len(log) != 1 || log[0].action != "ON" {
		t.Errorf("action log = %+v, want one ON row", log)
	}
}

func TestDispatch_StoreMissingDevice(t *testing.T) {
	pub := &fakePublisher{}
	d, db := setupDispatcher(t, pub)
	databasetest.Exec(t, db, `UPDATE devices SET device_name = 'Ceiling Fan' WHERE device_id = 3`)

	_, err := d.Dispatch(context.Background(), Command{Device: "fan", State: false})
	if !errors.Is(err, ErrDeviceNotFound) {
		t.Fatalf("Dispatch() error = %v, want ErrDeviceNotFound", err)
	}
	if len(pub.calls) != 0 {
		t.Error("published a command that was never logged")
	}
}

func TestDispatch_CommitFailureDoesNotPublish(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer sqlDB.Close()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO action_logs").
		WithArgs("OFF", sqlmock.AnyArg(), "Light").
		WillReturnResult(sqlmock.NewResult(7, 1))
	mock.ExpectCommit().WillReturnError(errors.New("database is locked"))

	pub := &fakePublisher{}
	d := NewDispatcher(sqlDB, testCatalogue(t), pub, DispatcherConfig{Topic: "esp/control"})

	if _, err := d.Dispatch(context.Background(), Command{Device: "light"}); err == nil {
		t.Fatal("Dispatch() expected error")
	}
	if len(pub.calls) != 0 {
		t.Error("published after a failed commit")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestDispatch_Notifies(t *testing.T) {
	d, _ := setupDispatcher(t, &fakePublisher{})
	n := &recordingNotifier{}
	d.SetNotifier(n)

	if _, err := d.Dispatch(context.Background(), Command{Device: "light", State: true}); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if len(n.channels) != 1 || n.channels[0] != ChannelCommand {
		t.Fatalf("channels = %v, want [%s]", n.channels, ChannelCommand)
	}
	payload, _ := n.payloads[0].(map[string]any)
	if payload["deviceName"] != "Light" || payload["action"] != "ON" || payload["published"] != true {
		t.Errorf("payload = %v", payload)
	}
}
