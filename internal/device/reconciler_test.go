package device

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/sensorhub/internal/infrastructure/database/databasetest"
	"github.com/nerrad567/sensorhub/internal/infrastructure/metrics"
)

type recordingStateSink struct {
	mu     sync.Mutex
	states map[string]bool
}

func (s *recordingStateSink) WriteDeviceState(name string, on bool, _ time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.states == nil {
		s.states = make(map[string]bool)
	}
	s.states[name] = on
}

func TestReconciler_HandleMessage(t *testing.T) {
	tests := []struct {
		name      string
		payload   string
		wantErr   error
		wantFan   bool
		wantLight bool
	}{
		{"fan on", `{"relay": "RELAY3", "state": "ON"}`, nil, true, false},
		{"lowercase state", `{"relay": "RELAY1", "state": "on"}`, nil, false, true},
		{"unmapped relay", `{"relay": "RELAY9", "state": "ON"}`, nil, false, false},
		{"missing state", `{"relay": "RELAY3"}`, nil, false, false},
		{"missing relay", `{"state": "ON"}`, nil, false, false},
		{"unknown state", `{"relay": "RELAY3", "state": "TOGGLE"}`, nil, false, false},
		{"wrong field type", `{"relay": 3, "state": "ON"}`, ErrMalformedMessage, false, false},
		{"not json", `RELAY3 ON`, ErrMalformedMessage, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := databasetest.Open(t)
			r := NewReconciler(db, testCatalogue(t))
			r.SetMetrics(metrics.New())

			err := r.HandleMessage("esp/status/relay", []byte(tt.payload))
			if tt.wantErr == nil && err != nil {
				t.Fatalf("HandleMessage() error = %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("HandleMessage() error = %v, want %v", err, tt.wantErr)
			}

			if got := deviceState(t, db, "Fan"); got != tt.wantFan {
				t.Errorf("Fan state = %v, want %v", got, tt.wantFan)
			}
			if got := deviceState(t, db, "Light"); got != tt.wantLight {
				t.Errorf("Light state = %v, want %v", got, tt.wantLight)
			}
		})
	}
}

func TestReconciler_IdempotentAndLatestWins(t *testing.T) {
	db := databasetest.Open(t)
	r := NewReconciler(db, testCatalogue(t))

	for _, payload := range []string{
		`{"relay": "RELAY2", "state": "ON"}`,
		`{"relay": "RELAY2", "state": "ON"}`,
	} {
		if err := r.HandleMessage("esp/status/relay2", []byte(payload)); err != nil {
			t.Fatalf("HandleMessage() error = %v", err)
		}
	}
	if !deviceState(t, db, "Air Conditioner") {
		t.Fatal("Air Conditioner state = OFF after ON replays")
	}

	if err := r.HandleMessage("esp/status/relay2", []byte(`{"relay": "RELAY2", "state": "OFF"}`)); err != nil {
		t.Fatalf("HandleMessage() error = %v", err)
	}
	if deviceState(t, db, "Air Conditioner") {
		t.Error("Air Conditioner state = ON, want latest report OFF")
	}
}

func TestReconciler_DispatchDoesNotConfirm(t *testing.T) {
	d, db := setupDispatcher(t, &fakePublisher{})
	r := NewReconciler(db, testCatalogue(t))

	if _, err := d.Dispatch(context.Background(), Command{Device: "fan", State: true}); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if deviceState(t, db, "Fan") {
		t.Fatal("Fan ON before any confirmation")
	}

	if err := r.HandleMessage("esp/status/relay3", []byte(`{"relay":"RELAY3","state":"ON"}`)); err != nil {
		t.Fatalf("HandleMessage() error = %v", err)
	}
	if !deviceState(t, db, "Fan") {
		t.Error("Fan OFF after confirmation")
	}
}

func TestReconciler_Hooks(t *testing.T) {
	db := databasetest.Open(t)
	r := NewReconciler(db, testCatalogue(t))
	n := &recordingNotifier{}
	sink := &recordingStateSink{}
	r.SetNotifier(n)
	r.SetSink(sink)

	applied, err := r.Apply(context.Background(), StatusReport{Relay: "RELAY1", State: "OFF"})
	if err != nil || !applied {
		t.Fatalf("Apply() = (%v, %v), want (true, nil)", applied, err)
	}

	if on, ok := sink.states["Light"]; !ok || on {
		t.Errorf("sink states = %v, want Light off", sink.states)
	}
	if len(n.channels) != 1 || n.channels[0] != ChannelStateChanged {
		t.Errorf("channels = %v, want [%s]", n.channels, ChannelStateChanged)
	}
}

func TestReconciler_StoreMissingDevice(t *testing.T) {
	db := databasetest.Open(t)
	databasetest.Exec(t, db, `UPDATE devices SET device_name = 'Lamp' WHERE device_id = 1`)
	r := NewReconciler(db, testCatalogue(t))

	err := r.HandleMessage("esp/status/relay1", []byte(`{"relay":"RELAY1","state":"ON"}`))
	if !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("HandleMessage() error = %v, want ErrDeviceNotFound", err)
	}
}
