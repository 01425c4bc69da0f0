package sensor

import "testing"

func TestEvaluate(t *testing.T) {
	const (
		threshold = 50.0
		today     = "2026-10-01"
		yesterday = "2026-09-30"
	)

	tests := []struct {
		name     string
		prev     AlertState
		value    float64
		want     AlertState
		wantEdge Transition
	}{
		{
			name:     "normal stays normal",
			prev:     AlertState{Count: 2, LastUpdated: today},
			value:    20,
			want:     AlertState{Count: 2, LastUpdated: today},
			wantEdge: TransitionNone,
		},
		{
			name:     "threshold itself is normal",
			prev:     AlertState{},
			value:    50,
			want:     AlertState{},
			wantEdge: TransitionNone,
		},
		{
			name:     "first ever crossing",
			prev:     AlertState{},
			value:    60,
			want:     AlertState{Alerting: true, Count: 1, LastUpdated: today},
			wantEdge: TransitionStarted,
		},
		{
			name:     "second crossing same day",
			prev:     AlertState{Count: 1, LastUpdated: today},
			value:    50.1,
			want:     AlertState{Alerting: true, Count: 2, LastUpdated: today},
			wantEdge: TransitionStarted,
		},
		{
			name:     "first crossing of a new day resets",
			prev:     AlertState{Count: 7, LastUpdated: yesterday},
			value:    80,
			want:     AlertState{Alerting: true, Count: 1, LastUpdated: today},
			wantEdge: TransitionStarted,
		},
		{
			name:     "sustained alert does not count",
			prev:     AlertState{Alerting: true, Count: 1, LastUpdated: today},
			value:    90,
			want:     AlertState{Alerting: true, Count: 1, LastUpdated: today},
			wantEdge: TransitionSustained,
		},
		{
			name:     "clearing keeps the counter",
			prev:     AlertState{Alerting: true, Count: 3, LastUpdated: today},
			value:    10,
			want:     AlertState{Count: 3, LastUpdated: today},
			wantEdge: TransitionCleared,
		},
		{
			name:     "alert carried over midnight clears without reset",
			prev:     AlertState{Alerting: true, Count: 4, LastUpdated: yesterday},
			value:    10,
			want:     AlertState{Count: 4, LastUpdated: yesterday},
			wantEdge: TransitionCleared,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, edge := Evaluate(tt.prev, tt.value, threshold, today)
			if got != tt.want {
				t.Errorf("Evaluate() state = %+v, want %+v", got, tt.want)
			}
			if edge != tt.wantEdge {
				t.Errorf("Evaluate() transition = %v, want %v", edge, tt.wantEdge)
			}
		})
	}
}

func TestEvaluate_OnlyEdgesCount(t *testing.T) {
	values := []float64{60, 70, 80, 10, 60, 10, 20}
	state := AlertState{}
	for _, v := range values {
		state, _ = Evaluate(state, v, 50, "2026-10-01")
	}
	if state.Count != 2 {
		t.Errorf("Count = %d after two crossings, want 2", state.Count)
	}
}

func TestCountToday(t *testing.T) {
	tests := []struct {
		name  string
		state AlertState
		want  int
	}{
		{"counted today", AlertState{Count: 3, LastUpdated: "2026-10-01"}, 3},
		{"stale counter", AlertState{Count: 3, LastUpdated: "2026-09-30"}, 0},
		{"never alerted", AlertState{}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CountToday(tt.state, "2026-10-01"); got != tt.want {
				t.Errorf("CountToday() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestTransition_String(t *testing.T) {
	tests := map[Transition]string{
		TransitionNone:      "none",
		TransitionStarted:   "started",
		TransitionSustained: "sustained",
		TransitionCleared:   "cleared",
	}
	for tr, want := range tests {
		if got := tr.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", int(tr), got, want)
		}
	}
}
