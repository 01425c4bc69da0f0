package database

import (
	"testing"
	"time"
)

func TestTimestampFormats(t *testing.T) {
	loc := time.FixedZone("site", 7*60*60)
	at := time.Date(2026, 10, 1, 17, 30, 0, 250_000_000, time.UTC)

	if got, want := Timestamp(at, loc), "2026-10-02 00:30:00.250"; got != want {
		t.Errorf("Timestamp() = %q, want %q", got, want)
	}
	if got, want := Date(at, loc), "2026-10-02"; got != want {
		t.Errorf("Date() = %q, want %q", got, want)
	}
}
