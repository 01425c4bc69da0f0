// Package databasetest opens throwaway SensorHub stores for tests.
package databasetest

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/nerrad567/sensorhub/internal/infrastructure/database"
	_ "github.com/nerrad567/sensorhub/migrations" // registers the embedded schema
)

// Open returns a migrated, seeded database in a temporary directory.
// It is closed when the test finishes.
func Open(t testing.TB) *database.DB {
	t.Helper()

	ctx := context.Background()
	db, err := database.Open(ctx, database.Config{
		Path:        filepath.Join(t.TempDir(), "sensorhub.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	t.Cleanup(func() {
		db.Close() //nolint:errcheck // Test cleanup
	})

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("migrating test database: %v", err)
	}
	return db
}

// Exec runs statements against db, failing the test on error.
func Exec(t testing.TB, db *database.DB, query string, args ...any) {
	t.Helper()
	if _, err := db.ExecContext(context.Background(), query, args...); err != nil {
		t.Fatalf("exec %q: %v", query, err)
	}
}
