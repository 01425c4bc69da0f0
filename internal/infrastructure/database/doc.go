// Package database provides SQLite connectivity for SensorHub.
//
// This package manages:
//   - The connection (WAL mode, busy timeout, foreign keys, BEGIN IMMEDIATE)
//   - Embedded forward schema migrations, registered by the migrations package
//   - Lifecycle and health checks
//
// The pool holds a single connection. Readings, alert state and action
// logs are written in short transactions that take the write lock at
// BEGIN, so read-modify-write sequences such as the alert counter never
// interleave.
//
// Usage:
//
//	db, err := database.Open(ctx, database.Config{
//	    Path:        cfg.Database.Path,
//	    WALMode:     cfg.Database.WALMode,
//	    BusyTimeout: cfg.Database.BusyTimeout,
//	})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
//
// Migration files are named YYYYMMDD_HHMMSS_description.up.sql and only
// ever move the schema forward.
package database
