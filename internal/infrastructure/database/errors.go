package database

import "errors"

// Domain errors for the database package.
var (
	// ErrEmptyPath is returned by Open when no database path is configured.
	ErrEmptyPath = errors.New("database: path is required")

	// ErrNoMigrations is returned by Migrate when no migration files are registered.
	ErrNoMigrations = errors.New("database: no migrations registered")
)
