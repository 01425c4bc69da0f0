package device

import (
	"context"
	"database/sql"
	"fmt"
)

// Querier is the subset of *sql.DB and *sql.Tx the store code uses.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// TxBeginner starts transactions. Satisfied by *database.DB and *sql.DB.
type TxBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// appendAction logs action against the device named name and returns the
// new log id. The device row is found by name inside the insert, so a
// missing row inserts nothing and yields ErrDeviceNotFound.
func appendAction(ctx context.Context, q Querier, name, action, at string) (int64, error) {
	res, err := q.ExecContext(ctx,
		`INSERT INTO action_logs (device_id, action, timestamp)
		 SELECT device_id, ?, ? FROM devices WHERE device_name = ?`,
		action, at, name,
	)
	if err != nil {
		return 0, fmt.Errorf("appending action for %s: %w", name, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("appending action for %s: %w", name, err)
	}
	if n == 0 {
		return 0, fmt.Errorf("%w: %s", ErrDeviceNotFound, name)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading action log id: %w", err)
	}
	return id, nil
}

// setState stores the confirmed state of the device named name.
func setState(ctx context.Context, q Querier, name string, on bool) error {
	state := 0
	if on {
		state = 1
	}
	res, err := q.ExecContext(ctx,
		`UPDATE devices SET device_state = ? WHERE device_name = ?`,
		state, name,
	)
	if err != nil {
		return fmt.Errorf("updating state of %s: %w", name, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating state of %s: %w", name, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrDeviceNotFound, name)
	}
	return nil
}
