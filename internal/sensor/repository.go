package sensor

import (
	"context"
	"database/sql"
	"errors"
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

// SQLiteLoader reads sensor types from the sensors table.
type SQLiteLoader struct {
	db Querier
}

// NewSQLiteLoader creates a loader over db.
func NewSQLiteLoader(db Querier) *SQLiteLoader {
	return &SQLiteLoader{db: db}
}

// LoadSensorTypes returns every sensor type ordered by id.
func (l *SQLiteLoader) LoadSensorTypes(ctx context.Context) ([]SensorType, error) {
	rows, err := l.db.QueryContext(ctx, `SELECT sensor_id, type FROM sensors ORDER BY sensor_id`)
	if err != nil {
		return nil, fmt.Errorf("querying sensor types: %w", err)
	}
	defer rows.Close()

	var types []SensorType
	for rows.Next() {
		var st SensorType
		if err := rows.Scan(&st.ID, &st.Key); err != nil {
			return nil, fmt.Errorf("scanning sensor type: %w", err)
		}
		types = append(types, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sensor types: %w", err)
	}
	return types, nil
}

func insertReading(ctx context.Context, q Querier, sensorID int64, value float64, recordedAt string) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO sensor_data (sensor_id, value, recorded_at) VALUES (?, ?, ?)`,
		sensorID, value, recordedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting reading for sensor %d: %w", sensorID, err)
	}
	return nil
}

// GetAlertState reads the alert columns of one sensor.
func GetAlertState(ctx context.Context, q Querier, sensorID int64) (AlertState, error) {
	var (
		state       = AlertState{SensorID: sensorID}
		alerting    int
		lastUpdated sql.NullString
	)
	err := q.QueryRowContext(ctx,
		`SELECT is_currently_alerting, alert_count, alert_count_last_updated
		 FROM sensors WHERE sensor_id = ?`,
		sensorID,
	).Scan(&alerting, &state.Count, &lastUpdated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return AlertState{}, fmt.Errorf("%w: sensor %d", ErrSensorNotFound, sensorID)
		}
		return AlertState{}, fmt.Errorf("reading alert state for sensor %d: %w", sensorID, err)
	}
	state.Alerting = alerting == 1
	state.LastUpdated = lastUpdated.String
	return state, nil
}

func saveAlertState(ctx context.Context, q Querier, state AlertState) error {
	var lastUpdated sql.NullString
	if state.LastUpdated != "" {
		lastUpdated = sql.NullString{String: state.LastUpdated, Valid: true}
	}
	_, err := q.ExecContext(ctx,
		`UPDATE sensors
		 SET is_currently_alerting = ?, alert_count = ?, alert_count_last_updated = ?
		 WHERE sensor_id = ?`,
		boolToInt(state.Alerting), state.Count, lastUpdated, state.SensorID,
	)
	if err != nil {
		return fmt.Errorf("saving alert state for sensor %d: %w", state.SensorID, err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
