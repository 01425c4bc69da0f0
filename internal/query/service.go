package query

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/nerrad567/sensorhub/internal/device"
	"github.com/nerrad567/sensorhub/internal/infrastructure/database"
	"github.com/nerrad567/sensorhub/internal/sensor"
)

// Paging defaults and bounds.
const (
	DefaultTelemetryLimit = 1000
	DefaultActionLimit    = 10
	MaxLimit              = 1000
	DefaultHistoryWindow  = 50
)

// Sort orders.
const (
	OrderAsc  = "asc"
	OrderDesc = "desc"
)

// Filter categories besides metric keys.
const (
	FilterAll       = "all"
	FilterTimestamp = "timestamp"
)

// Querier is the read surface of the store. Satisfied by *database.DB.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Config holds the Service's fixed settings.
type Config struct {
	// HistoryWindow is how many rows History returns.
	HistoryWindow int

	// Location is the site's fixed-offset zone; it decides "today" for
	// alert counters.
	Location *time.Location

	// Now overrides the clock in tests. Defaults to time.Now.
	Now func() time.Time
}

// Service answers dashboard queries from the store.
type Service struct {
	db        Querier
	registry  *sensor.Registry
	catalogue *device.Catalogue
	cfg       Config
}

// NewService creates a query service.
func NewService(db Querier, registry *sensor.Registry, catalogue *device.Catalogue, cfg Config) *Service {
	if cfg.HistoryWindow <= 0 {
		cfg.HistoryWindow = DefaultHistoryWindow
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Service{
		db:        db,
		registry:  registry,
		catalogue: catalogue,
		cfg:       cfg,
	}
}

// Latest returns the most recent pivoted row, or nil when there is no
// telemetry.
func (s *Service) Latest(ctx context.Context) (*PivotRow, error) {
	p := newPivot(s.registry.Keys())
	p.whereRaw(`d.recorded_at >= (SELECT substr(MAX(recorded_at), 1, 19) FROM sensor_data)`)

	query, args := p.selectSQL(timestampColumn+" DESC", 1, 0)
	rows, err := s.scanPivot(ctx, p, query, args)
	if err != nil {
		return nil, fmt.Errorf("querying latest telemetry: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

// History returns the last HistoryWindow pivoted rows, oldest first.
func (s *Service) History(ctx context.Context) ([]PivotRow, error) {
	p := newPivot(s.registry.Keys())

	query, args := p.selectSQL(timestampColumn+" DESC", s.cfg.HistoryWindow, 0)
	rows, err := s.scanPivot(ctx, p, query, args)
	if err != nil {
		return nil, fmt.Errorf("querying telemetry history: %w", err)
	}
	if rows == nil {
		return []PivotRow{}, nil
	}

	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}
	return rows, nil
}

// Telemetry returns one page of pivoted telemetry.
func (s *Service) Telemetry(ctx context.Context, q TelemetryQuery) (*Page[PivotRow], error) {
	page, limit, err := paging(q.Page, q.Limit, DefaultTelemetryLimit)
	if err != nil {
		return nil, err
	}
	order, err := sortOrder(q.SortOrder)
	if err != nil {
		return nil, err
	}

	p := newPivot(s.registry.Keys())

	sortKey := q.SortKey
	if sortKey == "" {
		sortKey = FilterTimestamp
	}
	sortCol, ok := p.column(sortKey)
	if !ok {
		return nil, fmt.Errorf("%w: unknown sortKey %q", ErrInvalidQuery, q.SortKey)
	}

	if err := s.dateRange(p, q.StartDate, q.EndDate); err != nil {
		return nil, err
	}

	if term := strings.TrimSpace(q.Search); term != "" {
		aliases, err := s.searchAliases(p, q.FilterCategory)
		if err != nil {
			return nil, err
		}
		p.searchColumns(likePattern(term), aliases)
	} else if q.FilterCategory != "" {
		if _, err := s.searchAliases(p, q.FilterCategory); err != nil {
			return nil, err
		}
	}

	total, err := s.count(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("counting telemetry: %w", err)
	}

	orderBy := sortCol + " " + order
	if sortCol != timestampColumn {
		orderBy += ", " + timestampColumn + " " + order
	}
	query, args := p.selectSQL(orderBy, limit, (page-1)*limit)
	rows, err := s.scanPivot(ctx, p, query, args)
	if err != nil {
		return nil, fmt.Errorf("querying telemetry: %w", err)
	}
	if rows == nil {
		rows = []PivotRow{}
	}

	return &Page[PivotRow]{TotalPages: totalPages(total, limit), Data: rows}, nil
}

// Actions returns one page of the action log.
func (s *Service) Actions(ctx context.Context, q ActionQuery) (*Page[ActionLogEntry], error) {
	page, limit, err := paging(q.Page, q.Limit, DefaultActionLimit)
	if err != nil {
		return nil, err
	}
	order, err := sortOrder(q.SortOrder)
	if err != nil {
		return nil, err
	}

	var (
		conds []string
		args  []any
	)

	if ref := strings.TrimSpace(q.Device); ref != "" {
		dev, ok := s.catalogue.Find(ref)
		if !ok {
			return nil, fmt.Errorf("%w: %q", device.ErrInvalidDevice, ref)
		}
		conds = append(conds, "d.device_name = ?")
		args = append(args, dev.Name)
	}

	switch state := strings.ToUpper(strings.TrimSpace(q.State)); state {
	case "", "ALL":
	case device.ActionOn, device.ActionOff:
		conds = append(conds, "a.action = ?")
		args = append(args, state)
	default:
		return nil, fmt.Errorf("%w: unknown state %q", ErrInvalidQuery, q.State)
	}

	if term := strings.TrimSpace(q.Search); term != "" {
		pattern := likePattern(term)
		conds = append(conds, `(d.device_name LIKE ? ESCAPE '\'`+
			` OR a.action LIKE ? ESCAPE '\'`+
			` OR strftime('%d/%m/%Y %H:%M:%S', a.timestamp) LIKE ? ESCAPE '\'`+
			` OR substr(a.timestamp, 1, 19) LIKE ? ESCAPE '\')`)
		args = append(args, pattern, pattern, pattern, pattern)
	}

	where := ""
	if len(conds) > 0 {
		where = "WHERE " + strings.Join(conds, " AND ")
	}
	from := `FROM action_logs a JOIN devices d ON d.device_id = a.device_id ` + where

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) `+from, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting action log: %w", err)
	}

	query := `SELECT a.log_id, d.device_name, a.action, substr(a.timestamp, 1, 19) ` + from +
		` ORDER BY a.timestamp ` + order + `, a.log_id ` + order + ` LIMIT ? OFFSET ?`
	rows, err := s.db.QueryContext(ctx, query, append(args, limit, (page-1)*limit)...)
	if err != nil {
		return nil, fmt.Errorf("querying action log: %w", err)
	}
	defer rows.Close()

	entries := []ActionLogEntry{}
	for rows.Next() {
		var e ActionLogEntry
		if err := rows.Scan(&e.HistoryID, &e.DeviceName, &e.State, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scanning action log: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating action log: %w", err)
	}

	return &Page[ActionLogEntry]{TotalPages: totalPages(total, limit), Data: entries}, nil
}

// AlertCounts returns today's alert count for every sensor type.
func (s *Service) AlertCounts(ctx context.Context) ([]AlertCount, error) {
	today := database.Date(s.cfg.Now(), s.cfg.Location)

	rows, err := s.db.QueryContext(ctx,
		`SELECT type, alert_count, alert_count_last_updated FROM sensors ORDER BY sensor_id`)
	if err != nil {
		return nil, fmt.Errorf("querying alert counts: %w", err)
	}
	defer rows.Close()

	counts := []AlertCount{}
	for rows.Next() {
		var (
			typ         string
			state       sensor.AlertState
			lastUpdated sql.NullString
		)
		if err := rows.Scan(&typ, &state.Count, &lastUpdated); err != nil {
			return nil, fmt.Errorf("scanning alert count: %w", err)
		}
		state.LastUpdated = lastUpdated.String
		counts = append(counts, AlertCount{Type: typ, AlertCountToday: sensor.CountToday(state, today)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating alert counts: %w", err)
	}
	return counts, nil
}

// DeviceStates returns the last confirmed state of every device.
func (s *Service) DeviceStates(ctx context.Context) ([]DeviceState, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT device_name, device_state FROM devices ORDER BY device_id`)
	if err != nil {
		return nil, fmt.Errorf("querying device states: %w", err)
	}
	defer rows.Close()

	states := []DeviceState{}
	for rows.Next() {
		var (
			ds DeviceState
			on int
		)
		if err := rows.Scan(&ds.DeviceName, &on); err != nil {
			return nil, fmt.Errorf("scanning device state: %w", err)
		}
		ds.DeviceState = on == 1
		states = append(states, ds)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating device states: %w", err)
	}
	return states, nil
}

// dateRange restricts raw readings to [start, end+1 day).
func (s *Service) dateRange(p *pivot, start, end string) error {
	if start != "" {
		if _, err := time.Parse(database.DateLayout, start); err != nil {
			return fmt.Errorf("%w: startDate %q", ErrInvalidQuery, start)
		}
		p.whereRaw("d.recorded_at >= ?", start)
	}
	if end != "" {
		t, err := time.Parse(database.DateLayout, end)
		if err != nil {
			return fmt.Errorf("%w: endDate %q", ErrInvalidQuery, end)
		}
		p.whereRaw("d.recorded_at < ?", t.AddDate(0, 0, 1).Format(database.DateLayout))
	}
	return nil
}

// searchAliases resolves a filter category to the columns a search
// applies to.
func (s *Service) searchAliases(p *pivot, category string) ([]string, error) {
	switch c := strings.ToLower(strings.TrimSpace(category)); c {
	case "", FilterAll:
		aliases := []string{timestampColumn}
		for i := range p.keys {
			aliases = append(aliases, metricAlias(i))
		}
		return aliases, nil
	default:
		col, ok := p.column(c)
		if !ok {
			return nil, fmt.Errorf("%w: unknown filterCategory %q", ErrInvalidQuery, category)
		}
		return []string{col}, nil
	}
}

func (s *Service) count(ctx context.Context, p *pivot) (int, error) {
	query, args := p.countSQL()
	var n int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (s *Service) scanPivot(ctx context.Context, p *pivot, query string, args []any) ([]PivotRow, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PivotRow
	for rows.Next() {
		row := PivotRow{keys: p.keys, values: make([]float64, len(p.keys))}
		dest := make([]any, 0, len(p.keys)+1)
		dest = append(dest, &row.Timestamp)
		for i := range row.values {
			dest = append(dest, &row.values[i])
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scanning pivot row: %w", err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func paging(page, limit, defaultLimit int) (int, int, error) {
	if page == 0 {
		page = 1
	}
	if limit == 0 {
		limit = defaultLimit
	}
	if page < 1 {
		return 0, 0, fmt.Errorf("%w: page %d", ErrInvalidQuery, page)
	}
	if limit < 1 || limit > MaxLimit {
		return 0, 0, fmt.Errorf("%w: limit %d outside 1..%d", ErrInvalidQuery, limit, MaxLimit)
	}
	return page, limit, nil
}

func sortOrder(order string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(order)) {
	case "", OrderDesc:
		return "DESC", nil
	case OrderAsc:
		return "ASC", nil
	default:
		return "", fmt.Errorf("%w: unknown sortOrder %q", ErrInvalidQuery, order)
	}
}

func totalPages(total, limit int) int {
	return (total + limit - 1) / limit
}
