package database

import "time"

// Stored time formats. Timestamps are local civil time in the site's
// fixed offset, so they sort lexically and read naturally in queries.
const (
	TimestampLayout = "2006-01-02 15:04:05.000"
	DateLayout      = "2006-01-02"
)

// Timestamp formats t in loc for a TEXT timestamp column.
func Timestamp(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(TimestampLayout)
}

// Date formats the calendar day of t in loc.
func Date(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(DateLayout)
}
