package api

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/nerrad567/sensorhub/internal/query"
)

// intParam reads an optional positive integer query parameter.
// Absent or empty yields 0, which the query service treats as its default.
func intParam(values url.Values, name string) (int, error) {
	raw := strings.TrimSpace(values.Get(name))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%w: %s must be a positive integer", query.ErrInvalidQuery, name)
	}
	return n, nil
}
