package query

import "errors"

// ErrInvalidQuery is returned for out-of-range paging, unknown sort or
// filter columns and malformed dates.
var ErrInvalidQuery = errors.New("query: invalid query")
