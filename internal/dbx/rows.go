package dbx

import (
	"database/sql"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Row is one result row keyed by column name.
type Row map[string]any

// ScanRows reads every remaining row into a Row. Byte slices are returned
// as strings because Postgres text columns arrive that way through some
// drivers. rows is closed before returning.
func ScanRows(rows *sql.Rows) ([]Row, error) {
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read columns: %w", err)
	}

	out := []Row{}
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}

		r := make(Row, len(cols))
		for i, c := range cols {
			if b, ok := values[i].([]byte); ok {
				r[c] = string(b)
				continue
			}
			r[c] = values[i]
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return out, nil
}

// Int64 converts an integral column value to int64. Numeric columns may
// arrive as strings or float64; a fractional value is rejected.
func (r Row) Int64(col string) (int64, bool) {
	switch v := r[col].(type) {
	case int64:
		return v, true
	case int32:
		return int64(v), true
	case int:
		return int64(v), true
	case float64:
		return integral(v)
	case string:
		s := strings.TrimSpace(v)
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n, true
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		return integral(f)
	default:
		return 0, false
	}
}

func integral(f float64) (int64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) || math.Abs(f) >= 1<<63 {
		return 0, false
	}
	return int64(f), true
}

// Flag reads a boolean answer. Counts are accepted too, non-zero meaning
// true.
func (r Row) Flag(col string) (bool, bool) {
	if b, ok := r[col].(bool); ok {
		return b, true
	}
	n, ok := r.Int64(col)
	if !ok {
		return false, false
	}
	return n != 0, true
}

// String returns a text column value.
func (r Row) String(col string) (string, bool) {
	v, ok := r[col].(string)
	return v, ok
}
