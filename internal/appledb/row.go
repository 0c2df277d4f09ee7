// ABOUTME: Dynamically-typed result rows with defensive accessors; every
// ABOUTME: column is potentially absent and reads never panic.

package appledb

import "strconv"

// Row maps column names to dynamically-typed scalars: int64, float64,
// string, []byte, or nil. Rows are transient query results; mappers
// convert them to typed domain records immediately and must treat every
// column as possibly absent.
type Row map[string]any

// Has reports whether col is present with a non-nil value.
func (r Row) Has(col string) bool {
	v, ok := r[col]
	return ok && v != nil
}

// Text reads col as a string, converting numeric columns when the store
// declared a looser type than the caller expected.
func (r Row) Text(col string) (string, bool) {
	switch v := r[col].(type) {
	case string:
		return v, true
	case []byte:
		return string(v), true
	case int64:
		return strconv.FormatInt(v, 10), true
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64), true
	default:
		return "", false
	}
}

// Int reads col as an integer.
func (r Row) Int(col string) (int64, bool) {
	switch v := r[col].(type) {
	case int64:
		return v, true
	case float64:
		return int64(v), true
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		return n, err == nil
	default:
		return 0, false
	}
}

// Float reads col as a floating-point value.
func (r Row) Float(col string) (float64, bool) {
	switch v := r[col].(type) {
	case float64:
		return v, true
	case int64:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(v, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// Blob reads col as raw bytes.
func (r Row) Blob(col string) ([]byte, bool) {
	switch v := r[col].(type) {
	case []byte:
		return v, true
	case string:
		return []byte(v), true
	default:
		return nil, false
	}
}

// Bool reads col as a boolean, treating any non-zero integer as true.
func (r Row) Bool(col string) (bool, bool) {
	n, ok := r.Int(col)
	return n != 0, ok
}
