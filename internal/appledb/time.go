// ABOUTME: Conversion between the stores' 2001-based epochs and standard
// ABOUTME: time, with a raw-value fallback that never drops a row.

package appledb

import (
	"encoding/json"
	"fmt"
	"time"
)

// appleEpoch is the reference date the private stores count from instead
// of the Unix epoch.
var appleEpoch = time.Date(2001, time.January, 1, 0, 0, 0, 0, time.UTC)

// Epoch selects which unit family a store uses. Core Data stores
// (Contacts, Calendar, Reminders, Notes, Mail) record seconds since the
// reference date; the Messages store records nanoseconds since it.
type Epoch int

const (
	EpochSeconds Epoch = iota
	EpochNanoseconds
)

// TimeFromApple converts a dynamically-typed column value in the given
// epoch to standard time. A stored zero means the application never set
// the field and reads as absent. Unparseable values report ok == false;
// the caller keeps the raw value instead of dropping the row.
func TimeFromApple(v any, e Epoch) (time.Time, bool) {
	switch x := v.(type) {
	case int64:
		if x == 0 {
			return time.Time{}, false
		}
		if e == EpochNanoseconds {
			return appleEpoch.Add(time.Duration(x)), true
		}
		return appleEpoch.Add(time.Duration(x) * time.Second), true
	case float64:
		if x == 0 {
			return time.Time{}, false
		}
		if e == EpochNanoseconds {
			return appleEpoch.Add(time.Duration(x)), true
		}
		return appleEpoch.Add(time.Duration(x * float64(time.Second))), true
	case string:
		var f float64
		if _, err := fmt.Sscan(x, &f); err != nil {
			return time.Time{}, false
		}
		return TimeFromApple(f, e)
	case []byte:
		return TimeFromApple(string(x), e)
	default:
		return time.Time{}, false
	}
}

// AppleFromTime converts standard time into the given epoch's stored
// representation, for bind parameters in range and keyset conditions.
func AppleFromTime(t time.Time, e Epoch) int64 {
	d := t.Sub(appleEpoch)
	if e == EpochNanoseconds {
		return d.Nanoseconds()
	}
	return int64(d / time.Second)
}

// AppleFromUnix converts Unix seconds (the cursor's timestamp unit) into
// the given epoch's stored representation.
func AppleFromUnix(sec int64, e Epoch) int64 {
	return AppleFromTime(time.Unix(sec, 0).UTC(), e)
}

// Timestamp is the one temporal representation domain records carry. When
// conversion from the store succeeded, Time is set; when it failed, Raw
// preserves the best available textual form of the original value. Both
// empty means the store had nothing.
type Timestamp struct {
	Time time.Time
	Raw  string
}

// NewTimestamp converts a column value, falling back to its raw text on
// parse failure rather than zeroing the field.
func NewTimestamp(v any, e Epoch) Timestamp {
	if v == nil {
		return Timestamp{}
	}
	if t, ok := TimeFromApple(v, e); ok {
		return Timestamp{Time: t}
	}
	if isStoredZero(v) {
		// A stored zero is "never set", not a parse failure.
		return Timestamp{}
	}
	return Timestamp{Raw: fmt.Sprint(v)}
}

func isStoredZero(v any) bool {
	switch x := v.(type) {
	case int64:
		return x == 0
	case float64:
		return x == 0
	case string:
		var f float64
		_, err := fmt.Sscan(x, &f)
		return err == nil && f == 0
	case []byte:
		return isStoredZero(string(x))
	default:
		return false
	}
}

// IsZero reports whether the store had no usable value at all.
func (t Timestamp) IsZero() bool {
	return t.Time.IsZero() && t.Raw == ""
}

// Unix returns the timestamp as Unix seconds, or 0 when absent or
// unconverted; cursors use this.
func (t Timestamp) Unix() int64 {
	if t.Time.IsZero() {
		return 0
	}
	return t.Time.Unix()
}

func (t Timestamp) String() string {
	switch {
	case !t.Time.IsZero():
		return t.Time.UTC().Format(time.RFC3339)
	case t.Raw != "":
		return t.Raw
	default:
		return ""
	}
}

// MarshalJSON renders RFC 3339 when converted, the raw store value when
// not, and null when absent.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	switch {
	case !t.Time.IsZero():
		return json.Marshal(t.Time.UTC().Format(time.RFC3339))
	case t.Raw != "":
		return json.Marshal(t.Raw)
	default:
		return []byte("null"), nil
	}
}
