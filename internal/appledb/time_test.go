// ABOUTME: Epoch conversion tests: both 2001-based unit families, the
// ABOUTME: raw-value fallback, and Timestamp JSON rendering.

package appledb

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimeFromAppleSeconds(t *testing.T) {
	// 2024-01-15 00:00:00 UTC is 726 969 600 seconds after 2001-01-01.
	got, ok := TimeFromApple(int64(726969600), EpochSeconds)
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), got)
}

func TestTimeFromAppleNanoseconds(t *testing.T) {
	got, ok := TimeFromApple(int64(726969600)*int64(time.Second), EpochNanoseconds)
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), got)
}

func TestTimeFromAppleFloatSeconds(t *testing.T) {
	got, ok := TimeFromApple(float64(726969600.5), EpochSeconds)
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 1, 15, 0, 0, 0, 500000000, time.UTC), got)
}

func TestTimeFromAppleZeroMeansNeverSet(t *testing.T) {
	_, ok := TimeFromApple(int64(0), EpochSeconds)
	assert.False(t, ok)
	_, ok = TimeFromApple(float64(0), EpochNanoseconds)
	assert.False(t, ok)
}

func TestTimeFromAppleTextColumn(t *testing.T) {
	// Some store versions declare the column loosely and return text.
	got, ok := TimeFromApple("726969600", EpochSeconds)
	require.True(t, ok)
	assert.Equal(t, 2024, got.Year())
}

func TestAppleRoundTrip(t *testing.T) {
	at := time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC)
	for _, e := range []Epoch{EpochSeconds, EpochNanoseconds} {
		raw := AppleFromTime(at, e)
		got, ok := TimeFromApple(raw, e)
		require.True(t, ok)
		assert.True(t, at.Equal(got), "epoch %v", e)
	}
}

func TestAppleFromUnix(t *testing.T) {
	unix := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC).Unix()
	assert.Equal(t, int64(726969600), AppleFromUnix(unix, EpochSeconds))
	assert.Equal(t, int64(726969600)*int64(time.Second), AppleFromUnix(unix, EpochNanoseconds))
}

func TestNewTimestampKeepsRawOnParseFailure(t *testing.T) {
	// The row is never dropped: an unparseable store value survives as its
	// raw text.
	ts := NewTimestamp("not-a-number", EpochSeconds)
	assert.True(t, ts.Time.IsZero())
	assert.Equal(t, "not-a-number", ts.Raw)
	assert.False(t, ts.IsZero())
}

func TestNewTimestampAbsentAndZero(t *testing.T) {
	assert.True(t, NewTimestamp(nil, EpochSeconds).IsZero())
	assert.True(t, NewTimestamp(int64(0), EpochSeconds).IsZero(), "stored zero is never-set, not a parse failure")
}

func TestTimestampJSON(t *testing.T) {
	valid := NewTimestamp(int64(726969600), EpochSeconds)
	raw, err := json.Marshal(valid)
	require.NoError(t, err)
	assert.Equal(t, `"2024-01-15T00:00:00Z"`, string(raw))

	fallback := NewTimestamp("garbage", EpochSeconds)
	raw, err = json.Marshal(fallback)
	require.NoError(t, err)
	assert.Equal(t, `"garbage"`, string(raw))

	absent := Timestamp{}
	raw, err = json.Marshal(absent)
	require.NoError(t, err)
	assert.Equal(t, "null", string(raw))
}

func TestTimestampUnix(t *testing.T) {
	ts := NewTimestamp(int64(726969600), EpochSeconds)
	assert.Equal(t, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC).Unix(), ts.Unix())
	assert.Zero(t, Timestamp{Raw: "x"}.Unix())
}
