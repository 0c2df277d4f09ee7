// ABOUTME: Automation-variant tests: input validation, locale-safe date
// ABOUTME: construction, and a golden pinning the create script.

package calendar

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/grimoire/internal/fault"
)

type scriptFunc func(ctx context.Context, script string) (string, error)

func (f scriptFunc) Run(ctx context.Context, script string) (string, error) { return f(ctx, script) }

func TestCreateEventValidation(t *testing.T) {
	a := &Automation{engine: scriptFunc(func(context.Context, string) (string, error) {
		t.Fatal("engine must not run on invalid input")
		return "", nil
	})}

	err := a.CreateEvent(context.Background(), NewEvent{Start: time.Now()})
	assert.True(t, errors.Is(err, fault.ErrValidation), "missing title")

	err = a.CreateEvent(context.Background(), NewEvent{Title: "x"})
	assert.True(t, errors.Is(err, fault.ErrValidation), "missing start")

	start := time.Now()
	err = a.CreateEvent(context.Background(), NewEvent{Title: "x", Start: start, End: start.Add(-time.Hour)})
	assert.True(t, errors.Is(err, fault.ErrValidation), "end before start")
}

func TestCreateEventDefaultsEndAndCalendar(t *testing.T) {
	var got string
	a := &Automation{engine: scriptFunc(func(_ context.Context, script string) (string, error) {
		got = script
		return "", nil
	})}

	start := time.Date(2024, 3, 22, 9, 0, 0, 0, time.Local)
	require.NoError(t, a.CreateEvent(context.Background(), NewEvent{Title: "Review", Start: start}))
	assert.Contains(t, got, "tell first calendar")
	assert.Contains(t, got, "set time of startDate to 32400")
	assert.Contains(t, got, "set time of endDate to 36000", "end defaults to one hour after start")
	assert.NotContains(t, got, "location:")
}

// Dates are built by setting components, never by parsing a formatted
// string in the host locale.
func TestCreateEventScriptSetsDateComponents(t *testing.T) {
	var got string
	a := &Automation{engine: scriptFunc(func(_ context.Context, script string) (string, error) {
		got = script
		return "", nil
	})}

	start := time.Date(2024, 3, 22, 14, 30, 0, 0, time.Local)
	require.NoError(t, a.CreateEvent(context.Background(), NewEvent{
		Title: "Dentist", Calendar: "Home", Start: start, End: start.Add(30 * time.Minute),
	}))
	assert.Contains(t, got, "set year of startDate to 2024")
	assert.Contains(t, got, "set month of startDate to 3")
	assert.Contains(t, got, "set day of startDate to 22")
	assert.Contains(t, got, "set time of startDate to 52200")
	assert.Contains(t, got, `tell calendar "Home"`)
}

func TestCreateEventScriptGolden(t *testing.T) {
	start := time.Date(2024, 3, 22, 14, 30, 0, 0, time.Local)
	ev := NewEvent{
		Title:    "Design review",
		Calendar: "Work",
		Location: "Conference Room B",
		Notes:    "bring the printouts",
		Start:    start,
		End:      start.Add(time.Hour),
	}
	g := goldie.New(t)
	g.Assert(t, "create_event_script", []byte(createEventScript(ev)))
}
