// ABOUTME: Automation-backed calendar variant: event creation through the
// ABOUTME: Calendar application with locale-safe date construction.

package calendar

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/2389/grimoire/internal/fault"
	"github.com/2389/grimoire/internal/osa"
)

// Automation drives the Calendar application. Only creation is
// implemented; reads come from the store.
type Automation struct {
	engine Scripter
}

// CreateEvent makes a new event. End defaults to one hour after Start.
func (a *Automation) CreateEvent(ctx context.Context, ev NewEvent) error {
	if ev.Title == "" {
		return fault.MissingField("title")
	}
	if ev.Start.IsZero() {
		return fault.MissingField("start")
	}
	if ev.End.IsZero() {
		ev.End = ev.Start.Add(time.Hour)
	}
	if ev.End.Before(ev.Start) {
		return fault.BadField("end", "must not be before start")
	}
	_, err := a.engine.Run(ctx, createEventScript(ev))
	return err
}

func createEventScript(ev NewEvent) string {
	lines := osa.DateLines("startDate", ev.Start)
	lines = append(lines, osa.DateLines("endDate", ev.End)...)

	props := []string{
		fmt.Sprintf("summary:%s", osa.Quote(ev.Title)),
		"start date:startDate",
		"end date:endDate",
	}
	if ev.Location != "" {
		props = append(props, fmt.Sprintf("location:%s", osa.Quote(ev.Location)))
	}
	if ev.Notes != "" {
		props = append(props, fmt.Sprintf("description:%s", osa.Quote(ev.Notes)))
	}
	stmt := fmt.Sprintf("make new event with properties {%s}", strings.Join(props, ", "))

	if ev.Calendar != "" {
		lines = append(lines,
			fmt.Sprintf("tell calendar %s", osa.Quote(ev.Calendar)),
			"\t"+stmt,
			"end tell",
		)
	} else {
		lines = append(lines,
			"tell first calendar",
			"\t"+stmt,
			"end tell",
		)
	}
	return osa.Tell("Calendar", lines...)
}
