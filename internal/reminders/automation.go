// ABOUTME: Automation-backed reminders variant: creation and
// ABOUTME: title-addressed completion through the Reminders application.

package reminders

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/2389/grimoire/internal/fault"
	"github.com/2389/grimoire/internal/osa"
)

// Automation drives the Reminders application.
type Automation struct {
	engine Scripter
}

// Create makes a new reminder.
func (a *Automation) Create(ctx context.Context, r NewReminder) error {
	if r.Title == "" {
		return fault.MissingField("title")
	}
	_, err := a.engine.Run(ctx, createScript(r))
	return err
}

// Complete marks every incomplete reminder with the given title done and
// returns how many it completed. No match is a not-found error:
// completion is addressed by title because the scripting dictionary
// exposes no stable identifiers shared with the store.
func (a *Automation) Complete(ctx context.Context, title string) (int, error) {
	if title == "" {
		return 0, fault.MissingField("title")
	}
	out, err := a.engine.Run(ctx, completeScript(title))
	if err != nil {
		return 0, err
	}
	n, convErr := strconv.Atoi(strings.TrimSpace(out))
	if convErr != nil {
		return 0, fault.ExecutionFailed(
			fmt.Sprintf("completion script returned %q, expected a count", out), convErr)
	}
	if n == 0 {
		return 0, fault.NotFound("reminder", title)
	}
	return n, nil
}

func createScript(r NewReminder) string {
	props := []string{fmt.Sprintf("name:%s", osa.Quote(r.Title))}
	if r.Notes != "" {
		props = append(props, fmt.Sprintf("body:%s", osa.Quote(r.Notes)))
	}
	var lines []string
	if !r.Due.IsZero() {
		lines = append(lines, osa.DateLines("dueDate", r.Due)...)
		props = append(props, "due date:dueDate")
	}
	stmt := fmt.Sprintf("make new reminder with properties {%s}", strings.Join(props, ", "))

	if r.List != "" {
		lines = append(lines,
			fmt.Sprintf("tell list %s", osa.Quote(r.List)),
			"\t"+stmt,
			"end tell",
		)
	} else {
		lines = append(lines, stmt)
	}
	return osa.Tell("Reminders", lines...)
}

func completeScript(title string) string {
	return osa.Tell("Reminders",
		fmt.Sprintf("set matches to (every reminder whose name is %s and completed is false)", osa.Quote(title)),
		"repeat with r in matches",
		"\tset completed of r to true",
		"end repeat",
		"return count of matches",
	)
}
