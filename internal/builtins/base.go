// ABOUTME: Shared handler plumbing: argument decoding, RFC 3339 time
// ABOUTME: parsing, and the projected list-result envelope.

package builtins

import (
	"encoding/json"
	"time"

	"github.com/2389/grimoire/internal/fault"
	"github.com/2389/grimoire/internal/fields"
	"github.com/2389/grimoire/internal/page"
)

// listArgs are the arguments every paginated list tool shares.
type listArgs struct {
	Limit  int      `json:"limit,omitempty"`
	Cursor string   `json:"cursor,omitempty"`
	Fields []string `json:"fields,omitempty"`
}

// decodeArgs unmarshals tool arguments. A nil or empty payload means no
// arguments and leaves the target at its zero value.
func decodeArgs(input json.RawMessage, v any) error {
	if len(input) == 0 {
		return nil
	}
	if err := json.Unmarshal(input, v); err != nil {
		return fault.BadField("arguments", err.Error())
	}
	return nil
}

// parseTime parses an optional RFC 3339 argument. Empty means unset.
func parseTime(name, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fault.BadField(name, "must be an RFC 3339 timestamp")
	}
	return t, nil
}

// listResult projects a page of records down to the resolved field set and
// marshals the pagination envelope.
func listResult[T any](p page.Page[T], set fields.Set, requested []string) (json.RawMessage, error) {
	chosen, err := set.Resolve(requested)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(p.Items))
	for _, record := range p.Items {
		m, err := fields.Project(record, chosen)
		if err != nil {
			return nil, err
		}
		items = append(items, m)
	}
	out := map[string]any{
		"items":   items,
		"hasMore": p.HasMore,
	}
	if p.NextCursor != "" {
		out["nextCursor"] = p.NextCursor
	}
	return json.Marshal(out)
}

// recordResult projects a single record.
func recordResult(record any, set fields.Set, requested []string) (json.RawMessage, error) {
	chosen, err := set.Resolve(requested)
	if err != nil {
		return nil, err
	}
	m, err := fields.Project(record, chosen)
	if err != nil {
		return nil, err
	}
	return json.Marshal(m)
}
