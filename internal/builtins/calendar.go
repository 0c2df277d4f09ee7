// ABOUTME: Calendar tool pack: event listing over a time range, search,
// ABOUTME: and event creation over the calendar service.

package builtins

import (
	"context"
	"encoding/json"

	"github.com/2389/grimoire/internal/calendar"
	"github.com/2389/grimoire/internal/fault"
	"github.com/2389/grimoire/internal/fields"
	"github.com/2389/grimoire/internal/packs"
)

var eventFields = fields.Set{
	Allowed: []string{"id", "title", "calendarName", "location", "notes", "start", "end", "allDay"},
	Default: []string{"id", "title", "calendarName", "location", "start", "end", "allDay"},
}

type calendarHandlers struct {
	svc calendar.Service
}

// CalendarPack wraps a calendar service as the builtin:calendar pack.
func CalendarPack(svc calendar.Service) *packs.BuiltinPack {
	h := &calendarHandlers{svc: svc}
	return &packs.BuiltinPack{
		ID: "builtin:calendar",
		Tools: []*packs.BuiltinTool{
			{
				Definition: &packs.ToolDefinition{
					Name:        "calendar_list_events",
					Description: "List events in start order, optionally bounded to a time range.",
					InputSchema: json.RawMessage(`{"type":"object","properties":{
						"from":{"type":"string","description":"RFC 3339 lower bound on start time"},
						"to":{"type":"string","description":"RFC 3339 upper bound on start time"},
						"limit":{"type":"integer","description":"Page size, max 100"},
						"cursor":{"type":"string"},
						"fields":{"type":"array","items":{"type":"string"}}
					}}`),
					Capabilities: []string{"calendar"},
				},
				Handler: h.ListEvents,
			},
			{
				Definition: &packs.ToolDefinition{
					Name:        "calendar_search",
					Description: "Search event titles, notes, and locations for a substring.",
					InputSchema: json.RawMessage(`{"type":"object","required":["query"],"properties":{
						"query":{"type":"string"},
						"limit":{"type":"integer"},
						"cursor":{"type":"string"},
						"fields":{"type":"array","items":{"type":"string"}}
					}}`),
					Capabilities: []string{"calendar"},
				},
				Handler: h.Search,
			},
			{
				Definition: &packs.ToolDefinition{
					Name:        "calendar_create_event",
					Description: "Create a calendar event. End defaults to one hour after start.",
					InputSchema: json.RawMessage(`{"type":"object","required":["title","start"],"properties":{
						"title":{"type":"string"},
						"calendar":{"type":"string","description":"Calendar name; first calendar when omitted"},
						"location":{"type":"string"},
						"notes":{"type":"string"},
						"start":{"type":"string","description":"RFC 3339"},
						"end":{"type":"string","description":"RFC 3339"}
					}}`),
					Capabilities: []string{"calendar"},
				},
				Handler: h.CreateEvent,
			},
		},
	}
}

func (h *calendarHandlers) ListEvents(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
	var args struct {
		listArgs
		From string `json:"from,omitempty"`
		To   string `json:"to,omitempty"`
	}
	if err := decodeArgs(input, &args); err != nil {
		return nil, err
	}
	from, err := parseTime("from", args.From)
	if err != nil {
		return nil, err
	}
	to, err := parseTime("to", args.To)
	if err != nil {
		return nil, err
	}
	p, err := h.svc.ListEvents(ctx, calendar.EventQuery{
		From:   from,
		To:     to,
		Limit:  args.Limit,
		Cursor: args.Cursor,
	})
	if err != nil {
		return nil, err
	}
	return listResult(p, eventFields, args.Fields)
}

func (h *calendarHandlers) Search(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
	var args struct {
		listArgs
		Query string `json:"query"`
	}
	if err := decodeArgs(input, &args); err != nil {
		return nil, err
	}
	if args.Query == "" {
		return nil, fault.MissingField("query")
	}
	p, err := h.svc.Search(ctx, args.Query, args.Limit, args.Cursor)
	if err != nil {
		return nil, err
	}
	return listResult(p, eventFields, args.Fields)
}

func (h *calendarHandlers) CreateEvent(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
	var args struct {
		Title    string `json:"title"`
		Calendar string `json:"calendar,omitempty"`
		Location string `json:"location,omitempty"`
		Notes    string `json:"notes,omitempty"`
		Start    string `json:"start"`
		End      string `json:"end,omitempty"`
	}
	if err := decodeArgs(input, &args); err != nil {
		return nil, err
	}
	if args.Start == "" {
		return nil, fault.MissingField("start")
	}
	start, err := parseTime("start", args.Start)
	if err != nil {
		return nil, err
	}
	end, err := parseTime("end", args.End)
	if err != nil {
		return nil, err
	}
	if err := h.svc.CreateEvent(ctx, calendar.NewEvent{
		Title:    args.Title,
		Calendar: args.Calendar,
		Location: args.Location,
		Notes:    args.Notes,
		Start:    start,
		End:      end,
	}); err != nil {
		return nil, err
	}
	return json.Marshal(map[string]any{"status": "created", "title": args.Title})
}
