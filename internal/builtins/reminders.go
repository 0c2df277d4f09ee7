// ABOUTME: Reminders tool pack: list enumeration, reminder listing,
// ABOUTME: creation, and completion over the reminders service.

package builtins

import (
	"context"
	"encoding/json"

	"github.com/2389/grimoire/internal/fault"
	"github.com/2389/grimoire/internal/fields"
	"github.com/2389/grimoire/internal/packs"
	"github.com/2389/grimoire/internal/reminders"
)

var reminderFields = fields.Set{
	Allowed: []string{"id", "title", "listName", "notes", "due", "completed"},
	Default: []string{"id", "title", "listName", "due", "completed"},
}

type remindersHandlers struct {
	svc reminders.Service
}

// RemindersPack wraps a reminders service as the builtin:reminders pack.
func RemindersPack(svc reminders.Service) *packs.BuiltinPack {
	h := &remindersHandlers{svc: svc}
	return &packs.BuiltinPack{
		ID: "builtin:reminders",
		Tools: []*packs.BuiltinTool{
			{
				Definition: &packs.ToolDefinition{
					Name:         "reminders_lists",
					Description:  "Enumerate reminder lists.",
					InputSchema:  json.RawMessage(`{"type":"object","properties":{}}`),
					Capabilities: []string{"reminders"},
				},
				Handler: h.Lists,
			},
			{
				Definition: &packs.ToolDefinition{
					Name:        "reminders_list",
					Description: "List reminders, newest first. Completed reminders are hidden unless asked for.",
					InputSchema: json.RawMessage(`{"type":"object","properties":{
						"list":{"type":"string","description":"Restrict to one list by name"},
						"includeCompleted":{"type":"boolean"},
						"limit":{"type":"integer","description":"Page size, max 100"},
						"cursor":{"type":"string"},
						"fields":{"type":"array","items":{"type":"string"}}
					}}`),
					Capabilities: []string{"reminders"},
				},
				Handler: h.List,
			},
			{
				Definition: &packs.ToolDefinition{
					Name:        "reminders_create",
					Description: "Create a reminder, optionally with notes, a due date, and a target list.",
					InputSchema: json.RawMessage(`{"type":"object","required":["title"],"properties":{
						"title":{"type":"string"},
						"list":{"type":"string","description":"Target list; default list when omitted"},
						"notes":{"type":"string"},
						"due":{"type":"string","description":"RFC 3339"}
					}}`),
					Capabilities: []string{"reminders"},
				},
				Handler: h.Create,
			},
			{
				Definition: &packs.ToolDefinition{
					Name:        "reminders_complete",
					Description: "Mark every open reminder with the given title as completed.",
					InputSchema: json.RawMessage(`{"type":"object","required":["title"],"properties":{
						"title":{"type":"string"}
					}}`),
					Capabilities: []string{"reminders"},
				},
				Handler: h.Complete,
			},
		},
	}
}

func (h *remindersHandlers) Lists(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
	lists, err := h.svc.ListLists(ctx)
	if err != nil {
		return nil, err
	}
	return json.Marshal(map[string]any{"lists": lists, "count": len(lists)})
}

func (h *remindersHandlers) List(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
	var args struct {
		listArgs
		List             string `json:"list,omitempty"`
		IncludeCompleted bool   `json:"includeCompleted,omitempty"`
	}
	if err := decodeArgs(input, &args); err != nil {
		return nil, err
	}
	p, err := h.svc.ListReminders(ctx, reminders.ReminderQuery{
		ListName:         args.List,
		IncludeCompleted: args.IncludeCompleted,
		Limit:            args.Limit,
		Cursor:           args.Cursor,
	})
	if err != nil {
		return nil, err
	}
	return listResult(p, reminderFields, args.Fields)
}

func (h *remindersHandlers) Create(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
	var args struct {
		Title string `json:"title"`
		List  string `json:"list,omitempty"`
		Notes string `json:"notes,omitempty"`
		Due   string `json:"due,omitempty"`
	}
	if err := decodeArgs(input, &args); err != nil {
		return nil, err
	}
	due, err := parseTime("due", args.Due)
	if err != nil {
		return nil, err
	}
	if err := h.svc.Create(ctx, reminders.NewReminder{
		Title: args.Title,
		List:  args.List,
		Notes: args.Notes,
		Due:   due,
	}); err != nil {
		return nil, err
	}
	return json.Marshal(map[string]any{"status": "created", "title": args.Title})
}

func (h *remindersHandlers) Complete(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
	var args struct {
		Title string `json:"title"`
	}
	if err := decodeArgs(input, &args); err != nil {
		return nil, err
	}
	if args.Title == "" {
		return nil, fault.MissingField("title")
	}
	n, err := h.svc.Complete(ctx, args.Title)
	if err != nil {
		return nil, err
	}
	return json.Marshal(map[string]any{"status": "completed", "count": n})
}
