// ABOUTME: Notes tool pack: listing, search, full-body retrieval, and
// ABOUTME: Markdown note creation over the notes service.

package builtins

import (
	"context"
	"encoding/json"

	"github.com/2389/grimoire/internal/fault"
	"github.com/2389/grimoire/internal/fields"
	"github.com/2389/grimoire/internal/notes"
	"github.com/2389/grimoire/internal/packs"
)

var noteListFields = fields.Set{
	Allowed: []string{"id", "title", "folder", "snippet", "modified"},
	Default: []string{"id", "title", "folder", "snippet", "modified"},
}

var noteGetFields = fields.Set{
	Allowed: []string{"id", "title", "folder", "snippet", "body", "modified"},
	Default: []string{"id", "title", "folder", "body", "modified"},
}

type notesHandlers struct {
	svc notes.Service
}

// NotesPack wraps a notes service as the builtin:notes pack.
func NotesPack(svc notes.Service) *packs.BuiltinPack {
	h := &notesHandlers{svc: svc}
	return &packs.BuiltinPack{
		ID: "builtin:notes",
		Tools: []*packs.BuiltinTool{
			{
				Definition: &packs.ToolDefinition{
					Name:        "notes_list",
					Description: "List notes, most recently modified first. Bodies are omitted; use notes_get.",
					InputSchema: json.RawMessage(`{"type":"object","properties":{
						"limit":{"type":"integer","description":"Page size, max 100"},
						"cursor":{"type":"string"},
						"fields":{"type":"array","items":{"type":"string"}}
					}}`),
					Capabilities: []string{"notes"},
				},
				Handler: h.List,
			},
			{
				Definition: &packs.ToolDefinition{
					Name:        "notes_search",
					Description: "Search note titles and snippets for a substring.",
					InputSchema: json.RawMessage(`{"type":"object","required":["query"],"properties":{
						"query":{"type":"string"},
						"limit":{"type":"integer"},
						"cursor":{"type":"string"},
						"fields":{"type":"array","items":{"type":"string"}}
					}}`),
					Capabilities: []string{"notes"},
				},
				Handler: h.Search,
			},
			{
				Definition: &packs.ToolDefinition{
					Name:        "notes_get",
					Description: "Fetch one note by id, including its full body text.",
					InputSchema: json.RawMessage(`{"type":"object","required":["id"],"properties":{
						"id":{"type":"string","description":"Note id or sync identifier"},
						"fields":{"type":"array","items":{"type":"string"}}
					}}`),
					Capabilities: []string{"notes"},
				},
				Handler: h.Get,
			},
			{
				Definition: &packs.ToolDefinition{
					Name:        "notes_create",
					Description: "Create a note from a title and a Markdown body.",
					InputSchema: json.RawMessage(`{"type":"object","required":["title"],"properties":{
						"title":{"type":"string"},
						"body":{"type":"string","description":"Markdown; rendered to the note format"},
						"folder":{"type":"string","description":"Target folder; default folder when omitted"}
					}}`),
					Capabilities: []string{"notes"},
				},
				Handler: h.Create,
			},
		},
	}
}

func (h *notesHandlers) List(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
	var args listArgs
	if err := decodeArgs(input, &args); err != nil {
		return nil, err
	}
	p, err := h.svc.List(ctx, args.Limit, args.Cursor)
	if err != nil {
		return nil, err
	}
	return listResult(p, noteListFields, args.Fields)
}

func (h *notesHandlers) Search(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
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
	return listResult(p, noteListFields, args.Fields)
}

func (h *notesHandlers) Get(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
	var args struct {
		ID     string   `json:"id"`
		Fields []string `json:"fields,omitempty"`
	}
	if err := decodeArgs(input, &args); err != nil {
		return nil, err
	}
	if args.ID == "" {
		return nil, fault.MissingField("id")
	}
	note, err := h.svc.Get(ctx, args.ID)
	if err != nil {
		return nil, err
	}
	return recordResult(note, noteGetFields, args.Fields)
}

func (h *notesHandlers) Create(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
	var args struct {
		Title  string `json:"title"`
		Body   string `json:"body,omitempty"`
		Folder string `json:"folder,omitempty"`
	}
	if err := decodeArgs(input, &args); err != nil {
		return nil, err
	}
	if err := h.svc.Create(ctx, args.Title, args.Body, args.Folder); err != nil {
		return nil, err
	}
	return json.Marshal(map[string]any{"status": "created", "title": args.Title})
}
