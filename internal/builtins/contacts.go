// ABOUTME: Contacts tool pack: read-only listing, search, and lookup
// ABOUTME: over the contacts service.

package builtins

import (
	"context"
	"encoding/json"

	"github.com/2389/grimoire/internal/contacts"
	"github.com/2389/grimoire/internal/fault"
	"github.com/2389/grimoire/internal/fields"
	"github.com/2389/grimoire/internal/packs"
)

var contactFields = fields.Set{
	Allowed: []string{"id", "firstName", "lastName", "organization", "phones", "emails", "modified"},
	Default: []string{"id", "firstName", "lastName", "organization", "phones", "emails"},
}

type contactsHandlers struct {
	svc contacts.Service
}

// ContactsPack wraps a contacts service as the builtin:contacts pack.
func ContactsPack(svc contacts.Service) *packs.BuiltinPack {
	h := &contactsHandlers{svc: svc}
	return &packs.BuiltinPack{
		ID: "builtin:contacts",
		Tools: []*packs.BuiltinTool{
			{
				Definition: &packs.ToolDefinition{
					Name:        "contacts_list",
					Description: "List contacts in stable id order.",
					InputSchema: json.RawMessage(`{"type":"object","properties":{
						"limit":{"type":"integer","description":"Page size, max 100"},
						"cursor":{"type":"string"},
						"fields":{"type":"array","items":{"type":"string"}}
					}}`),
					Capabilities: []string{"contacts"},
				},
				Handler: h.List,
			},
			{
				Definition: &packs.ToolDefinition{
					Name:        "contacts_search",
					Description: "Search contacts by name, organization, email, or phone number.",
					InputSchema: json.RawMessage(`{"type":"object","required":["query"],"properties":{
						"query":{"type":"string"},
						"limit":{"type":"integer"},
						"cursor":{"type":"string"},
						"fields":{"type":"array","items":{"type":"string"}}
					}}`),
					Capabilities: []string{"contacts"},
				},
				Handler: h.Search,
			},
			{
				Definition: &packs.ToolDefinition{
					Name:        "contacts_get",
					Description: "Fetch one contact by id.",
					InputSchema: json.RawMessage(`{"type":"object","required":["id"],"properties":{
						"id":{"type":"string"},
						"fields":{"type":"array","items":{"type":"string"}}
					}}`),
					Capabilities: []string{"contacts"},
				},
				Handler: h.Get,
			},
		},
	}
}

func (h *contactsHandlers) List(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
	var args listArgs
	if err := decodeArgs(input, &args); err != nil {
		return nil, err
	}
	p, err := h.svc.List(ctx, args.Limit, args.Cursor)
	if err != nil {
		return nil, err
	}
	return listResult(p, contactFields, args.Fields)
}

func (h *contactsHandlers) Search(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
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
	return listResult(p, contactFields, args.Fields)
}

func (h *contactsHandlers) Get(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
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
	c, err := h.svc.Get(ctx, args.ID)
	if err != nil {
		return nil, err
	}
	return recordResult(c, contactFields, args.Fields)
}
