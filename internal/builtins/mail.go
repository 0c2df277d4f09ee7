// ABOUTME: Mail tool pack: envelope listing, subject and sender search,
// ABOUTME: and sending over the mail service.

package builtins

import (
	"context"
	"encoding/json"

	"github.com/2389/grimoire/internal/fault"
	"github.com/2389/grimoire/internal/fields"
	"github.com/2389/grimoire/internal/mail"
	"github.com/2389/grimoire/internal/packs"
)

var mailFields = fields.Set{
	Allowed: []string{"id", "subject", "sender", "recipient", "mailbox", "date", "read"},
	Default: []string{"id", "subject", "sender", "mailbox", "date", "read"},
}

type mailHandlers struct {
	svc mail.Service
}

// MailPack wraps a mail service as the builtin:mail pack.
func MailPack(svc mail.Service) *packs.BuiltinPack {
	h := &mailHandlers{svc: svc}
	return &packs.BuiltinPack{
		ID: "builtin:mail",
		Tools: []*packs.BuiltinTool{
			{
				Definition: &packs.ToolDefinition{
					Name:        "mail_list",
					Description: "List mail envelopes, newest first, optionally scoped to one mailbox or to unread only.",
					InputSchema: json.RawMessage(`{"type":"object","properties":{
						"mailbox":{"type":"string","description":"Mailbox name, e.g. INBOX"},
						"unreadOnly":{"type":"boolean"},
						"limit":{"type":"integer","description":"Page size, max 100"},
						"cursor":{"type":"string"},
						"fields":{"type":"array","items":{"type":"string"}}
					}}`),
					Capabilities: []string{"mail"},
				},
				Handler: h.List,
			},
			{
				Definition: &packs.ToolDefinition{
					Name:        "mail_search",
					Description: "Search mail subjects and senders for a substring.",
					InputSchema: json.RawMessage(`{"type":"object","required":["query"],"properties":{
						"query":{"type":"string"},
						"limit":{"type":"integer"},
						"cursor":{"type":"string"},
						"fields":{"type":"array","items":{"type":"string"}}
					}}`),
					Capabilities: []string{"mail"},
				},
				Handler: h.Search,
			},
			{
				Definition: &packs.ToolDefinition{
					Name:        "mail_send",
					Description: "Compose and send an email through the default account.",
					InputSchema: json.RawMessage(`{"type":"object","required":["to","subject"],"properties":{
						"to":{"type":"string","description":"Recipient address"},
						"subject":{"type":"string"},
						"body":{"type":"string"}
					}}`),
					Capabilities: []string{"mail"},
				},
				Handler: h.Send,
			},
		},
	}
}

func (h *mailHandlers) List(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
	var args struct {
		listArgs
		Mailbox    string `json:"mailbox,omitempty"`
		UnreadOnly bool   `json:"unreadOnly,omitempty"`
	}
	if err := decodeArgs(input, &args); err != nil {
		return nil, err
	}
	p, err := h.svc.ListMessages(ctx, mail.MessageQuery{
		Mailbox:    args.Mailbox,
		UnreadOnly: args.UnreadOnly,
		Limit:      args.Limit,
		Cursor:     args.Cursor,
	})
	if err != nil {
		return nil, err
	}
	return listResult(p, mailFields, args.Fields)
}

func (h *mailHandlers) Search(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
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
	return listResult(p, mailFields, args.Fields)
}

func (h *mailHandlers) Send(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
	var args struct {
		To      string `json:"to"`
		Subject string `json:"subject"`
		Body    string `json:"body,omitempty"`
	}
	if err := decodeArgs(input, &args); err != nil {
		return nil, err
	}
	if err := h.svc.Send(ctx, mail.Outgoing{To: args.To, Subject: args.Subject, Body: args.Body}); err != nil {
		return nil, err
	}
	return json.Marshal(map[string]any{"status": "sent", "to": args.To})
}
