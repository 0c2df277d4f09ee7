// ABOUTME: Messages tool pack: chat listing, message listing, full-text
// ABOUTME: search, and sending over the messages service.

package builtins

import (
	"context"
	"encoding/json"

	"github.com/2389/grimoire/internal/fault"
	"github.com/2389/grimoire/internal/fields"
	"github.com/2389/grimoire/internal/messages"
	"github.com/2389/grimoire/internal/packs"
)

var chatFields = fields.Set{
	Allowed: []string{"id", "guid", "name", "service", "lastMessage"},
	Default: []string{"id", "name", "service", "lastMessage"},
}

var messageFields = fields.Set{
	Allowed: []string{"id", "guid", "chatId", "sender", "text", "date", "fromMe", "read"},
	Default: []string{"id", "chatId", "sender", "text", "date", "fromMe", "read"},
}

type messagesHandlers struct {
	svc messages.Service
}

// MessagesPack wraps a messages service as the builtin:messages pack.
func MessagesPack(svc messages.Service) *packs.BuiltinPack {
	h := &messagesHandlers{svc: svc}
	return &packs.BuiltinPack{
		ID: "builtin:messages",
		Tools: []*packs.BuiltinTool{
			{
				Definition: &packs.ToolDefinition{
					Name:        "messages_list_chats",
					Description: "List chat conversations, most recently active first.",
					InputSchema: json.RawMessage(`{"type":"object","properties":{
						"limit":{"type":"integer","description":"Page size, max 100"},
						"cursor":{"type":"string","description":"Opaque cursor from a previous page"},
						"fields":{"type":"array","items":{"type":"string"},"description":"Fields to return"}
					}}`),
					Capabilities: []string{"messages"},
				},
				Handler: h.ListChats,
			},
			{
				Definition: &packs.ToolDefinition{
					Name:        "messages_list",
					Description: "List messages, newest first, optionally scoped to one chat or to unread only.",
					InputSchema: json.RawMessage(`{"type":"object","properties":{
						"chatId":{"type":"string","description":"Restrict to one chat"},
						"unreadOnly":{"type":"boolean","description":"Only unread incoming messages"},
						"limit":{"type":"integer"},
						"cursor":{"type":"string"},
						"fields":{"type":"array","items":{"type":"string"}}
					}}`),
					Capabilities: []string{"messages"},
				},
				Handler: h.ListMessages,
			},
			{
				Definition: &packs.ToolDefinition{
					Name:        "messages_search",
					Description: "Search message text for a substring.",
					InputSchema: json.RawMessage(`{"type":"object","required":["query"],"properties":{
						"query":{"type":"string"},
						"limit":{"type":"integer"},
						"cursor":{"type":"string"},
						"fields":{"type":"array","items":{"type":"string"}}
					}}`),
					Capabilities: []string{"messages"},
				},
				Handler: h.Search,
			},
			{
				Definition: &packs.ToolDefinition{
					Name:        "messages_send",
					Description: "Send an iMessage to a phone number or email address.",
					InputSchema: json.RawMessage(`{"type":"object","required":["recipient","text"],"properties":{
						"recipient":{"type":"string","description":"Phone number or email address"},
						"text":{"type":"string"}
					}}`),
					Capabilities: []string{"messages"},
				},
				Handler: h.Send,
			},
		},
	}
}

func (h *messagesHandlers) ListChats(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
	var args listArgs
	if err := decodeArgs(input, &args); err != nil {
		return nil, err
	}
	p, err := h.svc.ListChats(ctx, args.Limit, args.Cursor)
	if err != nil {
		return nil, err
	}
	return listResult(p, chatFields, args.Fields)
}

func (h *messagesHandlers) ListMessages(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
	var args struct {
		listArgs
		ChatID     string `json:"chatId,omitempty"`
		UnreadOnly bool   `json:"unreadOnly,omitempty"`
	}
	if err := decodeArgs(input, &args); err != nil {
		return nil, err
	}
	p, err := h.svc.ListMessages(ctx, messages.MessageQuery{
		ChatID:     args.ChatID,
		UnreadOnly: args.UnreadOnly,
		Limit:      args.Limit,
		Cursor:     args.Cursor,
	})
	if err != nil {
		return nil, err
	}
	return listResult(p, messageFields, args.Fields)
}

func (h *messagesHandlers) Search(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
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
	return listResult(p, messageFields, args.Fields)
}

func (h *messagesHandlers) Send(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
	var args struct {
		Recipient string `json:"recipient"`
		Text      string `json:"text"`
	}
	if err := decodeArgs(input, &args); err != nil {
		return nil, err
	}
	if err := h.svc.Send(ctx, args.Recipient, args.Text); err != nil {
		return nil, err
	}
	return json.Marshal(map[string]any{"status": "sent", "recipient": args.Recipient})
}
