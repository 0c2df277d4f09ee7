// ABOUTME: Messages domain: chat/message records, the service interface,
// ABOUTME: and the hybrid composition routing operations per assignment.

package messages

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/2389/grimoire/internal/appledb"
	"github.com/2389/grimoire/internal/backend"
	"github.com/2389/grimoire/internal/fault"
	"github.com/2389/grimoire/internal/page"
)

// Domain is the name this package reports in unsupported errors.
const Domain = "messages"

// Operation names, used by assignments and configuration overrides.
const (
	OpListChats    = "ListChats"
	OpListMessages = "ListMessages"
	OpSearch       = "Search"
	OpSend         = "Send"
)

// Chat is one conversation from the store.
type Chat struct {
	ID          string            `json:"id"`
	GUID        string            `json:"guid,omitempty"`
	Name        string            `json:"name,omitempty"`
	Service     string            `json:"service,omitempty"`
	LastMessage appledb.Timestamp `json:"lastMessage"`
}

// Message is one message from the store. Every field is populated
// defensively; absent columns read as zero values.
type Message struct {
	ID     string            `json:"id"`
	GUID   string            `json:"guid,omitempty"`
	ChatID string            `json:"chatId,omitempty"`
	Sender string            `json:"sender,omitempty"`
	Text   string            `json:"text"`
	Date   appledb.Timestamp `json:"date"`
	FromMe bool              `json:"fromMe"`
	Read   bool              `json:"read"`
}

// MessageQuery narrows ListMessages.
type MessageQuery struct {
	ChatID     string
	UnreadOnly bool
	Limit      int
	Cursor     string
}

// Service is the full messages operation interface. Different backend
// variants implement disjoint subsets of it; the hybrid below presents
// the whole surface and fails unimplemented routes with typed errors.
type Service interface {
	ListChats(ctx context.Context, limit int, cursor string) (page.Page[Chat], error)
	ListMessages(ctx context.Context, q MessageQuery) (page.Page[Message], error)
	Search(ctx context.Context, query string, limit int, cursor string) (page.Page[Message], error)
	Send(ctx context.Context, recipient, text string) error
}

// Scripter runs one automation script; the shared engine satisfies it.
type Scripter interface {
	Run(ctx context.Context, script string) (string, error)
}

// DefaultAssignment is the documented per-operation routing: reads come
// from chat.db (the scripting dictionary exposes no transcripts), sends
// go through the application (the database is a sync artifact).
func DefaultAssignment() backend.Assignment {
	return backend.Assignment{
		OpListChats:    backend.KindFile,
		OpListMessages: backend.KindFile,
		OpSearch:       backend.KindFile,
		OpSend:         backend.KindAutomation,
	}
}

// Config assembles a Hybrid.
type Config struct {
	// DBPath overrides the default chat.db location.
	DBPath string
	// Probe reports broad file access for open-failure reclassification.
	Probe func() bool
	// Engine is the shared automation engine.
	Engine Scripter
	// Assignment routes operations. Nil means DefaultAssignment.
	Assignment backend.Assignment
	Logger     *slog.Logger
}

// Hybrid routes each operation to the assigned backend variant. There is
// no runtime fallback: an operation the assigned variant cannot serve
// fails with the unsupported kind, so failure causes stay attributable.
type Hybrid struct {
	assign backend.Assignment
	file   *FileStore
	auto   *Automation
}

var _ Service = (*Hybrid)(nil)

// New composes the messages service from cfg.
func New(cfg Config) *Hybrid {
	assign := cfg.Assignment
	if assign == nil {
		assign = DefaultAssignment()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	h := &Hybrid{assign: assign}
	h.file = NewFileStore(cfg.DBPath, cfg.Probe, logger.With("component", "messages-file"))
	if cfg.Engine != nil {
		h.auto = &Automation{engine: cfg.Engine}
	}
	return h
}

func (h *Hybrid) ListChats(ctx context.Context, limit int, cursor string) (page.Page[Chat], error) {
	switch h.assign[OpListChats] {
	case backend.KindFile:
		return h.file.ListChats(ctx, limit, cursor)
	case backend.KindAutomation:
		return page.Page[Chat]{}, fault.Unsupported(Domain, OpListChats,
			"the Messages scripting dictionary does not expose chat transcripts; listing chats requires Full Disk Access to chat.db")
	default:
		return page.Page[Chat]{}, h.noVariant(OpListChats)
	}
}

func (h *Hybrid) ListMessages(ctx context.Context, q MessageQuery) (page.Page[Message], error) {
	switch h.assign[OpListMessages] {
	case backend.KindFile:
		return h.file.ListMessages(ctx, q)
	case backend.KindAutomation:
		return page.Page[Message]{}, fault.Unsupported(Domain, OpListMessages,
			"the Messages scripting dictionary does not expose individual message contents; reading them requires Full Disk Access to chat.db")
	default:
		return page.Page[Message]{}, h.noVariant(OpListMessages)
	}
}

func (h *Hybrid) Search(ctx context.Context, query string, limit int, cursor string) (page.Page[Message], error) {
	switch h.assign[OpSearch] {
	case backend.KindFile:
		return h.file.Search(ctx, query, limit, cursor)
	case backend.KindAutomation:
		return page.Page[Message]{}, fault.Unsupported(Domain, OpSearch,
			"the Messages scripting dictionary has no query predicate over message history; search requires Full Disk Access to chat.db")
	default:
		return page.Page[Message]{}, h.noVariant(OpSearch)
	}
}

func (h *Hybrid) Send(ctx context.Context, recipient, text string) error {
	switch h.assign[OpSend] {
	case backend.KindAutomation:
		if h.auto == nil {
			return h.noVariant(OpSend)
		}
		return h.auto.Send(ctx, recipient, text)
	case backend.KindFile:
		return fault.Unsupported(Domain, OpSend,
			"chat.db is a sync artifact; rows inserted directly are not honored by the application. Sending goes through Messages automation")
	default:
		return h.noVariant(OpSend)
	}
}

func (h *Hybrid) noVariant(op string) error {
	k := h.assign[op]
	if k == backend.KindFramework {
		return fault.Unsupported(Domain, op,
			"no documented native API for this domain is callable from this process type; the framework variant is not composed")
	}
	return fault.Unsupported(Domain, op, fmt.Sprintf("no %q variant is composed for this domain", k))
}
