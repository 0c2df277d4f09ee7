// ABOUTME: Mail domain: message records, the service interface, and the
// ABOUTME: hybrid composition routing operations per assignment.

package mail

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/2389/grimoire/internal/appledb"
	"github.com/2389/grimoire/internal/backend"
	"github.com/2389/grimoire/internal/fault"
	"github.com/2389/grimoire/internal/page"
)

const Domain = "mail"

// Operation names.
const (
	OpListMessages = "ListMessages"
	OpSearch       = "Search"
	OpSend         = "Send"
)

// Message is one envelope from the index. The index carries metadata
// only; bodies live in per-message files it does not reference reliably.
type Message struct {
	ID        string            `json:"id"`
	Subject   string            `json:"subject"`
	Sender    string            `json:"sender,omitempty"`
	Recipient string            `json:"recipient,omitempty"`
	Mailbox   string            `json:"mailbox,omitempty"`
	Date      appledb.Timestamp `json:"date"`
	Read      bool              `json:"read"`
}

// MessageQuery narrows ListMessages.
type MessageQuery struct {
	Mailbox    string
	UnreadOnly bool
	Limit      int
	Cursor     string
}

// Outgoing is the input to Send.
type Outgoing struct {
	To      string
	Subject string
	Body    string
}

// Service is the full mail operation interface.
type Service interface {
	ListMessages(ctx context.Context, q MessageQuery) (page.Page[Message], error)
	Search(ctx context.Context, query string, limit int, cursor string) (page.Page[Message], error)
	Send(ctx context.Context, out Outgoing) error
}

// Scripter runs one automation script; the shared engine satisfies it.
type Scripter interface {
	Run(ctx context.Context, script string) (string, error)
}

// DefaultAssignment routes reads to the envelope index (mailbox
// iteration via scripting is O(n) against an application that may not be
// running) and sending through the application (the index is a search
// index, not an outbox).
func DefaultAssignment() backend.Assignment {
	return backend.Assignment{
		OpListMessages: backend.KindFile,
		OpSearch:       backend.KindFile,
		OpSend:         backend.KindAutomation,
	}
}

// Config assembles a Hybrid.
type Config struct {
	DBPath     string
	Probe      func() bool
	Engine     Scripter
	Assignment backend.Assignment
	Logger     *slog.Logger
}

// Hybrid routes each operation to the assigned backend variant.
type Hybrid struct {
	assign backend.Assignment
	file   *FileStore
	auto   *Automation
}

var _ Service = (*Hybrid)(nil)

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
	h.file = NewFileStore(cfg.DBPath, cfg.Probe, logger.With("component", "mail-file"))
	if cfg.Engine != nil {
		h.auto = &Automation{engine: cfg.Engine}
	}
	return h
}

func (h *Hybrid) ListMessages(ctx context.Context, q MessageQuery) (page.Page[Message], error) {
	switch h.assign[OpListMessages] {
	case backend.KindFile:
		return h.file.ListMessages(ctx, q)
	case backend.KindAutomation:
		return page.Page[Message]{}, fault.Unsupported(Domain, OpListMessages,
			"iterating mailboxes through the scripting dictionary is one round-trip per message against an application that may not be running; reads come from the envelope index")
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
			"the Mail scripting dictionary has no efficient query predicate; search runs against the envelope index")
	default:
		return page.Page[Message]{}, h.noVariant(OpSearch)
	}
}

func (h *Hybrid) Send(ctx context.Context, out Outgoing) error {
	switch h.assign[OpSend] {
	case backend.KindAutomation:
		if h.auto == nil {
			return h.noVariant(OpSend)
		}
		return h.auto.Send(ctx, out)
	case backend.KindFile:
		return fault.Unsupported(Domain, OpSend,
			"the envelope index is a search index, not an outbox; sending goes through Mail automation")
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
