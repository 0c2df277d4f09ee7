// ABOUTME: Calendar domain: event records, the service interface, and the
// ABOUTME: hybrid composition routing operations per assignment.

package calendar

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/2389/grimoire/internal/appledb"
	"github.com/2389/grimoire/internal/backend"
	"github.com/2389/grimoire/internal/fault"
	"github.com/2389/grimoire/internal/page"
)

const Domain = "calendar"

// Operation names.
const (
	OpListEvents  = "ListEvents"
	OpSearch      = "Search"
	OpCreateEvent = "CreateEvent"
)

// Event is one calendar item from the store.
type Event struct {
	ID           string            `json:"id"`
	Title        string            `json:"title"`
	CalendarName string            `json:"calendarName,omitempty"`
	Location     string            `json:"location,omitempty"`
	Notes        string            `json:"notes,omitempty"`
	Start        appledb.Timestamp `json:"start"`
	End          appledb.Timestamp `json:"end"`
	AllDay       bool              `json:"allDay"`
}

// EventQuery narrows ListEvents. Zero From/To mean unbounded.
type EventQuery struct {
	From   time.Time
	To     time.Time
	Limit  int
	Cursor string
}

// NewEvent is the input to CreateEvent. End defaults to one hour after
// Start; Calendar defaults to the application's first calendar.
type NewEvent struct {
	Title    string
	Calendar string
	Location string
	Notes    string
	Start    time.Time
	End      time.Time
}

// Service is the full calendar operation interface.
type Service interface {
	ListEvents(ctx context.Context, q EventQuery) (page.Page[Event], error)
	Search(ctx context.Context, query string, limit int, cursor string) (page.Page[Event], error)
	CreateEvent(ctx context.Context, ev NewEvent) error
}

// Scripter runs one automation script; the shared engine satisfies it.
type Scripter interface {
	Run(ctx context.Context, script string) (string, error)
}

// DefaultAssignment routes reads to the store (enumerating events through
// a possibly-hung application is O(n) round-trips) and creation through
// the application (direct inserts bypass its scheduling engine).
func DefaultAssignment() backend.Assignment {
	return backend.Assignment{
		OpListEvents:  backend.KindFile,
		OpSearch:      backend.KindFile,
		OpCreateEvent: backend.KindAutomation,
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
	h.file = NewFileStore(cfg.DBPath, cfg.Probe, logger.With("component", "calendar-file"))
	if cfg.Engine != nil {
		h.auto = &Automation{engine: cfg.Engine}
	}
	return h
}

func (h *Hybrid) ListEvents(ctx context.Context, q EventQuery) (page.Page[Event], error) {
	switch h.assign[OpListEvents] {
	case backend.KindFile:
		return h.file.ListEvents(ctx, q)
	case backend.KindAutomation:
		return page.Page[Event]{}, fault.Unsupported(Domain, OpListEvents,
			"enumerating events through the scripting dictionary is one round-trip per event against an application that may be hung; bulk reads come from the calendar store")
	default:
		return page.Page[Event]{}, h.noVariant(OpListEvents)
	}
}

func (h *Hybrid) Search(ctx context.Context, query string, limit int, cursor string) (page.Page[Event], error) {
	switch h.assign[OpSearch] {
	case backend.KindFile:
		return h.file.Search(ctx, query, limit, cursor)
	case backend.KindAutomation:
		return page.Page[Event]{}, fault.Unsupported(Domain, OpSearch,
			"the Calendar scripting dictionary has no query predicate over event history; search runs against the calendar store")
	default:
		return page.Page[Event]{}, h.noVariant(OpSearch)
	}
}

func (h *Hybrid) CreateEvent(ctx context.Context, ev NewEvent) error {
	switch h.assign[OpCreateEvent] {
	case backend.KindAutomation:
		if h.auto == nil {
			return h.noVariant(OpCreateEvent)
		}
		return h.auto.CreateEvent(ctx, ev)
	case backend.KindFile:
		return fault.Unsupported(Domain, OpCreateEvent,
			"rows inserted into the calendar store directly bypass the application's scheduling engine; creation goes through Calendar automation")
	default:
		return h.noVariant(OpCreateEvent)
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
