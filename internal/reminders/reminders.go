// ABOUTME: Reminders domain: reminder/list records, the service
// ABOUTME: interface, and the hybrid composition.

package reminders

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

const Domain = "reminders"

// Operation names.
const (
	OpListLists     = "ListLists"
	OpListReminders = "ListReminders"
	OpCreate        = "Create"
	OpComplete      = "Complete"
)

// List is one reminder list.
type List struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Reminder is one reminder from the store.
type Reminder struct {
	ID        string            `json:"id"`
	Title     string            `json:"title"`
	ListName  string            `json:"listName,omitempty"`
	Notes     string            `json:"notes,omitempty"`
	Due       appledb.Timestamp `json:"due"`
	Completed bool              `json:"completed"`
}

// ReminderQuery narrows ListReminders. Completed reminders are excluded
// unless IncludeCompleted is set.
type ReminderQuery struct {
	ListName         string
	IncludeCompleted bool
	Limit            int
	Cursor           string
}

// NewReminder is the input to Create. Due is optional; List defaults to
// the application's default list.
type NewReminder struct {
	Title string
	List  string
	Notes string
	Due   time.Time
}

// Service is the full reminders operation interface.
type Service interface {
	ListLists(ctx context.Context) ([]List, error)
	ListReminders(ctx context.Context, q ReminderQuery) (page.Page[Reminder], error)
	Create(ctx context.Context, r NewReminder) error
	Complete(ctx context.Context, title string) (int, error)
}

// Scripter runs one automation script; the shared engine satisfies it.
type Scripter interface {
	Run(ctx context.Context, script string) (string, error)
}

// DefaultAssignment routes reads to the store and both mutations through
// the application, where they propagate to sync.
func DefaultAssignment() backend.Assignment {
	return backend.Assignment{
		OpListLists:     backend.KindFile,
		OpListReminders: backend.KindFile,
		OpCreate:        backend.KindAutomation,
		OpComplete:      backend.KindAutomation,
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
	h.file = NewFileStore(cfg.DBPath, cfg.Probe, logger.With("component", "reminders-file"))
	if cfg.Engine != nil {
		h.auto = &Automation{engine: cfg.Engine}
	}
	return h
}

func (h *Hybrid) ListLists(ctx context.Context) ([]List, error) {
	switch h.assign[OpListLists] {
	case backend.KindFile:
		return h.file.ListLists(ctx)
	case backend.KindAutomation:
		return nil, fault.Unsupported(Domain, OpListLists,
			"enumerating lists through the scripting dictionary is one round-trip per list; reads come from the reminders store")
	default:
		return nil, h.noVariant(OpListLists)
	}
}

func (h *Hybrid) ListReminders(ctx context.Context, q ReminderQuery) (page.Page[Reminder], error) {
	switch h.assign[OpListReminders] {
	case backend.KindFile:
		return h.file.ListReminders(ctx, q)
	case backend.KindAutomation:
		return page.Page[Reminder]{}, fault.Unsupported(Domain, OpListReminders,
			"enumerating reminders through the scripting dictionary is one round-trip per item; reads come from the reminders store")
	default:
		return page.Page[Reminder]{}, h.noVariant(OpListReminders)
	}
}

func (h *Hybrid) Create(ctx context.Context, r NewReminder) error {
	switch h.assign[OpCreate] {
	case backend.KindAutomation:
		if h.auto == nil {
			return h.noVariant(OpCreate)
		}
		return h.auto.Create(ctx, r)
	case backend.KindFile:
		return fault.Unsupported(Domain, OpCreate,
			"rows inserted into the reminders store directly bypass sync bookkeeping; creation goes through Reminders automation")
	default:
		return h.noVariant(OpCreate)
	}
}

func (h *Hybrid) Complete(ctx context.Context, title string) (int, error) {
	switch h.assign[OpComplete] {
	case backend.KindAutomation:
		if h.auto == nil {
			return 0, h.noVariant(OpComplete)
		}
		return h.auto.Complete(ctx, title)
	case backend.KindFile:
		return 0, fault.Unsupported(Domain, OpComplete,
			"completion flipped in the store does not propagate to other devices; it goes through Reminders automation")
	default:
		return 0, h.noVariant(OpComplete)
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
