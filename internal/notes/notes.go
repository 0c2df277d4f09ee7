// ABOUTME: Notes domain: note records, the service interface, and the
// ABOUTME: hybrid composition routing operations per assignment.

package notes

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/2389/grimoire/internal/appledb"
	"github.com/2389/grimoire/internal/backend"
	"github.com/2389/grimoire/internal/fault"
	"github.com/2389/grimoire/internal/page"
)

const Domain = "notes"

// Operation names.
const (
	OpList   = "List"
	OpSearch = "Search"
	OpGet    = "Get"
	OpCreate = "Create"
)

// Note is one note from the store. Body is plaintext and populated only
// by Get; list and search results carry the snippet instead.
type Note struct {
	ID       string            `json:"id"`
	Title    string            `json:"title"`
	Folder   string            `json:"folder,omitempty"`
	Snippet  string            `json:"snippet,omitempty"`
	Body     string            `json:"body,omitempty"`
	Modified appledb.Timestamp `json:"modified"`
}

// Service is the full notes operation interface.
type Service interface {
	List(ctx context.Context, limit int, cursor string) (page.Page[Note], error)
	Search(ctx context.Context, query string, limit int, cursor string) (page.Page[Note], error)
	Get(ctx context.Context, id string) (Note, error)
	Create(ctx context.Context, title, markdownBody, folder string) error
}

// Scripter runs one automation script; the shared engine satisfies it.
type Scripter interface {
	Run(ctx context.Context, script string) (string, error)
}

// DefaultAssignment routes reads to the store (per-note automation reads
// are O(n) interpreter round-trips) and creation through the application
// (direct inserts corrupt the store's sync bookkeeping).
func DefaultAssignment() backend.Assignment {
	return backend.Assignment{
		OpList:   backend.KindFile,
		OpSearch: backend.KindFile,
		OpGet:    backend.KindFile,
		OpCreate: backend.KindAutomation,
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
	h.file = NewFileStore(cfg.DBPath, cfg.Probe, logger.With("component", "notes-file"))
	if cfg.Engine != nil {
		h.auto = &Automation{engine: cfg.Engine}
	}
	return h
}

func (h *Hybrid) List(ctx context.Context, limit int, cursor string) (page.Page[Note], error) {
	switch h.assign[OpList] {
	case backend.KindFile:
		return h.file.List(ctx, limit, cursor)
	case backend.KindAutomation:
		return page.Page[Note]{}, fault.Unsupported(Domain, OpList,
			"enumerating notes through the scripting dictionary is one interpreter round-trip per note; bulk reads come from NoteStore.sqlite")
	default:
		return page.Page[Note]{}, h.noVariant(OpList)
	}
}

func (h *Hybrid) Search(ctx context.Context, query string, limit int, cursor string) (page.Page[Note], error) {
	switch h.assign[OpSearch] {
	case backend.KindFile:
		return h.file.Search(ctx, query, limit, cursor)
	case backend.KindAutomation:
		return page.Page[Note]{}, fault.Unsupported(Domain, OpSearch,
			"the Notes scripting dictionary has no query predicate; search runs against NoteStore.sqlite")
	default:
		return page.Page[Note]{}, h.noVariant(OpSearch)
	}
}

func (h *Hybrid) Get(ctx context.Context, id string) (Note, error) {
	switch h.assign[OpGet] {
	case backend.KindFile:
		return h.file.Get(ctx, id)
	case backend.KindAutomation:
		return Note{}, fault.Unsupported(Domain, OpGet,
			"retrieving one note body through the scripting dictionary requires scanning every note; bodies come from NoteStore.sqlite")
	default:
		return Note{}, h.noVariant(OpGet)
	}
}

func (h *Hybrid) Create(ctx context.Context, title, markdownBody, folder string) error {
	switch h.assign[OpCreate] {
	case backend.KindAutomation:
		if h.auto == nil {
			return h.noVariant(OpCreate)
		}
		return h.auto.Create(ctx, title, markdownBody, folder)
	case backend.KindFile:
		return fault.Unsupported(Domain, OpCreate,
			"rows inserted into NoteStore.sqlite directly corrupt the store's sync bookkeeping; creation goes through Notes automation")
	default:
		return h.noVariant(OpCreate)
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
