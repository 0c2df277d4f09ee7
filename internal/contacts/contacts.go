// ABOUTME: Contacts domain: contact records, the service interface, and
// ABOUTME: the hybrid composition. Read-only; no automation variant exists.

package contacts

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/2389/grimoire/internal/appledb"
	"github.com/2389/grimoire/internal/backend"
	"github.com/2389/grimoire/internal/fault"
	"github.com/2389/grimoire/internal/page"
)

const Domain = "contacts"

// Operation names.
const (
	OpList   = "List"
	OpSearch = "Search"
	OpGet    = "Get"
)

// Labeled is one labeled value, e.g. {"Mobile", "+1 555 0100"}.
type Labeled struct {
	Label string `json:"label,omitempty"`
	Value string `json:"value"`
}

// Contact is one person or organization from the address book.
type Contact struct {
	ID           string            `json:"id"`
	FirstName    string            `json:"firstName,omitempty"`
	LastName     string            `json:"lastName,omitempty"`
	Organization string            `json:"organization,omitempty"`
	Phones       []Labeled         `json:"phones,omitempty"`
	Emails       []Labeled         `json:"emails,omitempty"`
	Modified     appledb.Timestamp `json:"modified"`
}

// Service is the full contacts operation interface.
type Service interface {
	List(ctx context.Context, limit int, cursor string) (page.Page[Contact], error)
	Search(ctx context.Context, query string, limit int, cursor string) (page.Page[Contact], error)
	Get(ctx context.Context, id string) (Contact, error)
}

// DefaultAssignment routes everything to the store; this is a read-only
// domain and no automation variant is composed.
func DefaultAssignment() backend.Assignment {
	return backend.Assignment{
		OpList:   backend.KindFile,
		OpSearch: backend.KindFile,
		OpGet:    backend.KindFile,
	}
}

// Config assembles a Hybrid.
type Config struct {
	DBPath     string
	Probe      func() bool
	Assignment backend.Assignment
	Logger     *slog.Logger
}

// Hybrid routes each operation to the assigned backend variant.
type Hybrid struct {
	assign backend.Assignment
	file   *FileStore
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
	return &Hybrid{
		assign: assign,
		file:   NewFileStore(cfg.DBPath, cfg.Probe, logger.With("component", "contacts-file")),
	}
}

func (h *Hybrid) List(ctx context.Context, limit int, cursor string) (page.Page[Contact], error) {
	if k := h.assign[OpList]; k != backend.KindFile {
		return page.Page[Contact]{}, h.noVariant(OpList, k)
	}
	return h.file.List(ctx, limit, cursor)
}

func (h *Hybrid) Search(ctx context.Context, query string, limit int, cursor string) (page.Page[Contact], error) {
	if k := h.assign[OpSearch]; k != backend.KindFile {
		return page.Page[Contact]{}, h.noVariant(OpSearch, k)
	}
	return h.file.Search(ctx, query, limit, cursor)
}

func (h *Hybrid) Get(ctx context.Context, id string) (Contact, error) {
	if k := h.assign[OpGet]; k != backend.KindFile {
		return Contact{}, h.noVariant(OpGet, k)
	}
	return h.file.Get(ctx, id)
}

func (h *Hybrid) noVariant(op string, k backend.Kind) error {
	if k == backend.KindFramework {
		return fault.Unsupported(Domain, op,
			"no documented native API for this domain is callable from this process type; the framework variant is not composed")
	}
	return fault.Unsupported(Domain, op,
		fmt.Sprintf("contacts is a read-only domain with no %q variant; reads come from the address book store", k))
}
