// ABOUTME: Thread-safe registry of builtin tool packs: registration with
// ABOUTME: collision detection, capability filtering, and dispatch.

package packs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// ErrToolCollision indicates a tool name already registered by another pack.
var ErrToolCollision = errors.New("tool name collision")

// ErrToolNotFound indicates no registered tool carries the requested name.
var ErrToolNotFound = errors.New("tool not found")

type entry struct {
	tool   *BuiltinTool
	packID string
}

// Registry holds every registered tool, keyed by globally-unique name.
type Registry struct {
	mu     sync.RWMutex
	tools  map[string]*entry
	logger *slog.Logger
}

func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		tools:  make(map[string]*entry),
		logger: logger,
	}
}

// Register adds a pack. Tool names are a single global namespace; any
// collision rejects the whole pack so registration stays atomic.
func (r *Registry) Register(pack *BuiltinPack) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, tool := range pack.Tools {
		if existing, exists := r.tools[tool.Definition.Name]; exists {
			return fmt.Errorf("%w: tool %q already registered by pack %q",
				ErrToolCollision, tool.Definition.Name, existing.packID)
		}
	}
	for _, tool := range pack.Tools {
		r.tools[tool.Definition.Name] = &entry{tool: tool, packID: pack.ID}
	}

	r.logger.Info("pack registered",
		"pack_id", pack.ID,
		"tool_count", len(pack.Tools),
		"total_tools", len(r.tools),
	)
	return nil
}

// Get returns the tool registered under name, or nil.
func (r *Registry) Get(name string) *BuiltinTool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.tools[name]; ok {
		return e.tool
	}
	return nil
}

// List returns the definitions visible to a caller holding caps, sorted
// by name. A tool with no required capabilities is visible to everyone;
// otherwise the caller must hold every one the tool names.
func (r *Registry) List(caps []string) []*ToolDefinition {
	capSet := make(map[string]struct{}, len(caps))
	for _, c := range caps {
		capSet[c] = struct{}{}
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var defs []*ToolDefinition
	for _, e := range r.tools {
		if hasAll(e.tool.Definition.Capabilities, capSet) {
			defs = append(defs, e.tool.Definition)
		}
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

// Dispatch runs the named tool's handler. Unknown names fail with
// ErrToolNotFound; handler errors pass through untouched so the caller
// can map the taxonomy in one place.
func (r *Registry) Dispatch(ctx context.Context, name string, input json.RawMessage) (json.RawMessage, error) {
	tool := r.Get(name)
	if tool == nil {
		return nil, fmt.Errorf("%w: %q", ErrToolNotFound, name)
	}
	return tool.Handler(ctx, input)
}

// PackInfo summarizes one registered pack.
type PackInfo struct {
	ID        string
	ToolNames []string
}

// Packs returns a summary of every registered pack, sorted by ID.
func (r *Registry) Packs() []PackInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	byPack := make(map[string][]string)
	for name, e := range r.tools {
		byPack[e.packID] = append(byPack[e.packID], name)
	}
	infos := make([]PackInfo, 0, len(byPack))
	for id, names := range byPack {
		sort.Strings(names)
		infos = append(infos, PackInfo{ID: id, ToolNames: names})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	return infos
}

func hasAll(required []string, capSet map[string]struct{}) bool {
	for _, req := range required {
		if _, ok := capSet[req]; !ok {
			return false
		}
	}
	return true
}
