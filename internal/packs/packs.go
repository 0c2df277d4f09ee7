// ABOUTME: Tool pack types: plain tool definitions with JSON Schema
// ABOUTME: inputs and in-process handlers grouped into packs.

package packs

import (
	"context"
	"encoding/json"
)

// ToolDefinition describes one tool as served to clients. InputSchema is
// a JSON Schema document passed through verbatim in tool listings.
type ToolDefinition struct {
	Name         string
	Description  string
	InputSchema  json.RawMessage
	Capabilities []string
}

// ToolHandler executes one tool call. Input is the raw JSON arguments;
// the returned message is the raw JSON result.
type ToolHandler func(ctx context.Context, input json.RawMessage) (json.RawMessage, error)

// BuiltinTool pairs a definition with its in-process handler.
type BuiltinTool struct {
	Definition *ToolDefinition
	Handler    ToolHandler
}

// BuiltinPack groups the tools of one domain under a stable pack ID
// (builtin:messages, builtin:notes, …).
type BuiltinPack struct {
	ID    string
	Tools []*BuiltinTool
}
