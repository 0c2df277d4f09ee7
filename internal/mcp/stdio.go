// ABOUTME: stdio transport: newline-delimited JSON-RPC on stdin/stdout
// ABOUTME: with no sessions and no auth; the parent process owns the pipe.

package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/2389/grimoire/internal/fault"
	"github.com/2389/grimoire/internal/packs"
)

// StdioServer drives one MCP conversation over a pipe pair. Logging must
// go to stderr; stdout carries protocol frames only.
type StdioServer struct {
	registry *packs.Registry
	logger   *slog.Logger
	caps     []string

	serverName string
	version    string

	writeMu sync.Mutex
	out     io.Writer
}

// StdioConfig holds the stdio transport's dependencies.
type StdioConfig struct {
	Registry   *packs.Registry
	Logger     *slog.Logger
	Caps       []string
	ServerName string
	Version    string
}

func NewStdioServer(cfg StdioConfig) (*StdioServer, error) {
	if cfg.Registry == nil {
		return nil, errors.New("registry is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	name := cfg.ServerName
	if name == "" {
		name = "grimoire"
	}
	version := cfg.Version
	if version == "" {
		version = "dev"
	}
	return &StdioServer{
		registry:   cfg.Registry,
		logger:     logger,
		caps:       cfg.Caps,
		serverName: name,
		version:    version,
	}, nil
}

// Serve reads newline-delimited JSON-RPC requests from in until EOF or
// context cancellation, writing responses to out in arrival order. A line
// over MaxRequestBodySize is answered with an error and skipped; it never
// takes the transport down.
func (s *StdioServer) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	s.out = out

	reader := bufio.NewReaderSize(in, 64*1024)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		line, tooLong, err := readCappedLine(reader)
		if tooLong {
			s.logger.Warn("request line exceeds size cap", "cap_bytes", MaxRequestBodySize)
			s.write(JSONRPCResponse{
				JSONRPC: "2.0",
				Error:   &JSONRPCError{Code: JSONRPCInvalidRequest, Message: "request body too large"},
			})
		} else if trimmed := strings.TrimSpace(string(line)); trimmed != "" {
			s.handleLine(ctx, []byte(trimmed))
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				s.logger.Info("stdio transport closed")
				return nil
			}
			return fmt.Errorf("reading stdin: %w", err)
		}
	}
}

// readCappedLine reads one newline-terminated line, accumulating at most
// MaxRequestBodySize bytes. An over-cap line is drained to its newline and
// reported via tooLong so the caller can answer and keep reading.
func readCappedLine(r *bufio.Reader) (line []byte, tooLong bool, err error) {
	var buf []byte
	for {
		chunk, err := r.ReadSlice('\n')
		buf = append(buf, chunk...)
		switch {
		case err == nil, errors.Is(err, io.EOF):
			if len(buf) > MaxRequestBodySize {
				return nil, true, err
			}
			return buf, false, err
		case errors.Is(err, bufio.ErrBufferFull):
			if len(buf) > MaxRequestBodySize {
				derr := drainLine(r)
				return nil, true, derr
			}
		default:
			return buf, false, err
		}
	}
}

// drainLine discards input up to and including the next newline.
func drainLine(r *bufio.Reader) error {
	for {
		_, err := r.ReadSlice('\n')
		switch {
		case err == nil:
			return nil
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		default:
			return err
		}
	}
}

func (s *StdioServer) handleLine(ctx context.Context, line []byte) {
	var req JSONRPCRequest
	if err := json.Unmarshal(line, &req); err != nil {
		s.write(JSONRPCResponse{
			JSONRPC: "2.0",
			Error:   &JSONRPCError{Code: JSONRPCParseError, Message: "invalid JSON"},
		})
		return
	}
	if req.JSONRPC != "2.0" {
		s.write(JSONRPCResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Error:   &JSONRPCError{Code: JSONRPCInvalidRequest, Message: "invalid JSON-RPC version"},
		})
		return
	}

	// Notifications get no response on this transport.
	if len(req.ID) == 0 || string(req.ID) == "null" {
		if !strings.HasPrefix(req.Method, "notifications/") {
			s.logger.Warn("notification for non-notification method", "method", req.Method)
		}
		return
	}

	switch req.Method {
	case "initialize":
		s.writeResult(req.ID, map[string]any{
			"protocolVersion": latestProtocolVersion,
			"capabilities": map[string]any{
				"tools": map[string]any{},
			},
			"serverInfo": map[string]any{
				"name":    s.serverName,
				"version": s.version,
			},
		})
	case "ping":
		s.writeResult(req.ID, map[string]any{})
	case "tools/list":
		defs := s.registry.List(s.caps)
		result := ListToolsResult{Tools: make([]ToolInfo, len(defs))}
		for i, def := range defs {
			result.Tools[i] = ToolInfo{
				Name:        def.Name,
				Description: def.Description,
				InputSchema: def.InputSchema,
			}
		}
		s.writeResult(req.ID, result)
	case "tools/call":
		s.handleCall(ctx, req)
	default:
		s.write(JSONRPCResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Error:   &JSONRPCError{Code: JSONRPCMethodNotFound, Message: "method not found"},
		})
	}
}

func (s *StdioServer) handleCall(ctx context.Context, req JSONRPCRequest) {
	var params CallToolParams
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			s.write(JSONRPCResponse{
				JSONRPC: "2.0",
				ID:      req.ID,
				Error:   &JSONRPCError{Code: JSONRPCInvalidParams, Message: "invalid params"},
			})
			return
		}
	}
	if params.Name == "" {
		s.write(JSONRPCResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Error:   &JSONRPCError{Code: JSONRPCInvalidParams, Message: "tool name is required"},
		})
		return
	}

	args := params.Arguments
	if len(args) == 0 || string(args) == "null" {
		args = json.RawMessage(`{}`)
	}

	output, err := s.dispatch(ctx, params.Name, args)
	if err != nil {
		if errors.Is(err, packs.ErrToolNotFound) {
			s.write(JSONRPCResponse{
				JSONRPC: "2.0",
				ID:      req.ID,
				Error:   &JSONRPCError{Code: JSONRPCInvalidParams, Message: "tool not found"},
			})
			return
		}
		if kind := fault.KindOf(err); kind != 0 {
			s.writeResult(req.ID, CallToolResult{
				Content: []Content{{Type: "text", Text: err.Error()}},
				IsError: true,
			})
			return
		}
		s.logger.Warn("tool execution failed", "tool_name", params.Name, "error", err)
		s.write(JSONRPCResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Error:   &JSONRPCError{Code: JSONRPCInternalError, Message: "tool execution failed"},
		})
		return
	}
	s.writeResult(req.ID, CallToolResult{
		Content: []Content{{Type: "text", Text: string(output)}},
	})
}

func (s *StdioServer) dispatch(ctx context.Context, name string, args json.RawMessage) (out json.RawMessage, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			s.logger.Error("tool handler panicked", "tool_name", name, "panic", rec)
			err = fmt.Errorf("tool handler panicked: %v", rec)
		}
	}()
	return s.registry.Dispatch(ctx, name, args)
}

func (s *StdioServer) writeResult(id json.RawMessage, result any) {
	s.write(JSONRPCResponse{JSONRPC: "2.0", ID: id, Result: result})
}

func (s *StdioServer) write(resp JSONRPCResponse) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	enc := json.NewEncoder(s.out)
	if err := enc.Encode(resp); err != nil {
		s.logger.Warn("failed to write stdio response", "error", err)
	}
}
