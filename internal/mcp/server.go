// ABOUTME: Streamable HTTP transport for MCP: one /mcp endpoint carrying
// ABOUTME: JSON-RPC 2.0 with uuid sessions and bearer or path-token auth.

package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/2389/grimoire/internal/auth"
	"github.com/2389/grimoire/internal/fault"
	"github.com/2389/grimoire/internal/packs"
)

var supportedProtocolVersions = map[string]bool{
	"2025-03-26": true,
	"2025-11-25": true,
}

// latestProtocolVersion is advertised in initialize responses.
const latestProtocolVersion = "2025-11-25"

// MaxRequestBodySize caps POST bodies at 1MB.
const MaxRequestBodySize = 1 << 20

// JSONRPCRequest is a JSON-RPC 2.0 request or notification.
type JSONRPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// JSONRPCResponse is a JSON-RPC 2.0 response.
type JSONRPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *JSONRPCError   `json:"error,omitempty"`
}

// JSONRPCError is a JSON-RPC 2.0 error object.
type JSONRPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Standard JSON-RPC error codes.
const (
	JSONRPCParseError     = -32700
	JSONRPCInvalidRequest = -32600
	JSONRPCMethodNotFound = -32601
	JSONRPCInvalidParams  = -32602
	JSONRPCInternalError  = -32603
)

// ToolInfo is one tool definition as listed to clients.
type ToolInfo struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

// ListToolsResult is the tools/list result.
type ListToolsResult struct {
	Tools []ToolInfo `json:"tools"`
}

// CallToolParams are the tools/call params.
type CallToolParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// CallToolResult is the tools/call result. Taxonomy failures set IsError
// and carry the human-readable message, remediation included.
type CallToolResult struct {
	Content []Content `json:"content"`
	IsError bool      `json:"isError,omitempty"`
}

// Content is one content block in a tool result.
type Content struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// session tracks one initialized MCP client.
type session struct {
	id              string
	protocolVersion string
	capabilities    []string
	ownerToken      string
	createdAt       time.Time
}

type sessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*session
}

func newSessionStore() *sessionStore {
	return &sessionStore{sessions: make(map[string]*session)}
}

func (s *sessionStore) create(protocolVersion string, caps []string, ownerToken string) *session {
	sess := &session{
		id:              uuid.New().String(),
		protocolVersion: protocolVersion,
		capabilities:    caps,
		ownerToken:      ownerToken,
		createdAt:       time.Now(),
	}
	s.mu.Lock()
	s.sessions[sess.id] = sess
	s.mu.Unlock()
	return sess
}

func (s *sessionStore) get(id string) (*session, bool) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	return sess, ok
}

func (s *sessionStore) delete(id string) bool {
	s.mu.Lock()
	_, existed := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	return existed
}

// Config holds the HTTP server's dependencies.
type Config struct {
	Registry    *packs.Registry
	Logger      *slog.Logger
	Verifier    auth.TokenVerifier
	RequireAuth bool
	// CapsFor resolves a verified subject to its capability set. Nil or
	// an empty return falls back to DefaultCaps.
	CapsFor func(subject string) []string
	// DefaultCaps apply to unauthenticated callers (auth disabled) and
	// to subjects with no restriction of their own.
	DefaultCaps []string
	ServerName  string
	Version     string
}

// Server is the Streamable HTTP MCP endpoint.
type Server struct {
	registry    *packs.Registry
	logger      *slog.Logger
	verifier    auth.TokenVerifier
	requireAuth bool
	capsFor     func(string) []string
	defaultCaps []string
	serverName  string
	version     string
	sessions    *sessionStore
}

func NewServer(cfg Config) (*Server, error) {
	if cfg.Registry == nil {
		return nil, errors.New("registry is required")
	}
	if cfg.RequireAuth && cfg.Verifier == nil {
		return nil, errors.New("verifier required when auth is required")
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
	return &Server{
		registry:    cfg.Registry,
		logger:      logger,
		verifier:    cfg.Verifier,
		requireAuth: cfg.RequireAuth,
		capsFor:     cfg.CapsFor,
		defaultCaps: append([]string(nil), cfg.DefaultCaps...),
		serverName:  name,
		version:     version,
		sessions:    newSessionStore(),
	}, nil
}

// RegisterRoutes mounts the endpoint on mux, both bare and token-in-path.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/mcp", s.handleMCP)
	mux.HandleFunc("/mcp/", s.handleMCP)
}

func (s *Server) handleMCP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handlePost(w, r)
	case http.MethodGet:
		// No server-initiated stream.
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
	case http.MethodDelete:
		s.handleDelete(w, r)
	default:
		w.Header().Set("Allow", "POST, GET, DELETE")
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
	}
}

// handleDelete tears down a session. The caller must present the same
// credential the session was created with.
func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	sessionID := r.Header.Get("Mcp-Session-Id")
	if sessionID == "" {
		http.Error(w, "Bad Request: missing Mcp-Session-Id", http.StatusBadRequest)
		return
	}
	sess, ok := s.sessions.get(sessionID)
	if !ok {
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}
	if sess.ownerToken != "" && s.rawCredential(r) != sess.ownerToken {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}
	s.sessions.delete(sessionID)
	s.logger.Info("mcp session terminated", "session_id", sessionID)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePost(w http.ResponseWriter, r *http.Request) {
	sessionID := r.Header.Get("Mcp-Session-Id")
	protoVersion := r.Header.Get("Mcp-Protocol-Version")

	body, err := io.ReadAll(io.LimitReader(r.Body, MaxRequestBodySize+1))
	if err != nil {
		s.sendError(w, nil, JSONRPCParseError, "failed to read request body", nil)
		return
	}
	if int64(len(body)) > MaxRequestBodySize {
		s.sendError(w, nil, JSONRPCInvalidRequest, "request body too large", nil)
		return
	}

	var req JSONRPCRequest
	if err := json.Unmarshal(body, &req); err != nil {
		s.sendError(w, nil, JSONRPCParseError, "invalid JSON", nil)
		return
	}
	if req.JSONRPC != "2.0" {
		s.sendError(w, req.ID, JSONRPCInvalidRequest, "invalid JSON-RPC version", nil)
		return
	}

	isInitialize := req.Method == "initialize"
	isNotification := len(req.ID) == 0 || string(req.ID) == "null"

	// Missing header defaults to 2025-03-26 per the transport spec.
	if !isInitialize && protoVersion != "" && !supportedProtocolVersions[protoVersion] {
		http.Error(w, "Bad Request: unsupported MCP-Protocol-Version", http.StatusBadRequest)
		return
	}

	var caps []string
	if isInitialize {
		authCaps, authErr := s.authenticate(r)
		if authErr != nil {
			if errors.Is(authErr, errInvalidCredential) {
				s.sendError(w, req.ID, JSONRPCInvalidRequest, "invalid or expired token", nil)
				return
			}
			if s.requireAuth {
				s.sendError(w, req.ID, JSONRPCInvalidRequest, "authentication required", nil)
				return
			}
			authCaps = s.defaultCaps
		}
		caps = authCaps
	} else {
		if sessionID == "" {
			http.Error(w, "Bad Request: missing Mcp-Session-Id", http.StatusBadRequest)
			return
		}
		sess, ok := s.sessions.get(sessionID)
		if !ok {
			// Expired or bogus; the client must re-initialize.
			http.Error(w, "Not Found", http.StatusNotFound)
			return
		}
		caps = sess.capabilities
	}

	if isNotification {
		if !strings.HasPrefix(req.Method, "notifications/") {
			s.logger.Warn("notification for non-notification method", "method", req.Method)
		}
		w.WriteHeader(http.StatusAccepted)
		return
	}

	switch req.Method {
	case "initialize":
		s.handleInitialize(w, r, req, caps)
	case "ping":
		s.sendResult(w, req.ID, map[string]any{})
	case "tools/list":
		s.sendResult(w, req.ID, s.listTools(caps))
	case "tools/call":
		s.handleToolsCall(w, r, req, caps)
	default:
		s.sendError(w, req.ID, JSONRPCMethodNotFound, "method not found", nil)
	}
}

func (s *Server) handleInitialize(w http.ResponseWriter, r *http.Request, req JSONRPCRequest, caps []string) {
	sess := s.sessions.create(latestProtocolVersion, caps, s.rawCredential(r))
	s.logger.Info("mcp session created",
		"session_id", sess.id,
		"protocol_version", sess.protocolVersion,
	)
	w.Header().Set("Mcp-Session-Id", sess.id)

	s.sendResult(w, req.ID, map[string]any{
		"protocolVersion": latestProtocolVersion,
		"capabilities": map[string]any{
			"tools": map[string]any{},
		},
		"serverInfo": map[string]any{
			"name":    s.serverName,
			"version": s.version,
		},
	})
}

func (s *Server) listTools(caps []string) ListToolsResult {
	defs := s.registry.List(caps)
	result := ListToolsResult{Tools: make([]ToolInfo, len(defs))}
	for i, def := range defs {
		result.Tools[i] = ToolInfo{
			Name:        def.Name,
			Description: def.Description,
			InputSchema: def.InputSchema,
		}
	}
	return result
}

func (s *Server) handleToolsCall(w http.ResponseWriter, r *http.Request, req JSONRPCRequest, caps []string) {
	var params CallToolParams
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			s.sendError(w, req.ID, JSONRPCInvalidParams, "invalid params", nil)
			return
		}
	}
	if params.Name == "" {
		s.sendError(w, req.ID, JSONRPCInvalidParams, "tool name is required", nil)
		return
	}

	tool := s.registry.Get(params.Name)
	if tool == nil {
		s.sendError(w, req.ID, JSONRPCInvalidParams, "tool not found", nil)
		return
	}
	if !hasCaps(caps, tool.Definition.Capabilities) {
		s.sendError(w, req.ID, JSONRPCInvalidRequest, "insufficient capabilities for this tool", nil)
		return
	}

	args := params.Arguments
	if len(args) == 0 || string(args) == "null" {
		args = json.RawMessage(`{}`)
	}

	output, err := s.dispatch(r.Context(), params.Name, args)
	if err != nil {
		if kind := fault.KindOf(err); kind != 0 {
			s.logger.Debug("tool call failed",
				"tool_name", params.Name,
				"kind", kind.String(),
				"error", err,
			)
			s.sendResult(w, req.ID, CallToolResult{
				Content: []Content{{Type: "text", Text: err.Error()}},
				IsError: true,
			})
			return
		}
		s.logger.Warn("tool execution failed", "tool_name", params.Name, "error", err)
		s.sendError(w, req.ID, JSONRPCInternalError, "tool execution failed", nil)
		return
	}

	s.sendResult(w, req.ID, CallToolResult{
		Content: []Content{{Type: "text", Text: string(output)}},
	})
}

// dispatch runs the handler with panic containment. A panicking handler
// must not take the transport down with it.
func (s *Server) dispatch(ctx context.Context, name string, args json.RawMessage) (out json.RawMessage, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			s.logger.Error("tool handler panicked", "tool_name", name, "panic", rec)
			err = fmt.Errorf("tool handler panicked: %v", rec)
		}
	}()
	return s.registry.Dispatch(ctx, name, args)
}

// errInvalidCredential distinguishes a presented-but-rejected credential
// from no credential at all.
var errInvalidCredential = errors.New("invalid credential")

// authenticate resolves the request's credential to a capability set.
// Bearer headers are verified by the outer auth middleware, which injects
// the subject into the context; path and query tokens are verified here.
func (s *Server) authenticate(r *http.Request) ([]string, error) {
	if id, ok := auth.IdentityFromContext(r.Context()); ok {
		return s.capsForSubject(id.Subject), nil
	}
	token := s.rawCredential(r)
	if token == "" {
		return nil, errors.New("no credential provided")
	}
	if strings.Contains(token, "/") {
		return nil, errInvalidCredential
	}
	if s.verifier == nil {
		return nil, errInvalidCredential
	}
	subject, err := s.verifier.Verify(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errInvalidCredential, err)
	}
	return s.capsForSubject(subject), nil
}

// capsForSubject narrows a verified subject to its own capability set,
// falling back to the defaults for unrestricted subjects.
func (s *Server) capsForSubject(subject string) []string {
	if s.capsFor != nil {
		if caps := s.capsFor(subject); len(caps) > 0 {
			return caps
		}
	}
	return s.defaultCaps
}

// rawCredential pulls the credential string out of the request without
// verifying it: path token first, then query token, then bearer header.
func (s *Server) rawCredential(r *http.Request) string {
	if pathToken := strings.TrimPrefix(r.URL.Path, "/mcp/"); pathToken != "" && pathToken != r.URL.Path {
		return strings.TrimRight(pathToken, "/")
	}
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	if header := r.Header.Get("Authorization"); header != "" {
		if token, err := auth.ExtractBearer(header); err == nil {
			return token
		}
	}
	return ""
}

func hasCaps(callerCaps, requiredCaps []string) bool {
	if len(requiredCaps) == 0 {
		return true
	}
	capSet := make(map[string]struct{}, len(callerCaps))
	for _, c := range callerCaps {
		capSet[c] = struct{}{}
	}
	for _, req := range requiredCaps {
		if _, has := capSet[req]; !has {
			return false
		}
	}
	return true
}

func (s *Server) sendResult(w http.ResponseWriter, id json.RawMessage, result any) {
	resp := JSONRPCResponse{JSONRPC: "2.0", ID: id, Result: result}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Warn("failed to encode JSON-RPC response", "error", err)
	}
}

func (s *Server) sendError(w http.ResponseWriter, id json.RawMessage, code int, message string, data any) {
	resp := JSONRPCResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &JSONRPCError{Code: code, Message: message, Data: data},
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Warn("failed to encode JSON-RPC error response", "error", err)
	}
}
