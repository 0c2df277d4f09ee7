// ABOUTME: HTTP transport tests: handshake, sessions, auth paths, and
// ABOUTME: the taxonomy-to-tool-result error mapping.

package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/grimoire/internal/auth"
	"github.com/2389/grimoire/internal/fault"
	"github.com/2389/grimoire/internal/packs"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testRegistry(t *testing.T) *packs.Registry {
	t.Helper()
	r := packs.NewRegistry(testLogger())
	require.NoError(t, r.Register(&packs.BuiltinPack{
		ID: "builtin:notes",
		Tools: []*packs.BuiltinTool{
			{
				Definition: &packs.ToolDefinition{
					Name:         "notes_list",
					Description:  "List notes.",
					InputSchema:  json.RawMessage(`{"type":"object"}`),
					Capabilities: []string{"notes"},
				},
				Handler: func(context.Context, json.RawMessage) (json.RawMessage, error) {
					return json.RawMessage(`{"items":[],"hasMore":false}`), nil
				},
			},
			{
				Definition: &packs.ToolDefinition{
					Name:         "notes_create",
					Description:  "Create a note.",
					InputSchema:  json.RawMessage(`{"type":"object"}`),
					Capabilities: []string{"notes"},
				},
				Handler: func(context.Context, json.RawMessage) (json.RawMessage, error) {
					return nil, fault.Permission(
						"Notes automation access is denied",
						"enable it under System Settings > Privacy & Security > Automation")
				},
			},
		},
	}))
	require.NoError(t, r.Register(&packs.BuiltinPack{
		ID: "builtin:mail",
		Tools: []*packs.BuiltinTool{
			{
				Definition: &packs.ToolDefinition{
					Name:         "mail_send",
					Description:  "Send mail.",
					InputSchema:  json.RawMessage(`{"type":"object"}`),
					Capabilities: []string{"mail"},
				},
				Handler: func(context.Context, json.RawMessage) (json.RawMessage, error) {
					panic("handler bug")
				},
			},
		},
	}))
	return r
}

func newTestServer(t *testing.T, cfg Config) *httptest.Server {
	t.Helper()
	if cfg.Registry == nil {
		cfg.Registry = testRegistry(t)
	}
	if cfg.Logger == nil {
		cfg.Logger = testLogger()
	}
	srv, err := NewServer(cfg)
	require.NoError(t, err)
	mux := http.NewServeMux()
	srv.RegisterRoutes(mux)
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts
}

func rpc(t *testing.T, ts *httptest.Server, path string, headers map[string]string, body string) (*http.Response, JSONRPCResponse) {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, ts.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	var out JSONRPCResponse
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(bytes.TrimSpace(raw)) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &out))
	}
	return resp, out
}

func initialize(t *testing.T, ts *httptest.Server, path string, headers map[string]string) string {
	t.Helper()
	resp, rpcResp := rpc(t, ts, path, headers,
		`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2025-11-25"}}`)
	require.Nil(t, rpcResp.Error)
	sessionID := resp.Header.Get("Mcp-Session-Id")
	require.NotEmpty(t, sessionID)
	return sessionID
}

func callResult(t *testing.T, rpcResp JSONRPCResponse) CallToolResult {
	t.Helper()
	raw, err := json.Marshal(rpcResp.Result)
	require.NoError(t, err)
	var result CallToolResult
	require.NoError(t, json.Unmarshal(raw, &result))
	return result
}

func TestInitializeAdvertisesServer(t *testing.T) {
	ts := newTestServer(t, Config{DefaultCaps: []string{"notes", "mail"}, Version: "1.2.3"})
	_, rpcResp := rpc(t, ts, "/mcp", nil,
		`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`)
	require.Nil(t, rpcResp.Error)

	result := rpcResp.Result.(map[string]any)
	assert.Equal(t, "2025-11-25", result["protocolVersion"])
	info := result["serverInfo"].(map[string]any)
	assert.Equal(t, "grimoire", info["name"])
	assert.Equal(t, "1.2.3", info["version"])
}

func TestToolsListRequiresSession(t *testing.T) {
	ts := newTestServer(t, Config{DefaultCaps: []string{"notes"}})

	resp, _ := rpc(t, ts, "/mcp", nil, `{"jsonrpc":"2.0","id":2,"method":"tools/list"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "no session header")

	resp, _ = rpc(t, ts, "/mcp", map[string]string{"Mcp-Session-Id": "bogus"},
		`{"jsonrpc":"2.0","id":2,"method":"tools/list"}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode, "unknown session")
}

func TestToolsListFiltersBySessionCaps(t *testing.T) {
	ts := newTestServer(t, Config{DefaultCaps: []string{"notes"}})
	sessionID := initialize(t, ts, "/mcp", nil)

	_, rpcResp := rpc(t, ts, "/mcp", map[string]string{"Mcp-Session-Id": sessionID},
		`{"jsonrpc":"2.0","id":2,"method":"tools/list"}`)
	require.Nil(t, rpcResp.Error)

	raw, err := json.Marshal(rpcResp.Result)
	require.NoError(t, err)
	var result ListToolsResult
	require.NoError(t, json.Unmarshal(raw, &result))

	names := make([]string, len(result.Tools))
	for i, tool := range result.Tools {
		names[i] = tool.Name
	}
	assert.Equal(t, []string{"notes_create", "notes_list"}, names, "mail tools hidden")
}

func TestToolsCallSuccess(t *testing.T) {
	ts := newTestServer(t, Config{DefaultCaps: []string{"notes"}})
	sessionID := initialize(t, ts, "/mcp", nil)

	_, rpcResp := rpc(t, ts, "/mcp", map[string]string{"Mcp-Session-Id": sessionID},
		`{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"notes_list","arguments":{}}}`)
	require.Nil(t, rpcResp.Error)

	result := callResult(t, rpcResp)
	require.False(t, result.IsError)
	require.Len(t, result.Content, 1)
	assert.Equal(t, "text", result.Content[0].Type)
	assert.JSONEq(t, `{"items":[],"hasMore":false}`, result.Content[0].Text)
}

func TestToolsCallFaultBecomesToolError(t *testing.T) {
	ts := newTestServer(t, Config{DefaultCaps: []string{"notes"}})
	sessionID := initialize(t, ts, "/mcp", nil)

	_, rpcResp := rpc(t, ts, "/mcp", map[string]string{"Mcp-Session-Id": sessionID},
		`{"jsonrpc":"2.0","id":4,"method":"tools/call","params":{"name":"notes_create"}}`)
	require.Nil(t, rpcResp.Error, "taxonomy failures are tool results, not protocol errors")

	result := callResult(t, rpcResp)
	assert.True(t, result.IsError)
	assert.Contains(t, result.Content[0].Text, "Notes automation access is denied")
	assert.Contains(t, result.Content[0].Text, "System Settings", "remediation text carried through")
}

func TestToolsCallPanicIsContained(t *testing.T) {
	ts := newTestServer(t, Config{DefaultCaps: []string{"notes", "mail"}})
	sessionID := initialize(t, ts, "/mcp", nil)

	_, rpcResp := rpc(t, ts, "/mcp", map[string]string{"Mcp-Session-Id": sessionID},
		`{"jsonrpc":"2.0","id":5,"method":"tools/call","params":{"name":"mail_send"}}`)
	require.NotNil(t, rpcResp.Error)
	assert.Equal(t, JSONRPCInternalError, rpcResp.Error.Code)

	// The transport survives.
	_, rpcResp = rpc(t, ts, "/mcp", map[string]string{"Mcp-Session-Id": sessionID},
		`{"jsonrpc":"2.0","id":6,"method":"ping"}`)
	assert.Nil(t, rpcResp.Error)
}

func TestToolsCallUnknownTool(t *testing.T) {
	ts := newTestServer(t, Config{DefaultCaps: []string{"notes"}})
	sessionID := initialize(t, ts, "/mcp", nil)

	_, rpcResp := rpc(t, ts, "/mcp", map[string]string{"Mcp-Session-Id": sessionID},
		`{"jsonrpc":"2.0","id":5,"method":"tools/call","params":{"name":"nope"}}`)
	require.NotNil(t, rpcResp.Error)
	assert.Equal(t, JSONRPCInvalidParams, rpcResp.Error.Code)
}

func TestToolsCallInsufficientCaps(t *testing.T) {
	ts := newTestServer(t, Config{DefaultCaps: []string{"notes"}})
	sessionID := initialize(t, ts, "/mcp", nil)

	_, rpcResp := rpc(t, ts, "/mcp", map[string]string{"Mcp-Session-Id": sessionID},
		`{"jsonrpc":"2.0","id":5,"method":"tools/call","params":{"name":"mail_send"}}`)
	require.NotNil(t, rpcResp.Error)
	assert.Equal(t, JSONRPCInvalidRequest, rpcResp.Error.Code)
}

func TestNotificationAccepted(t *testing.T) {
	ts := newTestServer(t, Config{DefaultCaps: []string{"notes"}})
	sessionID := initialize(t, ts, "/mcp", nil)

	resp, _ := rpc(t, ts, "/mcp", map[string]string{"Mcp-Session-Id": sessionID},
		`{"jsonrpc":"2.0","method":"notifications/initialized"}`)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
}

func TestGetIsMethodNotAllowed(t *testing.T) {
	ts := newTestServer(t, Config{DefaultCaps: []string{"notes"}})
	resp, err := ts.Client().Get(ts.URL + "/mcp")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestUnsupportedProtocolVersion(t *testing.T) {
	ts := newTestServer(t, Config{DefaultCaps: []string{"notes"}})
	sessionID := initialize(t, ts, "/mcp", nil)

	resp, _ := rpc(t, ts, "/mcp", map[string]string{
		"Mcp-Session-Id":       sessionID,
		"Mcp-Protocol-Version": "1999-01-01",
	}, `{"jsonrpc":"2.0","id":2,"method":"tools/list"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestBodyTooLarge(t *testing.T) {
	ts := newTestServer(t, Config{DefaultCaps: []string{"notes"}})
	big := strings.Repeat("x", MaxRequestBodySize+1)
	_, rpcResp := rpc(t, ts, "/mcp", nil, `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"pad":"`+big+`"}}`)
	require.NotNil(t, rpcResp.Error)
	assert.Equal(t, JSONRPCInvalidRequest, rpcResp.Error.Code)
}

func TestParseError(t *testing.T) {
	ts := newTestServer(t, Config{DefaultCaps: []string{"notes"}})
	_, rpcResp := rpc(t, ts, "/mcp", nil, `{not json`)
	require.NotNil(t, rpcResp.Error)
	assert.Equal(t, JSONRPCParseError, rpcResp.Error.Code)
}

func TestSessionDelete(t *testing.T) {
	ts := newTestServer(t, Config{DefaultCaps: []string{"notes"}})
	sessionID := initialize(t, ts, "/mcp", nil)

	req, err := http.NewRequest(http.MethodDelete, ts.URL+"/mcp", nil)
	require.NoError(t, err)
	req.Header.Set("Mcp-Session-Id", sessionID)
	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	postResp, _ := rpc(t, ts, "/mcp", map[string]string{"Mcp-Session-Id": sessionID},
		`{"jsonrpc":"2.0","id":2,"method":"tools/list"}`)
	assert.Equal(t, http.StatusNotFound, postResp.StatusCode, "deleted session is gone")
}

func TestAuthRequired(t *testing.T) {
	verifier := auth.NewJWTVerifier([]byte("secret"))
	token, err := verifier.Generate("laptop", time.Hour)
	require.NoError(t, err)

	ts := newTestServer(t, Config{
		Verifier:    verifier,
		RequireAuth: true,
		DefaultCaps: []string{"notes", "mail"},
	})

	t.Run("no credential rejected", func(t *testing.T) {
		_, rpcResp := rpc(t, ts, "/mcp", nil,
			`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`)
		require.NotNil(t, rpcResp.Error)
		assert.Contains(t, rpcResp.Error.Message, "authentication required")
	})

	t.Run("invalid credential rejected", func(t *testing.T) {
		_, rpcResp := rpc(t, ts, "/mcp", map[string]string{"Authorization": "Bearer junk"},
			`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`)
		require.NotNil(t, rpcResp.Error)
		assert.Contains(t, rpcResp.Error.Message, "invalid or expired token")
	})

	t.Run("bearer header accepted", func(t *testing.T) {
		sessionID := initialize(t, ts, "/mcp", map[string]string{"Authorization": "Bearer " + token})
		_, rpcResp := rpc(t, ts, "/mcp", map[string]string{"Mcp-Session-Id": sessionID},
			`{"jsonrpc":"2.0","id":2,"method":"tools/list"}`)
		assert.Nil(t, rpcResp.Error)
	})

	t.Run("token in path accepted", func(t *testing.T) {
		sessionID := initialize(t, ts, "/mcp/"+token, nil)
		assert.NotEmpty(t, sessionID)
	})

	t.Run("token query parameter accepted", func(t *testing.T) {
		sessionID := initialize(t, ts, "/mcp?token="+token, nil)
		assert.NotEmpty(t, sessionID)
	})
}

func TestCapsForRestrictsSession(t *testing.T) {
	verifier := auth.NewJWTVerifier([]byte("secret"))
	token, err := verifier.Generate("phone", time.Hour)
	require.NoError(t, err)

	ts := newTestServer(t, Config{
		Verifier:    verifier,
		RequireAuth: true,
		DefaultCaps: []string{"notes", "mail"},
		CapsFor: func(subject string) []string {
			if subject == "phone" {
				return []string{"mail"}
			}
			return nil
		},
	})

	sessionID := initialize(t, ts, "/mcp", map[string]string{"Authorization": "Bearer " + token})
	_, rpcResp := rpc(t, ts, "/mcp", map[string]string{"Mcp-Session-Id": sessionID},
		`{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"notes_list"}}`)
	require.NotNil(t, rpcResp.Error)
	assert.Contains(t, rpcResp.Error.Message, "insufficient capabilities")
}

func TestSessionDeleteOwnership(t *testing.T) {
	verifier := auth.NewJWTVerifier([]byte("secret"))
	token, err := verifier.Generate("laptop", time.Hour)
	require.NoError(t, err)

	ts := newTestServer(t, Config{
		Verifier:    verifier,
		RequireAuth: true,
		DefaultCaps: []string{"notes"},
	})
	sessionID := initialize(t, ts, "/mcp", map[string]string{"Authorization": "Bearer " + token})

	req, err := http.NewRequest(http.MethodDelete, ts.URL+"/mcp", nil)
	require.NoError(t, err)
	req.Header.Set("Mcp-Session-Id", sessionID)
	req.Header.Set("Authorization", "Bearer someone-else")
	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

// The composition mounts auth.Middleware outside the endpoint; a bearer
// subject verified there must drive capability resolution directly.
func TestMiddlewareIdentityDrivesCapabilities(t *testing.T) {
	verifier := auth.NewJWTVerifier([]byte("secret"))
	token, err := verifier.Generate("phone", time.Hour)
	require.NoError(t, err)

	srv, err := NewServer(Config{
		Registry:    testRegistry(t),
		Logger:      testLogger(),
		Verifier:    verifier,
		RequireAuth: true,
		CapsFor: func(subject string) []string {
			if subject == "phone" {
				return []string{"notes"}
			}
			return nil
		},
		DefaultCaps: []string{"notes", "mail"},
	})
	require.NoError(t, err)
	mux := http.NewServeMux()
	srv.RegisterRoutes(mux)
	ts := httptest.NewServer(auth.Middleware(verifier, false)(mux))
	t.Cleanup(ts.Close)

	sessionID := initialize(t, ts, "/mcp", map[string]string{"Authorization": "Bearer " + token})
	_, rpcResp := rpc(t, ts, "/mcp", map[string]string{"Mcp-Session-Id": sessionID},
		`{"jsonrpc":"2.0","id":2,"method":"tools/list"}`)
	require.Nil(t, rpcResp.Error)

	raw, err := json.Marshal(rpcResp.Result)
	require.NoError(t, err)
	var list ListToolsResult
	require.NoError(t, json.Unmarshal(raw, &list))
	require.NotEmpty(t, list.Tools)
	for _, tool := range list.Tools {
		assert.NotEqual(t, "mail_send", tool.Name, "middleware identity must narrow the session")
	}
}

func TestMiddlewareRejectsInvalidBearerBeforeEndpoint(t *testing.T) {
	verifier := auth.NewJWTVerifier([]byte("secret"))
	srv, err := NewServer(Config{
		Registry:    testRegistry(t),
		Logger:      testLogger(),
		Verifier:    verifier,
		RequireAuth: true,
	})
	require.NoError(t, err)
	mux := http.NewServeMux()
	srv.RegisterRoutes(mux)
	ts := httptest.NewServer(auth.Middleware(verifier, false)(mux))
	t.Cleanup(ts.Close)

	req, err := http.NewRequest(http.MethodPost, ts.URL+"/mcp",
		strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer junk")
	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
