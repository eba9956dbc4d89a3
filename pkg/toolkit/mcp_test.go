package toolkit

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ProjectAlita/alita-sdk-sub007/pkg/config"
)

// mcpTestServer speaks just enough JSON-RPC to exercise the HTTP transport.
type mcpTestServer struct {
	t           *testing.T
	sse         bool
	callHandler func(name string, args map[string]any) map[string]any

	initCount int
	sessions  []string
}

func (s *mcpTestServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req jsonRPCRequest
	require.NoError(s.t, json.NewDecoder(r.Body).Decode(&req))

	s.sessions = append(s.sessions, r.Header.Get("mcp-session-id"))

	resp := jsonRPCResponse{JSONRPC: "2.0", ID: req.ID}
	switch req.Method {
	case "initialize":
		s.initCount++
		w.Header().Set("mcp-session-id", "session-123")
		resp.Result = map[string]any{"protocolVersion": mcpProtocolVersion}
	case "tools/list":
		resp.Result = map[string]any{
			"tools": []any{
				map[string]any{
					"name":        "create_ticket",
					"description": "Create a ticket",
					"inputSchema": map[string]any{
						"type": "object",
						"properties": map[string]any{
							"title":    map[string]any{"type": "string", "description": "Ticket title"},
							"priority": map[string]any{"type": "string", "enum": []any{"low", "high"}},
						},
						"required": []any{"title"},
					},
				},
				map[string]any{"name": "delete_ticket", "description": "Delete a ticket"},
			},
		}
	case "tools/call":
		params, _ := req.Params.(map[string]any)
		name, _ := params["name"].(string)
		args, _ := params["arguments"].(map[string]any)
		resp.Result = s.callHandler(name, args)
	default:
		resp.Error = &jsonRPCError{Code: -32601, Message: "method not found"}
	}

	if s.sse {
		payload, err := json.Marshal(resp)
		require.NoError(s.t, err)
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprintf(w, "event: message\ndata: %s\n\n", payload)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	require.NoError(s.t, json.NewEncoder(w).Encode(resp))
}

func newHTTPSource(t *testing.T, url string, tools []string) *MCPSource {
	t.Helper()
	source, err := NewMCPSource("tracker", &config.ToolkitConfig{
		Type:      "mcp",
		Transport: "streamable-http",
		URL:       url,
		Tools:     tools,
		Timeout:   10 * time.Second,
	})
	require.NoError(t, err)
	return source
}

func TestMCPSourceRequiresEndpoint(t *testing.T) {
	_, err := NewMCPSource("empty", &config.ToolkitConfig{Type: "mcp"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "url or command")
}

func TestMCPDiscoverHTTP(t *testing.T) {
	server := &mcpTestServer{t: t}
	ts := httptest.NewServer(server)
	defer ts.Close()

	source := newHTTPSource(t, ts.URL, nil)
	require.NoError(t, source.DiscoverTools(context.Background()))

	infos := source.ListTools()
	require.Len(t, infos, 2)

	tool, ok := source.GetTool("create_ticket")
	require.True(t, ok)
	assert.Equal(t, "Create a ticket", tool.GetDescription())

	info := tool.GetInfo()
	require.Len(t, info.Parameters, 2)
	assert.Equal(t, "priority", info.Parameters[0].Name)
	assert.Equal(t, []string{"low", "high"}, info.Parameters[0].Enum)
	assert.Equal(t, "title", info.Parameters[1].Name)
	assert.True(t, info.Parameters[1].Required)

	assert.Equal(t, 1, server.initCount)
}

func TestMCPToolFilter(t *testing.T) {
	ts := httptest.NewServer(&mcpTestServer{t: t})
	defer ts.Close()

	source := newHTTPSource(t, ts.URL, []string{"create_ticket"})
	require.NoError(t, source.DiscoverTools(context.Background()))

	infos := source.ListTools()
	require.Len(t, infos, 1)
	assert.Equal(t, "create_ticket", infos[0].Name)

	_, ok := source.GetTool("delete_ticket")
	assert.False(t, ok)
}

func TestMCPSessionPropagation(t *testing.T) {
	server := &mcpTestServer{t: t, callHandler: func(string, map[string]any) map[string]any {
		return map[string]any{"content": []any{map[string]any{"type": "text", "text": "done"}}}
	}}
	ts := httptest.NewServer(server)
	defer ts.Close()

	source := newHTTPSource(t, ts.URL, nil)
	require.NoError(t, source.DiscoverTools(context.Background()))

	tool, ok := source.GetTool("create_ticket")
	require.True(t, ok)
	_, err := tool.Execute(context.Background(), map[string]any{"title": "x"})
	require.NoError(t, err)

	// initialize carries no session; everything after echoes the server's.
	require.GreaterOrEqual(t, len(server.sessions), 3)
	assert.Empty(t, server.sessions[0])
	for _, id := range server.sessions[1:] {
		assert.Equal(t, "session-123", id)
	}
}

func TestMCPExecuteHTTP(t *testing.T) {
	server := &mcpTestServer{t: t, callHandler: func(name string, args map[string]any) map[string]any {
		return map[string]any{
			"content": []any{
				map[string]any{"type": "text", "text": fmt.Sprintf("created %v", args["title"])},
				map[string]any{"type": "text", "text": "id=42"},
			},
		}
	}}
	ts := httptest.NewServer(server)
	defer ts.Close()

	source := newHTTPSource(t, ts.URL, nil)
	require.NoError(t, source.DiscoverTools(context.Background()))

	tool, _ := source.GetTool("create_ticket")
	result, err := tool.Execute(context.Background(), map[string]any{"title": "outage"})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "created outage\nid=42", result.Content)
	assert.Equal(t, "create_ticket", result.ToolName)
}

func TestMCPExecuteHTTPIsError(t *testing.T) {
	server := &mcpTestServer{t: t, callHandler: func(string, map[string]any) map[string]any {
		return map[string]any{
			"isError": true,
			"content": []any{map[string]any{"type": "text", "text": "ticket already exists"}},
		}
	}}
	ts := httptest.NewServer(server)
	defer ts.Close()

	source := newHTTPSource(t, ts.URL, nil)
	require.NoError(t, source.DiscoverTools(context.Background()))

	tool, _ := source.GetTool("create_ticket")
	result, err := tool.Execute(context.Background(), nil)
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, "ticket already exists", result.Error)
}

func TestMCPExecuteSSE(t *testing.T) {
	server := &mcpTestServer{t: t, sse: true, callHandler: func(string, map[string]any) map[string]any {
		return map[string]any{"content": []any{map[string]any{"type": "text", "text": "streamed"}}}
	}}
	ts := httptest.NewServer(server)
	defer ts.Close()

	source := newHTTPSource(t, ts.URL, nil)
	require.NoError(t, source.DiscoverTools(context.Background()))

	tool, _ := source.GetTool("create_ticket")
	result, err := tool.Execute(context.Background(), nil)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "streamed", result.Content)
}

func TestParametersFromSchema(t *testing.T) {
	params := parametersFromSchema(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"limit": map[string]any{"type": "integer", "default": float64(10)},
			"query": map[string]any{"type": "string", "description": "Search text"},
		},
		"required": []any{"query"},
	})

	require.Len(t, params, 2)
	assert.Equal(t, "limit", params[0].Name)
	assert.Equal(t, float64(10), params[0].Default)
	assert.False(t, params[0].Required)
	assert.Equal(t, "query", params[1].Name)
	assert.True(t, params[1].Required)

	assert.Nil(t, parametersFromSchema(nil))
}
