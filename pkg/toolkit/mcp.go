package toolkit

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ProjectAlita/alita-sdk-sub007/pkg/config"
	"github.com/ProjectAlita/alita-sdk-sub007/pkg/httpclient"
)

const (
	mcpProtocolVersion = "2024-11-05"

	// sseResponseTimeout bounds reading a single SSE response; long-running
	// tool calls can stream for minutes.
	sseResponseTimeout = 5 * time.Minute
)

// MCPSource exposes the tools of one MCP server.
//
// stdio servers are driven through mcp-go; sse and streamable-http servers
// through the retrying httpclient speaking JSON-RPC, with SSE response
// reading and session-id propagation.
type MCPSource struct {
	name string
	cfg  *config.ToolkitConfig

	mu         sync.Mutex
	client     *client.Client
	httpClient *httpclient.Client
	connected  bool
	tools      map[string]Tool

	sessionMu sync.RWMutex
	sessionID string

	filterSet map[string]bool
}

// NewMCPSource creates a source for the given toolkit config. The server is
// not contacted until DiscoverTools.
func NewMCPSource(name string, cfg *config.ToolkitConfig) (*MCPSource, error) {
	if cfg.URL == "" && cfg.Command == "" {
		return nil, fmt.Errorf("mcp source %s: either url or command is required", name)
	}

	var filterSet map[string]bool
	if len(cfg.Tools) > 0 {
		filterSet = make(map[string]bool, len(cfg.Tools))
		for _, toolName := range cfg.Tools {
			filterSet[toolName] = true
		}
	}

	return &MCPSource{
		name:      name,
		cfg:       cfg,
		tools:     make(map[string]Tool),
		filterSet: filterSet,
	}, nil
}

func (s *MCPSource) GetName() string {
	return s.name
}

func (s *MCPSource) GetType() string {
	return "mcp"
}

// DiscoverTools connects (if not yet connected) and refreshes the tool list.
func (s *MCPSource) DiscoverTools(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cfg.Transport == "stdio" {
		return s.discoverStdio(ctx)
	}
	return s.discoverHTTP(ctx)
}

func (s *MCPSource) discoverStdio(ctx context.Context) error {
	if s.client == nil {
		mcpClient, err := client.NewStdioMCPClient(
			s.cfg.Command,
			envSlice(s.cfg.Env),
			s.cfg.Args...,
		)
		if err != nil {
			return fmt.Errorf("failed to create MCP client: %w", err)
		}

		if err := mcpClient.Start(ctx); err != nil {
			return fmt.Errorf("failed to start MCP client: %w", err)
		}

		initReq := mcp.InitializeRequest{}
		initReq.Params.ClientInfo = mcp.Implementation{
			Name:    "alita-sdk",
			Version: "1.0.0",
		}
		initReq.Params.ProtocolVersion = mcpProtocolVersion

		if _, err := mcpClient.Initialize(ctx, initReq); err != nil {
			mcpClient.Close()
			return fmt.Errorf("failed to initialize MCP: %w", err)
		}

		s.client = mcpClient
	}

	listResp, err := s.client.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return fmt.Errorf("failed to list tools: %w", err)
	}

	tools := make(map[string]Tool, len(listResp.Tools))
	for _, remote := range listResp.Tools {
		if s.filterSet != nil && !s.filterSet[remote.Name] {
			continue
		}

		tools[remote.Name] = &mcpTool{
			source: s,
			name:   remote.Name,
			desc:   remote.Description,
			params: parametersFromSchema(schemaToMap(remote.InputSchema)),
			stdio:  true,
		}
	}

	s.tools = tools
	s.connected = true

	slog.Info("Connected to MCP server (stdio)",
		"source", s.name, "command", s.cfg.Command, "tools", len(tools))
	return nil
}

func (s *MCPSource) discoverHTTP(ctx context.Context) error {
	if s.httpClient == nil {
		s.httpClient = httpclient.New(
			httpclient.WithHTTPClient(&http.Client{Timeout: s.cfg.Timeout}),
			httpclient.WithMaxRetries(3),
			httpclient.WithBaseDelay(2*time.Second),
		)

		initResp, err := s.rpc(ctx, "initialize", map[string]any{
			"protocolVersion": mcpProtocolVersion,
			"clientInfo": map[string]any{
				"name":    "alita-sdk",
				"version": "1.0.0",
			},
			"capabilities": map[string]any{},
		})
		if err != nil {
			s.httpClient = nil
			return fmt.Errorf("failed to initialize MCP: %w", err)
		}
		if initResp.Error != nil {
			s.httpClient = nil
			return fmt.Errorf("MCP init error: %s", initResp.Error.Message)
		}
	}

	listResp, err := s.rpc(ctx, "tools/list", nil)
	if err != nil {
		return fmt.Errorf("failed to list tools: %w", err)
	}
	if listResp.Error != nil {
		return fmt.Errorf("MCP list error: %s", listResp.Error.Message)
	}

	resultMap, ok := listResp.Result.(map[string]any)
	if !ok {
		return fmt.Errorf("unexpected result type from tools/list")
	}
	toolsList, ok := resultMap["tools"].([]any)
	if !ok {
		return fmt.Errorf("missing tools in tools/list response")
	}

	tools := make(map[string]Tool, len(toolsList))
	for _, raw := range toolsList {
		toolMap, ok := raw.(map[string]any)
		if !ok {
			continue
		}

		name, _ := toolMap["name"].(string)
		if name == "" || (s.filterSet != nil && !s.filterSet[name]) {
			continue
		}
		desc, _ := toolMap["description"].(string)
		schema, _ := toolMap["inputSchema"].(map[string]any)

		tools[name] = &mcpTool{
			source: s,
			name:   name,
			desc:   desc,
			params: parametersFromSchema(schema),
		}
	}

	s.tools = tools
	s.connected = true

	slog.Info("Connected to MCP server (HTTP)",
		"source", s.name, "url", s.cfg.URL, "transport", s.cfg.Transport, "tools", len(tools))
	return nil
}

func (s *MCPSource) ListTools() []Info {
	s.mu.Lock()
	defer s.mu.Unlock()

	infos := make([]Info, 0, len(s.tools))
	for _, tool := range s.tools {
		infos = append(infos, tool.GetInfo())
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

func (s *MCPSource) GetTool(name string) (Tool, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tool, ok := s.tools[name]
	return tool, ok
}

// Close shuts the stdio subprocess down; HTTP transports have nothing to
// release.
func (s *MCPSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.connected = false
	s.tools = make(map[string]Tool)
	s.httpClient = nil

	if s.client != nil {
		err := s.client.Close()
		s.client = nil
		return err
	}
	return nil
}

// JSON-RPC plumbing for the HTTP transports.

type jsonRPCRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type jsonRPCResponse struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int           `json:"id"`
	Result  any           `json:"result,omitempty"`
	Error   *jsonRPCError `json:"error,omitempty"`
}

type jsonRPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (s *MCPSource) rpc(ctx context.Context, method string, params any) (*jsonRPCResponse, error) {
	body, err := json.Marshal(jsonRPCRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.URL, strings.NewReader(string(body)))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json, text/event-stream")
	for key, value := range s.cfg.Headers {
		httpReq.Header.Set(key, value)
	}

	s.sessionMu.RLock()
	sessionID := s.sessionID
	s.sessionMu.RUnlock()
	if sessionID != "" {
		httpReq.Header.Set("mcp-session-id", sessionID)
	}

	httpResp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer httpResp.Body.Close()

	if newSessionID := httpResp.Header.Get("mcp-session-id"); newSessionID != "" {
		s.sessionMu.Lock()
		s.sessionID = newSessionID
		s.sessionMu.Unlock()
	}

	if httpResp.StatusCode != http.StatusOK {
		responseBody, _ := io.ReadAll(httpResp.Body)
		return nil, fmt.Errorf("HTTP error %d: %s", httpResp.StatusCode, string(responseBody))
	}

	if strings.Contains(httpResp.Header.Get("Content-Type"), "text/event-stream") {
		return readSSEResponse(httpResp)
	}

	responseBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var resp jsonRPCResponse
	if err := json.Unmarshal(responseBody, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return &resp, nil
}

// readSSEResponse reads the first complete JSON-RPC message from an SSE
// stream.
func readSSEResponse(httpResp *http.Response) (*jsonRPCResponse, error) {
	type result struct {
		response *jsonRPCResponse
		err      error
	}
	resultChan := make(chan result, 1)

	go func() {
		reader := bufio.NewReader(httpResp.Body)
		var currentData strings.Builder

		flush := func() *jsonRPCResponse {
			if currentData.Len() == 0 {
				return nil
			}
			var resp jsonRPCResponse
			if err := json.Unmarshal([]byte(currentData.String()), &resp); err != nil {
				currentData.Reset()
				return nil
			}
			return &resp
		}

		for {
			line, err := reader.ReadBytes('\n')
			if err != nil {
				break
			}

			lineStr := strings.TrimSpace(string(line))
			if lineStr == "" {
				if resp := flush(); resp != nil {
					resultChan <- result{response: resp}
					return
				}
				continue
			}

			if strings.HasPrefix(lineStr, "data:") {
				currentData.WriteString(strings.TrimSpace(strings.TrimPrefix(lineStr, "data:")))
			}
		}

		if resp := flush(); resp != nil {
			resultChan <- result{response: resp}
			return
		}
		resultChan <- result{err: fmt.Errorf("SSE stream ended without complete message")}
	}()

	select {
	case res := <-resultChan:
		return res.response, res.err
	case <-time.After(sseResponseTimeout):
		return nil, fmt.Errorf("timeout reading SSE response after %v", sseResponseTimeout)
	}
}

// mcpTool adapts one remote MCP tool to the Tool interface.
type mcpTool struct {
	source *MCPSource
	name   string
	desc   string
	params []Parameter
	stdio  bool
}

func (t *mcpTool) GetName() string {
	return t.name
}

func (t *mcpTool) GetDescription() string {
	return t.desc
}

func (t *mcpTool) GetInfo() Info {
	return Info{
		Name:        t.name,
		Description: t.desc,
		Parameters:  t.params,
		Source:      t.source.name,
	}
}

func (t *mcpTool) Execute(ctx context.Context, args map[string]any) (Result, error) {
	if t.stdio {
		return t.executeStdio(ctx, args)
	}
	return t.executeHTTP(ctx, args)
}

func (t *mcpTool) executeStdio(ctx context.Context, args map[string]any) (Result, error) {
	t.source.mu.Lock()
	mcpClient := t.source.client
	t.source.mu.Unlock()

	if mcpClient == nil {
		return Result{Success: false, Error: "MCP client not connected", ToolName: t.name},
			fmt.Errorf("MCP client not connected")
	}

	req := mcp.CallToolRequest{}
	req.Params.Name = t.name
	req.Params.Arguments = args

	resp, err := mcpClient.CallTool(ctx, req)
	if err != nil {
		return Result{Success: false, Error: err.Error(), ToolName: t.name},
			fmt.Errorf("MCP call failed: %w", err)
	}

	var texts []string
	for _, content := range resp.Content {
		if textContent, ok := content.(mcp.TextContent); ok {
			texts = append(texts, textContent.Text)
		}
	}
	text := strings.Join(texts, "\n")

	if resp.IsError {
		errText := text
		if errText == "" {
			errText = "unknown error"
		}
		return Result{Success: false, Error: errText, ToolName: t.name}, nil
	}

	return Result{Success: true, Content: text, ToolName: t.name}, nil
}

func (t *mcpTool) executeHTTP(ctx context.Context, args map[string]any) (Result, error) {
	resp, err := t.source.rpc(ctx, "tools/call", map[string]any{
		"name":      t.name,
		"arguments": args,
	})
	if err != nil {
		return Result{Success: false, Error: err.Error(), ToolName: t.name},
			fmt.Errorf("MCP call failed: %w", err)
	}

	if resp.Error != nil {
		return Result{Success: false, Error: resp.Error.Message, ToolName: t.name}, nil
	}

	resultMap, ok := resp.Result.(map[string]any)
	if !ok {
		return Result{Success: true, Output: resp.Result, ToolName: t.name}, nil
	}

	var texts []string
	if content, ok := resultMap["content"].([]any); ok {
		for _, c := range content {
			cm, ok := c.(map[string]any)
			if !ok || cm["type"] != "text" {
				continue
			}
			if text, ok := cm["text"].(string); ok {
				texts = append(texts, text)
			}
		}
	}
	text := strings.Join(texts, "\n")

	if isError, _ := resultMap["isError"].(bool); isError {
		if text == "" {
			text = "unknown error"
		}
		return Result{Success: false, Error: text, ToolName: t.name}, nil
	}

	return Result{Success: true, Content: text, Output: resultMap, ToolName: t.name}, nil
}

// parametersFromSchema flattens a JSON Schema object into tool parameters.
func parametersFromSchema(schema map[string]any) []Parameter {
	if schema == nil {
		return nil
	}

	properties, _ := schema["properties"].(map[string]any)
	if len(properties) == 0 {
		return nil
	}

	required := make(map[string]bool)
	if reqList, ok := schema["required"].([]any); ok {
		for _, r := range reqList {
			if name, ok := r.(string); ok {
				required[name] = true
			}
		}
	}

	params := make([]Parameter, 0, len(properties))
	for name, raw := range properties {
		prop, _ := raw.(map[string]any)

		param := Parameter{
			Name:     name,
			Required: required[name],
		}
		if prop != nil {
			param.Type, _ = prop["type"].(string)
			param.Description, _ = prop["description"].(string)
			param.Default = prop["default"]
			if enumList, ok := prop["enum"].([]any); ok {
				for _, e := range enumList {
					if s, ok := e.(string); ok {
						param.Enum = append(param.Enum, s)
					}
				}
			}
		}
		params = append(params, param)
	}

	sort.Slice(params, func(i, j int) bool { return params[i].Name < params[j].Name })
	return params
}

func schemaToMap(schema mcp.ToolInputSchema) map[string]any {
	data, err := json.Marshal(schema)
	if err != nil {
		return nil
	}

	var result map[string]any
	if err := json.Unmarshal(data, &result); err != nil {
		return nil
	}
	return result
}

func envSlice(env map[string]string) []string {
	if env == nil {
		return nil
	}
	result := make([]string, 0, len(env))
	for k, v := range env {
		result = append(result, fmt.Sprintf("%s=%s", k, v))
	}
	return result
}

var _ Source = (*MCPSource)(nil)
