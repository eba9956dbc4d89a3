// Package toolkit defines the tool abstraction at the heart of the SDK:
// tools grouped into sources (MCP servers, plugins), discovered into a
// registry, and executed behind the security blocklist with tracing,
// metrics, and events.
package toolkit

import (
	"context"
	"time"
)

// Info describes a tool to callers and agents.
type Info struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Parameters  []Parameter `json:"parameters,omitempty"`

	// Source names the toolkit the tool came from.
	Source string `json:"source,omitempty"`
}

// Parameter describes one tool argument.
type Parameter struct {
	Name        string   `json:"name"`
	Type        string   `json:"type"`
	Description string   `json:"description"`
	Required    bool     `json:"required"`
	Default     any      `json:"default,omitempty"`
	Enum        []string `json:"enum,omitempty"`
}

// Result is the outcome of one tool execution.
type Result struct {
	Success       bool           `json:"success"`
	Content       string         `json:"content,omitempty"`
	Output        any            `json:"output,omitempty"`
	Error         string         `json:"error,omitempty"`
	ToolName      string         `json:"tool_name"`
	ExecutionTime time.Duration  `json:"execution_time,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

// Tool is a single executable capability.
type Tool interface {
	GetInfo() Info

	Execute(ctx context.Context, args map[string]any) (Result, error)

	GetName() string

	GetDescription() string
}

// Source is a provider of tools: an MCP server or an external plugin.
type Source interface {
	GetName() string

	// GetType returns "mcp" or "plugin".
	GetType() string

	// DiscoverTools connects to the source and refreshes its tool list.
	DiscoverTools(ctx context.Context) error

	ListTools() []Info

	GetTool(name string) (Tool, bool)

	// Close releases the source's connection or process.
	Close() error
}
