// Package config defines the SDK configuration model: platform connection,
// toolkit sources, security rules, pipeline test suites, storage, logging,
// and observability. Config is loaded from YAML (or JSON) through a
// provider, expanded against the environment, decoded with mapstructure,
// defaulted, and validated.
package config

import (
	"fmt"
	"time"

	"github.com/ProjectAlita/alita-sdk-sub007/pkg/observability"
)

// Config is the root configuration for the SDK and CLI.
type Config struct {
	// Platform configures the connection to the Alita platform API.
	Platform PlatformConfig `yaml:"platform" json:"platform" jsonschema:"title=Platform,description=Platform API connection"`

	// Toolkits declares external tool sources keyed by name.
	Toolkits map[string]*ToolkitConfig `yaml:"toolkits,omitempty" json:"toolkits,omitempty" jsonschema:"title=Toolkits,description=External tool sources"`

	// Security configures the tool execution blocklist.
	Security SecurityConfig `yaml:"security,omitempty" json:"security,omitempty"`

	// Plugins configures external toolkit plugin discovery.
	Plugins PluginsConfig `yaml:"plugins,omitempty" json:"plugins,omitempty"`

	// Suites declares pipeline test suites keyed by name.
	Suites map[string]*SuiteConfig `yaml:"suites,omitempty" json:"suites,omitempty" jsonschema:"title=Suites,description=Pipeline test suites"`

	// Store configures run-history persistence.
	Store StoreConfig `yaml:"store,omitempty" json:"store,omitempty"`

	// Databases declares SQL databases keyed by name.
	Databases map[string]*DatabaseConfig `yaml:"databases,omitempty" json:"databases,omitempty"`

	// Logger configures logging output.
	Logger LoggerConfig `yaml:"logger,omitempty" json:"logger,omitempty"`

	// Observability configures tracing and metrics.
	Observability observability.Config `yaml:"observability,omitempty" json:"observability,omitempty"`
}

// PlatformConfig describes how to reach the platform API.
type PlatformConfig struct {
	// BaseURL is the platform API root, e.g. "https://alita.example.com".
	BaseURL string `yaml:"base_url" json:"base_url" jsonschema:"title=Base URL,description=Platform API root URL"`

	// APIToken is the bearer token sent with every request.
	APIToken string `yaml:"api_token,omitempty" json:"api_token,omitempty"`

	// Project scopes all pipeline operations to a platform project.
	Project string `yaml:"project,omitempty" json:"project,omitempty"`

	// Timeout bounds individual HTTP requests. Default: 60s.
	Timeout time.Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`

	// MaxRetries bounds HTTP retry attempts. Default: 5.
	MaxRetries int `yaml:"max_retries,omitempty" json:"max_retries,omitempty"`
}

func (c *PlatformConfig) SetDefaults() {
	if c.Timeout == 0 {
		c.Timeout = 60 * time.Second
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 5
	}
}

func (c *PlatformConfig) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base_url is required")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max_retries must be non-negative")
	}
	return nil
}

// ToolkitConfig declares a single external tool source.
type ToolkitConfig struct {
	// Type selects the source kind: "mcp" or "plugin".
	Type string `yaml:"type" json:"type" jsonschema:"enum=mcp,enum=plugin"`

	// Transport selects the MCP transport: "stdio", "sse", or
	// "streamable-http". Default: stdio when Command is set, otherwise
	// streamable-http.
	Transport string `yaml:"transport,omitempty" json:"transport,omitempty"`

	// Command and Args launch a stdio MCP server.
	Command string   `yaml:"command,omitempty" json:"command,omitempty"`
	Args    []string `yaml:"args,omitempty" json:"args,omitempty"`

	// Env is extra environment for the launched command.
	Env map[string]string `yaml:"env,omitempty" json:"env,omitempty"`

	// URL is the endpoint for HTTP transports.
	URL string `yaml:"url,omitempty" json:"url,omitempty"`

	// Headers are sent with every HTTP transport request.
	Headers map[string]string `yaml:"headers,omitempty" json:"headers,omitempty"`

	// Tools restricts discovery to the named tools. Empty means all.
	Tools []string `yaml:"tools,omitempty" json:"tools,omitempty"`

	// Path locates a plugin binary or manifest for type "plugin".
	Path string `yaml:"path,omitempty" json:"path,omitempty"`

	// Enabled toggles the source. Default: true.
	Enabled *bool `yaml:"enabled,omitempty" json:"enabled,omitempty"`

	// Timeout bounds discovery and tool calls. Default: 30s.
	Timeout time.Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`
}

func (c *ToolkitConfig) SetDefaults() {
	if c.Type == "" {
		c.Type = "mcp"
	}
	if c.Transport == "" && c.Type == "mcp" {
		if c.Command != "" {
			c.Transport = "stdio"
		} else {
			c.Transport = "streamable-http"
		}
	}
	if c.Enabled == nil {
		c.Enabled = BoolPtr(true)
	}
	if c.Timeout == 0 {
		c.Timeout = 30 * time.Second
	}
}

func (c *ToolkitConfig) Validate() error {
	switch c.Type {
	case "mcp":
		switch c.Transport {
		case "stdio":
			if c.Command == "" {
				return fmt.Errorf("command is required for stdio transport")
			}
		case "sse", "streamable-http":
			if c.URL == "" {
				return fmt.Errorf("url is required for %s transport", c.Transport)
			}
		default:
			return fmt.Errorf("invalid transport %q (valid: stdio, sse, streamable-http)", c.Transport)
		}
	case "plugin":
		if c.Path == "" {
			return fmt.Errorf("path is required for plugin toolkits")
		}
	default:
		return fmt.Errorf("invalid toolkit type %q (valid: mcp, plugin)", c.Type)
	}
	return nil
}

// IsEnabled reports whether the toolkit should be wired up.
func (c *ToolkitConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// SecurityConfig configures the tool execution blocklist.
type SecurityConfig struct {
	// Blocklist lists blocked tool names; entries prefixed "glob:" are
	// doublestar patterns.
	Blocklist []string `yaml:"blocklist,omitempty" json:"blocklist,omitempty"`

	// CaseInsensitive folds tool names before matching.
	CaseInsensitive bool `yaml:"case_insensitive,omitempty" json:"case_insensitive,omitempty"`
}

// PluginsConfig configures plugin manifest discovery.
type PluginsConfig struct {
	// Dir is scanned for *.yaml plugin manifests.
	Dir string `yaml:"dir,omitempty" json:"dir,omitempty"`

	// Enabled toggles discovery. Default: true when Dir is set.
	Enabled *bool `yaml:"enabled,omitempty" json:"enabled,omitempty"`
}

// IsEnabled reports whether plugin discovery should run.
func (c *PluginsConfig) IsEnabled() bool {
	if c.Dir == "" {
		return false
	}
	return c.Enabled == nil || *c.Enabled
}

// StoreConfig configures run-history persistence.
type StoreConfig struct {
	// Backend selects "memory" or "sql". Default: memory.
	Backend string `yaml:"backend,omitempty" json:"backend,omitempty" jsonschema:"enum=memory,enum=sql"`

	// Database names an entry in Databases for the sql backend.
	Database string `yaml:"database,omitempty" json:"database,omitempty"`
}

func (c *StoreConfig) SetDefaults() {
	if c.Backend == "" {
		c.Backend = "memory"
	}
}

func (c *StoreConfig) Validate() error {
	switch c.Backend {
	case "memory":
	case "sql":
		if c.Database == "" {
			return fmt.Errorf("database is required for the sql backend")
		}
	default:
		return fmt.Errorf("invalid store backend %q (valid: memory, sql)", c.Backend)
	}
	return nil
}

// SetDefaults applies defaults to the whole tree.
func (c *Config) SetDefaults() {
	c.Platform.SetDefaults()
	for _, tk := range c.Toolkits {
		if tk != nil {
			tk.SetDefaults()
		}
	}
	for _, suite := range c.Suites {
		if suite != nil {
			suite.SetDefaults()
		}
	}
	c.Store.SetDefaults()
	for _, db := range c.Databases {
		if db != nil {
			db.SetDefaults()
		}
	}
	c.Logger.SetDefaults()
	c.Observability.SetDefaults()
}

// Validate checks the whole tree and cross-references.
func (c *Config) Validate() error {
	if err := c.Platform.Validate(); err != nil {
		return fmt.Errorf("platform: %w", err)
	}

	for name, tk := range c.Toolkits {
		if tk == nil {
			continue
		}
		if err := tk.Validate(); err != nil {
			return fmt.Errorf("toolkit %q: %w", name, err)
		}
	}

	for name, suite := range c.Suites {
		if suite == nil {
			continue
		}
		if err := suite.Validate(); err != nil {
			return fmt.Errorf("suite %q: %w", name, err)
		}
	}

	if err := c.Store.Validate(); err != nil {
		return fmt.Errorf("store: %w", err)
	}
	if c.Store.Backend == "sql" {
		if _, ok := c.Databases[c.Store.Database]; !ok {
			return fmt.Errorf("store: database %q not found (available: %v)",
				c.Store.Database, mapKeys(c.Databases))
		}
	}

	for name, db := range c.Databases {
		if db == nil {
			continue
		}
		if err := db.Validate(); err != nil {
			return fmt.Errorf("database %q: %w", name, err)
		}
	}

	if err := c.Logger.Validate(); err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	if err := c.Observability.Validate(); err != nil {
		return fmt.Errorf("observability: %w", err)
	}

	return nil
}

func mapKeys[K comparable, V any](m map[K]V) []K {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}

// BoolPtr returns a pointer to b, for optional config booleans.
func BoolPtr(b bool) *bool {
	return &b
}
