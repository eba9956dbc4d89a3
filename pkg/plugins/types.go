// Package plugins loads external toolkit providers as subprocess plugins.
//
// A plugin is an executable shipped next to a <binary>.plugin.yaml manifest.
// The host talks to it over go-plugin's net/rpc protocol; tool arguments and
// results cross the boundary as JSON so providers never deal with gob.
package plugins

import (
	"fmt"
)

// Protocol identifies how the host talks to a plugin process.
type Protocol string

const (
	// ProtocolNetRPC is the only supported wire protocol.
	ProtocolNetRPC Protocol = "netrpc"
)

// Status tracks a plugin instance through its lifecycle.
type Status string

const (
	StatusUnloaded Status = "unloaded"
	StatusLoading  Status = "loading"
	StatusReady    Status = "ready"
	StatusError    Status = "error"
	StatusShutdown Status = "shutdown"
)

// Manifest describes a plugin, parsed from its .plugin.yaml file.
type Manifest struct {
	Name        string   `yaml:"name" json:"name"`
	Version     string   `yaml:"version" json:"version"`
	Author      string   `yaml:"author,omitempty" json:"author,omitempty"`
	Description string   `yaml:"description,omitempty" json:"description,omitempty"`
	Protocol    Protocol `yaml:"protocol" json:"protocol"`
	SDKVersion  string   `yaml:"sdk_version,omitempty" json:"sdk_version,omitempty"`
	Homepage    string   `yaml:"homepage,omitempty" json:"homepage,omitempty"`
	License     string   `yaml:"license,omitempty" json:"license,omitempty"`
}

// Validate checks the manifest's required fields.
func (m *Manifest) Validate() error {
	if m.Name == "" {
		return fmt.Errorf("%w: missing 'name'", ErrInvalidManifest)
	}
	if m.Version == "" {
		return fmt.Errorf("%w: missing 'version'", ErrInvalidManifest)
	}
	if m.Protocol == "" {
		return fmt.Errorf("%w: missing 'protocol'", ErrInvalidManifest)
	}
	if m.Protocol != ProtocolNetRPC {
		return fmt.Errorf("%w: unsupported protocol %q", ErrInvalidManifest, m.Protocol)
	}
	return nil
}

// ToolSpec describes one tool a provider exposes. Schema is a JSON Schema
// object for the tool's arguments.
type ToolSpec struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Schema      map[string]any `json:"schema,omitempty"`
}

// CallRequest is one tool invocation.
type CallRequest struct {
	Tool string         `json:"tool"`
	Args map[string]any `json:"args,omitempty"`
}

// CallResponse is the outcome of a tool invocation. Error carries
// tool-level failures; transport failures surface as Go errors instead.
type CallResponse struct {
	Success bool           `json:"success"`
	Content string         `json:"content,omitempty"`
	Output  map[string]any `json:"output,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// ToolkitProvider is the interface a plugin executable implements. Calls are
// synchronous; the host bounds them with its own timeouts.
type ToolkitProvider interface {
	ListTools() ([]ToolSpec, error)
	Call(req CallRequest) (CallResponse, error)
}

// PluginError wraps a failure with the plugin and operation that produced it.
type PluginError struct {
	PluginName string
	Operation  string
	Message    string
	Err        error
}

func (e *PluginError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[Plugin:%s] %s failed: %s: %v", e.PluginName, e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("[Plugin:%s] %s failed: %s", e.PluginName, e.Operation, e.Message)
}

func (e *PluginError) Unwrap() error {
	return e.Err
}

func newPluginError(pluginName, operation, message string, err error) *PluginError {
	return &PluginError{
		PluginName: pluginName,
		Operation:  operation,
		Message:    message,
		Err:        err,
	}
}

var (
	ErrPluginNotFound  = fmt.Errorf("plugin not found")
	ErrInvalidManifest = fmt.Errorf("invalid plugin manifest")
)
