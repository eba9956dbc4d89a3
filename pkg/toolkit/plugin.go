package toolkit

import (
	"context"
	"fmt"
	"sync"

	"github.com/ProjectAlita/alita-sdk-sub007/pkg/plugins"
)

// PluginSource exposes a loaded plugin's tools as a toolkit source. The
// instance's lifecycle is owned by the source: Close kills the subprocess.
type PluginSource struct {
	name     string
	instance *plugins.Instance

	mu    sync.Mutex
	tools map[string]Tool

	filterSet map[string]bool
}

// NewPluginSource wraps a plugin instance. filter, when non-empty, keeps only
// the named tools.
func NewPluginSource(name string, instance *plugins.Instance, filter []string) *PluginSource {
	var filterSet map[string]bool
	if len(filter) > 0 {
		filterSet = make(map[string]bool, len(filter))
		for _, toolName := range filter {
			filterSet[toolName] = true
		}
	}

	return &PluginSource{
		name:      name,
		instance:  instance,
		tools:     make(map[string]Tool),
		filterSet: filterSet,
	}
}

func (s *PluginSource) GetName() string {
	return s.name
}

func (s *PluginSource) GetType() string {
	return "plugin"
}

// DiscoverTools asks the plugin for its tool list.
func (s *PluginSource) DiscoverTools(ctx context.Context) error {
	specs, err := s.instance.Provider().ListTools()
	if err != nil {
		return fmt.Errorf("plugin %s: failed to list tools: %w", s.name, err)
	}

	tools := make(map[string]Tool, len(specs))
	for _, spec := range specs {
		if s.filterSet != nil && !s.filterSet[spec.Name] {
			continue
		}
		tools[spec.Name] = &pluginTool{
			source: s,
			name:   spec.Name,
			desc:   spec.Description,
			params: parametersFromSchema(spec.Schema),
		}
	}

	s.mu.Lock()
	s.tools = tools
	s.mu.Unlock()
	return nil
}

func (s *PluginSource) ListTools() []Info {
	s.mu.Lock()
	defer s.mu.Unlock()

	infos := make([]Info, 0, len(s.tools))
	for _, tool := range s.tools {
		infos = append(infos, tool.GetInfo())
	}
	return infos
}

func (s *PluginSource) GetTool(name string) (Tool, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tool, ok := s.tools[name]
	return tool, ok
}

func (s *PluginSource) Close() error {
	return s.instance.Close()
}

type pluginTool struct {
	source *PluginSource
	name   string
	desc   string
	params []Parameter
}

func (t *pluginTool) GetName() string {
	return t.name
}

func (t *pluginTool) GetDescription() string {
	return t.desc
}

func (t *pluginTool) GetInfo() Info {
	return Info{
		Name:        t.name,
		Description: t.desc,
		Parameters:  t.params,
	}
}

// Execute forwards the call to the plugin process. The RPC itself is
// synchronous; ctx bounds the wait.
func (t *pluginTool) Execute(ctx context.Context, args map[string]any) (Result, error) {
	type callResult struct {
		resp plugins.CallResponse
		err  error
	}
	done := make(chan callResult, 1)

	go func() {
		resp, err := t.source.instance.Provider().Call(plugins.CallRequest{
			Tool: t.name,
			Args: args,
		})
		done <- callResult{resp: resp, err: err}
	}()

	select {
	case <-ctx.Done():
		return Result{Success: false, Error: ctx.Err().Error(), ToolName: t.name}, ctx.Err()
	case result := <-done:
		if result.err != nil {
			return Result{Success: false, Error: result.err.Error(), ToolName: t.name},
				fmt.Errorf("plugin call failed: %w", result.err)
		}

		resp := result.resp
		out := Result{
			Success:  resp.Success,
			Content:  resp.Content,
			Output:   resp.Output,
			Error:    resp.Error,
			ToolName: t.name,
		}
		return out, nil
	}
}

var _ Source = (*PluginSource)(nil)
