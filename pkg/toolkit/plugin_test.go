package toolkit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ProjectAlita/alita-sdk-sub007/pkg/plugins"
)

type stubProvider struct {
	block chan struct{}
}

func (p *stubProvider) ListTools() ([]plugins.ToolSpec, error) {
	return []plugins.ToolSpec{
		{Name: "lookup_user", Description: "Look up a user", Schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"id": map[string]any{"type": "string"},
			},
			"required": []any{"id"},
		}},
		{Name: "deactivate_user", Description: "Deactivate a user"},
	}, nil
}

func (p *stubProvider) Call(req plugins.CallRequest) (plugins.CallResponse, error) {
	if p.block != nil {
		<-p.block
	}
	switch req.Tool {
	case "lookup_user":
		return plugins.CallResponse{
			Success: true,
			Content: "found",
			Output:  map[string]any{"id": req.Args["id"]},
		}, nil
	default:
		return plugins.CallResponse{Success: false, Error: "permission denied"}, nil
	}
}

func stubInstance(p plugins.ToolkitProvider) *plugins.Instance {
	return plugins.NewLocalInstance(
		&plugins.Manifest{Name: "users", Version: "1.0.0", Protocol: plugins.ProtocolNetRPC},
		p,
	)
}

func TestPluginSourceDiscover(t *testing.T) {
	source := NewPluginSource("users", stubInstance(&stubProvider{}), nil)
	require.NoError(t, source.DiscoverTools(context.Background()))

	assert.Equal(t, "plugin", source.GetType())
	assert.Len(t, source.ListTools(), 2)

	tool, ok := source.GetTool("lookup_user")
	require.True(t, ok)
	info := tool.GetInfo()
	require.Len(t, info.Parameters, 1)
	assert.Equal(t, "id", info.Parameters[0].Name)
	assert.True(t, info.Parameters[0].Required)
}

func TestPluginSourceFilter(t *testing.T) {
	source := NewPluginSource("users", stubInstance(&stubProvider{}), []string{"lookup_user"})
	require.NoError(t, source.DiscoverTools(context.Background()))

	require.Len(t, source.ListTools(), 1)
	_, ok := source.GetTool("deactivate_user")
	assert.False(t, ok)
}

func TestPluginToolExecute(t *testing.T) {
	source := NewPluginSource("users", stubInstance(&stubProvider{}), nil)
	require.NoError(t, source.DiscoverTools(context.Background()))

	tool, _ := source.GetTool("lookup_user")
	result, err := tool.Execute(context.Background(), map[string]any{"id": "u-17"})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "found", result.Content)
	assert.Equal(t, "lookup_user", result.ToolName)

	tool, _ = source.GetTool("deactivate_user")
	result, err = tool.Execute(context.Background(), nil)
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, "permission denied", result.Error)
}

func TestPluginToolExecuteContextCancelled(t *testing.T) {
	provider := &stubProvider{block: make(chan struct{})}
	defer close(provider.block)

	source := NewPluginSource("users", stubInstance(provider), nil)
	require.NoError(t, source.DiscoverTools(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	tool, _ := source.GetTool("lookup_user")
	result, err := tool.Execute(ctx, nil)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, result.Success)
}
