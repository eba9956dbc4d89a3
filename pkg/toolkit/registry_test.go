package toolkit

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ProjectAlita/alita-sdk-sub007/pkg/event"
	"github.com/ProjectAlita/alita-sdk-sub007/pkg/security"
)

type fakeTool struct {
	name    string
	desc    string
	execute func(ctx context.Context, args map[string]any) (Result, error)
}

func (t *fakeTool) GetName() string        { return t.name }
func (t *fakeTool) GetDescription() string { return t.desc }
func (t *fakeTool) GetInfo() Info {
	return Info{Name: t.name, Description: t.desc}
}

func (t *fakeTool) Execute(ctx context.Context, args map[string]any) (Result, error) {
	if t.execute != nil {
		return t.execute(ctx, args)
	}
	return Result{Success: true, Content: "ok", ToolName: t.name}, nil
}

type fakeSource struct {
	name        string
	tools       []*fakeTool
	discoverErr error
	closed      bool
}

func (s *fakeSource) GetName() string { return s.name }
func (s *fakeSource) GetType() string { return "mcp" }

func (s *fakeSource) DiscoverTools(ctx context.Context) error {
	return s.discoverErr
}

func (s *fakeSource) ListTools() []Info {
	infos := make([]Info, 0, len(s.tools))
	for _, t := range s.tools {
		infos = append(infos, t.GetInfo())
	}
	return infos
}

func (s *fakeSource) GetTool(name string) (Tool, bool) {
	for _, t := range s.tools {
		if t.name == name {
			return t, true
		}
	}
	return nil, false
}

func (s *fakeSource) Close() error {
	s.closed = true
	return nil
}

func githubSource() *fakeSource {
	return &fakeSource{
		name: "github",
		tools: []*fakeTool{
			{name: "github_list_issues", desc: "List issues in a repository"},
			{name: "github_create_issue", desc: "Create an issue"},
		},
	}
}

func TestRegisterSource(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.RegisterSource(context.Background(), githubSource()))

	tools := r.ListTools()
	require.Len(t, tools, 2)
	assert.Equal(t, "github_create_issue", tools[0].Name)
	assert.Equal(t, "github", tools[0].Source)

	source, err := r.GetToolSource("github_list_issues")
	require.NoError(t, err)
	assert.Equal(t, "github", source)
}

func TestRegisterSourceDiscoveryFailure(t *testing.T) {
	r := NewRegistry()
	err := r.RegisterSource(context.Background(), &fakeSource{
		name:        "broken",
		discoverErr: errors.New("connection refused"),
	})

	var regErr *RegistryError
	require.ErrorAs(t, err, &regErr)
	assert.Equal(t, "RegisterSource", regErr.Action)
}

func TestDiscoverAllContinuesPastFailures(t *testing.T) {
	r := NewRegistry()

	good := githubSource()
	require.NoError(t, r.RegisterSource(context.Background(), good))

	bad := &fakeSource{name: "jira", tools: []*fakeTool{{name: "jira_get_issue"}}}
	require.NoError(t, r.RegisterSource(context.Background(), bad))

	bad.discoverErr = errors.New("server went away")
	require.NoError(t, r.DiscoverAll(context.Background()))

	tools := r.ListTools()
	require.Len(t, tools, 2)
	for _, info := range tools {
		assert.Equal(t, "github", info.Source)
	}
}

func TestExecute(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.RegisterSource(context.Background(), githubSource()))

	result, err := r.Execute(context.Background(), "github_list_issues", map[string]any{"repo": "alita"})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "github_list_issues", result.ToolName)
	assert.Greater(t, result.ExecutionTime.Nanoseconds(), int64(0))
}

func TestExecuteUnknownTool(t *testing.T) {
	r := NewRegistry()

	result, err := r.Execute(context.Background(), "nope", nil)
	require.Error(t, err)
	assert.False(t, result.Success)

	var regErr *RegistryError
	assert.ErrorAs(t, err, &regErr)
}

func TestExecuteToolFailure(t *testing.T) {
	r := NewRegistry()
	source := &fakeSource{
		name: "flaky",
		tools: []*fakeTool{{
			name: "flaky_call",
			execute: func(ctx context.Context, args map[string]any) (Result, error) {
				return Result{Success: false, Error: "upstream 500"}, nil
			},
		}},
	}
	require.NoError(t, r.RegisterSource(context.Background(), source))

	result, err := r.Execute(context.Background(), "flaky_call", nil)
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, "upstream 500", result.Error)
}

func TestExecuteBlocked(t *testing.T) {
	blocklist, err := security.New([]string{"glob:*_delete_*"})
	require.NoError(t, err)

	dispatcher := event.NewDispatcher()
	defer dispatcher.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := dispatcher.Subscribe(ctx, event.ToolBlocked)
	require.NoError(t, err)

	r := NewRegistry(
		WithBlocklist(blocklist),
		WithEmitter(dispatcher.Scope("toolkit")),
	)
	source := &fakeSource{
		name:  "jira",
		tools: []*fakeTool{{name: "jira_delete_issue"}},
	}
	require.NoError(t, r.RegisterSource(ctx, source))

	result, err := r.Execute(ctx, "jira_delete_issue", nil)
	require.Error(t, err)
	assert.False(t, result.Success)

	var blocked *security.BlockedError
	require.ErrorAs(t, err, &blocked)
	assert.Equal(t, "jira_delete_issue", blocked.Tool)

	got := <-events
	assert.Equal(t, "jira_delete_issue", got.Payload["tool"])
}

func TestRemoveSourceClosesIt(t *testing.T) {
	r := NewRegistry()
	source := githubSource()
	require.NoError(t, r.RegisterSource(context.Background(), source))

	require.NoError(t, r.RemoveSource("github"))
	assert.True(t, source.closed)
	assert.Empty(t, r.ListTools())
}

func TestRegistryErrorFormat(t *testing.T) {
	err := newRegistryError("Execute", "tool x not found", nil)
	assert.Equal(t, "[ToolkitRegistry:Execute] tool x not found", err.Error())

	wrapped := newRegistryError("Execute", "boom", fmt.Errorf("cause"))
	assert.Contains(t, wrapped.Error(), "cause")
	assert.Equal(t, "cause", errors.Unwrap(wrapped).Error())
}
