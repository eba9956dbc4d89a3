package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfig = `
platform:
  base_url: ${ALITA_URL:-https://alita.example.com}
  api_token: ${ALITA_TOKEN}
  project: demo
  timeout: 30s

toolkits:
  github:
    type: mcp
    command: github-mcp-server
    tools: [list_issues, create_issue]

security:
  blocklist:
    - jira_delete_issue
    - "glob:*_admin"

suites:
  smoke:
    cases:
      - name: echo
        seed:
          pipeline:
            name: echo
        expect:
          status: succeeded
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "alita.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfigFile(t *testing.T) {
	t.Setenv("ALITA_TOKEN", "tok-123")

	cfg, loader, err := LoadConfigFile(context.Background(), writeConfig(t, testConfig))
	require.NoError(t, err)
	defer loader.Close()

	assert.Equal(t, "https://alita.example.com", cfg.Platform.BaseURL)
	assert.Equal(t, "tok-123", cfg.Platform.APIToken)
	assert.Equal(t, "demo", cfg.Platform.Project)
	assert.Equal(t, 30*time.Second, cfg.Platform.Timeout)
	assert.Equal(t, 5, cfg.Platform.MaxRetries)

	require.Contains(t, cfg.Toolkits, "github")
	github := cfg.Toolkits["github"]
	assert.Equal(t, "mcp", github.Type)
	assert.Equal(t, "stdio", github.Transport)
	assert.True(t, github.IsEnabled())
	assert.Equal(t, []string{"list_issues", "create_issue"}, github.Tools)

	assert.Equal(t, []string{"jira_delete_issue", "glob:*_admin"}, cfg.Security.Blocklist)

	require.Contains(t, cfg.Suites, "smoke")
	smoke := cfg.Suites["smoke"]
	require.Len(t, smoke.Cases, 1)
	assert.Equal(t, "echo", smoke.Cases[0].Name)
	assert.Equal(t, StatusSucceeded, smoke.Cases[0].Expect.Status)
	assert.Equal(t, CleanupAlways, smoke.Cases[0].Cleanup)
	assert.Equal(t, 5*time.Minute, smoke.Cases[0].Timeout)
}

func TestLoadConfigFileMissing(t *testing.T) {
	_, _, err := LoadConfigFile(context.Background(), "/does/not/exist.yaml")
	assert.Error(t, err)
}

func TestParseJSONFallback(t *testing.T) {
	cfg, err := Parse([]byte(`{"platform": {"base_url": "http://localhost:8080"}}`))
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080", cfg.Platform.BaseURL)
}

func TestParseValidationFailure(t *testing.T) {
	_, err := Parse([]byte(`
platform:
  base_url: http://localhost
toolkits:
  bad:
    type: mcp
    transport: sse
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "url is required")
}

func TestLoaderWatchReload(t *testing.T) {
	path := writeConfig(t, "platform:\n  base_url: http://one\n")

	cfg, loader, err := LoadConfigFile(context.Background(), path)
	require.NoError(t, err)
	defer loader.Close()
	assert.Equal(t, "http://one", cfg.Platform.BaseURL)

	reloaded := make(chan *Config, 1)
	WithOnChange(func(c *Config) {
		select {
		case reloaded <- c:
		default:
		}
	})(loader)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = loader.Watch(ctx)
	}()

	time.Sleep(200 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("platform:\n  base_url: http://two\n"), 0o644))

	select {
	case fresh := <-reloaded:
		assert.Equal(t, "http://two", fresh.Platform.BaseURL)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for config reload")
	}

	cancel()
	<-done
}
