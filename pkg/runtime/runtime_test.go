package runtime

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ProjectAlita/alita-sdk-sub007/pkg/config"
	"github.com/ProjectAlita/alita-sdk-sub007/pkg/event"
)

func baseConfig() *config.Config {
	cfg := &config.Config{
		Platform: config.PlatformConfig{
			BaseURL:  "http://localhost:8080",
			APIToken: "test-token",
			Timeout:  5 * time.Second,
		},
	}
	cfg.SetDefaults()
	return cfg
}

func TestNewWiresEverything(t *testing.T) {
	cfg := baseConfig()
	cfg.Security.Blocklist = []string{"glob:*_delete_*"}

	r, err := New(context.Background(), cfg)
	require.NoError(t, err)
	defer r.Close()

	assert.Same(t, cfg, r.Config())
	assert.NotNil(t, r.Toolkits())
	assert.NotNil(t, r.Harness())
	assert.NotNil(t, r.Client())
	assert.NotNil(t, r.Store())
	assert.NotNil(t, r.Events())
	require.NotNil(t, r.Blocklist())
	assert.True(t, r.Blocklist().Blocked("jira_delete_issue"))
}

func TestNewRequiresConfig(t *testing.T) {
	_, err := New(context.Background(), nil)
	require.Error(t, err)
}

func TestNewRejectsBadBlocklist(t *testing.T) {
	cfg := baseConfig()
	cfg.Security.Blocklist = []string{"glob:[unclosed"}

	_, err := New(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "blocklist")
}

func TestNewWithSQLStore(t *testing.T) {
	cfg := baseConfig()
	cfg.Store = config.StoreConfig{Backend: "sql", Database: "history"}
	cfg.Databases = map[string]*config.DatabaseConfig{
		"history": {Driver: "sqlite", Database: filepath.Join(t.TempDir(), "runs.db")},
	}
	cfg.SetDefaults()

	r, err := New(context.Background(), cfg)
	require.NoError(t, err)
	defer r.Close()

	records, err := r.Store().List(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestSkipsDisabledToolkit(t *testing.T) {
	cfg := baseConfig()
	cfg.Toolkits = map[string]*config.ToolkitConfig{
		"github": {
			Type:    "mcp",
			URL:     "http://localhost:9999",
			Enabled: config.BoolPtr(false),
		},
	}
	cfg.SetDefaults()

	r, err := New(context.Background(), cfg)
	require.NoError(t, err)
	defer r.Close()

	assert.Empty(t, r.Toolkits().ListTools())
}

func TestCloseIsSafeTwice(t *testing.T) {
	r, err := New(context.Background(), baseConfig())
	require.NoError(t, err)

	require.NoError(t, r.Close())
	require.NoError(t, r.Close())
}

func TestWatchConfigEmitsReloadEvents(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "alita.yaml")
	require.NoError(t, os.WriteFile(path, []byte("platform:\n  base_url: http://one\n"), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, loader, err := config.LoadConfigFile(ctx, path)
	require.NoError(t, err)
	defer loader.Close()

	r, err := New(ctx, cfg)
	require.NoError(t, err)
	defer r.Close()

	events, err := r.Events().Subscribe(ctx, event.ConfigReloaded)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = r.WatchConfig(ctx, loader)
	}()

	time.Sleep(200 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("platform:\n  base_url: http://two\n"), 0o644))

	select {
	case ev := <-events:
		assert.Equal(t, event.ConfigReloaded, ev.Type)
		assert.Equal(t, "runtime", ev.Component)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for reload event")
	}

	cancel()
	<-done
}
