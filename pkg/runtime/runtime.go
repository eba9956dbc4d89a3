// Package runtime wires the SDK together from a resolved config: security
// blocklist, event dispatcher, toolkit registry with its MCP and plugin
// sources, platform client, test harness, run-history store, and
// observability. This is the embedding surface for SDK consumers.
package runtime

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ProjectAlita/alita-sdk-sub007/pkg/config"
	"github.com/ProjectAlita/alita-sdk-sub007/pkg/event"
	"github.com/ProjectAlita/alita-sdk-sub007/pkg/observability"
	"github.com/ProjectAlita/alita-sdk-sub007/pkg/pipeline"
	"github.com/ProjectAlita/alita-sdk-sub007/pkg/plugins"
	"github.com/ProjectAlita/alita-sdk-sub007/pkg/security"
	"github.com/ProjectAlita/alita-sdk-sub007/pkg/toolkit"
)

// Runtime is a fully wired SDK instance.
type Runtime struct {
	config *config.Config

	blocklist     *security.Blocklist
	dispatcher    *event.Dispatcher
	toolkits      *toolkit.Registry
	pluginManager *plugins.Manager
	client        *pipeline.Client
	harness       *pipeline.Harness
	store         pipeline.Store
	dbPool        *config.DBPool
	observability *observability.Manager
}

// Option configures runtime construction.
type Option func(*options)

type options struct {
	baseDir string
}

// WithBaseDir resolves relative paths (seed files) against dir, normally the
// config file's directory.
func WithBaseDir(dir string) Option {
	return func(o *options) {
		o.baseDir = dir
	}
}

// New builds a runtime from the config. Toolkit sources that fail to connect
// are logged and skipped; everything else fails construction.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Runtime, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	r := &Runtime{config: cfg}

	obs := observability.NewManager(cfg.Observability)
	if err := obs.Initialize(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize observability: %w", err)
	}
	r.observability = obs

	blocklist, err := buildBlocklist(&cfg.Security)
	if err != nil {
		obs.Shutdown(ctx)
		return nil, err
	}
	r.blocklist = blocklist

	r.dispatcher = event.NewDispatcher()

	r.toolkits = toolkit.NewRegistry(
		toolkit.WithBlocklist(blocklist),
		toolkit.WithEmitter(r.dispatcher.Scope("toolkit")),
	)

	if err := r.wireToolkits(ctx); err != nil {
		r.Close()
		return nil, err
	}

	r.client = pipeline.NewClient(&cfg.Platform)

	if err := r.wireStore(ctx); err != nil {
		r.Close()
		return nil, err
	}

	harnessOpts := []pipeline.HarnessOption{
		pipeline.WithEmitter(r.dispatcher.Scope("harness")),
	}
	if o.baseDir != "" {
		harnessOpts = append(harnessOpts, pipeline.WithBaseDir(o.baseDir))
	}
	if r.store != nil {
		harnessOpts = append(harnessOpts, pipeline.WithStore(r.store))
	}
	r.harness = pipeline.NewHarness(r.client, harnessOpts...)

	return r, nil
}

func buildBlocklist(cfg *config.SecurityConfig) (*security.Blocklist, error) {
	var opts []security.Option
	if cfg.CaseInsensitive {
		opts = append(opts, security.WithCaseInsensitive())
	}

	blocklist, err := security.New(cfg.Blocklist, opts...)
	if err != nil {
		return nil, fmt.Errorf("invalid security blocklist: %w", err)
	}
	return blocklist, nil
}

// wireToolkits registers every enabled toolkit source: MCP servers from the
// toolkits section, plus plugin providers from explicit paths and the plugin
// discovery directory. A source that fails discovery is logged and skipped.
func (r *Runtime) wireToolkits(ctx context.Context) error {
	r.pluginManager = plugins.NewManager()

	for name, tk := range r.config.Toolkits {
		if !tk.IsEnabled() {
			slog.Debug("Skipping disabled toolkit", "toolkit", name)
			continue
		}

		source, err := r.buildSource(ctx, name, tk)
		if err != nil {
			slog.Warn("Failed to build toolkit source", "toolkit", name, "error", err)
			continue
		}

		if err := r.toolkits.RegisterSource(ctx, source); err != nil {
			slog.Warn("Failed to register toolkit source", "toolkit", name, "error", err)
			source.Close()
		}
	}

	if r.config.Plugins.IsEnabled() {
		if err := r.pluginManager.LoadAll(ctx, r.config.Plugins.Dir); err != nil {
			return fmt.Errorf("plugin discovery failed: %w", err)
		}

		for _, instance := range r.pluginManager.List() {
			source := toolkit.NewPluginSource(instance.Name(), instance, nil)
			if err := r.toolkits.RegisterSource(ctx, source); err != nil {
				slog.Warn("Failed to register plugin source", "plugin", instance.Name(), "error", err)
			}
		}
	}

	return nil
}

func (r *Runtime) buildSource(ctx context.Context, name string, tk *config.ToolkitConfig) (toolkit.Source, error) {
	switch tk.Type {
	case "mcp":
		return toolkit.NewMCPSource(name, tk)
	case "plugin":
		discovered, err := plugins.DiscoverAt(tk.Path)
		if err != nil {
			return nil, err
		}
		instance, err := plugins.NewLoader().Load(ctx, discovered)
		if err != nil {
			return nil, err
		}
		return toolkit.NewPluginSource(name, instance, tk.Tools), nil
	default:
		return nil, fmt.Errorf("unknown toolkit type %q", tk.Type)
	}
}

func (r *Runtime) wireStore(ctx context.Context) error {
	switch r.config.Store.Backend {
	case "", "memory":
		r.store = pipeline.NewMemoryStore()
	case "sql":
		dbCfg := r.config.Databases[r.config.Store.Database]
		if dbCfg == nil {
			return fmt.Errorf("store references unknown database %q", r.config.Store.Database)
		}
		r.dbPool = config.NewDBPool()
		store, err := pipeline.NewSQLStore(ctx, r.dbPool, dbCfg)
		if err != nil {
			return err
		}
		r.store = store
	}
	return nil
}

// Config returns the runtime's config.
func (r *Runtime) Config() *config.Config {
	return r.config
}

// Toolkits returns the toolkit registry.
func (r *Runtime) Toolkits() *toolkit.Registry {
	return r.toolkits
}

// Harness returns the pipeline test harness.
func (r *Runtime) Harness() *pipeline.Harness {
	return r.harness
}

// Client returns the platform client.
func (r *Runtime) Client() *pipeline.Client {
	return r.client
}

// Store returns the run-history store.
func (r *Runtime) Store() pipeline.Store {
	return r.store
}

// Events returns the event dispatcher.
func (r *Runtime) Events() *event.Dispatcher {
	return r.dispatcher
}

// Blocklist returns the security blocklist.
func (r *Runtime) Blocklist() *security.Blocklist {
	return r.blocklist
}

// WatchConfig blocks watching the loader for changes, publishing a
// config-reloaded event for each successful reload. The runtime itself is
// not re-wired; embedders subscribe and rebuild as they see fit.
func (r *Runtime) WatchConfig(ctx context.Context, loader *config.Loader) error {
	emitter := r.dispatcher.Scope("runtime")
	loader.OnChange(func(cfg *config.Config) {
		emitter.Emit(ctx, event.ConfigReloaded, map[string]any{
			"toolkits": len(cfg.Toolkits),
			"suites":   len(cfg.Suites),
		})
	})
	return loader.Watch(ctx)
}

// Close tears everything down in reverse construction order. Individual
// failures are logged; the first is returned.
func (r *Runtime) Close() error {
	var firstErr error
	record := func(what string, err error) {
		if err != nil {
			slog.Warn("Cleanup failed", "component", what, "error", err)
			if firstErr == nil {
				firstErr = fmt.Errorf("%s cleanup: %w", what, err)
			}
		}
	}

	if r.store != nil {
		record("store", r.store.Close())
	}
	if r.dbPool != nil {
		record("database pool", r.dbPool.Close())
	}
	if r.toolkits != nil {
		record("toolkit registry", r.toolkits.Close())
	}
	if r.pluginManager != nil {
		record("plugin manager", r.pluginManager.Close())
	}
	if r.dispatcher != nil {
		record("event dispatcher", r.dispatcher.Close())
	}
	if r.observability != nil {
		record("observability", r.observability.Shutdown(context.Background()))
	}

	return firstErr
}
