package plugins

import (
	"context"
	"log/slog"
	"os/exec"
	"sync"

	"github.com/hashicorp/go-hclog"
	goplugin "github.com/hashicorp/go-plugin"
)

// Instance is a loaded plugin: its subprocess, RPC client, and manifest.
type Instance struct {
	manifest *Manifest
	provider ToolkitProvider
	client   *goplugin.Client

	mu     sync.Mutex
	status Status
}

// Name returns the manifest name.
func (i *Instance) Name() string {
	return i.manifest.Name
}

// Manifest returns the parsed manifest.
func (i *Instance) Manifest() *Manifest {
	return i.manifest
}

// Provider returns the live RPC-backed provider.
func (i *Instance) Provider() ToolkitProvider {
	return i.provider
}

// Status returns the current lifecycle status.
func (i *Instance) Status() Status {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.status
}

// Close kills the plugin subprocess. Idempotent.
func (i *Instance) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.status == StatusShutdown {
		return nil
	}
	if i.client != nil {
		i.client.Kill()
	}
	i.status = StatusShutdown
	return nil
}

// NewLocalInstance wraps an in-process provider as an instance, with no
// subprocess behind it. Embedders ship providers this way without paying for
// an extra executable.
func NewLocalInstance(manifest *Manifest, provider ToolkitProvider) *Instance {
	return &Instance{
		manifest: manifest,
		provider: provider,
		status:   StatusReady,
	}
}

// Loader starts plugin subprocesses and dispenses their providers.
type Loader struct {
	logger hclog.Logger
}

// NewLoader creates a loader. Plugin process output goes through hclog at
// warn level so healthy plugins stay quiet.
func NewLoader() *Loader {
	return &Loader{
		logger: hclog.New(&hclog.LoggerOptions{
			Name:  "alita-plugin",
			Level: hclog.Warn,
		}),
	}
}

// Load starts the discovered plugin's executable and returns a ready
// instance. The subprocess is killed on any failure.
func (l *Loader) Load(ctx context.Context, discovered *Discovered) (*Instance, error) {
	name := discovered.Name

	client := goplugin.NewClient(&goplugin.ClientConfig{
		HandshakeConfig:  Handshake,
		Plugins:          map[string]goplugin.Plugin{pluginSetName: &ToolkitPlugin{}},
		Cmd:              exec.CommandContext(ctx, discovered.Path),
		Logger:           l.logger,
		AllowedProtocols: []goplugin.Protocol{goplugin.ProtocolNetRPC},
	})

	rpcClient, err := client.Client()
	if err != nil {
		client.Kill()
		return nil, newPluginError(name, "Load", "failed to start plugin process", err)
	}

	raw, err := rpcClient.Dispense(pluginSetName)
	if err != nil {
		client.Kill()
		return nil, newPluginError(name, "Load", "failed to dispense provider", err)
	}

	provider, ok := raw.(ToolkitProvider)
	if !ok {
		client.Kill()
		return nil, newPluginError(name, "Load", "plugin does not implement the toolkit provider interface", nil)
	}

	slog.Info("Loaded plugin", "plugin", name, "version", discovered.Manifest.Version, "path", discovered.Path)

	return &Instance{
		manifest: discovered.Manifest,
		provider: provider,
		client:   client,
		status:   StatusReady,
	}, nil
}
