// Command alita is the CLI for the Alita SDK.
//
// Usage:
//
//	alita validate --config alita.yaml
//	alita toolkits --config alita.yaml
//	alita run --config alita.yaml smoke
//	alita stub --addr :8080
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/alecthomas/kong"

	alita "github.com/ProjectAlita/alita-sdk-sub007"
	"github.com/ProjectAlita/alita-sdk-sub007/pkg/config"
	"github.com/ProjectAlita/alita-sdk-sub007/pkg/config/provider"
	"github.com/ProjectAlita/alita-sdk-sub007/pkg/runtime"
)

// CLI defines the command-line interface.
type CLI struct {
	Version  VersionCmd  `cmd:"" help:"Show version information."`
	Validate ValidateCmd `cmd:"" help:"Validate the configuration."`
	Schema   SchemaCmd   `cmd:"" help:"Generate the configuration JSON Schema."`
	Toolkits ToolkitsCmd `cmd:"" help:"Discover and list toolkit tools."`
	Run      RunCmd      `cmd:"" help:"Run pipeline test suites."`
	Seed     SeedCmd     `cmd:"" help:"Seed suite pipelines without running them."`
	Cleanup  CleanupCmd  `cmd:"" help:"Delete pipelines seeded for a suite."`
	Stub     StubCmd     `cmd:"" help:"Serve the local stub platform."`

	Config     string   `short:"c" help:"Config file path, or KV key for remote sources." type:"path"`
	ConfigType string   `name:"config-type" help:"Config source: file, consul, etcd, or zookeeper." default:"file"`
	Endpoints  []string `help:"KV store endpoints for remote config sources."`

	LogLevel  string `help:"Log level (debug, info, warn, error)." default:""`
	LogFile   string `help:"Log file path (empty = stderr)."`
	LogFormat string `help:"Log format (simple or verbose)." default:""`
}

// VersionCmd shows version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Println(alita.GetVersion())
	return nil
}

// loadConfig resolves the config from the selected provider.
func (cli *CLI) loadConfig(ctx context.Context) (*config.Config, *config.Loader, error) {
	if cli.Config == "" {
		return nil, nil, fmt.Errorf("--config is required")
	}

	providerType, err := provider.ParseType(cli.ConfigType)
	if err != nil {
		return nil, nil, err
	}

	cfg, loader, err := config.LoadConfig(ctx, provider.Options{
		Type:      providerType,
		Path:      cli.Config,
		Endpoints: cli.Endpoints,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	slog.Info("Loaded configuration", "source", cli.ConfigType, "path", cli.Config)
	return cfg, loader, nil
}

// baseDir is the directory seed files resolve against: the config file's
// directory for file configs, the working directory otherwise.
func (cli *CLI) baseDir() string {
	if cli.ConfigType == "file" && cli.Config != "" {
		return filepath.Dir(cli.Config)
	}
	return ""
}

func (cli *CLI) buildRuntime(ctx context.Context) (*runtime.Runtime, *config.Loader, error) {
	cfg, loader, err := cli.loadConfig(ctx)
	if err != nil {
		return nil, nil, err
	}

	rt, err := runtime.New(ctx, cfg, runtime.WithBaseDir(cli.baseDir()))
	if err != nil {
		loader.Close()
		return nil, nil, err
	}
	return rt, loader, nil
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		slog.Info("Shutting down...")
		cancel()
	}()

	return ctx, cancel
}

func main() {
	_ = config.LoadEnvFiles()

	cli := CLI{}
	ctx := kong.Parse(&cli,
		kong.Name("alita"),
		kong.Description("Alita SDK - toolkit integrations and pipeline test harness"),
		kong.UsageOnError(),
	)

	cleanup, err := initLogger(cli.LogLevel, cli.LogFile, cli.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	if cleanup != nil {
		defer cleanup()
	}

	err = ctx.Run(&cli)
	ctx.FatalIfErrorf(err)
}
