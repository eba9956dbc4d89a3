package main

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ProjectAlita/alita-sdk-sub007/pkg/config"
	"github.com/ProjectAlita/alita-sdk-sub007/pkg/pipeline"
	"github.com/ProjectAlita/alita-sdk-sub007/pkg/runtime"
)

const timeRound = time.Millisecond

// ValidateCmd loads the configuration and reports what it declares.
type ValidateCmd struct{}

func (c *ValidateCmd) Run(cli *CLI) error {
	ctx, cancel := signalContext()
	defer cancel()

	cfg, loader, err := cli.loadConfig(ctx)
	if err != nil {
		return err
	}
	defer loader.Close()

	fmt.Println("Configuration is valid.")
	fmt.Printf("  platform:  %s\n", cfg.Platform.BaseURL)
	fmt.Printf("  toolkits:  %d\n", len(cfg.Toolkits))
	fmt.Printf("  suites:    %d\n", len(cfg.Suites))
	fmt.Printf("  databases: %d\n", len(cfg.Databases))
	fmt.Printf("  store:     %s\n", cfg.Store.Backend)
	return nil
}

// ToolkitsCmd discovers configured toolkits and lists their tools.
type ToolkitsCmd struct{}

func (c *ToolkitsCmd) Run(cli *CLI) error {
	ctx, cancel := signalContext()
	defer cancel()

	rt, loader, err := cli.buildRuntime(ctx)
	if err != nil {
		return err
	}
	defer loader.Close()
	defer rt.Close()

	bySource := rt.Toolkits().ListBySource()
	if len(bySource) == 0 {
		fmt.Println("No toolkits configured.")
		return nil
	}

	sources := make([]string, 0, len(bySource))
	for name := range bySource {
		sources = append(sources, name)
	}
	sort.Strings(sources)

	for _, source := range sources {
		tools := bySource[source]
		fmt.Printf("%s (%d tools)\n", source, len(tools))
		for _, tool := range tools {
			desc := tool.Description
			if desc == "" {
				desc = "-"
			}
			fmt.Printf("  %-32s %s\n", tool.Name, desc)
		}
	}
	return nil
}

// RunCmd executes pipeline test suites. With no arguments every configured
// suite runs; exit status is non-zero when any case fails.
type RunCmd struct {
	Suites []string `arg:"" optional:"" help:"Suites to run (default: all)."`
	Store  string   `help:"Override the run-history store backend (memory or sql)." enum:",memory,sql" default:""`
}

func (c *RunCmd) Run(cli *CLI) error {
	ctx, cancel := signalContext()
	defer cancel()

	cfg, loader, err := cli.loadConfig(ctx)
	if err != nil {
		return err
	}
	defer loader.Close()

	if c.Store != "" {
		cfg.Store.Backend = c.Store
	}

	rt, err := runtime.New(ctx, cfg, runtime.WithBaseDir(cli.baseDir()))
	if err != nil {
		return err
	}
	defer rt.Close()

	names, err := selectSuites(rt.Config().Suites, c.Suites)
	if err != nil {
		return err
	}

	failed := 0
	for _, name := range names {
		result, err := rt.Harness().RunSuite(ctx, name, rt.Config().Suites[name])
		if err != nil {
			return fmt.Errorf("suite %q: %w", name, err)
		}
		printSuiteResult(result)
		failed += result.Failed
	}

	if failed > 0 {
		return fmt.Errorf("%d case(s) failed", failed)
	}
	return nil
}

// SeedCmd creates the pipelines a suite's cases declare, without running them.
type SeedCmd struct {
	Suite string `arg:"" help:"Suite to seed."`
}

func (c *SeedCmd) Run(cli *CLI) error {
	ctx, cancel := signalContext()
	defer cancel()

	rt, loader, err := cli.buildRuntime(ctx)
	if err != nil {
		return err
	}
	defer loader.Close()
	defer rt.Close()

	suite, ok := rt.Config().Suites[c.Suite]
	if !ok {
		return fmt.Errorf("unknown suite %q", c.Suite)
	}

	seeded, err := rt.Harness().SeedSuite(ctx, suite)
	if err != nil {
		return err
	}

	names := make([]string, 0, len(seeded))
	for name := range seeded {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("seeded %s -> %s (%s)\n", name, seeded[name].Name, seeded[name].ID)
	}
	return nil
}

// CleanupCmd deletes the platform pipelines a suite seeded.
type CleanupCmd struct {
	Suite string `arg:"" help:"Suite to clean up."`
}

func (c *CleanupCmd) Run(cli *CLI) error {
	ctx, cancel := signalContext()
	defer cancel()

	rt, loader, err := cli.buildRuntime(ctx)
	if err != nil {
		return err
	}
	defer loader.Close()
	defer rt.Close()

	suite, ok := rt.Config().Suites[c.Suite]
	if !ok {
		return fmt.Errorf("unknown suite %q", c.Suite)
	}

	deleted, err := rt.Harness().CleanupSuite(ctx, suite)
	if err != nil {
		return err
	}
	fmt.Printf("deleted %d pipeline(s)\n", deleted)
	return nil
}

// selectSuites resolves the suites to run, all of them when none are named.
func selectSuites(configured map[string]*config.SuiteConfig, requested []string) ([]string, error) {
	if len(configured) == 0 {
		return nil, fmt.Errorf("no suites configured")
	}

	if len(requested) == 0 {
		names := make([]string, 0, len(configured))
		for name := range configured {
			names = append(names, name)
		}
		sort.Strings(names)
		return names, nil
	}

	for _, name := range requested {
		if _, ok := configured[name]; !ok {
			return nil, fmt.Errorf("unknown suite %q", name)
		}
	}
	return requested, nil
}

func printSuiteResult(result *pipeline.SuiteResult) {
	fmt.Printf("suite %s: %d passed, %d failed (%s)\n",
		result.Suite, result.Passed, result.Failed, result.Duration.Round(timeRound))

	for _, cr := range result.Cases {
		mark := "PASS"
		if !cr.Success {
			mark = "FAIL"
		}
		line := fmt.Sprintf("  [%s] %-24s %s", mark, cr.Name, cr.Duration.Round(timeRound))
		if cr.Error != "" {
			line += ": " + cr.Error
		}
		fmt.Println(line)

		if len(cr.Extracted) > 0 {
			keys := make([]string, 0, len(cr.Extracted))
			for k := range cr.Extracted {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			parts := make([]string, 0, len(keys))
			for _, k := range keys {
				parts = append(parts, fmt.Sprintf("%s=%v", k, cr.Extracted[k]))
			}
			fmt.Printf("         extracted: %s\n", strings.Join(parts, " "))
		}
	}
}
