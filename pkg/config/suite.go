package config

import (
	"fmt"
	"time"
)

// Cleanup policies for seeded pipelines.
const (
	CleanupAlways    = "always"
	CleanupOnSuccess = "on_success"
	CleanupNever     = "never"
)

// Execution states the harness accepts as expected outcomes.
const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// SuiteConfig is a named group of pipeline test cases.
type SuiteConfig struct {
	// Variables are suite-wide defaults merged under each case's variables.
	Variables map[string]string `yaml:"variables,omitempty" json:"variables,omitempty"`

	// Cases run sequentially in declaration order.
	Cases []*CaseConfig `yaml:"cases" json:"cases"`
}

func (c *SuiteConfig) SetDefaults() {
	for _, tc := range c.Cases {
		if tc != nil {
			tc.SetDefaults()
		}
	}
}

func (c *SuiteConfig) Validate() error {
	if len(c.Cases) == 0 {
		return fmt.Errorf("at least one case is required")
	}

	seen := make(map[string]bool, len(c.Cases))
	for i, tc := range c.Cases {
		if tc == nil {
			return fmt.Errorf("case %d is empty", i)
		}
		if err := tc.Validate(); err != nil {
			return fmt.Errorf("case %q: %w", tc.Name, err)
		}
		if seen[tc.Name] {
			return fmt.Errorf("duplicate case name %q", tc.Name)
		}
		seen[tc.Name] = true
	}

	return nil
}

// CaseConfig is a single seed-run-verify-cleanup cycle.
type CaseConfig struct {
	// Name identifies the case in results and logs.
	Name string `yaml:"name" json:"name"`

	// Seed defines the pipeline to create before running.
	Seed SeedConfig `yaml:"seed" json:"seed"`

	// Input is the payload posted when running the pipeline.
	Input map[string]any `yaml:"input,omitempty" json:"input,omitempty"`

	// Expect describes the verified outcome.
	Expect ExpectConfig `yaml:"expect,omitempty" json:"expect,omitempty"`

	// Extract pulls named values out of the execution for the case result.
	Extract map[string]*ExtractConfig `yaml:"extract,omitempty" json:"extract,omitempty"`

	// Timeout bounds the run phase. Default: 5m.
	Timeout time.Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`

	// Cleanup selects when the seeded pipeline is deleted:
	// always (default), on_success, or never.
	Cleanup string `yaml:"cleanup,omitempty" json:"cleanup,omitempty" jsonschema:"enum=always,enum=on_success,enum=never"`
}

func (c *CaseConfig) SetDefaults() {
	if c.Timeout == 0 {
		c.Timeout = 5 * time.Minute
	}
	if c.Cleanup == "" {
		c.Cleanup = CleanupAlways
	}
	if c.Expect.Status == "" {
		c.Expect.Status = StatusSucceeded
	}
}

func (c *CaseConfig) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("name is required")
	}

	if err := c.Seed.Validate(); err != nil {
		return fmt.Errorf("seed: %w", err)
	}

	switch c.Expect.Status {
	case "", StatusSucceeded, StatusFailed, StatusCancelled:
	default:
		return fmt.Errorf("invalid expect.status %q (valid: succeeded, failed, cancelled)", c.Expect.Status)
	}

	for i, check := range c.Expect.Checks {
		if check == nil {
			continue
		}
		if err := check.Validate(); err != nil {
			return fmt.Errorf("expect.checks[%d]: %w", i, err)
		}
	}

	for name, ex := range c.Extract {
		if ex == nil {
			continue
		}
		if err := ex.Validate(); err != nil {
			return fmt.Errorf("extract %q: %w", name, err)
		}
	}

	switch c.Cleanup {
	case "", CleanupAlways, CleanupOnSuccess, CleanupNever:
	default:
		return fmt.Errorf("invalid cleanup %q (valid: always, on_success, never)", c.Cleanup)
	}

	return nil
}

// SeedConfig defines the pipeline created for a case: either a YAML/JSON
// file or an inline definition, with variables substituted into both.
type SeedConfig struct {
	// File is a pipeline definition file, resolved relative to the config.
	File string `yaml:"file,omitempty" json:"file,omitempty"`

	// Pipeline is an inline pipeline definition.
	Pipeline map[string]any `yaml:"pipeline,omitempty" json:"pipeline,omitempty"`

	// Variables are substituted into the definition with ${name} and
	// ${name:-default} syntax. Process environment fills the gaps.
	Variables map[string]string `yaml:"variables,omitempty" json:"variables,omitempty"`
}

func (c *SeedConfig) Validate() error {
	if c.File == "" && len(c.Pipeline) == 0 {
		return fmt.Errorf("either file or pipeline is required")
	}
	if c.File != "" && len(c.Pipeline) > 0 {
		return fmt.Errorf("file and pipeline are mutually exclusive")
	}
	return nil
}

// ExpectConfig describes the expected outcome of a case.
type ExpectConfig struct {
	// Status is the expected terminal state. Default: succeeded.
	Status string `yaml:"status,omitempty" json:"status,omitempty" jsonschema:"enum=succeeded,enum=failed,enum=cancelled"`

	// Checks assert on values extracted from the execution output.
	Checks []*CheckConfig `yaml:"checks,omitempty" json:"checks,omitempty"`
}

// CheckConfig asserts one value in the execution output.
type CheckConfig struct {
	// Path is a JSON path into the execution output.
	Path string `yaml:"path" json:"path"`

	// Equals requires deep equality with the extracted value.
	Equals any `yaml:"equals,omitempty" json:"equals,omitempty"`

	// Pattern matches the extracted value as a string: "glob:" for glob
	// patterns, "re:" for regular expressions, otherwise substring.
	Pattern string `yaml:"pattern,omitempty" json:"pattern,omitempty"`
}

func (c *CheckConfig) Validate() error {
	if c.Path == "" {
		return fmt.Errorf("path is required")
	}
	if c.Equals != nil && c.Pattern != "" {
		return fmt.Errorf("equals and pattern are mutually exclusive")
	}
	if c.Equals == nil && c.Pattern == "" {
		return fmt.Errorf("either equals or pattern is required")
	}
	return nil
}

// ExtractConfig pulls one named value out of an execution.
type ExtractConfig struct {
	// Path is a JSON path into the execution output.
	Path string `yaml:"path,omitempty" json:"path,omitempty"`

	// Regex extracts from the execution logs instead; the first capture
	// group (or group named "value") wins.
	Regex string `yaml:"regex,omitempty" json:"regex,omitempty"`
}

func (c *ExtractConfig) Validate() error {
	if c.Path == "" && c.Regex == "" {
		return fmt.Errorf("either path or regex is required")
	}
	if c.Path != "" && c.Regex != "" {
		return fmt.Errorf("path and regex are mutually exclusive")
	}
	return nil
}
