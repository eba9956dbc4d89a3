package config

import "fmt"

// LoggerConfig configures logging behavior.
//
// Priority order (highest to lowest):
//  1. CLI flags (--log-level, --log-file, --log-format)
//  2. Environment variables (LOG_LEVEL, LOG_FILE, LOG_FORMAT)
//  3. Config file (logger section)
//  4. Defaults (info level, simple format, stderr)
type LoggerConfig struct {
	// Level is debug, info, warn, or error. Default: info.
	Level string `yaml:"level,omitempty" json:"level,omitempty"`

	// File is the log file path; empty means stderr.
	File string `yaml:"file,omitempty" json:"file,omitempty"`

	// Format is "simple" (level + message) or "verbose" (adds timestamps).
	// Default: simple.
	Format string `yaml:"format,omitempty" json:"format,omitempty"`
}

func (c *LoggerConfig) SetDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
	if c.Format == "" {
		c.Format = "simple"
	}
}

func (c *LoggerConfig) Validate() error {
	switch c.Level {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid log level %q (valid: debug, info, warn, error)", c.Level)
	}
	return nil
}
