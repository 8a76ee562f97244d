// Package config loads OpenDuck's application settings: defaults,
// overlaid by openduck.yaml, OPENDUCK_* environment variables, and CLI
// flags, in that order.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// Config file names looked up in the working directory.
const (
	FileName    = "openduck.yaml"
	FileNameAlt = "openduck.yml"
)

// Config holds the application settings.
type Config struct {
	// Workspace is the directory holding the config store and engine
	// database. Defaults to the current directory.
	Workspace string `koanf:"workspace"`

	// StorePath overrides the config store document path.
	StorePath string `koanf:"store_path"`

	// EnginePath is the DuckDB database path; empty means in-memory.
	EnginePath string `koanf:"engine_path"`

	// ConnectTimeout bounds direct protocol connects.
	ConnectTimeout time.Duration `koanf:"connect_timeout"`

	// Output is the default result format (table, json, csv, md).
	Output string `koanf:"output"`

	// LogLevel is the slog level name (debug, info, warn, error).
	LogLevel string `koanf:"log_level"`

	// Verbose raises the log level to debug.
	Verbose bool `koanf:"verbose"`
}

func defaults() map[string]any {
	return map[string]any{
		"workspace":       ".",
		"connect_timeout": "10s",
		"output":          "table",
		"log_level":       "warn",
	}
}

// Load builds the configuration. explicitFile forces a config file
// path; flags may be nil.
func Load(explicitFile string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := findConfigFile(explicitFile); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}
	} else if explicitFile != "" {
		return nil, fmt.Errorf("config file not found: %s", explicitFile)
	}

	if err := k.Load(env.Provider("OPENDUCK_", ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, "OPENDUCK_"))
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	if flags != nil {
		// Flag names use dashes; config keys use underscores.
		p := posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			return strings.ReplaceAll(f.Name, "-", "_"), posflag.FlagVal(flags, f)
		})
		if err := k.Load(p, nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Workspace == "" {
		c.Workspace = "."
	}
	if c.StorePath == "" {
		c.StorePath = filepath.Join(c.Workspace, "openduck.json")
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 10 * time.Second
	}
	if c.Output == "" {
		c.Output = "table"
	}
	if c.LogLevel == "" {
		c.LogLevel = "warn"
	}
	if c.Verbose {
		c.LogLevel = "debug"
	}
}

func findConfigFile(explicit string) string {
	if explicit != "" {
		if _, err := os.Stat(explicit); err == nil {
			return explicit
		}
		return ""
	}
	if _, err := os.Stat(FileName); err == nil {
		return FileName
	}
	if _, err := os.Stat(FileNameAlt); err == nil {
		return FileNameAlt
	}
	return ""
}
