// Package config loads shake's optional user configuration.
//
// The file is never required: every setting has a default, and a missing
// file at the default location is not an error. Two formats are accepted:
//
//   - YAML (config.yaml, the default), parsed with gopkg.in/yaml.v3
//   - JSON with comments (*.json, *.jsonc), cleaned with
//     github.com/tidwall/jsonc and parsed with encoding/json
//
// Example config.yaml:
//
//	default_branch: main
//	go_module_prefix: github.com/acme
//	bootstrap:
//	  lfs: true
//	tools:
//	  cargo: /opt/rust/bin/cargo
//	log:
//	  file: ~/.local/state/shake/shake.log
//	  level: debug
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/shinji-kodama/shake/internal/bootstrap"
	"github.com/shinji-kodama/shake/internal/model"
)

// Config is the user configuration.
type Config struct {
	// DefaultBranch is the branch init/new create and clone checks out
	// when --branch is not given.
	DefaultBranch string `yaml:"default_branch" json:"default_branch"`

	// GoModulePrefix is the module path prefix used by the go bootstrap.
	GoModulePrefix string `yaml:"go_module_prefix" json:"go_module_prefix"`

	// Bootstrap lists initializers that run even without their flag.
	Bootstrap model.BootstrapSelection `yaml:"bootstrap" json:"bootstrap"`

	// Tools maps tool names (git, cargo, go, npm, dotnet, rye) to the
	// binary to run for them.
	Tools map[string]string `yaml:"tools" json:"tools"`

	Log LogConfig `yaml:"log" json:"log"`
}

// LogConfig controls the optional log file. Terminal logging is always on.
type LogConfig struct {
	File       string `yaml:"file" json:"file"`
	Level      string `yaml:"level" json:"level"`
	MaxSizeMB  int    `yaml:"max_size_mb" json:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups" json:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days" json:"max_age_days"`
}

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		DefaultBranch:  model.DefaultBranch,
		GoModulePrefix: bootstrap.DefaultGoModulePrefix,
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

// DefaultPath returns $XDG_CONFIG_HOME/shake/config.yaml, falling back to
// ~/.config when XDG_CONFIG_HOME is unset. It returns "" if neither can be
// determined.
func DefaultPath() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "shake", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "shake", "config.yaml")
}

// Load reads the configuration at path. An empty path means DefaultPath,
// and a missing file there yields Default(). A path given explicitly must
// exist.
func Load(path string) (Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultPath()
		if path == "" {
			return Default(), nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return Default(), model.WrapCLIError(model.ExitFilesystemError,
			fmt.Sprintf("failed to read config %s", path), err)
	}

	cfg, err := Parse(data, formatOf(path))
	if err != nil {
		return Default(), model.WrapCLIError(model.ExitInvalidInput,
			fmt.Sprintf("invalid config %s", path), err)
	}
	cfg.Log.File = expandHome(cfg.Log.File)
	return cfg, nil
}

// Format is a configuration file syntax.
type Format int

const (
	FormatYAML Format = iota
	FormatJSONC
)

func formatOf(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		return FormatJSONC
	}
	return FormatYAML
}

// Parse decodes data on top of Default() and validates the result.
func Parse(data []byte, format Format) (Config, error) {
	cfg := Default()

	switch format {
	case FormatJSONC:
		// Strip comments and trailing commas before handing the bytes to
		// encoding/json.
		if err := json.Unmarshal(jsonc.ToJSON(data), &cfg); err != nil {
			return Default(), err
		}
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Default(), err
		}
	}

	if err := cfg.Validate(); err != nil {
		return Default(), err
	}
	return cfg, nil
}

// branchRegex is a conservative subset of git's ref name rules.
var branchRegex = regexp.MustCompile(`^[A-Za-z0-9._][A-Za-z0-9._/-]*$`)

var knownTools = map[string]bool{
	"git": true, "cargo": true, "go": true, "npm": true, "dotnet": true, "rye": true,
}

var knownLevels = map[string]bool{
	"debug": true, "info": true, "warn": true, "error": true,
}

// Validate checks field values. Empty values fall back to defaults.
func (c *Config) Validate() error {
	if c.DefaultBranch == "" {
		c.DefaultBranch = model.DefaultBranch
	}
	if !branchRegex.MatchString(c.DefaultBranch) || strings.Contains(c.DefaultBranch, "..") {
		return fmt.Errorf("default_branch %q is not a valid branch name", c.DefaultBranch)
	}

	if c.GoModulePrefix == "" {
		c.GoModulePrefix = bootstrap.DefaultGoModulePrefix
	}
	c.GoModulePrefix = strings.TrimSuffix(c.GoModulePrefix, "/")

	for name := range c.Tools {
		if !knownTools[name] {
			return fmt.Errorf("tools: unknown tool %q", name)
		}
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	c.Log.Level = strings.ToLower(c.Log.Level)
	if !knownLevels[c.Log.Level] {
		return fmt.Errorf("log.level %q is invalid (valid: debug, info, warn, error)", c.Log.Level)
	}
	if c.Log.MaxSizeMB < 0 || c.Log.MaxBackups < 0 || c.Log.MaxAgeDays < 0 {
		return fmt.Errorf("log rotation limits must not be negative")
	}
	return nil
}

// Tool returns the configured binary for name, or name itself.
func (c Config) Tool(name string) string {
	if bin := c.Tools[name]; bin != "" {
		return bin
	}
	return name
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}
