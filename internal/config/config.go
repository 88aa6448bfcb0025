// Package config loads and validates the engine configuration file.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/quirk/internal/memory"
	"github.com/felixgeelhaar/quirk/internal/retention"
)

// SourceConfig describes one transcript source.
type SourceConfig struct {
	Name string `json:"name" yaml:"name"`
	Root string `json:"root" yaml:"root"`
	Glob string `json:"glob,omitempty" yaml:"glob,omitempty"`
	// Format is "jsonl" (Claude Code session files, the default) or
	// "json" (pre-parsed transcript exports).
	Format  string `json:"format,omitempty" yaml:"format,omitempty"`
	Enabled *bool  `json:"enabled,omitempty" yaml:"enabled,omitempty"`
}

// IsEnabled treats an absent flag as on.
func (s SourceConfig) IsEnabled() bool {
	return s.Enabled == nil || *s.Enabled
}

// OracleConfig selects the semantic backend.
type OracleConfig struct {
	Backend    string `json:"backend" yaml:"backend"`
	Model      string `json:"model,omitempty" yaml:"model,omitempty"`
	Binary     string `json:"binary,omitempty" yaml:"binary,omitempty"`
	BaseURL    string `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	PluginPath string `json:"plugin_path,omitempty" yaml:"plugin_path,omitempty"`
}

// StoreConfig selects the observation store backend.
type StoreConfig struct {
	Backend string `json:"backend" yaml:"backend"` // "snapshot" or "sqlite"
	Path    string `json:"path,omitempty" yaml:"path,omitempty"`
}

// DestinationConfig is one core promotion target.
type DestinationConfig struct {
	Name string `json:"name" yaml:"name"`
	Path string `json:"path" yaml:"path"`
}

// Config is the whole configuration file.
type Config struct {
	DataDir      string              `json:"data_dir,omitempty" yaml:"data_dir,omitempty"`
	Sources      []SourceConfig      `json:"sources" yaml:"sources"`
	Oracle       OracleConfig        `json:"oracle" yaml:"oracle"`
	Store        StoreConfig         `json:"store" yaml:"store"`
	Thresholds   memory.Thresholds   `json:"thresholds" yaml:"thresholds"`
	Retention    retention.Policy    `json:"retention" yaml:"retention"`
	Destinations []DestinationConfig `json:"destinations" yaml:"destinations"`
}

// ValidationResult represents the outcome of a config check.
type ValidationResult struct {
	Valid    bool
	Warnings []string
	Errors   []string
}

// Default returns the configuration used when no file exists: the Claude
// Code project directory as the only source, the claude binary as oracle,
// and the snapshot store under ~/.quirk.
func Default() *Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	dataDir := filepath.Join(home, ".quirk")
	return &Config{
		DataDir: dataDir,
		Sources: []SourceConfig{
			{Name: "claude-code", Root: filepath.Join(home, ".claude", "projects"), Glob: "**/*.jsonl"},
		},
		Oracle: OracleConfig{Backend: "cli", Binary: "claude"},
		Store: StoreConfig{
			Backend: "snapshot",
			Path:    filepath.Join(dataDir, "observations.json"),
		},
		Thresholds: memory.DefaultThresholds(),
		Retention:  retention.DefaultPolicy,
		Destinations: []DestinationConfig{
			{Name: "claude", Path: filepath.Join(home, ".claude", "CLAUDE.md")},
		},
	}
}

// Load reads a configuration file (JSON or YAML). Fields the file does not
// set keep their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) // #nosec G304
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal JSON config: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal YAML config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config format: %s (use .json or .yaml)", ext)
	}
	return cfg, nil
}

// LoadOrDefault loads path when it exists and falls back to defaults when
// it does not.
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return Default(), nil
	}
	return Load(path)
}

// Validate checks the configuration for completeness and consistency.
func (c *Config) Validate() ValidationResult {
	res := ValidationResult{
		Valid:    true,
		Warnings: []string{},
		Errors:   []string{},
	}

	if len(c.Sources) == 0 {
		res.Warnings = append(res.Warnings, "No sources configured; analyze runs will find nothing")
	}
	seen := map[string]bool{}
	for i, src := range c.Sources {
		if src.Name == "" {
			res.Valid = false
			res.Errors = append(res.Errors, fmt.Sprintf("source %d has no name", i))
		}
		if seen[src.Name] {
			res.Valid = false
			res.Errors = append(res.Errors, fmt.Sprintf("duplicate source name %q", src.Name))
		}
		seen[src.Name] = true
		if src.Root == "" {
			res.Valid = false
			res.Errors = append(res.Errors, fmt.Sprintf("source %q has no root directory", src.Name))
		}
		switch src.Format {
		case "", "jsonl", "json":
		default:
			res.Valid = false
			res.Errors = append(res.Errors, fmt.Sprintf("source %q has unknown format %q", src.Name, src.Format))
		}
	}

	switch c.Oracle.Backend {
	case "", "cli", "openai", "gemini", "ollama", "stub":
	case "plugin":
		if c.Oracle.PluginPath == "" {
			res.Valid = false
			res.Errors = append(res.Errors, "oracle backend plugin requires plugin_path")
		}
	default:
		res.Valid = false
		res.Errors = append(res.Errors, fmt.Sprintf("unknown oracle backend %q", c.Oracle.Backend))
	}

	switch c.Store.Backend {
	case "", "snapshot", "sqlite":
	default:
		res.Valid = false
		res.Errors = append(res.Errors, fmt.Sprintf("unknown store backend %q", c.Store.Backend))
	}
	if c.Store.Path == "" {
		res.Valid = false
		res.Errors = append(res.Errors, "store path is required")
	}

	if c.Thresholds.MinCountCore < c.Thresholds.MinCountLongTerm {
		res.Warnings = append(res.Warnings, "core count threshold below long-term threshold; every long-term entry will immediately qualify")
	}
	if c.Retention.ExpirationDays < 0 {
		res.Valid = false
		res.Errors = append(res.Errors, "retention expiration_days cannot be negative")
	}

	for i, d := range c.Destinations {
		if d.Path == "" {
			res.Valid = false
			res.Errors = append(res.Errors, fmt.Sprintf("destination %d (%s) has no path", i, d.Name))
		}
	}
	if len(c.Destinations) == 0 {
		res.Warnings = append(res.Warnings, "No destinations configured; core promotion will fail")
	}

	return res
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}
