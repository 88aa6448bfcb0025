package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
sources:
  - name: claude-code
    root: /home/dev/.claude/projects
  - name: archive
    root: /srv/transcripts
    glob: "2026/**/*.jsonl"
    enabled: false
oracle:
  backend: ollama
  model: llama3.2
store:
  backend: sqlite
  path: /home/dev/.quirk/observations.db
thresholds:
  min_count_long_term: 3
  min_count_core: 5
  min_age_days: 14
retention:
  expiration_days: 60
destinations:
  - name: claude
    path: /home/dev/.claude/CLAUDE.md
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.Sources) != 2 {
		t.Fatalf("got %d sources, want 2", len(cfg.Sources))
	}
	if !cfg.Sources[0].IsEnabled() {
		t.Error("source without enabled flag must default to on")
	}
	if cfg.Sources[1].IsEnabled() {
		t.Error("explicitly disabled source reported enabled")
	}
	if cfg.Oracle.Backend != "ollama" || cfg.Oracle.Model != "llama3.2" {
		t.Errorf("oracle = %+v", cfg.Oracle)
	}
	if cfg.Store.Backend != "sqlite" {
		t.Errorf("store backend = %q", cfg.Store.Backend)
	}
	if cfg.Thresholds.MinCountCore != 5 || cfg.Thresholds.MinAgeDays != 14 {
		t.Errorf("thresholds = %+v", cfg.Thresholds)
	}
	if cfg.Retention.ExpirationDays != 60 {
		t.Errorf("expiration = %d, want 60", cfg.Retention.ExpirationDays)
	}

	res := cfg.Validate()
	if !res.Valid {
		t.Errorf("valid config rejected: %v", res.Errors)
	}
}

func TestLoadUnsupportedExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("x = 1"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestLoadOrDefaultMissingFile(t *testing.T) {
	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if len(cfg.Sources) == 0 || cfg.Oracle.Backend != "cli" {
		t.Errorf("defaults missing: %+v", cfg)
	}
	if res := cfg.Validate(); !res.Valid {
		t.Errorf("default config must validate: %v", res.Errors)
	}
}

func TestValidateCatchesProblems(t *testing.T) {
	cfg := Default()
	cfg.Sources = append(cfg.Sources, SourceConfig{Name: "claude-code", Root: "/tmp"})
	cfg.Oracle.Backend = "telepathy"
	cfg.Store.Path = ""
	cfg.Retention.ExpirationDays = -1

	res := cfg.Validate()
	if res.Valid {
		t.Fatal("broken config validated")
	}
	if len(res.Errors) < 4 {
		t.Errorf("errors = %v, want duplicate source, unknown backend, missing path, negative retention", res.Errors)
	}
}

func TestValidatePluginNeedsPath(t *testing.T) {
	cfg := Default()
	cfg.Oracle.Backend = "plugin"
	if res := cfg.Validate(); res.Valid {
		t.Fatal("plugin backend without path validated")
	}
	cfg.Oracle.PluginPath = "/usr/local/bin/quirk-oracle"
	if res := cfg.Validate(); !res.Valid {
		t.Fatalf("plugin backend with path rejected: %v", res.Errors)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := Default()
	cfg.Oracle.Backend = "openai"
	cfg.Oracle.Model = "gpt-4o-mini"

	if err := cfg.Save(path); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Oracle.Backend != "openai" || loaded.Oracle.Model != "gpt-4o-mini" {
		t.Errorf("round trip lost oracle config: %+v", loaded.Oracle)
	}
}
