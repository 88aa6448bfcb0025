package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/felixgeelhaar/quirk/internal/config"
	"github.com/felixgeelhaar/quirk/internal/credential"
	"github.com/felixgeelhaar/quirk/internal/memory"
	"github.com/felixgeelhaar/quirk/internal/oracle"
	"github.com/felixgeelhaar/quirk/internal/plugin"
	"github.com/felixgeelhaar/quirk/internal/store"
	"github.com/felixgeelhaar/quirk/internal/transcript"
)

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".quirk", "config.yaml")
}

func loadConfig() *config.Config {
	path := configPath
	if path == "" {
		path = defaultConfigPath()
	}
	cfg, err := config.LoadOrDefault(path)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

func getStore(cfg *config.Config) store.Store {
	var (
		s   store.Store
		err error
	)
	switch cfg.Store.Backend {
	case "sqlite":
		s, err = store.NewSQLiteStore(cfg.Store.Path, cfg.Retention)
	default:
		s, err = store.NewSnapshotStore(cfg.Store.Path, cfg.Retention)
	}
	if err != nil {
		fmt.Printf("Failed to init store: %v\n", err)
		os.Exit(1)
	}
	return s
}

func openVault(cfg *config.Config) (*credential.Vault, error) {
	return credential.OpenVault(filepath.Join(cfg.DataDir, "credentials.json"))
}

// getOracle builds the configured backend. The returned closer is non-nil
// only for the plugin backend, which runs as a child process.
func getOracle(cfg *config.Config) (oracle.Oracle, func(), error) {
	if cfg.Oracle.Backend == "plugin" {
		return plugin.Open(cfg.Oracle.PluginPath)
	}

	var apiKey string
	if vault, err := openVault(cfg); err == nil {
		apiKey, _ = vault.Get(cfg.Oracle.Backend)
	}
	if apiKey == "" {
		apiKey = apiKeyFromEnv(cfg.Oracle.Backend)
	}

	o, err := oracle.New(oracle.Options{
		Backend: cfg.Oracle.Backend,
		Model:   cfg.Oracle.Model,
		Binary:  cfg.Oracle.Binary,
		APIKey:  apiKey,
		BaseURL: cfg.Oracle.BaseURL,
	})
	return o, nil, err
}

func apiKeyFromEnv(backend string) string {
	switch backend {
	case "openai":
		return os.Getenv("OPENAI_API_KEY")
	case "gemini":
		return os.Getenv("GEMINI_API_KEY")
	}
	return ""
}

func getSources(cfg *config.Config) []transcript.Source {
	var sources []transcript.Source
	for _, sc := range cfg.Sources {
		if !sc.IsEnabled() {
			continue
		}
		if sc.Format == "json" {
			sources = append(sources, transcript.NewJSONSource(sc.Name, sc.Root, sc.Glob))
			continue
		}
		sources = append(sources, transcript.NewFileSource(sc.Name, sc.Root, sc.Glob))
	}
	return sources
}

func getHierarchy(cfg *config.Config, s store.Store) *memory.Hierarchy {
	doc, err := memory.OpenDocument(cfg.DataDir)
	if err != nil {
		fmt.Printf("Failed to open long-term memory: %v\n", err)
		os.Exit(1)
	}
	targets := make([]memory.Destination, 0, len(cfg.Destinations))
	for _, d := range cfg.Destinations {
		targets = append(targets, memory.NewFileDestination(d.Name, d.Path))
	}
	return memory.NewHierarchy(s, doc, cfg.Thresholds, targets...)
}

func lastRunPath(cfg *config.Config) string {
	return filepath.Join(cfg.DataDir, "last_run.json")
}
