package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/danieljhkim/modsync/internal/archive"
	"github.com/danieljhkim/modsync/internal/clock"
	"github.com/danieljhkim/modsync/internal/config"
	"github.com/danieljhkim/modsync/internal/engine"
	"github.com/danieljhkim/modsync/internal/fingerprint"
	"github.com/danieljhkim/modsync/internal/fsops"
	"github.com/danieljhkim/modsync/internal/hash"
	"github.com/danieljhkim/modsync/internal/indexer"
	"github.com/danieljhkim/modsync/internal/loadout"
	"github.com/danieljhkim/modsync/internal/manifest"
	"github.com/danieljhkim/modsync/internal/observability"
	"github.com/danieljhkim/modsync/internal/sorting"
	"github.com/danieljhkim/modsync/internal/sortrules"
	"github.com/danieljhkim/modsync/internal/state"
)

// metrics collects for the running command; written by --metrics-file.
var metrics *observability.Metrics

// newEngine creates a new engine with real implementations of all dependencies.
func newEngine() (*engine.Engine, error) {
	// Get default paths
	paths, err := config.DefaultPaths()
	if err != nil {
		return nil, fmt.Errorf("failed to get config paths: %w", err)
	}

	fs := fsops.NewRealFS()

	// Ensure directories exist
	if err := paths.EnsureDirectories(fs.MkdirAll); err != nil {
		return nil, fmt.Errorf("failed to ensure directories: %w", err)
	}

	cfgFile := paths.Config
	if configPath != "" {
		cfgFile = configPath
	}
	cfg, err := config.LoadOrDefault(cfgFile)
	if err != nil {
		return nil, err
	}

	log, err := newLogger(cfg.Log)
	if err != nil {
		return nil, err
	}
	metrics = observability.NewMetrics()

	rules, err := fingerprint.New[[]loadout.SortRule](cfg.Cache.SortRules)
	if err != nil {
		return nil, fmt.Errorf("failed to create sort rule cache: %w", err)
	}

	clk := clock.System{}
	hasher := hash.NewXXHasher(fs.Afero())
	store := archive.NewZstdStore(fs, paths.Archive, cfg.Archive.Concurrency, log, metrics)

	return engine.New(engine.Deps{
		Config:   cfg,
		FS:       fs,
		Clock:    clk,
		Registry: loadout.NewFileRegistry(fs, paths.Loadouts, clk),
		States:   state.NewFileStateStore(fs, paths.Snapshots),
		Archive:  store,
		Indexer:  indexer.New(fs, hasher, cfg.Indexer.Workers, log, metrics),
		Sorter:   sorting.NewSorter(rules, log, sortrules.Alphabetical{}, sortrules.AfterAll{}),
		Importer: manifest.NewImporter(fs, hasher, store, log),
		Log:      log,
		Metrics:  metrics,
	}), nil
}

// newLogger builds the stderr logger. --log-level wins over the config
// file and the environment.
func newLogger(cfg config.LogConfig) (zerolog.Logger, error) {
	log := observability.NewStderrLogger("modsync", cfg)
	if logLevel == "" {
		return log, nil
	}
	level, ok := observability.ParseLevel(logLevel)
	if !ok {
		return zerolog.Nop(), fmt.Errorf("invalid --log-level %q", logLevel)
	}
	return log.Level(level), nil
}

// writeMetrics writes the collected metrics when --metrics-file is set.
func writeMetrics() error {
	if metricsFile == "" {
		return nil
	}
	return metrics.WriteTextfile(metricsFile)
}

// parseVersion parses an optional --version flag value.
func parseVersion(raw string) (loadout.VersionID, error) {
	if raw == "" {
		return loadout.VersionID{}, nil
	}
	v, err := loadout.ParseVersionID(raw)
	if err != nil {
		return loadout.VersionID{}, fmt.Errorf("invalid version %q: %w", raw, err)
	}
	return v, nil
}

// formatError formats an error for display.
func formatError(err error) string {
	return errorColor.Sprintf("Error: %v", err)
}

// outputJSON outputs a value as JSON to stdout.
func outputJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
