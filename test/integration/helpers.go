package integration

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

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

const installation = "skyrim"

// env is an engine wired to an in-memory filesystem, configured the way
// cli.newEngine configures a real one.
type env struct {
	t      *testing.T
	ctx    context.Context
	fs     *fsops.AferoFS
	store  archive.Store
	states *state.FileStateStore
	eng    *engine.Engine
}

type option func(cfg *config.Config, deps *engine.Deps)

// withArchive wraps the archive seen by the engine.
func withArchive(wrap func(archive.Store) archive.Store) option {
	return func(_ *config.Config, deps *engine.Deps) {
		deps.Archive = wrap(deps.Archive)
	}
}

func withOverrideBehavior(b string) option {
	return func(cfg *config.Config, _ *engine.Deps) {
		cfg.Sync.OverrideBehavior = b
	}
}

func setupTestEngine(t *testing.T, opts ...option) *env {
	t.Helper()

	fs := fsops.NewMemFS()
	paths := config.PathsAt("/modsync")
	require.NoError(t, paths.EnsureDirectories(fs.MkdirAll))

	cfg, err := config.Parse([]byte(`
installations:
  - name: skyrim
    game: skyrimse
    locations:
      Game: /games/skyrim
      Saves: /home/player/saves
cache:
  sort_rules: 32
  generated: 32
indexer:
  workers: 3
`))
	require.NoError(t, err)

	clk := clock.NewManual(time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC))
	log := zerolog.Nop()
	metrics := observability.NewMetrics()
	hasher := hash.NewXXHasher(fs.Afero())
	store := archive.NewZstdStore(fs, paths.Archive, 2, log, metrics)
	states := state.NewFileStateStore(fs, paths.Snapshots)

	rules, err := fingerprint.New[[]loadout.SortRule](cfg.Cache.SortRules)
	require.NoError(t, err)

	deps := engine.Deps{
		Config:   cfg,
		FS:       fs,
		Clock:    clk,
		Registry: loadout.NewFileRegistry(fs, paths.Loadouts, clk),
		States:   states,
		Archive:  store,
		Indexer:  indexer.New(fs, hasher, cfg.Indexer.Workers, log, metrics),
		Sorter:   sorting.NewSorter(rules, log, sortrules.Alphabetical{}, sortrules.AfterAll{}),
		Importer: manifest.NewImporter(fs, hasher, store, log),
		Log:      log,
		Metrics:  metrics,
	}
	for _, opt := range opts {
		opt(cfg, &deps)
	}

	return &env{
		t:      t,
		ctx:    context.Background(),
		fs:     fs,
		store:  store,
		states: states,
		eng:    engine.New(deps),
	}
}

func (e *env) write(path, content string) {
	e.t.Helper()
	require.NoError(e.t, e.fs.AtomicWrite(path, []byte(content), 0644))
}

func (e *env) read(path string) string {
	e.t.Helper()
	data, err := e.fs.ReadFile(path)
	require.NoError(e.t, err)
	return string(data)
}

func (e *env) exists(path string) bool {
	e.t.Helper()
	ok, err := e.fs.Exists(path)
	require.NoError(e.t, err)
	return ok
}

func (e *env) manage() *engine.ManageResult {
	e.t.Helper()
	result, err := e.eng.Manage(e.ctx, &engine.ManageRequest{Installation: installation})
	require.NoError(e.t, err)
	return result
}

// importManifest writes a manifest plus mod sources and imports it.
func (e *env) importManifest(manifestTOML string, sources map[string]string) *engine.ImportResult {
	e.t.Helper()
	for path, content := range sources {
		e.write("/downloads/"+path, content)
	}
	e.write("/downloads/modsync.toml", manifestTOML)

	result, err := e.eng.Import(e.ctx, &engine.ImportRequest{
		Installation: installation,
		ManifestPath: "/downloads/modsync.toml",
	})
	require.NoError(e.t, err)
	return result
}

func (e *env) apply(req engine.ApplyRequest) *engine.ApplyResult {
	e.t.Helper()
	req.Installation = installation
	result, err := e.eng.Apply(e.ctx, &req)
	require.NoError(e.t, err)
	return result
}

func (e *env) ingest() *engine.IngestResult {
	e.t.Helper()
	result, err := e.eng.Ingest(e.ctx, &engine.IngestRequest{Installation: installation})
	require.NoError(e.t, err)
	return result
}

func (e *env) planSteps() int {
	e.t.Helper()
	result, err := e.eng.Plan(e.ctx, &engine.PlanRequest{Installation: installation})
	require.NoError(e.t, err)
	return len(result.Plan.Steps)
}
