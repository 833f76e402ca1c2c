// Package engine provides the core business logic for modsync operations.
//
// The engine package acts as the orchestration layer between CLI commands and
// lower-level operations. It sorts and flattens loadouts, indexes game
// folders, builds plans, executes them and records the resulting disk state.
//
// Key components:
//   - Engine: Main orchestrator that coordinates all operations
//   - Manage/Import: Bring an installation and mods under management
//   - Apply/Ingest: Synchronize the game folder and the loadout
//   - executor: Runs plans in a fixed, backup-first phase order
//   - MergeLoadouts: Folds an ingest into a concurrently edited loadout
package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/danieljhkim/modsync/internal/archive"
	"github.com/danieljhkim/modsync/internal/clock"
	"github.com/danieljhkim/modsync/internal/config"
	"github.com/danieljhkim/modsync/internal/fingerprint"
	"github.com/danieljhkim/modsync/internal/fsops"
	"github.com/danieljhkim/modsync/internal/generators"
	"github.com/danieljhkim/modsync/internal/indexer"
	"github.com/danieljhkim/modsync/internal/loadout"
	"github.com/danieljhkim/modsync/internal/manifest"
	"github.com/danieljhkim/modsync/internal/observability"
	"github.com/danieljhkim/modsync/internal/overlay"
	"github.com/danieljhkim/modsync/internal/sorting"
	"github.com/danieljhkim/modsync/internal/state"
)

// Deps are the collaborators of an Engine.
type Deps struct {
	Config     *config.Config
	FS         fsops.FS
	Clock      clock.Clock
	Registry   loadout.Registry
	States     state.StateStore
	Archive    archive.Store
	Indexer    *indexer.FSIndexer
	Sorter     *sorting.Sorter
	Generators *generators.Registry
	Importer   *manifest.Importer
	Log        zerolog.Logger
	Metrics    *observability.Metrics
}

// Engine orchestrates all modsync operations.
// It is the main API surface called by the CLI.
type Engine struct {
	cfg        *config.Config
	fs         fsops.FS
	clock      clock.Clock
	registry   loadout.Registry
	states     state.StateStore
	archive    archive.Store
	indexer    *indexer.FSIndexer
	sorter     *sorting.Sorter
	generators *generators.Registry
	importer   *manifest.Importer
	behavior   overlay.IndexOverrideBehavior
	log        zerolog.Logger
	metrics    *observability.Metrics

	mu        sync.Mutex
	locks     map[string]*semaphore.Weighted
	generated map[string]*fingerprint.Cache[state.GeneratedRecord]
}

// New creates a new Engine with the given dependencies.
func New(deps Deps) *Engine {
	gens := deps.Generators
	if gens == nil {
		gens = generators.Default()
	}
	return &Engine{
		cfg:        deps.Config,
		fs:         deps.FS,
		clock:      deps.Clock,
		registry:   deps.Registry,
		states:     deps.States,
		archive:    deps.Archive,
		indexer:    deps.Indexer,
		sorter:     deps.Sorter,
		generators: gens,
		importer:   deps.Importer,
		behavior:   deps.Config.OverrideBehavior(),
		log:        deps.Log,
		metrics:    deps.Metrics,
		locks:      make(map[string]*semaphore.Weighted),
		generated:  make(map[string]*fingerprint.Cache[state.GeneratedRecord]),
	}
}

// lock takes the writer lock of an installation. Waiting honors ctx.
func (e *Engine) lock(ctx context.Context, installation string) (func(), error) {
	e.mu.Lock()
	sem, ok := e.locks[installation]
	if !ok {
		sem = semaphore.NewWeighted(1)
		e.locks[installation] = sem
	}
	e.mu.Unlock()

	if err := sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("failed to lock installation %s: %w", installation, err)
	}
	return func() { sem.Release(1) }, nil
}

func (e *Engine) installation(name string) (*config.Installation, error) {
	inst, err := e.cfg.Installation(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNoInstallation, name)
	}
	return inst, nil
}

func locations(inst *config.Installation) []indexer.Location {
	ids := inst.LocationIDs()
	out := make([]indexer.Location, 0, len(ids))
	for _, id := range ids {
		out = append(out, indexer.Location{ID: id, Root: inst.Roots[id]})
	}
	return out
}

// current loads the latest snapshot of an installation and the loadout
// version it recorded.
func (e *Engine) current(installation string) (*state.Snapshot, *loadout.Loadout, error) {
	snap, err := e.states.LoadLatest(installation)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil, fmt.Errorf("%w: %s", ErrNotManaged, installation)
		}
		return nil, nil, fmt.Errorf("failed to load snapshot: %w", err)
	}

	applied, err := e.registry.GetVersion(snap.Version)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load applied loadout: %w", err)
	}
	return snap, applied, nil
}

// head returns the newest version of the installation's loadout.
func (e *Engine) head(snap *state.Snapshot) (*loadout.Loadout, error) {
	l, err := e.registry.Get(snap.Loadout)
	if err != nil {
		if errors.Is(err, loadout.ErrNotFound) {
			return nil, fmt.Errorf("%w: loadout %s", ErrNotFound, snap.Loadout)
		}
		return nil, fmt.Errorf("failed to load loadout: %w", err)
	}
	return l, nil
}

// generatedCache returns the installation's generated-file cache, loading
// persisted entries the first time.
func (e *Engine) generatedCache(installation string) (*fingerprint.Cache[state.GeneratedRecord], error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if c, ok := e.generated[installation]; ok {
		return c, nil
	}
	c, err := fingerprint.New[state.GeneratedRecord](e.cfg.Cache.Generated)
	if err != nil {
		return nil, err
	}
	entries, err := e.states.LoadGenerated(installation)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load generated-file cache: %w", err)
	}
	c.Restore(entries)
	e.generated[installation] = c
	return c, nil
}

// index reads the game folder. previous may be nil.
func (e *Engine) index(ctx context.Context, inst *config.Installation, previous *state.Snapshot) (state.DiskState, []indexer.Result, error) {
	ix := e.indexer
	if previous != nil {
		ix = ix.WithPrevious(previous.Entries)
	}
	disk, unreadable, err := indexer.Collect(ctx, ix, locations(inst))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to index %s: %w", inst.Name, err)
	}
	return disk, unreadable, nil
}

// recordSnapshot saves the disk state after a transaction.
func (e *Engine) recordSnapshot(inst *config.Installation, l *loadout.Loadout, txID uint64, disk state.DiskState) (*state.Snapshot, error) {
	snap := &state.Snapshot{
		Installation: inst.Name,
		Loadout:      l.ID,
		Version:      l.Version,
		TxID:         txID,
		TakenAt:      e.clock.Now().UTC(),
		Entries:      disk,
	}
	if err := e.states.Save(snap); err != nil {
		return nil, fmt.Errorf("failed to save snapshot: %w", err)
	}
	e.metrics.SetSnapshot(inst.Name, len(disk), disk.TotalSize())
	return snap, nil
}

func unreadableError(results []indexer.Result) error {
	paths := make([]string, 0, len(results))
	for _, r := range results {
		paths = append(paths, r.Path.String())
	}
	return fmt.Errorf("%w: %v", ErrUnreadable, paths)
}
