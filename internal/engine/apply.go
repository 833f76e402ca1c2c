package engine

import (
	"context"
	"fmt"

	"github.com/danieljhkim/modsync/internal/loadout"
	"github.com/danieljhkim/modsync/internal/planner"
)

// Apply writes a loadout version to the game folder.
//
// Algorithm steps:
// 1. Lock the installation and load its latest snapshot
// 2. Sort and flatten the target version into a file tree
// 3. Index the game folder and build the plan
// 4. Refuse on drift unless Force, return early on DryRun
// 5. Execute the plan: backups, deletes, extracts, generated files
// 6. Re-index and record a new snapshot
func (e *Engine) Apply(ctx context.Context, req *ApplyRequest) (*ApplyResult, error) {
	inst, err := e.installation(req.Installation)
	if err != nil {
		return nil, err
	}

	unlock, err := e.lock(ctx, inst.Name)
	if err != nil {
		return nil, err
	}
	defer unlock()

	snap, _, err := e.current(inst.Name)
	if err != nil {
		return nil, err
	}
	l, err := e.target(snap, req.Version)
	if err != nil {
		return nil, err
	}

	plan, err := e.planApply(ctx, inst, snap, l)
	if err != nil {
		return nil, err
	}

	result := &ApplyResult{Plan: plan, Executed: []planner.Step{}}
	if plan.HasConflicts() && !req.Force {
		return result, fmt.Errorf("%w: %d files changed since the last snapshot", ErrDrift, len(plan.Conflicts))
	}
	if req.DryRun {
		return result, nil
	}

	e.log.Info().
		Str("installation", inst.Name).
		Str("version", l.Version.Short()).
		Int("steps", len(plan.Steps)).
		Msg("applying loadout")

	cache, err := e.generatedCache(inst.Name)
	if err != nil {
		return nil, err
	}

	x := e.newExecutor(inst, "apply")
	runErr := x.runApply(ctx, plan, cache)
	result.Executed = x.executed
	if runErr != nil && !x.mutated() {
		return result, runErr
	}

	// A failed run leaves the disk somewhere between the two versions. The
	// snapshot then keeps the previous version so the next apply resumes
	// without reporting its own writes as drift.
	recorded := l
	if runErr != nil {
		recorded = &loadout.Loadout{ID: snap.Loadout, Version: snap.Version}
	}
	disk, unreadable, err := e.index(context.WithoutCancel(ctx), inst, snap)
	if err != nil {
		return result, err
	}
	if len(unreadable) > 0 {
		e.log.Warn().Int("files", len(unreadable)).Msg("files unreadable after apply")
	}
	result.Snapshot, err = e.recordSnapshot(inst, recorded, snap.TxID+1, disk)
	if err != nil {
		return result, err
	}
	if err := e.states.SaveGenerated(inst.Name, cache.Snapshot()); err != nil {
		return result, fmt.Errorf("failed to save generated-file cache: %w", err)
	}

	if runErr != nil {
		return result, runErr
	}
	e.log.Info().
		Str("installation", inst.Name).
		Int("executed", len(result.Executed)).
		Uint64("tx", result.Snapshot.TxID).
		Msg("applied loadout")
	return result, nil
}
