package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/danieljhkim/modsync/internal/config"
	"github.com/danieljhkim/modsync/internal/loadout"
	"github.com/danieljhkim/modsync/internal/overlay"
	"github.com/danieljhkim/modsync/internal/planner"
	"github.com/danieljhkim/modsync/internal/state"
)

// target returns the loadout version to apply: version when set, the head
// otherwise. version must belong to the installation's loadout.
func (e *Engine) target(snap *state.Snapshot, version loadout.VersionID) (*loadout.Loadout, error) {
	if version.IsZero() {
		return e.head(snap)
	}
	l, err := e.registry.GetVersion(version)
	if err != nil {
		if errors.Is(err, loadout.ErrNotFound) {
			return nil, fmt.Errorf("%w: version %s", ErrNotFound, version)
		}
		return nil, fmt.Errorf("failed to load version: %w", err)
	}
	if l.ID != snap.Loadout {
		return nil, fmt.Errorf("%w: version %s does not belong to loadout %s", ErrNotFound, version, snap.Loadout)
	}
	return l, nil
}

// flatten sorts l and resolves its file conflicts into a tree.
func (e *Engine) flatten(ctx context.Context, l *loadout.Loadout) ([]loadout.Mod, *overlay.Flattened, *overlay.Tree, error) {
	sorted, err := e.sorter.Sort(ctx, l)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to sort loadout: %w", err)
	}
	flat := overlay.Flatten(sorted, e.behavior)
	tree, err := overlay.BuildTree(flat)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to build file tree: %w", err)
	}
	return sorted, flat, tree, nil
}

// planApply indexes the installation and plans writing l to it.
func (e *Engine) planApply(ctx context.Context, inst *config.Installation, snap *state.Snapshot, l *loadout.Loadout) (*planner.ApplyPlan, error) {
	start := e.clock.Now()
	sorted, _, tree, err := e.flatten(ctx, l)
	if err != nil {
		return nil, err
	}

	disk, unreadable, err := e.index(ctx, inst, snap)
	if err != nil {
		return nil, err
	}
	if len(unreadable) > 0 {
		return nil, unreadableError(unreadable)
	}

	cache, err := e.generatedCache(inst.Name)
	if err != nil {
		return nil, err
	}

	plan, err := planner.BuildApplyPlan(planner.ApplyInput{
		Loadout:    l,
		Sorted:     sorted,
		Tree:       tree,
		Disk:       disk,
		Previous:   snap,
		Archive:    e.archive,
		Generated:  cache,
		Generators: e.generators,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build apply plan: %w", err)
	}
	e.metrics.ObservePhase("apply", "plan", e.clock.Now().Sub(start))
	return plan, nil
}

// Plan previews an apply without taking the installation lock or touching
// the game folder.
func (e *Engine) Plan(ctx context.Context, req *PlanRequest) (*PlanResult, error) {
	inst, err := e.installation(req.Installation)
	if err != nil {
		return nil, err
	}
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
	return &PlanResult{Plan: plan}, nil
}

// Flatten returns the resolved file view of the installation's loadout.
func (e *Engine) Flatten(ctx context.Context, req *FlattenRequest) (*FlattenResult, error) {
	inst, err := e.installation(req.Installation)
	if err != nil {
		return nil, err
	}
	snap, _, err := e.current(inst.Name)
	if err != nil {
		return nil, err
	}
	l, err := e.target(snap, req.Version)
	if err != nil {
		return nil, err
	}

	sorted, flat, _, err := e.flatten(ctx, l)
	if err != nil {
		return nil, err
	}
	return &FlattenResult{Loadout: l, Sorted: sorted, Flattened: flat}, nil
}
