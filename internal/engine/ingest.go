package engine

import (
	"context"
	"fmt"

	"github.com/danieljhkim/modsync/internal/loadout"
	"github.com/danieljhkim/modsync/internal/planner"
	"github.com/danieljhkim/modsync/internal/sortrules"
)

// Ingest folds changes made directly in the game folder back into the
// loadout.
//
// Algorithm steps:
// 1. Lock the installation and load the applied loadout version
// 2. Index the game folder, skipping files that cannot be read
// 3. Build the ingest plan against the applied tree
// 4. Back up new and changed content
// 5. Commit a new loadout version, merging if the head moved meanwhile
// 6. Record a snapshot of the ingested disk state
func (e *Engine) Ingest(ctx context.Context, req *IngestRequest) (*IngestResult, error) {
	inst, err := e.installation(req.Installation)
	if err != nil {
		return nil, err
	}

	unlock, err := e.lock(ctx, inst.Name)
	if err != nil {
		return nil, err
	}
	defer unlock()

	snap, applied, err := e.current(inst.Name)
	if err != nil {
		return nil, err
	}
	_, _, tree, err := e.flatten(ctx, applied)
	if err != nil {
		return nil, err
	}

	disk, unreadable, err := e.index(ctx, inst, snap)
	if err != nil {
		return nil, err
	}
	result := &IngestResult{}
	skip := make(map[loadout.GamePath]bool, len(unreadable))
	for _, r := range unreadable {
		e.log.Warn().Err(r.Err).Str("path", r.Path.String()).Msg("skipping unreadable file")
		skip[r.Path] = true
		result.Skipped = append(result.Skipped, r.Path)
	}

	plan, err := planner.BuildIngestPlan(planner.IngestInput{
		Loadout:  applied,
		Disk:     disk,
		Tree:     tree,
		Previous: snap,
		Archive:  e.archive,
		Select:   planner.OverridesSelector(applied.ID),
		Skip:     skip,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build ingest plan: %w", err)
	}
	result.Plan = plan
	if req.DryRun || plan.IsEmpty() {
		return result, nil
	}

	x := e.newExecutor(inst, "ingest")
	if err := x.timed("backup", func() error {
		return x.backup(ctx, planner.StepsOf[planner.BackupFile](plan.Steps))
	}); err != nil {
		return result, err
	}

	ingested, err := ApplyIngest(applied, plan.Steps)
	if err != nil {
		return result, err
	}

	counts := planner.CountByKind(plan.Steps)
	msg := fmt.Sprintf("Ingest: %d created, %d replaced, %d removed",
		counts[planner.KindCreateInLoadout], counts[planner.KindReplaceInLoadout], counts[planner.KindRemoveFromLoadout])
	committed, err := e.registry.Alter(applied.ID, msg, func(head *loadout.Loadout) (*loadout.Loadout, error) {
		if head.Version == applied.Version {
			result.Merged = false
			return ingested, nil
		}
		result.Merged = true
		return MergeLoadouts(head, touchedMods(ingested, plan.Steps)), nil
	})
	if err != nil {
		return result, fmt.Errorf("failed to commit ingest: %w", err)
	}
	result.Loadout = committed
	for _, s := range plan.Steps {
		if s.Kind() != planner.KindBackupFile {
			x.done(s)
		}
	}

	// A merged version also carries edits that are not on disk yet, so the
	// snapshot stays on the applied version until the next apply.
	recorded := committed
	if result.Merged {
		recorded = applied
	}
	result.Snapshot, err = e.recordSnapshot(inst, recorded, snap.TxID+1, disk)
	if err != nil {
		return result, err
	}

	e.log.Info().
		Str("installation", inst.Name).
		Str("version", committed.Version.Short()).
		Bool("merged", result.Merged).
		Int("skipped", len(result.Skipped)).
		Msg("ingested game folder")
	return result, nil
}

// ApplyIngest returns l with the loadout steps of an ingest plan applied:
// removals first, then replacements, then creations. Override mods named by
// CreateInLoadout steps are created when l lacks them. Backup steps are
// ignored.
func ApplyIngest(l *loadout.Loadout, steps []planner.Step) (*loadout.Loadout, error) {
	for _, s := range steps {
		switch s.(type) {
		case planner.BackupFile, planner.RemoveFromLoadout, planner.ReplaceInLoadout, planner.CreateInLoadout:
		default:
			return nil, fmt.Errorf("%w: %s in ingest plan", planner.ErrUnknownStep, s.Kind())
		}
	}

	var refs []loadout.FileRef
	for _, s := range planner.StepsOf[planner.RemoveFromLoadout](steps) {
		refs = append(refs, loadout.FileRef{Mod: s.Mod, File: s.File})
	}
	out := loadout.WithoutFiles(l, refs...)

	var err error
	for _, s := range planner.StepsOf[planner.ReplaceInLoadout](steps) {
		out, err = loadout.WithFile(out, s.Mod, s.ModFile())
		if err != nil {
			return nil, fmt.Errorf("failed to replace %s: %w", s.Path, err)
		}
	}

	for _, s := range planner.StepsOf[planner.CreateInLoadout](steps) {
		if _, ok := out.Mods[s.Owner.Mod]; !ok {
			out = loadout.WithMod(out, overrideMod(s.Owner))
		}
		out, err = loadout.WithFile(out, s.Owner.Mod, s.ModFile())
		if err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", s.Path, err)
		}
	}

	return out, nil
}

// touchedMods narrows an ingested loadout to the mods its steps changed.
// Every other mod in it is a stale copy of the applied version.
func touchedMods(ingested *loadout.Loadout, steps []planner.Step) *loadout.Loadout {
	touched := make(map[loadout.ModID]bool)
	for _, s := range steps {
		switch s := s.(type) {
		case planner.RemoveFromLoadout:
			touched[s.Mod] = true
		case planner.ReplaceInLoadout:
			touched[s.Mod] = true
		case planner.CreateInLoadout:
			touched[s.Owner.Mod] = true
		}
	}
	return loadout.MapMods(ingested, func(m loadout.Mod) (loadout.Mod, bool) {
		return m, touched[m.ID]
	})
}

// overrideMod manufactures the mod for an override target. It sorts after
// every regular mod so its files win.
func overrideMod(t planner.OverrideTarget) loadout.Mod {
	return loadout.Mod{
		ID:        t.Mod,
		Name:      t.Name,
		Category:  t.Category,
		Enabled:   true,
		Files:     make(map[loadout.FileID]loadout.ModFile),
		SortRules: []loadout.SortRule{loadout.Generated{Generator: sortrules.AfterAllName}},
	}
}
