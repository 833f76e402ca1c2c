package planner

import (
	"fmt"

	"github.com/danieljhkim/modsync/internal/loadout"
	"github.com/danieljhkim/modsync/internal/overlay"
	"github.com/danieljhkim/modsync/internal/state"
)

// ModSelector picks the mod that absorbs a file new to the loadout.
type ModSelector func(p loadout.GamePath) OverrideTarget

const (
	OverridesModName  = "Overrides"
	SavedGamesModName = "Saved Games"
)

// OverridesSelector sends files under the Saves location to a "Saved Games"
// mod and everything else to an "Overrides" mod. Mod IDs are derived from
// the loadout ID so repeated ingests pick the same mods.
func OverridesSelector(id loadout.LoadoutID) ModSelector {
	return func(p loadout.GamePath) OverrideTarget {
		if p.Location == loadout.LocationSaves {
			return OverrideTarget{
				Mod:      loadout.DerivedModID(id, SavedGamesModName),
				Name:     SavedGamesModName,
				Category: loadout.CategorySavedGames,
			}
		}
		return OverrideTarget{
			Mod:      loadout.DerivedModID(id, OverridesModName),
			Name:     OverridesModName,
			Category: loadout.CategoryOverrides,
		}
	}
}

// IngestInput is everything BuildIngestPlan reads.
type IngestInput struct {
	Loadout *loadout.Loadout

	// Disk is the current content of the game folder.
	Disk state.DiskState

	// Tree is the loadout's tree as last applied.
	Tree *overlay.Tree

	// Previous is the last snapshot, nil if there is none. Generated files
	// are compared against it because the loadout records no content for
	// them.
	Previous *state.Snapshot

	Archive HaveFiler

	// Select defaults to OverridesSelector.
	Select ModSelector

	// Skip lists paths that exist but could not be read. They are neither
	// changed nor removed.
	Skip map[loadout.GamePath]bool
}

// BuildIngestPlan generates a plan that folds disk changes into the loadout.
// Removals come first, then one backup plus create or replace per new or
// changed file, in sorted path order. Unchanged files emit nothing.
func BuildIngestPlan(in IngestInput) (*IngestPlan, error) {
	sel := in.Select
	if sel == nil {
		sel = OverridesSelector(in.Loadout.ID)
	}

	projected := in.Tree.Clone()
	plan := &IngestPlan{Loadout: in.Loadout, Tree: projected, Disk: in.Disk}
	backups := newBackupSet(in.Archive)
	add := func(s Step) {
		if s != nil {
			plan.Steps = append(plan.Steps, s)
		}
	}

	// A deleted file is removed from every enabled mod providing it, or the
	// next flatten would surface a shadowed copy.
	providers := contributors(in.Loadout)
	for _, leaf := range in.Tree.Files() {
		if _, ok := in.Disk[leaf.Path]; ok || in.Skip[leaf.Path] {
			continue
		}
		add(RemoveFromLoadout{Path: leaf.Path, Mod: leaf.Entry.Mod.ID, File: leaf.Entry.File.FileID()})
		for _, r := range providers[leaf.Path] {
			if r.Mod != leaf.Entry.Mod.ID || r.File != leaf.Entry.File.FileID() {
				add(r)
			}
		}
		projected.Remove(leaf.Path)
	}

	for _, p := range in.Disk.Paths() {
		if in.Skip[p] {
			continue
		}
		onDisk := in.Disk[p]
		entry, ok := in.Tree.Get(p)
		if !ok {
			target := sel(p)
			step := CreateInLoadout{Path: p, Hash: onDisk.Hash, Size: onDisk.Size, File: loadout.DerivedFileID(target.Mod, p), Owner: target}
			if err := projected.Insert(p, overlay.Entry{Mod: targetMod(in.Loadout, target), File: step.ModFile()}); err != nil {
				return nil, fmt.Errorf("failed to place new file: %w", err)
			}
			add(backups.step(onDisk))
			add(step)
			continue
		}

		changed, err := ingestChanged(entry, onDisk, in.Previous)
		if err != nil {
			return nil, err
		}
		if !changed {
			continue
		}
		step := ReplaceInLoadout{Path: p, Hash: onDisk.Hash, Size: onDisk.Size, Mod: entry.Mod.ID, File: entry.File.FileID()}
		if err := projected.Insert(p, overlay.Entry{Mod: entry.Mod, File: step.ModFile()}); err != nil {
			return nil, fmt.Errorf("failed to replace file: %w", err)
		}
		add(backups.step(onDisk))
		add(step)
	}

	return plan, nil
}

// ingestChanged reports whether the disk file differs from what the loadout
// records for it.
func ingestChanged(entry overlay.Entry, onDisk state.Entry, previous *state.Snapshot) (bool, error) {
	switch f := entry.File.(type) {
	case loadout.FromArchive:
		recorded := state.Entry{Path: f.To, Hash: f.Hash, Size: f.Size}
		return !recorded.SameContent(onDisk), nil
	case loadout.GeneratedFile:
		if previous == nil {
			return true, nil
		}
		recorded, ok := previous.Entries[onDisk.Path]
		return !ok || !recorded.SameContent(onDisk), nil
	default:
		return false, fmt.Errorf("%w: %T at %s", ErrUnknownFileType, entry.File, onDisk.Path)
	}
}

// contributors maps each path to a removal of every enabled mod file that
// targets it, in mod order.
func contributors(l *loadout.Loadout) map[loadout.GamePath][]RemoveFromLoadout {
	out := make(map[loadout.GamePath][]RemoveFromLoadout)
	for _, m := range l.EnabledMods() {
		for _, f := range m.SortedFiles() {
			p := f.Target()
			out[p] = append(out[p], RemoveFromLoadout{Path: p, Mod: m.ID, File: f.FileID()})
		}
	}
	return out
}

// targetMod returns the loadout's mod for t, or the mod ingest will create.
func targetMod(l *loadout.Loadout, t OverrideTarget) loadout.Mod {
	if m, ok := l.Mods[t.Mod]; ok {
		return m
	}
	return loadout.Mod{ID: t.Mod, Name: t.Name, Category: t.Category, Enabled: true}
}

func (s CreateInLoadout) ModFile() loadout.FromArchive {
	return loadout.FromArchive{ID: s.File, To: s.Path, Hash: s.Hash, Size: s.Size}
}

func (s ReplaceInLoadout) ModFile() loadout.FromArchive {
	return loadout.FromArchive{ID: s.File, To: s.Path, Hash: s.Hash, Size: s.Size}
}
