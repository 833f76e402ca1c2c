package planner

import (
	"fmt"

	"github.com/danieljhkim/modsync/internal/generators"
	"github.com/danieljhkim/modsync/internal/hash"
	"github.com/danieljhkim/modsync/internal/loadout"
	"github.com/danieljhkim/modsync/internal/overlay"
	"github.com/danieljhkim/modsync/internal/state"
)

// HaveFiler reports whether the archive holds content.
type HaveFiler interface {
	HaveFile(h hash.Hash) bool
}

// GeneratedCache maps generated-file fingerprints to the content they
// produced last time.
type GeneratedCache interface {
	Get(fingerprint hash.Hash) (state.GeneratedRecord, bool)
}

// ApplyInput is everything BuildApplyPlan reads.
type ApplyInput struct {
	Loadout *loadout.Loadout

	// Sorted is the sort order Tree was flattened from.
	Sorted []loadout.Mod

	// Tree is the desired content of the game folder.
	Tree *overlay.Tree

	// Disk is the current content of the game folder.
	Disk state.DiskState

	// Previous is the last snapshot, nil if there is none.
	Previous *state.Snapshot

	Archive    HaveFiler
	Generated  GeneratedCache
	Generators *generators.Registry
}

// BuildApplyPlan generates a deterministic plan that makes in.Disk match
// in.Tree. Disk paths are visited first in sorted order, then tree paths
// missing from disk. Content that may be destroyed is always backed up in
// an earlier step unless the archive already has it.
func BuildApplyPlan(in ApplyInput) (*ApplyPlan, error) {
	flat := in.Tree.Flattened()
	plan := &ApplyPlan{
		Loadout:   in.Loadout,
		Sorted:    in.Sorted,
		Flattened: flat,
		Tree:      in.Tree,
		Disk:      in.Disk,
		Conflicts: DetectDrift(in.Disk, in.Previous),
	}
	b := &applyBuilder{
		in:      in,
		gctx:    generators.Context{Loadout: in.Loadout, Sorted: in.Sorted, Flattened: flat},
		backups: newBackupSet(in.Archive),
		plan:    plan,
	}

	for _, p := range in.Disk.Paths() {
		onDisk := in.Disk[p]
		entry, ok := in.Tree.Get(p)
		if !ok {
			b.destroy(onDisk)
			continue
		}

		equal, err := b.matches(entry, onDisk)
		if err != nil {
			return nil, err
		}
		if equal {
			continue
		}
		b.destroy(onDisk)
		if err := b.create(p, entry); err != nil {
			return nil, err
		}
	}

	for _, leaf := range in.Tree.Files() {
		if _, ok := in.Disk[leaf.Path]; ok {
			continue
		}
		if err := b.create(leaf.Path, leaf.Entry); err != nil {
			return nil, err
		}
	}

	return plan, nil
}

type applyBuilder struct {
	in      ApplyInput
	gctx    generators.Context
	backups *backupSet
	plan    *ApplyPlan
}

func (b *applyBuilder) add(s Step) {
	if s != nil {
		b.plan.Steps = append(b.plan.Steps, s)
	}
}

// destroy backs up and deletes the disk file.
func (b *applyBuilder) destroy(e state.Entry) {
	b.add(b.backups.step(e))
	b.add(DeleteFile{Path: e.Path, Hash: e.Hash, Size: e.Size})
}

// matches reports whether the disk file already holds the entry's content.
// Missing or ambiguous metadata never matches.
func (b *applyBuilder) matches(entry overlay.Entry, onDisk state.Entry) (bool, error) {
	switch f := entry.File.(type) {
	case loadout.FromArchive:
		want := state.Entry{Path: f.To, Hash: f.Hash, Size: f.Size}
		return want.SameContent(onDisk), nil
	case loadout.GeneratedFile:
		fp, err := b.fingerprint(f)
		if err != nil {
			return false, err
		}
		rec, ok := b.lookupGenerated(fp)
		if !ok {
			return false, nil
		}
		want := state.Entry{Path: f.To, Hash: rec.Hash, Size: rec.Size}
		return want.SameContent(onDisk), nil
	default:
		return false, fmt.Errorf("%w: %T at %s", ErrUnknownFileType, entry.File, onDisk.Path)
	}
}

// create emits the step that writes the entry's content at p. A generated
// file whose previous output is archived is extracted instead of
// regenerated.
func (b *applyBuilder) create(p loadout.GamePath, entry overlay.Entry) error {
	switch f := entry.File.(type) {
	case loadout.FromArchive:
		b.add(ExtractFile{Path: p, Hash: f.Hash, Size: f.Size})
	case loadout.GeneratedFile:
		fp, err := b.fingerprint(f)
		if err != nil {
			return err
		}
		if rec, ok := b.lookupGenerated(fp); ok && !rec.Hash.IsZero() && b.in.Archive != nil && b.in.Archive.HaveFile(rec.Hash) {
			b.add(ExtractFile{Path: p, Hash: rec.Hash, Size: rec.Size})
			return nil
		}
		b.add(GenerateFile{Path: p, Generator: f.Generator, Fingerprint: fp})
	default:
		return fmt.Errorf("%w: %T at %s", ErrUnknownFileType, entry.File, p)
	}
	return nil
}

func (b *applyBuilder) fingerprint(f loadout.GeneratedFile) (hash.Hash, error) {
	if b.in.Generators == nil {
		return hash.Zero, fmt.Errorf("%w: %q", generators.ErrUnknownGenerator, f.Generator)
	}
	gen, err := b.in.Generators.Get(f.Generator)
	if err != nil {
		return hash.Zero, fmt.Errorf("failed to plan %s: %w", f.To, err)
	}
	return generators.FileFingerprint(gen, f, b.gctx), nil
}

func (b *applyBuilder) lookupGenerated(fp hash.Hash) (state.GeneratedRecord, bool) {
	if b.in.Generated == nil {
		return state.GeneratedRecord{}, false
	}
	return b.in.Generated.Get(fp)
}
