package engine

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/danieljhkim/modsync/internal/hash"
	"github.com/danieljhkim/modsync/internal/loadout"
	"github.com/danieljhkim/modsync/internal/planner"
	"github.com/danieljhkim/modsync/internal/state"
)

// GameFilesModName names the mod holding an installation's original files.
const GameFilesModName = "Game Files"

// Manage brings an installation under management.
//
// Algorithm steps:
// 1. Lock the installation and make sure it has no snapshot
// 2. Index every location
// 3. Back up every file into the archive
// 4. Create a loadout whose "Game Files" mod holds what was found
// 5. Record the first snapshot
func (e *Engine) Manage(ctx context.Context, req *ManageRequest) (*ManageResult, error) {
	inst, err := e.installation(req.Installation)
	if err != nil {
		return nil, err
	}

	unlock, err := e.lock(ctx, inst.Name)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if _, err := e.states.LoadLatest(inst.Name); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyManaged, inst.Name)
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}

	disk, unreadable, err := e.index(ctx, inst, nil)
	if err != nil {
		return nil, err
	}
	if len(unreadable) > 0 {
		return nil, unreadableError(unreadable)
	}

	x := e.newExecutor(inst, "manage")
	if err := x.timed("backup", func() error {
		return x.backup(ctx, backupSteps(disk))
	}); err != nil {
		return nil, err
	}

	name := req.LoadoutName
	if name == "" {
		name = inst.Name
	}
	draft := &loadout.Loadout{
		ID:           loadout.NewLoadoutID(),
		Name:         name,
		Installation: inst.Name,
	}
	game := gameFilesMod(draft.ID, disk)
	draft.Mods = map[loadout.ModID]loadout.Mod{game.ID: game}

	l, err := e.registry.Create(draft, fmt.Sprintf("Manage %s", inst.Name))
	if err != nil {
		return nil, fmt.Errorf("failed to create loadout: %w", err)
	}

	snap, err := e.recordSnapshot(inst, l, 0, disk)
	if err != nil {
		return nil, err
	}

	e.log.Info().
		Str("installation", inst.Name).
		Str("loadout", l.ID.Short()).
		Int("files", len(disk)).
		Msg("managing installation")
	return &ManageResult{Loadout: l, Snapshot: snap}, nil
}

// backupSteps returns one BackupFile step per distinct hash on disk.
func backupSteps(disk state.DiskState) []planner.BackupFile {
	seen := make(map[hash.Hash]bool, len(disk))
	var steps []planner.BackupFile
	for _, e := range disk.Entries() {
		if seen[e.Hash] {
			continue
		}
		seen[e.Hash] = true
		steps = append(steps, planner.BackupFile{Path: e.Path, Hash: e.Hash, Size: e.Size})
	}
	return steps
}

func gameFilesMod(id loadout.LoadoutID, disk state.DiskState) loadout.Mod {
	mod := loadout.Mod{
		ID:        loadout.DerivedModID(id, GameFilesModName),
		Name:      GameFilesModName,
		Category:  loadout.CategoryGameFiles,
		Enabled:   true,
		Files:     make(map[loadout.FileID]loadout.ModFile, len(disk)),
		SortRules: []loadout.SortRule{loadout.First{}},
	}
	for _, e := range disk.Entries() {
		fid := loadout.DerivedFileID(mod.ID, e.Path)
		mod.Files[fid] = loadout.FromArchive{ID: fid, To: e.Path, Hash: e.Hash, Size: e.Size}
	}
	return mod
}
