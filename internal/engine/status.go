package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
)

// Status compares the game folder with the last snapshot. It does not take
// the installation lock.
func (e *Engine) Status(ctx context.Context, req *StatusRequest) (*StatusResult, error) {
	inst, err := e.installation(req.Installation)
	if err != nil {
		return nil, err
	}

	result := &StatusResult{Installation: inst.Name}
	snap, err := e.states.LoadLatest(inst.Name)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return result, nil
		}
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}
	result.Managed = true
	result.Snapshot = snap

	head, err := e.head(snap)
	if err != nil {
		return nil, err
	}
	result.Loadout = head
	result.HeadMoved = head.Version != snap.Version

	disk, unreadable, err := e.index(ctx, inst, snap)
	if err != nil {
		return nil, err
	}
	result.Changes = disk.Diff(snap.Entries)
	for _, r := range unreadable {
		result.Unreadable = append(result.Unreadable, r.Path)
	}
	return result, nil
}

// History returns the version chain of the installation's loadout.
func (e *Engine) History(ctx context.Context, req *HistoryRequest) (*HistoryResult, error) {
	inst, err := e.installation(req.Installation)
	if err != nil {
		return nil, err
	}
	snap, _, err := e.current(inst.Name)
	if err != nil {
		return nil, err
	}

	versions, err := e.registry.History(snap.Loadout)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	return &HistoryResult{Versions: versions, Applied: snap.Version}, nil
}
