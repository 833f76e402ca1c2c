package planner

import (
	"fmt"

	"github.com/danieljhkim/modsync/internal/state"
)

// Conflict is a path changed on disk by something other than modsync since
// the previous snapshot. Applying over it would discard that change from
// the game folder, although the content is still backed up first.
type Conflict struct {
	Change state.Change

	// Existing is what is on disk now. Zero for removed files.
	Existing state.Entry

	// Recorded is what the previous snapshot holds. Zero for added files.
	Recorded state.Entry
}

// Reason is a human-readable explanation of the conflict.
func (c Conflict) Reason() string {
	switch c.Change.Kind {
	case state.ChangeAdded:
		return "file added outside modsync"
	case state.ChangeRemoved:
		return "file removed outside modsync"
	default:
		return fmt.Sprintf("file modified outside modsync (%s -> %s)", c.Recorded.Hash, c.Existing.Hash)
	}
}

// DetectDrift compares disk with the previous snapshot. A nil snapshot means
// the installation was never synchronized and nothing can have drifted.
func DetectDrift(disk state.DiskState, previous *state.Snapshot) []Conflict {
	if previous == nil {
		return nil
	}

	changes := disk.Diff(previous.Entries)
	if len(changes) == 0 {
		return nil
	}
	conflicts := make([]Conflict, 0, len(changes))
	for _, ch := range changes {
		conflicts = append(conflicts, Conflict{
			Change:   ch,
			Existing: disk[ch.Path],
			Recorded: previous.Entries[ch.Path],
		})
	}
	return conflicts
}
