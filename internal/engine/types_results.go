package engine

import (
	"github.com/danieljhkim/modsync/internal/loadout"
	"github.com/danieljhkim/modsync/internal/overlay"
	"github.com/danieljhkim/modsync/internal/planner"
	"github.com/danieljhkim/modsync/internal/state"
)

// ManageResult represents the result of managing an installation.
type ManageResult struct {
	Loadout  *loadout.Loadout
	Snapshot *state.Snapshot
}

// ImportResult represents the result of importing a manifest.
type ImportResult struct {
	Loadout *loadout.Loadout

	// Mods lists the imported mod names in manifest order
	Mods []string
}

// ApplyResult represents the result of an apply.
type ApplyResult struct {
	// Plan is the generated plan
	Plan *planner.ApplyPlan

	// Executed is the list of steps that were run (empty if DryRun)
	Executed []planner.Step

	// Snapshot is the disk state recorded afterwards (nil if DryRun)
	Snapshot *state.Snapshot
}

// PlanResult represents a previewed apply.
type PlanResult struct {
	Plan *planner.ApplyPlan
}

// IngestResult represents the result of an ingest.
type IngestResult struct {
	Plan *planner.IngestPlan

	// Loadout is the committed version (nil if DryRun or nothing changed)
	Loadout *loadout.Loadout

	// Merged reports whether the loadout head had moved and the ingest was
	// merged into it
	Merged bool

	// Skipped lists unreadable paths left out of the ingest
	Skipped []loadout.GamePath

	Snapshot *state.Snapshot
}

// FlattenResult is the resolved file view of a loadout.
type FlattenResult struct {
	Loadout   *loadout.Loadout
	Sorted    []loadout.Mod
	Flattened *overlay.Flattened
}

// StatusResult represents the current installation status.
type StatusResult struct {
	Installation string

	// Managed is false when the installation has no loadout yet
	Managed bool

	Loadout  *loadout.Loadout
	Snapshot *state.Snapshot

	// HeadMoved reports that the loadout has versions not yet applied
	HeadMoved bool

	// Changes lists differences between the disk and the last snapshot
	Changes []state.Change

	// Unreadable lists paths that could not be hashed
	Unreadable []loadout.GamePath
}

// InstallationInfo summarizes one configured installation.
type InstallationInfo struct {
	Name    string
	Game    string
	Managed bool

	// LoadoutName is empty for unmanaged installations
	LoadoutName string
	Mods        int
	TxID        uint64
}

// ListResult lists configured installations.
type ListResult struct {
	Installations []InstallationInfo
}

// HistoryResult lists the versions of an installation's loadout.
type HistoryResult struct {
	// Versions are ordered newest first
	Versions []*loadout.Loadout

	// Applied is the version recorded by the latest snapshot
	Applied loadout.VersionID
}
