package engine

import "github.com/danieljhkim/modsync/internal/loadout"

// ManageRequest represents a request to bring an installation under
// management.
type ManageRequest struct {
	// Installation is the configured installation name
	Installation string

	// LoadoutName names the created loadout (default: the installation name)
	LoadoutName string
}

// ImportRequest represents a request to import a manifest into the
// installation's loadout.
type ImportRequest struct {
	Installation string

	// ManifestPath is the TOML manifest to import
	ManifestPath string
}

// ApplyRequest represents a request to write a loadout to the game folder.
type ApplyRequest struct {
	Installation string

	// Version is an optional loadout version to apply instead of the head
	Version loadout.VersionID

	// Force applies over files changed outside modsync
	Force bool

	// DryRun performs planning only without making changes
	DryRun bool
}

// PlanRequest represents a request to preview an apply.
type PlanRequest struct {
	Installation string

	// Version is an optional loadout version to plan instead of the head
	Version loadout.VersionID
}

// IngestRequest represents a request to fold game folder changes back into
// the loadout.
type IngestRequest struct {
	Installation string

	// DryRun performs planning only without making changes
	DryRun bool
}

// FlattenRequest represents a request for the resolved file view of a
// loadout.
type FlattenRequest struct {
	Installation string

	// Version is an optional loadout version instead of the head
	Version loadout.VersionID
}

// StatusRequest represents a request for installation status.
type StatusRequest struct {
	Installation string
}

// HistoryRequest represents a request for the version history of an
// installation's loadout.
type HistoryRequest struct {
	Installation string
}
