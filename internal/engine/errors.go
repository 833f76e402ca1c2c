package engine

import "errors"

var (
	// ErrDrift indicates the game folder changed outside modsync since the
	// last snapshot.
	ErrDrift = errors.New("drift detected")

	// ErrUnreadable indicates files that could not be hashed, so the plan
	// cannot classify them.
	ErrUnreadable = errors.New("unreadable files in game folder")

	// ErrNotFound indicates a resource was not found.
	ErrNotFound = errors.New("not found")

	// ErrNoInstallation indicates the installation is not configured.
	ErrNoInstallation = errors.New("installation not configured")

	// ErrNotManaged indicates the installation has no loadout yet.
	ErrNotManaged = errors.New("installation not managed")

	// ErrAlreadyManaged indicates Manage was called twice.
	ErrAlreadyManaged = errors.New("installation already managed")

	// ErrCancelled indicates execution stopped between two steps.
	ErrCancelled = errors.New("execution cancelled")
)
