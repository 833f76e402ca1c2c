package loadout

import "errors"

var (
	// ErrNotFound is returned when a loadout or version does not exist.
	ErrNotFound = errors.New("loadout not found")

	// ErrExists is returned by Create when the ID is already taken.
	ErrExists = errors.New("loadout already exists")

	// ErrModNotFound is returned when a transform references a missing mod.
	ErrModNotFound = errors.New("mod not found")

	// ErrUnknownVariant is returned when encoding or decoding meets a
	// ModFile or SortRule variant outside the closed set.
	ErrUnknownVariant = errors.New("unknown variant")
)
