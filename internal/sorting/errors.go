package sorting

import "errors"

var (
	// ErrSortConflict is returned when sort rules form a cycle, including a
	// First rule contradicted by a generated ordering.
	ErrSortConflict = errors.New("sort rules conflict")

	// ErrUnknownGenerator is returned when a Generated rule names a
	// generator that is not registered.
	ErrUnknownGenerator = errors.New("unknown sort rule generator")
)
