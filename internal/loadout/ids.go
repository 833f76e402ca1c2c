package loadout

import (
	"fmt"

	"github.com/google/uuid"
)

// LoadoutID identifies a loadout across all of its versions.
type LoadoutID uuid.UUID

// ModID identifies a mod within a loadout.
type ModID uuid.UUID

// FileID identifies a file within a mod.
type FileID uuid.UUID

// VersionID identifies one immutable version of a loadout.
type VersionID uuid.UUID

// NewLoadoutID returns a random LoadoutID.
func NewLoadoutID() LoadoutID { return LoadoutID(uuid.New()) }

// NewModID returns a random ModID.
func NewModID() ModID { return ModID(uuid.New()) }

// NewFileID returns a random FileID.
func NewFileID() FileID { return FileID(uuid.New()) }

// NewVersionID returns a random VersionID.
func NewVersionID() VersionID { return VersionID(uuid.New()) }

// DerivedModID returns a stable ModID for name inside loadout id. Ingest uses
// it for manufactured override mods so repeated ingests agree on the mod.
func DerivedModID(id LoadoutID, name string) ModID {
	return ModID(uuid.NewSHA1(uuid.UUID(id), []byte(name)))
}

// DerivedFileID returns a stable FileID for a path absorbed into mod.
func DerivedFileID(mod ModID, p GamePath) FileID {
	return FileID(uuid.NewSHA1(uuid.UUID(mod), []byte(p.String())))
}

// ParseLoadoutID parses the canonical UUID form.
func ParseLoadoutID(s string) (LoadoutID, error) {
	u, err := parseUUID("loadout", s)
	return LoadoutID(u), err
}

// ParseModID parses the canonical UUID form.
func ParseModID(s string) (ModID, error) {
	u, err := parseUUID("mod", s)
	return ModID(u), err
}

// ParseVersionID parses the canonical UUID form.
func ParseVersionID(s string) (VersionID, error) {
	u, err := parseUUID("version", s)
	return VersionID(u), err
}

func parseUUID(kind, s string) (uuid.UUID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid %s id %q: %w", kind, s, err)
	}
	return u, nil
}

func (id LoadoutID) String() string { return uuid.UUID(id).String() }
func (id ModID) String() string     { return uuid.UUID(id).String() }
func (id FileID) String() string    { return uuid.UUID(id).String() }
func (id VersionID) String() string { return uuid.UUID(id).String() }

// IsZero reports whether the id is unset.
func (id LoadoutID) IsZero() bool { return uuid.UUID(id) == uuid.Nil }

// IsZero reports whether the id is unset.
func (id ModID) IsZero() bool { return uuid.UUID(id) == uuid.Nil }

// IsZero reports whether the id is unset.
func (id VersionID) IsZero() bool { return uuid.UUID(id) == uuid.Nil }

// Short returns the first eight hex digits, for display.
func (id LoadoutID) Short() string { return id.String()[:8] }

// Short returns the first eight hex digits, for display.
func (id VersionID) Short() string { return id.String()[:8] }

func (id LoadoutID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }
func (id ModID) MarshalText() ([]byte, error)     { return uuid.UUID(id).MarshalText() }
func (id FileID) MarshalText() ([]byte, error)    { return uuid.UUID(id).MarshalText() }
func (id VersionID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }

func (id *LoadoutID) UnmarshalText(b []byte) error { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *ModID) UnmarshalText(b []byte) error     { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *FileID) UnmarshalText(b []byte) error    { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *VersionID) UnmarshalText(b []byte) error { return (*uuid.UUID)(id).UnmarshalText(b) }

// Less orders ids by their bytes.
func (id ModID) Less(other ModID) bool { return lessUUID(uuid.UUID(id), uuid.UUID(other)) }

// Less orders ids by their bytes.
func (id FileID) Less(other FileID) bool { return lessUUID(uuid.UUID(id), uuid.UUID(other)) }

func lessUUID(a, b uuid.UUID) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}
