// Package loadout defines the declarative model of what a game folder should
// contain and the versioned registry that stores it.
//
// A Loadout is an immutable value. Every change goes through
// Registry.Alter, which hands the mutator a private copy and stores the
// result as a new version linked to its predecessor by VersionID.
//
// Key components:
//   - Loadout, Mod: the model, with typed uuid identifiers
//   - ModFile (FromArchive, GeneratedFile) and SortRule (Before, After,
//     First, Generated): closed variant sets with tagged JSON encoding
//   - MapFiles, MapMods, WithMod, WithoutFiles: pure transforms
//   - Registry, FileRegistry: versioned persistence
package loadout

import (
	"sort"
	"time"
)

// Category tags what kind of content a mod carries.
type Category string

const (
	CategoryGameFiles  Category = "Game Files"
	CategoryMod        Category = "Mod"
	CategoryOverrides  Category = "Overrides"
	CategorySavedGames Category = "Saved Games"
)

// Loadout is one immutable version of a declared game folder.
type Loadout struct {
	// ID is stable across versions.
	ID LoadoutID `json:"id"`

	// Version identifies this snapshot of the loadout.
	Version VersionID `json:"version"`

	// PreviousVersion links to the version this one was derived from.
	// Zero for the first version.
	PreviousVersion VersionID `json:"previousVersion"`

	Name string `json:"name"`

	// Message describes the change that produced this version.
	Message string `json:"message"`

	// Installation is the configured installation this loadout targets.
	Installation string `json:"installation"`

	Mods map[ModID]Mod `json:"mods"`

	LastModified time.Time `json:"lastModified"`
}

// Mod is a named group of files plus the rules that order it.
type Mod struct {
	ID        ModID
	Name      string
	Category  Category
	Enabled   bool
	Files     map[FileID]ModFile
	SortRules []SortRule
}

// NewMod creates an enabled mod with a fresh ID and no files.
func NewMod(name string, category Category) Mod {
	return Mod{
		ID:       NewModID(),
		Name:     name,
		Category: category,
		Enabled:  true,
		Files:    make(map[FileID]ModFile),
	}
}

// Clone returns a deep copy of the mod.
func (m Mod) Clone() Mod {
	out := m
	out.Files = make(map[FileID]ModFile, len(m.Files))
	for id, f := range m.Files {
		out.Files[id] = f
	}
	if m.SortRules != nil {
		out.SortRules = append([]SortRule(nil), m.SortRules...)
	}
	return out
}

// SortedFiles returns the mod's files ordered by FileID.
func (m Mod) SortedFiles() []ModFile {
	files := make([]ModFile, 0, len(m.Files))
	for _, f := range m.Files {
		files = append(files, f)
	}
	sort.Slice(files, func(i, j int) bool {
		return files[i].FileID().Less(files[j].FileID())
	})
	return files
}

// Less orders mods by name, then by ID.
func (m Mod) Less(other Mod) bool {
	if m.Name != other.Name {
		return m.Name < other.Name
	}
	return m.ID.Less(other.ID)
}

// Clone returns a deep copy of the loadout.
func (l *Loadout) Clone() *Loadout {
	out := *l
	out.Mods = make(map[ModID]Mod, len(l.Mods))
	for id, m := range l.Mods {
		out.Mods[id] = m.Clone()
	}
	return &out
}

// SortedMods returns every mod ordered by name, then ID.
func (l *Loadout) SortedMods() []Mod {
	mods := make([]Mod, 0, len(l.Mods))
	for _, m := range l.Mods {
		mods = append(mods, m)
	}
	sort.Slice(mods, func(i, j int) bool { return mods[i].Less(mods[j]) })
	return mods
}

// EnabledMods returns the enabled mods ordered by name, then ID.
func (l *Loadout) EnabledMods() []Mod {
	var mods []Mod
	for _, m := range l.SortedMods() {
		if m.Enabled {
			mods = append(mods, m)
		}
	}
	return mods
}

// FindModByName returns the first mod (by name, then ID) called name.
func (l *Loadout) FindModByName(name string) (Mod, bool) {
	for _, m := range l.SortedMods() {
		if m.Name == name {
			return m, true
		}
	}
	return Mod{}, false
}

// FileCount returns the number of files across all mods.
func (l *Loadout) FileCount() int {
	n := 0
	for _, m := range l.Mods {
		n += len(m.Files)
	}
	return n
}
