// Package overlay resolves sorted mods into the single view of files that
// should exist in the game folder.
//
// Key responsibilities:
//   - Flatten sorted mods into a path -> winning file map
//   - Materialize that map as a directory tree and convert it back
//   - Keep mod provenance for every path so ingest can attribute changes
package overlay

import (
	"fmt"
	"sort"
	"strings"

	"github.com/danieljhkim/modsync/internal/loadout"
)

// IndexOverrideBehavior decides which of two mods defining the same path
// wins.
type IndexOverrideBehavior int

const (
	// GreaterIndexWins lets the mod later in sort order win.
	GreaterIndexWins IndexOverrideBehavior = iota

	// SmallerIndexWins lets the mod earlier in sort order win.
	SmallerIndexWins
)

func (b IndexOverrideBehavior) String() string {
	switch b {
	case GreaterIndexWins:
		return "greater-index-wins"
	case SmallerIndexWins:
		return "smaller-index-wins"
	default:
		return fmt.Sprintf("IndexOverrideBehavior(%d)", int(b))
	}
}

// ParseOverrideBehavior parses the String form. An empty string selects the
// default.
func ParseOverrideBehavior(s string) (IndexOverrideBehavior, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "greater-index-wins":
		return GreaterIndexWins, nil
	case "smaller-index-wins":
		return SmallerIndexWins, nil
	default:
		return GreaterIndexWins, fmt.Errorf("unknown override behavior %q", s)
	}
}

// Entry is the winning file for a path and the mod that contributed it.
type Entry struct {
	Mod  loadout.Mod
	File loadout.ModFile
}

// Flattened maps every target path to exactly one winning file.
type Flattened struct {
	Files map[loadout.GamePath]Entry

	// Order is the sort order the map was built from.
	Order []loadout.ModID
}

// Flatten overlays sorted mods. Files are visited in mod order, then FileID
// order; files without a target path are skipped.
func Flatten(sorted []loadout.Mod, behavior IndexOverrideBehavior) *Flattened {
	out := &Flattened{
		Files: make(map[loadout.GamePath]Entry),
		Order: make([]loadout.ModID, 0, len(sorted)),
	}

	for _, mod := range sorted {
		out.Order = append(out.Order, mod.ID)
		for _, f := range mod.SortedFiles() {
			to := f.Target()
			if to.IsZero() {
				continue
			}
			if _, taken := out.Files[to]; taken && behavior == SmallerIndexWins {
				continue
			}
			out.Files[to] = Entry{Mod: mod, File: f}
		}
	}
	return out
}

// Paths returns every path in sorted order.
func (f *Flattened) Paths() []loadout.GamePath {
	paths := make([]loadout.GamePath, 0, len(f.Files))
	for p := range f.Files {
		paths = append(paths, p)
	}
	sort.Slice(paths, func(i, j int) bool { return paths[i].Less(paths[j]) })
	return paths
}

// Get returns the entry for path.
func (f *Flattened) Get(p loadout.GamePath) (Entry, bool) {
	e, ok := f.Files[p]
	return e, ok
}

// Len returns the number of paths.
func (f *Flattened) Len() int {
	return len(f.Files)
}
