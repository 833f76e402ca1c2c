package loadout

// FileRef addresses a file inside a loadout.
type FileRef struct {
	Mod  ModID
	File FileID
}

// MapFiles returns a copy of l where each file is replaced by fn's result.
// Files for which fn returns false are dropped.
func MapFiles(l *Loadout, fn func(mod Mod, f ModFile) (ModFile, bool)) *Loadout {
	out := l.Clone()
	for id, mod := range out.Mods {
		files := make(map[FileID]ModFile, len(mod.Files))
		for _, f := range mod.SortedFiles() {
			if next, keep := fn(mod, f); keep {
				files[next.FileID()] = next
			}
		}
		mod.Files = files
		out.Mods[id] = mod
	}
	return out
}

// MapMods returns a copy of l where each mod is replaced by fn's result.
// Mods for which fn returns false are dropped.
func MapMods(l *Loadout, fn func(mod Mod) (Mod, bool)) *Loadout {
	out := l.Clone()
	mods := make(map[ModID]Mod, len(out.Mods))
	for _, mod := range out.SortedMods() {
		if next, keep := fn(mod); keep {
			mods[next.ID] = next
		}
	}
	out.Mods = mods
	return out
}

// WithMod returns a copy of l with mod added, replacing any mod with the
// same ID.
func WithMod(l *Loadout, mod Mod) *Loadout {
	out := l.Clone()
	out.Mods[mod.ID] = mod.Clone()
	return out
}

// WithoutFiles returns a copy of l with the referenced files removed.
// Unknown references are ignored.
func WithoutFiles(l *Loadout, refs ...FileRef) *Loadout {
	drop := make(map[FileRef]struct{}, len(refs))
	for _, r := range refs {
		drop[r] = struct{}{}
	}
	return MapFiles(l, func(mod Mod, f ModFile) (ModFile, bool) {
		_, gone := drop[FileRef{Mod: mod.ID, File: f.FileID()}]
		return f, !gone
	})
}

// WithFile returns a copy of l with f stored in the mod modID, replacing a
// file with the same ID. The mod must exist.
func WithFile(l *Loadout, modID ModID, f ModFile) (*Loadout, error) {
	mod, ok := l.Mods[modID]
	if !ok {
		return nil, ErrModNotFound
	}
	mod = mod.Clone()
	mod.Files[f.FileID()] = f
	out := l.Clone()
	out.Mods[modID] = mod
	return out, nil
}
