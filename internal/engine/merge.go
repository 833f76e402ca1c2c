package engine

import "github.com/danieljhkim/modsync/internal/loadout"

// MergeLoadouts combines a loadout edited while an ingest was running with
// the ingest's result. Mods are matched by ID: a mod present in both keeps
// the ingested variant, and mods unique to either side are carried over.
// Loadout metadata comes from user.
func MergeLoadouts(user, ingested *loadout.Loadout) *loadout.Loadout {
	out := user.Clone()
	for id, mod := range ingested.Mods {
		out.Mods[id] = mod.Clone()
	}
	return out
}
