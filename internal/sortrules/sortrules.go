// Package sortrules provides the built-in sort rule generators referenced by
// loadout.Generated rules.
package sortrules

import (
	"context"
	"sort"

	"github.com/danieljhkim/modsync/internal/hash"
	"github.com/danieljhkim/modsync/internal/loadout"
)

const (
	// AlphabeticalName orders mods carrying the rule by name.
	AlphabeticalName = "alphabetical"

	// AfterAllName places a mod after every mod that does not carry it.
	AfterAllName = "after-all"
)

// Alphabetical places a mod before every mod whose (name, ID) sorts after it
// and after every other mod.
type Alphabetical struct{}

func (Alphabetical) Name() string { return AlphabeticalName }

// Fingerprint covers the names and IDs of every mod in the loadout.
func (Alphabetical) Fingerprint(mod loadout.ModID, l *loadout.Loadout) hash.Hash {
	fp := hash.NewFingerprinter()
	for _, m := range l.SortedMods() {
		id := [16]byte(m.ID)
		fp.AddString(m.Name).AddBytes(id[:])
	}
	return fp.Digest()
}

func (Alphabetical) GenerateSortRules(ctx context.Context, mod loadout.ModID, l *loadout.Loadout) ([]loadout.SortRule, error) {
	self, ok := l.Mods[mod]
	if !ok {
		return nil, loadout.ErrModNotFound
	}

	var rules []loadout.SortRule
	for _, other := range l.SortedMods() {
		if other.ID == mod {
			continue
		}
		if self.Less(other) {
			rules = append(rules, loadout.Before{Other: other.ID})
		} else {
			rules = append(rules, loadout.After{Other: other.ID})
		}
	}
	return rules, nil
}

// AfterAll puts override mods on top of everything else so their files win
// under the default override behavior.
type AfterAll struct{}

func (AfterAll) Name() string { return AfterAllName }

// Fingerprint covers the set of mod IDs and which of them carry the rule.
func (AfterAll) Fingerprint(mod loadout.ModID, l *loadout.Loadout) hash.Hash {
	ids := make([]loadout.ModID, 0, len(l.Mods))
	for id := range l.Mods {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].Less(ids[j]) })

	fp := hash.NewFingerprinter()
	for _, id := range ids {
		raw := [16]byte(id)
		fp.AddBytes(raw[:]).AddBool(carriesAfterAll(l.Mods[id]))
	}
	return fp.Digest()
}

func (AfterAll) GenerateSortRules(ctx context.Context, mod loadout.ModID, l *loadout.Loadout) ([]loadout.SortRule, error) {
	if _, ok := l.Mods[mod]; !ok {
		return nil, loadout.ErrModNotFound
	}

	var rules []loadout.SortRule
	for _, other := range l.SortedMods() {
		if other.ID == mod || carriesAfterAll(other) {
			continue
		}
		rules = append(rules, loadout.After{Other: other.ID})
	}
	return rules, nil
}

func carriesAfterAll(m loadout.Mod) bool {
	for _, r := range m.SortRules {
		if g, ok := r.(loadout.Generated); ok && g.Generator == AfterAllName {
			return true
		}
	}
	return false
}
