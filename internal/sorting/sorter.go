// Package sorting resolves per-mod sort rules into one deterministic total
// order.
//
// Static rules (Before, After, First) are used as declared. Generated rules
// are expanded by a named RuleGenerator into concrete Before/After rules; the
// expansion is memoized in a fingerprint cache keyed by the generator's
// fingerprint over (mod, loadout), so unchanged inputs never call the
// generator twice.
//
// The order is a topological sort of the rule graph. Mods that are not
// constrained relative to each other are ordered by (name, ID). Any cycle is
// a fatal ErrSortConflict; no partial order is ever returned.
package sorting

import (
	"container/heap"
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/danieljhkim/modsync/internal/fingerprint"
	"github.com/danieljhkim/modsync/internal/hash"
	"github.com/danieljhkim/modsync/internal/loadout"
)

// RuleGenerator expands a Generated sort rule into concrete rules.
type RuleGenerator interface {
	// Name is the identifier referenced by loadout.Generated rules.
	Name() string

	// Fingerprint summarizes every input GenerateSortRules depends on.
	Fingerprint(mod loadout.ModID, l *loadout.Loadout) hash.Hash

	// GenerateSortRules returns Before/After rules for mod.
	GenerateSortRules(ctx context.Context, mod loadout.ModID, l *loadout.Loadout) ([]loadout.SortRule, error)
}

// Sorter orders the enabled mods of a loadout.
type Sorter struct {
	generators map[string]RuleGenerator
	cache      *fingerprint.Cache[[]loadout.SortRule]
	log        zerolog.Logger
}

// NewSorter creates a Sorter with the given rule cache and generators.
func NewSorter(cache *fingerprint.Cache[[]loadout.SortRule], log zerolog.Logger, generators ...RuleGenerator) *Sorter {
	s := &Sorter{
		generators: make(map[string]RuleGenerator, len(generators)),
		cache:      cache,
		log:        log,
	}
	for _, g := range generators {
		s.generators[g.Name()] = g
	}
	return s
}

// Sort returns the enabled mods of l in their resolved order. Index 0 is the
// first mod laid down.
func (s *Sorter) Sort(ctx context.Context, l *loadout.Loadout) ([]loadout.Mod, error) {
	mods := l.EnabledMods()

	rules := make(map[loadout.ModID][]loadout.SortRule, len(mods))
	for _, mod := range mods {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		resolved, err := s.resolveRules(ctx, mod, l)
		if err != nil {
			return nil, err
		}
		rules[mod.ID] = resolved
	}

	return topoSort(mods, rules)
}

func (s *Sorter) resolveRules(ctx context.Context, mod loadout.Mod, l *loadout.Loadout) ([]loadout.SortRule, error) {
	var out []loadout.SortRule
	for _, rule := range mod.SortRules {
		switch r := rule.(type) {
		case loadout.Before, loadout.After, loadout.First:
			out = append(out, r)
		case loadout.Generated:
			generated, err := s.generate(ctx, r.Generator, mod, l)
			if err != nil {
				return nil, err
			}
			out = append(out, generated...)
		default:
			return nil, fmt.Errorf("%w: %T on mod %s", loadout.ErrUnknownVariant, rule, mod.Name)
		}
	}
	return out, nil
}

func (s *Sorter) generate(ctx context.Context, name string, mod loadout.Mod, l *loadout.Loadout) ([]loadout.SortRule, error) {
	gen, ok := s.generators[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q on mod %s", ErrUnknownGenerator, name, mod.Name)
	}

	id := [16]byte(mod.ID)
	key := hash.NewFingerprinter().
		AddString(gen.Name()).
		AddBytes(id[:]).
		AddHash(gen.Fingerprint(mod.ID, l)).
		Digest()

	rules, hit, err := s.cache.GetOrCompute(key, func() ([]loadout.SortRule, error) {
		rules, err := gen.GenerateSortRules(ctx, mod.ID, l)
		if err != nil {
			return nil, fmt.Errorf("sort rule generator %q failed for mod %s: %w", name, mod.Name, err)
		}
		for _, r := range rules {
			switch r.(type) {
			case loadout.Before, loadout.After:
			default:
				return nil, fmt.Errorf("sort rule generator %q returned %T, want Before or After", name, r)
			}
		}
		return rules, nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Debug().
		Str("generator", name).
		Str("mod", mod.Name).
		Bool("cached", hit).
		Int("rules", len(rules)).
		Msg("resolved generated sort rules")
	return rules, nil
}

// topoSort orders mods with Kahn's algorithm. Ready mods are taken in
// (name, ID) order.
func topoSort(mods []loadout.Mod, rules map[loadout.ModID][]loadout.SortRule) ([]loadout.Mod, error) {
	byID := make(map[loadout.ModID]loadout.Mod, len(mods))
	first := make(map[loadout.ModID]bool)
	for _, m := range mods {
		byID[m.ID] = m
		for _, r := range rules[m.ID] {
			if _, ok := r.(loadout.First); ok {
				first[m.ID] = true
			}
		}
	}

	edges := make(map[loadout.ModID]map[loadout.ModID]bool, len(mods))
	indegree := make(map[loadout.ModID]int, len(mods))
	addEdge := func(from, to loadout.ModID) {
		if from == to {
			return
		}
		if _, ok := byID[from]; !ok {
			return
		}
		if _, ok := byID[to]; !ok {
			return
		}
		if edges[from] == nil {
			edges[from] = make(map[loadout.ModID]bool)
		}
		if !edges[from][to] {
			edges[from][to] = true
			indegree[to]++
		}
	}

	for _, m := range mods {
		for _, r := range rules[m.ID] {
			switch r := r.(type) {
			case loadout.Before:
				addEdge(m.ID, r.Other)
			case loadout.After:
				addEdge(r.Other, m.ID)
			case loadout.First:
				for _, other := range mods {
					if !first[other.ID] {
						addEdge(m.ID, other.ID)
					}
				}
			}
		}
	}

	ready := &modHeap{}
	for _, m := range mods {
		if indegree[m.ID] == 0 {
			heap.Push(ready, m)
		}
	}

	order := make([]loadout.Mod, 0, len(mods))
	for ready.Len() > 0 {
		m := heap.Pop(ready).(loadout.Mod)
		order = append(order, m)

		next := make([]loadout.ModID, 0, len(edges[m.ID]))
		for to := range edges[m.ID] {
			next = append(next, to)
		}
		for _, to := range next {
			indegree[to]--
			if indegree[to] == 0 {
				heap.Push(ready, byID[to])
			}
		}
	}

	if len(order) != len(mods) {
		var stuck []string
		for _, m := range mods {
			if indegree[m.ID] > 0 {
				stuck = append(stuck, m.Name)
			}
		}
		sort.Strings(stuck)
		return nil, fmt.Errorf("%w: cycle between %s", ErrSortConflict, strings.Join(stuck, ", "))
	}
	return order, nil
}

type modHeap []loadout.Mod

func (h modHeap) Len() int           { return len(h) }
func (h modHeap) Less(i, j int) bool { return h[i].Less(h[j]) }
func (h modHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *modHeap) Push(x any)        { *h = append(*h, x.(loadout.Mod)) }
func (h *modHeap) Pop() any {
	old := *h
	n := len(old)
	m := old[n-1]
	*h = old[:n-1]
	return m
}
