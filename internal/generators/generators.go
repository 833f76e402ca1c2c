// Package generators provides files whose content is synthesized from the
// loadout at apply time instead of being extracted from the archive.
//
// A generator is referenced by name from loadout.GeneratedFile. Its
// fingerprint must change whenever its output would change; the planner
// uses it to decide between re-extracting a previous output and running
// the generator again.
package generators

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/danieljhkim/modsync/internal/hash"
	"github.com/danieljhkim/modsync/internal/loadout"
	"github.com/danieljhkim/modsync/internal/overlay"
)

// ErrUnknownGenerator is returned when a file names a generator that is not
// registered.
var ErrUnknownGenerator = errors.New("unknown file generator")

// Context is everything a generator may read.
type Context struct {
	Loadout   *loadout.Loadout
	Sorted    []loadout.Mod
	Flattened *overlay.Flattened
}

// Generator synthesizes one kind of file.
type Generator interface {
	Name() string

	// Fingerprint covers every input Generate reads from gctx.
	Fingerprint(gctx Context) hash.Hash

	// Generate writes the file content to w.
	Generate(ctx context.Context, w io.Writer, gctx Context) error
}

// Registry maps generator names to implementations.
type Registry struct {
	generators map[string]Generator
}

// NewRegistry registers gens. A later generator with the same name replaces
// an earlier one.
func NewRegistry(gens ...Generator) *Registry {
	r := &Registry{generators: make(map[string]Generator, len(gens))}
	for _, g := range gens {
		r.generators[g.Name()] = g
	}
	return r
}

// Default returns a registry with the built-in generators.
func Default() *Registry {
	return NewRegistry(LoadOrder{}, Manifest{})
}

// Get returns the named generator.
func (r *Registry) Get(name string) (Generator, error) {
	g, ok := r.generators[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownGenerator, name)
	}
	return g, nil
}

// Names returns registered names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.generators))
	for n := range r.generators {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// FileFingerprint is the cache key for one generated file: the generator's
// fingerprint bound to the generator name and the file's target path.
func FileFingerprint(g Generator, f loadout.GeneratedFile, gctx Context) hash.Hash {
	return hash.NewFingerprinter().
		AddString(g.Name()).
		AddString(f.To.String()).
		AddHash(g.Fingerprint(gctx)).
		Digest()
}
