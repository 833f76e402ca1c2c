package generators

import (
	"bufio"
	"context"
	"fmt"
	"io"

	"github.com/danieljhkim/modsync/internal/hash"
	"github.com/danieljhkim/modsync/internal/loadout"
)

const (
	LoadOrderName = "load-order"
	ManifestName  = "manifest"
)

// LoadOrder writes the enabled mods in sort order, one per line, prefixed
// with '*' the way plugin lists mark active entries.
type LoadOrder struct{}

func (LoadOrder) Name() string { return LoadOrderName }

func (LoadOrder) Fingerprint(gctx Context) hash.Hash {
	fp := hash.NewFingerprinter()
	for _, m := range gctx.Sorted {
		id := [16]byte(m.ID)
		fp.AddBytes(id[:]).AddString(m.Name)
	}
	return fp.Digest()
}

func (LoadOrder) Generate(ctx context.Context, w io.Writer, gctx Context) error {
	bw := bufio.NewWriter(w)
	if _, err := fmt.Fprintln(bw, "# generated by modsync"); err != nil {
		return err
	}
	for _, m := range gctx.Sorted {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := fmt.Fprintf(bw, "*%s\n", m.Name); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// Manifest lists every archive-backed file of the flattened loadout with its
// hash, size and contributing mod. Generated files are left out so a
// manifest never depends on its own output.
type Manifest struct{}

func (Manifest) Name() string { return ManifestName }

func (Manifest) Fingerprint(gctx Context) hash.Hash {
	fp := hash.NewFingerprinter()
	if gctx.Flattened == nil {
		return fp.Digest()
	}
	for _, p := range gctx.Flattened.Paths() {
		e := gctx.Flattened.Files[p]
		f, ok := e.File.(loadout.FromArchive)
		if !ok {
			continue
		}
		fp.AddString(p.String()).AddHash(f.Hash).AddUint64(uint64(f.Size)).AddString(e.Mod.Name)
	}
	return fp.Digest()
}

func (Manifest) Generate(ctx context.Context, w io.Writer, gctx Context) error {
	bw := bufio.NewWriter(w)
	if gctx.Flattened != nil {
		for _, p := range gctx.Flattened.Paths() {
			if err := ctx.Err(); err != nil {
				return err
			}
			e := gctx.Flattened.Files[p]
			f, ok := e.File.(loadout.FromArchive)
			if !ok {
				continue
			}
			if _, err := fmt.Fprintf(bw, "%s\t%s\t%d\t%s\n", p, f.Hash, f.Size, e.Mod.Name); err != nil {
				return err
			}
		}
	}
	return bw.Flush()
}
