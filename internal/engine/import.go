package engine

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/danieljhkim/modsync/internal/loadout"
	"github.com/danieljhkim/modsync/internal/manifest"
)

// Import adds the mods declared in a manifest to the installation's loadout
// as a new version. The game folder is not touched until the next apply.
func (e *Engine) Import(ctx context.Context, req *ImportRequest) (*ImportResult, error) {
	inst, err := e.installation(req.Installation)
	if err != nil {
		return nil, err
	}

	unlock, err := e.lock(ctx, inst.Name)
	if err != nil {
		return nil, err
	}
	defer unlock()

	snap, _, err := e.current(inst.Name)
	if err != nil {
		return nil, err
	}

	m, err := manifest.Load(e.fs, req.ManifestPath)
	if err != nil {
		return nil, err
	}

	msg := fmt.Sprintf("Import %s", filepath.Base(req.ManifestPath))
	l, err := e.registry.Alter(snap.Loadout, msg, func(head *loadout.Loadout) (*loadout.Loadout, error) {
		return e.importer.Import(ctx, m, head)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to import %s: %w", req.ManifestPath, err)
	}

	names := make([]string, len(m.Mods))
	for i, spec := range m.Mods {
		names[i] = spec.Name
	}
	e.log.Info().Str("installation", inst.Name).Strs("mods", names).Msg("imported manifest")
	return &ImportResult{Loadout: l, Mods: names}, nil
}
