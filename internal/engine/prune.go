package engine

import (
	"fmt"
	"path/filepath"

	"github.com/danieljhkim/modsync/internal/config"
	"github.com/danieljhkim/modsync/internal/fsops"
	"github.com/danieljhkim/modsync/internal/loadout"
	"github.com/danieljhkim/modsync/internal/overlay"
)

// pruneEmptyDirs removes directories left empty by deleted files. Pruning
// from a file stops at its location root and at the first ancestor that the
// target tree still uses as a directory.
func pruneEmptyDirs(fs fsops.FS, inst *config.Installation, tree *overlay.Tree, deleted []loadout.GamePath) error {
	seen := make(map[loadout.GamePath]bool)
	for _, gp := range deleted {
		parent, ok := gp.Parent()
		if !ok || seen[parent] {
			continue
		}
		seen[parent] = true

		stop := loadout.GamePath{Location: gp.Location}
		for p, ok := parent, true; ok; p, ok = p.Parent() {
			if tree.HasDir(p) {
				stop = p
				break
			}
		}

		root, err := resolvePath(inst, gp)
		if err != nil {
			return err
		}
		stopAt := inst.Resolve(stop)
		if err := fs.PruneEmptyParents(filepath.Dir(root), stopAt); err != nil {
			return fmt.Errorf("failed to prune directories under %s: %w", stop, err)
		}
	}
	return nil
}
