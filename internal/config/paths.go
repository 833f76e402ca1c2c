// Package config manages modsync configuration and filesystem paths.
//
// Data lives under a root directory (default ~/.modsync, overridable with
// MODSYNC_ROOT) containing the loadout registry, disk snapshots, the backup
// archive and config.yaml. The config file declares game installations and
// tunes the engine.
package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// Paths contains all the filesystem paths used by modsync.
type Paths struct {
	// Root is the base directory for all modsync data (default: ~/.modsync)
	Root string

	// Loadouts is the directory holding the versioned loadout registry
	Loadouts string

	// Snapshots is the directory holding per-installation disk snapshots
	Snapshots string

	// Archive is the content-addressed backup store
	Archive string

	// Config is the path to the global config file
	Config string
}

// DefaultPaths returns the default paths for modsync.
// Paths can be overridden with environment variables:
// - MODSYNC_ROOT: Override the root directory
func DefaultPaths() (*Paths, error) {
	root := os.Getenv("MODSYNC_ROOT")
	if root == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		root = filepath.Join(home, ".modsync")
	}

	return PathsAt(root), nil
}

// PathsAt returns the layout rooted at root.
func PathsAt(root string) *Paths {
	return &Paths{
		Root:      root,
		Loadouts:  filepath.Join(root, "loadouts"),
		Snapshots: filepath.Join(root, "snapshots"),
		Archive:   filepath.Join(root, "archive"),
		Config:    filepath.Join(root, "config.yaml"),
	}
}

// Dirs lists the directories EnsureDirectories creates.
func (p *Paths) Dirs() []string {
	return []string{
		p.Root,
		p.Loadouts,
		p.Snapshots,
		p.Archive,
	}
}

// EnsureDirectories creates all necessary directories if they don't exist.
func (p *Paths) EnsureDirectories(mkdirAll func(path string, perm os.FileMode) error) error {
	for _, dir := range p.Dirs() {
		if err := mkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}
