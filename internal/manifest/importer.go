package manifest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/danieljhkim/modsync/internal/archive"
	"github.com/danieljhkim/modsync/internal/fsops"
	"github.com/danieljhkim/modsync/internal/hash"
	"github.com/danieljhkim/modsync/internal/loadout"
)

// Importer turns mod declarations into loadout mods, backing their source
// files up into the archive first.
type Importer struct {
	fs      fsops.FS
	hasher  hash.Hasher
	archive archive.Store
	log     zerolog.Logger
}

// NewImporter creates an Importer.
func NewImporter(fs fsops.FS, hasher hash.Hasher, store archive.Store, log zerolog.Logger) *Importer {
	return &Importer{fs: fs, hasher: hasher, archive: store, log: log}
}

type sourceFile struct {
	abs  string
	to   loadout.GamePath
	hash hash.Hash
	size int64
}

// Import returns l with every declared mod added or, when a mod of the same
// name exists, replaced while keeping its ID. All content is archived
// before the loadout is built, so any error leaves the loadout untouched.
func (im *Importer) Import(ctx context.Context, m *Manifest, l *loadout.Loadout) (*loadout.Loadout, error) {
	sources := make([][]sourceFile, len(m.Mods))
	var backups []archive.BackupRequest
	for i, spec := range m.Mods {
		files, err := im.scan(ctx, spec)
		if err != nil {
			return nil, err
		}
		if len(files) == 0 && len(spec.Generated) == 0 {
			return nil, fmt.Errorf("%w: %q", ErrNoContent, spec.Name)
		}
		sources[i] = files
		for _, f := range files {
			backups = append(backups, archive.BackupRequest{Hash: f.hash, Size: f.size, Source: archive.FileSource(im.fs, f.abs)})
		}
	}

	if err := im.archive.BackupFiles(ctx, backups); err != nil {
		return nil, fmt.Errorf("failed to archive mod files: %w", err)
	}

	out := l.Clone()
	ids := make(map[string]loadout.ModID, len(out.Mods)+len(m.Mods))
	for _, mod := range out.Mods {
		ids[mod.Name] = mod.ID
	}

	mods := make([]loadout.Mod, len(m.Mods))
	for i, spec := range m.Mods {
		mod := loadout.NewMod(spec.Name, loadout.Category(spec.Category))
		if existing, ok := out.FindModByName(spec.Name); ok {
			mod.ID = existing.ID
		}
		mod.Enabled = spec.IsEnabled()
		ids[spec.Name] = mod.ID

		for _, f := range sources[i] {
			id := loadout.NewFileID()
			mod.Files[id] = loadout.FromArchive{ID: id, To: f.to, Hash: f.hash, Size: f.size}
		}
		for _, g := range spec.Generated {
			to, _ := loadout.ParseGamePath(g.To)
			id := loadout.NewFileID()
			mod.Files[id] = loadout.GeneratedFile{ID: id, To: to, Generator: g.Generator}
		}
		mods[i] = mod
	}

	for i, spec := range m.Mods {
		rules, err := resolveRules(spec, ids)
		if err != nil {
			return nil, err
		}
		mods[i].SortRules = rules
		out.Mods[mods[i].ID] = mods[i]
		im.log.Info().Str("mod", spec.Name).Int("files", len(mods[i].Files)).Msg("imported mod")
	}
	return out, nil
}

// scan lists and hashes the files under spec.Source in sorted order.
func (im *Importer) scan(ctx context.Context, spec ModSpec) ([]sourceFile, error) {
	if spec.Source == "" {
		return nil, nil
	}
	root := filepath.Clean(spec.Source)
	loc := loadout.LocationID(spec.Location)

	var files []sourceFile
	err := im.fs.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if info.IsDir() || !info.Mode().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		to, err := loadout.NewGamePath(loc, filepath.ToSlash(rel))
		if err != nil {
			return fmt.Errorf("failed to map %s: %w", path, err)
		}
		h, n, err := im.hasher.HashFile(path)
		if err != nil {
			return fmt.Errorf("failed to hash %s: %w", path, err)
		}
		files = append(files, sourceFile{abs: path, to: to, hash: h, size: n})
		return nil
	})
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %q: source %s does not exist", ErrNoContent, spec.Name, root)
		}
		return nil, fmt.Errorf("failed to scan mod %q: %w", spec.Name, err)
	}

	sort.Slice(files, func(i, j int) bool { return files[i].to.Less(files[j].to) })
	return files, nil
}

func resolveRules(spec ModSpec, ids map[string]loadout.ModID) ([]loadout.SortRule, error) {
	var rules []loadout.SortRule
	for _, raw := range spec.Sort {
		kind, arg, err := parseRule(raw)
		if err != nil {
			return nil, err
		}
		switch kind {
		case ruleFirst:
			rules = append(rules, loadout.First{})
		case ruleGenerated:
			rules = append(rules, loadout.Generated{Generator: arg})
		case ruleBefore, ruleAfter:
			other, ok := ids[arg]
			if !ok {
				return nil, fmt.Errorf("%w: mod %q: rule %q names unknown mod", ErrInvalidManifest, spec.Name, strings.TrimSpace(raw))
			}
			if kind == ruleBefore {
				rules = append(rules, loadout.Before{Other: other})
			} else {
				rules = append(rules, loadout.After{Other: other})
			}
		}
	}
	return rules, nil
}
