// Package indexer enumerates the real files of a game installation with
// their content hashes.
//
// Files are discovered with a walk over every location root and hashed on a
// bounded worker pool. Results are emitted in sorted path order regardless of
// which worker finished first, so two indexes of an unchanged folder are
// identical. When a previous disk state is supplied, files whose size and
// modification time match it reuse the recorded hash instead of being read.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/danieljhkim/modsync/internal/fsops"
	"github.com/danieljhkim/modsync/internal/hash"
	"github.com/danieljhkim/modsync/internal/loadout"
	"github.com/danieljhkim/modsync/internal/observability"
	"github.com/danieljhkim/modsync/internal/state"
)

// tempPrefix matches files left behind by fsops atomic writes.
const tempPrefix = ".modsync-tmp-"

// Location is a location root to index.
type Location struct {
	ID   loadout.LocationID
	Root string
}

// Result is one indexed file. Err is set when the file was found but could
// not be hashed.
type Result struct {
	Path  loadout.GamePath
	Entry state.Entry
	Err   error
}

// Indexer enumerates files with content hashes.
type Indexer interface {
	// IndexFolders calls emit once per file in sorted path order. An error
	// from emit stops indexing and is returned.
	IndexFolders(ctx context.Context, locations []Location, emit func(Result) error) error
}

// FSIndexer implements Indexer over an fsops.FS.
type FSIndexer struct {
	fs       fsops.FS
	hasher   hash.Hasher
	workers  int
	previous state.DiskState
	log      zerolog.Logger
	metrics  *observability.Metrics
}

// New creates an FSIndexer hashing with up to workers goroutines.
func New(fs fsops.FS, hasher hash.Hasher, workers int, log zerolog.Logger, metrics *observability.Metrics) *FSIndexer {
	if workers <= 0 {
		workers = 1
	}
	return &FSIndexer{fs: fs, hasher: hasher, workers: workers, log: log, metrics: metrics}
}

// WithPrevious returns a copy of the indexer that reuses hashes from prev
// for files whose size and modification time are unchanged.
func (ix *FSIndexer) WithPrevious(prev state.DiskState) *FSIndexer {
	out := *ix
	out.previous = prev
	return &out
}

type found struct {
	path loadout.GamePath
	abs  string
	info os.FileInfo
}

// IndexFolders implements Indexer.
func (ix *FSIndexer) IndexFolders(ctx context.Context, locations []Location, emit func(Result) error) error {
	files, err := ix.discover(ctx, locations)
	if err != nil {
		return err
	}

	results := make([]Result, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ix.workers)
	for i, f := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = ix.hashOne(f)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for _, r := range results {
		if err := emit(r); err != nil {
			return err
		}
	}
	return nil
}

func (ix *FSIndexer) discover(ctx context.Context, locations []Location) ([]found, error) {
	var files []found
	for _, loc := range locations {
		root := filepath.Clean(loc.Root)
		exists, err := ix.fs.Exists(root)
		if err != nil {
			return nil, fmt.Errorf("failed to stat location %s: %w", loc.ID, err)
		}
		if !exists {
			ix.log.Debug().Str("location", string(loc.ID)).Str("root", root).Msg("location root missing, skipping")
			continue
		}

		err = ix.fs.Walk(root, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if info.IsDir() || !info.Mode().IsRegular() {
				return nil
			}
			if strings.HasPrefix(info.Name(), tempPrefix) {
				return nil
			}

			rel, err := filepath.Rel(root, path)
			if err != nil {
				return err
			}
			gp, err := loadout.NewGamePath(loc.ID, filepath.ToSlash(rel))
			if err != nil {
				return fmt.Errorf("failed to map %s: %w", path, err)
			}
			files = append(files, found{path: gp, abs: path, info: info})
			return nil
		})
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			return nil, fmt.Errorf("failed to walk location %s: %w", loc.ID, err)
		}
	}

	sort.Slice(files, func(i, j int) bool { return files[i].path.Less(files[j].path) })
	return files, nil
}

func (ix *FSIndexer) hashOne(f found) Result {
	mtime := f.info.ModTime().UTC()
	size := f.info.Size()

	if prev, ok := ix.previous[f.path]; ok && prev.Size == size && prev.LastModified.Equal(mtime) && !prev.Hash.IsZero() {
		ix.metrics.RecordIndexed(true)
		return Result{Path: f.path, Entry: state.Entry{Path: f.path, Hash: prev.Hash, Size: size, LastModified: mtime}}
	}

	h, n, err := ix.hasher.HashFile(f.abs)
	if err != nil {
		return Result{Path: f.path, Err: fmt.Errorf("failed to hash %s: %w", f.path, err)}
	}
	ix.metrics.RecordIndexed(false)
	return Result{Path: f.path, Entry: state.Entry{Path: f.path, Hash: h, Size: n, LastModified: mtime}}
}

// Collect indexes locations into a DiskState. Files that could not be hashed
// are returned separately.
func Collect(ctx context.Context, ix Indexer, locations []Location) (state.DiskState, []Result, error) {
	disk := make(state.DiskState)
	var unreadable []Result
	err := ix.IndexFolders(ctx, locations, func(r Result) error {
		if r.Err != nil {
			unreadable = append(unreadable, r)
			return nil
		}
		disk[r.Path] = r.Entry
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return disk, unreadable, nil
}
