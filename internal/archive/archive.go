// Package archive implements the content-addressed backup store.
//
// Every file modsync might destroy is copied here first, keyed by its
// xxHash64 digest, so any previous state of a game folder can be restored
// by extracting blobs again. Blobs are zstd-compressed and written
// atomically; the digest is verified on the way in and on the way out.
//
// Layout:
//
//	<dir>/<first two hex digits>/<hash>.zst
package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/danieljhkim/modsync/internal/fsops"
	"github.com/danieljhkim/modsync/internal/hash"
	"github.com/danieljhkim/modsync/internal/observability"
)

var (
	// ErrNotFound is returned when no blob exists for a hash.
	ErrNotFound = errors.New("blob not found in archive")

	// ErrHashMismatch is returned when content does not match its declared
	// hash or size.
	ErrHashMismatch = errors.New("content does not match hash")
)

// Source opens the bytes to back up.
type Source func() (io.ReadCloser, error)

// BackupRequest asks the store to keep content under Hash.
type BackupRequest struct {
	Hash   hash.Hash
	Size   int64
	Source Source
}

// ExtractRequest asks the store to write the blob Hash to Dest.
type ExtractRequest struct {
	Hash hash.Hash
	Dest string
	Perm os.FileMode
}

// Store is a content-addressed backup store.
type Store interface {
	// HaveFile reports whether a blob for h exists. Lookup failures report
	// false so callers back up again.
	HaveFile(h hash.Hash) bool

	// BackupFiles stores every request. It is idempotent by hash and safe to
	// call concurrently.
	BackupFiles(ctx context.Context, reqs []BackupRequest) error

	// ExtractFiles writes blobs to their destinations one at a time,
	// checking ctx before each.
	ExtractFiles(ctx context.Context, reqs []ExtractRequest) error

	// Open returns a reader over the decompressed blob.
	Open(h hash.Hash) (io.ReadCloser, error)
}

// ZstdStore implements Store with zstd-compressed blobs on an fsops.FS.
type ZstdStore struct {
	fs          fsops.FS
	dir         string
	concurrency int
	inflight    singleflight.Group
	log         zerolog.Logger
	metrics     *observability.Metrics
}

// NewZstdStore creates a store under dir running at most concurrency
// backups at once.
func NewZstdStore(fs fsops.FS, dir string, concurrency int, log zerolog.Logger, metrics *observability.Metrics) *ZstdStore {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &ZstdStore{fs: fs, dir: dir, concurrency: concurrency, log: log, metrics: metrics}
}

func (s *ZstdStore) blobPath(h hash.Hash) string {
	hex := h.String()
	return filepath.Join(s.dir, hex[:2], hex+".zst")
}

// HaveFile reports whether a blob for h exists.
func (s *ZstdStore) HaveFile(h hash.Hash) bool {
	if h.IsZero() {
		return false
	}
	ok, err := s.fs.Exists(s.blobPath(h))
	if err != nil {
		s.log.Warn().Err(err).Str("hash", h.String()).Msg("failed to check archive blob")
		return false
	}
	return ok
}

// BackupFiles stores every request on a bounded worker pool. Requests for
// the same hash, in this batch or a concurrent one, are collapsed.
func (s *ZstdStore) BackupFiles(ctx context.Context, reqs []BackupRequest) error {
	seen := make(map[hash.Hash]bool, len(reqs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, req := range reqs {
		if seen[req.Hash] {
			continue
		}
		seen[req.Hash] = true

		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			_, err, _ := s.inflight.Do(req.Hash.String(), func() (any, error) {
				return nil, s.backupOne(req)
			})
			return err
		})
	}
	return g.Wait()
}

func (s *ZstdStore) backupOne(req BackupRequest) error {
	if s.HaveFile(req.Hash) {
		s.metrics.RecordBackup(false)
		return nil
	}

	src, err := req.Source()
	if err != nil {
		return fmt.Errorf("failed to open backup source for %s: %w", req.Hash, err)
	}
	defer func() {
		_ = src.Close()
	}()

	err = s.fs.AtomicWriteStream(s.blobPath(req.Hash), 0644, func(w io.Writer) error {
		enc, err := zstd.NewWriter(w)
		if err != nil {
			return err
		}
		hw := hash.NewWriter()
		if _, err := io.Copy(io.MultiWriter(enc, hw), src); err != nil {
			_ = enc.Close()
			return err
		}
		if err := enc.Close(); err != nil {
			return err
		}
		if hw.Sum() != req.Hash || (req.Size >= 0 && hw.Size() != req.Size) {
			return fmt.Errorf("%w: want %s/%d, got %s/%d", ErrHashMismatch, req.Hash, req.Size, hw.Sum(), hw.Size())
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to back up %s: %w", req.Hash, err)
	}

	s.metrics.RecordBackup(true)
	s.log.Debug().Str("hash", req.Hash.String()).Int64("size", req.Size).Msg("backed up blob")
	return nil
}

// ExtractFiles writes blobs to their destinations.
func (s *ZstdStore) ExtractFiles(ctx context.Context, reqs []ExtractRequest) error {
	for _, req := range reqs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.extractOne(req); err != nil {
			return err
		}
	}
	return nil
}

func (s *ZstdStore) extractOne(req ExtractRequest) error {
	r, err := s.Open(req.Hash)
	if err != nil {
		return err
	}
	defer func() {
		_ = r.Close()
	}()

	perm := req.Perm
	if perm == 0 {
		perm = 0644
	}

	err = s.fs.AtomicWriteStream(req.Dest, perm, func(w io.Writer) error {
		hw := hash.NewWriter()
		if _, err := io.Copy(io.MultiWriter(w, hw), r); err != nil {
			return err
		}
		if hw.Sum() != req.Hash {
			return fmt.Errorf("%w: blob %s decoded to %s", ErrHashMismatch, req.Hash, hw.Sum())
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to extract %s to %s: %w", req.Hash, req.Dest, err)
	}
	return nil
}

// Open returns a reader over the decompressed blob.
func (s *ZstdStore) Open(h hash.Hash) (io.ReadCloser, error) {
	f, err := s.fs.Open(s.blobPath(h))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, h)
		}
		return nil, fmt.Errorf("failed to open blob %s: %w", h, err)
	}

	dec, err := zstd.NewReader(f)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to open blob %s: %w", h, err)
	}
	return &blobReader{dec: dec, file: f}, nil
}

type blobReader struct {
	dec  *zstd.Decoder
	file io.Closer
}

func (r *blobReader) Read(p []byte) (int, error) {
	return r.dec.Read(p)
}

func (r *blobReader) Close() error {
	r.dec.Close()
	return r.file.Close()
}

// FileSource returns a Source reading path from fs.
func FileSource(fs fsops.FS, path string) Source {
	return func() (io.ReadCloser, error) {
		return fs.Open(path)
	}
}
