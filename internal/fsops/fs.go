// Package fsops provides filesystem operations with safety guarantees.
//
// All filesystem access in modsync goes through the FS interface, which is
// backed by an afero filesystem: the real OS filesystem in production and an
// in-memory one in tests. Game folders, the archive and the state directory
// all share the same abstraction.
//
// Key features:
//   - Atomic writes using temp file + rename, including streamed writes
//   - Empty-directory pruning after deletes
//   - Path validation for relative paths and identifiers
//   - Testable via afero.MemMapFs
package fsops

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"
)

// FS provides an abstraction for filesystem operations.
type FS interface {
	// Afero exposes the underlying filesystem for readers such as hashers.
	Afero() afero.Fs

	// Stat returns file info, following symlinks where supported.
	Stat(path string) (os.FileInfo, error)

	// Open opens a file for reading.
	Open(path string) (afero.File, error)

	// ReadFile reads the entire contents of a file.
	ReadFile(path string) ([]byte, error)

	// ReadDir lists a directory sorted by name.
	ReadDir(path string) ([]os.FileInfo, error)

	// MkdirAll creates a directory and all parent directories.
	MkdirAll(path string, perm os.FileMode) error

	// Remove removes a file or empty directory.
	Remove(path string) error

	// Chtimes changes the access and modification times of a file.
	Chtimes(path string, atime, mtime time.Time) error

	// AtomicWrite writes data to path atomically using temp file + rename.
	AtomicWrite(path string, data []byte, perm os.FileMode) error

	// AtomicWriteStream lets fn stream content into a temp file that is
	// renamed over path only if fn succeeds.
	AtomicWriteStream(path string, perm os.FileMode, fn func(w io.Writer) error) error

	// Exists checks if a path exists.
	Exists(path string) (bool, error)

	// Walk walks the tree rooted at root in lexical order.
	Walk(root string, fn filepath.WalkFunc) error

	// PruneEmptyParents removes empty directories from dir upwards, stopping
	// before stopAt or at the first non-empty directory.
	PruneEmptyParents(dir, stopAt string) error

	// ValidateRelPath validates a relative path for safety.
	ValidateRelPath(relPath string) error

	// ValidateIdentifier validates an identifier for safety.
	ValidateIdentifier(id string) error
}

// AferoFS implements FS on top of an afero filesystem.
type AferoFS struct {
	fs afero.Fs
}

// New wraps an existing afero filesystem.
func New(fs afero.Fs) *AferoFS {
	return &AferoFS{fs: fs}
}

// NewRealFS creates an FS backed by the operating system.
func NewRealFS() *AferoFS {
	return New(afero.NewOsFs())
}

// NewMemFS creates an FS backed by memory, for tests and dry runs.
func NewMemFS() *AferoFS {
	return New(afero.NewMemMapFs())
}

// Afero returns the underlying afero filesystem.
func (fs *AferoFS) Afero() afero.Fs {
	return fs.fs
}

// Stat returns file info.
func (fs *AferoFS) Stat(path string) (os.FileInfo, error) {
	return fs.fs.Stat(path)
}

// Open opens a file for reading.
func (fs *AferoFS) Open(path string) (afero.File, error) {
	return fs.fs.Open(path)
}

// ReadFile reads the entire contents of a file.
func (fs *AferoFS) ReadFile(path string) ([]byte, error) {
	return afero.ReadFile(fs.fs, path)
}

// ReadDir lists a directory sorted by name.
func (fs *AferoFS) ReadDir(path string) ([]os.FileInfo, error) {
	return afero.ReadDir(fs.fs, path)
}

// MkdirAll creates a directory and all parent directories.
func (fs *AferoFS) MkdirAll(path string, perm os.FileMode) error {
	return fs.fs.MkdirAll(path, perm)
}

// Remove removes a file or empty directory.
func (fs *AferoFS) Remove(path string) error {
	return fs.fs.Remove(path)
}

// Chtimes changes the access and modification times of a file.
func (fs *AferoFS) Chtimes(path string, atime, mtime time.Time) error {
	return fs.fs.Chtimes(path, atime, mtime)
}

// AtomicWrite writes data to path atomically using temp file + rename.
func (fs *AferoFS) AtomicWrite(path string, data []byte, perm os.FileMode) error {
	return fs.AtomicWriteStream(path, perm, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
}

// AtomicWriteStream streams content produced by fn into path atomically.
func (fs *AferoFS) AtomicWriteStream(path string, perm os.FileMode, fn func(w io.Writer) error) error {
	// Create parent directory if needed
	dir := filepath.Dir(path)
	if err := fs.fs.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create parent directory: %w", err)
	}

	// Create temp file in the same directory as target
	tmpFile, err := afero.TempFile(fs.fs, dir, ".modsync-tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	// Clean up temp file on error
	defer func() {
		if tmpFile != nil {
			_ = tmpFile.Close()
			_ = fs.fs.Remove(tmpPath)
		}
	}()

	if err := fn(tmpFile); err != nil {
		return fmt.Errorf("failed to write to temp file: %w", err)
	}

	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("failed to sync temp file: %w", err)
	}

	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := fs.fs.Chmod(tmpPath, perm); err != nil {
		return fmt.Errorf("failed to set permissions: %w", err)
	}

	if err := fs.fs.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	// Success - don't clean up temp file
	tmpFile = nil
	return nil
}

// Exists checks if a path exists.
func (fs *AferoFS) Exists(path string) (bool, error) {
	_, err := fs.fs.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// Walk walks the tree rooted at root in lexical order.
func (fs *AferoFS) Walk(root string, fn filepath.WalkFunc) error {
	return afero.Walk(fs.fs, root, fn)
}

// PruneEmptyParents removes empty directories starting at dir and moving
// upwards. stopAt itself is never removed.
func (fs *AferoFS) PruneEmptyParents(dir, stopAt string) error {
	dir = filepath.Clean(dir)
	stopAt = filepath.Clean(stopAt)

	for dir != stopAt && isWithin(stopAt, dir) {
		entries, err := afero.ReadDir(fs.fs, dir)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				dir = filepath.Dir(dir)
				continue
			}
			return fmt.Errorf("failed to read directory %s: %w", dir, err)
		}
		if len(entries) > 0 {
			return nil
		}
		if err := fs.fs.Remove(dir); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to remove empty directory %s: %w", dir, err)
		}
		dir = filepath.Dir(dir)
	}
	return nil
}

// isWithin reports whether path is strictly inside root.
func isWithin(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// ValidateRelPath validates a relative path for safety.
// Returns an error if the path is invalid or unsafe.
func (fs *AferoFS) ValidateRelPath(relPath string) error {
	return ValidateRelPath(relPath)
}

// ValidateIdentifier validates an identifier (e.g., installation ID) for safety.
func (fs *AferoFS) ValidateIdentifier(id string) error {
	return ValidateIdentifier(id)
}

// ValidateRelPath validates a slash- or OS-separated relative path.
func ValidateRelPath(relPath string) error {
	cleaned := filepath.Clean(filepath.FromSlash(relPath))

	// Reject empty or current directory
	if cleaned == "" || cleaned == "." {
		return fmt.Errorf("invalid path: empty or current directory")
	}

	// Reject absolute paths
	if filepath.IsAbs(cleaned) || strings.HasPrefix(relPath, "/") {
		return fmt.Errorf("invalid path: must be relative, got absolute path %q", relPath)
	}

	// Reject path traversal attempts
	if cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return fmt.Errorf("invalid path: path traversal not allowed in %q", relPath)
	}

	return nil
}

// ValidateIdentifier rejects identifiers that could escape a directory.
func ValidateIdentifier(id string) error {
	if id == "" {
		return fmt.Errorf("invalid identifier: empty")
	}

	if strings.ContainsAny(id, `/\`) || strings.Contains(id, string(filepath.Separator)) {
		return fmt.Errorf("invalid identifier: must not contain path separators")
	}

	if id == "." || id == ".." || strings.HasPrefix(id, "..") {
		return fmt.Errorf("invalid identifier: path traversal not allowed")
	}

	return nil
}
