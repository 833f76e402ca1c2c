package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/danieljhkim/modsync/internal/fingerprint"
	"github.com/danieljhkim/modsync/internal/fsops"
)

// ErrStaleTx is returned when saving a snapshot whose TxID does not exceed
// the latest one.
var ErrStaleTx = errors.New("snapshot transaction is not newer than the latest")

// StateStore persists disk-state snapshots and the generated-file cache.
type StateStore interface {
	// LoadLatest loads the newest snapshot of an installation.
	// Returns os.ErrNotExist if the installation has no snapshot.
	LoadLatest(installation string) (*Snapshot, error)

	// Load loads a specific transaction.
	// Returns os.ErrNotExist if it doesn't exist.
	Load(installation string, txID uint64) (*Snapshot, error)

	// Save writes a snapshot atomically. Its TxID must be greater than the
	// latest one.
	Save(snapshot *Snapshot) error

	// List returns the transaction IDs of an installation in ascending order.
	List(installation string) ([]uint64, error)

	// LoadGenerated loads the persisted generated-file cache entries.
	LoadGenerated(installation string) ([]fingerprint.Entry[GeneratedRecord], error)

	// SaveGenerated persists generated-file cache entries atomically.
	SaveGenerated(installation string, entries []fingerprint.Entry[GeneratedRecord]) error
}

// FileStateStore implements StateStore using JSON files on disk.
//
// Layout:
//
//	<dir>/<installation>/snapshots/<txid>.json
//	<dir>/<installation>/generated.json
type FileStateStore struct {
	fs  fsops.FS
	dir string
}

// NewFileStateStore creates a new FileStateStore.
func NewFileStateStore(fs fsops.FS, dir string) *FileStateStore {
	return &FileStateStore{fs: fs, dir: dir}
}

func (s *FileStateStore) snapshotsDir(installation string) string {
	return filepath.Join(s.dir, installation, "snapshots")
}

func (s *FileStateStore) snapshotPath(installation string, txID uint64) string {
	return filepath.Join(s.snapshotsDir(installation), fmt.Sprintf("%020d.json", txID))
}

// LoadLatest loads the newest snapshot of an installation.
func (s *FileStateStore) LoadLatest(installation string) (*Snapshot, error) {
	ids, err := s.List(installation)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, os.ErrNotExist
	}
	return s.Load(installation, ids[len(ids)-1])
}

// Load loads a specific transaction.
func (s *FileStateStore) Load(installation string, txID uint64) (*Snapshot, error) {
	if err := s.fs.ValidateIdentifier(installation); err != nil {
		return nil, fmt.Errorf("invalid installation: %w", err)
	}

	data, err := s.fs.ReadFile(s.snapshotPath(installation, txID))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, os.ErrNotExist
		}
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	return &snap, nil
}

// Save writes a snapshot atomically.
func (s *FileStateStore) Save(snapshot *Snapshot) error {
	if err := s.fs.ValidateIdentifier(snapshot.Installation); err != nil {
		return fmt.Errorf("invalid installation: %w", err)
	}

	ids, err := s.List(snapshot.Installation)
	if err != nil {
		return err
	}
	if len(ids) > 0 && snapshot.TxID <= ids[len(ids)-1] {
		return fmt.Errorf("%w: %d <= %d", ErrStaleTx, snapshot.TxID, ids[len(ids)-1])
	}

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	if err := s.fs.AtomicWrite(s.snapshotPath(snapshot.Installation, snapshot.TxID), data, 0644); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}

	return nil
}

// List returns the transaction IDs of an installation in ascending order.
func (s *FileStateStore) List(installation string) ([]uint64, error) {
	if err := s.fs.ValidateIdentifier(installation); err != nil {
		return nil, fmt.Errorf("invalid installation: %w", err)
	}

	entries, err := s.fs.ReadDir(s.snapshotsDir(installation))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []uint64{}, nil
		}
		return nil, fmt.Errorf("failed to read snapshots directory: %w", err)
	}

	ids := make([]uint64, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		id, err := strconv.ParseUint(strings.TrimSuffix(name, ".json"), 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// LoadGenerated loads the persisted generated-file cache entries. A missing
// file yields no entries.
func (s *FileStateStore) LoadGenerated(installation string) ([]fingerprint.Entry[GeneratedRecord], error) {
	if err := s.fs.ValidateIdentifier(installation); err != nil {
		return nil, fmt.Errorf("invalid installation: %w", err)
	}

	data, err := s.fs.ReadFile(filepath.Join(s.dir, installation, "generated.json"))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read generated cache: %w", err)
	}

	var entries []fingerprint.Entry[GeneratedRecord]
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to unmarshal generated cache: %w", err)
	}
	return entries, nil
}

// SaveGenerated persists generated-file cache entries atomically.
func (s *FileStateStore) SaveGenerated(installation string, entries []fingerprint.Entry[GeneratedRecord]) error {
	if err := s.fs.ValidateIdentifier(installation); err != nil {
		return fmt.Errorf("invalid installation: %w", err)
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal generated cache: %w", err)
	}

	if err := s.fs.AtomicWrite(filepath.Join(s.dir, installation, "generated.json"), data, 0644); err != nil {
		return fmt.Errorf("failed to write generated cache: %w", err)
	}
	return nil
}
