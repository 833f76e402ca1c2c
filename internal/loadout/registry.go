package loadout

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/danieljhkim/modsync/internal/clock"
	"github.com/danieljhkim/modsync/internal/fsops"
)

// Registry stores loadouts as an append-only arena of versions.
type Registry interface {
	// Create stores draft as the first version of a new loadout. A zero
	// draft.ID is assigned a fresh one.
	Create(draft *Loadout, message string) (*Loadout, error)

	// Get returns the current head of the loadout.
	// Returns ErrNotFound if the loadout doesn't exist.
	Get(id LoadoutID) (*Loadout, error)

	// GetVersion returns a specific version from the arena.
	GetVersion(version VersionID) (*Loadout, error)

	// Alter passes a copy of the head to fn and stores the result as the new
	// head. Calls for the same registry are serialized.
	Alter(id LoadoutID, message string, fn func(l *Loadout) (*Loadout, error)) (*Loadout, error)

	// History returns every version of the loadout, newest first.
	History(id LoadoutID) ([]*Loadout, error)

	// List returns the head of every loadout, ordered by name.
	List() ([]*Loadout, error)
}

// FileRegistry implements Registry using JSON files.
//
// Layout:
//
//	<dir>/versions/<version>.json   immutable loadout versions
//	<dir>/heads/<loadout>.json      pointer to the current version
type FileRegistry struct {
	fs    fsops.FS
	dir   string
	clock clock.Clock
	mu    sync.Mutex
}

type headFile struct {
	Version VersionID `json:"version"`
}

// NewFileRegistry creates a new FileRegistry rooted at dir.
func NewFileRegistry(fs fsops.FS, dir string, clk clock.Clock) *FileRegistry {
	return &FileRegistry{fs: fs, dir: dir, clock: clk}
}

func (r *FileRegistry) versionPath(v VersionID) string {
	return filepath.Join(r.dir, "versions", v.String()+".json")
}

func (r *FileRegistry) headPath(id LoadoutID) string {
	return filepath.Join(r.dir, "heads", id.String()+".json")
}

// Create stores draft as the first version of a new loadout.
func (r *FileRegistry) Create(draft *Loadout, message string) (*Loadout, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	l := draft.Clone()
	if l.ID.IsZero() {
		l.ID = NewLoadoutID()
	}
	if l.Mods == nil {
		l.Mods = make(map[ModID]Mod)
	}

	exists, err := r.fs.Exists(r.headPath(l.ID))
	if err != nil {
		return nil, fmt.Errorf("failed to check loadout: %w", err)
	}
	if exists {
		return nil, fmt.Errorf("%w: %s", ErrExists, l.ID)
	}

	l.Version = NewVersionID()
	l.PreviousVersion = VersionID{}
	l.Message = message
	l.LastModified = r.clock.Now()

	if err := r.commit(l); err != nil {
		return nil, err
	}
	return l.Clone(), nil
}

// Get returns the current head of the loadout.
func (r *FileRegistry) Get(id LoadoutID) (*Loadout, error) {
	head, err := r.readHead(id)
	if err != nil {
		return nil, err
	}
	return r.GetVersion(head)
}

// GetVersion returns a specific version.
func (r *FileRegistry) GetVersion(version VersionID) (*Loadout, error) {
	data, err := r.fs.ReadFile(r.versionPath(version))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: version %s", ErrNotFound, version)
		}
		return nil, fmt.Errorf("failed to read loadout version: %w", err)
	}

	var l Loadout
	if err := json.Unmarshal(data, &l); err != nil {
		return nil, fmt.Errorf("failed to unmarshal loadout version %s: %w", version, err)
	}
	if l.Mods == nil {
		l.Mods = make(map[ModID]Mod)
	}
	return &l, nil
}

// Alter applies fn to a copy of the head and stores the result.
func (r *FileRegistry) Alter(id LoadoutID, message string, fn func(l *Loadout) (*Loadout, error)) (*Loadout, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	head, err := r.Get(id)
	if err != nil {
		return nil, err
	}

	next, err := fn(head.Clone())
	if err != nil {
		return nil, err
	}
	if next == nil {
		return nil, fmt.Errorf("alter of loadout %s returned nil", id)
	}

	next = next.Clone()
	next.ID = head.ID
	next.Version = NewVersionID()
	next.PreviousVersion = head.Version
	next.Message = message
	next.LastModified = r.clock.Now()

	if err := r.commit(next); err != nil {
		return nil, err
	}
	return next.Clone(), nil
}

// History returns every version of the loadout, newest first.
func (r *FileRegistry) History(id LoadoutID) ([]*Loadout, error) {
	current, err := r.Get(id)
	if err != nil {
		return nil, err
	}

	history := []*Loadout{current}
	seen := map[VersionID]bool{current.Version: true}
	for !current.PreviousVersion.IsZero() {
		if seen[current.PreviousVersion] {
			return nil, fmt.Errorf("version chain of loadout %s loops at %s", id, current.PreviousVersion)
		}
		current, err = r.GetVersion(current.PreviousVersion)
		if err != nil {
			return nil, err
		}
		seen[current.Version] = true
		history = append(history, current)
	}
	return history, nil
}

// List returns the head of every loadout, ordered by name.
func (r *FileRegistry) List() ([]*Loadout, error) {
	entries, err := r.fs.ReadDir(filepath.Join(r.dir, "heads"))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []*Loadout{}, nil
		}
		return nil, fmt.Errorf("failed to read loadouts directory: %w", err)
	}

	var loadouts []*Loadout
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		id, err := ParseLoadoutID(strings.TrimSuffix(name, ".json"))
		if err != nil {
			continue
		}
		l, err := r.Get(id)
		if err != nil {
			return nil, err
		}
		loadouts = append(loadouts, l)
	}

	sort.Slice(loadouts, func(i, j int) bool {
		if loadouts[i].Name != loadouts[j].Name {
			return loadouts[i].Name < loadouts[j].Name
		}
		return loadouts[i].ID.String() < loadouts[j].ID.String()
	})
	return loadouts, nil
}

func (r *FileRegistry) readHead(id LoadoutID) (VersionID, error) {
	data, err := r.fs.ReadFile(r.headPath(id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return VersionID{}, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return VersionID{}, fmt.Errorf("failed to read loadout head: %w", err)
	}

	var head headFile
	if err := json.Unmarshal(data, &head); err != nil {
		return VersionID{}, fmt.Errorf("failed to unmarshal loadout head: %w", err)
	}
	return head.Version, nil
}

// commit writes the version first so a crash never leaves a head pointing at
// a missing version.
func (r *FileRegistry) commit(l *Loadout) error {
	data, err := json.MarshalIndent(l, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal loadout: %w", err)
	}
	if err := r.fs.AtomicWrite(r.versionPath(l.Version), data, 0644); err != nil {
		return fmt.Errorf("failed to write loadout version: %w", err)
	}

	head, err := json.MarshalIndent(headFile{Version: l.Version}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal loadout head: %w", err)
	}
	if err := r.fs.AtomicWrite(r.headPath(l.ID), head, 0644); err != nil {
		return fmt.Errorf("failed to write loadout head: %w", err)
	}
	return nil
}
