package state

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/danieljhkim/modsync/internal/hash"
	"github.com/danieljhkim/modsync/internal/loadout"
)

// Entry describes one file on disk.
type Entry struct {
	Path         loadout.GamePath
	Hash         hash.Hash
	Size         int64
	LastModified time.Time
}

// SameContent reports whether e and other have the same hash and size.
// Entries with a zero hash or negative size never match.
func (e Entry) SameContent(other Entry) bool {
	if e.Hash.IsZero() || other.Hash.IsZero() || e.Size < 0 || other.Size < 0 {
		return false
	}
	return e.Hash == other.Hash && e.Size == other.Size
}

type entryJSON struct {
	Path         loadout.GamePath `json:"path"`
	Hash         hash.Hash        `json:"hash"`
	Size         int64            `json:"size"`
	LastModified int64            `json:"lastModified"`
}

// MarshalJSON stores LastModified as Unix nanoseconds so the entry
// round-trips exactly.
func (e Entry) MarshalJSON() ([]byte, error) {
	return json.Marshal(entryJSON{
		Path:         e.Path,
		Hash:         e.Hash,
		Size:         e.Size,
		LastModified: e.LastModified.UnixNano(),
	})
}

func (e *Entry) UnmarshalJSON(data []byte) error {
	var in entryJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*e = Entry{
		Path:         in.Path,
		Hash:         in.Hash,
		Size:         in.Size,
		LastModified: time.Unix(0, in.LastModified).UTC(),
	}
	return nil
}

// DiskState maps every indexed path to its entry.
type DiskState map[loadout.GamePath]Entry

// NewDiskState builds a DiskState from entries.
func NewDiskState(entries ...Entry) DiskState {
	d := make(DiskState, len(entries))
	for _, e := range entries {
		d[e.Path] = e
	}
	return d
}

// Paths returns every path in sorted order.
func (d DiskState) Paths() []loadout.GamePath {
	paths := make([]loadout.GamePath, 0, len(d))
	for p := range d {
		paths = append(paths, p)
	}
	sort.Slice(paths, func(i, j int) bool { return paths[i].Less(paths[j]) })
	return paths
}

// Entries returns every entry in sorted path order.
func (d DiskState) Entries() []Entry {
	out := make([]Entry, 0, len(d))
	for _, p := range d.Paths() {
		out = append(out, d[p])
	}
	return out
}

// TotalSize returns the sum of all entry sizes.
func (d DiskState) TotalSize() int64 {
	var n int64
	for _, e := range d {
		n += e.Size
	}
	return n
}

// ChangeKind classifies a difference between two disk states.
type ChangeKind string

const (
	ChangeAdded    ChangeKind = "added"
	ChangeModified ChangeKind = "modified"
	ChangeRemoved  ChangeKind = "removed"
)

// Change is one path that differs between two disk states.
type Change struct {
	Path loadout.GamePath
	Kind ChangeKind
}

// Diff lists the paths where d differs from base, in sorted order.
func (d DiskState) Diff(base DiskState) []Change {
	var changes []Change
	for _, p := range d.Paths() {
		prev, ok := base[p]
		switch {
		case !ok:
			changes = append(changes, Change{Path: p, Kind: ChangeAdded})
		case !d[p].SameContent(prev):
			changes = append(changes, Change{Path: p, Kind: ChangeModified})
		}
	}
	for _, p := range base.Paths() {
		if _, ok := d[p]; !ok {
			changes = append(changes, Change{Path: p, Kind: ChangeRemoved})
		}
	}
	sort.SliceStable(changes, func(i, j int) bool { return changes[i].Path.Less(changes[j].Path) })
	return changes
}

// Snapshot is the disk state of an installation after a transaction.
type Snapshot struct {
	// Installation is the configured installation name.
	Installation string

	// Loadout and Version identify what was applied or ingested.
	Loadout loadout.LoadoutID
	Version loadout.VersionID

	// TxID increases strictly with every transaction on the installation.
	TxID uint64

	TakenAt time.Time

	Entries DiskState
}

type snapshotJSON struct {
	Installation string            `json:"installation"`
	Loadout      loadout.LoadoutID `json:"loadout"`
	Version      loadout.VersionID `json:"version"`
	TxID         uint64            `json:"txId"`
	TakenAt      int64             `json:"takenAt"`
	Entries      []Entry           `json:"entries"`
}

// MarshalJSON writes entries as a list sorted by path.
func (s Snapshot) MarshalJSON() ([]byte, error) {
	return json.Marshal(snapshotJSON{
		Installation: s.Installation,
		Loadout:      s.Loadout,
		Version:      s.Version,
		TxID:         s.TxID,
		TakenAt:      s.TakenAt.UnixNano(),
		Entries:      s.Entries.Entries(),
	})
}

func (s *Snapshot) UnmarshalJSON(data []byte) error {
	var in snapshotJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*s = Snapshot{
		Installation: in.Installation,
		Loadout:      in.Loadout,
		Version:      in.Version,
		TxID:         in.TxID,
		TakenAt:      time.Unix(0, in.TakenAt).UTC(),
		Entries:      NewDiskState(in.Entries...),
	}
	return nil
}

// GeneratedRecord is the content a generated file produced for one
// fingerprint.
type GeneratedRecord struct {
	Hash hash.Hash `json:"hash"`
	Size int64     `json:"size"`
}
