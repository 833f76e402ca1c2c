package state

import (
	"encoding/json"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/danieljhkim/modsync/internal/fingerprint"
	"github.com/danieljhkim/modsync/internal/fsops"
	"github.com/danieljhkim/modsync/internal/hash"
	"github.com/danieljhkim/modsync/internal/loadout"
)

func entry(p string, content string, mtime int64) Entry {
	return Entry{
		Path:         loadout.MustGamePath(loadout.LocationGame, p),
		Hash:         hash.FromString(content),
		Size:         int64(len(content)),
		LastModified: time.Unix(0, mtime).UTC(),
	}
}

func TestEntry_SameContent(t *testing.T) {
	a := entry("a.txt", "hello", 1)

	tests := []struct {
		name  string
		other Entry
		want  bool
	}{
		{name: "identical", other: a, want: true},
		{name: "different mtime only", other: entry("a.txt", "hello", 99), want: true},
		{name: "different content", other: entry("a.txt", "world", 1), want: false},
		{name: "zero hash is never equal", other: Entry{Path: a.Path, Size: a.Size}, want: false},
		{name: "negative size is never equal", other: Entry{Path: a.Path, Hash: a.Hash, Size: -1}, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, a.SameContent(tt.other))
		})
	}
}

func TestSnapshot_JSONRoundTripIsExact(t *testing.T) {
	snap := &Snapshot{
		Installation: "skyrim",
		Loadout:      loadout.NewLoadoutID(),
		Version:      loadout.NewVersionID(),
		TxID:         7,
		TakenAt:      time.Unix(1700000000, 123456789).UTC(),
		Entries: NewDiskState(
			entry("textures/a.dds", "a", 1700000000123456789),
			entry("meshes/b.nif", "b", 1600000000000000001),
		),
	}

	data, err := json.Marshal(snap)
	require.NoError(t, err)

	var decoded Snapshot
	require.NoError(t, json.Unmarshal(data, &decoded))
	if diff := cmp.Diff(*snap, decoded); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}

	again, err := json.Marshal(decoded)
	require.NoError(t, err)
	require.Equal(t, string(data), string(again), "encoding must be byte-stable")
}

func TestDiskState_Diff(t *testing.T) {
	base := NewDiskState(entry("keep.txt", "k", 1), entry("edit.txt", "old", 1), entry("gone.txt", "g", 1))
	now := NewDiskState(entry("keep.txt", "k", 5), entry("edit.txt", "new", 1), entry("new.txt", "n", 1))

	got := now.Diff(base)
	want := []Change{
		{Path: loadout.MustGamePath(loadout.LocationGame, "edit.txt"), Kind: ChangeModified},
		{Path: loadout.MustGamePath(loadout.LocationGame, "gone.txt"), Kind: ChangeRemoved},
		{Path: loadout.MustGamePath(loadout.LocationGame, "new.txt"), Kind: ChangeAdded},
	}
	require.Equal(t, want, got)
	require.Empty(t, base.Diff(base))
}

func TestFileStateStore(t *testing.T) {
	store := NewFileStateStore(fsops.NewMemFS(), "/state/snapshots")

	_, err := store.LoadLatest("skyrim")
	require.True(t, errors.Is(err, os.ErrNotExist))

	for _, tx := range []uint64{0, 1, 10} {
		require.NoError(t, store.Save(&Snapshot{
			Installation: "skyrim",
			TxID:         tx,
			Entries:      NewDiskState(entry("a.txt", "a", int64(tx))),
		}))
	}

	ids, err := store.List("skyrim")
	require.NoError(t, err)
	require.Equal(t, []uint64{0, 1, 10}, ids)

	latest, err := store.LoadLatest("skyrim")
	require.NoError(t, err)
	require.Equal(t, uint64(10), latest.TxID)

	err = store.Save(&Snapshot{Installation: "skyrim", TxID: 10})
	require.ErrorIs(t, err, ErrStaleTx)

	_, err = store.Load("skyrim", 5)
	require.True(t, errors.Is(err, os.ErrNotExist))

	require.Error(t, store.Save(&Snapshot{Installation: "../escape", TxID: 1}))
}

func TestFileStateStore_Generated(t *testing.T) {
	store := NewFileStateStore(fsops.NewMemFS(), "/state/snapshots")

	entries, err := store.LoadGenerated("skyrim")
	require.NoError(t, err)
	require.Empty(t, entries)

	want := []fingerprint.Entry[GeneratedRecord]{
		{Key: hash.Hash(1), Value: GeneratedRecord{Hash: hash.FromString("x"), Size: 1}},
	}
	require.NoError(t, store.SaveGenerated("skyrim", want))

	got, err := store.LoadGenerated("skyrim")
	require.NoError(t, err)
	require.Equal(t, want, got)
}
