package loadout

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/danieljhkim/modsync/internal/clock"
	"github.com/danieljhkim/modsync/internal/fsops"
	"github.com/danieljhkim/modsync/internal/hash"
)

func TestGamePath(t *testing.T) {
	tests := []struct {
		name    string
		loc     LocationID
		path    string
		want    string
		wantErr bool
	}{
		{name: "simple", loc: LocationGame, path: "textures/a.dds", want: "{Game}/textures/a.dds"},
		{name: "backslashes normalized", loc: LocationSaves, path: `slot1\save.dat`, want: "{Saves}/slot1/save.dat"},
		{name: "redundant segments cleaned", loc: LocationGame, path: "a/./b//c.txt", want: "{Game}/a/b/c.txt"},
		{name: "unknown location", loc: LocationID("Nowhere"), path: "a.txt", wantErr: true},
		{name: "traversal", loc: LocationGame, path: "../escape.txt", wantErr: true},
		{name: "absolute", loc: LocationGame, path: "/etc/passwd", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gp, err := NewGamePath(tt.loc, tt.path)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, gp.String())

			parsed, err := ParseGamePath(gp.String())
			require.NoError(t, err)
			require.Equal(t, gp, parsed)
		})
	}
}

func TestGamePath_Parent(t *testing.T) {
	gp := MustGamePath(LocationGame, "a/b/c.txt")

	parent, ok := gp.Parent()
	require.True(t, ok)
	require.Equal(t, "{Game}/a/b", parent.String())

	_, ok = MustGamePath(LocationGame, "root.txt").Parent()
	require.False(t, ok)
}

func TestDerivedModID_Stable(t *testing.T) {
	id := NewLoadoutID()
	require.Equal(t, DerivedModID(id, "Overrides"), DerivedModID(id, "Overrides"))
	require.NotEqual(t, DerivedModID(id, "Overrides"), DerivedModID(id, "Saved Games"))
	require.NotEqual(t, DerivedModID(id, "Overrides"), DerivedModID(NewLoadoutID(), "Overrides"))
}

func sampleMod() Mod {
	other := NewModID()
	mod := NewMod("Texture Pack", CategoryMod)
	archived := FromArchive{
		ID:   NewFileID(),
		To:   MustGamePath(LocationGame, "textures/a.dds"),
		Hash: hash.FromString("a"),
		Size: 42,
	}
	generated := GeneratedFile{
		ID:        NewFileID(),
		To:        MustGamePath(LocationPreferences, "plugins.txt"),
		Generator: "load-order",
	}
	untargeted := FromArchive{ID: NewFileID(), Hash: hash.FromString("readme"), Size: 3}
	mod.Files[archived.ID] = archived
	mod.Files[generated.ID] = generated
	mod.Files[untargeted.ID] = untargeted
	mod.SortRules = []SortRule{Before{Other: other}, After{Other: other}, First{}, Generated{Generator: "alphabetical"}}
	return mod
}

func TestMod_JSONRoundTrip(t *testing.T) {
	mod := sampleMod()

	data, err := json.Marshal(mod)
	require.NoError(t, err)

	var decoded Mod
	require.NoError(t, json.Unmarshal(data, &decoded))

	if diff := cmp.Diff(mod, decoded); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}

	again, err := json.Marshal(decoded)
	require.NoError(t, err)
	require.JSONEq(t, string(data), string(again))
}

func TestMod_UnmarshalUnknownKind(t *testing.T) {
	var m Mod
	err := json.Unmarshal([]byte(`{"id":"`+NewModID().String()+`","files":[{"kind":"symlink"}]}`), &m)
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrUnknownVariant))
}

func TestTransforms(t *testing.T) {
	mod := sampleMod()
	l := &Loadout{ID: NewLoadoutID(), Mods: map[ModID]Mod{mod.ID: mod}}

	t.Run("WithoutFiles drops only the referenced file", func(t *testing.T) {
		victim := mod.SortedFiles()[0]
		out := WithoutFiles(l, FileRef{Mod: mod.ID, File: victim.FileID()})

		require.Len(t, out.Mods[mod.ID].Files, len(mod.Files)-1)
		require.Len(t, l.Mods[mod.ID].Files, len(mod.Files), "input must not be mutated")
	})

	t.Run("MapMods drops disabled mods", func(t *testing.T) {
		disabled := NewMod("Off", CategoryMod)
		disabled.Enabled = false
		in := WithMod(l, disabled)

		out := MapMods(in, func(m Mod) (Mod, bool) { return m, m.Enabled })
		require.Len(t, out.Mods, 1)
		require.Len(t, in.Mods, 2)
	})

	t.Run("WithFile replaces by id", func(t *testing.T) {
		var target FromArchive
		for _, f := range mod.Files {
			if fa, ok := f.(FromArchive); ok && !fa.To.IsZero() {
				target = fa
			}
		}
		target.Hash = hash.FromString("b")

		out, err := WithFile(l, mod.ID, target)
		require.NoError(t, err)
		require.Equal(t, target, out.Mods[mod.ID].Files[target.ID])
		require.NotEqual(t, target, l.Mods[mod.ID].Files[target.ID])

		_, err = WithFile(l, NewModID(), target)
		require.ErrorIs(t, err, ErrModNotFound)
	})
}

func TestFileRegistry(t *testing.T) {
	fs := fsops.NewMemFS()
	clk := clock.NewManual(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	reg := NewFileRegistry(fs, "/state/loadouts", clk)

	mod := sampleMod()
	created, err := reg.Create(&Loadout{Name: "Main", Installation: "skyrim", Mods: map[ModID]Mod{mod.ID: mod}}, "manage")
	require.NoError(t, err)
	require.False(t, created.ID.IsZero())
	require.True(t, created.PreviousVersion.IsZero())
	require.Equal(t, clk.Now(), created.LastModified)

	clk.Advance(time.Minute)
	altered, err := reg.Alter(created.ID, "disable texture pack", func(l *Loadout) (*Loadout, error) {
		m := l.Mods[mod.ID]
		m.Enabled = false
		l.Mods[mod.ID] = m
		return l, nil
	})
	require.NoError(t, err)
	require.Equal(t, created.Version, altered.PreviousVersion)
	require.NotEqual(t, created.Version, altered.Version)
	require.False(t, altered.Mods[mod.ID].Enabled)

	head, err := reg.Get(created.ID)
	require.NoError(t, err)
	if diff := cmp.Diff(altered, head); diff != "" {
		t.Errorf("head mismatch (-want +got):\n%s", diff)
	}

	original, err := reg.GetVersion(created.Version)
	require.NoError(t, err)
	require.True(t, original.Mods[mod.ID].Enabled, "old versions are immutable")

	history, err := reg.History(created.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Equal(t, altered.Version, history[0].Version)
	require.Equal(t, created.Version, history[1].Version)

	list, err := reg.List()
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, altered.Version, list[0].Version)
}

func TestFileRegistry_Errors(t *testing.T) {
	reg := NewFileRegistry(fsops.NewMemFS(), "/state/loadouts", clock.NewManual(time.Unix(0, 0)))

	_, err := reg.Get(NewLoadoutID())
	require.ErrorIs(t, err, ErrNotFound)

	created, err := reg.Create(&Loadout{Name: "Main"}, "manage")
	require.NoError(t, err)

	_, err = reg.Create(&Loadout{ID: created.ID, Name: "Dup"}, "manage")
	require.ErrorIs(t, err, ErrExists)

	boom := errors.New("boom")
	_, err = reg.Alter(created.ID, "fail", func(l *Loadout) (*Loadout, error) { return nil, boom })
	require.ErrorIs(t, err, boom)

	head, err := reg.Get(created.ID)
	require.NoError(t, err)
	require.Equal(t, created.Version, head.Version, "failed alter must not move the head")
}
