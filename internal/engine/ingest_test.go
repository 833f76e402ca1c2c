package engine

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/danieljhkim/modsync/internal/hash"
	"github.com/danieljhkim/modsync/internal/indexer"
	"github.com/danieljhkim/modsync/internal/loadout"
	"github.com/danieljhkim/modsync/internal/overlay"
	"github.com/danieljhkim/modsync/internal/planner"
)

// flattenedPaths returns the resolved paths of l.
func (h *harness) flattenedPaths(l *loadout.Loadout) map[loadout.GamePath]overlay.Entry {
	h.t.Helper()
	sorted, err := h.eng.sorter.Sort(h.ctx, l)
	if err != nil {
		h.t.Fatalf("Sort() error = %v", err)
	}
	return overlay.Flatten(sorted, overlay.GreaterIndexWins).Files
}

func TestIngest_DeletedFile(t *testing.T) {
	h := newHarness(t)
	h.manage(map[string]string{"Data/Skyrim.esm": "master", "Data/Old.esp": "old"})
	h.remove("/game/Data/Old.esp")

	result := h.ingest()
	removes := planner.StepsOf[planner.RemoveFromLoadout](result.Plan.Steps)
	if len(removes) != 1 || removes[0].Path != loadout.MustGamePath(loadout.LocationGame, "Data/Old.esp") {
		t.Fatalf("RemoveFromLoadout steps = %v, want Data/Old.esp", removes)
	}
	if result.Merged {
		t.Error("Merged = true without concurrent edits")
	}

	files := h.flattenedPaths(result.Loadout)
	if _, ok := files[loadout.MustGamePath(loadout.LocationGame, "Data/Old.esp")]; ok {
		t.Error("Data/Old.esp is still part of the loadout")
	}
	if _, ok := files[loadout.MustGamePath(loadout.LocationGame, "Data/Skyrim.esm")]; !ok {
		t.Error("Data/Skyrim.esm dropped from the loadout")
	}

	if result.Snapshot.Version != result.Loadout.Version {
		t.Error("snapshot does not record the ingested version")
	}
	if !h.plan().Plan.IsEmpty() {
		t.Error("plan after Ingest() is not empty")
	}
}

func TestIngest_NewSave(t *testing.T) {
	h := newHarness(t)
	h.manage(map[string]string{"Data/Skyrim.esm": "master"})
	h.write("/saves/Save1.ess", "save one")
	h.write("/game/Data/Patch.esp", "patch")

	result := h.ingest()
	creates := planner.StepsOf[planner.CreateInLoadout](result.Plan.Steps)
	if len(creates) != 2 {
		t.Fatalf("CreateInLoadout steps = %v, want 2", creates)
	}

	saves, ok := result.Loadout.FindModByName(planner.SavedGamesModName)
	if !ok {
		t.Fatalf("no %q mod after ingesting a save", planner.SavedGamesModName)
	}
	if saves.Category != loadout.CategorySavedGames || len(saves.Files) != 1 {
		t.Errorf("saved games mod = %+v", saves)
	}
	overrides, ok := result.Loadout.FindModByName(planner.OverridesModName)
	if !ok || len(overrides.Files) != 1 {
		t.Fatalf("overrides mod = %+v, found %v", overrides, ok)
	}

	for _, content := range []string{"save one", "patch"} {
		if !h.store.HaveFile(hash.FromString(content)) {
			t.Errorf("ingested content %q not archived", content)
		}
	}

	again := h.ingest()
	if !again.Plan.IsEmpty() {
		t.Errorf("second Ingest() planned %d steps, want 0", len(again.Plan.Steps))
	}
	if !h.plan().Plan.IsEmpty() {
		t.Error("plan after Ingest() is not empty")
	}
}

func TestIngest_ChangedFile(t *testing.T) {
	h := newHarness(t)
	h.manage(map[string]string{"Skyrim.ini": "ini"})
	h.write("/game/Skyrim.ini", "ini with tweaks")

	result := h.ingest()
	replaces := planner.StepsOf[planner.ReplaceInLoadout](result.Plan.Steps)
	if len(replaces) != 1 {
		t.Fatalf("ReplaceInLoadout steps = %v, want 1", replaces)
	}

	game, _ := result.Loadout.FindModByName(GameFilesModName)
	f, ok := game.Files[replaces[0].File].(loadout.FromArchive)
	if !ok {
		t.Fatalf("replaced file is %T, want loadout.FromArchive", game.Files[replaces[0].File])
	}
	if f.Hash != hash.FromString("ini with tweaks") {
		t.Error("replaced file does not carry the new content")
	}
}

func TestIngest_DryRun(t *testing.T) {
	h := newHarness(t)
	before := h.manage(map[string]string{"a.txt": "a"}).Loadout
	h.write("/game/b.txt", "b")

	result, err := h.eng.Ingest(h.ctx, &IngestRequest{Installation: testInstallation, DryRun: true})
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if result.Plan.IsEmpty() || result.Loadout != nil {
		t.Fatalf("DryRun result = %+v", result)
	}
	head, err := h.registry.Get(before.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if head.Version != before.Version {
		t.Error("DryRun committed a new version")
	}
}

func TestIngest_MergesConcurrentEdit(t *testing.T) {
	h := newHarness(t)
	applied := h.manage(map[string]string{"Data/Skyrim.esm": "master"}).Loadout

	skin := h.newMod("Skin", map[string]string{"Data/skin.dds": "skin"})
	h.addMods(skin)
	h.write("/game/Data/Patch.esp", "patch")

	result := h.ingest()
	if !result.Merged {
		t.Fatal("Merged = false after the head moved")
	}
	if _, ok := result.Loadout.Mods[skin.ID]; !ok {
		t.Error("merge dropped the concurrently added mod")
	}
	if _, ok := result.Loadout.FindModByName(planner.OverridesModName); !ok {
		t.Error("merge dropped the ingested override")
	}
	if result.Snapshot.Version != applied.Version {
		t.Error("merged ingest moved the snapshot off the applied version")
	}

	// The merged version still has to be applied to bring Skin to disk.
	h.apply(nil)
	if got := h.read("/game/Data/skin.dds"); got != "skin" {
		t.Errorf("skin.dds = %q, want %q", got, "skin")
	}
	if got := h.read("/game/Data/Patch.esp"); got != "patch" {
		t.Errorf("Patch.esp = %q, want %q", got, "patch")
	}
}

func TestIngest_MergeKeepsUntouchedMods(t *testing.T) {
	h := newHarness(t)
	h.manage(map[string]string{"Data/Skyrim.esm": "master"})
	skin := h.newMod("Skin", map[string]string{"Data/skin.dds": "skin"})
	h.addMods(skin)
	h.apply(nil)

	h.alter("disable skin", func(l *loadout.Loadout) *loadout.Loadout {
		m := l.Mods[skin.ID]
		m.Enabled = false
		return loadout.WithMod(l, m)
	})
	h.write("/game/Data/Patch.esp", "patch")

	result := h.ingest()
	if !result.Merged {
		t.Fatal("Merged = false after the head moved")
	}
	if m, ok := result.Loadout.Mods[skin.ID]; !ok || m.Enabled {
		t.Errorf("Skin = %+v, want it kept disabled", m)
	}
	overrides, ok := result.Loadout.FindModByName(planner.OverridesModName)
	if !ok || len(overrides.Files) != 1 {
		t.Fatalf("overrides mod = %+v, found %v", overrides, ok)
	}
}

func TestIngest_DeletedOverlappingFile(t *testing.T) {
	h := newHarness(t)
	h.manage(map[string]string{"Data/Skyrim.esm": "master", "Data/sky.dds": "vanilla"})
	h.addMods(h.newMod("Skin", map[string]string{"Data/sky.dds": "retextured sky"}))
	h.apply(nil)
	if got := h.read("/game/Data/sky.dds"); got != "retextured sky" {
		t.Fatalf("sky.dds = %q, want the Skin copy", got)
	}

	h.remove("/game/Data/sky.dds")
	result := h.ingest()

	sky := loadout.MustGamePath(loadout.LocationGame, "Data/sky.dds")
	removes := planner.StepsOf[planner.RemoveFromLoadout](result.Plan.Steps)
	if len(removes) != 2 {
		t.Fatalf("RemoveFromLoadout steps = %v, want one per providing mod", removes)
	}
	for _, r := range removes {
		if r.Path != sky {
			t.Errorf("removed %s, want %s", r.Path, sky)
		}
	}

	if _, ok := h.flattenedPaths(result.Loadout)[sky]; ok {
		t.Error("Data/sky.dds resurfaced from a shadowed mod")
	}
	if !h.plan().Plan.IsEmpty() {
		t.Error("plan after Ingest() is not empty")
	}
	if h.exists("/game/Data/sky.dds") {
		t.Error("Data/sky.dds came back on disk")
	}
}

func TestIngest_SkipsUnreadable(t *testing.T) {
	h := newHarness(t)
	h.manage(map[string]string{"a.txt": "a"})
	h.write("/game/a.txt", "rewritten")
	h.write("/game/b.txt", "b")

	fake := hash.NewFakeHasher()
	fake.SetError("/game/a.txt", errors.New("locked by game"))
	fake.Set("/game/b.txt", hash.FromString("b"), 1)
	h.eng.indexer = indexer.New(h.fs, fake, 1, zerolog.Nop(), nil)

	result := h.ingest()
	if len(result.Skipped) != 1 || result.Skipped[0] != loadout.MustGamePath(loadout.LocationGame, "a.txt") {
		t.Fatalf("Skipped = %v, want [a.txt]", result.Skipped)
	}
	if got := len(planner.StepsOf[planner.RemoveFromLoadout](result.Plan.Steps)); got != 0 {
		t.Errorf("unreadable file was removed from the loadout")
	}
	if got := len(planner.StepsOf[planner.CreateInLoadout](result.Plan.Steps)); got != 1 {
		t.Errorf("CreateInLoadout steps = %d, want 1", got)
	}
}

func TestApplyIngest(t *testing.T) {
	l := &loadout.Loadout{ID: loadout.NewLoadoutID(), Mods: map[loadout.ModID]loadout.Mod{}}
	game := loadout.NewMod(GameFilesModName, loadout.CategoryGameFiles)
	keep := loadout.FromArchive{ID: loadout.NewFileID(), To: loadout.MustGamePath(loadout.LocationGame, "keep.txt"), Hash: hash.FromString("keep"), Size: 4}
	gone := loadout.FromArchive{ID: loadout.NewFileID(), To: loadout.MustGamePath(loadout.LocationGame, "gone.txt"), Hash: hash.FromString("gone"), Size: 4}
	game.Files[keep.ID] = keep
	game.Files[gone.ID] = gone
	l.Mods[game.ID] = game

	target := planner.OverridesSelector(l.ID)(loadout.MustGamePath(loadout.LocationGame, "new.txt"))
	steps := []planner.Step{
		planner.RemoveFromLoadout{Path: gone.To, Mod: game.ID, File: gone.ID},
		planner.BackupFile{Path: keep.To, Hash: hash.FromString("kept"), Size: 4},
		planner.ReplaceInLoadout{Path: keep.To, Hash: hash.FromString("kept"), Size: 4, Mod: game.ID, File: keep.ID},
		planner.CreateInLoadout{Path: loadout.MustGamePath(loadout.LocationGame, "new.txt"), Hash: hash.FromString("new"), Size: 3, File: loadout.NewFileID(), Owner: target},
	}

	out, err := ApplyIngest(l, steps)
	if err != nil {
		t.Fatalf("ApplyIngest() error = %v", err)
	}
	if len(l.Mods) != 1 || len(l.Mods[game.ID].Files) != 2 {
		t.Fatal("ApplyIngest() modified its input")
	}

	g := out.Mods[game.ID]
	if _, ok := g.Files[gone.ID]; ok {
		t.Error("removed file still present")
	}
	if f := g.Files[keep.ID].(loadout.FromArchive); f.Hash != hash.FromString("kept") {
		t.Error("replaced file keeps the old hash")
	}

	overrides, ok := out.Mods[target.Mod]
	if !ok {
		t.Fatal("override mod was not created")
	}
	if overrides.Name != planner.OverridesModName || len(overrides.Files) != 1 {
		t.Errorf("override mod = %+v", overrides)
	}
	if len(overrides.SortRules) != 1 {
		t.Errorf("override mod rules = %v, want one generated rule", overrides.SortRules)
	}
}

func TestApplyIngest_MissingMod(t *testing.T) {
	l := &loadout.Loadout{ID: loadout.NewLoadoutID(), Mods: map[loadout.ModID]loadout.Mod{}}
	steps := []planner.Step{
		planner.ReplaceInLoadout{Path: loadout.MustGamePath(loadout.LocationGame, "a"), Mod: loadout.NewModID(), File: loadout.NewFileID()},
	}
	if _, err := ApplyIngest(l, steps); !errors.Is(err, loadout.ErrModNotFound) {
		t.Fatalf("ApplyIngest() error = %v, want loadout.ErrModNotFound", err)
	}
}
