package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/danieljhkim/modsync/internal/generators"
	"github.com/danieljhkim/modsync/internal/hash"
	"github.com/danieljhkim/modsync/internal/indexer"
	"github.com/danieljhkim/modsync/internal/loadout"
	"github.com/danieljhkim/modsync/internal/planner"
)

func TestApply_Idempotent(t *testing.T) {
	h := newHarness(t)
	h.manage(map[string]string{
		"Data/Skyrim.esm":       "master",
		"Data/textures/sky.dds": "vanilla sky",
	})
	h.addMods(h.newMod("Sky Overhaul", map[string]string{
		"Data/textures/sky.dds": "overhauled sky",
		"Data/Sky.esp":          "plugin",
	}))

	result := h.apply(nil)
	if len(result.Executed) == 0 {
		t.Fatal("Apply() executed no steps")
	}
	if result.Snapshot == nil || result.Snapshot.TxID != 1 {
		t.Fatalf("Snapshot = %+v, want TxID 1", result.Snapshot)
	}
	if got := h.read("/game/Data/textures/sky.dds"); got != "overhauled sky" {
		t.Errorf("sky.dds = %q, want %q", got, "overhauled sky")
	}
	if got := h.read("/game/Data/Sky.esp"); got != "plugin" {
		t.Errorf("Sky.esp = %q, want %q", got, "plugin")
	}

	if plan := h.plan().Plan; !plan.IsEmpty() {
		var steps []string
		for _, s := range plan.Steps {
			steps = append(steps, planner.Describe(s))
		}
		t.Fatalf("re-plan after Apply() is not empty:\n%s", strings.Join(steps, "\n"))
	}

	again := h.apply(nil)
	if len(again.Executed) != 0 {
		t.Errorf("second Apply() executed %d steps, want 0", len(again.Executed))
	}
}

func TestApply_DryRun(t *testing.T) {
	h := newHarness(t)
	h.manage(map[string]string{"a.txt": "a"})
	h.addMods(h.newMod("Extra", map[string]string{"b.txt": "b"}))

	result := h.apply(&ApplyRequest{DryRun: true})
	if result.Plan.IsEmpty() {
		t.Fatal("DryRun plan is empty")
	}
	if len(result.Executed) != 0 || result.Snapshot != nil {
		t.Error("DryRun executed steps or recorded a snapshot")
	}
	if h.exists("/game/b.txt") {
		t.Error("DryRun wrote to the game folder")
	}
}

func TestApply_RemovesFilesAndPrunesDirs(t *testing.T) {
	h := newHarness(t)
	h.manage(map[string]string{"Data/Skyrim.esm": "master"})
	mod := h.newMod("Trees", map[string]string{
		"Data/meshes/trees/oak.nif":  "oak",
		"Data/meshes/trees/pine.nif": "pine",
	})
	h.addMods(mod)
	h.apply(nil)

	if !h.exists("/game/Data/meshes/trees/oak.nif") {
		t.Fatal("oak.nif missing after Apply()")
	}

	h.alter("remove trees", func(l *loadout.Loadout) *loadout.Loadout {
		return loadout.MapMods(l, func(m loadout.Mod) (loadout.Mod, bool) {
			return m, m.ID != mod.ID
		})
	})
	result := h.apply(nil)

	if got := len(planner.StepsOf[planner.DeleteFile](result.Executed)); got != 2 {
		t.Errorf("executed %d deletes, want 2", got)
	}
	if h.exists("/game/Data/meshes") {
		t.Error("empty directory Data/meshes was not pruned")
	}
	if !h.exists("/game/Data/Skyrim.esm") {
		t.Error("Data/Skyrim.esm was removed")
	}
	if !h.exists("/game") {
		t.Error("location root was removed")
	}
}

func TestApply_Drift(t *testing.T) {
	h := newHarness(t)
	h.manage(map[string]string{"Data/Skyrim.esm": "master", "Skyrim.ini": "ini"})
	h.write("/game/Skyrim.ini", "ini edited by hand")

	_, err := h.eng.Apply(h.ctx, &ApplyRequest{Installation: testInstallation})
	if !errors.Is(err, ErrDrift) {
		t.Fatalf("Apply() error = %v, want ErrDrift", err)
	}
	if got := h.read("/game/Skyrim.ini"); got != "ini edited by hand" {
		t.Fatalf("Apply() touched the disk despite drift: %q", got)
	}

	result := h.apply(&ApplyRequest{Force: true})
	if len(result.Plan.Conflicts) != 1 {
		t.Errorf("Conflicts = %v, want 1", result.Plan.Conflicts)
	}
	if got := h.read("/game/Skyrim.ini"); got != "ini" {
		t.Errorf("Skyrim.ini = %q, want %q", got, "ini")
	}
	if !h.store.HaveFile(hash.FromString("ini edited by hand")) {
		t.Error("forced Apply() destroyed content without backing it up")
	}
}

func TestApply_Unreadable(t *testing.T) {
	h := newHarness(t)
	h.manage(map[string]string{"a.txt": "a"})

	h.write("/game/a.txt", "rewritten")
	fake := hash.NewFakeHasher()
	fake.SetError("/game/a.txt", errors.New("permission denied"))
	h.eng.indexer = indexer.New(h.fs, fake, 1, zerolog.Nop(), nil)

	_, err := h.eng.Apply(h.ctx, &ApplyRequest{Installation: testInstallation})
	if !errors.Is(err, ErrUnreadable) {
		t.Fatalf("Apply() error = %v, want ErrUnreadable", err)
	}
}

func TestApply_Version(t *testing.T) {
	h := newHarness(t)
	base := h.manage(map[string]string{"a.txt": "a"}).Loadout
	h.addMods(h.newMod("Extra", map[string]string{"b.txt": "b"}))
	h.apply(nil)

	h.apply(&ApplyRequest{Version: base.Version})
	if h.exists("/game/b.txt") {
		t.Error("b.txt still on disk after applying the first version")
	}

	_, err := h.eng.Apply(h.ctx, &ApplyRequest{Installation: testInstallation, Version: loadout.NewVersionID()})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Apply() error = %v, want ErrNotFound", err)
	}
}

func TestApply_GeneratedFileReuse(t *testing.T) {
	h := newHarness(t)
	base := h.manage(map[string]string{"Data/Skyrim.esm": "master"}).Loadout

	order := loadout.NewMod("Load Order", loadout.CategoryMod)
	id := loadout.NewFileID()
	order.Files[id] = loadout.GeneratedFile{
		ID:        id,
		To:        loadout.MustGamePath(loadout.LocationGame, "plugins.txt"),
		Generator: generators.LoadOrderName,
	}
	withOrder := h.addMods(order)

	first := h.apply(nil)
	if got := len(planner.StepsOf[planner.GenerateFile](first.Executed)); got != 1 {
		t.Fatalf("first Apply() generated %d files, want 1", got)
	}
	content := h.read("/game/plugins.txt")
	if !strings.Contains(content, "*Game Files\n") || !strings.Contains(content, "*Load Order\n") {
		t.Errorf("plugins.txt = %q, want both mods listed", content)
	}

	if plan := h.plan().Plan; !plan.IsEmpty() {
		t.Fatalf("re-plan after generating is not empty: %d steps", len(plan.Steps))
	}

	h.apply(&ApplyRequest{Version: base.Version})
	if h.exists("/game/plugins.txt") {
		t.Fatal("plugins.txt not removed")
	}

	again := h.apply(&ApplyRequest{Version: withOrder.Version})
	if got := len(planner.StepsOf[planner.GenerateFile](again.Executed)); got != 0 {
		t.Errorf("unchanged generator ran %d times, want 0", got)
	}
	if got := len(planner.StepsOf[planner.ExtractFile](again.Executed)); got != 1 {
		t.Errorf("executed %d extracts, want 1", got)
	}
	if got := h.read("/game/plugins.txt"); got != content {
		t.Errorf("replayed plugins.txt = %q, want %q", got, content)
	}
}

func TestApply_TenMods(t *testing.T) {
	h := newHarness(t)
	h.manage(map[string]string{"shared.txt": "vanilla"})

	// Names run against the declared order so only the After rules decide it.
	var mods []loadout.Mod
	for i := 0; i < 10; i++ {
		var rules []loadout.SortRule
		if i > 0 {
			rules = append(rules, loadout.After{Other: mods[i-1].ID})
		}
		name := fmt.Sprintf("mod-%c", 'z'-i)
		mods = append(mods, h.newMod(name, map[string]string{
			"shared.txt":                      fmt.Sprintf("content of mod %d", i),
			fmt.Sprintf("unique-%02d.txt", i): name,
		}, rules...))
	}
	h.addMods(mods...)

	result := h.apply(nil)
	if len(result.Plan.Sorted) != 11 {
		t.Fatalf("sorted %d mods, want 11", len(result.Plan.Sorted))
	}
	if result.Plan.Sorted[0].Name != GameFilesModName {
		t.Errorf("Sorted[0] = %s, want %s", result.Plan.Sorted[0].Name, GameFilesModName)
	}
	for i, m := range mods {
		if result.Plan.Sorted[i+1].ID != m.ID {
			t.Errorf("Sorted[%d] = %s, want %s", i+1, result.Plan.Sorted[i+1].Name, m.Name)
		}
	}

	if got := h.read("/game/shared.txt"); got != "content of mod 9" {
		t.Errorf("shared.txt = %q, want the last mod's content", got)
	}
	for i := 0; i < 10; i++ {
		if !h.exists(fmt.Sprintf("/game/unique-%02d.txt", i)) {
			t.Errorf("unique-%02d.txt missing", i)
		}
	}
	if !h.plan().Plan.IsEmpty() {
		t.Error("re-plan after Apply() is not empty")
	}
}

func TestApply_Cancelled(t *testing.T) {
	h := newHarness(t)
	h.manage(map[string]string{"a.txt": "a"})
	h.addMods(h.newMod("Extra", map[string]string{"b.txt": "b"}))

	ctx, cancel := context.WithCancel(h.ctx)
	cancel()
	_, err := h.eng.Apply(ctx, &ApplyRequest{Installation: testInstallation})
	if err == nil {
		t.Fatal("Apply() with a cancelled context succeeded")
	}
	if h.exists("/game/b.txt") {
		t.Error("cancelled Apply() wrote to the game folder")
	}

	snap, err := h.states.LoadLatest(testInstallation)
	if err != nil {
		t.Fatalf("LoadLatest() error = %v", err)
	}
	if snap.TxID != 0 {
		t.Errorf("cancelled Apply() recorded snapshot %d", snap.TxID)
	}
}
