package integration

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danieljhkim/modsync/internal/archive"
	"github.com/danieljhkim/modsync/internal/engine"
	"github.com/danieljhkim/modsync/internal/hash"
	"github.com/danieljhkim/modsync/internal/planner"
)

const skyManifest = `
[[mod]]
name = "Sky Overhaul"
source = "sky"

[[mod]]
name = "Sky Patch"
source = "patch"
sort = ["after:Sky Overhaul"]

[[mod]]
name = "Load Order"
sort = ["generated:after-all"]

  [[mod.generated]]
  to = "{Game}/plugins.txt"
  generator = "load-order"
`

var skySources = map[string]string{
	"sky/Data/Sky.esp":            "sky plugin",
	"sky/Data/textures/sky.dds":   "overhauled sky",
	"patch/Data/textures/sky.dds": "patched sky",
	"patch/Data/SkyPatch.esp":     "patch plugin",
}

func TestFullCycle(t *testing.T) {
	e := setupTestEngine(t)
	e.write("/games/skyrim/Data/Skyrim.esm", "master")
	e.write("/games/skyrim/Data/textures/sky.dds", "vanilla sky")
	e.write("/home/player/saves/Save1.ess", "first save")

	base := e.manage().Loadout
	imported := e.importManifest(skyManifest, skySources)
	assert.Equal(t, []string{"Sky Overhaul", "Sky Patch", "Load Order"}, imported.Mods)

	result := e.apply(engine.ApplyRequest{})
	require.NotEmpty(t, result.Executed)
	assert.Equal(t, "patched sky", e.read("/games/skyrim/Data/textures/sky.dds"))
	assert.Equal(t, "sky plugin", e.read("/games/skyrim/Data/Sky.esp"))
	assert.Contains(t, e.read("/games/skyrim/plugins.txt"), "Sky Patch")

	// The overwritten vanilla texture stays recoverable.
	assert.True(t, e.store.HaveFile(hash.FromString("vanilla sky")))

	assert.Zero(t, e.planSteps(), "apply is not idempotent")
	assert.Empty(t, e.ingest().Plan.Steps, "ingest right after apply found changes")

	// Rolling back to the managed version restores vanilla content and
	// removes everything the mods added.
	e.apply(engine.ApplyRequest{Version: base.Version})
	assert.Equal(t, "vanilla sky", e.read("/games/skyrim/Data/textures/sky.dds"))
	assert.False(t, e.exists("/games/skyrim/Data/Sky.esp"))
	assert.False(t, e.exists("/games/skyrim/plugins.txt"))
	assert.Equal(t, "first save", e.read("/home/player/saves/Save1.ess"))
}

func TestDeletedFileIngest(t *testing.T) {
	e := setupTestEngine(t)
	e.write("/games/skyrim/Data/Skyrim.esm", "master")
	e.write("/games/skyrim/Data/Unwanted.esp", "unwanted")
	e.manage()

	require.NoError(t, e.fs.Remove("/games/skyrim/Data/Unwanted.esp"))

	result := e.ingest()
	removes := planner.StepsOf[planner.RemoveFromLoadout](result.Plan.Steps)
	require.Len(t, removes, 1)
	assert.Equal(t, "Data/Unwanted.esp", removes[0].Path.Path)

	assert.Zero(t, e.planSteps())
	e.apply(engine.ApplyRequest{})
	assert.False(t, e.exists("/games/skyrim/Data/Unwanted.esp"))
}

func TestNewSaveIngest(t *testing.T) {
	e := setupTestEngine(t)
	e.write("/games/skyrim/Data/Skyrim.esm", "master")
	e.manage()

	e.write("/home/player/saves/Quicksave.ess", "quick")
	result := e.ingest()

	creates := planner.StepsOf[planner.CreateInLoadout](result.Plan.Steps)
	require.Len(t, creates, 1)
	assert.Equal(t, planner.SavedGamesModName, creates[0].Owner.Name)
	assert.True(t, e.store.HaveFile(hash.FromString("quick")))

	// Deleting the save from disk and applying the loadout brings it back.
	require.NoError(t, e.fs.Remove("/home/player/saves/Quicksave.ess"))
	e.apply(engine.ApplyRequest{Force: true})
	assert.Equal(t, "quick", e.read("/home/player/saves/Quicksave.ess"))
}

func TestSmallerIndexWins(t *testing.T) {
	e := setupTestEngine(t, withOverrideBehavior("smaller-index-wins"))
	e.write("/games/skyrim/Data/Skyrim.esm", "master")
	e.write("/games/skyrim/Data/textures/sky.dds", "vanilla sky")
	e.manage()
	e.importManifest(skyManifest, skySources)

	e.apply(engine.ApplyRequest{})
	assert.Equal(t, "vanilla sky", e.read("/games/skyrim/Data/textures/sky.dds"))
	assert.Equal(t, "patch plugin", e.read("/games/skyrim/Data/SkyPatch.esp"))
}

// failingBackups refuses every backup once fail is set.
type failingBackups struct {
	archive.Store
	fail bool
}

func (f *failingBackups) BackupFiles(ctx context.Context, reqs []archive.BackupRequest) error {
	if f.fail {
		return errors.New("disk full")
	}
	return f.Store.BackupFiles(ctx, reqs)
}

func TestBackupFailureLeavesDiskUntouched(t *testing.T) {
	backups := &failingBackups{}
	e := setupTestEngine(t, withArchive(func(s archive.Store) archive.Store {
		backups.Store = s
		return backups
	}))
	e.write("/games/skyrim/Data/textures/sky.dds", "vanilla sky")
	e.manage()
	e.importManifest(skyManifest, skySources)

	// A hand edit the archive has never seen must be backed up first.
	e.write("/games/skyrim/Data/textures/sky.dds", "hand-painted sky")
	backups.fail = true

	_, err := e.eng.Apply(e.ctx, &engine.ApplyRequest{Installation: installation, Force: true})
	require.Error(t, err)

	assert.Equal(t, "hand-painted sky", e.read("/games/skyrim/Data/textures/sky.dds"))
	assert.False(t, e.exists("/games/skyrim/Data/Sky.esp"))

	snap, err := e.states.LoadLatest(installation)
	require.NoError(t, err)
	assert.Zero(t, snap.TxID, "failed apply recorded a snapshot")
}

func TestConcurrentApplySerializes(t *testing.T) {
	e := setupTestEngine(t)
	e.write("/games/skyrim/Data/Skyrim.esm", "master")
	e.manage()
	e.importManifest(skyManifest, skySources)

	var wg sync.WaitGroup
	results := make([]*engine.ApplyResult, 2)
	errs := make([]error, 2)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = e.eng.Apply(e.ctx, &engine.ApplyRequest{Installation: installation})
		}(i)
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])

	// Exactly one of the two did the work; the other saw a synced folder.
	executed := len(results[0].Executed) + len(results[1].Executed)
	assert.True(t, len(results[0].Executed) == 0 || len(results[1].Executed) == 0)
	assert.NotZero(t, executed)

	snap, err := e.states.LoadLatest(installation)
	require.NoError(t, err)
	assert.EqualValues(t, 2, snap.TxID)
}
