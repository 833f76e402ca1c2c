package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// testEnv is a modsync root with one configured installation.
type testEnv struct {
	root  string
	game  string
	saves string
}

// setupTestEnv points MODSYNC_ROOT at a temporary directory and writes a
// config declaring the installation "skyrim".
func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()

	tmpDir := t.TempDir()
	env := &testEnv{
		root:  filepath.Join(tmpDir, "modsync"),
		game:  filepath.Join(tmpDir, "game"),
		saves: filepath.Join(tmpDir, "saves"),
	}
	for _, dir := range []string{env.root, env.game, env.saves} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			t.Fatalf("Failed to create %s: %v", dir, err)
		}
	}

	cfg := `installations:
  - name: skyrim
    game: skyrimse
    locations:
      Game: ` + env.game + `
      Saves: ` + env.saves + `
log:
  level: error
`
	if err := os.WriteFile(filepath.Join(env.root, "config.yaml"), []byte(cfg), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	t.Setenv("MODSYNC_ROOT", env.root)
	t.Setenv("NO_COLOR", "1")
	return env
}

func (env *testEnv) write(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("Failed to create parent of %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write %s: %v", path, err)
	}
}

// run executes the root command with args and returns what it printed to
// stdout. Flag variables are reset first since cobra keeps them between
// executions.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	jsonOutput, configPath, logLevel, metricsFile = false, "", "", ""
	manageName = ""
	applyVersion, applyForce, applyDryRun = "", false, false
	ingestDryRun = false
	planVersion, flattenVersion = "", ""
	resetRootCommand()

	rootCmd.SetArgs(args)
	var errBuf bytes.Buffer
	rootCmd.SetErr(&errBuf)

	var execErr error
	out := captureStdout(t, func() { execErr = rootCmd.Execute() })
	return out, execErr
}

func mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := run(t, args...)
	if err != nil {
		t.Fatalf("modsync %s: %v", strings.Join(args, " "), err)
	}
	return out
}

func decodeJSON(t *testing.T, out string) map[string]any {
	t.Helper()
	var v map[string]any
	if err := json.Unmarshal([]byte(out), &v); err != nil {
		t.Fatalf("invalid JSON output: %v, output: %q", err, out)
	}
	return v
}

func TestListCommand_Unmanaged(t *testing.T) {
	setupTestEnv(t)

	out := mustRun(t, "list", "--json")
	var infos []map[string]any
	if err := json.Unmarshal([]byte(out), &infos); err != nil {
		t.Fatalf("invalid JSON output: %v, output: %q", err, out)
	}
	if len(infos) != 1 || infos[0]["Name"] != "skyrim" || infos[0]["Managed"] != false {
		t.Errorf("list = %v, want one unmanaged skyrim", infos)
	}
}

func TestStatusCommand_Unmanaged(t *testing.T) {
	setupTestEnv(t)

	status := decodeJSON(t, mustRun(t, "status", "skyrim", "--json"))
	if status["managed"] != false {
		t.Errorf("managed = %v, want false", status["managed"])
	}
}

func TestManageApplyIngest(t *testing.T) {
	env := setupTestEnv(t)
	env.write(t, filepath.Join(env.game, "Data", "Skyrim.esm"), "master")
	env.write(t, filepath.Join(env.game, "Skyrim.ini"), "ini")

	mustRun(t, "manage", "skyrim")
	if _, err := run(t, "manage", "skyrim"); err == nil {
		t.Fatal("second manage succeeded")
	}

	modDir := filepath.Join(env.root, "..", "mods", "sky")
	env.write(t, filepath.Join(modDir, "Data", "Sky.esp"), "plugin")
	manifestPath := filepath.Join(env.root, "..", "mods", "modsync.toml")
	env.write(t, manifestPath, "[[mod]]\nname = \"Sky\"\nsource = \"sky\"\n")
	mustRun(t, "import", "skyrim", manifestPath)

	plan := decodeJSON(t, mustRun(t, "plan", "skyrim", "--json"))
	if steps, _ := plan["steps"].([]any); len(steps) == 0 {
		t.Fatal("plan after import has no steps")
	}

	mustRun(t, "apply", "skyrim", "--dry-run")
	if _, err := os.Stat(filepath.Join(env.game, "Data", "Sky.esp")); !os.IsNotExist(err) {
		t.Fatal("apply --dry-run wrote Sky.esp")
	}

	mustRun(t, "apply", "skyrim")
	data, err := os.ReadFile(filepath.Join(env.game, "Data", "Sky.esp"))
	if err != nil || string(data) != "plugin" {
		t.Fatalf("Sky.esp = %q, %v", data, err)
	}

	flat := decodeJSON(t, mustRun(t, "flatten", "skyrim", "--json"))
	if files, _ := flat["files"].([]any); len(files) != 3 {
		t.Errorf("flatten listed %d files, want 3", len(files))
	}

	// An edit in the game folder blocks apply until it is ingested.
	env.write(t, filepath.Join(env.game, "Skyrim.ini"), "ini with tweaks")
	status := decodeJSON(t, mustRun(t, "status", "skyrim", "--json"))
	if changes, _ := status["changes"].([]any); len(changes) != 1 {
		t.Errorf("status changes = %v, want 1", status["changes"])
	}
	if _, err := run(t, "apply", "skyrim"); err == nil {
		t.Error("apply over a hand edit succeeded without --force")
	}

	mustRun(t, "ingest", "skyrim")
	mustRun(t, "apply", "skyrim")
	data, err = os.ReadFile(filepath.Join(env.game, "Skyrim.ini"))
	if err != nil || string(data) != "ini with tweaks" {
		t.Errorf("Skyrim.ini = %q, %v, want the ingested edit", data, err)
	}

	out := mustRun(t, "history", "skyrim", "--json")
	var history []map[string]any
	if err := json.Unmarshal([]byte(out), &history); err != nil {
		t.Fatalf("invalid JSON output: %v, output: %q", err, out)
	}
	if len(history) != 3 {
		t.Errorf("history has %d versions, want 3", len(history))
	}
	if history[0]["applied"] != true {
		t.Error("newest version is not marked applied")
	}
}

func TestApplyCommand_InvalidVersion(t *testing.T) {
	setupTestEnv(t)

	if _, err := run(t, "apply", "skyrim", "--version", "nope"); err == nil {
		t.Error("apply accepted an invalid --version")
	}
}

func TestMetricsFile(t *testing.T) {
	env := setupTestEnv(t)
	env.write(t, filepath.Join(env.game, "a.txt"), "a")
	metricsPath := filepath.Join(env.root, "metrics.prom")

	mustRun(t, "manage", "skyrim", "--metrics-file", metricsPath)

	data, err := os.ReadFile(metricsPath)
	if err != nil {
		t.Fatalf("metrics file not written: %v", err)
	}
	if !strings.Contains(string(data), "modsync_") {
		t.Errorf("metrics file has no modsync metrics:\n%s", data)
	}
}
