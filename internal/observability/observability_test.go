package observability

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/danieljhkim/modsync/internal/config"
)

func TestNewLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger("modsync", config.LogConfig{Level: "info", Format: "json"}, &buf)

	logger.Debug().Msg("hidden")
	logger.Info().Str("installation", "skyrim").Msg("applied")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var record map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &record))
	require.Equal(t, "modsync", record["app"])
	require.Equal(t, "skyrim", record["installation"])
	require.Equal(t, "applied", record["message"])
}

func TestNewLogger_EnvOverridesLevel(t *testing.T) {
	t.Setenv(EnvLogLevel, "debug")

	var buf bytes.Buffer
	logger := NewLogger("modsync", config.LogConfig{Level: "error", Format: "json"}, &buf)
	logger.Debug().Msg("visible")

	require.Contains(t, buf.String(), "visible")
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv(EnvLogNoColor, "true")
	t.Setenv(EnvLogTimestamp, "not-a-bool")
	t.Setenv(EnvLogLevel, "loud")

	cfg := config.LogConfig{Level: "info", Timestamp: true}
	ApplyEnvOverrides(&cfg)

	require.True(t, cfg.NoColor)
	require.True(t, cfg.Timestamp, "invalid booleans are ignored")
	require.Equal(t, "info", cfg.Level, "invalid levels are ignored")
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		raw  string
		want zerolog.Level
		ok   bool
	}{
		{raw: "debug", want: zerolog.DebugLevel, ok: true},
		{raw: " WARNING ", want: zerolog.WarnLevel, ok: true},
		{raw: "off", want: zerolog.Disabled, ok: true},
		{raw: "", want: zerolog.InfoLevel, ok: false},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, ok := ParseLevel(tt.raw)
			require.Equal(t, tt.want, got)
			require.Equal(t, tt.ok, ok)
		})
	}
}

func TestMetrics_WriteTextfile(t *testing.T) {
	m := NewMetrics()
	m.RecordStep("apply", "ExtractFile")
	m.RecordStep("apply", "ExtractFile")
	m.ObservePhase("apply", "extract", 20*time.Millisecond)
	m.RecordBackup(true)
	m.RecordIndexed(false)
	m.SetSnapshot("skyrim", 3, 1024)

	path := filepath.Join(t.TempDir(), "modsync.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	require.Contains(t, text, `modsync_executor_steps_total{kind="ExtractFile",operation="apply"} 2`)
	require.Contains(t, text, `modsync_snapshot_files{installation="skyrim"} 3`)
}

func TestMetrics_NilIsSafe(t *testing.T) {
	var m *Metrics
	m.RecordStep("apply", "DeleteFile")
	m.ObservePhase("apply", "delete", time.Second)
	m.RecordBackup(false)
	m.RecordIndexed(true)
	m.SetSnapshot("skyrim", 1, 1)
	require.NoError(t, m.WriteTextfile("/nonexistent/metrics.prom"))
	require.Nil(t, m.Registry())
}
