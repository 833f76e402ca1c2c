// Package observability builds the zerolog logger and the prometheus
// metrics used across modsync.
package observability

import (
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/danieljhkim/modsync/internal/config"
)

const (
	EnvLogLevel     = "MODSYNC_LOG_LEVEL"
	EnvLogFormat    = "MODSYNC_LOG_FORMAT"
	EnvLogTimestamp = "MODSYNC_LOG_TIMESTAMP"
	EnvLogNoColor   = "MODSYNC_LOG_NOCOLOR"
)

// NewLogger builds a logger writing to out. Console format is human
// readable; json emits one object per line.
func NewLogger(app string, cfg config.LogConfig, out io.Writer) zerolog.Logger {
	ApplyEnvOverrides(&cfg)

	level, ok := ParseLevel(cfg.Level)
	if !ok {
		level = zerolog.InfoLevel
	}

	if strings.EqualFold(cfg.Format, "console") {
		out = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.RFC3339,
			NoColor:    cfg.NoColor,
			PartsExclude: func() []string {
				if cfg.Timestamp {
					return nil
				}
				return []string{zerolog.TimestampFieldName}
			}(),
		}
	}

	ctx := zerolog.New(out).Level(level).With().Str("app", app)
	if cfg.Timestamp {
		ctx = ctx.Timestamp()
	}
	return ctx.Logger()
}

// NewStderrLogger is NewLogger writing to standard error, which keeps
// standard output free for command results.
func NewStderrLogger(app string, cfg config.LogConfig) zerolog.Logger {
	return NewLogger(app, cfg, os.Stderr)
}

// ApplyEnvOverrides lets MODSYNC_LOG_* variables override cfg.
func ApplyEnvOverrides(cfg *config.LogConfig) {
	if raw := os.Getenv(EnvLogLevel); raw != "" {
		if _, ok := ParseLevel(raw); ok {
			cfg.Level = raw
		}
	}
	if raw := strings.TrimSpace(os.Getenv(EnvLogFormat)); raw != "" {
		cfg.Format = raw
	}
	if v, ok := parseBool(os.Getenv(EnvLogTimestamp)); ok {
		cfg.Timestamp = v
	}
	if v, ok := parseBool(os.Getenv(EnvLogNoColor)); ok {
		cfg.NoColor = v
	}
}

// ParseLevel maps a level name to a zerolog level.
func ParseLevel(raw string) (zerolog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "trace":
		return zerolog.TraceLevel, true
	case "debug":
		return zerolog.DebugLevel, true
	case "info":
		return zerolog.InfoLevel, true
	case "warn", "warning":
		return zerolog.WarnLevel, true
	case "error":
		return zerolog.ErrorLevel, true
	case "disabled", "off", "none":
		return zerolog.Disabled, true
	default:
		return zerolog.InfoLevel, false
	}
}

func parseBool(raw string) (bool, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}
