package xslog

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

const levelEnvKey = "LOG_LEVEL"

// LevelFromEnv reads LOG_LEVEL and falls back to info on an absent or
// unrecognized value. Sync runs are driven by cron and operators, so a bad
// setting must not stop startup.
func LevelFromEnv() slog.Level {
	switch strings.ToLower(os.Getenv(levelEnvKey)) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}

func NewLoggerFromEnv(w io.Writer) *slog.Logger {
	return NewLogger(w, LevelFromEnv())
}
