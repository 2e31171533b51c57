package obs

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
)

// NewLogger configures slog with colored output for dev and JSON elsewhere.
// The debug env also lowers the level so every booking state is logged.
func NewLogger(env string) *slog.Logger {
	return newLogger(os.Stdout, env)
}

func newLogger(w io.Writer, env string) *slog.Logger {
	env = strings.ToLower(strings.TrimSpace(env))
	level := slog.LevelInfo
	if env == "debug" {
		level = slog.LevelDebug
	}
	switch env {
	case "dev", "local", "debug":
		return slog.New(tint.NewHandler(w, &tint.Options{
			Level:      level,
			TimeFormat: time.RFC3339,
			AddSource:  true,
		}))
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:     level,
		AddSource: true,
	}))
}
