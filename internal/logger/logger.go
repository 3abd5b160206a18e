package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Init installs the process logger on stderr. LOG_LEVEL selects the level
// (debug, info, warn, error) and LOG_FORMAT=text switches from JSON.
func Init() {
	slog.SetDefault(New(os.Stderr, os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT")))
}

func New(w io.Writer, level, format string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: lvl}
	if strings.EqualFold(format, "text") {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}
