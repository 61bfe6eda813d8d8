// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package server

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
)

// setupLogger installs the global slog logger.
func setupLogger(level, format string) {
	slog.SetDefault(newLogger(os.Stdout, level, format))
}

// newLogger writes JSON or colored text to w. Debug logging also records
// the source location. Unknown levels mean info.
func newLogger(w io.Writer, level, format string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	debug := lvl <= slog.LevelDebug

	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl, AddSource: debug})
	} else {
		handler = tint.NewHandler(w, &tint.Options{Level: lvl, AddSource: debug, TimeFormat: time.DateTime})
	}

	return slog.New(handler).With("app", "accountdesk")
}
