package main

import (
	"io"
	"log/slog"
	"os"

	"golang.org/x/term"
)

// newCommandLogger creates a structured logger for command operations.
// When w is a terminal, uses slog.TextHandler for human-readable output.
// Otherwise uses slog.JSONHandler so scripted runs stay machine-parseable.
func newCommandLogger(w io.Writer) *slog.Logger {
	var handler slog.Handler
	options := &slog.HandlerOptions{Level: slog.LevelInfo}
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		handler = slog.NewTextHandler(w, options)
	} else {
		handler = slog.NewJSONHandler(w, options)
	}
	return slog.New(handler)
}
