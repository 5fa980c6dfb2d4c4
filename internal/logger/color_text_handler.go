package logger

import (
	"context"
	"io"
	"log/slog"
)

const ansiReset = "\033[0m"

// levelColor picks the ANSI escape for a level; thresholds rather than an
// exact match so custom levels between the standard ones still colorize.
func levelColor(l slog.Level) string {
	switch {
	case l >= slog.LevelError:
		return "\033[31m" // red
	case l >= slog.LevelWarn:
		return "\033[33m" // yellow
	case l >= slog.LevelInfo:
		return "\033[32m" // green
	default:
		return "\033[36m" // cyan
	}
}

// colorHandler prepends a colored level tag to every message before
// delegating to slog's text handler.
type colorHandler struct {
	inner slog.Handler
}

// NewColorTextHandler returns a text handler with ANSI-colored level tags.
func NewColorTextHandler(w io.Writer, opts *slog.HandlerOptions) slog.Handler {
	return &colorHandler{inner: slog.NewTextHandler(w, opts)}
}

func (h *colorHandler) Enabled(ctx context.Context, l slog.Level) bool {
	return h.inner.Enabled(ctx, l)
}

func (h *colorHandler) Handle(ctx context.Context, r slog.Record) error {
	r.Message = levelColor(r.Level) + r.Level.String() + ansiReset + "  " + r.Message
	return h.inner.Handle(ctx, r)
}

func (h *colorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &colorHandler{inner: h.inner.WithAttrs(attrs)}
}

func (h *colorHandler) WithGroup(name string) slog.Handler {
	return &colorHandler{inner: h.inner.WithGroup(name)}
}
