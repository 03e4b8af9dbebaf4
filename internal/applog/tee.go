package applog

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime/debug"
	"time"
)

// EntryCallback observes a record at or above the tee threshold. group is
// the dot-joined slog group the record was logged under.
type EntryCallback func(ts time.Time, level slog.Level, msg string, group string)

// TeeHandler forwards every record to base and additionally hands records
// at or above minLevel to a callback.
type TeeHandler struct {
	base     slog.Handler
	callback EntryCallback
	minLevel slog.Level
	group    string
}

// NewTeeHandler wraps base. A nil callback makes the handler a passthrough.
func NewTeeHandler(base slog.Handler, minLevel slog.Level, callback EntryCallback) *TeeHandler {
	return &TeeHandler{base: base, callback: callback, minLevel: minLevel}
}

// Enabled defers to base; minLevel only gates the callback.
func (h *TeeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.base.Enabled(ctx, level)
}

// Handle writes to base, then runs the callback even if base failed.
func (h *TeeHandler) Handle(ctx context.Context, record slog.Record) error {
	err := h.base.Handle(ctx, record)
	if h.callback != nil && record.Level >= h.minLevel {
		h.invoke(record)
	}
	return err
}

func (h *TeeHandler) invoke(record slog.Record) {
	defer func() {
		if r := recover(); r != nil {
			// stderr, not slog: logging here would re-enter the tee.
			fmt.Fprintf(os.Stderr, "[applog] warning callback panicked: %v\n%s\n", r, debug.Stack())
		}
	}()
	h.callback(record.Time, record.Level, record.Message, h.group)
}

func (h *TeeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	return &TeeHandler{
		base:     h.base.WithAttrs(attrs),
		callback: h.callback,
		minLevel: h.minLevel,
		group:    h.group,
	}
}

func (h *TeeHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	group := name
	if h.group != "" {
		group = h.group + "." + name
	}
	return &TeeHandler{
		base:     h.base.WithGroup(name),
		callback: h.callback,
		minLevel: h.minLevel,
		group:    group,
	}
}
