// Package attrlog is the attribute store's shared slog setup: one
// JSON-structured logger per process, with helpers for the warning
// counters that divide-by-zero drops and soft field-extraction
// failures need surfaced.
package attrlog

import (
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
)

var levelMap = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

// New builds the subsystem's root logger, JSON-encoded to w (os.Stderr
// when w is nil) at the given level name ("debug"|"info"|"warn"|
// "error", default "info").
func New(w *os.File, level string) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}
	lvl, ok := levelMap[strings.ToLower(level)]
	if !ok {
		lvl = slog.LevelInfo
	}
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl, AddSource: true})
	return slog.New(handler).With("subsystem", "attribute")
}

// For scopes a logger to one attribute, matching the per-component
// field convention the manager and writer use throughout this package.
func For(log *slog.Logger, attrName string) *slog.Logger {
	return log.With("attribute", attrName)
}

// Counters tracks soft failures that are dropped silently rather than
// returned as errors: a divide-by-zero in an integer arithmetic update,
// or a soft field-extraction failure, each just increments a counter.
type Counters struct {
	divideByZeroDrops atomic.Uint64
	softExtractErrors atomic.Uint64
}

func (c *Counters) DivideByZeroDrop() uint64 { return c.divideByZeroDrops.Add(1) }
func (c *Counters) SoftExtractError() uint64 { return c.softExtractErrors.Add(1) }

func (c *Counters) Snapshot() (divideByZero, softExtract uint64) {
	return c.divideByZeroDrops.Load(), c.softExtractErrors.Load()
}
