package splat

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/ath92/splat-renderer/internal/gpu"
)

// nopHandler is a slog.Handler that silently discards all log records.
// Enabled returns false so callers skip message formatting entirely,
// making disabled logging effectively zero-cost.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

func newNopLogger() *slog.Logger { return slog.New(nopHandler{}) }

// loggerPtr stores the active logger. Accessed atomically so SetLogger can
// be called concurrently with logging from any goroutine.
var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	loggerPtr.Store(newNopLogger())
}

// SetLogger configures the logger used by this package and internal/gpu.
// By default, splat produces no log output. Pass nil to restore silence.
//
// Log levels used by this package:
//   - [slog.LevelDebug]: per-frame buffer growth, pipeline (re)compilation.
//   - [slog.LevelInfo]: lifecycle events (GPU adapter selected, host closed).
//   - [slog.LevelWarn]: per-frame anomalies (spec.md §7): allocation
//     exceeded, pathological tile overlap, a frame cleared.
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = newNopLogger()
	}
	loggerPtr.Store(l)
	gpu.SetLogger(l)
}

// Logger returns the currently configured logger.
func Logger() *slog.Logger { return loggerPtr.Load() }
