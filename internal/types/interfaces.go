package types

import (
	"log/slog"
	"time"
)

// Logger defines the structured logging interface used throughout the
// service. *slog.Logger satisfies it through SlogAdapter.
type Logger interface {
	Info(msg string, args ...any)
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
	With(args ...any) Logger
}

// SlogAdapter wraps *slog.Logger so that With returns a Logger.
type SlogAdapter struct {
	L *slog.Logger
}

// NewSlogAdapter wraps l; a nil l falls back to slog.Default().
func NewSlogAdapter(l *slog.Logger) SlogAdapter {
	if l == nil {
		l = slog.Default()
	}
	return SlogAdapter{L: l}
}

func (a SlogAdapter) Info(msg string, args ...any)  { a.L.Info(msg, args...) }
func (a SlogAdapter) Error(msg string, args ...any) { a.L.Error(msg, args...) }
func (a SlogAdapter) Warn(msg string, args ...any)  { a.L.Warn(msg, args...) }
func (a SlogAdapter) With(args ...any) Logger       { return SlogAdapter{L: a.L.With(args...)} }

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

// RealClock implements Clock using the real system time.
type RealClock struct{}

// Now returns the current time.
func (RealClock) Now() time.Time { return time.Now() }

// FixedClock always returns T. Used by tests and backfills.
type FixedClock struct {
	T time.Time
}

// Now returns the fixed instant.
func (c FixedClock) Now() time.Time { return c.T }
