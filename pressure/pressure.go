// Package pressure maps external memory-pressure signals onto the
// scheduler's execution ceiling. A platform-specific source feeds
// pressure levels into a Listener, which translates them to task
// limits and applies them to the scheduler.
package pressure

import (
	"log/slog"
	"sync"

	"github.com/uplink-foundation/uplink"
	"github.com/uplink-foundation/uplink/scheduler"
)

// Level classifies the host's memory pressure.
type Level int

const (
	// LevelNone means memory is plentiful.
	LevelNone Level = iota
	// LevelModerate means memory is tight and work should slow down.
	LevelModerate
	// LevelCritical means the host is about to reclaim memory
	// aggressively and no new work should start.
	LevelCritical
)

// String returns the canonical name of the level.
func (l Level) String() string {
	switch l {
	case LevelNone:
		return "NONE"
	case LevelModerate:
		return "MODERATE"
	case LevelCritical:
		return "CRITICAL"
	default:
		return "INVALID"
	}
}

// LimitFor maps a pressure level to the task limit the scheduler
// should run under. Unknown levels are treated as critical.
func LimitFor(level Level) scheduler.TaskLimit {
	switch level {
	case LevelNone:
		return scheduler.TaskLimitNormal
	case LevelModerate:
		return scheduler.TaskLimitReduced
	default:
		return scheduler.TaskLimitOff
	}
}

// LimitUpdater is the slice of the scheduler a Listener drives.
type LimitUpdater interface {
	UpdateTaskLimit(limit scheduler.TaskLimit)
}

// Option configures a Listener.
type Option func(*Listener)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(l *Listener) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// Listener applies pressure-level changes to a scheduler. It is safe
// for concurrent use; redundant updates at the current level are
// dropped without touching the scheduler.
type Listener struct {
	logger *slog.Logger
	target LimitUpdater

	mu      sync.Mutex
	current Level
}

// NewListener creates a Listener driving the given scheduler.
func NewListener(target LimitUpdater, opts ...Option) (*Listener, error) {
	if target == nil {
		return nil, uplink.ErrNoScheduler
	}
	l := &Listener{
		logger:  slog.Default(),
		target:  target,
		current: LevelNone,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// OnPressureChanged records a new pressure level and, if it differs
// from the current one, applies the corresponding task limit.
func (l *Listener) OnPressureChanged(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if level == l.current {
		return
	}

	limit := LimitFor(level)
	l.logger.Info("memory pressure changed",
		slog.String("from", l.current.String()),
		slog.String("to", level.String()),
		slog.String("task_limit", limit.String()),
	)
	l.current = level
	l.target.UpdateTaskLimit(limit)
}

// Current returns the most recently observed pressure level.
func (l *Listener) Current() Level {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.current
}
