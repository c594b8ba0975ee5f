package core

import (
	"context"
	"time"

	"twido/internal/rewards"
	"twido/pkg/domain"
)

// Logger captures the structured logging surface used by the store.
type Logger = domain.Logger

type noopLogger = domain.NopLogger

// MetricsRecorder observes store operation outcomes.
type MetricsRecorder interface {
	Observe(ctx context.Context, operation string, success bool, duration time.Duration)
}

type noopMetrics struct{}

func (noopMetrics) Observe(context.Context, string, bool, time.Duration) {}

// Clock supplies wall time for timers and the daily grant date.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock. A nil ClockFunc reads the system clock.
type ClockFunc func() time.Time

// Now implements Clock.
func (f ClockFunc) Now() time.Time {
	if f == nil {
		return time.Now()
	}
	return f()
}

type noopNotifier struct{}

func (noopNotifier) Notify(domain.Notification) {}

// Option configures a Store.
type Option func(*Store)

// WithLogger overrides the store logger.
func WithLogger(logger Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics installs a metrics recorder.
func WithMetrics(recorder MetricsRecorder) Option {
	return func(s *Store) {
		if recorder != nil {
			s.metrics = recorder
		}
	}
}

// WithClock overrides the wall clock.
func WithClock(clock Clock) Option {
	return func(s *Store) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithLocation sets the time zone used to derive the calendar date for the
// daily shovel limit. Defaults to time.Local.
func WithLocation(loc *time.Location) Option {
	return func(s *Store) {
		if loc != nil {
			s.location = loc
		}
	}
}

// WithRewards replaces the reward rules engine.
func WithRewards(engine *rewards.Engine) Option {
	return func(s *Store) {
		if engine != nil {
			s.rewards = engine
		}
	}
}

// WithNotifier installs the collaborator that surfaces toasts and alerts.
func WithNotifier(n domain.Notifier) Option {
	return func(s *Store) {
		if n != nil {
			s.notifier = n
		}
	}
}

// WithGeolocator installs the device location collaborator.
func WithGeolocator(g domain.Geolocator) Option {
	return func(s *Store) {
		if g != nil {
			s.geo = g
		}
	}
}

// WithIDGenerator overrides task and subtask id generation.
func WithIDGenerator(fn func(time.Time) string) Option {
	return func(s *Store) {
		if fn != nil {
			s.newID = fn
		}
	}
}
