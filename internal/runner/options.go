package runner

import (
	"github.com/SAP-F-2025/assessment-runner/internal/utils"
	"github.com/jonboulle/clockwork"
)

type Option func(*Runner)

// WithClock replaces the wall clock, mainly for tests.
func WithClock(clock clockwork.Clock) Option {
	return func(r *Runner) {
		r.clock = clock
	}
}

func WithListener(listener Listener) Option {
	return func(r *Runner) {
		r.listener = listener
	}
}

// WithTimeWarning emits EventTimeWarning once when the countdown reaches
// the given number of seconds. Zero disables the warning.
func WithTimeWarning(seconds int) Option {
	return func(r *Runner) {
		r.timeWarning = seconds
	}
}

func WithLogger(logger utils.Logger) Option {
	return func(r *Runner) {
		r.logger = logger
	}
}
