// Package detach runs fire-and-forget background operations. A detached
// task's failure is captured for observability but never joined or
// awaited by the caller.
package detach

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// DefaultTimeout bounds a detached task; no task may block indefinitely.
const DefaultTimeout = 30 * time.Second

// Runner launches named detached tasks.
type Runner struct {
	log     zerolog.Logger
	timeout time.Duration
	wg      sync.WaitGroup
}

// NewRunner creates a Runner. A zero timeout falls back to DefaultTimeout.
func NewRunner(timeout time.Duration) *Runner {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Runner{
		log:     zerolog.New(os.Stdout).With().Timestamp().Str("component", "detach").Logger(),
		timeout: timeout,
	}
}

// SetLogger overrides the runner's logger.
func (r *Runner) SetLogger(log zerolog.Logger) {
	r.log = log.With().Str("component", "detach").Logger()
}

// Go runs fn on its own goroutine with a bounded context. Errors and
// panics are logged, never returned.
func (r *Runner) Go(name string, fn func(ctx context.Context) error) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer func() {
			if rec := recover(); rec != nil {
				r.log.Error().Str("task", name).Interface("panic", rec).Msg("detached task panicked")
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()

		start := time.Now()
		if err := fn(ctx); err != nil {
			r.log.Warn().Str("task", name).Err(err).Dur("elapsed", time.Since(start)).
				Msg("detached task failed")
			return
		}
		r.log.Debug().Str("task", name).Dur("elapsed", time.Since(start)).
			Msg("detached task done")
	}()
}

// Wait blocks until all launched tasks finish. Used by tests and by hosts
// that want a clean shutdown; production callers never need it.
func (r *Runner) Wait() {
	r.wg.Wait()
}
