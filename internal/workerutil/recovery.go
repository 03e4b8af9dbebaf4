// Package workerutil runs background workers that survive panics.
package workerutil

import (
	"context"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"
)

const (
	defaultInitialBackoff = 100 * time.Millisecond
	defaultMaxBackoff     = 5 * time.Second
	defaultMaxRetries     = 10
)

// Options configures Run. Zero numeric fields take the defaults
// (100ms initial backoff, 5s cap, 10 attempts); nil callbacks are skipped.
type Options struct {
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	// MaxRetries is the total number of attempts. 1 runs fn once.
	MaxRetries int

	// OnPanic runs after each recovered panic with the 1-based attempt.
	OnPanic func(worker string, attempt int)
	// OnFatal runs once the worker gives up.
	OnFatal func(worker string, maxRetries int)
	// IsShutdown stops restarts while the host is tearing down.
	IsShutdown func() bool
}

func (opts Options) withDefaults() Options {
	if opts.InitialBackoff <= 0 {
		opts.InitialBackoff = defaultInitialBackoff
	}
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = defaultMaxBackoff
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = defaultMaxRetries
	}
	if opts.MaxBackoff < opts.InitialBackoff {
		slog.Warn("[WARN-WORKER] MaxBackoff below InitialBackoff, raising it",
			"initialBackoff", opts.InitialBackoff, "maxBackoff", opts.MaxBackoff)
		opts.MaxBackoff = opts.InitialBackoff
	}
	return opts
}

// Run starts fn on a goroutine tracked by wg. A panic in fn is logged with
// its stack and fn is restarted after an exponential backoff, until it
// returns normally, ctx ends, or the attempts run out.
func Run(ctx context.Context, name string, wg *sync.WaitGroup, fn func(ctx context.Context), opts Options) {
	opts = opts.withDefaults()
	wg.Go(func() {
		loop(ctx, name, fn, opts)
	})
}

func loop(ctx context.Context, name string, fn func(ctx context.Context), opts Options) {
	delay := opts.InitialBackoff
	for attempt := 1; attempt <= opts.MaxRetries; attempt++ {
		if !runOnce(ctx, name, fn) || ctx.Err() != nil {
			return
		}
		if opts.IsShutdown != nil && opts.IsShutdown() {
			slog.Info("[DEBUG-WORKER] shutdown in progress, not restarting", "worker", name)
			return
		}

		slog.Warn("[WARN-WORKER] restarting worker after panic",
			"worker", name, "attempt", attempt, "delay", delay)
		if opts.OnPanic != nil {
			opts.OnPanic(name, attempt)
		}
		if attempt == opts.MaxRetries {
			break
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		delay = nextBackoff(delay, opts.MaxBackoff)
	}

	slog.Error("[ERROR-WORKER] worker exceeded max retries, giving up",
		"worker", name, "maxRetries", opts.MaxRetries)
	if opts.OnFatal != nil {
		opts.OnFatal(name, opts.MaxRetries)
	}
}

// runOnce reports whether fn panicked.
func runOnce(ctx context.Context, name string, fn func(ctx context.Context)) (panicked bool) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("[ERROR-WORKER] worker panic recovered",
				"worker", name, "panic", r, "stack", string(debug.Stack()))
			panicked = true
		}
	}()
	fn(ctx)
	return false
}

// nextBackoff doubles current, capped at maxBackoff and guarded against
// overflow.
func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	if current <= 0 {
		return defaultInitialBackoff
	}
	next := current * 2
	if next > maxBackoff || next < current {
		return maxBackoff
	}
	return next
}
