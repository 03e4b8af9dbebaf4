package workerutil

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func fastOptions() Options {
	return Options{InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond, MaxRetries: 3}
}

func TestRunExitsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	var panics atomic.Int32

	opts := fastOptions()
	opts.OnPanic = func(string, int) { panics.Add(1) }
	Run(ctx, "persist", &wg, func(ctx context.Context) { <-ctx.Done() }, opts)

	cancel()
	wg.Wait()
	if panics.Load() != 0 {
		t.Fatalf("OnPanic called %d times, want 0", panics.Load())
	}
}

func TestRunRestartsAfterPanic(t *testing.T) {
	var wg sync.WaitGroup
	var calls atomic.Int32
	var attempts []int
	var mu sync.Mutex

	opts := fastOptions()
	opts.OnPanic = func(_ string, attempt int) {
		mu.Lock()
		attempts = append(attempts, attempt)
		mu.Unlock()
	}
	Run(context.Background(), "persist", &wg, func(context.Context) {
		if calls.Add(1) == 1 {
			panic("first run fails")
		}
	}, opts)
	wg.Wait()

	if calls.Load() != 2 {
		t.Fatalf("fn called %d times, want 2", calls.Load())
	}
	mu.Lock()
	defer mu.Unlock()
	if len(attempts) != 1 || attempts[0] != 1 {
		t.Fatalf("OnPanic attempts = %v, want [1]", attempts)
	}
}

func TestRunGivesUpAfterMaxRetries(t *testing.T) {
	var wg sync.WaitGroup
	var calls atomic.Int32
	var fatal atomic.Int32

	opts := fastOptions()
	opts.OnFatal = func(_ string, maxRetries int) { fatal.Store(int32(maxRetries)) }
	Run(context.Background(), "persist", &wg, func(context.Context) {
		calls.Add(1)
		panic(42)
	}, opts)
	wg.Wait()

	if calls.Load() != 3 {
		t.Fatalf("fn called %d times, want 3", calls.Load())
	}
	if fatal.Load() != 3 {
		t.Fatalf("OnFatal maxRetries = %d, want 3", fatal.Load())
	}
}

func TestRunStopsDuringShutdown(t *testing.T) {
	var wg sync.WaitGroup
	var calls atomic.Int32
	var panics atomic.Int32

	opts := fastOptions()
	opts.IsShutdown = func() bool { return true }
	opts.OnPanic = func(string, int) { panics.Add(1) }
	Run(context.Background(), "persist", &wg, func(context.Context) {
		calls.Add(1)
		panic("during shutdown")
	}, opts)
	wg.Wait()

	if calls.Load() != 1 || panics.Load() != 0 {
		t.Fatalf("calls=%d panics=%d, want 1 and 0", calls.Load(), panics.Load())
	}
}

func TestWithDefaults(t *testing.T) {
	got := Options{}.withDefaults()
	if got.InitialBackoff != defaultInitialBackoff || got.MaxBackoff != defaultMaxBackoff || got.MaxRetries != defaultMaxRetries {
		t.Fatalf("withDefaults() = %+v", got)
	}

	swapped := Options{InitialBackoff: time.Second, MaxBackoff: time.Millisecond}.withDefaults()
	if swapped.MaxBackoff != time.Second {
		t.Fatalf("MaxBackoff = %s, want raised to 1s", swapped.MaxBackoff)
	}
}

func TestNextBackoff(t *testing.T) {
	tests := []struct {
		name       string
		current    time.Duration
		maxBackoff time.Duration
		want       time.Duration
	}{
		{name: "zero uses default initial", current: 0, maxBackoff: 5 * time.Second, want: defaultInitialBackoff},
		{name: "doubles under cap", current: 200 * time.Millisecond, maxBackoff: 5 * time.Second, want: 400 * time.Millisecond},
		{name: "caps when doubling exceeds max", current: 3 * time.Second, maxBackoff: 5 * time.Second, want: 5 * time.Second},
		{name: "overflow guard", current: time.Duration(1<<62 - 1), maxBackoff: 5 * time.Second, want: 5 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := nextBackoff(tt.current, tt.maxBackoff); got != tt.want {
				t.Errorf("nextBackoff(%s, %s) = %s, want %s", tt.current, tt.maxBackoff, got, tt.want)
			}
		})
	}
}
