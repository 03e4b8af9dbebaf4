package testutil

import (
	"sort"
	"sync"
	"time"
)

// FakeClock is a manually advanced clock. Callbacks run synchronously on the
// goroutine that calls Advance, never while the clock's lock is held.
type FakeClock struct {
	mu      sync.Mutex
	now     time.Duration
	nextID  int
	pending map[int]fakeTimer
}

type fakeTimer struct {
	at time.Duration
	fn func()
}

// NewFakeClock returns a clock at time zero.
func NewFakeClock() *FakeClock {
	return &FakeClock{pending: make(map[int]fakeTimer)}
}

// AfterFunc schedules f to run once the clock has advanced by d.
func (c *FakeClock) AfterFunc(d time.Duration, f func()) func() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextID
	c.nextID++
	c.pending[id] = fakeTimer{at: c.now + d, fn: f}
	return func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		_, ok := c.pending[id]
		delete(c.pending, id)
		return ok
	}
}

// Advance moves time forward by d and fires every timer that came due, in
// deadline order.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now += d
	var due []int
	for id, timer := range c.pending {
		if timer.at <= c.now {
			due = append(due, id)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		a, b := c.pending[due[i]], c.pending[due[j]]
		if a.at != b.at {
			return a.at < b.at
		}
		return due[i] < due[j]
	})
	fns := make([]func(), 0, len(due))
	for _, id := range due {
		fns = append(fns, c.pending[id].fn)
		delete(c.pending, id)
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// Pending returns the number of scheduled timers.
func (c *FakeClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}
