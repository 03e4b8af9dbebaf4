package applog

import (
	"log/slog"
	"strings"
	"sync"
	"time"
)

// DefaultRingCapacity bounds the warnings kept for the settings page.
const DefaultRingCapacity = 200

// Entry is one warning shown on the settings page.
type Entry struct {
	Seq       uint64 `json:"seq"`
	Timestamp string `json:"timestamp"`
	Level     string `json:"level"`
	Message   string `json:"message"`
	Source    string `json:"source"`
}

// Ring keeps the most recent warnings in arrival order.
type Ring struct {
	mu      sync.Mutex
	entries []Entry
	start   int
	size    int
	seq     uint64
}

// NewRing creates a ring holding at most capacity entries.
func NewRing(capacity int) *Ring {
	if capacity <= 0 {
		capacity = DefaultRingCapacity
	}
	return &Ring{entries: make([]Entry, capacity)}
}

// Record has the EntryCallback signature so a Ring can back a TeeHandler.
func (r *Ring) Record(ts time.Time, level slog.Level, msg string, group string) {
	r.Add(ts, level, msg, group)
}

// Add stores a log record and returns the entry as stored.
func (r *Ring) Add(ts time.Time, level slog.Level, msg string, group string) Entry {
	e := Entry{
		Timestamp: ts.Format(time.RFC3339Nano),
		Level:     strings.ToLower(level.String()),
		Message:   msg,
		Source:    group,
	}
	e.Seq = r.Push(e)
	return e
}

// Push appends e, evicting the oldest entry when full, and returns the
// assigned sequence number.
func (r *Ring) Push(e Entry) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	e.Seq = r.seq
	capacity := len(r.entries)
	if r.size < capacity {
		r.entries[(r.start+r.size)%capacity] = e
		r.size++
	} else {
		r.entries[r.start] = e
		r.start = (r.start + 1) % capacity
	}
	return e.Seq
}

// Snapshot returns the entries oldest first.
func (r *Ring) Snapshot() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, r.size)
	for i := range r.size {
		out[i] = r.entries[(r.start+i)%len(r.entries)]
	}
	return out
}

// Len reports the number of stored entries.
func (r *Ring) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.size
}
