package workerutil

import "sync"

// Mailbox is a single-slot queue where a newer value replaces an unread
// one. It lets a producer that must not block hand work to one consumer
// that only cares about the latest intent.
type Mailbox[T any] struct {
	mu    sync.Mutex
	value T
	full  bool
	ready chan struct{}
}

// NewMailbox returns an empty mailbox.
func NewMailbox[T any]() *Mailbox[T] {
	return &Mailbox[T]{ready: make(chan struct{}, 1)}
}

// Put stores v, replacing any unread value. It never blocks.
func (m *Mailbox[T]) Put(v T) (replaced bool) {
	m.mu.Lock()
	replaced = m.full
	m.value = v
	m.full = true
	m.mu.Unlock()

	select {
	case m.ready <- struct{}{}:
	default:
	}
	return replaced
}

// Ready receives after a Put. A receive does not guarantee a value: a
// concurrent Take may already have consumed it.
func (m *Mailbox[T]) Ready() <-chan struct{} {
	return m.ready
}

// Take removes and returns the stored value.
func (m *Mailbox[T]) Take() (T, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var zero T
	if !m.full {
		return zero, false
	}
	v := m.value
	m.value = zero
	m.full = false
	return v, true
}

// Pending reports whether an unread value is stored.
func (m *Mailbox[T]) Pending() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.full
}
