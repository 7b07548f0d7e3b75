// Package buffer holds thoughts between connection handlers and the flusher
package buffer

import (
	"sync"

	"thoughtsd/internal/core/frame"
)

// Buffer is an append-only list drained atomically by swap
// zero value is ready to use
type Buffer struct {
	mu    sync.Mutex
	items []frame.Thought
}

// New returns an empty buffer with room for hint thoughts
func New(hint int) *Buffer {
	if hint < 0 {
		hint = 0
	}
	return &Buffer{items: make([]frame.Thought, 0, hint)}
}

// Append adds t at the tail
func (b *Buffer) Append(t frame.Thought) {
	b.mu.Lock()
	b.items = append(b.items, t)
	b.mu.Unlock()
}

// DrainAll returns everything buffered in append order and leaves the buffer empty
// returns nil when there is nothing to drain
func (b *Buffer) DrainAll() []frame.Thought {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.items) == 0 {
		return nil
	}
	out := b.items
	b.items = make([]frame.Thought, 0, cap(out))
	return out
}

// Len returns the number of buffered thoughts
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.items)
}
