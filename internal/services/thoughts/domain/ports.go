// Package domain defines the public ports for the thoughts service
package domain

import (
	"context"
	"net"

	"thoughtsd/internal/core/frame"
)

// BufferPort is the shared, concurrency-safe holding area between readers and the flusher
type BufferPort interface {
	Append(t frame.Thought)
	DrainAll() []frame.Thought
	Len() int
}

// ServerPort runs the listener, handlers and flusher until ctx is done
type ServerPort interface {
	Listen() error
	Run(ctx context.Context) error
	Addr() net.Addr
}

// FlusherPort drains the buffer to the report output once
type FlusherPort interface {
	Flush() (int, error)
}

// StatsPort exposes read-only counters for the admin surface
type StatsPort interface {
	Stats() Stats
}
