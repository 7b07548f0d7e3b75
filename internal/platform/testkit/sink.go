package testkit

import (
	"bytes"
	"strings"
	"sync"
)

// SyncBuffer is a bytes.Buffer safe for one writer goroutine and concurrent readers
// It also counts Write calls so tests can tell flush cycles apart
type SyncBuffer struct {
	mu     sync.Mutex
	buf    bytes.Buffer
	writes []string
}

// Write appends p and records it as one write
func (b *SyncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.writes = append(b.writes, string(p))
	return b.buf.Write(p)
}

// String returns everything written so far
func (b *SyncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// Writes returns a copy of each individual Write payload in order
func (b *SyncBuffer) Writes() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.writes...)
}

// Lines returns the non-empty lines written so far
func (b *SyncBuffer) Lines() []string {
	out := []string{}
	for _, l := range strings.Split(b.String(), "\n") {
		if strings.TrimSpace(l) != "" {
			out = append(out, l)
		}
	}
	return out
}
