package testkit

import (
	"net"
	"testing"
)

// FreeAddr returns a loopback host:port that was free a moment ago
func FreeAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("free addr: %v", err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()
	return addr
}

// Occupied returns a loopback listener held open until the test ends, for bind collision tests
func Occupied(t *testing.T) net.Listener {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("occupy addr: %v", err)
	}
	t.Cleanup(func() { _ = ln.Close() })
	return ln
}
