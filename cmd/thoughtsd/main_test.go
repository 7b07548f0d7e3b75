package main

import (
	"context"
	"io"
	"net"
	"strings"
	"testing"
	"time"

	"thoughtsd/internal/core/frame"
	"thoughtsd/internal/platform/testkit"
)

func TestRun_Usage(t *testing.T) {
	for _, args := range [][]string{nil, {"a:1", "b:2"}, {"-nope", "a:1"}} {
		stderr := &testkit.SyncBuffer{}
		if code := run(context.Background(), args, io.Discard, stderr); code != 2 {
			t.Fatalf("args %q: exit %d, want 2", args, code)
		}
		testkit.MustContain(t, stderr.String(), "usage")
	}
}

func TestRun_BindInUse(t *testing.T) {
	busy := testkit.Occupied(t)
	stdout, stderr := &testkit.SyncBuffer{}, &testkit.SyncBuffer{}

	code := run(context.Background(), []string{busy.Addr().String()}, stdout, stderr)
	if code != 1 {
		t.Fatalf("exit %d, want 1", code)
	}
	testkit.MustContain(t, strings.ToLower(stdout.String()), "error")
	testkit.MustContain(t, stdout.String(), "address already in use")
	testkit.MustContain(t, stderr.String(), "bind failed")
}

func TestRun_MalformedAddr(t *testing.T) {
	stdout := &testkit.SyncBuffer{}
	if code := run(context.Background(), []string{"localhost"}, stdout, io.Discard); code != 1 {
		t.Fatalf("exit %d, want 1", code)
	}
	testkit.MustContain(t, stdout.String(), "error: ")
}

func TestRun_ServesAndFlushesOnInterrupt(t *testing.T) {
	t.Setenv("LOG_LEVEL", "disabled")
	addr := testkit.FreeAddr(t)
	stdout := &testkit.SyncBuffer{}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan int, 1)
	go func() { done <- run(ctx, []string{"-flush", "1h", "-tz", "UTC", addr}, stdout, io.Discard) }()

	var conn net.Conn
	testkit.Eventually(t, 2*time.Second, func() bool {
		c, err := net.Dial("tcp", addr)
		if err != nil {
			return false
		}
		conn = c
		return true
	}, "server never listened")
	ts := uint32(time.Date(2019, 10, 25, 15, 12, 5, 0, time.UTC).Unix())
	if _, err := conn.Write(frame.Encode(frame.Thought{UserID: 1, Timestamp: ts, Text: "I'm hungry"})); err != nil {
		t.Fatalf("write: %v", err)
	}
	_ = conn.Close()
	time.Sleep(100 * time.Millisecond)

	// interrupt before the first tick; the final flush must carry the thought
	cancel()
	select {
	case code := <-done:
		if code != 0 {
			t.Fatalf("exit %d, want 0", code)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("run did not return after interrupt")
	}
	if got := stdout.String(); got != "[2019-10-25 15:12:05] user 1: I'm hungry\n" {
		t.Fatalf("stdout = %q", got)
	}
}

func TestRun_Version(t *testing.T) {
	stdout := &testkit.SyncBuffer{}
	if code := run(context.Background(), []string{"-version"}, stdout, io.Discard); code != 0 {
		t.Fatalf("exit %d, want 0", code)
	}
	testkit.MustContain(t, stdout.String(), "thoughtsd ")
}
