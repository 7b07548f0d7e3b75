package service_test

import (
	"context"
	"encoding/binary"
	"errors"
	"net"
	"strings"
	"testing"
	"time"

	"thoughtsd/internal/core/frame"
	"thoughtsd/internal/modkit"
	perr "thoughtsd/internal/platform/errors"
	"thoughtsd/internal/platform/logger"
	"thoughtsd/internal/platform/testkit"
	"thoughtsd/internal/services/thoughts/service"
)

// harness runs one server on a loopback port with a captured report sink
type harness struct {
	svc    *service.Svc
	out    *testkit.SyncBuffer
	cancel context.CancelFunc
	done   chan error
}

func start(t *testing.T, cfg service.Config) *harness {
	t.Helper()
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:0"
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	out := &testkit.SyncBuffer{}
	svc := service.New(modkit.Deps{Log: logger.Nop(), Out: out}, cfg)
	if err := svc.Listen(); err != nil {
		t.Fatalf("listen: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	h := &harness{svc: svc, out: out, cancel: cancel, done: make(chan error, 1)}
	go func() { h.done <- svc.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case <-h.done:
		case <-time.After(5 * time.Second):
			t.Errorf("server did not stop")
		}
	})
	return h
}

// stop cancels the server and returns Run's result
func (h *harness) stop(t *testing.T) error {
	t.Helper()
	h.cancel()
	select {
	case err := <-h.done:
		h.done <- err // let Cleanup see it too
		return err
	case <-time.After(5 * time.Second):
		t.Fatalf("Run did not return after cancel")
		return nil
	}
}

func (h *harness) dial(t *testing.T) net.Conn {
	t.Helper()
	c, err := net.Dial("tcp", h.svc.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func send(t *testing.T, c net.Conn, b []byte) {
	t.Helper()
	if _, err := c.Write(b); err != nil {
		t.Fatalf("write: %v", err)
	}
}

var hungry = frame.Thought{
	UserID:    1,
	Timestamp: uint32(time.Date(2019, 10, 25, 15, 12, 5, 0, time.UTC).Unix()),
	Text:      "I'm hungry",
}

const hungryLine = "[2019-10-25 15:12:05] user 1: I'm hungry"

func TestSingleWrite_AppearsOnNextFlush(t *testing.T) {
	h := start(t, service.Config{FlushInterval: 50 * time.Millisecond})
	c := h.dial(t)
	send(t, c, frame.Encode(hungry))

	testkit.Eventually(t, 2*time.Second, func() bool { return len(h.out.Lines()) == 1 }, "no report line")
	if got := h.out.Lines()[0]; got != hungryLine {
		t.Fatalf("line = %q, want %q", got, hungryLine)
	}
}

func TestByteByByte_SameLine(t *testing.T) {
	h := start(t, service.Config{FlushInterval: 50 * time.Millisecond})
	c := h.dial(t)
	for _, b := range frame.Encode(hungry) {
		send(t, c, []byte{b})
		time.Sleep(2 * time.Millisecond)
	}

	testkit.Eventually(t, 2*time.Second, func() bool { return len(h.out.Lines()) == 1 }, "no report line")
	if got := h.out.Lines()[0]; got != hungryLine {
		t.Fatalf("line = %q, want %q", got, hungryLine)
	}
}

func TestPipelined_BothAppearInStreamOrder(t *testing.T) {
	h := start(t, service.Config{FlushInterval: 100 * time.Millisecond})
	c := h.dial(t)
	second := frame.Thought{UserID: 2, Timestamp: hungry.Timestamp + 1, Text: "me too"}
	send(t, c, append(frame.Encode(hungry), frame.Encode(second)...))

	testkit.Eventually(t, 2*time.Second, func() bool { return len(h.out.Lines()) == 2 }, "expected two lines")
	lines := h.out.Lines()
	if lines[0] != hungryLine || lines[1] != "[2019-10-25 15:12:06] user 2: me too" {
		t.Fatalf("unexpected lines %q", lines)
	}
}

func TestText_AppearsVerbatim(t *testing.T) {
	h := start(t, service.Config{FlushInterval: 50 * time.Millisecond})
	c := h.dial(t)
	texts := []string{"Cafe\u0301 time", "col1\tcol2"}
	var b []byte
	for i, text := range texts {
		b = frame.Append(b, frame.Thought{UserID: uint32(i + 1), Timestamp: hungry.Timestamp, Text: text})
	}
	send(t, c, b)

	testkit.Eventually(t, 2*time.Second, func() bool { return len(h.out.Lines()) == 2 }, "missing report lines")
	lines := h.out.Lines()
	for i, text := range texts {
		want := "[2019-10-25 15:12:05] user " + string(rune('1'+i)) + ": " + text
		if lines[i] != want {
			t.Fatalf("line %d = %q, want %q", i, lines[i], want)
		}
		testkit.MustContain(t, lines[i], text)
	}
}

func TestCloseSuccession_AcrossFirstTwoFlushes(t *testing.T) {
	const interval = 100 * time.Millisecond
	h := start(t, service.Config{FlushInterval: interval})
	c := h.dial(t)
	send(t, c, frame.Encode(hungry))
	time.Sleep(interval / 2)
	send(t, c, frame.Encode(frame.Thought{UserID: 2, Timestamp: hungry.Timestamp, Text: "later"}))

	testkit.Eventually(t, 3*interval+time.Second, func() bool { return len(h.out.Lines()) == 2 }, "expected two lines")
	if w := h.out.Writes(); len(w) > 2 {
		t.Fatalf("expected at most two flush writes, got %d", len(w))
	}
}

func TestFirstOutput_BetweenOneAndTwoIntervals(t *testing.T) {
	const interval = 300 * time.Millisecond
	begin := time.Now()
	h := start(t, service.Config{FlushInterval: interval})
	c := h.dial(t)
	send(t, c, frame.Encode(hungry))

	for len(h.out.Writes()) == 0 {
		if time.Since(begin) > 5*interval {
			t.Fatalf("no output within %v", 5*interval)
		}
		time.Sleep(5 * time.Millisecond)
	}
	elapsed := time.Since(begin)
	if elapsed < interval || elapsed > 2*interval+200*time.Millisecond {
		t.Fatalf("first output after %v, want between %v and ~%v", elapsed, interval, 2*interval)
	}
}

func TestSilentTick_NoOutput(t *testing.T) {
	h := start(t, service.Config{FlushInterval: 20 * time.Millisecond})
	time.Sleep(120 * time.Millisecond)
	if got := h.out.String(); got != "" {
		t.Fatalf("expected no output on idle ticks, got %q", got)
	}
}

func TestBindInUse_ReturnsUnavailable(t *testing.T) {
	busy := testkit.Occupied(t)
	out := &testkit.SyncBuffer{}
	svc := service.New(modkit.Deps{Log: logger.Nop(), Out: out}, service.Config{Addr: busy.Addr().String()})

	err := svc.Run(context.Background())
	if err == nil {
		t.Fatalf("expected bind error")
	}
	if !perr.IsCode(err, perr.ErrorCodeUnavailable) {
		t.Fatalf("expected unavailable, got %v (%s)", err, perr.CodeOf(err))
	}
	testkit.MustContain(t, err.Error(), "address already in use")
	if svc.Addr() != nil {
		t.Fatalf("expected no bound address after failure")
	}
	if out.String() != "" {
		t.Fatalf("no report output expected, got %q", out.String())
	}
}

func TestShutdown_FinalFlushBeforeTick(t *testing.T) {
	h := start(t, service.Config{FlushInterval: time.Hour})
	c := h.dial(t)
	send(t, c, frame.Encode(hungry))
	testkit.Eventually(t, 2*time.Second, func() bool { return h.svc.Stats().Received == 1 }, "thought not received")

	if err := h.stop(t); err != nil {
		t.Fatalf("Run returned %v", err)
	}
	if got := h.out.Lines(); len(got) != 1 || got[0] != hungryLine {
		t.Fatalf("final flush = %q", got)
	}
}

func TestShutdown_GraceThenCloseIdleConns(t *testing.T) {
	h := start(t, service.Config{FlushInterval: time.Hour, ShutdownGrace: 50 * time.Millisecond})
	c := h.dial(t)
	// half a header stays pending until the server gives up on us
	send(t, c, frame.Encode(hungry)[:6])
	testkit.Eventually(t, 2*time.Second, func() bool { return h.svc.Stats().ActiveConns == 1 }, "conn not active")

	begin := time.Now()
	if err := h.stop(t); err != nil {
		t.Fatalf("Run returned %v", err)
	}
	if took := time.Since(begin); took > 2*time.Second {
		t.Fatalf("shutdown took %v", took)
	}
	st := h.svc.Stats()
	if st.ActiveConns != 0 || st.Dropped != 1 {
		t.Fatalf("unexpected stats after shutdown %+v", st)
	}
	if h.out.String() != "" {
		t.Fatalf("partial frame must not be reported, got %q", h.out.String())
	}
}

func TestShutdown_NoGraceWithFreshConns(t *testing.T) {
	for i := 0; i < 50; i++ {
		h := start(t, service.Config{FlushInterval: time.Hour})
		for j := 0; j < 4; j++ {
			h.dial(t)
		}
		if err := h.stop(t); err != nil {
			t.Fatalf("iteration %d: Run = %v", i, err)
		}
	}
}

func TestShutdown_StopsAccepting(t *testing.T) {
	h := start(t, service.Config{FlushInterval: time.Hour})
	addr := h.svc.Addr().String()
	if err := h.stop(t); err != nil {
		t.Fatalf("Run returned %v", err)
	}
	if c, err := net.DialTimeout("tcp", addr, 200*time.Millisecond); err == nil {
		_ = c.Close()
		t.Fatalf("expected dial to fail after shutdown")
	}
}

func TestDecodeError_ClosesOnlyThatConnection(t *testing.T) {
	h := start(t, service.Config{FlushInterval: 50 * time.Millisecond})

	bad := h.dial(t)
	hdr := make([]byte, frame.HeaderSize)
	binary.LittleEndian.PutUint32(hdr[0:], 9)
	binary.LittleEndian.PutUint32(hdr[4:], hungry.Timestamp)
	binary.LittleEndian.PutUint32(hdr[8:], 0xFFFFFFFF) // -1
	// a good frame first; it must still be reported
	send(t, bad, append(frame.Encode(hungry), hdr...))

	_ = bad.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, err := bad.Read(make([]byte, 1)); err == nil {
		t.Fatalf("expected server to close the malformed connection")
	}

	good := h.dial(t)
	send(t, good, frame.Encode(frame.Thought{UserID: 3, Timestamp: hungry.Timestamp, Text: "still here"}))

	testkit.Eventually(t, 2*time.Second, func() bool { return len(h.out.Lines()) == 2 }, "expected both good thoughts")
	testkit.MustContain(t, h.out.String(), hungryLine)
	testkit.MustContain(t, h.out.String(), "user 3: still here")
	testkit.MustNotContain(t, h.out.String(), "user 9")
	if st := h.svc.Stats(); st.Dropped != 1 {
		t.Fatalf("expected one drop, got %+v", st)
	}
}

func TestTruncatedStream_DiscardedSilently(t *testing.T) {
	h := start(t, service.Config{FlushInterval: 20 * time.Millisecond})
	c := h.dial(t)
	send(t, c, frame.Encode(hungry)[:15])
	_ = c.Close()

	testkit.Eventually(t, 2*time.Second, func() bool { return h.svc.Stats().Dropped == 1 }, "truncated frame not counted")
	time.Sleep(60 * time.Millisecond)
	if h.out.String() != "" {
		t.Fatalf("truncated frame must not be reported, got %q", h.out.String())
	}
}

func TestMaxThoughtBytes_RejectsOversized(t *testing.T) {
	h := start(t, service.Config{FlushInterval: 20 * time.Millisecond, MaxThoughtBytes: 4})
	c := h.dial(t)
	send(t, c, frame.Encode(hungry))

	testkit.Eventually(t, 2*time.Second, func() bool { return h.svc.Stats().Dropped == 1 }, "oversized frame not rejected")
	if h.out.String() != "" {
		t.Fatalf("oversized thought must not be reported")
	}
}

func TestReadTimeout_ClosesIdleConnection(t *testing.T) {
	h := start(t, service.Config{FlushInterval: time.Hour, ReadTimeout: 50 * time.Millisecond})
	c := h.dial(t)

	_ = c.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, err := c.Read(make([]byte, 1))
	var ne net.Error
	if err == nil || (errors.As(err, &ne) && ne.Timeout()) {
		t.Fatalf("expected server to close idle conn, got %v", err)
	}
	testkit.Eventually(t, time.Second, func() bool { return h.svc.Stats().ActiveConns == 0 }, "conn still active")
}

func TestMaxConns_QueuesExtraConnections(t *testing.T) {
	h := start(t, service.Config{FlushInterval: 20 * time.Millisecond, MaxConns: 1})

	first := h.dial(t)
	testkit.Eventually(t, 2*time.Second, func() bool { return h.svc.Stats().ActiveConns == 1 }, "first conn not active")

	second := h.dial(t)
	send(t, second, frame.Encode(hungry))
	time.Sleep(100 * time.Millisecond)
	if st := h.svc.Stats(); st.Received != 0 || st.TotalConns != 1 {
		t.Fatalf("second conn served past the cap: %+v", st)
	}

	_ = first.Close()
	testkit.Eventually(t, 2*time.Second, func() bool { return len(h.out.Lines()) == 1 }, "queued conn never served")
}

func TestConcurrentClients_NoLossNoDup(t *testing.T) {
	const clients, per = 10, 50
	h := start(t, service.Config{FlushInterval: 20 * time.Millisecond})

	errs := make(chan error, clients)
	for i := 0; i < clients; i++ {
		go func(id uint32) {
			c, err := net.Dial("tcp", h.svc.Addr().String())
			if err != nil {
				errs <- err
				return
			}
			defer c.Close()
			var b []byte
			for n := 0; n < per; n++ {
				b = frame.Append(b, frame.Thought{UserID: id, Timestamp: hungry.Timestamp, Text: strings.Repeat("x", n)})
			}
			_, err = c.Write(b)
			errs <- err
		}(uint32(i))
	}
	for j := 0; j < clients; j++ {
		if err := <-errs; err != nil {
			t.Fatalf("client: %v", err)
		}
	}

	testkit.Eventually(t, 5*time.Second, func() bool { return h.svc.Stats().Flushed == clients*per }, "missing thoughts")
	if got := len(h.out.Lines()); got != clients*per {
		t.Fatalf("expected %d lines, got %d", clients*per, got)
	}
	if st := h.svc.Stats(); st.Received != clients*per || st.TotalConns != clients {
		t.Fatalf("unexpected stats %+v", st)
	}
}

func TestFlush_Manual(t *testing.T) {
	h := start(t, service.Config{FlushInterval: time.Hour})
	if n, err := h.svc.Flush(); n != 0 || err != nil {
		t.Fatalf("empty flush = %d, %v", n, err)
	}

	c := h.dial(t)
	send(t, c, frame.Encode(hungry))
	testkit.Eventually(t, 2*time.Second, func() bool { return h.svc.Stats().Received == 1 }, "not received")
	n, err := h.svc.Flush()
	if n != 1 || err != nil {
		t.Fatalf("manual flush = %d, %v", n, err)
	}
	if got := h.out.Lines(); len(got) != 1 {
		t.Fatalf("manual flush output %q", got)
	}
	if st := h.svc.Stats(); st.Flushes != 1 || st.Buffered != 0 {
		t.Fatalf("unexpected stats %+v", st)
	}
}
