// Package service contains the thought server: listener, per-connection
// handlers, the shared buffer flusher and graceful shutdown
package service

import (
	"context"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"thoughtsd/internal/core/report"
	"thoughtsd/internal/modkit"
	perr "thoughtsd/internal/platform/errors"
	"thoughtsd/internal/platform/logger"
	"thoughtsd/internal/platform/metrics"
	"thoughtsd/internal/services/thoughts/buffer"
	"thoughtsd/internal/services/thoughts/domain"

	"golang.org/x/sync/errgroup"
)

// Service defines the thoughts service contract
type Service interface {
	domain.ServerPort
	domain.FlusherPort
	domain.StatsPort
}

// Config carries runtime knobs for the server
type Config struct {
	Addr            string
	FlushInterval   time.Duration
	ReadBufferSize  int
	ReadTimeout     time.Duration
	MaxConns        int
	MaxThoughtBytes int
	ShutdownGrace   time.Duration
	Location        *time.Location
	SingleLine      bool
}

// Svc implements the thoughts service
type Svc struct {
	deps    modkit.Deps
	config  Config
	log     logger.Logger
	out     io.Writer
	buf     domain.BufferPort
	format  *report.Formatter
	metrics *metrics.Collector

	mu      sync.Mutex
	ln      net.Listener
	conns   map[net.Conn]struct{}
	started time.Time

	handlers sync.WaitGroup
	flushMu  sync.Mutex

	active   atomic.Int64
	total    atomic.Int64
	received atomic.Int64
	flushed  atomic.Int64
	dropped  atomic.Int64
	flushes  atomic.Int64
}

var _ Service = (*Svc)(nil)

// New constructs a thoughts service writing its report to deps.Output()
func New(deps modkit.Deps, cfg Config) *Svc {
	cfg = withDefaults(cfg)

	m := deps.Metrics
	if m == nil {
		m = metrics.NewCollector("thoughtsd")
	}
	fopts := []report.Option{report.WithLocation(cfg.Location)}
	if cfg.SingleLine {
		fopts = append(fopts, report.WithSingleLine())
	}

	s := &Svc{
		deps:    deps,
		config:  cfg,
		log:     deps.Log.With().Str("component", "thoughts").Logger(),
		out:     deps.Output(),
		buf:     buffer.New(64),
		format:  report.New(fopts...),
		metrics: m,
		conns:   make(map[net.Conn]struct{}),
	}
	m.TrackBufferDepth(s.buf.Len)
	return s
}

// withDefaults fills zero values with the documented defaults
func withDefaults(cfg Config) Config {
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = time.Second
	}
	if cfg.ReadBufferSize <= 0 {
		cfg.ReadBufferSize = 4096
	}
	if cfg.ShutdownGrace < 0 {
		cfg.ShutdownGrace = 0
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	return cfg
}

// Listen binds the configured address. Calling it again after a successful bind is a no-op
func (s *Svc) Listen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln != nil {
		return nil
	}
	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return perr.FromNet(err, "listen "+s.config.Addr)
	}
	s.ln = ln
	s.log.Info().Str("addr", ln.Addr().String()).Msg("listening")
	return nil
}

// Addr returns the bound address, nil before Listen
func (s *Svc) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Run serves until ctx is done, then stops accepting, waits up to ShutdownGrace
// for open connections, closes the rest and performs one final flush
// A bind failure is returned before anything is served
func (s *Svc) Run(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}
	s.mu.Lock()
	s.started = time.Now()
	ln := s.ln
	s.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.acceptLoop(gctx, ln) })
	g.Go(func() error { return s.flushLoop(gctx) })
	g.Go(func() error {
		<-gctx.Done()
		// unblocks Accept
		_ = ln.Close()
		return nil
	})
	err := g.Wait()

	s.shutdown()
	return err
}

// shutdown drains handlers and performs the final flush
func (s *Svc) shutdown() {
	log := s.log
	if !waitTimeout(&s.handlers, s.config.ShutdownGrace) {
		n := s.closeConns()
		log.Debug().Int("conns", n).Msg("grace elapsed, closing open connections")
		s.handlers.Wait()
	}
	n, err := s.Flush()
	if err != nil {
		log.Error().Err(err).Msg("final flush failed")
	}
	log.Info().Int("flushed", n).Msg("stopped")
}

// Stats returns a snapshot of server activity
func (s *Svc) Stats() domain.Stats {
	st := domain.Stats{
		Buffered:    s.buf.Len(),
		ActiveConns: s.active.Load(),
		TotalConns:  s.total.Load(),
		Received:    s.received.Load(),
		Flushed:     s.flushed.Load(),
		Dropped:     s.dropped.Load(),
		Flushes:     s.flushes.Load(),
	}
	s.mu.Lock()
	if s.ln != nil {
		st.Addr = s.ln.Addr().String()
	}
	st.StartedAt = s.started
	s.mu.Unlock()
	return st
}

// Metrics returns the collector the service reports into
func (s *Svc) Metrics() *metrics.Collector { return s.metrics }

func (s *Svc) track(c net.Conn) {
	s.mu.Lock()
	s.conns[c] = struct{}{}
	s.mu.Unlock()
}

func (s *Svc) untrack(c net.Conn) {
	s.mu.Lock()
	delete(s.conns, c)
	s.mu.Unlock()
}

func (s *Svc) closeConns() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.conns {
		_ = c.Close()
	}
	return len(s.conns)
}

// waitTimeout waits for wg up to d and reports whether it finished
func waitTimeout(wg *sync.WaitGroup, d time.Duration) bool {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-done:
		return true
	case <-t.C:
		return false
	}
}
