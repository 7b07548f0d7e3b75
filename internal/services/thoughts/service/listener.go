package service

import (
	"context"
	"net"
	"time"

	perr "thoughtsd/internal/platform/errors"

	"golang.org/x/sync/semaphore"
)

const (
	acceptBackoffMin = 5 * time.Millisecond
	acceptBackoffMax = time.Second
)

// acceptLoop hands every accepted connection to its own goroutine and never waits on them
// It returns nil once the listener is closed
func (s *Svc) acceptLoop(ctx context.Context, ln net.Listener) error {
	var sem *semaphore.Weighted
	if s.config.MaxConns > 0 {
		sem = semaphore.NewWeighted(int64(s.config.MaxConns))
	}
	release := func() {
		if sem != nil {
			sem.Release(1)
		}
	}

	var backoff time.Duration
	for {
		if sem != nil {
			if err := sem.Acquire(ctx, 1); err != nil {
				return nil
			}
		}

		conn, err := ln.Accept()
		if err != nil {
			release()
			if perr.IsClosed(err) || ctx.Err() != nil {
				return nil
			}
			if backoff == 0 {
				backoff = acceptBackoffMin
			} else {
				backoff = min(backoff*2, acceptBackoffMax)
			}
			s.log.Warn().Err(err).Dur("retry_in", backoff).Msg("accept failed")
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(backoff):
			}
			continue
		}
		backoff = 0

		// tracked before the goroutine starts so closeConns always sees it
		s.track(conn)
		s.handlers.Add(1)
		go func() {
			defer s.handlers.Done()
			defer release()
			s.handle(ctx, conn)
		}()
	}
}
