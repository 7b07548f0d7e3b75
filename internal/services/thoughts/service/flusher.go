package service

import (
	"context"
	"time"

	perr "thoughtsd/internal/platform/errors"
)

// flushLoop drains the buffer every FlushInterval until ctx is done
func (s *Svc) flushLoop(ctx context.Context) error {
	t := time.NewTicker(s.config.FlushInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			if _, err := s.Flush(); err != nil {
				s.log.Error().Err(err).Msg("flush failed")
			}
		}
	}
}

// Flush drains the buffer and writes every record to the report output in one write
// An empty buffer writes nothing
func (s *Svc) Flush() (int, error) {
	s.flushMu.Lock()
	defer s.flushMu.Unlock()

	start := time.Now()
	ts := s.buf.DrainAll()
	if len(ts) == 0 {
		s.metrics.ObserveFlush(0, 0, nil)
		return 0, nil
	}

	_, err := s.out.Write(s.format.Render(ts))
	if err != nil {
		err = perr.Wrapf(err, perr.ErrorCodeIO, "write %d report lines", len(ts))
	} else {
		s.flushed.Add(int64(len(ts)))
	}
	s.flushes.Add(1)
	s.metrics.ObserveFlush(len(ts), time.Since(start), err)
	return len(ts), err
}
