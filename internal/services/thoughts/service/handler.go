package service

import (
	"context"
	"errors"
	"io"
	"net"
	"time"

	"thoughtsd/internal/core/frame"
	perr "thoughtsd/internal/platform/errors"
	"thoughtsd/internal/platform/logger"
	"thoughtsd/internal/platform/metrics"

	"github.com/google/uuid"
)

// handle reads one connection to completion, buffering every decoded thought in stream order
// The caller has already tracked conn
func (s *Svc) handle(ctx context.Context, conn net.Conn) {
	defer s.untrack(conn)
	defer conn.Close()

	cctx := logger.WithConn(ctx, uuid.NewString(), conn.RemoteAddr().String())
	log := logger.From(cctx, s.log)

	s.total.Add(1)
	s.active.Add(1)
	s.metrics.ConnsAccepted.Inc()
	s.metrics.ConnsActive.Inc()
	defer func() {
		s.active.Add(-1)
		s.metrics.ConnsActive.Dec()
	}()
	log.Debug().Msg("connection opened")

	dec := frame.NewDecoder(frame.WithMaxThought(s.config.MaxThoughtBytes))
	chunk := make([]byte, s.config.ReadBufferSize)
	for {
		if s.config.ReadTimeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))
		}
		n, err := conn.Read(chunk)
		if n > 0 {
			s.metrics.BytesRead.Add(float64(n))
			ts, derr := dec.Feed(chunk[:n])
			s.accept(ts)
			if derr != nil {
				s.drop(metrics.DropDecode)
				log.Warn().Err(derr).Str("code", perr.CodeOf(derr).String()).
					Int("frames", dec.Frames()).Msg("malformed frame, closing connection")
				return
			}
		}
		if err != nil {
			s.finish(log, dec, err)
			return
		}
	}
}

// accept appends decoded thoughts to the shared buffer
func (s *Svc) accept(ts []frame.Thought) {
	for _, t := range ts {
		s.buf.Append(t)
	}
	if n := len(ts); n > 0 {
		s.received.Add(int64(n))
		s.metrics.ThoughtsReceived.Add(float64(n))
	}
}

// finish classifies how a stream ended; truncated frames are discarded without noise
func (s *Svc) finish(log *logger.Logger, dec *frame.Decoder, err error) {
	frames := dec.Frames()
	if errors.Is(err, io.EOF) || perr.IsClosed(err) {
		if cerr := dec.Close(); cerr != nil {
			s.drop(metrics.DropTruncated)
			log.Debug().Err(cerr).Int("frames", frames).Msg("connection closed mid-frame")
			return
		}
		log.Debug().Int("frames", frames).Msg("connection closed")
		return
	}

	rerr := perr.FromNet(err, "read")
	if dec.Pending() > 0 {
		s.drop(metrics.DropIO)
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		log.Debug().Err(rerr).Int("frames", frames).Msg("connection idle, closing")
		return
	}
	log.Warn().Err(rerr).Int("frames", frames).Msg("connection read failed")
}

func (s *Svc) drop(reason string) {
	s.dropped.Add(1)
	s.metrics.Dropped(reason)
}
