// Package client uploads thoughts to a thoughtsd server, one connection per thought
package client

import (
	"context"
	"math"
	"net"
	"time"
	"unicode/utf8"

	"thoughtsd/internal/core/frame"
	perr "thoughtsd/internal/platform/errors"
	"thoughtsd/internal/platform/logger"
)

const (
	defaultTimeout   = 5 * time.Second
	defaultMaxRetry  = 3
	defaultRetryBase = 100 * time.Millisecond
	maxBackoff       = 5 * time.Second
)

// Options configures the Client
type Options struct {
	// Timeout bounds one dial+write attempt
	Timeout time.Duration

	// Retry config for refused/unavailable dials; 0 uses the default, negative disables retries
	MaxRetries int
	RetryBase  time.Duration
}

// Client sends framed thoughts to one server address
type Client struct {
	addr string
	opts Options
	log  logger.Logger
	now  func() time.Time
	dial func(ctx context.Context, network, addr string) (net.Conn, error)
	wait func(ctx context.Context, d time.Duration) error
}

// New creates a Client for addr with sane defaults
func New(addr string, o Options) *Client {
	if o.Timeout <= 0 {
		o.Timeout = defaultTimeout
	}
	if o.MaxRetries == 0 {
		o.MaxRetries = defaultMaxRetry
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	if o.RetryBase <= 0 {
		o.RetryBase = defaultRetryBase
	}
	d := &net.Dialer{Timeout: o.Timeout}
	return &Client{
		addr: addr,
		opts: o,
		log:  *logger.Named("upload"),
		now:  time.Now,
		dial: d.DialContext,
		wait: sleepCtx,
	}
}

// Upload sends text for userID stamped with the current time
func (c *Client) Upload(ctx context.Context, userID uint32, text string) error {
	return c.Send(ctx, frame.Thought{UserID: userID, Timestamp: uint32(c.now().Unix()), Text: text})
}

// Send writes t as one frame on a fresh connection and closes it
func (c *Client) Send(ctx context.Context, t frame.Thought) error {
	if !utf8.ValidString(t.Text) {
		return perr.InvalidArgf("thought is not valid UTF-8")
	}
	if len(t.Text) > math.MaxInt32 {
		return perr.InvalidArgf("thought of %d bytes does not fit a frame", len(t.Text))
	}
	payload := frame.Encode(t)

	attempts := 0
	for {
		err := c.sendOnce(ctx, payload)
		if err == nil {
			c.log.Debug().Str("addr", c.addr).Uint32("user_id", t.UserID).Int("bytes", len(payload)).Msg("thought uploaded")
			return nil
		}
		if ctx.Err() != nil || !perr.IsRetryable(err) || attempts >= c.opts.MaxRetries {
			return err
		}
		back := c.backoff(attempts)
		c.log.Warn().Err(err).Dur("retry_in", back).Int("attempt", attempts).Msg("upload failed, retrying")
		if werr := c.wait(ctx, back); werr != nil {
			return err
		}
		attempts++
	}
}

func (c *Client) sendOnce(ctx context.Context, payload []byte) error {
	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	conn, err := c.dial(ctx, "tcp", c.addr)
	if err != nil {
		return perr.FromNet(err, "dial "+c.addr)
	}
	defer conn.Close()

	if dl, ok := ctx.Deadline(); ok {
		_ = conn.SetWriteDeadline(dl)
	}
	if _, err := conn.Write(payload); err != nil {
		return perr.FromNet(err, "write")
	}
	return nil
}

func (c *Client) backoff(attempt int) time.Duration {
	// simple exponential with cap
	d := c.opts.RetryBase << uint(attempt)
	if d <= 0 || d > maxBackoff {
		d = maxBackoff
	}
	return d
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
