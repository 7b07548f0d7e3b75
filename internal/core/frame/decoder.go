package frame

import (
	"unicode/utf8"

	perr "thoughtsd/internal/platform/errors"
)

// Option configures a Decoder
type Option func(*Decoder)

// WithMaxThought rejects frames whose payload exceeds n bytes (n <= 0 means no cap)
func WithMaxThought(n int) Option {
	return func(d *Decoder) { d.max = n }
}

// Decoder turns an arbitrarily chunked byte stream into Thoughts
// A Decoder belongs to one connection and is not safe for concurrent use
type Decoder struct {
	buf []byte
	max int
	err error

	// frames holds the count of thoughts emitted so far
	frames int
}

// NewDecoder returns an empty decoder
func NewDecoder(opts ...Option) *Decoder {
	d := &Decoder{}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Feed appends chunk and returns every thought that is now complete, in stream order
// Thoughts completed before a malformed frame are returned together with the error.
// After an error the decoder refuses further input until Reset
func (d *Decoder) Feed(chunk []byte) ([]Thought, error) {
	if d.err != nil {
		return nil, d.err
	}
	d.buf = append(d.buf, chunk...)

	var out []Thought
	off := 0
	for len(d.buf)-off >= HeaderSize {
		h, err := ParseHeader(d.buf[off:])
		if err != nil {
			d.fail(err)
			return out, d.err
		}
		if d.max > 0 && int(h.ThoughtLength) > d.max {
			d.fail(perr.Decodef("thought length %d exceeds cap %d", h.ThoughtLength, d.max))
			return out, d.err
		}
		// compare before adding so HeaderSize+length never overflows int
		if len(d.buf)-off-HeaderSize < int(h.ThoughtLength) {
			break
		}
		size := HeaderSize + int(h.ThoughtLength)
		payload := d.buf[off+HeaderSize : off+size]
		if !utf8.Valid(payload) {
			d.fail(perr.Decodef("thought from user %d is not valid UTF-8", h.UserID))
			return out, d.err
		}
		out = append(out, Thought{UserID: h.UserID, Timestamp: h.Timestamp, Text: string(payload)})
		d.frames++
		off += size
	}

	// compact so the buffer only ever holds the unfinished frame
	if off > 0 {
		n := copy(d.buf, d.buf[off:])
		d.buf = d.buf[:n]
	}
	return out, nil
}

// Pending reports how many bytes of an unfinished frame are buffered
func (d *Decoder) Pending() int { return len(d.buf) }

// Frames reports how many thoughts have been emitted since the last Reset
func (d *Decoder) Frames() int { return d.frames }

// Err returns the sticky decode error, if any
func (d *Decoder) Err() error { return d.err }

// Close ends the stream. A partially received frame yields ErrorCodeTruncated
func (d *Decoder) Close() error {
	if d.err != nil {
		return d.err
	}
	if n := len(d.buf); n > 0 {
		d.buf = nil
		return perr.Truncatedf("stream closed with %d bytes of an incomplete frame", n)
	}
	return nil
}

// Reset drops all buffered bytes and any sticky error
func (d *Decoder) Reset() {
	d.buf = nil
	d.err = nil
	d.frames = 0
}

func (d *Decoder) fail(err error) {
	d.err = err
	d.buf = nil
}
