// Package frame implements the thought wire format
//
// A frame is a fixed 12 byte little-endian header followed by the payload
//
//	offset 0  uint32 user_id
//	offset 4  uint32 timestamp (unix seconds)
//	offset 8  int32  thought_length
//	offset 12 thought_length bytes of UTF-8 text
//
// There is no delimiter; the length field alone marks where the next frame starts
package frame

import (
	"encoding/binary"
	"time"

	perr "thoughtsd/internal/platform/errors"
)

// HeaderSize is the fixed header length in bytes
const HeaderSize = 12

// Header is the fixed-size frame prefix
type Header struct {
	UserID        uint32
	Timestamp     uint32
	ThoughtLength int32
}

// FrameSize returns header plus payload length; only meaningful when ThoughtLength >= 0
// It is int64 so a length near MaxInt32 cannot wrap on 32-bit platforms
func (h Header) FrameSize() int64 { return HeaderSize + int64(h.ThoughtLength) }

// ParseHeader reads a header from the first HeaderSize bytes of b
func ParseHeader(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, perr.Truncatedf("header needs %d bytes, have %d", HeaderSize, len(b))
	}
	h := Header{
		UserID:        binary.LittleEndian.Uint32(b[0:4]),
		Timestamp:     binary.LittleEndian.Uint32(b[4:8]),
		ThoughtLength: int32(binary.LittleEndian.Uint32(b[8:12])),
	}
	if h.ThoughtLength < 0 {
		return h, perr.Decodef("negative thought length %d", h.ThoughtLength)
	}
	return h, nil
}

// AppendHeader appends the wire form of h to dst
func AppendHeader(dst []byte, h Header) []byte {
	dst = binary.LittleEndian.AppendUint32(dst, h.UserID)
	dst = binary.LittleEndian.AppendUint32(dst, h.Timestamp)
	return binary.LittleEndian.AppendUint32(dst, uint32(h.ThoughtLength))
}

// Thought is one decoded record. Values are immutable once built
type Thought struct {
	UserID    uint32
	Timestamp uint32
	Text      string
}

// Time returns the timestamp as a time.Time in the local zone
func (t Thought) Time() time.Time { return time.Unix(int64(t.Timestamp), 0) }

// Header returns the header that frames t on the wire
func (t Thought) Header() Header {
	return Header{UserID: t.UserID, Timestamp: t.Timestamp, ThoughtLength: int32(len(t.Text))}
}

// Append appends the full wire frame of t to dst
func Append(dst []byte, t Thought) []byte {
	dst = AppendHeader(dst, t.Header())
	return append(dst, t.Text...)
}

// Encode returns the full wire frame of t
func Encode(t Thought) []byte {
	return Append(make([]byte, 0, HeaderSize+len(t.Text)), t)
}
