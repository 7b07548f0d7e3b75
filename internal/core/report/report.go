// Package report renders thoughts as human-readable report lines
//
//	[2019-10-25 15:12:05] user 1: I'm hungry
//
// The timestamp is rendered in the formatter's location (local time unless set).
// Thought text is copied byte for byte unless WithSingleLine is set.
package report

import (
	"strconv"
	"time"

	"thoughtsd/internal/core/frame"
)

// TimeLayout is the bracketed timestamp layout
const TimeLayout = "2006-01-02 15:04:05"

// Formatter renders thoughts; the zero value renders in time.Local
type Formatter struct {
	loc    *time.Location
	single bool
}

// Option configures a Formatter
type Option func(*Formatter)

// WithLocation renders timestamps in loc
func WithLocation(loc *time.Location) Option {
	return func(f *Formatter) { f.loc = loc }
}

// WithSingleLine folds line breaks in the text to spaces, see FoldLines
func WithSingleLine() Option {
	return func(f *Formatter) { f.single = true }
}

// New returns a Formatter
func New(opts ...Option) *Formatter {
	f := &Formatter{}
	for _, o := range opts {
		o(f)
	}
	return f
}

// Location returns the zone timestamps are rendered in
func (f *Formatter) Location() *time.Location {
	if f == nil || f.loc == nil {
		return time.Local
	}
	return f.loc
}

// Timestamp renders ts as "[YYYY-MM-DD HH:MM:SS]"
func (f *Formatter) Timestamp(ts uint32) string {
	return "[" + time.Unix(int64(ts), 0).In(f.Location()).Format(TimeLayout) + "]"
}

// AppendLine appends the newline-terminated report line for t to dst
func (f *Formatter) AppendLine(dst []byte, t frame.Thought) []byte {
	dst = append(dst, '[')
	dst = time.Unix(int64(t.Timestamp), 0).In(f.Location()).AppendFormat(dst, TimeLayout)
	dst = append(dst, "] user "...)
	dst = strconv.AppendUint(dst, uint64(t.UserID), 10)
	dst = append(dst, ": "...)
	if f != nil && f.single {
		dst = append(dst, FoldLines(t.Text)...)
	} else {
		dst = append(dst, t.Text...)
	}
	return append(dst, '\n')
}

// Line returns the report line for t without the trailing newline
func (f *Formatter) Line(t frame.Thought) string {
	b := f.AppendLine(nil, t)
	return string(b[:len(b)-1])
}

// Render renders every thought in order into one buffer
func (f *Formatter) Render(ts []frame.Thought) []byte {
	if len(ts) == 0 {
		return nil
	}
	var b []byte
	for _, t := range ts {
		b = f.AppendLine(b, t)
	}
	return b
}
