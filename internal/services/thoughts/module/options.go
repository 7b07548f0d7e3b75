package module

import (
	"time"

	"thoughtsd/internal/platform/config"
	"thoughtsd/internal/platform/validate"
)

// Options controls the thought server. Values may also be read from env
type Options struct {
	Addr string `name:"addr" validate:"required,listen_addr"`

	FlushInterval   time.Duration  `name:"flush_interval" validate:"gt=0"`
	ReadBufferSize  int            `name:"read_buffer" validate:"min=16,max=1048576"`
	ReadTimeout     time.Duration  `name:"read_timeout" validate:"gte=0"`
	MaxConns        int            `name:"max_conns" validate:"gte=0"`
	MaxThoughtBytes int            `name:"max_thought_bytes" validate:"gte=0"`
	ShutdownGrace   time.Duration  `name:"shutdown_grace" validate:"gte=0"`
	Location        *time.Location `validate:"-"`
	SingleLine      bool

	// Admin surface; empty AdminAddr disables it
	AdminAddr  string `name:"admin_addr" validate:"omitempty,listen_addr"`
	AdminPprof bool
}

// FromConfig reads options using the THOUGHTS_ prefix
func FromConfig(cfg config.Conf) Options {
	th := cfg.Prefix("THOUGHTS_")
	return Options{
		Addr:            th.MayString("ADDR", ""),
		FlushInterval:   th.MayDuration("FLUSH_INTERVAL", time.Second),
		ReadBufferSize:  th.MayInt("READ_BUFFER", 4096),
		ReadTimeout:     th.MayDuration("READ_TIMEOUT", 0),
		MaxConns:        th.MayInt("MAX_CONNS", 0),
		MaxThoughtBytes: th.MayInt("MAX_THOUGHT_BYTES", 0),
		ShutdownGrace:   th.MayDuration("SHUTDOWN_GRACE", 500*time.Millisecond),
		Location:        th.MayLocation("TIMEZONE", time.Local),
		SingleLine:      th.MayBool("SINGLE_LINE", false),
		AdminAddr:       th.MayString("ADMIN_ADDR", ""),
		AdminPprof:      th.MayBool("ADMIN_PPROF", false),
	}
}

// merge applies non-zero overrides on top of o
func (o Options) merge(over Options) Options {
	if over.Addr != "" {
		o.Addr = over.Addr
	}
	if over.FlushInterval != 0 {
		o.FlushInterval = over.FlushInterval
	}
	if over.ReadBufferSize != 0 {
		o.ReadBufferSize = over.ReadBufferSize
	}
	if over.ReadTimeout != 0 {
		o.ReadTimeout = over.ReadTimeout
	}
	if over.MaxConns != 0 {
		o.MaxConns = over.MaxConns
	}
	if over.MaxThoughtBytes != 0 {
		o.MaxThoughtBytes = over.MaxThoughtBytes
	}
	if over.ShutdownGrace != 0 {
		o.ShutdownGrace = over.ShutdownGrace
	}
	if over.Location != nil {
		o.Location = over.Location
	}
	if over.SingleLine {
		o.SingleLine = true
	}
	if over.AdminAddr != "" {
		o.AdminAddr = over.AdminAddr
	}
	if over.AdminPprof {
		o.AdminPprof = true
	}
	return o
}

// Validate checks option ranges
func (o Options) Validate() error { return validate.Struct(o) }
