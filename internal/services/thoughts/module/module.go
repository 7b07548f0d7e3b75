// Package module wires the thoughts service and exposes its ports
package module

import (
	"thoughtsd/internal/modkit"
	"thoughtsd/internal/platform/metrics"
	phttp "thoughtsd/internal/platform/net/http"

	thttp "thoughtsd/internal/services/thoughts/http"
	"thoughtsd/internal/services/thoughts/service"
)

// Module defines the thoughts module
type Module struct {
	deps  modkit.Deps
	opts  Options
	svc   *service.Svc
	ports Ports
}

// New constructs the thoughts module; config values are loaded first, then non-zero overrides win
// Invalid options return an ErrorCodeValidation error
func New(deps modkit.Deps, overrides Options) (*Module, error) {
	opts := FromConfig(deps.Cfg).merge(overrides)
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.NewCollector("thoughtsd")
	}

	svc := service.New(deps, service.Config{
		Addr:            opts.Addr,
		FlushInterval:   opts.FlushInterval,
		ReadBufferSize:  opts.ReadBufferSize,
		ReadTimeout:     opts.ReadTimeout,
		MaxConns:        opts.MaxConns,
		MaxThoughtBytes: opts.MaxThoughtBytes,
		ShutdownGrace:   opts.ShutdownGrace,
		Location:        opts.Location,
		SingleLine:      opts.SingleLine,
	})

	m := &Module{deps: deps, opts: opts, svc: svc}
	m.ports = Ports{
		Server:  svc,
		Flusher: svc,
		Stats:   svc,
	}
	return m, nil
}

// Name returns the module name
func (m *Module) Name() string { return "thoughts" }

// Ports returns the module ports (Server, Flusher, Stats)
func (m *Module) Ports() any { return m.ports }

// Options returns the effective options after config and overrides
func (m *Module) Options() Options { return m.opts }

// Service returns the underlying service
func (m *Module) Service() *service.Svc { return m.svc }

// MountRoutes mounts health, stats, metrics and (optionally) pprof on the admin router
func (m *Module) MountRoutes(r phttp.Router) {
	thttp.Register(r, m.ports.Stats, m.deps.Metrics)
	phttp.MountProfiler(r, "/debug", m.opts.AdminPprof)
}

var _ modkit.Module = (*Module)(nil)
