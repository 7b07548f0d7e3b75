// Package http exposes the thoughts admin endpoints
package http

import (
	stdhttp "net/http"
	"time"

	"thoughtsd/internal/core/version"
	"thoughtsd/internal/platform/metrics"
	phttp "thoughtsd/internal/platform/net/http"
	"thoughtsd/internal/services/thoughts/domain"
)

// Health is the /healthz payload
type Health struct {
	Status  string `json:"status"`
	Addr    string `json:"addr,omitempty"`
	Uptime  string `json:"uptime,omitempty"`
	Version string `json:"version"`
}

// Register mounts /healthz, /stats and /metrics
func Register(r phttp.Router, stats domain.StatsPort, m *metrics.Collector) {
	r.Get("/healthz", phttp.Handle(func(*stdhttp.Request) (any, error) {
		return health(stats.Stats(), time.Now()), nil
	}))
	r.Get("/stats", phttp.Handle(func(*stdhttp.Request) (any, error) {
		return stats.Stats(), nil
	}))
	if m != nil {
		r.Handle("/metrics", m.Handler())
	}
}

func health(st domain.Stats, now time.Time) Health {
	h := Health{Status: "ok", Addr: st.Addr, Version: version.Info("thoughtsd").Version}
	if st.Addr == "" {
		h.Status = "starting"
	}
	if !st.StartedAt.IsZero() {
		h.Uptime = now.Sub(st.StartedAt).Truncate(time.Second).String()
	}
	return h
}
