// Package metrics holds the Prometheus collectors for the thought server
// Each Collector owns a private registry so tests and multiple servers never collide
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Drop reasons used as the "reason" label on FramesDropped
const (
	DropTruncated = "truncated"
	DropDecode    = "decode"
	DropIO        = "io"
)

// Collector holds all Prometheus metrics for the server
type Collector struct {
	registry  *prometheus.Registry
	namespace string
	depthOnce sync.Once

	// Connection metrics
	ConnsAccepted prometheus.Counter
	ConnsActive   prometheus.Gauge
	BytesRead     prometheus.Counter

	// Thought metrics
	ThoughtsReceived prometheus.Counter
	ThoughtsFlushed  prometheus.Counter
	FramesDropped    *prometheus.CounterVec

	// Flush metrics
	Flushes       *prometheus.CounterVec
	FlushDuration prometheus.Histogram
}

// NewCollector creates a collector with the given namespace, e.g. "thoughtsd"
func NewCollector(namespace string) *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry:  registry,
		namespace: namespace,
		ConnsAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_accepted_total",
			Help:      "Total number of accepted client connections",
		}),
		ConnsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections_active",
			Help:      "Client connections currently being read",
		}),
		BytesRead: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_read_total",
			Help:      "Total bytes read from client connections",
		}),
		ThoughtsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "thoughts_received_total",
			Help:      "Thoughts fully decoded and buffered",
		}),
		ThoughtsFlushed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "thoughts_flushed_total",
			Help:      "Thoughts written to the report output",
		}),
		FramesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_dropped_total",
			Help:      "Connections that ended with an undelivered frame, by reason",
		}, []string{"reason"}),
		Flushes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flushes_total",
			Help:      "Flush cycles by result (written, empty, error)",
		}, []string{"result"}),
		FlushDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "flush_duration_seconds",
			Help:      "Time spent formatting and writing one flush",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
		}),
	}

	registry.MustRegister(
		c.ConnsAccepted,
		c.ConnsActive,
		c.BytesRead,
		c.ThoughtsReceived,
		c.ThoughtsFlushed,
		c.FramesDropped,
		c.Flushes,
		c.FlushDuration,
		collectors.NewGoCollector(),
	)
	return c
}

// TrackBufferDepth exports depth() as the buffer_depth gauge, read at scrape time
// Only the first call on a collector registers the gauge
func (c *Collector) TrackBufferDepth(depth func() int) {
	if c == nil || depth == nil {
		return
	}
	c.depthOnce.Do(func() {
		c.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: c.namespace,
			Name:      "buffer_depth",
			Help:      "Thoughts waiting for the next flush",
		}, func() float64 { return float64(depth()) }))
	})
}

// Dropped counts one undelivered frame for reason
func (c *Collector) Dropped(reason string) {
	if c == nil {
		return
	}
	c.FramesDropped.WithLabelValues(reason).Inc()
}

// ObserveFlush records one flush cycle
func (c *Collector) ObserveFlush(n int, took time.Duration, err error) {
	if c == nil {
		return
	}
	switch {
	case err != nil:
		c.Flushes.WithLabelValues("error").Inc()
	case n == 0:
		c.Flushes.WithLabelValues("empty").Inc()
		return
	default:
		c.Flushes.WithLabelValues("written").Inc()
		c.ThoughtsFlushed.Add(float64(n))
	}
	c.FlushDuration.Observe(took.Seconds())
}

// Registry returns the Prometheus registry for this collector
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler serves the registry in the Prometheus exposition format
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}
