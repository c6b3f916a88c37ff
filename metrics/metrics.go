// Package metrics exposes optional Prometheus instrumentation for a
// Kataribe runtime. It is opt-in by construction: importing this package
// pulls in prometheus/client_golang, so nothing in envelope, contract,
// middleware, pending, or runtime imports it — callers who want metrics
// add Middleware to their own Options.Middlewares slice.
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/yamayuski/kataribe/middleware"
)

// Metrics holds the Prometheus collectors tracking envelope traffic and
// pending-call health. Register it with a prometheus.Registerer before
// use.
type Metrics struct {
	EnvelopesTotal  *prometheus.CounterVec
	RPCLatency      *prometheus.HistogramVec
	PendingDepth    prometheus.Gauge
	TimeoutRejects  prometheus.Counter
	ShutdownRejects prometheus.Counter
}

// New constructs and registers a Metrics set on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		EnvelopesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kataribe",
			Name:      "envelopes_total",
			Help:      "Total envelopes processed, by direction and kind.",
		}, []string{"direction", "kind"}),
		RPCLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "kataribe",
			Name:      "rpc_latency_seconds",
			Help:      "Age of an envelope (now minus its ts), observed in the inbound or outbound middleware pipeline.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"direction", "kind"}),
		PendingDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "kataribe",
			Name:      "pending_calls",
			Help:      "Best-effort snapshot of outstanding pending calls, updated per envelope.",
		}),
		TimeoutRejects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "kataribe",
			Name:      "pending_timeouts_total",
			Help:      "Pending calls rejected for exceeding their timeout.",
		}),
		ShutdownRejects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "kataribe",
			Name:      "pending_shutdown_rejects_total",
			Help:      "Pending calls rejected because the runtime shut down before a response arrived.",
		}),
	}

	reg.MustRegister(m.EnvelopesTotal, m.RPCLatency, m.PendingDepth, m.TimeoutRejects, m.ShutdownRejects)
	return m
}

// Middleware returns a middleware.Func recording traffic counts and
// envelope age. Register it first in the pipeline so later middleware
// errors (rate limiting, etc.) are still counted as observed traffic.
func (m *Metrics) Middleware() middleware.Func {
	return func(_ context.Context, ec *middleware.EnvelopeContext) error {
		dir := string(ec.Direction)
		kind := string(ec.Envelope.Kind)

		m.EnvelopesTotal.WithLabelValues(dir, kind).Inc()

		age := time.Since(time.UnixMilli(ec.Envelope.TS))
		m.RPCLatency.WithLabelValues(dir, kind).Observe(age.Seconds())

		return nil
	}
}

// ObservePendingCount reports n as the current pending-call depth. A
// caller typically polls Client.PendingCount / Connection.PendingCount
// on a ticker and feeds the result here, since the pending table itself
// has no metrics hook.
func (m *Metrics) ObservePendingCount(n int) {
	m.PendingDepth.Set(float64(n))
}

// RecordTimeoutReject increments the count of pending calls rejected for
// exceeding their timeout.
func (m *Metrics) RecordTimeoutReject() {
	m.TimeoutRejects.Inc()
}

// RecordShutdownReject increments the count of pending calls rejected by
// AbandonAll during shutdown.
func (m *Metrics) RecordShutdownReject() {
	m.ShutdownRejects.Inc()
}
