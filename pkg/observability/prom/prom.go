// Package prom implements the observability hooks with Prometheus metrics.
//
// Register the hooks once at startup and expose the registry over HTTP:
//
//	reg := prometheus.NewRegistry()
//	prom.New(reg).Install()
//	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
package prom

import (
	"context"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	perrors "github.com/matzehuels/parsegraph/pkg/errors"
	"github.com/matzehuels/parsegraph/pkg/httputil"
	"github.com/matzehuels/parsegraph/pkg/observability"
)

const namespace = "parsegraph"

// Metrics holds the collectors behind every hook.
type Metrics struct {
	analyses        *prometheus.CounterVec
	analyzeDuration prometheus.Histogram
	inflight        prometheus.Gauge

	cacheEvents *prometheus.CounterVec
	cacheSize   prometheus.Gauge

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
	httpErrors   *prometheus.CounterVec

	renders        *prometheus.CounterVec
	renderDuration *prometheus.HistogramVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		// analyses counts backend analyses by outcome
		analyses: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analyses_total",
			Help:      "Backend analyses by result",
		}, []string{"result"}),
		analyzeDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "analyze_duration_seconds",
			Help:      "Analysis duration including retries",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
		}),
		inflight: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "analyses_in_flight",
			Help:      "Analyses waiting for the backend",
		}),

		cacheEvents: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_events_total",
			Help:      "Result cache lookups and writes by key type and event",
		}, []string{"key_type", "event"}),
		cacheSize: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cache_entries",
			Help:      "Entries in the result cache after the last write",
		}),

		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Backend HTTP responses by method, path and status",
		}, []string{"method", "path", "status"}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Backend HTTP call duration",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
		httpErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_errors_total",
			Help:      "Backend HTTP calls that got no response, by kind",
		}, []string{"method", "path", "kind"}),

		renders: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "renders_total",
			Help:      "Graph renders by surface and result",
		}, []string{"surface", "result"}),
		renderDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "render_duration_seconds",
			Help:      "Graph layout and SVG generation duration",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		}, []string{"surface"}),
	}
}

// Install registers m as the global hooks.
func (m *Metrics) Install() {
	observability.SetAnalysisHooks(m)
	observability.SetCacheHooks(m)
	observability.SetHTTPHooks(m)
	observability.SetRenderHooks(m)
}

func (m *Metrics) OnAnalyzeStart(context.Context, string) {
	m.inflight.Inc()
}

func (m *Metrics) OnAnalyzeComplete(_ context.Context, _ string, d time.Duration, err error) {
	m.inflight.Dec()
	m.analyses.WithLabelValues(result(err)).Inc()
	m.analyzeDuration.Observe(d.Seconds())
}

func (m *Metrics) OnCacheHit(_ context.Context, keyType string) {
	m.cacheEvents.WithLabelValues(keyType, "hit").Inc()
}

func (m *Metrics) OnCacheMiss(_ context.Context, keyType string) {
	m.cacheEvents.WithLabelValues(keyType, "miss").Inc()
}

func (m *Metrics) OnCacheSet(_ context.Context, keyType string, size int) {
	m.cacheEvents.WithLabelValues(keyType, "set").Inc()
	m.cacheSize.Set(float64(size))
}

func (m *Metrics) OnRequest(context.Context, string, string, string) {}

func (m *Metrics) OnResponse(_ context.Context, method, _, path string, status int, d time.Duration) {
	m.httpRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, path).Observe(d.Seconds())
}

func (m *Metrics) OnError(_ context.Context, method, _, path string, err error) {
	m.httpErrors.WithLabelValues(method, path, errorKind(err)).Inc()
}

func (m *Metrics) OnRender(_ context.Context, surface string, d time.Duration, err error) {
	m.renders.WithLabelValues(surface, result(err)).Inc()
	m.renderDuration.WithLabelValues(surface).Observe(d.Seconds())
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

func errorKind(err error) string {
	switch httputil.CodeOf(err) {
	case perrors.ErrCodeTimeout:
		return "timeout"
	case perrors.ErrCodeNetwork:
		return "network"
	}
	return "other"
}
