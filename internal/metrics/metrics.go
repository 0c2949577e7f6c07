// Package metrics defines the Prometheus collectors for decoding and exposes
// an HTTP handler for scraping.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors recorded by the pipeline and the server.
type Metrics struct {
	DecodeDuration      *prometheus.HistogramVec
	DecodesTotal        *prometheus.CounterVec
	DecodeSteps         prometheus.Histogram
	CacheHitsTotal      prometheus.Counter
	CacheMissesTotal    prometheus.Counter
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	FeatureReloadsTotal *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// Decode outcomes used as the "result" label of DecodesTotal.
const (
	ResultComplete = "complete"
	ResultPartial  = "partial"
	ResultError    = "error"
)

// New creates the collectors and registers them with a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		DecodeDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "beamline_decode_duration_seconds",
				Help:    "Decode call latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 60},
			},
			[]string{"system"},
		),
		DecodesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "beamline_decodes_total",
				Help: "Decode calls by system and result (complete, partial, error).",
			},
			[]string{"system", "result"},
		),
		DecodeSteps: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "beamline_decode_steps",
				Help:    "Generations expanded per decode call.",
				Buckets: prometheus.ExponentialBuckets(1, 2, 10),
			},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "beamline_feature_cache_hits_total",
				Help: "Total feature cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "beamline_feature_cache_misses_total",
				Help: "Total feature cache misses.",
			},
		),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "beamline_http_requests_total",
				Help: "Total number of HTTP requests by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "beamline_http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		FeatureReloadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "beamline_feature_reloads_total",
				Help: "Feature file reloads by status.",
			},
			[]string{"status"},
		),
		gatherer: reg,
	}

	reg.MustRegister(
		m.DecodeDuration,
		m.DecodesTotal,
		m.DecodeSteps,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.FeatureReloadsTotal,
	)
	return m
}

// ObserveDecode records one decode call. A nil receiver is a no-op.
func (m *Metrics) ObserveDecode(system string, elapsed time.Duration, steps, hits, misses int, partial bool, err error) {
	if m == nil {
		return
	}
	result := ResultComplete
	switch {
	case err != nil:
		result = ResultError
	case partial:
		result = ResultPartial
	}
	m.DecodesTotal.WithLabelValues(system, result).Inc()
	m.DecodeDuration.WithLabelValues(system).Observe(elapsed.Seconds())
	if err != nil {
		return
	}
	m.DecodeSteps.Observe(float64(steps))
	m.CacheHitsTotal.Add(float64(hits))
	m.CacheMissesTotal.Add(float64(misses))
}

// Handler returns the scrape handler for this instance's registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// Middleware records HTTP request count and latency.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)

		m.HTTPRequestsTotal.WithLabelValues(r.Method, r.URL.Path, strconv.Itoa(sw.status)).Inc()
		m.HTTPRequestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(time.Since(start).Seconds())
	})
}

// statusWriter captures the response status code.
type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (sw *statusWriter) WriteHeader(code int) {
	if !sw.wroteHeader {
		sw.status = code
		sw.wroteHeader = true
	}
	sw.ResponseWriter.WriteHeader(code)
}

func (sw *statusWriter) Write(b []byte) (int, error) {
	sw.wroteHeader = true
	return sw.ResponseWriter.Write(b)
}
