// Package metrics exposes Prometheus collectors on a private registry.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sony/gobreaker/v2"
)

const namespace = "sitecheck"

type Metrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	evaluationsTotal *prometheus.CounterVec
	rejectionsTotal  *prometheus.CounterVec
	capturesTotal    *prometheus.CounterVec
	savesTotal       *prometheus.CounterVec
	saveDuration     prometheus.Histogram
	saveQueueDepth   prometheus.Gauge
	sessionsActive   prometheus.Gauge
	breakerState     *prometheus.GaugeVec
}

func New() *Metrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"method", "route", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
		},
	)
	evaluationsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "inspection",
			Name:      "evaluations_total",
			Help:      "Accepted evaluations by item kind and grade.",
		},
		[]string{"kind", "grade"},
	)
	rejectionsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "inspection",
			Name:      "rejections_total",
			Help:      "Rejected mutations by reason.",
		},
		[]string{"reason"},
	)
	capturesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "inspection",
			Name:      "defect_captures_total",
			Help:      "Defect capture hand-offs by publish status.",
		},
		[]string{"status"},
	)
	savesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "persistence",
			Name:      "saves_total",
			Help:      "Background aggregate saves by status.",
		},
		[]string{"status"},
	)
	saveDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "persistence",
			Name:      "save_duration_seconds",
			Help:      "Background save duration in seconds, retries included.",
			Buckets:   prometheus.DefBuckets,
		},
	)
	saveQueueDepth := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "persistence",
			Name:      "save_queue_depth",
			Help:      "Saves waiting for the background writer.",
		},
	)
	sessionsActive := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "inspection",
			Name:      "sessions_active",
			Help:      "Properties with an engine session in memory.",
		},
	)

	breakerState := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "resilience",
			Name:      "breaker_state",
			Help:      "Circuit breaker state per operation: 0 closed, 1 half-open, 2 open.",
		},
		[]string{"operation"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		evaluationsTotal,
		rejectionsTotal,
		capturesTotal,
		savesTotal,
		saveDuration,
		saveQueueDepth,
		sessionsActive,
		breakerState,
	)

	return &Metrics{
		registry:         registry,
		requestTotal:     requestTotal,
		requestDuration:  requestDuration,
		requestInFlight:  requestInFlight,
		evaluationsTotal: evaluationsTotal,
		rejectionsTotal:  rejectionsTotal,
		capturesTotal:    capturesTotal,
		savesTotal:       savesTotal,
		saveDuration:     saveDuration,
		saveQueueDepth:   saveQueueDepth,
		sessionsActive:   sessionsActive,
		breakerState:     breakerState,
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware records request counts and latency. Routes are labelled with
// the matched ServeMux pattern so ids do not explode cardinality.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		route := routeLabel(r)
		m.requestTotal.WithLabelValues(r.Method, route, strconv.Itoa(recorder.statusCode)).Inc()
		m.requestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

func routeLabel(r *http.Request) string {
	if r.Pattern == "" {
		return "unmatched"
	}
	// Patterns look like "GET /properties/{id}"; the method is its own label.
	if _, path, ok := strings.Cut(r.Pattern, " "); ok {
		return path
	}
	return r.Pattern
}

func (m *Metrics) RecordEvaluation(kind, grade string) {
	if grade == "" {
		grade = "none"
	}
	m.evaluationsTotal.WithLabelValues(kind, grade).Inc()
}

func (m *Metrics) RecordRejection(reason string) {
	m.rejectionsTotal.WithLabelValues(reason).Inc()
}

func (m *Metrics) RecordCapture(err error) {
	m.capturesTotal.WithLabelValues(status(err)).Inc()
}

func (m *Metrics) RecordSave(err error, d time.Duration) {
	m.savesTotal.WithLabelValues(status(err)).Inc()
	m.saveDuration.Observe(d.Seconds())
}

func (m *Metrics) SetSaveQueueDepth(n int) { m.saveQueueDepth.Set(float64(n)) }

func (m *Metrics) SetActiveSessions(n int) { m.sessionsActive.Set(float64(n)) }

func (m *Metrics) SetBreakerState(operation string, s gobreaker.State) {
	m.breakerState.WithLabelValues(operation).Set(float64(s))
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Unwrap() http.ResponseWriter { return w.ResponseWriter }
