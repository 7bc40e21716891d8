package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/worklens/worklens/internal/resilience"
)

// Collector exposes Prometheus metrics for aggregation runs, the retry
// executor, and inbound HTTP requests.
type Collector struct {
	registry *prometheus.Registry

	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec

	fetchDuration   *prometheus.HistogramVec
	fetchTotal      *prometheus.CounterVec
	activitiesTotal *prometheus.CounterVec
	retryAttempts   *prometheus.CounterVec
	breakerState    *prometheus.GaugeVec
}

// NewCollector constructs a collector with default histograms/counters.
func NewCollector() (*Collector, error) {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "worklens",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "Latency distribution for inbound HTTP requests.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "worklens",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total number of inbound HTTP requests.",
	}, []string{"method", "path", "status"})

	fetchDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "worklens",
		Subsystem: "aggregation",
		Name:      "fetch_duration_seconds",
		Help:      "Latency distribution for per-day adapter fetches.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"adapter"})

	fetchTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "worklens",
		Subsystem: "aggregation",
		Name:      "fetches_total",
		Help:      "Total per-day adapter fetches by outcome.",
	}, []string{"adapter", "outcome"})

	activitiesTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "worklens",
		Subsystem: "aggregation",
		Name:      "activities_total",
		Help:      "Total activities collected per adapter.",
	}, []string{"adapter"})

	retryAttempts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "worklens",
		Subsystem: "resilience",
		Name:      "attempts_total",
		Help:      "Operation attempts by outcome, including retries.",
	}, []string{"operation", "outcome"})

	breakerState := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "worklens",
		Subsystem: "resilience",
		Name:      "breaker_state",
		Help:      "Circuit breaker state per operation (0 closed, 1 half-open, 2 open).",
	}, []string{"operation"})

	collectors := []prometheus.Collector{
		requestDuration, requestTotal,
		fetchDuration, fetchTotal, activitiesTotal,
		retryAttempts, breakerState,
	}
	for _, c := range collectors {
		if err := registry.Register(c); err != nil {
			return nil, err
		}
	}

	return &Collector{
		registry:        registry,
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		fetchDuration:   fetchDuration,
		fetchTotal:      fetchTotal,
		activitiesTotal: activitiesTotal,
		retryAttempts:   retryAttempts,
		breakerState:    breakerState,
	}, nil
}

// Handler returns an HTTP handler for exposing Prometheus metrics.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// ObserveFetch records one per-day adapter fetch. Implements aggregator.Metrics.
func (c *Collector) ObserveFetch(adapter string, duration time.Duration, activities int, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	c.fetchDuration.WithLabelValues(adapter).Observe(duration.Seconds())
	c.fetchTotal.WithLabelValues(adapter, outcome).Inc()
	c.activitiesTotal.WithLabelValues(adapter).Add(float64(activities))
}

// ObserveAttempt records one executor attempt. Implements resilience.Observer.
func (c *Collector) ObserveAttempt(operation string, attempt int, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	c.retryAttempts.WithLabelValues(operation, outcome).Inc()
}

// ObserveBreakerState records a breaker state change. Implements
// resilience.Observer.
func (c *Collector) ObserveBreakerState(operation string, state resilience.BreakerState) {
	var value float64
	switch state {
	case resilience.StateHalfOpen:
		value = 1
	case resilience.StateOpen:
		value = 2
	}
	c.breakerState.WithLabelValues(operation).Set(value)
}

// InstrumentHandler wraps the provided handler to record HTTP metrics.
func (c *Collector) InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(rw.status)
		path := r.URL.Path

		c.requestTotal.WithLabelValues(r.Method, path, status).Inc()
		c.requestDuration.WithLabelValues(r.Method, path, status).Observe(duration)
	})
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (w *responseWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
