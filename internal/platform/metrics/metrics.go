// Package metrics exposes Prometheus collectors for the HTTP surface and the
// consultation pipeline.
package metrics

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns its registry so tests can build independent instances.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests      *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
	stageTransitions  *prometheus.CounterVec
	guardRejections   *prometheus.CounterVec
	completions       prometheus.Counter
	inferenceDuration *prometheus.HistogramVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cdss_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status_code"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cdss_http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		stageTransitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cdss_stage_transitions_total",
				Help: "Consultation stage transitions",
			},
			[]string{"from", "to"},
		),
		guardRejections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cdss_guard_rejections_total",
				Help: "Stage transitions rejected by a guard",
			},
			[]string{"from", "to"},
		),
		completions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cdss_consultations_completed_total",
			Help: "Consultations archived",
		}),
		inferenceDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cdss_inference_duration_seconds",
				Help:    "Processing time of inference endpoints",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"endpoint"},
		),
	}
	m.registry.MustRegister(
		m.httpRequests,
		m.httpDuration,
		m.stageTransitions,
		m.guardRejections,
		m.completions,
		m.inferenceDuration,
	)
	return m
}

// Middleware records request count and latency per matched route.
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			status := strconv.Itoa(c.Response().Status)
			m.httpRequests.WithLabelValues(c.Request().Method, route, status).Inc()
			m.httpDuration.WithLabelValues(c.Request().Method, route).Observe(time.Since(start).Seconds())
			return nil
		}
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
}

func (m *Metrics) StageTransition(from, to string) {
	m.stageTransitions.WithLabelValues(from, to).Inc()
}

func (m *Metrics) GuardRejected(from, to string) {
	m.guardRejections.WithLabelValues(from, to).Inc()
}

func (m *Metrics) ConsultationCompleted() {
	m.completions.Inc()
}

func (m *Metrics) ObserveInference(endpoint string, d time.Duration) {
	m.inferenceDuration.WithLabelValues(endpoint).Observe(d.Seconds())
}

// Registry exposes the underlying registry for tests and extra collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
