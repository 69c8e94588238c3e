// Package metrics exposes Prometheus metrics for the dashboard service on a
// registry owned by the service.
package metrics

import (
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/neuhai/clinical-decision-making-dashboard/internal/domain/patient"
)

const namespace = "dashboard"

// Metrics holds the service collectors.
type Metrics struct {
	registry   *prometheus.Registry
	selections *prometheus.CounterVec
	roster     prometheus.Gauge
	requests   *prometheus.CounterVec
}

// New creates the collectors on a fresh registry, including Go runtime and
// process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		selections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "selections_total",
			Help:      "Patient selections by outcome (hit or miss).",
		}, []string{"result"}),
		roster: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "roster_patients",
			Help:      "Patients in the loaded roster.",
		}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
	}
	reg.MustRegister(
		m.selections,
		m.roster,
		m.requests,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the registry backing Handler.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveSelection counts one selection. It has the patient.Observer
// signature so it can be passed to Store.Subscribe.
func (m *Metrics) ObserveSelection(sel patient.Selection) {
	result := "hit"
	if sel.Patient == nil {
		result = "miss"
	}
	m.selections.WithLabelValues(result).Inc()
}

func (m *Metrics) SetRosterSize(n int) {
	m.roster.Set(float64(n))
}

// TrackStreamClients registers a gauge that reads the client count on scrape.
func (m *Metrics) TrackStreamClients(count func() int) {
	m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "stream_clients",
		Help:      "Connected selection stream clients.",
	}, func() float64 { return float64(count()) }))
}

// Middleware counts requests by route pattern, so path parameters do not
// explode label cardinality.
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)
			status := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			}
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			m.requests.WithLabelValues(c.Request().Method, route, strconv.Itoa(status)).Inc()
			return err
		}
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
}
