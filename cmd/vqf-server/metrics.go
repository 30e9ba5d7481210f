package main

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"net/http"
)

// Metrics holds the Prometheus collectors for monitoring the server's
// health: fill factor, per-command rates, and full-filter refusals are
// exactly what a Prometheus scrape target is for.
type Metrics struct {
	commandsTotal    prometheus.Counter
	connectionsTotal prometheus.Counter
	insertsTotal     *prometheus.CounterVec
	removesTotal     prometheus.Counter
	queriesTotal     *prometheus.CounterVec
	fillFactor       prometheus.GaugeFunc
}

// NewMetrics creates and registers the server's collectors against reg.
// fillFactor is computed lazily from f so the gauge always reflects the
// live filter without the handlers having to push updates on every call.
func NewMetrics(reg prometheus.Registerer, f filterStats) *Metrics {
	m := &Metrics{
		commandsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vqf_commands_total",
			Help: "Total number of commands processed.",
		}),
		connectionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vqf_connections_total",
			Help: "Total number of TCP connections accepted.",
		}),
		insertsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vqf_inserts_total",
			Help: "Total number of insert attempts, partitioned by outcome.",
		}, []string{"outcome"}),
		removesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vqf_removes_total",
			Help: "Total number of successful removals.",
		}),
		queriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vqf_queries_total",
			Help: "Total number of membership/value queries, partitioned by outcome.",
		}, []string{"outcome"}),
		fillFactor: prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "vqf_fill_factor",
			Help: "Fraction of addressable buckets currently occupied (nelts / range).",
		}, f.FillFactor),
	}

	reg.MustRegister(
		m.commandsTotal,
		m.connectionsTotal,
		m.insertsTotal,
		m.removesTotal,
		m.queriesTotal,
		m.fillFactor,
	)
	return m
}

// filterStats is the narrow view metrics.go needs of *vqf.Filter, kept as
// an interface so tests can substitute a fake without constructing a real
// filter.
type filterStats interface {
	FillFactor() float64
}

// serveMetrics exposes the Prometheus registry on addr until the listener
// is closed or the process exits; it runs in its own goroutine from main.
func serveMetrics(addr string, reg *prometheus.Registry) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	return http.ListenAndServe(addr, mux)
}
