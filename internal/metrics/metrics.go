// Package metrics holds the Prometheus collectors of the service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	SelectionWritesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "eco_selection_writes_total",
		Help: "Selection key writes by key and outcome",
	}, []string{"key", "outcome"})
	SelectionSubscribers = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "eco_selection_subscribers",
		Help: "Open selection event streams",
	})
	BusDroppedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "eco_bus_dropped_total",
		Help: "Events dropped because a subscriber was too slow",
	})
	RegionLookupsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "eco_region_lookups_total",
		Help: "Region catalog lookups by kind and result",
	}, []string{"kind", "result"})
	RecordQueryDurationMs = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "eco_record_query_duration_ms",
		Help:    "Record query duration in milliseconds",
		Buckets: []float64{1, 5, 10, 20, 50, 100, 200, 500, 1000},
	}, []string{"query"})
)

func init() {
	prometheus.MustRegister(SelectionWritesTotal)
	prometheus.MustRegister(SelectionSubscribers)
	prometheus.MustRegister(BusDroppedTotal)
	prometheus.MustRegister(RegionLookupsTotal)
	prometheus.MustRegister(RecordQueryDurationMs)
}

// Handler exposes the default registry for /metrics.
func Handler() http.Handler { return promhttp.Handler() }
