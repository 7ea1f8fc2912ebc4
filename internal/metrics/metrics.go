// Package metrics holds the Prometheus collectors shared by the fetch layer
// and the HTTP API.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	fetchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "amdash_fetch_total",
		Help: "Data source fetches by dataset, backend and outcome",
	}, []string{"dataset", "backend", "outcome"})

	fetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "amdash_fetch_duration_seconds",
		Help:    "Data source fetch latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"dataset", "backend"})

	staleDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "amdash_fetch_stale_dropped_total",
		Help: "Fetch results discarded because a newer fetch superseded them",
	}, []string{"dataset"})

	snapshotRecords = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "amdash_snapshot_records",
		Help: "Records held in the current dataset snapshot",
	}, []string{"dataset"})
)

// Outcome labels.
const (
	OutcomeOK    = "ok"
	OutcomeEmpty = "empty"
	OutcomeError = "error"
)

func ObserveFetch(dataset, backend, outcome string, took time.Duration) {
	fetchTotal.WithLabelValues(dataset, backend, outcome).Inc()
	fetchDuration.WithLabelValues(dataset, backend).Observe(took.Seconds())
}

func StaleDropped(dataset string) {
	staleDropped.WithLabelValues(dataset).Inc()
}

func SnapshotSize(dataset string, n int) {
	snapshotRecords.WithLabelValues(dataset).Set(float64(n))
}
