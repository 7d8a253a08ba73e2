// Package observability also exposes the optional Prometheus metrics the
// hybrid coordinator publishes when a caller attaches them. Wiring this
// package is nil-safe: an *Metrics left unset simply records nothing.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors the coordinator updates over its
// lifetime. Register once per process (promauto registers against the
// default registry) and share across indexes via a label, or construct a
// custom registry per index if running multiple isolated cores.
type Metrics struct {
	VectorsTotal   *prometheus.GaugeVec
	InsertsTotal   *prometheus.CounterVec
	RemovesTotal   *prometheus.CounterVec
	SearchDuration prometheus.Histogram
	SearchRecall   prometheus.Histogram
	PQTrained      *prometheus.GaugeVec
	GraphMaxLevel  *prometheus.GaugeVec
}

// NewMetrics registers and returns a fresh Metrics set. The per-index
// collectors carry an "index" label whose value each Record/Set call
// supplies, to distinguish multiple cores sharing a process.
func NewMetrics() *Metrics {
	return &Metrics{
		VectorsTotal: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "ann_vectors_total",
				Help: "Number of vectors currently stored in the index.",
			},
			[]string{"index"},
		),
		InsertsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ann_inserts_total",
				Help: "Total number of successful Add calls.",
			},
			[]string{"index"},
		),
		RemovesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ann_removes_total",
				Help: "Total number of successful Remove calls.",
			},
			[]string{"index"},
		),
		SearchDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "ann_search_duration_seconds",
				Help:    "Wall time spent inside Search.",
				Buckets: []float64{.0001, .0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
		),
		SearchRecall: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "ann_search_recall",
				Help:    "Recall@k against a brute-force baseline, when measured.",
				Buckets: []float64{.5, .7, .8, .85, .9, .95, .98, 1.0},
			},
		),
		PQTrained: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "ann_pq_trained",
				Help: "1 once the PQ codebook has been trained, 0 until then.",
			},
			[]string{"index"},
		),
		GraphMaxLevel: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "ann_graph_max_level",
				Help: "Highest occupied HNSW layer.",
			},
			[]string{"index"},
		),
	}
}

// RecordInsert updates size/insert counters after a successful Add.
func (m *Metrics) RecordInsert(index string, size int) {
	if m == nil {
		return
	}
	m.InsertsTotal.WithLabelValues(index).Inc()
	m.VectorsTotal.WithLabelValues(index).Set(float64(size))
}

// RecordRemove updates size/remove counters after a successful Remove.
func (m *Metrics) RecordRemove(index string, size int) {
	if m == nil {
		return
	}
	m.RemovesTotal.WithLabelValues(index).Inc()
	m.VectorsTotal.WithLabelValues(index).Set(float64(size))
}

// RecordSearch records the latency of a completed Search.
func (m *Metrics) RecordSearch(d time.Duration) {
	if m == nil {
		return
	}
	m.SearchDuration.Observe(d.Seconds())
}

// RecordRecall records a measured recall@k sample, e.g. from a test harness.
func (m *Metrics) RecordRecall(recall float64) {
	if m == nil {
		return
	}
	m.SearchRecall.Observe(recall)
}

// SetTrained flips the PQ-trained gauge.
func (m *Metrics) SetTrained(index string, trained bool) {
	if m == nil {
		return
	}
	v := 0.0
	if trained {
		v = 1.0
	}
	m.PQTrained.WithLabelValues(index).Set(v)
}

// SetMaxLevel updates the graph max-level gauge.
func (m *Metrics) SetMaxLevel(index string, level int) {
	if m == nil {
		return
	}
	m.GraphMaxLevel.WithLabelValues(index).Set(float64(level))
}
