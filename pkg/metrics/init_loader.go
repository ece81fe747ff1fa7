package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initLoaderMetrics() {
	r.LoaderFilesTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "loader_files_total",
			Help:      "Block files discovered, by parse result",
		},
		[]string{"result"},
	)

	r.LoaderWarningsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "warnings_total",
			Help:      "Corpus and graph warnings, by kind",
		},
		[]string{"kind"},
	)
}

func (r *Registry) initGraphMetrics() {
	r.GraphNodes = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "graph_nodes",
			Help:      "Block types in the event graph",
		},
	)

	r.GraphEdges = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "graph_edges",
			Help:      "Distinct type-level event edges",
		},
	)

	r.GraphWiringTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "graph_wiring_entries_total",
			Help:      "Event connections seen while building the graph, by outcome",
		},
		[]string{"outcome"},
	)
}
