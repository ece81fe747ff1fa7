package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initAnalysisMetrics() {
	r.AnalysisRunsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "analysis_runs_total",
			Help:      "Completed analysis runs, by report status",
		},
		[]string{"status"},
	)

	r.AnalysisPhaseDuration = promauto.With(r.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "analysis_phase_duration_seconds",
			Help:      "Duration of each pipeline phase in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0},
		},
		[]string{"phase"},
	)

	r.CascadePathsTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "cascade_paths_total",
			Help:      "Terminal cascade paths traced",
		},
	)

	r.AmplificationFactor = promauto.With(r.registry).NewHistogram(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "amplification_factor",
			Help:      "Event multiplication factor per traced source",
			Buckets:   []float64{1, 2, 5, 10, 20, 30, 50, 100, 250},
		},
	)

	r.CyclesDetected = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "cycles_detected",
			Help:      "Tight loop witnesses in the last run",
		},
	)

	r.FindingsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "findings_total",
			Help:      "Findings reported, by pattern and severity",
		},
		[]string{"pattern", "severity"},
	)
}
