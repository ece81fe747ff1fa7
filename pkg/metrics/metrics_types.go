package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Namespace prefixes every metric name.
const Namespace = "stormcheck"

// Registry holds all metrics for the application
type Registry struct {
	// Loader Metrics
	LoaderFilesTotal    *prometheus.CounterVec
	LoaderWarningsTotal *prometheus.CounterVec

	// Graph Metrics
	GraphNodes       prometheus.Gauge
	GraphEdges       prometheus.Gauge
	GraphWiringTotal *prometheus.CounterVec

	// Analysis Metrics
	AnalysisRunsTotal     *prometheus.CounterVec
	AnalysisPhaseDuration *prometheus.HistogramVec
	CascadePathsTotal     prometheus.Counter
	AmplificationFactor   prometheus.Histogram
	CyclesDetected        prometheus.Gauge

	// Findings Metrics
	FindingsTotal *prometheus.CounterVec

	// System Metrics
	GoRoutines       prometheus.Gauge
	MemoryAllocBytes prometheus.Gauge

	registry *prometheus.Registry
	mu       sync.Mutex
}

var (
	// Global registry instance
	defaultRegistry *Registry
	once            sync.Once
)

// DefaultRegistry returns the global metrics registry
func DefaultRegistry() *Registry {
	once.Do(func() {
		defaultRegistry = NewRegistry()
	})
	return defaultRegistry
}

// NewRegistry creates a new metrics registry with all metrics initialized
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	r := &Registry{
		registry: reg,
	}

	r.initLoaderMetrics()
	r.initGraphMetrics()
	r.initAnalysisMetrics()
	r.initSystemMetrics()

	return r
}

// GetPrometheusRegistry returns the underlying Prometheus registry
func (r *Registry) GetPrometheusRegistry() *prometheus.Registry {
	return r.registry
}
