package metrics

import (
	"fmt"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// RecordFiles records the loader outcome.
func (r *Registry) RecordFiles(parsed, failed int) {
	r.LoaderFilesTotal.WithLabelValues("parsed").Add(float64(parsed))
	r.LoaderFilesTotal.WithLabelValues("failed").Add(float64(failed))
}

// RecordWarning counts one warning of the given kind.
func (r *Registry) RecordWarning(kind string) {
	r.LoaderWarningsTotal.WithLabelValues(kind).Inc()
}

// RecordGraph records the size of the built graph and how its wiring resolved.
func (r *Registry) RecordGraph(nodes, edges, resolved, interfaceWires, unresolved int) {
	r.GraphNodes.Set(float64(nodes))
	r.GraphEdges.Set(float64(edges))
	r.GraphWiringTotal.WithLabelValues("edge").Add(float64(resolved))
	r.GraphWiringTotal.WithLabelValues("interface").Add(float64(interfaceWires))
	r.GraphWiringTotal.WithLabelValues("unresolved").Add(float64(unresolved))
}

// RecordPhase records the duration of one pipeline phase
func (r *Registry) RecordPhase(phase string, duration time.Duration) {
	r.AnalysisPhaseDuration.WithLabelValues(phase).Observe(duration.Seconds())
}

// RecordCascade records the factors and path count of a trace run.
func (r *Registry) RecordCascade(factors map[string]float64, paths int) {
	for _, f := range factors {
		r.AmplificationFactor.Observe(f)
	}
	r.CascadePathsTotal.Add(float64(paths))
}

// RecordFinding counts one finding.
func (r *Registry) RecordFinding(pattern, severity string) {
	r.FindingsTotal.WithLabelValues(pattern, severity).Inc()
}

// RecordRun counts a completed run by report status.
func (r *Registry) RecordRun(status string) {
	r.AnalysisRunsTotal.WithLabelValues(status).Inc()
}

// UpdateSystemMetrics samples goroutine and heap usage.
func (r *Registry) UpdateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	r.GoRoutines.Set(float64(runtime.NumGoroutine()))
	r.MemoryAllocBytes.Set(float64(m.Alloc))
}

// WriteTextfile writes every metric in the Prometheus text format, for the
// node_exporter textfile collector.
func (r *Registry) WriteTextfile(path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.UpdateSystemMetrics()
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
