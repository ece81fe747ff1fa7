package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var metric dto.Metric
	if err := c.Write(&metric); err != nil {
		t.Fatalf("Failed to write metric: %v", err)
	}
	return metric.Counter.GetValue()
}

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	var metric dto.Metric
	if err := g.Write(&metric); err != nil {
		t.Fatalf("Failed to write metric: %v", err)
	}
	return metric.Gauge.GetValue()
}

func TestNewRegistry(t *testing.T) {
	r := NewRegistry()
	if r == nil {
		t.Fatal("NewRegistry() returned nil")
	}

	if r.LoaderFilesTotal == nil {
		t.Error("LoaderFilesTotal not initialized")
	}
	if r.GraphNodes == nil {
		t.Error("GraphNodes not initialized")
	}
	if r.AnalysisPhaseDuration == nil {
		t.Error("AnalysisPhaseDuration not initialized")
	}
	if r.FindingsTotal == nil {
		t.Error("FindingsTotal not initialized")
	}
	if r.GetPrometheusRegistry() == nil {
		t.Error("Prometheus registry not initialized")
	}
}

func TestNewRegistry_Independent(t *testing.T) {
	// Separate registries must not collide on registration.
	a, b := NewRegistry(), NewRegistry()
	a.RecordFinding("TIGHT_EVENT_LOOP", "CRITICAL")

	c, _ := b.FindingsTotal.GetMetricWithLabelValues("TIGHT_EVENT_LOOP", "CRITICAL")
	if counterValue(t, c) != 0 {
		t.Error("Registries share state")
	}
}

func TestDefaultRegistry(t *testing.T) {
	r1 := DefaultRegistry()
	r2 := DefaultRegistry()

	if r1 != r2 {
		t.Error("DefaultRegistry() should return the same instance")
	}
}

func TestRecordFiles(t *testing.T) {
	r := NewRegistry()
	r.RecordFiles(5, 2)
	r.RecordFiles(1, 0)

	parsed, _ := r.LoaderFilesTotal.GetMetricWithLabelValues("parsed")
	failed, _ := r.LoaderFilesTotal.GetMetricWithLabelValues("failed")
	if v := counterValue(t, parsed); v != 6 {
		t.Errorf("parsed = %v, want 6", v)
	}
	if v := counterValue(t, failed); v != 2 {
		t.Errorf("failed = %v, want 2", v)
	}
}

func TestRecordGraph(t *testing.T) {
	r := NewRegistry()
	r.RecordGraph(10, 7, 8, 3, 1)

	if v := gaugeValue(t, r.GraphNodes); v != 10 {
		t.Errorf("nodes = %v, want 10", v)
	}
	if v := gaugeValue(t, r.GraphEdges); v != 7 {
		t.Errorf("edges = %v, want 7", v)
	}

	tests := []struct {
		outcome string
		want    float64
	}{
		{"edge", 8},
		{"interface", 3},
		{"unresolved", 1},
	}
	for _, tt := range tests {
		c, _ := r.GraphWiringTotal.GetMetricWithLabelValues(tt.outcome)
		if v := counterValue(t, c); v != tt.want {
			t.Errorf("%s = %v, want %v", tt.outcome, v, tt.want)
		}
	}
}

func TestRecordCascade(t *testing.T) {
	r := NewRegistry()
	r.RecordCascade(map[string]float64{"A": 36, "B": 1}, 36)

	var metric dto.Metric
	if err := r.AmplificationFactor.Write(&metric); err != nil {
		t.Fatalf("Failed to write histogram: %v", err)
	}
	if metric.Histogram.GetSampleCount() != 2 {
		t.Errorf("sample count = %d, want 2", metric.Histogram.GetSampleCount())
	}
	if metric.Histogram.GetSampleSum() != 37 {
		t.Errorf("sample sum = %v, want 37", metric.Histogram.GetSampleSum())
	}
	if v := counterValue(t, r.CascadePathsTotal); v != 36 {
		t.Errorf("paths = %v, want 36", v)
	}
}

func TestRecordPhase(t *testing.T) {
	r := NewRegistry()
	r.RecordPhase("load", 20*time.Millisecond)
	r.RecordPhase("load", 30*time.Millisecond)

	obs, err := r.AnalysisPhaseDuration.GetMetricWithLabelValues("load")
	if err != nil {
		t.Fatalf("Failed to get metric: %v", err)
	}
	var metric dto.Metric
	if err := obs.(prometheus.Metric).Write(&metric); err != nil {
		t.Fatalf("Failed to write metric: %v", err)
	}
	if metric.Histogram.GetSampleCount() != 2 {
		t.Errorf("sample count = %d, want 2", metric.Histogram.GetSampleCount())
	}
}

func TestRecordRunAndWarnings(t *testing.T) {
	r := NewRegistry()
	r.RecordRun("blocking")
	r.RecordWarning("PARSE_ERROR")
	r.RecordWarning("PARSE_ERROR")

	runs, _ := r.AnalysisRunsTotal.GetMetricWithLabelValues("blocking")
	if v := counterValue(t, runs); v != 1 {
		t.Errorf("runs = %v, want 1", v)
	}
	warns, _ := r.LoaderWarningsTotal.GetMetricWithLabelValues("PARSE_ERROR")
	if v := counterValue(t, warns); v != 2 {
		t.Errorf("warnings = %v, want 2", v)
	}
}

func TestUpdateSystemMetrics(t *testing.T) {
	r := NewRegistry()
	r.UpdateSystemMetrics()

	if gaugeValue(t, r.GoRoutines) < 1 {
		t.Error("Expected at least one goroutine")
	}
	if gaugeValue(t, r.MemoryAllocBytes) <= 0 {
		t.Error("Expected positive heap allocation")
	}
}

func TestWriteTextfile(t *testing.T) {
	r := NewRegistry()
	r.RecordFinding("UNCONTROLLED_FANOUT", "WARNING")
	r.GraphNodes.Set(4)

	path := filepath.Join(t.TempDir(), "stormcheck.prom")
	if err := r.WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read textfile: %v", err)
	}
	out := string(data)
	for _, want := range []string{
		`stormcheck_findings_total{pattern="UNCONTROLLED_FANOUT",severity="WARNING"} 1`,
		"stormcheck_graph_nodes 4",
		"stormcheck_goroutines",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Textfile missing %q", want)
		}
	}
}

func TestWriteTextfile_BadPath(t *testing.T) {
	r := NewRegistry()
	if err := r.WriteTextfile(filepath.Join(t.TempDir(), "missing", "dir", "m.prom")); err == nil {
		t.Error("Expected error for unwritable path")
	}
}
