package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dd0wney/stormcheck/pkg/config"
	"github.com/dd0wney/stormcheck/pkg/corpus"
	"github.com/dd0wney/stormcheck/pkg/fbt/fbttest"
	"github.com/dd0wney/stormcheck/pkg/logging"
	"github.com/dd0wney/stormcheck/pkg/patterns"
	"github.com/dd0wney/stormcheck/pkg/report"
)

func analyze(t *testing.T, root string, opts ...Option) *report.Report {
	t.Helper()
	rep, err := New(nil, opts...).Analyze(context.Background(), root)
	require.NoError(t, err)
	return rep
}

func counter(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.Counter.GetValue()
}

// Two blocks feeding each other close a loop within two hops.
func TestAnalyze_TwoNodeLoop(t *testing.T) {
	dir := t.TempDir()
	fbttest.Corpus(t, dir, map[string][]string{"A": {"B"}, "B": {"A"}})

	rep := analyze(t, dir)

	assert.Equal(t, report.StatusBlocking, rep.Status)
	assert.Equal(t, report.ExitBlocking, rep.ExitCode())
	require.NotEmpty(t, rep.Findings)
	assert.Equal(t, patterns.TightEventLoop, rep.Findings[0].Pattern)
	assert.Equal(t, patterns.SeverityCritical, rep.Findings[0].Severity)
	assert.Equal(t, "A", rep.Findings[0].Subject)
	require.Len(t, rep.CyclesDetected, 2)
	assert.Equal(t, 2, rep.CyclesDetected[0].DepthUsed)
}

// A lone block has nothing to amplify.
func TestAnalyze_SingleNode(t *testing.T) {
	dir := t.TempDir()
	fbttest.Corpus(t, dir, map[string][]string{"A": nil})

	rep := analyze(t, dir)

	assert.Equal(t, report.StatusClean, rep.Status)
	assert.Empty(t, rep.Findings)
	assert.Equal(t, map[string]float64{"A": 1.0}, rep.MultiplicationFactors)
}

// One block wired into 35 childless blocks amplifies by 36.
func TestAnalyze_Star(t *testing.T) {
	dir := t.TempDir()
	var children []string
	for i := 1; i <= 35; i++ {
		children = append(children, fmt.Sprintf("B%02d", i))
	}
	fbttest.Corpus(t, dir, map[string][]string{"A": children})

	rep := analyze(t, dir)

	assert.Equal(t, 36.0, rep.MultiplicationFactors["A"])
	require.Len(t, rep.Findings, 1)
	assert.Equal(t, patterns.UncontrolledFanout, rep.Findings[0].Pattern)
	assert.Equal(t, patterns.SeverityWarning, rep.Findings[0].Severity)
	assert.Equal(t, report.StatusAttention, rep.Status)
	assert.Equal(t, report.ExitAttention, rep.ExitCode())
	assert.Equal(t, 36, rep.Stats.Nodes)
	assert.Equal(t, 35, rep.Stats.Edges)
}

// A wire into an undeclared instance is dropped with a warning.
func TestAnalyze_DanglingWire(t *testing.T) {
	dir := t.TempDir()
	b := fbttest.Block{Name: "A", Inputs: []string{"REQ"}, Wiring: [][2]string{{"REQ", "X.REQ"}}}
	b.Edge("B")
	fbttest.Write(t, dir, "A.fbt", b)
	fbttest.Write(t, dir, "B.fbt", fbttest.Block{Name: "B", Inputs: []string{"REQ"}})

	rep := analyze(t, dir)

	assert.Equal(t, 1, rep.Stats.Edges, "declared two wires, one resolves")
	require.Len(t, rep.WarningDetails, 1)
	assert.Equal(t, corpus.WarnUnresolvedReference, rep.WarningDetails[0].Kind)
	assert.Contains(t, rep.Warnings[0], "X")
}

// A missing root aborts without a report.
func TestAnalyze_MissingRoot(t *testing.T) {
	e := New(nil)
	rep, err := e.Analyze(context.Background(), filepath.Join(t.TempDir(), "absent"))

	assert.Nil(t, rep)
	var fatal *corpus.FatalInputError
	require.True(t, errors.As(err, &fatal))
	assert.ErrorIs(t, err, corpus.ErrRootMissing)

	runs, _ := e.Metrics().AnalysisRunsTotal.GetMetricWithLabelValues("fatal")
	assert.Equal(t, 1.0, counter(t, runs))
}

func TestAnalyze_NothingParses(t *testing.T) {
	dir := t.TempDir()
	fbttest.WriteRaw(t, dir, "Broken.fbt", "<FBType")

	e := New(nil)
	_, err := e.Analyze(context.Background(), dir)

	require.ErrorIs(t, err, corpus.ErrNoBlocks)
	failed, _ := e.Metrics().LoaderFilesTotal.GetMetricWithLabelValues("failed")
	assert.Equal(t, 1.0, counter(t, failed))
}

func TestAnalyze_EmptyGraph(t *testing.T) {
	dir := t.TempDir()
	fbttest.Corpus(t, dir, map[string][]string{"A": nil, "B": nil})
	fbttest.WriteRaw(t, dir, "junk.fbt", "not xml")

	rep := analyze(t, dir)

	assert.Equal(t, report.StatusClean, rep.Status)
	assert.True(t, strings.HasPrefix(rep.Note, EmptyGraphNote))
	kinds := map[corpus.WarningKind]bool{}
	for _, w := range rep.WarningDetails {
		kinds[w.Kind] = true
	}
	assert.True(t, kinds[corpus.WarnEmptyGraph])
	assert.True(t, kinds[corpus.WarnParseError], "clean-but-broken must stay visible")
	assert.Equal(t, 3, rep.Stats.FilesScanned)
	assert.Equal(t, 2, rep.Stats.FilesParsed)
}

func TestAnalyze_Idempotent(t *testing.T) {
	dir := t.TempDir()
	fbttest.Corpus(t, dir, map[string][]string{
		"Pump":   {"Valve", "Motor"},
		"Valve":  {"Pump"},
		"Motor":  {"Sensor"},
		"Sensor": {"Motor"},
	})
	fbttest.WriteRaw(t, dir, "bad/Broken.fbt", "<FBType Name=''/>")

	e := New(nil)
	first, err := e.Analyze(context.Background(), dir)
	require.NoError(t, err)
	second, err := e.Analyze(context.Background(), dir)
	require.NoError(t, err)

	var a, b bytes.Buffer
	require.NoError(t, first.WriteJSON(&a))
	require.NoError(t, second.WriteJSON(&b))
	assert.Equal(t, a.String(), b.String())
	assert.True(t, json.Valid(a.Bytes()))
}

func TestAnalyze_ConfigThresholds(t *testing.T) {
	dir := t.TempDir()
	fbttest.Corpus(t, dir, map[string][]string{"A": {"B", "C", "D"}})

	cfg := config.DefaultConfig()
	cfg.Analysis.FanoutThreshold = 3
	cfg.Analysis.ExplosiveThreshold = 100
	cfg.Trace.MaxPaths = 1

	rep, err := New(cfg).Analyze(context.Background(), dir)
	require.NoError(t, err)

	require.Len(t, rep.Findings, 1)
	assert.Equal(t, patterns.UncontrolledFanout, rep.Findings[0].Pattern)
	assert.Len(t, rep.CascadePaths, 1)
	assert.True(t, rep.CascadePathsTruncated)
}

func TestAnalyze_SourceFilter(t *testing.T) {
	dir := t.TempDir()
	fbttest.Corpus(t, dir, map[string][]string{"ConveyorDI": {"Motor"}, "Motor": nil})

	cfg := config.DefaultConfig()
	cfg.Trace.IOSourcesOnly = true

	rep, err := New(cfg).Analyze(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"ConveyorDI": 2}, rep.MultiplicationFactors)
	assert.Equal(t, 1, rep.Stats.Sources)
}

func TestAnalyze_Cancelled(t *testing.T) {
	dir := t.TempDir()
	fbttest.Corpus(t, dir, map[string][]string{"A": nil})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(nil).Analyze(ctx, dir)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAnalyze_LogsAndMetrics(t *testing.T) {
	dir := t.TempDir()
	fbttest.Corpus(t, dir, map[string][]string{"A": {"B"}, "B": {"A"}})

	var logs bytes.Buffer
	e := New(nil, WithLogger(logging.NewJSONLogger(&logs, logging.DebugLevel)))
	_, err := e.Analyze(context.Background(), dir)
	require.NoError(t, err)

	out := logs.String()
	assert.Contains(t, out, `"run_id"`)
	assert.Contains(t, out, `"phase":"classify"`)
	assert.Contains(t, out, "Detected anti-patterns")

	loops, _ := e.Metrics().FindingsTotal.GetMetricWithLabelValues("TIGHT_EVENT_LOOP", "CRITICAL")
	assert.Equal(t, 2.0, counter(t, loops))
	runs, _ := e.Metrics().AnalysisRunsTotal.GetMetricWithLabelValues("blocking")
	assert.Equal(t, 1.0, counter(t, runs))
}
