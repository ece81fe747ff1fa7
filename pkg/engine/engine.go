// Package engine runs the full analysis pipeline over one corpus root.
package engine

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/dd0wney/stormcheck/pkg/algorithms"
	"github.com/dd0wney/stormcheck/pkg/config"
	"github.com/dd0wney/stormcheck/pkg/corpus"
	"github.com/dd0wney/stormcheck/pkg/eventgraph"
	"github.com/dd0wney/stormcheck/pkg/logging"
	"github.com/dd0wney/stormcheck/pkg/metrics"
	"github.com/dd0wney/stormcheck/pkg/patterns"
	"github.com/dd0wney/stormcheck/pkg/report"
)

// Pipeline phase names, used in logs and metrics.
const (
	PhaseLoad     = "load"
	PhaseBuild    = "build"
	PhaseTrace    = "trace"
	PhaseDetect   = "detect"
	PhaseClassify = "classify"
)

// EmptyGraphNote is prepended to the report note when no event edge exists.
const EmptyGraphNote = "No event connections found between block types; nothing can cascade."

// Engine wires loader, graph builder, traversals and classifier together.
// It holds no per-run state and may be reused.
type Engine struct {
	cfg     *config.Config
	logger  logging.Logger
	metrics *metrics.Registry
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l logging.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithMetrics sets the registry runs are recorded in. The default is a
// private registry.
func WithMetrics(m *metrics.Registry) Option {
	return func(e *Engine) {
		if m != nil {
			e.metrics = m
		}
	}
}

// New creates an engine. A nil cfg uses config.DefaultConfig().
func New(cfg *config.Config, opts ...Option) *Engine {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	e := &Engine{
		cfg:    cfg,
		logger: logging.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.metrics == nil {
		e.metrics = metrics.NewRegistry()
	}
	return e
}

// Metrics returns the registry the engine records into.
func (e *Engine) Metrics() *metrics.Registry {
	return e.metrics
}

// Analyze loads every block file below root and returns the diagnostic
// report. A *corpus.FatalInputError (missing root, nothing parsed) or a
// context error aborts the run without a report; every other problem is a
// warning inside the report. Reports for an unchanged corpus are identical.
func (e *Engine) Analyze(ctx context.Context, root string) (*report.Report, error) {
	log := e.logger.With(logging.Component("engine"), logging.RunID(uuid.NewString()))
	log.Info("Detecting anti-patterns", logging.Path(root))

	// load
	timer := logging.StartTimer(log, "Phase complete", logging.Phase(PhaseLoad))
	c, err := corpus.NewLoader(e.cfg.LoaderOptions(), log).Load(ctx, root)
	if err != nil {
		e.metrics.RecordPhase(PhaseLoad, timer.EndError(err))
		var fatal *corpus.FatalInputError
		if errors.As(err, &fatal) {
			failed := 0
			for _, w := range fatal.Warnings {
				e.metrics.RecordWarning(string(w.Kind))
				if w.Kind == corpus.WarnParseError {
					failed++
				}
			}
			e.metrics.RecordFiles(0, failed)
		}
		e.metrics.RecordRun("fatal")
		return nil, err
	}
	e.metrics.RecordPhase(PhaseLoad, timer.End(logging.Count(len(c.Blocks))))
	e.metrics.RecordFiles(c.FilesParsed, c.FilesScanned-c.FilesParsed)

	// build
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	timer = logging.StartTimer(log, "Phase complete", logging.Phase(PhaseBuild))
	g, graphWarnings, stats := eventgraph.Build(c.Blocks)
	e.metrics.RecordPhase(PhaseBuild, timer.End(
		logging.Int("nodes", g.NodeCount()),
		logging.Int("edges", g.EdgeCount())))
	e.metrics.RecordGraph(g.NodeCount(), g.EdgeCount(),
		stats.WiringEntries-stats.InterfaceWires-stats.Unresolved, stats.InterfaceWires, stats.Unresolved)

	warnings := make([]corpus.Warning, 0, len(c.Warnings)+len(graphWarnings)+1)
	warnings = append(warnings, c.Warnings...)
	warnings = append(warnings, graphWarnings...)

	note := report.DefaultNote
	if g.EdgeCount() == 0 {
		note = EmptyGraphNote + " " + note
		warnings = append(warnings, corpus.Warning{
			Kind:    corpus.WarnEmptyGraph,
			Message: "no event connections found",
		})
		log.Warn("Event graph has no edges", logging.Int("nodes", g.NodeCount()))
	}
	corpus.SortWarnings(warnings)

	// trace and detect
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	timer = logging.StartTimer(log, "Phase complete", logging.Phase(PhaseTrace))
	cascades := algorithms.TraceAll(g, e.cfg.TraceOptions())
	e.metrics.RecordPhase(PhaseTrace, timer.End(logging.Int("sources", len(cascades.Factors))))
	e.metrics.RecordCascade(cascades.Factors, cascades.TotalPaths)
	if cascades.Truncated {
		log.Info("Cascade path list truncated",
			logging.Int("kept", len(cascades.Paths)),
			logging.Int("total", cascades.TotalPaths))
	}

	timer = logging.StartTimer(log, "Phase complete", logging.Phase(PhaseDetect))
	cycles := algorithms.DetectTightLoops(g, e.cfg.Analysis.MaxDepth)
	e.metrics.RecordPhase(PhaseDetect, timer.End(logging.Int("cycles", len(cycles))))
	e.metrics.CyclesDetected.Set(float64(len(cycles)))

	// classify
	timer = logging.StartTimer(log, "Phase complete", logging.Phase(PhaseClassify))
	findings := patterns.Classify(cycles, cascades.Factors, e.cfg.Thresholds())
	e.metrics.RecordPhase(PhaseClassify, timer.End(logging.Count(len(findings))))

	rep := report.Build(report.Input{
		Findings:       findings,
		Factors:        cascades.Factors,
		Paths:          cascades.Paths,
		PathsTruncated: cascades.Truncated,
		Cycles:         cycles,
		Warnings:       warnings,
		Note:           note,
		Stats: report.Stats{
			FilesScanned: c.FilesScanned,
			FilesParsed:  c.FilesParsed,
			Nodes:        g.NodeCount(),
			Edges:        g.EdgeCount(),
			Sources:      len(cascades.Factors),
		},
	})

	for _, w := range warnings {
		e.metrics.RecordWarning(string(w.Kind))
	}
	for _, f := range findings {
		e.metrics.RecordFinding(string(f.Pattern), string(f.Severity))
		log.Debug("Finding", logging.Pattern(string(f.Pattern)), logging.TypeName(f.Subject),
			logging.String("severity", string(f.Severity)))
	}
	e.metrics.RecordRun(string(rep.Status))

	log.Info("Detected anti-patterns",
		logging.Count(len(findings)),
		logging.Int("critical", rep.Summary.BySeverity[patterns.SeverityCritical]),
		logging.Int("warning", rep.Summary.BySeverity[patterns.SeverityWarning]),
		logging.Int("info", rep.Summary.BySeverity[patterns.SeverityInfo]),
		logging.String("status", string(rep.Status)))

	return rep, nil
}
