package report

import (
	"github.com/dd0wney/stormcheck/pkg/algorithms"
	"github.com/dd0wney/stormcheck/pkg/corpus"
	"github.com/dd0wney/stormcheck/pkg/patterns"
)

// DefaultNote tells readers which patterns this analysis covers.
const DefaultNote = "Detects TIGHT_EVENT_LOOP, UNCONTROLLED_FANOUT and EXPLOSIVE_AMPLIFICATION from static event wiring. " +
	"Timer cascades, HMI bursts and cross-resource amplification need runtime configuration and are not analysed."

// Input is everything a report is assembled from.
type Input struct {
	Findings       []patterns.Finding
	Factors        map[string]float64
	Paths          []algorithms.CascadePath
	PathsTruncated bool
	Cycles         []algorithms.CycleWitness
	Warnings       []corpus.Warning
	Note           string
	Stats          Stats
}

// Build aggregates findings and warnings into a report. Slices and maps in
// the result are never nil so the JSON shape is stable.
func Build(in Input) *Report {
	r := &Report{
		Status:                StatusClean,
		MaxSeverity:           string(StatusClean),
		Findings:              in.Findings,
		MultiplicationFactors: in.Factors,
		CascadePaths:          in.Paths,
		CascadePathsTruncated: in.PathsTruncated,
		CyclesDetected:        make([]CycleEntry, 0, len(in.Cycles)),
		Warnings:              make([]string, 0, len(in.Warnings)),
		WarningDetails:        in.Warnings,
		Note:                  in.Note,
		Stats:                 in.Stats,
		Summary: Summary{
			BySeverity: make(map[patterns.Severity]int),
			ByPattern:  make(map[patterns.PatternKind]int),
		},
	}
	if r.Findings == nil {
		r.Findings = []patterns.Finding{}
	}
	if r.MultiplicationFactors == nil {
		r.MultiplicationFactors = map[string]float64{}
	}
	if r.CascadePaths == nil {
		r.CascadePaths = []algorithms.CascadePath{}
	}
	if r.WarningDetails == nil {
		r.WarningDetails = []corpus.Warning{}
	}

	for _, s := range patterns.Severities() {
		r.Summary.BySeverity[s] = 0
	}
	for _, f := range r.Findings {
		r.Summary.BySeverity[f.Severity]++
		r.Summary.ByPattern[f.Pattern]++
	}

	for _, c := range in.Cycles {
		r.CyclesDetected = append(r.CyclesDetected, CycleEntry{Node: c.Node, DepthUsed: c.Depth, Path: c.Path})
	}
	for _, w := range in.Warnings {
		r.Warnings = append(r.Warnings, w.String())
	}

	if top, ok := patterns.MaxSeverity(r.Findings); ok {
		r.MaxSeverity = string(top)
		r.Status = StatusAttention
		if top == patterns.SeverityCritical {
			r.Status = StatusBlocking
		}
	}
	return r
}
