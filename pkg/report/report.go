// Package report assembles the diagnostic result of one analysis run and
// writes it out as JSON or as a styled text summary.
package report

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/dd0wney/stormcheck/pkg/algorithms"
	"github.com/dd0wney/stormcheck/pkg/corpus"
	"github.com/dd0wney/stormcheck/pkg/patterns"
)

// Status is the overall verdict consumed by the CLI.
type Status string

const (
	StatusClean     Status = "clean"
	StatusAttention Status = "attention"
	StatusBlocking  Status = "blocking"
)

// Process exit codes.
const (
	ExitClean     = 0
	ExitFatal     = 1
	ExitUsage     = 2
	ExitAttention = 10
	ExitBlocking  = 11
)

// ExitCode maps a status onto the process exit code.
func (s Status) ExitCode() int {
	switch s {
	case StatusBlocking:
		return ExitBlocking
	case StatusAttention:
		return ExitAttention
	default:
		return ExitClean
	}
}

// Summary counts findings. BySeverity always carries every severity.
type Summary struct {
	BySeverity map[patterns.Severity]int    `json:"by_severity"`
	ByPattern  map[patterns.PatternKind]int `json:"by_pattern"`
}

// CycleEntry is one detected loop.
type CycleEntry struct {
	Node      string   `json:"node"`
	DepthUsed int      `json:"depth_used"`
	Path      []string `json:"path"`
}

// Stats describes the corpus and graph behind a report.
type Stats struct {
	FilesScanned int `json:"files_scanned"`
	FilesParsed  int `json:"files_parsed"`
	Nodes        int `json:"nodes"`
	Edges        int `json:"edges"`
	Sources      int `json:"sources_traced"`
}

// Report is the full diagnostic output.
type Report struct {
	Status      Status  `json:"status"`
	MaxSeverity string  `json:"max_severity"`
	Summary     Summary `json:"summary"`

	Findings              []patterns.Finding       `json:"findings"`
	MultiplicationFactors map[string]float64       `json:"multiplication_factors"`
	CascadePaths          []algorithms.CascadePath `json:"cascade_paths"`
	CascadePathsTruncated bool                     `json:"cascade_paths_truncated"`
	CyclesDetected        []CycleEntry             `json:"cycles_detected"`

	Warnings       []string         `json:"warnings"`
	WarningDetails []corpus.Warning `json:"warning_details"`
	Note           string           `json:"note,omitempty"`
	Stats          Stats            `json:"stats"`
}

// ExitCode returns the process exit code for the report.
func (r *Report) ExitCode() int {
	return r.Status.ExitCode()
}

// WriteJSON writes the report as indented JSON. Map keys are sorted by
// encoding/json, so equal reports produce identical bytes.
func (r *Report) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return nil
}

// Format selects the report rendering.
type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
)

// Write renders the report in the given format.
func (r *Report) Write(w io.Writer, format Format) error {
	switch format {
	case FormatJSON, "":
		return r.WriteJSON(w)
	case FormatText:
		return r.RenderText(w)
	default:
		return fmt.Errorf("unknown report format %q", format)
	}
}
