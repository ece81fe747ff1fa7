package patterns

import (
	"fmt"
	"sort"

	"github.com/dd0wney/stormcheck/pkg/algorithms"
)

// Classify applies every rule to the same inputs and returns the findings
// sorted by severity (most severe first), then subject, then pattern. The
// result depends only on the arguments, never on map iteration order.
func Classify(cycles []algorithms.CycleWitness, factors map[string]float64, th Thresholds) []Finding {
	findings := make([]Finding, 0, len(cycles))
	findings = append(findings, classifyLoops(cycles, th)...)
	findings = append(findings, classifyFanout(factors, th)...)
	SortFindings(findings)
	return findings
}

func classifyLoops(cycles []algorithms.CycleWitness, th Thresholds) []Finding {
	var out []Finding
	for _, c := range cycles {
		if c.Depth > th.LoopDepth {
			continue
		}
		out = append(out, Finding{
			Pattern:     TightEventLoop,
			Severity:    SeverityCritical,
			Subject:     c.Node,
			Subjects:    loopMembers(c),
			Description: fmt.Sprintf("Event from %s loops back to itself within %d hops", c.Node, c.Depth),
			Evidence: map[string]any{
				"cycle_depth": c.Depth,
				"max_depth":   th.LoopDepth,
				"path":        append([]string(nil), c.Path...),
			},
			Recommendation: loopRecommendation,
		})
	}
	return out
}

// loopMembers returns the distinct nodes of a loop, the witness node first.
func loopMembers(c algorithms.CycleWitness) []string {
	members := []string{c.Node}
	seen := map[string]bool{c.Node: true}
	for _, n := range c.Path {
		if !seen[n] {
			seen[n] = true
			members = append(members, n)
		}
	}
	return members
}

func classifyFanout(factors map[string]float64, th Thresholds) []Finding {
	var out []Finding
	for source, factor := range factors {
		var (
			kind      PatternKind
			severity  Severity
			threshold float64
		)
		switch {
		case factor > th.Explosive:
			kind, severity, threshold = ExplosiveAmplification, SeverityCritical, th.Explosive
		case factor > th.Fanout:
			kind, severity, threshold = UncontrolledFanout, SeverityWarning, th.Fanout
		default:
			continue
		}
		out = append(out, Finding{
			Pattern:     kind,
			Severity:    severity,
			Subject:     source,
			Subjects:    []string{source},
			Description: fmt.Sprintf("A single event on %s triggers %g downstream event steps (threshold %g)", source, factor, threshold),
			Evidence: map[string]any{
				"multiplication": factor,
				"threshold":      threshold,
			},
			Recommendation: fanoutRecommendation,
		})
	}
	return out
}

// SortFindings orders findings by severity desc, subject asc, pattern asc.
func SortFindings(findings []Finding) {
	sort.SliceStable(findings, func(i, j int) bool {
		a, b := findings[i], findings[j]
		if ra, rb := a.Severity.Rank(), b.Severity.Rank(); ra != rb {
			return ra > rb
		}
		if a.Subject != b.Subject {
			return a.Subject < b.Subject
		}
		return a.Pattern < b.Pattern
	})
}

// MaxSeverity returns the most severe finding level, or false when empty.
func MaxSeverity(findings []Finding) (Severity, bool) {
	var top Severity
	for _, f := range findings {
		if f.Severity.Rank() > top.Rank() {
			top = f.Severity
		}
	}
	return top, top != ""
}
