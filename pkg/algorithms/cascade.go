package algorithms

import (
	"errors"
	"fmt"
	"strings"

	"github.com/RoaringBitmap/roaring"

	"github.com/dd0wney/stormcheck/pkg/eventgraph"
)

// ErrUnknownNode is returned when a trace starts from a type that is not in the graph.
var ErrUnknownNode = errors.New("unknown node")

// CascadePath is one terminal path of a cascade trace. Path starts with the
// stimulus, so Steps is always len(Path) and a sink yields Steps 1.
type CascadePath struct {
	Source string   `json:"source"`
	Path   []string `json:"path"`
	Steps  int      `json:"steps"`
}

// Trace explores everything a single stimulus on source can trigger.
//
// The walk is breadth-first and each node is expanded at most once per call,
// which bounds the work on cyclic graphs. A path ends when its last node has
// no successor left to visit. Paths come back in BFS discovery order; a
// source without successors yields exactly one trivial path.
func Trace(g *eventgraph.Graph, source string) ([]CascadePath, error) {
	start, ok := g.ID(source)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownNode, source)
	}
	return trace(g, start), nil
}

func trace(g *eventgraph.Graph, start int) []CascadePath {
	visited := roaring.New()
	visited.Add(uint32(start))

	var terminal [][]int
	queue := [][]int{{start}}

	for len(queue) > 0 {
		path := queue[0]
		queue = queue[1:]

		extended := false
		for _, next := range g.Successors(path[len(path)-1]) {
			if !visited.CheckedAdd(uint32(next)) {
				continue
			}
			extended = true
			// Fresh backing array per branch; siblings must not share tails.
			branch := make([]int, len(path)+1)
			copy(branch, path)
			branch[len(path)] = next
			queue = append(queue, branch)
		}
		if !extended {
			terminal = append(terminal, path)
		}
	}

	source := g.Name(start)
	out := make([]CascadePath, len(terminal))
	for i, ids := range terminal {
		names := make([]string, len(ids))
		for j, id := range ids {
			names[j] = g.Name(id)
		}
		out[i] = CascadePath{Source: source, Path: names, Steps: len(names)}
	}
	return out
}

// AmplificationFactor counts the stimulus once plus the downstream steps of
// every terminal path: 1 + sum(Steps-1). A fan of 35 leaves scores 36 and a
// sink scores 1. Prefixes shared by several terminal paths are counted once
// per path, so branching cascades weigh more than the number of distinct
// nodes they reach.
func AmplificationFactor(paths []CascadePath) float64 {
	if len(paths) == 0 {
		return 0
	}
	total := 1
	for _, p := range paths {
		total += p.Steps - 1
	}
	return float64(total)
}

// TraceOptions selects which nodes act as stimulus sources.
type TraceOptions struct {
	// Sources keeps only nodes whose name contains one of these substrings
	// (case-insensitive). Empty traces every node.
	Sources []string
	// MaxPaths caps the retained cascade paths. Zero or less keeps all.
	MaxPaths int
}

// CascadeResult aggregates the traces of every selected source.
type CascadeResult struct {
	Factors    map[string]float64
	// Paths holds the retained paths, sources in ascending name order.
	Paths      []CascadePath
	TotalPaths int
	Truncated  bool
}

// TraceAll traces every selected source. Factors always cover every traced
// source; only the retained path list is subject to MaxPaths.
func TraceAll(g *eventgraph.Graph, opts TraceOptions) *CascadeResult {
	res := &CascadeResult{Factors: make(map[string]float64)}

	for id := 0; id < g.NodeCount(); id++ {
		name := g.Name(id)
		if !MatchesSource(name, opts.Sources) {
			continue
		}
		paths := trace(g, id)
		res.Factors[name] = AmplificationFactor(paths)
		res.TotalPaths += len(paths)

		for _, p := range paths {
			if opts.MaxPaths > 0 && len(res.Paths) >= opts.MaxPaths {
				res.Truncated = true
				break
			}
			res.Paths = append(res.Paths, p)
		}
	}
	return res
}

// MatchesSource reports whether name is selected by the source filter.
func MatchesSource(name string, filters []string) bool {
	if len(filters) == 0 {
		return true
	}
	upper := strings.ToUpper(name)
	for _, f := range filters {
		if f != "" && strings.Contains(upper, strings.ToUpper(f)) {
			return true
		}
	}
	return false
}
