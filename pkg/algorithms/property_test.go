package algorithms

import (
	"fmt"
	"reflect"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/dd0wney/stormcheck/pkg/eventgraph"
)

const propNodes = 8

// graphFromInts reads consecutive pairs as edges over N0..N7.
func graphFromInts(vals []int) *eventgraph.Graph {
	adj := make(map[string][]string, propNodes)
	for i := 0; i < propNodes; i++ {
		adj[fmt.Sprintf("N%d", i)] = nil
	}
	for i := 0; i+1 < len(vals); i += 2 {
		from := fmt.Sprintf("N%d", vals[i]%propNodes)
		to := fmt.Sprintf("N%d", vals[i+1]%propNodes)
		adj[from] = append(adj[from], to)
	}
	return eventgraph.FromAdjacency(adj)
}

// TestTraversalProperties checks invariants that hold for every event graph.
func TestTraversalProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)
	edges := gen.SliceOf(gen.IntRange(0, 63))

	properties.Property("sinks trace to one trivial path with factor 1", prop.ForAll(
		func(vals []int) bool {
			g := graphFromInts(vals)
			for id := 0; id < g.NodeCount(); id++ {
				if g.OutDegree(id) != 0 {
					continue
				}
				paths, err := Trace(g, g.Name(id))
				if err != nil || len(paths) != 1 || paths[0].Steps != 1 {
					return false
				}
				if AmplificationFactor(paths) != 1.0 {
					return false
				}
			}
			return true
		},
		edges,
	))

	properties.Property("every reachable node appears in exactly one expansion", prop.ForAll(
		func(vals []int) bool {
			g := graphFromInts(vals)
			for id := 0; id < g.NodeCount(); id++ {
				paths, _ := Trace(g, g.Name(id))
				seen := map[string]bool{}
				for _, p := range paths {
					if p.Steps != len(p.Path) || p.Path[0] != g.Name(id) {
						return false
					}
					for _, n := range p.Path {
						seen[n] = true
					}
				}
				if len(seen) != reachable(g, id) {
					return false
				}
			}
			return true
		},
		edges,
	))

	properties.Property("loops never exceed maxDepth and are real loops", prop.ForAll(
		func(vals []int, maxDepth int) bool {
			g := graphFromInts(vals)
			for _, w := range DetectTightLoops(g, maxDepth) {
				if w.Depth < 1 || w.Depth > maxDepth || len(w.Path) != w.Depth+1 {
					return false
				}
				if w.Path[0] != w.Node || w.Path[len(w.Path)-1] != w.Node {
					return false
				}
				inner := map[string]bool{}
				for i := 0; i+1 < len(w.Path); i++ {
					if !g.HasEdge(w.Path[i], w.Path[i+1]) || inner[w.Path[i]] {
						return false
					}
					inner[w.Path[i]] = true
				}
			}
			return true
		},
		edges,
		gen.IntRange(0, 5),
	))

	properties.Property("maxDepth 0 yields no loops", prop.ForAll(
		func(vals []int) bool {
			return len(DetectTightLoops(graphFromInts(vals), 0)) == 0
		},
		edges,
	))

	properties.Property("analysis is deterministic", prop.ForAll(
		func(vals []int) bool {
			a, b := graphFromInts(vals), graphFromInts(vals)
			return reflect.DeepEqual(TraceAll(a, TraceOptions{}), TraceAll(b, TraceOptions{})) &&
				reflect.DeepEqual(DetectTightLoops(a, 3), DetectTightLoops(b, 3))
		},
		edges,
	))

	properties.TestingRun(t)
}

// reachable counts nodes reachable from start, start included.
func reachable(g *eventgraph.Graph, start int) int {
	seen := map[int]bool{start: true}
	stack := []int{start}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, s := range g.Successors(n) {
			if !seen[s] {
				seen[s] = true
				stack = append(stack, s)
			}
		}
	}
	return len(seen)
}
