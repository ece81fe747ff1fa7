package algorithms

import (
	"github.com/dd0wney/stormcheck/pkg/eventgraph"
)

// CycleWitness is one event loop that returns to Node. Path starts and ends
// with Node; Depth is the number of hops, so a self-loop has Depth 1.
type CycleWitness struct {
	Node  string   `json:"node"`
	Depth int      `json:"depth"`
	Path  []string `json:"path"`
}

type loopFrame struct {
	node int
	next int // index of the next successor to try
}

// DetectTightLoops looks for loops of at most maxDepth hops through each node.
//
// For every node, in ascending name order, a depth-first search follows
// successors in ascending order. It may step back onto the start node to
// close a loop but never onto any other node already on the current path.
// The search stops at the first loop it closes, so the result holds at most
// one witness per node: at least one witness when such a loop exists, not
// every loop. maxDepth <= 0 reports nothing.
func DetectTightLoops(g *eventgraph.Graph, maxDepth int) []CycleWitness {
	if maxDepth <= 0 {
		return nil
	}

	var witnesses []CycleWitness
	onPath := make([]bool, g.NodeCount())

	for start := 0; start < g.NodeCount(); start++ {
		ids := findLoop(g, start, maxDepth, onPath)
		if ids == nil {
			continue
		}
		names := make([]string, len(ids))
		for i, id := range ids {
			names[i] = g.Name(id)
		}
		witnesses = append(witnesses, CycleWitness{
			Node:  names[0],
			Depth: len(ids) - 1,
			Path:  names,
		})
	}
	return witnesses
}

// findLoop returns the closed path start..start, or nil. onPath must be all
// false on entry and is left all false on return.
func findLoop(g *eventgraph.Graph, start, maxDepth int, onPath []bool) []int {
	path := []int{start}
	stack := []loopFrame{{node: start}}
	onPath[start] = true
	defer func() {
		for _, id := range path {
			onPath[id] = false
		}
	}()

	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		succ := g.Successors(top.node)
		if top.next >= len(succ) {
			stack = stack[:len(stack)-1]
			onPath[path[len(path)-1]] = false
			path = path[:len(path)-1]
			continue
		}
		next := succ[top.next]
		top.next++

		// Closing edge from the last node on the path adds len(path) hops.
		if next == start {
			closed := make([]int, len(path)+1)
			copy(closed, path)
			closed[len(path)] = start
			return closed
		}
		if onPath[next] || len(path) >= maxDepth {
			continue
		}
		onPath[next] = true
		path = append(path, next)
		stack = append(stack, loopFrame{node: next})
	}
	return nil
}
