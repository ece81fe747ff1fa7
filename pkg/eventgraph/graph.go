// Package eventgraph holds the type-level event propagation graph.
//
// Nodes are block type names. Each name gets a dense integer id, assigned
// once in ascending name order, so traversals index slices instead of
// hashing strings and every iteration order is deterministic.
package eventgraph

import (
	"sort"
)

// Graph is an immutable directed graph over block type names.
type Graph struct {
	names []string
	index map[string]int
	succ  [][]int
	edges int
}

// NodeCount returns the number of nodes, isolated ones included.
func (g *Graph) NodeCount() int {
	return len(g.names)
}

// EdgeCount returns the number of distinct directed edges.
func (g *Graph) EdgeCount() int {
	return g.edges
}

// Nodes returns every type name in id order (ascending).
func (g *Graph) Nodes() []string {
	out := make([]string, len(g.names))
	copy(out, g.names)
	return out
}

// ID returns the dense id of a type name.
func (g *Graph) ID(name string) (int, bool) {
	id, ok := g.index[name]
	return id, ok
}

// Name returns the type name for an id. It panics on an out-of-range id.
func (g *Graph) Name(id int) string {
	return g.names[id]
}

// Successors returns the ascending successor ids of a node. The slice is
// shared; callers must not modify it.
func (g *Graph) Successors(id int) []int {
	return g.succ[id]
}

// OutDegree returns the number of distinct successors of a node.
func (g *Graph) OutDegree(id int) int {
	return len(g.succ[id])
}

// SuccessorNames returns the successors of a named node. ok is false when
// the node is unknown, which is different from a known node with no edges.
func (g *Graph) SuccessorNames(name string) ([]string, bool) {
	id, ok := g.index[name]
	if !ok {
		return nil, false
	}
	out := make([]string, len(g.succ[id]))
	for i, s := range g.succ[id] {
		out[i] = g.names[s]
	}
	return out, true
}

// HasEdge reports whether from -> to exists.
func (g *Graph) HasEdge(from, to string) bool {
	a, ok := g.index[from]
	if !ok {
		return false
	}
	b, ok := g.index[to]
	if !ok {
		return false
	}
	succ := g.succ[a]
	i := sort.SearchInts(succ, b)
	return i < len(succ) && succ[i] == b
}

// Adjacency returns the graph as a name -> successor names map. Isolated
// nodes map to an empty, non-nil slice.
func (g *Graph) Adjacency() map[string][]string {
	out := make(map[string][]string, len(g.names))
	for _, name := range g.names {
		succ, _ := g.SuccessorNames(name)
		out[name] = succ
	}
	return out
}

// FromAdjacency builds a graph directly from a name -> successors map.
// Successors missing from the key set become isolated nodes.
func FromAdjacency(adj map[string][]string) *Graph {
	b := newBuilder()
	for name, succ := range adj {
		b.addNode(name)
		for _, s := range succ {
			b.addNode(s)
		}
	}
	b.freeze()
	for name, succ := range adj {
		for _, s := range succ {
			b.addEdge(name, s)
		}
	}
	return b.finish()
}

// builder collects names first, then edges, so ids can be assigned in sorted order.
type builder struct {
	pending map[string]bool
	g       *Graph
	sets    []map[int]bool
}

func newBuilder() *builder {
	return &builder{pending: make(map[string]bool)}
}

func (b *builder) addNode(name string) {
	b.pending[name] = true
}

func (b *builder) freeze() {
	names := make([]string, 0, len(b.pending))
	for n := range b.pending {
		names = append(names, n)
	}
	sort.Strings(names)

	g := &Graph{
		names: names,
		index: make(map[string]int, len(names)),
		succ:  make([][]int, len(names)),
	}
	for i, n := range names {
		g.index[n] = i
	}
	b.g = g
	b.sets = make([]map[int]bool, len(names))
}

// addEdge records from -> to; both names must already be nodes.
func (b *builder) addEdge(from, to string) {
	a, b2 := b.g.index[from], b.g.index[to]
	if b.sets[a] == nil {
		b.sets[a] = make(map[int]bool)
	}
	b.sets[a][b2] = true
}

func (b *builder) finish() *Graph {
	for id, set := range b.sets {
		succ := make([]int, 0, len(set))
		for s := range set {
			succ = append(succ, s)
		}
		sort.Ints(succ)
		b.g.succ[id] = succ
		b.g.edges += len(succ)
	}
	return b.g
}
