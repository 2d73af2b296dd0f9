// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package graphbuild constructs the semantic opportunity graph over a
// literature corpus: entity extraction, relation typing, and per-node
// salience. The graph is mutable only during construction; Finalize
// freezes it for concurrent read-only use downstream.
// Implements: prd008-ideation (R2.1-R2.3); docs/ARCHITECTURE § Opportunity Graph.
package graphbuild

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/traverse"

	"github.com/LiZaiyuan0619/IGen/pkg/types"
)

// Graph is the opportunity graph: typed nodes with salience, typed
// directed edges with confidence. Structure queries are backed by a
// gonum directed graph; node and edge attributes live in side tables
// keyed by the stable string IDs.
type Graph struct {
	dg *simple.DirectedGraph

	nodes map[string]*types.GraphNode
	gid   map[string]int64          // stable ID → gonum node ID
	sid   map[int64]string          // gonum node ID → stable ID
	edges map[[2]string]*types.GraphEdge

	finalized bool
}

// NewGraph returns an empty mutable graph.
func NewGraph() *Graph {
	return &Graph{
		dg:    simple.NewDirectedGraph(),
		nodes: make(map[string]*types.GraphNode),
		gid:   make(map[string]int64),
		sid:   make(map[int64]string),
		edges: make(map[[2]string]*types.GraphEdge),
	}
}

// AddNode inserts a node. Node IDs must be unique; adding to a finalized
// graph is an error.
func (g *Graph) AddNode(n types.GraphNode) error {
	if g.finalized {
		return fmt.Errorf("graph is finalized")
	}
	if n.ID == "" {
		return fmt.Errorf("node has empty ID")
	}
	if _, ok := g.nodes[n.ID]; ok {
		return fmt.Errorf("duplicate node ID %q", n.ID)
	}
	gn := g.dg.NewNode()
	g.dg.AddNode(gn)
	g.gid[n.ID] = gn.ID()
	g.sid[gn.ID()] = n.ID
	g.nodes[n.ID] = &n
	return nil
}

// SetEdge inserts or replaces the edge between two existing nodes.
// Both endpoints must already be present.
func (g *Graph) SetEdge(e types.GraphEdge) error {
	if g.finalized {
		return fmt.Errorf("graph is finalized")
	}
	if e.From == e.To {
		return fmt.Errorf("self-loop on node %q", e.From)
	}
	from, ok := g.gid[e.From]
	if !ok {
		return fmt.Errorf("edge references missing node %q", e.From)
	}
	to, ok := g.gid[e.To]
	if !ok {
		return fmt.Errorf("edge references missing node %q", e.To)
	}
	g.dg.SetEdge(simple.Edge{F: simple.Node(from), T: simple.Node(to)})
	g.edges[[2]string{e.From, e.To}] = &e
	return nil
}

// SetSalience updates a node's salience during construction.
func (g *Graph) SetSalience(id string, salience float64) error {
	if g.finalized {
		return fmt.Errorf("graph is finalized")
	}
	n, ok := g.nodes[id]
	if !ok {
		return fmt.Errorf("unknown node %q", id)
	}
	n.Salience = salience
	return nil
}

// Finalize freezes the graph. Mutation attempts after Finalize fail.
func (g *Graph) Finalize() { g.finalized = true }

// Finalized reports whether the graph is frozen.
func (g *Graph) Finalized() bool { return g.finalized }

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int { return len(g.nodes) }

// EdgeCount returns the number of edges.
func (g *Graph) EdgeCount() int { return len(g.edges) }

// Node returns the node with the given ID.
func (g *Graph) Node(id string) (types.GraphNode, bool) {
	n, ok := g.nodes[id]
	if !ok {
		return types.GraphNode{}, false
	}
	return *n, true
}

// NodeIDs returns all node IDs in lexicographic order, for deterministic
// iteration.
func (g *Graph) NodeIDs() []string {
	ids := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Nodes returns all nodes ordered by ID.
func (g *Graph) Nodes() []types.GraphNode {
	out := make([]types.GraphNode, 0, len(g.nodes))
	for _, id := range g.NodeIDs() {
		out = append(out, *g.nodes[id])
	}
	return out
}

// Edges returns all edges ordered by (from, to).
func (g *Graph) Edges() []types.GraphEdge {
	keys := make([][2]string, 0, len(g.edges))
	for k := range g.edges {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i][0] != keys[j][0] {
			return keys[i][0] < keys[j][0]
		}
		return keys[i][1] < keys[j][1]
	})
	out := make([]types.GraphEdge, 0, len(keys))
	for _, k := range keys {
		out = append(out, *g.edges[k])
	}
	return out
}

// Edge returns the edge from one node to another, if present.
func (g *Graph) Edge(from, to string) (types.GraphEdge, bool) {
	e, ok := g.edges[[2]string{from, to}]
	if !ok {
		return types.GraphEdge{}, false
	}
	return *e, true
}

// Degree returns a node's total degree (in + out).
func (g *Graph) Degree(id string) int {
	gid, ok := g.gid[id]
	if !ok {
		return 0
	}
	return g.dg.From(gid).Len() + g.dg.To(gid).Len()
}

// OutNeighbors returns the IDs of nodes reachable by one out-edge,
// sorted for determinism.
func (g *Graph) OutNeighbors(id string) []string {
	gid, ok := g.gid[id]
	if !ok {
		return nil
	}
	var out []string
	it := g.dg.From(gid)
	for it.Next() {
		out = append(out, g.sid[it.Node().ID()])
	}
	sort.Strings(out)
	return out
}

// Neighbors returns the IDs of nodes adjacent by any edge direction,
// sorted for determinism.
func (g *Graph) Neighbors(id string) []string {
	gid, ok := g.gid[id]
	if !ok {
		return nil
	}
	seen := make(map[string]bool)
	for _, it := range []graph.Nodes{g.dg.From(gid), g.dg.To(gid)} {
		for it.Next() {
			seen[g.sid[it.Node().ID()]] = true
		}
	}
	out := make([]string, 0, len(seen))
	for n := range seen {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// HasPathWithin reports whether a directed path of at most maxHops edges
// leads from one node to another.
func (g *Graph) HasPathWithin(from, to string, maxHops int) bool {
	_, ok := g.WithinHops(from, maxHops)[to]
	return ok
}

// WithinHops returns directed hop distances from a node to every node
// reachable in at most maxHops edges. The start node itself is excluded.
func (g *Graph) WithinHops(from string, maxHops int) map[string]int {
	start, ok := g.gid[from]
	if !ok {
		return nil
	}

	dist := make(map[string]int)
	bfs := traverse.BreadthFirst{}
	bfs.Walk(g.dg, simple.Node(start), func(n graph.Node, d int) bool {
		if d > 0 && d <= maxHops {
			dist[g.sid[n.ID()]] = d
		}
		// BFS visits whole depth layers in order, so halting at the
		// first node past maxHops cannot skip nodes within the limit.
		return d > maxHops
	})
	return dist
}

// ContradictsBetween reports whether a contradicts edge links two nodes
// in either direction.
func (g *Graph) ContradictsBetween(a, b string) bool {
	if e, ok := g.Edge(a, b); ok && e.Relation == types.RelContradicts {
		return true
	}
	if e, ok := g.Edge(b, a); ok && e.Relation == types.RelContradicts {
		return true
	}
	return false
}

// RelationMultiset returns the bag of relation kinds on a node's
// incident edges (both directions).
func (g *Graph) RelationMultiset(id string) map[types.RelationKind]int {
	ms := make(map[types.RelationKind]int)
	for key, e := range g.edges {
		if key[0] == id || key[1] == id {
			ms[e.Relation]++
		}
	}
	return ms
}

// Validate checks the structural invariant that every edge's endpoints
// exist as nodes.
func (g *Graph) Validate() error {
	for key := range g.edges {
		if _, ok := g.nodes[key[0]]; !ok {
			return fmt.Errorf("edge references missing node %q", key[0])
		}
		if _, ok := g.nodes[key[1]]; !ok {
			return fmt.Errorf("edge references missing node %q", key[1])
		}
	}
	return nil
}

// Snapshot returns the serializable form of the graph, with nodes and
// edges in deterministic order.
func (g *Graph) Snapshot() types.GraphSnapshot {
	return types.GraphSnapshot{
		Nodes: g.Nodes(),
		Edges: g.Edges(),
	}
}
