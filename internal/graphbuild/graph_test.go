// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package graphbuild

import (
	"testing"

	"github.com/LiZaiyuan0619/IGen/pkg/types"
)

func mustAddNode(t *testing.T, g *Graph, id string, kind types.NodeKind, salience float64) {
	t.Helper()
	if err := g.AddNode(types.GraphNode{ID: id, Label: id, Kind: kind, Salience: salience}); err != nil {
		t.Fatalf("AddNode(%s): %v", id, err)
	}
}

func mustSetEdge(t *testing.T, g *Graph, from, to string, rel types.RelationKind) {
	t.Helper()
	if err := g.SetEdge(types.GraphEdge{From: from, To: to, Relation: rel, Confidence: 0.8}); err != nil {
		t.Fatalf("SetEdge(%s→%s): %v", from, to, err)
	}
}

func TestAddNodeRejectsDuplicates(t *testing.T) {
	g := NewGraph()
	mustAddNode(t, g, "a", types.NodeConcept, 0.5)
	if err := g.AddNode(types.GraphNode{ID: "a", Label: "a"}); err == nil {
		t.Fatal("duplicate AddNode succeeded, want error")
	}
}

func TestSetEdgeRequiresEndpoints(t *testing.T) {
	g := NewGraph()
	mustAddNode(t, g, "a", types.NodeConcept, 0.5)
	if err := g.SetEdge(types.GraphEdge{From: "a", To: "missing", Relation: types.RelSupports}); err == nil {
		t.Fatal("SetEdge to missing node succeeded, want error")
	}
	if err := g.SetEdge(types.GraphEdge{From: "a", To: "a", Relation: types.RelSupports}); err == nil {
		t.Fatal("self-loop succeeded, want error")
	}
}

func TestFinalizeFreezesGraph(t *testing.T) {
	g := NewGraph()
	mustAddNode(t, g, "a", types.NodeConcept, 0.5)
	g.Finalize()

	if err := g.AddNode(types.GraphNode{ID: "b"}); err == nil {
		t.Error("AddNode after Finalize succeeded, want error")
	}
	if err := g.SetEdge(types.GraphEdge{From: "a", To: "a"}); err == nil {
		t.Error("SetEdge after Finalize succeeded, want error")
	}
	if err := g.SetSalience("a", 0.9); err == nil {
		t.Error("SetSalience after Finalize succeeded, want error")
	}
}

func TestEdgeEndpointsAlwaysExist(t *testing.T) {
	g := NewGraph()
	mustAddNode(t, g, "a", types.NodeConcept, 0.5)
	mustAddNode(t, g, "b", types.NodeMethod, 0.5)
	mustSetEdge(t, g, "a", "b", types.RelSupports)

	if err := g.Validate(); err != nil {
		t.Fatalf("Validate() = %v", err)
	}
	for _, e := range g.Edges() {
		if _, ok := g.Node(e.From); !ok {
			t.Errorf("edge from missing node %s", e.From)
		}
		if _, ok := g.Node(e.To); !ok {
			t.Errorf("edge to missing node %s", e.To)
		}
	}
}

// chain builds a → b → c → d with a side branch b → e.
func chainGraph(t *testing.T) *Graph {
	g := NewGraph()
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		mustAddNode(t, g, id, types.NodeConcept, 0.5)
	}
	mustSetEdge(t, g, "a", "b", types.RelSupports)
	mustSetEdge(t, g, "b", "c", types.RelSupports)
	mustSetEdge(t, g, "c", "d", types.RelSupports)
	mustSetEdge(t, g, "b", "e", types.RelSupports)
	g.Finalize()
	return g
}

func TestWithinHops(t *testing.T) {
	g := chainGraph(t)

	dist := g.WithinHops("a", 2)
	want := map[string]int{"b": 1, "c": 2, "e": 2}
	if len(dist) != len(want) {
		t.Fatalf("WithinHops(a,2) = %v, want %v", dist, want)
	}
	for id, d := range want {
		if dist[id] != d {
			t.Errorf("dist[%s] = %d, want %d", id, dist[id], d)
		}
	}
}

func TestHasPathWithin(t *testing.T) {
	g := chainGraph(t)

	tests := []struct {
		from, to string
		hops     int
		want     bool
	}{
		{"a", "d", 3, true},
		{"a", "d", 2, false},
		{"d", "a", 5, false}, // directed: no reverse path
		{"b", "e", 1, true},
	}
	for _, tt := range tests {
		if got := g.HasPathWithin(tt.from, tt.to, tt.hops); got != tt.want {
			t.Errorf("HasPathWithin(%s,%s,%d) = %v, want %v", tt.from, tt.to, tt.hops, got, tt.want)
		}
	}
}

func TestDegreeAndNeighbors(t *testing.T) {
	g := chainGraph(t)

	if got := g.Degree("b"); got != 3 {
		t.Errorf("Degree(b) = %d, want 3", got)
	}
	want := []string{"a", "c", "e"}
	got := g.Neighbors("b")
	if len(got) != len(want) {
		t.Fatalf("Neighbors(b) = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Neighbors(b)[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestContradictsBetween(t *testing.T) {
	g := NewGraph()
	mustAddNode(t, g, "a", types.NodeConcept, 0.5)
	mustAddNode(t, g, "b", types.NodeConcept, 0.5)
	mustAddNode(t, g, "c", types.NodeConcept, 0.5)
	mustSetEdge(t, g, "a", "b", types.RelContradicts)
	g.Finalize()

	if !g.ContradictsBetween("a", "b") || !g.ContradictsBetween("b", "a") {
		t.Error("ContradictsBetween(a,b) = false, want true both directions")
	}
	if g.ContradictsBetween("a", "c") {
		t.Error("ContradictsBetween(a,c) = true, want false")
	}
}

func TestRelationMultiset(t *testing.T) {
	g := chainGraph(t)
	ms := g.RelationMultiset("b")
	if ms[types.RelSupports] != 3 {
		t.Errorf("RelationMultiset(b)[supports] = %d, want 3", ms[types.RelSupports])
	}
}
