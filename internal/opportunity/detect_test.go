// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package opportunity

import (
	"reflect"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/LiZaiyuan0619/IGen/internal/graphbuild"
	"github.com/LiZaiyuan0619/IGen/pkg/types"
)

func addNode(t *testing.T, g *graphbuild.Graph, id string, kind types.NodeKind, salience float64) {
	t.Helper()
	if err := g.AddNode(types.GraphNode{ID: id, Label: id, Kind: kind, Salience: salience}); err != nil {
		t.Fatalf("AddNode(%s): %v", id, err)
	}
}

func addEdge(t *testing.T, g *graphbuild.Graph, from, to string, rel types.RelationKind) {
	t.Helper()
	if err := g.SetEdge(types.GraphEdge{From: from, To: to, Relation: rel, Confidence: 0.8}); err != nil {
		t.Fatalf("SetEdge(%s→%s): %v", from, to, err)
	}
}

func TestDetectGaps(t *testing.T) {
	g := graphbuild.NewGraph()
	addNode(t, g, "salient-lonely", types.NodeConcept, 0.9)  // gap
	addNode(t, g, "salient-connected", types.NodeMethod, 0.8) // degree too high
	addNode(t, g, "dull-lonely", types.NodeConcept, 0.2)      // salience too low
	addNode(t, g, "x1", types.NodeConcept, 0.3)
	addNode(t, g, "x2", types.NodeConcept, 0.3)
	addEdge(t, g, "salient-connected", "x1", types.RelUses)
	addEdge(t, g, "salient-connected", "x2", types.RelUses)
	g.Finalize()

	d := NewDetector(types.GraphConfig{SalienceThreshold: 0.6, GapDegreeThreshold: 2}, zap.NewNop())
	opps := d.Detect(g)

	var gaps []types.Opportunity
	for _, o := range opps {
		if o.Kind == types.OppGap {
			gaps = append(gaps, o)
		}
	}
	if len(gaps) != 1 {
		t.Fatalf("got %d gaps, want 1: %+v", len(gaps), gaps)
	}
	if gaps[0].AnchorNodes[0] != "salient-lonely" {
		t.Errorf("gap anchored at %s, want salient-lonely", gaps[0].AnchorNodes[0])
	}
	if gaps[0].Priority <= 0 {
		t.Errorf("gap priority = %f, want > 0", gaps[0].Priority)
	}
}

// combinationGraph is the scenario fixture: A (salience 0.9, degree 1)
// and B (salience 0.85, degree 1), no path A-B, shared two-hop neighbor C.
func combinationGraph(t *testing.T) *graphbuild.Graph {
	g := graphbuild.NewGraph()
	addNode(t, g, "A", types.NodeConcept, 0.9)
	addNode(t, g, "B", types.NodeConcept, 0.85)
	addNode(t, g, "C", types.NodeConcept, 0.4)
	addNode(t, g, "x", types.NodeConcept, 0.3)
	addNode(t, g, "y", types.NodeConcept, 0.3)
	addEdge(t, g, "A", "x", types.RelSupports)
	addEdge(t, g, "x", "C", types.RelSupports)
	addEdge(t, g, "B", "y", types.RelSupports)
	addEdge(t, g, "y", "C", types.RelSupports)
	g.Finalize()
	return g
}

func combinationConfig() types.GraphConfig {
	// GapDegreeThreshold 1 keeps degree-1 anchors from also firing gaps.
	return types.GraphConfig{
		SalienceThreshold:  0.6,
		GapDegreeThreshold: 1,
		HopLimit:           3,
	}
}

func TestDetectCombination(t *testing.T) {
	g := combinationGraph(t)
	d := NewDetector(combinationConfig(), zap.NewNop())
	opps := d.Detect(g)

	if len(opps) != 1 {
		t.Fatalf("got %d opportunities, want exactly 1: %+v", len(opps), opps)
	}
	o := opps[0]
	if o.Kind != types.OppCombination {
		t.Fatalf("kind = %s, want combination", o.Kind)
	}
	if !reflect.DeepEqual(o.AnchorNodes, []string{"A", "B"}) {
		t.Errorf("anchors = %v, want [A B]", o.AnchorNodes)
	}
}

func TestCombinationDistanceScalesPriority(t *testing.T) {
	// A and B share the direct successor C: they meet two hops apart,
	// so the distance penalty must be half that of the four-hop fixture.
	g := graphbuild.NewGraph()
	addNode(t, g, "A", types.NodeConcept, 0.9)
	addNode(t, g, "B", types.NodeConcept, 0.85)
	addNode(t, g, "C", types.NodeConcept, 0.4)
	addEdge(t, g, "A", "C", types.RelSupports)
	addEdge(t, g, "B", "C", types.RelSupports)
	g.Finalize()

	cfg := combinationConfig()
	cfg.DistancePenalty = 0.05
	d := NewDetector(cfg, zap.NewNop())
	opps := d.Detect(g)
	if len(opps) != 1 {
		t.Fatalf("got %d opportunities, want exactly 1: %+v", len(opps), opps)
	}
	near := opps[0]
	if near.Kind != types.OppCombination {
		t.Fatalf("kind = %s, want combination", near.Kind)
	}
	if !strings.Contains(near.Rationale, "2 hops apart") {
		t.Errorf("rationale = %q, want the two-hop meeting distance", near.Rationale)
	}

	far := NewDetector(cfg, zap.NewNop()).Detect(combinationGraph(t))
	if len(far) != 1 {
		t.Fatalf("four-hop fixture: got %d opportunities, want 1", len(far))
	}
	wantGap := cfg.DistancePenalty * 2 // four hops versus two
	if diff := far[0].Priority + wantGap - near.Priority; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("priority gap = %f, want %f (near %f, far %f)",
			near.Priority-far[0].Priority, wantGap, near.Priority, far[0].Priority)
	}
}

func TestNoCombinationWhenPathExists(t *testing.T) {
	g := graphbuild.NewGraph()
	addNode(t, g, "A", types.NodeConcept, 0.9)
	addNode(t, g, "B", types.NodeConcept, 0.85)
	addNode(t, g, "C", types.NodeConcept, 0.4)
	addEdge(t, g, "A", "C", types.RelSupports)
	addEdge(t, g, "C", "B", types.RelSupports)
	g.Finalize()

	d := NewDetector(combinationConfig(), zap.NewNop())
	for _, o := range d.Detect(g) {
		if o.Kind == types.OppCombination {
			t.Errorf("combination emitted despite connecting path: %+v", o)
		}
	}
}

func TestDetectTransfer(t *testing.T) {
	g := graphbuild.NewGraph()
	// Hub h1 with a rich pattern: uses, compares, extends.
	addNode(t, g, "h1", types.NodeMethod, 0.8)
	addNode(t, g, "d1", types.NodeDataset, 0.3)
	addNode(t, g, "m1", types.NodeMethod, 0.3)
	addNode(t, g, "p1", types.NodeMethod, 0.3)
	addEdge(t, g, "h1", "d1", types.RelUses)
	addEdge(t, g, "h1", "m1", types.RelCompares)
	addEdge(t, g, "h1", "p1", types.RelExtends)

	// Hub h2 with only supports edges: no analog for h1's pattern.
	addNode(t, g, "h2", types.NodeMethod, 0.7)
	addNode(t, g, "s1", types.NodeFinding, 0.3)
	addNode(t, g, "s2", types.NodeFinding, 0.3)
	addNode(t, g, "s3", types.NodeFinding, 0.3)
	addEdge(t, g, "h2", "s1", types.RelSupports)
	addEdge(t, g, "h2", "s2", types.RelSupports)
	addEdge(t, g, "h2", "s3", types.RelSupports)

	// Shared ancestor concept adjacent to both hubs.
	addNode(t, g, "anc", types.NodeConcept, 0.5)
	addEdge(t, g, "anc", "h1", types.RelSupports)
	addEdge(t, g, "anc", "h2", types.RelSupports)
	g.Finalize()

	d := NewDetector(types.GraphConfig{
		SalienceThreshold:    0.95, // suppress gaps and combinations
		GapDegreeThreshold:   1,
		DenseDegreeThreshold: 3,
		HopLimit:             3,
	}, zap.NewNop())
	opps := d.Detect(g)

	var transfers []types.Opportunity
	for _, o := range opps {
		if o.Kind == types.OppTransfer {
			transfers = append(transfers, o)
		}
	}
	if len(transfers) == 0 {
		t.Fatal("no transfer opportunity detected")
	}
	found := false
	for _, tr := range transfers {
		if reflect.DeepEqual(tr.AnchorNodes, []string{"h1", "h2"}) {
			found = true
		}
	}
	if !found {
		t.Errorf("no transfer anchored at (h1, h2): %+v", transfers)
	}
}

// TestDetectIsDeterministic covers the idempotence property: re-running
// detection on an unchanged graph yields an identical ordered list.
func TestDetectIsDeterministic(t *testing.T) {
	g := combinationGraph(t)
	d := NewDetector(combinationConfig(), zap.NewNop())

	first := d.Detect(g)
	for i := 0; i < 5; i++ {
		if got := d.Detect(g); !reflect.DeepEqual(got, first) {
			t.Fatalf("run %d differs from first run", i)
		}
	}
}

func TestDetectSortsByPriorityThenID(t *testing.T) {
	g := graphbuild.NewGraph()
	addNode(t, g, "high", types.NodeConcept, 0.95)
	addNode(t, g, "low", types.NodeConcept, 0.7)
	g.Finalize()

	d := NewDetector(types.GraphConfig{SalienceThreshold: 0.6, GapDegreeThreshold: 2}, zap.NewNop())
	opps := d.Detect(g)
	if len(opps) != 2 {
		t.Fatalf("got %d opportunities, want 2", len(opps))
	}
	if opps[0].Priority < opps[1].Priority {
		t.Error("opportunities not sorted by descending priority")
	}
	if opps[0].AnchorNodes[0] != "high" {
		t.Errorf("first opportunity anchored at %s, want high", opps[0].AnchorNodes[0])
	}
}
