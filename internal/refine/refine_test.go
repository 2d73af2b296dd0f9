// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package refine

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/LiZaiyuan0619/IGen/internal/batch"
	"github.com/LiZaiyuan0619/IGen/internal/evaluate"
	"github.com/LiZaiyuan0619/IGen/internal/graphbuild"
	"github.com/LiZaiyuan0619/IGen/internal/oracle"
	"github.com/LiZaiyuan0619/IGen/pkg/types"
)

// seqBackend replays scripted responses per task type in order; the
// last response repeats once the script runs out.
type seqBackend struct {
	mu        sync.Mutex
	responses map[string][]string
	errs      map[string]error
	calls     map[string]int
}

func (b *seqBackend) Generate(_ context.Context, req oracle.Request) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.calls == nil {
		b.calls = make(map[string]int)
	}
	n := b.calls[req.TaskType]
	b.calls[req.TaskType] = n + 1
	if err, ok := b.errs[req.TaskType]; ok {
		return "", err
	}
	script, ok := b.responses[req.TaskType]
	if !ok || len(script) == 0 {
		return "", fmt.Errorf("unscripted task type %q", req.TaskType)
	}
	if n >= len(script) {
		n = len(script) - 1
	}
	return script[n], nil
}

func noveltyJSON(score float64) string {
	return fmt.Sprintf(`{"scores": {"concept": %g, "method": %g, "application": %g, "evaluation": %g}, "rationale": "novelty review"}`,
		score, score, score, score)
}

// feasibilityJSON scripts the three oracle dimensions; the structural
// graph-consistency dimension contributes a fixed 10 on the consistent
// test graph, so the aggregate is (3*score+10)/4.
func feasibilityJSON(score float64) string {
	return fmt.Sprintf(`{"scores": {"relevance": %g, "resource-requirement": %g, "risk": %g}, "rationale": "feasibility review"}`,
		score, score, score)
}

const refinedDraft = `{"hypothesis": "sharpened claim with a control condition", "innovation_points": ["tighter baseline"], "experiment_sketch": "ablate the transfer module"}`

func testGraph(t *testing.T) *graphbuild.Graph {
	t.Helper()
	g := graphbuild.NewGraph()
	require.NoError(t, g.AddNode(types.GraphNode{ID: "a", Label: "a", Kind: types.NodeConcept, Salience: 0.9}))
	require.NoError(t, g.AddNode(types.GraphNode{ID: "b", Label: "b", Kind: types.NodeMethod, Salience: 0.8}))
	require.NoError(t, g.SetEdge(types.GraphEdge{From: "a", To: "b", Relation: types.RelSupports, Confidence: 0.9}))
	g.Finalize()
	return g
}

func testController(backend oracle.Backend) *Controller {
	evalExec := batch.New(4, 1, oracle.IsTransient, zap.NewNop())
	genExec := batch.New(4, 1, oracle.IsTransient, zap.NewNop())
	pair := evaluate.Pair{
		Novelty:     evaluate.NewNovelty(backend, evalExec, zap.NewNop()),
		Feasibility: evaluate.NewFeasibility(backend, evalExec, zap.NewNop()),
	}
	cfg := types.SynthesisConfig{MaxRounds: 2, NoveltyThreshold: 8.0, FeasibilityThreshold: 7.0}
	return New(backend, pair, genExec, cfg, zap.NewNop())
}

func testOpportunity() types.Opportunity {
	return types.Opportunity{
		ID:          "opp-1",
		Kind:        types.OppTransfer,
		AnchorNodes: []string{"a", "b"},
		Rationale:   "a's framing has never been tried on b",
	}
}

func proposed(id string) types.Candidate {
	return types.Candidate{
		ID:            id,
		OpportunityID: "opp-1",
		Strategy:      types.StrategyTransfer,
		Hypothesis:    "apply a to b",
		Status:        types.StatusProposed,
	}
}

func runOne(t *testing.T, c *Controller, cand types.Candidate) types.Candidate {
	t.Helper()
	out := c.Run(context.Background(), testGraph(t),
		map[string]types.Opportunity{"opp-1": testOpportunity()},
		[]types.Candidate{cand})
	require.Len(t, out, 1)
	return out[0]
}

func TestRunAcceptsOnFirstEvaluation(t *testing.T) {
	backend := &seqBackend{responses: map[string][]string{
		"novelty":     {noveltyJSON(9)},
		"feasibility": {feasibilityJSON(8)},
	}}
	got := runOne(t, testController(backend), proposed("c1"))

	assert.Equal(t, types.StatusAccepted, got.Status)
	assert.Equal(t, 0, got.Round)
	assert.Empty(t, got.History)
	assert.Len(t, got.Reports, 2)
	assert.InDelta(t, 9.0, got.NoveltyScore, 1e-9)
	assert.Equal(t, 0, backend.calls["refine"])
}

func TestRunAcceptsAfterOneRefinement(t *testing.T) {
	backend := &seqBackend{responses: map[string][]string{
		"novelty":     {noveltyJSON(6), noveltyJSON(8.5)},
		"feasibility": {feasibilityJSON(5), feasibilityJSON(8)},
		"refine":      {refinedDraft},
	}}
	got := runOne(t, testController(backend), proposed("c1"))

	assert.Equal(t, types.StatusAccepted, got.Status)
	assert.Equal(t, 1, got.Round)
	require.Len(t, got.History, 1)
	assert.Equal(t, 0, got.History[0].Round)
	assert.Equal(t, "apply a to b", got.History[0].Hypothesis)
	assert.Contains(t, got.History[0].Critique, "novelty")
	assert.Contains(t, got.History[0].Critique, "feasibility")
	assert.Equal(t, "sharpened claim with a control condition", got.Hypothesis)
	assert.Len(t, got.Reports, 4)
	assert.Equal(t, 1, backend.calls["refine"])
}

func TestRunRejectsAfterMaxRounds(t *testing.T) {
	backend := &seqBackend{responses: map[string][]string{
		"novelty":     {noveltyJSON(6)},
		"feasibility": {feasibilityJSON(5)},
		"refine":      {refinedDraft},
	}}
	got := runOne(t, testController(backend), proposed("c1"))

	assert.Equal(t, types.StatusRejected, got.Status)
	assert.Equal(t, 2, got.Round)
	assert.Len(t, got.History, 2)
	// three evaluation passes, two reports each
	assert.Len(t, got.Reports, 6)
	assert.Equal(t, 3, backend.calls["novelty"])
	assert.Equal(t, 2, backend.calls["refine"])
}

func TestRunMarksEvaluationFailureErrored(t *testing.T) {
	backend := &seqBackend{
		responses: map[string][]string{"novelty": {noveltyJSON(9)}},
		errs:      map[string]error{"feasibility": &oracle.Error{Kind: oracle.KindRefusal, Msg: "declined"}},
	}
	got := runOne(t, testController(backend), proposed("c1"))

	assert.Equal(t, types.StatusErrored, got.Status)
	assert.Contains(t, got.Error, "evaluation")
	assert.Contains(t, got.Error, "declined")
}

func TestRunMarksRefinementFailureErrored(t *testing.T) {
	backend := &seqBackend{
		responses: map[string][]string{
			"novelty":     {noveltyJSON(6)},
			"feasibility": {feasibilityJSON(5)},
			"refine":      {"I cannot produce JSON for this."},
		},
	}
	got := runOne(t, testController(backend), proposed("c1"))

	assert.Equal(t, types.StatusErrored, got.Status)
	assert.Contains(t, got.Error, "refinement")
	// snapshot survives even though the revision never landed
	assert.Len(t, got.History, 1)
}

func TestRunRecordsDeadlineExceeded(t *testing.T) {
	backend := &seqBackend{
		errs: map[string]error{
			"novelty":     context.DeadlineExceeded,
			"feasibility": context.DeadlineExceeded,
		},
	}
	got := runOne(t, testController(backend), proposed("c1"))

	assert.Equal(t, types.StatusErrored, got.Status)
	assert.Equal(t, "deadline exceeded", got.Error)
}

func TestRunMarksUnknownOpportunityErrored(t *testing.T) {
	backend := &seqBackend{responses: map[string][]string{}}
	c := testController(backend)
	cand := proposed("c1")
	cand.OpportunityID = "missing"

	out := c.Run(context.Background(), testGraph(t),
		map[string]types.Opportunity{"opp-1": testOpportunity()}, []types.Candidate{cand})
	require.Len(t, out, 1)
	assert.Equal(t, types.StatusErrored, out[0].Status)
	assert.Contains(t, out[0].Error, "unknown opportunity")
	assert.Equal(t, 0, len(backend.calls))
}

func TestRunIsolatesCandidates(t *testing.T) {
	// c-bad's feasibility refusal must not affect c-good.
	backend := &seqBackend{responses: map[string][]string{
		"novelty":     {noveltyJSON(9)},
		"feasibility": {feasibilityJSON(8)},
	}}
	c := testController(backend)
	bad := proposed("c-bad")
	bad.OpportunityID = "missing"
	good := proposed("c-good")

	out := c.Run(context.Background(), testGraph(t),
		map[string]types.Opportunity{"opp-1": testOpportunity()},
		[]types.Candidate{bad, good})
	require.Len(t, out, 2)
	assert.Equal(t, types.StatusErrored, out[0].Status)
	assert.Equal(t, "c-bad", out[0].ID)
	assert.Equal(t, types.StatusAccepted, out[1].Status)
	assert.Equal(t, "c-good", out[1].ID)
}

func TestRunPreservesInputOrder(t *testing.T) {
	backend := &seqBackend{responses: map[string][]string{
		"novelty":     {noveltyJSON(9)},
		"feasibility": {feasibilityJSON(8)},
	}}
	c := testController(backend)
	cands := []types.Candidate{proposed("c1"), proposed("c2"), proposed("c3")}

	out := c.Run(context.Background(), testGraph(t),
		map[string]types.Opportunity{"opp-1": testOpportunity()}, cands)
	require.Len(t, out, 3)
	for i, cand := range cands {
		assert.Equal(t, cand.ID, out[i].ID)
	}
}
