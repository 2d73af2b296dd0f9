// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package synthesis

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/LiZaiyuan0619/IGen/internal/oracle"
	"github.com/LiZaiyuan0619/IGen/pkg/types"
)

type stubBackend struct{}

func (stubBackend) Generate(_ context.Context, req oracle.Request) (string, error) {
	switch req.TaskType {
	case "generation", "refine":
		return `{"hypothesis": "stub idea", "innovation_points": ["x"], "experiment_sketch": "try it"}`, nil
	case "novelty":
		return `{"scores": {"concept": 9, "method": 9, "application": 9, "evaluation": 9}, "rationale": "fresh"}`, nil
	case "feasibility":
		return `{"scores": {"relevance": 8, "resource-requirement": 8, "risk": 8}, "rationale": "doable"}`, nil
	}
	return "", fmt.Errorf("unexpected task type %q", req.TaskType)
}

func testConfig(t *testing.T) types.PipelineConfig {
	t.Helper()
	surveyDir := t.TempDir()
	// Three entities in one sentence form a triangle: every node has
	// degree 2, so no gap, transfer, or combination detector fires.
	survey := `# Notes

GPT-4 and BERT improve the SQuAD benchmark.

## Thoughts

more lowercase prose here.
`
	require.NoError(t, os.WriteFile(filepath.Join(surveyDir, "survey.md"), []byte(survey), 0o644))

	return types.PipelineConfig{
		Ingest: types.IngestConfig{SurveyDir: surveyDir, LogsDir: t.TempDir()},
	}
}

func TestRunWithoutOpportunities(t *testing.T) {
	p := New(stubBackend{}, nil, testConfig(t), zap.NewNop())

	var out strings.Builder
	result, err := p.Run(context.Background(), &out)
	require.NoError(t, err)

	assert.NotEmpty(t, result.RunID)
	assert.Equal(t, "Notes", result.Topic)
	assert.Equal(t, 1, result.Stats.DocsProcessed)
	assert.Equal(t, 3, result.Stats.NodeCount)
	assert.Zero(t, result.Stats.OpportunityCount)
	assert.Empty(t, result.Candidates)
	assert.Contains(t, out.String(), "opportunities: 0")
}

func TestRunFailsWithoutSurvey(t *testing.T) {
	cfg := types.PipelineConfig{
		Ingest: types.IngestConfig{SurveyDir: t.TempDir(), LogsDir: t.TempDir()},
	}
	p := New(stubBackend{}, nil, cfg, zap.NewNop())

	_, err := p.Run(context.Background(), io.Discard)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no survey markdown")
}

func TestSortCandidates(t *testing.T) {
	opps := map[string]types.Opportunity{
		"low":  {ID: "low", Priority: 0.2},
		"high": {ID: "high", Priority: 0.9},
	}
	cands := []types.Candidate{
		{ID: "c", OpportunityID: "low"},
		{ID: "b", OpportunityID: "high"},
		{ID: "a", OpportunityID: "high"},
	}
	sortCandidates(cands, opps)

	assert.Equal(t, []string{"a", "b", "c"}, []string{cands[0].ID, cands[1].ID, cands[2].ID})
}

func TestFinishStats(t *testing.T) {
	st := RunStats{Generated: 4}
	finishStats(&st, []types.Candidate{
		{Status: types.StatusAccepted, NoveltyScore: 8, FeasibilityScore: 7},
		{Status: types.StatusAccepted, NoveltyScore: 9, FeasibilityScore: 8},
		{Status: types.StatusRejected},
		{Status: types.StatusErrored},
	})

	assert.Equal(t, 2, st.Accepted)
	assert.Equal(t, 1, st.Rejected)
	assert.Equal(t, 1, st.Errored)
	assert.InDelta(t, 0.5, st.SuccessRate, 1e-9)
	assert.InDelta(t, 8.5, st.MeanNovelty, 1e-9)
	assert.InDelta(t, 7.5, st.MeanFeasibility, 1e-9)
	assert.InDelta(t, 8.5, st.MedianNovelty, 1e-9)
}

func TestWriteArtifacts(t *testing.T) {
	result := &RunResult{
		RunID:     "run-1",
		Topic:     "Graph Transfer: A Survey!",
		StartedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Duration:  90 * time.Second,
		Graph: types.GraphSnapshot{
			Nodes: []types.GraphNode{{ID: "n1", Label: "gnn", Kind: types.NodeMethod, Salience: 0.8}},
		},
		Candidates: []types.Candidate{
			{
				ID:               "c1",
				Strategy:         types.StrategyTransfer,
				Hypothesis:       "move pretraining across domains",
				NoveltyScore:     8.4,
				FeasibilityScore: 7.2,
				Status:           types.StatusAccepted,
				Reports:          []types.EvaluationReport{{CandidateID: "c1", Kind: types.ReportNovelty}},
			},
			{ID: "c2", Status: types.StatusRejected, Hypothesis: "weak idea"},
		},
		Stats: RunStats{Generated: 2, Accepted: 1, Rejected: 1, SuccessRate: 0.5, NodeCount: 1},
	}

	dir := t.TempDir()
	artifacts, err := WriteArtifacts(result, dir)
	require.NoError(t, err)

	prefix := filepath.Join(dir, "Graph_Transfer_A_Survey_20260301_120000")
	assert.Equal(t, prefix+"_ideas.yaml", artifacts.IdeasPath)
	for _, path := range []string{artifacts.IdeasPath, artifacts.GraphPath, artifacts.ReportsPath, artifacts.SummaryPath} {
		if _, err := os.Stat(path); err != nil {
			t.Errorf("artifact %s missing: %v", path, err)
		}
	}

	summary, err := os.ReadFile(artifacts.SummaryPath)
	require.NoError(t, err)
	text := string(summary)
	assert.Contains(t, text, "# Graph Transfer: A Survey! - Idea Generation Report")
	assert.Contains(t, text, "move pretraining across domains")
	assert.Contains(t, text, "Novelty: 8.4, Feasibility: 7.2")
	assert.Contains(t, text, "rejected (")
}

func TestSlugify(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Graph Transfer Learning", "Graph_Transfer_Learning"},
		{"A Survey: GNNs (2026)", "A_Survey_GNNs_2026"},
		{"", "ideas"},
		{"!!!", "ideas"},
	}
	for _, tc := range cases {
		if got := slugify(tc.in); got != tc.want {
			t.Errorf("slugify(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
