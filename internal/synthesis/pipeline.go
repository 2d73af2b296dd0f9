// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package synthesis runs the full idea-generation pipeline: survey
// ingestion, opportunity graph construction, opportunity detection,
// candidate generation, and refinement to terminal statuses, then
// writes the result artifacts.
// Implements: prd008-ideation (R1, R7); docs/ARCHITECTURE § Idea Synthesis.
package synthesis

import (
	"context"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/montanaflynn/stats"
	"go.uber.org/zap"

	"github.com/LiZaiyuan0619/IGen/internal/batch"
	"github.com/LiZaiyuan0619/IGen/internal/evaluate"
	"github.com/LiZaiyuan0619/IGen/internal/generate"
	"github.com/LiZaiyuan0619/IGen/internal/graphbuild"
	"github.com/LiZaiyuan0619/IGen/internal/ingest"
	"github.com/LiZaiyuan0619/IGen/internal/opportunity"
	"github.com/LiZaiyuan0619/IGen/internal/oracle"
	"github.com/LiZaiyuan0619/IGen/internal/refine"
	"github.com/LiZaiyuan0619/IGen/pkg/types"
)

// Pipeline wires the synthesis stages together. The oracle backend and
// the optional passage retriever are injected so tests can script them.
type Pipeline struct {
	backend   oracle.Backend
	retriever generate.Retriever
	cfg       types.PipelineConfig
	logger    *zap.Logger
}

// New builds a Pipeline. retriever may be nil when no passage corpus is
// available; prompts then carry graph context only.
func New(backend oracle.Backend, retriever generate.Retriever, cfg types.PipelineConfig, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{backend: backend, retriever: retriever, cfg: cfg, logger: logger}
}

// RunStats summarizes a finished run.
type RunStats struct {
	DocsProcessed int `json:"docs_processed" yaml:"docs_processed"`
	DocsSkipped   int `json:"docs_skipped" yaml:"docs_skipped"`

	NodeCount        int `json:"node_count" yaml:"node_count"`
	EdgeCount        int `json:"edge_count" yaml:"edge_count"`
	OpportunityCount int `json:"opportunity_count" yaml:"opportunity_count"`

	Generated int `json:"generated" yaml:"generated"`
	Accepted  int `json:"accepted" yaml:"accepted"`
	Rejected  int `json:"rejected" yaml:"rejected"`
	Errored   int `json:"errored" yaml:"errored"`

	// SuccessRate is accepted over generated; zero when nothing was
	// generated.
	SuccessRate float64 `json:"success_rate" yaml:"success_rate"`

	// Mean and median aggregate scores over accepted candidates.
	MeanNovelty       float64 `json:"mean_novelty" yaml:"mean_novelty"`
	MeanFeasibility   float64 `json:"mean_feasibility" yaml:"mean_feasibility"`
	MedianNovelty     float64 `json:"median_novelty" yaml:"median_novelty"`
	MedianFeasibility float64 `json:"median_feasibility" yaml:"median_feasibility"`
}

// RunResult is the complete output of one pipeline run.
type RunResult struct {
	RunID     string        `json:"run_id" yaml:"run_id"`
	Topic     string        `json:"topic" yaml:"topic"`
	StartedAt time.Time     `json:"started_at" yaml:"started_at"`
	Duration  time.Duration `json:"duration" yaml:"duration"`

	Graph         types.GraphSnapshot `json:"graph" yaml:"graph"`
	Opportunities []types.Opportunity `json:"opportunities" yaml:"opportunities"`
	Candidates    []types.Candidate   `json:"candidates" yaml:"candidates"`

	Stats RunStats `json:"statistics" yaml:"statistics"`
}

// Accepted returns the accepted candidates in result order.
func (r *RunResult) Accepted() []types.Candidate {
	var out []types.Candidate
	for _, c := range r.Candidates {
		if c.Status == types.StatusAccepted {
			out = append(out, c)
		}
	}
	return out
}

// Run executes the pipeline end to end. Progress lines go to w; the
// returned error is fatal (no usable survey, no usable documents, or
// the run deadline expired before candidates reached terminal status is
// reported per candidate, not here).
func (p *Pipeline) Run(ctx context.Context, w io.Writer) (*RunResult, error) {
	if p.cfg.Synthesis.RunDeadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.Synthesis.RunDeadline)
		defer cancel()
	}

	result := &RunResult{
		RunID:     uuid.NewString(),
		StartedAt: time.Now(),
	}
	p.logger.Info("starting synthesis run", zap.String("run_id", result.RunID))

	doc, outline, err := ingest.Load(p.cfg.Ingest)
	if err != nil {
		return nil, err
	}
	result.Topic = doc.Title
	fmt.Fprintf(w, "survey: %s\n", doc.Title)

	builder := graphbuild.NewBuilder(p.cfg.Graph, p.logger)
	graph, buildSummary, err := builder.Build([]types.Document{doc}, &outline, w)
	if err != nil {
		return nil, err
	}
	result.Graph = graph.Snapshot()
	result.Stats.DocsProcessed = buildSummary.Processed
	result.Stats.DocsSkipped = buildSummary.Skipped
	result.Stats.NodeCount = graph.NodeCount()
	result.Stats.EdgeCount = graph.EdgeCount()
	fmt.Fprintf(w, "graph: %d nodes, %d edges\n", graph.NodeCount(), graph.EdgeCount())

	detector := opportunity.NewDetector(p.cfg.Graph, p.logger)
	opps := detector.Detect(graph)
	result.Opportunities = opps
	result.Stats.OpportunityCount = len(opps)
	fmt.Fprintf(w, "opportunities: %d\n", len(opps))

	if len(opps) == 0 {
		result.Duration = time.Since(result.StartedAt)
		return result, nil
	}

	maxRetries := p.cfg.Synthesis.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	genLimit := p.cfg.Synthesis.GenerationConcurrency
	if genLimit <= 0 {
		genLimit = 6
	}
	evalLimit := p.cfg.Synthesis.EvaluationConcurrency
	if evalLimit <= 0 {
		evalLimit = 6
	}
	genExec := batch.New(genLimit, maxRetries, oracle.IsTransient, p.logger)
	evalExec := batch.New(evalLimit, maxRetries, oracle.IsTransient, p.logger)

	generator := generate.NewGenerator(p.backend, p.retriever, genExec, p.cfg.Synthesis, p.logger)
	candidates := generator.Generate(ctx, graph, opps)
	result.Stats.Generated = len(candidates)
	fmt.Fprintf(w, "candidates: %d\n", len(candidates))

	pair := evaluate.Pair{
		Novelty:     evaluate.NewNovelty(p.backend, evalExec, p.logger),
		Feasibility: evaluate.NewFeasibility(p.backend, evalExec, p.logger),
	}
	controller := refine.New(p.backend, pair, genExec, p.cfg.Synthesis, p.logger)

	oppByID := make(map[string]types.Opportunity, len(opps))
	for _, opp := range opps {
		oppByID[opp.ID] = opp
	}
	candidates = controller.Run(ctx, graph, oppByID, candidates)
	sortCandidates(candidates, oppByID)
	result.Candidates = candidates

	finishStats(&result.Stats, candidates)
	result.Duration = time.Since(result.StartedAt)

	fmt.Fprintf(w, "accepted: %d, rejected: %d, errored: %d\n",
		result.Stats.Accepted, result.Stats.Rejected, result.Stats.Errored)
	p.logger.Info("synthesis run finished",
		zap.String("run_id", result.RunID),
		zap.Duration("duration", result.Duration),
		zap.Int("accepted", result.Stats.Accepted))
	return result, nil
}

// sortCandidates orders by originating opportunity priority descending,
// then candidate ID for a stable tie-break.
func sortCandidates(cands []types.Candidate, oppByID map[string]types.Opportunity) {
	sort.SliceStable(cands, func(i, j int) bool {
		pi := oppByID[cands[i].OpportunityID].Priority
		pj := oppByID[cands[j].OpportunityID].Priority
		if pi != pj {
			return pi > pj
		}
		return cands[i].ID < cands[j].ID
	})
}

func finishStats(st *RunStats, cands []types.Candidate) {
	var novelty, feasibility []float64
	for _, c := range cands {
		switch c.Status {
		case types.StatusAccepted:
			st.Accepted++
			novelty = append(novelty, c.NoveltyScore)
			feasibility = append(feasibility, c.FeasibilityScore)
		case types.StatusRejected:
			st.Rejected++
		case types.StatusErrored:
			st.Errored++
		}
	}
	if st.Generated > 0 {
		st.SuccessRate = float64(st.Accepted) / float64(st.Generated)
	}
	// stats functions error only on empty input
	st.MeanNovelty, _ = stats.Mean(novelty)
	st.MeanFeasibility, _ = stats.Mean(feasibility)
	st.MedianNovelty, _ = stats.Median(novelty)
	st.MedianFeasibility, _ = stats.Median(feasibility)
}
