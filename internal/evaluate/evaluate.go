// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package evaluate scores candidates along the novelty and feasibility
// axes. The two evaluators are independent and run concurrently against
// the same candidate; their outputs combine only at the join point.
// Implements: prd008-ideation (R4.1-R4.3); docs/ARCHITECTURE § Evaluation.
package evaluate

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"

	"github.com/LiZaiyuan0619/IGen/internal/batch"
	"github.com/LiZaiyuan0619/IGen/internal/graphbuild"
	"github.com/LiZaiyuan0619/IGen/internal/oracle"
	"github.com/LiZaiyuan0619/IGen/pkg/types"
)

// Reducer folds dimension scores into the aggregate. The default is the
// arithmetic mean; the exact weighting is deliberately configurable.
type Reducer func([]float64) float64

// Mean is the default reducer.
func Mean(scores []float64) float64 {
	return stat.Mean(scores, nil)
}

// Evaluator scores candidates along one axis.
type Evaluator struct {
	backend oracle.Backend
	exec    *batch.Executor
	kind    types.ReportKind
	dims    []string
	reduce  Reducer
	logger  *zap.Logger
}

// NewNovelty builds the novelty evaluator (dimensions: concept, method,
// application, evaluation).
func NewNovelty(backend oracle.Backend, exec *batch.Executor, logger *zap.Logger) *Evaluator {
	return newEvaluator(backend, exec, types.ReportNovelty, types.NoveltyDimensions, logger)
}

// NewFeasibility builds the feasibility evaluator (dimensions: relevance,
// resource-requirement, risk, graph-consistency). The graph-consistency
// dimension is computed structurally, not by the oracle.
func NewFeasibility(backend oracle.Backend, exec *batch.Executor, logger *zap.Logger) *Evaluator {
	return newEvaluator(backend, exec, types.ReportFeasibility, types.FeasibilityDimensions, logger)
}

func newEvaluator(backend oracle.Backend, exec *batch.Executor, kind types.ReportKind, dims []string, logger *zap.Logger) *Evaluator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Evaluator{
		backend: backend,
		exec:    exec,
		kind:    kind,
		dims:    dims,
		reduce:  Mean,
		logger:  logger,
	}
}

// SetReducer overrides the aggregate reducer.
func (e *Evaluator) SetReducer(r Reducer) { e.reduce = r }

const structuralDim = "graph-consistency"

// Evaluate scores one candidate and returns an immutable report. The
// candidate must be in status Proposed or Refining. Oracle-scored
// dimensions come from one call under the executor; graph consistency is
// a deterministic structural check independent of generation variance.
func (e *Evaluator) Evaluate(ctx context.Context, graph *graphbuild.Graph, opp types.Opportunity, c types.Candidate) (types.EvaluationReport, error) {
	if c.Status != types.StatusProposed && c.Status != types.StatusRefining {
		return types.EvaluationReport{}, fmt.Errorf("candidate %s in status %s cannot be evaluated", c.ID, c.Status)
	}

	consistent := graphConsistent(graph, opp)

	oracleDims := make([]string, 0, len(e.dims))
	for _, d := range e.dims {
		if d != structuralDim {
			oracleDims = append(oracleDims, d)
		}
	}

	var resp scoreResponse
	err := e.exec.Do(ctx, fmt.Sprintf("%s/%s", e.kind, c.ID), func(ctx context.Context) error {
		raw, err := e.backend.Generate(ctx, oracle.Request{
			System:   scoringSystemPrompt,
			Prompt:   e.buildPrompt(c, opp, oracleDims),
			TaskType: string(e.kind),
		})
		if err != nil {
			return err
		}
		parsed, err := parseScores(raw, oracleDims)
		if err != nil {
			return err
		}
		resp = parsed
		return nil
	})
	if err != nil {
		return types.EvaluationReport{}, err
	}

	scores := make(map[string]float64, len(e.dims))
	ordered := make([]float64, 0, len(e.dims))
	for _, d := range e.dims {
		v := resp.Scores[d]
		if d == structuralDim {
			// Deterministic floor: a contradicted claim zeroes the
			// dimension regardless of what the oracle thinks.
			v = 10
			if !consistent {
				v = 0
			}
		}
		scores[d] = v
		ordered = append(ordered, v)
	}

	return types.EvaluationReport{
		CandidateID:      c.ID,
		Kind:             e.kind,
		Round:            c.Round,
		DimensionScores:  scores,
		Aggregate:        e.reduce(ordered),
		Rationale:        resp.Rationale,
		GraphConsistency: consistent,
	}, nil
}

// graphConsistent reports whether no contradicts edge links any pair of
// the opportunity's anchor nodes.
func graphConsistent(graph *graphbuild.Graph, opp types.Opportunity) bool {
	for i, a := range opp.AnchorNodes {
		for _, b := range opp.AnchorNodes[i+1:] {
			if graph.ContradictsBetween(a, b) {
				return false
			}
		}
	}
	return true
}

func (e *Evaluator) buildPrompt(c types.Candidate, opp types.Opportunity, dims []string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Axis: %s\n\n", e.kind)
	fmt.Fprintf(&sb, "Hypothesis: %s\n", c.Hypothesis)
	if len(c.InnovationPoints) > 0 {
		fmt.Fprintf(&sb, "Innovation points: %s\n", strings.Join(c.InnovationPoints, "; "))
	}
	if c.ExperimentSketch != "" {
		fmt.Fprintf(&sb, "Experiment sketch: %s\n", c.ExperimentSketch)
	}
	fmt.Fprintf(&sb, "\nOpportunity context: %s\n", opp.Rationale)
	fmt.Fprintf(&sb, "\nScore each dimension from 0 to 10: %s.\n", strings.Join(dims, ", "))
	sb.WriteString(`Respond with JSON: {"scores": {<dimension>: number, ...}, "rationale": string}`)
	return sb.String()
}

const scoringSystemPrompt = `You are a rigorous research reviewer. Score the candidate idea on the requested dimensions and justify the scores. Respond with a single JSON object and nothing else.`

// scoreResponse is the parsed oracle scoring payload.
type scoreResponse struct {
	Scores    map[string]float64 `json:"scores"`
	Rationale string             `json:"rationale"`
}

// parseScores decodes and validates the oracle response: every requested
// dimension must be present with a score in [0,10]. Violations are
// malformed, non-retryable failures.
func parseScores(raw string, dims []string) (scoreResponse, error) {
	var resp scoreResponse
	if err := json.Unmarshal([]byte(extractJSON(raw)), &resp); err != nil {
		return scoreResponse{}, &oracle.Error{Kind: oracle.KindMalformed, Msg: "decoding scores", Err: err}
	}
	for _, d := range dims {
		v, ok := resp.Scores[d]
		if !ok {
			return scoreResponse{}, &oracle.Error{Kind: oracle.KindMalformed, Msg: fmt.Sprintf("missing dimension %q", d)}
		}
		if v < 0 || v > 10 {
			return scoreResponse{}, &oracle.Error{Kind: oracle.KindMalformed, Msg: fmt.Sprintf("dimension %q score %f outside [0,10]", d, v)}
		}
	}
	return resp, nil
}

func extractJSON(raw string) string {
	s := strings.TrimSpace(raw)
	if i := strings.Index(s, "{"); i >= 0 {
		if j := strings.LastIndex(s, "}"); j > i {
			return s[i : j+1]
		}
	}
	return s
}

// Pair joins the two independent evaluators. Both run concurrently
// against the same candidate; outputs combine only after both complete.
type Pair struct {
	Novelty     *Evaluator
	Feasibility *Evaluator
}

// Evaluate runs both axes for one candidate, attaches the reports, sets
// the aggregate scores, and transitions the candidate to Evaluated. On
// any failure the candidate is left untouched and the error returned.
func (p Pair) Evaluate(ctx context.Context, graph *graphbuild.Graph, opp types.Opportunity, c *types.Candidate) (nov, fea types.EvaluationReport, err error) {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var gerr error
		nov, gerr = p.Novelty.Evaluate(ctx, graph, opp, *c)
		return gerr
	})
	g.Go(func() error {
		var gerr error
		fea, gerr = p.Feasibility.Evaluate(ctx, graph, opp, *c)
		return gerr
	})
	if err = g.Wait(); err != nil {
		return types.EvaluationReport{}, types.EvaluationReport{}, err
	}

	c.Reports = append(c.Reports, nov, fea)
	c.NoveltyScore = nov.Aggregate
	c.FeasibilityScore = fea.Aggregate
	c.Status = types.StatusEvaluated
	return nov, fea, nil
}
