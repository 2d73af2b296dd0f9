// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package refine drives candidates through the propose, evaluate,
// refine lifecycle until they reach a terminal status. Candidates move
// independently and concurrently; each candidate's own steps are
// strictly sequential. Implements: prd008-ideation (R5.1-R5.4).
package refine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/LiZaiyuan0619/IGen/internal/batch"
	"github.com/LiZaiyuan0619/IGen/internal/evaluate"
	"github.com/LiZaiyuan0619/IGen/internal/generate"
	"github.com/LiZaiyuan0619/IGen/internal/graphbuild"
	"github.com/LiZaiyuan0619/IGen/internal/oracle"
	"github.com/LiZaiyuan0619/IGen/pkg/types"
)

// Controller runs the refinement state machine. One evaluator pair and
// one generation executor are shared across all candidates; the
// executors bound the actual oracle traffic, so the controller fans out
// one goroutine per candidate without its own limit.
type Controller struct {
	backend oracle.Backend
	pair    evaluate.Pair
	exec    *batch.Executor
	cfg     types.SynthesisConfig
	logger  *zap.Logger
}

// New builds a Controller. exec bounds the refinement oracle calls and
// must be distinct from the executor inside the evaluators.
func New(backend oracle.Backend, pair evaluate.Pair, exec *batch.Executor, cfg types.SynthesisConfig, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxRounds <= 0 {
		cfg.MaxRounds = 2
	}
	if cfg.NoveltyThreshold <= 0 {
		cfg.NoveltyThreshold = 8.0
	}
	if cfg.FeasibilityThreshold <= 0 {
		cfg.FeasibilityThreshold = 7.0
	}
	return &Controller{backend: backend, pair: pair, exec: exec, cfg: cfg, logger: logger}
}

// Run drives every candidate to a terminal status and returns them in
// the input order. A candidate failure never aborts the run; candidates
// that cannot finish are marked Errored with the cause recorded.
func (c *Controller) Run(ctx context.Context, graph *graphbuild.Graph, opps map[string]types.Opportunity, cands []types.Candidate) []types.Candidate {
	out := make([]types.Candidate, len(cands))
	var wg sync.WaitGroup
	for i, cand := range cands {
		wg.Add(1)
		go func(i int, cand types.Candidate) {
			defer wg.Done()
			opp, ok := opps[cand.OpportunityID]
			if !ok {
				cand.Status = types.StatusErrored
				cand.Error = fmt.Sprintf("unknown opportunity %s", cand.OpportunityID)
				c.logger.Error("candidate references unknown opportunity",
					zap.String("candidate", cand.ID),
					zap.String("opportunity", cand.OpportunityID))
				out[i] = cand
				return
			}
			c.drive(ctx, graph, opp, &cand)
			out[i] = cand
		}(i, cand)
	}
	wg.Wait()
	return out
}

// drive loops the candidate through evaluate and refine until it
// reaches a terminal status.
func (c *Controller) drive(ctx context.Context, graph *graphbuild.Graph, opp types.Opportunity, cand *types.Candidate) {
	for !cand.Status.Terminal() {
		nov, fea, err := c.pair.Evaluate(ctx, graph, opp, cand)
		if err != nil {
			c.fail(cand, "evaluation", err)
			return
		}

		if cand.NoveltyScore >= c.cfg.NoveltyThreshold && cand.FeasibilityScore >= c.cfg.FeasibilityThreshold {
			cand.Status = types.StatusAccepted
			c.logger.Info("candidate accepted",
				zap.String("candidate", cand.ID),
				zap.Int("round", cand.Round),
				zap.Float64("novelty", cand.NoveltyScore),
				zap.Float64("feasibility", cand.FeasibilityScore))
			return
		}

		if cand.Round >= c.cfg.MaxRounds {
			cand.Status = types.StatusRejected
			c.logger.Info("candidate rejected after final round",
				zap.String("candidate", cand.ID),
				zap.Int("round", cand.Round))
			return
		}

		if err := c.refineOnce(ctx, opp, cand, nov, fea); err != nil {
			c.fail(cand, "refinement", err)
			return
		}
	}
}

// refineOnce snapshots the current draft, asks the oracle for a
// revision addressing the failing dimensions, and installs it. The
// candidate enters the next round in status Refining.
func (c *Controller) refineOnce(ctx context.Context, opp types.Opportunity, cand *types.Candidate, nov, fea types.EvaluationReport) error {
	critique := buildCritique(nov, fea, c.cfg.NoveltyThreshold, c.cfg.FeasibilityThreshold)
	cand.History = append(cand.History, types.Revision{
		Round:            cand.Round,
		Hypothesis:       cand.Hypothesis,
		InnovationPoints: cand.InnovationPoints,
		ExperimentSketch: cand.ExperimentSketch,
		NoveltyScore:     cand.NoveltyScore,
		FeasibilityScore: cand.FeasibilityScore,
		Critique:         critique,
	})

	var draft generate.Draft
	err := c.exec.Do(ctx, "refine/"+cand.ID, func(ctx context.Context) error {
		raw, err := c.backend.Generate(ctx, oracle.Request{
			System:   refineSystemPrompt,
			Prompt:   buildRefinePrompt(opp, *cand, critique),
			TaskType: "refine",
		})
		if err != nil {
			return err
		}
		parsed, err := generate.ParseDraft(raw)
		if err != nil {
			return err
		}
		draft = parsed
		return nil
	})
	if err != nil {
		return err
	}

	cand.Hypothesis = draft.Hypothesis
	cand.InnovationPoints = draft.InnovationPoints
	cand.ExperimentSketch = draft.ExperimentSketch
	cand.Round++
	cand.Status = types.StatusRefining
	c.logger.Debug("candidate refined",
		zap.String("candidate", cand.ID),
		zap.Int("round", cand.Round))
	return nil
}

// fail marks the candidate Errored. Deadline expiry gets a uniform
// message so the run summary can count it as a budget failure rather
// than an oracle one.
func (c *Controller) fail(cand *types.Candidate, stage string, err error) {
	cand.Status = types.StatusErrored
	if errors.Is(err, context.DeadlineExceeded) {
		cand.Error = "deadline exceeded"
	} else {
		cand.Error = fmt.Sprintf("%s: %v", stage, err)
	}
	c.logger.Warn("candidate errored",
		zap.String("candidate", cand.ID),
		zap.String("stage", stage),
		zap.Error(err))
}

// buildCritique summarizes which dimensions fell short, for the
// revision prompt and the audit trail.
func buildCritique(nov, fea types.EvaluationReport, novThresh, feaThresh float64) string {
	var parts []string
	if nov.Aggregate < novThresh {
		parts = append(parts, fmt.Sprintf("novelty %.1f below %.1f: %s", nov.Aggregate, novThresh, nov.Rationale))
	}
	if fea.Aggregate < feaThresh {
		parts = append(parts, fmt.Sprintf("feasibility %.1f below %.1f: %s", fea.Aggregate, feaThresh, fea.Rationale))
	}
	if !fea.GraphConsistency {
		parts = append(parts, "the claim contradicts relations established in the literature graph")
	}
	return strings.Join(parts, " | ")
}

func buildRefinePrompt(opp types.Opportunity, cand types.Candidate, critique string) string {
	var sb strings.Builder
	sb.WriteString("Revise the research idea below to address the reviewer critique while keeping its core direction.\n\n")
	fmt.Fprintf(&sb, "Opportunity: %s\n\n", opp.Rationale)
	fmt.Fprintf(&sb, "Current hypothesis: %s\n", cand.Hypothesis)
	if len(cand.InnovationPoints) > 0 {
		fmt.Fprintf(&sb, "Current innovation points: %s\n", strings.Join(cand.InnovationPoints, "; "))
	}
	if cand.ExperimentSketch != "" {
		fmt.Fprintf(&sb, "Current experiment sketch: %s\n", cand.ExperimentSketch)
	}
	fmt.Fprintf(&sb, "\nCritique: %s\n\n", critique)
	sb.WriteString(`Respond with JSON: {"hypothesis": string, "innovation_points": [string, ...], "experiment_sketch": string}`)
	return sb.String()
}

const refineSystemPrompt = `You are a research idea editor. Rewrite the idea to resolve the critique without abandoning the underlying opportunity. Respond with a single JSON object and nothing else.`
