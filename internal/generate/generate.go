// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package generate turns opportunities into draft candidate ideas via
// strategy-dispatched oracle calls, fanned out under the batch executor.
// Implements: prd008-ideation (R3); docs/ARCHITECTURE § Idea Generation.
package generate

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/LiZaiyuan0619/IGen/internal/batch"
	"github.com/LiZaiyuan0619/IGen/internal/graphbuild"
	"github.com/LiZaiyuan0619/IGen/internal/oracle"
	"github.com/LiZaiyuan0619/IGen/pkg/types"
)

// strategiesByKind maps opportunity kind to the fixed set of applicable
// generation strategies.
var strategiesByKind = map[types.OpportunityKind][]types.Strategy{
	types.OppGap:         {types.StrategyReverse, types.StrategyCrossDomain},
	types.OppTransfer:    {types.StrategyTransfer},
	types.OppCombination: {types.StrategyCombination},
}

// StrategiesFor returns the generation strategies applicable to an
// opportunity kind.
func StrategiesFor(kind types.OpportunityKind) []types.Strategy {
	return strategiesByKind[kind]
}

// Retriever supplies supporting passages for prompt enrichment. A nil
// Retriever, or a failing one, degrades prompt quality but is non-fatal.
type Retriever interface {
	Query(ctx context.Context, text string, k int) ([]types.Passage, error)
}

// Generator produces draft candidates from opportunities.
type Generator struct {
	backend oracle.Backend
	corpus  Retriever
	exec    *batch.Executor
	cfg     types.SynthesisConfig
	logger  *zap.Logger
}

// NewGenerator builds a Generator. corpus may be nil.
func NewGenerator(backend oracle.Backend, corpus Retriever, exec *batch.Executor, cfg types.SynthesisConfig, logger *zap.Logger) *Generator {
	if cfg.MaxInitialIdeas <= 0 {
		cfg.MaxInitialIdeas = 6
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{backend: backend, corpus: corpus, exec: exec, cfg: cfg, logger: logger}
}

// task is one (opportunity, strategy) generation unit.
type task struct {
	opp      types.Opportunity
	strategy types.Strategy
}

// Generate fans generation requests out under the executor and returns
// all successfully drafted candidates in status Proposed, in opportunity
// priority order. Opportunities are consumed in
// priority order until the cumulative budget is reached, so the
// highest-value ones are never starved. Persistent per-task failures are
// logged and yield no candidate.
func (g *Generator) Generate(ctx context.Context, graph *graphbuild.Graph, opps []types.Opportunity) []types.Candidate {
	// The budget is allocated up front, in priority order.
	var tasks []task
	for _, opp := range opps {
		for _, s := range strategiesByKind[opp.Kind] {
			if len(tasks) >= g.cfg.MaxInitialIdeas {
				break
			}
			tasks = append(tasks, task{opp: opp, strategy: s})
		}
		if len(tasks) >= g.cfg.MaxInitialIdeas {
			break
		}
	}

	results := batch.Map(ctx, g.exec, tasks,
		func(tk task) string { return fmt.Sprintf("%s/%s", tk.opp.ID, tk.strategy) },
		func(ctx context.Context, tk task) (types.Candidate, error) {
			return g.generateOne(ctx, graph, tk)
		})

	var cands []types.Candidate
	for i, r := range results {
		if r.Err != nil {
			g.logger.Warn("generation failed",
				zap.String("opportunity", tasks[i].opp.ID),
				zap.String("strategy", string(tasks[i].strategy)),
				zap.Error(r.Err))
			continue
		}
		cands = append(cands, r.Value)
	}
	return cands
}

// generateOne issues a single oracle request for one (opportunity,
// strategy) pair and parses the draft.
func (g *Generator) generateOne(ctx context.Context, graph *graphbuild.Graph, tk task) (types.Candidate, error) {
	prompt := g.buildPrompt(ctx, graph, tk)

	raw, err := g.backend.Generate(ctx, oracle.Request{
		System:   systemPrompt,
		Prompt:   prompt,
		TaskType: "generation",
	})
	if err != nil {
		return types.Candidate{}, err
	}

	draft, err := ParseDraft(raw)
	if err != nil {
		return types.Candidate{}, err
	}

	return types.Candidate{
		ID:               candidateID(tk.opp.ID, tk.strategy),
		OpportunityID:    tk.opp.ID,
		Strategy:         tk.strategy,
		Hypothesis:       draft.Hypothesis,
		InnovationPoints: draft.InnovationPoints,
		ExperimentSketch: draft.ExperimentSketch,
		Status:           types.StatusProposed,
	}, nil
}

// buildPrompt assembles the structured generation prompt: strategy
// directive, opportunity rationale, anchor context from the graph, and
// optional supporting passages.
func (g *Generator) buildPrompt(ctx context.Context, graph *graphbuild.Graph, tk task) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Strategy: %s\n", strategyDirective(tk.strategy))
	fmt.Fprintf(&sb, "Opportunity (%s): %s\n\n", tk.opp.Kind, tk.opp.Rationale)

	sb.WriteString("Anchor entities:\n")
	for _, id := range tk.opp.AnchorNodes {
		n, ok := graph.Node(id)
		if !ok {
			continue
		}
		fmt.Fprintf(&sb, "- %s (%s, salience %.2f)", n.Label, n.Kind, n.Salience)
		if neighbors := graph.Neighbors(id); len(neighbors) > 0 {
			var labels []string
			for _, nb := range neighbors {
				if nn, ok := graph.Node(nb); ok {
					labels = append(labels, nn.Label)
				}
			}
			fmt.Fprintf(&sb, "; related to: %s", strings.Join(labels, ", "))
		}
		sb.WriteString("\n")
	}

	if passages := g.supportingPassages(ctx, graph, tk.opp); len(passages) > 0 {
		sb.WriteString("\nSupporting passages:\n")
		for _, p := range passages {
			fmt.Fprintf(&sb, "- %s\n", p.Text)
		}
	}

	sb.WriteString("\n" + draftFormatInstructions)
	return sb.String()
}

// supportingPassages queries the passage store with the anchor labels.
// Retrieval failure degrades the prompt but never fails generation.
func (g *Generator) supportingPassages(ctx context.Context, graph *graphbuild.Graph, opp types.Opportunity) []types.Passage {
	if g.corpus == nil {
		return nil
	}
	var labels []string
	for _, id := range opp.AnchorNodes {
		if n, ok := graph.Node(id); ok {
			labels = append(labels, n.Label)
		}
	}
	passages, err := g.corpus.Query(ctx, strings.Join(labels, " "), 3)
	if err != nil {
		g.logger.Warn("passage retrieval failed, continuing without",
			zap.String("opportunity", opp.ID), zap.Error(err))
		return nil
	}
	return passages
}

const systemPrompt = `You are a research ideation assistant. Given a structural opportunity found in a literature survey, propose one concrete research idea. Respond with a single JSON object and nothing else.`

const draftFormatInstructions = `Respond with JSON: {"hypothesis": string, "innovation_points": [string, ...], "experiment_sketch": string}`

// strategyDirective phrases how each strategy should approach the
// opportunity.
func strategyDirective(s types.Strategy) string {
	switch s {
	case types.StrategyTransfer:
		return "transfer the source pattern onto the target area"
	case types.StrategyCombination:
		return "combine the two disconnected concepts into one approach"
	case types.StrategyReverse:
		return "reverse-engineer why the salient concept is under-connected and fill the gap"
	case types.StrategyCrossDomain:
		return "import a technique from an adjacent domain to address the gap"
	default:
		return string(s)
	}
}

// Draft is the parsed generation response.
type Draft struct {
	Hypothesis       string   `json:"hypothesis"`
	InnovationPoints []string `json:"innovation_points"`
	ExperimentSketch string   `json:"experiment_sketch"`
}

// ParseDraft decodes the oracle's draft JSON, tolerating surrounding
// code fences. A response without a usable hypothesis is a malformed,
// non-retryable failure.
func ParseDraft(raw string) (Draft, error) {
	var d Draft
	if err := json.Unmarshal([]byte(ExtractJSON(raw)), &d); err != nil {
		return Draft{}, &oracle.Error{Kind: oracle.KindMalformed, Msg: "decoding draft", Err: err}
	}
	if strings.TrimSpace(d.Hypothesis) == "" {
		return Draft{}, &oracle.Error{Kind: oracle.KindMalformed, Msg: "draft has empty hypothesis"}
	}
	return d, nil
}

// ExtractJSON strips Markdown code fences and any prose around the
// outermost JSON object.
func ExtractJSON(raw string) string {
	s := strings.TrimSpace(raw)
	if i := strings.Index(s, "{"); i >= 0 {
		if j := strings.LastIndex(s, "}"); j > i {
			return s[i : j+1]
		}
	}
	return s
}

// candidateID derives a stable candidate ID from the opportunity and
// strategy.
func candidateID(oppID string, s types.Strategy) string {
	h := sha256.Sum256([]byte(oppID + "|" + string(s)))
	return fmt.Sprintf("%x", h)[:12]
}
