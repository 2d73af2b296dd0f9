// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// OpportunityKind categorizes a structural pattern surfaced from the
// opportunity graph. Per prd008-ideation R2.4.
type OpportunityKind string

const (
	// OppGap marks a salient but under-connected node.
	OppGap OpportunityKind = "gap"

	// OppTransfer marks a relation pattern present in one dense
	// neighborhood but absent from an analogous one.
	OppTransfer OpportunityKind = "transfer"

	// OppCombination marks two high-salience nodes with no path between
	// them but a shared two-hop neighbor.
	OppCombination OpportunityKind = "combination"
)

// Opportunity is an immutable research opening detected on a finalized
// graph. Created once by the detector and never mutated afterwards.
type Opportunity struct {
	// ID is a stable identifier derived from kind and anchors.
	ID string `json:"id" yaml:"id"`

	// Kind is gap, transfer, or combination.
	Kind OpportunityKind `json:"kind" yaml:"kind"`

	// AnchorNodes lists the node IDs the opportunity is anchored on, in
	// detection order.
	AnchorNodes []string `json:"anchor_nodes" yaml:"anchor_nodes"`

	// Rationale explains why the structural pattern was flagged.
	Rationale string `json:"rationale" yaml:"rationale"`

	// Priority orders opportunities for generation; higher runs first.
	Priority float64 `json:"priority" yaml:"priority"`
}

// Strategy selects how a candidate idea is generated from an opportunity.
// Per prd008-ideation R3.1.
type Strategy string

const (
	StrategyTransfer    Strategy = "transfer"
	StrategyCombination Strategy = "combination"
	StrategyReverse     Strategy = "reverse-engineering"
	StrategyCrossDomain Strategy = "cross-domain"
)

// CandidateStatus is the lifecycle state of a candidate idea.
// Per prd008-ideation R4.2.
type CandidateStatus string

const (
	StatusProposed  CandidateStatus = "Proposed"
	StatusEvaluated CandidateStatus = "Evaluated"
	StatusRefining  CandidateStatus = "Refining"
	StatusAccepted  CandidateStatus = "Accepted"
	StatusRejected  CandidateStatus = "Rejected"
	StatusErrored   CandidateStatus = "Errored"
)

// Terminal reports whether the status ends the candidate's lifecycle.
func (s CandidateStatus) Terminal() bool {
	return s == StatusAccepted || s == StatusRejected || s == StatusErrored
}

// Revision is a snapshot of a candidate draft before a refinement round
// rewrote it, retained for audit.
type Revision struct {
	// Round is the round the snapshot belongs to (0 = initial draft).
	Round int `json:"round" yaml:"round"`

	Hypothesis       string   `json:"hypothesis" yaml:"hypothesis"`
	InnovationPoints []string `json:"innovation_points" yaml:"innovation_points"`
	ExperimentSketch string   `json:"experiment_sketch" yaml:"experiment_sketch"`
	NoveltyScore     float64  `json:"novelty_score" yaml:"novelty_score"`
	FeasibilityScore float64  `json:"feasibility_score" yaml:"feasibility_score"`

	// Critique carries the rationale of the failing dimensions that
	// triggered the revision.
	Critique string `json:"critique" yaml:"critique"`
}

// Candidate is one draft research idea under evaluation and refinement.
type Candidate struct {
	// ID is a stable identifier derived from the opportunity and strategy.
	ID string `json:"id" yaml:"id"`

	// OpportunityID links back to the originating opportunity.
	OpportunityID string `json:"opportunity_id" yaml:"opportunity_id"`

	// Strategy is the generation strategy that produced the draft.
	Strategy Strategy `json:"strategy" yaml:"strategy"`

	Hypothesis       string   `json:"hypothesis" yaml:"hypothesis"`
	InnovationPoints []string `json:"innovation_points" yaml:"innovation_points"`
	ExperimentSketch string   `json:"experiment_sketch" yaml:"experiment_sketch"`

	// NoveltyScore and FeasibilityScore hold the latest aggregates.
	NoveltyScore     float64 `json:"novelty_score" yaml:"novelty_score"`
	FeasibilityScore float64 `json:"feasibility_score" yaml:"feasibility_score"`

	Status CandidateStatus `json:"status" yaml:"status"`

	// Round counts completed refinement rounds; never exceeds MaxRounds.
	Round int `json:"round" yaml:"round"`

	// History lists prior revision snapshots, oldest first.
	History []Revision `json:"history,omitempty" yaml:"history,omitempty"`

	// Error records the cause when Status is Errored.
	Error string `json:"error,omitempty" yaml:"error,omitempty"`

	// Reports accumulates every evaluation report issued for the
	// candidate, in evaluation order.
	Reports []EvaluationReport `json:"reports,omitempty" yaml:"reports,omitempty"`
}

// ReportKind distinguishes the two evaluation axes.
type ReportKind string

const (
	ReportNovelty     ReportKind = "novelty"
	ReportFeasibility ReportKind = "feasibility"
)

// Novelty and feasibility dimension names, in reporting order.
var (
	NoveltyDimensions     = []string{"concept", "method", "application", "evaluation"}
	FeasibilityDimensions = []string{"relevance", "resource-requirement", "risk", "graph-consistency"}
)

// EvaluationReport is the immutable outcome of one evaluation pass along
// one axis. Created once and appended to the candidate's report archive.
type EvaluationReport struct {
	CandidateID string     `json:"candidate_id" yaml:"candidate_id"`
	Kind        ReportKind `json:"kind" yaml:"kind"`

	// Round is the candidate round the report was issued at.
	Round int `json:"round" yaml:"round"`

	// DimensionScores maps dimension name to a score in [0,10].
	DimensionScores map[string]float64 `json:"dimension_scores" yaml:"dimension_scores"`

	// Aggregate is the reduced dimension score (arithmetic mean by default).
	Aggregate float64 `json:"aggregate" yaml:"aggregate"`

	// Rationale is the evaluator's explanation, reused as critique when
	// the candidate is refined.
	Rationale string `json:"rationale" yaml:"rationale"`

	// GraphConsistency is the structural check: false when a contradicts
	// edge already links the candidate's anchor nodes.
	GraphConsistency bool `json:"graph_consistency" yaml:"graph_consistency"`
}

// Passage is a supporting text snippet retrieved from the passage store.
type Passage struct {
	ID     string  `json:"id" yaml:"id"`
	Text   string  `json:"text" yaml:"text"`
	Source string  `json:"source,omitempty" yaml:"source,omitempty"`
	Score  float64 `json:"score" yaml:"score"`
}
