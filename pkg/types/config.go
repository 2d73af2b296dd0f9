// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// OracleConfig holds shared settings for stages that call the generative
// text API. Per prd008-ideation R5.1-R5.3.
type OracleConfig struct {
	// Model is the model identifier (e.g. "anthropic/claude-sonnet-4").
	Model string `json:"model" yaml:"model"`

	// BaseURL is the OpenRouter-compatible API endpoint
	// (default "https://openrouter.ai/api/v1").
	BaseURL string `json:"base_url" yaml:"base_url"`

	// APIKey is the authentication key for the API.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// Timeout is the per-request timeout (default 180s).
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// Temperature is passed through to the API (0 uses the API default).
	Temperature float64 `json:"temperature,omitempty" yaml:"temperature,omitempty"`

	// MaxTokens caps the completion length (0 uses the API default).
	MaxTokens int `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty"`
}

// GraphConfig holds thresholds and weights for graph construction and
// opportunity detection. Per prd008-ideation R2.
type GraphConfig struct {
	// CooccurrenceWindow is the number of consecutive sentences within
	// which two entities are considered co-occurring (default 3).
	CooccurrenceWindow int `json:"cooccurrence_window" yaml:"cooccurrence_window"`

	// SalienceThreshold is the minimum salience for a node to qualify as
	// a gap anchor (default 0.6).
	SalienceThreshold float64 `json:"salience_threshold" yaml:"salience_threshold"`

	// GapDegreeThreshold is the degree below which a salient node is
	// considered under-connected (default 2).
	GapDegreeThreshold int `json:"gap_degree_threshold" yaml:"gap_degree_threshold"`

	// DenseDegreeThreshold is the degree at or above which a node anchors
	// a densely-connected neighborhood for transfer detection (default 3).
	DenseDegreeThreshold int `json:"dense_degree_threshold" yaml:"dense_degree_threshold"`

	// HopLimit is the maximum path length within which two combination
	// anchors must be disconnected (default 3).
	HopLimit int `json:"hop_limit" yaml:"hop_limit"`

	// SalienceWeight scales anchor salience in opportunity priority
	// (default 1.0).
	SalienceWeight float64 `json:"salience_weight" yaml:"salience_weight"`

	// DistancePenalty scales the structural-distance penalty subtracted
	// from transfer and combination priorities (default 0.05).
	DistancePenalty float64 `json:"distance_penalty" yaml:"distance_penalty"`
}

// SynthesisConfig holds settings for the idea synthesis run.
// Per prd008-ideation R1.2, R4.1-R4.5.
type SynthesisConfig struct {
	// GenerationConcurrency bounds concurrent outstanding generation
	// calls (default 6).
	GenerationConcurrency int `json:"generation_concurrency" yaml:"generation_concurrency"`

	// EvaluationConcurrency bounds concurrent outstanding evaluation
	// calls, independently of generation (default 6).
	EvaluationConcurrency int `json:"evaluation_concurrency" yaml:"evaluation_concurrency"`

	// MaxRounds is the maximum number of refinement rounds per candidate
	// (default 2).
	MaxRounds int `json:"max_rounds" yaml:"max_rounds"`

	// NoveltyThreshold is the minimum novelty aggregate for acceptance
	// (default 8.0).
	NoveltyThreshold float64 `json:"novelty_threshold" yaml:"novelty_threshold"`

	// FeasibilityThreshold is the minimum feasibility aggregate for
	// acceptance (default 7.0).
	FeasibilityThreshold float64 `json:"feasibility_threshold" yaml:"feasibility_threshold"`

	// MaxInitialIdeas is the cumulative candidate budget across all
	// opportunities (default 6).
	MaxInitialIdeas int `json:"max_initial_ideas" yaml:"max_initial_ideas"`

	// MaxRetries is the retry count for transient oracle failures
	// (default 3).
	MaxRetries int `json:"max_retries" yaml:"max_retries"`

	// RunDeadline bounds the whole run. Zero means no deadline.
	RunDeadline time.Duration `json:"run_deadline" yaml:"run_deadline"`

	// OutputDir is the directory for result artifacts (default "idea_output").
	OutputDir string `json:"output_dir" yaml:"output_dir"`
}

// CorpusConfig holds settings for the passage store used to enrich
// generation prompts. Per prd008-ideation R3.4.
type CorpusConfig struct {
	// DBDir is the directory containing the passage database (corpus.db).
	DBDir string `json:"db_dir" yaml:"db_dir"`

	// MaxResults is the default maximum number of passages per query
	// (default 5).
	MaxResults int `json:"max_results" yaml:"max_results"`
}

// IngestConfig holds settings for survey and outline loading.
// Per prd008-ideation R1.1.
type IngestConfig struct {
	// SurveyDir is the directory containing generated survey Markdown.
	SurveyDir string `json:"survey_dir" yaml:"survey_dir"`

	// LogsDir is the directory containing call logs with the enriched
	// outline (llm_calls_*.json).
	LogsDir string `json:"logs_dir" yaml:"logs_dir"`
}

// PipelineConfig groups all stage configurations for the synthesis pipeline.
type PipelineConfig struct {
	Ingest    IngestConfig    `json:"ingest" yaml:"ingest"`
	Graph     GraphConfig     `json:"graph" yaml:"graph"`
	Synthesis SynthesisConfig `json:"synthesis" yaml:"synthesis"`
	Oracle    OracleConfig    `json:"oracle" yaml:"oracle"`
	Corpus    CorpusConfig    `json:"corpus" yaml:"corpus"`
}
