// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/LiZaiyuan0619/IGen/pkg/types"
)

// Flag values override config-file values; config-file values override
// the struct defaults applied at use sites.

func stringSetting(cmd *cobra.Command, flag, key string) string {
	if cmd.Flags().Changed(flag) {
		v, _ := cmd.Flags().GetString(flag)
		return v
	}
	if viper.IsSet(key) {
		return viper.GetString(key)
	}
	v, _ := cmd.Flags().GetString(flag)
	return v
}

func intSetting(cmd *cobra.Command, flag, key string) int {
	if cmd.Flags().Changed(flag) {
		v, _ := cmd.Flags().GetInt(flag)
		return v
	}
	if viper.IsSet(key) {
		return viper.GetInt(key)
	}
	v, _ := cmd.Flags().GetInt(flag)
	return v
}

func floatSetting(cmd *cobra.Command, flag, key string) float64 {
	if cmd.Flags().Changed(flag) {
		v, _ := cmd.Flags().GetFloat64(flag)
		return v
	}
	if viper.IsSet(key) {
		return viper.GetFloat64(key)
	}
	v, _ := cmd.Flags().GetFloat64(flag)
	return v
}

func durationSetting(cmd *cobra.Command, flag, key string) time.Duration {
	if cmd.Flags().Changed(flag) {
		v, _ := cmd.Flags().GetDuration(flag)
		return v
	}
	if viper.IsSet(key) {
		return viper.GetDuration(key)
	}
	v, _ := cmd.Flags().GetDuration(flag)
	return v
}

// addIngestFlags registers the survey discovery flags shared by ideas
// and graph.
func addIngestFlags(cmd *cobra.Command) {
	cmd.Flags().String("survey-dir", "survey_output", "directory containing generated survey Markdown")
	cmd.Flags().String("logs-dir", "logs", "directory containing llm_calls_*.json logs")
}

func ingestConfig(cmd *cobra.Command) types.IngestConfig {
	return types.IngestConfig{
		SurveyDir: stringSetting(cmd, "survey-dir", "ingest.survey_dir"),
		LogsDir:   stringSetting(cmd, "logs-dir", "ingest.logs_dir"),
	}
}

func graphConfig(cmd *cobra.Command) types.GraphConfig {
	return types.GraphConfig{
		CooccurrenceWindow:   viper.GetInt("graph.cooccurrence_window"),
		SalienceThreshold:    viper.GetFloat64("graph.salience_threshold"),
		GapDegreeThreshold:   viper.GetInt("graph.gap_degree_threshold"),
		DenseDegreeThreshold: viper.GetInt("graph.dense_degree_threshold"),
		HopLimit:             viper.GetInt("graph.hop_limit"),
		SalienceWeight:       viper.GetFloat64("graph.salience_weight"),
		DistancePenalty:      viper.GetFloat64("graph.distance_penalty"),
	}
}

func oracleConfig(cmd *cobra.Command) types.OracleConfig {
	return types.OracleConfig{
		Model:       stringSetting(cmd, "model", "oracle.model"),
		BaseURL:     stringSetting(cmd, "base-url", "oracle.base_url"),
		APIKey:      secretDefault("openrouter-api-key", viper.GetString("oracle.api_key")),
		Timeout:     durationSetting(cmd, "timeout", "oracle.timeout"),
		Temperature: viper.GetFloat64("oracle.temperature"),
		MaxTokens:   viper.GetInt("oracle.max_tokens"),
	}
}

func synthesisConfig(cmd *cobra.Command) types.SynthesisConfig {
	return types.SynthesisConfig{
		GenerationConcurrency: intSetting(cmd, "generation-concurrency", "synthesis.generation_concurrency"),
		EvaluationConcurrency: intSetting(cmd, "evaluation-concurrency", "synthesis.evaluation_concurrency"),
		MaxRounds:             intSetting(cmd, "max-rounds", "synthesis.max_rounds"),
		NoveltyThreshold:      floatSetting(cmd, "novelty-threshold", "synthesis.novelty_threshold"),
		FeasibilityThreshold:  floatSetting(cmd, "feasibility-threshold", "synthesis.feasibility_threshold"),
		MaxInitialIdeas:       intSetting(cmd, "max-ideas", "synthesis.max_initial_ideas"),
		MaxRetries:            intSetting(cmd, "max-retries", "synthesis.max_retries"),
		RunDeadline:           durationSetting(cmd, "deadline", "synthesis.run_deadline"),
		OutputDir:             stringSetting(cmd, "output-dir", "synthesis.output_dir"),
	}
}
