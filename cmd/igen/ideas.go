// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/LiZaiyuan0619/IGen/internal/corpus"
	"github.com/LiZaiyuan0619/IGen/internal/generate"
	"github.com/LiZaiyuan0619/IGen/internal/oracle"
	"github.com/LiZaiyuan0619/IGen/internal/synthesis"
	"github.com/LiZaiyuan0619/IGen/pkg/types"
)

var ideasCmd = &cobra.Command{
	Use:   "ideas",
	Short: "Generate refined research ideas from the latest survey",
	Long: `Ideas runs the full synthesis pipeline: it loads the newest survey and
its enriched outline, builds the opportunity graph, detects gaps, transfer
chances, and combinations, generates candidate ideas through the
generative model, and refines each candidate until it is accepted,
rejected, or errors out. Results land in the output directory as YAML
plus a Markdown summary.`,
	RunE: runIdeas,
}

func runIdeas(cmd *cobra.Command, args []string) error {
	cfg := types.PipelineConfig{
		Ingest:    ingestConfig(cmd),
		Graph:     graphConfig(cmd),
		Synthesis: synthesisConfig(cmd),
		Oracle:    oracleConfig(cmd),
	}

	if cfg.Oracle.APIKey == "" {
		return fmt.Errorf("no API key: add .secrets/openrouter-api-key or set oracle.api_key in the config")
	}

	backend := oracle.NewClient(cfg.Oracle, logger)

	var retriever generate.Retriever
	if dbDir := stringSetting(cmd, "db-path", "corpus.db_dir"); dbDir != "" {
		store, err := corpus.NewStore(types.CorpusConfig{
			DBDir:      dbDir,
			MaxResults: viper.GetInt("corpus.max_results"),
		})
		if err != nil {
			return err
		}
		defer store.Close()
		retriever = store
	}

	pipeline := synthesis.New(backend, retriever, cfg, logger)
	result, err := pipeline.Run(context.Background(), os.Stdout)
	if err != nil {
		return err
	}

	artifacts, err := synthesis.WriteArtifacts(result, cfg.Synthesis.OutputDir)
	if err != nil {
		return err
	}
	fmt.Printf("\nresults: %s\nsummary: %s\n", artifacts.IdeasPath, artifacts.SummaryPath)

	if result.Stats.Generated > 0 && result.Stats.Accepted == 0 {
		fmt.Fprintln(os.Stderr, "no candidate passed both thresholds")
	}
	return nil
}

func init() {
	addIngestFlags(ideasCmd)
	ideasCmd.Flags().String("output-dir", "idea_output", "directory for result artifacts")
	ideasCmd.Flags().String("db-path", "", "passage database directory for prompt grounding (optional)")

	ideasCmd.Flags().String("model", "", "model identifier for generation and review")
	ideasCmd.Flags().String("base-url", "", "OpenRouter-compatible API endpoint")
	ideasCmd.Flags().Duration("timeout", 0, "per-request timeout (0 = default)")

	ideasCmd.Flags().Int("generation-concurrency", 0, "max concurrent generation calls (0 = default 6)")
	ideasCmd.Flags().Int("evaluation-concurrency", 0, "max concurrent evaluation calls (0 = default 6)")
	ideasCmd.Flags().Int("max-rounds", 0, "refinement rounds per candidate (0 = default 2)")
	ideasCmd.Flags().Float64("novelty-threshold", 0, "novelty acceptance threshold (0 = default 8.0)")
	ideasCmd.Flags().Float64("feasibility-threshold", 0, "feasibility acceptance threshold (0 = default 7.0)")
	ideasCmd.Flags().Int("max-ideas", 0, "candidate budget across all opportunities (0 = default 6)")
	ideasCmd.Flags().Int("max-retries", 0, "retries for transient API failures (0 = default 3)")
	ideasCmd.Flags().Duration("deadline", 0, "overall run deadline (0 = none)")

	rootCmd.AddCommand(ideasCmd)
}
