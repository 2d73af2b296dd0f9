// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/LiZaiyuan0619/IGen/internal/graphbuild"
	"github.com/LiZaiyuan0619/IGen/internal/ingest"
	"github.com/LiZaiyuan0619/IGen/internal/opportunity"
	"github.com/LiZaiyuan0619/IGen/pkg/types"
)

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Build and print the opportunity graph without generating ideas",
	Long: `Graph loads the newest survey, builds the semantic opportunity graph,
runs opportunity detection, and prints the result. Construction is
deterministic and makes no model calls, so this is the fast way to
inspect what the ideas command would work from.`,
	RunE: runGraph,
}

func runGraph(cmd *cobra.Command, args []string) error {
	doc, outline, err := ingest.Load(ingestConfig(cmd))
	if err != nil {
		return err
	}

	cfg := graphConfig(cmd)
	builder := graphbuild.NewBuilder(cfg, logger)
	graph, _, err := builder.Build([]types.Document{doc}, &outline, os.Stderr)
	if err != nil {
		return err
	}

	detector := opportunity.NewDetector(cfg, logger)
	opps := detector.Detect(graph)

	out := struct {
		Graph         any `json:"graph" yaml:"graph"`
		Opportunities any `json:"opportunities" yaml:"opportunities"`
	}{
		Graph:         graph.Snapshot(),
		Opportunities: opps,
	}

	if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}
	data, err := yaml.Marshal(out)
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(data)
	return err
}

func init() {
	addIngestFlags(graphCmd)
	graphCmd.Flags().Bool("json", false, "output as JSON instead of YAML")

	rootCmd.AddCommand(graphCmd)
}
