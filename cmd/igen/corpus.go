// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/LiZaiyuan0619/IGen/internal/corpus"
	"github.com/LiZaiyuan0619/IGen/internal/ingest"
	"github.com/LiZaiyuan0619/IGen/pkg/types"
)

var corpusCmd = &cobra.Command{
	Use:   "corpus",
	Short: "Manage the passage store used to ground generation prompts",
	Long: `Corpus manages a local SQLite passage store with FTS5 indexing. Index
survey Markdown files into it, then the ideas command retrieves matching
passages to ground its generation prompts. Unchanged documents are
skipped on subsequent runs.`,
}

var corpusIndexCmd = &cobra.Command{
	Use:   "index [surveys...]",
	Short: "Index survey Markdown files into the passage store",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runCorpusIndex,
}

func runCorpusIndex(cmd *cobra.Command, args []string) error {
	store, err := openCorpus(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	docs := make([]types.Document, 0, len(args))
	for _, path := range args {
		doc, err := ingest.ParseSurvey(path)
		if err != nil {
			return fmt.Errorf("parsing %s: %w", path, err)
		}
		docs = append(docs, doc)
	}

	summary, err := store.Index(context.Background(), docs, os.Stdout)
	if err != nil {
		return err
	}
	if summary.Failed > 0 {
		return fmt.Errorf("%d document(s) failed indexing", summary.Failed)
	}
	return nil
}

var corpusQueryCmd = &cobra.Command{
	Use:   "query [text...]",
	Short: "Retrieve the top matching passages for a query",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runCorpusQuery,
}

func runCorpusQuery(cmd *cobra.Command, args []string) error {
	store, err := openCorpus(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	k, _ := cmd.Flags().GetInt("limit")
	results, err := store.Query(context.Background(), strings.Join(args, " "), k)
	if err != nil {
		return err
	}

	if len(results) == 0 {
		fmt.Println("No passages found.")
		return nil
	}
	for i, p := range results {
		fmt.Printf("%d. [%s] (%.2f)\n   %s\n", i+1, p.Source, p.Score, p.Text)
	}
	return nil
}

func openCorpus(cmd *cobra.Command) (*corpus.Store, error) {
	return corpus.NewStore(types.CorpusConfig{
		DBDir:      stringSetting(cmd, "db-path", "corpus.db_dir"),
		MaxResults: viper.GetInt("corpus.max_results"),
	})
}

func init() {
	corpusCmd.PersistentFlags().String("db-path", "corpus", "passage database directory")

	corpusQueryCmd.Flags().Int("limit", 0, "maximum passages (0 = default)")

	corpusCmd.AddCommand(corpusIndexCmd)
	corpusCmd.AddCommand(corpusQueryCmd)
	rootCmd.AddCommand(corpusCmd)
}
