// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package corpus

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/LiZaiyuan0619/IGen/pkg/types"
)

// --- test helpers ---

func testStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(types.CorpusConfig{DBDir: t.TempDir(), MaxResults: 5})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func surveyDoc(id string) types.Document {
	return types.Document{
		ID:       id,
		Title:    "Graph Transfer Survey",
		Abstract: "We review transfer learning on graph neural networks.",
		Sections: []types.DocumentSection{
			{Heading: "Methods", Body: "Contrastive pretraining dominates recent graph transfer work.\n\nAdapter layers reduce fine-tuning cost on large graphs."},
			{Heading: "Benchmarks", Body: "OGB datasets remain the standard evaluation suite."},
		},
		SourcePath: id + ".md",
	}
}

func indexDocs(t *testing.T, store *Store, docs ...types.Document) IndexSummary {
	t.Helper()
	summary, err := store.Index(context.Background(), docs, io.Discard)
	if err != nil {
		t.Fatal(err)
	}
	return summary
}

// --- tests ---

func TestIndexAndQuery(t *testing.T) {
	store := testStore(t)
	summary := indexDocs(t, store, surveyDoc("doc1"))

	if summary.Indexed != 1 {
		t.Errorf("Indexed = %d, want 1", summary.Indexed)
	}
	// abstract + two Methods paragraphs + one Benchmarks paragraph
	if summary.Passages != 4 {
		t.Errorf("Passages = %d, want 4", summary.Passages)
	}

	results, err := store.Query(context.Background(), "contrastive pretraining", 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) == 0 {
		t.Fatal("Query returned no passages")
	}
	if !strings.Contains(results[0].Text, "Contrastive pretraining") {
		t.Errorf("top passage = %q, want the contrastive pretraining paragraph", results[0].Text)
	}
	if !strings.Contains(results[0].Source, "Methods") {
		t.Errorf("Source = %q, want section reference", results[0].Source)
	}
}

func TestIndexIsIncremental(t *testing.T) {
	store := testStore(t)
	doc := surveyDoc("doc1")

	indexDocs(t, store, doc)

	second := indexDocs(t, store, doc)
	if second.Skipped != 1 || second.Indexed != 0 {
		t.Errorf("unchanged doc: got %+v, want skipped", second)
	}

	doc.Sections[0].Body = "Prompt tuning replaced adapters in later work."
	third := indexDocs(t, store, doc)
	if third.Updated != 1 {
		t.Errorf("changed doc: got %+v, want updated", third)
	}

	// Old passages must be gone after the update.
	results, err := store.Query(context.Background(), "contrastive pretraining", 5)
	if err != nil {
		t.Fatal(err)
	}
	for _, p := range results {
		if strings.Contains(p.Text, "Contrastive pretraining") {
			t.Errorf("stale passage survived update: %q", p.Text)
		}
	}
}

func TestQueryToleratesPunctuation(t *testing.T) {
	store := testStore(t)
	indexDocs(t, store, surveyDoc("doc1"))

	// Raw FTS5 would choke on the operators and quotes here.
	results, err := store.Query(context.Background(), `"adapter layers" AND (cost: NEAR/2)`, 5)
	if err != nil {
		t.Fatalf("Query returned error on punctuated input: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("Query returned no passages")
	}
}

func TestQueryRespectsLimit(t *testing.T) {
	store := testStore(t)
	indexDocs(t, store, surveyDoc("doc1"), surveyDoc("doc2"), surveyDoc("doc3"))

	results, err := store.Query(context.Background(), "graph transfer", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) > 2 {
		t.Errorf("got %d passages, want at most 2", len(results))
	}

	// k <= 0 falls back to the store default.
	results, err = store.Query(context.Background(), "graph transfer", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) > 5 {
		t.Errorf("got %d passages, want at most the default 5", len(results))
	}
}

func TestQueryEmptyTextReturnsNothing(t *testing.T) {
	store := testStore(t)
	indexDocs(t, store, surveyDoc("doc1"))

	results, err := store.Query(context.Background(), "   ?! ", 5)
	if err != nil {
		t.Fatal(err)
	}
	if results != nil {
		t.Errorf("got %d passages, want none for empty query", len(results))
	}
}

func TestBuildMatchQuery(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"graph transfer", `"graph" OR "transfer"`},
		{"Graph, transfer!", `"graph" OR "transfer"`},
		{"a graph graph", `"graph"`},
		{"GPT-4 fine-tuning", `"gpt-4" OR "fine-tuning"`},
		{"?!", ""},
	}
	for _, tc := range cases {
		if got := buildMatchQuery(tc.in); got != tc.want {
			t.Errorf("buildMatchQuery(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestSplitParagraphsFoldsLongText(t *testing.T) {
	long := strings.Repeat("This sentence pads the paragraph towards the limit. ", 40)
	parts := splitParagraphs(long)
	if len(parts) < 2 {
		t.Fatalf("got %d parts, want the paragraph folded", len(parts))
	}
	for i, p := range parts {
		if len(p) > maxPassageLen {
			t.Errorf("part %d has length %d, want <= %d", i, len(p), maxPassageLen)
		}
	}
}
