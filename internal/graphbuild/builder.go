// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package graphbuild

import (
	"crypto/sha256"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/LiZaiyuan0619/IGen/pkg/types"
)

// ExtractionError reports a document yielding no extractable entities.
// The document is skipped and the run continues.
type ExtractionError struct {
	DocID string
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("no entities found in document %s", e.DocID)
}

// BuildSummary holds per-document counts from a graph construction run.
type BuildSummary struct {
	Processed int
	Skipped   int

	// SkippedDocs lists the IDs of documents that yielded no entities.
	SkippedDocs []string
}

// Builder constructs an opportunity graph from parsed survey documents
// and their enriched outline.
type Builder struct {
	cfg    types.GraphConfig
	logger *zap.Logger
}

// NewBuilder returns a Builder with defaults applied.
func NewBuilder(cfg types.GraphConfig, logger *zap.Logger) *Builder {
	if cfg.CooccurrenceWindow <= 0 {
		cfg.CooccurrenceWindow = 3
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{cfg: cfg, logger: logger}
}

// mention is one occurrence of an entity in a document.
type mention struct {
	label      string // normalized
	kind       types.NodeKind
	confidence float64
	docID      string
	section    int
	sentence   int
	weight     float64            // outline chapter weight for the section
	cue        types.RelationKind // sentence-level relation cue, empty when none
}

// Build extracts entities and relations from the documents and returns a
// finalized graph. Documents with no extractable entities are skipped and
// logged; the run fails only when no document is usable.
func (b *Builder) Build(docs []types.Document, outline *types.EnrichedOutline, w io.Writer) (*Graph, BuildSummary, error) {
	var summary BuildSummary
	var mentions []mention

	for _, doc := range docs {
		dm := b.extractDocument(doc, outline)
		if len(dm) == 0 {
			err := &ExtractionError{DocID: doc.ID}
			b.logger.Warn("document skipped", zap.String("doc", doc.ID), zap.Error(err))
			fmt.Fprintf(w, "skipped %s: %v\n", doc.ID, err)
			summary.Skipped++
			summary.SkippedDocs = append(summary.SkippedDocs, doc.ID)
			continue
		}
		fmt.Fprintf(w, "extracted %s (%d mentions)\n", doc.ID, len(dm))
		summary.Processed++
		mentions = append(mentions, dm...)
	}

	if summary.Processed == 0 {
		return nil, summary, fmt.Errorf("no usable documents: all %d document(s) yielded no entities", summary.Skipped)
	}

	g := NewGraph()
	byLabel := mergeMentions(mentions)

	// Deterministic node insertion order.
	labels := make([]string, 0, len(byLabel))
	for label := range byLabel {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	for _, label := range labels {
		ms := byLabel[label]
		refs := sourceRefs(ms)
		if err := g.AddNode(types.GraphNode{
			ID:         stableID(label),
			Label:      label,
			Kind:       ms[0].kind,
			SourceRefs: refs,
		}); err != nil {
			return nil, summary, err
		}
	}

	// Re-flatten from the merged groups so every mention carries its
	// node's final kind before relation typing.
	merged := make([]mention, 0, len(mentions))
	for _, label := range labels {
		merged = append(merged, byLabel[label]...)
	}
	if err := b.buildEdges(g, merged); err != nil {
		return nil, summary, err
	}

	// Salience depends on edge degree, so it is computed last. Source
	// refs are fixed by now; any later change would require a rebuild.
	b.computeSalience(g, byLabel)

	g.Finalize()
	if err := g.Validate(); err != nil {
		return nil, summary, fmt.Errorf("graph invariant violated: %w", err)
	}

	fmt.Fprintf(w, "graph: %d nodes, %d edges (%d processed, %d skipped)\n",
		g.NodeCount(), g.EdgeCount(), summary.Processed, summary.Skipped)
	return g, summary, nil
}

// extractDocument finds entity mentions in every section of one document.
func (b *Builder) extractDocument(doc types.Document, outline *types.EnrichedOutline) []mention {
	var out []mention
	for si, sec := range doc.Sections {
		weight := 1.0
		var chapterKeywords []string
		if outline != nil {
			if ch := outline.ChapterFor(sec.Heading); ch != nil {
				if ch.Weight > 0 {
					weight = ch.Weight
				}
				chapterKeywords = ch.Keywords
			}
		}
		keywords := append([]string{}, chapterKeywords...)
		keywords = append(keywords, doc.Keywords...)

		for ti, sentence := range SplitSentences(sec.Body) {
			for _, m := range extractSentence(sentence, keywords) {
				m.docID = doc.ID
				m.section = si
				m.sentence = ti
				m.weight = weight
				out = append(out, m)
			}
		}
	}
	return out
}

// capitalizedPhrase matches runs of capitalized words ("Graph Neural
// Network") and hyphenated or digit-bearing technical names ("GPT-4").
var capitalizedPhrase = regexp.MustCompile(`\b[A-Z][A-Za-z0-9]*(?:-[A-Za-z0-9]+)*(?:\s+[A-Z][A-Za-z0-9]*(?:-[A-Za-z0-9]+)*)*\b`)

// stopLabels are sentence-initial words and connectives that the phrase
// pattern picks up but that never denote entities.
var stopLabels = map[string]bool{
	"the": true, "a": true, "an": true, "this": true, "these": true,
	"it": true, "we": true, "in": true, "on": true, "for": true,
	"however": true, "moreover": true, "finally": true, "furthermore": true,
	"first": true, "second": true, "third": true, "table": true,
	"figure": true, "section": true, "chapter": true,
}

// extractSentence returns entity mentions found in one sentence: outline
// keyword matches (high confidence) and capitalized technical phrases
// (lower confidence).
func extractSentence(sentence string, keywords []string) []mention {
	var out []mention
	seen := make(map[string]bool)
	lower := strings.ToLower(sentence)
	cue := relationCue(lower)

	for _, kw := range keywords {
		norm := NormalizeLabel(kw)
		if norm == "" || seen[norm] {
			continue
		}
		if strings.Contains(lower, norm) {
			seen[norm] = true
			out = append(out, mention{label: norm, kind: classifyLabel(norm), confidence: 0.9, cue: cue})
		}
	}

	for _, raw := range capitalizedPhrase.FindAllString(sentence, -1) {
		norm := NormalizeLabel(raw)
		if norm == "" || seen[norm] || stopLabels[norm] {
			continue
		}
		// Single lowercase-normalized words must look technical: either
		// multi-word, hyphenated, digit-bearing, or an acronym.
		words := strings.Fields(norm)
		conf := 0.6
		if len(words) == 1 {
			if !looksTechnical(raw) {
				continue
			}
			conf = 0.8
		}
		seen[norm] = true
		out = append(out, mention{label: norm, kind: classifyLabel(norm), confidence: conf, cue: cue})
	}

	return out
}

// contradictionCues and extensionCues key the relation type of a sentence
// off its connectives. Checked against the lowercased sentence, so stems
// like "contradict" also catch "contradicts" and "contradicted".
var contradictionCues = []string{
	"contradict", "refute", "underperform", "however", "in contrast",
	"disagree", "inconsistent with", "fails to", "contrary to",
}

var extensionCues = []string{
	"extend", "builds on", "build on", "improves on", "improves upon",
	"generalizes", "refines", "augments",
}

// relationCue classifies one lowercased sentence by its cue words.
// Contradiction cues win over extension cues when both appear. Returns
// the empty kind when the sentence carries neither.
func relationCue(lower string) types.RelationKind {
	for _, c := range contradictionCues {
		if strings.Contains(lower, c) {
			return types.RelContradicts
		}
	}
	for _, c := range extensionCues {
		if strings.Contains(lower, c) {
			return types.RelExtends
		}
	}
	return ""
}

// looksTechnical reports whether a single-word match is an acronym or a
// hyphen/digit-bearing name rather than an ordinary capitalized word.
func looksTechnical(raw string) bool {
	if strings.ContainsAny(raw, "-0123456789") {
		return true
	}
	upper := 0
	for _, r := range raw {
		if r >= 'A' && r <= 'Z' {
			upper++
		}
	}
	return upper >= 2
}

// classifyLabel assigns a node kind from cue words in the label.
func classifyLabel(label string) types.NodeKind {
	switch {
	case containsAny(label, "dataset", "corpus", "benchmark", "collection"):
		return types.NodeDataset
	case containsAny(label, "task", "detection", "classification", "recognition",
		"segmentation", "translation", "prediction", "generation", "retrieval"):
		return types.NodeTask
	case containsAny(label, "model", "network", "method", "algorithm",
		"framework", "approach", "transformer", "learning", "architecture"):
		return types.NodeMethod
	case containsAny(label, "result", "finding", "improvement", "gain", "accuracy"):
		return types.NodeFinding
	default:
		return types.NodeConcept
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// mergeMentions groups mentions by normalized label. The kind of the
// merged node is the most frequent kind among its mentions, ties broken
// by kind name for reproducibility.
func mergeMentions(mentions []mention) map[string][]mention {
	byLabel := make(map[string][]mention)
	for _, m := range mentions {
		byLabel[m.label] = append(byLabel[m.label], m)
	}
	for label, ms := range byLabel {
		counts := make(map[types.NodeKind]int)
		for _, m := range ms {
			counts[m.kind]++
		}
		kinds := make([]types.NodeKind, 0, len(counts))
		for k := range counts {
			kinds = append(kinds, k)
		}
		sort.Slice(kinds, func(i, j int) bool {
			if counts[kinds[i]] != counts[kinds[j]] {
				return counts[kinds[i]] > counts[kinds[j]]
			}
			return kinds[i] < kinds[j]
		})
		for i := range ms {
			ms[i].kind = kinds[0]
		}
		byLabel[label] = ms
	}
	return byLabel
}

// sourceRefs returns the deduplicated, sorted document-span references
// for a set of mentions.
func sourceRefs(ms []mention) []string {
	seen := make(map[string]bool)
	for _, m := range ms {
		seen[fmt.Sprintf("%s#%d", m.docID, m.section)] = true
	}
	refs := make([]string, 0, len(seen))
	for r := range seen {
		refs = append(refs, r)
	}
	sort.Strings(refs)
	return refs
}

// pairKey orders two node IDs for use as an undirected pair key.
type pairKey struct{ a, b string }

func makePairKey(a, b string) pairKey {
	if a > b {
		a, b = b, a
	}
	return pairKey{a, b}
}

// cooccurrence accumulates evidence for one entity pair.
type cooccurrence struct {
	count    int
	conf     float64 // summed mean extraction confidence
	relation types.RelationKind
	from, to string // direction
}

// buildEdges emits one typed edge per co-occurring entity pair. Two
// entities co-occur when mentioned within CooccurrenceWindow consecutive
// sentences of the same section. Confidence grows with co-occurrence
// count, scaled by extraction confidence. Cue-typed relations
// (contradicts, extends) override kind-based defaults.
func (b *Builder) buildEdges(g *Graph, mentions []mention) error {
	// Group mentions by (doc, section).
	type spanKey struct {
		doc     string
		section int
	}
	bySpan := make(map[spanKey][]mention)
	for _, m := range mentions {
		k := spanKey{m.docID, m.section}
		bySpan[k] = append(bySpan[k], m)
	}

	pairs := make(map[pairKey]*cooccurrence)
	for _, ms := range bySpan {
		sort.SliceStable(ms, func(i, j int) bool { return ms[i].sentence < ms[j].sentence })
		for i, a := range ms {
			for _, c := range ms[i+1:] {
				if c.sentence-a.sentence >= b.cfg.CooccurrenceWindow {
					break
				}
				if a.label == c.label {
					continue
				}
				key := makePairKey(a.label, c.label)
				rel, from, to := relationFor(a, c)
				co, ok := pairs[key]
				if !ok {
					co = &cooccurrence{relation: rel, from: from, to: to}
					pairs[key] = co
				} else if cued(rel) && !cued(co.relation) {
					// Later cued evidence overrides a default typing.
					co.relation, co.from, co.to = rel, from, to
				}
				co.count++
				co.conf += (a.confidence + c.confidence) / 2
			}
		}
	}

	// Deterministic edge insertion order.
	keys := make([]pairKey, 0, len(pairs))
	for k := range pairs {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].a != keys[j].a {
			return keys[i].a < keys[j].a
		}
		return keys[i].b < keys[j].b
	})

	for _, k := range keys {
		co := pairs[k]
		avgConf := co.conf / float64(co.count)
		conf := avgConf * (0.6 + 0.2*float64(co.count-1))
		if conf > 1 {
			conf = 1
		}
		err := g.SetEdge(types.GraphEdge{
			From:       stableID(co.from),
			To:         stableID(co.to),
			Relation:   co.relation,
			Confidence: conf,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// cued reports whether a relation came from sentence cue words rather
// than the kind-based defaults.
func cued(rel types.RelationKind) bool {
	return rel == types.RelContradicts || rel == types.RelExtends
}

// relationFor picks the edge type and direction for a co-occurring pair.
// A cue from the pair's shared sentence wins, directed in textual order
// ("X contradicts Y" runs X to Y); cues never cross sentence boundaries.
// Otherwise methods point at the datasets and tasks they use, and
// remaining pairs run from the lexicographically smaller label.
func relationFor(a, c mention) (types.RelationKind, string, string) {
	if a.sentence == c.sentence && a.cue != "" {
		return a.cue, a.label, c.label
	}

	from, to := a.label, c.label
	if from > to {
		from, to = to, from
	}

	switch {
	case a.kind == types.NodeMethod && (c.kind == types.NodeDataset || c.kind == types.NodeTask):
		return types.RelUses, a.label, c.label
	case c.kind == types.NodeMethod && (a.kind == types.NodeDataset || a.kind == types.NodeTask):
		return types.RelUses, c.label, a.label
	case a.kind == types.NodeMethod && c.kind == types.NodeMethod:
		return types.RelCompares, from, to
	case a.kind == types.NodeFinding || c.kind == types.NodeFinding:
		return types.RelSupports, from, to
	default:
		return types.RelSupports, from, to
	}
}

// computeSalience assigns each node a salience in [0,1]: a weighted
// combination of mention frequency, outline-section weight, and edge
// degree, each normalized against the graph maximum.
func (b *Builder) computeSalience(g *Graph, byLabel map[string][]mention) {
	var maxFreq, maxWeight float64
	var maxDeg int
	for label, ms := range byLabel {
		if f := float64(len(ms)); f > maxFreq {
			maxFreq = f
		}
		for _, m := range ms {
			if m.weight > maxWeight {
				maxWeight = m.weight
			}
		}
		if d := g.Degree(stableID(label)); d > maxDeg {
			maxDeg = d
		}
	}
	if maxFreq == 0 {
		maxFreq = 1
	}
	if maxWeight == 0 {
		maxWeight = 1
	}

	for label, ms := range byLabel {
		id := stableID(label)
		freqNorm := float64(len(ms)) / maxFreq

		var w float64
		for _, m := range ms {
			if m.weight > w {
				w = m.weight
			}
		}
		weightNorm := w / maxWeight

		var degNorm float64
		if maxDeg > 0 {
			degNorm = float64(g.Degree(id)) / float64(maxDeg)
		}

		g.SetSalience(id, 0.5*freqNorm+0.3*weightNorm+0.2*degNorm)
	}
}

// sentenceEnd splits on terminal punctuation followed by whitespace.
var sentenceEnd = regexp.MustCompile(`[.!?]\s+`)

// SplitSentences breaks section text into sentences. Newlines also end a
// sentence so list items and headings stay separate.
func SplitSentences(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		for _, s := range sentenceEnd.Split(line, -1) {
			s = strings.TrimSpace(s)
			if s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

// NormalizeLabel lowercases, trims punctuation, and collapses internal
// whitespace so duplicate entities merge across sections.
func NormalizeLabel(label string) string {
	label = strings.ToLower(strings.TrimSpace(label))
	label = strings.Trim(label, ".,;:()[]{}\"'")
	return strings.Join(strings.Fields(label), " ")
}

// stableID generates a deterministic node ID from the normalized label:
// the first 12 hex characters of its SHA-256.
func stableID(label string) string {
	h := sha256.Sum256([]byte(label))
	return fmt.Sprintf("%x", h)[:12]
}

// StableID exposes the node ID derivation for other stages.
func StableID(label string) string { return stableID(label) }
