// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package synthesis

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/LiZaiyuan0619/IGen/pkg/types"
)

// Artifacts lists the files one run produced.
type Artifacts struct {
	IdeasPath   string
	GraphPath   string
	ReportsPath string
	SummaryPath string
}

// WriteArtifacts saves the run result under outputDir as
// <slug>_<timestamp>_{ideas.yaml,graph.yaml,reports.yaml,summary.md}.
func WriteArtifacts(result *RunResult, outputDir string) (Artifacts, error) {
	if outputDir == "" {
		outputDir = "idea_output"
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return Artifacts{}, fmt.Errorf("creating output directory: %w", err)
	}

	prefix := fmt.Sprintf("%s_%s", slugify(result.Topic), result.StartedAt.Format("20060102_150405"))
	a := Artifacts{
		IdeasPath:   filepath.Join(outputDir, prefix+"_ideas.yaml"),
		GraphPath:   filepath.Join(outputDir, prefix+"_graph.yaml"),
		ReportsPath: filepath.Join(outputDir, prefix+"_reports.yaml"),
		SummaryPath: filepath.Join(outputDir, prefix+"_summary.md"),
	}

	if err := writeYAML(a.IdeasPath, result); err != nil {
		return Artifacts{}, err
	}
	if err := writeYAML(a.GraphPath, result.Graph); err != nil {
		return Artifacts{}, err
	}
	if err := writeYAML(a.ReportsPath, collectReports(result.Candidates)); err != nil {
		return Artifacts{}, err
	}
	if err := os.WriteFile(a.SummaryPath, []byte(renderSummary(result)), 0o644); err != nil {
		return Artifacts{}, fmt.Errorf("writing summary: %w", err)
	}
	return a, nil
}

func writeYAML(path string, v any) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshaling %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", filepath.Base(path), err)
	}
	return nil
}

func collectReports(cands []types.Candidate) []types.EvaluationReport {
	var out []types.EvaluationReport
	for _, c := range cands {
		out = append(out, c.Reports...)
	}
	return out
}

// slugify reduces a survey title to a filesystem-safe prefix.
func slugify(title string) string {
	if title == "" {
		return "ideas"
	}
	var sb strings.Builder
	for _, r := range title {
		switch {
		case r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '_':
			sb.WriteRune(r)
		case r == ' ':
			sb.WriteRune('_')
		}
	}
	slug := strings.Trim(sb.String(), "_")
	if slug == "" {
		return "ideas"
	}
	if len(slug) > 80 {
		slug = slug[:80]
	}
	return slug
}

// renderSummary produces the human-readable run report.
func renderSummary(result *RunResult) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s - Idea Generation Report\n\n", result.Topic)
	fmt.Fprintf(&sb, "Run %s, started %s, took %s.\n\n",
		result.RunID, result.StartedAt.Format("2006-01-02 15:04:05"), result.Duration.Round(time.Millisecond))

	st := result.Stats
	sb.WriteString("## Statistics\n\n")
	fmt.Fprintf(&sb, "- Documents: %d processed, %d skipped\n", st.DocsProcessed, st.DocsSkipped)
	fmt.Fprintf(&sb, "- Opportunities: %d\n", st.OpportunityCount)
	fmt.Fprintf(&sb, "- Candidates: %d generated, %d accepted, %d rejected, %d errored\n",
		st.Generated, st.Accepted, st.Rejected, st.Errored)
	fmt.Fprintf(&sb, "- Success rate: %.1f%%\n", st.SuccessRate*100)
	if st.Accepted > 0 {
		fmt.Fprintf(&sb, "- Accepted scores: novelty mean %.2f / median %.2f, feasibility mean %.2f / median %.2f\n",
			st.MeanNovelty, st.MedianNovelty, st.MeanFeasibility, st.MedianFeasibility)
	}

	sb.WriteString("\n## Opportunity Graph\n\n")
	fmt.Fprintf(&sb, "- Nodes: %d\n- Edges: %d\n", st.NodeCount, st.EdgeCount)

	accepted := result.Accepted()
	fmt.Fprintf(&sb, "\n## Accepted Ideas (%d)\n\n", len(accepted))
	for i, c := range accepted {
		fmt.Fprintf(&sb, "### %d. %s\n\n", i+1, c.Hypothesis)
		fmt.Fprintf(&sb, "- Strategy: %s\n", c.Strategy)
		fmt.Fprintf(&sb, "- Novelty: %.1f, Feasibility: %.1f\n", c.NoveltyScore, c.FeasibilityScore)
		fmt.Fprintf(&sb, "- Refinement rounds: %d\n", c.Round)
		if len(c.InnovationPoints) > 0 {
			fmt.Fprintf(&sb, "- Innovation points: %s\n", strings.Join(c.InnovationPoints, "; "))
		}
		if c.ExperimentSketch != "" {
			fmt.Fprintf(&sb, "- Experiment sketch: %s\n", c.ExperimentSketch)
		}
		sb.WriteString("\n---\n\n")
	}

	if st.Rejected+st.Errored > 0 {
		sb.WriteString("## Not Accepted\n\n")
		for _, c := range result.Candidates {
			switch c.Status {
			case types.StatusRejected:
				fmt.Fprintf(&sb, "- rejected (%s): %s\n", c.Strategy, c.Hypothesis)
			case types.StatusErrored:
				fmt.Fprintf(&sb, "- errored (%s): %s\n", c.Strategy, c.Error)
			}
		}
	}
	return sb.String()
}
