// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ingest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/LiZaiyuan0619/IGen/pkg/types"
)

// ParseSurvey reads a survey Markdown file into a Document: title from
// the first top-level heading, abstract and keywords from the abstract
// block, heading-delimited sections, and basic statistics.
func ParseSurvey(path string) (types.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return types.Document{}, fmt.Errorf("reading survey: %w", err)
	}
	content := string(data)

	doc := types.Document{
		ID:         docID(path),
		SourcePath: path,
	}

	lines := strings.Split(content, "\n")
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") {
			doc.Title = strings.TrimSpace(trimmed[2:])
			break
		}
	}

	doc.Abstract, doc.Keywords = parseAbstract(lines)
	doc.Sections = chunkByHeadings(content)
	doc.Stats = types.DocumentStats{
		WordCount:      len(strings.Fields(content)),
		ChapterCount:   countChapters(lines),
		CharacterCount: len(content),
	}
	return doc, nil
}

// docID derives a stable document identifier from the filename.
func docID(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// parseAbstract returns the text under the abstract heading and any
// keywords declared on a **Keywords**: line inside it.
func parseAbstract(lines []string) (string, []string) {
	var (
		inAbstract bool
		body       []string
		keywords   []string
	)
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		switch {
		case isAbstractHeading(trimmed):
			inAbstract = true
		case inAbstract && strings.HasPrefix(trimmed, "#"):
			return strings.TrimSpace(strings.Join(body, "\n")), keywords
		case inAbstract && isKeywordsLine(trimmed):
			keywords = parseKeywords(trimmed)
		case inAbstract && trimmed != "":
			body = append(body, trimmed)
		}
	}
	return strings.TrimSpace(strings.Join(body, "\n")), keywords
}

func isAbstractHeading(line string) bool {
	for _, prefix := range []string{"# ", "## "} {
		if strings.HasPrefix(line, prefix) {
			heading := strings.ToLower(strings.TrimSpace(strings.TrimLeft(line, "#")))
			return heading == "abstract"
		}
	}
	return false
}

func isKeywordsLine(line string) bool {
	return strings.HasPrefix(strings.ToLower(line), "**keywords**")
}

func parseKeywords(line string) []string {
	_, rest, ok := strings.Cut(line, ":")
	if !ok {
		return nil
	}
	var out []string
	for _, k := range strings.Split(rest, ",") {
		if k = strings.TrimSpace(k); k != "" {
			out = append(out, k)
		}
	}
	return out
}

// countChapters counts top-level headings, excluding the abstract.
func countChapters(lines []string) int {
	n := 0
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") && !isAbstractHeading(trimmed) {
			n++
		}
	}
	return n
}

// chunkByHeadings splits Markdown into sections at ## and ### heading
// boundaries. Text before the first heading becomes a preamble section
// with an empty heading.
func chunkByHeadings(content string) []types.DocumentSection {
	lines := strings.Split(content, "\n")
	var sections []types.DocumentSection
	currentHeading := ""
	var bodyLines []string

	flush := func() {
		body := strings.Join(bodyLines, "\n")
		if currentHeading != "" || strings.TrimSpace(body) != "" {
			sections = append(sections, types.DocumentSection{
				Heading: currentHeading,
				Body:    body,
			})
		}
		bodyLines = nil
	}

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "## ") || strings.HasPrefix(trimmed, "### ") {
			flush()
			currentHeading = strings.TrimSpace(strings.TrimLeft(trimmed, "#"))
			continue
		}
		bodyLines = append(bodyLines, line)
	}
	flush()
	return sections
}
