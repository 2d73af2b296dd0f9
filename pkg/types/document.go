// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// DocumentSection is one heading-delimited chunk of a survey document.
type DocumentSection struct {
	// Heading is the section heading text, empty for preamble.
	Heading string `json:"heading" yaml:"heading"`

	// Body is the section text up to the next heading.
	Body string `json:"body" yaml:"body"`
}

// DocumentStats summarizes a parsed survey document.
type DocumentStats struct {
	WordCount      int `json:"word_count" yaml:"word_count"`
	ChapterCount   int `json:"chapter_count" yaml:"chapter_count"`
	CharacterCount int `json:"character_count" yaml:"character_count"`
}

// Document is a parsed survey supplied by the ingestion collaborator.
type Document struct {
	// ID identifies the document within a run (derived from the filename).
	ID string `json:"id" yaml:"id"`

	// Title is the first top-level heading.
	Title string `json:"title" yaml:"title"`

	// Abstract is the text under the abstract heading, when present.
	Abstract string `json:"abstract,omitempty" yaml:"abstract,omitempty"`

	// Keywords come from the survey's keyword line.
	Keywords []string `json:"keywords,omitempty" yaml:"keywords,omitempty"`

	// Sections are the heading-delimited chunks of the body.
	Sections []DocumentSection `json:"sections" yaml:"sections"`

	Stats DocumentStats `json:"statistics" yaml:"statistics"`

	// SourcePath is the file the document was loaded from.
	SourcePath string `json:"source_file,omitempty" yaml:"source_file,omitempty"`
}

// OutlineChapter is one chapter of the enriched outline, carrying the
// key points the survey writer planned for it.
type OutlineChapter struct {
	ID           string   `json:"id" yaml:"id"`
	Title        string   `json:"title" yaml:"title"`
	Keywords     []string `json:"keywords,omitempty" yaml:"keywords,omitempty"`
	ContentGuide string   `json:"content_guide,omitempty" yaml:"content_guide,omitempty"`

	// Weight scales the salience contribution of entities found under
	// this chapter. Defaults to 1.0 when unset.
	Weight float64 `json:"weight,omitempty" yaml:"weight,omitempty"`
}

// EnrichedOutline is the section-to-key-point mapping recovered from the
// survey generator's call logs.
type EnrichedOutline struct {
	Topic    string           `json:"topic" yaml:"topic"`
	Chapters []OutlineChapter `json:"chapters" yaml:"chapters"`
}

// ChapterFor returns the chapter whose title matches the section heading,
// or nil when no chapter matches.
func (o *EnrichedOutline) ChapterFor(heading string) *OutlineChapter {
	for i := range o.Chapters {
		if o.Chapters[i].Title == heading {
			return &o.Chapters[i]
		}
	}
	return nil
}
