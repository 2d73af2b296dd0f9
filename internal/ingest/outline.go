// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ingest

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/LiZaiyuan0619/IGen/pkg/types"
)

// callRecord is one entry of the survey generator's LLM call log. Only
// the fields needed to locate the outline enrichment result are
// decoded.
type callRecord struct {
	TaskType        string          `json:"task_type"`
	ParsedStructure json.RawMessage `json:"parsed_structure"`
	ResponseData    json.RawMessage `json:"response_data"`
	Result          json.RawMessage `json:"result"`
}

// rawOutline mirrors the log payload. Chapters appear either as a list
// or as a map keyed by chapter id, depending on the generator version.
type rawOutline struct {
	Topic    string          `json:"topic"`
	Chapters json.RawMessage `json:"chapters"`
}

type rawChapter struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	Keywords     []string `json:"keywords"`
	ContentGuide string   `json:"content_guide"`
	Weight       float64  `json:"weight"`
}

// ParseOutlineLog recovers the enriched outline from an LLM call log.
// The log may be a single JSON array or line-delimited JSON objects.
// It prefers the enrichment_final record's parsed structure, then any
// record carrying a chapters payload. Returns nil when the log holds no
// outline; the caller falls back to BasicOutline.
func ParseOutlineLog(path string) (*types.EnrichedOutline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading call log: %w", err)
	}

	records := decodeRecords(data)

	for _, rec := range records {
		if rec.TaskType != "enrichment_final" {
			continue
		}
		if o := outlineFromRecord(rec); o != nil {
			return o, nil
		}
	}
	for _, rec := range records {
		if o := outlineFromRecord(rec); o != nil {
			return o, nil
		}
	}
	return nil, nil
}

// decodeRecords parses the log as a JSON array, a single object, or
// line-delimited objects. Undecodable lines are skipped.
func decodeRecords(data []byte) []callRecord {
	var list []callRecord
	if err := json.Unmarshal(data, &list); err == nil {
		return list
	}
	var single callRecord
	if err := json.Unmarshal(data, &single); err == nil {
		return []callRecord{single}
	}

	var out []callRecord
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var rec callRecord
		if err := json.Unmarshal([]byte(line), &rec); err == nil {
			out = append(out, rec)
		}
	}
	return out
}

// outlineFromRecord tries the payload fields in order of reliability.
func outlineFromRecord(rec callRecord) *types.EnrichedOutline {
	for _, raw := range []json.RawMessage{rec.ParsedStructure, rec.ResponseData, rec.Result} {
		if len(raw) == 0 {
			continue
		}
		if o := decodeOutline(raw); o != nil {
			return o
		}
		// result may nest the outline one level down
		var wrapper struct {
			EnrichedOutline json.RawMessage `json:"enriched_outline"`
			ParsedStructure json.RawMessage `json:"parsed_structure"`
		}
		if err := json.Unmarshal(raw, &wrapper); err == nil {
			for _, inner := range []json.RawMessage{wrapper.EnrichedOutline, wrapper.ParsedStructure} {
				if len(inner) > 0 {
					if o := decodeOutline(inner); o != nil {
						return o
					}
				}
			}
		}
	}
	return nil
}

func decodeOutline(raw json.RawMessage) *types.EnrichedOutline {
	var ro rawOutline
	if err := json.Unmarshal(raw, &ro); err != nil || len(ro.Chapters) == 0 {
		return nil
	}

	chapters := decodeChapters(ro.Chapters)
	if len(chapters) == 0 {
		return nil
	}
	return &types.EnrichedOutline{Topic: ro.Topic, Chapters: chapters}
}

// decodeChapters accepts both the list and the id-keyed map encodings.
// Map entries are ordered by key for determinism.
func decodeChapters(raw json.RawMessage) []types.OutlineChapter {
	var list []rawChapter
	if err := json.Unmarshal(raw, &list); err == nil {
		return convertChapters(list)
	}

	var byID map[string]rawChapter
	if err := json.Unmarshal(raw, &byID); err != nil {
		return nil
	}
	ids := make([]string, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	ordered := make([]rawChapter, 0, len(ids))
	for _, id := range ids {
		ch := byID[id]
		if ch.ID == "" {
			ch.ID = id
		}
		ordered = append(ordered, ch)
	}
	return convertChapters(ordered)
}

func convertChapters(raw []rawChapter) []types.OutlineChapter {
	var out []types.OutlineChapter
	for _, ch := range raw {
		if strings.TrimSpace(ch.Title) == "" {
			continue
		}
		out = append(out, types.OutlineChapter{
			ID:           ch.ID,
			Title:        ch.Title,
			Keywords:     ch.Keywords,
			ContentGuide: ch.ContentGuide,
			Weight:       ch.Weight,
		})
	}
	return out
}

// BasicOutline builds a minimal single-chapter outline from the survey
// itself, used when no call log is available.
func BasicOutline(doc types.Document) types.EnrichedOutline {
	keywords := doc.Keywords
	if len(keywords) > 3 {
		keywords = keywords[:3]
	}
	return types.EnrichedOutline{
		Topic: doc.Title,
		Chapters: []types.OutlineChapter{{
			ID:           "1",
			Title:        "Introduction",
			Keywords:     keywords,
			ContentGuide: "research background",
		}},
	}
}

// Load finds and parses the newest survey and its outline in one step.
func Load(cfg types.IngestConfig) (types.Document, types.EnrichedOutline, error) {
	mdPath, err := FindLatestSurvey(cfg.SurveyDir)
	if err != nil {
		return types.Document{}, types.EnrichedOutline{}, err
	}
	doc, err := ParseSurvey(mdPath)
	if err != nil {
		return types.Document{}, types.EnrichedOutline{}, err
	}

	logPath, err := FindLatestCallLog(cfg.LogsDir)
	if err != nil {
		return types.Document{}, types.EnrichedOutline{}, err
	}
	if logPath != "" {
		outline, err := ParseOutlineLog(logPath)
		if err == nil && outline != nil {
			return doc, *outline, nil
		}
	}
	return doc, BasicOutline(doc), nil
}
