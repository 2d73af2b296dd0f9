// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package ingest loads survey Markdown and the enriched outline
// recovered from the survey generator's call logs. It is the boundary
// to the upstream survey pipeline: everything downstream works from the
// Document and EnrichedOutline records built here.
// Implements: prd008-ideation (R1.1-R1.4).
package ingest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FindLatestSurvey returns the newest *.md file in surveyDir, ignoring
// files with a test_ prefix. Returns an error when the directory holds
// no usable survey.
func FindLatestSurvey(surveyDir string) (string, error) {
	path, err := newestMatch(surveyDir, "*.md", func(name string) bool {
		return !strings.HasPrefix(name, "test_")
	})
	if err != nil {
		return "", err
	}
	if path == "" {
		return "", fmt.Errorf("no survey markdown found in %s", surveyDir)
	}
	return path, nil
}

// FindLatestCallLog returns the newest llm_calls_*.json under logsDir or
// its logs/ subdirectory. An empty path with nil error means no log was
// found; the caller falls back to a basic outline.
func FindLatestCallLog(logsDir string) (string, error) {
	var newest string
	var newestMod int64
	for _, dir := range []string{logsDir, filepath.Join(logsDir, "logs")} {
		path, mod, err := newestMatchMod(dir, "llm_calls_*.json", nil)
		if err != nil {
			return "", err
		}
		if path != "" && (newest == "" || mod > newestMod) {
			newest, newestMod = path, mod
		}
	}
	return newest, nil
}

func newestMatch(dir, pattern string, keep func(string) bool) (string, error) {
	path, _, err := newestMatchMod(dir, pattern, keep)
	return path, err
}

func newestMatchMod(dir, pattern string, keep func(string) bool) (string, int64, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return "", 0, nil
		}
		return "", 0, fmt.Errorf("reading %s: %w", dir, err)
	}

	var newest string
	var newestMod int64
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ok, err := filepath.Match(pattern, entry.Name())
		if err != nil || !ok {
			continue
		}
		if keep != nil && !keep(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if mod := info.ModTime().UnixNano(); newest == "" || mod > newestMod {
			newest = filepath.Join(dir, entry.Name())
			newestMod = mod
		}
	}
	return newest, newestMod, nil
}
