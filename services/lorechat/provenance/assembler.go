// Copyright (C) 2025 VaultSage Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package provenance

import (
	"log/slog"
	"sort"
)

// Assembler merges heterogeneous provenance into one ranked source list.
//
// Description:
//
//	Entries arrive from several producers per turn: the primary retrieval
//	backend (lexical + semantic + boosts), the entity graph, and the
//	deterministic fallback chain. The assembler deduplicates by path,
//	merges evidence onto the surviving entry, and ranks by descending
//	score with a stable sort (ties keep first-seen input order).
//
// Thread Safety: Safe for concurrent use (stateless after construction).
type Assembler struct {
	logger *slog.Logger

	// maxSources caps the assembled list (0 = unlimited).
	maxSources int
}

// AssemblerOption configures an Assembler.
type AssemblerOption func(*Assembler)

// WithMaxSources caps the number of assembled sources.
func WithMaxSources(max int) AssemblerOption {
	return func(a *Assembler) {
		a.maxSources = max
	}
}

// WithAssemblerLogger sets the logger.
func WithAssemblerLogger(logger *slog.Logger) AssemblerOption {
	return func(a *Assembler) {
		a.logger = logger
	}
}

// NewAssembler creates a source assembler.
func NewAssembler(opts ...AssemblerOption) *Assembler {
	a := &Assembler{
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Assemble merges the given entry groups into one ranked list.
//
// Description:
//
//	Groups are consumed in argument order; within a group, input order is
//	preserved. When two entries share a path the first one survives and
//	absorbs the other's evidence; the surviving score is the larger of
//	the two. The result is sorted by descending score, stable, so equal
//	scores keep first-seen order.
//
// Inputs:
//
//	groups - One or more slices of source entries to merge.
//
// Outputs:
//
//	[]SourceEntry - The ranked, deduplicated list. Never nil.
//
// Thread Safety: Safe for concurrent use.
func (a *Assembler) Assemble(groups ...[]SourceEntry) []SourceEntry {
	merged := make([]SourceEntry, 0)
	byPath := make(map[string]int)

	for _, group := range groups {
		for _, entry := range group {
			idx, seen := byPath[entry.Path]
			if !seen {
				byPath[entry.Path] = len(merged)
				merged = append(merged, entry)
				continue
			}
			mergeEntry(&merged[idx], entry)
		}
	}

	// Stable: equal scores keep first-seen input order.
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Score > merged[j].Score
	})

	if a.maxSources > 0 && len(merged) > a.maxSources {
		a.logger.Debug("Assembler: truncating source list",
			slog.Int("assembled", len(merged)),
			slog.Int("cap", a.maxSources),
		)
		merged = merged[:a.maxSources]
	}

	return merged
}

// mergeEntry folds the later duplicate into the surviving entry.
//
// The survivor keeps its identity (title, first-seen position) but takes
// the higher score and any evidence it was missing. Evidence already on
// the survivor wins: Explanation fields are immutable after attachment.
func mergeEntry(dst *SourceEntry, src SourceEntry) {
	if src.Score > dst.Score {
		dst.Score = src.Score
	}
	if src.Explanation == nil {
		return
	}
	if dst.Explanation == nil {
		dst.Explanation = src.Explanation
		return
	}

	if dst.Explanation.EntityGraph == nil {
		dst.Explanation.EntityGraph = src.Explanation.EntityGraph
	}
	if dst.Explanation.ToolEvidence == nil {
		dst.Explanation.ToolEvidence = src.Explanation.ToolEvidence
	}
	if dst.Explanation.SemanticScore == nil {
		dst.Explanation.SemanticScore = src.Explanation.SemanticScore
	}
	if dst.Explanation.FolderBoost == nil {
		dst.Explanation.FolderBoost = src.Explanation.FolderBoost
	}
	if len(dst.Explanation.LexicalMatches) == 0 {
		dst.Explanation.LexicalMatches = src.Explanation.LexicalMatches
	}
	if dst.Explanation.GraphConnections == 0 {
		dst.Explanation.GraphConnections = src.Explanation.GraphConnections
	}
	if dst.Explanation.BaseScore == nil {
		dst.Explanation.BaseScore = src.Explanation.BaseScore
	}
	if dst.Explanation.FinalScore == nil {
		dst.Explanation.FinalScore = src.Explanation.FinalScore
	}
}
