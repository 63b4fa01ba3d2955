// Copyright (C) 2025 VaultSage Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package provenance defines the citable-source model shared by both
// answering engines.
//
// A SourceEntry is one citable unit backing an answer. Its Explanation
// records where the score came from (lexical matches, semantic similarity,
// folder boosts, entity-graph paths, deterministic tool reads) so the UI
// can render a "why this source" breakdown and the evidence gate can
// distinguish real entity evidence from bare similarity.
package provenance

// Deterministic tool names that may appear as ToolEvidence.Tool.
//
// These are the only tools whose output counts as entity evidence. A bare
// similarity score from vector search never does.
const (
	ToolLocalSearch      = "localSearch"
	ToolFindNotesByTitle = "findNotesByTitle"
	ToolReadNote         = "readNote"
)

// SourceEntry is a single citable unit backing an answer.
type SourceEntry struct {
	// Title is the note title shown to the user.
	Title string `json:"title"`

	// Path is the vault-relative note path.
	Path string `json:"path"`

	// Score is the final relevance score used for ranking.
	Score float64 `json:"score"`

	// Explanation carries provenance detail. Nil when the backend
	// returned no breakdown.
	Explanation *Explanation `json:"explanation,omitempty"`
}

// Explanation is the provenance breakdown for one SourceEntry.
//
// All fields are optional; a populated field means that signal
// contributed to the entry's score. Immutable after assembly.
type Explanation struct {
	// LexicalMatches are the query terms that matched literally.
	LexicalMatches []string `json:"lexicalMatches,omitempty"`

	// SemanticScore is the vector-similarity contribution.
	SemanticScore *float64 `json:"semanticScore,omitempty"`

	// FolderBoost is the boost applied for folder proximity.
	FolderBoost *float64 `json:"folderBoost,omitempty"`

	// GraphConnections counts plain link-graph connections to the query.
	GraphConnections int `json:"graphConnections,omitempty"`

	// EntityGraph is graph-derived proof linking named entities.
	EntityGraph *EntityGraphEvidence `json:"entityGraph,omitempty"`

	// ToolEvidence is proof produced by a deterministic tool.
	ToolEvidence *ToolEvidence `json:"toolEvidence,omitempty"`

	// BaseScore is the score before boosts.
	BaseScore *float64 `json:"baseScore,omitempty"`

	// FinalScore is the score after all boosts.
	FinalScore *float64 `json:"finalScore,omitempty"`
}

// EntityGraphEvidence is graph-derived proof linking entities in the
// query to entities in the source note. Produced by the retrieval
// backend, consumed read-only.
type EntityGraphEvidence struct {
	// MatchedEntities are the entity names found on the path.
	MatchedEntities []string `json:"matchedEntities"`

	// RelationTypes are the relation kinds along the path.
	RelationTypes []string `json:"relationTypes"`

	// HopDepth is the longest path length used as evidence.
	HopDepth int `json:"hopDepth"`

	// EvidenceCount is the number of supporting relations.
	EvidenceCount int `json:"evidenceCount"`

	// RelationPaths are human-readable path renderings.
	RelationPaths []string `json:"relationPaths,omitempty"`

	// EvidenceRefs point at the notes the relations were extracted from.
	EvidenceRefs []string `json:"evidenceRefs,omitempty"`

	// ScoreContribution is how much this evidence added to the score.
	ScoreContribution float64 `json:"scoreContribution"`
}

// ToolEvidence is proof that a deterministic tool (not a similarity
// score) produced or confirmed the source. Only the fallback chain
// produces it.
type ToolEvidence struct {
	// Tool is one of ToolLocalSearch, ToolFindNotesByTitle, ToolReadNote.
	Tool string `json:"tool"`

	// ChunkID identifies the note chunk that was read, if any.
	ChunkID string `json:"chunkId,omitempty"`

	// Query is the query the tool ran with, if any.
	Query string `json:"query,omitempty"`

	// MatchScore is the tool's own confidence in the match.
	MatchScore float64 `json:"matchScore,omitempty"`
}

// HasEntityEvidence reports whether this entry carries evidence that
// counts for the entity gate: entity-graph proof or deterministic tool
// provenance.
func (s *SourceEntry) HasEntityEvidence() bool {
	if s.Explanation == nil {
		return false
	}
	return s.Explanation.EntityGraph != nil || s.Explanation.ToolEvidence != nil
}
