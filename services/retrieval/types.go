// Copyright (C) 2025 VaultSage Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package retrieval provides the primary retrieval backend for the
// answering pipeline: hybrid (lexical + vector) search over the indexed
// note corpus, plus the entity-graph evidence that backs lore claims.
package retrieval

import (
	"context"

	"github.com/vaultsage/vaultsage/services/lorechat/provenance"
)

// Document is one retrieved note chunk.
type Document struct {
	// Title is the note title.
	Title string `json:"title"`

	// Path is the vault-relative note path.
	Path string `json:"path"`

	// Score is the hybrid search score.
	Score float64 `json:"score"`

	// RerankScore is the cross-encoder score when reranking ran,
	// otherwise equal to Score.
	RerankScore float64 `json:"rerankScore"`

	// Content is the chunk text.
	Content string `json:"content"`

	// EntityNames are named entities tagged on the note.
	EntityNames []string `json:"entityNames,omitempty"`
}

// EntityHit binds entity-graph evidence to a retrieved note path.
type EntityHit struct {
	// Path is the note the evidence supports.
	Path string `json:"path"`

	// Evidence is the graph-derived proof.
	Evidence provenance.EntityGraphEvidence `json:"evidence"`
}

// Result is the normalized output of one primary-retrieval call.
type Result struct {
	// Documents are the retrieved chunks, best first.
	Documents []Document `json:"documents"`

	// EntityQueryMode reports whether the query targets a specific
	// named entity rather than a general topic.
	EntityQueryMode bool `json:"entityQueryMode"`

	// EntityEvidence carries graph-derived proof per note path.
	// Empty when the query is not entity-targeted or no relations exist.
	EntityEvidence []EntityHit `json:"entityEvidence,omitempty"`
}

// TopScore returns the best document's rerank score, or 0 when the
// result is empty. The fallback executor keys its weakness check on it.
func (r *Result) TopScore() float64 {
	if r == nil || len(r.Documents) == 0 {
		return 0
	}
	top := r.Documents[0]
	if top.RerankScore > 0 {
		return top.RerankScore
	}
	return top.Score
}

// Searcher is the primary retrieval contract consumed by the pipeline.
//
// Thread Safety: Implementations must be safe for concurrent use.
type Searcher interface {
	// Search runs hybrid retrieval for one query.
	//
	// Inputs:
	//   ctx - Context for cancellation and timeout.
	//   query - The raw user question.
	//   salientTerms - Planner-extracted key terms; may be empty.
	//
	// Outputs:
	//   *Result - Documents plus entity metadata. Never nil on success.
	//   error - Non-nil if the backend call failed.
	Search(ctx context.Context, query string, salientTerms []string) (*Result, error)
}
