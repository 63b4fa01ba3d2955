// Copyright (C) 2025 VaultSage Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package qa answers a single question over the vault without the
// agent loop: one retrieval pass, the shared evidence gate, one
// generation. Its native evidence shape is retrieved-document
// metadata, translated here into the gate's normalized outcome.
package qa

import (
	"github.com/vaultsage/vaultsage/services/lorechat/agent/grounding"
	"github.com/vaultsage/vaultsage/services/lorechat/provenance"
	"github.com/vaultsage/vaultsage/services/retrieval"
)

// outcomeFromResult translates one retrieval result into the gate's
// normalized shape. Entity-graph evidence rides on document metadata
// here; there are no tool outputs in the QA path.
func outcomeFromResult(result *retrieval.Result) (grounding.RetrievalOutcome, []provenance.SourceEntry) {
	if result == nil {
		return grounding.RetrievalOutcome{}, nil
	}

	evidenceByPath := make(map[string]*provenance.EntityGraphEvidence, len(result.EntityEvidence))
	for i := range result.EntityEvidence {
		hit := result.EntityEvidence[i]
		evidenceByPath[hit.Path] = &hit.Evidence
	}

	sources := make([]provenance.SourceEntry, 0, len(result.Documents))
	for _, doc := range result.Documents {
		score := doc.Score
		sources = append(sources, provenance.SourceEntry{
			Title: doc.Title,
			Path:  doc.Path,
			Score: doc.RerankScore,
			Explanation: &provenance.Explanation{
				SemanticScore: &score,
				EntityGraph:   evidenceByPath[doc.Path],
			},
		})
	}

	outcome := grounding.RetrievalOutcome{
		EntityQueryMode: result.EntityQueryMode,
		Sources:         sources,
	}
	return outcome, sources
}
