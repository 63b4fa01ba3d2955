// Copyright (C) 2025 VaultSage Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package grounding

// EntityEvidenceFound reports whether at least one source carries
// evidence that clears the gate bar: entity-graph provenance or tool
// evidence from the fallback chain. A bare similarity score, however
// high, never counts.
func EntityEvidenceFound(outcome RetrievalOutcome) bool {
	for i := range outcome.Sources {
		if outcome.Sources[i].HasEntityEvidence() {
			return true
		}
	}
	return false
}
