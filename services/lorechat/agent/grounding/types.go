// Copyright (C) 2025 VaultSage Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package grounding decides whether an entity-mode answer may reach
// the user. Two gates share one normalized evidence shape: the
// pre-answer gate short-circuits generation when no entity-backed
// evidence exists, the post-answer gate rejects entity answers that
// lack inline citations.
package grounding

import (
	"github.com/vaultsage/vaultsage/services/lorechat/provenance"
)

// Fixed abstain messages. These are a stable user-facing contract;
// tests assert the exact strings.
const (
	// PreAnswerAbstainMessage replaces generation when an entity query
	// has no entity-backed evidence.
	PreAnswerAbstainMessage = "Insufficient entity-backed lore evidence was found for this request."

	// PostAnswerAbstainMessage replaces an entity answer that lacks
	// inline citations.
	PostAnswerAbstainMessage = "I cannot provide a lore assertion without verifiable entity evidence and inline citations."
)

// GateDecision is the outcome of a gate check.
type GateDecision string

const (
	// GatePass permits the turn to continue unchanged.
	GatePass GateDecision = "PASS"

	// GatePreAnswerAbstain terminates the turn before generation.
	GatePreAnswerAbstain GateDecision = "PRE_ANSWER_ABSTAIN"

	// GatePostAnswerAbstain replaces generated text after the fact.
	GatePostAnswerAbstain GateDecision = "POST_ANSWER_ABSTAIN"
)

// RetrievalOutcome is the single normalized evidence shape both gate
// call sites feed into the controller. The agentic engine builds it
// from tool outputs; the retrieval-QA engine builds it from document
// metadata. Adapters live with their engines.
type RetrievalOutcome struct {
	// EntityQueryMode reports that the question targets a specific
	// named entity rather than a general topic.
	EntityQueryMode bool `json:"entityQueryMode"`

	// Sources are the turn's assembled citable sources.
	Sources []provenance.SourceEntry `json:"sources"`

	// FallbackRan reports that the weak-result chain executed.
	FallbackRan bool `json:"fallbackRan"`
}

// GateResult is what a gate hands back to the pipeline.
type GateResult struct {
	// Decision is the gate's verdict.
	Decision GateDecision `json:"decision"`

	// FinalText is the text to deliver. On abstain it is the fixed
	// abstain message; on pass it is the input text unchanged.
	FinalText string `json:"finalText"`

	// Sources accompany FinalText. Empty on every abstain.
	Sources []provenance.SourceEntry `json:"sources"`
}
