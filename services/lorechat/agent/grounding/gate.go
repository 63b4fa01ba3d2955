// Copyright (C) 2025 VaultSage Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package grounding

import (
	"log/slog"

	"github.com/vaultsage/vaultsage/services/lorechat/provenance"
)

// GateController runs the dual-phase evidence gate. Both engines
// (agentic chat and retrieval QA) drive the same controller with
// adapter-built RetrievalOutcomes.
//
// An abstain is a business outcome, not a failure; the controller
// logs it at Info, never Error.
//
// Thread Safety: Safe for concurrent use; state is set at construction.
type GateController struct {
	verifier *CitationVerifier
	logger   *slog.Logger

	strictEvidenceGate bool
	inlineCitations    bool
}

// GateOption configures a GateController.
type GateOption func(*GateController)

// WithStrictEvidenceGate toggles the post-answer gate. Disabled makes
// the post-answer gate inert; the pre-answer gate always runs.
func WithStrictEvidenceGate(enabled bool) GateOption {
	return func(g *GateController) {
		g.strictEvidenceGate = enabled
	}
}

// WithInlineCitations toggles the citation requirement. Disabled makes
// the post-answer gate inert.
func WithInlineCitations(enabled bool) GateOption {
	return func(g *GateController) {
		g.inlineCitations = enabled
	}
}

// WithGateLogger sets the logger.
func WithGateLogger(logger *slog.Logger) GateOption {
	return func(g *GateController) {
		g.logger = logger
	}
}

// NewGateController creates a gate controller. Both gate flags default
// to enabled.
func NewGateController(opts ...GateOption) *GateController {
	g := &GateController{
		verifier:           NewCitationVerifier(),
		logger:             slog.Default(),
		strictEvidenceGate: true,
		inlineCitations:    true,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// PreAnswer runs the pre-answer gate, before any generation starts.
//
// Description:
//
//	If the query is entity-mode and no source carries entity-backed
//	evidence, generation is skipped entirely and the turn finalizes
//	with the fixed abstain message and an empty source list.
//
// Outputs:
//
//	GateResult - Pass with the outcome's sources, or the pre-answer
//	abstain with empty sources.
//
// Thread Safety: Safe for concurrent use.
func (g *GateController) PreAnswer(outcome RetrievalOutcome) GateResult {
	if outcome.EntityQueryMode && !EntityEvidenceFound(outcome) {
		recordGateDecision("pre", string(GatePreAnswerAbstain))
		g.logger.Info("pre-answer gate abstained",
			slog.Int("sources", len(outcome.Sources)),
			slog.Bool("fallback_ran", outcome.FallbackRan),
		)
		return GateResult{
			Decision:  GatePreAnswerAbstain,
			FinalText: PreAnswerAbstainMessage,
			Sources:   []provenance.SourceEntry{},
		}
	}
	recordGateDecision("pre", string(GatePass))
	return GateResult{Decision: GatePass, Sources: outcome.Sources}
}

// PostAnswer runs the post-answer gate on generated text.
//
// Description:
//
//	Only entity-mode turns are gated. The text must contain at least
//	one inline citation marker paired with a rendered sources section;
//	otherwise the text is discarded, the fixed abstain message is
//	substituted, and sources are cleared. Inert when either the
//	strict-evidence-gate or inline-citations flag is disabled.
//	Idempotent: re-running on an already-abstained result is a no-op.
//
// Inputs:
//
//	outcome - The turn's normalized retrieval outcome.
//	finalText - The generated answer text.
//	sources - The assembled sources accompanying the text.
//
// Outputs:
//
//	GateResult - Pass-through, or the post-answer abstain.
//
// Thread Safety: Safe for concurrent use.
func (g *GateController) PostAnswer(outcome RetrievalOutcome, finalText string, sources []provenance.SourceEntry) GateResult {
	if !outcome.EntityQueryMode || !g.strictEvidenceGate || !g.inlineCitations {
		return GateResult{Decision: GatePass, FinalText: finalText, Sources: sources}
	}

	// Re-running on an abstained result must not re-judge the fixed
	// message against the citation rule.
	if finalText == PostAnswerAbstainMessage || finalText == PreAnswerAbstainMessage {
		return GateResult{
			Decision:  GatePostAnswerAbstain,
			FinalText: finalText,
			Sources:   []provenance.SourceEntry{},
		}
	}

	if g.verifier.Verify(finalText) {
		recordGateDecision("post", string(GatePass))
		return GateResult{Decision: GatePass, FinalText: finalText, Sources: sources}
	}

	recordGateDecision("post", string(GatePostAnswerAbstain))
	g.logger.Info("post-answer gate abstained",
		slog.Bool("has_markers", g.verifier.HasInlineCitations(finalText)),
		slog.Bool("has_sources_section", g.verifier.HasSourcesSection(finalText)),
		slog.Int("sources", len(sources)),
	)
	return GateResult{
		Decision:  GatePostAnswerAbstain,
		FinalText: PostAnswerAbstainMessage,
		Sources:   []provenance.SourceEntry{},
	}
}
