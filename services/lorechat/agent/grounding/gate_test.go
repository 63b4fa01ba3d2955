// Copyright (C) 2025 VaultSage Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package grounding

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaultsage/vaultsage/services/lorechat/provenance"
)

func quietGate(opts ...GateOption) *GateController {
	opts = append(opts, WithGateLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	return NewGateController(opts...)
}

func evidencedSource() provenance.SourceEntry {
	return provenance.SourceEntry{
		Title: "Driftmar",
		Path:  "Canon Lore/Driftmar.md",
		Score: 0.9,
		Explanation: &provenance.Explanation{
			ToolEvidence: &provenance.ToolEvidence{
				Tool:    provenance.ToolReadNote,
				ChunkID: "Canon Lore/Driftmar.md#0",
			},
		},
	}
}

func bareSource() provenance.SourceEntry {
	score := 0.95
	return provenance.SourceEntry{
		Title:       "Driftmar",
		Path:        "Canon Lore/Driftmar.md",
		Score:       0.95,
		Explanation: &provenance.Explanation{SemanticScore: &score},
	}
}

const citedAnswer = "Lord Maren rules Driftmar.[^1]\n\n## Sources\n[^1]: Canon Lore/Driftmar.md"

func TestPreAnswer_AbstainsWithoutEntityEvidence(t *testing.T) {
	t.Parallel()

	gate := quietGate()
	result := gate.PreAnswer(RetrievalOutcome{
		EntityQueryMode: true,
		Sources:         []provenance.SourceEntry{bareSource()},
	})

	assert.Equal(t, GatePreAnswerAbstain, result.Decision)
	assert.Equal(t, "Insufficient entity-backed lore evidence was found for this request.", result.FinalText)
	assert.Empty(t, result.Sources)
}

func TestPreAnswer_PassesWithEntityEvidence(t *testing.T) {
	t.Parallel()

	gate := quietGate()
	result := gate.PreAnswer(RetrievalOutcome{
		EntityQueryMode: true,
		Sources:         []provenance.SourceEntry{evidencedSource()},
	})

	assert.Equal(t, GatePass, result.Decision)
	require.Len(t, result.Sources, 1)
}

func TestPreAnswer_NonEntityQueryAlwaysPasses(t *testing.T) {
	t.Parallel()

	gate := quietGate()
	result := gate.PreAnswer(RetrievalOutcome{EntityQueryMode: false})
	assert.Equal(t, GatePass, result.Decision)
}

func TestPostAnswer_AbstainsWithoutCitations(t *testing.T) {
	t.Parallel()

	gate := quietGate()
	outcome := RetrievalOutcome{EntityQueryMode: true}
	sources := []provenance.SourceEntry{evidencedSource()}

	result := gate.PostAnswer(outcome, "Lord Maren rules Driftmar.", sources)

	assert.Equal(t, GatePostAnswerAbstain, result.Decision)
	assert.Equal(t, "I cannot provide a lore assertion without verifiable entity evidence and inline citations.", result.FinalText)
	assert.Empty(t, result.Sources)
}

func TestPostAnswer_PassesWithCitations(t *testing.T) {
	t.Parallel()

	gate := quietGate()
	outcome := RetrievalOutcome{EntityQueryMode: true}
	sources := []provenance.SourceEntry{evidencedSource()}

	result := gate.PostAnswer(outcome, citedAnswer, sources)

	assert.Equal(t, GatePass, result.Decision)
	assert.Equal(t, citedAnswer, result.FinalText)
	assert.Equal(t, sources, result.Sources)
}

func TestPostAnswer_MarkerWithoutSourcesSectionAbstains(t *testing.T) {
	t.Parallel()

	gate := quietGate()
	result := gate.PostAnswer(
		RetrievalOutcome{EntityQueryMode: true},
		"Lord Maren rules Driftmar.[^1]",
		[]provenance.SourceEntry{evidencedSource()},
	)
	assert.Equal(t, GatePostAnswerAbstain, result.Decision)
}

func TestPostAnswer_NonEntityQueryInert(t *testing.T) {
	t.Parallel()

	gate := quietGate()
	result := gate.PostAnswer(RetrievalOutcome{EntityQueryMode: false}, "uncited text", nil)
	assert.Equal(t, GatePass, result.Decision)
	assert.Equal(t, "uncited text", result.FinalText)
}

func TestPostAnswer_InertWhenStrictGateDisabled(t *testing.T) {
	t.Parallel()

	gate := quietGate(WithStrictEvidenceGate(false))
	result := gate.PostAnswer(RetrievalOutcome{EntityQueryMode: true}, "uncited text", nil)
	assert.Equal(t, GatePass, result.Decision)
	assert.Equal(t, "uncited text", result.FinalText)
}

func TestPostAnswer_InertWhenCitationsDisabled(t *testing.T) {
	t.Parallel()

	gate := quietGate(WithInlineCitations(false))
	result := gate.PostAnswer(RetrievalOutcome{EntityQueryMode: true}, "uncited text", nil)
	assert.Equal(t, GatePass, result.Decision)
}

func TestPostAnswer_IdempotentOnAbstainedResult(t *testing.T) {
	t.Parallel()

	gate := quietGate()
	outcome := RetrievalOutcome{EntityQueryMode: true}

	first := gate.PostAnswer(outcome, "uncited entity claim", []provenance.SourceEntry{evidencedSource()})
	require.Equal(t, GatePostAnswerAbstain, first.Decision)

	second := gate.PostAnswer(outcome, first.FinalText, first.Sources)
	assert.Equal(t, first.FinalText, second.FinalText)
	assert.Empty(t, second.Sources)
}

func TestEntityEvidenceFound(t *testing.T) {
	t.Parallel()

	assert.False(t, EntityEvidenceFound(RetrievalOutcome{}))
	assert.False(t, EntityEvidenceFound(RetrievalOutcome{
		Sources: []provenance.SourceEntry{bareSource()},
	}))
	assert.True(t, EntityEvidenceFound(RetrievalOutcome{
		Sources: []provenance.SourceEntry{bareSource(), evidencedSource()},
	}))
}

func TestCitationVerifier(t *testing.T) {
	t.Parallel()

	v := NewCitationVerifier()

	tests := []struct {
		name string
		text string
		want bool
	}{
		{"marker and heading", citedAnswer, true},
		{"marker and footnote defs", "Claim.[^1]\n\n[^1]: Canon Lore/Driftmar.md", true},
		{"marker only", "Claim.[^1]", false},
		{"heading only", "Claim.\n\n## Sources\nDriftmar", false},
		{"no citations", "Just prose about Driftmar.", false},
		{"definition does not count as marker", "[^1]: Canon Lore/Driftmar.md\n\nSources:", false},
		{"sources colon line", "Claim.[^2]\n\nSources:\n1. Driftmar", true},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, v.Verify(tc.text))
		})
	}
}
