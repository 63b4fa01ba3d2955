// Copyright (C) 2025 VaultSage Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package provenance

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssembler_RanksByDescendingScore(t *testing.T) {
	t.Parallel()

	a := NewAssembler()

	got := a.Assemble([]SourceEntry{
		{Title: "Low", Path: "lore/low.md", Score: 0.2},
		{Title: "High", Path: "lore/high.md", Score: 0.9},
		{Title: "Mid", Path: "lore/mid.md", Score: 0.5},
	})

	require.Len(t, got, 3)
	assert.Equal(t, "High", got[0].Title)
	assert.Equal(t, "Mid", got[1].Title)
	assert.Equal(t, "Low", got[2].Title)
}

func TestAssembler_StableSortKeepsFirstSeenOrderOnTies(t *testing.T) {
	t.Parallel()

	a := NewAssembler()

	got := a.Assemble([]SourceEntry{
		{Title: "First", Path: "a.md", Score: 0.5},
		{Title: "Second", Path: "b.md", Score: 0.5},
		{Title: "Third", Path: "c.md", Score: 0.5},
	})

	require.Len(t, got, 3)
	assert.Equal(t, []string{"First", "Second", "Third"},
		[]string{got[0].Title, got[1].Title, got[2].Title})
}

func TestAssembler_DeduplicatesByPathAndMergesEvidence(t *testing.T) {
	t.Parallel()

	a := NewAssembler()

	retrieved := []SourceEntry{
		{Title: "Driftmar", Path: "lore/driftmar.md", Score: 0.4,
			Explanation: &Explanation{LexicalMatches: []string{"driftmar"}}},
	}
	fallback := []SourceEntry{
		{Title: "Driftmar", Path: "lore/driftmar.md", Score: 0.7,
			Explanation: &Explanation{
				ToolEvidence: &ToolEvidence{Tool: ToolReadNote, ChunkID: "driftmar#0"},
			}},
	}

	got := a.Assemble(retrieved, fallback)

	require.Len(t, got, 1)
	assert.Equal(t, 0.7, got[0].Score)
	require.NotNil(t, got[0].Explanation)
	assert.Equal(t, []string{"driftmar"}, got[0].Explanation.LexicalMatches)
	require.NotNil(t, got[0].Explanation.ToolEvidence)
	assert.Equal(t, ToolReadNote, got[0].Explanation.ToolEvidence.Tool)
}

func TestAssembler_MaxSourcesCap(t *testing.T) {
	t.Parallel()

	a := NewAssembler(WithMaxSources(2))

	got := a.Assemble([]SourceEntry{
		{Path: "a.md", Score: 0.9},
		{Path: "b.md", Score: 0.8},
		{Path: "c.md", Score: 0.7},
	})

	assert.Len(t, got, 2)
}

func TestSourceEntry_HasEntityEvidence(t *testing.T) {
	t.Parallel()

	semantic := 0.91

	cases := []struct {
		name  string
		entry SourceEntry
		want  bool
	}{
		{
			name:  "no explanation",
			entry: SourceEntry{Path: "a.md", Score: 0.9},
			want:  false,
		},
		{
			name: "bare similarity never counts",
			entry: SourceEntry{Path: "a.md", Score: 0.9,
				Explanation: &Explanation{SemanticScore: &semantic}},
			want: false,
		},
		{
			name: "entity graph counts",
			entry: SourceEntry{Path: "a.md", Score: 0.3,
				Explanation: &Explanation{EntityGraph: &EntityGraphEvidence{
					MatchedEntities: []string{"Driftmar"},
					EvidenceCount:   1,
				}}},
			want: true,
		},
		{
			name: "tool evidence counts",
			entry: SourceEntry{Path: "a.md", Score: 0.1,
				Explanation: &Explanation{ToolEvidence: &ToolEvidence{Tool: ToolReadNote}}},
			want: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, tc.entry.HasEntityEvidence())
		})
	}
}
