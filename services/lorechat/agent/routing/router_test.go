// Copyright (C) 2025 VaultSage Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package routing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaultsage/vaultsage/services/lorechat/agent/tools"
	"github.com/vaultsage/vaultsage/services/lorechat/provenance"
)

func TestRoute_ForcesRetrievalForLoreQuestion(t *testing.T) {
	t.Parallel()

	router := NewRouter()
	decision := router.Route(
		"who is the lord of driftmar",
		nil,
		[]string{"lord", "driftmar"},
	)

	assert.True(t, decision.Forced)
	assert.False(t, decision.ReadIntent)
	require.Len(t, decision.Calls, 1)

	call := decision.Calls[0]
	assert.Equal(t, provenance.ToolLocalSearch, call.Name)
	assert.Equal(t, "who is the lord of driftmar", call.Args["query"])
	assert.Equal(t, []any{"lord", "driftmar"}, call.Args["salientTerms"])
}

func TestRoute_ForcedCallIsFirst(t *testing.T) {
	t.Parallel()

	router := NewRouter()
	planner := []tools.ToolCall{{
		Name: provenance.ToolReadNote,
		Args: map[string]any{"path": "Canon Lore/Driftmar.md"},
	}}
	decision := router.Route("tell me about driftmar", planner, []string{"driftmar"})

	assert.True(t, decision.Forced)
	require.Len(t, decision.Calls, 2)
	assert.Equal(t, provenance.ToolLocalSearch, decision.Calls[0].Name)
	assert.Equal(t, provenance.ToolReadNote, decision.Calls[1].Name)
}

func TestRoute_PlannerSuppliedRetrievalNotDuplicated(t *testing.T) {
	t.Parallel()

	router := NewRouter()
	planner := []tools.ToolCall{{
		Name: provenance.ToolLocalSearch,
		Args: map[string]any{"query": "driftmar"},
	}}
	decision := router.Route("tell me about driftmar", planner, nil)

	assert.False(t, decision.Forced)
	require.Len(t, decision.Calls, 1)
}

func TestRoute_WikilinkReadBypassesRetrieval(t *testing.T) {
	t.Parallel()

	router := NewRouter()
	decision := router.Route("read [[Canon Lore/4C-04-06. Driftmar]]", nil, nil)

	assert.True(t, decision.ReadIntent)
	assert.False(t, decision.Forced)
	for _, call := range decision.Calls {
		assert.NotEqual(t, provenance.ToolLocalSearch, call.Name)
	}
	require.Len(t, decision.Calls, 1)
	assert.Equal(t, provenance.ToolReadNote, decision.Calls[0].Name)
	assert.Equal(t, "Canon Lore/4C-04-06. Driftmar", decision.Calls[0].Args["path"])
}

func TestRoute_ReadIntentKeepsPlannerCalls(t *testing.T) {
	t.Parallel()

	router := NewRouter()
	planner := []tools.ToolCall{{
		Name: provenance.ToolReadNote,
		Args: map[string]any{"path": "Canon Lore/Driftmar.md"},
	}}
	decision := router.Route("open [[Canon Lore/Driftmar]]", planner, nil)

	assert.True(t, decision.ReadIntent)
	assert.Equal(t, planner, decision.Calls)
}

func TestDetectReadIntent(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		message string
		target  string
		want    bool
	}{
		{"wikilink", "read [[Canon Lore/Driftmar]]", "Canon Lore/Driftmar", true},
		{"quoted", `open "Driftmar Accord"`, "Driftmar Accord", true},
		{"bare title", "show me Driftmar", "Driftmar", true},
		{"question mark", "read anything about dragons?", "", false},
		{"no verb", "who rules driftmar", "", false},
		{"verb mid sentence", "I want to read about driftmar someday maybe", "", false},
		{"long sentence after verb", "read me everything you know about the entire history of the driftmar accord", "", false},
		{"bare verb", "read", "", false},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			target, ok := detectReadIntent(tc.message)
			assert.Equal(t, tc.want, ok)
			if tc.want {
				assert.Equal(t, tc.target, target)
			}
		})
	}
}
