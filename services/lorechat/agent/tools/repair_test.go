// Copyright (C) 2025 VaultSage Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package tools

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepairLocalSearchArgs_MissingQuery(t *testing.T) {
	t.Parallel()

	args, err := RepairLocalSearchArgs(
		map[string]any{"salientTerms": "broken"},
		"what broke the Driftmar accord",
	)
	require.NoError(t, err)

	assert.Equal(t, "what broke the Driftmar accord", args.Query)
	assert.Equal(t, []string{"broken"}, args.SalientTerms)
}

func TestRepairLocalSearchArgs_StringSalientTerms(t *testing.T) {
	t.Parallel()

	args, err := RepairLocalSearchArgs(
		map[string]any{
			"query":        "driftmar accord",
			"salientTerms": "driftmar accord treaty",
		},
		"ignored",
	)
	require.NoError(t, err)

	assert.Equal(t, "driftmar accord", args.Query)
	assert.Equal(t, []string{"driftmar", "accord", "treaty"}, args.SalientTerms)
}

func TestRepairLocalSearchArgs_MissingSalientTerms(t *testing.T) {
	t.Parallel()

	args, err := RepairLocalSearchArgs(
		map[string]any{"query": "driftmar accord"},
		"ignored",
	)
	require.NoError(t, err)

	assert.Equal(t, []string{"driftmar", "accord"}, args.SalientTerms)
}

func TestRepairLocalSearchArgs_EmptyEverything(t *testing.T) {
	t.Parallel()

	_, err := RepairLocalSearchArgs(map[string]any{}, "   ")
	require.Error(t, err)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "localSearch", verr.Tool)
}

func TestRepairLocalSearchArgs_MixedTypeTerms(t *testing.T) {
	t.Parallel()

	args, err := RepairLocalSearchArgs(
		map[string]any{
			"query":        "accord",
			"salientTerms": []any{"driftmar", 42, "", "accord"},
		},
		"ignored",
	)
	require.NoError(t, err)

	assert.Equal(t, []string{"driftmar", "accord"}, args.SalientTerms)
}

func TestRepairTitleLookupArgs_FallsBackToUserMessage(t *testing.T) {
	t.Parallel()

	args, err := RepairTitleLookupArgs(map[string]any{}, "Driftmar")
	require.NoError(t, err)
	assert.Equal(t, "Driftmar", args.Query)
}

func TestRepairReadNoteArgs_MissingPathIsFatal(t *testing.T) {
	t.Parallel()

	_, err := RepairReadNoteArgs(map[string]any{})
	require.Error(t, err)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "readNote", verr.Tool)
	assert.Equal(t, "path", verr.Field)
}

func TestRepairReadNoteArgs_Valid(t *testing.T) {
	t.Parallel()

	args, err := RepairReadNoteArgs(map[string]any{"path": "Canon Lore/Driftmar.md"})
	require.NoError(t, err)
	assert.Equal(t, "Canon Lore/Driftmar.md", args.Path)
}
