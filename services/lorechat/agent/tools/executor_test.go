// Copyright (C) 2025 VaultSage Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package tools

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaultsage/vaultsage/services/lorechat/provenance"
	"github.com/vaultsage/vaultsage/services/retrieval"
	"github.com/vaultsage/vaultsage/services/vault"
)

// === Fakes ===

type fakeSearcher struct {
	result *retrieval.Result
	err    error
	calls  int
}

func (f *fakeSearcher) Search(_ context.Context, _ string, _ []string) (*retrieval.Result, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type fakeVault struct {
	matches      []vault.TitleMatch
	lookupErr    error
	note         *vault.NoteContent
	readErr      error
	lookupCalls  int
	readCalls    int
	lastLookup   string
	lastReadPath string
}

func (f *fakeVault) TitleLookup(_ context.Context, query string, _ int) ([]vault.TitleMatch, error) {
	f.lookupCalls++
	f.lastLookup = query
	return f.matches, f.lookupErr
}

func (f *fakeVault) ReadNote(_ context.Context, notePath string) (*vault.NoteContent, error) {
	f.readCalls++
	f.lastReadPath = notePath
	if f.readErr != nil {
		return nil, f.readErr
	}
	return f.note, nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func driftmarVault() *fakeVault {
	return &fakeVault{
		matches: []vault.TitleMatch{
			{NoteRef: vault.NoteRef{Path: "Canon Lore/Driftmar.md", Title: "Driftmar"}, Score: 0.9},
			{NoteRef: vault.NoteRef{Path: "Canon Lore/Driftwood.md", Title: "Driftwood"}, Score: 0.4},
		},
		note: &vault.NoteContent{
			NotePath:  "Canon Lore/Driftmar.md",
			NoteTitle: "Driftmar",
			ChunkID:   "Canon Lore/Driftmar.md#0",
			Content:   "Driftmar signed the accord in the third age.",
		},
	}
}

func searchCall() ToolCall {
	return ToolCall{
		Name: provenance.ToolLocalSearch,
		Args: map[string]any{
			"query":        "driftmar accord",
			"salientTerms": []any{"driftmar", "accord"},
		},
	}
}

// === Tests ===

func TestExecutor_StrongResultSkipsFallback(t *testing.T) {
	t.Parallel()

	searcher := &fakeSearcher{result: &retrieval.Result{
		Documents: []retrieval.Document{
			{Title: "Driftmar", Path: "Canon Lore/Driftmar.md", Score: 0.80, RerankScore: 0.86},
		},
	}}
	vlt := driftmarVault()
	exec := NewExecutor(searcher, vlt, vlt, WithExecutorLogger(quietLogger()))

	result, err := exec.Execute(context.Background(), []ToolCall{searchCall()}, "driftmar accord")
	require.NoError(t, err)

	require.Len(t, result.ToolOutputs, 1)
	assert.Equal(t, provenance.ToolLocalSearch, result.ToolOutputs[0].Tool)
	assert.False(t, result.FallbackRan)
	assert.Equal(t, 1, searcher.calls)
	assert.Equal(t, 0, vlt.lookupCalls)
	assert.Equal(t, 0, vlt.readCalls)
}

func TestExecutor_WeakResultRunsFallbackChain(t *testing.T) {
	t.Parallel()

	searcher := &fakeSearcher{result: &retrieval.Result{
		Documents: []retrieval.Document{
			{Title: "Driftmar", Path: "Canon Lore/Driftmar.md", Score: 0.1, RerankScore: 0.1},
		},
	}}
	vlt := driftmarVault()
	exec := NewExecutor(searcher, vlt, vlt, WithExecutorLogger(quietLogger()))

	result, err := exec.Execute(context.Background(), []ToolCall{searchCall()}, "driftmar accord")
	require.NoError(t, err)

	require.Len(t, result.ToolOutputs, 3)
	assert.Equal(t, provenance.ToolLocalSearch, result.ToolOutputs[0].Tool)
	assert.Equal(t, provenance.ToolFindNotesByTitle, result.ToolOutputs[1].Tool)
	assert.Equal(t, provenance.ToolReadNote, result.ToolOutputs[2].Tool)
	assert.True(t, result.FallbackRan)

	// Weak hit's title is preferred as the lookup key.
	assert.Equal(t, "Driftmar", vlt.lastLookup)
	assert.Equal(t, "Canon Lore/Driftmar.md", vlt.lastReadPath)

	// The read note must appear as a source with tool evidence.
	var readSource *provenance.SourceEntry
	for i := range result.Sources {
		s := &result.Sources[i]
		if s.Explanation != nil && s.Explanation.ToolEvidence != nil {
			readSource = s
			break
		}
	}
	require.NotNil(t, readSource)
	assert.Equal(t, provenance.ToolReadNote, readSource.Explanation.ToolEvidence.Tool)
	assert.Equal(t, "Canon Lore/Driftmar.md#0", readSource.Explanation.ToolEvidence.ChunkID)
	assert.True(t, readSource.HasEntityEvidence())
}

func TestExecutor_FailedPrimaryStillFallsBack(t *testing.T) {
	t.Parallel()

	searcher := &fakeSearcher{err: errors.New("weaviate unreachable")}
	vlt := driftmarVault()
	exec := NewExecutor(searcher, vlt, vlt, WithExecutorLogger(quietLogger()))

	result, err := exec.Execute(context.Background(), []ToolCall{searchCall()}, "driftmar accord")
	require.NoError(t, err)

	require.Len(t, result.ToolOutputs, 3)
	assert.Equal(t, "weaviate unreachable", result.ToolOutputs[0].Err)
	assert.Equal(t, provenance.ToolFindNotesByTitle, result.ToolOutputs[1].Tool)
	assert.Equal(t, provenance.ToolReadNote, result.ToolOutputs[2].Tool)
	assert.True(t, result.FallbackRan)
	// The original query is the lookup key when there is no weak hit.
	assert.Equal(t, "driftmar accord", vlt.lastLookup)
}

func TestExecutor_ZeroResultsFallsBack(t *testing.T) {
	t.Parallel()

	searcher := &fakeSearcher{result: &retrieval.Result{}}
	vlt := driftmarVault()
	exec := NewExecutor(searcher, vlt, vlt, WithExecutorLogger(quietLogger()))

	result, err := exec.Execute(context.Background(), []ToolCall{searchCall()}, "driftmar accord")
	require.NoError(t, err)

	assert.True(t, result.FallbackRan)
	require.Len(t, result.ToolOutputs, 3)
}

func TestExecutor_NoTitleMatchesStopsChain(t *testing.T) {
	t.Parallel()

	searcher := &fakeSearcher{result: &retrieval.Result{}}
	vlt := &fakeVault{}
	exec := NewExecutor(searcher, vlt, vlt, WithExecutorLogger(quietLogger()))

	result, err := exec.Execute(context.Background(), []ToolCall{searchCall()}, "driftmar accord")
	require.NoError(t, err)

	require.Len(t, result.ToolOutputs, 2)
	assert.Equal(t, provenance.ToolFindNotesByTitle, result.ToolOutputs[1].Tool)
	assert.Equal(t, 0, vlt.readCalls)
}

func TestExecutor_CustomThreshold(t *testing.T) {
	t.Parallel()

	searcher := &fakeSearcher{result: &retrieval.Result{
		Documents: []retrieval.Document{
			{Title: "Driftmar", Path: "Canon Lore/Driftmar.md", RerankScore: 0.6},
		},
	}}
	vlt := driftmarVault()
	exec := NewExecutor(searcher, vlt, vlt,
		WithExecutorLogger(quietLogger()),
		WithWeakResultThreshold(0.7),
	)

	result, err := exec.Execute(context.Background(), []ToolCall{searchCall()}, "driftmar accord")
	require.NoError(t, err)
	assert.True(t, result.FallbackRan)
}

func TestExecutor_DirectRead(t *testing.T) {
	t.Parallel()

	vlt := driftmarVault()
	exec := NewExecutor(&fakeSearcher{}, vlt, vlt, WithExecutorLogger(quietLogger()))

	call := ToolCall{
		Name: provenance.ToolReadNote,
		Args: map[string]any{"path": "Canon Lore/Driftmar.md"},
	}
	result, err := exec.Execute(context.Background(), []ToolCall{call}, "read it")
	require.NoError(t, err)

	require.Len(t, result.ToolOutputs, 1)
	assert.Equal(t, provenance.ToolReadNote, result.ToolOutputs[0].Tool)
	require.Len(t, result.Sources, 1)
	assert.True(t, result.Sources[0].HasEntityEvidence())
	assert.Equal(t, 1.0, result.Sources[0].Score)
}

func TestExecutor_Cancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	vlt := driftmarVault()
	exec := NewExecutor(&fakeSearcher{}, vlt, vlt, WithExecutorLogger(quietLogger()))

	_, err := exec.Execute(ctx, []ToolCall{searchCall()}, "driftmar accord")
	require.ErrorIs(t, err, context.Canceled)
}

func TestExecutor_UnknownToolSkipped(t *testing.T) {
	t.Parallel()

	vlt := driftmarVault()
	exec := NewExecutor(&fakeSearcher{}, vlt, vlt, WithExecutorLogger(quietLogger()))

	result, err := exec.Execute(context.Background(), []ToolCall{{Name: "summonDragon"}}, "hi")
	require.NoError(t, err)
	assert.Empty(t, result.ToolOutputs)
}

func TestExecutor_EntityFlagPropagates(t *testing.T) {
	t.Parallel()

	searcher := &fakeSearcher{result: &retrieval.Result{
		Documents: []retrieval.Document{
			{Title: "Driftmar", Path: "Canon Lore/Driftmar.md", RerankScore: 0.9},
		},
		EntityQueryMode: true,
	}}
	vlt := driftmarVault()
	exec := NewExecutor(searcher, vlt, vlt, WithExecutorLogger(quietLogger()))

	result, err := exec.Execute(context.Background(), []ToolCall{searchCall()}, "driftmar")
	require.NoError(t, err)
	assert.True(t, result.EntityQueryMode)
}
