// Copyright (C) 2025 VaultSage Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package agent

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaultsage/vaultsage/services/llm"
	"github.com/vaultsage/vaultsage/services/lorechat/agent/grounding"
	"github.com/vaultsage/vaultsage/services/lorechat/agent/routing"
	"github.com/vaultsage/vaultsage/services/lorechat/agent/tools"
	"github.com/vaultsage/vaultsage/services/lorechat/provenance"
	"github.com/vaultsage/vaultsage/services/retrieval"
	"github.com/vaultsage/vaultsage/services/vault"
)

// === Fakes ===

type stubPlanner struct {
	plan *Plan
	err  error
}

func (s *stubPlanner) Plan(_ context.Context, _ string) (*Plan, error) {
	return s.plan, s.err
}

type stubSearcher struct {
	result *retrieval.Result
	err    error
}

func (s *stubSearcher) Search(_ context.Context, _ string, _ []string) (*retrieval.Result, error) {
	return s.result, s.err
}

type stubVault struct{}

func (stubVault) TitleLookup(_ context.Context, _ string, _ int) ([]vault.TitleMatch, error) {
	return []vault.TitleMatch{
		{NoteRef: vault.NoteRef{Path: "Canon Lore/Driftmar.md", Title: "Driftmar"}, Score: 0.9},
	}, nil
}

func (stubVault) ReadNote(_ context.Context, _ string) (*vault.NoteContent, error) {
	return &vault.NoteContent{
		NotePath:  "Canon Lore/Driftmar.md",
		NoteTitle: "Driftmar",
		ChunkID:   "Canon Lore/Driftmar.md#0",
		Content:   "Lord Maren rules Driftmar.",
	}, nil
}

// stubLLM replays a canned answer token by token. generations counts
// synthesis invocations so tests can assert the pre-gate short-circuit.
type stubLLM struct {
	answer      string
	generations int
}

func (s *stubLLM) Generate(_ context.Context, _ string, _ llm.GenerationParams) (string, error) {
	s.generations++
	return s.answer, nil
}

func (s *stubLLM) GenerateStream(_ context.Context, _ string, _ llm.GenerationParams, callback llm.StreamCallback) error {
	s.generations++
	for _, word := range strings.SplitAfter(s.answer, " ") {
		if err := callback(llm.StreamEvent{Type: llm.StreamEventToken, Content: word}); err != nil {
			return err
		}
	}
	return callback(llm.StreamEvent{Type: llm.StreamEventDone})
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const citedAnswer = "Lord Maren rules Driftmar.[^1]\n\n## Sources\n[^1]: Canon Lore/Driftmar.md"

func strongEntityResult() *retrieval.Result {
	return &retrieval.Result{
		Documents: []retrieval.Document{{
			Title:       "Driftmar",
			Path:        "Canon Lore/Driftmar.md",
			Score:       0.8,
			RerankScore: 0.9,
			Content:     "Lord Maren rules Driftmar.",
			EntityNames: []string{"Driftmar"},
		}},
		EntityQueryMode: true,
		EntityEvidence: []retrieval.EntityHit{{
			Path: "Canon Lore/Driftmar.md",
			Evidence: provenance.EntityGraphEvidence{
				MatchedEntities: []string{"Driftmar"},
				EvidenceCount:   1,
			},
		}},
	}
}

func newRunner(searcher retrieval.Searcher, generator llm.LLMClient, planner Planner) *ChainRunner {
	vlt := stubVault{}
	return NewChainRunner(
		planner,
		routing.NewRouter(routing.WithLogger(testLogger())),
		tools.NewExecutor(searcher, vlt, vlt, tools.WithExecutorLogger(testLogger())),
		grounding.NewGateController(grounding.WithGateLogger(testLogger())),
		generator,
		provenance.NewAssembler(),
		WithRunnerLogger(testLogger()),
	)
}

// === Tests ===

func TestRunTurn_CitedEntityAnswerPasses(t *testing.T) {
	t.Parallel()

	generator := &stubLLM{answer: citedAnswer}
	runner := newRunner(&stubSearcher{result: strongEntityResult()}, generator, &stubPlanner{plan: &Plan{SalientTerms: []string{"driftmar"}}})

	var streamed strings.Builder
	result, err := runner.RunTurn(context.Background(), TurnRequest{
		SessionID: "s1",
		Message:   "who is the lord of driftmar",
		OnToken:   func(tok string) { streamed.WriteString(tok) },
	})
	require.NoError(t, err)

	assert.Equal(t, grounding.GatePass, result.Decision)
	assert.Equal(t, citedAnswer, result.FinalText)
	assert.Equal(t, citedAnswer, streamed.String())
	require.NotEmpty(t, result.Sources)
	assert.Equal(t, "Canon Lore/Driftmar.md", result.Sources[0].Path)
}

func TestRunTurn_PreGateAbstainSkipsGeneration(t *testing.T) {
	t.Parallel()

	// Entity query, but only bare-similarity sources: no graph or tool
	// evidence anywhere.
	noEvidence := &retrieval.Result{
		Documents: []retrieval.Document{{
			Title: "Driftmar", Path: "Canon Lore/Driftmar.md", RerankScore: 0.9,
		}},
		EntityQueryMode: true,
	}
	generator := &stubLLM{answer: citedAnswer}
	runner := newRunner(&stubSearcher{result: noEvidence}, generator, &stubPlanner{plan: &Plan{}})

	result, err := runner.RunTurn(context.Background(), TurnRequest{Message: "who is the lord of driftmar"})
	require.NoError(t, err)

	assert.Equal(t, grounding.GatePreAnswerAbstain, result.Decision)
	assert.Equal(t, "Insufficient entity-backed lore evidence was found for this request.", result.FinalText)
	assert.Empty(t, result.Sources)
	assert.Zero(t, generator.generations)
}

func TestRunTurn_PostGateAbstainOnUncitedAnswer(t *testing.T) {
	t.Parallel()

	generator := &stubLLM{answer: "Lord Maren rules Driftmar, trust me."}
	runner := newRunner(&stubSearcher{result: strongEntityResult()}, generator, &stubPlanner{plan: &Plan{}})

	result, err := runner.RunTurn(context.Background(), TurnRequest{Message: "who is the lord of driftmar"})
	require.NoError(t, err)

	assert.Equal(t, grounding.GatePostAnswerAbstain, result.Decision)
	assert.Equal(t, "I cannot provide a lore assertion without verifiable entity evidence and inline citations.", result.FinalText)
	assert.Empty(t, result.Sources)
	assert.Equal(t, 1, generator.generations)
}

func TestRunTurn_NonEntityQueryNeverGated(t *testing.T) {
	t.Parallel()

	general := &retrieval.Result{
		Documents: []retrieval.Document{{
			Title: "Gardening", Path: "Notes/Gardening.md", RerankScore: 0.9,
			Content: "Plant tomatoes in spring.",
		}},
	}
	generator := &stubLLM{answer: "Plant tomatoes in spring."}
	runner := newRunner(&stubSearcher{result: general}, generator, &stubPlanner{plan: &Plan{}})

	result, err := runner.RunTurn(context.Background(), TurnRequest{Message: "when should I plant tomatoes"})
	require.NoError(t, err)

	assert.Equal(t, grounding.GatePass, result.Decision)
	assert.Equal(t, "Plant tomatoes in spring.", result.FinalText)
}

func TestRunTurn_PlannerFailureStillGrounds(t *testing.T) {
	t.Parallel()

	generator := &stubLLM{answer: citedAnswer}
	runner := newRunner(&stubSearcher{result: strongEntityResult()}, generator, &stubPlanner{err: context.DeadlineExceeded})

	result, err := runner.RunTurn(context.Background(), TurnRequest{Message: "who is the lord of driftmar"})
	require.NoError(t, err)
	assert.Equal(t, grounding.GatePass, result.Decision)
}

func TestRunTurn_EmptyMessageRejected(t *testing.T) {
	t.Parallel()

	runner := newRunner(&stubSearcher{}, &stubLLM{}, &stubPlanner{plan: &Plan{}})
	_, err := runner.RunTurn(context.Background(), TurnRequest{Message: "   "})
	require.ErrorIs(t, err, ErrEmptyMessage)
}

func TestRunTurn_CancellationSurfaces(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	runner := newRunner(&stubSearcher{result: strongEntityResult()}, &stubLLM{}, &stubPlanner{plan: &Plan{}})
	_, err := runner.RunTurn(ctx, TurnRequest{Message: "who is the lord of driftmar"})
	require.ErrorIs(t, err, context.Canceled)
}

func TestParsePlan(t *testing.T) {
	t.Parallel()

	t.Run("valid with prose around it", func(t *testing.T) {
		t.Parallel()
		raw := "Sure! Here is the plan:\n" +
			`{"toolCalls":[{"name":"localSearch","args":{"query":"driftmar"}}],"salientTerms":["driftmar"]}` +
			"\nDone."
		plan := parsePlan(raw)
		require.NotNil(t, plan)
		require.Len(t, plan.ToolCalls, 1)
		assert.Equal(t, "localSearch", plan.ToolCalls[0].Name)
		assert.Equal(t, []string{"driftmar"}, plan.SalientTerms)
	})

	t.Run("no json object", func(t *testing.T) {
		t.Parallel()
		assert.Nil(t, parsePlan("I cannot help with that."))
	})

	t.Run("nameless calls dropped", func(t *testing.T) {
		t.Parallel()
		plan := parsePlan(`{"toolCalls":[{"args":{"query":"x"}}]}`)
		require.NotNil(t, plan)
		assert.Empty(t, plan.ToolCalls)
	})
}
