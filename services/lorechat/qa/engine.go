// Copyright (C) 2025 VaultSage Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package qa

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/vaultsage/vaultsage/services/llm"
	"github.com/vaultsage/vaultsage/services/lorechat/agent/grounding"
	"github.com/vaultsage/vaultsage/services/lorechat/provenance"
	"github.com/vaultsage/vaultsage/services/retrieval"
)

// ErrEmptyQuestion rejects a request with no usable question.
var ErrEmptyQuestion = errors.New("qa: empty question")

// Answer is the engine's single finalize payload.
type Answer struct {
	// Question is the input question, echoed back.
	Question string `json:"question"`

	// Text is the answer or a fixed abstain message.
	Text string `json:"text"`

	// Sources are the ranked citable sources. Empty on abstain.
	Sources []provenance.SourceEntry `json:"sources"`

	// Decision is the gate verdict applied to the answer.
	Decision grounding.GateDecision `json:"decision"`
}

// Engine is the single-shot retrieval-QA pipeline. It shares the gate
// controller with the agentic engine but skips planning, routing, and
// the fallback chain.
//
// Thread Safety: Safe for concurrent use.
type Engine struct {
	searcher  retrieval.Searcher
	gate      *grounding.GateController
	generator llm.LLMClient
	assembler *provenance.Assembler
	genParams llm.GenerationParams
	logger    *slog.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithGenerationParams sets the synthesis generation parameters.
func WithGenerationParams(params llm.GenerationParams) EngineOption {
	return func(e *Engine) {
		e.genParams = params
	}
}

// WithEngineLogger sets the logger.
func WithEngineLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = logger
	}
}

// NewEngine creates a QA engine.
func NewEngine(searcher retrieval.Searcher, gate *grounding.GateController, generator llm.LLMClient, opts ...EngineOption) *Engine {
	e := &Engine{
		searcher:  searcher,
		gate:      gate,
		generator: generator,
		assembler: provenance.NewAssembler(),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Ask answers one question.
//
// Description:
//
//	retrieve -> adapt -> pre-gate -> generate -> post-gate. A failed
//	retrieval pass is an error here; unlike the agent there is no
//	fallback chain to recover with.
func (e *Engine) Ask(ctx context.Context, question string) (*Answer, error) {
	if strings.TrimSpace(question) == "" {
		return nil, ErrEmptyQuestion
	}

	result, err := e.searcher.Search(ctx, question, nil)
	if err != nil {
		return nil, fmt.Errorf("qa retrieval: %w", err)
	}

	outcome, rawSources := outcomeFromResult(result)
	sources := e.assembler.Assemble(rawSources)
	outcome.Sources = sources

	pre := e.gate.PreAnswer(outcome)
	if pre.Decision != grounding.GatePass {
		return &Answer{
			Question: question,
			Text:     pre.FinalText,
			Sources:  pre.Sources,
			Decision: pre.Decision,
		}, nil
	}

	text, err := e.generator.Generate(ctx, e.buildPrompt(question, result, sources), e.genParams)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("qa generation: %w", err)
	}

	post := e.gate.PostAnswer(outcome, text, sources)
	return &Answer{
		Question: question,
		Text:     post.FinalText,
		Sources:  post.Sources,
		Decision: post.Decision,
	}, nil
}

// buildPrompt assembles the QA synthesis prompt from retrieved content.
func (e *Engine) buildPrompt(question string, result *retrieval.Result, sources []provenance.SourceEntry) string {
	contentByPath := make(map[string]string, len(result.Documents))
	for _, doc := range result.Documents {
		contentByPath[doc.Path] = doc.Content
	}

	var b strings.Builder
	b.WriteString("Answer the question using ONLY the numbered evidence. ")
	b.WriteString("Cite claims with footnote markers like [^1] and end with a ")
	b.WriteString("\"## Sources\" section listing each cited note as [^n]: <path>.\n\n")
	b.WriteString("Evidence:\n")
	for i, src := range sources {
		fmt.Fprintf(&b, "[%d] %s (%s)\n%s\n\n", i+1, src.Title, src.Path, contentByPath[src.Path])
	}
	b.WriteString("Question: ")
	b.WriteString(question)
	return b.String()
}
