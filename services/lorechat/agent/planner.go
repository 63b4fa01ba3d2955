// Copyright (C) 2025 VaultSage Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/vaultsage/vaultsage/services/llm"
	"github.com/vaultsage/vaultsage/services/lorechat/agent/tools"
)

const plannerPromptTemplate = `You plan tool calls for a question-answering
assistant over a personal Markdown vault. Available tools:

- localSearch(query, salientTerms[]): hybrid lexical+vector search
- findNotesByTitle(query): rank notes by title similarity
- readNote(path): read one note's full content

Respond with ONLY a JSON object:
{"toolCalls":[{"name":"...","args":{...}}],"salientTerms":["..."]}

User message: %s`

// LLMPlanner asks a model to propose tool calls.
//
// Description:
//
//	Output is parsed leniently: the first JSON object found in the
//	response is used, and a response with no parsable object yields an
//	empty plan rather than an error. The router guarantees retrieval
//	regardless, so planner failure is never fatal to a turn.
//
// Thread Safety: Safe for concurrent use.
type LLMPlanner struct {
	client llm.LLMClient
	params llm.GenerationParams
	logger *slog.Logger
}

// NewLLMPlanner creates a model-backed planner.
func NewLLMPlanner(client llm.LLMClient, params llm.GenerationParams, logger *slog.Logger) *LLMPlanner {
	if logger == nil {
		logger = slog.Default()
	}
	return &LLMPlanner{client: client, params: params, logger: logger}
}

// Plan proposes tool calls for a user message.
func (p *LLMPlanner) Plan(ctx context.Context, userMessage string) (*Plan, error) {
	prompt := fmt.Sprintf(plannerPromptTemplate, userMessage)
	raw, err := p.client.Generate(ctx, prompt, p.params)
	if err != nil {
		return nil, fmt.Errorf("planner generation: %w", err)
	}

	plan := parsePlan(raw)
	if plan == nil {
		p.logger.Warn("planner output unparsable, using empty plan",
			slog.Int("response_len", len(raw)),
		)
		return &Plan{}, nil
	}
	return plan, nil
}

// parsePlan extracts the first JSON object from model output. Returns
// nil when nothing parses.
func parsePlan(raw string) *Plan {
	start := strings.IndexByte(raw, '{')
	end := strings.LastIndexByte(raw, '}')
	if start < 0 || end <= start {
		return nil
	}

	var parsed struct {
		ToolCalls []struct {
			Name string         `json:"name"`
			Args map[string]any `json:"args"`
		} `json:"toolCalls"`
		SalientTerms []string `json:"salientTerms"`
	}
	if err := json.Unmarshal([]byte(raw[start:end+1]), &parsed); err != nil {
		return nil
	}

	plan := &Plan{SalientTerms: parsed.SalientTerms}
	for _, call := range parsed.ToolCalls {
		if call.Name == "" {
			continue
		}
		plan.ToolCalls = append(plan.ToolCalls, tools.ToolCall{
			Name: call.Name,
			Args: call.Args,
		})
	}
	return plan
}
