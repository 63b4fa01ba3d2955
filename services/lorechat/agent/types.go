// Copyright (C) 2025 VaultSage Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package agent runs one grounded chat turn end to end: plan, route,
// execute tools, gate on evidence, generate, gate on citations, and
// finalize with ranked sources. Every path through a turn converges on
// exactly one finalize.
package agent

import (
	"context"
	"errors"

	"github.com/vaultsage/vaultsage/services/lorechat/agent/grounding"
	"github.com/vaultsage/vaultsage/services/lorechat/agent/tools"
	"github.com/vaultsage/vaultsage/services/lorechat/provenance"
)

// ErrEmptyMessage rejects a turn with no usable user message.
var ErrEmptyMessage = errors.New("agent: empty user message")

// TurnState tracks a turn through the pipeline. Terminal abstain
// states skip every later state except Finalized.
type TurnState string

const (
	StatePlanning   TurnState = "PLANNING"
	StateRouted     TurnState = "ROUTED"
	StateRetrieving TurnState = "RETRIEVING"
	StateGenerating TurnState = "GENERATING"
	StateFinalized  TurnState = "FINALIZED"
)

// Plan is the planner's proposal for a turn.
type Plan struct {
	// ToolCalls are the proposed capability invocations; may be empty.
	ToolCalls []tools.ToolCall `json:"toolCalls"`

	// SalientTerms are key terms extracted from the user message.
	SalientTerms []string `json:"salientTerms"`
}

// Planner proposes tool calls for a user message. Implementations are
// typically model-backed and unreliable; the router and args repair
// compensate downstream.
//
// Thread Safety: Implementations must be safe for concurrent use.
type Planner interface {
	Plan(ctx context.Context, userMessage string) (*Plan, error)
}

// TurnRequest is one user turn entering the pipeline.
type TurnRequest struct {
	// SessionID groups turns into a conversation.
	SessionID string `json:"sessionId"`

	// Message is the raw user message.
	Message string `json:"message"`

	// OnToken, when set, receives generated tokens in arrival order
	// for live streaming to the caller.
	OnToken func(token string) `json:"-"`
}

// TurnResult is the pipeline's single finalize payload.
type TurnResult struct {
	// FinalText is the delivered answer or a fixed abstain message.
	FinalText string `json:"finalText"`

	// Sources are the ranked citable sources. Always empty when the
	// post-answer gate abstained.
	Sources []provenance.SourceEntry `json:"sources"`

	// Decision is the last gate verdict applied to the turn.
	Decision grounding.GateDecision `json:"decision"`

	// WasTruncated reports that generation was cut short mid-stream.
	WasTruncated bool `json:"wasTruncated"`

	// FallbackRan reports that the weak-result chain executed.
	FallbackRan bool `json:"fallbackRan"`
}
