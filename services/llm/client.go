// Copyright (C) 2025 VaultSage Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package llm provides the language-model client used for answer
// generation. The pipeline core treats it as a collaborator: it never
// constructs clients itself and never inspects provider detail.
package llm

import "context"

// GenerationParams are per-call sampling parameters.
type GenerationParams struct {
	Temperature *float32 `json:"temperature,omitempty"`
	TopP        *float32 `json:"top_p,omitempty"`
	MaxTokens   *int     `json:"max_tokens,omitempty"`
	Stop        []string `json:"stop,omitempty"`
}

// StreamEventType discriminates streamed events.
type StreamEventType string

const (
	// StreamEventToken carries one generated token (or token group).
	StreamEventToken StreamEventType = "token"

	// StreamEventError reports a mid-stream failure. Content already
	// delivered remains valid.
	StreamEventError StreamEventType = "error"

	// StreamEventDone marks the end of the stream.
	StreamEventDone StreamEventType = "done"
)

// StreamEvent is one unit of streamed generation output.
type StreamEvent struct {
	// Type discriminates the event.
	Type StreamEventType `json:"type"`

	// Content is the token text for StreamEventToken events.
	Content string `json:"content,omitempty"`

	// Err describes the failure for StreamEventError events.
	Err error `json:"-"`
}

// StreamCallback receives stream events in arrival order.
//
// Return an error to abort streaming (e.g. on client disconnect).
type StreamCallback func(event StreamEvent) error

// LLMClient is the standard interface for any generation backend.
//
// Thread Safety: Implementations must be safe for concurrent use.
type LLMClient interface {
	// Generate produces a complete response in one call.
	Generate(ctx context.Context, prompt string, params GenerationParams) (string, error)

	// GenerateStream produces a response token by token.
	//
	// Events are delivered to the callback in arrival order. A mid-stream
	// provider failure surfaces as a StreamEventError event followed by
	// StreamEventDone; GenerateStream itself returns an error only when
	// the stream could not be opened or the callback aborted.
	GenerateStream(ctx context.Context, prompt string, params GenerationParams, callback StreamCallback) error
}
