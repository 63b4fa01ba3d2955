// Copyright (C) 2025 VaultSage Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package datatypes holds the wire types shared by the HTTP handlers
// and their clients.
package datatypes

import (
	"github.com/vaultsage/vaultsage/services/lorechat/provenance"
)

// ChatStreamRequest starts one streamed chat turn.
type ChatStreamRequest struct {
	// SessionID groups turns; assigned by the server when empty.
	SessionID string `json:"sessionId"`

	// Message is the user's message.
	Message string `json:"message" binding:"required"`
}

// QARequest asks one single-shot question.
type QARequest struct {
	// Question is the user's question.
	Question string `json:"question" binding:"required"`
}

// QAResponse is the single-shot answer payload.
type QAResponse struct {
	Question string                   `json:"question"`
	Answer   string                   `json:"answer"`
	Sources  []provenance.SourceEntry `json:"sources"`
	Decision string                   `json:"decision"`
}

// StreamEventType discriminates SSE events on the chat stream.
type StreamEventType string

const (
	// StreamEventStatus is a progress message.
	StreamEventStatus StreamEventType = "status"

	// StreamEventToken carries one generated token group.
	StreamEventToken StreamEventType = "token"

	// StreamEventSources carries the turn's ranked sources.
	StreamEventSources StreamEventType = "sources"

	// StreamEventHeartbeat keeps idle connections alive.
	StreamEventHeartbeat StreamEventType = "heartbeat"

	// StreamEventError reports a failure.
	StreamEventError StreamEventType = "error"

	// StreamEventDone closes the stream with the final result.
	StreamEventDone StreamEventType = "done"
)

// StreamEvent is one SSE payload on the chat stream.
type StreamEvent struct {
	Type      StreamEventType          `json:"type"`
	SessionID string                   `json:"sessionId,omitempty"`
	Content   string                   `json:"content,omitempty"`
	Message   string                   `json:"message,omitempty"`
	Sources   []provenance.SourceEntry `json:"sources,omitempty"`
	Decision  string                   `json:"decision,omitempty"`
	Truncated bool                     `json:"truncated,omitempty"`
}

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
}
