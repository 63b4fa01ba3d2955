// Copyright (C) 2025 VaultSage Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/vaultsage/vaultsage/services/lorechat/provenance"
	"github.com/vaultsage/vaultsage/services/orchestrator/datatypes"
)

// SSEWriter serializes stream events onto one SSE connection.
//
// Thread Safety: Safe for concurrent use; the heartbeat goroutine and
// the token path write through the same mutex.
type SSEWriter struct {
	mu      sync.Mutex
	writer  http.ResponseWriter
	flusher http.Flusher
}

// NewSSEWriter wraps a response writer for SSE. Fails when the writer
// cannot flush.
func NewSSEWriter(w http.ResponseWriter) (*SSEWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("response writer does not support flushing")
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	return &SSEWriter{writer: w, flusher: flusher}, nil
}

// WriteEvent writes one event and flushes immediately.
func (w *SSEWriter) WriteEvent(event datatypes.StreamEvent) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if _, err := fmt.Fprintf(w.writer, "event: %s\ndata: %s\n\n", event.Type, data); err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	w.flusher.Flush()
	return nil
}

// WriteStatus emits a progress message.
func (w *SSEWriter) WriteStatus(message string) error {
	return w.WriteEvent(datatypes.StreamEvent{
		Type:    datatypes.StreamEventStatus,
		Message: message,
	})
}

// WriteToken emits one generated token group.
func (w *SSEWriter) WriteToken(token string) error {
	return w.WriteEvent(datatypes.StreamEvent{
		Type:    datatypes.StreamEventToken,
		Content: token,
	})
}

// WriteSources emits the turn's ranked sources.
func (w *SSEWriter) WriteSources(sources []provenance.SourceEntry) error {
	return w.WriteEvent(datatypes.StreamEvent{
		Type:    datatypes.StreamEventSources,
		Sources: sources,
	})
}

// WriteHeartbeat emits a keepalive ping.
func (w *SSEWriter) WriteHeartbeat() error {
	return w.WriteEvent(datatypes.StreamEvent{Type: datatypes.StreamEventHeartbeat})
}

// WriteError emits a failure message.
func (w *SSEWriter) WriteError(message string) error {
	return w.WriteEvent(datatypes.StreamEvent{
		Type:    datatypes.StreamEventError,
		Message: message,
	})
}

// WriteDone closes the logical stream with the final result.
func (w *SSEWriter) WriteDone(event datatypes.StreamEvent) error {
	event.Type = datatypes.StreamEventDone
	return w.WriteEvent(event)
}
