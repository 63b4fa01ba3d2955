// Copyright (C) 2025 VaultSage Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package agent

import (
	"strings"
	"sync"

	"github.com/vaultsage/vaultsage/services/llm"
)

// interceptorState is the interceptor's lifecycle position.
type interceptorState int

const (
	interceptorIdle interceptorState = iota
	interceptorStreaming
	interceptorClosed
)

// StreamCapture is the interceptor's final yield.
type StreamCapture struct {
	// Content is everything buffered before close.
	Content string `json:"content"`

	// WasTruncated reports a mid-stream error cut generation short.
	// Buffered content up to that point is preserved.
	WasTruncated bool `json:"wasTruncated"`
}

// StreamInterceptor buffers a generation stream and yields its capture
// exactly once.
//
// Description:
//
//	Explicit small state machine: Idle -> Streaming -> Closed. Chunks
//	are appended in arrival order and never reordered or dropped. An
//	error chunk marks the capture truncated without discarding what
//	was already buffered. Close is idempotent and owned exclusively by
//	the pipeline that opened the stream.
//
// Thread Safety: Safe for concurrent use. Chunk delivery from the LLM
// client is sequential, but close may race a delivery on cancellation.
type StreamInterceptor struct {
	mu        sync.Mutex
	state     interceptorState
	buf       strings.Builder
	truncated bool
	capture   StreamCapture

	// onToken forwards each chunk downstream (e.g. SSE) in arrival
	// order. Optional.
	onToken func(token string)
}

// NewStreamInterceptor creates an interceptor. onToken may be nil.
func NewStreamInterceptor(onToken func(token string)) *StreamInterceptor {
	return &StreamInterceptor{onToken: onToken}
}

// Handle is the llm.StreamCallback fed to the generation call.
//
// Outputs:
//
//	error - Always nil; stream errors are recorded, not propagated,
//	so buffered content survives.
func (si *StreamInterceptor) Handle(event llm.StreamEvent) error {
	si.mu.Lock()
	defer si.mu.Unlock()

	if si.state == interceptorClosed {
		return nil
	}
	si.state = interceptorStreaming

	switch event.Type {
	case llm.StreamEventToken:
		si.buf.WriteString(event.Content)
		if si.onToken != nil {
			si.onToken(event.Content)
		}
	case llm.StreamEventError:
		si.truncated = true
	case llm.StreamEventDone:
	}
	return nil
}

// Close finalizes the capture. The first call snapshots the buffer;
// every later call returns the same capture.
func (si *StreamInterceptor) Close() StreamCapture {
	si.mu.Lock()
	defer si.mu.Unlock()

	if si.state != interceptorClosed {
		si.capture = StreamCapture{
			Content:      si.buf.String(),
			WasTruncated: si.truncated,
		}
		si.state = interceptorClosed
	}
	return si.capture
}
