// Copyright (C) 2025 VaultSage Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package tools executes the deterministic tool side of a chat turn:
// argument repair, sequential execution, and the weak-result fallback
// chain that upgrades a poor vector hit into a direct note read.
package tools

import (
	"context"

	"github.com/vaultsage/vaultsage/services/lorechat/provenance"
	"github.com/vaultsage/vaultsage/services/vault"
)

// ToolCall is a planned capability invocation. Produced by the planner
// or the router, consumed exactly once per turn.
type ToolCall struct {
	// Name is the tool name (provenance.ToolLocalSearch etc.).
	Name string `json:"name"`

	// Args are the raw, possibly malformed, arguments.
	Args map[string]any `json:"args"`
}

// ToolOutputRecord is the result of one executed ToolCall.
type ToolOutputRecord struct {
	// Tool is the executed tool's name.
	Tool string `json:"tool"`

	// Result is the tool's typed result payload. Nil when the call
	// failed; Err carries the reason.
	Result any `json:"result,omitempty"`

	// Err is the failure message when the call failed.
	Err string `json:"error,omitempty"`
}

// ExecutionResult is everything the tool phase produced for one turn.
type ExecutionResult struct {
	// ToolOutputs are the executed calls' outputs, in execution order.
	ToolOutputs []ToolOutputRecord `json:"toolOutputs"`

	// Sources are citable entries derived from tool outputs.
	Sources []provenance.SourceEntry `json:"sources"`

	// EntityQueryMode reports the retrieval backend's entity flag.
	EntityQueryMode bool `json:"entityQueryMode"`

	// FallbackRan reports whether the weak-result chain executed.
	FallbackRan bool `json:"fallbackRan"`
}

// TitleLookuper resolves note candidates by title similarity.
//
// Thread Safety: Implementations must be safe for concurrent use.
type TitleLookuper interface {
	TitleLookup(ctx context.Context, query string, limit int) ([]vault.TitleMatch, error)
}

// NoteReader reads a note's content directly.
//
// Thread Safety: Implementations must be safe for concurrent use.
type NoteReader interface {
	ReadNote(ctx context.Context, notePath string) (*vault.NoteContent, error)
}
