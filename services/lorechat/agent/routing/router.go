// Copyright (C) 2025 VaultSage Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package routing decides whether a chat turn's plan needs a forced
// primary retrieval call injected ahead of the planner's own calls.
//
// The planner is a language model and cannot be trusted to always
// propose retrieval for a lore question. The router guarantees it: any
// message that is not an explicit read directive gets localSearch as
// call #0, keyed on the raw user message.
package routing

import (
	"log/slog"
	"regexp"
	"strings"

	"github.com/vaultsage/vaultsage/services/lorechat/agent/tools"
	"github.com/vaultsage/vaultsage/services/lorechat/provenance"
)

// Decision records what the router did to the plan for one turn.
type Decision struct {
	// Calls is the final, router-ordered plan.
	Calls []tools.ToolCall `json:"calls"`

	// Forced reports whether a synthetic localSearch was injected.
	Forced bool `json:"forced"`

	// ReadIntent reports whether the message was an explicit read
	// directive, which suppresses forcing entirely.
	ReadIntent bool `json:"readIntent"`
}

// wikilinkPattern matches an Obsidian-style [[...]] note reference.
var wikilinkPattern = regexp.MustCompile(`\[\[([^\[\]]+)\]\]`)

// readVerbs open an explicit read directive. Matching is prefix-based
// on the trimmed, lowercased message; "reading list ideas" is a lore
// question, "read the reading list" is a directive.
var readVerbs = []string{"read ", "open ", "show me ", "display "}

// Router injects forced primary retrieval calls.
//
// Thread Safety: Safe for concurrent use; stateless after construction.
type Router struct {
	logger *slog.Logger
}

// RouterOption configures a Router.
type RouterOption func(*Router)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) RouterOption {
	return func(r *Router) {
		r.logger = logger
	}
}

// NewRouter creates a router.
func NewRouter(opts ...RouterOption) *Router {
	r := &Router{logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Route produces the final plan for a turn.
//
// Description:
//
//	If the message shows no explicit read intent and no planner call
//	already targets localSearch, a synthetic localSearch call is
//	injected as call #0 with query = the raw message and salientTerms =
//	the planner's terms. On explicit read intent the planner's calls
//	pass through untouched; if the planner proposed nothing, a readNote
//	call is synthesized from the named note.
//
// Inputs:
//
//	userMessage - Raw user message.
//	plannerCalls - Planner-proposed calls; may be empty.
//	salientTerms - Planner-extracted terms; may be empty.
//
// Outputs:
//
//	Decision - The final plan plus what the router did.
//
// Thread Safety: Safe for concurrent use.
func (r *Router) Route(userMessage string, plannerCalls []tools.ToolCall, salientTerms []string) Decision {
	if target, ok := detectReadIntent(userMessage); ok {
		recordRouteDecision("read_intent")
		r.logger.Debug("explicit read intent, not forcing retrieval",
			slog.String("target", target),
		)
		calls := plannerCalls
		if len(calls) == 0 {
			calls = []tools.ToolCall{{
				Name: provenance.ToolReadNote,
				Args: map[string]any{"path": target},
			}}
		}
		return Decision{Calls: calls, ReadIntent: true}
	}

	if hasPrimaryRetrieval(plannerCalls) {
		recordRouteDecision("planner_supplied")
		return Decision{Calls: plannerCalls}
	}

	recordRouteDecision("forced")
	r.logger.Info("forcing primary retrieval",
		slog.String("query", userMessage),
		slog.Int("salient_terms", len(salientTerms)),
	)

	forced := tools.ToolCall{
		Name: provenance.ToolLocalSearch,
		Args: map[string]any{
			"query":        userMessage,
			"salientTerms": toAnySlice(salientTerms),
		},
	}
	calls := make([]tools.ToolCall, 0, len(plannerCalls)+1)
	calls = append(calls, forced)
	calls = append(calls, plannerCalls...)
	return Decision{Calls: calls, Forced: true}
}

// detectReadIntent reports whether the message is a directive to open
// one concrete note, and if so which one.
//
// A directive needs both a read verb prefix and a concrete target. A
// wikilink anywhere after a read verb counts; so does a quoted or
// trailing bare name. A read verb with no nameable target is treated
// as a lore question.
func detectReadIntent(userMessage string) (string, bool) {
	trimmed := strings.TrimSpace(userMessage)
	lower := strings.ToLower(trimmed)

	verb := ""
	for _, v := range readVerbs {
		if strings.HasPrefix(lower, v) {
			verb = v
			break
		}
	}
	if verb == "" {
		return "", false
	}

	rest := strings.TrimSpace(trimmed[len(verb):])
	if m := wikilinkPattern.FindStringSubmatch(rest); m != nil {
		return strings.TrimSpace(m[1]), true
	}

	// Quoted name: read "Driftmar Accord"
	if len(rest) >= 2 && (rest[0] == '"' || rest[0] == '\'') {
		if end := strings.IndexByte(rest[1:], rest[0]); end > 0 {
			return rest[1 : 1+end], true
		}
	}

	// Bare target: accept only when it looks like a title, not a
	// sentence. Questions ("read anything about dragons?") stay lore.
	if rest == "" || strings.ContainsAny(rest, "?") {
		return "", false
	}
	if words := strings.Fields(rest); len(words) > 8 {
		return "", false
	}
	return rest, true
}

// hasPrimaryRetrieval reports whether any planned call is localSearch.
func hasPrimaryRetrieval(calls []tools.ToolCall) bool {
	for _, call := range calls {
		if call.Name == provenance.ToolLocalSearch {
			return true
		}
	}
	return false
}

func toAnySlice(terms []string) []any {
	out := make([]any, len(terms))
	for i, t := range terms {
		out[i] = t
	}
	return out
}
