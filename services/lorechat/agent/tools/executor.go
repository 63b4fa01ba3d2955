// Copyright (C) 2025 VaultSage Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package tools

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/vaultsage/vaultsage/services/lorechat/provenance"
	"github.com/vaultsage/vaultsage/services/retrieval"
)

// DefaultWeakResultThreshold is the score below which a top-ranked
// retrieval hit is considered too weak to trust without corroboration.
//
// Observed behavior pins only the extremes: 0.86 is comfortably strong
// and must never trigger the fallback chain, 0.1 always must. The
// midpoint here is deliberate slack between those anchors; tune via
// WithWeakResultThreshold rather than editing the constant.
const DefaultWeakResultThreshold = 0.55

// titleLookupLimit is how many candidates a fallback title lookup asks for.
const titleLookupLimit = 5

// Executor runs planned tool calls strictly in router order and applies
// the deterministic weak-result fallback chain after primary retrieval.
//
// Description:
//
//	The fallback chain is not a retry: it is a different, stronger
//	strategy (title lookup, then a direct note read) paid for only on
//	demonstrated weakness of the primary result. A primary call that
//	fails outright is treated as a zero-result weak outcome and still
//	attempts fallback.
//
// Thread Safety: Safe for concurrent use; all state is per-call.
type Executor struct {
	searcher retrieval.Searcher
	titles   TitleLookuper
	reader   NoteReader
	logger   *slog.Logger

	weakThreshold float64
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithWeakResultThreshold overrides the weak-result cutoff.
func WithWeakResultThreshold(threshold float64) ExecutorOption {
	return func(e *Executor) {
		e.weakThreshold = threshold
	}
}

// WithExecutorLogger sets the logger.
func WithExecutorLogger(logger *slog.Logger) ExecutorOption {
	return func(e *Executor) {
		e.logger = logger
	}
}

// NewExecutor creates a tool executor.
//
// Inputs:
//
//	searcher - Primary retrieval backend.
//	titles - Title lookup collaborator (vault index).
//	reader - Direct note reader (vault index).
//	opts - Configuration options.
func NewExecutor(searcher retrieval.Searcher, titles TitleLookuper, reader NoteReader, opts ...ExecutorOption) *Executor {
	e := &Executor{
		searcher:      searcher,
		titles:        titles,
		reader:        reader,
		logger:        slog.Default(),
		weakThreshold: DefaultWeakResultThreshold,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs the planned calls in order and returns the turn's
// execution result.
//
// Description:
//
//	Calls execute strictly sequentially; each fallback step depends on
//	the previous step's output. Cancellation stops further invocations
//	and returns ctx.Err(). A tool failure is logged, recorded on the
//	output list, and execution continues: tool failures are never fatal
//	to the turn.
//
// Inputs:
//
//	ctx - Context for cancellation; checked before every call.
//	calls - Router-ordered tool calls.
//	userMessage - Raw user message, used for args repair.
//
// Outputs:
//
//	*ExecutionResult - Outputs, sources, and entity flags. Never nil
//	unless err is non-nil.
//	error - Only a context error; tool failures do not surface here.
//
// Thread Safety: Safe for concurrent use.
func (e *Executor) Execute(ctx context.Context, calls []ToolCall, userMessage string) (*ExecutionResult, error) {
	result := &ExecutionResult{}

	for _, call := range calls {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		start := time.Now()
		switch call.Name {
		case provenance.ToolLocalSearch:
			e.runPrimaryRetrieval(ctx, call, userMessage, result)
		case provenance.ToolFindNotesByTitle:
			e.runTitleLookup(ctx, call, userMessage, result)
		case provenance.ToolReadNote:
			e.runDirectRead(ctx, call, result)
		default:
			e.logger.Warn("unknown tool in plan, skipping",
				slog.String("tool", call.Name),
			)
			continue
		}
		observeToolDuration(call.Name, time.Since(start))
	}

	return result, ctx.Err()
}

// runPrimaryRetrieval executes localSearch and, on weakness, the
// fallback chain.
func (e *Executor) runPrimaryRetrieval(ctx context.Context, call ToolCall, userMessage string, result *ExecutionResult) {
	args, repairErr := RepairLocalSearchArgs(call.Args, userMessage)
	if repairErr != nil {
		// Repair only fails on an empty user message; treat as a
		// zero-result weak outcome like any other primary failure.
		e.logger.Warn("localSearch args unrepairable",
			slog.String("error", repairErr.Error()),
		)
		result.ToolOutputs = append(result.ToolOutputs, ToolOutputRecord{
			Tool: provenance.ToolLocalSearch, Err: repairErr.Error(),
		})
		e.runFallbackChain(ctx, userMessage, result)
		return
	}

	search, err := e.searcher.Search(ctx, args.Query, args.SalientTerms)
	if err != nil {
		// Failed primary call: zero-result weak outcome, still attempt
		// fallback.
		e.logger.Warn("primary retrieval failed, falling back",
			slog.String("query", args.Query),
			slog.String("error", err.Error()),
		)
		result.ToolOutputs = append(result.ToolOutputs, ToolOutputRecord{
			Tool: provenance.ToolLocalSearch, Err: err.Error(),
		})
		e.runFallbackChain(ctx, args.Query, result)
		return
	}

	result.ToolOutputs = append(result.ToolOutputs, ToolOutputRecord{
		Tool: provenance.ToolLocalSearch, Result: search,
	})
	result.EntityQueryMode = result.EntityQueryMode || search.EntityQueryMode
	result.Sources = append(result.Sources, sourcesFromSearch(search, args.SalientTerms)...)

	top := search.TopScore()
	if top >= e.weakThreshold {
		e.logger.Debug("primary result strong, no fallback",
			slog.Float64("top_score", top),
		)
		return
	}

	// Weak hit: prefer its title as the lookup key, else the query.
	lookupQuery := args.Query
	if len(search.Documents) > 0 && search.Documents[0].Title != "" {
		lookupQuery = search.Documents[0].Title
	}
	e.logger.Info("primary result weak, running fallback chain",
		slog.Float64("top_score", top),
		slog.Float64("threshold", e.weakThreshold),
		slog.String("lookup_query", lookupQuery),
	)
	e.runFallbackChain(ctx, lookupQuery, result)
}

// runFallbackChain performs title-lookup then direct-read, appending
// both outputs in order.
func (e *Executor) runFallbackChain(ctx context.Context, query string, result *ExecutionResult) {
	if ctx.Err() != nil {
		return
	}
	result.FallbackRan = true
	recordFallbackTriggered()

	matches, err := e.titles.TitleLookup(ctx, query, titleLookupLimit)
	if err != nil {
		e.logger.Warn("fallback title lookup failed",
			slog.String("query", query),
			slog.String("error", err.Error()),
		)
		result.ToolOutputs = append(result.ToolOutputs, ToolOutputRecord{
			Tool: provenance.ToolFindNotesByTitle, Err: err.Error(),
		})
		return
	}
	result.ToolOutputs = append(result.ToolOutputs, ToolOutputRecord{
		Tool: provenance.ToolFindNotesByTitle, Result: matches,
	})

	if len(matches) == 0 {
		return
	}
	if ctx.Err() != nil {
		return
	}

	top := matches[0]
	note, err := e.reader.ReadNote(ctx, top.Path)
	if err != nil {
		e.logger.Warn("fallback note read failed",
			slog.String("path", top.Path),
			slog.String("error", err.Error()),
		)
		result.ToolOutputs = append(result.ToolOutputs, ToolOutputRecord{
			Tool: provenance.ToolReadNote, Err: err.Error(),
		})
		return
	}
	result.ToolOutputs = append(result.ToolOutputs, ToolOutputRecord{
		Tool: provenance.ToolReadNote, Result: note,
	})

	result.Sources = append(result.Sources, provenance.SourceEntry{
		Title: note.NoteTitle,
		Path:  note.NotePath,
		Score: top.Score,
		Explanation: &provenance.Explanation{
			ToolEvidence: &provenance.ToolEvidence{
				Tool:       provenance.ToolReadNote,
				ChunkID:    note.ChunkID,
				Query:      query,
				MatchScore: top.Score,
			},
		},
	})
}

// runTitleLookup executes a planner-supplied findNotesByTitle call.
func (e *Executor) runTitleLookup(ctx context.Context, call ToolCall, userMessage string, result *ExecutionResult) {
	args, err := RepairTitleLookupArgs(call.Args, userMessage)
	if err != nil {
		result.ToolOutputs = append(result.ToolOutputs, ToolOutputRecord{
			Tool: provenance.ToolFindNotesByTitle, Err: err.Error(),
		})
		return
	}
	matches, err := e.titles.TitleLookup(ctx, args.Query, titleLookupLimit)
	if err != nil {
		result.ToolOutputs = append(result.ToolOutputs, ToolOutputRecord{
			Tool: provenance.ToolFindNotesByTitle, Err: err.Error(),
		})
		return
	}
	result.ToolOutputs = append(result.ToolOutputs, ToolOutputRecord{
		Tool: provenance.ToolFindNotesByTitle, Result: matches,
	})
}

// runDirectRead executes a planner-supplied readNote call.
func (e *Executor) runDirectRead(ctx context.Context, call ToolCall, result *ExecutionResult) {
	args, err := RepairReadNoteArgs(call.Args)
	if err != nil {
		result.ToolOutputs = append(result.ToolOutputs, ToolOutputRecord{
			Tool: provenance.ToolReadNote, Err: err.Error(),
		})
		return
	}
	note, err := e.reader.ReadNote(ctx, args.Path)
	if err != nil {
		result.ToolOutputs = append(result.ToolOutputs, ToolOutputRecord{
			Tool: provenance.ToolReadNote, Err: err.Error(),
		})
		return
	}
	result.ToolOutputs = append(result.ToolOutputs, ToolOutputRecord{
		Tool: provenance.ToolReadNote, Result: note,
	})
	result.Sources = append(result.Sources, provenance.SourceEntry{
		Title: note.NoteTitle,
		Path:  note.NotePath,
		Score: 1.0,
		Explanation: &provenance.Explanation{
			ToolEvidence: &provenance.ToolEvidence{
				Tool:       provenance.ToolReadNote,
				ChunkID:    note.ChunkID,
				MatchScore: 1.0,
			},
		},
	})
}

// sourcesFromSearch converts retrieval documents into source entries,
// attaching entity-graph evidence where the backend supplied it.
func sourcesFromSearch(search *retrieval.Result, salientTerms []string) []provenance.SourceEntry {
	evidenceByPath := make(map[string]*provenance.EntityGraphEvidence, len(search.EntityEvidence))
	for i := range search.EntityEvidence {
		hit := search.EntityEvidence[i]
		evidenceByPath[hit.Path] = &hit.Evidence
	}

	entries := make([]provenance.SourceEntry, 0, len(search.Documents))
	for _, doc := range search.Documents {
		score := doc.Score
		expl := &provenance.Explanation{
			SemanticScore:  &score,
			LexicalMatches: lexicalMatches(doc.Content, salientTerms),
			EntityGraph:    evidenceByPath[doc.Path],
		}
		final := doc.RerankScore
		expl.BaseScore = &score
		expl.FinalScore = &final

		entries = append(entries, provenance.SourceEntry{
			Title:       doc.Title,
			Path:        doc.Path,
			Score:       doc.RerankScore,
			Explanation: expl,
		})
	}
	return entries
}

// lexicalMatches returns salient terms literally present in content.
func lexicalMatches(content string, salientTerms []string) []string {
	lower := strings.ToLower(content)
	var matched []string
	for _, term := range salientTerms {
		if term != "" && strings.Contains(lower, strings.ToLower(term)) {
			matched = append(matched, term)
		}
	}
	return matched
}
