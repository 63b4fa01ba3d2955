// Copyright (C) 2025 VaultSage Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package agent

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/vaultsage/vaultsage/services/llm"
	"github.com/vaultsage/vaultsage/services/lorechat/agent/grounding"
	"github.com/vaultsage/vaultsage/services/lorechat/agent/routing"
	"github.com/vaultsage/vaultsage/services/lorechat/agent/tools"
	"github.com/vaultsage/vaultsage/services/lorechat/provenance"
)

var tracer = otel.Tracer("vaultsage.agent")

// ChainRunner wires planner, router, executor, gate controller, and
// generation into one sequential per-turn pipeline.
//
// Thread Safety: Safe for concurrent use across turns; a turn itself
// is strictly sequential.
type ChainRunner struct {
	planner   Planner
	router    *routing.Router
	executor  *tools.Executor
	gate      *grounding.GateController
	generator llm.LLMClient
	assembler *provenance.Assembler
	genParams llm.GenerationParams
	logger    *slog.Logger
}

// RunnerOption configures a ChainRunner.
type RunnerOption func(*ChainRunner)

// WithGenerationParams sets the synthesis generation parameters.
func WithGenerationParams(params llm.GenerationParams) RunnerOption {
	return func(r *ChainRunner) {
		r.genParams = params
	}
}

// WithRunnerLogger sets the logger.
func WithRunnerLogger(logger *slog.Logger) RunnerOption {
	return func(r *ChainRunner) {
		r.logger = logger
	}
}

// NewChainRunner creates the per-turn pipeline.
func NewChainRunner(
	planner Planner,
	router *routing.Router,
	executor *tools.Executor,
	gate *grounding.GateController,
	generator llm.LLMClient,
	assembler *provenance.Assembler,
	opts ...RunnerOption,
) *ChainRunner {
	r := &ChainRunner{
		planner:   planner,
		router:    router,
		executor:  executor,
		gate:      gate,
		generator: generator,
		assembler: assembler,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RunTurn processes one user turn end to end.
//
// Description:
//
//	plan -> route -> execute -> classify -> pre-gate -> generate ->
//	post-gate -> assemble -> finalize. Cancellation stops further work
//	and surfaces as ctx.Err(), never as a silent partial or abstain
//	answer. Every non-cancelled path produces exactly one TurnResult.
//	Planner failure degrades to an empty plan; the router still forces
//	retrieval, so the turn proceeds.
//
// Outputs:
//
//	*TurnResult - The single finalize payload. Nil only with an error.
//	error - ErrEmptyMessage or a context error.
func (r *ChainRunner) RunTurn(ctx context.Context, req TurnRequest) (*TurnResult, error) {
	if strings.TrimSpace(req.Message) == "" {
		return nil, ErrEmptyMessage
	}

	ctx, span := tracer.Start(ctx, "agent.RunTurn",
		trace.WithAttributes(attribute.String("session.id", req.SessionID)),
	)
	defer span.End()
	start := time.Now()

	// Planning
	plan := r.plan(ctx, req.Message)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Routed
	decision := r.router.Route(req.Message, plan.ToolCalls, plan.SalientTerms)
	span.SetAttributes(
		attribute.Bool("route.forced", decision.Forced),
		attribute.Bool("route.read_intent", decision.ReadIntent),
	)

	// Retrieving
	exec, err := r.executor.Execute(ctx, decision.Calls, req.Message)
	if err != nil {
		return nil, err
	}

	sources := r.assembler.Assemble(exec.Sources)
	outcome := grounding.RetrievalOutcome{
		EntityQueryMode: exec.EntityQueryMode,
		Sources:         sources,
		FallbackRan:     exec.FallbackRan,
	}

	// Pre-answer gate: abstain skips generation entirely.
	pre := r.gate.PreAnswer(outcome)
	if pre.Decision != grounding.GatePass {
		return r.finalize(span, start, &TurnResult{
			FinalText:   pre.FinalText,
			Sources:     pre.Sources,
			Decision:    pre.Decision,
			FallbackRan: exec.FallbackRan,
		}), nil
	}

	// Generating
	capture, err := r.generate(ctx, req, exec, sources)
	if err != nil {
		return nil, err
	}

	// Post-answer gate
	post := r.gate.PostAnswer(outcome, capture.Content, sources)
	return r.finalize(span, start, &TurnResult{
		FinalText:    post.FinalText,
		Sources:      post.Sources,
		Decision:     post.Decision,
		WasTruncated: capture.WasTruncated,
		FallbackRan:  exec.FallbackRan,
	}), nil
}

// plan asks the planner, tolerating failure with an empty plan.
func (r *ChainRunner) plan(ctx context.Context, message string) *Plan {
	plan, err := r.planner.Plan(ctx, message)
	if err != nil || plan == nil {
		if err != nil && ctx.Err() == nil {
			r.logger.Warn("planner failed, proceeding with empty plan",
				slog.String("error", err.Error()),
			)
		}
		return &Plan{}
	}
	return plan
}

// generate streams synthesis through the interceptor and closes it
// exactly once.
func (r *ChainRunner) generate(ctx context.Context, req TurnRequest, exec *tools.ExecutionResult, sources []provenance.SourceEntry) (StreamCapture, error) {
	prompt := buildSynthesisPrompt(req.Message, exec, sources)
	interceptor := NewStreamInterceptor(req.OnToken)

	err := r.generator.GenerateStream(ctx, prompt, r.genParams, interceptor.Handle)
	capture := interceptor.Close()

	if err != nil {
		if ctx.Err() != nil {
			return capture, ctx.Err()
		}
		// The stream never opened. Keep whatever was buffered and let
		// the post gate judge the (likely empty) text.
		r.logger.Error("generation stream failed",
			slog.String("error", err.Error()),
		)
		capture.WasTruncated = true
	}
	return capture, nil
}

// finalize stamps metrics and tracing on the turn's single result.
func (r *ChainRunner) finalize(span trace.Span, start time.Time, result *TurnResult) *TurnResult {
	span.SetAttributes(
		attribute.String("gate.decision", string(result.Decision)),
		attribute.Int("sources.count", len(result.Sources)),
	)
	observeTurn(string(result.Decision), time.Since(start))
	return result
}
