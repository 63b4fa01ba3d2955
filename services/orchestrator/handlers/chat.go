// Copyright (C) 2025 VaultSage Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package handlers exposes the chat and QA pipelines over HTTP.
package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/vaultsage/vaultsage/services/history"
	"github.com/vaultsage/vaultsage/services/lorechat/agent"
	"github.com/vaultsage/vaultsage/services/orchestrator/datatypes"
)

// heartbeatInterval is how often keepalive pings go out while the
// pipeline works between tokens.
const heartbeatInterval = 15 * time.Second

// TurnRunner runs one agent turn. Satisfied by *agent.ChainRunner.
type TurnRunner interface {
	RunTurn(ctx context.Context, req agent.TurnRequest) (*agent.TurnResult, error)
}

// ChatHandler serves the streamed agentic chat endpoint.
//
// Thread Safety: Safe for concurrent use; all fields are read-only
// after construction.
type ChatHandler struct {
	runner  TurnRunner
	history *history.Store
	tracer  trace.Tracer
	logger  *slog.Logger
}

// NewChatHandler creates the chat handler. history may be nil when
// persistence is disabled.
func NewChatHandler(runner TurnRunner, store *history.Store, logger *slog.Logger) *ChatHandler {
	if runner == nil {
		panic("NewChatHandler: runner must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ChatHandler{
		runner:  runner,
		history: store,
		tracer:  otel.Tracer("vaultsage.orchestrator.handlers.chat"),
		logger:  logger,
	}
}

// HandleChatStream processes POST /v1/chat/stream.
//
// Description:
//
//	Runs one agent turn and streams it as SSE: status, tokens in
//	arrival order, sources, then a done event carrying the final text
//	and gate decision. Heartbeats go out while the pipeline works. A
//	client disconnect cancels the turn.
func (h *ChatHandler) HandleChatStream(c *gin.Context) {
	var req datatypes.ChatStreamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, datatypes.ErrorResponse{Error: "message is required"})
		return
	}
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}

	ctx, span := h.tracer.Start(c.Request.Context(), "handlers.HandleChatStream",
		trace.WithAttributes(attribute.String("session.id", req.SessionID)),
	)
	defer span.End()

	sse, err := NewSSEWriter(c.Writer)
	if err != nil {
		c.JSON(http.StatusInternalServerError, datatypes.ErrorResponse{Error: "streaming unsupported"})
		return
	}
	c.Status(http.StatusOK)

	if err := sse.WriteStatus("Searching the vault..."); err != nil {
		return
	}

	heartbeatDone := make(chan struct{})
	defer close(heartbeatDone)
	go h.runHeartbeat(ctx, sse, heartbeatDone)

	result, err := h.runner.RunTurn(ctx, agent.TurnRequest{
		SessionID: req.SessionID,
		Message:   req.Message,
		OnToken: func(token string) {
			_ = sse.WriteToken(token)
		},
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			h.logger.Debug("chat stream canceled by client",
				slog.String("session_id", req.SessionID),
			)
			return
		}
		h.logger.Error("chat turn failed",
			slog.String("session_id", req.SessionID),
			slog.String("error", err.Error()),
		)
		_ = sse.WriteError("The request could not be processed.")
		return
	}

	if len(result.Sources) > 0 {
		if err := sse.WriteSources(result.Sources); err != nil {
			return
		}
	}

	h.persistTurn(ctx, req, result)

	_ = sse.WriteDone(datatypes.StreamEvent{
		SessionID: req.SessionID,
		Content:   result.FinalText,
		Decision:  string(result.Decision),
		Truncated: result.WasTruncated,
	})
}

// runHeartbeat pings until the turn finishes or the client goes away.
func (h *ChatHandler) runHeartbeat(ctx context.Context, sse *SSEWriter, done <-chan struct{}) {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := sse.WriteHeartbeat(); err != nil {
				return
			}
		}
	}
}

// persistTurn records the finalized turn; failure is logged, never
// surfaced to the client.
func (h *ChatHandler) persistTurn(ctx context.Context, req datatypes.ChatStreamRequest, result *agent.TurnResult) {
	if h.history == nil {
		return
	}
	_, err := h.history.Append(ctx, history.TurnRecord{
		SessionID: req.SessionID,
		Question:  req.Message,
		Answer:    result.FinalText,
		Sources:   result.Sources,
		Decision:  string(result.Decision),
	})
	if err != nil {
		h.logger.Warn("failed to persist turn",
			slog.String("session_id", req.SessionID),
			slog.String("error", err.Error()),
		)
	}
}

// HandleSessionHistory processes GET /v1/sessions/:id/history.
func (h *ChatHandler) HandleSessionHistory(c *gin.Context) {
	if h.history == nil {
		c.JSON(http.StatusNotFound, datatypes.ErrorResponse{Error: "history disabled"})
		return
	}
	records, err := h.history.Recent(c.Request.Context(), c.Param("id"), 50)
	if err != nil {
		c.JSON(http.StatusInternalServerError, datatypes.ErrorResponse{Error: "history unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"turns": records})
}
