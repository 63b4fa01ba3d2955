// Copyright (C) 2025 VaultSage Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/vaultsage/vaultsage/services/lorechat/qa"
	"github.com/vaultsage/vaultsage/services/orchestrator/datatypes"
)

// Asker answers one question. Satisfied by *qa.Engine.
type Asker interface {
	Ask(ctx context.Context, question string) (*qa.Answer, error)
}

// QAHandler serves the single-shot question endpoint.
//
// Thread Safety: Safe for concurrent use.
type QAHandler struct {
	engine Asker
	tracer trace.Tracer
	logger *slog.Logger
}

// NewQAHandler creates the QA handler.
func NewQAHandler(engine Asker, logger *slog.Logger) *QAHandler {
	if engine == nil {
		panic("NewQAHandler: engine must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &QAHandler{
		engine: engine,
		tracer: otel.Tracer("vaultsage.orchestrator.handlers.qa"),
		logger: logger,
	}
}

// HandleQA processes POST /v1/qa.
func (h *QAHandler) HandleQA(c *gin.Context) {
	var req datatypes.QARequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, datatypes.ErrorResponse{Error: "question is required"})
		return
	}

	ctx, span := h.tracer.Start(c.Request.Context(), "handlers.HandleQA")
	defer span.End()

	answer, err := h.engine.Ask(ctx, req.Question)
	if err != nil {
		if errors.Is(err, qa.ErrEmptyQuestion) {
			c.JSON(http.StatusBadRequest, datatypes.ErrorResponse{Error: "question is required"})
			return
		}
		h.logger.Error("qa request failed",
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusBadGateway, datatypes.ErrorResponse{Error: "the question could not be answered"})
		return
	}

	c.JSON(http.StatusOK, datatypes.QAResponse{
		Question: answer.Question,
		Answer:   answer.Text,
		Sources:  answer.Sources,
		Decision: string(answer.Decision),
	})
}
