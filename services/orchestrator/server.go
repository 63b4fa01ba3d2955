// Copyright (C) 2025 VaultSage Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package orchestrator assembles the HTTP surface: the streamed chat
// endpoint, single-shot QA, session history, health, and metrics.
package orchestrator

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vaultsage/vaultsage/services/orchestrator/handlers"
)

// Config holds server assembly options.
type Config struct {
	// ListenAddr is the bind address, e.g. ":8080".
	ListenAddr string

	// ReleaseMode silences gin's debug output.
	ReleaseMode bool

	// Logger is the request-path logger.
	Logger *slog.Logger
}

// NewServer builds the HTTP server around the wired handlers.
func NewServer(cfg Config, chat *handlers.ChatHandler, qa *handlers.QAHandler) *http.Server {
	if cfg.ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logger))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/v1")
	{
		v1.POST("/chat/stream", chat.HandleChatStream)
		v1.POST("/qa", qa.HandleQA)
		v1.GET("/sessions/:id/history", chat.HandleSessionHistory)
	}

	return &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// requestLogger logs one line per request through slog.
func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("http request",
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("duration", time.Since(start)),
		)
	}
}
