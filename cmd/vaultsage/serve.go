// Copyright (C) 2025 VaultSage Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/vaultsage/vaultsage/services/history"
	"github.com/vaultsage/vaultsage/services/orchestrator"
	"github.com/vaultsage/vaultsage/services/orchestrator/handlers"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the VaultSage HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func runServe(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pipe, err := buildPipeline(cfg, "server")
	if err != nil {
		return err
	}
	defer pipe.Close()

	var store *history.Store
	if cfg.History.Enabled {
		store, err = history.Open(history.Config{
			Path:       cfg.History.Path,
			SyncWrites: true,
			Logger:     pipe.logger.Logger,
		})
		if err != nil {
			return err
		}
		defer store.Close()
	}

	server := orchestrator.NewServer(
		orchestrator.Config{
			ListenAddr:  cfg.Server.ListenAddr,
			ReleaseMode: cfg.Server.ReleaseMode,
			Logger:      pipe.logger.Logger,
		},
		handlers.NewChatHandler(pipe.runner, store, pipe.logger.Logger),
		handlers.NewQAHandler(pipe.qa, pipe.logger.Logger),
	)

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		slog.Info("server listening", slog.String("addr", cfg.Server.ListenAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-ctx.Done()
		slog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return group.Wait()
}
