// Copyright (C) 2025 VaultSage Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vaultsage/vaultsage/pkg/ux"
	"github.com/vaultsage/vaultsage/services/lorechat/agent"
	"github.com/vaultsage/vaultsage/services/lorechat/agent/grounding"
)

var askStream bool

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask a one-shot question against the vault",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAsk(cmd.Context(), strings.Join(args, " "))
	},
}

func init() {
	askCmd.Flags().BoolVar(&askStream, "stream", true, "stream tokens as they arrive")
}

func runAsk(ctx context.Context, question string) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pipe, err := buildPipeline(cfg, "cli")
	if err != nil {
		return err
	}
	defer pipe.Close()

	styled := ux.IsTerminal()
	renderer := ux.NewAnswerRenderer(os.Stdout, styled)

	req := agent.TurnRequest{Message: question}
	streamed := askStream && styled
	if streamed {
		req.OnToken = func(token string) {
			fmt.Fprint(os.Stdout, token)
		}
	}

	result, err := pipe.runner.RunTurn(ctx, req)
	if err != nil {
		renderer.RenderError(err.Error())
		return err
	}

	if streamed && result.Decision == grounding.GatePass {
		// Tokens already went to stdout; just close the line.
		fmt.Fprintln(os.Stdout)
	} else {
		renderer.RenderAnswer(result.FinalText, result.Decision != grounding.GatePass)
	}
	renderer.RenderSources(result.Sources)
	return nil
}
