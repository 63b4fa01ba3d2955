// Copyright (C) 2025 VaultSage Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"fmt"
	"log/slog"

	weaviate "github.com/weaviate/weaviate-go-client/v5/weaviate"

	"github.com/vaultsage/vaultsage/pkg/config"
	"github.com/vaultsage/vaultsage/pkg/logging"
	"github.com/vaultsage/vaultsage/services/llm"
	"github.com/vaultsage/vaultsage/services/lorechat/agent"
	"github.com/vaultsage/vaultsage/services/lorechat/agent/grounding"
	"github.com/vaultsage/vaultsage/services/lorechat/agent/routing"
	"github.com/vaultsage/vaultsage/services/lorechat/agent/tools"
	"github.com/vaultsage/vaultsage/services/lorechat/provenance"
	"github.com/vaultsage/vaultsage/services/lorechat/qa"
	"github.com/vaultsage/vaultsage/services/retrieval"
	"github.com/vaultsage/vaultsage/services/vault"
)

// pipeline bundles everything a command needs, with one Close.
type pipeline struct {
	runner *agent.ChainRunner
	qa     *qa.Engine
	vault  *vault.Index
	logger *logging.Logger
}

// Close releases the pipeline's owned resources.
func (p *pipeline) Close() {
	if p.vault != nil {
		_ = p.vault.Close()
	}
	if p.logger != nil {
		_ = p.logger.Close()
	}
}

// buildPipeline wires the full answer pipeline from config.
func buildPipeline(cfg *config.Config, service string) (*pipeline, error) {
	logger, err := logging.New(logging.Config{
		Level:   cfg.Logging.Level,
		JSON:    cfg.Logging.JSON,
		LogDir:  cfg.Logging.Dir,
		Service: service,
	})
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger.Logger)

	index, err := vault.Open(cfg.Vault.Root,
		vault.WithExclusionPatterns(cfg.Vault.ExclusionPatterns),
		vault.WithIndexLogger(logger.Logger),
	)
	if err != nil {
		logger.Close()
		return nil, fmt.Errorf("open vault: %w", err)
	}

	weaviateClient, err := weaviate.NewClient(weaviate.Config{
		Host:   cfg.Weaviate.Host,
		Scheme: cfg.Weaviate.Scheme,
	})
	if err != nil {
		index.Close()
		logger.Close()
		return nil, fmt.Errorf("weaviate client: %w", err)
	}

	searcher, err := retrieval.NewWeaviateSearcher(weaviateClient,
		retrieval.WithSearcherExclusions(cfg.Vault.ExclusionPatterns),
		retrieval.WithSearcherLogger(logger.Logger),
	)
	if err != nil {
		index.Close()
		logger.Close()
		return nil, fmt.Errorf("searcher: %w", err)
	}

	llmClient, err := llm.NewOpenAIClient(cfg.LLM.BaseURL, cfg.LLM.APIKey, cfg.LLM.Model)
	if err != nil {
		index.Close()
		logger.Close()
		return nil, fmt.Errorf("llm client: %w", err)
	}
	var generator llm.LLMClient = llmClient
	if cfg.LLM.RequestsPerMinute > 0 {
		generator = llm.NewRateLimitedClient(llmClient, float64(cfg.LLM.RequestsPerMinute)/60.0, 2)
	}

	executorOpts := []tools.ExecutorOption{tools.WithExecutorLogger(logger.Logger)}
	if cfg.Grounding.WeakResultThreshold > 0 {
		executorOpts = append(executorOpts, tools.WithWeakResultThreshold(cfg.Grounding.WeakResultThreshold))
	}
	executor := tools.NewExecutor(searcher, index, index, executorOpts...)

	gate := grounding.NewGateController(
		grounding.WithStrictEvidenceGate(cfg.Grounding.StrictEvidenceGate),
		grounding.WithInlineCitations(cfg.Grounding.InlineCitations),
		grounding.WithGateLogger(logger.Logger),
	)

	runner := agent.NewChainRunner(
		agent.NewLLMPlanner(generator, llm.GenerationParams{}, logger.Logger),
		routing.NewRouter(routing.WithLogger(logger.Logger)),
		executor,
		gate,
		generator,
		provenance.NewAssembler(),
		agent.WithRunnerLogger(logger.Logger),
	)

	qaEngine := qa.NewEngine(searcher, gate, generator, qa.WithEngineLogger(logger.Logger))

	return &pipeline{
		runner: runner,
		qa:     qaEngine,
		vault:  index,
		logger: logger,
	}, nil
}
