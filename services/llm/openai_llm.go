// Copyright (C) 2025 VaultSage Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIClient talks to any OpenAI-compatible completion endpoint
// (OpenAI itself, or a local server exposing the same API).
//
// Thread Safety: Safe for concurrent use.
type OpenAIClient struct {
	client *openai.Client
	model  string
	logger *slog.Logger
}

// OpenAIOption configures an OpenAIClient.
type OpenAIOption func(*OpenAIClient)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) OpenAIOption {
	return func(c *OpenAIClient) {
		c.logger = logger
	}
}

// NewOpenAIClient creates a client for an OpenAI-compatible endpoint.
//
// Inputs:
//
//	baseURL - Endpoint base URL; empty uses the OpenAI default.
//	apiKey - Bearer token; may be empty for local servers.
//	model - Model identifier sent with every request.
//
// Outputs:
//
//	*OpenAIClient - The configured client.
//	error - Non-nil if model is empty.
func NewOpenAIClient(baseURL, apiKey, model string, opts ...OpenAIOption) (*OpenAIClient, error) {
	if model == "" {
		return nil, errors.New("model must not be empty")
	}

	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}

	c := &OpenAIClient{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Generate implements LLMClient.
func (c *OpenAIClient) Generate(ctx context.Context, prompt string, params GenerationParams) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, c.buildRequest(prompt, params, false))
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// GenerateStream implements LLMClient.
//
// Description:
//
//	Opens a completion stream and forwards each delta to the callback in
//	arrival order. A provider failure mid-stream is delivered as a
//	StreamEventError followed by StreamEventDone so the caller keeps the
//	tokens it already received.
//
// Thread Safety: Safe for concurrent use.
func (c *OpenAIClient) GenerateStream(ctx context.Context, prompt string, params GenerationParams, callback StreamCallback) error {
	stream, err := c.client.CreateChatCompletionStream(ctx, c.buildRequest(prompt, params, true))
	if err != nil {
		return fmt.Errorf("opening completion stream: %w", err)
	}
	defer stream.Close()

	for {
		chunk, recvErr := stream.Recv()
		if errors.Is(recvErr, io.EOF) {
			return callback(StreamEvent{Type: StreamEventDone})
		}
		if recvErr != nil {
			c.logger.Warn("completion stream failed mid-stream",
				slog.String("model", c.model),
				slog.String("error", recvErr.Error()),
			)
			if cbErr := callback(StreamEvent{Type: StreamEventError, Err: recvErr}); cbErr != nil {
				return cbErr
			}
			return callback(StreamEvent{Type: StreamEventDone})
		}

		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		if cbErr := callback(StreamEvent{Type: StreamEventToken, Content: delta}); cbErr != nil {
			return cbErr
		}
	}
}

// buildRequest assembles the request for one call.
func (c *OpenAIClient) buildRequest(prompt string, params GenerationParams, stream bool) openai.ChatCompletionRequest {
	req := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Stream: stream,
		Stop:   params.Stop,
	}
	if params.Temperature != nil {
		req.Temperature = *params.Temperature
	}
	if params.TopP != nil {
		req.TopP = *params.TopP
	}
	if params.MaxTokens != nil {
		req.MaxTokens = *params.MaxTokens
	}
	return req
}
