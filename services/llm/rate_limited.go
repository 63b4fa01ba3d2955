// Copyright (C) 2025 VaultSage Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package llm

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// RateLimitedClient wraps an LLMClient with a token-bucket limiter so
// concurrent turns cannot saturate the backend.
//
// Thread Safety: Safe for concurrent use.
type RateLimitedClient struct {
	inner   LLMClient
	limiter *rate.Limiter
}

// NewRateLimitedClient wraps inner with requestsPerSecond/burst limits.
func NewRateLimitedClient(inner LLMClient, requestsPerSecond float64, burst int) *RateLimitedClient {
	return &RateLimitedClient{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), burst),
	}
}

// Generate implements LLMClient.
func (c *RateLimitedClient) Generate(ctx context.Context, prompt string, params GenerationParams) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("waiting for rate limiter: %w", err)
	}
	return c.inner.Generate(ctx, prompt, params)
}

// GenerateStream implements LLMClient.
func (c *RateLimitedClient) GenerateStream(ctx context.Context, prompt string, params GenerationParams, callback StreamCallback) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("waiting for rate limiter: %w", err)
	}
	return c.inner.GenerateStream(ctx, prompt, params, callback)
}
