// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package openai

import (
	"context"
	"errors"
	"log/slog"

	"github.com/poiesic/wrench/ai"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

var (
	// ErrEmptyEmbedding is returned when the provider answers with fewer
	// vectors than inputs.
	ErrEmptyEmbedding = errors.New("embedding response missing vectors")

	// ErrNoChoices is returned when the completion response has no choices.
	ErrNoChoices = errors.New("completion returned no choices")
)

// Completer implements ai.Completer using OpenAI-compatible chat completion APIs.
type Completer struct {
	client      *openai.LLM
	maxTokens   int
	temperature float64
	logger      *slog.Logger
}

func newCompleter(config *ai.Config, logger *slog.Logger) (*Completer, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	client, err := openai.New(
		openai.WithBaseURL(config.CompletionHost),
		openai.WithToken(tokenOrNone(config.CompletionToken)),
		openai.WithModel(config.CompletionModel),
	)
	if err != nil {
		return nil, err
	}

	return &Completer{
		client:      client,
		maxTokens:   config.MaxTokens,
		temperature: config.Temperature,
		logger:      logger.With("component", "openai-completer", "model", config.CompletionModel),
	}, nil
}

// NewCompleter creates a new completer using the provided configuration.
//
// Returns ai.Completer interface to enforce abstraction.
func NewCompleter(config *ai.Config) (ai.Completer, error) {
	return newCompleter(config, slog.Default())
}

// Complete sends the prompt as one user message and returns the full completion.
func (c *Completer) Complete(ctx context.Context, prompt string) (string, error) {
	c.logger.Debug("requesting completion", "promptLength", len(prompt))

	resp, err := c.client.GenerateContent(ctx, userMessage(prompt), c.callOptions()...)
	if err != nil {
		c.logger.Error("completion failed", "err", err)
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", ErrNoChoices
	}
	return resp.Choices[0].Content, nil
}

// CompleteStream sends the prompt as one user message and forwards every
// streamed fragment to onToken.
func (c *Completer) CompleteStream(ctx context.Context, prompt string, onToken ai.TokenFunc) error {
	c.logger.Debug("requesting streamed completion", "promptLength", len(prompt))

	opts := append(c.callOptions(), llms.WithStreamingFunc(func(ctx context.Context, chunk []byte) error {
		if len(chunk) == 0 {
			return nil
		}
		return onToken(ctx, string(chunk))
	}))

	if _, err := c.client.GenerateContent(ctx, userMessage(prompt), opts...); err != nil {
		c.logger.Error("streamed completion failed", "err", err)
		return err
	}
	return nil
}

func (c *Completer) callOptions() []llms.CallOption {
	return []llms.CallOption{
		llms.WithMaxTokens(c.maxTokens),
		llms.WithTemperature(c.temperature),
	}
}

func userMessage(prompt string) []llms.MessageContent {
	return []llms.MessageContent{
		{
			Role: llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{
				llms.TextPart(prompt),
			},
		},
	}
}

// tokenOrNone returns "none" for local OpenAI-compatible services that don't require authentication.
func tokenOrNone(token string) string {
	if token == "" {
		return "none"
	}
	return token
}
