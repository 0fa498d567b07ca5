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
	"log/slog"

	"github.com/poiesic/wrench/ai"
)

// Provider implements ai.AIProvider. The embedder and the completer are
// separate clients and may point at different hosts, so retrieval can run
// on a local Ollama while answers come from a hosted model.
type Provider struct {
	embedder  *Embedder
	completer *Completer
	logger    *slog.Logger
}

// ProviderOption configures a Provider.
type ProviderOption func(*Provider)

// WithLogger sets the parent logger for the provider and its clients.
func WithLogger(logger *slog.Logger) ProviderOption {
	return func(p *Provider) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewProvider validates config and builds both clients.
func NewProvider(config *ai.Config, opts ...ProviderOption) (ai.AIProvider, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	p := &Provider{logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}

	var err error
	if p.embedder, err = newEmbedder(config, p.logger); err != nil {
		return nil, err
	}
	if p.completer, err = newCompleter(config, p.logger); err != nil {
		return nil, err
	}

	p.logger = p.logger.With("component", "openai-provider")
	p.logger.Debug("provider ready",
		"embeddingHost", config.EmbeddingHost,
		"completionHost", config.CompletionHost)
	return p, nil
}

func (p *Provider) Embedder() ai.Embedder {
	return p.embedder
}

func (p *Provider) Completer() ai.Completer {
	return p.completer
}

// Close is a no-op; the langchaingo clients hold no resources beyond the
// shared http.DefaultClient.
func (p *Provider) Close() error {
	p.logger.Debug("closing provider")
	return nil
}
