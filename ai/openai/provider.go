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

	"github.com/poiesic/lumina/ai"
	"github.com/poiesic/lumina/ai/sparse"
)

// Provider implements ai.AIProvider using OpenAI-compatible services.
// Sparse encoding always runs locally.
type Provider struct {
	config   *ai.Config
	embedder ai.Embedder
	sparse   ai.SparseEncoder
	chat     *ChatModel
	logger   *slog.Logger
}

// NewProvider creates a new AI provider with OpenAI-compatible services.
// The config is validated and normalized before use. When cacheSize is
// positive, single-text embeddings are memoized.
//
// Returns ai.AIProvider interface (not *Provider) to enforce abstraction
// and prevent coupling to OpenAI-specific implementation details.
func NewProvider(config *ai.Config, cacheSize int) (ai.AIProvider, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	// Internal constructors return concrete types
	embedder, err := newEmbedder(config)
	if err != nil {
		return nil, err
	}
	var dense ai.Embedder = embedder
	if cacheSize > 0 {
		if dense, err = ai.NewCachedEmbedder(embedder, cacheSize); err != nil {
			return nil, err
		}
	}

	chat, err := newChatModel(config)
	if err != nil {
		return nil, err
	}

	encoder, err := sparse.NewEncoder()
	if err != nil {
		return nil, err
	}

	return &Provider{
		config:   config,
		embedder: dense,
		sparse:   encoder,
		chat:     chat,
		logger:   slog.Default().With("component", "openai-provider"),
	}, nil
}

// Embedder returns the dense embedding service.
func (p *Provider) Embedder() ai.Embedder {
	return p.embedder
}

// SparseEncoder returns the local lexical encoder.
func (p *Provider) SparseEncoder() ai.SparseEncoder {
	return p.sparse
}

// ChatModel returns the reply generator.
func (p *Provider) ChatModel() ai.ChatModel {
	return p.chat
}

// Close releases resources held by the provider.
// Currently a no-op as the underlying clients don't require explicit cleanup.
func (p *Provider) Close() error {
	p.logger.Debug("closing OpenAI provider")
	return nil
}
