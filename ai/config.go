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


package ai

import (
	"fmt"
	"strings"

	"github.com/poiesic/lumina/core"
)

// API types understood by the OpenAI-compatible client.
const (
	APITypeOpenAI = "openai"
	APITypeAzure  = "azure"
)

// Config holds configuration for AI service providers.
type Config struct {
	// EmbeddingHost is the base URL for the embedding service API.
	// Example: "http://localhost:11434/v1" for local OpenAI-compatible server
	EmbeddingHost string

	// ChatHost is the base URL for the chat completion service API.
	ChatHost string

	// EmbeddingModel is the model identifier to use for text embeddings.
	// For Azure this is the deployment name.
	// Example: "embeddinggemma", "text-embedding-3-small"
	EmbeddingModel string

	// ChatModel is the model identifier used to generate replies.
	// Example: "qwen2.5:3b", "gpt-4o-mini"
	ChatModel string

	// APIKey authenticates against hosted services. Local servers accept any
	// value, so an empty key is sent as "none".
	APIKey string

	// APIType selects the wire dialect: "openai" or "azure".
	APIType string

	// APIVersion is required when APIType is "azure".
	APIVersion string

	// Dimension is the expected dense embedding length. Zero disables the
	// check and the dimension is learned from the first embedding.
	Dimension int

	// Temperature controls reply sampling. Default: 0.7
	Temperature float64

	// MaxTokens caps reply length. Default: 500
	MaxTokens int
}

// ConfigOption is a functional option for configuring a Config.
type ConfigOption func(*Config)

// WithEmbeddingHost sets the embedding service host URL.
func WithEmbeddingHost(host string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingHost = host
	}
}

// WithChatHost sets the chat service host URL.
func WithChatHost(host string) ConfigOption {
	return func(c *Config) {
		c.ChatHost = host
	}
}

// WithHost sets both embedding and chat hosts to the same URL.
func WithHost(host string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingHost = host
		c.ChatHost = host
	}
}

// WithEmbeddingModel sets the embedding model identifier.
func WithEmbeddingModel(model string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingModel = model
	}
}

// WithChatModel sets the chat model identifier.
func WithChatModel(model string) ConfigOption {
	return func(c *Config) {
		c.ChatModel = model
	}
}

// WithAPIKey sets the API key.
func WithAPIKey(key string) ConfigOption {
	return func(c *Config) {
		c.APIKey = key
	}
}

// WithAzure switches the client to the Azure dialect.
func WithAzure(apiVersion string) ConfigOption {
	return func(c *Config) {
		c.APIType = APITypeAzure
		c.APIVersion = apiVersion
	}
}

// WithDimension sets the expected embedding dimension.
func WithDimension(dim int) ConfigOption {
	return func(c *Config) {
		c.Dimension = dim
	}
}

// WithTemperature sets the sampling temperature for replies.
func WithTemperature(t float64) ConfigOption {
	return func(c *Config) {
		c.Temperature = t
	}
}

// WithMaxTokens sets the reply token cap.
func WithMaxTokens(n int) ConfigOption {
	return func(c *Config) {
		c.MaxTokens = n
	}
}

// DefaultConfig returns a Config with sensible defaults for local OpenAI-compatible services.
// By default, both embedding and chat use the same host.
func DefaultConfig() *Config {
	defaultHost := "http://localhost:11434/v1"
	return &Config{
		EmbeddingHost:  defaultHost,
		ChatHost:       defaultHost,
		EmbeddingModel: "embeddinggemma",
		ChatModel:      "qwen2.5:3b",
		APIType:        APITypeOpenAI,
		Temperature:    0.7,
		MaxTokens:      500,
	}
}

// NewConfig creates a Config with the default values and applies the provided options.
//
// Example:
//
//	cfg := NewConfig(
//	    WithHost("http://localhost:11434/v1"),
//	    WithEmbeddingModel("text-embedding-3-small"),
//	)
func NewConfig(opts ...ConfigOption) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Normalize ensures the configuration is in a canonical form.
// It adds the /v1 suffix to hosts if missing, which is required
// by most OpenAI-compatible APIs (Ollama, LocalAI, vLLM, etc).
// Azure endpoints are left untouched.
func (c *Config) Normalize() {
	if c.APIType == "" {
		c.APIType = APITypeOpenAI
	}
	if c.APIType == APITypeAzure {
		c.EmbeddingHost = strings.TrimSuffix(c.EmbeddingHost, "/")
		c.ChatHost = strings.TrimSuffix(c.ChatHost, "/")
		return
	}
	c.EmbeddingHost = withV1(c.EmbeddingHost)
	c.ChatHost = withV1(c.ChatHost)
}

func withV1(host string) string {
	if host == "" || strings.HasSuffix(host, "/v1") {
		return host
	}
	return strings.TrimSuffix(host, "/") + "/v1"
}

// Validate checks that the configuration is valid and complete.
// It normalizes the configuration before validation. Failures wrap
// core.ErrConfiguration.
func (c *Config) Validate() error {
	c.Normalize()

	switch {
	case c.EmbeddingHost == "":
		return configError("EmbeddingHost is required")
	case c.ChatHost == "":
		return configError("ChatHost is required")
	case c.EmbeddingModel == "":
		return configError("EmbeddingModel is required")
	case c.ChatModel == "":
		return configError("ChatModel is required")
	case c.APIType != APITypeOpenAI && c.APIType != APITypeAzure:
		return configError(fmt.Sprintf("unknown APIType %q", c.APIType))
	case c.APIType == APITypeAzure && c.APIVersion == "":
		return configError("APIVersion is required for azure")
	case c.APIType == APITypeAzure && c.APIKey == "":
		return configError("APIKey is required for azure")
	case c.Dimension < 0:
		return configError("Dimension must not be negative")
	case c.Temperature < 0 || c.Temperature > 2:
		return configError("Temperature must be between 0 and 2")
	case c.MaxTokens < 1:
		return configError("MaxTokens must be positive")
	}
	return nil
}

func configError(msg string) error {
	return fmt.Errorf("%w: ai config: %s", core.ErrConfiguration, msg)
}
