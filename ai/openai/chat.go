package openai

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/poiesic/lumina/ai"
	"github.com/poiesic/lumina/core"
)

// ChatModel implements ai.ChatModel using OpenAI-compatible chat APIs.
type ChatModel struct {
	client      llms.Model
	temperature float64
	maxTokens   int
	logger      *slog.Logger
}

var _ ai.ChatModel = (*ChatModel)(nil)

func newChatModel(config *ai.Config) (*ChatModel, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	client, err := newClient(config, config.ChatHost, openai.WithModel(config.ChatModel))
	if err != nil {
		return nil, err
	}

	return &ChatModel{
		client:      client,
		temperature: config.Temperature,
		maxTokens:   config.MaxTokens,
		logger:      slog.Default().With("component", "openai-chat"),
	}, nil
}

// NewChatModel creates a reply generator using the provided configuration.
//
// Returns ai.ChatModel interface to enforce abstraction.
func NewChatModel(config *ai.Config) (ai.ChatModel, error) {
	return newChatModel(config)
}

// Generate produces a reply, streaming increments to onChunk when set.
func (m *ChatModel) Generate(ctx context.Context, messages []ai.ChatMessage, onChunk ai.ChunkFunc) (string, error) {
	content := make([]llms.MessageContent, 0, len(messages))
	for _, msg := range messages {
		content = append(content, llms.MessageContent{
			Role: messageType(msg.Role),
			Parts: []llms.ContentPart{
				llms.TextPart(msg.Content),
			},
		})
	}

	opts := []llms.CallOption{
		llms.WithTemperature(m.temperature),
		llms.WithMaxTokens(m.maxTokens),
	}

	var streamed strings.Builder
	if onChunk != nil {
		opts = append(opts, llms.WithStreamingFunc(func(ctx context.Context, chunk []byte) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			streamed.Write(chunk)
			return onChunk(ctx, string(chunk))
		}))
	}

	m.logger.Debug("generating reply", "messages", len(messages), "stream", onChunk != nil)
	response, err := m.client.GenerateContent(ctx, content, opts...)
	if err != nil {
		m.logger.Error("failed to generate reply", "streamed", streamed.Len(), "err", err)
		return streamed.String(), fmt.Errorf("%w: %w", core.ErrGenerationInterrupted, err)
	}

	if len(response.Choices) < 1 {
		m.logger.Debug("no choices returned from model")
		return streamed.String(), nil
	}
	return response.Choices[0].Content, nil
}

func messageType(role ai.ChatRole) llms.ChatMessageType {
	switch role {
	case ai.ChatRoleSystem:
		return llms.ChatMessageTypeSystem
	case ai.ChatRoleAssistant:
		return llms.ChatMessageTypeAI
	default:
		return llms.ChatMessageTypeHuman
	}
}
