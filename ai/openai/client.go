package openai

import (
	"fmt"

	"github.com/tmc/langchaingo/llms/openai"

	"github.com/poiesic/lumina/ai"
	"github.com/poiesic/lumina/core"
)

// newClient builds a langchaingo OpenAI client for host with the options
// shared by the embedder and the chat model.
func newClient(config *ai.Config, host string, opts ...openai.Option) (*openai.LLM, error) {
	// Use "none" as token for local OpenAI-compatible services that don't require authentication
	token := config.APIKey
	if token == "" {
		token = "none"
	}
	opts = append([]openai.Option{
		openai.WithBaseURL(host),
		openai.WithToken(token),
	}, opts...)
	if config.APIType == ai.APITypeAzure {
		opts = append(opts,
			openai.WithAPIType(openai.APITypeAzure),
			openai.WithAPIVersion(config.APIVersion),
		)
	}

	client, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: openai client: %w", core.ErrConfiguration, err)
	}
	return client, nil
}
