// Package mock provides test double implementations of AI service interfaces.
//
// This package contains mock implementations of ai.Embedder, ai.ChatModel,
// and ai.AIProvider for use in unit tests. The mocks allow tests to run without
// external AI service dependencies and enable controlled, deterministic behavior.
//
// # Usage in Tests
//
//	// Basic usage with default behavior
//	mockProvider := mock.NewMockProvider()
//	vec, err := mockProvider.Embedder().EmbedText(ctx, "test")
//
//	// Custom behavior injection
//	chat := mock.NewMockChatModel()
//	chat.GenerateFunc = func(ctx context.Context, msgs []ai.ChatMessage, onChunk ai.ChunkFunc) (string, error) {
//	    return mock.StreamChunks(ctx, []string{"partial "}, onChunk)
//	}
//
//	// Check call counts
//	count := chat.CallCount()
//
// # Default Behavior
//
//   - MockEmbedder: Returns deterministic unit vectors based on text hash
//   - MockChatModel: Streams a canned reply word by word
//   - MockProvider: Aggregates the mocks with a real sparse encoder
package mock
