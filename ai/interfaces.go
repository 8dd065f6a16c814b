package ai

import (
	"context"

	"github.com/poiesic/lumina/core"
)

// Embedder generates dense vector embeddings from text for semantic similarity search.
// Implementations must be thread-safe for concurrent use.
type Embedder interface {
	// EmbedText generates a vector embedding for a single text string.
	// Upstream failures and empty or zero-norm vectors are reported as
	// errors wrapping core.ErrEmbeddingUnavailable.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts generates vector embeddings for multiple text strings in a batch.
	// The returned slice contains embeddings in the same order as the input texts.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// SparseEncoder maps text to a sparse lexical vector over a fixed hashed
// vocabulary. Encoders are pure functions of their input.
type SparseEncoder interface {
	// EncodeDocument produces the stored representation of a chunk.
	EncodeDocument(text string) (core.SparseVector, error)

	// EncodeQuery produces the representation of a user query.
	EncodeQuery(text string) (core.SparseVector, error)

	// VocabularyID fingerprints the analyzer and vocabulary. Vectors from
	// encoders with different IDs are not comparable.
	VocabularyID() string
}

// ChatRole identifies the author of a ChatMessage.
type ChatRole int

const (
	ChatRoleSystem ChatRole = iota + 1
	ChatRoleUser
	ChatRoleAssistant
)

// ChatMessage is one entry of a chat prompt.
type ChatMessage struct {
	Role    ChatRole
	Content string
}

// ChunkFunc receives each generated increment as it arrives. Returning an
// error aborts generation.
type ChunkFunc func(ctx context.Context, chunk string) error

// ChatModel generates assistant replies.
// Implementations must be thread-safe for concurrent use.
type ChatModel interface {
	// Generate produces a reply to messages. When onChunk is non-nil every
	// increment is passed to it as soon as it is received. The full reply
	// is returned on success. Failures after generation started wrap
	// core.ErrGenerationInterrupted; the text streamed so far is returned
	// alongside the error.
	Generate(ctx context.Context, messages []ChatMessage, onChunk ChunkFunc) (string, error)
}

// AIProvider aggregates AI services for convenient initialization and lifecycle management.
type AIProvider interface {
	// Embedder returns the dense embedding service.
	Embedder() Embedder

	// SparseEncoder returns the lexical encoder.
	SparseEncoder() SparseEncoder

	// ChatModel returns the reply generator.
	ChatModel() ChatModel

	// Close releases resources held by the provider and its services.
	Close() error
}
