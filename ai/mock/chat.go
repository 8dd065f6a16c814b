package mock

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/poiesic/lumina/ai"
)

// MockChatModel is a test double for ai.ChatModel.
// By default it streams Reply split into words.
type MockChatModel struct {
	// GenerateFunc is called by Generate if set.
	GenerateFunc func(ctx context.Context, messages []ai.ChatMessage, onChunk ai.ChunkFunc) (string, error)

	// Reply is the default response.
	Reply string

	callCount atomic.Int64

	mu   sync.Mutex
	last []ai.ChatMessage
}

// NewMockChatModel creates a mock chat model with a canned reply.
func NewMockChatModel() *MockChatModel {
	return &MockChatModel{Reply: "Hello! How can I help you today?"}
}

// Generate records messages and streams the canned reply word by word.
func (m *MockChatModel) Generate(ctx context.Context, messages []ai.ChatMessage, onChunk ai.ChunkFunc) (string, error) {
	m.callCount.Add(1)
	m.mu.Lock()
	m.last = append([]ai.ChatMessage(nil), messages...)
	m.mu.Unlock()

	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, messages, onChunk)
	}
	return StreamChunks(ctx, SplitWords(m.Reply), onChunk)
}

// LastMessages returns the prompt passed to the most recent call.
func (m *MockChatModel) LastMessages() []ai.ChatMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

// CallCount returns the number of times Generate was called.
func (m *MockChatModel) CallCount() int {
	return int(m.callCount.Load())
}

// Reset clears the call count and injected behavior.
func (m *MockChatModel) Reset() {
	m.callCount.Store(0)
	m.GenerateFunc = nil
	m.mu.Lock()
	m.last = nil
	m.mu.Unlock()
}

// StreamChunks delivers chunks to onChunk in order and returns their
// concatenation. It stops at the first callback error or cancellation.
func StreamChunks(ctx context.Context, chunks []string, onChunk ai.ChunkFunc) (string, error) {
	var sb strings.Builder
	for _, c := range chunks {
		if err := ctx.Err(); err != nil {
			return sb.String(), err
		}
		if onChunk != nil {
			if err := onChunk(ctx, c); err != nil {
				return sb.String(), err
			}
		}
		sb.WriteString(c)
	}
	return sb.String(), nil
}

// SplitWords splits s after each space, keeping the separators so the
// pieces concatenate back to s.
func SplitWords(s string) []string {
	var out []string
	for len(s) > 0 {
		i := strings.IndexByte(s, ' ')
		if i < 0 {
			out = append(out, s)
			break
		}
		out = append(out, s[:i+1])
		s = s[i+1:]
	}
	return out
}
