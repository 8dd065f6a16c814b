package conversation

import (
	"github.com/tmc/langchaingo/llms"

	"github.com/poiesic/lumina/ai"
	"github.com/poiesic/lumina/core"
)

// DefaultHistoryTurns is the number of recent turns sent to the model,
// including the current user message.
const DefaultHistoryTurns = 6

// TokenCounter measures text in model tokens.
type TokenCounter func(text string) int

// ModelTokenCounter counts tokens with the tokenizer of the named model.
// Unknown models fall back to an approximation.
func ModelTokenCounter(model string) TokenCounter {
	return func(text string) int {
		return llms.CountTokens(model, text)
	}
}

// historyMessages converts turns to chat messages. When budget > 0, the
// oldest turns are dropped until the total fits; the newest turn is always
// kept.
func historyMessages(turns []*core.Turn, budget int, count TokenCounter) []ai.ChatMessage {
	if budget > 0 && count != nil && len(turns) > 1 {
		total := 0
		start := len(turns)
		for i := len(turns) - 1; i >= 0; i-- {
			total += count(turns[i].Text)
			if total > budget && i < len(turns)-1 {
				break
			}
			start = i
		}
		turns = turns[start:]
	}

	messages := make([]ai.ChatMessage, 0, len(turns))
	for _, t := range turns {
		role := ai.ChatRoleUser
		if t.Role == core.RoleAssistant {
			role = ai.ChatRoleAssistant
		}
		messages = append(messages, ai.ChatMessage{Role: role, Content: t.Text})
	}
	return messages
}
