package conversation

import (
	"fmt"
	"strings"

	"github.com/poiesic/lumina/core"
)

const systemPromptTemplate = `You are a B2B sales expert. Your responses must be concise, professional, and persuasive.

Please answer user questions based on the provided context information.
If context information is insufficient, please answer based on your professional knowledge but mention you are not 100%% sure about specific details not in context.
Maintain a professional, friendly, and concise tone.

%s

Context Information:
%s`

const (
	solicitContactInstruction = `The user has NOT provided their email address yet. If the user shows strong interest or the conversation reaches a natural point to follow up, please politely ask for their email address to send more information or schedule a demo.`

	purchaseIntentInstruction = `The user is asking about pricing, plans or getting started. After answering, ask for their email address so a specialist can send detailed pricing or set up a demo.`

	contactCapturedInstruction = `The user has ALREADY provided their email address. Do not ask for it again.`

	noContext = "No relevant context available"
)

// purchaseKeywords signal buying interest. Matching is case-insensitive
// substring search, so "plan" also matches "planning".
var purchaseKeywords = []string{
	"price", "cost", "pricing", "how much",
	"how to start", "how to buy", "get started",
	"trial", "demo", "free trial", "buy", "purchase",
	"subscribe", "plan", "package", "pricing plan",
}

// HasPurchaseIntent reports whether message mentions buying, pricing or trials.
func HasPurchaseIntent(message string) bool {
	lower := strings.ToLower(message)
	for _, kw := range purchaseKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// captureInstruction selects the contact guidance for the current state.
func captureInstruction(captured, intent bool) string {
	switch {
	case captured:
		return contactCapturedInstruction
	case intent:
		return solicitContactInstruction + "\n" + purchaseIntentInstruction
	default:
		return solicitContactInstruction
	}
}

// FormatContext renders retrieved units as source-tagged lines.
func FormatContext(results []*core.SearchResult) string {
	if len(results) == 0 {
		return noContext
	}
	lines := make([]string, 0, len(results))
	for _, r := range results {
		if r == nil || r.Record == nil {
			continue
		}
		lines = append(lines, fmt.Sprintf("- [Source: %s] %s", r.Record.SourceURL, r.Record.Text))
	}
	if len(lines) == 0 {
		return noContext
	}
	return strings.Join(lines, "\n")
}

// BuildSystemPrompt composes the instruction sent ahead of the history.
func BuildSystemPrompt(captured, intent bool, results []*core.SearchResult) string {
	return fmt.Sprintf(systemPromptTemplate, captureInstruction(captured, intent), FormatContext(results))
}
