package model

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// LastUserContent returns the most recent user content, which is the query of a turn.
func LastUserContent(messages []ChatMessage) (string, bool) {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == RoleUser {
			return messages[i].Content, true
		}
	}
	return "", false
}

// GenerationInterruptedText terminates a stream whose generation failed after it started.
const GenerationInterruptedText = "[Error: generation interrupted]"

// IDontKnowText is the answer when the catalog holds nothing relevant.
const IDontKnowText = "I don't know."
