// Package llm defines the wire types shared by the relay and the upstream
// Ollama chat API. Both sides of the relay speak the same JSON shapes, so a
// single set of types covers inbound requests and the outbound payload.
package llm

// Conversation roles. Ordering of messages within a conversation is
// significant and preserved end-to-end by the relay.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Message is a single message in a conversation.
type Message struct {
	Role    string `json:"role"` // "user", "assistant", or "system"
	Content string `json:"content"`
}
