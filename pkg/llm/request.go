package llm

// ChatRequest is a chat completion request as received from the editor
// extension. Model may be empty or a placeholder; the relay resolves it
// against the configured default before forwarding.
type ChatRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`

	// Stream is a pointer so that an omitted field can be distinguished
	// from an explicit false. Ollama chat streams by default, and so does
	// the relay.
	Stream *bool `json:"stream,omitempty"`
}

// Streaming reports whether the request asks for a streaming response,
// defaulting to true when the field was omitted.
func (r *ChatRequest) Streaming() bool {
	if r.Stream == nil {
		return true
	}
	return *r.Stream
}

// ChatPayload is the outbound request body forwarded to Ollama's /api/chat
// endpoint after model resolution and message normalization.
type ChatPayload struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Stream   bool      `json:"stream"`
}
