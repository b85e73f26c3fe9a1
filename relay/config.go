package relay

import "time"

// Config is the relay server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g. ":8001")
	ListenAddr string

	// UpstreamURL is the base URL of the Ollama server
	// (e.g. "http://localhost:11434")
	UpstreamURL string

	// DefaultModel is substituted when a chat request carries no usable
	// model name.
	DefaultModel string

	// UpstreamTimeout bounds the entire upstream chat exchange, streaming
	// read included. Zero means unbounded. Unbounded is the default on
	// purpose: Ollama can take minutes to load a model on first use, and a
	// conventional timeout would kill those requests spuriously. Operators
	// who want a ceiling set one here.
	UpstreamTimeout time.Duration
}
