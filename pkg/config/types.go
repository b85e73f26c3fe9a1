package config

import "time"

// Config is the relay's startup configuration. It is constructed once by
// Load (or NewDefaultConfig) and passed by value into the components that
// need it; nothing mutates it afterwards.
type Config struct {
	// Listen is the address the relay listens on (e.g. ":8001").
	Listen string `mapstructure:"listen"`

	// Upstream is the base URL of the Ollama server
	// (e.g. "http://localhost:11434").
	Upstream string `mapstructure:"upstream"`

	// DefaultModel is substituted when a request carries no usable model
	// name (empty, whitespace, or the "string" placeholder).
	DefaultModel string `mapstructure:"default_model"`

	// UpstreamTimeout bounds the whole upstream chat exchange, including
	// the streaming read. Zero means unbounded, which is the default:
	// a cold model load can take minutes and must not be cut off.
	UpstreamTimeout time.Duration `mapstructure:"upstream_timeout"`
}
