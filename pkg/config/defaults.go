package config

const (
	defaultListen          = ":8001"
	defaultUpstream        = "http://localhost:11434"
	defaultModel           = "phi3:mini-128k"
	defaultUpstreamTimeout = 0 // unbounded
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() Config {
	return Config{
		Listen:          defaultListen,
		Upstream:        defaultUpstream,
		DefaultModel:    defaultModel,
		UpstreamTimeout: defaultUpstreamTimeout,
	}
}
