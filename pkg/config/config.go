// Package config loads the relay's startup configuration.
//
// Precedence (highest to lowest):
//  1. Environment variables (RELAY_LISTEN, RELAY_UPSTREAM, ...). The
//     pre-existing names OLLAMA_BASE_URL, DEFAULT_MODEL, and RELAY_PORT are
//     honored as aliases so deployments keep working unchanged.
//  2. Defaults from NewDefaultConfig().
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// envBindings maps each config key to the environment variables that can set
// it, in priority order.
var envBindings = map[string][]string{
	"listen":           {"RELAY_LISTEN", "RELAY_PORT", "FASTAPI_PORT"},
	"upstream":         {"RELAY_UPSTREAM", "OLLAMA_BASE_URL"},
	"default_model":    {"RELAY_DEFAULT_MODEL", "DEFAULT_MODEL"},
	"upstream_timeout": {"RELAY_UPSTREAM_TIMEOUT"},
}

// Load builds the relay configuration from defaults and the environment.
func Load() (Config, error) {
	v := viper.New()

	setDefaults(v)

	for key, envs := range envBindings {
		args := append([]string{key}, envs...)
		if err := v.BindEnv(args...); err != nil {
			return Config{}, fmt.Errorf("binding env for %q: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Listen = normalizeListen(cfg.Listen)

	return cfg, nil
}

// setDefaults registers defaults from NewDefaultConfig() into viper so that
// defaults.go stays the single source of truth.
func setDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("listen", d.Listen)
	v.SetDefault("upstream", d.Upstream)
	v.SetDefault("default_model", d.DefaultModel)
	v.SetDefault("upstream_timeout", d.UpstreamTimeout)
}

// normalizeListen turns a bare port number ("8001", as set via RELAY_PORT)
// into a listen address (":8001"). Anything else passes through unchanged.
func normalizeListen(listen string) string {
	trimmed := strings.TrimSpace(listen)
	if trimmed == "" {
		return defaultListen
	}
	if !strings.Contains(trimmed, ":") {
		return ":" + trimmed
	}
	return trimmed
}
