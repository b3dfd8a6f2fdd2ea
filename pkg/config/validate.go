package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks the configuration for required fields and valid values.
// Every problem is reported, each with its field path.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 {
		errs = append(errs, fmt.Errorf("server.port must be > 0, got %d", c.Server.Port))
	}
	if c.Server.MaxBodySize <= 0 {
		errs = append(errs, fmt.Errorf("server.max_body_size must be > 0, got %d", c.Server.MaxBodySize))
	}

	if u := c.Auth.JWT.JWKSURL; u != "" && !strings.HasPrefix(u, "https://") && !strings.HasPrefix(u, "http://") {
		errs = append(errs, fmt.Errorf("auth.jwt.jwks_url must be an http(s) URL, got %q", u))
	}

	if c.Streaming.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("streaming.chunk_size must be > 0, got %d", c.Streaming.ChunkSize))
	}
	if c.Streaming.ChunkDelay < 0 {
		errs = append(errs, fmt.Errorf("streaming.chunk_delay must not be negative"))
	}

	switch strings.ToLower(c.Logging.Format) {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format must be \"text\" or \"json\", got %q", c.Logging.Format))
	}

	if c.Observability.Tracing.Enabled && c.Observability.Tracing.Endpoint == "" {
		errs = append(errs, fmt.Errorf("observability.tracing.endpoint is required when tracing is enabled"))
	}

	if len(c.Providers) == 0 {
		errs = append(errs, fmt.Errorf("at least one provider is required"))
	}
	names := make(map[string]bool, len(c.Providers))
	for i, p := range c.Providers {
		errs = append(errs, p.validate(i)...)
		name := p.DisplayName()
		if names[name] {
			errs = append(errs, fmt.Errorf("providers[%d].name %q is used more than once", i, name))
		}
		names[name] = true
	}

	return errors.Join(errs...)
}

// DisplayName returns the configured name, or the type when no name is set.
func (p ProviderConfig) DisplayName() string {
	if p.Name != "" {
		return p.Name
	}
	return p.Type
}

func (p ProviderConfig) validate(i int) []error {
	var errs []error
	field := func(name string) string { return fmt.Sprintf("providers[%d].%s", i, name) }
	require := func(name, value string) {
		if value == "" {
			errs = append(errs, fmt.Errorf("%s is required for type %q", field(name), p.Type))
		}
	}

	switch p.Type {
	case ProviderOpenAICompat:
		require("base_url", p.BaseURL)
	case ProviderOpenAI:
		require("api_key", p.APIKey)
	case ProviderZhipu:
		require("api_key", p.APIKey)
		if p.APIKey != "" && !strings.Contains(p.APIKey, ".") {
			errs = append(errs, fmt.Errorf("%s must have the form <id>.<secret>", field("api_key")))
		}
	case ProviderWSEvent:
		require("base_url", p.BaseURL)
		require("socket_url", p.SocketURL)
		require("api_key", p.APIKey)
	case ProviderStatic:
	default:
		errs = append(errs, fmt.Errorf("%s must be one of openaicompat, openai, zhipu, wsevent, static, got %q", field("type"), p.Type))
	}

	if len(p.Models) == 0 && len(p.ImageModels) == 0 && p.Type != ProviderOpenAICompat && p.Type != ProviderOpenAI {
		errs = append(errs, fmt.Errorf("%s must list at least one model", field("models")))
	}
	return errs
}
