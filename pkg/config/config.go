// Package config provides unified configuration for the nxgate gateway.
//
// Configuration is loaded with a layered approach:
//  1. Built-in defaults
//  2. YAML config file (discovered or explicitly specified)
//  3. .env file (never overrides variables already set)
//  4. Environment variable overrides
//  5. File reference resolution (_file suffix fields)
//  6. Validation
package config

import "time"

// Provider types understood by the gateway.
const (
	ProviderOpenAICompat = "openaicompat"
	ProviderOpenAI       = "openai"
	ProviderZhipu        = "zhipu"
	ProviderWSEvent      = "wsevent"
	ProviderStatic       = "static"
)

// Config holds all configuration for the nxgate gateway.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Auth          AuthConfig          `yaml:"auth"`
	Engine        EngineConfig        `yaml:"engine"`
	Streaming     StreamingConfig     `yaml:"streaming"`
	Reasoning     ReasoningConfig     `yaml:"reasoning"`
	Proxy         ProxyConfig         `yaml:"proxy"`
	Providers     []ProviderConfig    `yaml:"providers"`
	Logging       LoggingConfig       `yaml:"logging"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`             // default: 8080
	ReadTimeout     time.Duration `yaml:"read_timeout"`     // default: 30s
	WriteTimeout    time.Duration `yaml:"write_timeout"`    // default: 0 (streams are unbounded)
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"` // default: 30s
	MaxBodySize     int64         `yaml:"max_body_size"`    // default: 10 MiB
}

// AuthConfig holds client authentication settings. A single shared secret
// is compared against the bearer token of every API request.
type AuthConfig struct {
	Enabled         bool   `yaml:"enabled"` // default: true
	AccessToken     string `yaml:"access_token"`
	AccessTokenFile string `yaml:"access_token_file"` // _file variant for access_token

	// JWT additionally accepts OIDC-issued bearer tokens when JWKSURL is set.
	JWT JWTConfig `yaml:"jwt"`
}

// JWTConfig configures JWT bearer authentication.
type JWTConfig struct {
	JWKSURL      string        `yaml:"jwks_url"`
	Issuer       string        `yaml:"issuer"`
	Audience     string        `yaml:"audience"`
	SubjectClaim string        `yaml:"subject_claim"` // default: sub
	CacheTTL     time.Duration `yaml:"cache_ttl"`     // default: 1h
}

// EngineConfig holds request processing settings.
type EngineConfig struct {
	DefaultModel string `yaml:"default_model"` // default: gpt-4o-mini
	MaxMessages  int    `yaml:"max_messages"`  // default: 1000
	MaxTools     int    `yaml:"max_tools"`     // default: 128
	MaxImages    int    `yaml:"max_images"`    // default: 10

	// DiscoverModels queries providers that can list their models at
	// startup and routes every reported model.
	DiscoverModels bool `yaml:"discover_models"`
}

// StreamingConfig controls how complete upstream text is paced into chunks.
type StreamingConfig struct {
	ChunkSize  int           `yaml:"chunk_size"`  // default: 20 runes
	ChunkDelay time.Duration `yaml:"chunk_delay"` // default: 30ms
}

// ReasoningConfig controls <think> extraction.
type ReasoningConfig struct {
	Enabled bool `yaml:"enabled"` // default: true
}

// ProxyConfig selects the outbound proxy. Empty values fall back to the
// standard proxy environment variables.
type ProxyConfig struct {
	URL     string `yaml:"url"`
	NoProxy string `yaml:"no_proxy"`
}

// ProviderConfig describes one upstream provider.
type ProviderConfig struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`

	BaseURL    string `yaml:"base_url"`
	SocketURL  string `yaml:"socket_url"` // wsevent only
	APIKey     string `yaml:"api_key"`
	APIKeyFile string `yaml:"api_key_file"` // _file variant for api_key

	Timeout time.Duration     `yaml:"timeout"`
	Headers map[string]string `yaml:"headers"`

	// Models maps client-facing aliases to upstream model ids. An empty
	// upstream id passes the alias through unchanged.
	Models map[string]string `yaml:"models"`

	// ImageModels maps image model aliases to upstream ids.
	ImageModels map[string]string `yaml:"image_models"`

	// Static provider settings.
	Reply     string `yaml:"reply"`
	ImageText string `yaml:"image_text"`
	Stream    bool   `yaml:"stream"`
}

// LoggingConfig configures the process logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // default: info
	Format string `yaml:"format"` // "text" or "json", default: text
	Debug  string `yaml:"debug"`  // comma-separated debug categories
}

// ObservabilityConfig holds monitoring and instrumentation settings.
type ObservabilityConfig struct {
	Metrics MetricsConfig `yaml:"metrics"`
	Tracing TracingConfig `yaml:"tracing"`
}

// MetricsConfig holds Prometheus metrics endpoint settings.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"` // default: true
}

// TracingConfig holds OTLP trace export settings.
type TracingConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Endpoint    string `yaml:"endpoint"` // host:port of the OTLP/HTTP collector
	URLPath     string `yaml:"url_path"`
	APIKey      string `yaml:"api_key"`
	Insecure    bool   `yaml:"insecure"`
	ServiceName string `yaml:"service_name"` // default: nxgate
}

// Defaults returns a Config with all default values filled in.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			MaxBodySize:     10 << 20,
		},
		Auth: AuthConfig{
			Enabled: true,
		},
		Engine: EngineConfig{
			DefaultModel: "gpt-4o-mini",
			MaxMessages:  1000,
			MaxTools:     128,
			MaxImages:    10,
		},
		Streaming: StreamingConfig{
			ChunkSize:  20,
			ChunkDelay: 30 * time.Millisecond,
		},
		Reasoning: ReasoningConfig{
			Enabled: true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Observability: ObservabilityConfig{
			Metrics: MetricsConfig{
				Enabled: true,
			},
			Tracing: TracingConfig{
				ServiceName: "nxgate",
			},
		},
	}
}
