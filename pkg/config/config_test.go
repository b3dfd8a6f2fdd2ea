package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// envVars lists every variable the loader reads.
var envVars = []string{
	"NXGATE_CONFIG", "NXGATE_ENV_FILE", "PORT", "ACCESS_TOKEN", "NXGATE_AUTH_ENABLED",
	"ENABLE_REASONING_CONTENT", "NXGATE_DEFAULT_MODEL", "NXGATE_CHUNK_SIZE", "NXGATE_CHUNK_DELAY",
	"AI_PROXY_URL", "NXGATE_LOG_FORMAT", "NXGATE_METRICS_ENABLED", "OTEL_EXPORTER_OTLP_ENDPOINT",
	"NXGATE_PROVIDERS", "ZHIPU_API_KEY", "COPILOT_ACCESS_TOKEN", "OPENAI_API_KEY",
}

// isolate clears loader variables and runs the test in an empty directory
// so that no config.yaml or .env is discovered.
func isolate(t *testing.T) {
	t.Helper()
	for _, k := range envVars {
		t.Setenv(k, "")
	}
	t.Chdir(t.TempDir())
}

const staticProvider = `
providers:
  - name: canned
    type: static
    reply: hello
    models:
      canned-1: ""
`

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	if cfg.Server.Port != 8080 {
		t.Errorf("default server.port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 30*time.Second {
		t.Errorf("default server.read_timeout = %v, want 30s", cfg.Server.ReadTimeout)
	}
	if cfg.Server.WriteTimeout != 0 {
		t.Errorf("default server.write_timeout = %v, want 0", cfg.Server.WriteTimeout)
	}
	if !cfg.Auth.Enabled {
		t.Error("auth should be enabled by default")
	}
	if cfg.Engine.DefaultModel != "gpt-4o-mini" {
		t.Errorf("default engine.default_model = %q", cfg.Engine.DefaultModel)
	}
	if cfg.Streaming.ChunkSize != 20 || cfg.Streaming.ChunkDelay != 30*time.Millisecond {
		t.Errorf("default streaming = %+v", cfg.Streaming)
	}
	if !cfg.Reasoning.Enabled {
		t.Error("reasoning should be enabled by default")
	}
	if !cfg.Observability.Metrics.Enabled || cfg.Observability.Tracing.Enabled {
		t.Errorf("default observability = %+v", cfg.Observability)
	}
}

func TestLoadFromYAML(t *testing.T) {
	isolate(t)
	yamlContent := `
server:
  port: 9090
  read_timeout: 60s
  shutdown_timeout: 5s
auth:
  access_token: s3cret
  jwt:
    jwks_url: https://idp.example/.well-known/jwks.json
    audience: nxgate
    cache_ttl: 10m
engine:
  default_model: glm-4.5
  max_images: 4
  discover_models: true
streaming:
  chunk_size: 8
  chunk_delay: 10ms
reasoning:
  enabled: false
proxy:
  url: http://proxy.local:3128
  no_proxy: .internal
logging:
  level: debug
  format: json
  debug: providers,streaming
observability:
  tracing:
    enabled: true
    endpoint: localhost:4318
    insecure: true
providers:
  - name: bigmodel
    type: zhipu
    api_key: id.secret
    models:
      glm-4.5: ""
      my-alias: gpt_175B_0404
  - type: openaicompat
    base_url: http://localhost:8000/v1
    timeout: 45s
    headers:
      X-Org: acme
    image_models:
      painter: dall-e-3
`
	path := writeTemp(t, "config-*.yaml", yamlContent)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9090 || cfg.Server.ReadTimeout != 60*time.Second || cfg.Server.ShutdownTimeout != 5*time.Second {
		t.Errorf("server = %+v", cfg.Server)
	}
	if cfg.Auth.AccessToken != "s3cret" || !cfg.Auth.Enabled {
		t.Errorf("auth = %+v", cfg.Auth)
	}
	if j := cfg.Auth.JWT; j.JWKSURL != "https://idp.example/.well-known/jwks.json" || j.Audience != "nxgate" || j.CacheTTL != 10*time.Minute {
		t.Errorf("auth.jwt = %+v", j)
	}
	if cfg.Engine.DefaultModel != "glm-4.5" || cfg.Engine.MaxImages != 4 || !cfg.Engine.DiscoverModels {
		t.Errorf("engine = %+v", cfg.Engine)
	}
	if cfg.Engine.MaxMessages != 1000 {
		t.Errorf("unset engine.max_messages should keep its default, got %d", cfg.Engine.MaxMessages)
	}
	if cfg.Streaming.ChunkSize != 8 || cfg.Streaming.ChunkDelay != 10*time.Millisecond {
		t.Errorf("streaming = %+v", cfg.Streaming)
	}
	if cfg.Reasoning.Enabled {
		t.Error("reasoning.enabled = true, want false")
	}
	if cfg.Proxy.URL != "http://proxy.local:3128" || cfg.Proxy.NoProxy != ".internal" {
		t.Errorf("proxy = %+v", cfg.Proxy)
	}
	if cfg.Logging.Format != "json" || cfg.Logging.Debug != "providers,streaming" {
		t.Errorf("logging = %+v", cfg.Logging)
	}
	if tr := cfg.Observability.Tracing; !tr.Enabled || tr.Endpoint != "localhost:4318" || !tr.Insecure || tr.ServiceName != "nxgate" {
		t.Errorf("tracing = %+v", tr)
	}

	if len(cfg.Providers) != 2 {
		t.Fatalf("got %d providers, want 2", len(cfg.Providers))
	}
	z := cfg.Providers[0]
	if z.DisplayName() != "bigmodel" || z.Models["my-alias"] != "gpt_175B_0404" {
		t.Errorf("providers[0] = %+v", z)
	}
	o := cfg.Providers[1]
	if o.DisplayName() != "openaicompat" || o.Timeout != 45*time.Second || o.Headers["X-Org"] != "acme" || o.ImageModels["painter"] != "dall-e-3" {
		t.Errorf("providers[1] = %+v", o)
	}
}

func TestEnvOverride(t *testing.T) {
	isolate(t)
	path := writeTemp(t, "config-*.yaml", staticProvider)

	t.Setenv("PORT", "3000")
	t.Setenv("ACCESS_TOKEN", "from-env")
	t.Setenv("ENABLE_REASONING_CONTENT", "false")
	t.Setenv("NXGATE_DEFAULT_MODEL", "canned-1")
	t.Setenv("NXGATE_CHUNK_SIZE", "4")
	t.Setenv("NXGATE_CHUNK_DELAY", "0s")
	t.Setenv("AI_PROXY_URL", "socks5://127.0.0.1:1080")
	t.Setenv("NXGATE_METRICS_ENABLED", "false")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "collector:4318")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 3000 {
		t.Errorf("port = %d", cfg.Server.Port)
	}
	if cfg.Auth.AccessToken != "from-env" {
		t.Errorf("access token = %q", cfg.Auth.AccessToken)
	}
	if cfg.Reasoning.Enabled {
		t.Error("ENABLE_REASONING_CONTENT=false not applied")
	}
	if cfg.Engine.DefaultModel != "canned-1" || cfg.Streaming.ChunkSize != 4 || cfg.Streaming.ChunkDelay != 0 {
		t.Errorf("engine = %+v streaming = %+v", cfg.Engine, cfg.Streaming)
	}
	if cfg.Proxy.URL != "socks5://127.0.0.1:1080" {
		t.Errorf("proxy = %q", cfg.Proxy.URL)
	}
	if cfg.Observability.Metrics.Enabled {
		t.Error("metrics should be disabled")
	}
	if !cfg.Observability.Tracing.Enabled || cfg.Observability.Tracing.Endpoint != "collector:4318" {
		t.Errorf("tracing = %+v", cfg.Observability.Tracing)
	}
}

func TestEnvOverrideInvalidValues(t *testing.T) {
	isolate(t)
	path := writeTemp(t, "config-*.yaml", staticProvider)
	t.Setenv("PORT", "eighty")
	t.Setenv("ENABLE_REASONING_CONTENT", "maybe")

	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for invalid env values")
	}
	for _, want := range []string{"PORT", "ENABLE_REASONING_CONTENT"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}

func TestProvidersFromEnv(t *testing.T) {
	isolate(t)
	t.Setenv("NXGATE_PROVIDERS", `[{"name":"copilot","type":"wsevent","base_url":"https://copilot.example","socket_url":"wss://copilot.example/c/api/chat","timeout":"90s","models":{"Copilot":""}}]`)
	t.Setenv("COPILOT_ACCESS_TOKEN", "tok")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(cfg.Providers) != 1 {
		t.Fatalf("providers = %+v", cfg.Providers)
	}
	p := cfg.Providers[0]
	if p.Type != ProviderWSEvent || p.APIKey != "tok" || p.Timeout != 90*time.Second {
		t.Errorf("provider = %+v", p)
	}
}

func TestCredentialEnvDoesNotOverrideConfigured(t *testing.T) {
	isolate(t)
	path := writeTemp(t, "config-*.yaml", `
providers:
  - type: zhipu
    api_key: from.yaml
    models: {glm-4: ""}
`)
	t.Setenv("ZHIPU_API_KEY", "from.env")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Providers[0].APIKey != "from.yaml" {
		t.Errorf("api_key = %q", cfg.Providers[0].APIKey)
	}
}

func TestDotEnvFile(t *testing.T) {
	isolate(t)
	path := writeTemp(t, "config-*.yaml", `
providers:
  - type: zhipu
    models: {glm-4: ""}
`)
	if err := os.WriteFile(".env", []byte("ZHIPU_API_KEY=dot.env\nACCESS_TOKEN=dotenv-token\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	// Variables already in the environment win over the file. ZHIPU_API_KEY
	// is exported empty by isolate and must still be filled from .env.
	t.Setenv("ACCESS_TOKEN", "real-env")
	if v, ok := os.LookupEnv("ZHIPU_API_KEY"); !ok || v != "" {
		t.Fatalf("ZHIPU_API_KEY = %q, %v; want exported empty", v, ok)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Providers[0].APIKey != "dot.env" {
		t.Errorf("api_key = %q, want value from .env", cfg.Providers[0].APIKey)
	}
	if cfg.Auth.AccessToken != "real-env" {
		t.Errorf("access token = %q, want the real environment value", cfg.Auth.AccessToken)
	}
}

func TestExplicitDotEnvMissing(t *testing.T) {
	isolate(t)
	path := writeTemp(t, "config-*.yaml", staticProvider)
	t.Setenv("NXGATE_ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))

	if _, err := Load(path); err == nil {
		t.Error("expected error for missing explicit env file")
	}
}

func TestFileReference(t *testing.T) {
	isolate(t)
	tokenFile := writeTemp(t, "token-*", "  file-token\n")
	keyFile := writeTemp(t, "key-*", "id.from-file\n")
	path := writeTemp(t, "config-*.yaml", `
auth:
  access_token_file: `+tokenFile+`
providers:
  - type: zhipu
    api_key_file: `+keyFile+`
    models: {glm-4: ""}
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Auth.AccessToken != "file-token" {
		t.Errorf("access token = %q", cfg.Auth.AccessToken)
	}
	if cfg.Providers[0].APIKey != "id.from-file" {
		t.Errorf("api_key = %q", cfg.Providers[0].APIKey)
	}
}

func TestFileReferenceDoesNotOverrideExplicitValue(t *testing.T) {
	isolate(t)
	tokenFile := writeTemp(t, "token-*", "file-token")
	path := writeTemp(t, "config-*.yaml", `
auth:
  access_token: explicit
  access_token_file: `+tokenFile+staticProvider)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Auth.AccessToken != "explicit" {
		t.Errorf("access token = %q, want explicit", cfg.Auth.AccessToken)
	}
}

func TestFileReferenceMissingFile(t *testing.T) {
	isolate(t)
	path := writeTemp(t, "config-*.yaml", `
auth:
  access_token_file: /nonexistent/token
`+staticProvider)
	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "auth.access_token_file") {
		t.Errorf("err = %v", err)
	}
}

func TestFileDiscovery(t *testing.T) {
	t.Run("env var", func(t *testing.T) {
		isolate(t)
		path := writeTemp(t, "config-*.yaml", "server:\n  port: 7070\n"+staticProvider)
		t.Setenv("NXGATE_CONFIG", path)

		cfg, err := Load("")
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if cfg.Server.Port != 7070 {
			t.Errorf("port = %d", cfg.Server.Port)
		}
	})

	t.Run("working directory", func(t *testing.T) {
		isolate(t)
		if err := os.WriteFile("config.yaml", []byte("server:\n  port: 6060\n"+staticProvider), 0o600); err != nil {
			t.Fatal(err)
		}
		cfg, err := Load("")
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if cfg.Server.Port != 6060 {
			t.Errorf("port = %d", cfg.Server.Port)
		}
	})

	t.Run("explicit path missing", func(t *testing.T) {
		isolate(t)
		if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
			t.Error("expected error for missing explicit config")
		}
	})
}

func TestValidation(t *testing.T) {
	valid := func() Config {
		cfg := Defaults()
		cfg.Providers = []ProviderConfig{{Type: ProviderStatic, Models: map[string]string{"m": ""}}}
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"bad port", func(c *Config) { c.Server.Port = 0 }, "server.port"},
		{"bad chunk size", func(c *Config) { c.Streaming.ChunkSize = 0 }, "streaming.chunk_size"},
		{"negative chunk delay", func(c *Config) { c.Streaming.ChunkDelay = -time.Second }, "streaming.chunk_delay"},
		{"bad jwks url", func(c *Config) { c.Auth.JWT.JWKSURL = "file:///etc/keys" }, "auth.jwt.jwks_url"},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"tracing without endpoint", func(c *Config) { c.Observability.Tracing.Enabled = true }, "observability.tracing.endpoint"},
		{"no providers", func(c *Config) { c.Providers = nil }, "at least one provider"},
		{"unknown type", func(c *Config) { c.Providers[0].Type = "carrier-pigeon" }, "providers[0].type"},
		{"openaicompat without base_url", func(c *Config) {
			c.Providers[0] = ProviderConfig{Type: ProviderOpenAICompat}
		}, "providers[0].base_url"},
		{"zhipu key format", func(c *Config) {
			c.Providers[0] = ProviderConfig{Type: ProviderZhipu, APIKey: "nodot", Models: map[string]string{"glm": ""}}
		}, "<id>.<secret>"},
		{"wsevent missing socket", func(c *Config) {
			c.Providers[0] = ProviderConfig{Type: ProviderWSEvent, BaseURL: "https://x", APIKey: "t", Models: map[string]string{"Copilot": ""}}
		}, "providers[0].socket_url"},
		{"static without models", func(c *Config) { c.Providers[0].Models = nil }, "providers[0].models"},
		{"duplicate names", func(c *Config) {
			c.Providers = append(c.Providers, ProviderConfig{Type: ProviderStatic, Models: map[string]string{"n": ""}})
		}, "used more than once"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidationReportsAllErrors(t *testing.T) {
	cfg := Defaults()
	cfg.Server.Port = -1
	cfg.Streaming.ChunkSize = 0
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{"server.port", "streaming.chunk_size", "at least one provider"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q lacks %q", err, want)
		}
	}
}

func writeTemp(t *testing.T, pattern, content string) string {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), pattern)
	if err != nil {
		t.Fatalf("creating temp file: %v", err)
	}
	if _, err := f.WriteString(content); err != nil {
		f.Close()
		t.Fatalf("writing temp file: %v", err)
	}
	f.Close()
	return f.Name()
}
