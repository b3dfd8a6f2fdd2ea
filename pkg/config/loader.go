package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Load loads configuration from a layered set of sources.
//
// The loading order is:
//  1. Built-in defaults
//  2. YAML config file (explicit path, NXGATE_CONFIG env, ./config.yaml, /etc/nxgate/config.yaml)
//  3. .env file (NXGATE_ENV_FILE or ./.env); variables already set win
//  4. Environment variable overrides
//  5. File reference resolution (_file suffix)
//  6. Validation
func Load(configPath string) (*Config, error) {
	cfg := Defaults()

	filePath := discoverConfigFile(configPath)
	if filePath != "" {
		if err := loadYAMLFile(filePath, &cfg); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", filePath, err)
		}
	}

	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, fmt.Errorf("applying environment: %w", err)
	}

	if err := resolveFileReferences(&cfg); err != nil {
		return nil, fmt.Errorf("resolving file references: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return &cfg, nil
}

// discoverConfigFile finds the config file path using the discovery order:
// 1. Explicit configPath argument
// 2. NXGATE_CONFIG environment variable
// 3. ./config.yaml in the current directory
// 4. /etc/nxgate/config.yaml
//
// Returns empty string if no config file is found.
func discoverConfigFile(configPath string) string {
	if configPath != "" {
		return configPath
	}

	if envPath := os.Getenv("NXGATE_CONFIG"); envPath != "" {
		return envPath
	}

	candidates := []string{
		"config.yaml",
		"/etc/nxgate/config.yaml",
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// loadYAMLFile reads and parses a YAML file into the Config struct.
// Fields not present in the YAML retain their current (default) values.
func loadYAMLFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// loadDotEnv loads provider credentials from a .env file into the process
// environment. Variables exported empty count as unset. A missing default file is not an error; a missing file
// named by NXGATE_ENV_FILE is.
func loadDotEnv() error {
	path := os.Getenv("NXGATE_ENV_FILE")
	explicit := path != ""
	if !explicit {
		path = ".env"
	}
	vars, err := godotenv.Read(path)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("loading env file %s: %w", path, err)
	}
	// Only unset or empty variables are filled; real values win.
	for k, v := range vars {
		if os.Getenv(k) != "" {
			continue
		}
		if err := os.Setenv(k, v); err != nil {
			return fmt.Errorf("loading env file %s: %w", path, err)
		}
	}
	return nil
}

// applyEnvOverrides maps environment variables to config fields.
func applyEnvOverrides(cfg *Config) error {
	var errs []error

	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("PORT: %w", err))
		} else {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("ACCESS_TOKEN"); v != "" {
		cfg.Auth.AccessToken = v
	}
	if v := os.Getenv("NXGATE_AUTH_ENABLED"); v != "" {
		errs = appendBool(errs, "NXGATE_AUTH_ENABLED", v, &cfg.Auth.Enabled)
	}
	if v := os.Getenv("ENABLE_REASONING_CONTENT"); v != "" {
		errs = appendBool(errs, "ENABLE_REASONING_CONTENT", v, &cfg.Reasoning.Enabled)
	}
	if v := os.Getenv("NXGATE_DEFAULT_MODEL"); v != "" {
		cfg.Engine.DefaultModel = v
	}
	if v := os.Getenv("NXGATE_CHUNK_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("NXGATE_CHUNK_SIZE: %w", err))
		} else {
			cfg.Streaming.ChunkSize = n
		}
	}
	if v := os.Getenv("NXGATE_CHUNK_DELAY"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("NXGATE_CHUNK_DELAY: %w", err))
		} else {
			cfg.Streaming.ChunkDelay = d
		}
	}
	if v := os.Getenv("AI_PROXY_URL"); v != "" {
		cfg.Proxy.URL = v
	}
	if v := os.Getenv("NXGATE_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("NXGATE_METRICS_ENABLED"); v != "" {
		errs = appendBool(errs, "NXGATE_METRICS_ENABLED", v, &cfg.Observability.Metrics.Enabled)
	}
	if v := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); v != "" {
		cfg.Observability.Tracing.Endpoint = v
		cfg.Observability.Tracing.Enabled = true
	}

	// NXGATE_PROVIDERS: providers as a JSON (or YAML flow) array. Replaces
	// any providers from the config file.
	if v := os.Getenv("NXGATE_PROVIDERS"); v != "" {
		var providers []ProviderConfig
		if err := yaml.Unmarshal([]byte(v), &providers); err != nil {
			errs = append(errs, fmt.Errorf("NXGATE_PROVIDERS: %w", err))
		} else {
			cfg.Providers = providers
		}
	}

	// Per-type credentials fill providers that have none configured.
	credentials := map[string]string{
		ProviderZhipu:   os.Getenv("ZHIPU_API_KEY"),
		ProviderWSEvent: os.Getenv("COPILOT_ACCESS_TOKEN"),
		ProviderOpenAI:  os.Getenv("OPENAI_API_KEY"),
	}
	for i := range cfg.Providers {
		p := &cfg.Providers[i]
		if key := credentials[p.Type]; key != "" && p.APIKey == "" && p.APIKeyFile == "" {
			p.APIKey = key
		}
	}

	return errors.Join(errs...)
}

func appendBool(errs []error, name, v string, dst *bool) []error {
	b, err := strconv.ParseBool(v)
	if err != nil {
		return append(errs, fmt.Errorf("%s: %w", name, err))
	}
	*dst = b
	return errs
}

// resolveFileReferences reads _file fields and populates the corresponding value fields.
// For each field ending in _file, if the value field is empty and the file field is set,
// the file is read, whitespace is trimmed, and the value field is populated.
func resolveFileReferences(cfg *Config) error {
	// auth.access_token_file -> auth.access_token
	if cfg.Auth.AccessTokenFile != "" && cfg.Auth.AccessToken == "" {
		val, err := readSecretFile(cfg.Auth.AccessTokenFile)
		if err != nil {
			return fmt.Errorf("auth.access_token_file: %w", err)
		}
		cfg.Auth.AccessToken = val
	}

	// providers[*].api_key_file -> providers[*].api_key
	for i := range cfg.Providers {
		p := &cfg.Providers[i]
		if p.APIKeyFile != "" && p.APIKey == "" {
			val, err := readSecretFile(p.APIKeyFile)
			if err != nil {
				return fmt.Errorf("providers[%d].api_key_file: %w", i, err)
			}
			p.APIKey = val
		}
	}

	return nil
}

// readSecretFile reads a file and returns its content with surrounding whitespace trimmed.
func readSecretFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
