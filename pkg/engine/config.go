package engine

import (
	"time"

	"github.com/nxgate/nxgate/pkg/api"
	"github.com/nxgate/nxgate/pkg/provider"
	"github.com/nxgate/nxgate/pkg/tokens"
)

// DefaultModel is used when a request omits the model field.
const DefaultModel = "gpt-4o-mini"

// Config holds configuration for the core engine.
type Config struct {
	// DefaultModel is used when the request omits the model field.
	DefaultModel string

	// Reasoning enables <think> extraction into reasoning_content.
	Reasoning bool

	// ChunkSize and ChunkDelay pace complete upstream text into a stream.
	ChunkSize  int
	ChunkDelay time.Duration

	Validation api.ValidationConfig

	// Counter computes usage. When nil a cl100k_base counter is created.
	Counter *tokens.Counter
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{
		DefaultModel: DefaultModel,
		Reasoning:    true,
		ChunkSize:    provider.DefaultChunkSize,
		ChunkDelay:   provider.DefaultChunkDelay,
		Validation:   api.DefaultValidationConfig(),
	}
}

func (c Config) defaultModel() string {
	if c.DefaultModel == "" {
		return DefaultModel
	}
	return c.DefaultModel
}
