package provider

import (
	"context"
)

// Provider is an upstream chat backend. Each adapter handles its own
// transport (REST, SSE, WebSocket) and its own upstream authentication.
//
// Implementations must be safe for concurrent use by multiple goroutines.
type Provider interface {
	// Name returns the provider identifier used in routing and model
	// ownership (e.g., "zhipu", "copilot").
	Name() string

	// Invoke sends the conversation upstream. The returned Output holds
	// either the complete text or a channel of fragments.
	Invoke(ctx context.Context, req *Request) (*Output, error)
}

// ImageGenerator is an upstream that produces images from a prompt. The
// result is free text; image URLs are extracted from it by the caller.
type ImageGenerator interface {
	Name() string
	GenerateImage(ctx context.Context, req *ImageRequest) (string, error)
}

// ModelLister is implemented by providers that can report the models they
// serve. The registry uses it to discover routes at startup.
type ModelLister interface {
	ListModels(ctx context.Context) ([]ModelInfo, error)
}
