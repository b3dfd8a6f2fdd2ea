// Package engine implements the core of the gateway. Engine implements the
// transport handler interfaces: it resolves the requested model through the
// provider registry, applies function-call emulation and reasoning
// extraction, and writes either a normalized response or an SSE chunk
// stream. Model listing and image generation are served from the same
// registry.
package engine
