// Package provider defines the uniform contract for upstream backends and
// the registry that routes a client model alias to one of them.
//
// Every adapter implements [Provider]: it receives the conversation and the
// upstream model identifier and returns either a complete string or a
// channel of text fragments ([Output]). Adapters live in subpackages
// (openaicompat, openai, zhipu, wsevent, static) and share the proxy-aware
// HTTP client built by [NewHTTPClient]. [Chunk] turns a complete string
// into a paced fragment stream for clients that asked to stream.
package provider
