// Package transport defines the handler interfaces and middleware chain for
// the nxgate HTTP/SSE transport layer.
//
// The transport layer bridges OpenAI-compatible clients and the gateway
// engine. It decodes incoming requests into the types defined in pkg/api,
// dispatches them for processing, and writes results back either as one
// JSON document or as a Server-Sent Events chunk stream.
//
// # Handler Interfaces
//
//   - ChatCompleter handles POST /v1/chat/completions.
//   - ImageGenerator handles POST /v1/images/generations.
//   - ModelLister handles GET /v1/models.
//
// The ResponseWriter interface abstracts streaming and non-streaming output,
// allowing the engine to emit chunks or a complete response without knowing
// the wire framing.
//
// # Middleware
//
// The middleware chain wraps ChatCompleter with cross-cutting concerns:
// panic recovery, request ID assignment (X-Request-ID), and structured
// logging via log/slog.
package transport
