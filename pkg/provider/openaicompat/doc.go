// Package openaicompat is the provider adapter for any OpenAI-compatible
// Chat Completions upstream. It handles request serialization, response
// parsing, SSE streaming, image generation, model listing and error
// mapping.
//
// Other adapters reuse the Client with their own authentication (see the
// zhipu package, which supplies a signed JWT per request).
package openaicompat
