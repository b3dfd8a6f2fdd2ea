// Package api defines the wire types of the nxgate OpenAI-compatible API.
//
// This package provides the request and response envelopes for chat
// completions (including streaming chunks), model listing and image
// generation, together with the error envelope and ID generation.
//
// The package has zero external dependencies (Go standard library only) and
// performs no I/O. All types produce JSON compatible with the OpenAI Chat
// Completions wire format, enabling client library compatibility.
//
// Core types:
//   - [ChatCompletionRequest]: Client request with messages and optional tools
//   - [ChatCompletionResponse]: Non-streaming response envelope
//   - [ChatCompletionChunk]: One server-sent event of a streaming response
//   - [APIError]: Structured error with message and code
package api
