package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"

	"github.com/nxgate/nxgate/pkg/api"
	"github.com/nxgate/nxgate/pkg/observability"
	"github.com/nxgate/nxgate/pkg/transport"
)

// Adapter serves the OpenAI-compatible API over HTTP.
// It routes requests to the appropriate handler and serializes responses.
type Adapter struct {
	chat     transport.ChatCompleter
	images   transport.ImageGenerator // nil disables image generation
	models   transport.ModelLister    // nil disables the model list
	inflight *transport.InFlightRegistry
	mux      *http.ServeMux
	config   Config
}

// Config holds configuration for the HTTP adapter.
type Config struct {
	MaxBodySize int64
}

// DefaultConfig returns the default adapter configuration.
func DefaultConfig() Config {
	return Config{
		MaxBodySize: 10 << 20, // 10 MB
	}
}

// Backend bundles the operations the adapter exposes. Images and Models
// are optional.
type Backend struct {
	Chat   transport.ChatCompleter
	Images transport.ImageGenerator
	Models transport.ModelLister
}

// NewAdapter creates an HTTP adapter for the given backend.
// Middleware is applied to the ChatCompleter in the given order.
func NewAdapter(b Backend, cfg Config, middlewares ...transport.Middleware) *Adapter {
	chat := b.Chat
	if len(middlewares) > 0 {
		chat = transport.Chain(middlewares...)(chat)
	}
	if cfg.MaxBodySize <= 0 {
		cfg.MaxBodySize = DefaultConfig().MaxBodySize
	}

	a := &Adapter{
		chat:     chat,
		images:   b.Images,
		models:   b.Models,
		inflight: transport.NewInFlightRegistry(),
		mux:      http.NewServeMux(),
		config:   cfg,
	}

	a.mux.HandleFunc("POST /v1/chat/completions", a.handleChatCompletions)
	a.mux.HandleFunc("GET /v1/models", a.handleListModels)
	a.mux.HandleFunc("POST /v1/images/generations", a.handleGenerateImages)

	return a
}

// Handler returns the http.Handler for this adapter. Use this to integrate
// with an http.Server or test with httptest. The returned handler includes
// HTTP-level middleware for request ID propagation.
func (a *Adapter) Handler() http.Handler {
	return httpRequestIDMiddleware(observability.RecordRoute(a.mux))
}

// InFlight returns the registry of active streams.
func (a *Adapter) InFlight() *transport.InFlightRegistry {
	return a.inflight
}

// httpRequestIDMiddleware is HTTP-level middleware that propagates the
// X-Request-ID header. A client-supplied ID is placed in the context; the
// ID found in the context is echoed on the response before the first write.
func httpRequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := r.Header.Get("X-Request-ID"); id != "" {
			r = r.WithContext(transport.ContextWithRequestID(r.Context(), id))
		}
		rw := &requestIDResponseWriter{ResponseWriter: w, r: r}
		next.ServeHTTP(rw, r)
	})
}

// requestIDResponseWriter wraps http.ResponseWriter to inject the
// X-Request-ID header before the first write.
type requestIDResponseWriter struct {
	http.ResponseWriter
	r           *http.Request
	headersSent bool
}

func (w *requestIDResponseWriter) WriteHeader(statusCode int) {
	w.ensureRequestIDHeader()
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *requestIDResponseWriter) Write(b []byte) (int, error) {
	w.ensureRequestIDHeader()
	return w.ResponseWriter.Write(b)
}

func (w *requestIDResponseWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap returns the underlying ResponseWriter for http.NewResponseController.
func (w *requestIDResponseWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

func (w *requestIDResponseWriter) ensureRequestIDHeader() {
	if w.headersSent {
		return
	}
	w.headersSent = true
	if id := transport.RequestIDFromContext(w.r.Context()); id != "" {
		w.ResponseWriter.Header().Set("X-Request-ID", id)
	}
}

// decodeJSON checks the content type, limits the body and decodes it into v.
// On failure the error response has been written and false is returned.
func (a *Adapter) decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if ct := r.Header.Get("Content-Type"); ct != "" {
		if mt, _, err := mime.ParseMediaType(ct); err != nil || mt != "application/json" {
			transport.WriteErrorResponse(w,
				api.NewValidationError("content_type", "Content-Type must be application/json"),
				http.StatusUnsupportedMediaType,
			)
			return false
		}
	}

	r.Body = http.MaxBytesReader(w, r.Body, a.config.MaxBodySize)

	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			transport.WriteErrorResponse(w,
				api.NewValidationError("body", fmt.Sprintf("request body too large (max %d bytes)", a.config.MaxBodySize)),
				http.StatusRequestEntityTooLarge,
			)
			return false
		}
		transport.WriteAPIError(w, api.NewValidationError("body", "invalid JSON: "+err.Error()))
		return false
	}
	return true
}

// handleChatCompletions handles POST /v1/chat/completions.
func (a *Adapter) handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	var req api.ChatCompletionRequest
	if !a.decodeJSON(w, r, &req) {
		return
	}

	if req.Stream {
		a.handleStreamingCompletion(w, r, &req)
		return
	}

	rw := newSSEResponseWriter(w, nil)
	if err := a.chat.CreateChatCompletion(r.Context(), &req, rw); err != nil {
		a.writeHandlerError(w, rw, err)
	}
}

// handleStreamingCompletion handles streaming requests (stream: true). The
// stream is registered in the in-flight registry under its completion ID
// so that shutdown can cancel it.
func (a *Adapter) handleStreamingCompletion(w http.ResponseWriter, r *http.Request, req *api.ChatCompletionRequest) {
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	var registeredID string
	rw := newSSEResponseWriter(w, func(id string) {
		registeredID = id
		a.inflight.Register(id, cancel)
	})

	err := a.chat.CreateChatCompletion(ctx, req, rw)

	if registeredID != "" {
		a.inflight.Remove(registeredID)
	}

	if err != nil {
		a.writeHandlerError(w, rw, err)
	}
}

// handleListModels handles GET /v1/models.
func (a *Adapter) handleListModels(w http.ResponseWriter, r *http.Request) {
	if a.models == nil {
		transport.WriteErrorResponse(w,
			api.NewConfigurationError("model listing is not available"),
			http.StatusNotImplemented,
		)
		return
	}
	list, err := a.models.ListModels(r.Context())
	if err != nil {
		transport.WriteAPIError(w, transport.AsAPIError(err))
		return
	}
	writeJSON(w, list)
}

// handleGenerateImages handles POST /v1/images/generations.
func (a *Adapter) handleGenerateImages(w http.ResponseWriter, r *http.Request) {
	if a.images == nil {
		transport.WriteErrorResponse(w,
			api.NewConfigurationError("image generation is not available"),
			http.StatusNotImplemented,
		)
		return
	}

	var req api.ImageRequest
	if !a.decodeJSON(w, r, &req) {
		return
	}

	resp, err := a.images.GenerateImages(r.Context(), &req)
	if err != nil {
		apiErr := transport.AsAPIError(err)
		slog.Warn("image generation failed",
			"request_id", transport.RequestIDFromContext(r.Context()),
			"code", string(apiErr.Code),
			"error", apiErr.Message,
		)
		transport.WriteAPIError(w, apiErr)
		return
	}
	writeJSON(w, resp)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("failed to encode response", "error", err)
	}
}

// writeHandlerError writes an error response from the handler. If streaming
// has already started, the error envelope is sent as a final data event.
// Otherwise it writes a standard JSON error response.
func (a *Adapter) writeHandlerError(w http.ResponseWriter, rw *sseResponseWriter, err error) {
	apiErr := transport.AsAPIError(err)

	if rw.hasStartedStreaming() {
		if werr := rw.writeError(apiErr); werr != nil {
			slog.Debug("could not deliver stream error", "error", werr.Error())
		}
		return
	}

	transport.WriteAPIError(w, apiErr)
}
