package transport

import (
	"context"

	"github.com/nxgate/nxgate/pkg/api"
)

// ChatCompleter handles the chat completion operation. The implementation
// writes either one complete response or a sequence of chunks to the
// ResponseWriter.
type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, req *api.ChatCompletionRequest, w ResponseWriter) error
}

// ChatCompleterFunc is an adapter that allows using an ordinary function
// as a ChatCompleter.
type ChatCompleterFunc func(ctx context.Context, req *api.ChatCompletionRequest, w ResponseWriter) error

// CreateChatCompletion calls f(ctx, req, w).
func (f ChatCompleterFunc) CreateChatCompletion(ctx context.Context, req *api.ChatCompletionRequest, w ResponseWriter) error {
	return f(ctx, req, w)
}

// ImageGenerator handles image generation requests.
type ImageGenerator interface {
	GenerateImages(ctx context.Context, req *api.ImageRequest) (*api.ImageResponse, error)
}

// ModelLister serves the model catalog.
type ModelLister interface {
	ListModels(ctx context.Context) (*api.ModelList, error)
}

// ResponseWriter abstracts streaming and non-streaming output for the handler.
//
// WriteChunk and WriteResponse are mutually exclusive on a single writer
// instance. A chunk whose choice carries a finish reason is terminal: the
// writer sends the [DONE] sentinel after it and rejects further writes.
type ResponseWriter interface {
	// WriteChunk sends a single streaming chunk. Returns an error if called
	// after a terminal chunk or after WriteResponse.
	WriteChunk(ctx context.Context, chunk *api.ChatCompletionChunk) error

	// WriteResponse sends a complete non-streaming response. Returns an error
	// if called after WriteChunk.
	WriteResponse(ctx context.Context, resp *api.ChatCompletionResponse) error

	// Flush ensures buffered data is sent to the client. Returns an error
	// if the client has disconnected.
	Flush() error
}
