package provider

import (
	"context"
	"strings"

	"github.com/nxgate/nxgate/pkg/api"
)

// Request is the provider-facing request. It never carries tool
// definitions: tool use is already encoded into Messages.
type Request struct {
	// Model is the upstream model identifier.
	Model string

	// RequestedModel is the alias the client asked for. Adapters that
	// branch on the model family use it instead of any shared state.
	RequestedModel string

	Messages []api.ChatMessage

	// Stream reports that the client asked for a streaming response.
	// Adapters may still return complete text.
	Stream bool

	Temperature *float64
	TopP        *float64
	MaxTokens   *int
}

// Fragment is one piece of streamed upstream text. A non-nil Err ends the
// stream.
type Fragment struct {
	Text string
	Err  error
}

// Output is the result of Provider.Invoke. Exactly one of Text or Stream
// is meaningful: when Stream is non-nil the producer closes it after the
// last fragment.
type Output struct {
	Text   string
	Stream <-chan Fragment
}

// TextOutput wraps a complete response.
func TextOutput(text string) *Output {
	return &Output{Text: text}
}

// StreamOutput wraps a fragment channel.
func StreamOutput(ch <-chan Fragment) *Output {
	return &Output{Stream: ch}
}

// IsStream reports whether the output is a fragment stream.
func (o *Output) IsStream() bool {
	return o.Stream != nil
}

// Collect drains the output into a single string. A fragment error aborts
// collection and is returned along with the text received so far.
func (o *Output) Collect(ctx context.Context) (string, error) {
	if !o.IsStream() {
		return o.Text, nil
	}
	var sb strings.Builder
	for {
		select {
		case <-ctx.Done():
			return sb.String(), ctx.Err()
		case f, ok := <-o.Stream:
			if !ok {
				return sb.String(), nil
			}
			if f.Err != nil {
				return sb.String(), f.Err
			}
			sb.WriteString(f.Text)
		}
	}
}

// ImageRequest is the provider-facing image generation request.
type ImageRequest struct {
	Model          string
	RequestedModel string
	Prompt         string
	Size           string
}

// ModelInfo holds information about a model served by the provider.
type ModelInfo struct {
	ID      string `json:"id"`
	Object  string `json:"object,omitempty"`
	OwnedBy string `json:"owned_by,omitempty"`
}
