package engine

import (
	"context"
	"time"

	"github.com/nxgate/nxgate/pkg/api"
	"github.com/nxgate/nxgate/pkg/debug"
	"github.com/nxgate/nxgate/pkg/funcall"
	"github.com/nxgate/nxgate/pkg/observability"
	"github.com/nxgate/nxgate/pkg/transport"
)

// complete drains the provider output and writes one normalized response.
func (e *Engine) complete(ctx context.Context, c *call, w transport.ResponseWriter) error {
	out, start, err := e.invoke(ctx, c)
	if err != nil {
		return err
	}
	text, err := out.Collect(ctx)
	if err != nil {
		e.finish(c, start, "error", nil)
		return err
	}

	resp := e.normalize(c, text)
	e.finish(c, start, "success", resp.Usage)
	return w.WriteResponse(ctx, resp)
}

// normalize builds the response envelope for the full upstream text:
// function-call decoding when tools were offered, reasoning extraction,
// usage, and the model alias rewrite.
func (e *Engine) normalize(c *call, text string) *api.ChatCompletionResponse {
	usage := e.counter.Count(c.messages, text)
	resp := &api.ChatCompletionResponse{
		ID:      api.NewCompletionID(),
		Object:  api.ObjectChatCompletion,
		Created: time.Now().Unix(),
		Model:   c.route.Upstream,
		Choices: []api.Choice{{
			Index: 0,
			Message: api.ResponseMessage{
				Role:    api.RoleAssistant,
				Content: api.StringPtr(text),
			},
			FinishReason: api.FinishReasonStop,
		}},
		Usage: &usage,
	}

	if c.toolsOffered {
		if inv, ok := funcall.ParseFunctionCall(text); ok {
			debug.Log("funcall", "decoded function call", "model", c.requested, "name", inv.Name, "args", len(inv.Keys()))
			funcall.ApplyToResponse(resp, inv)
			observability.FunctionCallsTotal.WithLabelValues(c.requested, "complete").Inc()
		}
	}

	e.reasoning.ProcessResponse(resp)
	for _, ch := range resp.Choices {
		if ch.Message.ReasoningContent != nil {
			observability.ReasoningExtractedTotal.WithLabelValues(c.requested, "complete").Inc()
			break
		}
	}

	rewriteModel(resp, c.requested)
	return resp
}

// rewriteModel replaces every model field with the alias the client asked
// for.
func rewriteModel(resp *api.ChatCompletionResponse, requested string) {
	resp.Model = requested
	for i := range resp.Choices {
		if resp.Choices[i].Model != "" {
			resp.Choices[i].Model = requested
		}
	}
}
