package engine

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/nxgate/nxgate/pkg/api"
	"github.com/nxgate/nxgate/pkg/debug"
	"github.com/nxgate/nxgate/pkg/funcall"
	"github.com/nxgate/nxgate/pkg/observability"
	"github.com/nxgate/nxgate/pkg/provider"
	"github.com/nxgate/nxgate/pkg/reasoning"
	"github.com/nxgate/nxgate/pkg/tokens"
	"github.com/nxgate/nxgate/pkg/transport"
)

// Engine orchestrates request processing between the transport layer and
// the provider registry.
type Engine struct {
	registry  *provider.Registry
	reasoning *reasoning.Extractor
	counter   *tokens.Counter
	cfg       Config
}

var (
	_ transport.ChatCompleter  = (*Engine)(nil)
	_ transport.ImageGenerator = (*Engine)(nil)
	_ transport.ModelLister    = (*Engine)(nil)
)

// New creates an Engine. The registry must not be nil.
func New(registry *provider.Registry, cfg Config) (*Engine, error) {
	if registry == nil {
		return nil, fmt.Errorf("engine: registry must not be nil")
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = provider.DefaultChunkSize
	}
	if cfg.Validation == (api.ValidationConfig{}) {
		cfg.Validation = api.DefaultValidationConfig()
	}
	counter := cfg.Counter
	if counter == nil {
		counter = tokens.NewCounter()
	}
	return &Engine{
		registry:  registry,
		reasoning: reasoning.New(cfg.Reasoning),
		counter:   counter,
		cfg:       cfg,
	}, nil
}

// call is the per-request state shared by the complete and stream paths.
type call struct {
	requested    string
	route        provider.Route
	messages     []api.ChatMessage
	toolsOffered bool
	preq         *provider.Request
}

// CreateChatCompletion validates the request, invokes the routed provider
// and writes a complete response or a chunk stream.
func (e *Engine) CreateChatCompletion(ctx context.Context, req *api.ChatCompletionRequest, w transport.ResponseWriter) error {
	if req.Model == "" {
		req.Model = e.cfg.defaultModel()
	}
	if apiErr := api.ValidateChatRequest(req, e.cfg.Validation); apiErr != nil {
		return apiErr
	}

	route, ok := e.registry.Resolve(req.Model)
	if !ok {
		return api.NewModelNotFoundError(req.Model)
	}

	// Tools never reach the provider: they are folded into a system prompt.
	messages, offered := funcall.PrepareMessages(req.Messages, req.Tools)
	c := &call{
		requested:    req.Model,
		route:        route,
		messages:     messages,
		toolsOffered: offered,
		preq: &provider.Request{
			Model:          route.Upstream,
			RequestedModel: req.Model,
			Messages:       messages,
			Stream:         req.Stream,
			Temperature:    req.Temperature,
			TopP:           req.TopP,
			MaxTokens:      req.MaxTokens,
		},
	}

	ctx, span := observability.Tracer().Start(ctx, "chat.completion",
		trace.WithAttributes(
			attribute.String("gen_ai.request.model", req.Model),
			attribute.String("gen_ai.upstream.model", route.Upstream),
			attribute.String("nxgate.provider", route.Provider.Name()),
			attribute.Bool("nxgate.stream", req.Stream),
			attribute.Bool("nxgate.tools_offered", offered),
		),
	)
	defer span.End()

	debug.Log("providers", "routing request",
		"model", req.Model, "provider", route.Provider.Name(), "upstream", route.Upstream,
		"stream", req.Stream, "tools", len(req.Tools))

	var err error
	if req.Stream {
		err = e.stream(ctx, c, w)
	} else {
		err = e.complete(ctx, c, w)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

// invoke calls the provider. A failed call is recorded here; otherwise the
// caller records the outcome through finish once the output is consumed.
func (e *Engine) invoke(ctx context.Context, c *call) (*provider.Output, time.Time, error) {
	start := time.Now()
	out, err := c.route.Provider.Invoke(ctx, c.preq)
	if err != nil {
		e.finish(c, start, "error", nil)
		return nil, start, err
	}
	return out, start, nil
}

// finish records provider metrics once the upstream output is consumed.
func (e *Engine) finish(c *call, start time.Time, status string, usage *api.Usage) {
	name := c.route.Provider.Name()
	observability.ProviderRequestsTotal.WithLabelValues(name, c.requested, status).Inc()
	observability.ProviderLatency.WithLabelValues(name, c.requested).Observe(time.Since(start).Seconds())
	if usage == nil {
		return
	}
	observability.ProviderTokensTotal.WithLabelValues(name, c.requested, "input").Add(float64(usage.PromptTokens))
	observability.ProviderTokensTotal.WithLabelValues(name, c.requested, "output").Add(float64(usage.CompletionTokens))
}
