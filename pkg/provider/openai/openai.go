// Package openai adapts upstreams reachable through the official OpenAI Go
// SDK. It covers chat completions, model discovery and image generation.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/nxgate/nxgate/pkg/api"
	"github.com/nxgate/nxgate/pkg/debug"
	"github.com/nxgate/nxgate/pkg/provider"
)

// Config configures the SDK adapter.
type Config struct {
	// Name identifies the provider. Default: "openai".
	Name string

	// BaseURL overrides the SDK default endpoint.
	BaseURL string

	APIKey string

	// Headers are added to every upstream request.
	Headers map[string]string

	// Timeout bounds each request. Default: 120s.
	Timeout time.Duration

	HTTPClient *http.Client
}

// Provider implements provider.Provider, provider.ImageGenerator and
// provider.ModelLister on top of the OpenAI SDK.
type Provider struct {
	name    string
	timeout time.Duration
	client  *openai.Client
}

var (
	_ provider.Provider       = (*Provider)(nil)
	_ provider.ImageGenerator = (*Provider)(nil)
	_ provider.ModelLister    = (*Provider)(nil)
)

// New builds the SDK client.
func New(cfg Config) *Provider {
	name := cfg.Name
	if name == "" {
		name = "openai"
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = provider.NewHTTPClient(provider.ProxyFromEnvironment(), 0)
	}

	var opts []option.RequestOption
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	for k, v := range cfg.Headers {
		opts = append(opts, option.WithHeader(k, v))
	}
	opts = append(opts, option.WithHTTPClient(hc), option.WithMaxRetries(0))

	client := openai.NewClient(opts...)
	return &Provider{name: name, timeout: timeout, client: &client}
}

// Name returns the provider identifier.
func (p *Provider) Name() string {
	return p.name
}

// Invoke sends the request and returns complete text, or a fragment stream
// when req.Stream is set.
func (p *Provider) Invoke(ctx context.Context, req *provider.Request) (*provider.Output, error) {
	params := buildParams(req)
	debug.Log("providers", "sdk request", "provider", p.name, "model", req.Model, "stream", req.Stream)

	if !req.Stream {
		ctx, cancel := context.WithTimeout(ctx, p.timeout)
		defer cancel()
		completion, err := p.client.Chat.Completions.New(ctx, params)
		if err != nil {
			return nil, p.mapError(err)
		}
		if len(completion.Choices) == 0 {
			return nil, api.NewUpstreamError(0, fmt.Sprintf("%s: response has no choices", p.name))
		}
		return provider.TextOutput(completion.Choices[0].Message.Content), nil
	}

	stream := p.client.Chat.Completions.NewStreaming(ctx, params)
	ch := make(chan provider.Fragment, 16)
	go func() {
		defer close(ch)
		defer stream.Close()
		for stream.Next() {
			chunk := stream.Current()
			for _, choice := range chunk.Choices {
				if choice.Delta.Content == "" {
					continue
				}
				select {
				case ch <- provider.Fragment{Text: choice.Delta.Content}:
				case <-ctx.Done():
					return
				}
			}
		}
		if err := stream.Err(); err != nil && ctx.Err() == nil {
			select {
			case ch <- provider.Fragment{Err: p.mapError(err)}:
			case <-ctx.Done():
			}
		}
	}()
	return provider.StreamOutput(ch), nil
}

// GenerateImage requests a single image and returns its URL.
func (p *Provider) GenerateImage(ctx context.Context, req *provider.ImageRequest) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	params := openai.ImageGenerateParams{
		Prompt: req.Prompt,
		Model:  openai.ImageModel(req.Model),
		N:      openai.Int(1),
	}
	if req.Size != "" {
		params.Size = openai.ImageGenerateParamsSize(req.Size)
	}
	resp, err := p.client.Images.Generate(ctx, params)
	if err != nil {
		return "", p.mapError(err)
	}
	urls := make([]string, 0, len(resp.Data))
	for _, img := range resp.Data {
		if img.URL != "" {
			urls = append(urls, img.URL)
		}
	}
	return strings.Join(urls, "\n"), nil
}

// ListModels returns the upstream model catalog.
func (p *Provider) ListModels(ctx context.Context) ([]provider.ModelInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	page, err := p.client.Models.List(ctx)
	if err != nil {
		return nil, p.mapError(err)
	}
	models := make([]provider.ModelInfo, 0, len(page.Data))
	for _, m := range page.Data {
		models = append(models, provider.ModelInfo{ID: m.ID, Object: "model", OwnedBy: m.OwnedBy})
	}
	return models, nil
}

func buildParams(req *provider.Request) openai.ChatCompletionNewParams {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages))
	for _, m := range req.Messages {
		switch m.Role {
		case api.RoleSystem:
			messages = append(messages, openai.SystemMessage(m.Content))
		case api.RoleAssistant:
			messages = append(messages, openai.AssistantMessage(m.Content))
		default:
			messages = append(messages, openai.UserMessage(m.Content))
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(req.Model),
		Messages: messages,
	}
	if req.Temperature != nil {
		params.Temperature = openai.Float(*req.Temperature)
	}
	if req.TopP != nil {
		params.TopP = openai.Float(*req.TopP)
	}
	if req.MaxTokens != nil {
		params.MaxTokens = openai.Int(int64(*req.MaxTokens))
	}
	return params
}

// mapError converts SDK errors into gateway errors. Rate limits keep their
// status; everything else surfaces as a bad gateway.
func (p *Provider) mapError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		status := 0
		if apiErr.StatusCode == http.StatusTooManyRequests {
			status = http.StatusTooManyRequests
		}
		msg := apiErr.Message
		if msg == "" {
			msg = http.StatusText(apiErr.StatusCode)
		}
		return api.NewUpstreamError(status, fmt.Sprintf("%s: upstream returned %d: %s", p.name, apiErr.StatusCode, msg))
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return api.NewUpstreamError(http.StatusGatewayTimeout, fmt.Sprintf("%s: request timed out", p.name))
	}
	return api.NewUpstreamError(0, fmt.Sprintf("%s: %s", p.name, err.Error()))
}
