package openaicompat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/nxgate/nxgate/pkg/api"
	"github.com/nxgate/nxgate/pkg/debug"
	"github.com/nxgate/nxgate/pkg/provider"
)

// TokenFunc returns the bearer token for one upstream request.
type TokenFunc func(ctx context.Context) (string, error)

// Config configures a Client.
type Config struct {
	// Name identifies the provider in routing and model ownership.
	Name string

	// BaseURL is the API root including the version segment, e.g.
	// "https://api.openai.com/v1". Endpoint paths are appended to it.
	BaseURL string

	// APIKey is sent as a bearer token. Ignored when Token is set.
	APIKey string

	// Token supplies a per-request bearer token (e.g., a signed JWT).
	Token TokenFunc

	// Headers are added to every upstream request.
	Headers map[string]string

	// Timeout bounds non-streaming requests. Defaults to 120s.
	Timeout time.Duration

	// HTTPClient is the base client. Its Timeout is ignored for streams.
	HTTPClient *http.Client
}

// Client talks to an OpenAI-compatible Chat Completions backend. It
// implements provider.Provider, provider.ModelLister and
// provider.ImageGenerator.
type Client struct {
	cfg        Config
	httpClient *http.Client
	baseURL    string
}

var (
	_ provider.Provider       = (*Client)(nil)
	_ provider.ModelLister    = (*Client)(nil)
	_ provider.ImageGenerator = (*Client)(nil)
)

// New creates a Client. BaseURL is required.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("openaicompat: BaseURL is required")
	}
	if cfg.Name == "" {
		cfg.Name = "openai-compatible"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = provider.NewHTTPClient(provider.ProxyFromEnvironment(), 0)
	}
	return &Client{
		cfg:        cfg,
		httpClient: hc,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
	}, nil
}

// Name returns the provider identifier.
func (c *Client) Name() string {
	return c.cfg.Name
}

// Invoke sends the conversation to /chat/completions. A streaming request
// returns a fragment channel fed from the upstream SSE stream; otherwise
// the complete message text is returned. Upstream reasoning_content is
// re-embedded as a leading <think> segment.
func (c *Client) Invoke(ctx context.Context, req *provider.Request) (*provider.Output, error) {
	chatReq := ChatCompletionRequest{
		Model:       req.Model,
		Temperature: req.Temperature,
		TopP:        req.TopP,
		MaxTokens:   req.MaxTokens,
		Stream:      req.Stream,
	}
	for _, m := range req.Messages {
		chatReq.Messages = append(chatReq.Messages, ChatMessage{Role: string(m.Role), Content: m.Content})
	}

	if req.Stream {
		return c.stream(ctx, &chatReq)
	}
	return c.complete(ctx, &chatReq)
}

func (c *Client) complete(ctx context.Context, chatReq *ChatCompletionRequest) (*provider.Output, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	httpResp, err := c.post(reqCtx, "/chat/completions", chatReq, false)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	var chatResp ChatCompletionResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&chatResp); err != nil {
		return nil, api.NewUpstreamError(0, fmt.Sprintf("failed to parse upstream response: %s", err.Error()))
	}
	if len(chatResp.Choices) == 0 {
		return nil, api.NewUpstreamError(0, "upstream returned no choices")
	}

	msg := chatResp.Choices[0].Message
	text := ContentString(msg.Content)
	if msg.ReasoningContent != nil && *msg.ReasoningContent != "" {
		text = "<think>" + *msg.ReasoningContent + "</think>" + text
	}
	return provider.TextOutput(text), nil
}

// stream does not apply the client timeout: a stream can legitimately
// outlive it. The context controls the request lifetime instead.
func (c *Client) stream(ctx context.Context, chatReq *ChatCompletionRequest) (*provider.Output, error) {
	httpResp, err := c.post(ctx, "/chat/completions", chatReq, true)
	if err != nil {
		return nil, err
	}

	ch := make(chan provider.Fragment, 16)
	go func() {
		defer close(ch)
		defer httpResp.Body.Close()
		ParseSSEStream(ctx, httpResp.Body, ch)
	}()

	return provider.StreamOutput(ch), nil
}

// ListModels queries /models.
func (c *Client) ListModels(ctx context.Context) ([]provider.ModelInfo, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(reqCtx, http.MethodGet, c.baseURL+"/models", nil)
	if err != nil {
		return nil, api.NewInternalError(fmt.Sprintf("failed to create HTTP request: %s", err.Error()))
	}
	if err := c.authorize(reqCtx, httpReq); err != nil {
		return nil, err
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, MapNetworkError(err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, MapHTTPError(httpResp)
	}

	var modelsResp ChatModelsResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&modelsResp); err != nil {
		return nil, api.NewUpstreamError(0, fmt.Sprintf("failed to parse models response: %s", err.Error()))
	}

	models := make([]provider.ModelInfo, 0, len(modelsResp.Data))
	for _, m := range modelsResp.Data {
		models = append(models, provider.ModelInfo{ID: m.ID, Object: m.Object, OwnedBy: m.OwnedBy})
	}
	return models, nil
}

// GenerateImage calls /images/generations for one image and returns the
// resulting URLs separated by newlines.
func (c *Client) GenerateImage(ctx context.Context, req *provider.ImageRequest) (string, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	httpResp, err := c.post(reqCtx, "/images/generations", ImageGenerationRequest{
		Model:  req.Model,
		Prompt: req.Prompt,
		N:      1,
		Size:   req.Size,
	}, false)
	if err != nil {
		return "", err
	}
	defer httpResp.Body.Close()

	var imgResp ImageGenerationResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&imgResp); err != nil {
		return "", api.NewUpstreamError(0, fmt.Sprintf("failed to parse image response: %s", err.Error()))
	}

	urls := make([]string, 0, len(imgResp.Data))
	for _, d := range imgResp.Data {
		if d.URL != "" {
			urls = append(urls, d.URL)
		}
	}
	return strings.Join(urls, "\n"), nil
}

// post sends a JSON body and returns the response when the status is 2xx.
func (c *Client) post(ctx context.Context, path string, body any, stream bool) (*http.Response, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, api.NewInternalError(fmt.Sprintf("failed to marshal request: %s", err.Error()))
	}

	url := c.baseURL + path
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, api.NewInternalError(fmt.Sprintf("failed to create HTTP request: %s", err.Error()))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if stream {
		httpReq.Header.Set("Accept", "text/event-stream")
	}
	if err := c.authorize(ctx, httpReq); err != nil {
		return nil, err
	}

	debug.Log("providers", "upstream request", "provider", c.cfg.Name, "url", url, "stream", stream)
	debug.Trace("providers", "upstream request body", "provider", c.cfg.Name, "body", string(data))

	client := c.httpClient
	if stream {
		client = &http.Client{Transport: c.httpClient.Transport}
	}
	httpResp, err := client.Do(httpReq)
	if err != nil {
		return nil, MapNetworkError(err)
	}
	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		defer httpResp.Body.Close()
		return nil, MapHTTPError(httpResp)
	}
	return httpResp, nil
}

func (c *Client) authorize(ctx context.Context, httpReq *http.Request) error {
	for k, v := range c.cfg.Headers {
		httpReq.Header.Set(k, v)
	}
	token := c.cfg.APIKey
	if c.cfg.Token != nil {
		t, err := c.cfg.Token(ctx)
		if err != nil {
			return api.NewConfigurationError(fmt.Sprintf("%s: upstream credentials: %s", c.cfg.Name, err.Error()))
		}
		token = t
	}
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}
	return nil
}

// ContentString extracts text from a Chat Completions content value, which
// is a string, null, or an array of content parts.
func ContentString(content any) string {
	switch v := content.(type) {
	case string:
		return v
	case []any:
		var sb strings.Builder
		for _, p := range v {
			part, ok := p.(map[string]any)
			if !ok {
				continue
			}
			if text, ok := part["text"].(string); ok {
				sb.WriteString(text)
			}
		}
		return sb.String()
	default:
		return ""
	}
}
