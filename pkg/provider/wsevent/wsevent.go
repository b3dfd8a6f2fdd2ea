// Package wsevent adapts chat upstreams that answer over a WebSocket event
// protocol: the client creates a conversation over HTTPS, opens a socket,
// sends one "send" event, and receives appendText/replaceText events until
// "done" or "error".
package wsevent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nxgate/nxgate/pkg/api"
	"github.com/nxgate/nxgate/pkg/debug"
	"github.com/nxgate/nxgate/pkg/provider"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

// Config configures the adapter.
type Config struct {
	// Name identifies the provider. Default: "copilot".
	Name string

	// BaseURL is the HTTPS root hosting /c/api/user and /c/api/conversations.
	BaseURL string

	// SocketURL is the WebSocket chat endpoint. The access token is
	// appended as the accessToken query parameter.
	SocketURL string

	AccessToken string
	UserAgent   string

	// Timeout bounds the whole exchange. Default: 60s.
	Timeout time.Duration

	HTTPClient *http.Client
	Proxy      provider.ProxyConfig
}

// Provider implements provider.Provider over the WebSocket event protocol.
type Provider struct {
	cfg        Config
	httpClient *http.Client
	dialer     *websocket.Dialer
}

var _ provider.Provider = (*Provider)(nil)

// New validates cfg and returns a Provider.
func New(cfg Config) (*Provider, error) {
	if cfg.BaseURL == "" || cfg.SocketURL == "" {
		return nil, fmt.Errorf("wsevent: BaseURL and SocketURL are required")
	}
	if cfg.AccessToken == "" {
		return nil, fmt.Errorf("wsevent: AccessToken is required")
	}
	if cfg.Name == "" {
		cfg.Name = "copilot"
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = provider.NewHTTPClient(cfg.Proxy, 0)
	}
	return &Provider{
		cfg:        cfg,
		httpClient: hc,
		dialer: &websocket.Dialer{
			Proxy:            cfg.Proxy.ProxyFunc(),
			HandshakeTimeout: 15 * time.Second,
		},
	}, nil
}

// Name returns the provider identifier.
func (p *Provider) Name() string {
	return p.cfg.Name
}

// Mode maps a model name onto the upstream conversation mode.
func Mode(model string) string {
	switch {
	case strings.Contains(model, "Think") || strings.Contains(model, "o1"):
		return "reasoning"
	case strings.Contains(model, "GPT-5") || strings.Contains(model, "gpt-5") || strings.Contains(model, "Smart"):
		return "smart"
	default:
		return "chat"
	}
}

// FormatPrompt flattens the conversation into one prompt. User turns are
// sent verbatim, other roles are prefixed.
func FormatPrompt(messages []api.ChatMessage) string {
	parts := make([]string, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case api.RoleAssistant:
			parts = append(parts, "Assistant: "+m.Content)
		case api.RoleSystem:
			parts = append(parts, "System: "+m.Content)
		default:
			parts = append(parts, m.Content)
		}
	}
	return strings.Join(parts, "\n\n")
}

type sendEvent struct {
	Event          string        `json:"event"`
	ConversationID string        `json:"conversationId"`
	Content        []contentPart `json:"content"`
	Mode           string        `json:"mode"`
}

type contentPart struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type serverEvent struct {
	Event   string `json:"event"`
	Text    string `json:"text"`
	Message string `json:"message"`
}

// Invoke runs one exchange and returns the complete answer. replaceText
// events rewrite earlier text, so the answer is only final at "done".
func (p *Provider) Invoke(ctx context.Context, req *provider.Request) (*provider.Output, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	if err := p.verifyUser(ctx); err != nil {
		return nil, err
	}
	convID, err := p.createConversation(ctx)
	if err != nil {
		return nil, err
	}

	model := req.RequestedModel
	if model == "" {
		model = req.Model
	}
	mode := Mode(model)
	debug.Log("providers", "websocket exchange", "provider", p.cfg.Name, "conversation", convID, "mode", mode)

	text, err := p.exchange(ctx, convID, FormatPrompt(req.Messages), mode)
	if err != nil {
		return nil, err
	}
	return provider.TextOutput(text), nil
}

func (p *Provider) exchange(ctx context.Context, convID, prompt, mode string) (string, error) {
	u, err := url.Parse(p.cfg.SocketURL)
	if err != nil {
		return "", api.NewConfigurationError(fmt.Sprintf("%s: invalid socket URL: %s", p.cfg.Name, err.Error()))
	}
	q := u.Query()
	q.Set("accessToken", p.cfg.AccessToken)
	u.RawQuery = q.Encode()

	header := http.Header{}
	header.Set("User-Agent", p.cfg.UserAgent)

	conn, resp, err := p.dialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if resp != nil {
			return "", api.NewUpstreamError(0, fmt.Sprintf("%s: websocket handshake failed (HTTP %d)", p.cfg.Name, resp.StatusCode))
		}
		return "", api.NewUpstreamError(0, fmt.Sprintf("%s: websocket error: %s", p.cfg.Name, err.Error()))
	}
	defer conn.Close()

	// Unblock ReadMessage when the context ends.
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	if err := conn.WriteJSON(sendEvent{
		Event:          "send",
		ConversationID: convID,
		Content:        []contentPart{{Type: "text", Text: prompt}},
		Mode:           mode,
	}); err != nil {
		return "", api.NewUpstreamError(0, fmt.Sprintf("%s: websocket write: %s", p.cfg.Name, err.Error()))
	}

	var text string
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return "", api.NewUpstreamError(http.StatusGatewayTimeout, fmt.Sprintf("%s: request timed out", p.cfg.Name))
			}
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			// A closed socket after some text is treated as a finished answer.
			if strings.TrimSpace(text) != "" {
				return strings.TrimSpace(text), nil
			}
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) {
				return "", api.NewUpstreamError(0, fmt.Sprintf("%s: connection closed unexpectedly", p.cfg.Name))
			}
			return "", api.NewUpstreamError(0, fmt.Sprintf("%s: websocket error: %s", p.cfg.Name, err.Error()))
		}

		var ev serverEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			slog.Warn("skipping malformed websocket event",
				"provider", p.cfg.Name,
				"error", err.Error(),
				"data", debug.Truncate(string(data), 200),
			)
			continue
		}

		switch ev.Event {
		case "appendText":
			text += ev.Text
		case "replaceText":
			text = ev.Text
		case "done":
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			if strings.TrimSpace(text) == "" {
				return "", api.NewUpstreamError(0, fmt.Sprintf("%s: empty response", p.cfg.Name))
			}
			return strings.TrimSpace(text), nil
		case "error":
			msg := ev.Message
			if msg == "" {
				msg = "unknown error"
			}
			return "", api.NewUpstreamError(0, fmt.Sprintf("%s: %s", p.cfg.Name, msg))
		}
	}
}

func (p *Provider) verifyUser(ctx context.Context) error {
	var user struct {
		FirstName string `json:"firstName"`
	}
	status, err := p.doJSON(ctx, http.MethodGet, "/c/api/user", &user)
	if err != nil {
		return err
	}
	if status == http.StatusUnauthorized {
		return api.NewUpstreamError(0, fmt.Sprintf("%s: invalid access token", p.cfg.Name))
	}
	if user.FirstName == "" {
		return api.NewUpstreamError(0, fmt.Sprintf("%s: user profile not found, sign in first", p.cfg.Name))
	}
	return nil
}

func (p *Provider) createConversation(ctx context.Context) (string, error) {
	var conv struct {
		ID string `json:"id"`
	}
	status, err := p.doJSON(ctx, http.MethodPost, "/c/api/conversations", &conv)
	if err != nil {
		return "", err
	}
	if status >= 300 || conv.ID == "" {
		return "", api.NewUpstreamError(0, fmt.Sprintf("%s: failed to create conversation (HTTP %d)", p.cfg.Name, status))
	}
	return conv.ID, nil
}

func (p *Provider) doJSON(ctx context.Context, method, path string, out any) (int, error) {
	var body *strings.Reader
	if method == http.MethodPost {
		body = strings.NewReader("{}")
	} else {
		body = strings.NewReader("")
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(p.cfg.BaseURL, "/")+path, body)
	if err != nil {
		return 0, api.NewInternalError(fmt.Sprintf("failed to create HTTP request: %s", err.Error()))
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.cfg.AccessToken)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("User-Agent", p.cfg.UserAgent)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return 0, api.NewUpstreamError(0, fmt.Sprintf("%s: connection error: %s", p.cfg.Name, err.Error()))
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, api.NewUpstreamError(0, fmt.Sprintf("%s: malformed response: %s", p.cfg.Name, err.Error()))
		}
	}
	return resp.StatusCode, nil
}
