// Package static provides a provider that answers every request with
// configured text. It backs smoke tests and demo deployments that have no
// real upstream.
package static

import (
	"context"
	"strings"

	"github.com/nxgate/nxgate/pkg/api"
	"github.com/nxgate/nxgate/pkg/provider"
)

// Config configures a static provider.
type Config struct {
	// Name identifies the provider. Default: "static".
	Name string

	// Reply is returned for every chat request. When empty the last user
	// message is echoed back.
	Reply string

	// ImageText is returned for image requests. It may contain any number
	// of links.
	ImageText string

	// Stream makes Invoke return fragments split on whitespace instead of
	// complete text.
	Stream bool
}

// Provider implements provider.Provider and provider.ImageGenerator.
type Provider struct {
	cfg Config
}

var (
	_ provider.Provider       = (*Provider)(nil)
	_ provider.ImageGenerator = (*Provider)(nil)
)

// New returns a static provider.
func New(cfg Config) *Provider {
	if cfg.Name == "" {
		cfg.Name = "static"
	}
	return &Provider{cfg: cfg}
}

func (p *Provider) Name() string { return p.cfg.Name }

func (p *Provider) Invoke(ctx context.Context, req *provider.Request) (*provider.Output, error) {
	text := p.cfg.Reply
	if text == "" {
		text = lastUser(req.Messages)
	}
	if !p.cfg.Stream {
		return provider.TextOutput(text), nil
	}

	ch := make(chan provider.Fragment)
	go func() {
		defer close(ch)
		for _, word := range strings.SplitAfter(text, " ") {
			select {
			case ch <- provider.Fragment{Text: word}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return provider.StreamOutput(ch), nil
}

func (p *Provider) GenerateImage(ctx context.Context, req *provider.ImageRequest) (string, error) {
	if p.cfg.ImageText == "" {
		return "", api.NewUpstreamError(0, p.cfg.Name+": no image configured")
	}
	return p.cfg.ImageText, nil
}

func lastUser(messages []api.ChatMessage) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == api.RoleUser {
			return messages[i].Content
		}
	}
	return ""
}
