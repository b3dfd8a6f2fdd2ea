package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nxgate/nxgate/pkg/config"
	"github.com/nxgate/nxgate/pkg/provider"
	"github.com/nxgate/nxgate/pkg/provider/openai"
	"github.com/nxgate/nxgate/pkg/provider/openaicompat"
	"github.com/nxgate/nxgate/pkg/provider/static"
	"github.com/nxgate/nxgate/pkg/provider/wsevent"
	"github.com/nxgate/nxgate/pkg/provider/zhipu"
)

const discoveryTimeout = 15 * time.Second

// buildRegistry creates every configured provider and registers its chat
// and image models. Providers without a static model table rely on
// discovery, which also runs when engine.discover_models is set.
func buildRegistry(ctx context.Context, cfg *config.Config) (*provider.Registry, error) {
	proxy := proxyConfig(cfg.Proxy)
	registry := provider.NewRegistry()

	discover := cfg.Engine.DiscoverModels
	for i, pc := range cfg.Providers {
		p, err := newProvider(pc, proxy)
		if err != nil {
			return nil, fmt.Errorf("providers[%d] (%s): %w", i, pc.DisplayName(), err)
		}
		registry.Register(p, pc.Models)
		if len(pc.Models) == 0 {
			discover = true
		}

		if len(pc.ImageModels) > 0 {
			g, ok := p.(provider.ImageGenerator)
			if !ok {
				return nil, fmt.Errorf("providers[%d] (%s): type %q does not generate images", i, pc.DisplayName(), pc.Type)
			}
			registry.RegisterImages(g, pc.ImageModels)
		}

		slog.Info("provider registered",
			"name", p.Name(),
			"type", pc.Type,
			"models", len(pc.Models),
			"image_models", len(pc.ImageModels),
		)
	}

	if discover {
		dctx, cancel := context.WithTimeout(ctx, discoveryTimeout)
		defer cancel()
		if err := registry.Discover(dctx); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

func newProvider(pc config.ProviderConfig, proxy provider.ProxyConfig) (provider.Provider, error) {
	name := pc.DisplayName()
	switch pc.Type {
	case config.ProviderOpenAICompat:
		return openaicompat.New(openaicompat.Config{
			Name:       name,
			BaseURL:    pc.BaseURL,
			APIKey:     pc.APIKey,
			Headers:    pc.Headers,
			Timeout:    pc.Timeout,
			HTTPClient: provider.NewHTTPClient(proxy, 0),
		})
	case config.ProviderOpenAI:
		return openai.New(openai.Config{
			Name:       name,
			BaseURL:    pc.BaseURL,
			APIKey:     pc.APIKey,
			Headers:    pc.Headers,
			Timeout:    pc.Timeout,
			HTTPClient: provider.NewHTTPClient(proxy, 0),
		}), nil
	case config.ProviderZhipu:
		return zhipu.New(zhipu.Config{
			Name:       name,
			APIKey:     pc.APIKey,
			BaseURL:    pc.BaseURL,
			Headers:    pc.Headers,
			Timeout:    pc.Timeout,
			HTTPClient: provider.NewHTTPClient(proxy, 0),
		})
	case config.ProviderWSEvent:
		return wsevent.New(wsevent.Config{
			Name:        name,
			BaseURL:     pc.BaseURL,
			SocketURL:   pc.SocketURL,
			AccessToken: pc.APIKey,
			Timeout:     pc.Timeout,
			Proxy:       proxy,
		})
	case config.ProviderStatic:
		return static.New(static.Config{
			Name:      name,
			Reply:     pc.Reply,
			ImageText: pc.ImageText,
			Stream:    pc.Stream,
		}), nil
	default:
		return nil, fmt.Errorf("unknown provider type %q", pc.Type)
	}
}

// proxyConfig prefers the configured proxy and falls back to the standard
// proxy environment variables.
func proxyConfig(pc config.ProxyConfig) provider.ProxyConfig {
	if pc.URL == "" {
		return provider.ProxyFromEnvironment()
	}
	return provider.ProxyConfig{URL: pc.URL, NoProxy: pc.NoProxy}
}
