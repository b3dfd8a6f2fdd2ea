package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nxgate/nxgate/pkg/auth"
	"github.com/nxgate/nxgate/pkg/auth/apikey"
	"github.com/nxgate/nxgate/pkg/auth/jwt"
	"github.com/nxgate/nxgate/pkg/auth/noop"
	"github.com/nxgate/nxgate/pkg/config"
	"github.com/nxgate/nxgate/pkg/engine"
	"github.com/nxgate/nxgate/pkg/observability"
	transporthttp "github.com/nxgate/nxgate/pkg/transport/http"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the gateway server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return serve(ctx, cfg)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	tr := cfg.Observability.Tracing
	if tr.Enabled {
		shutdownTracing, err := observability.InitTracing(ctx, observability.TracingConfig{
			Endpoint:    tr.Endpoint,
			URLPath:     tr.URLPath,
			APIKey:      tr.APIKey,
			Insecure:    tr.Insecure,
			ServiceName: tr.ServiceName,
		})
		if err != nil {
			return fmt.Errorf("initializing tracing: %w", err)
		}
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdownTracing(sctx); err != nil {
				slog.Warn("tracing shutdown failed", "error", err)
			}
		}()
		slog.Info("tracing enabled", "endpoint", tr.Endpoint)
	}

	registry, err := buildRegistry(ctx, cfg)
	if err != nil {
		return err
	}

	eng, err := engine.New(registry, engineConfig(cfg))
	if err != nil {
		return fmt.Errorf("creating engine: %w", err)
	}

	srv := transporthttp.NewServer(
		transporthttp.Backend{Chat: eng, Images: eng, Models: eng},
		transporthttp.WithAddr(":"+strconv.Itoa(cfg.Server.Port)),
		transporthttp.WithMaxBodySize(cfg.Server.MaxBodySize),
		transporthttp.WithShutdownTimeout(cfg.Server.ShutdownTimeout),
		transporthttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout),
		transporthttp.WithAuth(authChain(cfg.Auth)),
		transporthttp.WithMetrics(cfg.Observability.Metrics.Enabled),
		transporthttp.WithTracing(tr.Enabled),
	)

	slog.Info("server starting",
		"port", cfg.Server.Port,
		"providers", len(cfg.Providers),
		"default_model", cfg.Engine.DefaultModel,
		"auth", cfg.Auth.Enabled,
		"reasoning", cfg.Reasoning.Enabled,
	)
	return srv.ListenAndServeContext(ctx)
}

func engineConfig(cfg *config.Config) engine.Config {
	ec := engine.DefaultConfig()
	ec.DefaultModel = cfg.Engine.DefaultModel
	ec.Reasoning = cfg.Reasoning.Enabled
	ec.ChunkSize = cfg.Streaming.ChunkSize
	ec.ChunkDelay = cfg.Streaming.ChunkDelay
	ec.Validation.MaxMessages = cfg.Engine.MaxMessages
	ec.Validation.MaxTools = cfg.Engine.MaxTools
	ec.Validation.MaxImages = cfg.Engine.MaxImages
	return ec
}

// authChain requires the configured access token, or a valid JWT when a
// JWKS endpoint is configured, unless authentication is disabled. A
// missing access token is reported per request, not at startup.
func authChain(cfg config.AuthConfig) *auth.AuthChain {
	if !cfg.Enabled {
		slog.Warn("authentication disabled, all requests are accepted")
		return &auth.AuthChain{
			Authenticators:  []auth.Authenticator{&noop.Authenticator{}},
			DefaultDecision: auth.Yes,
		}
	}

	var authenticators []auth.Authenticator
	if cfg.JWT.JWKSURL != "" {
		authenticators = append(authenticators, jwt.New(jwt.Config{
			JWKSURL:      cfg.JWT.JWKSURL,
			Issuer:       cfg.JWT.Issuer,
			Audience:     cfg.JWT.Audience,
			SubjectClaim: cfg.JWT.SubjectClaim,
			CacheTTL:     cfg.JWT.CacheTTL,
		}))
	}
	key := apikey.New("client", cfg.AccessToken)
	switch {
	case key.Configured():
		authenticators = append(authenticators, key)
	case len(authenticators) == 0:
		slog.Warn("authentication enabled but no access token configured, requests will fail")
		authenticators = append(authenticators, key)
	}
	return &auth.AuthChain{
		Authenticators:  authenticators,
		DefaultDecision: auth.No,
	}
}
