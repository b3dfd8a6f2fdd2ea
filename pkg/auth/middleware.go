package auth

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/nxgate/nxgate/pkg/api"
	"github.com/nxgate/nxgate/pkg/observability"
)

// Middleware creates HTTP middleware from an AuthChain. It checks the
// bypass list, runs authentication, and injects the identity into the
// request context. Rejections are written as OpenAI-style error envelopes.
func Middleware(chain *AuthChain, bypassEndpoints []string) func(http.Handler) http.Handler {
	bypass := make(map[string]bool, len(bypassEndpoints))
	for _, ep := range bypassEndpoints {
		bypass[ep] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if bypass[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			result := chain.Authenticate(r.Context(), r)

			if result.Decision != Yes || result.Identity == nil {
				apiErr := rejection(result.Err)
				slog.Warn("authentication failed",
					"path", r.URL.Path,
					"remote_addr", r.RemoteAddr,
					"code", string(apiErr.Code),
				)
				observability.AuthRejectedTotal.WithLabelValues(string(apiErr.Code)).Inc()
				writeError(w, apiErr)
				return
			}

			if result.Identity.Subject == "" {
				slog.Error("authenticator returned identity with empty subject")
				writeError(w, api.NewInternalError("internal authentication error"))
				return
			}

			slog.Debug("authentication succeeded",
				"subject", result.Identity.Subject,
				"method", result.Identity.Method,
				"path", r.URL.Path,
			)

			next.ServeHTTP(w, r.WithContext(SetIdentity(r.Context(), result.Identity)))
		})
	}
}

// DefaultBypassEndpoints lists endpoints that skip authentication.
var DefaultBypassEndpoints = []string{"/healthz", "/readyz", "/metrics"}

func rejection(err error) *api.APIError {
	switch {
	case errors.Is(err, ErrNotConfigured):
		return api.NewConfigurationError(ErrNotConfigured.Error())
	case errors.Is(err, ErrInvalidToken):
		return api.NewInvalidTokenError(ErrInvalidToken.Error())
	default:
		return api.NewUnauthorizedError(ErrUnauthenticated.Error())
	}
}

func writeError(w http.ResponseWriter, apiErr *api.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apiErr.HTTPStatus())
	json.NewEncoder(w).Encode(api.ErrorResponse{Error: apiErr})
}
