// Package noop provides an authenticator that accepts all requests. It is
// installed only when authentication is explicitly disabled.
package noop

import (
	"context"
	"net/http"

	"github.com/nxgate/nxgate/pkg/auth"
)

// Authenticator always returns Yes with an anonymous identity.
type Authenticator struct{}

func (a *Authenticator) Authenticate(_ context.Context, _ *http.Request) auth.AuthResult {
	return auth.AuthResult{Decision: auth.Yes, Identity: auth.Anonymous()}
}
