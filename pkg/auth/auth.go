package auth

import (
	"context"
	"errors"
	"net/http"
)

// AuthDecision is an authenticator's vote on a request.
type AuthDecision int

const (
	// Yes accepts the request with the returned identity.
	Yes AuthDecision = iota

	// No rejects the request.
	No

	// Abstain passes the request to the next authenticator, for example a
	// JWT authenticator seeing an opaque access token.
	Abstain
)

// Credential methods recorded on an Identity.
const (
	MethodAccessToken = "access_token"
	MethodJWT         = "jwt"
	MethodNone        = "none"
)

// AuthResult is the outcome of one authentication attempt. Identity is set
// for Yes, Err for No.
type AuthResult struct {
	Decision AuthDecision
	Identity *Identity
	Err      error
}

// Identity is the authenticated gateway client.
type Identity struct {
	// Subject names the client in logs. Never empty once authenticated.
	Subject string

	// Method is the credential that authenticated the client.
	Method string
}

// Authenticator votes on the bearer credentials of a request.
type Authenticator interface {
	Authenticate(ctx context.Context, r *http.Request) AuthResult
}

// The middleware maps each error to a response code.
var (
	ErrUnauthenticated = errors.New("missing or malformed bearer token")
	ErrInvalidToken    = errors.New("invalid access token")
	ErrNotConfigured   = errors.New("access token is not configured on the server")
)

// AuthChain asks each authenticator in turn until one votes Yes or No.
type AuthChain struct {
	Authenticators []Authenticator

	// DefaultDecision applies when every authenticator abstains. Yes admits
	// an anonymous client, which is only used with authentication disabled.
	DefaultDecision AuthDecision
}

// Authenticate runs the chain.
func (c *AuthChain) Authenticate(ctx context.Context, r *http.Request) AuthResult {
	for _, authn := range c.Authenticators {
		if result := authn.Authenticate(ctx, r); result.Decision != Abstain {
			return result
		}
	}
	if c.DefaultDecision == Yes {
		return AuthResult{Decision: Yes, Identity: Anonymous()}
	}
	return AuthResult{Decision: No, Err: ErrUnauthenticated}
}

// Anonymous is the identity given to requests when authentication is off.
func Anonymous() *Identity {
	return &Identity{Subject: "anonymous", Method: MethodNone}
}

type identityKey struct{}

// SetIdentity returns a copy of ctx carrying id.
func SetIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFromContext returns the identity stored by the middleware, or nil.
func IdentityFromContext(ctx context.Context) *Identity {
	id, _ := ctx.Value(identityKey{}).(*Identity)
	return id
}
