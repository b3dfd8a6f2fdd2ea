// Package apikey provides an authenticator that validates bearer tokens
// against configured secrets using SHA-256 hashing and constant-time
// comparison.
package apikey

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/nxgate/nxgate/pkg/auth"
)

// Authenticator validates bearer tokens against a set of secret hashes.
type Authenticator struct {
	hashes  [][32]byte
	subject string
}

// New creates an authenticator for the given secrets. Empty secrets are
// ignored; with none left every request is rejected with
// auth.ErrNotConfigured. Plaintext secrets are not stored.
func New(subject string, secrets ...string) *Authenticator {
	if subject == "" {
		subject = "client"
	}
	a := &Authenticator{subject: subject}
	for _, s := range secrets {
		if s == "" {
			continue
		}
		a.hashes = append(a.hashes, sha256.Sum256([]byte(s)))
	}
	return a
}

// Configured reports whether at least one secret is set.
func (a *Authenticator) Configured() bool {
	return len(a.hashes) > 0
}

// Authenticate extracts the bearer token and validates it.
// Returns No with ErrNotConfigured when no secret is set, Abstain when the
// request carries no Bearer token, No with ErrInvalidToken on mismatch.
func (a *Authenticator) Authenticate(_ context.Context, r *http.Request) auth.AuthResult {
	if !a.Configured() {
		return auth.AuthResult{Decision: auth.No, Err: auth.ErrNotConfigured}
	}

	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return auth.AuthResult{Decision: auth.Abstain}
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return auth.AuthResult{Decision: auth.No, Err: auth.ErrUnauthenticated}
	}

	tokenHash := sha256.Sum256([]byte(token))
	for _, h := range a.hashes {
		if subtle.ConstantTimeCompare(tokenHash[:], h[:]) == 1 {
			return auth.AuthResult{Decision: auth.Yes, Identity: &auth.Identity{Subject: a.subject, Method: auth.MethodAccessToken}}
		}
	}
	return auth.AuthResult{Decision: auth.No, Err: auth.ErrInvalidToken}
}
