// Package auth provides bearer-token authentication for the gateway.
//
// Authentication uses a chain-of-responsibility pattern with three-outcome
// voting: each authenticator returns Yes (identity found), No (request
// rejected), or Abstain (can't handle). A configurable default voter decides
// when all authenticators abstain.
//
// Subpackages provide the authenticators: apikey compares the configured
// access token, jwt verifies signed client tokens against a JWKS endpoint,
// and noop accepts everything when authentication is disabled.
//
// The middleware maps rejections onto three error codes:
// server_configuration_error (500) when no secret is configured,
// unauthorized (401) when no bearer token is presented, and invalid_token
// (401) when the token does not match.
package auth
