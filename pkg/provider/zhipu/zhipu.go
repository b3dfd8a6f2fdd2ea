// Package zhipu adapts the Zhipu (BigModel) chat API. The upstream speaks
// Chat Completions but authenticates with a short-lived HS256 JWT signed
// from an "id.secret" API key instead of the raw key.
package zhipu

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"github.com/nxgate/nxgate/pkg/provider/openaicompat"
)

// DefaultBaseURL is the public BigModel endpoint.
const DefaultBaseURL = "https://open.bigmodel.cn/api/paas/v4"

// Config holds the Zhipu adapter configuration.
type Config struct {
	// Name identifies the provider. Default: "zhipu".
	Name string

	// APIKey has the form "<id>.<secret>".
	APIKey string

	// BaseURL defaults to DefaultBaseURL.
	BaseURL string

	// TokenTTL is the lifetime of each signed token. Default: 30 minutes.
	TokenTTL time.Duration

	Headers    map[string]string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Signer produces and caches upstream tokens.
type Signer struct {
	id     string
	secret []byte
	ttl    time.Duration
	now    func() time.Time

	mu      sync.Mutex
	token   string
	expires time.Time
}

// NewSigner parses an "id.secret" API key.
func NewSigner(apiKey string, ttl time.Duration) (*Signer, error) {
	id, secret, ok := strings.Cut(apiKey, ".")
	if !ok || id == "" || secret == "" {
		return nil, fmt.Errorf("zhipu: API key must have the form <id>.<secret>")
	}
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &Signer{id: id, secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// Token returns a cached token, signing a new one when the cached token is
// within one minute of expiry.
func (s *Signer) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if s.token != "" && now.Add(time.Minute).Before(s.expires) {
		return s.token, nil
	}

	exp := now.Add(s.ttl)
	claims := jwtlib.MapClaims{
		"api_key":   s.id,
		"exp":       exp.UnixMilli(),
		"timestamp": now.UnixMilli(),
	}
	tok := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	tok.Header["sign_type"] = "SIGN"

	signed, err := tok.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("zhipu: signing token: %w", err)
	}
	s.token = signed
	s.expires = exp
	return signed, nil
}

// New returns an openaicompat client for Zhipu that signs every request
// with a JWT derived from cfg.APIKey.
func New(cfg Config) (*openaicompat.Client, error) {
	signer, err := NewSigner(cfg.APIKey, cfg.TokenTTL)
	if err != nil {
		return nil, err
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	name := cfg.Name
	if name == "" {
		name = "zhipu"
	}

	ccfg := openaicompat.Config{
		Name:       name,
		Headers:    cfg.Headers,
		BaseURL:    baseURL,
		Token:      signer.Token,
		Timeout:    cfg.Timeout,
		HTTPClient: cfg.HTTPClient,
	}
	return openaicompat.New(ccfg)
}
