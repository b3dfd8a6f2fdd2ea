package zhipu

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"github.com/nxgate/nxgate/pkg/api"
	"github.com/nxgate/nxgate/pkg/provider"
)

func TestNewSignerRejectsMalformedKey(t *testing.T) {
	for _, key := range []string{"", "nodot", ".secret", "id."} {
		if _, err := NewSigner(key, 0); err == nil {
			t.Errorf("NewSigner(%q) should fail", key)
		}
	}
}

func TestSignerToken(t *testing.T) {
	s, err := NewSigner("myid.mysecret", 10*time.Minute)
	if err != nil {
		t.Fatalf("NewSigner() error = %v", err)
	}
	fixed := time.UnixMilli(1_700_000_000_000)
	s.now = func() time.Time { return fixed }

	signed, err := s.Token(context.Background())
	if err != nil {
		t.Fatalf("Token() error = %v", err)
	}

	parser := jwtlib.NewParser(jwtlib.WithoutClaimsValidation())
	claims := jwtlib.MapClaims{}
	tok, err := parser.ParseWithClaims(signed, claims, func(tok *jwtlib.Token) (any, error) {
		return []byte("mysecret"), nil
	})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if tok.Method.Alg() != "HS256" {
		t.Errorf("alg = %s", tok.Method.Alg())
	}
	if tok.Header["sign_type"] != "SIGN" {
		t.Errorf("sign_type header = %v", tok.Header["sign_type"])
	}
	if claims["api_key"] != "myid" {
		t.Errorf("api_key = %v", claims["api_key"])
	}
	if ts, _ := claims["timestamp"].(float64); int64(ts) != fixed.UnixMilli() {
		t.Errorf("timestamp = %v", claims["timestamp"])
	}
	if exp, _ := claims["exp"].(float64); int64(exp) != fixed.Add(10*time.Minute).UnixMilli() {
		t.Errorf("exp = %v", claims["exp"])
	}
}

func TestSignerCachesUntilNearExpiry(t *testing.T) {
	s, _ := NewSigner("id.secret", 5*time.Minute)
	now := time.UnixMilli(1_700_000_000_000)
	s.now = func() time.Time { return now }

	first, _ := s.Token(context.Background())

	now = now.Add(2 * time.Minute)
	if second, _ := s.Token(context.Background()); second != first {
		t.Error("token should be cached while far from expiry")
	}

	now = now.Add(150 * time.Second)
	if third, _ := s.Token(context.Background()); third == first {
		t.Error("token should be refreshed near expiry")
	}
}

func TestNewSendsSignedBearer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") || strings.Count(auth, ".") != 2 {
			t.Errorf("Authorization = %q, want bearer JWT", auth)
		}
		if r.URL.Path != "/api/paas/v4/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		fmt.Fprint(w, `{"choices":[{"message":{"content":"ni hao"}}]}`)
	}))
	defer srv.Close()

	c, err := New(Config{APIKey: "id.secret", BaseURL: srv.URL + "/api/paas/v4", HTTPClient: srv.Client()})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if c.Name() != "zhipu" {
		t.Errorf("Name() = %q", c.Name())
	}
	out, err := c.Invoke(context.Background(), &provider.Request{
		Model:    "glm-4.5",
		Messages: []api.ChatMessage{{Role: api.RoleUser, Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	if out.Text != "ni hao" {
		t.Errorf("text = %q", out.Text)
	}
}
