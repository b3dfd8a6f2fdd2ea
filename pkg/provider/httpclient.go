package provider

import (
	"net/http"
	"net/url"
	"os"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/net/http/httpproxy"
)

// ProxyConfig selects the outbound proxy for upstream calls.
type ProxyConfig struct {
	// URL is an explicit proxy for every scheme. When empty the
	// environment is consulted.
	URL string

	// NoProxy lists hosts or domain suffixes that bypass the proxy.
	NoProxy string
}

// ProxyFromEnvironment reads AI_PROXY_URL, HTTPS_PROXY, HTTP_PROXY and
// ALL_PROXY (first non-empty wins) plus NO_PROXY.
func ProxyFromEnvironment() ProxyConfig {
	cfg := ProxyConfig{}
	for _, key := range []string{"AI_PROXY_URL", "HTTPS_PROXY", "https_proxy", "HTTP_PROXY", "http_proxy", "ALL_PROXY", "all_proxy"} {
		if v := os.Getenv(key); v != "" {
			cfg.URL = v
			break
		}
	}
	cfg.NoProxy = os.Getenv("NO_PROXY")
	if cfg.NoProxy == "" {
		cfg.NoProxy = os.Getenv("no_proxy")
	}
	return cfg
}

// ProxyFunc returns a function suitable for http.Transport.Proxy, or nil
// when no proxy is configured.
func (c ProxyConfig) ProxyFunc() func(*http.Request) (*url.URL, error) {
	if c.URL == "" {
		return nil
	}
	pc := &httpproxy.Config{
		HTTPProxy:  c.URL,
		HTTPSProxy: c.URL,
		NoProxy:    c.NoProxy,
	}
	fn := pc.ProxyFunc()
	return func(req *http.Request) (*url.URL, error) {
		return fn(req.URL)
	}
}

// NewHTTPClient builds the shared upstream HTTP client: proxy selection,
// connection pooling and OpenTelemetry client spans. A zero timeout leaves
// the client without an overall deadline, which streaming calls need.
func NewHTTPClient(proxy ProxyConfig, timeout time.Duration) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = proxy.ProxyFunc()
	transport.MaxIdleConns = 100
	transport.MaxIdleConnsPerHost = 100
	transport.IdleConnTimeout = 90 * time.Second

	return &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(transport),
	}
}
