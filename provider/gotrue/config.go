package gotrue

import (
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Config holds GoTrue connection settings.
type Config struct {
	// BaseURL is the project root, e.g. "https://abc.supabase.co".
	// The auth endpoints live under {BaseURL}/auth/v1.
	BaseURL string

	// AnonKey is the public API key sent with every request.
	AnonKey string

	// RedirectTo is the URL one-time links send the user back to (optional).
	RedirectTo string

	// HTTPClient overrides the transport (optional).
	HTTPClient *http.Client

	// JWKSURL enables cryptographic validation of access tokens against the
	// provider's JWK set (optional). When empty, tokens are only decoded to
	// read subject and expiry, matching clients that trust the transport.
	JWKSURL string

	// JWKSCacheTTL is how long to cache JWKS keys. Default: 1 hour.
	JWKSCacheTTL time.Duration

	// RequestTimeout bounds each provider call. Default: 30 seconds.
	RequestTimeout time.Duration
}

// Validate checks that required settings are present.
func (c Config) Validate() error {
	if strings.TrimSpace(c.BaseURL) == "" {
		return fmt.Errorf("gotrue: base URL is required")
	}
	if strings.TrimSpace(c.AnonKey) == "" {
		return fmt.Errorf("gotrue: anon key is required")
	}
	return nil
}

func (c Config) authURL(path string) string {
	return strings.TrimSuffix(c.BaseURL, "/") + "/auth/v1" + path
}

func (c Config) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	timeout := c.RequestTimeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &http.Client{Timeout: timeout}
}
