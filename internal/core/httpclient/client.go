// Package httpclient configures the HTTP client used to call the
// remote dataset service.
package httpclient

import (
	"net"
	"net/http"
	"time"
)

// NewOutbound creates the shared outbound http client. Full fetches
// over wide bounding boxes can run for minutes, so the client itself
// carries no overall timeout; deadlines come from the request context.
func NewOutbound(apiKey string) *http.Client {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		MaxIdleConns:          64,
		MaxIdleConnsPerHost:   32,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	return &http.Client{
		Transport: &apiKeyTransport{key: apiKey, next: transport},
	}
}

// apiKeyTransport attaches the per-session API-key credential to every
// outbound request.
type apiKeyTransport struct {
	key  string
	next http.RoundTripper
}

func (t *apiKeyTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.key != "" {
		req = req.Clone(req.Context())
		req.Header.Set("Authorization", "Api-Key "+t.key)
	}
	return t.next.RoundTrip(req)
}
