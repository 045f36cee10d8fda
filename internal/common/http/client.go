// internal/common/http/client.go
package http

import (
	"net"
	"net/http"
	"time"
)

// Client is the outbound HTTP client shared by the oracle SDKs.
type Client struct {
	httpClient *http.Client
}

// NewClient builds a client whose overall request timeout is timeout. Dial
// and TLS handshakes are bounded separately so a dead endpoint fails fast.
func NewClient(timeout time.Duration) *Client {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          50,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: time.Second,
	}

	return &Client{
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
	}
}

// Standard exposes the underlying *http.Client for SDKs that take one.
func (c *Client) Standard() *http.Client {
	return c.httpClient
}
