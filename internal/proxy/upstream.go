package proxy

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// DefaultTimeout bounds connecting to the phone and waiting for its first byte.
const DefaultTimeout = 10 * time.Second

// Upstream talks to the sampler running on the phone.
type Upstream struct {
	baseURL string
	timeout time.Duration
	client  *http.Client
}

// NewUpstream creates a client for baseURL. The timeout applies to dialing and to
// response headers only, so long-lived streams are not cut off.
func NewUpstream(baseURL string, timeout time.Duration) *Upstream {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: timeout}).DialContext,
		ResponseHeaderTimeout: timeout,
	}
	return &Upstream{
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
		client:  &http.Client{Transport: transport},
	}
}

// BaseURL returns the phone address.
func (u *Upstream) BaseURL() string {
	return u.baseURL
}

// ExportURL is where CSV downloads are redirected.
func (u *Upstream) ExportURL() string {
	return u.baseURL + "/export"
}

// Health checks the phone's /health endpoint.
func (u *Upstream) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, u.timeout)
	defer cancel()

	resp, err := u.get(ctx, "/health")
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()
	return nil
}

// FetchSnapshot returns the phone's current /sensor-data JSON.
func (u *Upstream) FetchSnapshot(ctx context.Context) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, u.timeout)
	defer cancel()

	resp, err := u.get(ctx, "/sensor-data")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("upstream returned invalid JSON")
	}
	return body, nil
}

// OpenStream opens the phone's /sensor-stream. The caller closes the body.
func (u *Upstream) OpenStream(ctx context.Context) (io.ReadCloser, error) {
	resp, err := u.get(ctx, "/sensor-stream")
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// get issues a GET and fails on non-2xx statuses.
func (u *Upstream) get(ctx context.Context, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := u.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return resp, nil
}
