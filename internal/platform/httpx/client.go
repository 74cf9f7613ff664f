// Package httpx is the REST client shared by the platform adapters.
// It owns request construction, auth header injection and the mapping
// of wire failures onto the adapter error taxonomy.
package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"brokergate/internal/logger"
	"brokergate/internal/platform"
)

// Client wraps one platform gateway endpoint.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
}

// New builds a client for the given base URL with a per-call timeout.
func New(rawBaseURL string, timeout time.Duration) (*Client, error) {
	raw := strings.TrimSpace(rawBaseURL)
	if raw == "" {
		return nil, fmt.Errorf("base URL cannot be empty")
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL failed: %w", err)
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL:    parsed,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// SetHTTPClient swaps the underlying HTTP client for testing.
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// Option mutates an outgoing request before it is sent.
type Option func(*http.Request)

// WithBearer sets a Bearer Authorization header.
func WithBearer(token string) Option {
	return func(req *http.Request) {
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}
}

// WithBasicAuth sets HTTP basic auth.
func WithBasicAuth(username, password string) Option {
	return func(req *http.Request) {
		req.SetBasicAuth(username, password)
	}
}

// WithHeader sets an arbitrary header.
func WithHeader(key, value string) Option {
	return func(req *http.Request) {
		req.Header.Set(key, value)
	}
}

// Do issues one request and decodes the JSON response into out (when
// non-nil). out may be a *json.RawMessage for callers that parse
// tolerantly. Failures come back classified: connection errors and
// timeouts as ErrTransport, 401/403 as ErrAuth, undecodable bodies as
// ErrUpstreamFormat.
func (c *Client) Do(ctx context.Context, method, path string, payload, out any, opts ...Option) error {
	endpoint, err := c.resolveEndpoint(path)
	if err != nil {
		return platform.Validationf("%v", err)
	}

	var body io.Reader
	var requestDump string
	if payload != nil {
		buf, err := json.Marshal(payload)
		if err != nil {
			return platform.Validationf("encoding request failed: %v", err)
		}
		body = bytes.NewReader(buf)
		requestDump = string(buf)
	}
	logger.LogWireRequest(method, endpoint.Path, requestDump)

	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), body)
	if err != nil {
		return platform.Validationf("building request failed: %v", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	for _, opt := range opts {
		opt(req)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return platform.Transportf("%s %s: %v", method, endpoint.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return classifyStatus(resp, method, endpoint.Path)
	}
	if out == nil {
		logger.LogWireResponse(method, endpoint.Path, resp.Status, "")
		return nil
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return platform.Transportf("reading response failed: %v", err)
	}
	logger.LogWireResponse(method, endpoint.Path, resp.Status, string(data))
	if raw, ok := out.(*json.RawMessage); ok {
		*raw = data
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return platform.UpstreamFormatf("decoding %s %s response failed (%d bytes): %v", method, endpoint.Path, len(data), err)
	}
	return nil
}

func classifyStatus(resp *http.Response, method, path string) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	detail := strings.TrimSpace(string(data))
	if detail == "" {
		detail = resp.Status
	}
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return platform.Authf("%s %s: %s", method, path, detail)
	case resp.StatusCode == http.StatusRequestTimeout,
		resp.StatusCode == http.StatusTooManyRequests,
		resp.StatusCode >= 500:
		return platform.Transportf("%s %s: %s", method, path, detail)
	default:
		return platform.Validationf("%s %s rejected: %s", method, path, detail)
	}
}

func (c *Client) resolveEndpoint(path string) (*url.URL, error) {
	if c.baseURL == nil {
		return nil, fmt.Errorf("base URL not set")
	}
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		trimmed = "/"
	}
	query := ""
	if idx := strings.Index(trimmed, "?"); idx >= 0 {
		query = trimmed[idx+1:]
		trimmed = trimmed[:idx]
	}
	if !strings.HasPrefix(trimmed, "/") {
		trimmed = "/" + trimmed
	}
	base := *c.baseURL
	base.Path = strings.TrimSuffix(base.Path, "/") + trimmed
	base.RawPath = ""
	base.RawQuery = query
	base.Fragment = ""
	return &base, nil
}
