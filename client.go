package session

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"
)

var _ RESTClient = (*Client)(nil)

// Client issues JSON requests against the backend API root. The bearer
// credential is attached inside the transport, so every verb goes through
// the same interception with no per-call opt-out.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     Logger
}

// ClientOption customizes a Client.
type ClientOption func(*Client)

// WithHTTPClient swaps the underlying http.Client. Its transport is still
// wrapped with the bearer interceptor.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithClientLogger overrides the request logger.
func WithClientLogger(logger Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient builds a Client rooted at baseURL. Requests load the credential
// from store at send time, so a token saved after construction is picked up
// and a cleared one stops being sent immediately.
func NewClient(baseURL string, store TokenStore, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/") + "/",
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: defLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	base := c.httpClient.Transport
	if base == nil {
		base = http.DefaultTransport
	}

	// Copy so a shared http.Client passed in via options keeps its own
	// transport untouched.
	wrapped := *c.httpClient
	wrapped.Transport = &bearerTransport{base: base, store: store}
	c.httpClient = &wrapped

	return c
}

func (c *Client) Get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPost, path, body, out)
}

func (c *Client) Put(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPut, path, body, out)
}

func (c *Client) Patch(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPatch, path, body, out)
}

func (c *Client) Delete(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodDelete, path, nil, out)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return NewMalformedResponse(err)
		}
		reader = bytes.NewReader(encoded)
	}

	url := c.baseURL + strings.TrimLeft(path, "/")
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return NewNetworkFailure(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	res, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("request transport failure", "method", method, "path", path, "error", err)
		return NewNetworkFailure(err)
	}
	defer res.Body.Close()

	payload, err := io.ReadAll(res.Body)
	if err != nil {
		return NewMalformedResponse(err)
	}

	if res.StatusCode >= http.StatusBadRequest {
		c.logger.Debug("request rejected", "method", method, "path", path, "status", res.StatusCode)
		return NewStatusError(res.StatusCode, payload)
	}

	if out == nil || len(payload) == 0 {
		return nil
	}

	if err := json.Unmarshal(payload, out); err != nil {
		return NewMalformedResponse(err)
	}

	return nil
}

// bearerTransport attaches the stored credential to every outgoing request.
// When the store holds nothing the request goes out unauthenticated.
type bearerTransport struct {
	base  http.RoundTripper
	store TokenStore
}

func (t *bearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	token, ok := t.store.Load()
	if !ok || token == "" {
		return t.base.RoundTrip(req)
	}

	// Clone before mutating headers: RoundTrippers must not modify the
	// caller's request.
	authed := req.Clone(req.Context())
	authed.Header.Set("Authorization", "Bearer "+token)
	return t.base.RoundTrip(authed)
}
