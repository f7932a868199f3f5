package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"gwi.com/assistant-console/internal/observability"
)

// TokenSource returns the bearer token to attach, or "" for none.
type TokenSource func() string

// Client wraps the backend's REST surface. Cookies are sent with every
// request through the HTTP client's jar; a bearer token is added when the
// TokenSource yields one.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenSource
	log        *slog.Logger
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithCookieJar(jar http.CookieJar) Option {
	return func(c *Client) { c.httpClient.Jar = jar }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) { c.tokens = ts }
}

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
		log:        observability.WithFields("component", "api"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

// request describes one call; op names the failure message used for
// non-401 errors.
type request struct {
	method string
	path   string
	query  url.Values
	body   io.Reader
	ctype  string
	op     string
	// useDetail surfaces the backend's detail message instead of op.
	useDetail bool
	// credentialCheck marks endpoints where a 401 means rejected
	// credentials rather than an expired session.
	credentialCheck bool
}

func jsonBody(v any) (io.Reader, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request body: %w", err)
	}
	return bytes.NewReader(b), nil
}

// do performs the request and decodes a 2xx JSON response into out, which
// may be nil.
func (c *Client) do(ctx context.Context, r request, out any) error {
	u := c.baseURL + r.path
	if len(r.query) > 0 {
		u += "?" + r.query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, r.method, u, r.body)
	if err != nil {
		return &OperationError{Op: r.op, Message: r.op, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if r.body != nil {
		ctype := r.ctype
		if ctype == "" {
			ctype = "application/json"
		}
		req.Header.Set("Content-Type", ctype)
	}
	if c.tokens != nil {
		if token := c.tokens(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Debug("Request failed", "method", r.method, "path", r.path, "error", err)
		return &OperationError{Op: r.op, Message: r.op, Err: err}
	}
	defer resp.Body.Close()
	c.log.Debug("Request completed", "method", r.method, "path", r.path, "status", resp.StatusCode, "elapsed", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.statusError(resp, r)
	}
	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &OperationError{Op: r.op, Message: r.op, StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	return nil
}

func (c *Client) statusError(resp *http.Response, r request) error {
	detail := readDetail(resp)
	if resp.StatusCode == http.StatusUnauthorized && !r.credentialCheck {
		return ErrUnauthorized
	}
	msg := r.op
	if r.useDetail && detail != "" {
		msg = detail
	}
	c.log.Warn("Request rejected", "method", r.method, "path", r.path, "status", resp.StatusCode, "detail", detail)
	return &OperationError{Op: r.op, Message: msg, StatusCode: resp.StatusCode}
}
