// Package upstream is a minimal HTTP executor shared by the provider
// adapters. Every call is a single attempt; non-2xx responses become
// *Error values that keep the upstream status and body.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"
)

// DefaultTimeout bounds each upstream call when no client is supplied.
const DefaultTimeout = 30 * time.Second

// maxErrorBody caps how much of an error response is kept.
const maxErrorBody = 512

// ErrUnexpectedShape marks an upstream payload that does not match the
// shape an adapter expects.
var ErrUnexpectedShape = errors.New("unexpected upstream shape")

// Observer is notified after every upstream call.
type Observer interface {
	ObserveUpstream(provider, endpoint string, elapsed time.Duration, status int, err error)
}

// Error is a failed upstream call. Status is zero for transport failures.
type Error struct {
	Provider string
	Status   int
	Body     string
	Err      error
}

func (e *Error) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("%s request failed: %v", e.Provider, e.Err)
	}
	if e.Body == "" {
		return fmt.Sprintf("%s request failed with status %d", e.Provider, e.Status)
	}
	return fmt.Sprintf("%s request failed with status %d: %s", e.Provider, e.Status, e.Body)
}

func (e *Error) Unwrap() error { return e.Err }

// Client issues requests against one provider's base URL.
type Client struct {
	Provider string
	BaseURL  string
	HTTP     *http.Client
	Header   http.Header
	Query    url.Values

	observer Observer
	logger   *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		if c != nil {
			cl.HTTP = c
		}
	}
}

// WithObserver reports call latency and outcome to o.
func WithObserver(o Observer) Option {
	return func(cl *Client) { cl.observer = o }
}

// WithLogger sets the client logger.
func WithLogger(l *slog.Logger) Option {
	return func(cl *Client) { cl.logger = l }
}

// WithHeader adds a header sent on every request.
func WithHeader(key, value string) Option {
	return func(cl *Client) { cl.Header.Set(key, value) }
}

// WithQuery adds a query parameter sent on every request.
func WithQuery(key, value string) Option {
	return func(cl *Client) { cl.Query.Set(key, value) }
}

// New returns a client for baseURL. Without WithHTTPClient, a client with
// DefaultTimeout is used.
func New(provider, baseURL string, opts ...Option) *Client {
	c := &Client{
		Provider: provider,
		BaseURL:  strings.TrimRight(baseURL, "/"),
		HTTP:     &http.Client{Timeout: DefaultTimeout},
		Header:   http.Header{},
		Query:    url.Values{},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// Request describes one upstream call.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   any
	Accept string
}

// Do executes r and returns the response when the status is 2xx. The
// caller must close the body. Any other outcome is returned as *Error.
func (c *Client) Do(ctx context.Context, r Request) (*http.Response, error) {
	req, err := c.newRequest(ctx, r)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := c.HTTP.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		uerr := &Error{Provider: c.Provider, Err: err}
		c.observe(r.Path, elapsed, 0, uerr)
		return nil, uerr
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody+1))
		uerr := &Error{
			Provider: c.Provider,
			Status:   resp.StatusCode,
			Body:     truncate(strings.TrimSpace(string(body)), maxErrorBody),
			Err:      fmt.Errorf("status %s", resp.Status),
		}
		c.observe(r.Path, elapsed, resp.StatusCode, uerr)
		return nil, uerr
	}
	c.observe(r.Path, elapsed, resp.StatusCode, nil)
	return resp, nil
}

// JSON executes r and returns the raw JSON body of a 2xx response.
func (c *Client) JSON(ctx context.Context, r Request) (json.RawMessage, error) {
	if r.Accept == "" {
		r.Accept = "application/json"
	}
	resp, err := c.Do(ctx, r)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Provider: c.Provider, Status: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("%s: %w: body is not JSON", c.Provider, ErrUnexpectedShape)
	}
	return body, nil
}

func (c *Client) newRequest(ctx context.Context, r Request) (*http.Request, error) {
	u, err := url.Parse(c.BaseURL + r.Path)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	q := u.Query()
	for k, vs := range c.Query {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	for k, vs := range r.Query {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	u.RawQuery = q.Encode()

	var body io.Reader
	if r.Body != nil {
		b, err := json.Marshal(r.Body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, r.Method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	for k, vs := range c.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if r.Body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if r.Accept != "" {
		req.Header.Set("Accept", r.Accept)
	}
	return req, nil
}

func (c *Client) observe(endpoint string, elapsed time.Duration, status int, err error) {
	c.logger.Debug("upstream call", "provider", c.Provider, "endpoint", endpoint,
		"status", status, "duration", elapsed, "error", err)
	if c.observer != nil {
		c.observer.ObserveUpstream(c.Provider, endpoint, elapsed, status, err)
	}
}

// DecodeObject parses raw as a JSON object.
func DecodeObject(raw json.RawMessage) (map[string]any, error) {
	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err != nil || obj == nil {
		return nil, fmt.Errorf("%w: expected a JSON object", ErrUnexpectedShape)
	}
	return obj, nil
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
