package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"
)

// Default call deadlines. Fetches allow for a cold-starting script host;
// writes may carry photo and document uploads.
const (
	DefaultFetchTimeout = 120 * time.Second
	DefaultWriteTimeout = 180 * time.Second
)

// maxBody bounds how much of a response is read.
const maxBody = 64 << 20

// Client is the HTTP web-hook store.
//
// Thread-safety: Client is safe for concurrent use.
type Client struct {
	url          string
	http         *http.Client
	fetchTimeout time.Duration
	writeTimeout time.Duration
	logger       *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithFetchTimeout sets the upper bound on one Fetch.
func WithFetchTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.fetchTimeout = d
		}
	}
}

// WithWriteTimeout sets the upper bound on one Write.
func WithWriteTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.writeTimeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// NewClient returns a client for the endpoint at url.
func NewClient(url string, opts ...Option) *Client {
	c := &Client{
		url:          url,
		http:         http.DefaultClient,
		fetchTimeout: DefaultFetchTimeout,
		writeTimeout: DefaultWriteTimeout,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch GETs the snapshot document. The decoded value uses json.Number for
// numbers.
func (c *Client) Fetch(ctx context.Context) (any, error) {
	ctx, cancel := context.WithTimeout(ctx, c.fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, &Error{Code: CodeTransport, Op: "fetch", Message: "build request", Err: err}
	}

	start := time.Now()
	body, err := c.do(req, "fetch")
	if err != nil {
		return nil, err
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, &Error{
			Code:    CodeMalformed,
			Op:      "fetch",
			Message: fmt.Sprintf("response is not JSON: %s", snippet(body)),
			Err:     err,
		}
	}

	if m, ok := doc.(map[string]any); ok && m["status"] == "error" {
		msg, _ := m["message"].(string)
		return nil, &Error{Code: CodeRejected, Op: "fetch", Message: msg}
	}

	c.logger.Debug("fetch complete", "bytes", len(body), "elapsed", time.Since(start))
	return doc, nil
}

// Write POSTs {action, payload}.
//
// The body is sent as text/plain so that script hosts accept it without a
// CORS preflight.
func (c *Client) Write(ctx context.Context, wr WriteRequest) (WriteResponse, error) {
	body, err := json.Marshal(wr)
	if err != nil {
		return WriteResponse{}, &Error{Code: CodeTransport, Op: "write", Message: "encode request", Err: err}
	}

	ctx, cancel := context.WithTimeout(ctx, c.writeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return WriteResponse{}, &Error{Code: CodeTransport, Op: "write", Message: "build request", Err: err}
	}
	req.Header.Set("Content-Type", "text/plain;charset=utf-8")
	if wr.RequestID != "" {
		req.Header.Set("X-Request-ID", wr.RequestID)
	}

	respBody, err := c.do(req, "write")
	if err != nil {
		return WriteResponse{}, err
	}
	return ParseWriteResponse(respBody)
}

// do performs req and returns the body of a 2xx response.
func (c *Client) do(req *http.Request, op string) ([]byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, classify(op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, classify(op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &Error{
			Code:    CodeTransport,
			Op:      op,
			Message: fmt.Sprintf("HTTP %s: %s", http.StatusText(resp.StatusCode), snippet(body)),
			Status:  resp.StatusCode,
		}
	}
	return body, nil
}

// classify maps a transport failure onto a code.
func classify(op string, err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Code: CodeTimeout, Op: op, Message: "request timed out", Err: err}
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return &Error{Code: CodeTimeout, Op: op, Message: "request timed out", Err: err}
	}
	return &Error{Code: CodeTransport, Op: op, Message: err.Error(), Err: err}
}
