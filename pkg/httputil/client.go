package httputil

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	perrors "github.com/matzehuels/parsegraph/pkg/errors"
	"github.com/matzehuels/parsegraph/pkg/observability"
)

const (
	// DefaultTimeout is the hard wall-clock limit of a single call.
	DefaultTimeout = 30 * time.Second

	// maxBodySize caps how much of a response body is read.
	maxBodySize = 32 << 20
)

// Request describes one call against the backend.
type Request struct {
	Method string
	Path   string            // joined onto the client's base URL
	Header map[string]string // merged over the client's default headers
	Body   []byte
}

// Response is a successfully received, parsed response.
//
// Structured reports whether the server declared a JSON content type; in that
// case Data is guaranteed to be well-formed JSON. Otherwise Data is raw text.
type Response struct {
	StatusCode  int
	ContentType string
	Structured  bool
	Data        []byte
}

// Decode unmarshals a structured response into v.
func (r *Response) Decode(v any) error {
	if !r.Structured {
		return perrors.New(perrors.ErrCodeInvalidFormat, "response is not JSON (content type %q)", r.ContentType)
	}
	if err := json.Unmarshal(r.Data, v); err != nil {
		return perrors.Wrap(perrors.ErrCodeInvalidFormat, err, "decode response")
	}
	return nil
}

// Text returns the body as a string.
func (r *Response) Text() string { return string(r.Data) }

// Client issues single bounded-time calls against one backend.
// It handles timeouts, status classification and common request headers,
// and never retries or caches on its own.
type Client struct {
	http    *http.Client
	headers map[string]string
	timeout time.Duration
	logger  *log.Logger

	mu      sync.RWMutex
	baseURL string
}

// ClientOptions configures a [Client]. Zero values pick defaults.
type ClientOptions struct {
	BaseURL    string
	Timeout    time.Duration
	Headers    map[string]string
	HTTPClient *http.Client
	Logger     *log.Logger
}

// NewClient creates a Client for the backend at opts.BaseURL.
// Headers are applied to all requests made through this client.
func NewClient(opts ClientOptions) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = NewHTTPClient()
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	return &Client{
		http:    opts.HTTPClient,
		headers: opts.Headers,
		timeout: opts.Timeout,
		logger:  opts.Logger,
		baseURL: normalizeBaseURL(opts.BaseURL),
	}
}

// NewHTTPClient creates an HTTP client without its own timeout; deadlines are
// applied per call by [Client.Send].
func NewHTTPClient() *http.Client {
	return &http.Client{}
}

// BaseURL returns the current backend address.
func (c *Client) BaseURL() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.baseURL
}

// SetBaseURL points the client at a different backend. A trailing slash is
// removed. It reports whether the normalized address changed.
func (c *Client) SetBaseURL(u string) bool {
	u = normalizeBaseURL(u)
	c.mu.Lock()
	defer c.mu.Unlock()
	if u == c.baseURL {
		return false
	}
	c.baseURL = u
	return true
}

// Timeout returns the per-call deadline.
func (c *Client) Timeout() time.Duration { return c.timeout }

func normalizeBaseURL(u string) string {
	return strings.TrimRight(strings.TrimSpace(u), "/")
}

// Send performs exactly one HTTP call bounded by the client timeout.
//
// Failures are returned as *[TransportError] (timeout, non-2xx status,
// network) except when ctx itself is cancelled, in which case ctx.Err() is
// returned. A JSON response with a malformed body is a permanent
// INVALID_FORMAT error.
func (c *Client) Send(ctx context.Context, req Request) (*Response, error) {
	endpoint := c.BaseURL() + req.Path
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, Permanent(perrors.Wrap(perrors.ErrCodeInvalidInput, err, "invalid endpoint %q", endpoint))
	}
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(callCtx, method, endpoint, body)
	if err != nil {
		return nil, Permanent(perrors.Wrap(perrors.ErrCodeInvalidInput, err, "build request"))
	}
	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	for k, v := range c.headers {
		httpReq.Header.Set(k, v)
	}
	for k, v := range req.Header {
		httpReq.Header.Set(k, v)
	}

	hooks := observability.HTTP()
	hooks.OnRequest(ctx, method, u.Host, u.Path)
	start := time.Now()

	resp, err := c.http.Do(httpReq)
	if err != nil {
		terr := c.classify(ctx, callCtx, err)
		hooks.OnError(ctx, method, u.Host, u.Path, terr)
		return nil, terr
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		terr := c.classify(ctx, callCtx, err)
		hooks.OnError(ctx, method, u.Host, u.Path, terr)
		return nil, terr
	}
	hooks.OnResponse(ctx, method, u.Host, u.Path, resp.StatusCode, time.Since(start))

	c.logger.Debug("http call",
		"method", method,
		"path", u.Path,
		"status", resp.StatusCode,
		"bytes", len(data),
		"duration", time.Since(start).Round(time.Millisecond))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, httpError(resp.StatusCode)
	}

	ct := resp.Header.Get("Content-Type")
	out := &Response{StatusCode: resp.StatusCode, ContentType: ct, Data: data}
	if isJSON(ct) {
		if !json.Valid(data) {
			return nil, Permanent(perrors.New(perrors.ErrCodeInvalidFormat, "server declared JSON but sent a malformed body"))
		}
		out.Structured = true
	}
	return out, nil
}

// SendWithRetry wraps [Client.Send] in [Retry]: 4xx failures are returned
// after one attempt, transient ones are retried with linear backoff.
func (c *Client) SendWithRetry(ctx context.Context, req Request, attempts int, baseDelay time.Duration) (*Response, error) {
	var resp *Response
	err := retry(ctx, attempts, baseDelay, c.logger, func() error {
		r, err := c.Send(ctx, req)
		if err != nil {
			return err
		}
		resp = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) classify(ctx, callCtx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		return &TransportError{Kind: KindTimeout, Timeout: c.timeout, Err: context.DeadlineExceeded}
	}
	return &TransportError{Kind: KindNetwork, Err: err}
}

func isJSON(contentType string) bool {
	if contentType == "" {
		return false
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.Contains(contentType, "application/json")
	}
	return mt == "application/json" || strings.HasSuffix(mt, "+json")
}
