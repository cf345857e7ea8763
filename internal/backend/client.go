package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/time/rate"

	"github.com/edustack/coursechat/backend/internal/metrics"
)

// Client talks to the remote AI backend over its REST surface. One
// long-lived SSE stream per not-yet-finalized topic is available through
// SubscribeTopicTitles; everything else is plain request/response.
type Client struct {
	baseURL string
	http    *http.Client
	stream  *http.Client
	limiter *rate.Limiter
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient swaps the request/response transport. The streaming
// transport keeps its own client because it must not carry a deadline.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithRateLimit bounds outbound calls so poll loops cannot flood the
// upstream.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) { c.limiter = rate.NewLimiter(rate.Limit(rps), burst) }
}

// New builds a backend client rooted at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 60 * time.Second},
		stream:  &http.Client{},
		limiter: rate.NewLimiter(rate.Limit(20), 40),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// StatusError carries a non-2xx backend response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return "backend returned status " + http.StatusText(e.Code)
	}
	return "backend returned status " + http.StatusText(e.Code) + ": " + e.Body
}

// doJSON issues one JSON request and decodes the response into out when
// out is non-nil. Transport and status failures come back wrapped with the
// endpoint for context; callers fold them into the error taxonomy.
func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return errors.Wrapf(err, "%s %s", method, path)
	}

	var payload io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return errors.Wrapf(err, "encode %s %s", method, path)
		}
		payload = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, payload)
	if err != nil {
		return errors.Wrapf(err, "build %s %s", method, path)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Request-ID", uuid.NewString())

	resp, err := c.http.Do(req)
	if err != nil {
		metrics.BackendErrors.WithLabelValues(path).Inc()
		return errors.Wrapf(err, "%s %s", method, path)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		metrics.BackendErrors.WithLabelValues(path).Inc()
		return errors.Wrapf(&StatusError{Code: resp.StatusCode, Body: readSnippet(resp.Body)}, "%s %s", method, path)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrapf(err, "decode %s %s", method, path)
	}
	return nil
}

// readSnippet keeps enough of an error body to be useful in logs without
// echoing arbitrarily large responses.
func readSnippet(r io.Reader) string {
	buf, err := io.ReadAll(io.LimitReader(r, 512))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(buf))
}
