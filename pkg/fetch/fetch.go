// Package fetch is the HTTP client shared by the dataset commands. The
// upstream services (Ontario GeoHub, CWFIS, the StatCan depot, OpenTopography)
// throttle and flake under load, so every call retries transient failures
// with exponential backoff.
package fetch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const defaultUserAgent = "williams-treaties-atlas/1.0"

// Client wraps http.Client with retries. Headers holds extra headers sent on
// every request, for endpoints that want an API key or an Accept override.
type Client struct {
	http       *http.Client
	UserAgent  string
	MaxRetries int
	Headers    map[string]string
}

// New returns a client with the given per-request timeout.
func New(timeout time.Duration) *Client {
	return &Client{
		http:       &http.Client{Timeout: timeout},
		UserAgent:  defaultUserAgent,
		MaxRetries: 3,
	}
}

// Get fetches a URL and returns the body. 429 and 5xx responses and network
// errors are retried; other non-200 statuses fail immediately.
func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	var body []byte
	err := c.withRetries(ctx, func() (bool, error) {
		b, retryable, err := c.get(ctx, url)
		body = b
		return retryable, err
	})
	return body, err
}

// Post sends a body and returns the response. Retries follow the same rules
// as Get; the body is replayed on each attempt.
func (c *Client) Post(ctx context.Context, url, contentType string, payload []byte) ([]byte, error) {
	var body []byte
	err := c.withRetries(ctx, func() (bool, error) {
		b, retryable, err := c.post(ctx, url, contentType, payload)
		body = b
		return retryable, err
	})
	return body, err
}

// Download streams a URL to a file, writing through a temp file so an
// interrupted transfer never leaves a partial dataset behind. Returns the
// number of bytes written.
func (c *Client) Download(ctx context.Context, url, path string) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, fmt.Errorf("failed to create %s: %w", filepath.Dir(path), err)
	}

	var written int64
	err := c.withRetries(ctx, func() (bool, error) {
		n, retryable, err := c.download(ctx, url, path)
		written = n
		return retryable, err
	})
	return written, err
}

func (c *Client) withRetries(ctx context.Context, attempt func() (bool, error)) error {
	var lastErr error
	for i := 0; i <= c.MaxRetries; i++ {
		if i > 0 {
			// Exponential backoff: 1s, 2s, 4s
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(1<<uint(i-1)) * time.Second):
			}
		}

		retryable, err := attempt()
		if err == nil {
			return nil
		}
		lastErr = err
		if !retryable {
			return err
		}
	}
	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

func (c *Client) get(ctx context.Context, url string) ([]byte, bool, error) {
	resp, err := c.do(ctx, url)
	if err != nil {
		return nil, true, err
	}
	defer resp.Body.Close()

	if retryable, err := checkStatus(resp, url); err != nil {
		return nil, retryable, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, fmt.Errorf("failed to read response from %s: %w", url, err)
	}
	return body, false, nil
}

func (c *Client) post(ctx context.Context, url, contentType string, payload []byte) ([]byte, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, false, fmt.Errorf("failed to create request for %s: %w", url, err)
	}
	req.Header.Set("Content-Type", contentType)
	c.setHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, true, fmt.Errorf("request to %s failed: %w", url, err)
	}
	defer resp.Body.Close()

	if retryable, err := checkStatus(resp, url); err != nil {
		return nil, retryable, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, fmt.Errorf("failed to read response from %s: %w", url, err)
	}
	return body, false, nil
}

func (c *Client) download(ctx context.Context, url, path string) (int64, bool, error) {
	resp, err := c.do(ctx, url)
	if err != nil {
		return 0, true, err
	}
	defer resp.Body.Close()

	if retryable, err := checkStatus(resp, url); err != nil {
		return 0, retryable, err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return 0, false, fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, resp.Body)
	if err != nil {
		tmp.Close()
		return 0, true, fmt.Errorf("failed to download %s: %w", url, err)
	}
	if err := tmp.Close(); err != nil {
		return 0, false, fmt.Errorf("failed to close %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return 0, false, fmt.Errorf("failed to move %s into place: %w", path, err)
	}
	return n, false, nil
}

func (c *Client) do(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request for %s: %w", url, err)
	}
	c.setHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request to %s failed: %w", url, err)
	}
	return resp, nil
}

func (c *Client) setHeaders(req *http.Request) {
	ua := c.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}
	req.Header.Set("User-Agent", ua)
	for k, v := range c.Headers {
		req.Header.Set(k, v)
	}
}

// StatusError is the error for non-2xx responses. Callers that care about a
// specific code (quota, auth, missing layer) branch on Status via errors.As
// instead of parsing the message.
type StatusError struct {
	URL    string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s returned status %d", e.URL, e.Status)
	}
	return fmt.Sprintf("%s returned status %d: %s", e.URL, e.Status, e.Body)
}

// checkStatus reports whether a bad status is worth retrying. The body is
// consumed for the error snippet either way.
func checkStatus(resp *http.Response, url string) (bool, error) {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return false, nil
	}

	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	retryable := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500

	return retryable, &StatusError{
		URL:    url,
		Status: resp.StatusCode,
		Body:   strings.TrimSpace(string(snippet)),
	}
}
