// Package nylasapi implements the provider contract over a paginated
// REST messaging API scoped by an account grant id.
package nylasapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// client is a thin HTTP client for the messaging API. It handles
// bearer-token authentication, JSON marshaling, and automatic retry
// with backoff on HTTP 429.
type client struct {
	baseURL    string
	token      string
	httpc      *http.Client
	maxRetries int
}

func newClient(baseURL, token string) *client {
	return &client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpc: &http.Client{
			Timeout: 30 * time.Second,
		},
		maxRetries: 3,
	}
}

// statusError reports a non-2xx API response.
type statusError struct {
	Code   int
	Method string
	Path   string
	Body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status %d on %s %s: %s",
		e.Code, e.Method, e.Path, e.Body)
}

func (c *client) get(ctx context.Context, path string, query url.Values, result interface{}) error {
	if len(query) > 0 {
		path = path + "?" + query.Encode()
	}
	_, err := c.do(ctx, http.MethodGet, path, nil, result)
	return err
}

// getRaw performs a GET and returns the raw response bytes, for binary
// downloads.
func (c *client) getRaw(ctx context.Context, path string, query url.Values) ([]byte, error) {
	if len(query) > 0 {
		path = path + "?" + query.Encode()
	}
	return c.do(ctx, http.MethodGet, path, nil, nil)
}

func (c *client) put(ctx context.Context, path string, body, result interface{}) error {
	_, err := c.do(ctx, http.MethodPut, path, body, result)
	return err
}

func (c *client) post(ctx context.Context, path string, body, result interface{}) error {
	_, err := c.do(ctx, http.MethodPost, path, body, result)
	return err
}

func (c *client) delete(ctx context.Context, path string) error {
	_, err := c.do(ctx, http.MethodDelete, path, nil, nil)
	return err
}

// do builds the request, applies auth, retries on 429 with backoff,
// and unmarshals JSON when result is non-nil.
func (c *client) do(ctx context.Context, method, path string, body, result interface{}) ([]byte, error) {
	fullURL := c.baseURL + path

	var payload []byte
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshaling request body: %w", err)
		}
		payload = data
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		var bodyReader io.Reader
		if payload != nil {
			bodyReader = bytes.NewReader(payload)
		}

		req, err := http.NewRequestWithContext(ctx, method, fullURL, bodyReader)
		if err != nil {
			return nil, fmt.Errorf("creating request: %w", err)
		}

		req.Header.Set("Authorization", "Bearer "+c.token)
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpc.Do(req)
		if err != nil {
			return nil, fmt.Errorf("executing %s %s: %w", method, path, err)
		}

		respBody, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			return nil, fmt.Errorf("reading response body: %w", readErr)
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = &statusError{
				Code:   resp.StatusCode,
				Method: method,
				Path:   path,
			}
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(retryAfterDuration(resp, attempt)):
				continue
			}
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, &statusError{
				Code:   resp.StatusCode,
				Method: method,
				Path:   path,
				Body:   string(respBody),
			}
		}

		if result != nil && len(respBody) > 0 {
			if err := json.Unmarshal(respBody, result); err != nil {
				return nil, fmt.Errorf("parsing response of %s %s: %w", method, path, err)
			}
		}
		return respBody, nil
	}

	return nil, lastErr
}

// retryAfterDuration honors the Retry-After header when present, else
// backs off exponentially.
func retryAfterDuration(resp *http.Response, attempt int) time.Duration {
	if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
		if secs, err := strconv.Atoi(retryAfter); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return time.Duration(1<<uint(attempt)) * time.Second
}
