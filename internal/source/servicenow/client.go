package servicenow

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

	"github.com/nhle/change-adapter/internal/source"
)

// tablePath is the ServiceNow Table API prefix.
const tablePath = "/api/now/table/"

// Client is a thin HTTP connector for the ServiceNow Table API.
// It handles basic authentication and automatic retry with exponential
// backoff on HTTP 429. It never decodes response bodies.
type Client struct {
	baseURL    string
	instanceID string
	username   string
	password   string
	table      string
	httpClient *http.Client
	maxRetries int
	// newBody produces the payload sent by Post.
	newBody func() any
}

// ClientOption customises a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

// WithMaxRetries sets how many times a rate-limited request is retried.
func WithMaxRetries(n int) ClientOption {
	return func(c *Client) { c.maxRetries = n }
}

// WithPostBody sets the payload sent by Post. The default is an empty
// JSON object, which creates a blank record.
func WithPostBody(fn func() any) ClientOption {
	return func(c *Client) { c.newBody = fn }
}

// NewClient creates a connector for the given instance. The baseURL should
// be the root URL of the ServiceNow instance
// (e.g., https://dev12345.service-now.com).
func NewClient(
	instanceID string,
	baseURL string,
	username string,
	password string,
	table string,
	opts ...ClientOption,
) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		instanceID: instanceID,
		username:   username,
		password:   password,
		table:      table,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		maxRetries: 3,
		newBody:    func() any { return map[string]any{} },
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get performs GET /api/now/table/<table>.
func (c *Client) Get(ctx context.Context) (*source.Envelope, error) {
	return c.do(ctx, http.MethodGet, c.path(), nil)
}

// Post performs POST /api/now/table/<table>.
func (c *Client) Post(ctx context.Context) (*source.Envelope, error) {
	return c.do(ctx, http.MethodPost, c.path(), c.newBody())
}

func (c *Client) path() string {
	return tablePath + url.PathEscape(c.table)
}

// do builds the request, handles auth and rate limiting, and returns
// the raw response as an envelope.
func (c *Client) do(
	ctx context.Context,
	method string,
	path string,
	body any,
) (*source.Envelope, error) {
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

		req, err := http.NewRequestWithContext(
			ctx, method, c.baseURL+path, bodyReader,
		)
		if err != nil {
			return nil, fmt.Errorf("creating request: %w", err)
		}

		req.SetBasicAuth(c.username, c.password)
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("executing request %s %s: %w", method, path, err)
		}

		respBody, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			return nil, fmt.Errorf("reading response body: %w", readErr)
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			waitDuration := retryAfterDuration(resp, attempt)
			lastErr = fmt.Errorf("rate limited (429) on %s %s", method, path)

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(waitDuration):
				continue
			}
		}

		if resp.StatusCode == http.StatusUnauthorized {
			return nil, &source.AuthError{
				InstanceID: c.instanceID,
				Message: fmt.Sprintf(
					"authentication failed (401): check the credentials for %s",
					c.baseURL,
				),
			}
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, &source.StatusError{
				Method:     method,
				Path:       path,
				StatusCode: resp.StatusCode,
				Body:       string(respBody),
			}
		}

		env := &source.Envelope{
			StatusCode: resp.StatusCode,
			Header:     resp.Header,
		}
		// No content (e.g. 204) leaves the body field unset.
		if resp.StatusCode != http.StatusNoContent && len(respBody) > 0 {
			s := string(respBody)
			env.Body = &s
		}
		return env, nil
	}

	return nil, fmt.Errorf("max retries (%d) exceeded: %w", c.maxRetries, lastErr)
}

// retryAfterDuration reads the Retry-After header and computes a wait
// duration. Falls back to exponential backoff if the header is missing.
func retryAfterDuration(resp *http.Response, attempt int) time.Duration {
	if header := resp.Header.Get("Retry-After"); header != "" {
		if seconds, err := strconv.Atoi(header); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}

	// Exponential backoff: 1s, 2s, 4s, ...
	backoff := time.Duration(1<<uint(attempt)) * time.Second
	if backoff > 30*time.Second {
		backoff = 30 * time.Second
	}
	return backoff
}
