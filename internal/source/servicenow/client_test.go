package servicenow

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/change-adapter/internal/source"
)

func TestClientGet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/now/table/change_request", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Accept"))

		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "admin", user)
		assert.Equal(t, "secret", pass)

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, scenarioAList)
	}))
	defer srv.Close()

	c := NewClient("snow-1", srv.URL+"/", "admin", "secret", "change_request")
	env, err := c.Get(context.Background())

	require.NoError(t, err)
	require.True(t, env.HasBody())
	assert.Equal(t, http.StatusOK, env.StatusCode)
	assert.JSONEq(t, scenarioAList, *env.Body)
}

func TestClientPostSendsBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var got map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		assert.Equal(t, "demo", got["short_description"])

		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"result":{"number":"CHG02","sys_id":"def"}}`)
	}))
	defer srv.Close()

	c := NewClient("snow-1", srv.URL, "u", "p", "change_request",
		WithPostBody(func() any {
			return map[string]any{"short_description": "demo"}
		}))
	env, err := c.Post(context.Background())

	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, env.StatusCode)
	require.True(t, env.HasBody())
}

func TestClientNoContentHasNoBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := NewClient("snow-1", srv.URL, "u", "p", "change_request")
	env, err := c.Get(context.Background())

	require.NoError(t, err)
	assert.False(t, env.HasBody())
}

func TestClientUnauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewClient("snow-1", srv.URL, "u", "bad", "change_request")
	_, err := c.Get(context.Background())

	require.Error(t, err)
	assert.True(t, source.IsAuthError(err))
}

func TestClientStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, "boom")
	}))
	defer srv.Close()

	c := NewClient("snow-1", srv.URL, "u", "p", "change_request")
	_, err := c.Get(context.Background())

	var statusErr *source.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusInternalServerError, statusErr.StatusCode)
	assert.Equal(t, "boom", statusErr.Body)
}

func TestClientRetriesRateLimit(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = io.WriteString(w, `{"result":[]}`)
	}))
	defer srv.Close()

	c := NewClient("snow-1", srv.URL, "u", "p", "change_request")
	env, err := c.Get(context.Background())

	require.NoError(t, err)
	assert.True(t, env.HasBody())
	assert.Equal(t, int32(2), calls.Load())
}

func TestClientRateLimitExhausted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "0")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient("snow-1", srv.URL, "u", "p", "change_request", WithMaxRetries(1))
	_, err := c.Get(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "max retries (1) exceeded")
}

func TestClientConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewClient("snow-1", url, "u", "p", "change_request",
		WithHTTPClient(&http.Client{Timeout: time.Second}))
	_, err := c.Get(context.Background())

	require.Error(t, err)
	assert.False(t, source.IsAuthError(err))
}

func TestRetryAfterDuration(t *testing.T) {
	resp := &http.Response{Header: http.Header{}}
	assert.Equal(t, time.Second, retryAfterDuration(resp, 0))
	assert.Equal(t, 4*time.Second, retryAfterDuration(resp, 2))
	assert.Equal(t, 30*time.Second, retryAfterDuration(resp, 10))

	resp.Header.Set("Retry-After", "7")
	assert.Equal(t, 7*time.Second, retryAfterDuration(resp, 0))
}
