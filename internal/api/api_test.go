package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetry() *RetryConfig {
	return &RetryConfig{MaxAttempts: 3, InitialWait: time.Millisecond, MaxWait: 4 * time.Millisecond}
}

func TestBackoff(t *testing.T) {
	rc := &RetryConfig{InitialWait: time.Second, MaxWait: 5 * time.Second}
	assert.Equal(t, time.Second, rc.Backoff(1))
	assert.Equal(t, 2*time.Second, rc.Backoff(2))
	assert.Equal(t, 4*time.Second, rc.Backoff(3))
	assert.Equal(t, 5*time.Second, rc.Backoff(4))
	assert.Equal(t, 5*time.Second, rc.Backoff(10))
}

func TestDoHeadersAndJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "tradegraph test", r.Header.Get("User-Agent"))
		assert.Equal(t, "override", r.Header.Get("X-Extra"))
		_, _ = w.Write([]byte(`{"price": 12.5}`))
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL), WithHeader("User-Agent", "tradegraph test"), WithHeader("X-Extra", "default"))
	resp, err := c.GET(context.Background(), "/quote", map[string]string{"X-Extra": "override"})
	require.NoError(t, err)

	var out struct {
		Price float64 `json:"price"`
	}
	require.NoError(t, resp.ParseJSON(&out))
	assert.Equal(t, 12.5, out.Price)
}

func TestDoWithRetryRecovers(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	resp, err := NewClient().GetWithRetry(context.Background(), srv.URL, fastRetry())
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.String())
	assert.Equal(t, int32(3), calls.Load())
}

func TestDoWithRetryStopsOnClientError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "nope", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewClient().GetWithRetry(context.Background(), srv.URL, fastRetry())
	require.Error(t, err)
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusNotFound, se.StatusCode)
	assert.Equal(t, int32(1), calls.Load())
}

func TestDoWithRetryGivesUp(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := NewClient().GetWithRetry(context.Background(), srv.URL, fastRetry())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all 3 retry attempts failed")
	assert.Equal(t, int32(3), calls.Load())
}

func TestDoWithRetryHonoursCancel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewClient().GetWithRetry(ctx, srv.URL, &RetryConfig{MaxAttempts: 5, InitialWait: time.Hour, MaxWait: time.Hour})
	require.Error(t, err)
}
