package resilient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doculab/extract/internal/common"
)

func newTestClient(t *testing.T, opts ...Option) *Client {
	t.Helper()
	cache, err := NewDiskCache(t.TempDir(), time.Hour, 100, nil)
	require.NoError(t, err)
	c := NewClient(cache, NewMetrics(), nil, opts...)
	c.sleep = func(time.Duration) {} // no real backoff in tests
	return c
}

func TestCallCachesIdenticalRequests(t *testing.T) {
	var dispatched int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&dispatched, 1)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := newTestClient(t)
	ctx := context.Background()
	payload := map[string]string{"doc": "abc"}

	first, err := c.Call(ctx, "svc", srv.URL, payload, nil)
	require.NoError(t, err)
	second, err := c.Call(ctx, "svc", srv.URL, payload, nil)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), atomic.LoadInt32(&dispatched), "second call must be served from cache")
}

func TestCallRetriesRateLimitedUpToBound(t *testing.T) {
	var dispatched int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&dispatched, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := newTestClient(t, WithRetryPolicy(RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond}))

	_, err := c.Call(context.Background(), "svc", srv.URL, map[string]string{"doc": "x"}, nil)
	require.Error(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&dispatched), "exactly MaxAttempts dispatches")
}

func TestCallDoesNotRetryTerminalStatus(t *testing.T) {
	var dispatched int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&dispatched, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c := newTestClient(t, WithRetryPolicy(RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond}))

	_, err := c.Call(context.Background(), "svc", srv.URL, map[string]string{"doc": "x"}, nil)
	require.Error(t, err)

	var statusErr *common.RemoteStatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusBadRequest, statusErr.Status)
	assert.Equal(t, int32(1), atomic.LoadInt32(&dispatched), "terminal status must not retry")
}

func TestCallRetriesTransientThenSucceeds(t *testing.T) {
	var dispatched int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&dispatched, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := newTestClient(t, WithRetryPolicy(RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond}))

	body, err := c.Call(context.Background(), "svc", srv.URL, map[string]string{"doc": "x"}, nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(body))
	assert.Equal(t, int32(2), atomic.LoadInt32(&dispatched))
}

func TestCallSendsHeaders(t *testing.T) {
	var gotAuth, gotCT string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotCT = r.Header.Get("Content-Type")
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := newTestClient(t)
	_, err := c.Call(context.Background(), "svc", srv.URL, map[string]string{"doc": "x"},
		map[string]string{"Authorization": "Bearer token"})
	require.NoError(t, err)
	assert.Equal(t, "Bearer token", gotAuth)
	assert.Equal(t, "application/json", gotCT)
}

func TestCacheKeyIsContentAddressed(t *testing.T) {
	a := CacheKey("ocr", []byte("payload"))
	b := CacheKey("ocr", []byte("payload"))
	c := CacheKey("ocr", []byte("other"))
	d := CacheKey("other", []byte("payload"))

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.NotEqual(t, a, d)
	assert.Contains(t, a, "ocr_")
}

func TestMetricsRecordedOnCalls(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := newTestClient(t)
	_, err := c.Call(context.Background(), "svc", srv.URL, map[string]string{"a": "1"}, nil)
	require.NoError(t, err)
	_, err = c.Call(context.Background(), "svc", srv.URL, map[string]string{"a": "1"}, nil)
	require.NoError(t, err)

	summary := c.Metrics().Summary()
	cacheStats := summary["cache"].(map[string]any)
	assert.Equal(t, int64(1), cacheStats["hits"])
	assert.Equal(t, int64(1), cacheStats["misses"])

	calls := summary["api_calls"].(map[string]any)
	svc := calls["svc"].(map[string]any)
	assert.Equal(t, int64(1), svc["count"])
}
