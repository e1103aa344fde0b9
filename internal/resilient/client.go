package resilient

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/doculab/extract/internal/common"
)

// RetryPolicy bounds retries for rate-limited and transient failures.
// Configuration, not mutable state.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

// Client wraps every outbound call to a remote service with a content-hash
// keyed cache, per-service rate limiting, bounded exponential-backoff retry
// and call metrics. One instance per process, injected explicitly.
type Client struct {
	http    *http.Client
	cache   *DiskCache
	mem     *lru.Cache[string, []byte]
	limits  *limiterSet
	retry   RetryPolicy
	metrics *Metrics
	logger  *slog.Logger
	sleep   func(time.Duration) // stubbed in tests
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.http = h
		}
	}
}

func WithRetryPolicy(p RetryPolicy) Option {
	return func(c *Client) {
		if p.MaxAttempts > 0 {
			c.retry = p
		}
	}
}

func WithServiceInterval(service string, d time.Duration) Option {
	return func(c *Client) { c.limits.setInterval(service, d) }
}

func WithMemCacheSize(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.mem, _ = lru.New[string, []byte](n)
		}
	}
}

func NewClient(cache *DiskCache, metrics *Metrics, logger *slog.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = NewMetrics()
	}
	mem, _ := lru.New[string, []byte](128)
	c := &Client{
		http:    &http.Client{Timeout: 180 * time.Second},
		cache:   cache,
		mem:     mem,
		limits:  newLimiterSet(),
		retry:   RetryPolicy{MaxAttempts: 3, BaseDelay: 2 * time.Second},
		metrics: metrics,
		logger:  logger,
		sleep:   time.Sleep,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Metrics exposes the advisory counters for diagnostics endpoints.
func (c *Client) Metrics() *Metrics { return c.metrics }

// CacheKey derives the content-addressed key for a request payload.
func CacheKey(service string, payload []byte) string {
	sum := sha256.Sum256(payload)
	return service + "_" + hex.EncodeToString(sum[:])
}

// Call posts a JSON payload to url on behalf of service, returning the raw
// response body. Identical requests within the cache TTL are served from
// cache without dispatching. Rate-limited (429) and transient transport
// failures retry with exponential backoff up to the policy bound; any other
// failure is terminal and propagated immediately.
func (c *Client) Call(ctx context.Context, service, url string, payload any, headers map[string]string) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	key := CacheKey(service, body)

	if data, ok := c.lookup(key); ok {
		c.metrics.RecordCacheAccess(true)
		c.logger.Debug("resilient.cache_hit", "service", service, "key", key)
		return data, nil
	}
	c.metrics.RecordCacheAccess(false)

	var lastErr error
	for attempt := 0; attempt < c.retry.MaxAttempts; attempt++ {
		if attempt > 0 {
			delay := c.retry.BaseDelay * (1 << (attempt - 1))
			c.logger.Warn("resilient.retry", "service", service, "attempt", attempt+1, "delay", delay, "error", lastErr)
			c.sleep(delay)
		}

		c.limits.get(service).wait()

		data, err := c.dispatch(ctx, service, url, body, headers)
		if err == nil {
			c.store(key, data)
			return data, nil
		}
		lastErr = err
		if !common.Retriable(err) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("%s: retries exhausted after %d attempts: %w", service, c.retry.MaxAttempts, lastErr)
}

func (c *Client) lookup(key string) ([]byte, bool) {
	if data, ok := c.mem.Get(key); ok {
		return data, true
	}
	if c.cache == nil {
		return nil, false
	}
	data, ok := c.cache.Get(key)
	if ok {
		c.mem.Add(key, data)
	}
	return data, ok
}

func (c *Client) store(key string, data []byte) {
	c.mem.Add(key, data)
	if c.cache != nil {
		c.cache.Set(key, data)
	}
}

// dispatch performs a single HTTP POST and classifies the outcome.
func (c *Client) dispatch(ctx context.Context, service, url string, body []byte, headers map[string]string) ([]byte, error) {
	reqID := uuid.New().String()
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	c.logger.Info("resilient.request",
		"req_id", reqID,
		"service", service,
		"url", url,
		"content_length", len(body),
	)

	resp, err := c.http.Do(req)
	if err != nil {
		c.metrics.RecordCall(service, time.Since(start), false)
		c.logger.Error("resilient.send_error", "req_id", reqID, "service", service, "error", err)
		return nil, &common.TransientError{Cause: err}
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			c.logger.Warn("resilient.body_close_error", "req_id", reqID, "error", cerr)
		}
	}()

	raw, _ := io.ReadAll(resp.Body)
	elapsed := time.Since(start)

	c.logger.Info("resilient.response",
		"req_id", reqID,
		"service", service,
		"status", resp.StatusCode,
		"bytes", len(raw),
		"elapsed_ms", elapsed.Milliseconds(),
	)

	if resp.StatusCode/100 != 2 {
		c.metrics.RecordCall(service, elapsed, false)
		return nil, &common.RemoteStatusError{Service: service, Status: resp.StatusCode, Body: string(raw)}
	}

	c.metrics.RecordCall(service, elapsed, true)
	return raw, nil
}
