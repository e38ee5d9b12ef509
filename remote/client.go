// Package remote is a typed client for the BERDL delta table service.
//
// Every call is a JSON POST. Responses are served from the on-disk cache when
// present; otherwise the request is retried on transient failures with a
// fixed delay between attempts, and the successful body is cached before it
// is returned.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/teranos/lineage/cache"
	"github.com/teranos/lineage/errors"
	"github.com/teranos/lineage/internal/httpclient"
	"github.com/teranos/lineage/logger"
)

// Endpoint paths relative to Config.BaseURL.
const (
	PathListTables = "/delta/databases/tables/list"
	PathSchema     = "/delta/databases/tables/schema"
	PathStructure  = "/delta/databases/structure"
	PathCount      = "/delta/tables/count"
	PathSelect     = "/delta/tables/select"
	PathSample     = "/delta/tables/sample"
)

// Defaults matching the BERDL tooling.
const (
	DefaultBaseURL    = "https://hub.berdl.kbase.us/apis/mcp"
	DefaultDatabase   = "enigma_coral"
	DefaultTimeout    = 180 * time.Second
	DefaultRetries    = 5
	DefaultRetryDelay = 4 * time.Second
	DefaultPageSize   = 1000
)

// maxErrorBody bounds how much of a failed response is kept on the error.
const maxErrorBody = 500

// Config holds the connection settings.
type Config struct {
	BaseURL   string
	Database  string
	AuthToken string
	// Retries is the total attempt budget per request, including the first.
	Retries    int
	RetryDelay time.Duration
	Timeout    time.Duration
	PageSize   int
	// RequestsPerSecond throttles network calls. Zero means unlimited.
	RequestsPerSecond float64
}

// Doer sends one HTTP request.
type Doer interface {
	Do(*http.Request) (*http.Response, error)
}

// Client talks to the remote table service.
type Client struct {
	cfg     Config
	http    Doer
	cache   *cache.Store
	limiter *rate.Limiter
	sleep   func(context.Context, time.Duration) error
	logger  *zap.SugaredLogger

	networkCalls atomic.Int64
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the transport.
func WithHTTPClient(d Doer) Option {
	return func(c *Client) { c.http = d }
}

// WithCache enables the response cache. A nil store disables caching.
func WithCache(s *cache.Store) Option {
	return func(c *Client) { c.cache = s }
}

// WithLogger sets the logger.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l.Named("remote")
		}
	}
}

// WithSleep replaces the inter-attempt wait. Tests use it to skip delays.
func WithSleep(sleep func(context.Context, time.Duration) error) Option {
	return func(c *Client) { c.sleep = sleep }
}

// WithLimiter overrides the limiter derived from Config.RequestsPerSecond.
func WithLimiter(l *rate.Limiter) Option {
	return func(c *Client) { c.limiter = l }
}

// New validates cfg, fills defaults and returns a Client.
func New(cfg Config, opts ...Option) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	u, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid base URL %q", cfg.BaseURL)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, errors.Newf("invalid base URL %q: need http(s)://host", cfg.BaseURL)
	}
	if cfg.Database == "" {
		cfg.Database = DefaultDatabase
	}
	if cfg.Retries <= 0 {
		cfg.Retries = DefaultRetries
	}
	if cfg.RetryDelay < 0 {
		return nil, errors.Newf("retry delay must not be negative, got %s", cfg.RetryDelay)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}

	c := &Client{
		cfg:    cfg,
		sleep:  sleepContext,
		logger: logger.Named(nil, "remote"),
	}
	if cfg.RequestsPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = httpclient.New(httpclient.Options{Timeout: cfg.Timeout})
	}
	return c, nil
}

// Config returns the effective configuration.
func (c *Client) Config() Config { return c.cfg }

// Database returns the database every request targets.
func (c *Client) Database() string { return c.cfg.Database }

// NetworkCalls counts HTTP attempts made so far, cache hits excluded.
func (c *Client) NetworkCalls() int64 { return c.networkCalls.Load() }

// Post sends payload to path and returns the raw JSON response, consulting
// the cache first.
func (c *Client) Post(ctx context.Context, path string, payload any) (json.RawMessage, error) {
	endpoint := c.cfg.BaseURL + path
	q, err := cache.NewQuery(endpoint, payload)
	if err != nil {
		return nil, err
	}
	if c.cache != nil {
		if body, ok := c.cache.Get(q); ok {
			if logger.Enabled(logger.OutputCacheHits) {
				c.logger.Debugw("Cache hit",
					logger.FieldCategory, logger.CategoryName(logger.OutputCacheHits),
					logger.FieldPath, path,
					logger.FieldURL, q.URL)
			}
			return body, nil
		}
	}

	body, err := c.postWithRetry(ctx, path, q)
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		if err := c.cache.Put(q, body); err != nil {
			c.logger.Warnw("Failed to cache response", logger.FieldPath, path, logger.FieldError, err)
		}
	}
	return body, nil
}

func (c *Client) postWithRetry(ctx context.Context, path string, q cache.Query) (json.RawMessage, error) {
	var lastErr error
	for attempt := 1; attempt <= c.cfg.Retries; attempt++ {
		start := time.Now()
		body, err := c.send(ctx, q)
		if err == nil {
			c.logCall(path, attempt, time.Since(start), q, body)
			return body, nil
		}
		if !c.retryable(ctx, err) {
			return nil, err
		}
		lastErr = err

		if isTimeout(err) {
			c.logger.Warnw("Remote request timed out",
				logger.FieldPath, path,
				logger.FieldPayload, string(q.Payload),
				logger.FieldAttempt, attempt)
		} else if logger.Enabled(logger.OutputRetries) {
			c.logger.Infow("Remote request failed",
				logger.FieldPath, path,
				logger.FieldAttempt, attempt,
				logger.FieldError, err)
		}

		if attempt < c.cfg.Retries {
			if err := c.sleep(ctx, c.cfg.RetryDelay); err != nil {
				return nil, errors.Wrap(err, "retry wait interrupted")
			}
		}
	}
	return nil, errors.RemoteUnavailable(lastErr, c.cfg.Retries, q.URL)
}

func (c *Client) logCall(path string, attempt int, took time.Duration, q cache.Query, body json.RawMessage) {
	if !logger.Enabled(logger.OutputHTTPCalls) {
		return
	}
	fields := []any{
		logger.FieldCategory, logger.CategoryName(logger.OutputHTTPCalls),
		logger.FieldPath, path,
		logger.FieldAttempt, attempt,
		logger.FieldDurationMS, took.Milliseconds(),
	}
	if logger.Enabled(logger.OutputRequestBody) {
		fields = append(fields, logger.FieldPayload, string(q.Payload))
	}
	if logger.Enabled(logger.OutputResponseBody) {
		fields = append(fields, "response", string(body))
	}
	c.logger.Debugw("Remote call", fields...)
}

func (c *Client) send(ctx context.Context, q cache.Query) (json.RawMessage, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, errors.Wrap(err, "rate limiter")
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, q.URL, bytes.NewReader(q.Payload))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to build request for %s", q.URL)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.cfg.AuthToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.AuthToken)
	}

	c.networkCalls.Add(1)
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "POST %s", q.URL)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read response from %s", q.URL)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		text := string(body)
		if len(text) > maxErrorBody {
			text = text[:maxErrorBody]
		}
		return nil, errors.WithStack(&errors.HTTPStatusError{
			StatusCode: resp.StatusCode,
			URL:        q.URL,
			Body:       text,
		})
	}
	if !json.Valid(body) {
		return nil, errors.ProtocolMismatch(q.URL, "a JSON document")
	}
	return json.RawMessage(body), nil
}

// retryable treats connection failures, timeouts, 408 and 5xx as transient.
// Caller cancellation and every other status are final.
func (c *Client) retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	if statusErr, ok := errors.AsHTTPStatus(err); ok {
		return statusErr.Retryable()
	}
	if errors.IsProtocolMismatch(err) {
		return false
	}
	return true
}

func isTimeout(err error) bool {
	if statusErr, ok := errors.AsHTTPStatus(err); ok {
		return statusErr.Timeout()
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
