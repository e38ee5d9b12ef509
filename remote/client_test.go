package remote

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/teranos/lineage/cache"
	"github.com/teranos/lineage/errors"
	"github.com/teranos/lineage/internal/httpclient"
	"github.com/teranos/lineage/logger"
)

func noSleep(context.Context, time.Duration) error { return nil }

// newTestClient points a client at handler with instant retries.
func newTestClient(t *testing.T, handler http.Handler, cfg Config, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg.BaseURL = srv.URL
	base := []Option{
		WithHTTPClient(httpclient.Wrap(srv.Client())),
		WithSleep(noSleep),
		WithLogger(zaptest.NewLogger(t).Sugar()),
	}
	c, err := New(cfg, append(base, opts...)...)
	require.NoError(t, err)
	return c
}

func TestNew_Defaults(t *testing.T) {
	c, err := New(Config{})
	require.NoError(t, err)

	cfg := c.Config()
	assert.Equal(t, DefaultBaseURL, cfg.BaseURL)
	assert.Equal(t, DefaultDatabase, cfg.Database)
	assert.Equal(t, DefaultRetries, cfg.Retries)
	assert.Equal(t, DefaultTimeout, cfg.Timeout)
	assert.Equal(t, DefaultPageSize, cfg.PageSize)
}

func TestNew_RejectsBadBaseURL(t *testing.T) {
	for _, raw := range []string{"ftp://host/x", "not a url", "http://"} {
		_, err := New(Config{BaseURL: raw})
		assert.Error(t, err, raw)
	}
}

// Two gateway timeouts then success, inside a three-attempt budget.
func TestPost_RetriesGatewayTimeout(t *testing.T) {
	var calls atomic.Int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusGatewayTimeout)
			return
		}
		w.Write([]byte(`{"count":7}`))
	})

	var slept []time.Duration
	c := newTestClient(t, handler, Config{Retries: 3, RetryDelay: 4 * time.Second},
		WithSleep(func(_ context.Context, d time.Duration) error {
			slept = append(slept, d)
			return nil
		}))

	n, err := c.CountRows(context.Background(), "sdt_reads")
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, []time.Duration{4 * time.Second, 4 * time.Second}, slept)
}

func TestPost_RetriesServerErrorsAndRequestTimeout(t *testing.T) {
	statuses := []int{http.StatusRequestTimeout, http.StatusBadGateway, http.StatusInternalServerError}
	var calls atomic.Int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		i := int(calls.Add(1)) - 1
		if i < len(statuses) {
			w.WriteHeader(statuses[i])
			return
		}
		w.Write([]byte(`{"tables":[]}`))
	})
	c := newTestClient(t, handler, Config{Retries: 4})

	_, err := c.ListTables(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(4), calls.Load())
}

func TestPost_ExhaustedBudget(t *testing.T) {
	var calls atomic.Int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("maintenance"))
	})
	c := newTestClient(t, handler, Config{Retries: 3})

	_, err := c.ListTables(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsRemoteUnavailable(err))
	assert.Equal(t, int32(3), calls.Load())

	statusErr, ok := errors.AsHTTPStatus(err)
	require.True(t, ok, "last failure must stay reachable")
	assert.Equal(t, http.StatusServiceUnavailable, statusErr.StatusCode)
	assert.Equal(t, "maintenance", statusErr.Body)
}

func TestPost_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	})
	c := newTestClient(t, handler, Config{Retries: 5})

	_, err := c.ListTables(context.Background())
	require.Error(t, err)
	assert.False(t, errors.IsRemoteUnavailable(err))
	assert.Equal(t, int32(1), calls.Load())

	statusErr, ok := errors.AsHTTPStatus(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusUnauthorized, statusErr.StatusCode)
}

func TestPost_InvalidJSONIsProtocolMismatch(t *testing.T) {
	var calls atomic.Int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`<html>gateway</html>`))
	})
	c := newTestClient(t, handler, Config{Retries: 5})

	_, err := c.ListTables(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsProtocolMismatch(err))
	assert.Equal(t, int32(1), calls.Load())
}

func TestPost_ConnectionFailureRetried(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := New(Config{BaseURL: url, Retries: 2}, WithSleep(noSleep))
	require.NoError(t, err)

	_, err = c.ListTables(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsRemoteUnavailable(err))
	assert.Equal(t, int64(2), c.NetworkCalls())
}

func TestPost_CancelledContextStopsRetrying(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	ctx, cancel := context.WithCancel(context.Background())
	c := newTestClient(t, handler, Config{Retries: 5},
		WithSleep(func(context.Context, time.Duration) error {
			cancel()
			return context.Canceled
		}))

	_, err := c.ListTables(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int64(1), c.NetworkCalls())
}

func TestPost_RequestShape(t *testing.T) {
	var gotAuth, gotType, gotPath string
	var gotBody map[string]any
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotType = r.Header.Get("Content-Type")
		gotPath = r.URL.Path
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &gotBody)
		w.Write([]byte(`{"tables":["sdt_reads"]}`))
	})
	c := newTestClient(t, handler, Config{AuthToken: "secret", Database: "enigma_coral"})

	_, err := c.ListTables(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bearer secret", gotAuth)
	assert.Equal(t, "application/json", gotType)
	assert.Equal(t, PathListTables, gotPath)
	assert.Equal(t, map[string]any{"database": "enigma_coral", "use_hms": true}, gotBody)
}

func TestPost_CacheIdempotence(t *testing.T) {
	var calls atomic.Int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`{"columns":["sys_process_id","input_objects","output_objects"]}`))
	})
	store := cache.New(t.TempDir())
	c := newTestClient(t, handler, Config{}, WithCache(store))

	first, err := c.Post(context.Background(), PathSchema, map[string]any{"database": "d", "table": "sys_process"})
	require.NoError(t, err)
	second, err := c.Post(context.Background(), PathSchema, map[string]any{"table": "sys_process", "database": "d"})
	require.NoError(t, err)

	assert.Equal(t, []byte(first), []byte(second))
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, int64(1), c.NetworkCalls())
}

// A cached entry older than the TTL is refetched exactly once.
func TestPost_StaleCacheEntryRefetched(t *testing.T) {
	var calls atomic.Int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`{"count":2}`))
	})
	store := cache.New(t.TempDir(), cache.WithTTL(time.Hour))
	c := newTestClient(t, handler, Config{}, WithCache(store))

	payload := map[string]any{"database": c.Database(), "table": "sdt_reads"}
	q, err := cache.NewQuery(c.Config().BaseURL+PathCount, payload)
	require.NoError(t, err)
	require.NoError(t, store.Put(q, json.RawMessage(`{"count":1}`)))
	key, err := q.Key()
	require.NoError(t, err)
	stale := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(store.Path(key), stale, stale))

	n, err := c.CountRows(context.Background(), "sdt_reads")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Equal(t, int32(1), calls.Load())

	n, err = c.CountRows(context.Background(), "sdt_reads")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Equal(t, int32(1), calls.Load(), "fresh entry must be served from cache")
}

func TestPost_FailuresAreNotCached(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	store := cache.New(t.TempDir())
	c := newTestClient(t, handler, Config{}, WithCache(store))

	_, err := c.CountRows(context.Background(), "missing")
	require.Error(t, err)

	entries, err := store.Entries()
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestPost_CallLoggingFollowsVerbosity(t *testing.T) {
	prev := logger.Verbosity
	t.Cleanup(func() { logger.Verbosity = prev })

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"count":3}`))
	})
	payload := map[string]any{"database": "d", "table": "t"}

	tests := []struct {
		name      string
		verbosity int
		want      []string
	}{
		{name: "default", verbosity: logger.VerbosityUser, want: nil},
		{name: "debug", verbosity: logger.VerbosityDebug, want: []string{"Remote call", "Cache hit"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger.Verbosity = tt.verbosity
			core, logs := observer.New(zapcore.DebugLevel)
			c := newTestClient(t, handler, Config{},
				WithCache(cache.New(t.TempDir())),
				WithLogger(zap.New(core).Sugar()))

			for i := 0; i < 2; i++ {
				_, err := c.Post(context.Background(), PathCount, payload)
				require.NoError(t, err)
			}

			var got []string
			for _, e := range logs.All() {
				got = append(got, e.Message)
			}
			assert.Equal(t, tt.want, got)
			for _, e := range logs.FilterMessage("Remote call").All() {
				assert.NotContains(t, e.ContextMap(), logger.FieldPayload, "bodies need -vvvv")
			}
		})
	}
}
