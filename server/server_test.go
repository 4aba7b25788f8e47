package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/coveridge/tiercache/cachekey"
	"github.com/coveridge/tiercache/engine"
	"github.com/coveridge/tiercache/monitoring"
	"github.com/coveridge/tiercache/strategy"
	"github.com/coveridge/tiercache/tier"
)

func newTestServer(t *testing.T) (*AdminServer, *engine.Engine) {
	t.Helper()

	logger := zaptest.NewLogger(t).Sugar()
	registry := strategy.NewRegistry(logger)

	fast := tier.New(tier.Config{
		Name:       "fast",
		Kind:       tier.KindMemory,
		TTL:        time.Minute,
		MaxEntries: 100,
		Eviction:   tier.EvictLRU,
		Enabled:    true,
		Priority:   1,
	}, tier.NewMemoryDriver(100, tier.EvictLRU))
	registry.Register(cachekey.CategoryUserData, strategy.New([]*tier.Tier{fast}))

	monitor, err := monitoring.NewCacheMonitor(nil, logger)
	require.NoError(t, err)

	e := engine.New(registry, logger, engine.Options{Monitor: monitor})
	t.Cleanup(e.Stop)

	return NewAdminServer(e, registry, strategy.Drivers{}, monitor, logger), e
}

func doRequest(t *testing.T, handler http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	request := httptest.NewRequest(method, path, reader)
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)
	return recorder
}

func TestAdminServer(t *testing.T) {
	ctx := context.Background()

	t.Run("Health", func(t *testing.T) {
		s, _ := newTestServer(t)
		recorder := doRequest(t, s.Router(), "GET", "/health", "")
		assert.Equal(t, http.StatusOK, recorder.Code)
	})

	t.Run("Metrics lists every tier", func(t *testing.T) {
		s, e := newTestServer(t)
		require.NoError(t, e.Set(ctx, "lead:1", map[string]string{"id": "1"}, 0))

		recorder := doRequest(t, s.Router(), "GET", "/v1/cache/metrics", "")
		require.Equal(t, http.StatusOK, recorder.Code)

		var response struct {
			Tiers       []engine.TierMetrics `json:"tiers"`
			TrackedKeys int                  `json:"tracked_keys"`
		}
		require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &response))
		require.Len(t, response.Tiers, 1)
		assert.Equal(t, "fast", response.Tiers[0].Tier)
		assert.Equal(t, 1, response.TrackedKeys)
	})

	t.Run("Hit rates", func(t *testing.T) {
		s, e := newTestServer(t)
		require.NoError(t, e.Set(ctx, "lead:1", "v", 0))
		_, err := e.Get(ctx, "lead:1", nil)
		require.NoError(t, err)

		recorder := doRequest(t, s.Router(), "GET", "/v1/cache/hit-rates", "")
		require.Equal(t, http.StatusOK, recorder.Code)

		var report engine.HitRateReport
		require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &report))
		assert.Equal(t, 1.0, report.Overall)
	})

	t.Run("Recommendations default to an empty list", func(t *testing.T) {
		s, _ := newTestServer(t)
		recorder := doRequest(t, s.Router(), "GET", "/v1/cache/recommendations", "")
		require.Equal(t, http.StatusOK, recorder.Code)
		assert.JSONEq(t, `{"recommendations":[]}`, recorder.Body.String())
	})

	t.Run("Top keys respects the limit parameter", func(t *testing.T) {
		s, e := newTestServer(t)
		require.NoError(t, e.Set(ctx, "lead:1", "v", 0))
		require.NoError(t, e.Set(ctx, "lead:2", "v", 0))

		recorder := doRequest(t, s.Router(), "GET", "/v1/cache/keys?limit=1", "")
		require.Equal(t, http.StatusOK, recorder.Code)

		var response struct {
			Keys []cachekey.Info `json:"keys"`
		}
		require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &response))
		assert.Len(t, response.Keys, 1)

		recorder = doRequest(t, s.Router(), "GET", "/v1/cache/keys?limit=0", "")
		assert.Equal(t, http.StatusBadRequest, recorder.Code)
	})

	t.Run("Key info", func(t *testing.T) {
		s, e := newTestServer(t)
		require.NoError(t, e.Set(ctx, "lead:1", "v", 0))

		recorder := doRequest(t, s.Router(), "GET", "/v1/cache/keys/lead:1", "")
		require.Equal(t, http.StatusOK, recorder.Code)

		var info cachekey.Info
		require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &info))
		assert.Equal(t, "lead:1", info.Key)
		assert.Equal(t, cachekey.CategoryUserData, info.Category)

		recorder = doRequest(t, s.Router(), "GET", "/v1/cache/keys/lead:999", "")
		assert.Equal(t, http.StatusNotFound, recorder.Code)
	})

	t.Run("Invalidate", func(t *testing.T) {
		s, e := newTestServer(t)
		require.NoError(t, e.Set(ctx, "lead:1", "v", 0))
		require.NoError(t, e.Set(ctx, "lead:2", "v", 0))

		recorder := doRequest(t, s.Router(), "POST", "/v1/cache/invalidate",
			`{"pattern": "lead:*", "reason": "bulk import"}`)
		require.Equal(t, http.StatusOK, recorder.Code)

		var response struct {
			Removed int `json:"removed"`
		}
		require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &response))
		assert.Equal(t, 2, response.Removed)
	})

	t.Run("Invalidate rejects bad input", func(t *testing.T) {
		s, _ := newTestServer(t)

		recorder := doRequest(t, s.Router(), "POST", "/v1/cache/invalidate", `{"pattern": ""}`)
		assert.Equal(t, http.StatusBadRequest, recorder.Code)

		recorder = doRequest(t, s.Router(), "POST", "/v1/cache/invalidate", `{"pattern": "lead:[a]"}`)
		assert.Equal(t, http.StatusBadRequest, recorder.Code)
		assert.Contains(t, recorder.Body.String(), "invalid_pattern")

		recorder = doRequest(t, s.Router(), "POST", "/v1/cache/invalidate", "not json")
		assert.Equal(t, http.StatusBadRequest, recorder.Code)
	})

	t.Run("Warm", func(t *testing.T) {
		s, _ := newTestServer(t)
		recorder := doRequest(t, s.Router(), "POST", "/v1/cache/warm", "")
		require.Equal(t, http.StatusOK, recorder.Code)
		assert.JSONEq(t, `{"warmed":0}`, recorder.Body.String())
	})

	t.Run("Register strategy dynamically", func(t *testing.T) {
		s, e := newTestServer(t)

		recorder := doRequest(t, s.Router(), "PUT", "/v1/cache/strategies/analytics",
			`{"tiers": [{"name": "fast", "kind": "memory", "ttl": "5m", "max_entries": 10, "eviction": "lfu", "priority": 1}]}`)
		require.Equal(t, http.StatusOK, recorder.Code)

		err := e.SetWithStrategy(ctx, "report:q3", cachekey.CategoryAnalytics, "totals", 0)
		assert.NoError(t, err)
	})

	t.Run("Register strategy rejects bad declarations", func(t *testing.T) {
		s, _ := newTestServer(t)

		recorder := doRequest(t, s.Router(), "PUT", "/v1/cache/strategies/analytics",
			`{"tiers": [{"name": "durable", "kind": "remote", "ttl": "5m", "priority": 1}]}`)
		assert.Equal(t, http.StatusBadRequest, recorder.Code)
		assert.Contains(t, recorder.Body.String(), "invalid_strategy")
	})

	t.Run("List strategies", func(t *testing.T) {
		s, _ := newTestServer(t)
		recorder := doRequest(t, s.Router(), "GET", "/v1/cache/strategies", "")
		require.Equal(t, http.StatusOK, recorder.Code)
		assert.Contains(t, recorder.Body.String(), "user_data")
	})

	t.Run("Prometheus exposition mounted", func(t *testing.T) {
		s, e := newTestServer(t)
		require.NoError(t, e.Set(ctx, "lead:1", "v", 0))

		recorder := doRequest(t, s.Router(), "GET", "/metrics", "")
		require.Equal(t, http.StatusOK, recorder.Code)
		assert.Contains(t, recorder.Body.String(), "tiercache_engine_sets_total")
	})
}
