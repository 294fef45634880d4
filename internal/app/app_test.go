package app

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vibecommerce/storefront/internal/config"
	"github.com/vibecommerce/storefront/pkg/logger"
)

func testConfig() *config.Config {
	return &config.Config{
		Environment:         "test",
		LogLevel:            "error",
		HTTPPort:            4000,
		SessionID:           "default",
		CartStore:           config.StoreMemory,
		OrderStore:          config.StoreMemory,
		StoreTimeout:        time.Second,
		MongoURI:            "mongodb://127.0.0.1:1",
		MongoDatabase:       "storefront-test",
		MongoConnectTimeout: 200 * time.Millisecond,
		RedisAddr:           "127.0.0.1:1",
		CartTTL:             1,
		CORSAllowedOrigins:  []string{"*"},
	}
}

func newTestApp(t *testing.T, cfg *config.Config) *App {
	t.Helper()
	a, err := NewApp(cfg, logger.NewWithWriter("storefront", "error", io.Discard))
	require.NoError(t, err)
	t.Cleanup(a.closeResources)
	return a
}

func storageStatus(t *testing.T, a *App) map[string]any {
	t.Helper()
	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Data
}

func TestNewApp_MemoryStores(t *testing.T) {
	a := newTestApp(t, testConfig())

	status := storageStatus(t, a)
	assert.Equal(t, "memory", status["database"])
	assert.Equal(t, "memory", status["orders"])
	assert.Nil(t, a.mongoClient)
	assert.Nil(t, a.rdb)
	assert.Nil(t, a.pool)
}

func TestNewApp_UnreachableMongoFallsBackToMemory(t *testing.T) {
	cfg := testConfig()
	cfg.CartStore = config.StoreMongo
	cfg.OrderStore = config.StoreMongo

	start := time.Now()
	a := newTestApp(t, cfg)

	status := storageStatus(t, a)
	assert.Equal(t, "memory", status["database"])
	assert.Equal(t, "memory", status["orders"])
	assert.Error(t, a.mongoErr)
	// The second store reuses the failed connection attempt.
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestNewApp_UnreachableRedisFallsBackToMemory(t *testing.T) {
	cfg := testConfig()
	cfg.CartStore = config.StoreRedis

	a := newTestApp(t, cfg)

	assert.Equal(t, "memory", storageStatus(t, a)["database"])
	assert.Nil(t, a.rdb)
}

func TestNewApp_ServesBuiltInCatalogWithoutUpstream(t *testing.T) {
	a := newTestApp(t, testConfig())

	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/products", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data []map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotEmpty(t, body.Data)
}

func TestApp_RunStopsOnCancel(t *testing.T) {
	cfg := testConfig()
	cfg.HTTPPort = 0
	a, err := NewApp(cfg, logger.NewWithWriter("storefront", "error", io.Discard))
	require.NoError(t, err)
	a.httpServer.Addr = "127.0.0.1:0"

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
