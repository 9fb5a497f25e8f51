package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/xenking/rebate-engine/internal/domain/incentive"
	"github.com/xenking/rebate-engine/internal/domain/product"
	"github.com/xenking/rebate-engine/internal/domain/rebate"
	"github.com/xenking/rebate-engine/internal/handler"
	"github.com/xenking/rebate-engine/internal/storage/sqlite"
	"github.com/xenking/rebate-engine/pkg/health"
)

const seedFile = "../../db/seed/catalog.json"

func testConfig(t *testing.T) *Config {
	t.Helper()
	cfg, err := loadConfig(aconfig.Config{SkipFiles: true, SkipFlags: true})
	require.NoError(t, err)
	return cfg
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg := testConfig(t)

	assert.Equal(t, defaultAddr, cfg.Addr)
	assert.Equal(t, DriverMemory, cfg.Store.Driver)
	assert.Equal(t, 30*time.Second, cfg.ProductCache.TTL)
	assert.Empty(t, cfg.Kafka.Brokers)
	assert.Equal(t, "rebate-calculations", cfg.Kafka.Topic)
	assert.Equal(t, 100, cfg.RateLimit.Max)
	assert.Equal(t, []string{"*"}, cfg.CORS.Origins)
	assert.Equal(t, 15*time.Second, cfg.Graceful.ShutdownTimeout)
}

func TestLoadConfig_Env(t *testing.T) {
	t.Setenv("REBATE_STORE_DRIVER", "postgres")
	t.Setenv("REBATE_STORE_DATABASE_URL", "postgres://rebate@localhost/rebate")
	t.Setenv("REBATE_KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("PORT", "9090")

	cfg := testConfig(t)
	assert.Equal(t, DriverPostgres, cfg.Store.Driver)
	assert.Equal(t, "postgres://rebate@localhost/rebate", cfg.Store.DatabaseURL)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "0.0.0.0:9090", cfg.Addr)
}

func TestLoadConfig_PlatformDatabaseURL(t *testing.T) {
	t.Setenv("REBATE_STORE_DRIVER", "postgres")
	t.Setenv("DATABASE_URL", "postgres://platform/db")

	cfg := testConfig(t)
	assert.Equal(t, "postgres://platform/db", cfg.Store.DatabaseURL)
}

func TestLoadConfig_PostgresRequiresURL(t *testing.T) {
	t.Setenv("REBATE_STORE_DRIVER", "postgres")
	t.Setenv("DATABASE_URL", "")

	_, err := loadConfig(aconfig.Config{SkipFiles: true, SkipFlags: true})
	require.ErrorContains(t, err, "database URL is required")
}

func TestStoreConfig_Validate(t *testing.T) {
	assert.NoError(t, StoreConfig{Driver: DriverMemory}.Validate())
	assert.NoError(t, StoreConfig{Driver: DriverSQLite}.Validate())
	assert.NoError(t, StoreConfig{Driver: DriverPostgres, DatabaseURL: "postgres://x"}.Validate())
	assert.Error(t, StoreConfig{Driver: DriverPostgres}.Validate())
	assert.ErrorContains(t, StoreConfig{Driver: "mongo"}.Validate(), `unknown store driver "mongo"`)
}

func TestOpenStores_Memory(t *testing.T) {
	ctx := context.Background()
	stores, err := OpenStores(ctx, zap.NewNop(), StoreConfig{Driver: DriverMemory, SeedFile: seedFile})
	require.NoError(t, err)
	defer stores.Close()

	assert.Nil(t, stores.Ping)

	ids, err := stores.IDs.ListRebateIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"rebate1", "rebate2", "rebate3", "rebate4"}, ids)

	svc := rebate.NewService(stores.Rebates, stores.Products, nil)
	res, err := svc.Calculate(ctx, rebate.CalculateRequest{
		RebateID:  "rebate3",
		ProductID: "product3",
		Volume:    decimal.NewFromInt(2),
	})
	require.NoError(t, err)
	assert.True(t, res.Success)
}

func TestOpenStores_MemoryBadSeed(t *testing.T) {
	_, err := OpenStores(context.Background(), zap.NewNop(), StoreConfig{Driver: DriverMemory, SeedFile: "missing.json"})
	require.ErrorContains(t, err, "load seed file")
}

func TestOpenStores_SQLite(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "rebates.db")

	stores, err := OpenStores(ctx, zap.NewNop(), StoreConfig{Driver: DriverSQLite, SQLitePath: path})
	require.NoError(t, err)
	defer stores.Close()

	require.NotNil(t, stores.Ping)
	require.NoError(t, stores.Ping(ctx))

	require.NoError(t, stores.Rebates.(*sqlite.RebateStore).UpsertRebate(ctx, rebate.Rebate{
		ID:        "r1",
		Incentive: incentive.FixedCashAmount,
		Amount:    decimal.NewFromInt(5),
	}))
	require.NoError(t, stores.Products.(*sqlite.ProductStore).UpsertProduct(ctx, product.Product{ID: "p1"}))

	ids, err := stores.IDs.ListRebateIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"r1"}, ids)
}

func newTestRouter(t *testing.T, rl RateLimitConfig) (http.Handler, *health.Health) {
	t.Helper()
	stores, err := OpenStores(context.Background(), zap.NewNop(), StoreConfig{Driver: DriverMemory, SeedFile: seedFile})
	require.NoError(t, err)

	h, err := handler.New(rebate.NewService(stores.Rebates, stores.Products, nil), metricnoop.NewMeterProvider())
	require.NoError(t, err)

	hs := health.New()
	return NewRouter(RouterOptions{
		Logger:         zap.NewNop(),
		TracerProvider: tracenoop.NewTracerProvider(),
		MeterProvider:  metricnoop.NewMeterProvider(),
		Handler:        h,
		Health:         hs,
		CORS:           CORSConfig{Origins: []string{"https://shop.example.com"}},
		RateLimit:      rl,
	}), hs
}

func TestRouter(t *testing.T) {
	router, hs := newTestRouter(t, RateLimitConfig{Max: 2, Window: time.Minute})

	t.Run("calculate", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/rebates/calculate",
			strings.NewReader(`{"rebateIdentifier":"rebate1","productIdentifier":"product1","volume":1}`))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"success":true}`, w.Body.String())
		assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
		assert.Equal(t, "2", w.Header().Get("X-RateLimit-Limit"))
	})

	t.Run("probes are not rate limited", func(t *testing.T) {
		hs.SetReady(true)
		for range 5 {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
			assert.Equal(t, http.StatusOK, w.Code)
			assert.Empty(t, w.Header().Get("X-RateLimit-Limit"))
		}
	})

	t.Run("cors preflight", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/api/rebates/calculate", nil)
		req.Header.Set("Origin", "https://shop.example.com")
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, "https://shop.example.com", w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("not found", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/unknown", nil))
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}
