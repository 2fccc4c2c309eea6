package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vexpense/vexpense/internal/app"
	"github.com/vexpense/vexpense/internal/models"
)

func testConfig(t *testing.T) *app.Config {
	t.Helper()

	cfg := &app.Config{}
	cfg.Database.Driver = "sqlite"
	cfg.Database.Path = filepath.Join(t.TempDir(), "vexpense.sqlite")
	cfg.Auth.JWT = app.JWTSettings{Secret: "bootstrap-test-secret-bootstrap-test", Issuer: "test", TTL: time.Hour}
	cfg.Auth.Password.BcryptCost = 4
	cfg.Auth.BootstrapAdmin = app.BootstrapAdminSettings{Email: "admin@example.com", Password: "admin-password"}
	cfg.RateLimit = app.RateLimitConfig{Requests: 100, Window: time.Minute, AuthRequests: 10, AuthWindow: time.Minute}
	return cfg
}

func TestBootstrapRuntimeWithDatabaseCache(t *testing.T) {
	cfg := testConfig(t)

	stack, err := bootstrapRuntime(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	defer stack.Shutdown(context.Background(), zap.NewNop())

	require.Nil(t, stack.Redis)
	require.NotNil(t, stack.RateStore)

	var admin models.User
	require.NoError(t, stack.DB.Take(&admin, "email = ?", "admin@example.com").Error)
	require.Equal(t, models.RoleAdmin, admin.Role)

	rec := httptest.NewRecorder()
	stack.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// Rate-limit counters land in the SQL cache table.
	rec = httptest.NewRecorder()
	stack.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/currency/rates", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "99", rec.Header().Get("X-RateLimit-Remaining"))

	var entries int64
	require.NoError(t, stack.DB.Model(&models.CacheEntry{}).Count(&entries).Error)
	require.EqualValues(t, 1, entries)
}

func TestBootstrapRuntimeWithRedis(t *testing.T) {
	mr := miniredis.RunT(t)

	cfg := testConfig(t)
	cfg.Cache.Redis = app.RedisCacheConfig{Enabled: true, Address: mr.Addr(), Timeout: time.Second}

	stack, err := bootstrapRuntime(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	defer stack.Shutdown(context.Background(), zap.NewNop())

	require.NotNil(t, stack.Redis)

	rec := httptest.NewRecorder()
	stack.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/currency/rates", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.NotEmpty(t, mr.Keys())

	rec = httptest.NewRecorder()
	stack.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"component":"redis"`)
}

func TestBootstrapRuntimeRefreshesRatesFromSource(t *testing.T) {
	rates := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"base":"USD","rates":{"JPY":140,"LKR":300,"EUR":0.9}}`))
	}))
	defer rates.Close()

	cfg := testConfig(t)
	cfg.Currency.RatesURL = rates.URL
	cfg.Currency.Timeout = time.Second

	stack, err := bootstrapRuntime(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	defer stack.Shutdown(context.Background(), zap.NewNop())

	rate, err := stack.Converter.Rate("USD", "JPY")
	require.NoError(t, err)
	require.InDelta(t, 140, rate, 0.0001)
}

func TestBootstrapRuntimeRejectsUnknownDriver(t *testing.T) {
	cfg := testConfig(t)
	cfg.Database.Driver = "oracle"

	_, err := bootstrapRuntime(context.Background(), cfg, zap.NewNop())
	require.ErrorContains(t, err, "open database")
}

func TestLoadApplicationConfig(t *testing.T) {
	_, err := loadApplicationConfig(filepath.Join(t.TempDir(), "missing"))
	require.ErrorContains(t, err, "does not exist")

	dir := t.TempDir()
	file := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(file, []byte("server:\n  port: 9191\n"), 0o600))

	cfg, err := loadApplicationConfig(file)
	require.NoError(t, err)
	require.Equal(t, 9191, cfg.Server.Port)

	cfg, err = loadApplicationConfig(dir)
	require.NoError(t, err)
	require.Equal(t, 9191, cfg.Server.Port)
}
