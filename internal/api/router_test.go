package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/vexpense/vexpense/internal/app"
	iauth "github.com/vexpense/vexpense/internal/auth"
	"github.com/vexpense/vexpense/internal/currency"
	testutil "github.com/vexpense/vexpense/internal/database/testutil"
	"github.com/vexpense/vexpense/internal/monitoring"
)

func newTestRouter(t *testing.T, opts ...Option) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())

	cfg := &app.Config{}
	cfg.Auth.JWT = app.JWTSettings{Secret: "router-test-secret-router-test-secret", Issuer: "test", TTL: time.Hour}
	cfg.Auth.Password.BcryptCost = 4
	cfg.Server.CORSOrigins = []string{"https://app.example.com"}

	jwtSvc, err := iauth.NewJWTService(cfg.Auth.JWTServiceConfig())
	require.NoError(t, err)
	sessions, err := iauth.NewSessionService(db, jwtSvc, cfg.Auth.SessionServiceConfig())
	require.NoError(t, err)

	router, err := NewRouter(db, cfg, sessions, currency.NewConverter(nil), nil, opts...)
	require.NoError(t, err)
	return router, db
}

func serve(router http.Handler, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	router.ServeHTTP(rec, req)
	return rec
}

func TestNewRouterRequiresDependencies(t *testing.T) {
	_, err := NewRouter(nil, &app.Config{}, nil, nil, nil)
	require.ErrorContains(t, err, "database handle")
}

func TestRouter_PublicAndProtectedRoutes(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := serve(router, http.MethodGet, "/health")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Contains(t, rec.Body.String(), `"status":"up"`)
	require.Contains(t, rec.Body.String(), `"component":"database"`)

	for _, path := range []string{"/api/auth/profile", "/api/users", "/api/expenses", "/api/expenses/statistics", "/api/currency/rates", "/api/exporters/public", "/api/parts", "/api/shipments"} {
		rec = serve(router, http.MethodGet, path)
		require.Equal(t, http.StatusUnauthorized, rec.Code, path)
		require.Equal(t, "Bearer", rec.Header().Get("WWW-Authenticate"), path)
	}

	// Logout is public and always answers 200.
	rec = serve(router, http.MethodPost, "/api/auth/logout")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestRouter_FallbackHandlers(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := serve(router, http.MethodGet, "/api/nope")
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Contains(t, rec.Body.String(), "NOT_FOUND")

	rec = serve(router, http.MethodDelete, "/health")
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRouter_GlobalHeaders(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://app.example.com")
	router.ServeHTTP(rec, req)

	require.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
	require.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}

func TestRouter_MetricsEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := serve(router, http.MethodGet, "/health")
	require.Equal(t, http.StatusOK, rec.Code)

	metricsRec := serve(router, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, metricsRec.Code)

	body := metricsRec.Body.String()
	require.True(t, strings.Contains(body, `vexpense_api_latency_seconds_count{method="GET",path="/health",status="200"}`), body)
}

func TestRouter_HealthReportsProbeFailures(t *testing.T) {
	degraded := monitoring.NewCheck("redis", func(context.Context) monitoring.ProbeResult {
		return monitoring.ProbeResult{Status: monitoring.StatusDegraded, Details: "redis unavailable"}
	})
	router, _ := newTestRouter(t, WithHealthChecks(degraded))

	rec := serve(router, http.MethodGet, "/api/health")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"status":"degraded"`)

	down := monitoring.NewCheck("disk", func(context.Context) monitoring.ProbeResult {
		return monitoring.ProbeResult{Status: monitoring.StatusDown}
	})
	router, _ = newTestRouter(t, WithHealthChecks(down))

	rec = serve(router, http.MethodGet, "/health")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Contains(t, rec.Body.String(), `"component":"disk"`)
}
