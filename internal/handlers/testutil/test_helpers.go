package testutil

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/vexpense/vexpense/internal/api"
	"github.com/vexpense/vexpense/internal/app"
	iauth "github.com/vexpense/vexpense/internal/auth"
	"github.com/vexpense/vexpense/internal/currency"
	sharedtestutil "github.com/vexpense/vexpense/internal/database/testutil"
	"github.com/vexpense/vexpense/internal/middleware"
	"github.com/vexpense/vexpense/internal/models"
	"github.com/vexpense/vexpense/pkg/crypto"
	"github.com/vexpense/vexpense/pkg/response"
)

// DefaultPassword is the password of every user created through CreateUser.
const DefaultPassword = "Password123!"

// Env encapsulates a fully-wired API instance backed by an in-memory database for handler tests.
type Env struct {
	T         *testing.T
	DB        *gorm.DB
	Router    *gin.Engine
	Config    *app.Config
	Sessions  *iauth.SessionService
	Converter *currency.Converter
}

// EnvOption customises the configuration used by NewEnv.
type EnvOption func(*app.Config)

// WithRateLimit enables the API-wide and auth rate limits.
func WithRateLimit(requests, authRequests int) EnvOption {
	return func(cfg *app.Config) {
		cfg.RateLimit = app.RateLimitConfig{
			Requests:     requests,
			Window:       time.Minute,
			AuthRequests: authRequests,
			AuthWindow:   time.Minute,
		}
	}
}

// NewEnv provisions a fresh handler test environment with migrations applied.
// Rate limiting is disabled unless WithRateLimit is supplied.
func NewEnv(t *testing.T, opts ...EnvOption) *Env {
	t.Helper()

	gin.SetMode(gin.TestMode)

	db := sharedtestutil.MustOpenTestDB(t, sharedtestutil.WithAutoMigrate())

	cfg := &app.Config{
		Auth: app.AuthConfig{
			JWT: app.JWTSettings{
				Secret: "test-suite-super-secret-key-32-bytes!!",
				Issuer: "test-suite",
				TTL:    time.Hour,
			},
			Session: app.SessionSettings{
				TTL:                24 * time.Hour,
				RefreshTokenLength: 40,
			},
			Password: app.PasswordSettings{BcryptCost: 4},
		},
	}
	for _, opt := range opts {
		opt(cfg)
	}

	jwtSvc, err := iauth.NewJWTService(cfg.Auth.JWTServiceConfig())
	require.NoError(t, err)

	sessionSvc, err := iauth.NewSessionService(db, jwtSvc, cfg.Auth.SessionServiceConfig())
	require.NoError(t, err)

	converter := currency.NewConverter(nil)

	router, err := api.NewRouter(db, cfg, sessionSvc, converter, middleware.NewMemoryRateStore())
	require.NoError(t, err)

	return &Env{
		T:         t,
		DB:        db,
		Router:    router,
		Config:    cfg,
		Sessions:  sessionSvc,
		Converter: converter,
	}
}

// CreateUser inserts an active user with DefaultPassword and returns the record.
func (e *Env) CreateUser(email string, role models.Role) *models.User {
	e.T.Helper()

	hashed, err := crypto.HashPasswordWithCost(DefaultPassword, 4)
	require.NoError(e.T, err)

	user := &models.User{
		Email:       email,
		Password:    hashed,
		FirstName:   "Test",
		LastName:    strings.TrimPrefix(string(role), "ROLE_"),
		Role:        role,
		CompanyName: "Company " + email,
		IsActive:    true,
	}
	user.ApplyDefaults()
	require.NoError(e.T, e.DB.Create(user).Error)
	return user
}

// UserPayload captures the subset of user fields returned from auth endpoints.
type UserPayload struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Role      string `json:"role"`
	IsActive  bool   `json:"isActive"`
}

// LoginResult bundles the JSON response from POST /api/auth/login.
type LoginResult struct {
	Token        string      `json:"token"`
	RefreshToken string      `json:"refreshToken"`
	ExpiresAt    time.Time   `json:"expiresAt"`
	User         UserPayload `json:"user"`
}

// Login authenticates with email and password and returns the issued token pair.
func (e *Env) Login(email, password string) LoginResult {
	e.T.Helper()

	payload := map[string]string{
		"email":    email,
		"password": password,
	}

	w := e.Request(http.MethodPost, "/api/auth/login", payload, "")
	require.Equal(e.T, http.StatusOK, w.Code, w.Body.String())

	resp := DecodeResponse(e.T, w)
	require.True(e.T, resp.Success, w.Body.String())

	var result LoginResult
	DecodeInto(e.T, resp.Data, &result)
	require.NotEmpty(e.T, result.Token)
	require.NotEmpty(e.T, result.RefreshToken)
	require.False(e.T, result.ExpiresAt.IsZero())
	require.Equal(e.T, models.NormalizeEmail(email), result.User.Email)

	return result
}

// APIResponse represents the canonical API envelope returned by handlers.
type APIResponse struct {
	Success bool                `json:"success"`
	Data    json.RawMessage     `json:"data"`
	Error   *response.ErrorInfo `json:"error"`
	Meta    *response.Meta      `json:"meta"`
}

// DecodeResponse parses the standard API response object from a recorder.
func DecodeResponse(t *testing.T, w *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var resp APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

// DecodeInto unmarshals the data payload into the provided destination.
func DecodeInto[T any](t *testing.T, raw json.RawMessage, dest *T) {
	t.Helper()
	if dest == nil {
		t.Fatal("destination must not be nil")
	}
	require.NoError(t, json.Unmarshal(raw, dest))
}

// Request executes an HTTP request against the test router, applying JSON encoding and auth headers automatically.
func (e *Env) Request(method, path string, body any, token string) *httptest.ResponseRecorder {
	e.T.Helper()

	var buf *bytes.Buffer
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(e.T, err)
		buf = bytes.NewBuffer(data)
	} else {
		buf = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequest(method, path, buf)
	require.NoError(e.T, err)

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 14_0) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Safari/605.1.15")
	req.RemoteAddr = "192.0.2.10:40000"

	w := httptest.NewRecorder()
	e.Router.ServeHTTP(w, req)
	return w
}
