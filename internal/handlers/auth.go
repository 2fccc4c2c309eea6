package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	iauth "github.com/vexpense/vexpense/internal/auth"
	"github.com/vexpense/vexpense/internal/middleware"
	"github.com/vexpense/vexpense/internal/models"
	"github.com/vexpense/vexpense/internal/services"
	apperrors "github.com/vexpense/vexpense/pkg/errors"
	"github.com/vexpense/vexpense/pkg/response"
)

// AuthHandler manages authentication flows: sign-up, login, token refresh,
// logout and session listing.
type AuthHandler struct {
	sessions *iauth.SessionService
	users    *services.UserService
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(sessions *iauth.SessionService, users *services.UserService) (*AuthHandler, error) {
	if sessions == nil {
		return nil, errors.New("auth handler: session service is required")
	}
	if users == nil {
		return nil, errors.New("auth handler: user service is required")
	}
	return &AuthHandler{sessions: sessions, users: users}, nil
}

type registerRequest struct {
	Email             string `json:"email" validate:"required,email"`
	Password          string `json:"password" validate:"required,min=6"`
	FirstName         string `json:"firstName" validate:"required,max=50"`
	LastName          string `json:"lastName" validate:"required,max=50"`
	Role              string `json:"role" validate:"omitempty,oneof=ROLE_EXPORTER ROLE_LOCAL"`
	CompanyName       string `json:"companyName" validate:"omitempty,max=100"`
	CompanyPhone      string `json:"companyPhone" validate:"omitempty,max=30"`
	CompanyWebsite    string `json:"companyWebsite" validate:"omitempty,max=200"`
	CompanyCountry    string `json:"companyCountry" validate:"omitempty,max=60"`
	Phone             string `json:"phone" validate:"omitempty,max=30"`
	PreferredCurrency string `json:"preferredCurrency" validate:"omitempty,currency"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

type loginResponse struct {
	Token        string       `json:"token"`
	RefreshToken string       `json:"refreshToken"`
	User         *models.User `json:"user"`
	ExpiresAt    time.Time    `json:"expiresAt"`
}

type refreshResponse struct {
	Token        string    `json:"token"`
	RefreshToken string    `json:"refreshToken"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

// POST /api/auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if !bindAndValidate(c, &req) {
		return
	}

	user, err := h.users.Register(requestContext(c), services.RegisterInput{
		Email:             req.Email,
		Password:          req.Password,
		FirstName:         req.FirstName,
		LastName:          req.LastName,
		Role:              models.Role(req.Role),
		CompanyName:       req.CompanyName,
		CompanyPhone:      req.CompanyPhone,
		CompanyWebsite:    req.CompanyWebsite,
		CompanyCountry:    req.CompanyCountry,
		Phone:             req.Phone,
		PreferredCurrency: req.PreferredCurrency,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"user": user})
}

// POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if !bindAndValidate(c, &req) {
		return
	}

	device := iauth.ParseDeviceInfo(c.Request.UserAgent(), c.ClientIP())
	bundle, err := h.sessions.Authenticate(requestContext(c), req.Email, req.Password, device)
	if err != nil {
		respondError(c, sessionError(err))
		return
	}

	response.Success(c, http.StatusOK, loginResponse{
		Token:        bundle.AccessToken,
		RefreshToken: bundle.RefreshToken,
		User:         bundle.User,
		ExpiresAt:    bundle.ExpiresAt.UTC(),
	})
}

// POST /api/auth/refresh-token
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req refreshRequest
	if !bindAndValidate(c, &req) {
		return
	}

	bundle, err := h.sessions.Refresh(requestContext(c), req.RefreshToken)
	if err != nil {
		respondError(c, sessionError(err))
		return
	}

	response.Success(c, http.StatusOK, refreshResponse{
		Token:        bundle.AccessToken,
		RefreshToken: bundle.RefreshToken,
		ExpiresAt:    bundle.ExpiresAt.UTC(),
	})
}

// POST /api/auth/logout
//
// Always succeeds; a missing or unknown token simply has nothing to revoke.
func (h *AuthHandler) Logout(c *gin.Context) {
	if token, ok := middleware.BearerToken(c); ok {
		if err := h.sessions.Revoke(requestContext(c), token); err != nil {
			respondError(c, err)
			return
		}
	}
	response.Message(c, http.StatusOK, "Logged out successfully")
}

// POST /api/auth/logout-all
func (h *AuthHandler) LogoutAll(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	revoked, err := h.sessions.RevokeAll(requestContext(c), p.UserID)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"message": "Logged out from all devices",
		"revoked": revoked,
	})
}

// GET /api/auth/profile
func (h *AuthHandler) Profile(c *gin.Context) {
	user, ok := middleware.UserFromContext(c)
	if !ok {
		response.Error(c, apperrors.ErrUnauthorized)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"user": user})
}

// GET /api/auth/sessions
func (h *AuthHandler) Sessions(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	sessions, err := h.sessions.ListSessions(requestContext(c), p.UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"sessions": sessions})
}

// sessionError maps Session Manager failures to client errors without
// revealing which credential was wrong.
func sessionError(err error) error {
	switch {
	case errors.Is(err, iauth.ErrInvalidCredentials):
		return apperrors.ErrInvalidCredentials
	case errors.Is(err, iauth.ErrAccountDeactivated):
		return apperrors.ErrAccountDeactivated
	case errors.Is(err, iauth.ErrInvalidSession):
		return apperrors.ErrInvalidSession.WithMessage("Invalid or expired refresh token")
	case errors.Is(err, iauth.ErrUserNotFound):
		return apperrors.ErrUserNotFound
	default:
		return apperrors.ErrInternalServer.WithInternal(err)
	}
}
