package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/vexpense/vexpense/internal/models"
	"github.com/vexpense/vexpense/internal/services"
	apperrors "github.com/vexpense/vexpense/pkg/errors"
	"github.com/vexpense/vexpense/pkg/response"
)

// UserHandler exposes profile management and user directories.
type UserHandler struct {
	service *services.UserService
}

// NewUserHandler constructs a UserHandler.
func NewUserHandler(service *services.UserService) (*UserHandler, error) {
	if service == nil {
		return nil, errors.New("user handler: user service is required")
	}
	return &UserHandler{service: service}, nil
}

type updateProfileRequest struct {
	FirstName            *string `json:"firstName" validate:"omitempty,max=50"`
	LastName             *string `json:"lastName" validate:"omitempty,max=50"`
	CompanyName          *string `json:"companyName" validate:"omitempty,max=100"`
	CompanyPhone         *string `json:"companyPhone" validate:"omitempty,max=30"`
	CompanyWebsite       *string `json:"companyWebsite" validate:"omitempty,max=200"`
	CompanyCountry       *string `json:"companyCountry" validate:"omitempty,max=60"`
	Phone                *string `json:"phone" validate:"omitempty,max=30"`
	Timezone             *string `json:"timezone" validate:"omitempty,max=64"`
	Language             *string `json:"language" validate:"omitempty,max=8"`
	PreferredCurrency    *string `json:"preferredCurrency" validate:"omitempty,currency"`
	NotifyEmail          *bool   `json:"notifyEmail"`
	NotifyExpenseShared  *bool   `json:"notifyExpenseShared"`
	NotifyExpenseUpdated *bool   `json:"notifyExpenseUpdated"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=6"`
}

type deactivateRequest struct {
	Password string `json:"password" validate:"required"`
}

// GET /api/users
func (h *UserHandler) List(c *gin.Context) {
	opts := services.ListUsersOptions{
		Page: services.Page{
			Page:    parseIntQuery(c, "page", 1),
			PerPage: parseIntQuery(c, "limit", 10),
		},
		Search: c.Query("search"),
	}
	if raw := strings.TrimSpace(c.Query("role")); raw != "" {
		role, err := models.ParseRole(raw)
		if err != nil {
			response.Error(c, apperrors.NewValidationFailed("Invalid role"))
			return
		}
		opts.Role = role
	}

	users, total, err := h.service.List(requestContext(c), opts)
	if err != nil {
		respondError(c, err)
		return
	}

	page := opts.Page.Normalise()
	response.SuccessWithMeta(c, http.StatusOK, gin.H{"users": users}, response.NewMeta(page.Page, page.PerPage, total))
}

// GET /api/users/exporters
func (h *UserHandler) Exporters(c *gin.Context) {
	h.listByRole(c, models.RoleExporter, "exporters")
}

// GET /api/users/local-users
func (h *UserHandler) LocalUsers(c *gin.Context) {
	h.listByRole(c, models.RoleLocal, "localUsers")
}

func (h *UserHandler) listByRole(c *gin.Context, role models.Role, key string) {
	users, err := h.service.ListByRole(requestContext(c), role)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{key: users})
}

// GET /api/users/:id
func (h *UserHandler) Get(c *gin.Context) {
	user, err := h.service.GetByID(requestContext(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"user": user})
}

// GET /api/users/profile
func (h *UserHandler) Profile(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	user, err := h.service.GetByID(requestContext(c), p.UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"user": user})
}

// PUT /api/users/profile
func (h *UserHandler) UpdateProfile(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	var req updateProfileRequest
	if !bindAndValidate(c, &req) {
		return
	}

	user, err := h.service.UpdateProfile(requestContext(c), p.UserID, services.UpdateProfileInput{
		FirstName:            req.FirstName,
		LastName:             req.LastName,
		CompanyName:          req.CompanyName,
		CompanyPhone:         req.CompanyPhone,
		CompanyWebsite:       req.CompanyWebsite,
		CompanyCountry:       req.CompanyCountry,
		Phone:                req.Phone,
		Timezone:             req.Timezone,
		Language:             req.Language,
		PreferredCurrency:    req.PreferredCurrency,
		NotifyEmail:          req.NotifyEmail,
		NotifyExpenseShared:  req.NotifyExpenseShared,
		NotifyExpenseUpdated: req.NotifyExpenseUpdated,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"user": user})
}

// PUT /api/users/change-password
func (h *UserHandler) ChangePassword(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	var req changePasswordRequest
	if !bindAndValidate(c, &req) {
		return
	}

	if err := h.service.ChangePassword(requestContext(c), p.UserID, req.CurrentPassword, req.NewPassword); err != nil {
		respondError(c, err)
		return
	}
	response.Message(c, http.StatusOK, "Password changed successfully")
}

// PUT /api/users/deactivate
func (h *UserHandler) Deactivate(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	var req deactivateRequest
	if !bindAndValidate(c, &req) {
		return
	}

	if err := h.service.Deactivate(requestContext(c), p.UserID, req.Password); err != nil {
		respondError(c, err)
		return
	}
	response.Message(c, http.StatusOK, "Account deactivated successfully")
}
