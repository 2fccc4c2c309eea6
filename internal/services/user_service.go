package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/vexpense/vexpense/internal/models"
	"github.com/vexpense/vexpense/pkg/crypto"
	apperrors "github.com/vexpense/vexpense/pkg/errors"
	"github.com/vexpense/vexpense/pkg/logger"
)

// SessionRevoker closes every session of a user.
type SessionRevoker interface {
	RevokeAll(ctx context.Context, userID string) (int64, error)
}

// RegisterInput describes a public sign-up.
type RegisterInput struct {
	Email             string
	Password          string
	FirstName         string
	LastName          string
	Role              models.Role
	CompanyName       string
	CompanyPhone      string
	CompanyWebsite    string
	CompanyCountry    string
	Phone             string
	PreferredCurrency string
}

// UpdateProfileInput enumerates the attributes a user may change on their own
// profile. Email, role and password are not part of it.
type UpdateProfileInput struct {
	FirstName            *string
	LastName             *string
	CompanyName          *string
	CompanyPhone         *string
	CompanyWebsite       *string
	CompanyCountry       *string
	Phone                *string
	Timezone             *string
	Language             *string
	PreferredCurrency    *string
	NotifyEmail          *bool
	NotifyExpenseShared  *bool
	NotifyExpenseUpdated *bool
}

// ListUsersOptions controls filtering and pagination of the admin user listing.
type ListUsersOptions struct {
	Page
	Role   models.Role
	Search string
}

// UserService manages accounts: sign-up, profile, password and deactivation.
type UserService struct {
	db         *gorm.DB
	sessions   SessionRevoker
	bcryptCost int
	log        *zap.Logger
}

// NewUserService constructs a UserService instance.
func NewUserService(db *gorm.DB, sessions SessionRevoker, bcryptCost int) (*UserService, error) {
	if db == nil {
		return nil, errors.New("user service: db is required")
	}
	if sessions == nil {
		return nil, errors.New("user service: session revoker is required")
	}
	return &UserService{
		db:         db,
		sessions:   sessions,
		bcryptCost: bcryptCost,
		log:        logger.WithModule("users"),
	}, nil
}

// Register creates an exporter or local account. Administrators cannot sign up.
func (s *UserService) Register(ctx context.Context, input RegisterInput) (*models.User, error) {
	ctx = ensureContext(ctx)

	email := models.NormalizeEmail(input.Email)
	if email == "" {
		return nil, apperrors.NewValidationFailed("email is required")
	}
	if len(input.Password) < 6 {
		return nil, apperrors.NewValidationFailed("Password must be at least 6 characters")
	}

	role := input.Role
	if role == "" {
		role = models.RoleLocal
	}
	if !role.SelfRegistrable() {
		return nil, apperrors.NewValidationFailed("Role must be ROLE_EXPORTER or ROLE_LOCAL")
	}
	if code := strings.TrimSpace(input.PreferredCurrency); code != "" {
		if _, ok := models.ParseCurrency(code); !ok {
			return nil, errUnsupportedCurrency
		}
	}

	var existing int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("email = ?", email).Count(&existing).Error; err != nil {
		return nil, fmt.Errorf("user service: check email: %w", err)
	}
	if existing > 0 {
		return nil, ErrUserExists
	}

	hashed, err := crypto.HashPasswordWithCost(input.Password, s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("user service: hash password: %w", err)
	}

	user := &models.User{
		Email:                email,
		Password:             hashed,
		FirstName:            strings.TrimSpace(input.FirstName),
		LastName:             strings.TrimSpace(input.LastName),
		Role:                 role,
		CompanyName:          strings.TrimSpace(input.CompanyName),
		CompanyPhone:         strings.TrimSpace(input.CompanyPhone),
		CompanyWebsite:       strings.TrimSpace(input.CompanyWebsite),
		CompanyCountry:       strings.TrimSpace(input.CompanyCountry),
		Phone:                strings.TrimSpace(input.Phone),
		PreferredCurrency:    strings.ToUpper(strings.TrimSpace(input.PreferredCurrency)),
		NotifyEmail:          true,
		NotifyExpenseShared:  true,
		NotifyExpenseUpdated: true,
		IsActive:             true,
	}
	user.ApplyDefaults()

	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("user service: create user: %w", err)
	}

	s.log.Info("user registered", zap.String("user_id", user.ID), zap.String("role", string(user.Role)))
	return user, nil
}

// GetByID loads a user by identifier.
func (s *UserService) GetByID(ctx context.Context, id string) (*models.User, error) {
	ctx = ensureContext(ctx)

	var user models.User
	err := s.db.WithContext(ctx).Take(&user, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("user service: get user: %w", err)
	}
	return &user, nil
}

// UpdateProfile applies the supplied profile changes.
func (s *UserService) UpdateProfile(ctx context.Context, id string, input UpdateProfileInput) (*models.User, error) {
	ctx = ensureContext(ctx)

	user, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}
	setString := func(column string, value *string) {
		if v := trimPtr(value); v != nil {
			updates[column] = *v
		}
	}
	setString("first_name", input.FirstName)
	setString("last_name", input.LastName)
	setString("company_name", input.CompanyName)
	setString("company_phone", input.CompanyPhone)
	setString("company_website", input.CompanyWebsite)
	setString("company_country", input.CompanyCountry)
	setString("phone", input.Phone)
	setString("timezone", input.Timezone)
	setString("language", input.Language)
	if v := trimPtr(input.PreferredCurrency); v != nil {
		code, ok := models.ParseCurrency(*v)
		if !ok {
			return nil, errUnsupportedCurrency
		}
		updates["preferred_currency"] = code.String()
	}
	if input.NotifyEmail != nil {
		updates["notify_email"] = *input.NotifyEmail
	}
	if input.NotifyExpenseShared != nil {
		updates["notify_expense_shared"] = *input.NotifyExpenseShared
	}
	if input.NotifyExpenseUpdated != nil {
		updates["notify_expense_updated"] = *input.NotifyExpenseUpdated
	}

	if name, ok := updates["first_name"].(string); ok && name == "" {
		return nil, apperrors.NewValidationFailed("First name cannot be empty")
	}
	if name, ok := updates["last_name"].(string); ok && name == "" {
		return nil, apperrors.NewValidationFailed("Last name cannot be empty")
	}

	if len(updates) == 0 {
		return user, nil
	}

	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("user service: update profile: %w", err)
	}

	return s.GetByID(ctx, id)
}

// ChangePassword replaces the password after verifying the current one.
func (s *UserService) ChangePassword(ctx context.Context, id, currentPassword, newPassword string) error {
	ctx = ensureContext(ctx)

	if len(newPassword) < 6 {
		return apperrors.NewValidationFailed("New password must be at least 6 characters")
	}

	user, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if !crypto.VerifyPassword(user.Password, currentPassword) {
		return ErrIncorrectPassword.WithMessage("Current password is incorrect")
	}

	hashed, err := crypto.HashPasswordWithCost(newPassword, s.bcryptCost)
	if err != nil {
		return fmt.Errorf("user service: hash password: %w", err)
	}

	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update("password", hashed).Error; err != nil {
		return fmt.Errorf("user service: update password: %w", err)
	}

	s.log.Info("password changed", zap.String("user_id", id))
	return nil
}

// Deactivate disables the account after confirming its password and closes all of its sessions.
func (s *UserService) Deactivate(ctx context.Context, id, password string) error {
	ctx = ensureContext(ctx)

	user, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if !crypto.VerifyPassword(user.Password, password) {
		return ErrIncorrectPassword
	}

	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update("is_active", false).Error; err != nil {
		return fmt.Errorf("user service: deactivate user: %w", err)
	}

	if _, err := s.sessions.RevokeAll(ctx, id); err != nil {
		return fmt.Errorf("user service: revoke sessions: %w", err)
	}

	s.log.Info("account deactivated", zap.String("user_id", id))
	return nil
}

// List retrieves users matching the supplied filters, newest first.
func (s *UserService) List(ctx context.Context, opts ListUsersOptions) ([]models.User, int64, error) {
	ctx = ensureContext(ctx)
	page := opts.Page.Normalise()

	query := s.db.WithContext(ctx).Model(&models.User{})
	if opts.Role != "" {
		query = query.Where("role = ?", opts.Role)
	}
	if strings.TrimSpace(opts.Search) != "" {
		pattern := likePattern(opts.Search)
		query = query.Where(
			`LOWER(first_name) LIKE ? ESCAPE '!' OR LOWER(last_name) LIKE ? ESCAPE '!' OR LOWER(email) LIKE ? ESCAPE '!' OR LOWER(company_name) LIKE ? ESCAPE '!'`,
			pattern, pattern, pattern, pattern,
		)
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("user service: count users: %w", err)
	}

	var users []models.User
	if err := query.
		Order("created_at DESC").
		Offset(page.offset()).
		Limit(page.PerPage).
		Find(&users).Error; err != nil {
		return nil, 0, fmt.Errorf("user service: list users: %w", err)
	}

	return users, total, nil
}

// ListByRole returns the active users holding role, ordered by company name.
func (s *UserService) ListByRole(ctx context.Context, role models.Role) ([]models.User, error) {
	ctx = ensureContext(ctx)

	var users []models.User
	err := s.db.WithContext(ctx).
		Where("role = ? AND is_active = ?", role, true).
		Order("company_name ASC").
		Order("first_name ASC").
		Find(&users).Error
	if err != nil {
		return nil, fmt.Errorf("user service: list %s users: %w", role, err)
	}
	return users, nil
}
