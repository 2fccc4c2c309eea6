package services

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	apperrors "github.com/vexpense/vexpense/pkg/errors"
)

var (
	// ErrUserExists is returned when registering an email that is already taken.
	ErrUserExists = apperrors.New("USER_EXISTS", "User already exists with this email", http.StatusConflict)
	// ErrUserNotFound indicates the requested user does not exist.
	ErrUserNotFound = apperrors.ErrUserNotFound
	// ErrIncorrectPassword is returned when a password confirmation does not match.
	ErrIncorrectPassword = apperrors.New("INCORRECT_PASSWORD", "Password is incorrect", http.StatusBadRequest)
	// ErrExpenseNotFound indicates the requested expense does not exist.
	ErrExpenseNotFound = apperrors.New("EXPENSE_NOT_FOUND", "Expense not found", http.StatusNotFound)
	// ErrShareNotFound indicates the user holds no share on the expense.
	ErrShareNotFound = apperrors.New("SHARE_NOT_FOUND", "Share not found", http.StatusNotFound)
	// ErrInvalidShareTargets is returned when a share names users that are not active local users.
	ErrInvalidShareTargets = apperrors.New("INVALID_SHARE_TARGETS", "Some users are invalid or not local users", http.StatusBadRequest)

	// ErrExporterNotFound indicates the exporter has not created a company profile.
	ErrExporterNotFound = apperrors.New("EXPORTER_NOT_FOUND", "Exporter profile not found", http.StatusNotFound)
	// ErrRegistrationExists is returned when another profile holds the registration number.
	ErrRegistrationExists = apperrors.New("REGISTRATION_EXISTS", "Company registration number is already registered", http.StatusConflict)
	// ErrPartNotFound indicates the requested part does not exist.
	ErrPartNotFound = apperrors.New("PART_NOT_FOUND", "Part not found", http.StatusNotFound)
	// ErrPartNumberExists is returned when the part number is already in use.
	ErrPartNumberExists = apperrors.New("PART_NUMBER_EXISTS", "Part number already exists", http.StatusConflict)
	// ErrShipmentNotFound indicates the requested shipment does not exist.
	ErrShipmentNotFound = apperrors.New("SHIPMENT_NOT_FOUND", "Shipment not found", http.StatusNotFound)
	// ErrTrackingNumberExists is returned when the tracking number is already in use.
	ErrTrackingNumberExists = apperrors.New("TRACKING_NUMBER_EXISTS", "Tracking number already exists", http.StatusConflict)

	errUnsupportedCurrency = apperrors.NewValidationFailed("Currency must be one of: USD, JPY, LKR, EUR")
)

// isUniqueConstraintError detects database uniqueness constraint violations across vendors.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr != nil && pgErr.Code == "23505" {
		return true
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && myErr != nil && myErr.Number == 1062 {
		return true
	}

	lower := strings.ToLower(err.Error())
	return strings.Contains(lower, "unique constraint") ||
		strings.Contains(lower, "duplicate")
}

func ensureContext(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
