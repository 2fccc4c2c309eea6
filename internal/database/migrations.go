package database

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/vexpense/vexpense/internal/models"
	"github.com/vexpense/vexpense/pkg/crypto"
)

// AdminSeed describes the bootstrap administrator created on first start.
type AdminSeed struct {
	Email      string
	Password   string
	FirstName  string
	LastName   string
	BcryptCost int
}

// AutoMigrate creates or updates the database schema for all models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Session{},
		&models.Expense{},
		&models.ExpenseShare{},
		&models.ExporterProfile{},
		&models.Part{},
		&models.Shipment{},
		&models.CacheEntry{},
	)
}

// SeedAdmin creates the administrator account when no user holds seed.Email.
// Administrators cannot self-register, so this is the only way to obtain one.
// It reports whether a new account was created.
func SeedAdmin(ctx context.Context, db *gorm.DB, seed AdminSeed) (bool, error) {
	email := models.NormalizeEmail(seed.Email)
	if email == "" || strings.TrimSpace(seed.Password) == "" {
		return false, nil
	}

	var existing models.User
	err := db.WithContext(ctx).Where("email = ?", email).Take(&existing).Error
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, fmt.Errorf("lookup admin: %w", err)
	}

	hash, err := crypto.HashPasswordWithCost(seed.Password, seed.BcryptCost)
	if err != nil {
		return false, fmt.Errorf("hash admin password: %w", err)
	}

	admin := models.User{
		Email:                email,
		Password:             hash,
		FirstName:            firstNonEmpty(seed.FirstName, "System"),
		LastName:             firstNonEmpty(seed.LastName, "Administrator"),
		Role:                 models.RoleAdmin,
		IsActive:             true,
		EmailVerified:        true,
		NotifyEmail:          true,
		NotifyExpenseShared:  true,
		NotifyExpenseUpdated: true,
	}
	admin.ApplyDefaults()

	if err := db.WithContext(ctx).Create(&admin).Error; err != nil {
		return false, fmt.Errorf("create admin: %w", err)
	}
	return true, nil
}

// AutoMigrateAndSeed convenience helper used during application start-up.
func AutoMigrateAndSeed(ctx context.Context, db *gorm.DB, seed AdminSeed) error {
	if db == nil {
		return errors.New("nil database handle")
	}

	if err := AutoMigrate(db); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}

	if _, err := SeedAdmin(ctx, db, seed); err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}

	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
