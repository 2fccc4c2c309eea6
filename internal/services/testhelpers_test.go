package services

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/vexpense/vexpense/internal/database/testutil"
	"github.com/vexpense/vexpense/internal/models"
	"github.com/vexpense/vexpense/pkg/crypto"
)

const testPassword = "password123"

type fakeRevoker struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (f *fakeRevoker) RevokeAll(_ context.Context, userID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, userID)
	return 1, f.err
}

func openServicesTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	return testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
}

func seedUser(t *testing.T, db *gorm.DB, email string, role models.Role, active bool) *models.User {
	t.Helper()

	hashed, err := crypto.HashPasswordWithCost(testPassword, 4)
	require.NoError(t, err)

	user := &models.User{
		Email:       email,
		Password:    hashed,
		FirstName:   "Test",
		LastName:    string(role),
		Role:        role,
		CompanyName: "Company " + email,
		IsActive:    true,
	}
	user.ApplyDefaults()
	require.NoError(t, db.Create(user).Error)

	if !active {
		require.NoError(t, db.Model(user).Update("is_active", false).Error)
		user.IsActive = false
	}
	return user
}
