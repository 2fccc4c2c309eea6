package maintenance

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	iauth "github.com/vexpense/vexpense/internal/auth"
	"github.com/vexpense/vexpense/internal/currency"
	testutil "github.com/vexpense/vexpense/internal/database/testutil"
	"github.com/vexpense/vexpense/internal/models"
	"github.com/vexpense/vexpense/pkg/crypto"
)

func TestCleanerRunOnce(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	clock := &fixedClock{current: time.Date(2024, 5, 20, 9, 0, 0, 0, time.UTC)}

	jwtSvc, err := iauth.NewJWTService(iauth.JWTConfig{
		Secret: "cleanup-secret",
		Issuer: "test-suite",
		Clock:  clock.Now,
	})
	require.NoError(t, err)

	sessionSvc, err := iauth.NewSessionService(db, jwtSvc, iauth.SessionConfig{
		SessionTTL:   time.Hour,
		PasswordCost: 4,
		Clock:        clock.Now,
	})
	require.NoError(t, err)

	user := seedUser(t, db, "cleanup@example.com")
	ctx := context.Background()

	expired, err := sessionSvc.Authenticate(ctx, user.Email, "Password123!", iauth.DeviceInfo{})
	require.NoError(t, err)
	clock.current = clock.current.Add(2 * time.Hour)

	revoked, err := sessionSvc.Authenticate(ctx, user.Email, "Password123!", iauth.DeviceInfo{})
	require.NoError(t, err)
	require.NoError(t, sessionSvc.Revoke(ctx, revoked.AccessToken))

	active, err := sessionSvc.Authenticate(ctx, user.Email, "Password123!", iauth.DeviceInfo{})
	require.NoError(t, err)

	converter := currency.NewConverter(currency.StaticSource{"JPY": 140, "LKR": 300})
	purger := &fakePurger{removed: 3}

	c := NewCleaner(sessionSvc,
		WithCachePurger(purger),
		WithRateRefresher(converter),
		WithCron(cron.New(cron.WithLogger(cron.DiscardLogger))),
	)

	require.NoError(t, c.RunOnce(ctx))

	assertNotFound := func(id string) {
		var s models.Session
		err := db.First(&s, "id = ?", id).Error
		require.ErrorIs(t, err, gorm.ErrRecordNotFound)
	}
	assertNotFound(expired.Session.ID)
	assertNotFound(revoked.Session.ID)

	var remaining models.Session
	require.NoError(t, db.First(&remaining, "id = ?", active.Session.ID).Error)

	require.Equal(t, 1, purger.calls)

	rate, err := converter.Rate("USD", "JPY")
	require.NoError(t, err)
	require.InDelta(t, 140, rate, 0.0001)
	require.False(t, converter.LastUpdated().IsZero())
}

func TestCleanerRunOnceAggregatesFailures(t *testing.T) {
	sessions := &fakeSessions{err: errors.New("sessions down")}
	purger := &fakePurger{err: errors.New("cache down")}
	refresher := &fakeRefresher{}

	c := NewCleaner(sessions, WithCachePurger(purger), WithRateRefresher(refresher))

	err := c.RunOnce(context.Background())
	require.Error(t, err)
	require.Len(t, multierr.Errors(err), 2)
	require.ErrorContains(t, err, "sessions down")
	require.ErrorContains(t, err, "cache down")
	require.Equal(t, 1, refresher.calls)
}

func TestCleanerStartSkipsWhenNothingConfigured(t *testing.T) {
	c := NewCleaner(nil)
	require.NoError(t, c.Start())
	require.Empty(t, c.cron.Entries())
	<-c.Stop().Done()
}

func TestCleanerStartRegistersJobs(t *testing.T) {
	c := NewCleaner(&fakeSessions{},
		WithCachePurger(&fakePurger{}),
		WithRateRefresher(&fakeRefresher{}),
		WithSessionSchedule("@daily"),
		WithCurrencySchedule("@every 6h"),
	)
	require.NoError(t, c.Start())
	defer c.Stop()

	require.Len(t, c.cron.Entries(), 3)
}

func TestCleanerStartRejectsInvalidSchedule(t *testing.T) {
	c := NewCleaner(&fakeSessions{}, WithSessionSchedule("not a schedule"))
	require.Error(t, c.Start())
}

func TestCleanerJobSwallowsErrors(t *testing.T) {
	sessions := &fakeSessions{err: errors.New("boom")}
	c := NewCleaner(sessions)

	require.NotPanics(t, c.job("session cleanup", c.cleanSessions))
	require.Equal(t, 1, sessions.calls)
}

func seedUser(t *testing.T, db *gorm.DB, email string) *models.User {
	t.Helper()

	hash, err := crypto.HashPasswordWithCost("Password123!", 4)
	require.NoError(t, err)

	user := &models.User{
		Email:       email,
		Password:    hash,
		FirstName:   "Clean",
		LastName:    "Up",
		Role:        models.RoleExporter,
		CompanyName: "Osaka Autos",
		IsActive:    true,
	}
	user.ApplyDefaults()
	require.NoError(t, db.Create(user).Error)
	return user
}

type fixedClock struct {
	current time.Time
}

func (c *fixedClock) Now() time.Time {
	return c.current
}

type fakeSessions struct {
	calls int
	err   error
}

func (f *fakeSessions) CleanupExpired(context.Context) (int64, error) {
	f.calls++
	return 0, f.err
}

type fakePurger struct {
	calls   int
	removed int64
	err     error
}

func (f *fakePurger) PurgeExpired(context.Context) (int64, error) {
	f.calls++
	return f.removed, f.err
}

type fakeRefresher struct {
	calls int
}

func (f *fakeRefresher) Refresh(context.Context) error {
	f.calls++
	return nil
}
