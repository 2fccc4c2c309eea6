package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/vexpense/vexpense/internal/models"
	"github.com/vexpense/vexpense/pkg/crypto"
	"github.com/vexpense/vexpense/pkg/logger"
	"github.com/vexpense/vexpense/pkg/metrics"
)

const (
	// DefaultSessionTTL is the fallback session window.
	DefaultSessionTTL = 7 * 24 * time.Hour
	// DefaultRefreshTokenLength is the number of random bytes in a refresh token.
	DefaultRefreshTokenLength = 40
	// DefaultActivityInterval throttles lastActivity writes on validation.
	DefaultActivityInterval = time.Minute
)

// SessionConfig describes tunable behaviour for the SessionService.
type SessionConfig struct {
	SessionTTL         time.Duration
	RefreshTokenLength int
	ActivityInterval   time.Duration
	// PasswordCost is the bcrypt cost of the decoy hash compared for unknown emails.
	PasswordCost int
	Clock        func() time.Time
}

// SessionBundle is returned by Authenticate and Refresh.
type SessionBundle struct {
	AccessToken  string
	RefreshToken string
	User         *models.User
	Session      *models.Session
	ExpiresAt    time.Time
}

// AuthenticatedSession is the result of a successful Validate.
type AuthenticatedSession struct {
	User    *models.User
	Session *models.Session
	Claims  *Claims
}

// SessionSummary is the client-facing view of an active session.
type SessionSummary struct {
	ID           string     `json:"id"`
	DeviceInfo   DeviceInfo `json:"deviceInfo"`
	LastActivity time.Time  `json:"lastActivity"`
	CreatedAt    time.Time  `json:"createdAt"`
}

// SessionService issues, validates, rotates and revokes sessions.
type SessionService struct {
	db               *gorm.DB
	jwt              *JWTService
	ttl              time.Duration
	tokenLen         int
	activityInterval time.Duration
	passwordCost     int
	now              func() time.Time

	decoyOnce sync.Once
	decoyHash string

	log *zap.Logger
}

// NewSessionService constructs a session manager backed by the provided database and JWT service.
func NewSessionService(db *gorm.DB, jwtService *JWTService, cfg SessionConfig) (*SessionService, error) {
	if db == nil {
		return nil, errors.New("session service: db is required")
	}
	if jwtService == nil {
		return nil, errors.New("session service: jwt service is required")
	}

	ttl := cfg.SessionTTL
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}

	length := cfg.RefreshTokenLength
	if length <= 0 {
		length = DefaultRefreshTokenLength
	}

	interval := cfg.ActivityInterval
	if interval <= 0 {
		interval = DefaultActivityInterval
	}

	clock := time.Now
	if cfg.Clock != nil {
		clock = cfg.Clock
	}

	return &SessionService{
		db:               db,
		jwt:              jwtService,
		ttl:              ttl,
		tokenLen:         length,
		activityInterval: interval,
		passwordCost:     cfg.PasswordCost,
		now:              func() time.Time { return clock().UTC() },
		log:              logger.WithModule("auth"),
	}, nil
}

// Authenticate verifies credentials and opens a new session for the device.
func (s *SessionService) Authenticate(ctx context.Context, email, password string, device DeviceInfo) (*SessionBundle, error) {
	email = models.NormalizeEmail(email)
	if email == "" || password == "" {
		s.compareDecoy(password)
		metrics.AuthAttempts.WithLabelValues("invalid_credentials").Inc()
		return nil, ErrInvalidCredentials
	}

	var user models.User
	err := s.db.WithContext(ctx).Where("email = ?", email).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		s.compareDecoy(password)
		metrics.AuthAttempts.WithLabelValues("invalid_credentials").Inc()
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		metrics.AuthAttempts.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("session service: find user: %w", err)
	}

	if !user.IsActive {
		metrics.AuthAttempts.WithLabelValues("deactivated").Inc()
		return nil, ErrAccountDeactivated
	}

	if !crypto.VerifyPassword(user.Password, password) {
		metrics.AuthAttempts.WithLabelValues("invalid_credentials").Inc()
		return nil, ErrInvalidCredentials
	}

	bundle, err := s.open(ctx, &user, device)
	if err != nil {
		metrics.AuthAttempts.WithLabelValues("error").Inc()
		return nil, err
	}

	now := s.now()
	if err := s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", user.ID).
		Update("last_login_at", now).Error; err != nil {
		s.log.Warn("failed to record last login", zap.String("user_id", user.ID), zap.Error(err))
	} else {
		user.LastLoginAt = &now
	}

	metrics.AuthAttempts.WithLabelValues("success").Inc()
	s.log.Info("user logged in",
		zap.String("user_id", user.ID),
		zap.String("session_id", bundle.Session.ID),
		zap.String("device", device.DeviceType),
	)
	return bundle, nil
}

// Refresh rotates the refresh token of an active session and issues a new access token.
// Each refresh token can be redeemed at most once.
func (s *SessionService) Refresh(ctx context.Context, refreshToken string) (*SessionBundle, error) {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		metrics.SessionRefreshes.WithLabelValues("rejected").Inc()
		return nil, ErrInvalidSession
	}

	oldHash := crypto.HashToken(refreshToken)

	var session models.Session
	err := s.db.WithContext(ctx).Where("refresh_token_hash = ?", oldHash).Take(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		metrics.SessionRefreshes.WithLabelValues("rejected").Inc()
		return nil, ErrInvalidSession
	}
	if err != nil {
		metrics.SessionRefreshes.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("session service: find session: %w", err)
	}

	if !session.IsValidAt(s.now()) {
		metrics.SessionRefreshes.WithLabelValues("rejected").Inc()
		return nil, ErrInvalidSession
	}

	user, err := s.loadUser(ctx, session.UserID)
	if err != nil {
		metrics.SessionRefreshes.WithLabelValues("rejected").Inc()
		return nil, err
	}

	bundle, err := s.rotate(ctx, &session, user, oldHash)
	if err != nil {
		if errors.Is(err, ErrInvalidSession) {
			metrics.SessionRefreshes.WithLabelValues("rejected").Inc()
		} else {
			metrics.SessionRefreshes.WithLabelValues("error").Inc()
		}
		return nil, err
	}

	metrics.SessionRefreshes.WithLabelValues("success").Inc()
	return bundle, nil
}

// Validate checks an access token and returns its user and live session.
func (s *SessionService) Validate(ctx context.Context, accessToken string) (*AuthenticatedSession, error) {
	accessToken = strings.TrimSpace(accessToken)
	if accessToken == "" {
		return nil, ErrInvalidSession
	}

	claims, err := s.jwt.ValidateAccessToken(accessToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}

	now := s.now()

	var session models.Session
	err = s.db.WithContext(ctx).
		Where("id = ? AND is_active = ? AND expires_at > ?", claims.SessionID, true, now).
		Take(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidSession
	}
	if err != nil {
		return nil, fmt.Errorf("session service: find session: %w", err)
	}

	// A refreshed session carries a new access hash; the old token no longer matches.
	if session.UserID != claims.UserID || !crypto.TokenMatches(accessToken, session.TokenHash) {
		return nil, ErrInvalidSession
	}

	user, err := s.loadUser(ctx, session.UserID)
	if err != nil {
		return nil, err
	}

	if now.Sub(session.LastActivity) >= s.activityInterval {
		if err := s.db.WithContext(ctx).Model(&models.Session{}).
			Where("id = ?", session.ID).
			Update("last_activity", now).Error; err != nil {
			s.log.Warn("failed to touch session", zap.String("session_id", session.ID), zap.Error(err))
		} else {
			session.LastActivity = now
		}
	}

	return &AuthenticatedSession{
		User:    user,
		Session: &session,
		Claims:  claims,
	}, nil
}

// Revoke deactivates the session bound to accessToken. Unknown or already
// inactive sessions are ignored.
func (s *SessionService) Revoke(ctx context.Context, accessToken string) error {
	accessToken = strings.TrimSpace(accessToken)
	if accessToken == "" {
		return nil
	}

	result := s.db.WithContext(ctx).Model(&models.Session{}).
		Where("token_hash = ? AND is_active = ?", crypto.HashToken(accessToken), true).
		Update("is_active", false)
	if result.Error != nil {
		return fmt.Errorf("session service: revoke session: %w", result.Error)
	}

	if result.RowsAffected > 0 {
		metrics.ActiveSessions.Sub(float64(result.RowsAffected))
	}
	return nil
}

// RevokeAll deactivates every active session of userID and returns how many were closed.
func (s *SessionService) RevokeAll(ctx context.Context, userID string) (int64, error) {
	if strings.TrimSpace(userID) == "" {
		return 0, errors.New("session service: user id is required")
	}

	result := s.db.WithContext(ctx).Model(&models.Session{}).
		Where("user_id = ? AND is_active = ?", userID, true).
		Update("is_active", false)
	if result.Error != nil {
		return 0, fmt.Errorf("session service: revoke user sessions: %w", result.Error)
	}

	if result.RowsAffected > 0 {
		metrics.ActiveSessions.Sub(float64(result.RowsAffected))
		s.log.Info("revoked user sessions", zap.String("user_id", userID), zap.Int64("count", result.RowsAffected))
	}
	return result.RowsAffected, nil
}

// ListSessions returns the active, unexpired sessions of userID, most recently used first.
func (s *SessionService) ListSessions(ctx context.Context, userID string) ([]SessionSummary, error) {
	var sessions []models.Session
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND is_active = ? AND expires_at > ?", userID, true, s.now()).
		Order("last_activity DESC").
		Find(&sessions).Error
	if err != nil {
		return nil, fmt.Errorf("session service: list sessions: %w", err)
	}

	summaries := make([]SessionSummary, 0, len(sessions))
	for i := range sessions {
		summaries = append(summaries, SessionSummary{
			ID:           sessions[i].ID,
			DeviceInfo:   deviceInfoFromSession(&sessions[i]),
			LastActivity: sessions[i].LastActivity,
			CreatedAt:    sessions[i].CreatedAt,
		})
	}
	return summaries, nil
}

// CleanupExpired removes expired and deactivated sessions.
func (s *SessionService) CleanupExpired(ctx context.Context) (int64, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	now := s.now()
	var (
		removed     int64
		stillActive int64
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Session{}).
			Where("is_active = ? AND expires_at <= ?", true, now).
			Count(&stillActive).Error; err != nil {
			return err
		}
		result := tx.Where("expires_at <= ? OR is_active = ?", now, false).Delete(&models.Session{})
		if result.Error != nil {
			return result.Error
		}
		removed = result.RowsAffected
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("session service: cleanup expired sessions: %w", err)
	}

	// Expired sessions were never revoked, so the gauge still counts them.
	if stillActive > 0 {
		metrics.ActiveSessions.Sub(float64(stillActive))
	}
	return removed, nil
}

func (s *SessionService) open(ctx context.Context, user *models.User, device DeviceInfo) (*SessionBundle, error) {
	now := s.now()
	sessionID := uuid.NewString()

	accessToken, refreshToken, err := s.mint(user, sessionID)
	if err != nil {
		return nil, err
	}

	session := &models.Session{
		BaseModel:        models.BaseModel{ID: sessionID},
		UserID:           user.ID,
		TokenHash:        crypto.HashToken(accessToken),
		RefreshTokenHash: crypto.HashToken(refreshToken),
		UserAgent:        device.UserAgent,
		IPAddress:        device.IPAddress,
		DeviceType:       device.DeviceType,
		Browser:          device.Browser,
		OS:               device.OS,
		IsActive:         true,
		ExpiresAt:        now.Add(s.ttl),
		LastActivity:     now,
	}

	if err := s.db.WithContext(ctx).Create(session).Error; err != nil {
		return nil, fmt.Errorf("session service: create session: %w", err)
	}

	metrics.ActiveSessions.Inc()

	return &SessionBundle{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User:         user,
		Session:      session,
		ExpiresAt:    session.ExpiresAt,
	}, nil
}

// rotate swaps the token pair of session, provided its refresh hash is still
// expectedHash. A concurrent rotation that got there first leaves zero rows
// affected and yields ErrInvalidSession.
func (s *SessionService) rotate(ctx context.Context, session *models.Session, user *models.User, expectedHash string) (*SessionBundle, error) {
	now := s.now()

	accessToken, refreshToken, err := s.mint(user, session.ID)
	if err != nil {
		return nil, err
	}

	expiresAt := now.Add(s.ttl)
	updates := map[string]any{
		"token_hash":         crypto.HashToken(accessToken),
		"refresh_token_hash": crypto.HashToken(refreshToken),
		"expires_at":         expiresAt,
		"last_activity":      now,
	}

	result := s.db.WithContext(ctx).Model(&models.Session{}).
		Where("id = ? AND refresh_token_hash = ? AND is_active = ? AND expires_at > ?",
			session.ID, expectedHash, true, now).
		Updates(updates)
	if result.Error != nil {
		return nil, fmt.Errorf("session service: rotate session: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, ErrInvalidSession
	}

	rotated := *session
	rotated.TokenHash = updates["token_hash"].(string)
	rotated.RefreshTokenHash = updates["refresh_token_hash"].(string)
	rotated.ExpiresAt = expiresAt
	rotated.LastActivity = now

	return &SessionBundle{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User:         user,
		Session:      &rotated,
		ExpiresAt:    expiresAt,
	}, nil
}

func (s *SessionService) mint(user *models.User, sessionID string) (string, string, error) {
	accessToken, _, err := s.jwt.GenerateAccessToken(AccessTokenInput{
		UserID:    user.ID,
		SessionID: sessionID,
		Email:     user.Email,
		Role:      string(user.Role),
		Company:   user.CompanyName,
	})
	if err != nil {
		return "", "", fmt.Errorf("session service: generate access token: %w", err)
	}

	refreshToken, err := crypto.GenerateToken(s.tokenLen)
	if err != nil {
		return "", "", fmt.Errorf("session service: generate refresh token: %w", err)
	}

	return accessToken, refreshToken, nil
}

func (s *SessionService) loadUser(ctx context.Context, userID string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Take(&user, "id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("session service: load user: %w", err)
	}
	if !user.IsActive {
		return nil, ErrAccountDeactivated
	}
	return &user, nil
}

// compareDecoy spends the same bcrypt effort as a real check so unknown
// emails are not distinguishable by response time.
func (s *SessionService) compareDecoy(password string) {
	s.decoyOnce.Do(func() {
		hash, err := crypto.HashPasswordWithCost("decoy-password-never-matches", s.passwordCost)
		if err == nil {
			s.decoyHash = hash
		}
	})
	if s.decoyHash != "" {
		_ = crypto.VerifyPassword(s.decoyHash, password)
	}
}
