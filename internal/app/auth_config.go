package app

import (
	"github.com/vexpense/vexpense/internal/auth"
	"github.com/vexpense/vexpense/internal/database"
	"github.com/vexpense/vexpense/pkg/crypto"
)

// JWTServiceConfig converts AuthConfig into the parameters expected by the JWT service.
func (c AuthConfig) JWTServiceConfig() auth.JWTConfig {
	ttl := c.JWT.TTL
	if ttl <= 0 {
		ttl = auth.DefaultAccessTokenTTL
	}

	return auth.JWTConfig{
		Secret:         c.JWT.Secret,
		Issuer:         c.JWT.Issuer,
		AccessTokenTTL: ttl,
	}
}

// SessionServiceConfig converts AuthConfig into SessionService parameters.
func (c AuthConfig) SessionServiceConfig() auth.SessionConfig {
	ttl := c.Session.TTL
	if ttl <= 0 {
		ttl = auth.DefaultSessionTTL
	}

	length := c.Session.RefreshTokenLength
	if length <= 0 {
		length = auth.DefaultRefreshTokenLength
	}

	interval := c.Session.ActivityInterval
	if interval <= 0 {
		interval = auth.DefaultActivityInterval
	}

	return auth.SessionConfig{
		SessionTTL:         ttl,
		RefreshTokenLength: length,
		ActivityInterval:   interval,
		PasswordCost:       c.PasswordCost(),
	}
}

// PasswordCost returns the configured bcrypt cost or the package default.
func (c AuthConfig) PasswordCost() int {
	if c.Password.BcryptCost <= 0 {
		return crypto.DefaultPasswordCost
	}
	return c.Password.BcryptCost
}

// AdminSeed converts the bootstrap_admin section into the database seed.
func (c AuthConfig) AdminSeed() database.AdminSeed {
	return database.AdminSeed{
		Email:      c.BootstrapAdmin.Email,
		Password:   c.BootstrapAdmin.Password,
		FirstName:  c.BootstrapAdmin.FirstName,
		LastName:   c.BootstrapAdmin.LastName,
		BcryptCost: c.PasswordCost(),
	}
}
