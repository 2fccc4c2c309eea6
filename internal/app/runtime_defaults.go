package app

import (
	"fmt"
	"strings"

	"github.com/vexpense/vexpense/pkg/crypto"
)

const (
	jwtSecretBytes = 48
	// minJWTSecretBytes matches the HS256 digest size.
	minJWTSecretBytes = 32
)

// ApplyRuntimeDefaults ensures critical secrets are populated even when no configuration file is supplied.
// It returns a map describing which keys were generated so callers can log the event without exposing values.
func ApplyRuntimeDefaults(cfg *Config) (map[string]bool, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}

	generated := make(map[string]bool)

	if strings.TrimSpace(cfg.Auth.JWT.Secret) == "" {
		secret, err := crypto.GenerateToken(jwtSecretBytes)
		if err != nil {
			return nil, fmt.Errorf("generate jwt secret: %w", err)
		}
		cfg.Auth.JWT.Secret = secret
		generated["auth.jwt.secret"] = true
	}

	length, err := KeyByteLength(cfg.Auth.JWT.Secret)
	if err != nil {
		return nil, fmt.Errorf("inspect jwt secret: %w", err)
	}
	if length < minJWTSecretBytes {
		return nil, fmt.Errorf("auth.jwt.secret must decode to at least %d bytes, got %d", minJWTSecretBytes, length)
	}

	return generated, nil
}
