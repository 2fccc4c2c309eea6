package auth

import "errors"

var (
	// ErrInvalidCredentials covers both an unknown email and a wrong password.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	// ErrAccountDeactivated is returned for users whose account has been disabled.
	ErrAccountDeactivated = errors.New("auth: account deactivated")
	// ErrInvalidSession marks a missing, inactive, expired or already rotated session.
	ErrInvalidSession = errors.New("auth: invalid session")
	// ErrUserNotFound is returned when a session outlives its user.
	ErrUserNotFound = errors.New("auth: user not found")
)
