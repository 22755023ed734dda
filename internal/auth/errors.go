package auth

import "errors"

var (
	ErrNotFound           = errors.New("auth: not found")
	ErrEmailTaken         = errors.New("auth: email already registered")
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	ErrInvalidToken       = errors.New("auth: invalid token")
	ErrInvalidInput       = errors.New("auth: invalid input")
	ErrWeakPassword       = errors.New("auth: password must be at least 8 characters long")
	ErrAlreadyVerified    = errors.New("auth: email already verified")
	ErrEmailNotVerified   = errors.New("auth: email not verified")
)
