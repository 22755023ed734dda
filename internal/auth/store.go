package auth

import (
	"context"
	"time"
)

// UserStore describes the persistence operations the auth service needs from
// the user table. The wider application owns the schema; this is the contract
// slice the auth core depends on.
type UserStore interface {
	Create(ctx context.Context, u *User) error
	Find(ctx context.Context, id string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	// UpdatePassword stores a new hash and the bumped token version in one
	// statement so revocation and the password change are atomic.
	UpdatePassword(ctx context.Context, userID, passwordHash string, tokenVersion int) error
	SetEmailVerified(ctx context.Context, userID string) error
	TouchLastLogin(ctx context.Context, userID string, at time.Time) error
}

// RefreshTokenStore tracks which refresh tokens are currently valid per user.
// Implementations enforce a per-user cap with insertion-order eviction.
type RefreshTokenStore interface {
	Add(ctx context.Context, userID, token string) error
	Remove(ctx context.Context, userID, token string) error
	Contains(ctx context.Context, userID, token string) (bool, error)
	RevokeAll(ctx context.Context, userID string) error
}

// Seeder creates starter content for a freshly registered user. Failures are
// logged, never surfaced: registration must not fail because a welcome quote
// could not be inserted.
type Seeder interface {
	SeedNewUser(ctx context.Context, userID string) error
}
