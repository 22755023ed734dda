package auth

import "time"

// User is the persistent account record. TokenVersion is a monotonically
// increasing revocation epoch: bumping it invalidates every previously issued
// access and refresh token for the user.
type User struct {
	ID            string
	Name          string
	Email         string
	PasswordHash  string
	TokenVersion  int
	EmailVerified bool
	LastLogin     time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// PublicUser is the client-facing shape. It never carries the password hash.
type PublicUser struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"emailVerified"`
}

// Public strips the user down to client-safe fields.
func (u *User) Public() PublicUser {
	return PublicUser{
		ID:            u.ID,
		Name:          u.Name,
		Email:         u.Email,
		EmailVerified: u.EmailVerified,
	}
}

// Session is returned by Register and Login.
type Session struct {
	User         PublicUser `json:"user"`
	AccessToken  string     `json:"accessToken"`
	RefreshToken string     `json:"refreshToken"`
}

// TokenPair is returned by Refresh after rotation.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// Identity is the verified caller attached to a request by the middleware.
type Identity struct {
	UserID       string
	Name         string
	Email        string
	TokenVersion int
}
