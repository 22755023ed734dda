// Package auth implements the authentication and session core of the
// Organizer application: registration, login, refresh-token rotation,
// logout, password update/reset, and email verification.
package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/Jjzme2/Organizer-App/internal/ids"
	"github.com/Jjzme2/Organizer-App/internal/obs"
	"github.com/Jjzme2/Organizer-App/internal/token"
)

const minPasswordLength = 8

// Mailer delivers account emails. Implementations live in internal/mail.
type Mailer interface {
	SendPasswordReset(ctx context.Context, to, resetToken string) error
	SendVerification(ctx context.Context, to, emailToken string) error
}

// Service orchestrates the authentication life cycle over injected
// collaborators. All state lives in the stores; the service itself only
// keeps the consumed single-use token list.
type Service struct {
	users   UserStore
	refresh RefreshTokenStore
	codec   *token.Codec
	mailer  Mailer
	seeder  Seeder

	bcryptCost           int
	requireVerifiedEmail bool
	now                  func() time.Time
	used                 *usedTokens
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service)

// WithMailer sets the outbound mail collaborator.
func WithMailer(m Mailer) ServiceOption {
	return func(s *Service) { s.mailer = m }
}

// WithSeeder sets the starter-content collaborator invoked after register.
func WithSeeder(seeder Seeder) ServiceOption {
	return func(s *Service) { s.seeder = seeder }
}

// WithBcryptCost overrides the password hashing cost.
func WithBcryptCost(cost int) ServiceOption {
	return func(s *Service) {
		if cost > 0 {
			s.bcryptCost = cost
		}
	}
}

// WithRequireVerifiedEmail gates login on a verified email address. Off by
// default.
func WithRequireVerifiedEmail(require bool) ServiceOption {
	return func(s *Service) { s.requireVerifiedEmail = require }
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewService constructs a Service.
func NewService(users UserStore, refresh RefreshTokenStore, codec *token.Codec, opts ...ServiceOption) *Service {
	s := &Service{
		users:      users,
		refresh:    refresh,
		codec:      codec,
		bcryptCost: 10,
		now:        time.Now,
		used:       newUsedTokens(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register creates an account and opens the first session.
func (s *Service) Register(ctx context.Context, name, email, password string) (*Session, error) {
	name = strings.TrimSpace(name)
	email = normalizeEmail(email)
	if name == "" || email == "" || password == "" {
		return nil, ErrInvalidInput
	}
	if !looksLikeEmail(email) {
		return nil, ErrInvalidInput
	}
	if len(password) < minPasswordLength {
		return nil, ErrWeakPassword
	}

	if _, err := s.users.FindByEmail(ctx, email); err == nil {
		obs.CountAuth("register", "duplicate")
		return nil, ErrEmailTaken
	}

	hash, err := HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, err
	}
	user := &User{
		ID:           ids.New(),
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		TokenVersion: 0,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, ErrEmailTaken) {
			obs.CountAuth("register", "duplicate")
		}
		return nil, err
	}

	// Starter content and the verification email are conveniences; neither
	// may fail the registration itself.
	if s.seeder != nil {
		if err := s.seeder.SeedNewUser(ctx, user.ID); err != nil {
			obs.LogEvent("warn", "seeding new user failed", map[string]any{"user_id": user.ID, "error": err.Error()})
		}
	}
	s.dispatchVerification(ctx, user)

	session, err := s.openSession(ctx, user)
	if err != nil {
		return nil, err
	}
	obs.CountAuth("register", "success")
	return session, nil
}

// Login authenticates credentials and opens a session. Unknown email and
// wrong password produce the same error so responses cannot be used to
// enumerate accounts.
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, ErrInvalidInput
	}
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		obs.CountAuth("login", "failure")
		return nil, ErrInvalidCredentials
	}
	if err := VerifyPassword(user.PasswordHash, password); err != nil {
		obs.CountAuth("login", "failure")
		return nil, ErrInvalidCredentials
	}
	if s.requireVerifiedEmail && !user.EmailVerified {
		obs.CountAuth("login", "unverified")
		return nil, ErrEmailNotVerified
	}

	if err := s.users.TouchLastLogin(ctx, user.ID, s.now().UTC()); err != nil {
		obs.LogEvent("warn", "updating last login failed", map[string]any{"user_id": user.ID, "error": err.Error()})
	}

	session, err := s.openSession(ctx, user)
	if err != nil {
		return nil, err
	}
	obs.CountAuth("login", "success")
	return session, nil
}

// Refresh rotates a refresh token: the presented token is retired and a new
// access/refresh pair is issued. A token that fails any gate (signature,
// store membership, version equality) yields ErrInvalidToken.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return nil, ErrInvalidInput
	}
	claims := s.codec.VerifyRefresh(refreshToken)
	if claims == nil {
		obs.CountAuth("refresh", "failure")
		return nil, ErrInvalidToken
	}
	userID := claims.UserID()

	ok, err := s.refresh.Contains(ctx, userID, refreshToken)
	if err != nil {
		return nil, err
	}
	if !ok {
		// Revoked, evicted, or already rotated away.
		obs.CountAuth("refresh", "revoked")
		return nil, ErrInvalidToken
	}

	user, err := s.users.Find(ctx, userID)
	if err != nil {
		obs.CountAuth("refresh", "failure")
		return nil, ErrInvalidToken
	}
	if claims.TokenVersion != user.TokenVersion {
		// Stale epoch: purge the token so the store does not keep it alive.
		_ = s.refresh.Remove(ctx, userID, refreshToken)
		obs.CountAuth("refresh", "stale_version")
		return nil, ErrInvalidToken
	}

	newRefresh, err := s.codec.IssueRefresh(s.identityOf(user))
	if err != nil {
		return nil, err
	}
	newAccess, err := s.codec.IssueAccess(s.identityOf(user))
	if err != nil {
		return nil, err
	}
	if err := s.refresh.Remove(ctx, userID, refreshToken); err != nil {
		return nil, err
	}
	if err := s.refresh.Add(ctx, userID, newRefresh); err != nil {
		return nil, err
	}
	obs.CountAuth("refresh", "success")
	return &TokenPair{AccessToken: newAccess, RefreshToken: newRefresh}, nil
}

// Logout removes the presented refresh token from the store. It is
// best-effort and never returns an error: logout must not fail visibly.
func (s *Service) Logout(ctx context.Context, refreshToken string) {
	claims := s.codec.VerifyRefresh(refreshToken)
	if claims == nil {
		return
	}
	if err := s.refresh.Remove(ctx, claims.UserID(), refreshToken); err != nil {
		obs.LogEvent("warn", "logout token removal failed", map[string]any{"user_id": claims.UserID(), "error": err.Error()})
		return
	}
	obs.CountAuth("logout", "success")
}

// UpdatePassword changes the password of an authenticated user and bumps the
// token version, invalidating every outstanding token.
func (s *Service) UpdatePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	user, err := s.users.Find(ctx, userID)
	if err != nil {
		return err
	}
	if err := VerifyPassword(user.PasswordHash, currentPassword); err != nil {
		obs.CountAuth("password_change", "invalid_current")
		return ErrInvalidCredentials
	}
	if len(newPassword) < minPasswordLength {
		return ErrWeakPassword
	}
	hash, err := HashPassword(newPassword, s.bcryptCost)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePassword(ctx, userID, hash, user.TokenVersion+1); err != nil {
		return err
	}
	obs.CountAuth("password_change", "success")
	return nil
}

// RequestPasswordReset issues a reset token and mails it. The outcome is
// indistinguishable for registered and unregistered addresses; only an
// infrastructure failure surfaces as an error.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if email == "" {
		return ErrInvalidInput
	}
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		// Unknown address: report success to the caller regardless.
		obs.CountAuth("password_reset_request", "unknown_email")
		return nil
	}
	resetToken, err := s.codec.IssueReset(user.ID)
	if err != nil {
		return err
	}
	if s.mailer != nil {
		if err := s.mailer.SendPasswordReset(ctx, user.Email, resetToken); err != nil {
			return err
		}
	}
	obs.CountAuth("password_reset_request", "success")
	return nil
}

// CompletePasswordReset consumes a reset token and stores the new password.
// Each token works exactly once; the consumed list holds its jti until the
// token would have expired anyway.
func (s *Service) CompletePasswordReset(ctx context.Context, rawToken, newPassword string) error {
	claims := s.codec.VerifyReset(rawToken)
	if claims == nil {
		obs.CountAuth("password_reset", "failure")
		return ErrInvalidToken
	}
	if len(newPassword) < minPasswordLength {
		return ErrWeakPassword
	}
	if !s.used.consume(claims.ID, claims.ExpiresAt.Time, s.now()) {
		obs.CountAuth("password_reset", "replay")
		return ErrInvalidToken
	}
	user, err := s.users.Find(ctx, claims.UserID())
	if err != nil {
		return ErrNotFound
	}
	hash, err := HashPassword(newPassword, s.bcryptCost)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePassword(ctx, user.ID, hash, user.TokenVersion+1); err != nil {
		return err
	}
	obs.CountAuth("password_reset", "success")
	return nil
}

// VerifyEmail marks the account's email as verified. Calling it again for an
// already-verified account succeeds without effect.
func (s *Service) VerifyEmail(ctx context.Context, rawToken string) error {
	claims := s.codec.VerifyEmail(rawToken)
	if claims == nil {
		obs.CountAuth("email_verification", "failure")
		return ErrInvalidToken
	}
	user, err := s.users.Find(ctx, claims.UserID())
	if err != nil {
		return ErrNotFound
	}
	if user.EmailVerified {
		return nil
	}
	if !s.used.consume(claims.ID, claims.ExpiresAt.Time, s.now()) {
		return ErrInvalidToken
	}
	if err := s.users.SetEmailVerified(ctx, user.ID); err != nil {
		return err
	}
	obs.CountAuth("email_verification", "success")
	return nil
}

// ResendVerification issues a fresh verification token for an authenticated,
// still-unverified user.
func (s *Service) ResendVerification(ctx context.Context, userID string) error {
	user, err := s.users.Find(ctx, userID)
	if err != nil {
		return err
	}
	if user.EmailVerified {
		return ErrAlreadyVerified
	}
	s.dispatchVerification(ctx, user)
	obs.CountAuth("email_verification", "requested")
	return nil
}

// AuthenticateAccess validates a bearer token for the middleware: signature,
// expiry, type, and per-user token-version equality against the current user
// record.
func (s *Service) AuthenticateAccess(ctx context.Context, rawToken string) (Identity, error) {
	claims := s.codec.VerifyAccess(rawToken)
	if claims == nil {
		return Identity{}, ErrInvalidToken
	}
	user, err := s.users.Find(ctx, claims.UserID())
	if err != nil {
		return Identity{}, ErrInvalidToken
	}
	if claims.TokenVersion != user.TokenVersion {
		return Identity{}, ErrInvalidToken
	}
	return s.identityToken(user), nil
}

// CurrentUser returns the public shape of the account for /me.
func (s *Service) CurrentUser(ctx context.Context, userID string) (PublicUser, error) {
	user, err := s.users.Find(ctx, userID)
	if err != nil {
		return PublicUser{}, err
	}
	return user.Public(), nil
}

func (s *Service) openSession(ctx context.Context, user *User) (*Session, error) {
	access, err := s.codec.IssueAccess(s.identityOf(user))
	if err != nil {
		return nil, err
	}
	refresh, err := s.codec.IssueRefresh(s.identityOf(user))
	if err != nil {
		return nil, err
	}
	if err := s.refresh.Add(ctx, user.ID, refresh); err != nil {
		return nil, err
	}
	return &Session{
		User:         user.Public(),
		AccessToken:  access,
		RefreshToken: refresh,
	}, nil
}

func (s *Service) dispatchVerification(ctx context.Context, user *User) {
	if s.mailer == nil {
		return
	}
	emailToken, err := s.codec.IssueEmail(user.ID)
	if err != nil {
		obs.LogEvent("warn", "issuing verification token failed", map[string]any{"user_id": user.ID, "error": err.Error()})
		return
	}
	if err := s.mailer.SendVerification(ctx, user.Email, emailToken); err != nil {
		obs.LogEvent("warn", "sending verification email failed", map[string]any{"user_id": user.ID, "error": err.Error()})
	}
}

func (s *Service) identityOf(user *User) token.Identity {
	return token.Identity{
		UserID:       user.ID,
		Name:         user.Name,
		Email:        user.Email,
		TokenVersion: user.TokenVersion,
	}
}

func (s *Service) identityToken(user *User) Identity {
	return Identity{
		UserID:       user.ID,
		Name:         user.Name,
		Email:        user.Email,
		TokenVersion: user.TokenVersion,
	}
}

func normalizeEmail(email string) string {
	return strings.TrimSpace(strings.ToLower(email))
}

// looksLikeEmail is a sanity check, not full RFC validation; delivery is the
// real test and happens via the verification mail.
func looksLikeEmail(email string) bool {
	at := strings.Index(email, "@")
	if at <= 0 || at == len(email)-1 {
		return false
	}
	return !strings.ContainsAny(email, " \t")
}
