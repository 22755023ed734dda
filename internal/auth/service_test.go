package auth

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/Jjzme2/Organizer-App/internal/token"
)

type fakeMailer struct {
	resetTokens []string
	emailTokens []string
	fail        error
}

func (m *fakeMailer) SendPasswordReset(_ context.Context, _, resetToken string) error {
	if m.fail != nil {
		return m.fail
	}
	m.resetTokens = append(m.resetTokens, resetToken)
	return nil
}

func (m *fakeMailer) SendVerification(_ context.Context, _, emailToken string) error {
	if m.fail != nil {
		return m.fail
	}
	m.emailTokens = append(m.emailTokens, emailToken)
	return nil
}

type recordingSeeder struct{ userIDs []string }

func (s *recordingSeeder) SeedNewUser(_ context.Context, userID string) error {
	s.userIDs = append(s.userIDs, userID)
	return nil
}

func testCodec(t *testing.T) *token.Codec {
	t.Helper()
	codec, err := token.NewCodec(token.Secrets{
		Access:  "access-secret",
		Refresh: "refresh-secret",
		Reset:   "reset-secret",
		Email:   "email-secret",
	}, token.TTLs{})
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	return codec
}

type testEnv struct {
	svc     *Service
	users   *MemoryUserStore
	refresh *MemoryRefreshStore
	mailer  *fakeMailer
}

func newTestEnv(t *testing.T, opts ...ServiceOption) *testEnv {
	t.Helper()
	env := &testEnv{
		users:   NewMemoryUserStore(),
		refresh: NewMemoryRefreshStore(5),
		mailer:  &fakeMailer{},
	}
	base := []ServiceOption{WithBcryptCost(4), WithMailer(env.mailer)}
	env.svc = NewService(env.users, env.refresh, testCodec(t), append(base, opts...)...)
	return env
}

func mustRegister(t *testing.T, env *testEnv, email string) *Session {
	t.Helper()
	session, err := env.svc.Register(context.Background(), "Ada", email, "correct horse")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	return session
}

func TestRegisterOpensSession(t *testing.T) {
	env := newTestEnv(t)
	session := mustRegister(t, env, "ada@x.com")

	if session.AccessToken == "" || session.RefreshToken == "" {
		t.Fatal("expected both tokens in the session")
	}
	if session.User.Email != "ada@x.com" || session.User.ID == "" {
		t.Fatalf("unexpected public user: %+v", session.User)
	}
	if env.refresh.Count(session.User.ID) != 1 {
		t.Fatalf("expected 1 stored refresh token, got %d", env.refresh.Count(session.User.ID))
	}
	if len(env.mailer.emailTokens) != 1 {
		t.Fatalf("expected a verification email, got %d", len(env.mailer.emailTokens))
	}
}

func TestRegisterValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, err := env.svc.Register(ctx, "", "a@x.com", "correct horse"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("missing name: got %v", err)
	}
	if _, err := env.svc.Register(ctx, "Ada", "not-an-email", "correct horse"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("malformed email: got %v", err)
	}
	if _, err := env.svc.Register(ctx, "Ada", "a@x.com", "short"); !errors.Is(err, ErrWeakPassword) {
		t.Fatalf("short password: got %v", err)
	}

	mustRegister(t, env, "ada@x.com")
	if _, err := env.svc.Register(ctx, "Ada", "ADA@x.com", "correct horse"); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("duplicate email: got %v", err)
	}
}

func TestRegisterInvokesSeeder(t *testing.T) {
	env := newTestEnv(t)
	seeder := &recordingSeeder{}
	env.svc = NewService(env.users, env.refresh, testCodec(t),
		WithBcryptCost(4), WithSeeder(seeder))

	session := mustRegister(t, env, "ada@x.com")
	if len(seeder.userIDs) != 1 || seeder.userIDs[0] != session.User.ID {
		t.Fatalf("seeder calls: %v", seeder.userIDs)
	}
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	mustRegister(t, env, "ada@x.com")

	_, errUnknown := env.svc.Login(ctx, "ghost@x.com", "correct horse")
	_, errWrongPW := env.svc.Login(ctx, "ada@x.com", "wrong password")

	if !errors.Is(errUnknown, ErrInvalidCredentials) || !errors.Is(errWrongPW, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for both, got %v and %v", errUnknown, errWrongPW)
	}
	if errUnknown.Error() != errWrongPW.Error() {
		t.Fatal("unknown-email and wrong-password errors must read identically")
	}
}

func TestLoginBeyondCapEvictsOldestRefreshToken(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	first := mustRegister(t, env, "ada@x.com")

	// Registration opened session 1; five more logins push the total past
	// the cap of five, so the registration token must be the one evicted.
	for i := 0; i < 5; i++ {
		if _, err := env.svc.Login(ctx, "ada@x.com", "correct horse"); err != nil {
			t.Fatalf("login %d: %v", i, err)
		}
	}
	if got := env.refresh.Count(first.User.ID); got != 5 {
		t.Fatalf("expected cap of 5 tokens, got %d", got)
	}
	if _, err := env.svc.Refresh(ctx, first.RefreshToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("evicted token should not refresh, got %v", err)
	}
}

func TestRefreshRotatesAndRejectsReuse(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	session := mustRegister(t, env, "ada@x.com")

	pair, err := env.svc.Refresh(ctx, session.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatal("expected a full token pair")
	}
	if pair.RefreshToken == session.RefreshToken {
		t.Fatal("refresh token was not rotated")
	}

	// The spent token is gone from the store; presenting it again fails.
	if _, err := env.svc.Refresh(ctx, session.RefreshToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("reused token: got %v", err)
	}
	// The rotated-in token still works.
	if _, err := env.svc.Refresh(ctx, pair.RefreshToken); err != nil {
		t.Fatalf("rotated token: %v", err)
	}
}

func TestRefreshRejectsGarbage(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, err := env.svc.Refresh(ctx, "not-a-token"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("garbage token: got %v", err)
	}
	if _, err := env.svc.Refresh(ctx, ""); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("empty token: got %v", err)
	}
}

func TestPasswordChangeInvalidatesOutstandingTokens(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	session := mustRegister(t, env, "ada@x.com")

	if err := env.svc.UpdatePassword(ctx, session.User.ID, "correct horse", "battery staple"); err != nil {
		t.Fatalf("UpdatePassword: %v", err)
	}

	// Old refresh token carries the previous version and is purged on use.
	if _, err := env.svc.Refresh(ctx, session.RefreshToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("stale refresh token: got %v", err)
	}
	if env.refresh.Count(session.User.ID) != 0 {
		t.Fatal("stale token should be purged from the store")
	}
	// Old access token fails the version gate.
	if _, err := env.svc.AuthenticateAccess(ctx, session.AccessToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("stale access token: got %v", err)
	}
	// New credentials work.
	if _, err := env.svc.Login(ctx, "ada@x.com", "battery staple"); err != nil {
		t.Fatalf("login with new password: %v", err)
	}
	if _, err := env.svc.Login(ctx, "ada@x.com", "correct horse"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("login with old password: got %v", err)
	}
}

func TestUpdatePasswordRequiresCurrent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	session := mustRegister(t, env, "ada@x.com")

	err := env.svc.UpdatePassword(ctx, session.User.ID, "wrong", "battery staple")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("wrong current password: got %v", err)
	}
	err = env.svc.UpdatePassword(ctx, session.User.ID, "correct horse", "tiny")
	if !errors.Is(err, ErrWeakPassword) {
		t.Fatalf("weak new password: got %v", err)
	}
}

func TestLogoutIsBestEffort(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	session := mustRegister(t, env, "ada@x.com")

	// Garbage and empty tokens are swallowed.
	env.svc.Logout(ctx, "garbage")
	env.svc.Logout(ctx, "")

	env.svc.Logout(ctx, session.RefreshToken)
	if env.refresh.Count(session.User.ID) != 0 {
		t.Fatal("logout should remove the presented token")
	}
	// Logging out twice is harmless.
	env.svc.Logout(ctx, session.RefreshToken)
}

func TestRequestPasswordResetDoesNotLeakAccounts(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	mustRegister(t, env, "ada@x.com")

	if err := env.svc.RequestPasswordReset(ctx, "ghost@x.com"); err != nil {
		t.Fatalf("unknown email must look successful, got %v", err)
	}
	if len(env.mailer.resetTokens) != 0 {
		t.Fatal("no mail should go to an unknown address")
	}

	if err := env.svc.RequestPasswordReset(ctx, "ada@x.com"); err != nil {
		t.Fatalf("RequestPasswordReset: %v", err)
	}
	if len(env.mailer.resetTokens) != 1 {
		t.Fatalf("expected one reset mail, got %d", len(env.mailer.resetTokens))
	}
}

func TestCompletePasswordResetIsSingleUse(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	session := mustRegister(t, env, "ada@x.com")

	if err := env.svc.RequestPasswordReset(ctx, "ada@x.com"); err != nil {
		t.Fatalf("RequestPasswordReset: %v", err)
	}
	resetToken := env.mailer.resetTokens[0]

	if err := env.svc.CompletePasswordReset(ctx, resetToken, "battery staple"); err != nil {
		t.Fatalf("CompletePasswordReset: %v", err)
	}
	if _, err := env.svc.Login(ctx, "ada@x.com", "battery staple"); err != nil {
		t.Fatalf("login with reset password: %v", err)
	}
	// Reset bumps the version, so the pre-reset session is dead.
	if _, err := env.svc.AuthenticateAccess(ctx, session.AccessToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("pre-reset access token: got %v", err)
	}
	// Same link again is rejected.
	if err := env.svc.CompletePasswordReset(ctx, resetToken, "third password"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("replayed reset token: got %v", err)
	}
}

func TestCompletePasswordResetRejectsWrongKind(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	session := mustRegister(t, env, "ada@x.com")

	// An access token is signed with a different secret and type claim.
	err := env.svc.CompletePasswordReset(ctx, session.AccessToken, "battery staple")
	if !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("access token as reset token: got %v", err)
	}
}

func TestVerifyEmailIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	session := mustRegister(t, env, "ada@x.com")
	emailToken := env.mailer.emailTokens[0]

	if err := env.svc.VerifyEmail(ctx, emailToken); err != nil {
		t.Fatalf("VerifyEmail: %v", err)
	}
	user, err := env.svc.CurrentUser(ctx, session.User.ID)
	if err != nil {
		t.Fatalf("CurrentUser: %v", err)
	}
	if !user.EmailVerified {
		t.Fatal("email should be verified")
	}
	// Clicking the same link again succeeds without effect.
	if err := env.svc.VerifyEmail(ctx, emailToken); err != nil {
		t.Fatalf("second VerifyEmail: %v", err)
	}
}

func TestResendVerification(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	session := mustRegister(t, env, "ada@x.com")

	if err := env.svc.ResendVerification(ctx, session.User.ID); err != nil {
		t.Fatalf("ResendVerification: %v", err)
	}
	if len(env.mailer.emailTokens) != 2 {
		t.Fatalf("expected 2 verification mails, got %d", len(env.mailer.emailTokens))
	}

	if err := env.svc.VerifyEmail(ctx, env.mailer.emailTokens[1]); err != nil {
		t.Fatalf("VerifyEmail: %v", err)
	}
	if err := env.svc.ResendVerification(ctx, session.User.ID); !errors.Is(err, ErrAlreadyVerified) {
		t.Fatalf("resend after verify: got %v", err)
	}
}

func TestLoginCanRequireVerifiedEmail(t *testing.T) {
	env := newTestEnv(t, WithRequireVerifiedEmail(true))
	ctx := context.Background()
	mustRegister(t, env, "ada@x.com")

	if _, err := env.svc.Login(ctx, "ada@x.com", "correct horse"); !errors.Is(err, ErrEmailNotVerified) {
		t.Fatalf("unverified login: got %v", err)
	}
	if err := env.svc.VerifyEmail(ctx, env.mailer.emailTokens[0]); err != nil {
		t.Fatalf("VerifyEmail: %v", err)
	}
	if _, err := env.svc.Login(ctx, "ada@x.com", "correct horse"); err != nil {
		t.Fatalf("verified login: %v", err)
	}
}

func TestAuthenticateAccess(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	session := mustRegister(t, env, "ada@x.com")

	id, err := env.svc.AuthenticateAccess(ctx, session.AccessToken)
	if err != nil {
		t.Fatalf("AuthenticateAccess: %v", err)
	}
	if id.UserID != session.User.ID || id.Email != "ada@x.com" {
		t.Fatalf("unexpected identity: %+v", id)
	}

	if _, err := env.svc.AuthenticateAccess(ctx, "garbage"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("garbage token: got %v", err)
	}
	// Refresh tokens must not pass as access tokens.
	if _, err := env.svc.AuthenticateAccess(ctx, session.RefreshToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("refresh token as bearer: got %v", err)
	}
}

func TestConcurrentLoginsRespectCap(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	session := mustRegister(t, env, "ada@x.com")

	done := make(chan error, 10)
	for i := 0; i < 10; i++ {
		go func() {
			_, err := env.svc.Login(ctx, "ada@x.com", "correct horse")
			done <- err
		}()
	}
	for i := 0; i < 10; i++ {
		if err := <-done; err != nil {
			t.Fatalf("concurrent login: %v", err)
		}
	}
	if got := env.refresh.Count(session.User.ID); got > 5 {
		t.Fatalf("cap exceeded under concurrency: %d", got)
	}
}

func TestRegisterNormalizesEmail(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	session, err := env.svc.Register(ctx, "Ada", "  Ada@X.COM ", "correct horse")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if session.User.Email != "ada@x.com" {
		t.Fatalf("email not normalized: %q", session.User.Email)
	}
	if _, err := env.svc.Login(ctx, "ADA@x.com", "correct horse"); err != nil {
		t.Fatalf("login with differently-cased email: %v", err)
	}
}

func ExampleService_Refresh() {
	users := NewMemoryUserStore()
	refresh := NewMemoryRefreshStore(5)
	codec, _ := token.NewCodec(token.Secrets{
		Access: "a", Refresh: "b", Reset: "c", Email: "d",
	}, token.TTLs{})
	svc := NewService(users, refresh, codec, WithBcryptCost(4))

	session, _ := svc.Register(context.Background(), "Ada", "ada@x.com", "correct horse")
	_, err := svc.Refresh(context.Background(), session.RefreshToken)
	fmt.Println(err)
	// Output: <nil>
}
