package token

import (
	"strings"
	"testing"
	"time"
)

func newTestCodec(t *testing.T) *Codec {
	t.Helper()
	c, err := NewCodec(Secrets{
		Access:  "access-secret",
		Refresh: "refresh-secret",
		Reset:   "reset-secret",
		Email:   "email-secret",
	}, TTLs{})
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	return c
}

func TestNewCodecRequiresAllSecrets(t *testing.T) {
	_, err := NewCodec(Secrets{Access: "a", Refresh: "r", Reset: "", Email: "e"}, TTLs{})
	if err == nil {
		t.Fatal("expected error for missing reset secret")
	}
}

func TestAccessRoundTrip(t *testing.T) {
	c := newTestCodec(t)

	raw, err := c.IssueAccess(Identity{UserID: "user-1", Name: "Ada", Email: "ada@x.com", TokenVersion: 3})
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}

	claims := c.VerifyAccess(raw)
	if claims == nil {
		t.Fatal("expected valid claims")
	}
	if claims.UserID() != "user-1" {
		t.Fatalf("unexpected subject: %s", claims.UserID())
	}
	if claims.TokenVersion != 3 {
		t.Fatalf("unexpected token version: %d", claims.TokenVersion)
	}
	if claims.Type != string(KindAccess) {
		t.Fatalf("unexpected type: %s", claims.Type)
	}
}

func TestIssueRequiresUserID(t *testing.T) {
	c := newTestCodec(t)
	if _, err := c.IssueAccess(Identity{}); err == nil {
		t.Fatal("expected error for empty user id")
	}
	if _, err := c.IssueRefresh(Identity{}); err == nil {
		t.Fatal("expected error for empty user id")
	}
	if _, err := c.IssueReset("  "); err == nil {
		t.Fatal("expected error for blank user id")
	}
	if _, err := c.IssueEmail(""); err == nil {
		t.Fatal("expected error for empty user id")
	}
}

func TestKindAndSecretIsolation(t *testing.T) {
	c := newTestCodec(t)

	reset, err := c.IssueReset("user-9")
	if err != nil {
		t.Fatalf("IssueReset: %v", err)
	}

	// A reset token round-trips through its own verifier only.
	if claims := c.VerifyReset(reset); claims == nil || claims.UserID() != "user-9" || claims.Type != string(KindReset) {
		t.Fatalf("reset round trip failed: %+v", claims)
	}
	if c.VerifyEmail(reset) != nil {
		t.Fatal("email verifier accepted a reset token")
	}
	if c.VerifyAccess(reset) != nil {
		t.Fatal("access verifier accepted a reset token")
	}

	refresh, err := c.IssueRefresh(Identity{UserID: "user-9"})
	if err != nil {
		t.Fatalf("IssueRefresh: %v", err)
	}
	if c.VerifyAccess(refresh) != nil {
		t.Fatal("access verifier accepted a refresh token")
	}
}

func TestVerifyRejectsTampering(t *testing.T) {
	c := newTestCodec(t)

	raw, err := c.IssueAccess(Identity{UserID: "user-2"})
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}

	mangled := raw[:len(raw)-5] + "xxxxx"
	if c.VerifyAccess(mangled) != nil {
		t.Fatal("expected tampered token to fail verification")
	}
	if c.VerifyAccess("") != nil {
		t.Fatal("expected empty token to fail verification")
	}
	if c.VerifyAccess("not.a.jwt") != nil {
		t.Fatal("expected garbage token to fail verification")
	}
}

func TestVerifyRejectsExpired(t *testing.T) {
	c := newTestCodec(t)

	issued := time.Now().Add(-2 * time.Hour)
	c.WithClock(func() time.Time { return issued })
	raw, err := c.IssueAccess(Identity{UserID: "user-3"})
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}

	c.WithClock(time.Now)
	if c.VerifyAccess(raw) != nil {
		t.Fatal("expected expired token to fail verification")
	}
}

func TestTokensCarryDistinctIDs(t *testing.T) {
	c := newTestCodec(t)

	a, _ := c.IssueReset("user-4")
	b, _ := c.IssueReset("user-4")
	ca, cb := c.VerifyReset(a), c.VerifyReset(b)
	if ca == nil || cb == nil {
		t.Fatal("expected both tokens to verify")
	}
	if ca.ID == "" || strings.EqualFold(ca.ID, cb.ID) {
		t.Fatalf("expected distinct jti values, got %q and %q", ca.ID, cb.ID)
	}
}
