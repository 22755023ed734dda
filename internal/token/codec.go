// Package token issues and verifies the four signed token kinds used by the
// auth service: access, refresh, reset, and email-verification. Each kind is
// signed with its own secret and carries an explicit type claim, so a token
// presented to the wrong verifier is rejected even when its signature checks
// out.
package token

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/Jjzme2/Organizer-App/internal/obs"
)

const issuer = "organizer"

// Kind discriminates token types via the "type" claim.
type Kind string

const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
	KindReset   Kind = "reset"
	KindEmail   Kind = "email-verification"
)

var (
	errMissingSecret = errors.New("token: signing secret is not configured")
	errMissingUserID = errors.New("token: user id is required")
)

// Claims is the payload shape shared by all four kinds. Name and Email are
// display conveniences for the client on access tokens and carry no security
// weight; TokenVersion is the per-user revocation epoch.
type Claims struct {
	Name         string `json:"name,omitempty"`
	Email        string `json:"email,omitempty"`
	TokenVersion int    `json:"token_version"`
	Type         string `json:"type"`
	jwt.RegisteredClaims
}

// UserID returns the subject claim.
func (c *Claims) UserID() string { return c.Subject }

// Identity is the caller-supplied input for access/refresh issuance.
type Identity struct {
	UserID       string
	Name         string
	Email        string
	TokenVersion int
}

// TTLs configures per-kind lifetimes.
type TTLs struct {
	Access  time.Duration
	Refresh time.Duration
	Reset   time.Duration
	Email   time.Duration
}

// Secrets holds the per-kind signing secrets.
type Secrets struct {
	Access  string
	Refresh string
	Reset   string
	Email   string
}

// Codec signs and verifies tokens. It is stateless and safe for concurrent
// use.
type Codec struct {
	secrets map[Kind][]byte
	ttls    map[Kind]time.Duration
	now     func() time.Time
}

// NewCodec builds a Codec. Every secret must be non-empty; a missing secret
// is a configuration error the process must not survive.
func NewCodec(secrets Secrets, ttls TTLs) (*Codec, error) {
	byKind := map[Kind]string{
		KindAccess:  secrets.Access,
		KindRefresh: secrets.Refresh,
		KindReset:   secrets.Reset,
		KindEmail:   secrets.Email,
	}
	c := &Codec{
		secrets: make(map[Kind][]byte, len(byKind)),
		ttls: map[Kind]time.Duration{
			KindAccess:  orDefault(ttls.Access, time.Hour),
			KindRefresh: orDefault(ttls.Refresh, 7*24*time.Hour),
			KindReset:   orDefault(ttls.Reset, time.Hour),
			KindEmail:   orDefault(ttls.Email, 24*time.Hour),
		},
		now: time.Now,
	}
	for kind, secret := range byKind {
		secret = strings.TrimSpace(secret)
		if secret == "" {
			return nil, errMissingSecret
		}
		c.secrets[kind] = []byte(secret)
	}
	return c, nil
}

// WithClock overrides the time source. Test use only.
func (c *Codec) WithClock(fn func() time.Time) *Codec {
	if fn != nil {
		c.now = fn
	}
	return c
}

// IssueAccess signs a short-lived access token for the user.
func (c *Codec) IssueAccess(id Identity) (string, error) {
	if strings.TrimSpace(id.UserID) == "" {
		return "", errMissingUserID
	}
	claims := Claims{
		Name:         id.Name,
		Email:        id.Email,
		TokenVersion: id.TokenVersion,
		Type:         string(KindAccess),
	}
	return c.sign(KindAccess, id.UserID, claims)
}

// IssueRefresh signs a long-lived refresh token for the user.
func (c *Codec) IssueRefresh(id Identity) (string, error) {
	if strings.TrimSpace(id.UserID) == "" {
		return "", errMissingUserID
	}
	claims := Claims{
		TokenVersion: id.TokenVersion,
		Type:         string(KindRefresh),
	}
	return c.sign(KindRefresh, id.UserID, claims)
}

// IssueReset signs a short-lived password-reset token.
func (c *Codec) IssueReset(userID string) (string, error) {
	if strings.TrimSpace(userID) == "" {
		return "", errMissingUserID
	}
	return c.sign(KindReset, userID, Claims{Type: string(KindReset)})
}

// IssueEmail signs an email-verification token.
func (c *Codec) IssueEmail(userID string) (string, error) {
	if strings.TrimSpace(userID) == "" {
		return "", errMissingUserID
	}
	return c.sign(KindEmail, userID, Claims{Type: string(KindEmail)})
}

func (c *Codec) sign(kind Kind, userID string, claims Claims) (string, error) {
	now := c.now().UTC()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(c.ttls[kind])),
		ID:        uuid.NewString(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secrets[kind])
}

// VerifyAccess validates an access token. It returns nil on any failure; the
// cause is logged for operators and never surfaced to clients.
func (c *Codec) VerifyAccess(raw string) *Claims { return c.verify(KindAccess, raw) }

// VerifyRefresh validates a refresh token.
func (c *Codec) VerifyRefresh(raw string) *Claims { return c.verify(KindRefresh, raw) }

// VerifyReset validates a password-reset token.
func (c *Codec) VerifyReset(raw string) *Claims { return c.verify(KindReset, raw) }

// VerifyEmail validates an email-verification token.
func (c *Codec) VerifyEmail(raw string) *Claims { return c.verify(KindEmail, raw) }

func (c *Codec) verify(kind Kind, raw string) *Claims {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parsed, err := jwt.ParseWithClaims(raw, &Claims{}, func(t *jwt.Token) (any, error) {
		// HS256 only; anything else is algorithm confusion.
		if t.Method != jwt.SigningMethodHS256 {
			return nil, jwt.ErrTokenSignatureInvalid
		}
		return c.secrets[kind], nil
	}, jwt.WithIssuer(issuer), jwt.WithExpirationRequired(), jwt.WithTimeFunc(c.now))
	if err != nil {
		obs.LogEvent("warn", "token verification failed", map[string]any{
			"kind":  string(kind),
			"error": err.Error(),
		})
		return nil
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil
	}
	if claims.Type != string(kind) {
		obs.LogEvent("warn", "token type mismatch", map[string]any{
			"kind": string(kind),
			"got":  claims.Type,
		})
		return nil
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil
	}
	return claims
}

func orDefault(d, fallback time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return fallback
}
