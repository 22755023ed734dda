package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/Jjzme2/Organizer-App/internal/auth"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "

	// redirectHeader tells the web client where to send the user after an
	// authentication failure.
	redirectHeader = "X-Redirect"
)

// requireAuth wraps a handler with bearer-token authentication. Every 401
// carries an X-Redirect: /login header so the client can route the user to
// the login page.
func (a *API) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw, err := extractBearerToken(r.Header.Get(authHeader))
		if err != nil {
			a.unauthorized(w, r, err.Error())
			return
		}
		id, err := a.svc.AuthenticateAccess(r.Context(), raw)
		if err != nil {
			a.unauthorized(w, r, "invalid or expired token")
			return
		}
		ctx := auth.ContextWithIdentity(r.Context(), id)
		next(w, r.WithContext(ctx))
	}
}

func (a *API) unauthorized(w http.ResponseWriter, r *http.Request, msg string) {
	w.Header().Set(redirectHeader, "/login")
	writeError(w, r, http.StatusUnauthorized, msg)
}

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errors.New("missing bearer token")
	}
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearer)) {
		return "", errors.New("invalid authorization scheme")
	}
	token := strings.TrimSpace(header[len(bearer):])
	if token == "" {
		return "", errors.New("missing bearer token")
	}
	return token, nil
}
