// Package httpapi is the HTTP layer: routing, request decoding, error
// mapping, and the middleware chain around the auth service.
package httpapi

import (
	"context"
	"database/sql"
	"net/http"

	"github.com/redis/go-redis/v9"

	"github.com/Jjzme2/Organizer-App/internal/audit"
	"github.com/Jjzme2/Organizer-App/internal/auth"
	"github.com/Jjzme2/Organizer-App/internal/obs"
)

// ReadyProbe checks downstream dependencies for /readyz. Nil members are
// skipped, so the probe works for the in-memory configuration too.
type ReadyProbe struct {
	DB    *sql.DB
	Redis *redis.Client
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB != nil {
		if err := rp.DB.PingContext(ctx); err != nil {
			return err
		}
	}
	if rp.Redis != nil {
		if err := rp.Redis.Ping(ctx).Err(); err != nil {
			return err
		}
	}
	return nil
}

// API is the HTTP surface of the service.
type API struct {
	mux          *http.ServeMux
	svc          *auth.Service
	readyProbe   ReadyProbe
	version      string
	clientOrigin string
	ratePerSec   int
	rateBurst    int
}

// Option configures the API.
type Option func(*API)

// WithClientOrigin allows CORS requests from the web client's origin.
func WithClientOrigin(origin string) Option {
	return func(a *API) { a.clientOrigin = origin }
}

// WithRateLimit sets the per-IP token bucket. Zero disables limiting.
func WithRateLimit(perSecond, burst int) Option {
	return func(a *API) {
		a.ratePerSec = perSecond
		a.rateBurst = burst
	}
}

// New wires up routes.
func New(svc *auth.Service, rp ReadyProbe, version string, opts ...Option) *API {
	a := &API{
		mux:        http.NewServeMux(),
		svc:        svc,
		readyProbe: rp,
		version:    version,
	}
	for _, opt := range opts {
		opt(a)
	}

	// health/ready/metrics
	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.Handle("/metrics", obs.Handler())

	// public auth endpoints
	a.mux.HandleFunc("/api/auth/register", a.handleRegister)
	a.mux.HandleFunc("/api/auth/login", a.handleLogin)
	a.mux.HandleFunc("/api/auth/refresh-token", a.handleRefresh)
	a.mux.HandleFunc("/api/auth/logout", a.handleLogout)
	a.mux.HandleFunc("/api/auth/forgot-password", a.handleForgotPassword)
	a.mux.HandleFunc("/api/auth/request-reset", a.handleForgotPassword)
	a.mux.HandleFunc("/api/auth/reset-password/", a.handleResetPassword)
	a.mux.HandleFunc("/api/auth/verify-email/", a.handleVerifyEmail)

	// authenticated endpoints
	a.mux.HandleFunc("/api/auth/me", a.requireAuth(a.handleMe))
	a.mux.HandleFunc("/api/auth/update-password", a.requireAuth(a.handleUpdatePassword))
	a.mux.HandleFunc("/api/auth/resend-verification", a.requireAuth(a.handleResendVerification))

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler returns the fully wrapped http.Handler for the server.
func (a *API) Handler() http.Handler {
	h := http.Handler(a.mux)
	h = MaxBodyBytes(h, 1<<20)
	if a.ratePerSec > 0 {
		h = RateLimit(h, a.rateBurst, a.ratePerSec)
	}
	h = CORS(h, a.clientOrigin)
	h = SecurityHeaders(h)
	h = Logging(h)
	h = RequestID(h)
	return obs.Instrument(h)
}

// --- Handlers ---

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "organizer-api",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) audit(ctx context.Context, event string, fields map[string]any) {
	if err := audit.LogEvent(ctx, event, fields); err != nil {
		obs.LogEvent("warn", "audit log failed", map[string]any{"event": event, "error": err.Error()})
	}
}
