package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"

	"github.com/Jjzme2/Organizer-App/internal/auth"
	"github.com/Jjzme2/Organizer-App/internal/config"
	"github.com/Jjzme2/Organizer-App/internal/httpapi"
	"github.com/Jjzme2/Organizer-App/internal/mail"
	"github.com/Jjzme2/Organizer-App/internal/obs"
	"github.com/Jjzme2/Organizer-App/internal/token"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

func main() {
	obs.Init()
	obs.InitBuildInfo(version, commit)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	codec, err := token.NewCodec(token.Secrets{
		Access:  cfg.Secrets.Access,
		Refresh: cfg.Secrets.Refresh,
		Reset:   cfg.Secrets.Reset,
		Email:   cfg.Secrets.Email,
	}, token.TTLs{
		Access:  cfg.AccessTTL,
		Refresh: cfg.RefreshTTL,
		Reset:   cfg.ResetTTL,
		Email:   cfg.EmailTTL,
	})
	if err != nil {
		log.Fatalf("token codec: %v", err)
	}

	// User store: Postgres when a DSN is configured, memory otherwise.
	var users auth.UserStore
	var db *sql.DB
	if cfg.PGDSN != "" {
		db, err = sql.Open("pgx", cfg.PGDSN)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(10)
		db.SetConnMaxLifetime(30 * time.Minute)
		users = auth.NewPGUserStore(db)
	} else {
		log.Print("PG_DSN not set, using in-memory user store")
		users = auth.NewMemoryUserStore()
	}

	// Refresh-token store: Redis when an address is configured. The memory
	// store is single-instance only.
	var refresh auth.RefreshTokenStore
	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		refresh = auth.NewRedisRefreshStore(redisClient, cfg.MaxRefreshTokensPerUser, cfg.RefreshTTL)
	} else {
		log.Print("REDIS_ADDR not set, using in-memory refresh token store")
		refresh = auth.NewMemoryRefreshStore(cfg.MaxRefreshTokensPerUser)
	}

	var mailer auth.Mailer
	if cfg.SMTP.Host != "" {
		mailer = mail.NewSMTPMailer(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.From, cfg.ClientBaseURL)
	} else {
		log.Print("SMTP_HOST not set, mail links go to the log")
		mailer = mail.NewLogMailer(cfg.ClientBaseURL)
	}

	svc := auth.NewService(users, refresh, codec,
		auth.WithMailer(mailer),
		auth.WithBcryptCost(cfg.BcryptCost),
		auth.WithRequireVerifiedEmail(cfg.RequireVerifiedEmail),
	)

	api := httpapi.New(svc,
		httpapi.ReadyProbe{DB: db, Redis: redisClient},
		version,
		httpapi.WithClientOrigin(cfg.ClientBaseURL),
		httpapi.WithRateLimit(cfg.RateLimitPerSecond, cfg.RateLimitBurst),
	)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting organizer-api %s on %s (%s)", version, srv.Addr, cfg)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	if db != nil {
		_ = db.Close()
	}
	if redisClient != nil {
		_ = redisClient.Close()
	}
	log.Println("Stopped")
}
