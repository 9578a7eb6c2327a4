package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"gitlab.com/dirk.krummacker/contacts-api/internal/auth"
	"gitlab.com/dirk.krummacker/contacts-api/internal/avatar"
	"gitlab.com/dirk.krummacker/contacts-api/internal/config"
	"gitlab.com/dirk.krummacker/contacts-api/internal/mail"
	"gitlab.com/dirk.krummacker/contacts-api/internal/ratelimit"
	"gitlab.com/dirk.krummacker/contacts-api/internal/repository"
	"gitlab.com/dirk.krummacker/contacts-api/internal/service"
)

const shutdownTimeout = 10 * time.Second

// Usage example on the command line:
// > PORT=8080 DBUSER=dirk DBPWD=bullo92 JWT_SECRET=s3cr3t GIN_MODE=release GIN_LOGGING=OFF go run main.go
func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))
	if err := run(); err != nil {
		slog.Error("service stopped", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// A missing .env file is fine, the environment may already be complete.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sqlDB, err := repository.CreateDatabase(cfg.Database)
	if err != nil {
		return err
	}
	db := repository.NewDb(sqlDB)
	defer db.Close()

	contacts, err := repository.NewContactRepository(db)
	if err != nil {
		return err
	}
	tokens := auth.NewTokenService(cfg.Tokens)

	store, err := avatar.NewS3Store(ctx, cfg.Storage)
	if err != nil {
		return err
	}

	limiter, redisClient, err := newLimiter(ctx, cfg.Limits)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	router := service.SetupHttpRouter(&service.Dependencies{
		DB:         db,
		Contacts:   contacts,
		Users:      repository.NewUserRepository(db),
		Tokens:     tokens,
		Mailer:     mail.NewSMTPSender(cfg.Mail, tokens),
		Avatars:    avatar.NewService(store, cfg.Storage.PublicBaseURL, cfg.Storage.AvatarFolder),
		Limiter:    limiter,
		GinLogging: cfg.GinLogging,

		TrustedProxies: cfg.TrustedProxies,
		PublicBaseURL:  cfg.PublicBaseURL,
	})

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	serverErr := make(chan error, 1)
	go func() {
		slog.Info("listening", "addr", server.Addr, "env", cfg.Env)
		serverErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// newLimiter connects to Redis when REDIS_URL is set and falls back to an in-process limiter.
// The returned client is nil for the in-process limiter.
func newLimiter(ctx context.Context, cfg config.Limits) (ratelimit.Limiter, *redis.Client, error) {
	if cfg.RedisURL == "" {
		return ratelimit.NewMemoryLimiter(cfg.Times, cfg.Window), nil, nil
	}
	client, err := ratelimit.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	return ratelimit.NewRedisLimiter(client, cfg.Times, cfg.Window), client, nil
}
