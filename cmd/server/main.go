package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/diewo77/freelance-desk/auth"
	"github.com/diewo77/freelance-desk/internal/config"
	"github.com/diewo77/freelance-desk/internal/db"
	"github.com/diewo77/freelance-desk/internal/logging"
	"github.com/diewo77/freelance-desk/internal/mail"
	"github.com/diewo77/freelance-desk/internal/middleware"
	"github.com/diewo77/freelance-desk/internal/oauth"
	"github.com/diewo77/freelance-desk/internal/services"
)

var migrateOnlyFlag = flag.Bool("migrate-only", false, "Run DB migrations and exit")

func main() {
	flag.Parse()

	// Load environment variables from .env file
	_ = godotenv.Load()

	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log, err := logging.New(cfg.App.LogLevel, cfg.App.Dev)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbConn, err := db.Open(ctx, cfg.Database, log)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer func() {
		if err := db.Close(dbConn); err != nil {
			log.Warn("close database", zap.Error(err))
		}
	}()

	if *migrateOnlyFlag {
		if err := db.Migrate(dbConn); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		log.Info("migrations completed successfully")
		return nil
	}
	if cfg.App.Migrations {
		if err := db.Migrate(dbConn); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		log.Info("migrations completed")
	}

	mailer, err := mail.New(cfg.Mail, log)
	if err != nil {
		return fmt.Errorf("mailer: %w", err)
	}
	tokens := auth.NewTokens(cfg.Auth.SessionSecret, cfg.Auth.TokenSecret)
	accounts := services.NewAccounts(dbConn, tokens, mailer, log, services.AccountsConfig{
		PhoneRegion: cfg.Auth.PhoneRegion,
		BaseURL:     cfg.App.BaseURL,
	})

	var provider oauth.Provider
	if cfg.Auth.GoogleEnabled() {
		provider = oauth.NewGoogle(cfg.Auth.GoogleClientID, cfg.Auth.GoogleClientSecret,
			cfg.App.BaseURL+"/api/auth/oauth/google/callback")
	}

	limiter := middleware.NewRateLimiter(cfg.Auth.RateLimit, log)
	go limiter.Run(ctx, time.Minute)

	app := NewApp(Deps{
		DB:            dbConn,
		Tokens:        tokens,
		Accounts:      accounts,
		OAuth:         provider,
		SecureCookies: cfg.App.SecureCookies(),
		Log:           log,
		Metrics:       middleware.NewMetrics(),
		Limiter:       limiter,
		TrustProxy:    cfg.Server.TrustProxy,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      app,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server starting",
			zap.String("port", cfg.Server.Port),
			zap.Bool("dev", cfg.App.Dev),
			zap.String("db_driver", cfg.Database.Driver),
			zap.Bool("google_oauth", provider != nil))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server: %w", err)
		}
	case <-ctx.Done():
		log.Info("shutdown signal received")
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("error during shutdown", zap.Error(err))
	}
	log.Info("server stopped gracefully")
	return nil
}
