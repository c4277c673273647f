package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"github.com/serenify/server/internal/auth"
	"github.com/serenify/server/internal/config"
	"github.com/serenify/server/internal/db"
	httphandler "github.com/serenify/server/internal/http"
	"github.com/serenify/server/internal/http/handlers"
	"github.com/serenify/server/internal/logger"
	"github.com/serenify/server/internal/metrics"
	"github.com/serenify/server/internal/notify"
	"github.com/serenify/server/internal/repo"
)

func main() {
	// Load .env from CWD or server/ so it works from repo root or server/ (env vars override)
	_ = godotenv.Load(".env")
	_ = godotenv.Load("server/.env")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	appLogger := logger.NewDefault(cfg.LogLevel)
	slog.SetDefault(appLogger)

	ctx := context.Background()

	database, err := db.Open(ctx, cfg.DatabaseURL, appLogger)
	if err != nil {
		appLogger.Error("failed to open database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer database.Close()

	if err := db.RunMigrations(ctx, database); err != nil {
		appLogger.Error("failed to run migrations", slog.String("error", err.Error()))
		os.Exit(1)
	}

	registry := metrics.NewRegistration()
	service := auth.NewService(
		repo.NewStore(database),
		auth.NewBcryptHasher(cfg.BcryptCost),
		newNotifier(cfg, appLogger),
		appLogger,
		auth.WithOTPTTL(cfg.OTPTTL),
		auth.WithNotifyTimeout(cfg.NotifyTimeout),
	)

	router := httphandler.NewRouter(httphandler.RouterDeps{
		Auth:       handlers.NewAuthHandler(service, registry, appLogger),
		Health:     handlers.NewHealthHandler(database),
		Metrics:    registry.Handler(),
		CORSOrigin: cfg.CORSOrigin,
		Logger:     appLogger,
	})

	// WriteTimeout leaves room for a slow SMTP relay on signup and resend.
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      cfg.NotifyTimeout + 10*time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		appLogger.Info("server starting", slog.String("port", cfg.Port), slog.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Error("server failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("server forced to shutdown", slog.String("error", err.Error()))
	}

	appLogger.Info("server exited")
}

// newNotifier picks SMTP when configured and logs otherwise. Outside production
// failed sends fall back to the log so a missing relay never blocks signup.
func newNotifier(cfg *config.Config, appLogger *slog.Logger) auth.Notifier {
	var base notify.Notifier
	if cfg.SMTP.Configured() {
		base = notify.NewSMTPNotifier(cfg.SMTP, appLogger)
	} else {
		appLogger.Warn("smtp not configured, otp emails will be logged")
		base = notify.NewLogNotifier(appLogger)
	}
	return notify.NewDevFallback(base, !cfg.Production(), appLogger)
}
