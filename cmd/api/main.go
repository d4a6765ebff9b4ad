package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/go-otp-auth/internal/config"
	"github.com/go-otp-auth/internal/infrastructure/dynamo"
	jwtinfra "github.com/go-otp-auth/internal/infrastructure/jwt"
	"github.com/go-otp-auth/internal/infrastructure/mailgun"
	"github.com/go-otp-auth/internal/infrastructure/postgres"
	s3infra "github.com/go-otp-auth/internal/infrastructure/s3"
	"github.com/go-otp-auth/internal/infrastructure/sendgrid"
	"github.com/go-otp-auth/internal/infrastructure/smtp"
	"github.com/go-otp-auth/internal/logger"
	"github.com/go-otp-auth/internal/pkg/mailtmpl"
	transporthttp "github.com/go-otp-auth/internal/transport/http"
)

func main() {
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel, cfg.AppEnv)
	slog.SetDefault(log)
	if envErr != nil {
		log.Info("no .env file found, reading from environment")
	}

	ctx := context.Background()

	store, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		log.Error("open account store", "store", cfg.AccountStore, "err", err)
		os.Exit(1)
	}
	defer closeStore()

	// Recovery tokens (optional; reset endpoints answer "Server misconfigured" without them).
	var tokens *jwtinfra.Provider
	if p, err := jwtinfra.NewProvider(cfg.Reset.TokenSecret, cfg.Reset.TokenTTL); err == nil {
		tokens = p
	} else {
		log.Warn("recovery tokens not available", "err", err)
	}

	templates, err := loadTemplates(ctx, cfg, log)
	if err != nil {
		log.Error("load email templates", "err", err)
		os.Exit(1)
	}

	deps := &transporthttp.Deps{
		Store:     store,
		Tokens:    tokens,
		Templates: templates,
		Logger:    log,
	}
	if m := newMailer(cfg, false); m != nil {
		deps.OTPMailer = m
	} else {
		log.Warn("mail provider not configured, send_otp will fail", "provider", cfg.Mail.Provider)
	}
	if m := newMailer(cfg, true); m != nil {
		deps.ResetMailer = m
	} else {
		log.Warn("mail provider not configured, reset-password will fail", "provider", cfg.Mail.Provider)
	}

	router := transporthttp.NewRouter(cfg, deps)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("server starting", "port", cfg.AppPort, "env", cfg.AppEnv, "store", cfg.AccountStore)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("forced shutdown", "err", err)
		return
	}
	log.Info("server stopped")
}

// openStore builds the account store selected by ACCOUNT_STORE.
func openStore(ctx context.Context, cfg *config.Config, log *slog.Logger) (transporthttp.AccountStore, func(), error) {
	switch cfg.AccountStore {
	case config.StorePostgres:
		db, err := postgres.Open(ctx, cfg.Postgres)
		if err != nil {
			return nil, nil, err
		}
		return postgres.NewUserRepository(db), func() { db.Close() }, nil
	default:
		client, err := dynamo.NewClient(ctx, cfg.AWS)
		if err != nil {
			return nil, nil, err
		}
		if cfg.Dynamo.Bootstrap {
			if err := dynamo.Bootstrap(ctx, client, cfg.Dynamo.UsersTable, log); err != nil {
				log.Warn("could not create users table", "table", cfg.Dynamo.UsersTable, "err", err)
			}
		}
		return dynamo.NewUserRepo(client, cfg.Dynamo.UsersTable), func() {}, nil
	}
}

// newMailer returns the configured provider, or nil when its credentials are missing.
func newMailer(cfg *config.Config, forReset bool) transporthttp.Mailer {
	if !cfg.MailConfigured(forReset) {
		return nil
	}
	switch cfg.Mail.Provider {
	case config.MailMailgun:
		return mailgun.NewMailer(cfg.Mail.MailgunDomain, cfg.Mail.MailgunAPIKey, cfg.Mail.MailgunAPIBase)
	case config.MailSMTP:
		return smtp.NewMailer(cfg.Mail.SMTPHost, cfg.Mail.SMTPPort, cfg.Mail.SMTPUsername, cfg.Mail.SMTPPassword)
	default:
		return sendgrid.NewMailer(cfg.SendGridKey(forReset), cfg.Mail.SendGridHost)
	}
}

// loadTemplates returns the embedded templates, overridden from S3 when TEMPLATES_BUCKET is set.
func loadTemplates(ctx context.Context, cfg *config.Config, log *slog.Logger) (*mailtmpl.Set, error) {
	if cfg.Templates.Bucket == "" {
		return mailtmpl.Default(), nil
	}
	client, err := s3infra.NewClient(ctx, cfg.AWS)
	if err != nil {
		return nil, err
	}
	return mailtmpl.Load(ctx, s3infra.NewStore(client, cfg.Templates.Bucket), cfg.Templates.Prefix, log)
}
