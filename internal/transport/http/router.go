package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/go-otp-auth/internal/application/otp"
	"github.com/go-otp-auth/internal/application/recovery"
	"github.com/go-otp-auth/internal/config"
	"github.com/go-otp-auth/internal/domain"
	"github.com/go-otp-auth/internal/transport/http/handler"
	appmiddleware "github.com/go-otp-auth/internal/transport/http/middleware"
)

// NewRouter builds and returns the application router.
func NewRouter(cfg *config.Config, deps *Deps) http.Handler {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Logger)
	r.Use(appmiddleware.Recover(deps.Logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "X-Client-Info", "Apikey", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
		// Preflights still reach the route's OPTIONS handler, which writes "ok".
		OptionsPassthrough: true,
	}))
	r.MethodNotAllowed(handler.MethodNotAllowed)

	from := domain.Address{Email: cfg.Mail.FromEmail, Name: cfg.Mail.FromName}

	otpSvc := otp.NewService(otp.ServiceDeps{
		Store:     deps.Store,
		Mailer:    deps.OTPMailer,
		Templates: deps.Templates,
		From:      from,
		TTL:       cfg.OTP.TTL,
		Logger:    deps.Logger,
	})
	recoverySvc := recovery.NewService(recovery.ServiceDeps{
		Store:            deps.Store,
		Mailer:           deps.ResetMailer,
		Tokens:           deps.Tokens,
		Templates:        deps.Templates,
		From:             from,
		DefaultRedirect:  cfg.ResetRedirect,
		AllowedRedirects: cfg.Reset.AllowedRedirects,
		Logger:           deps.Logger,
	})

	healthH := handler.NewHealthHandler()
	otpH := handler.NewOTPHandler(otpSvc)
	resetH := handler.NewPasswordResetHandler(recoverySvc)
	preflight := handler.NewPreflightHandler(cfg.AllowedOrigins)

	r.Route("/v1", func(r chi.Router) {
		r.MethodNotAllowed(handler.MethodNotAllowed)

		r.Get("/health-check/{action}", healthH.Ping)

		post := func(pattern string, h http.HandlerFunc) {
			r.Post(pattern, h)
			r.Method(http.MethodOptions, pattern, preflight)
		}
		post("/send_otp", otpH.Send)
		post("/verify_otp", otpH.Verify)
		post("/reset-password", resetH.Request)
		post("/reset-password/confirm", resetH.Confirm)
	})

	return r
}
