package http

import (
	"context"
	"log/slog"

	"github.com/go-otp-auth/internal/domain"
	jwtinfra "github.com/go-otp-auth/internal/infrastructure/jwt"
	"github.com/go-otp-auth/internal/pkg/mailtmpl"
)

// AccountStore is the minimal interface the router requires from a user store.
// Both the DynamoDB and Postgres repositories satisfy it.
type AccountStore interface {
	GetByEmail(ctx context.Context, email string) (*domain.UserAccount, error)
	Get(ctx context.Context, userID string) (*domain.UserAccount, error)
	Update(ctx context.Context, userID string, updates map[string]interface{}) error
	UpdateIfCode(ctx context.Context, userID, expectedCode string, updates map[string]interface{}) error
}

// Mailer is the minimal interface the router requires from a mail provider.
type Mailer interface {
	Send(ctx context.Context, msg domain.Message) error
}

// Deps holds all infrastructure dependencies for the router. Mailers and
// Tokens may be nil; the affected endpoints then answer "Server misconfigured".
type Deps struct {
	Store       AccountStore
	OTPMailer   Mailer
	ResetMailer Mailer
	Tokens      *jwtinfra.Provider
	Templates   *mailtmpl.Set
	Logger      *slog.Logger
}
