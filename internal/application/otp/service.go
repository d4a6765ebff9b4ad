package otp

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/go-otp-auth/internal/domain"
	"github.com/go-otp-auth/internal/pkg/mailtmpl"
	"github.com/go-otp-auth/internal/pkg/validate"
)

const (
	codeMin = 100000
	codeMax = 999999
)

// IssueRequest is the body of POST /send_otp. The alias fields mirror the
// names older clients send.
type IssueRequest struct {
	Email        string  `json:"email"`
	EmailAddress string  `json:"email_address"`
	UserID       string  `json:"user_id"`
	UserIDAlt    string  `json:"userId"`
	FullName     *string `json:"full_name"`
	Name         *string `json:"name"`
}

// VerifyRequest is the body of POST /verify_otp.
type VerifyRequest struct {
	Email        string `json:"email"`
	EmailAddress string `json:"email_address"`
	UserID       string `json:"user_id"`
	UserIDAlt    string `json:"userId"`
	Code         string `json:"code"`
}

// AccountStore is the subset of the user store the OTP flow needs.
type AccountStore interface {
	GetByEmail(ctx context.Context, email string) (*domain.UserAccount, error)
	Get(ctx context.Context, userID string) (*domain.UserAccount, error)
	Update(ctx context.Context, userID string, updates map[string]interface{}) error
	// UpdateIfCode applies updates only while the stored code still equals expectedCode.
	UpdateIfCode(ctx context.Context, userID, expectedCode string, updates map[string]interface{}) error
}

// Mailer delivers a rendered message.
type Mailer interface {
	Send(ctx context.Context, msg domain.Message) error
}

type Service interface {
	Issue(ctx context.Context, req IssueRequest) error
	Verify(ctx context.Context, req VerifyRequest) error
}

// ServiceDeps wires a Service. Mailer may be nil when mail is not configured;
// Issue then fails with domain.ErrMisconfigured.
type ServiceDeps struct {
	Store     AccountStore
	Mailer    Mailer
	Templates *mailtmpl.Set
	From      domain.Address
	TTL       time.Duration
	Logger    *slog.Logger
	Now       func() time.Time
}

type service struct {
	store     AccountStore
	mailer    Mailer
	templates *mailtmpl.Set
	from      domain.Address
	ttl       time.Duration
	log       *slog.Logger
	now       func() time.Time
}

func NewService(deps ServiceDeps) Service {
	s := &service{
		store:     deps.Store,
		mailer:    deps.Mailer,
		templates: deps.Templates,
		from:      deps.From,
		ttl:       deps.TTL,
		log:       deps.Logger,
		now:       deps.Now,
	}
	if s.templates == nil {
		s.templates = mailtmpl.Default()
	}
	if s.ttl <= 0 {
		s.ttl = 10 * time.Minute
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// identifier is a resolved lookup key. Email takes precedence over user id.
type identifier struct {
	email  string
	userID string
}

func newIdentifier(email, emailAlt, userID, userIDAlt string) identifier {
	return identifier{
		email:  firstNonEmpty(email, emailAlt),
		userID: firstNonEmpty(userID, userIDAlt),
	}
}

func (id identifier) empty() bool { return id.email == "" && id.userID == "" }

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func (s *service) Issue(ctx context.Context, req IssueRequest) error {
	id := newIdentifier(req.Email, req.EmailAddress, req.UserID, req.UserIDAlt)
	if id.empty() {
		return domain.NewError(domain.ErrBadRequest, "Missing email or user_id")
	}
	if s.mailer == nil {
		return domain.NewError(domain.ErrMisconfigured, "Server misconfigured")
	}

	u, err := s.resolve(ctx, id, "Email not found")
	if err != nil {
		return err
	}

	code, err := generateCode()
	if err != nil {
		return fmt.Errorf("generate code: %w", err)
	}
	expiresAt := s.now().UTC().Add(s.ttl)

	if err := s.store.Update(ctx, u.ID, map[string]interface{}{
		domain.FieldVerificationCode:      code,
		domain.FieldVerificationExpiresAt: expiresAt,
		domain.FieldIsVerified:            false,
	}); err != nil {
		s.log.Error("store verification code", "user_id", u.ID, "err", err)
		return domain.WrapError(domain.ErrStorage, "Failed to store verification code", err)
	}

	name := u.DisplayName()
	if override := firstNonNil(req.FullName, req.Name); override != nil {
		name = *override
	}
	subject, body, err := s.templates.Render(mailtmpl.KindOTP, mailtmpl.OTPData{
		AppName:          s.from.Name,
		Name:             name,
		Code:             code,
		ExpiresInMinutes: int(s.ttl / time.Minute),
	})
	if err != nil {
		return fmt.Errorf("render otp email: %w", err)
	}

	// The code is already stored; a failed send leaves it pending for a resend.
	if err := s.mailer.Send(ctx, domain.Message{
		To:      domain.Address{Email: u.Email, Name: name},
		From:    s.from,
		Subject: subject,
		Text:    body,
	}); err != nil {
		s.log.Error("send verification email", "user_id", u.ID, "err", err)
		return domain.WrapError(domain.ErrDelivery, "Failed to send verification email", err)
	}

	s.log.Info("verification code issued", "user_id", u.ID, "expires_at", expiresAt)
	return nil
}

func (s *service) Verify(ctx context.Context, req VerifyRequest) error {
	id := newIdentifier(req.Email, req.EmailAddress, req.UserID, req.UserIDAlt)
	code := strings.TrimSpace(req.Code)
	if id.empty() || validate.Var(code, fmt.Sprintf("len=%d", domain.CodeLength)) != nil {
		return domain.NewError(domain.ErrBadRequest, "Missing email/user_id or invalid code")
	}

	u, err := s.resolve(ctx, id, "User not found")
	if err != nil {
		return err
	}

	if err := u.CheckCode(code, s.now()); err != nil {
		if errors.Is(err, domain.ErrCodeExpired) {
			return domain.NewError(domain.ErrCodeExpired, "Code expired")
		}
		return domain.NewError(domain.ErrInvalidCode, "Invalid code")
	}

	err = s.store.UpdateIfCode(ctx, u.ID, *u.VerificationCode, map[string]interface{}{
		domain.FieldIsVerified:            true,
		domain.FieldVerificationCode:      nil,
		domain.FieldVerificationExpiresAt: nil,
	})
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrConflict):
		// A newer code was issued after we read this one.
		return domain.WrapError(domain.ErrInvalidCode, "Invalid code", err)
	default:
		s.log.Error("mark account verified", "user_id", u.ID, "err", err)
		return domain.WrapError(domain.ErrStorage, "Failed to update account", err)
	}

	s.log.Info("account verified", "user_id", u.ID)
	return nil
}

// resolve looks the account up by email, or by user id when no email was given.
func (s *service) resolve(ctx context.Context, id identifier, emailNotFound string) (*domain.UserAccount, error) {
	var (
		u        *domain.UserAccount
		err      error
		notFound string
	)
	if id.email != "" {
		u, err = s.store.GetByEmail(ctx, id.email)
		notFound = emailNotFound
	} else {
		u, err = s.store.Get(ctx, id.userID)
		notFound = "User not found"
	}
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.NewError(domain.ErrNotFound, notFound)
		}
		s.log.Error("user lookup", "err", err)
		return nil, domain.WrapError(domain.ErrStorage, "User lookup failed", err)
	}
	return u, nil
}

// generateCode returns a uniformly random code in [100000, 999999].
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(codeMax-codeMin+1))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d", n.Int64()+codeMin), nil
}

func firstNonNil(vals ...*string) *string {
	for _, v := range vals {
		if v != nil {
			return v
		}
	}
	return nil
}
