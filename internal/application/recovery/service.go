package recovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/go-otp-auth/internal/domain"
	jwtinfra "github.com/go-otp-auth/internal/infrastructure/jwt"
	"github.com/go-otp-auth/internal/pkg/mailtmpl"
	"github.com/go-otp-auth/internal/pkg/validate"
)

// GenericMessage is returned for every accepted reset request, whether or not
// the email belongs to an account.
const GenericMessage = "If that email exists, a reset link was sent."

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

var errSignToken = errors.New("sign reset token")

// bcrypt ignores input past 72 bytes.
const maxPasswordBytes = 72

type ResetRequest struct {
	Email      string `json:"email"`
	RedirectTo string `json:"redirectTo"`
}

type ConfirmRequest struct {
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=8,max=72"`
}

// AccountStore is the subset of the user store password recovery needs.
type AccountStore interface {
	GetByEmail(ctx context.Context, email string) (*domain.UserAccount, error)
	Get(ctx context.Context, userID string) (*domain.UserAccount, error)
	Update(ctx context.Context, userID string, updates map[string]interface{}) error
}

type Mailer interface {
	Send(ctx context.Context, msg domain.Message) error
}

type Service interface {
	RequestReset(ctx context.Context, req ResetRequest) error
	CompleteReset(ctx context.Context, req ConfirmRequest) error
}

// ServiceDeps wires a Service. A nil Tokens or Mailer makes every request fail
// with domain.ErrMisconfigured.
type ServiceDeps struct {
	Store            AccountStore
	Mailer           Mailer
	Tokens           *jwtinfra.Provider
	Templates        *mailtmpl.Set
	From             domain.Address
	DefaultRedirect  string
	AllowedRedirects []string
	Logger           *slog.Logger
}

type service struct {
	store     AccountStore
	mailer    Mailer
	tokens    *jwtinfra.Provider
	templates *mailtmpl.Set
	from      domain.Address
	redirect  string
	allowed   []string
	log       *slog.Logger
}

func NewService(deps ServiceDeps) Service {
	s := &service{
		store:     deps.Store,
		mailer:    deps.Mailer,
		tokens:    deps.Tokens,
		templates: deps.Templates,
		from:      deps.From,
		redirect:  deps.DefaultRedirect,
		allowed:   deps.AllowedRedirects,
		log:       deps.Logger,
	}
	if s.templates == nil {
		s.templates = mailtmpl.Default()
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	return s
}

func (s *service) RequestReset(ctx context.Context, req ResetRequest) error {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if !emailPattern.MatchString(email) {
		return domain.NewError(domain.ErrBadRequest, "Valid email is required")
	}
	if s.tokens == nil || s.mailer == nil {
		return domain.NewError(domain.ErrMisconfigured, "Server misconfigured")
	}
	link, err := s.redirectURL(req.RedirectTo)
	if err != nil {
		return err
	}

	u, err := s.store.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.log.Info("password reset for unknown email")
			return nil
		}
		s.log.Error("user lookup", "err", err)
		return domain.WrapError(domain.ErrStorage, "User lookup failed", err)
	}

	token, err := s.tokens.Sign(u.ID, u.PasswordHash)
	if err != nil {
		s.log.Error("sign reset token", "user_id", u.ID, "err", err)
		return domain.WrapError(errSignToken, "Failed to generate reset link", err)
	}
	q := link.Query()
	q.Set("token", token)
	link.RawQuery = q.Encode()

	subject, body, err := s.templates.Render(mailtmpl.KindReset, mailtmpl.ResetData{
		AppName: s.from.Name,
		Name:    u.DisplayName(),
		Link:    link.String(),
	})
	if err != nil {
		return fmt.Errorf("render reset email: %w", err)
	}

	if err := s.mailer.Send(ctx, domain.Message{
		To:      domain.Address{Email: email, Name: u.DisplayName()},
		From:    s.from,
		Subject: subject,
		Text:    body,
	}); err != nil {
		s.log.Error("send reset email", "user_id", u.ID, "err", err)
		return domain.WrapError(domain.ErrDelivery, "Failed to send reset email", err)
	}

	s.log.Info("password reset link sent", "user_id", u.ID)
	return nil
}

func (s *service) CompleteReset(ctx context.Context, req ConfirmRequest) error {
	req.Token = strings.TrimSpace(req.Token)
	if req.Token == "" {
		return domain.NewError(domain.ErrBadRequest, "Invalid or expired reset token")
	}
	if err := validate.Struct(req); err != nil || len(req.NewPassword) > maxPasswordBytes {
		return domain.WrapError(domain.ErrBadRequest, "Password must be 8 to 72 characters", err)
	}
	if s.tokens == nil {
		return domain.NewError(domain.ErrMisconfigured, "Server misconfigured")
	}

	claims, err := s.tokens.Verify(req.Token)
	if err != nil {
		return domain.WrapError(domain.ErrBadRequest, "Invalid or expired reset token", err)
	}

	u, err := s.store.Get(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.NewError(domain.ErrNotFound, "User not found")
		}
		s.log.Error("user lookup", "user_id", claims.Subject, "err", err)
		return domain.WrapError(domain.ErrStorage, "User lookup failed", err)
	}
	// The token is bound to the password it was issued for, so it works once.
	if !claims.MatchesPassword(u.PasswordHash) {
		return domain.NewError(domain.ErrBadRequest, "Invalid or expired reset token")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.store.Update(ctx, u.ID, map[string]interface{}{
		domain.FieldPasswordHash: string(hash),
	}); err != nil {
		s.log.Error("store password", "user_id", u.ID, "err", err)
		return domain.WrapError(domain.ErrStorage, "Failed to update account", err)
	}

	s.log.Info("password reset completed", "user_id", u.ID, "token_id", claims.ID)
	return nil
}

// redirectURL resolves the link target. An empty value selects the default;
// anything else must equal the default or fall under an allowed entry.
func (s *service) redirectURL(raw string) (*url.URL, error) {
	target := strings.TrimSpace(raw)
	if target == "" {
		target = s.redirect
	}
	u, err := url.Parse(target)
	if err != nil {
		return nil, domain.WrapError(domain.ErrBadRequest, "Invalid redirectTo", err)
	}
	if target != s.redirect && !s.redirectAllowed(u) {
		return nil, domain.NewError(domain.ErrBadRequest, "Invalid redirectTo")
	}
	return u, nil
}

// redirectAllowed reports whether target shares scheme and host with an
// allowed entry and its path sits at or below the entry's path. An entry
// without a host, such as "smartfinder://", admits any target of its scheme.
func (s *service) redirectAllowed(target *url.URL) bool {
	if target.Opaque != "" || target.User != nil || target.Scheme == "" {
		return false
	}
	for _, entry := range s.allowed {
		base, err := url.Parse(strings.TrimSpace(entry))
		if err != nil || base.Scheme == "" || base.Opaque != "" {
			continue
		}
		if !strings.EqualFold(base.Scheme, target.Scheme) {
			continue
		}
		if base.Host == "" && base.Path == "" {
			return true
		}
		if !strings.EqualFold(base.Host, target.Host) {
			continue
		}
		if pathUnder(target.Path, base.Path) {
			return true
		}
	}
	return false
}

// pathUnder matches whole segments, so "/reset" admits "/reset/x" but not "/resetx".
func pathUnder(path, prefix string) bool {
	prefix = strings.TrimSuffix(prefix, "/")
	if prefix == "" {
		return true
	}
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}
