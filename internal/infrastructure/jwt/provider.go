package jwtinfra

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/go-otp-auth/internal/pkg/id"
)

// PurposePasswordReset marks tokens that may only be used to set a new password.
const PurposePasswordReset = "password_reset"

// ErrNoSecret is returned by NewProvider when no signing secret is configured.
var ErrNoSecret = errors.New("token secret is empty")

// Claims holds the recovery token payload. Subject is the user id and ID a ULID.
type Claims struct {
	Purpose     string `json:"purpose"`
	Fingerprint string `json:"fp"`
	jwt.RegisteredClaims
}

// MatchesPassword reports whether the token was issued for passwordHash.
// Once the password changes the token no longer matches.
func (c *Claims) MatchesPassword(passwordHash string) bool {
	return subtle.ConstantTimeCompare([]byte(c.Fingerprint), []byte(fingerprint(passwordHash))) == 1
}

// Provider signs and verifies HS256 recovery tokens.
type Provider struct {
	secret []byte
	expiry time.Duration
	now    func() time.Time
}

func NewProvider(secret string, expiry time.Duration) (*Provider, error) {
	if secret == "" {
		return nil, ErrNoSecret
	}
	return &Provider{secret: []byte(secret), expiry: expiry, now: time.Now}, nil
}

// Sign issues a password reset token for userID bound to its current password hash.
func (p *Provider) Sign(userID, passwordHash string) (string, error) {
	now := p.now()
	claims := Claims{
		Purpose:     PurposePasswordReset,
		Fingerprint: fingerprint(passwordHash),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        id.New(),
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(p.expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(p.secret)
}

func (p *Provider) Verify(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return p.secret, nil
	}, jwt.WithTimeFunc(p.now), jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}
	if claims.Purpose != PurposePasswordReset {
		return nil, fmt.Errorf("unexpected token purpose %q", claims.Purpose)
	}
	if claims.Subject == "" {
		return nil, errors.New("token has no subject")
	}
	return claims, nil
}

func fingerprint(passwordHash string) string {
	sum := sha256.Sum256([]byte(passwordHash))
	return base64.RawURLEncoding.EncodeToString(sum[:12])
}
