package jwtinfra

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestProvider(t *testing.T, now time.Time) *Provider {
	t.Helper()
	p, err := NewProvider("test-secret", time.Hour)
	require.NoError(t, err)
	p.now = func() time.Time { return now }
	return p
}

func TestNewProvider_RequiresSecret(t *testing.T) {
	_, err := NewProvider("", time.Hour)
	assert.ErrorIs(t, err, ErrNoSecret)
}

func TestSignVerify_RoundTrip(t *testing.T) {
	now := time.Now()
	p := newTestProvider(t, now)

	tok, err := p.Sign("u1", "$2a$10$hash")
	require.NoError(t, err)

	claims, err := p.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.Subject)
	assert.Equal(t, PurposePasswordReset, claims.Purpose)
	assert.Len(t, claims.ID, 26, "jti is a ULID")
	assert.WithinDuration(t, now.Add(time.Hour), claims.ExpiresAt.Time, time.Second)
	assert.True(t, claims.MatchesPassword("$2a$10$hash"))
	assert.False(t, claims.MatchesPassword("$2a$10$other"))
}

func TestSign_UniqueIDs(t *testing.T) {
	p := newTestProvider(t, time.Now())
	a, err := p.Sign("u1", "")
	require.NoError(t, err)
	b, err := p.Sign("u1", "")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestVerify_Expired(t *testing.T) {
	issued := time.Now().Add(-2 * time.Hour)
	tok, err := newTestProvider(t, issued).Sign("u1", "")
	require.NoError(t, err)

	_, err = newTestProvider(t, time.Now()).Verify(tok)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestVerify_WrongSecret(t *testing.T) {
	tok, err := newTestProvider(t, time.Now()).Sign("u1", "")
	require.NoError(t, err)

	other, err := NewProvider("another-secret", time.Hour)
	require.NoError(t, err)
	_, err = other.Verify(tok)
	assert.ErrorIs(t, err, jwt.ErrTokenSignatureInvalid)
}

func TestVerify_WrongPurpose(t *testing.T) {
	claims := Claims{
		Purpose: "session",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "u1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	_, err = newTestProvider(t, time.Now()).Verify(tok)
	assert.ErrorContains(t, err, "purpose")
}

func TestVerify_RejectsNoneAlgorithm(t *testing.T) {
	claims := Claims{
		Purpose: PurposePasswordReset,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "u1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = newTestProvider(t, time.Now()).Verify(tok)
	assert.Error(t, err)
}

func TestVerify_Garbage(t *testing.T) {
	_, err := newTestProvider(t, time.Now()).Verify("not.a.token")
	assert.Error(t, err)
}
