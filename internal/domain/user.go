package domain

import (
	"crypto/subtle"
	"time"
)

// Attribute names shared by every account store. They double as DynamoDB
// attribute names and Postgres column names.
const (
	FieldEmail                 = "email"
	FieldFullName              = "full_name"
	FieldVerificationCode      = "verification_code"
	FieldVerificationExpiresAt = "verification_expires_at"
	FieldIsVerified            = "is_verified"
	FieldPasswordHash          = "password_hash"
	FieldUpdatedAt             = "updated_at"
)

// CodeLength is the number of characters in a verification code.
const CodeLength = 6

// UserAccount is a row of the users table.
// VerificationCode and VerificationExpiresAt are always set and cleared together.
type UserAccount struct {
	ID                    string     `json:"id" dynamodbav:"user_id"`
	Email                 string     `json:"email" dynamodbav:"email"`
	FullName              *string    `json:"full_name,omitempty" dynamodbav:"full_name,omitempty"`
	VerificationCode      *string    `json:"-" dynamodbav:"verification_code,omitempty"`
	VerificationExpiresAt *time.Time `json:"-" dynamodbav:"verification_expires_at,omitempty"`
	IsVerified            bool       `json:"is_verified" dynamodbav:"is_verified"`
	PasswordHash          string     `json:"-" dynamodbav:"password_hash,omitempty"`
	UpdatedAt             time.Time  `json:"updated_at" dynamodbav:"updated_at"`
}

// VerificationState is the position of an account in the OTP lifecycle.
type VerificationState string

const (
	StateUnverified  VerificationState = "unverified"
	StateCodePending VerificationState = "code_pending"
	StateVerified    VerificationState = "verified"
)

// State reports the lifecycle state. An outstanding code wins over the
// verified flag, since issuing always resets it.
func (u *UserAccount) State() VerificationState {
	switch {
	case u.VerificationCode != nil:
		return StateCodePending
	case u.IsVerified:
		return StateVerified
	default:
		return StateUnverified
	}
}

// DisplayName returns the stored full name or "".
func (u *UserAccount) DisplayName() string {
	if u.FullName == nil {
		return ""
	}
	return *u.FullName
}

// CheckCode validates a submitted code against the stored one.
// Mismatch is checked before expiry, so a wrong code never reports ErrCodeExpired.
func (u *UserAccount) CheckCode(code string, now time.Time) error {
	if u.VerificationCode == nil || subtle.ConstantTimeCompare([]byte(*u.VerificationCode), []byte(code)) != 1 {
		return ErrInvalidCode
	}
	if u.VerificationExpiresAt != nil && !now.Before(*u.VerificationExpiresAt) {
		return ErrCodeExpired
	}
	return nil
}
