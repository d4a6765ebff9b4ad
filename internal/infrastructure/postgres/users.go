package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/go-otp-auth/internal/domain"
)

// UserRepository stores accounts in the users table.
type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

const selectUser = `SELECT id, email, full_name, verification_code, verification_expires_at, is_verified, password_hash, updated_at
FROM users`

// writable lists the columns Update may set.
var writable = map[string]bool{
	domain.FieldEmail:                 true,
	domain.FieldFullName:              true,
	domain.FieldVerificationCode:      true,
	domain.FieldVerificationExpiresAt: true,
	domain.FieldIsVerified:            true,
	domain.FieldPasswordHash:          true,
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.UserAccount, error) {
	u, err := r.scanOne(r.db.QueryRowContext(ctx, selectUser+` WHERE email = $1`, email))
	if err != nil {
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	return u, nil
}

func (r *UserRepository) Get(ctx context.Context, userID string) (*domain.UserAccount, error) {
	id, err := uuid.Parse(userID)
	if err != nil {
		// No row can have a malformed id.
		return nil, fmt.Errorf("user id %q: %w", userID, domain.ErrNotFound)
	}
	u, err := r.scanOne(r.db.QueryRowContext(ctx, selectUser+` WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("failed to get user by id: %w", err)
	}
	return u, nil
}

// Update writes updates to the user row. A nil value stores NULL.
func (r *UserRepository) Update(ctx context.Context, userID string, updates map[string]interface{}) error {
	n, err := r.exec(ctx, userID, updates, "")
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("user %s: %w", userID, domain.ErrNotFound)
	}
	return nil
}

// UpdateIfCode writes updates only while verification_code still equals expectedCode.
func (r *UserRepository) UpdateIfCode(ctx context.Context, userID, expectedCode string, updates map[string]interface{}) error {
	n, err := r.exec(ctx, userID, updates, expectedCode)
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("verification code changed: %w", domain.ErrConflict)
	}
	return nil
}

func (r *UserRepository) exec(ctx context.Context, userID string, updates map[string]interface{}, expectedCode string) (int64, error) {
	id, err := uuid.Parse(userID)
	if err != nil {
		return 0, fmt.Errorf("user id %q: %w", userID, domain.ErrNotFound)
	}
	query, args, err := buildUpdate(id, updates, expectedCode)
	if err != nil {
		return 0, err
	}
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to update user: %w", err)
	}
	return res.RowsAffected()
}

// buildUpdate renders an UPDATE with columns in sorted order. A non-empty
// expectedCode adds a guard on the stored verification code.
func buildUpdate(id uuid.UUID, updates map[string]interface{}, expectedCode string) (string, []interface{}, error) {
	if len(updates) == 0 {
		return "", nil, fmt.Errorf("no fields to update")
	}
	cols := make([]string, 0, len(updates))
	for k := range updates {
		if !writable[k] {
			return "", nil, fmt.Errorf("unknown column %q", k)
		}
		cols = append(cols, k)
	}
	sort.Strings(cols)

	sets := make([]string, 0, len(cols)+1)
	args := make([]interface{}, 0, len(cols)+2)
	for i, c := range cols {
		sets = append(sets, fmt.Sprintf("%s = $%d", c, i+1))
		args = append(args, updates[c])
	}
	sets = append(sets, domain.FieldUpdatedAt+" = now()")

	args = append(args, id)
	query := fmt.Sprintf("UPDATE users SET %s WHERE id = $%d", strings.Join(sets, ", "), len(args))
	if expectedCode != "" {
		args = append(args, expectedCode)
		query += fmt.Sprintf(" AND verification_code = $%d", len(args))
	}
	return query, args, nil
}

func (r *UserRepository) scanOne(row *sql.Row) (*domain.UserAccount, error) {
	var (
		u        domain.UserAccount
		id       uuid.UUID
		fullName sql.NullString
		code     sql.NullString
		expires  sql.NullTime
	)
	err := row.Scan(&id, &u.Email, &fullName, &code, &expires, &u.IsVerified, &u.PasswordHash, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	u.ID = id.String()
	if fullName.Valid {
		u.FullName = &fullName.String
	}
	if code.Valid {
		u.VerificationCode = &code.String
	}
	if expires.Valid {
		t := expires.Time
		u.VerificationExpiresAt = &t
	}
	return &u, nil
}
