// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package postgres implements auth.Store on PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/holomush/auther/internal/auth"
)

// poolIface is the subset of *pgxpool.Pool the store uses, so pgxmock can
// stand in for it.
type poolIface interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}

var _ poolIface = (*pgxpool.Pool)(nil)

// Store implements auth.Store using PostgreSQL. The schema is managed by
// internal/store migrations.
type Store struct {
	pool poolIface
}

// New creates a Store on an open pool.
func New(pool poolIface) *Store {
	return &Store{pool: pool}
}

// GetUser retrieves a user by email.
func (s *Store) GetUser(ctx context.Context, email string) (*auth.User, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, email, password_hash, salt, confirmation_token_hash, created_at, updated_at
		FROM auth_users
		WHERE email = $1
	`, email)

	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("USER_NOT_FOUND").With("email", email).Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("USER_GET_FAILED").
			With("operation", "get user by email").
			Wrap(err)
	}
	return user, nil
}

// CreateUser inserts a user. The unique index on email makes this atomic.
func (s *Store) CreateUser(ctx context.Context, user *auth.User) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO auth_users (id, email, password_hash, salt, confirmation_token_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`,
		user.ID.String(),
		user.Email,
		user.PasswordHash,
		user.Salt,
		user.ConfirmationTokenHash,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return oops.Code("USER_EXISTS").
				With("constraint", pgErr.ConstraintName).
				Wrap(auth.ErrAlreadyExists)
		}
		return oops.Code("USER_CREATE_FAILED").
			With("operation", "insert auth_user").
			With("user_id", user.ID.String()).
			Wrap(err)
	}
	return nil
}

// SetUserPassword replaces a user's password hash.
func (s *Store) SetUserPassword(ctx context.Context, email, passwordHash string) error {
	result, err := s.pool.Exec(ctx, `
		UPDATE auth_users SET password_hash = $2, updated_at = $3
		WHERE email = $1
	`, email, passwordHash, time.Now())
	if err != nil {
		return oops.Code("USER_UPDATE_FAILED").
			With("operation", "set user password").
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("USER_NOT_FOUND").With("email", email).Wrap(auth.ErrNotFound)
	}
	return nil
}

// SetUserConfirmed clears a user's confirmation token hash.
func (s *Store) SetUserConfirmed(ctx context.Context, email string) error {
	result, err := s.pool.Exec(ctx, `
		UPDATE auth_users SET confirmation_token_hash = NULL, updated_at = $2
		WHERE email = $1
	`, email, time.Now())
	if err != nil {
		return oops.Code("USER_UPDATE_FAILED").
			With("operation", "set user confirmed").
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("USER_NOT_FOUND").With("email", email).Wrap(auth.ErrNotFound)
	}
	return nil
}

// DeleteUser removes a user.
func (s *Store) DeleteUser(ctx context.Context, email string) (bool, error) {
	result, err := s.pool.Exec(ctx, `DELETE FROM auth_users WHERE email = $1`, email)
	if err != nil {
		return false, oops.Code("USER_DELETE_FAILED").
			With("operation", "delete auth_user").
			Wrap(err)
	}
	return result.RowsAffected() > 0, nil
}

// GetToken retrieves a token by hash.
func (s *Store) GetToken(ctx context.Context, tokenHash string) (*auth.Token, error) {
	var t auth.Token
	err := s.pool.QueryRow(ctx, `
		SELECT token_hash, email, expires_at, created_at
		FROM auth_tokens
		WHERE token_hash = $1
	`, tokenHash).Scan(&t.Hash, &t.Email, &t.ExpiresAt, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("TOKEN_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("TOKEN_GET_FAILED").
			With("operation", "get token by hash").
			Wrap(err)
	}
	return &t, nil
}

// CreateToken upserts a token record.
func (s *Store) CreateToken(ctx context.Context, token *auth.Token) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO auth_tokens (token_hash, email, expires_at, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (token_hash) DO UPDATE
		SET email = EXCLUDED.email, expires_at = EXCLUDED.expires_at, created_at = EXCLUDED.created_at
	`, token.Hash, token.Email, token.ExpiresAt, token.CreatedAt)
	if err != nil {
		return oops.Code("TOKEN_UPSERT_FAILED").
			With("operation", "upsert auth_token").
			Wrap(err)
	}
	return nil
}

// InsertToken inserts a token record unless its hash is taken.
func (s *Store) InsertToken(ctx context.Context, token *auth.Token) error {
	result, err := s.pool.Exec(ctx, `
		INSERT INTO auth_tokens (token_hash, email, expires_at, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (token_hash) DO NOTHING
	`, token.Hash, token.Email, token.ExpiresAt, token.CreatedAt)
	if err != nil {
		return oops.Code("TOKEN_INSERT_FAILED").
			With("operation", "insert auth_token").
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("TOKEN_EXISTS").Wrap(auth.ErrAlreadyExists)
	}
	return nil
}

// DeleteExpiredTokens removes tokens expiring at or before threshold.
func (s *Store) DeleteExpiredTokens(ctx context.Context, threshold time.Time) (int64, error) {
	result, err := s.pool.Exec(ctx, `DELETE FROM auth_tokens WHERE expires_at <= $1`, threshold)
	if err != nil {
		return 0, oops.Code("TOKEN_SWEEP_FAILED").
			With("operation", "delete expired tokens").
			Wrap(err)
	}
	return result.RowsAffected(), nil
}

// DeleteUserTokens removes every token owned by email.
func (s *Store) DeleteUserTokens(ctx context.Context, email string) (int64, error) {
	result, err := s.pool.Exec(ctx, `DELETE FROM auth_tokens WHERE email = $1`, email)
	if err != nil {
		return 0, oops.Code("TOKEN_DELETE_FAILED").
			With("operation", "delete user tokens").
			Wrap(err)
	}
	return result.RowsAffected(), nil
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return oops.Code("STORE_UNAVAILABLE").With("operation", "ping").Wrap(err)
	}
	return nil
}

func scanUser(row pgx.Row) (*auth.User, error) {
	var (
		u     auth.User
		idStr string
	)
	if err := row.Scan(&idStr, &u.Email, &u.PasswordHash, &u.Salt, &u.ConfirmationTokenHash, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err //nolint:wrapcheck // callers wrap with operation context
	}
	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("USER_CORRUPT_ID").With("id", idStr).Wrap(err)
	}
	u.ID = id
	return &u, nil
}

var _ auth.Store = (*Store)(nil)
