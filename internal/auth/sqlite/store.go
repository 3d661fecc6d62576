// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package sqlite implements auth.Store on SQLite via mattn/go-sqlite3.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/holomush/auther/internal/auth"
)

const schema = `
CREATE TABLE IF NOT EXISTS auth_users (
	id                      TEXT PRIMARY KEY,
	email                   TEXT NOT NULL UNIQUE,
	password_hash           TEXT NOT NULL,
	salt                    TEXT NOT NULL,
	confirmation_token_hash TEXT,
	created_at              INTEGER NOT NULL,
	updated_at              INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS auth_tokens (
	token_hash TEXT PRIMARY KEY,
	email      TEXT,
	expires_at INTEGER NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_auth_tokens_expires_at ON auth_tokens (expires_at);
CREATE INDEX IF NOT EXISTS idx_auth_tokens_email ON auth_tokens (email);
`

// Store implements auth.Store using SQLite. Timestamps are stored as Unix
// nanoseconds.
type Store struct {
	db *sql.DB
}

// Open opens the database at dsn (a file path or ":memory:") and creates the
// schema if needed.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, oops.Code("STORE_OPEN_FAILED").With("driver", "sqlite3").Wrap(err)
	}
	// An in-memory database exists per connection.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close() //nolint:errcheck // schema error takes precedence
		return nil, oops.Code("STORE_SCHEMA_FAILED").With("operation", "create schema").Wrap(err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return oops.Code("STORE_CLOSE_FAILED").Wrap(err)
	}
	return nil
}

// GetUser retrieves a user by email.
func (s *Store) GetUser(ctx context.Context, email string) (*auth.User, error) {
	var (
		u                  auth.User
		idStr              string
		confirmation       sql.NullString
		createdAt, updated int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, email, password_hash, salt, confirmation_token_hash, created_at, updated_at
		FROM auth_users WHERE email = ?
	`, email).Scan(&idStr, &u.Email, &u.PasswordHash, &u.Salt, &confirmation, &createdAt, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, oops.Code("USER_NOT_FOUND").With("email", email).Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("USER_GET_FAILED").With("operation", "get user by email").Wrap(err)
	}

	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("USER_CORRUPT_ID").With("id", idStr).Wrap(err)
	}
	u.ID = id
	if confirmation.Valid {
		u.ConfirmationTokenHash = &confirmation.String
	}
	u.CreatedAt = time.Unix(0, createdAt)
	u.UpdatedAt = time.Unix(0, updated)
	return &u, nil
}

// CreateUser inserts a user; the UNIQUE constraint on email makes it atomic.
func (s *Store) CreateUser(ctx context.Context, user *auth.User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO auth_users (id, email, password_hash, salt, confirmation_token_hash, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		user.ID.String(),
		user.Email,
		user.PasswordHash,
		user.Salt,
		nullString(user.ConfirmationTokenHash),
		user.CreatedAt.UnixNano(),
		user.UpdatedAt.UnixNano(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return oops.Code("USER_EXISTS").Wrap(auth.ErrAlreadyExists)
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
	return s.updateUser(ctx, "set user password",
		`UPDATE auth_users SET password_hash = ?, updated_at = ? WHERE email = ?`,
		passwordHash, time.Now().UnixNano(), email)
}

// SetUserConfirmed clears a user's confirmation token hash.
func (s *Store) SetUserConfirmed(ctx context.Context, email string) error {
	return s.updateUser(ctx, "set user confirmed",
		`UPDATE auth_users SET confirmation_token_hash = NULL, updated_at = ? WHERE email = ?`,
		time.Now().UnixNano(), email)
}

func (s *Store) updateUser(ctx context.Context, operation, query string, args ...any) error {
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return oops.Code("USER_UPDATE_FAILED").With("operation", operation).Wrap(err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return oops.Code("USER_UPDATE_FAILED").With("operation", operation).Wrap(err)
	}
	if n == 0 {
		return oops.Code("USER_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	return nil
}

// DeleteUser removes a user.
func (s *Store) DeleteUser(ctx context.Context, email string) (bool, error) {
	n, err := s.deleteRows(ctx, "delete auth_user", `DELETE FROM auth_users WHERE email = ?`, email)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// GetToken retrieves a token by hash.
func (s *Store) GetToken(ctx context.Context, tokenHash string) (*auth.Token, error) {
	var (
		t                    auth.Token
		email                sql.NullString
		expiresAt, createdAt int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT token_hash, email, expires_at, created_at
		FROM auth_tokens WHERE token_hash = ?
	`, tokenHash).Scan(&t.Hash, &email, &expiresAt, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, oops.Code("TOKEN_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("TOKEN_GET_FAILED").With("operation", "get token by hash").Wrap(err)
	}
	if email.Valid {
		t.Email = &email.String
	}
	t.ExpiresAt = time.Unix(0, expiresAt)
	t.CreatedAt = time.Unix(0, createdAt)
	return &t, nil
}

// CreateToken upserts a token record.
func (s *Store) CreateToken(ctx context.Context, token *auth.Token) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO auth_tokens (token_hash, email, expires_at, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (token_hash) DO UPDATE
		SET email = excluded.email, expires_at = excluded.expires_at, created_at = excluded.created_at
	`, token.Hash, nullString(token.Email), token.ExpiresAt.UnixNano(), token.CreatedAt.UnixNano())
	if err != nil {
		return oops.Code("TOKEN_UPSERT_FAILED").With("operation", "upsert auth_token").Wrap(err)
	}
	return nil
}

// InsertToken inserts a token record unless its hash is taken.
func (s *Store) InsertToken(ctx context.Context, token *auth.Token) error {
	result, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO auth_tokens (token_hash, email, expires_at, created_at)
		VALUES (?, ?, ?, ?)
	`, token.Hash, nullString(token.Email), token.ExpiresAt.UnixNano(), token.CreatedAt.UnixNano())
	if err != nil {
		return oops.Code("TOKEN_INSERT_FAILED").With("operation", "insert auth_token").Wrap(err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return oops.Code("TOKEN_INSERT_FAILED").With("operation", "insert auth_token").Wrap(err)
	}
	if n == 0 {
		return oops.Code("TOKEN_EXISTS").Wrap(auth.ErrAlreadyExists)
	}
	return nil
}

// DeleteExpiredTokens removes tokens expiring at or before threshold.
func (s *Store) DeleteExpiredTokens(ctx context.Context, threshold time.Time) (int64, error) {
	return s.deleteRows(ctx, "delete expired tokens",
		`DELETE FROM auth_tokens WHERE expires_at <= ?`, threshold.UnixNano())
}

// DeleteUserTokens removes every token owned by email.
func (s *Store) DeleteUserTokens(ctx context.Context, email string) (int64, error) {
	return s.deleteRows(ctx, "delete user tokens", `DELETE FROM auth_tokens WHERE email = ?`, email)
}

func (s *Store) deleteRows(ctx context.Context, operation, query string, args ...any) (int64, error) {
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, oops.Code("STORE_DELETE_FAILED").With("operation", operation).Wrap(err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, oops.Code("STORE_DELETE_FAILED").With("operation", operation).Wrap(err)
	}
	return n, nil
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return oops.Code("STORE_UNAVAILABLE").With("operation", "ping").Wrap(err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
		sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

var _ auth.Store = (*Store)(nil)
