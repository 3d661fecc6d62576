// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"time"
)

// Store is the storage binding the Authenticator depends on.
//
// Implementations report missing records with ErrNotFound and key conflicts
// from insert-if-absent operations with ErrAlreadyExists (wrapping is fine,
// callers use errors.Is).
type Store interface {
	// GetUser retrieves a user by email.
	GetUser(ctx context.Context, email string) (*User, error)

	// CreateUser stores a new user. It must be atomic with respect to
	// concurrent calls for the same email: exactly one wins, the others
	// get ErrAlreadyExists.
	CreateUser(ctx context.Context, user *User) error

	// SetUserPassword replaces the password hash of an existing user.
	SetUserPassword(ctx context.Context, email, passwordHash string) error

	// SetUserConfirmed clears the confirmation token hash of a user.
	SetUserConfirmed(ctx context.Context, email string) error

	// DeleteUser removes a user and reports whether a record existed.
	DeleteUser(ctx context.Context, email string) (bool, error)

	// GetToken retrieves a token record by the digest of its secret.
	GetToken(ctx context.Context, tokenHash string) (*Token, error)

	// CreateToken stores a token record, replacing any record with the same hash.
	CreateToken(ctx context.Context, token *Token) error

	// InsertToken stores a token record only if no record with the same hash
	// exists; otherwise it returns ErrAlreadyExists.
	InsertToken(ctx context.Context, token *Token) error

	// DeleteExpiredTokens removes tokens expiring at or before threshold and
	// returns the count of deleted records.
	DeleteExpiredTokens(ctx context.Context, threshold time.Time) (int64, error)

	// DeleteUserTokens removes every token owned by email.
	DeleteUserTokens(ctx context.Context, email string) (int64, error)

	// Ping reports whether the store is reachable.
	Ping(ctx context.Context) error
}
