// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package memory provides an in-process auth.Store.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/samber/oops"

	"github.com/holomush/auther/internal/auth"
)

// Store keeps users and tokens in maps guarded by a single mutex.
// Records are copied on the way in and out, so callers never share state
// with the store.
type Store struct {
	mu     sync.RWMutex
	users  map[string]auth.User
	tokens map[string]auth.Token
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		users:  make(map[string]auth.User),
		tokens: make(map[string]auth.Token),
	}
}

// GetUser retrieves a user by email.
func (s *Store) GetUser(_ context.Context, email string) (*auth.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[email]
	if !ok {
		return nil, oops.Code("USER_NOT_FOUND").With("email", email).Wrap(auth.ErrNotFound)
	}
	return copyUser(u), nil
}

// CreateUser stores user unless the email is taken.
func (s *Store) CreateUser(_ context.Context, user *auth.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[user.Email]; ok {
		return oops.Code("USER_EXISTS").With("email", user.Email).Wrap(auth.ErrAlreadyExists)
	}
	s.users[user.Email] = *copyUser(*user)
	return nil
}

// SetUserPassword replaces the password hash of a user.
func (s *Store) SetUserPassword(_ context.Context, email, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[email]
	if !ok {
		return oops.Code("USER_NOT_FOUND").With("email", email).Wrap(auth.ErrNotFound)
	}
	u.PasswordHash = passwordHash
	u.UpdatedAt = time.Now()
	s.users[email] = u
	return nil
}

// SetUserConfirmed clears the confirmation token hash of a user.
func (s *Store) SetUserConfirmed(_ context.Context, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[email]
	if !ok {
		return oops.Code("USER_NOT_FOUND").With("email", email).Wrap(auth.ErrNotFound)
	}
	u.ConfirmationTokenHash = nil
	u.UpdatedAt = time.Now()
	s.users[email] = u
	return nil
}

// DeleteUser removes a user.
func (s *Store) DeleteUser(_ context.Context, email string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.users[email]
	delete(s.users, email)
	return ok, nil
}

// GetToken retrieves a token by hash.
func (s *Store) GetToken(_ context.Context, tokenHash string) (*auth.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tokens[tokenHash]
	if !ok {
		return nil, oops.Code("TOKEN_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	return copyToken(t), nil
}

// CreateToken stores token, replacing any record with the same hash.
func (s *Store) CreateToken(_ context.Context, token *auth.Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tokens[token.Hash] = *copyToken(*token)
	return nil
}

// InsertToken stores token unless its hash is taken.
func (s *Store) InsertToken(_ context.Context, token *auth.Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tokens[token.Hash]; ok {
		return oops.Code("TOKEN_EXISTS").Wrap(auth.ErrAlreadyExists)
	}
	s.tokens[token.Hash] = *copyToken(*token)
	return nil
}

// DeleteExpiredTokens removes tokens expiring at or before threshold.
func (s *Store) DeleteExpiredTokens(_ context.Context, threshold time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for hash, t := range s.tokens {
		if !t.ExpiresAt.After(threshold) {
			delete(s.tokens, hash)
			n++
		}
	}
	return n, nil
}

// DeleteUserTokens removes every token owned by email.
func (s *Store) DeleteUserTokens(_ context.Context, email string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for hash, t := range s.tokens {
		if t.Email != nil && *t.Email == email {
			delete(s.tokens, hash)
			n++
		}
	}
	return n, nil
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error {
	return nil
}

// Len returns the number of users and token records held.
func (s *Store) Len() (users, tokens int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users), len(s.tokens)
}

func copyUser(u auth.User) *auth.User {
	if u.ConfirmationTokenHash != nil {
		h := *u.ConfirmationTokenHash
		u.ConfirmationTokenHash = &h
	}
	return &u
}

func copyToken(t auth.Token) *auth.Token {
	if t.Email != nil {
		e := *t.Email
		t.Email = &e
	}
	return &t
}

var _ auth.Store = (*Store)(nil)
