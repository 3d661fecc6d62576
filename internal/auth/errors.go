// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"errors"

	"github.com/samber/oops"
)

// Storage binding outcomes. Store implementations wrap these so the
// Authenticator can map them onto domain errors with errors.Is.
var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists is returned by insert-if-absent operations when the key is taken.
	ErrAlreadyExists = errors.New("already exists")
)

// Domain error kinds. Every error returned by the Authenticator matches exactly
// one of these with errors.Is and carries the matching oops code.
var (
	ErrInvalidEmail          = errors.New("invalid email")
	ErrEmailAlreadyTaken     = errors.New("email already taken")
	ErrPasswordTooShort      = errors.New("password too short")
	ErrPasswordTooCommon     = errors.New("password too common")
	ErrInvalidCredentials    = errors.New("invalid username or password")
	ErrInvalidToken          = errors.New("invalid token")
	ErrInvalidUser           = errors.New("invalid user")
	ErrTokenGenerationFailed = errors.New("failed to generate unique token")
	ErrInternal              = errors.New("internal error")
)

// Error codes attached to domain errors.
const (
	CodeInvalidEmail          = "AUTH_INVALID_EMAIL"
	CodeEmailAlreadyTaken     = "AUTH_EMAIL_TAKEN"
	CodePasswordTooShort      = "AUTH_PASSWORD_TOO_SHORT"
	CodePasswordTooCommon     = "AUTH_PASSWORD_TOO_COMMON"
	CodeInvalidCredentials    = "AUTH_INVALID_CREDENTIALS"
	CodeInvalidToken          = "AUTH_INVALID_TOKEN"
	CodeInvalidUser           = "AUTH_INVALID_USER"
	CodeTokenGenerationFailed = "AUTH_TOKEN_GENERATION_FAILED"
	CodeInternal              = "AUTH_INTERNAL"
)

// internalError hides a storage or runtime failure behind ErrInternal so
// callers only ever see the closed set of domain errors. The cause is kept as
// error context for logging.
func internalError(operation string, err error) error {
	return oops.Code(CodeInternal).
		With("operation", operation).
		With("cause", err.Error()).
		Wrap(ErrInternal)
}

func domainError(code string, kind error) error {
	return oops.Code(code).Wrap(kind)
}
