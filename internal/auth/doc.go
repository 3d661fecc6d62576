// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package auth implements the credential and token lifecycle: account
// creation with email confirmation, password authentication, opaque token
// issue, validation and invalidation, and password updates.
//
// # Secrets
//
// Every secret handed to a caller (session tokens, reset tokens, confirmation
// secrets) is 32 random bytes, hex-encoded. Only its SHA-256 digest is
// persisted. Salts are stored as-is.
//
// # Storage
//
// The Authenticator talks to a Store. Implementations must make CreateUser
// and InsertToken atomic insert-if-absent operations; the Authenticator maps
// ErrAlreadyExists onto ErrEmailAlreadyTaken or a token retry and never
// re-implements mutual exclusion. Bindings live in the memory, postgres and
// sqlite subpackages.
//
// # Garbage collection
//
// Every public operation first passes through an interceptor that deletes
// expired tokens at most once per Config.GCInterval. Sweep failures are
// logged and never fail the operation.
//
// # Errors
//
// Operations return oops errors whose chain matches one of the package
// sentinels (ErrInvalidEmail, ErrInvalidToken, ...) and whose code is the
// matching Code* constant. Store failures surface as ErrInternal.
package auth
