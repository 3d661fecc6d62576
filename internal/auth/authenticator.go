// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/holomush/auther/pkg/errutil"
)

const tracerName = "auther/auth"

// dummySalt is hashed against when the user doesn't exist so that unknown
// emails cost the same as wrong passwords.
//
//nolint:gosec // G101: not a credential, never matches a stored hash.
const dummySalt = "0000000000000000000000000000000000000000000000000000000000000000"

// Authenticator manages users and tokens on top of a Store.
// It holds no locks; concurrency safety comes from the Store's atomic
// insert-if-absent primitives and the GC throttle's atomic cell.
type Authenticator struct {
	store    Store
	cfg      Config
	policy   PasswordPolicy
	hasher   CredentialHasher
	clock    Clock
	logger   *slog.Logger
	recorder Recorder
	tracer   trace.Tracer
	gc       *gcThrottle
}

// Option configures an Authenticator.
type Option func(*Authenticator)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(a *Authenticator) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithClock sets the time source. Defaults to SystemClock.
func WithClock(clock Clock) Option {
	return func(a *Authenticator) {
		if clock != nil {
			a.clock = clock
		}
	}
}

// WithMetrics sets the operation and sweep recorder.
func WithMetrics(recorder Recorder) Option {
	return func(a *Authenticator) {
		if recorder != nil {
			a.recorder = recorder
		}
	}
}

// WithTracerProvider sets where operation spans go. Defaults to the global
// provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(a *Authenticator) {
		if tp != nil {
			a.tracer = tp.Tracer(tracerName)
		}
	}
}

// WithHasher overrides the hasher named by Config.Hasher.
func WithHasher(hasher CredentialHasher) Option {
	return func(a *Authenticator) {
		if hasher != nil {
			a.hasher = hasher
		}
	}
}

// NewAuthenticator creates an Authenticator. cfg must pass Validate; start
// from DefaultConfig() and override fields as needed.
func NewAuthenticator(store Store, cfg Config, opts ...Option) (*Authenticator, error) {
	if store == nil {
		return nil, oops.Code("CONFIG_INVALID").Errorf("store is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	hasher, err := HasherByName(cfg.Hasher)
	if err != nil {
		return nil, err
	}

	cfg = cfg.clone()
	a := &Authenticator{
		store:    store,
		cfg:      cfg,
		policy:   cfg.policy(),
		hasher:   hasher,
		clock:    SystemClock{},
		logger:   slog.Default(),
		recorder: nopRecorder{},
		tracer:   otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.gc = newGCThrottle(store, a.clock, cfg.GCInterval, a.logger, a.recorder)
	return a, nil
}

// Config returns a copy of the active policy.
func (a *Authenticator) Config() Config {
	return a.cfg.clone()
}

// begin is the interceptor stage run before every public operation: it opens
// a span, gives the GC throttle a chance to sweep, and the returned func
// records the outcome and ends the span. Use as:
//
//	ctx, done := a.begin(ctx, op)
//	defer done(&err)
func (a *Authenticator) begin(ctx context.Context, operation string) (context.Context, func(*error)) {
	start := time.Now()
	ctx, span := a.tracer.Start(ctx, "auth."+operation,
		trace.WithAttributes(attribute.String("auth.operation", operation)),
	)
	a.gc.maybeSweep(ctx)
	return ctx, func(errp *error) {
		result := resultOf(*errp)
		span.SetAttributes(attribute.String("auth.result", result))
		if *errp != nil {
			span.RecordError(*errp)
			span.SetStatus(codes.Error, result)
		}
		span.End()
		a.recorder.ObserveOperation(operation, result, time.Since(start))
	}
}

// CollectGarbage gives the GC throttle a chance to sweep without running an
// operation, for processes that must reclaim expired tokens while idle. It
// reports whether a sweep ran.
func (a *Authenticator) CollectGarbage(ctx context.Context) bool {
	return a.gc.maybeSweep(ctx)
}

func resultOf(err error) string {
	if err == nil {
		return ResultOK
	}
	if code := errutil.Code(err); code != "" {
		return code
	}
	return "error"
}

// TokenOption adjusts a single token issue.
type TokenOption func(*tokenOptions)

type tokenOptions struct {
	lifetime time.Duration
}

// WithLifetime sets the token lifetime. Non-positive values are ignored and
// the operation's default applies.
func WithLifetime(d time.Duration) TokenOption {
	return func(o *tokenOptions) {
		if d > 0 {
			o.lifetime = d
		}
	}
}

func resolveLifetime(def time.Duration, opts []TokenOption) time.Duration {
	o := tokenOptions{lifetime: def}
	for _, opt := range opts {
		opt(&o)
	}
	return o.lifetime
}

// CreateUser registers email with password and returns the confirmation
// secret to hand to the user. Checks run in order: email syntax, existing
// account, password policy.
func (a *Authenticator) CreateUser(ctx context.Context, email, password string) (confirmation string, err error) {
	ctx, done := a.begin(ctx, OpCreateUser)
	defer done(&err)

	if err = ValidateEmail(email); err != nil {
		return "", err
	}

	_, lookupErr := a.store.GetUser(ctx, email)
	switch {
	case lookupErr == nil:
		return "", domainError(CodeEmailAlreadyTaken, ErrEmailAlreadyTaken)
	case !errors.Is(lookupErr, ErrNotFound):
		return "", internalError("get user", lookupErr)
	}

	if err = a.policy.Validate(password); err != nil {
		return "", err
	}

	salt, randErr := RandomSecret()
	if randErr != nil {
		return "", internalError("generate salt", randErr)
	}
	confirmation, randErr = RandomSecret()
	if randErr != nil {
		return "", internalError("generate confirmation secret", randErr)
	}
	passwordHash, hashErr := a.hasher.Hash(password, salt)
	if hashErr != nil {
		return "", internalError("hash password", hashErr)
	}

	user, userErr := NewUser(email, passwordHash, salt, Digest(confirmation), a.clock.Now())
	if userErr != nil {
		return "", internalError("build user", userErr)
	}

	// Two callers can both pass the lookup above; the store decides.
	if createErr := a.store.CreateUser(ctx, user); createErr != nil {
		if errors.Is(createErr, ErrAlreadyExists) {
			return "", domainError(CodeEmailAlreadyTaken, ErrEmailAlreadyTaken)
		}
		return "", internalError("create user", createErr)
	}

	a.logger.DebugContext(ctx, "user created", "email", email, "user_id", user.ID.String())
	return confirmation, nil
}

// GenerateToken issues a token owned by email. The default lifetime is
// Config.TokenLifetime. The email is not checked against the user table.
func (a *Authenticator) GenerateToken(ctx context.Context, email string, opts ...TokenOption) (secret string, err error) {
	ctx, done := a.begin(ctx, OpGenerateToken)
	defer done(&err)
	return a.issueToken(ctx, email, resolveLifetime(a.cfg.TokenLifetime, opts))
}

// AuthenticatePassword checks email and password and on success issues a
// session token. The default lifetime is Config.SessionLifetime. Unknown
// users and wrong passwords fail identically with ErrInvalidCredentials.
func (a *Authenticator) AuthenticatePassword(ctx context.Context, email, password string, opts ...TokenOption) (secret string, err error) {
	ctx, done := a.begin(ctx, OpAuthenticatePassword)
	defer done(&err)

	user, lookupErr := a.store.GetUser(ctx, email)
	if lookupErr != nil && !errors.Is(lookupErr, ErrNotFound) {
		return "", internalError("get user", lookupErr)
	}

	salt, storedHash := dummySalt, ""
	if user != nil {
		salt, storedHash = user.Salt, user.PasswordHash
	}
	computed, hashErr := a.hasher.Hash(password, salt)
	if hashErr != nil {
		return "", internalError("hash password", hashErr)
	}

	if user == nil || !secretsEqual(computed, storedHash) {
		return "", domainError(CodeInvalidCredentials, ErrInvalidCredentials)
	}

	return a.issueToken(ctx, email, resolveLifetime(a.cfg.SessionLifetime, opts))
}

// AuthenticateToken succeeds iff a record exists for the secret and has not
// expired.
func (a *Authenticator) AuthenticateToken(ctx context.Context, secret string) (err error) {
	ctx, done := a.begin(ctx, OpAuthenticateToken)
	defer done(&err)
	_, err = a.validToken(ctx, secret)
	return err
}

// TokenOwner returns the email owning a valid token.
func (a *Authenticator) TokenOwner(ctx context.Context, secret string) (email string, err error) {
	ctx, done := a.begin(ctx, OpTokenOwner)
	defer done(&err)

	token, err := a.validToken(ctx, secret)
	if err != nil {
		return "", err
	}
	if token.Email == nil {
		return "", domainError(CodeInvalidToken, ErrInvalidToken)
	}
	return *token.Email, nil
}

// InvalidateToken overwrites the token with an ownerless, already-expired
// record. Invalidating an unknown token succeeds.
func (a *Authenticator) InvalidateToken(ctx context.Context, secret string) (err error) {
	ctx, done := a.begin(ctx, OpInvalidateToken)
	defer done(&err)

	token := &Token{
		Hash:      Digest(secret),
		ExpiresAt: expiredAt,
		CreatedAt: a.clock.Now(),
	}
	if createErr := a.store.CreateToken(ctx, token); createErr != nil {
		return internalError("invalidate token", createErr)
	}
	return nil
}

// UpdatePassword sets a new password for the owner of a valid token. The
// password policy is checked before the token.
func (a *Authenticator) UpdatePassword(ctx context.Context, secret, newPassword string) (err error) {
	ctx, done := a.begin(ctx, OpUpdatePassword)
	defer done(&err)

	if err = a.policy.Validate(newPassword); err != nil {
		return err
	}

	token, err := a.validToken(ctx, secret)
	if err != nil {
		return err
	}
	if token.Email == nil {
		return domainError(CodeInvalidToken, ErrInvalidToken)
	}
	email := *token.Email

	user, lookupErr := a.store.GetUser(ctx, email)
	if lookupErr != nil {
		return internalError("get token owner", lookupErr)
	}

	passwordHash, hashErr := a.hasher.Hash(newPassword, user.Salt)
	if hashErr != nil {
		return internalError("hash password", hashErr)
	}
	if setErr := a.store.SetUserPassword(ctx, email, passwordHash); setErr != nil {
		return internalError("set user password", setErr)
	}

	a.logger.DebugContext(ctx, "password updated", "email", email)
	return nil
}

// ConfirmEmail confirms email using the secret returned by CreateUser.
// It is idempotent: once confirmed, it returns alreadyConfirmed=true without
// looking at the secret.
func (a *Authenticator) ConfirmEmail(ctx context.Context, secret, email string) (alreadyConfirmed bool, err error) {
	ctx, done := a.begin(ctx, OpConfirmEmail)
	defer done(&err)

	user, lookupErr := a.store.GetUser(ctx, email)
	if lookupErr != nil {
		if errors.Is(lookupErr, ErrNotFound) {
			return false, domainError(CodeInvalidUser, ErrInvalidUser)
		}
		return false, internalError("get user", lookupErr)
	}

	if user.Confirmed() {
		return true, nil
	}

	deadline := user.CreatedAt.Add(a.cfg.ConfirmationLifetime)
	if !a.clock.Now().Before(deadline) {
		return false, oops.Code(CodeInvalidToken).
			With("reason", "confirmation window elapsed").
			Wrap(ErrInvalidToken)
	}

	if !secretsEqual(Digest(secret), *user.ConfirmationTokenHash) {
		return false, domainError(CodeInvalidToken, ErrInvalidToken)
	}

	if setErr := a.store.SetUserConfirmed(ctx, email); setErr != nil {
		if errors.Is(setErr, ErrNotFound) {
			return false, domainError(CodeInvalidUser, ErrInvalidUser)
		}
		return false, internalError("set user confirmed", setErr)
	}

	a.logger.DebugContext(ctx, "email confirmed", "email", email)
	return false, nil
}

// IsUser reports whether an account exists for email and whether it is confirmed.
func (a *Authenticator) IsUser(ctx context.Context, email string) (exists, confirmed bool, err error) {
	ctx, done := a.begin(ctx, OpIsUser)
	defer done(&err)

	user, lookupErr := a.store.GetUser(ctx, email)
	if lookupErr != nil {
		if errors.Is(lookupErr, ErrNotFound) {
			return false, false, nil
		}
		return false, false, internalError("get user", lookupErr)
	}
	return true, user.Confirmed(), nil
}

// DeleteUser removes the account for email and reports whether one existed.
// The user's outstanding tokens are removed as well; failure to do so is
// logged, not returned.
func (a *Authenticator) DeleteUser(ctx context.Context, email string) (existed bool, err error) {
	ctx, done := a.begin(ctx, OpDeleteUser)
	defer done(&err)

	existed, deleteErr := a.store.DeleteUser(ctx, email)
	if deleteErr != nil {
		return false, internalError("delete user", deleteErr)
	}

	removed, tokensErr := a.store.DeleteUserTokens(ctx, email)
	if tokensErr != nil {
		errutil.LogErrorContext(ctx, a.logger, "delete user tokens failed", tokensErr)
	} else if removed > 0 {
		a.logger.DebugContext(ctx, "user tokens removed", "email", email, "count", removed)
	}
	return existed, nil
}

// RequestPasswordReset issues a token of Config.ResetLifetime for use with
// UpdatePassword. Unknown emails get an empty secret and no error, so the
// caller can respond identically either way.
func (a *Authenticator) RequestPasswordReset(ctx context.Context, email string) (secret string, err error) {
	ctx, done := a.begin(ctx, OpRequestPasswordReset)
	defer done(&err)

	if _, lookupErr := a.store.GetUser(ctx, email); lookupErr != nil {
		if errors.Is(lookupErr, ErrNotFound) {
			return "", nil
		}
		return "", internalError("get user", lookupErr)
	}
	return a.issueToken(ctx, email, a.cfg.ResetLifetime)
}

// validToken looks up the record for secret and checks expiry.
func (a *Authenticator) validToken(ctx context.Context, secret string) (*Token, error) {
	token, err := a.store.GetToken(ctx, Digest(secret))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, domainError(CodeInvalidToken, ErrInvalidToken)
		}
		return nil, internalError("get token", err)
	}
	if token.IsExpiredAt(a.clock.Now()) {
		return nil, domainError(CodeInvalidToken, ErrInvalidToken)
	}
	return token, nil
}

func (a *Authenticator) issueToken(ctx context.Context, email string, lifetime time.Duration) (string, error) {
	expiresAt := a.clock.Now().Add(lifetime)
	secret, err := a.makeUniqueToken(ctx, &email, expiresAt)
	if err != nil {
		if errors.Is(err, ErrTokenGenerationFailed) {
			return "", oops.Code(CodeInternal).
				With("operation", "generate token").
				With("attempts", a.cfg.MaxTokenAttempts).
				Wrap(errors.Join(ErrInternal, ErrTokenGenerationFailed))
		}
		return "", internalError("generate token", err)
	}
	return secret, nil
}

// makeUniqueToken draws secrets until one's digest can be inserted without
// colliding with an existing record. Each attempt is a single atomic
// insert-if-absent, so no other writer can claim the digest in between.
func (a *Authenticator) makeUniqueToken(ctx context.Context, email *string, expiresAt time.Time) (string, error) {
	for range a.cfg.MaxTokenAttempts {
		secret, err := RandomSecret()
		if err != nil {
			return "", err
		}

		token := &Token{
			Hash:      Digest(secret),
			Email:     email,
			ExpiresAt: expiresAt,
			CreatedAt: a.clock.Now(),
		}
		err = a.store.InsertToken(ctx, token)
		if err == nil {
			return secret, nil
		}
		if !errors.Is(err, ErrAlreadyExists) {
			return "", err
		}
	}
	return "", ErrTokenGenerationFailed
}
