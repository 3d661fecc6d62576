// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/auther/internal/auth"
	"github.com/holomush/auther/internal/auth/memory"
	"github.com/holomush/auther/pkg/errutil"
)

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	auth  *auth.Authenticator
	store *memory.Store
	clock *manualClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithConfig(t, auth.DefaultConfig())
}

func newFixtureWithConfig(t *testing.T, cfg auth.Config) *fixture {
	t.Helper()
	store := memory.New()
	clock := &manualClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	a, err := auth.NewAuthenticator(store, cfg,
		auth.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		auth.WithClock(clock),
	)
	require.NoError(t, err)
	return &fixture{auth: a, store: store, clock: clock}
}

// mustCreate creates a user and returns the confirmation secret.
func (f *fixture) mustCreate(t *testing.T, email, password string) string {
	t.Helper()
	secret, err := f.auth.CreateUser(context.Background(), email, password)
	require.NoError(t, err)
	return secret
}

func TestExampleScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	s := f.mustCreate(t, "a@x.com", "longenoughpw")
	require.NotEmpty(t, s)

	already, err := f.auth.ConfirmEmail(ctx, s, "a@x.com")
	require.NoError(t, err)
	assert.False(t, already)

	already, err = f.auth.ConfirmEmail(ctx, s, "a@x.com")
	require.NoError(t, err)
	assert.True(t, already)

	tok, err := f.auth.AuthenticatePassword(ctx, "a@x.com", "longenoughpw")
	require.NoError(t, err)
	require.NoError(t, f.auth.AuthenticateToken(ctx, tok))

	require.NoError(t, f.auth.InvalidateToken(ctx, tok))

	err = f.auth.AuthenticateToken(ctx, tok)
	errutil.AssertDomainError(t, err, auth.ErrInvalidToken, auth.CodeInvalidToken)
}

func TestCreateUser(t *testing.T) {
	tests := []struct {
		name     string
		seed     string
		email    string
		password string
		wantErr  error
		wantCode string
	}{
		{"valid", "", "a@x.com", "longenoughpw", nil, ""},
		{"missing at sign", "", "ax.com", "longenoughpw", auth.ErrInvalidEmail, auth.CodeInvalidEmail},
		{"email checked before password", "", "ax.com", "abc", auth.ErrInvalidEmail, auth.CodeInvalidEmail},
		{"too short", "", "a@x.com", "abc", auth.ErrPasswordTooShort, auth.CodePasswordTooShort},
		{"too common", "", "a@x.com", "password", auth.ErrPasswordTooCommon, auth.CodePasswordTooCommon},
		{"denylist is exact", "", "a@x.com", "Password", nil, ""},
		{"taken", "a@x.com", "a@x.com", "longenoughpw", auth.ErrEmailAlreadyTaken, auth.CodeEmailAlreadyTaken},
		{"taken checked before password", "a@x.com", "a@x.com", "abc", auth.ErrEmailAlreadyTaken, auth.CodeEmailAlreadyTaken},
		{"email is case-sensitive", "a@x.com", "A@x.com", "longenoughpw", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			if tt.seed != "" {
				f.mustCreate(t, tt.seed, "seedpassword")
			}

			secret, err := f.auth.CreateUser(context.Background(), tt.email, tt.password)
			if tt.wantErr == nil {
				require.NoError(t, err)
				assert.Len(t, secret, 2*auth.SecretBytes)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
			errutil.AssertErrorCode(t, err, tt.wantCode)
			assert.Empty(t, secret)
		})
	}
}

func TestCreateUser_FailedValidationStoresNothing(t *testing.T) {
	f := newFixture(t)
	_, err := f.auth.CreateUser(context.Background(), "a@x.com", "abc")
	require.Error(t, err)

	users, _ := f.store.Len()
	assert.Zero(t, users)
}

func TestCreateUser_ConcurrentSameEmail(t *testing.T) {
	f := newFixture(t)

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		wins  int
		taken int
	)
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.auth.CreateUser(context.Background(), "race@x.com", "longenoughpw")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case assert.ErrorIs(t, err, auth.ErrEmailAlreadyTaken):
				taken++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.Equal(t, 15, taken)
}

func TestIsUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	exists, confirmed, err := f.auth.IsUser(ctx, "a@x.com")
	require.NoError(t, err)
	assert.False(t, exists)
	assert.False(t, confirmed)

	s := f.mustCreate(t, "a@x.com", "longenoughpw")
	exists, confirmed, err = f.auth.IsUser(ctx, "a@x.com")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.False(t, confirmed)

	_, err = f.auth.ConfirmEmail(ctx, s, "a@x.com")
	require.NoError(t, err)
	exists, confirmed, err = f.auth.IsUser(ctx, "a@x.com")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.True(t, confirmed)
}

func TestConfirmEmail(t *testing.T) {
	ctx := context.Background()

	t.Run("wrong secret leaves user unconfirmed", func(t *testing.T) {
		f := newFixture(t)
		f.mustCreate(t, "a@x.com", "longenoughpw")

		_, err := f.auth.ConfirmEmail(ctx, "not-the-secret", "a@x.com")
		errutil.AssertDomainError(t, err, auth.ErrInvalidToken, auth.CodeInvalidToken)

		_, confirmed, err := f.auth.IsUser(ctx, "a@x.com")
		require.NoError(t, err)
		assert.False(t, confirmed)
	})

	t.Run("unknown user", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.auth.ConfirmEmail(ctx, "secret", "nobody@x.com")
		errutil.AssertDomainError(t, err, auth.ErrInvalidUser, auth.CodeInvalidUser)
	})

	t.Run("secret belongs to another user", func(t *testing.T) {
		f := newFixture(t)
		sa := f.mustCreate(t, "a@x.com", "longenoughpw")
		f.mustCreate(t, "b@x.com", "longenoughpw")

		_, err := f.auth.ConfirmEmail(ctx, sa, "b@x.com")
		assert.ErrorIs(t, err, auth.ErrInvalidToken)
	})

	t.Run("confirmation window elapsed", func(t *testing.T) {
		f := newFixture(t)
		s := f.mustCreate(t, "a@x.com", "longenoughpw")

		f.clock.Advance(auth.DefaultConfirmationLifetime)
		_, err := f.auth.ConfirmEmail(ctx, s, "a@x.com")
		assert.ErrorIs(t, err, auth.ErrInvalidToken)
		errutil.AssertErrorContext(t, err, "reason", "confirmation window elapsed")
	})

	t.Run("within window", func(t *testing.T) {
		f := newFixture(t)
		s := f.mustCreate(t, "a@x.com", "longenoughpw")

		f.clock.Advance(auth.DefaultConfirmationLifetime - time.Second)
		already, err := f.auth.ConfirmEmail(ctx, s, "a@x.com")
		require.NoError(t, err)
		assert.False(t, already)
	})
}

func TestAuthenticatePassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.mustCreate(t, "a@x.com", "longenoughpw")

	_, wrongErr := f.auth.AuthenticatePassword(ctx, "a@x.com", "wrongpassword")
	_, unknownErr := f.auth.AuthenticatePassword(ctx, "nobody@x.com", "longenoughpw")

	for _, err := range []error{wrongErr, unknownErr} {
		errutil.AssertDomainError(t, err, auth.ErrInvalidCredentials, auth.CodeInvalidCredentials)
	}
	assert.Equal(t, wrongErr.Error(), unknownErr.Error(), "unknown user and wrong password must be indistinguishable")

	tok, err := f.auth.AuthenticatePassword(ctx, "a@x.com", "longenoughpw")
	require.NoError(t, err)
	require.NoError(t, f.auth.AuthenticateToken(ctx, tok))

	owner, err := f.auth.TokenOwner(ctx, tok)
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", owner)
}

func TestTokenLifetimes(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name     string
		issue    func(f *fixture) (string, error)
		lifetime time.Duration
	}{
		{"GenerateToken default", func(f *fixture) (string, error) {
			return f.auth.GenerateToken(ctx, "a@x.com")
		}, auth.DefaultTokenLifetime},
		{"GenerateToken explicit", func(f *fixture) (string, error) {
			return f.auth.GenerateToken(ctx, "a@x.com", auth.WithLifetime(5*time.Minute))
		}, 5 * time.Minute},
		{"GenerateToken non-positive falls back", func(f *fixture) (string, error) {
			return f.auth.GenerateToken(ctx, "a@x.com", auth.WithLifetime(0))
		}, auth.DefaultTokenLifetime},
		{"AuthenticatePassword default", func(f *fixture) (string, error) {
			return f.auth.AuthenticatePassword(ctx, "a@x.com", "longenoughpw")
		}, auth.DefaultSessionLifetime},
		{"AuthenticatePassword explicit", func(f *fixture) (string, error) {
			return f.auth.AuthenticatePassword(ctx, "a@x.com", "longenoughpw", auth.WithLifetime(2*time.Hour))
		}, 2 * time.Hour},
		{"RequestPasswordReset", func(f *fixture) (string, error) {
			return f.auth.RequestPasswordReset(ctx, "a@x.com")
		}, auth.DefaultResetLifetime},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.mustCreate(t, "a@x.com", "longenoughpw")

			tok, err := tt.issue(f)
			require.NoError(t, err)

			f.clock.Advance(tt.lifetime - time.Second)
			require.NoError(t, f.auth.AuthenticateToken(ctx, tok))

			// Expiry is strict: a token expiring exactly now is expired.
			f.clock.Advance(time.Second)
			assert.ErrorIs(t, f.auth.AuthenticateToken(ctx, tok), auth.ErrInvalidToken)
		})
	}
}

func TestAuthenticateToken_Unknown(t *testing.T) {
	f := newFixture(t)
	err := f.auth.AuthenticateToken(context.Background(), "never-issued")
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestInvalidateToken_UnknownSucceeds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.auth.InvalidateToken(ctx, "never-issued"))
	require.NoError(t, f.auth.InvalidateToken(ctx, "never-issued"))
	assert.ErrorIs(t, f.auth.AuthenticateToken(ctx, "never-issued"), auth.ErrInvalidToken)
}

func TestUpdatePassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.mustCreate(t, "a@x.com", "oldpassword")

	tok, err := f.auth.GenerateToken(ctx, "a@x.com")
	require.NoError(t, err)

	require.NoError(t, f.auth.UpdatePassword(ctx, tok, "newpassword"))

	_, err = f.auth.AuthenticatePassword(ctx, "a@x.com", "oldpassword")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)

	_, err = f.auth.AuthenticatePassword(ctx, "a@x.com", "newpassword")
	assert.NoError(t, err)
}

func TestUpdatePassword_PolicyCheckedBeforeToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	err := f.auth.UpdatePassword(ctx, "bogus-token", "abc")
	assert.ErrorIs(t, err, auth.ErrPasswordTooShort)

	err = f.auth.UpdatePassword(ctx, "bogus-token", "123456789")
	assert.ErrorIs(t, err, auth.ErrPasswordTooCommon)

	err = f.auth.UpdatePassword(ctx, "bogus-token", "longenoughpw")
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestUpdatePassword_ExpiredOrInvalidatedToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.mustCreate(t, "a@x.com", "oldpassword")

	expiring, err := f.auth.GenerateToken(ctx, "a@x.com", auth.WithLifetime(time.Minute))
	require.NoError(t, err)
	revoked, err := f.auth.GenerateToken(ctx, "a@x.com")
	require.NoError(t, err)
	require.NoError(t, f.auth.InvalidateToken(ctx, revoked))

	f.clock.Advance(time.Minute)
	assert.ErrorIs(t, f.auth.UpdatePassword(ctx, expiring, "newpassword"), auth.ErrInvalidToken)
	assert.ErrorIs(t, f.auth.UpdatePassword(ctx, revoked, "newpassword"), auth.ErrInvalidToken)

	_, err = f.auth.AuthenticatePassword(ctx, "a@x.com", "oldpassword")
	assert.NoError(t, err)
}

func TestRequestPasswordReset(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	secret, err := f.auth.RequestPasswordReset(ctx, "nobody@x.com")
	require.NoError(t, err)
	assert.Empty(t, secret)

	f.mustCreate(t, "a@x.com", "oldpassword")
	secret, err = f.auth.RequestPasswordReset(ctx, "a@x.com")
	require.NoError(t, err)
	require.NotEmpty(t, secret)

	require.NoError(t, f.auth.UpdatePassword(ctx, secret, "resetpassword"))
	_, err = f.auth.AuthenticatePassword(ctx, "a@x.com", "resetpassword")
	assert.NoError(t, err)
}

func TestDeleteUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.mustCreate(t, "a@x.com", "longenoughpw")
	f.mustCreate(t, "b@x.com", "longenoughpw")

	tokA, err := f.auth.AuthenticatePassword(ctx, "a@x.com", "longenoughpw")
	require.NoError(t, err)
	tokB, err := f.auth.AuthenticatePassword(ctx, "b@x.com", "longenoughpw")
	require.NoError(t, err)

	existed, err := f.auth.DeleteUser(ctx, "a@x.com")
	require.NoError(t, err)
	assert.True(t, existed)

	exists, _, err := f.auth.IsUser(ctx, "a@x.com")
	require.NoError(t, err)
	assert.False(t, exists)

	assert.ErrorIs(t, f.auth.AuthenticateToken(ctx, tokA), auth.ErrInvalidToken, "tokens of a deleted user are removed")
	assert.NoError(t, f.auth.AuthenticateToken(ctx, tokB))

	existed, err = f.auth.DeleteUser(ctx, "a@x.com")
	require.NoError(t, err)
	assert.False(t, existed)

	// The email is free again.
	f.mustCreate(t, "a@x.com", "longenoughpw")
}

func TestGarbageCollection_RemovesExpiredTokens(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.mustCreate(t, "a@x.com", "longenoughpw")

	_, err := f.auth.GenerateToken(ctx, "a@x.com", auth.WithLifetime(time.Minute))
	require.NoError(t, err)
	live, err := f.auth.GenerateToken(ctx, "a@x.com", auth.WithLifetime(24*time.Hour))
	require.NoError(t, err)
	require.NoError(t, f.auth.InvalidateToken(ctx, "revoked"))

	_, tokens := f.store.Len()
	require.Equal(t, 3, tokens)

	f.clock.Advance(auth.DefaultGCInterval)
	require.NoError(t, f.auth.AuthenticateToken(ctx, live))

	_, tokens = f.store.Len()
	assert.Equal(t, 1, tokens)
}

func TestCollectGarbage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.mustCreate(t, "a@x.com", "longenoughpw")

	_, err := f.auth.GenerateToken(ctx, "a@x.com", auth.WithLifetime(time.Minute))
	require.NoError(t, err)

	assert.False(t, f.auth.CollectGarbage(ctx), "the operations above already swept")

	f.clock.Advance(auth.DefaultGCInterval)
	assert.True(t, f.auth.CollectGarbage(ctx))
	assert.False(t, f.auth.CollectGarbage(ctx))

	_, tokens := f.store.Len()
	assert.Zero(t, tokens)
}

func TestNewAuthenticator_RejectsInvalidConfig(t *testing.T) {
	cfg := auth.DefaultConfig()
	cfg.GCInterval = 0

	_, err := auth.NewAuthenticator(memory.New(), cfg)
	errutil.AssertErrorCode(t, err, "CONFIG_INVALID")

	_, err = auth.NewAuthenticator(nil, auth.DefaultConfig())
	errutil.AssertErrorCode(t, err, "CONFIG_INVALID")
}

func TestCustomPolicy(t *testing.T) {
	cfg := auth.DefaultConfig()
	cfg.MinPasswordLength = 12
	cfg.Denylist = []string{"correcthorsebattery"}
	f := newFixtureWithConfig(t, cfg)
	ctx := context.Background()

	_, err := f.auth.CreateUser(ctx, "a@x.com", "longenoughpw")
	assert.NoError(t, err)

	_, err = f.auth.CreateUser(ctx, "b@x.com", "elevenchars")
	assert.ErrorIs(t, err, auth.ErrPasswordTooShort)

	_, err = f.auth.CreateUser(ctx, "c@x.com", "correcthorsebattery")
	assert.ErrorIs(t, err, auth.ErrPasswordTooCommon)

	_, err = f.auth.CreateUser(ctx, "d@x.com", "password")
	assert.ErrorIs(t, err, auth.ErrPasswordTooShort, "defaults are replaced, not merged")
}

func TestArgon2idHasherEndToEnd(t *testing.T) {
	cfg := auth.DefaultConfig()
	cfg.Hasher = auth.HasherArgon2id
	f := newFixtureWithConfig(t, cfg)
	ctx := context.Background()

	f.mustCreate(t, "a@x.com", "longenoughpw")
	_, err := f.auth.AuthenticatePassword(ctx, "a@x.com", "longenoughpw")
	require.NoError(t, err)
	_, err = f.auth.AuthenticatePassword(ctx, "a@x.com", "wrongpassword")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
}
