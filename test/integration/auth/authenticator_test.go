// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

//go:build integration

package auth_test

import (
	"io"
	"log/slog"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/holomush/auther/internal/auth"
	authpg "github.com/holomush/auther/internal/auth/postgres"
)

var _ = Describe("Authenticator on PostgreSQL", func() {
	var (
		authn *auth.Authenticator
		pg    *authpg.Store
	)

	BeforeEach(func() {
		env.truncate()
		pg = authpg.New(env.pool)

		var err error
		authn, err = auth.NewAuthenticator(pg, auth.DefaultConfig(),
			auth.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
		Expect(err).NotTo(HaveOccurred())
	})

	It("runs the account lifecycle", func() {
		ctx := env.ctx

		secret, err := authn.CreateUser(ctx, "a@x.com", "longenoughpw")
		Expect(err).NotTo(HaveOccurred())

		exists, confirmed, err := authn.IsUser(ctx, "a@x.com")
		Expect(err).NotTo(HaveOccurred())
		Expect(exists).To(BeTrue())
		Expect(confirmed).To(BeFalse())

		already, err := authn.ConfirmEmail(ctx, secret, "a@x.com")
		Expect(err).NotTo(HaveOccurred())
		Expect(already).To(BeFalse())

		already, err = authn.ConfirmEmail(ctx, secret, "a@x.com")
		Expect(err).NotTo(HaveOccurred())
		Expect(already).To(BeTrue())

		tok, err := authn.AuthenticatePassword(ctx, "a@x.com", "longenoughpw")
		Expect(err).NotTo(HaveOccurred())
		Expect(authn.AuthenticateToken(ctx, tok)).To(Succeed())

		Expect(authn.InvalidateToken(ctx, tok)).To(Succeed())
		Expect(authn.AuthenticateToken(ctx, tok)).To(MatchError(auth.ErrInvalidToken))
	})

	It("lets exactly one concurrent CreateUser win", func() {
		const callers = 12
		var (
			wg   sync.WaitGroup
			mu   sync.Mutex
			errs []error
		)
		for range callers {
			wg.Add(1)
			go func() {
				defer GinkgoRecover()
				defer wg.Done()
				_, err := authn.CreateUser(env.ctx, "race@x.com", "longenoughpw")
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}()
		}
		wg.Wait()

		wins := 0
		for _, err := range errs {
			if err == nil {
				wins++
				continue
			}
			Expect(err).To(MatchError(auth.ErrEmailAlreadyTaken))
		}
		Expect(wins).To(Equal(1))
	})

	It("updates a password through a reset token", func() {
		ctx := env.ctx
		_, err := authn.CreateUser(ctx, "a@x.com", "oldpassword")
		Expect(err).NotTo(HaveOccurred())

		reset, err := authn.RequestPasswordReset(ctx, "a@x.com")
		Expect(err).NotTo(HaveOccurred())
		Expect(authn.UpdatePassword(ctx, reset, "newpassword")).To(Succeed())

		_, err = authn.AuthenticatePassword(ctx, "a@x.com", "oldpassword")
		Expect(err).To(MatchError(auth.ErrInvalidCredentials))
		_, err = authn.AuthenticatePassword(ctx, "a@x.com", "newpassword")
		Expect(err).NotTo(HaveOccurred())
	})

	It("sweeps expired tokens and removes a deleted user's tokens", func() {
		ctx := env.ctx
		owner := "a@x.com"
		now := time.Now()

		Expect(pg.CreateToken(ctx, &auth.Token{Hash: "expired", Email: &owner, ExpiresAt: now.Add(-time.Minute), CreatedAt: now})).To(Succeed())
		Expect(pg.CreateToken(ctx, &auth.Token{Hash: "live", Email: &owner, ExpiresAt: now.Add(time.Hour), CreatedAt: now})).To(Succeed())

		n, err := pg.DeleteExpiredTokens(ctx, now)
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(BeNumerically("==", 1))

		_, err = authn.CreateUser(ctx, owner, "longenoughpw")
		Expect(err).NotTo(HaveOccurred())
		existed, err := authn.DeleteUser(ctx, owner)
		Expect(err).NotTo(HaveOccurred())
		Expect(existed).To(BeTrue())

		_, err = pg.GetToken(ctx, "live")
		Expect(err).To(MatchError(auth.ErrNotFound))
	})

	It("reports collisions from InsertToken", func() {
		tok := &auth.Token{Hash: "dup", ExpiresAt: time.Now().Add(time.Hour), CreatedAt: time.Now()}
		Expect(pg.InsertToken(env.ctx, tok)).To(Succeed())
		Expect(pg.InsertToken(env.ctx, tok)).To(MatchError(auth.ErrAlreadyExists))
	})
})
