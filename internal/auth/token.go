// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import "time"

// expiredAt is the always-expired sentinel written by InvalidateToken.
var expiredAt = time.Unix(0, 0).UTC()

// Token is a persisted token record keyed by the digest of its secret.
// The plaintext secret is never stored.
type Token struct {
	Hash string

	// Email is the owner. Nil for invalidation records, which carry no owner.
	Email *string

	ExpiresAt time.Time
	CreatedAt time.Time
}

// IsExpiredAt reports whether the token is expired at t.
// A token expiring exactly at t is expired.
func (t *Token) IsExpiredAt(now time.Time) bool {
	return !t.ExpiresAt.After(now)
}
