// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"slices"
	"unicode/utf8"

	"github.com/samber/oops"
)

// PasswordPolicy decides whether a password is acceptable.
type PasswordPolicy struct {
	// MinLength is the minimum number of characters (runes).
	MinLength int

	// Denylist holds passwords that are rejected on an exact, case-sensitive match.
	Denylist []string
}

// Validate checks password against the policy. It has no side effects.
// Length is checked before the denylist.
func (p PasswordPolicy) Validate(password string) error {
	if utf8.RuneCountInString(password) < p.MinLength {
		return oops.Code(CodePasswordTooShort).
			With("min", p.MinLength).
			Wrap(ErrPasswordTooShort)
	}
	if slices.Contains(p.Denylist, password) {
		return domainError(CodePasswordTooCommon, ErrPasswordTooCommon)
	}
	return nil
}
