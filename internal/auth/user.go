// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// User is an account keyed by email (case-sensitive, as supplied).
//
// Salt never changes after creation. ConfirmationTokenHash goes from set to
// nil at most once, when the email address is confirmed.
type User struct {
	ID                    ulid.ULID
	Email                 string
	PasswordHash          string
	Salt                  string
	ConfirmationTokenHash *string
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// Confirmed reports whether the user's email address has been confirmed.
func (u *User) Confirmed() bool {
	return u.ConfirmationTokenHash == nil
}

// NewUser creates a validated, unconfirmed User.
func NewUser(email, passwordHash, salt, confirmationTokenHash string, now time.Time) (*User, error) {
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}
	if passwordHash == "" {
		return nil, oops.Code("USER_INVALID_HASH").Errorf("password hash cannot be empty")
	}
	if salt == "" {
		return nil, oops.Code("USER_INVALID_SALT").Errorf("salt cannot be empty")
	}
	if confirmationTokenHash == "" {
		return nil, oops.Code("USER_INVALID_CONFIRMATION").Errorf("confirmation token hash cannot be empty")
	}

	return &User{
		ID:                    ulid.Make(),
		Email:                 email,
		PasswordHash:          passwordHash,
		Salt:                  salt,
		ConfirmationTokenHash: &confirmationTokenHash,
		CreatedAt:             now,
		UpdatedAt:             now,
	}, nil
}

// ValidateEmail accepts any address containing an "@".
func ValidateEmail(email string) error {
	if !strings.Contains(email, "@") {
		return domainError(CodeInvalidEmail, ErrInvalidEmail)
	}
	return nil
}
