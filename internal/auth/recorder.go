// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import "time"

// Operation names reported to the Recorder.
const (
	OpCreateUser           = "create_user"
	OpGenerateToken        = "generate_token"
	OpAuthenticatePassword = "authenticate_password"
	OpAuthenticateToken    = "authenticate_token"
	OpInvalidateToken      = "invalidate_token"
	OpUpdatePassword       = "update_password"
	OpConfirmEmail         = "confirm_email"
	OpIsUser               = "is_user"
	OpDeleteUser           = "delete_user"
	OpRequestPasswordReset = "request_password_reset"
	OpTokenOwner           = "token_owner"
)

// ResultOK is the result label of a successful operation. Failed operations
// are labelled with their error code.
const ResultOK = "ok"

// Recorder receives operation and sweep outcomes. observability.Metrics
// implements it; the zero configuration discards everything.
type Recorder interface {
	ObserveOperation(operation, result string, elapsed time.Duration)
	ObserveSweep(result string, swept int64)
}

type nopRecorder struct{}

func (nopRecorder) ObserveOperation(string, string, time.Duration) {}
func (nopRecorder) ObserveSweep(string, int64)                    {}
