// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"time"

	"github.com/samber/oops"
	"golang.org/x/crypto/argon2"
)

// SecretBytes is the number of random bytes behind every salt and token
// secret: 32 bytes = 256 bits = 64 hex chars.
const SecretBytes = 32

// Digest computes the SHA-256 hash of input, hex-encoded.
// Token and confirmation secrets are persisted only as their digest.
func Digest(input string) string {
	h := sha256.Sum256([]byte(input))
	return hex.EncodeToString(h[:])
}

// RandomSecret returns SecretBytes of crypto/rand output, hex-encoded.
// It is used for salts as well as token and confirmation secrets.
func RandomSecret() (string, error) {
	b := make([]byte, SecretBytes)
	if _, err := rand.Read(b); err != nil {
		return "", oops.Code("AUTH_RANDOM_FAILED").
			With("operation", "crypto/rand.Read").
			With("requested_bytes", SecretBytes).
			Wrap(err)
	}
	return hex.EncodeToString(b), nil
}

// secretsEqual compares two hex digests in constant time.
func secretsEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// Clock is the time source for token expiry and the GC throttle.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

// Now returns time.Now().
func (SystemClock) Now() time.Time { return time.Now() }

// CredentialHasher turns a password and a per-user salt into the stored
// credential hash. Implementations must be deterministic.
type CredentialHasher interface {
	Hash(password, salt string) (string, error)
}

// Hasher names accepted by HasherByName.
const (
	HasherSHA256   = "sha256"
	HasherArgon2id = "argon2id"
)

// SHA256Hasher computes Digest(password + salt).
type SHA256Hasher struct{}

// Hash returns the hex SHA-256 digest of password concatenated with salt.
func (SHA256Hasher) Hash(password, salt string) (string, error) {
	return Digest(password + salt), nil
}

// OWASP-recommended argon2id parameters.
const (
	argon2Time    = 1         // iterations
	argon2Memory  = 64 * 1024 // 64 MB
	argon2Threads = 4         // parallelism
	argon2KeyLen  = 32        // output length in bytes
)

// Argon2idHasher derives the credential hash with argon2id, keyed by the
// user's salt. The output is hex so it fits the same column as SHA256Hasher.
type Argon2idHasher struct {
	Time    uint32
	Memory  uint32
	Threads uint8
}

// NewArgon2idHasher creates an Argon2idHasher with the recommended parameters.
func NewArgon2idHasher() *Argon2idHasher {
	return &Argon2idHasher{
		Time:    argon2Time,
		Memory:  argon2Memory,
		Threads: argon2Threads,
	}
}

// Hash derives an argon2id key from password and salt.
func (h *Argon2idHasher) Hash(password, salt string) (string, error) {
	if salt == "" {
		return "", oops.Code("AUTH_INVALID_SALT").Errorf("salt cannot be empty")
	}
	key := argon2.IDKey([]byte(password), []byte(salt), h.Time, h.Memory, h.Threads, argon2KeyLen)
	return hex.EncodeToString(key), nil
}

// HasherByName resolves a configured hasher name.
func HasherByName(name string) (CredentialHasher, error) {
	switch name {
	case "", HasherSHA256:
		return SHA256Hasher{}, nil
	case HasherArgon2id:
		return NewArgon2idHasher(), nil
	default:
		return nil, oops.Code("CONFIG_INVALID").
			With("field", "hasher").
			With("value", name).
			Errorf("unknown credential hasher %q", name)
	}
}
