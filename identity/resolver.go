// Package identity derives device fingerprints and issues account ids and recovery codes.
// It does no I/O.
package identity

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"strings"

	"golang.org/x/crypto/hkdf"
)

const (
	// MinDeviceIDLength is the shortest device identifier accepted for fingerprinting.
	MinDeviceIDLength = 10

	// recoveryAlphabet has 32 symbols, without I, O, 0 and 1.
	recoveryAlphabet  = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	recoveryGroups    = 3
	recoveryGroupSize = 4
	identityBytes     = 16
)

// ErrEmptySecret is returned when the resolver is built without a secret.
var ErrEmptySecret = errors.New("identity: empty fingerprint secret")

// Resolver holds the server-side key material. Build one at startup and share it.
type Resolver struct {
	fingerprintKey []byte
	random         io.Reader
}

// New derives the fingerprint key from secret.
func New(secret string) (*Resolver, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	key := make([]byte, sha256.Size)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, []byte("anonid/device-fingerprint/v1")), key); err != nil {
		return nil, err
	}
	return &Resolver{fingerprintKey: key, random: rand.Reader}, nil
}

// WithRandom returns a copy of r that draws ids and codes from src instead of crypto/rand.
func (r *Resolver) WithRandom(src io.Reader) *Resolver {
	cp := *r
	cp.random = src
	return &cp
}

// Fingerprint returns the hex HMAC-SHA256 of deviceID.
func (r *Resolver) Fingerprint(deviceID string) string {
	mac := hmac.New(sha256.New, r.fingerprintKey)
	mac.Write([]byte(deviceID))
	return hex.EncodeToString(mac.Sum(nil))
}

// NewIdentity returns a random 32-character hex token used as an account id.
func (r *Resolver) NewIdentity() (string, error) {
	b := make([]byte, identityBytes)
	if _, err := io.ReadFull(r.random, b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// NewRecoveryCode returns a code like "ABCD-EFGH-JKLM".
func (r *Resolver) NewRecoveryCode() (string, error) {
	b := make([]byte, recoveryGroups*recoveryGroupSize)
	if _, err := io.ReadFull(r.random, b); err != nil {
		return "", err
	}
	symbols := make([]byte, len(b))
	for i, v := range b {
		// 256 is a multiple of 32, so masking keeps the distribution uniform.
		symbols[i] = recoveryAlphabet[v&31]
	}
	return group(string(symbols)), nil
}

// NormalizeRecoveryCode upper-cases user input and re-inserts hyphens, so "abcd efgh-jklm"
// matches "ABCD-EFGH-JKLM". Input that cannot be a code is returned stripped.
func NormalizeRecoveryCode(code string) string {
	var sb strings.Builder
	for _, c := range strings.ToUpper(code) {
		if (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') {
			sb.WriteRune(c)
		}
	}
	s := sb.String()
	if len(s) != recoveryGroups*recoveryGroupSize {
		return s
	}
	return group(s)
}

// ValidRecoveryCode reports whether code is a normalized recovery code.
func ValidRecoveryCode(code string) bool {
	if len(code) != recoveryGroups*recoveryGroupSize+recoveryGroups-1 {
		return false
	}
	for i, c := range code {
		if (i+1)%(recoveryGroupSize+1) == 0 {
			if c != '-' {
				return false
			}
			continue
		}
		if !strings.ContainsRune(recoveryAlphabet, c) {
			return false
		}
	}
	return true
}

func group(s string) string {
	parts := make([]string, 0, recoveryGroups)
	for i := 0; i < len(s); i += recoveryGroupSize {
		parts = append(parts, s[i:i+recoveryGroupSize])
	}
	return strings.Join(parts, "-")
}
