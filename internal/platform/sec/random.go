// Copyright (c) 2026 A-Z Express. All rights reserved.
// Author: platform@azexpress.app

package sec

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"math/big"
)

// GenerateNumericCode returns a uniformly distributed decimal code of exactly
// digits characters, zero-padded (e.g. "004211").
func GenerateNumericCode(digits int) (string, error) {
	limit := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(digits)), nil)
	n, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", fmt.Errorf("sec: failed to generate code: %w", err)
	}
	return fmt.Sprintf("%0*d", digits, n), nil
}

// HashToken returns the hex SHA-256 digest of a high-entropy secret.
//
// Used for refresh tokens and reset codes so the stores never hold the
// presented value itself.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// EqualHash compares two digests in constant time.
func EqualHash(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
