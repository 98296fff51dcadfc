// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package ocrypto

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// secretAlphabet is the charset random token/id/secret components are drawn
// from: [A-Za-z0-9], matching spec §4.1's "32 random characters".
const secretAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// Component lengths shared across pkg/clients, pkg/grants, pkg/tokenendpoint,
// and pkg/registration so every generated identifier follows one source of
// truth instead of scattered magic numbers.
const (
	// ClientIDLength is the length of a generated client_id.
	ClientIDLength = 16

	// ClientSecretLength is the length of a generated client secret (plaintext,
	// before hashing).
	ClientSecretLength = 32

	// GrantIDLength is the length of a generated grant id.
	GrantIDLength = 16

	// TokenSecretLength is the length of the random secret component embedded
	// in a token string (auth code, access token, refresh token).
	TokenSecretLength = 32
)

// RandomString returns n cryptographically random characters drawn from
// [A-Za-z0-9].
func RandomString(n int) (string, error) {
	if n <= 0 {
		return "", fmt.Errorf("ocrypto: length must be positive, got %d", n)
	}
	out := make([]byte, n)
	max := big.NewInt(int64(len(secretAlphabet)))
	for i := range out {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("ocrypto: generating random string: %w", err)
		}
		out[i] = secretAlphabet[idx.Int64()]
	}
	return string(out), nil
}
