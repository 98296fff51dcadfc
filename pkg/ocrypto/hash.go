// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package ocrypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// SHA256Hex returns the lowercase hex-encoded SHA-256 digest of s. Used both
// for client-secret hashing at rest and for hashing entire token strings for
// lookup (spec §4.1: "the hash stored for lookup is SHA-256(entire string)").
func SHA256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// pepper is the fixed 32-byte domain-separation constant used to derive
// wrap keys from token strings (spec §4.1, §9). It is not a secret: its
// disclosure does not weaken the scheme because deriving a usable wrap key
// still requires the token string itself. It must stay fixed for the
// lifetime of a deployment, since rotating it invalidates every wrapped key
// in storage.
var pepper = [32]byte{
	0x8f, 0x1a, 0x6e, 0x2c, 0x4d, 0x9b, 0x03, 0x5a,
	0xc7, 0x21, 0xe6, 0x48, 0x9f, 0x0d, 0x3b, 0x77,
	0x52, 0xaa, 0x1c, 0x6f, 0x88, 0x0e, 0x4a, 0x3d,
	0x91, 0x27, 0x5c, 0xb0, 0xf4, 0x63, 0x1e, 0xd9,
}

// deriveWrapKey computes HMAC-SHA-256(pepper, tokenString), the AES-256 key
// used to wrap/unwrap a grant's data key for this specific token string.
func deriveWrapKey(tokenString string) []byte {
	mac := hmac.New(sha256.New, pepper[:])
	mac.Write([]byte(tokenString))
	return mac.Sum(nil)
}
