// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package ocrypto provides the cryptographic primitives the authorization
// server builds its token-keyed props encryption scheme on: CSPRNG random
// strings, SHA-256 hashing, AES-GCM encryption of grant props, and AES Key
// Wrap of the per-grant data key under a key derived from a live token
// string.
//
// The scheme (spec §4.1): a fresh AES-256 data key is generated once per
// grant and used to encrypt that grant's props exactly once, with a
// zero IV — safe only because the key is single-use. For every token string
// that should be able to recover the props, the wrapping key is
// HMAC-SHA-256(pepper, tokenString) imported as an AES-KW key; the wrapped
// data key travels with the token record (or the grant, for codes and
// refresh tokens). Without the unhashed token string the wrapped key cannot
// be recovered.
package ocrypto
