// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package ocrypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// DataKeySize is the size in bytes of a grant's props-encryption key
// (AES-256).
const DataKeySize = 32

// zeroIV is the all-zero 12-byte GCM nonce. Safe only because every data key
// is freshly generated per grant (see GenerateDataKey) and used to encrypt
// exactly one plaintext (a single grant's encryptedProps blob) — see spec
// §4.1 and §9. Any future feature that re-encrypts props under the same key
// must switch to a random IV.
var zeroIV = make([]byte, 12)

// GenerateDataKey returns a fresh random AES-256 key. Callers must generate
// one per grant and must never reuse it to encrypt a second plaintext.
func GenerateDataKey() ([]byte, error) {
	key := make([]byte, DataKeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("ocrypto: generating data key: %w", err)
	}
	return key, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("ocrypto: constructing AES cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("ocrypto: constructing GCM: %w", err)
	}
	return gcm, nil
}

// EncryptProps encrypts plaintext under key with the all-zero IV and returns
// base64-standard-encoded ciphertext (including the GCM tag), suitable for
// storing as Grant.EncryptedProps.
func EncryptProps(key, plaintext []byte) (string, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return "", err
	}
	ciphertext := gcm.Seal(nil, zeroIV, plaintext, nil)
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// DecryptProps reverses EncryptProps.
func DecryptProps(key []byte, encoded string) ([]byte, error) {
	ciphertext, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("ocrypto: decoding props ciphertext: %w", err)
	}
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	plaintext, err := gcm.Open(nil, zeroIV, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("ocrypto: decrypting props: %w", err)
	}
	return plaintext, nil
}
