// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package ocrypto

import (
	"crypto/aes"
	"crypto/subtle"
	"encoding/base64"
	"encoding/binary"
	"fmt"
)

// AES Key Wrap (RFC 3394) built directly on crypto/aes. No third-party
// package implementing AES-KW turned up anywhere in the retrieved example
// corpus (see DESIGN.md); this is the same posture the corpus itself takes
// toward primitives without an ecosystem wrapper — build the ~40-line
// algorithm on the stdlib block cipher, the way the vault-sync example's
// CipherV0 is built directly on crypto/aes and crypto/cipher.

// defaultIV is the RFC 3394 §2.2.3.1 default integrity check value.
var defaultIV = [8]byte{0xA6, 0xA6, 0xA6, 0xA6, 0xA6, 0xA6, 0xA6, 0xA6}

// kwWrap implements RFC 3394 key wrap of plaintext (a multiple of 8 bytes,
// at least 16) under kek.
func kwWrap(kek, plaintext []byte) ([]byte, error) {
	if len(plaintext)%8 != 0 || len(plaintext) < 16 {
		return nil, fmt.Errorf("ocrypto: key wrap input must be a multiple of 8 bytes, >=16, got %d", len(plaintext))
	}
	block, err := aes.NewCipher(kek)
	if err != nil {
		return nil, fmt.Errorf("ocrypto: constructing AES-KW cipher: %w", err)
	}

	n := len(plaintext) / 8
	r := make([][8]byte, n)
	for i := 0; i < n; i++ {
		copy(r[i][:], plaintext[i*8:(i+1)*8])
	}

	var a [8]byte
	copy(a[:], defaultIV[:])

	buf := make([]byte, 16)
	for j := 0; j <= 5; j++ {
		for i := 1; i <= n; i++ {
			copy(buf[:8], a[:])
			copy(buf[8:], r[i-1][:])
			block.Encrypt(buf, buf)

			t := uint64(n*j + i)
			var tBytes [8]byte
			binary.BigEndian.PutUint64(tBytes[:], t)
			for k := range a {
				a[k] = buf[k] ^ tBytes[k]
			}
			copy(r[i-1][:], buf[8:])
		}
	}

	out := make([]byte, 8+len(plaintext))
	copy(out[:8], a[:])
	for i := 0; i < n; i++ {
		copy(out[8+i*8:8+(i+1)*8], r[i][:])
	}
	return out, nil
}

// kwUnwrap reverses kwWrap and verifies the integrity check value.
func kwUnwrap(kek, wrapped []byte) ([]byte, error) {
	if len(wrapped)%8 != 0 || len(wrapped) < 24 {
		return nil, fmt.Errorf("ocrypto: key unwrap input must be a multiple of 8 bytes, >=24, got %d", len(wrapped))
	}
	block, err := aes.NewCipher(kek)
	if err != nil {
		return nil, fmt.Errorf("ocrypto: constructing AES-KW cipher: %w", err)
	}

	n := len(wrapped)/8 - 1
	r := make([][8]byte, n)
	for i := 0; i < n; i++ {
		copy(r[i][:], wrapped[8+i*8:8+(i+1)*8])
	}
	var a [8]byte
	copy(a[:], wrapped[:8])

	buf := make([]byte, 16)
	for j := 5; j >= 0; j-- {
		for i := n; i >= 1; i-- {
			t := uint64(n*j + i)
			var tBytes [8]byte
			binary.BigEndian.PutUint64(tBytes[:], t)

			var aXorT [8]byte
			for k := range a {
				aXorT[k] = a[k] ^ tBytes[k]
			}
			copy(buf[:8], aXorT[:])
			copy(buf[8:], r[i-1][:])
			block.Decrypt(buf, buf)

			copy(a[:], buf[:8])
			copy(r[i-1][:], buf[8:])
		}
	}

	if subtle.ConstantTimeCompare(a[:], defaultIV[:]) != 1 {
		return nil, fmt.Errorf("ocrypto: key unwrap integrity check failed")
	}

	out := make([]byte, n*8)
	for i := 0; i < n; i++ {
		copy(out[i*8:(i+1)*8], r[i][:])
	}
	return out, nil
}

// WrapKey wraps dataKey (spec: the grant's props-encryption key) under a key
// derived from tokenString, and returns base64-standard-encoded wrapped
// bytes for storage.
func WrapKey(tokenString string, dataKey []byte) (string, error) {
	kek := deriveWrapKey(tokenString)
	wrapped, err := kwWrap(kek, dataKey)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(wrapped), nil
}

// UnwrapKey reverses WrapKey: it re-derives the wrap key from tokenString and
// unwraps wrappedB64. Without the exact tokenString that produced the
// wrapping, this fails the RFC 3394 integrity check.
func UnwrapKey(tokenString, wrappedB64 string) ([]byte, error) {
	wrapped, err := base64.StdEncoding.DecodeString(wrappedB64)
	if err != nil {
		return nil, fmt.Errorf("ocrypto: decoding wrapped key: %w", err)
	}
	kek := deriveWrapKey(tokenString)
	return kwUnwrap(kek, wrapped)
}
