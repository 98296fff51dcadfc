// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package oauthtoken encodes and parses the token string format shared by
// authorization codes, access tokens, and refresh tokens:
// "{userId}:{grantId}:{secret}". The embedded userId/grantId let the
// receiver compute the KV key in O(1) without a secondary index; the secret
// supplies unguessable entropy. Knowing userId:grantId is never sufficient
// to act as the token — every lookup also requires SHA-256 of the whole
// string to match the stored hash.
package oauthtoken

import (
	"fmt"
	"strings"

	"github.com/oauthkv/provider/pkg/ocrypto"
)

// Token is a parsed token string.
type Token struct {
	UserID  string
	GrantID string
	Secret  string
}

// String reassembles the canonical "{userId}:{grantId}:{secret}" form.
func (t Token) String() string {
	return t.UserID + ":" + t.GrantID + ":" + t.Secret
}

// Hash returns SHA-256 hex of the full token string, the value stored for
// lookup.
func (t Token) Hash() string {
	return ocrypto.SHA256Hex(t.String())
}

// Generate mints a new token string for userID/grantID with a fresh random
// secret.
func Generate(userID, grantID string) (Token, error) {
	secret, err := ocrypto.RandomString(ocrypto.TokenSecretLength)
	if err != nil {
		return Token{}, fmt.Errorf("oauthtoken: generating secret: %w", err)
	}
	return Token{UserID: userID, GrantID: grantID, Secret: secret}, nil
}

// Parse splits s into its three colon-delimited components. Secrets
// themselves never contain colons (they are drawn from [A-Za-z0-9]), so a
// strict 3-part split is unambiguous; userId/grantId are also restricted to
// that alphabet by their generators, so any other shape is rejected outright
// rather than guessed at.
func Parse(s string) (Token, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return Token{}, fmt.Errorf("oauthtoken: malformed token string")
	}
	userID, grantID, secret := parts[0], parts[1], parts[2]
	if userID == "" || grantID == "" || secret == "" {
		return Token{}, fmt.Errorf("oauthtoken: malformed token string")
	}
	return Token{UserID: userID, GrantID: grantID, Secret: secret}, nil
}
