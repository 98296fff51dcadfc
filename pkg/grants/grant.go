// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package grants implements the authorization helper consumed by an
// application's default (login/consent) handler: parsing authorization
// requests, completing authorization via the code or implicit flow, and
// listing/revoking a user's grants (spec §4.3). It also owns the Grant and
// AccessTokenRecord entities and the access-token minting routine shared
// with pkg/tokenendpoint.
package grants

import "encoding/json"

// Grant is the persisted record of one authorization
// (key grant:{userId}:{grantId}; TTL=600s while an auth code is unredeemed,
// no TTL afterward).
type Grant struct {
	ID       string          `json:"id"`
	ClientID string          `json:"clientId"`
	UserID   string          `json:"userId"`
	Scope    []string        `json:"scope"`
	Metadata json.RawMessage `json:"metadata,omitempty"`

	// EncryptedProps is base64(AES-GCM ciphertext) of the application props.
	EncryptedProps string `json:"encryptedProps"`

	CreatedAt int64 `json:"createdAt"`

	// Auth-code slot. Present iff the code has not yet been redeemed.
	AuthCodeID          string `json:"authCodeId,omitempty"`
	AuthCodeWrappedKey  string `json:"authCodeWrappedKey,omitempty"`
	CodeChallenge       string `json:"codeChallenge,omitempty"`
	CodeChallengeMethod string `json:"codeChallengeMethod,omitempty"`

	// Current refresh slot.
	RefreshTokenID         string `json:"refreshTokenId,omitempty"`
	RefreshTokenWrappedKey string `json:"refreshTokenWrappedKey,omitempty"`

	// Previous refresh slot (grace window, spec §4.4.2 rule 6).
	PreviousRefreshTokenID         string `json:"previousRefreshTokenId,omitempty"`
	PreviousRefreshTokenWrappedKey string `json:"previousRefreshTokenWrappedKey,omitempty"`
}

// HasAuthCode reports whether the auth-code slot is still populated
// (spec invariant 2: clearing it is irreversible).
func (g *Grant) HasAuthCode() bool {
	return g.AuthCodeID != ""
}

// GrantSummary is the projection returned by ListUserGrants: no encrypted
// data, no token material.
type GrantSummary struct {
	ID        string          `json:"id"`
	ClientID  string          `json:"clientId"`
	UserID    string          `json:"userId"`
	Scope     []string        `json:"scope"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
	CreatedAt int64           `json:"createdAt"`
}

func summarize(g *Grant) *GrantSummary {
	return &GrantSummary{
		ID:        g.ID,
		ClientID:  g.ClientID,
		UserID:    g.UserID,
		Scope:     g.Scope,
		Metadata:  g.Metadata,
		CreatedAt: g.CreatedAt,
	}
}

// GrantSnapshot is the denormalized copy of grant state stored alongside an
// access token so API validation is a single KV read (spec §3, Access token).
type GrantSnapshot struct {
	ClientID       string   `json:"clientId"`
	Scope          []string `json:"scope"`
	EncryptedProps string   `json:"encryptedProps"`
}

// AccessTokenRecord is the persisted record for one issued access token
// (key token:{userId}:{grantId}:{tokenHash}, TTL=accessTokenTTL).
type AccessTokenRecord struct {
	ID        string `json:"id"`
	GrantID   string `json:"grantId"`
	UserID    string `json:"userId"`
	CreatedAt int64  `json:"createdAt"`
	ExpiresAt int64  `json:"expiresAt"`

	// WrappedEncryptionKey is AES-KW(props key, key derived from the access
	// token string).
	WrappedEncryptionKey string `json:"wrappedEncryptionKey"`

	Grant GrantSnapshot `json:"grant"`
}
