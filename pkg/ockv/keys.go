// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package ockv

// Key prefixes and builders for the three persisted entity types (spec §3).
const (
	clientPrefix = "client:"
	grantPrefix  = "grant:"
	tokenPrefix  = "token:"
)

// ClientKey returns the key for a client record: client:{clientId}.
func ClientKey(clientID string) string {
	return clientPrefix + clientID
}

// ClientListPrefix returns the prefix used to page all clients.
func ClientListPrefix() string {
	return clientPrefix
}

// GrantKey returns the key for a grant record: grant:{userId}:{grantId}.
func GrantKey(userID, grantID string) string {
	return grantPrefix + userID + ":" + grantID
}

// GrantListPrefix returns the prefix used to page a user's grants:
// grant:{userId}:.
func GrantListPrefix(userID string) string {
	return grantPrefix + userID + ":"
}

// TokenKey returns the key for an access-token record:
// token:{userId}:{grantId}:{tokenHash}.
func TokenKey(userID, grantID, tokenHash string) string {
	return tokenPrefix + userID + ":" + grantID + ":" + tokenHash
}

// TokenListPrefix returns the prefix used to page all access tokens for a
// grant: token:{userId}:{grantId}:.
func TokenListPrefix(userID, grantID string) string {
	return tokenPrefix + userID + ":" + grantID + ":"
}
