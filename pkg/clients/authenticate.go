// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package clients

import (
	"context"
	"crypto/subtle"

	"github.com/oauthkv/provider/pkg/logger"
	"github.com/oauthkv/provider/pkg/oauth"
	"github.com/oauthkv/provider/pkg/oautherr"
	"github.com/oauthkv/provider/pkg/ocrypto"
)

// Authenticate loads clientID and validates the supplied secret against
// spec §4.4's client-authentication rule: public clients skip secret
// checking; confidential clients require a secret whose SHA-256 hex matches
// the stored hash. Any failure returns invalid_client.
func (r *Registry) Authenticate(ctx context.Context, clientID, clientSecret string) (*Client, error) {
	client, err := r.GetClient(ctx, clientID)
	if err != nil {
		return nil, err
	}
	if client == nil {
		logger.Warnw("client authentication failed", "clientId", clientID, "reason", "unknown client")
		return nil, oautherr.InvalidClientf("unknown client")
	}
	if client.TokenEndpointAuthMethod == oauth.TokenEndpointAuthMethodNone {
		return client, nil
	}
	if clientSecret == "" {
		logger.Warnw("client authentication failed", "clientId", clientID, "reason", "missing client_secret")
		return nil, oautherr.InvalidClientf("missing client_secret")
	}
	got := ocrypto.SHA256Hex(clientSecret)
	if subtle.ConstantTimeCompare([]byte(got), []byte(client.ClientSecret)) != 1 {
		logger.Warnw("client authentication failed", "clientId", clientID, "reason", "secret mismatch")
		return nil, oautherr.InvalidClientf("invalid client_secret")
	}
	return client, nil
}
