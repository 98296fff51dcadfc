// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package clients

import (
	"context"
	"fmt"

	"github.com/oauthkv/provider/pkg/logger"
	"github.com/oauthkv/provider/pkg/oauth"
	"github.com/oauthkv/provider/pkg/oautherr"
	"github.com/oauthkv/provider/pkg/ockv"
	"github.com/oauthkv/provider/pkg/ocrypto"
)

// Registry implements CRUD and paginated listing of Client records against a
// ockv.Store (spec §4.2).
type Registry struct {
	store ockv.Store
	now   func() int64
}

// NewRegistry constructs a Registry over store.
func NewRegistry(store ockv.Store) *Registry {
	return &Registry{store: store, now: nowUnix}
}

// CreateClient generates a client_id and, for confidential clients, a
// client_secret. Only the SHA-256 hex of the secret is persisted; the
// plaintext secret is returned on NewClientResult and never stored.
func (r *Registry) CreateClient(ctx context.Context, in NewClientInput) (*Client, string, error) {
	if len(in.RedirectURIs) == 0 {
		return nil, "", oautherr.InvalidClientMetadataf("redirect_uris must be non-empty")
	}
	method := in.TokenEndpointAuthMethod
	if method == "" {
		method = oauth.TokenEndpointAuthMethodBasic
	}

	clientID, err := ocrypto.RandomString(ocrypto.ClientIDLength)
	if err != nil {
		return nil, "", fmt.Errorf("clients: generating client_id: %w", err)
	}

	client := &Client{
		ClientID:                clientID,
		RedirectURIs:            in.RedirectURIs,
		TokenEndpointAuthMethod: method,
		GrantTypes:              in.GrantTypes,
		ResponseTypes:           in.ResponseTypes,
		Contacts:                in.Contacts,
		ClientName:              in.ClientName,
		LogoURI:                 in.LogoURI,
		ClientURI:               in.ClientURI,
		PolicyURI:               in.PolicyURI,
		TosURI:                  in.TosURI,
		JWKS:                    in.JWKS,
		RegistrationDate:        r.now(),
	}

	var plaintextSecret string
	if method != oauth.TokenEndpointAuthMethodNone {
		secret, err := ocrypto.RandomString(ocrypto.ClientSecretLength)
		if err != nil {
			return nil, "", fmt.Errorf("clients: generating client_secret: %w", err)
		}
		plaintextSecret = secret
		client.ClientSecret = ocrypto.SHA256Hex(secret)
	}

	if err := r.store.Put(ctx, ockv.ClientKey(clientID), client, 0); err != nil {
		return nil, "", fmt.Errorf("clients: storing client: %w", err)
	}
	logger.Debugw("client registered", "clientId", clientID, "authMethod", method)
	return client, plaintextSecret, nil
}

// GetClient loads a client by id. Returns (nil, nil) if not found.
func (r *Registry) GetClient(ctx context.Context, clientID string) (*Client, error) {
	var c Client
	ok, err := r.store.Get(ctx, ockv.ClientKey(clientID), &c)
	if err != nil {
		return nil, fmt.Errorf("clients: loading client %q: %w", clientID, err)
	}
	if !ok {
		return nil, nil
	}
	return &c, nil
}

// UpdateClient preserves ClientID. If the updated auth method is "none",
// any stored secret is erased, regardless of what NewClientSecret carried.
// If a new secret is supplied for a confidential client, it is re-hashed.
// Returns invalid_client_metadata if the client does not exist.
func (r *Registry) UpdateClient(ctx context.Context, clientID string, in UpdateClientInput) (*Client, error) {
	existing, err := r.GetClient(ctx, clientID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, oautherr.InvalidClientMetadataf("unknown client %q", clientID)
	}

	method := in.TokenEndpointAuthMethod
	if method == "" {
		method = existing.TokenEndpointAuthMethod
	}

	updated := &Client{
		ClientID:                clientID,
		ClientSecret:            existing.ClientSecret,
		RedirectURIs:            in.RedirectURIs,
		TokenEndpointAuthMethod: method,
		GrantTypes:              in.GrantTypes,
		ResponseTypes:           in.ResponseTypes,
		Contacts:                in.Contacts,
		ClientName:              in.ClientName,
		LogoURI:                 in.LogoURI,
		ClientURI:               in.ClientURI,
		PolicyURI:               in.PolicyURI,
		TosURI:                  in.TosURI,
		JWKS:                    in.JWKS,
		RegistrationDate:        existing.RegistrationDate,
	}
	if len(updated.RedirectURIs) == 0 {
		updated.RedirectURIs = existing.RedirectURIs
	}

	switch {
	case method == oauth.TokenEndpointAuthMethodNone:
		updated.ClientSecret = ""
	case in.NewClientSecret != "":
		updated.ClientSecret = ocrypto.SHA256Hex(in.NewClientSecret)
	}

	if err := r.store.Put(ctx, ockv.ClientKey(clientID), updated, 0); err != nil {
		return nil, fmt.Errorf("clients: storing updated client: %w", err)
	}
	return updated, nil
}

// DeleteClient performs a single KV delete. It does not cascade to grants or
// tokens (spec §4.2, §9 Open Question): grants become unreachable via client
// auth but existing tokens keep validating until they expire. Callers that
// want full revocation must enumerate and revoke the client's grants
// themselves.
func (r *Registry) DeleteClient(ctx context.Context, clientID string) error {
	if err := r.store.Delete(ctx, ockv.ClientKey(clientID)); err != nil {
		return fmt.Errorf("clients: deleting client %q: %w", clientID, err)
	}
	logger.Debugw("client deleted", "clientId", clientID)
	return nil
}

// ListResult is one page of ListClients.
type ListResult struct {
	Clients []*Client
	Cursor  string
}

// ListClients pages all registered clients via the store's opaque cursor.
// The returned Cursor is empty once listing is complete.
func (r *Registry) ListClients(ctx context.Context, limit int, cursor string) (*ListResult, error) {
	page, err := r.store.List(ctx, ockv.ClientListPrefix(), ockv.ListOptions{Limit: limit, Cursor: cursor})
	if err != nil {
		return nil, fmt.Errorf("clients: listing clients: %w", err)
	}

	out := make([]*Client, 0, len(page.Keys))
	for _, key := range page.Keys {
		var c Client
		ok, err := r.store.Get(ctx, key, &c)
		if err != nil {
			return nil, fmt.Errorf("clients: loading %q during list: %w", key, err)
		}
		if !ok {
			continue
		}
		out = append(out, &c)
	}

	result := &ListResult{Clients: out}
	if !page.ListComplete {
		result.Cursor = page.Cursor
	}
	return result, nil
}
