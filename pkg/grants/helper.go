// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package grants

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/oauthkv/provider/pkg/clients"
	"github.com/oauthkv/provider/pkg/logger"
	"github.com/oauthkv/provider/pkg/oauth"
	"github.com/oauthkv/provider/pkg/oautherr"
	"github.com/oauthkv/provider/pkg/ockv"
	"github.com/oauthkv/provider/pkg/ocrypto"
	"github.com/oauthkv/provider/pkg/oauthtoken"
)

// authCodeTTL is the KV TTL on a grant while its auth code is unredeemed
// (spec §4.3, "Code flow").
const authCodeTTL = 600 * time.Second

// HelperOptions configures a Helper.
type HelperOptions struct {
	// AccessTokenTTL is how long minted access tokens live. Default 3600s if
	// zero.
	AccessTokenTTL time.Duration

	// AllowImplicitFlow enables response_type=token. Default false.
	AllowImplicitFlow bool
}

// Helper implements the authorization flow consumed by an application's
// default handler (spec §4.3).
type Helper struct {
	store    ockv.Store
	registry *clients.Registry
	opts     HelperOptions
	now      func() time.Time
}

// NewHelper constructs a Helper over store, using registry to resolve
// clients.
func NewHelper(store ockv.Store, registry *clients.Registry, opts HelperOptions) *Helper {
	if opts.AccessTokenTTL <= 0 {
		opts.AccessTokenTTL = 3600 * time.Second
	}
	return &Helper{store: store, registry: registry, opts: opts, now: time.Now}
}

// Client is a passthrough to the client registry so a default handler can
// render a client's name/logo on a consent screen without importing
// pkg/clients directly.
func (h *Helper) Client(ctx context.Context, clientID string) (*clients.Client, error) {
	return h.registry.GetClient(ctx, clientID)
}

// AuthRequest is the parsed form of an authorization request.
type AuthRequest struct {
	ResponseType        string
	ClientID            string
	RedirectURI         string
	Scope               []string
	State               string
	CodeChallenge       string
	CodeChallengeMethod string
}

// ParseAuthRequest extracts response_type, client_id, redirect_uri, scope
// (space-split, empties dropped), state, code_challenge, and
// code_challenge_method (default "plain") from r's query parameters. Fails
// with unsupported_response_type-shaped invalid_request if response_type is
// "token" and implicit flow is disabled.
func (h *Helper) ParseAuthRequest(r *http.Request) (*AuthRequest, error) {
	q := r.URL.Query()

	responseType := q.Get("response_type")
	if responseType == oauth.ResponseTypeToken && !h.opts.AllowImplicitFlow {
		return nil, oautherr.InvalidRequestf("implicit flow is disabled")
	}

	var scope []string
	for _, s := range strings.Fields(q.Get("scope")) {
		if s != "" {
			scope = append(scope, s)
		}
	}

	method := q.Get("code_challenge_method")
	if method == "" {
		method = oauth.CodeChallengeMethodPlain
	}

	return &AuthRequest{
		ResponseType:        responseType,
		ClientID:            q.Get("client_id"),
		RedirectURI:         q.Get("redirect_uri"),
		Scope:               scope,
		State:               q.Get("state"),
		CodeChallenge:       q.Get("code_challenge"),
		CodeChallengeMethod: method,
	}, nil
}

// CompleteAuthorizationInput is the input to CompleteAuthorization.
type CompleteAuthorizationInput struct {
	Request  *AuthRequest
	UserID   string
	Metadata json.RawMessage
	Scope    []string
	Props    []byte
}

// CompletionResult is the outcome of CompleteAuthorization: where to
// redirect the user agent.
type CompletionResult struct {
	RedirectTo string
	GrantID    string
}

// CompleteAuthorization implements both branches of spec §4.3: the code flow
// (response_type=code) and the implicit flow (response_type=token, if
// allowed).
func (h *Helper) CompleteAuthorization(ctx context.Context, in CompleteAuthorizationInput) (*CompletionResult, error) {
	grantID, err := ocrypto.RandomString(ocrypto.GrantIDLength)
	if err != nil {
		return nil, fmt.Errorf("grants: generating grant id: %w", err)
	}

	dataKey, err := ocrypto.GenerateDataKey()
	if err != nil {
		return nil, fmt.Errorf("grants: generating data key: %w", err)
	}
	encryptedProps, err := ocrypto.EncryptProps(dataKey, in.Props)
	if err != nil {
		return nil, fmt.Errorf("grants: encrypting props: %w", err)
	}

	grant := &Grant{
		ID:             grantID,
		ClientID:       in.Request.ClientID,
		UserID:         in.UserID,
		Scope:          in.Scope,
		Metadata:       in.Metadata,
		EncryptedProps: encryptedProps,
		CreatedAt:      h.now().Unix(),
	}

	if in.Request.ResponseType == oauth.ResponseTypeToken {
		return h.completeImplicit(ctx, grant, dataKey, in.Request)
	}
	return h.completeCode(ctx, grant, dataKey, in.Request)
}

func (h *Helper) completeCode(ctx context.Context, grant *Grant, dataKey []byte, req *AuthRequest) (*CompletionResult, error) {
	code, err := oauthtoken.Generate(grant.UserID, grant.ID)
	if err != nil {
		return nil, fmt.Errorf("grants: generating auth code: %w", err)
	}
	wrapped, err := ocrypto.WrapKey(code.String(), dataKey)
	if err != nil {
		return nil, fmt.Errorf("grants: wrapping key for auth code: %w", err)
	}

	grant.AuthCodeID = code.Hash()
	grant.AuthCodeWrappedKey = wrapped
	grant.CodeChallenge = req.CodeChallenge
	grant.CodeChallengeMethod = req.CodeChallengeMethod

	if err := h.store.Put(ctx, ockv.GrantKey(grant.UserID, grant.ID), grant, authCodeTTL); err != nil {
		return nil, fmt.Errorf("grants: storing grant: %w", err)
	}

	redirect := appendQuery(req.RedirectURI, "code", code.String())
	if req.State != "" {
		redirect = appendQuery(redirect, "state", req.State)
	}
	logger.Debugw("authorization code issued", "grantId", grant.ID, "clientId", grant.ClientID, "userId", grant.UserID)
	return &CompletionResult{RedirectTo: redirect, GrantID: grant.ID}, nil
}

func (h *Helper) completeImplicit(ctx context.Context, grant *Grant, dataKey []byte, req *AuthRequest) (*CompletionResult, error) {
	if err := h.store.Put(ctx, ockv.GrantKey(grant.UserID, grant.ID), grant, 0); err != nil {
		return nil, fmt.Errorf("grants: storing grant: %w", err)
	}

	tokenString, _, err := h.MintAccessToken(ctx, grant, dataKey)
	if err != nil {
		return nil, err
	}

	redirect := req.RedirectURI + "#" +
		"access_token=" + tokenString +
		"&token_type=" + oauth.TokenType +
		"&expires_in=" + fmt.Sprint(int(h.opts.AccessTokenTTL.Seconds())) +
		"&scope=" + strings.Join(grant.Scope, " ")
	if req.State != "" {
		redirect += "&state=" + req.State
	}
	logger.Debugw("implicit grant issued", "grantId", grant.ID, "clientId", grant.ClientID, "userId", grant.UserID)
	return &CompletionResult{RedirectTo: redirect, GrantID: grant.ID}, nil
}

func appendQuery(uri, key, value string) string {
	sep := "?"
	if strings.Contains(uri, "?") {
		sep = "&"
	}
	return uri + sep + key + "=" + value
}

// LoadGrant loads a grant by userID/grantID. Returns (nil, nil) if missing.
func (h *Helper) LoadGrant(ctx context.Context, userID, grantID string) (*Grant, error) {
	var g Grant
	ok, err := h.store.Get(ctx, ockv.GrantKey(userID, grantID), &g)
	if err != nil {
		return nil, fmt.Errorf("grants: loading grant: %w", err)
	}
	if !ok {
		return nil, nil
	}
	return &g, nil
}

// SaveGrant persists g. ttl<=0 means no expiry (the post-redemption state).
func (h *Helper) SaveGrant(ctx context.Context, g *Grant, ttl time.Duration) error {
	if err := h.store.Put(ctx, ockv.GrantKey(g.UserID, g.ID), g, ttl); err != nil {
		return fmt.Errorf("grants: storing grant: %w", err)
	}
	return nil
}

// AccessTokenTTL returns the configured access-token lifetime.
func (h *Helper) AccessTokenTTL() time.Duration {
	return h.opts.AccessTokenTTL
}

// MintAccessToken generates a fresh access-token string for grant, wraps
// dataKey under it, and writes the AccessTokenRecord with the configured
// TTL. Shared by the implicit flow here and by pkg/tokenendpoint's code and
// refresh grant handlers.
func (h *Helper) MintAccessToken(ctx context.Context, grant *Grant, dataKey []byte) (string, *AccessTokenRecord, error) {
	tok, err := oauthtoken.Generate(grant.UserID, grant.ID)
	if err != nil {
		return "", nil, fmt.Errorf("grants: generating access token: %w", err)
	}
	wrapped, err := ocrypto.WrapKey(tok.String(), dataKey)
	if err != nil {
		return "", nil, fmt.Errorf("grants: wrapping key for access token: %w", err)
	}

	now := h.now()
	record := &AccessTokenRecord{
		ID:                   tok.Hash(),
		GrantID:              grant.ID,
		UserID:               grant.UserID,
		CreatedAt:            now.Unix(),
		ExpiresAt:            now.Add(h.opts.AccessTokenTTL).Unix(),
		WrappedEncryptionKey: wrapped,
		Grant: GrantSnapshot{
			ClientID:       grant.ClientID,
			Scope:          grant.Scope,
			EncryptedProps: grant.EncryptedProps,
		},
	}

	key := ockv.TokenKey(grant.UserID, grant.ID, tok.Hash())
	if err := h.store.Put(ctx, key, record, h.opts.AccessTokenTTL); err != nil {
		return "", nil, fmt.Errorf("grants: storing access token: %w", err)
	}
	return tok.String(), record, nil
}

// ListUserGrants paginates grant:{userId}: and projects each record to a
// GrantSummary.
func (h *Helper) ListUserGrants(ctx context.Context, userID string, limit int, cursor string) ([]*GrantSummary, string, error) {
	page, err := h.store.List(ctx, ockv.GrantListPrefix(userID), ockv.ListOptions{Limit: limit, Cursor: cursor})
	if err != nil {
		return nil, "", fmt.Errorf("grants: listing grants: %w", err)
	}

	out := make([]*GrantSummary, 0, len(page.Keys))
	for _, key := range page.Keys {
		var g Grant
		ok, err := h.store.Get(ctx, key, &g)
		if err != nil {
			return nil, "", fmt.Errorf("grants: loading %q during list: %w", key, err)
		}
		if !ok {
			continue
		}
		out = append(out, summarize(&g))
	}

	next := ""
	if !page.ListComplete {
		next = page.Cursor
	}
	return out, next, nil
}

// RevokeGrant iterates all KV pages under token:{userId}:{grantId}: and
// deletes them, draining the cursor to completion, then deletes the grant
// itself (spec §4.3).
func (h *Helper) RevokeGrant(ctx context.Context, userID, grantID string) error {
	prefix := ockv.TokenListPrefix(userID, grantID)
	cursor := ""
	for {
		page, err := h.store.List(ctx, prefix, ockv.ListOptions{Cursor: cursor})
		if err != nil {
			return fmt.Errorf("grants: listing tokens for revocation: %w", err)
		}
		for _, key := range page.Keys {
			if err := h.store.Delete(ctx, key); err != nil {
				return fmt.Errorf("grants: deleting token %q: %w", key, err)
			}
		}
		if page.ListComplete {
			break
		}
		cursor = page.Cursor
	}

	if err := h.store.Delete(ctx, ockv.GrantKey(userID, grantID)); err != nil {
		return fmt.Errorf("grants: deleting grant: %w", err)
	}
	logger.Debugw("grant revoked", "grantId", grantID, "userId", userID)
	return nil
}
