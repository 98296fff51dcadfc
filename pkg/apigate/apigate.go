// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package apigate implements the bearer-token gate in front of an
// application-supplied API handler: parsing the bearer token, looking up
// the access-token record, checking expiry, unwrapping the props key, and
// decrypting props onto the request context (spec §4.5).
package apigate

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/oauthkv/provider/pkg/grants"
	"github.com/oauthkv/provider/pkg/logger"
	"github.com/oauthkv/provider/pkg/oautherr"
	"github.com/oauthkv/provider/pkg/ockv"
	"github.com/oauthkv/provider/pkg/ocrypto"
	"github.com/oauthkv/provider/pkg/oauthtoken"
)

// Gate validates bearer tokens and injects decrypted props into the request
// context before handing off to the API handler.
type Gate struct {
	store ockv.Store
	now   func() time.Time
}

// NewGate constructs a Gate over store.
func NewGate(store ockv.Store) *Gate {
	return &Gate{store: store, now: time.Now}
}

// RequestContext is what the API handler receives for an authenticated
// request: the decrypted per-grant props and a summary of the grant that
// authorized the call.
type RequestContext struct {
	Props    json.RawMessage
	GrantID  string
	ClientID string
	UserID   string
	Scope    []string
}

type contextKey struct{}

// WithRequestContext returns a copy of ctx carrying rc.
func WithRequestContext(ctx context.Context, rc *RequestContext) context.Context {
	return context.WithValue(ctx, contextKey{}, rc)
}

// FromContext returns the RequestContext injected by Gate.Authenticate, if
// any.
func FromContext(ctx context.Context) (*RequestContext, bool) {
	rc, ok := ctx.Value(contextKey{}).(*RequestContext)
	return rc, ok
}

// Authenticate implements spec §4.5 steps 1-4: it parses the bearer token,
// loads the token record, checks expiry, unwraps the props key, and
// decrypts props. On success it returns a context carrying the
// RequestContext; on failure it returns an *oautherr.Error of kind
// invalid_token.
func (g *Gate) Authenticate(r *http.Request) (context.Context, error) {
	tokenString, err := bearerToken(r)
	if err != nil {
		return nil, err
	}

	tok, err := oauthtoken.Parse(tokenString)
	if err != nil {
		return nil, oautherr.InvalidTokenf("malformed bearer token")
	}

	var record grants.AccessTokenRecord
	ok, err := g.store.Get(r.Context(), ockv.TokenKey(tok.UserID, tok.GrantID, tok.Hash()), &record)
	if err != nil {
		return nil, fmt.Errorf("apigate: loading token record: %w", err)
	}
	if !ok {
		logger.Warnw("bearer token rejected", "reason", "not found or expired", "grantId", tok.GrantID)
		return nil, oautherr.InvalidTokenf("token not found or expired")
	}

	if record.ExpiresAt < g.now().Unix() {
		logger.Warnw("bearer token rejected", "reason", "expired", "grantId", tok.GrantID)
		return nil, oautherr.InvalidTokenf("token expired")
	}

	dataKey, err := ocrypto.UnwrapKey(tokenString, record.WrappedEncryptionKey)
	if err != nil {
		logger.Warnw("bearer token rejected", "reason", "key unwrap failed", "grantId", tok.GrantID)
		return nil, oautherr.InvalidTokenf("could not unwrap token key")
	}

	plaintext, err := ocrypto.DecryptProps(dataKey, record.Grant.EncryptedProps)
	if err != nil {
		return nil, oautherr.InvalidTokenf("could not decrypt props")
	}

	rc := &RequestContext{
		Props:    json.RawMessage(plaintext),
		GrantID:  record.GrantID,
		ClientID: record.Grant.ClientID,
		UserID:   record.UserID,
		Scope:    record.Grant.Scope,
	}
	return WithRequestContext(r.Context(), rc), nil
}

// bearerToken extracts the token from an "Authorization: Bearer {token}"
// header.
func bearerToken(r *http.Request) (string, error) {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return "", oautherr.InvalidTokenf("missing Authorization header")
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(auth, prefix) {
		return "", oautherr.InvalidTokenf("Authorization header must use the Bearer scheme")
	}
	token := strings.TrimPrefix(auth, prefix)
	if token == "" {
		return "", oautherr.InvalidTokenf("empty bearer token")
	}
	return token, nil
}

// Middleware wraps next, rejecting unauthenticated requests with the
// invalid_token error and otherwise injecting the RequestContext before
// calling next.
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, err := g.Authenticate(r)
		if err != nil {
			oErr, ok := err.(*oautherr.Error)
			if !ok {
				oErr = oautherr.Wrap(oautherr.InvalidToken, "internal error", err)
			}
			oautherr.WriteJSON(w, oErr)
			return
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
