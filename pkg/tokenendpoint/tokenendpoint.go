// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package tokenendpoint implements the /token handler: client
// authentication, the authorization_code and refresh_token grants, and PKCE
// verification (spec §4.4).
package tokenendpoint

import (
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/oauthkv/provider/pkg/clients"
	"github.com/oauthkv/provider/pkg/grants"
	"github.com/oauthkv/provider/pkg/oauth"
	"github.com/oauthkv/provider/pkg/oautherr"
)

// Handler implements the /token endpoint.
type Handler struct {
	registry *clients.Registry
	helper   *grants.Helper
}

// NewHandler constructs a Handler.
func NewHandler(registry *clients.Registry, helper *grants.Helper) *Handler {
	return &Handler{registry: registry, helper: helper}
}

// tokenResponse is the wire-format JSON body for a successful grant
// (spec §6 Wire formats).
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	RefreshToken string `json:"refresh_token,omitempty"`
	Scope        string `json:"scope"`
}

func writeTokenResponse(w http.ResponseWriter, accessToken, refreshToken string, scope []string, ttl time.Duration) {
	body := tokenResponse{
		AccessToken:  accessToken,
		TokenType:    oauth.TokenType,
		ExpiresIn:    int(ttl.Seconds()),
		RefreshToken: refreshToken,
		Scope:        joinScope(scope),
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
	_ = writeJSON(w, http.StatusOK, body)
}

func joinScope(scope []string) string {
	return strings.Join(scope, " ")
}

// ServeHTTP implements the /token endpoint's request preamble, client
// authentication, and grant dispatch (spec §4.4).
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	err := h.serve(w, r)
	if err == nil {
		return
	}
	oErr, ok := err.(*oautherr.Error)
	if !ok {
		oErr = oautherr.Wrap(oautherr.InvalidRequest, "internal error", err)
	}
	oautherr.WriteJSON(w, oErr)
}

func (h *Handler) serve(w http.ResponseWriter, r *http.Request) error {
	if r.Method != http.MethodPost {
		return oautherr.InvalidRequestf("method must be POST").WithStatus(http.StatusMethodNotAllowed)
	}
	ct, _, ctErr := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ctErr != nil || ct != "application/x-www-form-urlencoded" {
		return oautherr.InvalidRequestf("content-type must be application/x-www-form-urlencoded")
	}
	if err := r.ParseForm(); err != nil {
		return oautherr.InvalidRequestf("malformed form body")
	}
	form := map[string]string{}
	for k := range r.PostForm {
		form[k] = r.PostForm.Get(k)
	}

	clientID, clientSecret, err := clientCredentials(r, form)
	if err != nil {
		return err
	}
	client, err := h.registry.Authenticate(r.Context(), clientID, clientSecret)
	if err != nil {
		return err
	}

	switch form["grant_type"] {
	case oauth.GrantTypeAuthorizationCode:
		return h.authorizationCode(w, r, client, form)
	case oauth.GrantTypeRefreshToken:
		return h.refreshToken(w, r, client, form)
	default:
		return oautherr.New(oautherr.UnsupportedGrantType, "unknown or missing grant_type")
	}
}

// clientCredentials extracts client_id/client_secret from HTTP Basic auth
// if present, else from the form body (spec §4.4 preamble, RFC 6749 §2.3.1
// percent-decoding).
func clientCredentials(r *http.Request, form map[string]string) (string, string, error) {
	if user, pass, ok := r.BasicAuth(); ok {
		id, err := url.QueryUnescape(user)
		if err != nil {
			return "", "", oautherr.InvalidRequestf("malformed Basic auth client_id")
		}
		secret, err := url.QueryUnescape(pass)
		if err != nil {
			return "", "", oautherr.InvalidRequestf("malformed Basic auth client_secret")
		}
		return id, secret, nil
	}
	return form["client_id"], form["client_secret"], nil
}
