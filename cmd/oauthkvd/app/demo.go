// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/oauthkv/provider/pkg/apigate"
	"github.com/oauthkv/provider/pkg/clients"
	"github.com/oauthkv/provider/pkg/grants"
	"github.com/oauthkv/provider/pkg/oauth"
	"github.com/oauthkv/provider/pkg/oautherr"
	"github.com/oauthkv/provider/pkg/provider"
)

// demoDefaultHandler serves GET /oauth/authorize and everything else that
// isn't a first-party or API route: a one-click "login" that approves
// whatever client_id/scope the query string carries for a fixed demo user,
// skipping any real consent UI. It exists purely so the wired provider is
// reachable end to end from a browser; an embedding application replaces
// this with its real login/consent pages (spec §4.3's "default handler").
type demoDefaultHandler struct{}

func (demoDefaultHandler) ServeHTTPX(w http.ResponseWriter, r *http.Request, env *provider.Env) error {
	if r.URL.Path != "/oauth/authorize" {
		http.NotFound(w, r)
		return nil
	}

	authReq, err := env.Grants.ParseAuthRequest(r)
	if err != nil {
		oErr, ok := err.(*oautherr.Error)
		if !ok {
			oErr = oautherr.Wrap(oautherr.InvalidRequest, "internal error", err)
		}
		oautherr.WriteJSON(w, oErr)
		return nil
	}

	client, err := env.Clients.GetClient(r.Context(), authReq.ClientID)
	if err != nil {
		return fmt.Errorf("demo: loading client: %w", err)
	}
	if client == nil {
		oautherr.WriteJSON(w, oautherr.InvalidRequestf("unknown client_id"))
		return nil
	}
	if !oauth.MatchesRedirectURI(client.RedirectURIs, authReq.RedirectURI) {
		oautherr.WriteJSON(w, oautherr.InvalidRequestf("redirect_uri does not match registered value"))
		return nil
	}

	props, _ := json.Marshal(map[string]string{"sub": "demo-user"})
	result, err := env.Grants.CompleteAuthorization(r.Context(), grants.CompleteAuthorizationInput{
		Request: authReq,
		UserID:  "demo-user",
		Scope:   authReq.Scope,
		Props:   props,
	})
	if err != nil {
		return fmt.Errorf("demo: completing authorization: %w", err)
	}

	http.Redirect(w, r, result.RedirectTo, http.StatusFound)
	return nil
}

// demoAPIHandler serves the one protected route this demo exposes: it
// echoes the authenticated request's decrypted props and grant summary,
// proving the bearer token actually unlocked the right data (spec §4.5's
// "API handler").
type demoAPIHandler struct{}

func (demoAPIHandler) ServeHTTPX(w http.ResponseWriter, r *http.Request, _ *provider.Env) error {
	rc, ok := apigate.FromContext(r.Context())
	if !ok {
		http.Error(w, "missing request context", http.StatusInternalServerError)
		return nil
	}
	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(struct {
		Props    json.RawMessage `json:"props"`
		ClientID string          `json:"clientId"`
		UserID   string          `json:"userId"`
		Scope    []string        `json:"scope"`
	}{
		Props:    rc.Props,
		ClientID: rc.ClientID,
		UserID:   rc.UserID,
		Scope:    rc.Scope,
	})
}

// demoRegisterClient seeds a single confidential demo client at startup so
// the server is immediately clickable; returned for the operator to log.
func demoRegisterClient(registry *clients.Registry, redirectURI string) (*clients.Client, string, error) {
	return registry.CreateClient(context.Background(), clients.NewClientInput{
		RedirectURIs:            []string{redirectURI},
		TokenEndpointAuthMethod: oauth.TokenEndpointAuthMethodBasic,
	})
}
