// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package tokenendpoint

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oauthkv/provider/pkg/clients"
	"github.com/oauthkv/provider/pkg/grants"
	"github.com/oauthkv/provider/pkg/oauth"
	"github.com/oauthkv/provider/pkg/oautherr"
	"github.com/oauthkv/provider/pkg/ockv"
)

type fixture struct {
	handler  *Handler
	registry *clients.Registry
	helper   *grants.Helper
	store    ockv.Store
}

func newFixture(t *testing.T, allowImplicit bool) *fixture {
	t.Helper()
	store := ockv.NewMemoryStore()
	t.Cleanup(func() { _ = store.Close() })
	reg := clients.NewRegistry(store)
	helper := grants.NewHelper(store, reg, grants.HelperOptions{AllowImplicitFlow: allowImplicit})
	return &fixture{
		handler:  NewHandler(reg, helper),
		registry: reg,
		helper:   helper,
		store:    store,
	}
}

func decodeToken(t *testing.T, w *httptest.ResponseRecorder) tokenResponse {
	t.Helper()
	require.Equal(t, http.StatusOK, w.Code)
	var body tokenResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

// TestFullCodeFlowWithS256PKCE implements scenario S1.
func TestFullCodeFlowWithS256PKCE(t *testing.T) {
	t.Parallel()
	f := newFixture(t, false)
	ctx := t.Context()

	client, secret, err := f.registry.CreateClient(ctx, clients.NewClientInput{
		RedirectURIs:            []string{"https://rp.example/cb"},
		TokenEndpointAuthMethod: oauth.TokenEndpointAuthMethodBasic,
	})
	require.NoError(t, err)

	verifier := "verifier123"
	sum := sha256.Sum256([]byte(verifier))
	challenge := base64.RawURLEncoding.EncodeToString(sum[:])

	authResult, err := f.helper.CompleteAuthorization(ctx, grants.CompleteAuthorizationInput{
		Request: &grants.AuthRequest{
			ResponseType:        oauth.ResponseTypeCode,
			ClientID:            client.ClientID,
			RedirectURI:         "https://rp.example/cb",
			CodeChallenge:       challenge,
			CodeChallengeMethod: oauth.CodeChallengeMethodS256,
		},
		UserID: "u1",
		Scope:  []string{"read"},
		Props:  []byte(`{"sub":"u1"}`),
	})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(authResult.RedirectTo, "https://rp.example/cb?code=u1:"+authResult.GrantID+":"))

	code := strings.TrimPrefix(authResult.RedirectTo, "https://rp.example/cb?code=")

	form := url.Values{}
	form.Set("grant_type", oauth.GrantTypeAuthorizationCode)
	form.Set("code", code)
	form.Set("code_verifier", verifier)
	req := httptest.NewRequest(http.MethodPost, "/token", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(client.ClientID, secret)
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)

	tok := decodeToken(t, w)
	assert.NotEmpty(t, tok.AccessToken)
	assert.Equal(t, "bearer", tok.TokenType)
	assert.NotEmpty(t, tok.RefreshToken)
}

// TestCodeReplay implements scenario S2.
func TestCodeReplay(t *testing.T) {
	t.Parallel()
	f := newFixture(t, false)
	ctx := t.Context()

	client, secret, err := f.registry.CreateClient(ctx, clients.NewClientInput{
		RedirectURIs:            []string{"https://rp.example/cb"},
		TokenEndpointAuthMethod: oauth.TokenEndpointAuthMethodBasic,
	})
	require.NoError(t, err)

	authResult, err := f.helper.CompleteAuthorization(ctx, grants.CompleteAuthorizationInput{
		Request: &grants.AuthRequest{
			ResponseType: oauth.ResponseTypeCode,
			ClientID:     client.ClientID,
			RedirectURI:  "https://rp.example/cb",
		},
		UserID: "u1",
		Scope:  []string{"read"},
		Props:  []byte(`{}`),
	})
	require.NoError(t, err)
	code := strings.TrimPrefix(authResult.RedirectTo, "https://rp.example/cb?code=")

	exchange := func() *httptest.ResponseRecorder {
		form := url.Values{}
		form.Set("grant_type", oauth.GrantTypeAuthorizationCode)
		form.Set("code", code)
		form.Set("redirect_uri", "https://rp.example/cb")
		req := httptest.NewRequest(http.MethodPost, "/token", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.SetBasicAuth(client.ClientID, secret)
		w := httptest.NewRecorder()
		f.handler.ServeHTTP(w, req)
		return w
	}

	first := exchange()
	decodeToken(t, first)

	second := exchange()
	assert.Equal(t, http.StatusBadRequest, second.Code)
	body := decodeError(t, second)
	assert.Equal(t, oautherr.InvalidGrant, body["error"])
	assert.Contains(t, body["error_description"], "already used")
}

// TestPKCEMismatch implements scenario S3.
func TestPKCEMismatch(t *testing.T) {
	t.Parallel()
	f := newFixture(t, false)
	ctx := t.Context()

	client, secret, err := f.registry.CreateClient(ctx, clients.NewClientInput{
		RedirectURIs:            []string{"https://rp.example/cb"},
		TokenEndpointAuthMethod: oauth.TokenEndpointAuthMethodBasic,
	})
	require.NoError(t, err)

	sum := sha256.Sum256([]byte("verifier123"))
	challenge := base64.RawURLEncoding.EncodeToString(sum[:])

	authResult, err := f.helper.CompleteAuthorization(ctx, grants.CompleteAuthorizationInput{
		Request: &grants.AuthRequest{
			ResponseType:        oauth.ResponseTypeCode,
			ClientID:            client.ClientID,
			RedirectURI:         "https://rp.example/cb",
			CodeChallenge:       challenge,
			CodeChallengeMethod: oauth.CodeChallengeMethodS256,
		},
		UserID: "u1",
		Scope:  []string{"read"},
		Props:  []byte(`{}`),
	})
	require.NoError(t, err)
	code := strings.TrimPrefix(authResult.RedirectTo, "https://rp.example/cb?code=")

	form := url.Values{}
	form.Set("grant_type", oauth.GrantTypeAuthorizationCode)
	form.Set("code", code)
	form.Set("code_verifier", "wrong")
	req := httptest.NewRequest(http.MethodPost, "/token", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(client.ClientID, secret)
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	body := decodeError(t, w)
	assert.Equal(t, oautherr.InvalidGrant, body["error"])
}

// TestRefreshRotationGrace implements scenario S4.
func TestRefreshRotationGrace(t *testing.T) {
	t.Parallel()
	f := newFixture(t, false)
	ctx := t.Context()

	client, secret, err := f.registry.CreateClient(ctx, clients.NewClientInput{
		RedirectURIs:            []string{"https://rp.example/cb"},
		TokenEndpointAuthMethod: oauth.TokenEndpointAuthMethodBasic,
	})
	require.NoError(t, err)

	authResult, err := f.helper.CompleteAuthorization(ctx, grants.CompleteAuthorizationInput{
		Request: &grants.AuthRequest{
			ResponseType: oauth.ResponseTypeCode,
			ClientID:     client.ClientID,
			RedirectURI:  "https://rp.example/cb",
		},
		UserID: "u1",
		Scope:  []string{"read"},
		Props:  []byte(`{}`),
	})
	require.NoError(t, err)
	code := strings.TrimPrefix(authResult.RedirectTo, "https://rp.example/cb?code=")

	codeForm := url.Values{}
	codeForm.Set("grant_type", oauth.GrantTypeAuthorizationCode)
	codeForm.Set("code", code)
	codeForm.Set("redirect_uri", "https://rp.example/cb")
	req := httptest.NewRequest(http.MethodPost, "/token", strings.NewReader(codeForm.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(client.ClientID, secret)
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)
	r0 := decodeToken(t, w).RefreshToken

	refresh := func(rt string) (*httptest.ResponseRecorder, tokenResponse) {
		form := url.Values{}
		form.Set("grant_type", oauth.GrantTypeRefreshToken)
		form.Set("refresh_token", rt)
		req := httptest.NewRequest(http.MethodPost, "/token", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.SetBasicAuth(client.ClientID, secret)
		w := httptest.NewRecorder()
		f.handler.ServeHTTP(w, req)
		if w.Code == http.StatusOK {
			return w, decodeToken(t, w)
		}
		return w, tokenResponse{}
	}

	_, tok1 := refresh(r0)
	r1 := tok1.RefreshToken
	require.NotEmpty(t, r1)

	_, tok2 := refresh(r1)
	r2 := tok2.RefreshToken
	require.NotEmpty(t, r2)

	wRetry, tok3 := refresh(r1)
	require.Equal(t, http.StatusOK, wRetry.Code)
	r3 := tok3.RefreshToken
	require.NotEmpty(t, r3)
	_ = r2

	wOriginal, _ := refresh(r0)
	assert.Equal(t, http.StatusBadRequest, wOriginal.Code)
	body := decodeError(t, wOriginal)
	assert.Equal(t, oautherr.InvalidGrant, body["error"])
}

func TestUnsupportedGrantType(t *testing.T) {
	t.Parallel()
	f := newFixture(t, false)
	ctx := t.Context()

	client, secret, err := f.registry.CreateClient(ctx, clients.NewClientInput{
		RedirectURIs:            []string{"https://rp.example/cb"},
		TokenEndpointAuthMethod: oauth.TokenEndpointAuthMethodBasic,
	})
	require.NoError(t, err)

	form := url.Values{}
	form.Set("grant_type", "password")
	req := httptest.NewRequest(http.MethodPost, "/token", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(client.ClientID, secret)
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	body := decodeError(t, w)
	assert.Equal(t, oautherr.UnsupportedGrantType, body["error"])
}

func TestWrongMethodRejected(t *testing.T) {
	t.Parallel()
	f := newFixture(t, false)
	req := httptest.NewRequest(http.MethodGet, "/token", nil)
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}
