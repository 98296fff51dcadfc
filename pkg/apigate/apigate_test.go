// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package apigate

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oauthkv/provider/pkg/clients"
	"github.com/oauthkv/provider/pkg/grants"
	"github.com/oauthkv/provider/pkg/oauth"
	"github.com/oauthkv/provider/pkg/oautherr"
	"github.com/oauthkv/provider/pkg/ockv"
)

func setupGrant(t *testing.T, props []byte) (*Gate, *grants.Helper, string, string) {
	t.Helper()
	store := ockv.NewMemoryStore()
	t.Cleanup(func() { _ = store.Close() })
	reg := clients.NewRegistry(store)
	helper := grants.NewHelper(store, reg, grants.HelperOptions{AllowImplicitFlow: true})

	client, _, err := reg.CreateClient(t.Context(), clients.NewClientInput{
		RedirectURIs:            []string{"https://rp.example/cb"},
		TokenEndpointAuthMethod: oauth.TokenEndpointAuthMethodNone,
	})
	require.NoError(t, err)

	result, err := helper.CompleteAuthorization(t.Context(), grants.CompleteAuthorizationInput{
		Request: &grants.AuthRequest{
			ResponseType: oauth.ResponseTypeToken,
			ClientID:     client.ClientID,
			RedirectURI:  "https://rp.example/cb",
		},
		UserID: "u1",
		Scope:  []string{"read"},
		Props:  props,
	})
	require.NoError(t, err)

	accessToken := extractFragmentToken(result.RedirectTo)
	return NewGate(store), helper, result.GrantID, accessToken
}

func extractFragmentToken(redirectTo string) string {
	const marker = "access_token="
	start := indexOf(redirectTo, marker) + len(marker)
	end := indexOf(redirectTo[start:], "&")
	if end < 0 {
		return redirectTo[start:]
	}
	return redirectTo[start : start+end]
}

func indexOf(s, sub string) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}

func TestAuthenticate_PropsRoundTrip(t *testing.T) {
	t.Parallel()
	gate, _, _, accessToken := setupGrant(t, []byte(`{"sub":"u1"}`))

	req := httptest.NewRequest(http.MethodGet, "/api/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+accessToken)

	ctx, err := gate.Authenticate(req)
	require.NoError(t, err)

	rc, ok := FromContext(ctx)
	require.True(t, ok)
	assert.JSONEq(t, `{"sub":"u1"}`, string(rc.Props))
}

func TestAuthenticate_MissingBearer(t *testing.T) {
	t.Parallel()
	gate, _, _, _ := setupGrant(t, []byte(`{}`))
	req := httptest.NewRequest(http.MethodGet, "/api/whoami", nil)
	_, err := gate.Authenticate(req)
	require.Error(t, err)
	assert.True(t, oautherr.Is(err, oautherr.InvalidToken))
}

func TestAuthenticate_UnknownToken(t *testing.T) {
	t.Parallel()
	gate, _, _, _ := setupGrant(t, []byte(`{}`))
	req := httptest.NewRequest(http.MethodGet, "/api/whoami", nil)
	req.Header.Set("Authorization", "Bearer u1:ffffffffffffffff:00000000000000000000000000000000")
	_, err := gate.Authenticate(req)
	require.Error(t, err)
	assert.True(t, oautherr.Is(err, oautherr.InvalidToken))
}

// TestRevocationCascade implements scenario S6.
func TestRevocationCascade(t *testing.T) {
	t.Parallel()
	gate, helper, grantID, accessToken := setupGrant(t, []byte(`{}`))

	req := httptest.NewRequest(http.MethodGet, "/api/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+accessToken)
	_, err := gate.Authenticate(req)
	require.NoError(t, err)

	require.NoError(t, helper.RevokeGrant(t.Context(), "u1", grantID))

	_, err = gate.Authenticate(req)
	require.Error(t, err)
	assert.True(t, oautherr.Is(err, oautherr.InvalidToken))
}
