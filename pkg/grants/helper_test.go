// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package grants

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oauthkv/provider/pkg/clients"
	"github.com/oauthkv/provider/pkg/oauth"
	"github.com/oauthkv/provider/pkg/ockv"
	"github.com/oauthkv/provider/pkg/ocrypto"
)

func newTestHelper(t *testing.T, opts HelperOptions) (*Helper, *clients.Registry) {
	t.Helper()
	store := ockv.NewMemoryStore()
	t.Cleanup(func() { _ = store.Close() })
	reg := clients.NewRegistry(store)
	return NewHelper(store, reg, opts), reg
}

func reqWithQuery(q url.Values) *http.Request {
	r, _ := http.NewRequest(http.MethodGet, "https://as.example/authorize?"+q.Encode(), nil)
	return r
}

func TestParseAuthRequest_ScopeSplitAndDefaults(t *testing.T) {
	t.Parallel()
	h, _ := newTestHelper(t, HelperOptions{})

	q := url.Values{}
	q.Set("response_type", "code")
	q.Set("client_id", "c1")
	q.Set("redirect_uri", "https://rp.example/cb")
	q.Set("scope", "read  write")
	q.Set("state", "xyz")

	req, err := h.ParseAuthRequest(reqWithQuery(q))
	require.NoError(t, err)
	assert.Equal(t, []string{"read", "write"}, req.Scope)
	assert.Equal(t, oauth.CodeChallengeMethodPlain, req.CodeChallengeMethod)
	assert.Equal(t, "xyz", req.State)
}

func TestParseAuthRequest_ImplicitDisabledRejected(t *testing.T) {
	t.Parallel()
	h, _ := newTestHelper(t, HelperOptions{AllowImplicitFlow: false})

	q := url.Values{}
	q.Set("response_type", "token")
	_, err := h.ParseAuthRequest(reqWithQuery(q))
	require.Error(t, err)
}

func TestCompleteAuthorization_CodeFlow(t *testing.T) {
	t.Parallel()
	h, _ := newTestHelper(t, HelperOptions{})
	ctx := context.Background()

	req := &AuthRequest{
		ResponseType:        oauth.ResponseTypeCode,
		ClientID:            "c1",
		RedirectURI:         "https://rp.example/cb",
		State:               "xyz",
		CodeChallenge:       "challenge",
		CodeChallengeMethod: oauth.CodeChallengeMethodS256,
	}
	result, err := h.CompleteAuthorization(ctx, CompleteAuthorizationInput{
		Request: req,
		UserID:  "u1",
		Scope:   []string{"read"},
		Props:   []byte(`{"sub":"u1"}`),
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(result.RedirectTo, "https://rp.example/cb?code=u1:"+result.GrantID+":"))
	assert.Contains(t, result.RedirectTo, "&state=xyz")

	grant, err := h.LoadGrant(ctx, "u1", result.GrantID)
	require.NoError(t, err)
	require.NotNil(t, grant)
	assert.True(t, grant.HasAuthCode())
	assert.Equal(t, "challenge", grant.CodeChallenge)
}

func TestCompleteAuthorization_ImplicitFlow(t *testing.T) {
	t.Parallel()
	h, _ := newTestHelper(t, HelperOptions{AllowImplicitFlow: true})
	ctx := context.Background()

	req := &AuthRequest{
		ResponseType: oauth.ResponseTypeToken,
		ClientID:     "c1",
		RedirectURI:  "https://rp.example/cb",
		State:        "xyz",
	}
	result, err := h.CompleteAuthorization(ctx, CompleteAuthorizationInput{
		Request: req,
		UserID:  "u1",
		Scope:   []string{"read"},
		Props:   []byte(`{}`),
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(result.RedirectTo, "https://rp.example/cb#"))
	assert.Contains(t, result.RedirectTo, "access_token=u1:"+result.GrantID)
	assert.Contains(t, result.RedirectTo, "token_type=bearer")
	assert.Contains(t, result.RedirectTo, "expires_in=3600")
	assert.Contains(t, result.RedirectTo, "state=xyz")

	grant, err := h.LoadGrant(ctx, "u1", result.GrantID)
	require.NoError(t, err)
	assert.False(t, grant.HasAuthCode())
}

func TestListUserGrants_PagesAndProjects(t *testing.T) {
	t.Parallel()
	h, _ := newTestHelper(t, HelperOptions{})
	ctx := context.Background()

	for i := 0; i < 7; i++ {
		_, err := h.CompleteAuthorization(ctx, CompleteAuthorizationInput{
			Request: &AuthRequest{ResponseType: oauth.ResponseTypeCode, ClientID: "c1", RedirectURI: "https://rp.example/cb"},
			UserID:  "u1",
			Scope:   []string{"read"},
			Props:   []byte(`{}`),
		})
		require.NoError(t, err)
	}
	// a grant belonging to a different user must not leak into u1's listing
	_, err := h.CompleteAuthorization(ctx, CompleteAuthorizationInput{
		Request: &AuthRequest{ResponseType: oauth.ResponseTypeCode, ClientID: "c1", RedirectURI: "https://rp.example/cb"},
		UserID:  "u2",
		Scope:   []string{"read"},
		Props:   []byte(`{}`),
	})
	require.NoError(t, err)

	seen := map[string]bool{}
	cursor := ""
	for {
		page, next, err := h.ListUserGrants(ctx, "u1", 3, cursor)
		require.NoError(t, err)
		for _, g := range page {
			seen[g.ID] = true
			assert.Equal(t, "u1", g.UserID)
		}
		if next == "" {
			break
		}
		cursor = next
	}
	assert.Len(t, seen, 7)
}

func TestRevokeGrant_DrainsTokensAndDeletesGrant(t *testing.T) {
	t.Parallel()
	h, _ := newTestHelper(t, HelperOptions{})
	ctx := context.Background()

	result, err := h.CompleteAuthorization(ctx, CompleteAuthorizationInput{
		Request: &AuthRequest{ResponseType: oauth.ResponseTypeCode, ClientID: "c1", RedirectURI: "https://rp.example/cb"},
		UserID:  "u1",
		Scope:   []string{"read"},
		Props:   []byte(`{}`),
	})
	require.NoError(t, err)

	grant, err := h.LoadGrant(ctx, "u1", result.GrantID)
	require.NoError(t, err)
	dataKey, err := ocrypto.GenerateDataKey()
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, _, err := h.MintAccessToken(ctx, grant, dataKey)
		require.NoError(t, err)
	}

	require.NoError(t, h.RevokeGrant(ctx, "u1", result.GrantID))

	got, err := h.LoadGrant(ctx, "u1", result.GrantID)
	require.NoError(t, err)
	assert.Nil(t, got)

	page, err := h.store.List(ctx, ockv.TokenListPrefix("u1", result.GrantID), ockv.ListOptions{})
	require.NoError(t, err)
	assert.Empty(t, page.Keys)
}
