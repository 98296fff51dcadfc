// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package provider

import (
	"encoding/json"
	"net/http"

	"github.com/oauthkv/provider/pkg/oauth"
)

// discoveryCacheMaxAge is the Cache-Control max-age for the discovery
// endpoint, matching the teacher's DefaultDiscoveryCacheMaxAge: metadata is
// static for the lifetime of the process.
const discoveryCacheMaxAge = "public, max-age=3600"

// metadataHandler serves GET /.well-known/oauth-authorization-server
// (spec §4.7).
func (p *OAuthProvider) metadataHandler(w http.ResponseWriter, r *http.Request) {
	origin := requestOrigin(r)

	responseTypes := []string{oauth.ResponseTypeCode}
	if p.opts.AllowImplicitFlow {
		responseTypes = append(responseTypes, oauth.ResponseTypeToken)
	}

	meta := oauth.AuthorizationServerMetadata{
		Issuer:                origin,
		AuthorizationEndpoint: origin + p.opts.AuthorizationEndpointPath,
		TokenEndpoint:         origin + p.opts.TokenEndpointPath,
		RevocationEndpoint:    origin + p.opts.TokenEndpointPath,

		ScopesSupported:         p.opts.ScopesSupported,
		ResponseTypesSupported: responseTypes,
		ResponseModesSupported: []string{oauth.ResponseModeQuery},
		GrantTypesSupported: []string{
			oauth.GrantTypeAuthorizationCode,
			oauth.GrantTypeRefreshToken,
		},
		TokenEndpointAuthMethodsSupported: []string{
			oauth.TokenEndpointAuthMethodBasic,
			oauth.TokenEndpointAuthMethodPost,
			oauth.TokenEndpointAuthMethodNone,
		},
		CodeChallengeMethodsSupported: []string{
			oauth.CodeChallengeMethodPlain,
			oauth.CodeChallengeMethodS256,
		},
	}
	if p.opts.AllowDynamicRegistration {
		meta.RegistrationEndpoint = origin + p.opts.RegistrationEndpointPath
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", discoveryCacheMaxAge)
	w.Header().Set("X-Content-Type-Options", "nosniff")
	_ = json.NewEncoder(w).Encode(meta)
}

// requestOrigin resolves the fully-qualified origin a discovery document's
// paths are resolved against: the scheme (guessed from TLS state/
// X-Forwarded-Proto, matching how the teacher's embedded runner derives its
// issuer behind a reverse proxy) plus the Host header.
func requestOrigin(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	return scheme + "://" + r.Host
}
