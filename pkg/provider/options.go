// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package provider

import (
	"fmt"
	"time"

	"github.com/oauthkv/provider/pkg/ockv"
)

// OAuthProviderOptions configures an OAuthProvider. Validation happens at
// construction (New); anything else fails fast (spec §6).
type OAuthProviderOptions struct {
	// Store is the KV backend. Required.
	Store ockv.Store

	// APIRoutePrefixes are the path prefixes routed through the API gate to
	// the API handler. Required, non-empty.
	APIRoutePrefixes []string

	// DefaultHandler serves everything that isn't a first-party endpoint or
	// an API route. Required.
	DefaultHandler HandlerOrFactory

	// APIHandler serves requests matching APIRoutePrefixes once the bearer
	// token has been validated. Required.
	APIHandler HandlerOrFactory

	// TokenEndpointPath, AuthorizationEndpointPath, RegistrationEndpointPath
	// are path-absolute routes for the respective first-party endpoints.
	// TokenEndpointPath defaults to "/oauth/token". AuthorizationEndpointPath
	// defaults to "/oauth/authorize" and is advertised in discovery metadata
	// even though the library does not itself implement an /authorize
	// handler (that is the default handler's job, via the grants.Helper
	// surface). RegistrationEndpointPath defaults to "/oauth/register"; set
	// AllowDynamicRegistration to enable serving it.
	TokenEndpointPath         string
	AuthorizationEndpointPath string
	RegistrationEndpointPath  string

	// AllowDynamicRegistration enables the RFC 7591 registration endpoint.
	// Default false.
	AllowDynamicRegistration bool

	// DisallowPublicClientRegistration rejects token_endpoint_auth_method
	// "none" at registration. Default false.
	DisallowPublicClientRegistration bool

	// AccessTokenTTL is how long minted access tokens live. Default 3600s.
	AccessTokenTTL time.Duration

	// ScopesSupported is advertised in discovery metadata, if set.
	ScopesSupported []string

	// AllowImplicitFlow enables response_type=token. Default false.
	AllowImplicitFlow bool
}

func (o *OAuthProviderOptions) setDefaults() {
	if o.TokenEndpointPath == "" {
		o.TokenEndpointPath = "/oauth/token"
	}
	if o.AuthorizationEndpointPath == "" {
		o.AuthorizationEndpointPath = "/oauth/authorize"
	}
	if o.RegistrationEndpointPath == "" {
		o.RegistrationEndpointPath = "/oauth/register"
	}
	if o.AccessTokenTTL <= 0 {
		o.AccessTokenTTL = 3600 * time.Second
	}
}

func (o *OAuthProviderOptions) validate() error {
	if o.Store == nil {
		return fmt.Errorf("provider: Store is required")
	}
	if len(o.APIRoutePrefixes) == 0 {
		return fmt.Errorf("provider: at least one APIRoutePrefix is required")
	}
	if o.DefaultHandler.isZero() {
		return fmt.Errorf("provider: DefaultHandler is required")
	}
	if o.APIHandler.isZero() {
		return fmt.Errorf("provider: APIHandler is required")
	}
	return nil
}
