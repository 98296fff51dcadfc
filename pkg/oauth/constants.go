// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package oauth

// Response types (OAuth 2.0 §3.1.1 / OAuth 2.1 draft).
const (
	ResponseTypeCode  = "code"
	ResponseTypeToken = "token"
)

// Grant types (RFC 6749 §1.3).
const (
	GrantTypeAuthorizationCode = "authorization_code"
	GrantTypeRefreshToken      = "refresh_token"
)

// Token endpoint client authentication methods (RFC 8414 §2).
const (
	TokenEndpointAuthMethodBasic = "client_secret_basic"
	TokenEndpointAuthMethodPost  = "client_secret_post"
	TokenEndpointAuthMethodNone  = "none"
)

// PKCE code challenge methods (RFC 7636 §4.3).
const (
	CodeChallengeMethodPlain = "plain"
	CodeChallengeMethodS256  = "S256"
)

// TokenType is the fixed token_type value this server issues.
const TokenType = "bearer"

// ResponseModeQuery is the only response mode this server supports.
const ResponseModeQuery = "query"
