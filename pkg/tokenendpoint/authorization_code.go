// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package tokenendpoint

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"net/http"

	"github.com/oauthkv/provider/pkg/clients"
	"github.com/oauthkv/provider/pkg/logger"
	"github.com/oauthkv/provider/pkg/oauth"
	"github.com/oauthkv/provider/pkg/oautherr"
	"github.com/oauthkv/provider/pkg/ocrypto"
	"github.com/oauthkv/provider/pkg/oauthtoken"
)

// authorizationCode implements spec §4.4.1.
func (h *Handler) authorizationCode(w http.ResponseWriter, r *http.Request, client *clients.Client, form map[string]string) error {
	code := form["code"]
	if code == "" {
		return oautherr.InvalidRequestf("missing code")
	}

	tok, err := oauthtoken.Parse(code)
	if err != nil {
		return oautherr.InvalidGrantf("malformed code")
	}

	ctx := r.Context()
	grant, err := h.helper.LoadGrant(ctx, tok.UserID, tok.GrantID)
	if err != nil {
		return err
	}
	if grant == nil {
		return oautherr.InvalidGrantf("code not found or expired")
	}
	if !grant.HasAuthCode() {
		return oautherr.InvalidGrantf("code already used")
	}
	if subtle.ConstantTimeCompare([]byte(tok.Hash()), []byte(grant.AuthCodeID)) != 1 {
		return oautherr.InvalidGrantf("code does not match")
	}
	if grant.ClientID != client.ClientID {
		return oautherr.InvalidGrantf("code was not issued to this client")
	}

	redirectURI := form["redirect_uri"]
	if grant.CodeChallenge == "" && redirectURI == "" {
		return oautherr.InvalidRequestf("redirect_uri is required when PKCE was not used")
	}
	if redirectURI != "" && !oauth.MatchesRedirectURI(client.RedirectURIs, redirectURI) {
		return oautherr.InvalidGrantf("redirect_uri does not match registered value")
	}

	if grant.CodeChallenge != "" && form["code_verifier"] == "" {
		return oautherr.InvalidRequestf("code_verifier is required when PKCE was used")
	}
	if err := verifyPKCE(grant.CodeChallenge, grant.CodeChallengeMethod, form["code_verifier"]); err != nil {
		return err
	}

	dataKey, err := ocrypto.UnwrapKey(code, grant.AuthCodeWrappedKey)
	if err != nil {
		return oautherr.InvalidGrantf("could not unwrap key for code")
	}

	refreshTok, err := oauthtoken.Generate(grant.UserID, grant.ID)
	if err != nil {
		return err
	}
	refreshWrapped, err := ocrypto.WrapKey(refreshTok.String(), dataKey)
	if err != nil {
		return err
	}

	// Mutate and persist the grant before writing the access-token record
	// (spec §5 ordering guarantee): if the access-token write fails after
	// this point, a retry sees invalid_grant("already used") rather than a
	// double issuance.
	grant.AuthCodeID = ""
	grant.AuthCodeWrappedKey = ""
	grant.CodeChallenge = ""
	grant.CodeChallengeMethod = ""
	grant.RefreshTokenID = refreshTok.Hash()
	grant.RefreshTokenWrappedKey = refreshWrapped
	grant.PreviousRefreshTokenID = ""
	grant.PreviousRefreshTokenWrappedKey = ""

	if err := h.helper.SaveGrant(ctx, grant, 0); err != nil {
		return err
	}

	accessToken, _, err := h.helper.MintAccessToken(ctx, grant, dataKey)
	if err != nil {
		return err
	}

	logger.Debugw("authorization_code grant redeemed", "grantId", grant.ID, "clientId", client.ClientID)
	writeTokenResponse(w, accessToken, refreshTok.String(), grant.Scope, h.helper.AccessTokenTTL())
	return nil
}

// verifyPKCE implements spec §4.4.1 step 8. An empty challenge means PKCE
// was not used at authorization time, in which case any verifier (including
// none) is accepted.
func verifyPKCE(challenge, method, verifier string) error {
	if challenge == "" {
		return nil
	}
	if method == "" {
		method = oauth.CodeChallengeMethodPlain
	}
	switch method {
	case oauth.CodeChallengeMethodS256:
		sum := sha256.Sum256([]byte(verifier))
		computed := base64.RawURLEncoding.EncodeToString(sum[:])
		if subtle.ConstantTimeCompare([]byte(computed), []byte(challenge)) != 1 {
			return oautherr.InvalidGrantf("code_verifier does not match code_challenge")
		}
	case oauth.CodeChallengeMethodPlain:
		if subtle.ConstantTimeCompare([]byte(verifier), []byte(challenge)) != 1 {
			return oautherr.InvalidGrantf("code_verifier does not match code_challenge")
		}
	default:
		return oautherr.InvalidGrantf("unsupported code_challenge_method")
	}
	return nil
}
