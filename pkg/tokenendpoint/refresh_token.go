// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package tokenendpoint

import (
	"crypto/subtle"
	"net/http"

	"github.com/oauthkv/provider/pkg/clients"
	"github.com/oauthkv/provider/pkg/logger"
	"github.com/oauthkv/provider/pkg/oautherr"
	"github.com/oauthkv/provider/pkg/ocrypto"
	"github.com/oauthkv/provider/pkg/oauthtoken"
)

// refreshToken implements spec §4.4.2, including the unconditional
// grace-window rotation rule: whichever slot matched (current or previous)
// becomes the new "previous" slot, regardless of which one was presented.
func (h *Handler) refreshToken(w http.ResponseWriter, r *http.Request, client *clients.Client, form map[string]string) error {
	presented := form["refresh_token"]
	if presented == "" {
		return oautherr.InvalidRequestf("missing refresh_token")
	}
	tok, err := oauthtoken.Parse(presented)
	if err != nil {
		return oautherr.InvalidGrantf("malformed refresh_token")
	}

	ctx := r.Context()
	grant, err := h.helper.LoadGrant(ctx, tok.UserID, tok.GrantID)
	if err != nil {
		return err
	}
	if grant == nil {
		return oautherr.InvalidGrantf("refresh_token not found or expired")
	}

	hash := tok.Hash()
	var wrappedKey string
	switch {
	case grant.RefreshTokenID != "" && subtle.ConstantTimeCompare([]byte(hash), []byte(grant.RefreshTokenID)) == 1:
		wrappedKey = grant.RefreshTokenWrappedKey
	case grant.PreviousRefreshTokenID != "" && subtle.ConstantTimeCompare([]byte(hash), []byte(grant.PreviousRefreshTokenID)) == 1:
		wrappedKey = grant.PreviousRefreshTokenWrappedKey
	default:
		return oautherr.InvalidGrantf("refresh_token not recognized")
	}
	if grant.ClientID != client.ClientID {
		return oautherr.InvalidGrantf("refresh_token was not issued to this client")
	}

	dataKey, err := ocrypto.UnwrapKey(presented, wrappedKey)
	if err != nil {
		return oautherr.InvalidGrantf("could not unwrap key for refresh_token")
	}

	newRefresh, err := oauthtoken.Generate(grant.UserID, grant.ID)
	if err != nil {
		return err
	}
	newWrapped, err := ocrypto.WrapKey(newRefresh.String(), dataKey)
	if err != nil {
		return err
	}

	// Rotation is unconditional: whichever slot matched becomes "previous",
	// so a client retrying the same refresh succeeds exactly twice in
	// sequence (spec §4.4.2 rule 6). Persist before minting the access
	// token, matching the ordering guarantee in §5.
	grant.PreviousRefreshTokenID = hash
	grant.PreviousRefreshTokenWrappedKey = wrappedKey
	grant.RefreshTokenID = newRefresh.Hash()
	grant.RefreshTokenWrappedKey = newWrapped

	if err := h.helper.SaveGrant(ctx, grant, 0); err != nil {
		return err
	}

	accessToken, _, err := h.helper.MintAccessToken(ctx, grant, dataKey)
	if err != nil {
		return err
	}

	logger.Debugw("refresh_token grant rotated", "grantId", grant.ID, "clientId", client.ClientID)
	writeTokenResponse(w, accessToken, newRefresh.String(), grant.Scope, h.helper.AccessTokenTTL())
	return nil
}
