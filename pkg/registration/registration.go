// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package registration implements RFC 7591 dynamic client registration
// (spec §4.6).
package registration

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/oauthkv/provider/pkg/clients"
	"github.com/oauthkv/provider/pkg/oauth"
	"github.com/oauthkv/provider/pkg/oautherr"
)

// maxBodyBytes is the 1 MiB cap on registration request bodies.
const maxBodyBytes = 1 << 20

// Handler implements the /register endpoint.
type Handler struct {
	registry *clients.Registry

	// Endpoint is this handler's own absolute or path-relative URL, used to
	// build registration_client_uri.
	Endpoint string

	// DisallowPublicClientRegistration rejects token_endpoint_auth_method
	// "none" when true.
	DisallowPublicClientRegistration bool
}

// NewHandler constructs a registration Handler.
func NewHandler(registry *clients.Registry, endpoint string, disallowPublicClients bool) *Handler {
	return &Handler{
		registry:                          registry,
		Endpoint:                          endpoint,
		DisallowPublicClientRegistration: disallowPublicClients,
	}
}

// rawRequest is the JSON body shape before field-by-field validation:
// everything comes in as json.RawMessage/any so a wrong-typed field can be
// rejected explicitly rather than silently coerced.
type rawRequest map[string]json.RawMessage

type registrationResponse struct {
	ClientID                string   `json:"client_id"`
	ClientSecret            string   `json:"client_secret,omitempty"`
	ClientIDIssuedAt        int64    `json:"client_id_issued_at"`
	RegistrationClientURI   string   `json:"registration_client_uri"`
	RedirectURIs            []string `json:"redirect_uris"`
	TokenEndpointAuthMethod string   `json:"token_endpoint_auth_method"`
	GrantTypes              []string `json:"grant_types"`
	ResponseTypes           []string `json:"response_types"`
	Contacts                []string `json:"contacts,omitempty"`
	ClientName              string   `json:"client_name,omitempty"`
	LogoURI                 string   `json:"logo_uri,omitempty"`
	ClientURI               string   `json:"client_uri,omitempty"`
	PolicyURI               string   `json:"policy_uri,omitempty"`
	TosURI                  string   `json:"tos_uri,omitempty"`
	JWKS                    string   `json:"jwks,omitempty"`
}

// ServeHTTP implements spec §4.6.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	resp, err := h.register(w, r)
	if err != nil {
		oErr, ok := err.(*oautherr.Error)
		if !ok {
			oErr = oautherr.Wrap(oautherr.InvalidClientMetadata, "internal error", err)
		}
		oautherr.WriteJSON(w, oErr)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(resp)
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) (*registrationResponse, error) {
	if r.Method != http.MethodPost {
		return nil, oautherr.InvalidRequestf("method must be POST").WithStatus(http.StatusMethodNotAllowed)
	}

	limited := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	body, err := io.ReadAll(limited)
	if err != nil {
		return nil, oautherr.InvalidRequestf("request body exceeds 1 MiB limit").WithStatus(http.StatusRequestEntityTooLarge)
	}
	if len(body) > maxBodyBytes {
		return nil, oautherr.InvalidRequestf("request body exceeds 1 MiB limit").WithStatus(http.StatusRequestEntityTooLarge)
	}

	var raw rawRequest
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, oautherr.InvalidClientMetadataf("malformed JSON body")
	}

	redirectURIs, err := stringArrayField(raw, "redirect_uris")
	if err != nil {
		return nil, err
	}
	if len(redirectURIs) == 0 {
		return nil, oautherr.InvalidClientMetadataf("redirect_uris must contain at least one entry")
	}

	authMethod, err := optionalStringField(raw, "token_endpoint_auth_method")
	if err != nil {
		return nil, err
	}
	if authMethod == "" {
		authMethod = oauth.TokenEndpointAuthMethodBasic
	}
	if authMethod == oauth.TokenEndpointAuthMethodNone && h.DisallowPublicClientRegistration {
		return nil, oautherr.InvalidClientMetadataf("public client registration is disabled")
	}

	grantTypes, err := stringArrayField(raw, "grant_types")
	if err != nil {
		return nil, err
	}
	if len(grantTypes) == 0 {
		grantTypes = []string{oauth.GrantTypeAuthorizationCode, oauth.GrantTypeRefreshToken}
	}

	responseTypes, err := stringArrayField(raw, "response_types")
	if err != nil {
		return nil, err
	}
	if len(responseTypes) == 0 {
		responseTypes = []string{oauth.ResponseTypeCode}
	}

	contacts, err := stringArrayField(raw, "contacts")
	if err != nil {
		return nil, err
	}

	clientName, err := optionalStringField(raw, "client_name")
	if err != nil {
		return nil, err
	}
	logoURI, err := optionalStringField(raw, "logo_uri")
	if err != nil {
		return nil, err
	}
	clientURI, err := optionalStringField(raw, "client_uri")
	if err != nil {
		return nil, err
	}
	policyURI, err := optionalStringField(raw, "policy_uri")
	if err != nil {
		return nil, err
	}
	tosURI, err := optionalStringField(raw, "tos_uri")
	if err != nil {
		return nil, err
	}
	jwks, err := optionalStringField(raw, "jwks")
	if err != nil {
		return nil, err
	}

	client, secret, err := h.registry.CreateClient(r.Context(), clients.NewClientInput{
		RedirectURIs:            redirectURIs,
		TokenEndpointAuthMethod: authMethod,
		GrantTypes:              grantTypes,
		ResponseTypes:           responseTypes,
		Contacts:                contacts,
		ClientName:              clientName,
		LogoURI:                 logoURI,
		ClientURI:               clientURI,
		PolicyURI:               policyURI,
		TosURI:                  tosURI,
		JWKS:                    jwks,
	})
	if err != nil {
		return nil, err
	}

	return &registrationResponse{
		ClientID:                client.ClientID,
		ClientSecret:            secret,
		ClientIDIssuedAt:        client.RegistrationDate,
		RegistrationClientURI:   h.Endpoint + "/" + client.ClientID,
		RedirectURIs:            client.RedirectURIs,
		TokenEndpointAuthMethod: client.TokenEndpointAuthMethod,
		GrantTypes:              client.GrantTypes,
		ResponseTypes:           client.ResponseTypes,
		Contacts:                client.Contacts,
		ClientName:              client.ClientName,
		LogoURI:                 client.LogoURI,
		ClientURI:               client.ClientURI,
		PolicyURI:               client.PolicyURI,
		TosURI:                  client.TosURI,
		JWKS:                    client.JWKS,
	}, nil
}
