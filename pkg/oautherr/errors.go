// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package oautherr provides the typed error kinds the authorization server
// surfaces to clients, along with their HTTP status codes and JSON rendering.
package oautherr

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// Error kinds. Values are the wire-format "error" field per RFC 6749 §5.2
// and this library's own extensions (invalid_token, not_implemented).
const (
	// InvalidRequest indicates a malformed body/params, wrong method, or
	// oversized payload.
	InvalidRequest = "invalid_request"

	// InvalidClient indicates an unknown client or a missing/wrong secret.
	InvalidClient = "invalid_client"

	// InvalidGrant indicates a bad or expired code, a bad refresh token, a
	// PKCE failure, a redirect-URI mismatch, or a client-id mismatch.
	InvalidGrant = "invalid_grant"

	// UnsupportedGrantType indicates an unrecognized grant_type.
	UnsupportedGrantType = "unsupported_grant_type"

	// InvalidClientMetadata indicates a dynamic-registration validation failure.
	InvalidClientMetadata = "invalid_client_metadata"

	// InvalidToken indicates a missing, malformed, or expired bearer token.
	InvalidToken = "invalid_token"

	// NotImplemented indicates a disabled optional endpoint was invoked.
	NotImplemented = "not_implemented"
)

// statusByKind maps each error kind to its canonical HTTP status per spec §7.
// invalid_request can also resolve to 405/413 for specific causes; callers
// needing those set Status explicitly via WithStatus.
var statusByKind = map[string]int{
	InvalidRequest:         http.StatusBadRequest,
	InvalidClient:          http.StatusUnauthorized,
	InvalidGrant:           http.StatusBadRequest,
	UnsupportedGrantType:   http.StatusBadRequest,
	InvalidClientMetadata:  http.StatusBadRequest,
	InvalidToken:           http.StatusUnauthorized,
	NotImplemented:         http.StatusNotImplemented,
}

// Error is a typed OAuth error carrying the wire-format kind, a
// human-readable description, the HTTP status to respond with, and an
// optional underlying cause for internal diagnostics.
type Error struct {
	// Kind is one of the constants above; it is rendered as the "error" field.
	Kind string

	// Description is rendered as "error_description".
	Description string

	// Status is the HTTP status code to send. Zero means "use the default
	// for Kind".
	Status int

	// Cause is the underlying error, if any. Never rendered to the client.
	Cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Description, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Description)
}

// Unwrap returns the underlying cause, if any.
func (e *Error) Unwrap() error {
	return e.Cause
}

// HTTPStatus returns the status to respond with: e.Status if set, otherwise
// the default for e.Kind, otherwise 400.
func (e *Error) HTTPStatus() int {
	if e.Status != 0 {
		return e.Status
	}
	if s, ok := statusByKind[e.Kind]; ok {
		return s
	}
	return http.StatusBadRequest
}

// New creates an Error of the given kind with the default status for that kind.
func New(kind, description string) *Error {
	return &Error{Kind: kind, Description: description}
}

// Wrap creates an Error of the given kind, attaching cause for diagnostics
// without exposing it to the client.
func Wrap(kind, description string, cause error) *Error {
	return &Error{Kind: kind, Description: description, Cause: cause}
}

// WithStatus returns a copy of e with Status overridden (used for the 405/413
// variants of invalid_request).
func (e *Error) WithStatus(status int) *Error {
	cp := *e
	cp.Status = status
	return &cp
}

// InvalidRequestf builds an invalid_request error.
func InvalidRequestf(format string, args ...any) *Error {
	return New(InvalidRequest, fmt.Sprintf(format, args...))
}

// InvalidClientf builds an invalid_client error.
func InvalidClientf(format string, args ...any) *Error {
	return New(InvalidClient, fmt.Sprintf(format, args...))
}

// InvalidGrantf builds an invalid_grant error.
func InvalidGrantf(format string, args ...any) *Error {
	return New(InvalidGrant, fmt.Sprintf(format, args...))
}

// InvalidClientMetadataf builds an invalid_client_metadata error.
func InvalidClientMetadataf(format string, args ...any) *Error {
	return New(InvalidClientMetadata, fmt.Sprintf(format, args...))
}

// InvalidTokenf builds an invalid_token error.
func InvalidTokenf(format string, args ...any) *Error {
	return New(InvalidToken, fmt.Sprintf(format, args...))
}

// Is reports whether err is an *Error of the given kind.
func Is(err error, kind string) bool {
	var e *Error
	if !asError(err, &e) {
		return false
	}
	return e.Kind == kind
}

func asError(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// body is the wire-format JSON error body: {"error", "error_description"}.
type body struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// WriteJSON renders err as the standard OAuth JSON error body with the
// appropriate HTTP status. For InvalidToken it also sets the
// WWW-Authenticate challenge header per RFC 6750 §3.
func WriteJSON(w http.ResponseWriter, err *Error) {
	if err.Kind == InvalidToken {
		challenge := fmt.Sprintf(`Bearer realm="OAuth", error="invalid_token"`)
		if err.Description != "" {
			challenge = fmt.Sprintf(`Bearer realm="OAuth", error="invalid_token", error_description=%q`, err.Description)
		}
		w.Header().Set("WWW-Authenticate", challenge)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.HTTPStatus())
	_ = json.NewEncoder(w).Encode(body{Error: err.Kind, ErrorDescription: err.Description})
}
