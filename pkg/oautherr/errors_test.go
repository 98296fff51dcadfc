// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package oautherr

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{
			name: "with cause",
			err:  &Error{Kind: InvalidGrant, Description: "already used", Cause: errors.New("kv miss")},
			want: "invalid_grant: already used: kv miss",
		},
		{
			name: "without cause",
			err:  &Error{Kind: InvalidClient, Description: "unknown client"},
			want: "invalid_client: unknown client",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestError_HTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusUnauthorized, InvalidClientf("x").HTTPStatus())
	assert.Equal(t, http.StatusBadRequest, InvalidGrantf("x").HTTPStatus())
	assert.Equal(t, http.StatusNotImplemented, New(NotImplemented, "disabled").HTTPStatus())
	assert.Equal(t, http.StatusMethodNotAllowed, InvalidRequestf("bad method").WithStatus(http.StatusMethodNotAllowed).HTTPStatus())
}

func TestIs(t *testing.T) {
	err := InvalidGrantf("bad code")
	assert.True(t, Is(err, InvalidGrant))
	assert.False(t, Is(err, InvalidClient))

	wrapped := errors.Join(errors.New("context"), err)
	assert.False(t, Is(wrapped, InvalidGrant)) // errors.Join doesn't chain via Unwrap() error

	assert.False(t, Is(errors.New("plain"), InvalidGrant))
}

func TestWriteJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteJSON(rec, InvalidTokenf("token expired"))

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Contains(t, rec.Header().Get("WWW-Authenticate"), `error="invalid_token"`)
	require.Contains(t, rec.Header().Get("WWW-Authenticate"), `error_description="token expired"`)

	var b body
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &b))
	assert.Equal(t, InvalidToken, b.Error)
	assert.Equal(t, "token expired", b.ErrorDescription)
}

func TestWriteJSON_NoDescriptionOnChallenge(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteJSON(rec, New(InvalidToken, ""))
	assert.Equal(t, `Bearer realm="OAuth", error="invalid_token"`, rec.Header().Get("WWW-Authenticate"))
}
