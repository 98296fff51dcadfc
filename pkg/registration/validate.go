// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package registration

import (
	"encoding/json"

	"github.com/oauthkv/provider/pkg/oautherr"
)

// optionalStringField returns the value of key if present and string-typed,
// "" if absent, or an error if present with a non-string type.
func optionalStringField(raw rawRequest, key string) (string, error) {
	v, ok := raw[key]
	if !ok {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		return "", oautherr.InvalidClientMetadataf("%s must be a string", key)
	}
	return s, nil
}

// stringArrayField returns the value of key if present and an array of
// strings, nil if absent, or an error if present with a different shape.
func stringArrayField(raw rawRequest, key string) ([]string, error) {
	v, ok := raw[key]
	if !ok {
		return nil, nil
	}
	var arr []string
	if err := json.Unmarshal(v, &arr); err != nil {
		return nil, oautherr.InvalidClientMetadataf("%s must be an array of strings", key)
	}
	return arr, nil
}
