// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package oauth contains the OAuth 2.1 vocabulary shared across the
// authorization server's components: response/grant type constants,
// authorization server metadata (RFC 8414), and redirect-URI matching.
package oauth
