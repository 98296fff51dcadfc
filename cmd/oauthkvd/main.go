// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Command oauthkvd is a standalone demo binary embedding pkg/provider: it
// wires an in-memory or Redis-backed KV store, a toy login/consent default
// handler, and a toy API handler behind an OAuthProvider, so the library can
// be exercised end to end without an embedding application.
package main

import (
	"os"

	"github.com/oauthkv/provider/cmd/oauthkvd/app"
	"github.com/oauthkv/provider/pkg/logger"
)

func main() {
	logger.Initialize()
	if err := app.NewRootCmd().Execute(); err != nil {
		logger.Errorf("oauthkvd: %v", err)
		os.Exit(1)
	}
}
