// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// NewRootCmd constructs the oauthkvd root command.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "oauthkvd",
		Short: "Standalone OAuth 2.1 authorization server demo",
		Long:  `oauthkvd runs pkg/provider behind a toy login page and a toy protected API, for exercising the library without an embedding application.`,
	}
	root.AddCommand(serveCmd)
	return root
}

func init() {
	viper.SetEnvPrefix("oauthkvd")
	viper.AutomaticEnv()
}
