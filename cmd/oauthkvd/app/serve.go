// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/oauthkv/provider/pkg/clients"
	"github.com/oauthkv/provider/pkg/logger"
	"github.com/oauthkv/provider/pkg/ockv"
	"github.com/oauthkv/provider/pkg/provider"
)

const (
	defaultGracefulTimeout = 30 * time.Second
	serverReadTimeout      = 10 * time.Second
	serverWriteTimeout     = 15 * time.Second
	serverIdleTimeout      = 60 * time.Second
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the oauthkvd demo authorization server",
	Long:  `Starts the oauthkvd demo authorization server and listens for HTTP requests.`,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().String("host", "127.0.0.1", "Host address to bind the server to")
	serveCmd.Flags().Int("port", 8080, "Port to bind the server to")
	serveCmd.Flags().String("redis-url", "", "Redis connection URL; empty uses the in-memory store")
	serveCmd.Flags().Duration("access-token-ttl", time.Hour, "Access token lifetime")
	serveCmd.Flags().Bool("allow-implicit-flow", false, "Enable response_type=token")

	for _, name := range []string{"host", "port", "redis-url", "access-token-ttl", "allow-implicit-flow"} {
		if err := viper.BindPFlag(name, serveCmd.Flags().Lookup(name)); err != nil {
			logger.Fatalf("failed to bind %s flag: %v", name, err)
		}
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeStore(); err != nil {
			logger.Warnw("error closing store", "error", err.Error())
		}
	}()

	registry := clients.NewRegistry(store)
	demoClient, demoSecret, err := demoRegisterClient(registry, fmt.Sprintf("http://%s:%d/demo/callback", cfg.Host, cfg.Port))
	if err != nil {
		return fmt.Errorf("oauthkvd: seeding demo client: %w", err)
	}
	logger.Infow("seeded demo client", "clientId", demoClient.ClientID, "clientSecret", demoSecret)

	p, err := provider.New(provider.OAuthProviderOptions{
		Store:                    store,
		APIRoutePrefixes:         []string{"/api"},
		DefaultHandler:           provider.FromHandler(demoDefaultHandler{}),
		APIHandler:               provider.FromHandler(demoAPIHandler{}),
		AllowDynamicRegistration: true,
		AccessTokenTTL:           cfg.AccessTokenTTL,
		AllowImplicitFlow:        cfg.AllowImplicit,
	})
	if err != nil {
		return fmt.Errorf("oauthkvd: constructing provider: %w", err)
	}

	address := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	server := &http.Server{
		Addr:         address,
		Handler:      p,
		ReadTimeout:  serverReadTimeout,
		WriteTimeout: serverWriteTimeout,
		IdleTimeout:  serverIdleTimeout,
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	go func() {
		logger.Infow("oauthkvd listening", "address", address)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("server failed: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down oauthkvd")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), defaultGracefulTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("server forced to shutdown: %v", err)
		return err
	}
	logger.Info("oauthkvd shutdown complete")
	return nil
}

// openStore constructs the KV backend named by cfg: Redis if RedisURL is
// set, otherwise an in-process MemoryStore.
func openStore(cfg *serverConfig) (ockv.Store, func() error, error) {
	if cfg.RedisURL == "" {
		store := ockv.NewMemoryStore()
		return store, store.Close, nil
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("oauthkvd: parsing redis-url: %w", err)
	}
	client := redis.NewClient(opts)
	store := ockv.NewRedisStore(client, cfg.RedisKeyPrefix)
	return store, store.Close, nil
}
