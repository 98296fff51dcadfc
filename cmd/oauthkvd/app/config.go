// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/spf13/viper"
)

// serverConfig is oauthkvd's process configuration. Values resolve in two
// layers: env.Parse populates OAUTHKVD_* environment variables onto the
// struct tags below; any flag the operator sets on `serve` is bound through
// viper and takes precedence, matching the teacher's
// env-tagged-struct-plus-Viper-file-layering convention for CLI config.
type serverConfig struct {
	Host           string        `env:"HOST" envDefault:"127.0.0.1"`
	Port           int           `env:"PORT" envDefault:"8080"`
	RedisURL       string        `env:"REDIS_URL"`
	RedisKeyPrefix string        `env:"REDIS_KEY_PREFIX" envDefault:"oauthkv:"`
	AccessTokenTTL time.Duration `env:"ACCESS_TOKEN_TTL" envDefault:"1h"`
	AllowImplicit  bool          `env:"ALLOW_IMPLICIT_FLOW" envDefault:"false"`
}

// loadConfig resolves serverConfig from the environment, then overlays any
// values the operator passed as `serve` flags (bound into viper by init()).
func loadConfig() (*serverConfig, error) {
	cfg := &serverConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("oauthkvd: parsing environment: %w", err)
	}

	if viper.IsSet("host") {
		cfg.Host = viper.GetString("host")
	}
	if viper.IsSet("port") {
		cfg.Port = viper.GetInt("port")
	}
	if viper.IsSet("redis-url") {
		cfg.RedisURL = viper.GetString("redis-url")
	}
	if viper.IsSet("access-token-ttl") {
		cfg.AccessTokenTTL = viper.GetDuration("access-token-ttl")
	}
	if viper.IsSet("allow-implicit-flow") {
		cfg.AllowImplicit = viper.GetBool("allow-implicit-flow")
	}
	return cfg, nil
}
