// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package provider wires the token endpoint, API gate, dynamic registration,
// and metadata discovery into a single top-level http.Handler, implementing
// the router and CORS rules of spec §4.8.
package provider

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/oauthkv/provider/pkg/apigate"
	"github.com/oauthkv/provider/pkg/clients"
	"github.com/oauthkv/provider/pkg/grants"
	"github.com/oauthkv/provider/pkg/logger"
	"github.com/oauthkv/provider/pkg/oautherr"
	"github.com/oauthkv/provider/pkg/registration"
	"github.com/oauthkv/provider/pkg/tokenendpoint"
)

// metadataPath is fixed by RFC 8414, not configurable.
const metadataPath = "/.well-known/oauth-authorization-server"

// OAuthProvider is the top-level http.Handler an embedding application
// mounts: it dispatches to metadata discovery, the token endpoint, dynamic
// registration, the API gate, or the application's default handler
// (spec §4.8).
type OAuthProvider struct {
	opts OAuthProviderOptions
	env  *Env
	gate *apigate.Gate

	tokenHandler        *tokenendpoint.Handler
	registrationHandler *registration.Handler

	router chi.Router
}

// New constructs an OAuthProvider. Validation happens here; anything else
// fails fast (spec §6).
func New(opts OAuthProviderOptions) (*OAuthProvider, error) {
	opts.setDefaults()
	if err := opts.validate(); err != nil {
		return nil, err
	}

	registry := clients.NewRegistry(opts.Store)
	helper := grants.NewHelper(opts.Store, registry, grants.HelperOptions{
		AccessTokenTTL:    opts.AccessTokenTTL,
		AllowImplicitFlow: opts.AllowImplicitFlow,
	})

	p := &OAuthProvider{
		opts:         opts,
		env:          &Env{Clients: registry, Grants: helper},
		gate:         apigate.NewGate(opts.Store),
		tokenHandler: tokenendpoint.NewHandler(registry, helper),
	}
	if opts.AllowDynamicRegistration {
		p.registrationHandler = registration.NewHandler(registry, opts.RegistrationEndpointPath, opts.DisallowPublicClientRegistration)
	}
	p.router = p.buildRouter()
	return p, nil
}

// ServeHTTP implements http.Handler.
func (p *OAuthProvider) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p.router.ServeHTTP(w, r)
}

// Env returns the helper surface (spec §6's OAUTH_PROVIDER) so an embedding
// application can drive authorization from outside an HTTP handler (e.g. a
// CLI or a test).
func (p *OAuthProvider) Env() *Env {
	return p.env
}

func (p *OAuthProvider) buildRouter() chi.Router {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware)

	r.Group(func(r chi.Router) {
		r.Use(corsMiddleware)

		r.Get(metadataPath, p.metadataHandler)
		r.Post(p.opts.TokenEndpointPath, p.tokenHandler.ServeHTTP)
		r.HandleFunc(p.opts.RegistrationEndpointPath, p.registrationDispatch)

		for _, prefix := range p.opts.APIRoutePrefixes {
			pattern := strings.TrimSuffix(prefix, "/") + "/*"
			r.Handle(pattern, http.HandlerFunc(p.apiGateHandler))
			r.Handle(strings.TrimSuffix(prefix, "/"), http.HandlerFunc(p.apiGateHandler))
		}
	})

	r.NotFound(p.defaultHandlerAdapter)
	r.MethodNotAllowed(p.defaultHandlerAdapter)
	return r
}

// registrationDispatch implements the not_implemented branch of spec §4.6
// and §7: hitting the registration path while it's disabled always answers
// 501, regardless of the default handler underneath.
func (p *OAuthProvider) registrationDispatch(w http.ResponseWriter, r *http.Request) {
	if p.registrationHandler == nil {
		oautherr.WriteJSON(w, oautherr.New(oautherr.NotImplemented, "dynamic client registration is disabled"))
		return
	}
	p.registrationHandler.ServeHTTP(w, r)
}

// apiGateHandler implements spec §4.5: bearer validation, then hand-off to
// the application's API handler with the decrypted props attached to the
// request context.
func (p *OAuthProvider) apiGateHandler(w http.ResponseWriter, r *http.Request) {
	ctx, err := p.gate.Authenticate(r)
	if err != nil {
		oErr, ok := err.(*oautherr.Error)
		if !ok {
			oErr = oautherr.Wrap(oautherr.InvalidToken, "internal error", err)
		}
		oautherr.WriteJSON(w, oErr)
		return
	}
	if err := p.opts.APIHandler.serve(w, r.WithContext(ctx), p.env); err != nil {
		logger.Errorw("api handler returned an error", "error", err.Error())
	}
}

// defaultHandlerAdapter serves everything that isn't a first-party endpoint
// or an API route (spec §4.8 branch (f)).
func (p *OAuthProvider) defaultHandlerAdapter(w http.ResponseWriter, r *http.Request) {
	if err := p.opts.DefaultHandler.serve(w, r, p.env); err != nil {
		logger.Errorw("default handler returned an error", "error", err.Error())
	}
}

// corsMiddleware implements spec §4.8's CORS rule for first-party
// endpoints: if the request carries an Origin header, its value is echoed
// into Access-Control-Allow-Origin and the wildcard method/header/max-age
// triple is set. An OPTIONS request against a first-party endpoint is
// answered here with 204 and never reaches the underlying handler.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := r.Header.Get("Origin"); origin != "" {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Methods", "*")
			h.Set("Access-Control-Allow-Headers", "Authorization, *")
			h.Set("Access-Control-Max-Age", "86400")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type requestIDKey struct{}

// requestIDMiddleware assigns a per-request correlation id, echoed as
// X-Request-Id and threaded into structured log lines by loggingMiddleware
// — the same "one call-site value per request" convention the teacher's
// slog-based logger expects, using google/uuid rather than chi's own
// counter-based id since this id is also meant to correlate across
// processes sharing one KV-backed deployment.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()
		w.Header().Set("X-Request-Id", id)
		ctx := context.WithValue(r.Context(), requestIDKey{}, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// loggingMiddleware logs one structured line per request: method, path,
// status, request id, and latency (spec.md §10 ambient logging).
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		logger.Infow("oauth request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"request_id", requestIDFrom(r.Context()),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}
