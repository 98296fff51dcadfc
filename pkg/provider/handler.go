// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package provider

import (
	"context"
	"fmt"
	"net/http"

	"github.com/oauthkv/provider/pkg/clients"
	"github.com/oauthkv/provider/pkg/grants"
)

// Handler is the "plain object exposing fetch" variant of the handler
// contract (spec §6): a value constructed once and reused across requests.
type Handler interface {
	ServeHTTPX(w http.ResponseWriter, r *http.Request, env *Env) error
}

// HandlerFactory is the "constructible class instantiated per request"
// variant: it runs construction-time validation itself and returns a fresh
// Handler for each request.
type HandlerFactory func(ctx context.Context, env *Env) (Handler, error)

// HandlerFunc adapts a plain function to the Handler interface.
type HandlerFunc func(w http.ResponseWriter, r *http.Request, env *Env) error

// ServeHTTPX implements Handler.
func (f HandlerFunc) ServeHTTPX(w http.ResponseWriter, r *http.Request, env *Env) error {
	return f(w, r, env)
}

// HandlerOrFactory is the two-variant tagged value spec §6 and §9 describe:
// polymorphism over the single capability "serve one request", without an
// inheritance chain. Exactly one of handler or factory is set.
type HandlerOrFactory struct {
	handler Handler
	factory HandlerFactory
}

// FromHandler wraps a reusable Handler value.
func FromHandler(h Handler) HandlerOrFactory {
	return HandlerOrFactory{handler: h}
}

// FromFactory wraps a HandlerFactory, constructed fresh per request.
func FromFactory(f HandlerFactory) HandlerOrFactory {
	return HandlerOrFactory{factory: f}
}

func (hf HandlerOrFactory) isZero() bool {
	return hf.handler == nil && hf.factory == nil
}

// serve resolves hf to a concrete Handler for this request (constructing it
// via the factory if that's the variant in play) and invokes it.
func (hf HandlerOrFactory) serve(w http.ResponseWriter, r *http.Request, env *Env) error {
	h := hf.handler
	if hf.factory != nil {
		constructed, err := hf.factory(r.Context(), env)
		if err != nil {
			return fmt.Errorf("provider: constructing handler: %w", err)
		}
		h = constructed
	}
	if h == nil {
		return fmt.Errorf("provider: no handler configured")
	}
	return h.ServeHTTPX(w, r, env)
}

// Env is installed as OAUTH_PROVIDER on the environment passed to the
// default and API handlers (spec §6): the helper surface of §4.2 (client
// registry) and §4.3 (authorization helper), so a default handler never
// needs to reach into pkg/clients or pkg/grants directly.
type Env struct {
	// Clients exposes the client registry (create/get/update/delete/list).
	Clients *clients.Registry

	// Grants exposes the authorization helper (parse auth request, complete
	// authorization, list/revoke grants).
	Grants *grants.Helper
}
