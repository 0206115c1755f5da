// Package api provides HTTP handlers for the keeper permission engine.
package api

import (
	"net/http"

	"github.com/xraph/forge"

	"github.com/xraph/keeper"
)

// API wires all keeper HTTP handlers together.
type API struct {
	eng    *keeper.Engine
	router forge.Router

	// authorizeWrites requires manageChannels for configuration writes.
	authorizeWrites bool
}

// Option configures the API.
type Option func(*API)

// WithAuthorizedWrites makes role and rule writes require the calling user
// to hold manageChannels in the affected scope.
func WithAuthorizedWrites() Option {
	return func(a *API) { a.authorizeWrites = true }
}

// New creates an API from an Engine and a Forge router.
func New(eng *keeper.Engine, router forge.Router, opts ...Option) *API {
	a := &API{eng: eng, router: router}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Handler returns the fully assembled http.Handler with all routes.
func (a *API) Handler() http.Handler {
	if a.router == nil {
		a.router = forge.NewRouter()
	}
	if err := a.RegisterRoutes(a.router); err != nil {
		panic("keeper: register routes: " + err.Error())
	}
	return a.router.Handler()
}

// RegisterRoutes registers all API routes into the given Forge router.
func (a *API) RegisterRoutes(router forge.Router) error {
	registerers := []func(forge.Router) error{
		a.registerPermissionRoutes,
		a.registerRoleRoutes,
		a.registerOverrideRoutes,
		a.registerAuditRoutes,
	}
	for _, fn := range registerers {
		if err := fn(router); err != nil {
			return err
		}
	}
	return nil
}
