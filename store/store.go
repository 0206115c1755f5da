// Package store defines the aggregate persistence interface. Each subsystem
// (settings, override, audit) defines its own store interface and the
// composite Store composes them. Backends: Memory, SQLite, Postgres, MongoDB.
package store

import (
	"context"

	"github.com/xraph/keeper/audit"
	"github.com/xraph/keeper/override"
	"github.com/xraph/keeper/settings"
)

// Store is the aggregate persistence interface. A single backend implements
// every subsystem store.
type Store interface {
	settings.Store
	override.Store
	audit.Store

	// Migrate runs all schema migrations.
	Migrate(ctx context.Context) error

	// Ping checks database connectivity.
	Ping(ctx context.Context) error

	// Close closes the store connection.
	Close() error
}
