package extension

import (
	"log/slog"

	"github.com/xraph/keeper"
	"github.com/xraph/keeper/plugin"
	"github.com/xraph/keeper/store"
)

// ExtOption configures the keeper Forge extension.
type ExtOption func(*Extension)

// WithStore sets the persistence backend.
func WithStore(s store.Store) ExtOption {
	return func(e *Extension) {
		e.keeperOpts = append(e.keeperOpts, keeper.WithStore(s))
	}
}

// WithRoomState sets the Matrix room state source.
func WithRoomState(src keeper.RoomStateSource) ExtOption {
	return func(e *Extension) {
		e.keeperOpts = append(e.keeperOpts, keeper.WithRoomState(src))
	}
}

// WithConfig sets the extension configuration.
func WithConfig(cfg Config) ExtOption {
	return func(e *Extension) {
		e.config = cfg
	}
}

// WithEngineOptions adds engine-level options.
func WithEngineOptions(opts ...keeper.Option) ExtOption {
	return func(e *Extension) {
		e.keeperOpts = append(e.keeperOpts, opts...)
	}
}

// WithPlugin registers a lifecycle hook plugin.
func WithPlugin(x plugin.Plugin) ExtOption {
	return func(e *Extension) {
		e.plugins = append(e.plugins, x)
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) ExtOption {
	return func(e *Extension) {
		e.logger = l
	}
}

// WithDisableRoutes disables the registration of HTTP routes.
func WithDisableRoutes() ExtOption {
	return func(e *Extension) {
		e.config.DisableRoutes = true
	}
}

// WithDisableMigrate disables auto-migration on start.
func WithDisableMigrate() ExtOption {
	return func(e *Extension) {
		e.config.DisableMigrate = true
	}
}

// WithBasePath mounts keeper routes under prefix.
func WithBasePath(prefix string) ExtOption {
	return func(e *Extension) { e.config.BasePath = prefix }
}

// WithMetricsPath mounts the Prometheus scrape handler at path.
func WithMetricsPath(path string) ExtOption {
	return func(e *Extension) { e.config.MetricsPath = path }
}
