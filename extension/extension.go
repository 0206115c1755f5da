// Package extension provides a Forge extension entry point for keeper.
package extension

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/xraph/forge"
	"github.com/xraph/vessel"

	"github.com/xraph/keeper"
	"github.com/xraph/keeper/api"
	"github.com/xraph/keeper/cache"
	"github.com/xraph/keeper/metrics"
	"github.com/xraph/keeper/plugin"
	"github.com/xraph/keeper/store"
)

// ExtensionName is the name registered with Forge.
const ExtensionName = "keeper"

// ExtensionDescription is the human-readable description.
const ExtensionDescription = "Permission snapshots and moderation audit for Matrix chat spaces"

// ExtensionVersion is the semantic version.
const ExtensionVersion = "0.1.0"

// Ensure Extension implements forge.Extension at compile time.
var _ forge.Extension = (*Extension)(nil)

// Extension adapts keeper as a Forge extension.
type Extension struct {
	config     Config
	eng        *keeper.Engine
	apiHandler *api.API
	logger     *slog.Logger
	keeperOpts []keeper.Option
	plugins    []plugin.Plugin
	scheduler  *cron.Cron
}

// New creates a keeper Forge extension with the given options.
func New(opts ...ExtOption) *Extension {
	e := &Extension{config: DefaultConfig()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name returns the extension name.
func (e *Extension) Name() string { return ExtensionName }

// Description returns the extension description.
func (e *Extension) Description() string { return ExtensionDescription }

// Version returns the extension version.
func (e *Extension) Version() string { return ExtensionVersion }

// Dependencies returns the list of extension names this extension depends on.
func (e *Extension) Dependencies() []string { return []string{} }

// Engine returns the underlying keeper engine.
func (e *Extension) Engine() *keeper.Engine { return e.eng }

// API returns the API handler.
func (e *Extension) API() *api.API { return e.apiHandler }

// Register implements [forge.Extension]. It initializes the engine,
// registers it in the DI container, and optionally registers HTTP routes.
func (e *Extension) Register(fapp forge.App) error {
	if err := e.init(fapp); err != nil {
		return err
	}

	// Register the engine in the DI container.
	if err := vessel.Provide(fapp.Container(), func() (*keeper.Engine, error) {
		return e.eng, nil
	}); err != nil {
		return fmt.Errorf("keeper: register engine in container: %w", err)
	}

	return nil
}

func (e *Extension) init(fapp forge.App) error {
	eng, err := e.buildEngine(func() (store.Store, error) {
		return forge.Inject[store.Store](fapp.Container())
	})
	if err != nil {
		return err
	}
	e.eng = eng

	// Create API handler.
	e.apiHandler = api.New(eng, fapp.Router(), e.apiOptions()...)

	// Register HTTP routes unless disabled.
	if !e.config.DisableRoutes {
		if err := e.RegisterRoutes(fapp.Router()); err != nil {
			return fmt.Errorf("keeper: register routes: %w", err)
		}
	}

	return nil
}

// buildEngine assembles engine options in precedence order: defaults, the
// container's store, then user-provided options.
func (e *Extension) buildEngine(injectStore func() (store.Store, error)) (*keeper.Engine, error) {
	logger := e.logger
	if logger == nil {
		logger = slog.Default()
	}

	opts := make([]keeper.Option, 0, len(e.keeperOpts)+len(e.plugins)+5)
	opts = append(opts, keeper.WithLogger(logger), keeper.WithConfig(e.config.Engine))

	if !e.config.DisableCache {
		var cacheOpts []cache.MemoryOption
		if e.config.Engine.CacheTTL > 0 {
			cacheOpts = append(cacheOpts, cache.WithTTL(e.config.Engine.CacheTTL))
		}
		opts = append(opts, keeper.WithCache(cache.NewMemory(cacheOpts...)))
	}

	// Try to resolve store from DI container, fall back to option-provided store.
	if injectStore != nil {
		if s, err := injectStore(); err == nil {
			opts = append(opts, keeper.WithStore(s))
		}
	}

	// Append user-provided options (may override store and cache).
	opts = append(opts, e.keeperOpts...)

	if !e.config.DisableMetrics {
		opts = append(opts, keeper.WithPlugin(metrics.NewPlugin()))
	}
	for _, x := range e.plugins {
		opts = append(opts, keeper.WithPlugin(x))
	}

	eng, err := keeper.NewEngine(opts...)
	if err != nil {
		return nil, fmt.Errorf("keeper: create engine: %w", err)
	}
	return eng, nil
}

func (e *Extension) apiOptions() []api.Option {
	if e.config.AuthorizeWrites {
		return []api.Option{api.WithAuthorizedWrites()}
	}
	return nil
}

// Start runs migrations if enabled, starts the engine and schedules the
// audit retention job.
func (e *Extension) Start(ctx context.Context) error {
	if e.eng == nil {
		return errors.New("keeper: extension not initialized")
	}

	// Run migrations unless disabled.
	if !e.config.DisableMigrate {
		s := e.eng.Store()
		if s != nil {
			if err := s.Migrate(ctx); err != nil {
				return fmt.Errorf("keeper: migration failed: %w", err)
			}
		}
	}

	if err := e.eng.Start(ctx); err != nil {
		return err
	}
	return e.startPurge()
}

func (e *Extension) startPurge() error {
	if !e.config.purgeEnabled() {
		return nil
	}
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	schedule, err := parser.Parse(e.config.purgeSchedule())
	if err != nil {
		return fmt.Errorf("keeper: invalid purge schedule: %w", err)
	}

	c := cron.New(cron.WithParser(parser))
	c.Schedule(schedule, cron.FuncJob(e.purge))
	c.Start()
	e.scheduler = c
	return nil
}

func (e *Extension) purge() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if _, err := e.eng.PurgeAuditLog(ctx); err != nil {
		e.log().Error("audit purge failed", slog.String("error", err.Error()))
	}
}

// Stop halts the retention job and shuts down the engine.
func (e *Extension) Stop(ctx context.Context) error {
	if e.scheduler != nil {
		done := e.scheduler.Stop()
		select {
		case <-done.Done():
		case <-ctx.Done():
		}
		e.scheduler = nil
	}
	if e.eng == nil {
		return nil
	}
	return e.eng.Stop(ctx)
}

// Health implements [forge.Extension].
func (e *Extension) Health(ctx context.Context) error {
	if e.eng == nil {
		return errors.New("keeper: extension not initialized")
	}
	s := e.eng.Store()
	if s == nil {
		return errors.New("keeper: no store configured")
	}
	return s.Ping(ctx)
}

// Handler returns the HTTP handler for all API routes.
func (e *Extension) Handler() http.Handler {
	if e.apiHandler == nil {
		return http.NotFoundHandler()
	}
	return e.apiHandler.Handler()
}

// MetricsHandler returns the Prometheus handler for keeper metrics.
func (e *Extension) MetricsHandler() http.Handler { return metrics.Handler() }

// RegisterRoutes registers all keeper API routes into a Forge router,
// under BasePath when one is configured.
func (e *Extension) RegisterRoutes(router forge.Router) error {
	if e.apiHandler == nil {
		return nil
	}
	if e.config.BasePath != "" {
		router = router.Group(e.config.BasePath)
	}
	if err := e.apiHandler.RegisterRoutes(router); err != nil {
		return err
	}
	if path, ok := e.config.metricsRoute(); ok {
		return router.GET(path, e.serveMetrics,
			forge.WithSummary("Prometheus metrics"),
			forge.WithDescription("Exposes keeper's snapshot, decision and audit metrics for scraping."),
			forge.WithOperationID("keeperMetrics"),
		)
	}
	return nil
}

// serveMetrics writes a scrape in the default text exposition format.
func (e *Extension) serveMetrics(ctx forge.Context, _ *struct{}) (*struct{}, error) {
	req, err := http.NewRequestWithContext(ctx.Context(), http.MethodGet, "/", nil)
	if err != nil {
		return nil, err
	}
	metrics.Handler().ServeHTTP(ctx.Response(), req)
	return nil, nil //nolint:nilnil // response already written
}

func (e *Extension) log() *slog.Logger {
	if e.logger != nil {
		return e.logger
	}
	return slog.Default()
}
